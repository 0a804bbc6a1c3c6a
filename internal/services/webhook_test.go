package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate/internal/domain"
	"realestate/internal/testutil"
	apperrors "realestate/pkg/errors"
)

func TestTriggerDeliversToActiveSubscribersOnly(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newWebhooks(db)

	active := newHookTarget(t, http.StatusOK, nil)
	inactive := newHookTarget(t, http.StatusOK, nil)
	other := newHookTarget(t, http.StatusOK, nil)
	registerHook(t, db, "active", active.URL, domain.EventNewLead, true)
	registerHook(t, db, "inactive", inactive.URL, domain.EventNewLead, false)
	registerHook(t, db, "other", other.URL, domain.EventPropertyView, true)

	results, err := svc.Trigger(context.Background(), domain.EventNewLead, map[string]string{"name": "Ana"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, http.StatusOK, results[0].Status)
	assert.Equal(t, "active", results[0].WebhookName)

	assert.Len(t, active.received(), 1)
	assert.Empty(t, inactive.received())
	assert.Empty(t, other.received())
}

func TestTriggerEnvelope(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newWebhooks(db)
	target := newHookTarget(t, http.StatusOK, nil)
	hook := registerHook(t, db, "crm", target.URL, domain.EventContactForm, true)
	require.NoError(t, db.Model(hook).Update("config", `{"pipeline":"vendas"}`).Error)

	_, err := svc.Trigger(context.Background(), domain.EventContactForm, map[string]string{"name": "Ana"})
	require.NoError(t, err)

	envs := target.received()
	require.Len(t, envs, 1)
	env := envs[0]
	assert.Equal(t, domain.EventContactForm, env["eventType"])
	assert.Equal(t, "real-estate-system", env["source"])
	assert.NotEmpty(t, env["timestamp"])
	assert.Equal(t, map[string]interface{}{"name": "Ana"}, env["data"])
	assert.Equal(t, map[string]interface{}{"pipeline": "vendas"}, env["webhookConfig"])
}

func TestTriggerPartialFailureReachesEveryTarget(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newWebhooks(db)

	a := newHookTarget(t, http.StatusOK, nil)
	b := newHookTarget(t, http.StatusInternalServerError, nil)
	c := newHookTarget(t, http.StatusAccepted, nil)
	registerHook(t, db, "a", a.URL, domain.EventNewLead, true)
	registerHook(t, db, "b", b.URL, domain.EventNewLead, true)
	registerHook(t, db, "c", c.URL, domain.EventNewLead, true)

	results, err := svc.Trigger(context.Background(), domain.EventNewLead, map[string]string{})
	require.NoError(t, err)
	require.Len(t, results, 3)

	byName := map[string]TriggerResult{}
	for _, r := range results {
		byName[r.WebhookName] = r
	}
	assert.True(t, byName["a"].Success)
	assert.False(t, byName["b"].Success)
	assert.Equal(t, http.StatusInternalServerError, byName["b"].Status)
	assert.True(t, byName["c"].Success)

	assert.Len(t, a.received(), 1)
	assert.Len(t, b.received(), 1)
	assert.Len(t, c.received(), 1)
}

func TestTriggerUnreachableTarget(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newWebhooks(db)
	down := newHookTarget(t, http.StatusOK, nil)
	url := down.URL
	down.Close()
	registerHook(t, db, "down", url, domain.EventNewLead, true)

	results, err := svc.Trigger(context.Background(), domain.EventNewLead, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.NotEmpty(t, results[0].Error)
}

func TestTriggerWithoutSubscribers(t *testing.T) {
	db := testutil.NewDB(t)

	results, err := newWebhooks(db).Trigger(context.Background(), "unknown_event", nil)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestWebhookRegistrationLifecycle(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newWebhooks(db)
	ctx := context.Background()
	target := newHookTarget(t, http.StatusOK, nil)

	_, err := svc.Create(ctx, WebhookInput{Name: "crm", WebhookURL: "not a url", EventType: domain.EventNewLead})
	assert.True(t, apperrors.IsValidation(err))
	_, err = svc.Create(ctx, WebhookInput{Name: "crm", WebhookURL: target.URL, EventType: "page_view"})
	assert.True(t, apperrors.IsValidation(err))

	hook, err := svc.Create(ctx, WebhookInput{Name: "crm", WebhookURL: target.URL, EventType: domain.EventNewLead})
	require.NoError(t, err)
	assert.True(t, hook.Active)

	result, err := svc.Test(ctx, hook.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	envs := target.received()
	require.Len(t, envs, 1)
	data := envs[0]["data"].(map[string]interface{})
	assert.Equal(t, true, data["test"])

	toggled, err := svc.Toggle(ctx, hook.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Active)

	_, err = svc.Test(ctx, hook.ID)
	assert.True(t, apperrors.IsValidation(err))

	updated, err := svc.Update(ctx, hook.ID, WebhookInput{Name: "crm 2", WebhookURL: target.URL, EventType: domain.EventCalculatorUse})
	require.NoError(t, err)
	assert.Equal(t, "crm 2", updated.Name)
	assert.False(t, updated.Active, "update keeps the active flag")

	hooks, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, hooks, 1)

	require.NoError(t, svc.Delete(ctx, hook.ID))
	assert.True(t, apperrors.IsNotFound(svc.Delete(ctx, hook.ID)))
	_, err = svc.Toggle(ctx, hook.ID)
	assert.True(t, apperrors.IsNotFound(err))
}
