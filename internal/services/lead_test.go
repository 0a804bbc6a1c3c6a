package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate/internal/config"
	"realestate/internal/domain"
	"realestate/internal/testutil"
	apperrors "realestate/pkg/errors"
)

func TestSubmitRequiresNameAndPhoneBeforeTouchingTheDatabase(t *testing.T) {
	p := newPipeline(t, testGateway)
	// A closed database makes any query fail with an internal error
	testutil.BreakDB(t, p.db)

	cases := []LeadInput{
		{Name: "", Phone: "11999990000"},
		{Name: "Ana", Phone: "   "},
		{Name: "  ", Phone: ""},
	}
	for _, in := range cases {
		_, err := p.leads.Submit(context.Background(), in, RequestMeta{})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err), "got %v", err)
	}
	p.leads.Wait()
	assert.Empty(t, p.sender.messages())
}

func TestSubmitPersistsWithDefaults(t *testing.T) {
	p := newPipeline(t, testGateway)

	lead, err := p.leads.Submit(context.Background(), LeadInput{Name: " Ana ", Phone: "11999990000"}, RequestMeta{})
	require.NoError(t, err)
	p.leads.Wait()

	var stored domain.Lead
	require.NoError(t, p.db.First(&stored, "id = ?", lead.ID).Error)
	assert.Equal(t, "Ana", stored.Name)
	assert.Equal(t, domain.LeadSourceWebsite, stored.LeadSource)
	assert.Equal(t, domain.DefaultPropertyTitle, stored.PropertyTitle)
	assert.Equal(t, domain.LeadStatusNew, stored.Status)

	var count int64
	require.NoError(t, p.db.Model(&domain.Lead{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSubmitKeepsCallerSource(t *testing.T) {
	p := newPipeline(t, testGateway)
	source := domain.LeadSourcePopup
	email := " Ana@Example.COM "

	lead, err := p.leads.Submit(context.Background(), LeadInput{Name: "Ana", Phone: "1", Email: &email, LeadSource: &source}, RequestMeta{})
	require.NoError(t, err)
	p.leads.Wait()

	assert.Equal(t, domain.LeadSourcePopup, lead.LeadSource)
	require.NotNil(t, lead.Email)
	assert.Equal(t, "ana@example.com", *lead.Email)
}

func TestSubmitEnhancedFormDefaults(t *testing.T) {
	p := newPipeline(t, testGateway)
	source := domain.LeadSourceContactFormEnhanced

	lead, err := p.leads.Submit(context.Background(), LeadInput{Name: "Ana", Phone: "1", LeadSource: &source}, RequestMeta{})
	require.NoError(t, err)
	p.leads.Wait()

	require.NotNil(t, lead.Urgency)
	require.NotNil(t, lead.PreferredContact)
	assert.Equal(t, "normal", *lead.Urgency)
	assert.Equal(t, "whatsapp", *lead.PreferredContact)
}

func TestSubmitUsesCatalogTitle(t *testing.T) {
	p := newPipeline(t, testGateway)
	property := &domain.Property{Title: "Cobertura Jardins", Price: 1, Location: "São Paulo", Type: domain.PropertyTypeApartment, Status: domain.PropertyStatusForSale}
	require.NoError(t, p.db.Create(property).Error)

	lead, err := p.leads.Submit(context.Background(), LeadInput{Name: "Ana", Phone: "1", PropertyID: &property.ID}, RequestMeta{})
	require.NoError(t, err)
	p.leads.Wait()

	assert.Equal(t, "Cobertura Jardins", lead.PropertyTitle)
}

func TestSubmitPersistenceFailureFailsTheCall(t *testing.T) {
	p := newPipeline(t, testGateway)
	testutil.BreakDB(t, p.db)

	lead, err := p.leads.Submit(context.Background(), LeadInput{Name: "Ana", Phone: "1"}, RequestMeta{})
	p.leads.Wait()

	assert.Nil(t, lead)
	assert.Equal(t, apperrors.ErrCodeInternalError, apperrors.CodeOf(err))
	assert.Empty(t, p.sender.messages(), "no notification without a stored lead")
}

func TestSubmitRunsSideEffectsInOrder(t *testing.T) {
	p := newPipeline(t, testGateway)
	target := newHookTarget(t, http.StatusOK, p.rec)
	registerHook(t, p.db, "crm", target.URL, domain.EventNewLead, true)

	lead, err := p.leads.Submit(context.Background(), LeadInput{Name: "Ana", Phone: "11999990000"}, RequestMeta{})
	require.NoError(t, err)
	p.leads.Wait()

	assert.Equal(t, []string{"notify", "fanout"}, p.rec.list())

	msgs := p.sender.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "NOVO LEAD")
	assert.Contains(t, msgs[0], "Ana")
	assert.Equal(t, testGateway.OperatorPhone, p.sender.to[0])

	var events []domain.AnalyticsEvent
	require.NoError(t, p.db.Where("event_type = ?", domain.AnalyticsGenerateLead).Find(&events).Error)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].LeadID)
	assert.Equal(t, lead.ID, *events[0].LeadID)

	envs := target.received()
	require.Len(t, envs, 1)
	assert.Equal(t, domain.EventNewLead, envs[0]["eventType"])
}

func TestSubmitSucceedsWhenNotificationFails(t *testing.T) {
	p := newPipeline(t, testGateway)
	p.sender.err = errors.New("connection refused")
	target := newHookTarget(t, http.StatusOK, p.rec)
	registerHook(t, p.db, "crm", target.URL, domain.EventNewLead, true)

	lead, err := p.leads.Submit(context.Background(), LeadInput{Name: "Ana", Phone: "1"}, RequestMeta{})
	require.NoError(t, err)
	p.leads.Wait()

	_, err = p.leads.Get(context.Background(), lead.ID)
	assert.NoError(t, err)
	assert.Len(t, target.received(), 1, "fan-out still runs after a failed notification")
}

func TestSubmitWithoutGatewayConfigurationSkipsNotification(t *testing.T) {
	p := newPipeline(t, config.GatewayConfig{})

	_, err := p.leads.Submit(context.Background(), LeadInput{Name: "Ana", Phone: "1"}, RequestMeta{})
	require.NoError(t, err)
	p.leads.Wait()

	assert.Empty(t, p.sender.messages())
}

func TestSubmitUsesActiveTemplate(t *testing.T) {
	p := newPipeline(t, testGateway)
	_, err := NewTemplateService(p.db).Create(context.Background(), TemplateInput{
		Name:      "novo",
		Content:   "Lead {{name}} ({{phone}}) via {{source}}",
		Type:      domain.TemplateTypeNewLead,
		Variables: []string{"name", "phone", "source"},
	})
	require.NoError(t, err)

	_, err = p.leads.Submit(context.Background(), LeadInput{Name: "Ana", Phone: "119"}, RequestMeta{})
	require.NoError(t, err)
	p.leads.Wait()

	assert.Equal(t, []string{"Lead Ana (119) via website"}, p.sender.messages())
}

func TestLeadDashboard(t *testing.T) {
	p := newPipeline(t, config.GatewayConfig{})
	ctx := context.Background()
	popup := domain.LeadSourcePopup

	first, err := p.leads.Submit(ctx, LeadInput{Name: "Ana", Phone: "1"}, RequestMeta{})
	require.NoError(t, err)
	_, err = p.leads.Submit(ctx, LeadInput{Name: "Bia", Phone: "2", LeadSource: &popup}, RequestMeta{})
	require.NoError(t, err)
	p.leads.Wait()

	updated, err := p.leads.UpdateStatus(ctx, first.ID, domain.LeadStatusContacted)
	require.NoError(t, err)
	assert.Equal(t, domain.LeadStatusContacted, updated.Status)

	_, err = p.leads.UpdateStatus(ctx, first.ID, "archived")
	assert.True(t, apperrors.IsValidation(err))

	_, err = p.leads.UpdateStatus(ctx, "missing", domain.LeadStatusLost)
	assert.True(t, apperrors.IsNotFound(err))

	stats, err := p.leads.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.New)
	assert.Equal(t, int64(1), stats.Contacted)

	popups, err := p.leads.List(ctx, LeadFilter{Source: domain.LeadSourcePopup})
	require.NoError(t, err)
	require.Len(t, popups, 1)
	assert.Equal(t, "Bia", popups[0].Name)

	assignee := "corretor@premium.com"
	tags := []string{"vip", " ", "investidor "}
	patched, err := p.leads.Update(ctx, first.ID, LeadPatch{AssignedTo: &assignee, Tags: &tags})
	require.NoError(t, err)
	require.NotNil(t, patched.AssignedTo)
	assert.Equal(t, assignee, *patched.AssignedTo)
	assert.ElementsMatch(t, []string{"vip", "investidor"}, []string(patched.Tags))

	p.leads.Wait()
}

func TestUpdateStatusFansOut(t *testing.T) {
	p := newPipeline(t, config.GatewayConfig{})
	target := newHookTarget(t, http.StatusOK, nil)
	registerHook(t, p.db, "status", target.URL, domain.EventLeadStatusChange, true)

	lead, err := p.leads.Submit(context.Background(), LeadInput{Name: "Ana", Phone: "1"}, RequestMeta{})
	require.NoError(t, err)
	p.leads.Wait()
	_, err = p.leads.UpdateStatus(context.Background(), lead.ID, domain.LeadStatusQualified)
	require.NoError(t, err)
	p.leads.Wait()

	envs := target.received()
	require.Len(t, envs, 1)
	data, ok := envs[0]["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, domain.LeadStatusNew, data["previous_status"])
	assert.Equal(t, domain.LeadStatusQualified, data["new_status"])
}

func TestExportCSV(t *testing.T) {
	p := newPipeline(t, config.GatewayConfig{})
	msg := "Quero visitar, sábado"
	_, err := p.leads.Submit(context.Background(), LeadInput{Name: "Ana", Phone: "1", Message: &msg}, RequestMeta{})
	require.NoError(t, err)
	p.leads.Wait()

	var buf bytes.Buffer
	require.NoError(t, p.leads.ExportCSV(context.Background(), &buf, LeadFilter{}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, "Ana", rows[1][1])
	assert.Equal(t, msg, rows[1][12])

	err = p.leads.ExportCSV(context.Background(), &buf, LeadFilter{Status: "bogus"})
	assert.True(t, apperrors.IsValidation(err))
}
