package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"realestate/internal/config"
	"realestate/internal/domain"
	"realestate/internal/gateway"
	"realestate/internal/testutil"
)

var testGateway = config.GatewayConfig{
	APIURL:        "http://gateway.test",
	APIKey:        "secret-key-1234",
	InstanceName:  "main",
	OperatorPhone: "5511999990000",
}

// recorder collects the order in which side effects happened
type recorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *recorder) add(step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.steps...)
}

type fakeSender struct {
	rec   *recorder
	err   error
	mu    sync.Mutex
	sent  []string
	to    []string
	creds []gateway.Credentials
}

func (f *fakeSender) SendText(_ context.Context, creds gateway.Credentials, number, text string) error {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.to = append(f.to, number)
	f.creds = append(f.creds, creds)
	f.mu.Unlock()
	if f.rec != nil {
		f.rec.add("notify")
	}
	return f.err
}

func (f *fakeSender) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// hookTarget is an automation endpoint that records every envelope it receives
type hookTarget struct {
	*httptest.Server
	mu        sync.Mutex
	envelopes []map[string]interface{}
}

func newHookTarget(t *testing.T, status int, rec *recorder) *hookTarget {
	t.Helper()
	h := &hookTarget{}
	h.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&env)
		h.mu.Lock()
		h.envelopes = append(h.envelopes, env)
		h.mu.Unlock()
		if rec != nil {
			rec.add("fanout")
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(h.Close)
	return h
}

func (h *hookTarget) received() []map[string]interface{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]map[string]interface{}(nil), h.envelopes...)
}

func registerHook(t *testing.T, db *gorm.DB, name, url, event string, active bool) *domain.WebhookRegistration {
	t.Helper()
	hook := &domain.WebhookRegistration{Name: name, WebhookURL: url, EventType: event, Active: active}
	require.NoError(t, db.Create(hook).Error)
	return hook
}

func newWebhooks(db *gorm.DB) *WebhookService {
	return NewWebhookService(db, config.WebhookConfig{Timeout: 2 * time.Second, Source: "real-estate-system"})
}

type pipeline struct {
	db       *gorm.DB
	sender   *fakeSender
	rec      *recorder
	settings *SettingsService
	webhooks *WebhookService
	leads    *LeadService
	tasks    *Tasks
}

func newPipeline(t *testing.T, seed config.GatewayConfig) *pipeline {
	t.Helper()
	db := testutil.NewDB(t)
	rec := &recorder{}
	sender := &fakeSender{rec: rec}
	settings := NewSettingsService(db, testutil.NewCache(t), seed)
	templates := NewTemplateService(db)
	analytics := NewAnalyticsService(db, settings)
	webhooks := newWebhooks(db)
	email := NewEmailService(&config.EmailConfig{Enabled: false, Provider: "console"})
	effects := NewLeadSideEffects(NewLeadNotifier(settings, templates, sender), analytics, email, settings, webhooks)
	tasks := NewTasks()
	return &pipeline{
		db:       db,
		sender:   sender,
		rec:      rec,
		settings: settings,
		webhooks: webhooks,
		leads:    NewLeadService(db, effects, webhooks, tasks),
		tasks:    tasks,
	}
}
