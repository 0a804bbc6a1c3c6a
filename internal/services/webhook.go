package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"realestate/internal/config"
	"realestate/internal/domain"
	"realestate/internal/metrics"
	apperrors "realestate/pkg/errors"
)

// WebhookService manages automation webhook registrations and fans events out to them
type WebhookService struct {
	db     *gorm.DB
	client *http.Client
	source string
}

// TriggerResult is the delivery outcome for one registration
type TriggerResult struct {
	WebhookID   string `json:"webhookId"`
	WebhookName string `json:"webhookName"`
	Success     bool   `json:"success"`
	Status      int    `json:"status,omitempty"`
	StatusText  string `json:"statusText,omitempty"`
	Error       string `json:"error,omitempty"`
}

// WebhookInput is the payload for creating or replacing a registration
type WebhookInput struct {
	Name       string          `json:"name" validate:"required"`
	WebhookURL string          `json:"webhook_url" validate:"required,http_url"`
	EventType  string          `json:"event_type" validate:"required,oneof=new_lead property_view contact_form calculator_use lead_status_change"`
	Active     *bool           `json:"active"`
	Config     json.RawMessage `json:"config"`
}

type webhookEnvelope struct {
	EventType     string          `json:"eventType"`
	Data          interface{}     `json:"data"`
	Timestamp     string          `json:"timestamp"`
	Source        string          `json:"source"`
	WebhookConfig json.RawMessage `json:"webhookConfig"`
}

// NewWebhookService creates a webhook service with the configured delivery timeout
func NewWebhookService(db *gorm.DB, cfg config.WebhookConfig) *WebhookService {
	source := cfg.Source
	if source == "" {
		source = "real-estate-system"
	}
	return &WebhookService{
		db:     db,
		client: &http.Client{Timeout: cfg.Timeout},
		source: source,
	}
}

// Trigger delivers payload to every active registration subscribed to eventType.
// Deliveries run concurrently and independently; one failure never stops the others.
func (s *WebhookService) Trigger(ctx context.Context, eventType string, payload interface{}) ([]TriggerResult, error) {
	var hooks []domain.WebhookRegistration
	if err := s.db.WithContext(ctx).
		Where("event_type = ? AND active = ?", eventType, true).
		Find(&hooks).Error; err != nil {
		log.Printf("[WEBHOOK] Trigger failed: event=%s, database error: %v", eventType, err)
		return nil, apperrors.Internal("failed to load webhooks", err)
	}

	results := make([]TriggerResult, len(hooks))
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")

	// No shared context cancellation: every target gets its attempt.
	var g errgroup.Group
	for i := range hooks {
		hook := hooks[i]
		g.Go(func() error {
			results[i] = s.deliver(ctx, &hook, eventType, payload, timestamp)
			metrics.RecordWebhookDelivery(eventType, results[i].Success)
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	log.Printf("[WEBHOOK] Trigger complete: event=%s, targets=%d, succeeded=%d", eventType, len(results), succeeded)
	return results, nil
}

func (s *WebhookService) deliver(ctx context.Context, hook *domain.WebhookRegistration, eventType string, payload interface{}, timestamp string) TriggerResult {
	result := TriggerResult{WebhookID: hook.ID, WebhookName: hook.Name}

	webhookConfig := json.RawMessage(hook.Config)
	if len(webhookConfig) == 0 {
		webhookConfig = json.RawMessage("{}")
	}
	body, err := json.Marshal(webhookEnvelope{
		EventType:     eventType,
		Data:          payload,
		Timestamp:     timestamp,
		Source:        s.source,
		WebhookConfig: webhookConfig,
	})
	if err != nil {
		result.Error = fmt.Sprintf("failed to encode payload: %v", err)
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.WebhookURL, bytes.NewReader(body))
	if err != nil {
		result.Error = err.Error()
		return result
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("[WEBHOOK] Delivery failed: webhook=%s, event=%s: %v", hook.ID, eventType, err)
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	result.Status = resp.StatusCode
	result.StatusText = strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	result.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !result.Success {
		log.Printf("[WEBHOOK] Delivery rejected: webhook=%s, event=%s, status=%d", hook.ID, eventType, resp.StatusCode)
	}
	return result
}

// List returns all registrations, newest first
func (s *WebhookService) List(ctx context.Context) ([]domain.WebhookRegistration, error) {
	var hooks []domain.WebhookRegistration
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&hooks).Error; err != nil {
		log.Printf("[WEBHOOK] List failed: database error: %v", err)
		return nil, apperrors.Internal("failed to fetch webhooks", err)
	}
	return hooks, nil
}

// Create registers a new webhook. Registrations are active unless stated otherwise.
func (s *WebhookService) Create(ctx context.Context, in WebhookInput) (*domain.WebhookRegistration, error) {
	hook := &domain.WebhookRegistration{}
	if err := applyWebhookInput(hook, in, true); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(hook).Error; err != nil {
		log.Printf("[WEBHOOK] Create failed: database error: %v", err)
		return nil, apperrors.Internal("failed to save webhook", err)
	}
	log.Printf("[WEBHOOK] Registered: id=%s, event=%s, active=%v", hook.ID, hook.EventType, hook.Active)
	return hook, nil
}

// Update replaces a registration's fields
func (s *WebhookService) Update(ctx context.Context, id string, in WebhookInput) (*domain.WebhookRegistration, error) {
	hook, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyWebhookInput(hook, in, hook.Active); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(hook).Error; err != nil {
		log.Printf("[WEBHOOK] Update failed: database error: %v", err)
		return nil, apperrors.Internal("failed to save webhook", err)
	}
	return hook, nil
}

// Delete removes a registration
func (s *WebhookService) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&domain.WebhookRegistration{}, "id = ?", id)
	if res.Error != nil {
		log.Printf("[WEBHOOK] Delete failed: database error: %v", res.Error)
		return apperrors.Internal("failed to delete webhook", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("webhook not found")
	}
	log.Printf("[WEBHOOK] Deleted: id=%s", id)
	return nil
}

// Toggle flips a registration's active flag
func (s *WebhookService) Toggle(ctx context.Context, id string) (*domain.WebhookRegistration, error) {
	hook, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	hook.Active = !hook.Active
	if err := s.db.WithContext(ctx).Model(hook).Update("active", hook.Active).Error; err != nil {
		log.Printf("[WEBHOOK] Toggle failed: database error: %v", err)
		return nil, apperrors.Internal("failed to save webhook", err)
	}
	log.Printf("[WEBHOOK] Toggled: id=%s, active=%v", hook.ID, hook.Active)
	return hook, nil
}

// Test sends a sample event to one registration. Inactive registrations are refused.
func (s *WebhookService) Test(ctx context.Context, id string) (*TriggerResult, error) {
	hook, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !hook.Active {
		return nil, apperrors.Validation("webhook is inactive")
	}

	payload := map[string]interface{}{
		"test":    true,
		"message": "Teste de integração",
	}
	result := s.deliver(ctx, hook, hook.EventType, payload, time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"))
	metrics.RecordWebhookDelivery(hook.EventType, result.Success)
	return &result, nil
}

func (s *WebhookService) get(ctx context.Context, id string) (*domain.WebhookRegistration, error) {
	var hook domain.WebhookRegistration
	if err := s.db.WithContext(ctx).First(&hook, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("webhook not found")
		}
		log.Printf("[WEBHOOK] Get failed: database error: %v", err)
		return nil, apperrors.Internal("failed to fetch webhook", err)
	}
	return &hook, nil
}

func applyWebhookInput(hook *domain.WebhookRegistration, in WebhookInput, defaultActive bool) error {
	in.Name = strings.TrimSpace(in.Name)
	in.WebhookURL = strings.TrimSpace(in.WebhookURL)
	in.EventType = strings.TrimSpace(in.EventType)
	if err := validateStruct(in); err != nil {
		return err
	}

	cfg := datatypes.JSON("{}")
	if len(in.Config) > 0 && string(in.Config) != "null" {
		var obj map[string]interface{}
		if err := json.Unmarshal(in.Config, &obj); err != nil {
			return apperrors.Validation("config must be a JSON object")
		}
		cfg = datatypes.JSON(in.Config)
	}

	hook.Name = in.Name
	hook.WebhookURL = in.WebhookURL
	hook.EventType = in.EventType
	hook.Config = cfg
	hook.Active = defaultActive
	if in.Active != nil {
		hook.Active = *in.Active
	}
	return nil
}
