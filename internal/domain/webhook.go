package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Automation event types a webhook can subscribe to
const (
	EventNewLead          = "new_lead"
	EventPropertyView     = "property_view"
	EventContactForm      = "contact_form"
	EventCalculatorUse    = "calculator_use"
	EventLeadStatusChange = "lead_status_change"
)

// WebhookEventTypes lists the subscribable event types.
var WebhookEventTypes = []string{
	EventNewLead,
	EventPropertyView,
	EventContactForm,
	EventCalculatorUse,
	EventLeadStatusChange,
}

// IsValidWebhookEvent reports whether s is a subscribable event type
func IsValidWebhookEvent(s string) bool {
	for _, e := range WebhookEventTypes {
		if e == s {
			return true
		}
	}
	return false
}

// WebhookRegistration is an automation endpoint subscribed to one event type.
// Inactive registrations never receive traffic.
type WebhookRegistration struct {
	ID         string         `gorm:"primaryKey;size:36" json:"id"`
	Name       string         `gorm:"not null" json:"name"`
	WebhookURL string         `gorm:"not null" json:"webhook_url"`
	EventType  string         `gorm:"not null;index:idx_webhook_event_active" json:"event_type"`
	Active     bool           `gorm:"not null;index:idx_webhook_event_active" json:"active"`
	Config     datatypes.JSON `json:"config"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// TableName specifies the table name for WebhookRegistration
func (WebhookRegistration) TableName() string {
	return "n8n_webhooks"
}

// BeforeCreate hook
func (w *WebhookRegistration) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if len(w.Config) == 0 {
		w.Config = datatypes.JSON("{}")
	}
	return nil
}
