package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Analytics event names forwarded to the tag providers
const (
	AnalyticsPageView      = "page_view"
	AnalyticsViewItem      = "view_item"
	AnalyticsGenerateLead  = "generate_lead"
	AnalyticsContact       = "contact"
	AnalyticsUseCalculator = "use_calculator"
)

// AnalyticsEventTypes lists the accepted analytics event names.
var AnalyticsEventTypes = []string{
	AnalyticsPageView,
	AnalyticsViewItem,
	AnalyticsGenerateLead,
	AnalyticsContact,
	AnalyticsUseCalculator,
}

// AnalyticsEvent is a recorded funnel event
type AnalyticsEvent struct {
	ID          string         `gorm:"primaryKey;size:36" json:"id"`
	EventType   string         `gorm:"not null;index" json:"event_type"`
	EventData   datatypes.JSON `json:"event_data"`
	LeadID      *string        `gorm:"size:36;index" json:"lead_id"`
	PropertyID  *string        `gorm:"size:36;index" json:"property_id"`
	UserSession *string        `json:"user_session"`
	IPAddress   *string        `json:"ip_address"`
	UserAgent   *string        `json:"user_agent"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for AnalyticsEvent
func (AnalyticsEvent) TableName() string {
	return "analytics_events"
}

// BeforeCreate hook
func (e *AnalyticsEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if len(e.EventData) == 0 {
		e.EventData = datatypes.JSON("{}")
	}
	return nil
}
