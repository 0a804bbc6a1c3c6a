package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Template types
const (
	TemplateTypeNewLead  = "new_lead"
	TemplateTypeFollowUp = "follow_up"
	TemplateTypeWelcome  = "welcome"
)

// MessageTemplate is an operator message with {{variable}} placeholders
type MessageTemplate struct {
	ID        string                      `gorm:"primaryKey;size:36" json:"id"`
	Name      string                      `gorm:"not null" json:"name"`
	Content   string                      `gorm:"type:text;not null" json:"content"`
	Type      string                      `gorm:"not null;index" json:"type"`
	Variables datatypes.JSONSlice[string] `json:"variables"`
	Active    bool                        `gorm:"not null;index" json:"active"`
	CreatedAt time.Time                   `json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

// TableName specifies the table name for MessageTemplate
func (MessageTemplate) TableName() string {
	return "message_templates"
}

// BeforeCreate hook
func (t *MessageTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Variables == nil {
		t.Variables = datatypes.JSONSlice[string]{}
	}
	return nil
}
