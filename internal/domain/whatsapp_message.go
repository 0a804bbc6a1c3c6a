package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message directions
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message types derived from the gateway payload shape
const (
	MessageTypeText     = "text"
	MessageTypeImage    = "image"
	MessageTypeVideo    = "video"
	MessageTypeAudio    = "audio"
	MessageTypeDocument = "document"
	MessageTypeUnknown  = "unknown"
)

// WhatsAppMessage is a message observed through the messaging gateway
type WhatsAppMessage struct {
	ID                 string    `gorm:"primaryKey;size:36" json:"id"`
	EvolutionMessageID string    `gorm:"index" json:"evolution_message_id"`
	PhoneNumber        string    `gorm:"index" json:"phone_number"`
	Message            string    `gorm:"type:text" json:"message"`
	MessageType        string    `json:"message_type"`
	Direction          string    `json:"direction"`
	Status             string    `json:"status"`
	MediaURL           *string   `json:"media_url"`
	LeadID             *string   `gorm:"size:36;index" json:"lead_id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TableName specifies the table name for WhatsAppMessage
func (WhatsAppMessage) TableName() string {
	return "whatsapp_messages"
}

// BeforeCreate hook
func (m *WhatsAppMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
