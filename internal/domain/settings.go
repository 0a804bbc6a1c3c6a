package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EvolutionAPISettings holds the messaging gateway credentials
type EvolutionAPISettings struct {
	APIURL        string `json:"api_url"`
	APIKey        string `json:"api_key"`
	InstanceName  string `json:"instance_name"`
	OperatorPhone string `json:"operator_phone"`
}

// TrackingSettings holds analytics tag ids
type TrackingSettings struct {
	GoogleAnalytics string `json:"google_analytics"`
	FacebookPixel   string `json:"facebook_pixel"`
	GTMID           string `json:"gtm_id"`
}

// SocialMediaSettings holds public profile links
type SocialMediaSettings struct {
	Facebook  string `json:"facebook"`
	Instagram string `json:"instagram"`
	LinkedIn  string `json:"linkedin"`
	YouTube   string `json:"youtube"`
	WhatsApp  string `json:"whatsapp"`
}

// N8NSettings holds the automation platform connection
type N8NSettings struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
	Enabled bool   `json:"enabled"`
}

// SiteSettings is the singleton site configuration row
type SiteSettings struct {
	ID             string               `gorm:"primaryKey;size:36" json:"id"`
	CompanyName    string               `json:"company_name"`
	Logo           string               `json:"logo"`
	LogoDark       string               `json:"logo_dark"`
	PrimaryColor   string               `json:"primary_color"`
	SecondaryColor string               `json:"secondary_color"`
	ContactEmail   string               `json:"contact_email"`
	ContactPhone   string               `json:"contact_phone"`
	Address        string               `json:"address"`
	SocialMedia    SocialMediaSettings  `gorm:"serializer:json" json:"social_media"`
	Tracking       TrackingSettings     `gorm:"serializer:json" json:"tracking"`
	EvolutionAPI   EvolutionAPISettings `gorm:"serializer:json" json:"evolution_api"`
	N8NConfig      N8NSettings          `gorm:"serializer:json;column:n8n_config" json:"n8n_config"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// TableName specifies the table name for SiteSettings
func (SiteSettings) TableName() string {
	return "site_settings"
}

// BeforeCreate hook
func (s *SiteSettings) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// DefaultSiteSettings returns the row created on first use
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		CompanyName:    "Premium Imóveis",
		PrimaryColor:   "#1e40af",
		SecondaryColor: "#f59e0b",
	}
}
