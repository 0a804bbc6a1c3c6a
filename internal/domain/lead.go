package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Lead statuses
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusQualified = "qualified"
	LeadStatusConverted = "converted"
	LeadStatusLost      = "lost"
)

// LeadStatuses lists every status a lead can move through.
var LeadStatuses = []string{
	LeadStatusNew,
	LeadStatusContacted,
	LeadStatusQualified,
	LeadStatusConverted,
	LeadStatusLost,
}

// Lead sources used by the site's capture surfaces
const (
	LeadSourceWebsite             = "website"
	LeadSourceContactForm         = "contact_form"
	LeadSourceContactFormEnhanced = "contact_form_enhanced"
	LeadSourcePopup               = "popup"
	LeadSourceFinancingCalculator = "financing_calculator"
)

// KnownLeadSource reports whether source is one of the sources the site's forms send
func KnownLeadSource(source string) bool {
	switch source {
	case LeadSourceWebsite, LeadSourceContactForm, LeadSourceContactFormEnhanced,
		LeadSourcePopup, LeadSourceFinancingCalculator:
		return true
	}
	return false
}

// DefaultPropertyTitle is stored when a lead is not about a specific property.
const DefaultPropertyTitle = "Contato geral"

// IsValidLeadStatus reports whether s is a known lead status
func IsValidLeadStatus(s string) bool {
	for _, status := range LeadStatuses {
		if status == s {
			return true
		}
	}
	return false
}

// Lead is a captured prospect. Leads are never deleted.
type Lead struct {
	ID               string                      `gorm:"primaryKey;size:36" json:"id"`
	Name             string                      `gorm:"not null" json:"name"`
	Email            *string                     `json:"email"`
	Phone            string                      `gorm:"not null;index" json:"phone"`
	Message          *string                     `gorm:"type:text" json:"message"`
	PropertyID       *string                     `gorm:"size:36;index" json:"property_id"`
	PropertyTitle    string                      `json:"property_title"`
	LeadSource       string                      `gorm:"not null;index" json:"lead_source"`
	Interest         *string                     `json:"interest"`
	Urgency          *string                     `json:"urgency"`
	PreferredContact *string                     `json:"preferred_contact"`
	Status           string                      `gorm:"not null;default:'new';index" json:"status"`
	AssignedTo       *string                     `json:"assigned_to"`
	Tags             datatypes.JSONSlice[string] `json:"tags"`
	CreatedAt        time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time                   `json:"updated_at"`
}

// TableName specifies the table name for Lead
func (Lead) TableName() string {
	return "leads"
}

// BeforeCreate hook
func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.LeadSource == "" {
		l.LeadSource = LeadSourceWebsite
	}
	if l.PropertyTitle == "" {
		l.PropertyTitle = DefaultPropertyTitle
	}
	if l.Status == "" {
		l.Status = LeadStatusNew
	}
	if l.Tags == nil {
		l.Tags = datatypes.JSONSlice[string]{}
	}
	return nil
}
