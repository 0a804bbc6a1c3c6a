package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Property types
const (
	PropertyTypeApartment  = "apartment"
	PropertyTypeHouse      = "house"
	PropertyTypeCommercial = "commercial"
)

// Property statuses
const (
	PropertyStatusForSale = "for-sale"
	PropertyStatusForRent = "for-rent"
	PropertyStatusSold    = "sold"
)

// Property is a catalog listing
type Property struct {
	ID          string                      `gorm:"primaryKey;size:36" json:"id"`
	Title       string                      `gorm:"not null" json:"title"`
	Description string                      `gorm:"type:text" json:"description"`
	Price       float64                     `gorm:"not null" json:"price"`
	Location    string                      `gorm:"index" json:"location"`
	Bedrooms    int                         `json:"bedrooms"`
	Bathrooms   int                         `json:"bathrooms"`
	Area        float64                     `json:"area"`
	Images      datatypes.JSONSlice[string] `json:"images"`
	Video       *string                     `json:"video"`
	Featured    bool                        `gorm:"default:false;index" json:"featured"`
	Type        string                      `gorm:"not null;index" json:"type"`
	Status      string                      `gorm:"not null;index" json:"status"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

// TableName specifies the table name for Property
func (Property) TableName() string {
	return "properties"
}

// BeforeCreate hook
func (p *Property) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Images == nil {
		p.Images = datatypes.JSONSlice[string]{}
	}
	return nil
}
