package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Property is a marketplace listing
type Property struct {
	ID       string `gorm:"type:varchar(36);primaryKey" json:"id" validate:"required"`
	OwnerID  string `gorm:"type:varchar(36);not null;index" json:"owner_id"`
	Title    string `gorm:"type:varchar(255);not null" json:"title" validate:"required"`
	ImageURL string `gorm:"type:text" json:"image_url,omitempty"`

	Price       int64        `gorm:"not null;index" json:"price" validate:"gte=0"`
	Currency    string       `gorm:"type:varchar(3);not null;default:'CZK'" json:"currency,omitempty"`
	Type        PropertyType `gorm:"type:varchar(10);not null;default:'sale';index" json:"type,omitempty"`
	Disposition string       `gorm:"type:varchar(20);index" json:"disposition,omitempty"`
	Area        *float64     `gorm:"type:decimal(10,2)" json:"area,omitempty"`
	City        string       `gorm:"type:varchar(100);index" json:"city,omitempty"`
	Address     string       `gorm:"type:text" json:"address,omitempty"`

	ViewCount int64 `gorm:"not null;default:0;index" json:"view_count"`

	// Logical deletion
	Status    PropertyStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status,omitempty"`
	RemovedAt *time.Time     `json:"removed_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// PropertyStatus is the listing lifecycle state
type PropertyStatus string

const (
	PropertyStatusActive  PropertyStatus = "active"
	PropertyStatusRemoved PropertyStatus = "removed"
)

// PropertyType distinguishes sale and rental listings
type PropertyType string

const (
	PropertyTypeSale PropertyType = "sale"
	PropertyTypeRent PropertyType = "rent"
)

// TableName specifies the table name
func (Property) TableName() string {
	return "properties"
}

// BeforeCreate assigns an ID and defaults
func (p *Property) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = PropertyStatusActive
	}
	if p.Type == "" {
		p.Type = PropertyTypeSale
	}
	if p.Currency == "" {
		p.Currency = "CZK"
	}
	return nil
}

// IsActive reports whether the listing is visible
func (p *Property) IsActive() bool {
	return p.Status == PropertyStatusActive
}

// MarkAsRemoved removes the listing logically
func (p *Property) MarkAsRemoved() {
	p.Status = PropertyStatusRemoved
	now := time.Now()
	p.RemovedAt = &now
}

// Summary returns the display fields used by list views
func (p *Property) Summary() PropertySummary {
	return PropertySummary{
		PropertyID:  p.ID,
		Title:       p.Title,
		Price:       p.Price,
		Currency:    p.Currency,
		City:        p.City,
		Address:     p.Address,
		ImageURL:    p.ImageURL,
		Type:        p.Type,
		Disposition: p.Disposition,
		Area:        p.Area,
	}
}

// PropertyDetails holds the extended fields shown on the detail page.
// It is stored 1:1 with a Property.
type PropertyDetails struct {
	PropertyID       string   `gorm:"type:varchar(36);primaryKey" json:"property_id" validate:"required"`
	Description      string   `gorm:"type:text" json:"description,omitempty"`
	Rooms            int      `json:"rooms"`
	Bathrooms        int      `json:"bathrooms"`
	Floor            *int     `json:"floor,omitempty"`
	TotalFloors      *int     `json:"total_floors,omitempty"`
	YearBuilt        *int     `json:"year_built,omitempty"`
	KitchenEquipment []string `gorm:"serializer:json" json:"kitchen_equipment,omitempty"`
	Amenities        []string `gorm:"serializer:json" json:"amenities,omitempty"`
	Parking          bool     `json:"parking"`
	Balcony          bool     `json:"balcony"`
}

// TableName specifies the table name
func (PropertyDetails) TableName() string {
	return "property_details"
}

// PropertySummary is the list-view shape of a property
type PropertySummary struct {
	PropertyID  string       `json:"property_id" validate:"required"`
	Title       string       `json:"title" validate:"required"`
	Price       int64        `json:"price"`
	Currency    string       `json:"currency,omitempty"`
	City        string       `json:"city,omitempty"`
	Address     string       `json:"address,omitempty"`
	ImageURL    string       `json:"image_url,omitempty"`
	Type        PropertyType `json:"type,omitempty"`
	Disposition string       `json:"disposition,omitempty"`
	Area        *float64     `json:"area,omitempty"`
}

// SavedPropertySummary is a point-in-time copy of a property saved for
// offline use. It is never refreshed from the remote record.
type SavedPropertySummary struct {
	PropertySummary
	SavedAt time.Time `json:"saved_at"`
}

// ViewedHistoryEntry is one element of the recently viewed list
type ViewedHistoryEntry struct {
	PropertyID string    `json:"property_id" validate:"required"`
	Title      string    `json:"title"`
	Price      int64     `json:"price"`
	ImageURL   string    `json:"image_url,omitempty"`
	ViewedAt   time.Time `json:"viewed_at"`
}

// NewViewedHistoryEntry builds the minimal history entry for a property
func NewViewedHistoryEntry(s PropertySummary, at time.Time) ViewedHistoryEntry {
	return ViewedHistoryEntry{
		PropertyID: s.PropertyID,
		Title:      s.Title,
		Price:      s.Price,
		ImageURL:   s.ImageURL,
		ViewedAt:   at,
	}
}
