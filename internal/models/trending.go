package models

import "time"

// TrendingProperty is one row of the daily trending collection.
// The whole collection is replaced by the scheduler.
type TrendingProperty struct {
	Rank       int       `gorm:"primaryKey;autoIncrement:false" json:"rank"`
	PropertyID string    `gorm:"type:varchar(36);not null;index" json:"property_id"`
	Title      string    `gorm:"type:varchar(255);not null" json:"title"`
	Price      int64     `gorm:"not null" json:"price"`
	City       string    `gorm:"type:varchar(100)" json:"city,omitempty"`
	ImageURL   string    `gorm:"type:text" json:"image_url,omitempty"`
	ViewCount  int64     `gorm:"not null" json:"view_count"`
	ComputedAt time.Time `gorm:"not null" json:"computed_at"`
}

// TableName specifies the table name
func (TrendingProperty) TableName() string {
	return "trending_properties"
}
