package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FavoriteFolder groups a user's favorited properties.
// TitleKey is unique per user, so titles differing only by case collide.
type FavoriteFolder struct {
	ID            string    `gorm:"type:varchar(36);primaryKey" json:"id" validate:"required"`
	UserID        string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_folder_user_title" json:"user_id" validate:"required"`
	Title         string    `gorm:"type:varchar(100);not null" json:"title" validate:"required"`
	TitleKey      string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_folder_user_title" json:"-"`
	PropertyCount int64     `gorm:"not null;default:0" json:"property_count"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name
func (FavoriteFolder) TableName() string {
	return "favorite_folders"
}

// BeforeCreate assigns an ID and the folded title
func (f *FavoriteFolder) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.TitleKey = FoldKey(f.Title)
	return nil
}

// FavoriteEntry is a property placed in a folder
type FavoriteEntry struct {
	FolderID   string    `gorm:"type:varchar(36);primaryKey" json:"folder_id"`
	PropertyID string    `gorm:"type:varchar(36);primaryKey;index" json:"property_id"`
	UserID     string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	AddedAt    time.Time `gorm:"autoCreateTime" json:"added_at"`
}

// TableName specifies the table name
func (FavoriteEntry) TableName() string {
	return "favorite_entries"
}
