package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"gorm.io/gorm"
)

// User is a marketplace account
type User struct {
	ID          string `gorm:"type:varchar(36);primaryKey" json:"id" validate:"required"`
	Username    string `gorm:"type:varchar(50);not null" json:"username" validate:"required"`
	UsernameKey string `gorm:"type:varchar(50);not null;uniqueIndex" json:"-"`
	DisplayName string `gorm:"type:varchar(100)" json:"display_name,omitempty"`
	Email       string `gorm:"type:varchar(255)" json:"email,omitempty"`
	PushToken   string `gorm:"type:varchar(255)" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns an ID and the folded username
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.UsernameKey = FoldKey(u.Username)
	return nil
}

// FoldKey normalises a user-visible name for case-insensitive comparison.
// "Oblíbené" and "oblíbené" fold to the same key.
func FoldKey(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
