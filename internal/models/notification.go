package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification is a per-user message shown in the app and pushed to the
// user's device by the dispatch worker.
type Notification struct {
	ID          string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID      string     `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Kind        string     `gorm:"type:varchar(30);not null" json:"kind"`
	Title       string     `gorm:"type:varchar(255);not null" json:"title"`
	Body        string     `gorm:"type:text" json:"body"`
	PropertyID  string     `gorm:"type:varchar(36)" json:"property_id,omitempty"`
	ChatID      string     `gorm:"type:varchar(36)" json:"chat_id,omitempty"`
	Read        bool       `gorm:"not null;default:false" json:"read"`
	Status      string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_notification_status" json:"status"`
	Attempts    int        `gorm:"default:0" json:"attempts"`
	LastError   string     `gorm:"type:text" json:"last_error,omitempty"`
	NextRetryAt *time.Time `gorm:"index:idx_notification_retry" json:"next_retry_at,omitempty"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Notification) TableName() string {
	return "notifications"
}

// BeforeCreate assigns an ID and the initial dispatch status
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Status == "" {
		n.Status = NotificationStatusPending
	}
	return nil
}

// Dispatch status constants
const (
	NotificationStatusPending       = "pending"
	NotificationStatusSent          = "sent"
	NotificationStatusFailed        = "failed"
	NotificationStatusPermanentFail = "permanent_fail" // no push token or retries exhausted
)

// Notification kinds
const (
	NotificationKindMessage = "message"
	NotificationKindSystem  = "system"
)

// MaxRetryAttempts before marking as permanently failed
const MaxRetryAttempts = 5

// GetNextRetryDelay calculates exponential backoff for retries
func GetNextRetryDelay(attempts int) time.Duration {
	// 1min, 5min, 15min, 1h, 4h
	delays := []time.Duration{
		1 * time.Minute,
		5 * time.Minute,
		15 * time.Minute,
		1 * time.Hour,
		4 * time.Hour,
	}

	if attempts >= len(delays) {
		return delays[len(delays)-1]
	}
	if attempts < 0 {
		return delays[0]
	}
	return delays[attempts]
}
