package models

import "time"

// DeleteLog represents a record of physically deleted properties
type DeleteLog struct {
	ID         uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	PropertyID string     `gorm:"type:varchar(36);not null;index" json:"property_id"`
	OwnerID    string     `gorm:"type:varchar(36);index" json:"owner_id"`
	Title      string     `gorm:"type:text" json:"title"`
	RemovedAt  *time.Time `json:"removed_at,omitempty"`
	DeletedAt  time.Time  `gorm:"not null;autoCreateTime;index" json:"deleted_at"`
	Reason     string     `gorm:"type:varchar(50);not null" json:"reason"`
	// Folders whose counters were decremented by the cascade
	FoldersTouched int `gorm:"not null;default:0" json:"folders_touched"`
}

// TableName specifies the table name
func (DeleteLog) TableName() string {
	return "delete_logs"
}

// DeleteReason constants
const (
	DeleteReasonExpired = "expired_retention"
	DeleteReasonOwner   = "owner_request"
	DeleteReasonManual  = "manual_deletion"
)
