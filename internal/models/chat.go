package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Chat is a conversation between a buyer and the seller of a property
type Chat struct {
	ID            string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	PropertyID    string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_chat_property_buyer" json:"property_id"`
	BuyerID       string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_chat_property_buyer;index" json:"buyer_id"`
	SellerID      string     `gorm:"type:varchar(36);not null;index" json:"seller_id"`
	LastMessage   string     `gorm:"type:text" json:"last_message,omitempty"`
	LastMessageAt *time.Time `gorm:"index" json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name
func (Chat) TableName() string {
	return "chats"
}

// BeforeCreate assigns an ID
func (c *Chat) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Counterpart returns the other participant of the chat
func (c *Chat) Counterpart(userID string) string {
	if userID == c.BuyerID {
		return c.SellerID
	}
	return c.BuyerID
}

// HasParticipant reports whether userID takes part in the chat
func (c *Chat) HasParticipant(userID string) bool {
	return userID == c.BuyerID || userID == c.SellerID
}

// Message is a single chat message
type Message struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ChatID    string    `gorm:"type:varchar(36);not null;index:idx_message_chat_created" json:"chat_id"`
	SenderID  string    `gorm:"type:varchar(36);not null" json:"sender_id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_message_chat_created" json:"created_at"`
}

// TableName specifies the table name
func (Message) TableName() string {
	return "messages"
}

// BeforeCreate assigns an ID
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
