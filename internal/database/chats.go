package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"property-marketplace/internal/models"

	"gorm.io/gorm"
)

const notificationPreviewLength = 120

// OpenChat returns the buyer's chat about a property, creating it on first use
func (gdb *GormDB) OpenChat(ctx context.Context, propertyID, buyerID string) (*models.Chat, error) {
	var chat models.Chat
	err := gdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var property models.Property
		if err := tx.Where("id = ?", propertyID).Take(&property).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if property.OwnerID == buyerID {
			return fmt.Errorf("%w: cannot open a chat on your own listing", ErrInvalidInput)
		}

		err := tx.Where("property_id = ? AND buyer_id = ?", propertyID, buyerID).Take(&chat).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		chat = models.Chat{PropertyID: propertyID, BuyerID: buyerID, SellerID: property.OwnerID}
		return tx.Create(&chat).Error
	})
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// SendMessage appends a message to a chat and queues a notification for
// the other participant in the same transaction
func (gdb *GormDB) SendMessage(ctx context.Context, chatID, senderID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message text is required", ErrInvalidInput)
	}

	msg := &models.Message{ChatID: chatID, SenderID: senderID, Text: text}
	err := gdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chat models.Chat
		if err := takeChat(tx, chatID, senderID, &chat); err != nil {
			return err
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		if err := tx.Model(&chat).Updates(map[string]interface{}{
			"last_message":    msg.Text,
			"last_message_at": msg.CreatedAt,
		}).Error; err != nil {
			return err
		}

		notification := &models.Notification{
			UserID:     chat.Counterpart(senderID),
			Kind:       models.NotificationKindMessage,
			Title:      "New message",
			Body:       preview(msg.Text),
			PropertyID: chat.PropertyID,
			ChatID:     chat.ID,
		}
		return tx.Create(notification).Error
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ChatsForUser lists chats the user takes part in, most recent activity first
func (gdb *GormDB) ChatsForUser(ctx context.Context, userID string) ([]models.Chat, error) {
	chats := []models.Chat{}
	err := gdb.db.WithContext(ctx).
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Order("CASE WHEN last_message_at IS NULL THEN 1 ELSE 0 END, last_message_at DESC, created_at DESC").
		Find(&chats).Error
	return chats, err
}

// Messages returns a chat's messages in chronological order
func (gdb *GormDB) Messages(ctx context.Context, chatID, userID string) ([]models.Message, error) {
	var chat models.Chat
	if err := takeChat(gdb.db.WithContext(ctx), chatID, userID, &chat); err != nil {
		return nil, err
	}
	messages := []models.Message{}
	err := gdb.db.WithContext(ctx).Where("chat_id = ?", chatID).Order("created_at ASC, id ASC").Find(&messages).Error
	return messages, err
}

func takeChat(tx *gorm.DB, chatID, userID string, chat *models.Chat) error {
	err := tx.Where("id = ?", chatID).Take(chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !chat.HasParticipant(userID) {
		return ErrForbidden
	}
	return nil
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= notificationPreviewLength {
		return text
	}
	return string(r[:notificationPreviewLength]) + "…"
}
