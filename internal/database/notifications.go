package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"property-marketplace/internal/models"
)

// EnqueueNotification stores a notification for in-app display and push
func (gdb *GormDB) EnqueueNotification(ctx context.Context, n *models.Notification) error {
	if n.UserID == "" || strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("%w: notification needs a user and a title", ErrInvalidInput)
	}
	return gdb.db.WithContext(ctx).Create(n).Error
}

// ListNotifications returns a user's notifications, newest first
func (gdb *GormDB) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > maxPageLimit {
		limit = maxPageLimit
	}
	query := gdb.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where(map[string]interface{}{"read": false})
	}
	notifications := []models.Notification{}
	err := query.Order("created_at DESC").Limit(limit).Find(&notifications).Error
	return notifications, err
}

// MarkNotificationRead flags a notification as read by its recipient
func (gdb *GormDB) MarkNotificationRead(ctx context.Context, userID, id string) error {
	result := gdb.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		UpdateColumn("read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := gdb.db.WithContext(ctx).Model(&models.Notification{}).
			Where("id = ? AND user_id = ?", id, userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
	}
	return nil
}

// GetPendingNotifications returns notifications due for push delivery
func (gdb *GormDB) GetPendingNotifications(ctx context.Context, limit int) ([]models.Notification, error) {
	var items []models.Notification
	now := gdb.db.NowFunc()
	err := gdb.db.WithContext(ctx).
		Where("status = ? OR (status = ? AND next_retry_at <= ?)",
			models.NotificationStatusPending, models.NotificationStatusFailed, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// MarkNotificationSent marks a notification as delivered
func (gdb *GormDB) MarkNotificationSent(ctx context.Context, id string) error {
	now := gdb.db.NowFunc()
	return gdb.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.NotificationStatusSent,
			"sent_at":       &now,
			"last_error":    "",
			"next_retry_at": nil,
		}).Error
}

// MarkNotificationFailed records a failed delivery and schedules a retry.
// Once MaxRetryAttempts is reached the notification is failed permanently.
func (gdb *GormDB) MarkNotificationFailed(ctx context.Context, n *models.Notification, deliveryErr error) error {
	attempts := n.Attempts + 1
	updates := map[string]interface{}{
		"attempts":   attempts,
		"last_error": deliveryErr.Error(),
	}
	if attempts >= models.MaxRetryAttempts {
		updates["status"] = models.NotificationStatusPermanentFail
		updates["next_retry_at"] = nil
	} else {
		next := gdb.db.NowFunc().Add(models.GetNextRetryDelay(attempts - 1))
		updates["status"] = models.NotificationStatusFailed
		updates["next_retry_at"] = &next
	}
	return gdb.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", n.ID).Updates(updates).Error
}

// MarkNotificationUndeliverable fails a notification without retrying,
// e.g. when the recipient has no push token
func (gdb *GormDB) MarkNotificationUndeliverable(ctx context.Context, id, reason string) error {
	return gdb.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.NotificationStatusPermanentFail,
			"last_error":    reason,
			"next_retry_at": nil,
		}).Error
}

// PurgeDeliveredNotifications deletes read and delivered notifications
// older than the cutoff
func (gdb *GormDB) PurgeDeliveredNotifications(ctx context.Context, olderThan time.Time) (int64, error) {
	result := gdb.db.WithContext(ctx).
		Where(map[string]interface{}{"read": true}).
		Where("created_at < ? AND status IN ?", olderThan,
			[]string{models.NotificationStatusSent, models.NotificationStatusPermanentFail}).
		Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}
