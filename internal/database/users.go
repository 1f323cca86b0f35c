package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"property-marketplace/internal/models"

	"gorm.io/gorm"
)

// CreateUser registers a user. Usernames are unique ignoring case.
func (gdb *GormDB) CreateUser(ctx context.Context, user *models.User) error {
	user.Username = strings.TrimSpace(user.Username)
	if user.Username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	}

	available, err := gdb.UsernameAvailable(ctx, user.Username)
	if err != nil {
		return err
	}
	if !available {
		return ErrUsernameTaken
	}

	err = gdb.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUsernameTaken
	}
	return err
}

// GetUser retrieves a user by ID
func (gdb *GormDB) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := gdb.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UsernameAvailable reports whether no user holds the name in any casing
func (gdb *GormDB) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	var count int64
	err := gdb.db.WithContext(ctx).Model(&models.User{}).
		Where("username_key = ?", models.FoldKey(username)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// UpdatePushToken stores the device token used by the notification worker
func (gdb *GormDB) UpdatePushToken(ctx context.Context, userID, token string) error {
	result := gdb.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("push_token", strings.TrimSpace(token))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// MySQL reports zero rows when the value is unchanged
		if _, err := gdb.GetUser(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}
