package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"property-marketplace/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxFolderTitleLength = 100

func normalizeFolderTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: folder title is required", ErrInvalidInput)
	}
	if len([]rune(title)) > maxFolderTitleLength {
		return "", fmt.Errorf("%w: folder title too long", ErrInvalidInput)
	}
	return title, nil
}

// CreateFolder creates a favorites folder. Titles are unique per user
// ignoring case, so "Oblíbené" and "oblíbené" cannot coexist.
func (gdb *GormDB) CreateFolder(ctx context.Context, userID, title string) (*models.FavoriteFolder, error) {
	title, err := normalizeFolderTitle(title)
	if err != nil {
		return nil, err
	}

	folder := &models.FavoriteFolder{UserID: userID, Title: title}
	err = gdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureFolderTitleFree(tx, userID, title, ""); err != nil {
			return err
		}
		return tx.Create(folder).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrFolderExists
	}
	if err != nil {
		return nil, err
	}
	return folder, nil
}

// RenameFolder changes a folder title under the same uniqueness rule
func (gdb *GormDB) RenameFolder(ctx context.Context, userID, folderID, title string) (*models.FavoriteFolder, error) {
	title, err := normalizeFolderTitle(title)
	if err != nil {
		return nil, err
	}

	var folder models.FavoriteFolder
	err = gdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := takeOwnedFolder(tx, userID, folderID, &folder); err != nil {
			return err
		}
		if err := ensureFolderTitleFree(tx, userID, title, folderID); err != nil {
			return err
		}
		folder.Title = title
		folder.TitleKey = models.FoldKey(title)
		return tx.Model(&folder).Updates(map[string]interface{}{
			"title":     folder.Title,
			"title_key": folder.TitleKey,
		}).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrFolderExists
	}
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

// DeleteFolder removes a folder and its entries
func (gdb *GormDB) DeleteFolder(ctx context.Context, userID, folderID string) error {
	return gdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var folder models.FavoriteFolder
		if err := takeOwnedFolder(tx, userID, folderID, &folder); err != nil {
			return err
		}
		if err := tx.Where("folder_id = ?", folderID).Delete(&models.FavoriteEntry{}).Error; err != nil {
			return err
		}
		return tx.Delete(&folder).Error
	})
}

// ListFolders returns a user's folders ordered by title
func (gdb *GormDB) ListFolders(ctx context.Context, userID string) ([]models.FavoriteFolder, error) {
	folders := []models.FavoriteFolder{}
	err := gdb.db.WithContext(ctx).Where("user_id = ?", userID).Order("title_key ASC").Find(&folders).Error
	return folders, err
}

// AddToFolder places a property in a folder. Adding a property that is
// already in the folder is a no-op and does not change the counter.
func (gdb *GormDB) AddToFolder(ctx context.Context, userID, folderID, propertyID string) error {
	return gdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var folder models.FavoriteFolder
		if err := takeOwnedFolder(tx, userID, folderID, &folder); err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.Property{}).Where("id = ?", propertyID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}

		entry := models.FavoriteEntry{FolderID: folderID, PropertyID: propertyID, UserID: userID}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		return tx.Model(&models.FavoriteFolder{}).Where("id = ?", folderID).
			UpdateColumn("property_count", gorm.Expr("property_count + ?", 1)).Error
	})
}

// RemoveFromFolder takes a property out of a folder
func (gdb *GormDB) RemoveFromFolder(ctx context.Context, userID, folderID, propertyID string) error {
	return gdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var folder models.FavoriteFolder
		if err := takeOwnedFolder(tx, userID, folderID, &folder); err != nil {
			return err
		}
		result := tx.Where("folder_id = ? AND property_id = ?", folderID, propertyID).Delete(&models.FavoriteEntry{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&models.FavoriteFolder{}).Where("id = ? AND property_count > 0", folderID).
			UpdateColumn("property_count", gorm.Expr("property_count - ?", 1)).Error
	})
}

// FolderProperties returns the properties of a folder, most recently added first
func (gdb *GormDB) FolderProperties(ctx context.Context, userID, folderID string) ([]models.Property, error) {
	var folder models.FavoriteFolder
	if err := takeOwnedFolder(gdb.db.WithContext(ctx), userID, folderID, &folder); err != nil {
		return nil, err
	}

	properties := []models.Property{}
	err := gdb.db.WithContext(ctx).
		Joins("JOIN favorite_entries ON favorite_entries.property_id = properties.id").
		Where("favorite_entries.folder_id = ?", folderID).
		Order("favorite_entries.added_at DESC").
		Find(&properties).Error
	return properties, err
}

// FavoritedIn returns the IDs of the user's folders that contain a property
func (gdb *GormDB) FavoritedIn(ctx context.Context, userID, propertyID string) ([]string, error) {
	folderIDs := []string{}
	err := gdb.db.WithContext(ctx).Model(&models.FavoriteEntry{}).
		Where("user_id = ? AND property_id = ?", userID, propertyID).
		Order("folder_id").
		Pluck("folder_id", &folderIDs).Error
	return folderIDs, err
}

func takeOwnedFolder(tx *gorm.DB, userID, folderID string, folder *models.FavoriteFolder) error {
	err := tx.Where("id = ?", folderID).Take(folder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if folder.UserID != userID {
		return ErrForbidden
	}
	return nil
}

func ensureFolderTitleFree(tx *gorm.DB, userID, title, exceptID string) error {
	query := tx.Model(&models.FavoriteFolder{}).Where("user_id = ? AND title_key = ?", userID, models.FoldKey(title))
	if exceptID != "" {
		query = query.Where("id <> ?", exceptID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrFolderExists
	}
	return nil
}
