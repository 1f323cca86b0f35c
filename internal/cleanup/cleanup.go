package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"property-marketplace/internal/database"
	"property-marketplace/internal/models"

	"gorm.io/gorm"
)

// Deindexer removes deleted properties from the search index
type Deindexer interface {
	DeleteProperty(id string) error
}

// Service handles physical deletion of properties and everything that
// references them
type Service struct {
	gdb    *database.GormDB
	index  Deindexer
	logger *slog.Logger
}

// NewService creates a new cleanup service. index may be nil.
func NewService(gdb *database.GormDB, index Deindexer, logger *slog.Logger) *Service {
	return &Service{gdb: gdb, index: index, logger: logger.With("component", "cleanup")}
}

// CleanupConfig holds configuration for cleanup operations
type CleanupConfig struct {
	RetentionDays    int  // Days to keep removed properties before physical deletion
	MaxDeletionCount int  // Maximum number of properties to delete in one run
	DryRun           bool // Only report what would be deleted
}

// DefaultCleanupConfig returns default configuration
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		RetentionDays:    90,
		MaxDeletionCount: 10000,
	}
}

// CleanupResult holds the result of a cleanup operation
type CleanupResult struct {
	TargetCount       int       `json:"target_count"`
	DeletedCount      int       `json:"deleted_count"`
	ErrorCount        int       `json:"error_count"`
	DryRun            bool      `json:"dry_run"`
	ExecutedAt        time.Time `json:"executed_at"`
	DeletedProperties []string  `json:"deleted_properties"`
	Errors            []string  `json:"errors,omitempty"`
}

// DeleteProperty physically deletes a property. In one transaction it
// writes a delete log, decrements the counter of every folder holding the
// property and removes its favorite entries, details, images and trending
// row. The search document is removed after commit.
func (s *Service) DeleteProperty(ctx context.Context, propertyID, reason string) (*models.DeleteLog, error) {
	var deleteLog models.DeleteLog

	err := s.gdb.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prop models.Property
		if err := tx.Where("id = ?", propertyID).Take(&prop).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return database.ErrNotFound
			}
			return err
		}

		var folderIDs []string
		if err := tx.Model(&models.FavoriteEntry{}).Where("property_id = ?", propertyID).
			Pluck("folder_id", &folderIDs).Error; err != nil {
			return err
		}
		if len(folderIDs) > 0 {
			if err := tx.Model(&models.FavoriteFolder{}).
				Where("id IN ? AND property_count > 0", folderIDs).
				UpdateColumn("property_count", gorm.Expr("property_count - ?", 1)).Error; err != nil {
				return err
			}
		}

		cascade := []interface{}{
			&models.FavoriteEntry{},
			&models.PropertyDetails{},
			&models.PropertyImage{},
			&models.TrendingProperty{},
		}
		for _, model := range cascade {
			if err := tx.Where("property_id = ?", propertyID).Delete(model).Error; err != nil {
				return err
			}
		}
		if err := tx.Delete(&prop).Error; err != nil {
			return err
		}

		deleteLog = models.DeleteLog{
			PropertyID:     prop.ID,
			OwnerID:        prop.OwnerID,
			Title:          prop.Title,
			RemovedAt:      prop.RemovedAt,
			Reason:         reason,
			FoldersTouched: len(folderIDs),
		}
		return tx.Create(&deleteLog).Error
	})
	if err != nil {
		return nil, err
	}

	if s.index != nil {
		if err := s.index.DeleteProperty(propertyID); err != nil {
			s.logger.Warn("failed to remove property from search index", "property_id", propertyID, "err", err)
		}
	}

	s.logger.Info("physically deleted property",
		"property_id", propertyID,
		"reason", reason,
		"folders", deleteLog.FoldersTouched)
	return &deleteLog, nil
}

// PhysicallyDelete deletes properties removed longer than the retention
// period ago
func (s *Service) PhysicallyDelete(ctx context.Context, config CleanupConfig) (*CleanupResult, error) {
	result := &CleanupResult{
		DryRun:            config.DryRun,
		ExecutedAt:        time.Now(),
		DeletedProperties: []string{},
	}

	expiredProperties, err := s.gdb.FindExpiredProperties(ctx, config.RetentionDays)
	if err != nil {
		return nil, err
	}
	result.TargetCount = len(expiredProperties)

	if result.TargetCount == 0 {
		s.logger.Info("no expired properties found for deletion")
		return result, nil
	}

	// Safety check: abort if too many properties would be deleted
	if config.MaxDeletionCount > 0 && result.TargetCount > config.MaxDeletionCount {
		return nil, fmt.Errorf("safety check failed: %d properties exceed max deletion limit of %d",
			result.TargetCount, config.MaxDeletionCount)
	}

	s.logger.Info("starting cleanup",
		"targets", result.TargetCount,
		"retention_days", config.RetentionDays,
		"dry_run", config.DryRun)

	for _, prop := range expiredProperties {
		if config.DryRun {
			s.logger.Info("dry run: would delete property", "property_id", prop.ID, "title", prop.Title)
			result.DeletedProperties = append(result.DeletedProperties, prop.ID)
			result.DeletedCount++
			continue
		}

		if _, err := s.DeleteProperty(ctx, prop.ID, models.DeleteReasonExpired); err != nil {
			errMsg := fmt.Sprintf("failed to delete property %s: %v", prop.ID, err)
			s.logger.Error("cleanup failed for property", "property_id", prop.ID, "err", err)
			result.Errors = append(result.Errors, errMsg)
			result.ErrorCount++
			continue
		}
		result.DeletedProperties = append(result.DeletedProperties, prop.ID)
		result.DeletedCount++
	}

	s.logger.Info("cleanup completed",
		"deleted", result.DeletedCount,
		"targets", result.TargetCount,
		"errors", result.ErrorCount,
		"dry_run", config.DryRun)
	return result, nil
}

// DeleteStats summarises deletions
type DeleteStats struct {
	TotalDeleted       int64            `json:"total_deleted"`
	ByReason           map[string]int64 `json:"by_reason"`
	DeletedLast30Days  int64            `json:"deleted_last_30_days"`
	CurrentlyRemoved   int64            `json:"currently_removed"`
	ExpiredForDeletion int              `json:"expired_ready_for_deletion"`
}

// GetDeleteStats returns statistics about deleted properties
func (s *Service) GetDeleteStats(ctx context.Context, retentionDays int) (*DeleteStats, error) {
	db := s.gdb.DB().WithContext(ctx)
	stats := &DeleteStats{ByReason: map[string]int64{}}

	if err := db.Model(&models.DeleteLog{}).Count(&stats.TotalDeleted).Error; err != nil {
		return nil, err
	}

	var reasonCounts []struct {
		Reason string
		Count  int64
	}
	if err := db.Model(&models.DeleteLog{}).
		Select("reason, count(*) as count").
		Group("reason").
		Scan(&reasonCounts).Error; err != nil {
		return nil, err
	}
	for _, rc := range reasonCounts {
		stats.ByReason[rc.Reason] = rc.Count
	}

	thirtyDaysAgo := time.Now().AddDate(0, 0, -30)
	if err := db.Model(&models.DeleteLog{}).
		Where("deleted_at >= ?", thirtyDaysAgo).
		Count(&stats.DeletedLast30Days).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.Property{}).
		Where("status = ?", models.PropertyStatusRemoved).
		Count(&stats.CurrentlyRemoved).Error; err != nil {
		return nil, err
	}

	expired, err := s.gdb.FindExpiredProperties(ctx, retentionDays)
	if err != nil {
		return nil, err
	}
	stats.ExpiredForDeletion = len(expired)

	return stats, nil
}

// GetRecentDeleteLogs returns recent delete log entries
func (s *Service) GetRecentDeleteLogs(ctx context.Context, limit int) ([]models.DeleteLog, error) {
	logs := []models.DeleteLog{}
	err := s.gdb.DB().WithContext(ctx).Order("deleted_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
