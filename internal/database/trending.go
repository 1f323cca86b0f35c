package database

import (
	"context"
	"time"

	"property-marketplace/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReplaceTrending swaps the trending collection for the given properties,
// ranked in order. Readers never see a partially written collection.
func (gdb *GormDB) ReplaceTrending(ctx context.Context, properties []models.Property, computedAt time.Time) error {
	rows := make([]models.TrendingProperty, 0, len(properties))
	for i, p := range properties {
		rows = append(rows, models.TrendingProperty{
			Rank:       i + 1,
			PropertyID: p.ID,
			Title:      p.Title,
			Price:      p.Price,
			City:       p.City,
			ImageURL:   p.ImageURL,
			ViewCount:  p.ViewCount,
			ComputedAt: computedAt,
		})
	}

	return gdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.TrendingProperty{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

// Trending returns the current trending collection by rank
func (gdb *GormDB) Trending(ctx context.Context) ([]models.TrendingProperty, error) {
	rows := []models.TrendingProperty{}
	err := gdb.db.WithContext(ctx).Order(clause.OrderByColumn{Column: clause.Column{Name: "rank"}}).Find(&rows).Error
	return rows, err
}
