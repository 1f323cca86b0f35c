package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"property-marketplace/internal/models"

	"gorm.io/gorm"
)

// PropertyFilters are the list query parameters
type PropertyFilters struct {
	City         string
	Type         string
	Dispositions []string
	OwnerID      string
	MinPrice     *int64
	MaxPrice     *int64
	MinArea      *float64
	MaxArea      *float64
	ExcludeIDs   []string
	SortBy       string
	Limit        int
	Offset       int
}

// PropertyPage is one page of list results
type PropertyPage struct {
	Properties []models.Property `json:"properties"`
	Total      int64             `json:"total"`
	Limit      int               `json:"limit"`
	Offset     int               `json:"offset"`
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// CreateProperty stores a new listing with its details and images
func (gdb *GormDB) CreateProperty(ctx context.Context, p *models.Property, details *models.PropertyDetails, imageURLs []string) error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if p.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	if p.ImageURL == "" && len(imageURLs) > 0 {
		p.ImageURL = imageURLs[0]
	}

	return gdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}

		if details != nil {
			details.PropertyID = p.ID
			if err := tx.Create(details).Error; err != nil {
				return err
			}
		}

		if len(imageURLs) > 0 {
			images := make([]models.PropertyImage, 0, len(imageURLs))
			for i, u := range imageURLs {
				images = append(images, models.PropertyImage{PropertyID: p.ID, ImageURL: u, SortOrder: i})
			}
			if err := tx.Create(&images).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetPropertyByID retrieves a property by ID
func (gdb *GormDB) GetPropertyByID(ctx context.Context, id string) (*models.Property, error) {
	var property models.Property
	err := gdb.db.WithContext(ctx).Where("id = ?", id).Take(&property).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &property, nil
}

// GetPropertyDetails retrieves the detail record of a property
func (gdb *GormDB) GetPropertyDetails(ctx context.Context, id string) (*models.PropertyDetails, error) {
	var details models.PropertyDetails
	err := gdb.db.WithContext(ctx).Where("property_id = ?", id).Take(&details).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &details, nil
}

// GetPropertyImages retrieves images ordered for display
func (gdb *GormDB) GetPropertyImages(ctx context.Context, id string) ([]models.PropertyImage, error) {
	var images []models.PropertyImage
	err := gdb.db.WithContext(ctx).Where("property_id = ?", id).Order("sort_order ASC").Find(&images).Error
	return images, err
}

// ListProperties returns active properties matching the filters
func (gdb *GormDB) ListProperties(ctx context.Context, f PropertyFilters) (*PropertyPage, error) {
	if f.Limit <= 0 {
		f.Limit = defaultPageLimit
	}
	if f.Limit > maxPageLimit {
		f.Limit = maxPageLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	query := gdb.db.WithContext(ctx).Model(&models.Property{}).Where("status = ?", models.PropertyStatusActive)
	if f.City != "" {
		query = query.Where("city = ?", f.City)
	}
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	if len(f.Dispositions) > 0 {
		query = query.Where("disposition IN ?", f.Dispositions)
	}
	if f.OwnerID != "" {
		query = query.Where("owner_id = ?", f.OwnerID)
	}
	if f.MinPrice != nil {
		query = query.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		query = query.Where("price <= ?", *f.MaxPrice)
	}
	if f.MinArea != nil {
		query = query.Where("area >= ?", *f.MinArea)
	}
	if f.MaxArea != nil {
		query = query.Where("area <= ?", *f.MaxArea)
	}
	if len(f.ExcludeIDs) > 0 {
		query = query.Where("id NOT IN ?", f.ExcludeIDs)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	properties := []models.Property{}
	err := query.Order(orderClause(f.SortBy)).Limit(f.Limit).Offset(f.Offset).Find(&properties).Error
	if err != nil {
		return nil, err
	}

	return &PropertyPage{Properties: properties, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// orderClause maps a sort parameter to ORDER BY. Unknown values fall back
// to newest first. The id tiebreaker keeps pages stable.
func orderClause(sortBy string) string {
	switch sortBy {
	case "created_at_asc":
		return "created_at ASC, id ASC"
	case "price_asc":
		return "price ASC, id ASC"
	case "price_desc":
		return "price DESC, id ASC"
	case "area_desc":
		return "CASE WHEN area IS NULL THEN 1 ELSE 0 END, area DESC, id ASC"
	case "views_desc":
		return "view_count DESC, id ASC"
	default:
		return "created_at DESC, id ASC"
	}
}

// IncrementViews bumps the view counter atomically
func (gdb *GormDB) IncrementViews(ctx context.Context, id string) error {
	result := gdb.db.WithContext(ctx).Model(&models.Property{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPropertyAsRemoved marks a property as removed (logical deletion)
func (gdb *GormDB) MarkPropertyAsRemoved(ctx context.Context, id, ownerID string) error {
	var property models.Property
	if err := gdb.db.WithContext(ctx).Where("id = ?", id).Take(&property).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if ownerID != "" && property.OwnerID != ownerID {
		return ErrForbidden
	}

	property.MarkAsRemoved()
	return gdb.db.WithContext(ctx).Model(&models.Property{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     property.Status,
			"removed_at": property.RemovedAt,
		}).Error
}

// GetActiveProperties retrieves all active properties
func (gdb *GormDB) GetActiveProperties(ctx context.Context) ([]models.Property, error) {
	var properties []models.Property
	err := gdb.db.WithContext(ctx).Where("status = ?", models.PropertyStatusActive).Order("created_at DESC").Find(&properties).Error
	return properties, err
}

// TopPropertiesByViews returns the n most viewed active properties
func (gdb *GormDB) TopPropertiesByViews(ctx context.Context, n int) ([]models.Property, error) {
	var properties []models.Property
	err := gdb.db.WithContext(ctx).
		Where("status = ?", models.PropertyStatusActive).
		Order("view_count DESC, created_at DESC").
		Limit(n).
		Find(&properties).Error
	return properties, err
}

// FindExpiredProperties returns properties removed before the cutoff
func (gdb *GormDB) FindExpiredProperties(ctx context.Context, retentionDays int) ([]models.Property, error) {
	var properties []models.Property
	cutoff := gdb.db.NowFunc().AddDate(0, 0, -retentionDays)
	err := gdb.db.WithContext(ctx).
		Where("status = ? AND removed_at < ?", models.PropertyStatusRemoved, cutoff).
		Find(&properties).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find expired properties: %w", err)
	}
	return properties, nil
}
