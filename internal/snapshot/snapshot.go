// Package snapshot compares offline copies of properties with their current
// remote records. Saved copies are never refreshed, so the comparison is a
// read-only report of how stale they are.
package snapshot

import (
	"fmt"
	"time"

	"property-marketplace/internal/models"
)

// Report describes how one saved property differs from the remote record
type Report struct {
	PropertyID string                  `json:"property_id"`
	Title      string                  `json:"title"`
	SavedAt    time.Time               `json:"saved_at"`
	Changes    []models.PropertyChange `json:"changes"`
}

// Stale reports whether anything changed since the property was saved
func (r Report) Stale() bool {
	return len(r.Changes) > 0
}

// Compare lists the differences between a saved summary and the current
// remote property. A nil current property means it no longer exists.
func Compare(saved models.SavedPropertySummary, current *models.Property) []models.PropertyChange {
	id := saved.PropertyID
	if current == nil {
		return []models.PropertyChange{{
			PropertyID: id,
			ChangeType: models.ChangeTypeRemoved,
			OldValue:   saved.Title,
		}}
	}

	changes := []models.PropertyChange{}

	if current.Price != saved.Price {
		magnitude := float64(current.Price - saved.Price)
		changes = append(changes, models.PropertyChange{
			PropertyID:      id,
			ChangeType:      models.ChangeTypePrice,
			OldValue:        fmt.Sprintf("%d", saved.Price),
			NewValue:        fmt.Sprintf("%d", current.Price),
			ChangeMagnitude: &magnitude,
		})
	}

	if !current.IsActive() {
		changes = append(changes, models.PropertyChange{
			PropertyID: id,
			ChangeType: models.ChangeTypeStatus,
			OldValue:   string(models.PropertyStatusActive),
			NewValue:   string(current.Status),
		})
	}

	if current.Title != saved.Title {
		changes = append(changes, models.PropertyChange{
			PropertyID: id,
			ChangeType: models.ChangeTypeTitle,
			OldValue:   saved.Title,
			NewValue:   current.Title,
		})
	}

	if !float64PtrEqual(current.Area, saved.Area) {
		changes = append(changes, models.PropertyChange{
			PropertyID: id,
			ChangeType: models.ChangeTypeArea,
			OldValue:   formatArea(saved.Area),
			NewValue:   formatArea(current.Area),
		})
	}

	if current.City != saved.City {
		changes = append(changes, models.PropertyChange{
			PropertyID: id,
			ChangeType: models.ChangeTypeCity,
			OldValue:   saved.City,
			NewValue:   current.City,
		})
	}

	if current.ImageURL != saved.ImageURL {
		changes = append(changes, models.PropertyChange{
			PropertyID: id,
			ChangeType: models.ChangeTypeImage,
			OldValue:   saved.ImageURL,
			NewValue:   current.ImageURL,
		})
	}

	return changes
}

// CompareAll builds a report for every saved property. current maps
// property IDs to their remote records; missing IDs count as removed.
func CompareAll(saved []models.SavedPropertySummary, current map[string]*models.Property) []Report {
	reports := make([]Report, 0, len(saved))
	for _, s := range saved {
		reports = append(reports, Report{
			PropertyID: s.PropertyID,
			Title:      s.Title,
			SavedAt:    s.SavedAt,
			Changes:    Compare(s, current[s.PropertyID]),
		})
	}
	return reports
}

func formatArea(a *float64) string {
	if a == nil {
		return "nil"
	}
	return fmt.Sprintf("%.2f", *a)
}

func float64PtrEqual(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}
