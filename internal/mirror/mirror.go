// Package mirror keeps a device-local copy of properties the user saved for
// offline viewing, plus the recently viewed history.
//
// Saved summaries live as a JSON list under the "properties" key and their
// details as a JSON object keyed by property ID under "propertyDetails".
// Both keys are always written in one local-store transaction.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"property-marketplace/internal/kvstore"
	"property-marketplace/internal/models"
)

const (
	PropertiesKey      = "properties"
	PropertyDetailsKey = "propertyDetails"
)

// Mirror is the offline property store
type Mirror struct {
	store  *kvstore.Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a mirror on top of a local store
func New(store *kvstore.Store, logger *slog.Logger) *Mirror {
	return &Mirror{
		store:  store,
		logger: logger.With("component", "mirror"),
		now:    time.Now,
	}
}

// ReconcileResult reports what a reconciliation sweep removed
type ReconcileResult struct {
	OrphanDetails   int `json:"orphan_details"`
	OrphanSummaries int `json:"orphan_summaries"`
}

// SaveOffline stores a point-in-time copy of a property and its details.
// Saving a property that is already saved replaces the earlier copy in place.
// Unreadable entries of other properties are left for Reconcile.
func (m *Mirror) SaveOffline(ctx context.Context, summary models.PropertySummary, details models.PropertyDetails) error {
	if details.PropertyID == "" {
		details.PropertyID = summary.PropertyID
	}
	if details.PropertyID != summary.PropertyID {
		return fmt.Errorf("details belong to %q, not %q", details.PropertyID, summary.PropertyID)
	}
	saved := models.SavedPropertySummary{PropertySummary: summary, SavedAt: m.now()}
	if err := models.Validate("saved_property", &saved); err != nil {
		return err
	}
	savedRaw, err := json.Marshal(saved)
	if err != nil {
		return err
	}
	detailsRaw, err := json.Marshal(details)
	if err != nil {
		return err
	}

	err = m.store.Update(ctx, func(tx *kvstore.Txn) error {
		summaries, err := readRawList(tx.Get, PropertiesKey)
		if err != nil {
			return err
		}
		blobs, err := readRawMap(tx.Get, PropertyDetailsKey)
		if err != nil {
			return err
		}

		replaced := false
		for i := range summaries {
			if peekID(summaries[i]) == saved.PropertyID {
				summaries[i] = savedRaw
				replaced = true
				break
			}
		}
		if !replaced {
			summaries = append(summaries, savedRaw)
		}
		blobs[saved.PropertyID] = detailsRaw

		if err := tx.SetJSON(PropertiesKey, summaries); err != nil {
			return err
		}
		return tx.SetJSON(PropertyDetailsKey, blobs)
	})
	if err != nil {
		return fmt.Errorf("save %s offline: %w", summary.PropertyID, err)
	}
	m.logger.Debug("saved property offline", "property_id", saved.PropertyID)
	return nil
}

// RemoveOffline deletes a saved property and its details. Removing a
// property that is not saved is a no-op.
func (m *Mirror) RemoveOffline(ctx context.Context, propertyID string) error {
	err := m.store.Update(ctx, func(tx *kvstore.Txn) error {
		summaries, err := readRawList(tx.Get, PropertiesKey)
		if err != nil {
			return err
		}
		blobs, err := readRawMap(tx.Get, PropertyDetailsKey)
		if err != nil {
			return err
		}

		kept := make([]json.RawMessage, 0, len(summaries))
		for _, s := range summaries {
			if peekID(s) != propertyID {
				kept = append(kept, s)
			}
		}
		delete(blobs, propertyID)

		if err := tx.SetJSON(PropertiesKey, kept); err != nil {
			return err
		}
		return tx.SetJSON(PropertyDetailsKey, blobs)
	})
	if err != nil {
		return fmt.Errorf("remove %s offline: %w", propertyID, err)
	}
	m.logger.Debug("removed offline property", "property_id", propertyID)
	return nil
}

// LoadProperties returns the saved summaries in save order
func (m *Mirror) LoadProperties(ctx context.Context) ([]models.SavedPropertySummary, error) {
	raw, ok, err := m.store.Get(ctx, PropertiesKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []models.SavedPropertySummary{}, nil
	}
	return models.DecodeList[models.SavedPropertySummary]("saved_property", []byte(raw))
}

// LoadDetails returns the saved details of a property. ok is false when the
// property has not been saved. Only the requested entry is validated.
func (m *Mirror) LoadDetails(ctx context.Context, propertyID string) (*models.PropertyDetails, bool, error) {
	blobs, err := readRawMap(func(key string) (string, bool, error) {
		return m.store.Get(ctx, key)
	}, PropertyDetailsKey)
	if err != nil {
		return nil, false, err
	}
	raw, ok := blobs[propertyID]
	if !ok {
		return nil, false, nil
	}
	d, err := decodeDetails(propertyID, raw)
	if err != nil {
		return nil, false, err
	}
	return &d, true, nil
}

// IsSaved reports whether a property is in the saved list
func (m *Mirror) IsSaved(ctx context.Context, propertyID string) (bool, error) {
	summaries, err := readRawList(func(key string) (string, bool, error) {
		return m.store.Get(ctx, key)
	}, PropertiesKey)
	if err != nil {
		return false, err
	}
	for _, s := range summaries {
		if peekID(s) == propertyID {
			return true, nil
		}
	}
	return false, nil
}

// Reconcile removes details without a summary and summaries without
// details. Entries that no longer decode are removed along with them. It is
// run once at startup.
func (m *Mirror) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var result ReconcileResult
	err := m.store.Update(ctx, func(tx *kvstore.Txn) error {
		rawSummaries, err := readRawList(tx.Get, PropertiesKey)
		if err != nil {
			return err
		}
		rawBlobs, err := readRawMap(tx.Get, PropertyDetailsKey)
		if err != nil {
			return err
		}

		blobs := make(map[string]models.PropertyDetails, len(rawBlobs))
		for id, raw := range rawBlobs {
			d, err := decodeDetails(id, raw)
			if err != nil {
				m.logger.Warn("dropping unreadable offline details", "key", id, "error", err)
				result.OrphanDetails++
				continue
			}
			blobs[id] = d
		}

		saved := make(map[string]bool, len(rawSummaries))
		kept := make([]models.SavedPropertySummary, 0, len(rawSummaries))
		for _, raw := range rawSummaries {
			s, err := models.Decode[models.SavedPropertySummary]("saved_property", raw)
			if err != nil {
				m.logger.Warn("dropping unreadable offline summary", "error", err)
				result.OrphanSummaries++
				continue
			}
			if _, ok := blobs[s.PropertyID]; !ok || saved[s.PropertyID] {
				result.OrphanSummaries++
				continue
			}
			saved[s.PropertyID] = true
			kept = append(kept, s)
		}
		for id := range blobs {
			if !saved[id] {
				delete(blobs, id)
				result.OrphanDetails++
			}
		}

		if result.OrphanSummaries == 0 && result.OrphanDetails == 0 {
			return nil
		}
		if err := tx.SetJSON(PropertiesKey, kept); err != nil {
			return err
		}
		return tx.SetJSON(PropertyDetailsKey, blobs)
	})
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("reconcile offline mirror: %w", err)
	}
	if result.OrphanSummaries > 0 || result.OrphanDetails > 0 {
		m.logger.Warn("removed orphaned offline entries",
			"summaries", result.OrphanSummaries,
			"details", result.OrphanDetails)
	}
	return result, nil
}

type getter func(key string) (string, bool, error)

// readRawList splits a stored JSON list into its elements without decoding
// them, so one bad element does not hide the rest.
func readRawList(get getter, key string) ([]json.RawMessage, error) {
	raw, ok, err := get(key)
	if err != nil {
		return nil, err
	}
	list := []json.RawMessage{}
	if !ok {
		return list, nil
	}
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, &models.DecodeError{Kind: key, Err: err}
	}
	if list == nil {
		list = []json.RawMessage{}
	}
	return list, nil
}

func readRawMap(get getter, key string) (map[string]json.RawMessage, error) {
	raw, ok, err := get(key)
	if err != nil {
		return nil, err
	}
	blobs := map[string]json.RawMessage{}
	if !ok {
		return blobs, nil
	}
	if err := json.Unmarshal([]byte(raw), &blobs); err != nil {
		return nil, &models.DecodeError{Kind: key, Err: err}
	}
	if blobs == nil {
		blobs = map[string]json.RawMessage{}
	}
	return blobs, nil
}

// peekID returns the property_id of a stored element, or "" when the
// element is not an object.
func peekID(raw json.RawMessage) string {
	var head struct {
		PropertyID string `json:"property_id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return ""
	}
	return head.PropertyID
}

func decodeDetails(id string, raw json.RawMessage) (models.PropertyDetails, error) {
	d, err := models.Decode[models.PropertyDetails]("property_details", raw)
	if err != nil {
		return d, err
	}
	if d.PropertyID != id {
		return d, &models.DecodeError{Kind: "property_details", Fields: []string{"property_id"},
			Err: fmt.Errorf("stored under %q", id)}
	}
	return d, nil
}
