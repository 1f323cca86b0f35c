package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"property-marketplace/internal/kvstore"
	"property-marketplace/internal/models"
)

const (
	ViewedHistoryKey = "viewedHistory"
	// HistoryLimit is the number of recently viewed properties kept
	HistoryLimit = 10
)

// History tracks recently viewed properties, most recent first
type History struct {
	store  *kvstore.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewHistory creates a history tracker on top of a local store
func NewHistory(store *kvstore.Store, logger *slog.Logger) *History {
	return &History{
		store:  store,
		logger: logger.With("component", "history"),
		now:    time.Now,
	}
}

// RecordView moves the property to the front of the history, dropping any
// earlier entry for it and trimming the list to HistoryLimit. Entries that
// no longer decode are dropped.
func (h *History) RecordView(ctx context.Context, summary models.PropertySummary) error {
	entry := models.NewViewedHistoryEntry(summary, h.now())
	if err := models.Validate("viewed_history", &entry); err != nil {
		return err
	}

	err := h.store.Update(ctx, func(tx *kvstore.Txn) error {
		entries, err := readRawList(tx.Get, ViewedHistoryKey)
		if err != nil {
			return err
		}

		next := make([]models.ViewedHistoryEntry, 0, HistoryLimit)
		next = append(next, entry)
		for _, raw := range entries {
			if len(next) == HistoryLimit {
				break
			}
			e, err := models.Decode[models.ViewedHistoryEntry]("viewed_history", raw)
			if err != nil {
				h.logger.Warn("dropping unreadable history entry", "error", err)
				continue
			}
			if e.PropertyID != entry.PropertyID {
				next = append(next, e)
			}
		}
		return tx.SetJSON(ViewedHistoryKey, next)
	})
	if err != nil {
		return fmt.Errorf("record view of %s: %w", summary.PropertyID, err)
	}
	return nil
}

// Entries returns the history, most recent first
func (h *History) Entries(ctx context.Context) ([]models.ViewedHistoryEntry, error) {
	return readHistory(func(key string) (string, bool, error) {
		return h.store.Get(ctx, key)
	})
}

// Clear empties the history
func (h *History) Clear(ctx context.Context) error {
	return h.store.Remove(ctx, ViewedHistoryKey)
}

func readHistory(get getter) ([]models.ViewedHistoryEntry, error) {
	raw, ok, err := get(ViewedHistoryKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []models.ViewedHistoryEntry{}, nil
	}
	return models.DecodeList[models.ViewedHistoryEntry]("viewed_history", []byte(raw))
}
