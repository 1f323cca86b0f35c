// Package catalog is the client-side browsing layer. It reads from the
// marketplace API while connected and from the offline mirror otherwise.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"property-marketplace/internal/mirror"
	"property-marketplace/internal/models"
	"property-marketplace/internal/snapshot"
)

var (
	// ErrNotFound is returned by a RemoteSource for unknown properties
	ErrNotFound = errors.New("property not found")
	// ErrNotAvailableOffline is returned when an unsaved property is opened
	// while disconnected
	ErrNotAvailableOffline = errors.New("property is not available offline")
	// ErrOffline is returned by operations that need the remote source
	ErrOffline = errors.New("not connected")
)

// Source tells where a listing came from
type Source string

const (
	SourceRemote  Source = "remote"
	SourceOffline Source = "offline"
)

// Query filters the remote property list
type Query struct {
	City     string
	Type     string
	MinPrice *int64
	MaxPrice *int64
	SortBy   string
	Limit    int
	Offset   int
}

// RemoteSource is the marketplace API as seen by the client
type RemoteSource interface {
	ListProperties(ctx context.Context, q Query) ([]models.Property, error)
	GetProperty(ctx context.Context, id string) (*models.Property, error)
	GetPropertyDetails(ctx context.Context, id string) (*models.PropertyDetails, error)
	RecordView(ctx context.Context, id string) error
}

// Connectivity reports and publishes the connected state
type Connectivity interface {
	Connected() bool
	Subscribe() (<-chan bool, func())
}

// Item is one row of a listing
type Item struct {
	models.PropertySummary
	// SavedAt is set for items read from the offline mirror
	SavedAt *time.Time `json:"saved_at,omitempty"`
}

// Listing is what the property list page renders
type Listing struct {
	Source Source `json:"source"`
	Items  []Item `json:"items"`
	// Failed is set when the remote query failed. The listing is then empty;
	// it is not filled from the mirror.
	Failed bool `json:"failed,omitempty"`
}

// PropertyView is what the property detail page renders
type PropertyView struct {
	Source  Source                  `json:"source"`
	Summary models.PropertySummary  `json:"summary"`
	Details *models.PropertyDetails `json:"details,omitempty"`
	SavedAt *time.Time              `json:"saved_at,omitempty"`
}

// Browser branches every read on the connected state
type Browser struct {
	remote  RemoteSource
	conn    Connectivity
	mirror  *mirror.Mirror
	history *mirror.History
	logger  *slog.Logger
}

// NewBrowser creates a browser
func NewBrowser(remote RemoteSource, conn Connectivity, m *mirror.Mirror, h *mirror.History, logger *slog.Logger) *Browser {
	return &Browser{
		remote:  remote,
		conn:    conn,
		mirror:  m,
		history: h,
		logger:  logger.With("component", "catalog"),
	}
}

// Load returns the remote list while connected and the saved properties
// otherwise. A remote failure yields an empty listing marked Failed.
func (b *Browser) Load(ctx context.Context, q Query) Listing {
	if !b.conn.Connected() {
		return b.loadOffline(ctx)
	}

	properties, err := b.remote.ListProperties(ctx, q)
	if err != nil {
		b.logger.Error("failed to load properties", "err", err)
		return Listing{Source: SourceRemote, Items: []Item{}, Failed: true}
	}

	items := make([]Item, 0, len(properties))
	for i := range properties {
		items = append(items, Item{PropertySummary: properties[i].Summary()})
	}
	return Listing{Source: SourceRemote, Items: items}
}

func (b *Browser) loadOffline(ctx context.Context) Listing {
	saved, err := b.mirror.LoadProperties(ctx)
	if err != nil {
		b.logger.Error("failed to load offline properties", "err", err)
		return Listing{Source: SourceOffline, Items: []Item{}, Failed: true}
	}

	items := make([]Item, 0, len(saved))
	for _, s := range saved {
		savedAt := s.SavedAt
		items = append(items, Item{PropertySummary: s.PropertySummary, SavedAt: &savedAt})
	}
	return Listing{Source: SourceOffline, Items: items}
}

// Watch renders the listing once and again after every connectivity change
// until ctx is done. Reconnecting only reloads; nothing is synchronised.
func (b *Browser) Watch(ctx context.Context, q Query, render func(Listing)) {
	changes, cancel := b.conn.Subscribe()
	defer cancel()

	render(b.Load(ctx, q))
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			render(b.Load(ctx, q))
		}
	}
}

// OpenProperty loads a property for the detail page and records the view
// in the history. Offline, only saved properties can be opened.
func (b *Browser) OpenProperty(ctx context.Context, id string) (*PropertyView, error) {
	var view *PropertyView
	var err error
	if b.conn.Connected() {
		view, err = b.openRemote(ctx, id)
	} else {
		view, err = b.openOffline(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	if err := b.history.RecordView(ctx, view.Summary); err != nil {
		b.logger.Warn("failed to record view", "property_id", id, "err", err)
	}
	return view, nil
}

func (b *Browser) openRemote(ctx context.Context, id string) (*PropertyView, error) {
	property, err := b.remote.GetProperty(ctx, id)
	if err != nil {
		return nil, err
	}
	details, err := b.remote.GetPropertyDetails(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if err := b.remote.RecordView(ctx, id); err != nil {
		b.logger.Warn("failed to count view", "property_id", id, "err", err)
	}
	return &PropertyView{Source: SourceRemote, Summary: property.Summary(), Details: details}, nil
}

func (b *Browser) openOffline(ctx context.Context, id string) (*PropertyView, error) {
	saved, err := b.mirror.LoadProperties(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range saved {
		if s.PropertyID != id {
			continue
		}
		details, ok, err := b.mirror.LoadDetails(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		savedAt := s.SavedAt
		return &PropertyView{Source: SourceOffline, Summary: s.PropertySummary, Details: details, SavedAt: &savedAt}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotAvailableOffline, id)
}

// SaveForOffline fetches a property and its details and stores them in the
// mirror. It needs a connection.
func (b *Browser) SaveForOffline(ctx context.Context, id string) error {
	if !b.conn.Connected() {
		return ErrOffline
	}
	property, err := b.remote.GetProperty(ctx, id)
	if err != nil {
		return err
	}
	details, err := b.remote.GetPropertyDetails(ctx, id)
	if errors.Is(err, ErrNotFound) {
		details = &models.PropertyDetails{PropertyID: id}
	} else if err != nil {
		return err
	}
	return b.mirror.SaveOffline(ctx, property.Summary(), *details)
}

// RemoveOffline deletes a saved property. It works in both states.
func (b *Browser) RemoveOffline(ctx context.Context, id string) error {
	return b.mirror.RemoveOffline(ctx, id)
}

// SavedProperties returns the offline copies regardless of connectivity
func (b *Browser) SavedProperties(ctx context.Context) ([]models.SavedPropertySummary, error) {
	return b.mirror.LoadProperties(ctx)
}

// History returns the recently viewed properties
func (b *Browser) History(ctx context.Context) ([]models.ViewedHistoryEntry, error) {
	return b.history.Entries(ctx)
}

// Staleness compares every saved property with its current remote record.
// The mirror is not modified.
func (b *Browser) Staleness(ctx context.Context) ([]snapshot.Report, error) {
	if !b.conn.Connected() {
		return nil, ErrOffline
	}
	saved, err := b.mirror.LoadProperties(ctx)
	if err != nil {
		return nil, err
	}

	current := make(map[string]*models.Property, len(saved))
	for _, s := range saved {
		p, err := b.remote.GetProperty(ctx, s.PropertyID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", s.PropertyID, err)
		}
		current[s.PropertyID] = p
	}
	return snapshot.CompareAll(saved, current), nil
}
