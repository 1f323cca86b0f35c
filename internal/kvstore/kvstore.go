// Package kvstore is the device-local key-value store used by the offline
// mirror. It is a small table of string keys and values in an app-scoped
// SQLite file.
//
// A Store starts uninitialized. Until Init completes, reads behave as if the
// store were empty and writes are silently dropped. Init flips the store to
// ready exactly once.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"property-marketplace/internal/database"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is one stored key
type Entry struct {
	Key       string    `gorm:"column:entry_key;type:varchar(191);primaryKey"`
	Value     string    `gorm:"column:entry_value;type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name
func (Entry) TableName() string {
	return "kv_entries"
}

// Store is a persistent string-keyed store with an explicit readiness phase.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger

	ready   atomic.Bool
	readyCh chan struct{}
	initMu  sync.Mutex

	// serialises read-modify-write sequences issued through Update
	writeMu sync.Mutex
}

// Open opens (or creates) the store file at path. The returned store is not
// ready until Init is called.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := database.NewSQLiteGormDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	return New(db.DB(), logger), nil
}

// New wraps an existing gorm connection.
func New(db *gorm.DB, logger *slog.Logger) *Store {
	return &Store{
		db:      db,
		logger:  logger.With("component", "kvstore"),
		readyCh: make(chan struct{}),
	}
}

// Init prepares the schema and marks the store ready. Calling Init on a
// ready store is a no-op.
func (s *Store) Init(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.ready.Load() {
		return nil
	}
	if err := s.db.WithContext(ctx).AutoMigrate(&Entry{}); err != nil {
		return fmt.Errorf("migrate local store: %w", err)
	}
	s.ready.Store(true)
	close(s.readyCh)
	s.logger.Debug("local store ready")
	return nil
}

// Ready reports whether Init has completed.
func (s *Store) Ready() bool {
	return s.ready.Load()
}

// WaitReady blocks until the store is ready or ctx is done.
func (s *Store) WaitReady(ctx context.Context) error {
	select {
	case <-s.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Get returns the value stored under key. ok is false when the key is unset
// or the store is not ready yet.
func (s *Store) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	if !s.Ready() {
		return "", false, nil
	}
	return get(s.db.WithContext(ctx), key)
}

// Set stores value under key. It is a no-op before the store is ready.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if !s.Ready() {
		s.logger.Debug("dropping write, store not ready", "key", key)
		return nil
	}
	return set(s.db.WithContext(ctx), key, value)
}

// Remove deletes key. It is a no-op before the store is ready.
func (s *Store) Remove(ctx context.Context, key string) error {
	if !s.Ready() {
		return nil
	}
	return remove(s.db.WithContext(ctx), key)
}

// Keys lists all stored keys.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	if !s.Ready() {
		return nil, nil
	}
	var keys []string
	err := s.db.WithContext(ctx).Model(&Entry{}).Order("entry_key").Pluck("entry_key", &keys).Error
	return keys, err
}

// GetJSON decodes the JSON value stored under key into dst.
func (s *Store) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v as JSON under key.
func (s *Store) SetJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}

// Update runs fn in a single transaction. Writes made through the Txn are
// committed together or not at all, and concurrent Update calls on the same
// Store run one after another. Before the store is ready fn is not called.
func (s *Store) Update(ctx context.Context, fn func(tx *Txn) error) error {
	if !s.Ready() {
		s.logger.Debug("dropping update, store not ready")
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&Txn{db: db})
	})
}

// Txn is the view of the store inside Update.
type Txn struct {
	db *gorm.DB
}

// Get returns the value stored under key within the transaction.
func (t *Txn) Get(key string) (string, bool, error) {
	return get(t.db, key)
}

// Set stores value under key within the transaction.
func (t *Txn) Set(key, value string) error {
	return set(t.db, key, value)
}

// Remove deletes key within the transaction.
func (t *Txn) Remove(key string) error {
	return remove(t.db, key)
}

// GetJSON decodes the JSON value under key into dst.
func (t *Txn) GetJSON(key string, dst any) (bool, error) {
	raw, ok, err := t.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v as JSON under key.
func (t *Txn) SetJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return t.Set(key, string(data))
}

func get(db *gorm.DB, key string) (string, bool, error) {
	var e Entry
	err := db.Where("entry_key = ?", key).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return e.Value, true, nil
}

func set(db *gorm.DB, key, value string) error {
	e := Entry{Key: key, Value: value}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"entry_value", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func remove(db *gorm.DB, key string) error {
	if err := db.Where("entry_key = ?", key).Delete(&Entry{}).Error; err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}
