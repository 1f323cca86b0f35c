package database

import (
	"log"
	"os"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteGormDB opens a SQLite file. It backs the device-local store and
// single-node development setups.
func NewSQLiteGormDB(path string, verbose bool) (*GormDB, error) {
	level := logger.Silent
	if verbose {
		level = logger.Info
	}
	cfg := gormConfig(level)
	cfg.Logger = logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_foreign_keys=on"), cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer; one connection avoids "database is locked"
	sqlDB.SetMaxOpenConns(1)

	return &GormDB{db: db}, nil
}
