package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewPostgresGormDB connects to PostgreSQL through lib/pq and wraps the
// connection with gorm.
func NewPostgresGormDB(host, port, user, password, dbname, sslmode string) (*GormDB, error) {
	if sslmode == "" {
		sslmode = "disable"
	}
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), gormConfig(logger.Warn))
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &GormDB{db: db}, nil
}
