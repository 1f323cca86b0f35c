package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Database      DatabaseConfig      `yaml:"database"`
	Search        SearchConfig        `yaml:"search"`
	Server        ServerConfig        `yaml:"server"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Importer      ImporterConfig      `yaml:"importer"`
	Logging       LoggingConfig       `yaml:"logging"`
	Client        ClientConfig        `yaml:"client"`
	Timezone      string              `yaml:"timezone"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Type     string         `yaml:"type"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// MySQLConfig contains MySQL connection settings
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// SQLiteConfig is used for local development databases
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Meilisearch MeilisearchConfig `yaml:"meilisearch"`
}

// MeilisearchConfig contains Meilisearch connection settings
type MeilisearchConfig struct {
	Host   string `yaml:"host"`
	APIKey string `yaml:"api_key"`
	Index  string `yaml:"index"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port        string   `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// RateLimitConfig contains rate limiting settings for write routes
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerSecond int  `yaml:"requests_per_second"`
	Burst             int  `yaml:"burst"`
}

// SchedulerConfig contains scheduled job settings
type SchedulerConfig struct {
	TrendingEnabled      bool   `yaml:"trending_enabled"`
	TrendingRunTime      string `yaml:"trending_run_time"`
	TrendingSize         int    `yaml:"trending_size"`
	CleanupEnabled       bool   `yaml:"cleanup_enabled"`
	CleanupRunTime       string `yaml:"cleanup_run_time"`
	CleanupRetentionDays int    `yaml:"cleanup_retention_days"`
}

// NotificationsConfig contains push dispatch settings
type NotificationsConfig struct {
	WorkerEnabled       bool   `yaml:"worker_enabled"`
	PushEndpoint        string `yaml:"push_endpoint"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	BatchSize           int    `yaml:"batch_size"`
}

// ImporterConfig contains listing import settings
type ImporterConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // tint, json or text
}

// ClientConfig contains settings of the offline-capable client
type ClientConfig struct {
	APIURL                string `yaml:"api_url"`
	StorePath             string `yaml:"store_path"`
	ProbeIntervalSeconds  int    `yaml:"probe_interval_seconds"`
	ProbeTimeoutSeconds   int    `yaml:"probe_timeout_seconds"`
	FailureThreshold      int    `yaml:"failure_threshold"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Type: "mysql",
			MySQL: MySQLConfig{
				Host:     "mysql",
				Port:     3306,
				User:     "marketplace_user",
				Password: "marketplace_pass",
				Database: "marketplace_db",
			},
			Postgres: PostgresConfig{
				Host:     "db",
				Port:     5432,
				User:     "marketplace_user",
				Password: "marketplace_pass",
				Database: "marketplace_db",
				SSLMode:  "disable",
			},
			SQLite: SQLiteConfig{Path: "marketplace.db"},
		},
		Search: SearchConfig{
			Meilisearch: MeilisearchConfig{
				Host:  "http://meilisearch:7700",
				Index: "properties",
			},
		},
		Server: ServerConfig{
			Port:        "8084",
			CORSOrigins: []string{"http://localhost:5176"},
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 5,
			Burst:             10,
		},
		Scheduler: SchedulerConfig{
			TrendingEnabled:      true,
			TrendingRunTime:      "03:00",
			TrendingSize:         15,
			CleanupEnabled:       true,
			CleanupRunTime:       "04:00",
			CleanupRetentionDays: 90,
		},
		Notifications: NotificationsConfig{
			WorkerEnabled:       true,
			PollIntervalSeconds: 15,
			BatchSize:           50,
		},
		Importer: ImporterConfig{
			TimeoutSeconds: 15,
			UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "tint",
		},
		Client: ClientConfig{
			APIURL:                "http://localhost:8084",
			StorePath:             "offline.db",
			ProbeIntervalSeconds:  10,
			ProbeTimeoutSeconds:   3,
			FailureThreshold:      2,
			RequestTimeoutSeconds: 10,
		},
	}
}

// LoadConfig loads configuration from a YAML file and applies environment
// overrides. A missing file is not an error.
func LoadConfig(filepath string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(filepath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnv()
	return config, nil
}

// LoadDotEnv loads variables from .env files into the process environment.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.Database.Type, "DB_TYPE")
	setString(&c.Database.MySQL.Host, "DB_HOST")
	setInt(&c.Database.MySQL.Port, "DB_PORT")
	setString(&c.Database.MySQL.User, "DB_USER")
	setString(&c.Database.MySQL.Password, "DB_PASSWORD")
	setString(&c.Database.MySQL.Database, "DB_NAME")
	setString(&c.Database.Postgres.Host, "PG_HOST")
	setInt(&c.Database.Postgres.Port, "PG_PORT")
	setString(&c.Database.Postgres.User, "PG_USER")
	setString(&c.Database.Postgres.Password, "PG_PASSWORD")
	setString(&c.Database.Postgres.Database, "PG_NAME")
	setString(&c.Database.SQLite.Path, "SQLITE_PATH")
	setString(&c.Search.Meilisearch.Host, "MEILISEARCH_HOST")
	setString(&c.Search.Meilisearch.APIKey, "MEILISEARCH_KEY")
	setString(&c.Server.Port, "PORT")
	setString(&c.Notifications.PushEndpoint, "PUSH_ENDPOINT")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")
	setString(&c.Client.APIURL, "MARKETPLACE_API_URL")
	setString(&c.Client.StorePath, "MARKETPLACE_STORE_PATH")
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.Server.CORSOrigins = strings.Split(origins, ",")
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// PollInterval returns the notification worker poll interval
func (c *NotificationsConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// Timeout returns the importer HTTP timeout
func (c *ImporterConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ProbeInterval returns the connectivity probe interval
func (c *ClientConfig) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalSeconds) * time.Second
}

// ProbeTimeout returns the timeout of a single connectivity probe
func (c *ClientConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSeconds) * time.Second
}

// RequestTimeout returns the API request timeout
func (c *ClientConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
