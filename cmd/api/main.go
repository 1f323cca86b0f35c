package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"property-marketplace/internal/cleanup"
	"property-marketplace/internal/config"
	"property-marketplace/internal/database"
	"property-marketplace/internal/handlers"
	"property-marketplace/internal/importer"
	"property-marketplace/internal/logging"
	"property-marketplace/internal/ratelimit"
	"property-marketplace/internal/scheduler"
	"property-marketplace/internal/search"

	"github.com/gin-gonic/gin"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Warn("failed to load .env", "err", err)
	}

	configPath := getEnv("CONFIG_PATH", "/app/config/marketplace.yaml")
	appConfig, err := config.LoadConfig(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "err", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{
		Level:  appConfig.Logging.Level,
		Format: appConfig.Logging.Format,
	})
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "path", configPath, "database", appConfig.Database.Type)

	gormDB, err := openDatabase(appConfig.Database)
	if err != nil {
		logger.Error("failed to connect to database", "type", appConfig.Database.Type, "err", err)
		os.Exit(1)
	}
	defer gormDB.Close()

	if err := gormDB.InitSchema(); err != nil {
		logger.Error("failed to initialize schema", "err", err)
		os.Exit(1)
	}

	// Search is optional; without a host every search route answers 503
	var searchClient *search.SearchClient
	if host := appConfig.Search.Meilisearch.Host; host != "" {
		searchClient = search.NewSearchClient(host, appConfig.Search.Meilisearch.APIKey, appConfig.Search.Meilisearch.Index)
		if !searchClient.Healthy() {
			logger.Warn("meilisearch not reachable yet", "host", host)
		}
		if err := searchClient.InitIndex(); err != nil {
			logger.Warn("failed to initialize search index", "err", err)
		}
	}

	// interface values stay nil when search is disabled
	var (
		searcher  handlers.Searcher
		index     handlers.PropertyIndex
		deindexer cleanup.Deindexer
	)
	if searchClient != nil {
		searcher, index, deindexer = searchClient, searchClient, searchClient
	}

	cleanupService := cleanup.NewService(gormDB, deindexer, logger)

	loc := time.Local
	if tz := appConfig.Timezone; tz != "" {
		if l, err := time.LoadLocation(tz); err != nil {
			logger.Warn("unknown timezone, using local", "timezone", tz, "err", err)
		} else {
			loc = l
		}
	}

	appScheduler := scheduler.NewScheduler(gormDB, cleanupService, appConfig.Scheduler, loc, logger)
	if err := appScheduler.Start(); err != nil {
		logger.Warn("failed to start scheduler", "err", err)
	}
	defer appScheduler.Stop()

	var worker *scheduler.NotificationWorker
	if appConfig.Notifications.WorkerEnabled {
		var pusher scheduler.Pusher = &scheduler.LogPusher{Logger: logger}
		if endpoint := appConfig.Notifications.PushEndpoint; endpoint != "" {
			pusher = &scheduler.HTTPPusher{Endpoint: endpoint, Client: &http.Client{Timeout: 10 * time.Second}}
		}
		worker = scheduler.NewNotificationWorker(gormDB, pusher,
			appConfig.Notifications.PollInterval(), appConfig.Notifications.BatchSize, logger)
		worker.Start()
		defer worker.Stop()
		logger.Info("notification worker started", "push_endpoint", appConfig.Notifications.PushEndpoint)
	}

	rateLimiter := ratelimit.NewRateLimiter(
		appConfig.RateLimit.RequestsPerSecond,
		appConfig.RateLimit.Burst,
		appConfig.RateLimit.Enabled,
		logger,
	)
	stopCleanup := make(chan struct{})
	defer close(stopCleanup)
	rateLimiter.StartCleanup(time.Minute, stopCleanup)
	logger.Info("rate limiter initialized",
		"rps", appConfig.RateLimit.RequestsPerSecond,
		"burst", appConfig.RateLimit.Burst,
		"enabled", appConfig.RateLimit.Enabled)

	listingImporter := importer.New(appConfig.Importer.Timeout(), appConfig.Importer.UserAgent, logger)

	if appConfig.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := handlers.NewRouter(handlers.RouterDeps{
		DB:       gormDB,
		Search:   searcher,
		Index:    index,
		Importer: listingImporter,
		Limiter:  rateLimiter,
		Admin: handlers.AdminDeps{
			Scheduler:     appScheduler,
			Cleanup:       cleanupService,
			Worker:        worker,
			RetentionDays: appConfig.Scheduler.CleanupRetentionDays,
		},
		CORSOrigins: appConfig.Server.CORSOrigins,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", appConfig.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
}

func openDatabase(cfg config.DatabaseConfig) (*database.GormDB, error) {
	switch cfg.Type {
	case "postgres":
		pg := cfg.Postgres
		return database.NewPostgresGormDB(pg.Host, strconv.Itoa(pg.Port), pg.User, pg.Password, pg.Database, pg.SSLMode)
	case "sqlite":
		return database.NewSQLiteGormDB(cfg.SQLite.Path, false)
	default:
		m := cfg.MySQL
		return database.NewGormDB(m.Host, strconv.Itoa(m.Port), m.User, m.Password, m.Database)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
