package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"property-marketplace/internal/cleanup"
	"property-marketplace/internal/config"
	"property-marketplace/internal/database"

	"github.com/robfig/cron/v3"
)

const jobTimeout = 30 * time.Minute

// Scheduler runs the daily trending and cleanup jobs
type Scheduler struct {
	cron    *cron.Cron
	gdb     *database.GormDB
	cleanup *cleanup.Service
	config  config.SchedulerConfig
	logger  *slog.Logger

	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a new scheduler. Jobs run in loc.
func NewScheduler(gdb *database.GormDB, cleanupSvc *cleanup.Service, cfg config.SchedulerConfig, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		gdb:     gdb,
		cleanup: cleanupSvc,
		config:  cfg,
		logger:  logger.With("component", "scheduler"),
	}
}

// Start registers the enabled jobs and starts the cron loop
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}

	jobs := 0
	if s.config.TrendingEnabled {
		spec := s.parseDailyRunTime(s.config.TrendingRunTime, "03:00")
		if _, err := s.cron.AddFunc(spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if _, err := s.RunTrendingNow(ctx); err != nil {
				s.logger.Error("trending job failed", "err", err)
			}
		}); err != nil {
			return fmt.Errorf("add trending job: %w", err)
		}
		s.logger.Info("trending job scheduled", "at", s.config.TrendingRunTime, "cron", spec)
		jobs++
	}

	if s.config.CleanupEnabled && s.cleanup != nil {
		spec := s.parseDailyRunTime(s.config.CleanupRunTime, "04:00")
		if _, err := s.cron.AddFunc(spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if _, err := s.RunCleanupNow(ctx); err != nil {
				s.logger.Error("cleanup job failed", "err", err)
			}
		}); err != nil {
			return fmt.Errorf("add cleanup job: %w", err)
		}
		s.logger.Info("cleanup job scheduled", "at", s.config.CleanupRunTime, "cron", spec)
		jobs++
	}

	if jobs == 0 {
		s.logger.Info("all scheduled jobs are disabled")
		return nil
	}

	s.cron.Start()
	s.isRunning = true
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		<-s.cron.Stop().Done()
		s.isRunning = false
		s.logger.Info("scheduler stopped")
	}
}

// RunTrendingNow ranks active properties by views and replaces the
// trending collection with the top entries
func (s *Scheduler) RunTrendingNow(ctx context.Context) (int, error) {
	size := s.config.TrendingSize
	if size <= 0 {
		size = 15
	}

	start := time.Now()
	top, err := s.gdb.TopPropertiesByViews(ctx, size)
	if err != nil {
		return 0, fmt.Errorf("rank properties: %w", err)
	}
	if err := s.gdb.ReplaceTrending(ctx, top, start); err != nil {
		return 0, fmt.Errorf("replace trending: %w", err)
	}

	s.logger.Info("trending updated", "count", len(top), "duration", time.Since(start))
	return len(top), nil
}

// RunCleanupNow physically deletes properties past the retention period
// and purges old delivered notifications
func (s *Scheduler) RunCleanupNow(ctx context.Context) (*cleanup.CleanupResult, error) {
	if s.cleanup == nil {
		return nil, fmt.Errorf("cleanup service not configured")
	}

	cfg := cleanup.DefaultCleanupConfig()
	if s.config.CleanupRetentionDays > 0 {
		cfg.RetentionDays = s.config.CleanupRetentionDays
	}
	result, err := s.cleanup.PhysicallyDelete(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().AddDate(0, 0, -cfg.RetentionDays)
	purged, err := s.gdb.PurgeDeliveredNotifications(ctx, cutoff)
	if err != nil {
		s.logger.Warn("failed to purge notifications", "err", err)
	} else if purged > 0 {
		s.logger.Info("purged delivered notifications", "count", purged)
	}
	return result, nil
}

// parseDailyRunTime converts HH:MM format to cron specification
// Example: "02:00" -> "0 2 * * *" (run at 2:00 AM every day)
func (s *Scheduler) parseDailyRunTime(timeStr, fallback string) string {
	var hour, minute int
	n, _ := fmt.Sscanf(timeStr, "%d:%d", &hour, &minute)
	if n == 2 && hour >= 0 && hour < 24 && minute >= 0 && minute < 60 {
		return fmt.Sprintf("%d %d * * *", minute, hour)
	}

	s.logger.Warn("invalid run time, using default", "value", timeStr, "default", fallback)
	fmt.Sscanf(fallback, "%d:%d", &hour, &minute)
	return fmt.Sprintf("%d %d * * *", minute, hour)
}
