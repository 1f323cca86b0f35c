package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"property-marketplace/internal/cleanup"
	"property-marketplace/internal/database"
	"property-marketplace/internal/models"
	"property-marketplace/internal/ratelimit"
	"property-marketplace/internal/scheduler"

	"github.com/gin-gonic/gin"
)

// AdminHandler handles admin-related requests
type AdminHandler struct {
	db             *database.GormDB
	scheduler      *scheduler.Scheduler
	cleanupService *cleanup.Service
	worker         *scheduler.NotificationWorker
	limiter        *ratelimit.RateLimiter
	retentionDays  int
	logger         *slog.Logger
}

// AdminDeps are the services exposed through the admin routes. Scheduler,
// Worker and Limiter may be nil.
type AdminDeps struct {
	Scheduler     *scheduler.Scheduler
	Cleanup       *cleanup.Service
	Worker        *scheduler.NotificationWorker
	Limiter       *ratelimit.RateLimiter
	RetentionDays int
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(db *database.GormDB, deps AdminDeps, logger *slog.Logger) *AdminHandler {
	retention := deps.RetentionDays
	if retention <= 0 {
		retention = cleanup.DefaultCleanupConfig().RetentionDays
	}
	return &AdminHandler{
		db:             db,
		scheduler:      deps.Scheduler,
		cleanupService: deps.Cleanup,
		worker:         deps.Worker,
		limiter:        deps.Limiter,
		retentionDays:  retention,
		logger:         logger.With("component", "admin"),
	}
}

// GetStats returns system statistics
func (h *AdminHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	db := h.db.DB().WithContext(ctx)
	stats := make(map[string]interface{})

	var activeCount, removedCount int64
	db.Model(&models.Property{}).Where("status = ?", models.PropertyStatusActive).Count(&activeCount)
	db.Model(&models.Property{}).Where("status = ?", models.PropertyStatusRemoved).Count(&removedCount)
	stats["properties"] = map[string]interface{}{
		"active":  activeCount,
		"removed": removedCount,
		"total":   activeCount + removedCount,
	}

	last24h := time.Now().AddDate(0, 0, -1)
	var createdLast24h int64
	db.Model(&models.Property{}).Where("created_at >= ?", last24h).Count(&createdLast24h)
	stats["recent_activity"] = map[string]interface{}{
		"created_last_24h": createdLast24h,
	}

	var users, folders, chats int64
	db.Model(&models.User{}).Count(&users)
	db.Model(&models.FavoriteFolder{}).Count(&folders)
	db.Model(&models.Chat{}).Count(&chats)
	stats["accounts"] = map[string]interface{}{
		"users":            users,
		"favorite_folders": folders,
		"chats":            chats,
	}

	if h.cleanupService != nil {
		deleteStats, err := h.cleanupService.GetDeleteStats(ctx, h.retentionDays)
		if err != nil {
			h.logger.Warn("failed to get delete stats", "err", err)
		} else {
			stats["deletions"] = deleteStats
		}
	}

	if h.worker != nil {
		queueStats, err := h.worker.GetQueueStats(ctx)
		if err != nil {
			h.logger.Warn("failed to get queue stats", "err", err)
		} else {
			stats["notifications"] = queueStats
		}
	}

	c.JSON(http.StatusOK, stats)
}

// GetRecentActivity returns recently created listings
func (h *AdminHandler) GetRecentActivity(c *gin.Context) {
	limit := queryInt(c, "limit", 50)

	properties := []models.Property{}
	err := h.db.DB().WithContext(c.Request.Context()).Order("created_at DESC").Limit(limit).Find(&properties).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"properties": properties,
		"count":      len(properties),
	})
}

// TriggerTrending recomputes the trending collection now
func (h *AdminHandler) TriggerTrending(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler not available"})
		return
	}

	h.logger.Info("manual trending run requested")
	count, err := h.scheduler.RunTrendingNow(c.Request.Context())
	if err != nil {
		h.logger.Error("manual trending run failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Trending updated",
		"count":   count,
	})
}

// RunCleanup executes physical deletion of old removed properties
func (h *AdminHandler) RunCleanup(c *gin.Context) {
	if h.cleanupService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Cleanup not available"})
		return
	}

	var req struct {
		RetentionDays    int  `json:"retention_days"`     // Days to keep (default: 90)
		MaxDeletionCount int  `json:"max_deletion_count"` // Safety limit (default: 10000)
		DryRun           bool `json:"dry_run"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	config := cleanup.DefaultCleanupConfig()
	config.RetentionDays = h.retentionDays
	if req.RetentionDays > 0 {
		config.RetentionDays = req.RetentionDays
	}
	if req.MaxDeletionCount > 0 {
		config.MaxDeletionCount = req.MaxDeletionCount
	}
	config.DryRun = req.DryRun

	h.logger.Info("running cleanup",
		"retention_days", config.RetentionDays,
		"max", config.MaxDeletionCount,
		"dry_run", config.DryRun)

	result, err := h.cleanupService.PhysicallyDelete(c.Request.Context(), config)
	if err != nil {
		h.logger.Error("cleanup failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("cleanup completed",
		"deleted", result.DeletedCount,
		"targets", result.TargetCount,
		"dry_run", result.DryRun)

	c.JSON(http.StatusOK, result)
}

// DeleteProperty runs the deletion cascade for one property immediately
func (h *AdminHandler) DeleteProperty(c *gin.Context) {
	if h.cleanupService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Cleanup not available"})
		return
	}

	reason := c.DefaultQuery("reason", "admin")
	entry, err := h.cleanupService.DeleteProperty(c.Request.Context(), c.Param("id"), reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// GetDeleteLogs returns recent delete log entries
func (h *AdminHandler) GetDeleteLogs(c *gin.Context) {
	if h.cleanupService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Cleanup not available"})
		return
	}

	limit := queryInt(c, "limit", 100)
	logs, err := h.cleanupService.GetRecentDeleteLogs(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"count": len(logs),
	})
}

// GetQueueStats returns notification queue statistics
func (h *AdminHandler) GetQueueStats(c *gin.Context) {
	if h.worker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Notification worker not available"})
		return
	}

	stats, err := h.worker.GetQueueStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetRateLimitStats returns rate limiter statistics
func (h *AdminHandler) GetRateLimitStats(c *gin.Context) {
	if h.limiter == nil {
		c.JSON(http.StatusOK, ratelimit.Stats{Enabled: false})
		return
	}
	c.JSON(http.StatusOK, h.limiter.GetStats())
}
