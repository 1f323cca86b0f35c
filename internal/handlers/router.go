package handlers

import (
	"log/slog"
	"time"

	"property-marketplace/internal/database"
	"property-marketplace/internal/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterDeps wires the services behind the HTTP API. Search, Index,
// Importer and Limiter may be nil.
type RouterDeps struct {
	DB          *database.GormDB
	Search      Searcher
	Index       PropertyIndex
	Importer    DraftImporter
	Limiter     *ratelimit.RateLimiter
	Admin       AdminDeps
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewRouter builds the gin engine with all routes registered
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(corsConfig(deps.CORSOrigins)))

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// write routes are limited per client
	var limited gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if deps.Limiter != nil {
		limited = deps.Limiter.Middleware()
	}

	properties := NewPropertyHandler(deps.DB, deps.Index, logger)
	searches := NewSearchHandler(deps.DB, deps.Search, logger)
	users := NewUserHandler(deps.DB, logger)
	favorites := NewFavoriteHandler(deps.DB, logger)
	chats := NewChatHandler(deps.DB, logger)
	admin := NewAdminHandler(deps.DB, AdminDeps{
		Scheduler:     deps.Admin.Scheduler,
		Cleanup:       deps.Admin.Cleanup,
		Worker:        deps.Admin.Worker,
		Limiter:       deps.Limiter,
		RetentionDays: deps.Admin.RetentionDays,
	}, logger)

	r.GET("/health", properties.Health)

	api := r.Group("/api")
	{
		api.GET("/properties", properties.List)
		api.POST("/properties", limited, properties.Create)
		api.GET("/properties/:id", properties.Get)
		api.GET("/properties/:id/details", properties.Details)
		api.GET("/properties/:id/images", properties.Images)
		api.POST("/properties/:id/view", properties.RecordView)
		api.DELETE("/properties/:id", limited, properties.Remove)
		api.GET("/trending", properties.Trending)

		api.GET("/search", searches.Search)
		api.GET("/search/facets", searches.Facets)
		api.POST("/search/reindex", searches.Reindex)

		api.POST("/users", limited, users.Create)
		api.GET("/users/check-username", users.CheckUsername)
		api.GET("/users/:userId", users.Get)
		api.PUT("/users/:userId/push-token", users.UpdatePushToken)
		api.GET("/users/:userId/notifications", users.ListNotifications)
		api.POST("/users/:userId/notifications/:notificationId/read", users.MarkNotificationRead)
		api.POST("/notifications", limited, users.EnqueueNotification)

		api.GET("/users/:userId/folders", favorites.ListFolders)
		api.POST("/users/:userId/folders", limited, favorites.CreateFolder)
		api.PUT("/users/:userId/folders/:folderId", limited, favorites.RenameFolder)
		api.DELETE("/users/:userId/folders/:folderId", favorites.DeleteFolder)
		api.GET("/users/:userId/folders/:folderId/properties", favorites.FolderProperties)
		api.POST("/users/:userId/folders/:folderId/properties", limited, favorites.AddToFolder)
		api.DELETE("/users/:userId/folders/:folderId/properties/:propertyId", favorites.RemoveFromFolder)
		api.GET("/users/:userId/favorites/:propertyId", favorites.FavoritedIn)

		api.POST("/chats", limited, chats.Open)
		api.GET("/users/:userId/chats", chats.ListForUser)
		api.GET("/chats/:chatId/messages", chats.Messages)
		api.POST("/chats/:chatId/messages", limited, chats.Send)

		if deps.Importer != nil {
			imports := NewImportHandler(deps.Importer, logger)
			api.POST("/import", limited, imports.Import)
		}
	}

	// Admin API routes (requires authentication in production)
	adminGroup := r.Group("/api/admin")
	{
		adminGroup.GET("/stats", admin.GetStats)
		adminGroup.GET("/activity", admin.GetRecentActivity)
		adminGroup.POST("/trending/run", admin.TriggerTrending)
		adminGroup.POST("/cleanup/run", admin.RunCleanup)
		adminGroup.GET("/cleanup/logs", admin.GetDeleteLogs)
		adminGroup.DELETE("/properties/:id", admin.DeleteProperty)
		adminGroup.GET("/queue/stats", admin.GetQueueStats)
		adminGroup.GET("/ratelimit/stats", admin.GetRateLimitStats)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
