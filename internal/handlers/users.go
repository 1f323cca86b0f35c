package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"property-marketplace/internal/database"
	"property-marketplace/internal/models"

	"github.com/gin-gonic/gin"
)

// UserHandler serves account, push token and notification routes
type UserHandler struct {
	db     *database.GormDB
	logger *slog.Logger
}

// NewUserHandler creates a user handler
func NewUserHandler(db *database.GormDB, logger *slog.Logger) *UserHandler {
	return &UserHandler{db: db, logger: logger.With("component", "users")}
}

type createUserRequest struct {
	Username    string `json:"username" binding:"required"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email" binding:"omitempty,email"`
}

// Create registers a user
func (h *UserHandler) Create(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user := &models.User{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Email:       req.Email,
	}
	if err := h.db.CreateUser(c.Request.Context(), user); err != nil {
		respondError(c, err)
		return
	}
	h.logger.Info("user created", "user_id", user.ID)
	c.JSON(http.StatusCreated, user)
}

// Get returns a user
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.db.GetUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// CheckUsername reports whether a username is still free in any casing
func (h *UserHandler) CheckUsername(c *gin.Context) {
	username := strings.TrimSpace(c.Query("username"))
	if username == "" {
		badRequest(c, "username is required")
		return
	}
	available, err := h.db.UsernameAvailable(c.Request.Context(), username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"username":  username,
		"available": available,
	})
}

// UpdatePushToken stores the device token used for push delivery. An empty
// token disables push for the user.
func (h *UserHandler) UpdatePushToken(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.db.UpdatePushToken(c.Request.Context(), c.Param("userId"), strings.TrimSpace(req.Token)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type enqueueNotificationRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	Kind       string `json:"kind"`
	Title      string `json:"title" binding:"required"`
	Body       string `json:"body"`
	PropertyID string `json:"property_id"`
	ChatID     string `json:"chat_id"`
}

// EnqueueNotification queues a notification for the dispatch worker
func (h *UserHandler) EnqueueNotification(c *gin.Context) {
	var req enqueueNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	if _, err := h.db.GetUser(ctx, req.UserID); err != nil {
		respondError(c, err)
		return
	}

	kind := req.Kind
	if kind == "" {
		kind = models.NotificationKindSystem
	}
	n := &models.Notification{
		UserID:     req.UserID,
		Kind:       kind,
		Title:      req.Title,
		Body:       req.Body,
		PropertyID: req.PropertyID,
		ChatID:     req.ChatID,
	}
	if err := h.db.EnqueueNotification(ctx, n); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, n)
}

// ListNotifications returns the newest notifications of a user
func (h *UserHandler) ListNotifications(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"
	limit := queryInt(c, "limit", 50)

	notifications, err := h.db.ListNotifications(c.Request.Context(), c.Param("userId"), unreadOnly, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"count":         len(notifications),
	})
}

// MarkNotificationRead marks one notification as read
func (h *UserHandler) MarkNotificationRead(c *gin.Context) {
	if err := h.db.MarkNotificationRead(c.Request.Context(), c.Param("userId"), c.Param("notificationId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
