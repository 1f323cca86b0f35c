package handlers

import (
	"log/slog"
	"net/http"

	"property-marketplace/internal/database"

	"github.com/gin-gonic/gin"
)

// ChatHandler serves buyer and seller messaging
type ChatHandler struct {
	db     *database.GormDB
	logger *slog.Logger
}

// NewChatHandler creates a chat handler
func NewChatHandler(db *database.GormDB, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{db: db, logger: logger.With("component", "chats")}
}

// Open returns the buyer's chat about a property, creating it if needed
func (h *ChatHandler) Open(c *gin.Context) {
	var req struct {
		PropertyID string `json:"property_id" binding:"required"`
		BuyerID    string `json:"buyer_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	chat, err := h.db.OpenChat(c.Request.Context(), req.PropertyID, req.BuyerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

// ListForUser returns the chats of a user
func (h *ChatHandler) ListForUser(c *gin.Context) {
	chats, err := h.db.ChatsForUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chats": chats,
		"count": len(chats),
	})
}

// Messages returns the messages of a chat to one of its participants
func (h *ChatHandler) Messages(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		badRequest(c, "user_id is required")
		return
	}
	messages, err := h.db.Messages(c.Request.Context(), c.Param("chatId"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"count":    len(messages),
	})
}

// Send posts a message. The other participant is notified.
func (h *ChatHandler) Send(c *gin.Context) {
	var req struct {
		SenderID string `json:"sender_id" binding:"required"`
		Text     string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	msg, err := h.db.SendMessage(c.Request.Context(), c.Param("chatId"), req.SenderID, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
