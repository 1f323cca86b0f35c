package handlers

import (
	"log/slog"
	"net/http"

	"property-marketplace/internal/database"

	"github.com/gin-gonic/gin"
)

// FavoriteHandler serves the favorites folder routes
type FavoriteHandler struct {
	db     *database.GormDB
	logger *slog.Logger
}

// NewFavoriteHandler creates a favorites handler
func NewFavoriteHandler(db *database.GormDB, logger *slog.Logger) *FavoriteHandler {
	return &FavoriteHandler{db: db, logger: logger.With("component", "favorites")}
}

type folderRequest struct {
	Title string `json:"title" binding:"required"`
}

// ListFolders returns the folders of a user
func (h *FavoriteHandler) ListFolders(c *gin.Context) {
	folders, err := h.db.ListFolders(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"folders": folders,
		"count":   len(folders),
	})
}

// CreateFolder creates a folder. A title already used by the same user in
// any casing yields 409.
func (h *FavoriteHandler) CreateFolder(c *gin.Context) {
	var req folderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	folder, err := h.db.CreateFolder(c.Request.Context(), c.Param("userId"), req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, folder)
}

// RenameFolder changes a folder title under the same uniqueness rule
func (h *FavoriteHandler) RenameFolder(c *gin.Context) {
	var req folderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	folder, err := h.db.RenameFolder(c.Request.Context(), c.Param("userId"), c.Param("folderId"), req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, folder)
}

// DeleteFolder removes a folder and its entries
func (h *FavoriteHandler) DeleteFolder(c *gin.Context) {
	if err := h.db.DeleteFolder(c.Request.Context(), c.Param("userId"), c.Param("folderId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// FolderProperties returns the properties in a folder
func (h *FavoriteHandler) FolderProperties(c *gin.Context) {
	properties, err := h.db.FolderProperties(c.Request.Context(), c.Param("userId"), c.Param("folderId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"properties": properties,
		"count":      len(properties),
	})
}

// AddToFolder puts a property in a folder. Adding it twice is a no-op.
func (h *FavoriteHandler) AddToFolder(c *gin.Context) {
	var req struct {
		PropertyID string `json:"property_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.db.AddToFolder(c.Request.Context(), c.Param("userId"), c.Param("folderId"), req.PropertyID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveFromFolder takes a property out of a folder
func (h *FavoriteHandler) RemoveFromFolder(c *gin.Context) {
	err := h.db.RemoveFromFolder(c.Request.Context(), c.Param("userId"), c.Param("folderId"), c.Param("propertyId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// FavoritedIn lists the user's folders holding a property
func (h *FavoriteHandler) FavoritedIn(c *gin.Context) {
	folderIDs, err := h.db.FavoritedIn(c.Request.Context(), c.Param("userId"), c.Param("propertyId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"property_id": c.Param("propertyId"),
		"folder_ids":  folderIDs,
		"favorited":   len(folderIDs) > 0,
	})
}
