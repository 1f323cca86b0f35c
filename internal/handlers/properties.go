package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"property-marketplace/internal/database"
	"property-marketplace/internal/models"

	"github.com/gin-gonic/gin"
)

// PropertyIndex is the search index kept in step with property writes
type PropertyIndex interface {
	IndexProperty(property *models.Property) error
	DeleteProperty(id string) error
}

// PropertyHandler serves the property and trending routes
type PropertyHandler struct {
	db     *database.GormDB
	index  PropertyIndex
	logger *slog.Logger
}

// NewPropertyHandler creates a property handler. index may be nil.
func NewPropertyHandler(db *database.GormDB, index PropertyIndex, logger *slog.Logger) *PropertyHandler {
	return &PropertyHandler{db: db, index: index, logger: logger.With("component", "properties")}
}

// Health is the connectivity probe target of the client
func (h *PropertyHandler) Health(c *gin.Context) {
	if err := h.db.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now(),
	})
}

// List returns a page of active properties
func (h *PropertyHandler) List(c *gin.Context) {
	filters := database.PropertyFilters{
		City:     c.Query("city"),
		Type:     c.Query("type"),
		OwnerID:  c.Query("owner_id"),
		MinPrice: queryInt64Ptr(c, "min_price"),
		MaxPrice: queryInt64Ptr(c, "max_price"),
		MinArea:  queryFloatPtr(c, "min_area"),
		MaxArea:  queryFloatPtr(c, "max_area"),
		SortBy:   c.DefaultQuery("sort", "created_at"),
		Limit:    queryInt(c, "limit", 0),
		Offset:   queryInt(c, "offset", 0),
	}
	if dispositions := c.Query("dispositions"); dispositions != "" {
		filters.Dispositions = strings.Split(dispositions, ",")
	}
	if excludeIDs := c.Query("exclude_ids"); excludeIDs != "" {
		filters.ExcludeIDs = strings.Split(excludeIDs, ",")
	}

	start := time.Now()
	page, err := h.db.ListProperties(c.Request.Context(), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	h.logger.Debug("property list",
		"duration_ms", time.Since(start).Milliseconds(),
		"total", page.Total,
		"limit", page.Limit,
		"sort", filters.SortBy)

	c.JSON(http.StatusOK, page)
}

// Get returns a single property, including removed ones so that clients
// can detect the removal
func (h *PropertyHandler) Get(c *gin.Context) {
	property, err := h.db.GetPropertyByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, property)
}

// Details returns the detail record of a property. A property without a
// detail record yields an empty record.
func (h *PropertyHandler) Details(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	details, err := h.db.GetPropertyDetails(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		if _, err := h.db.GetPropertyByID(ctx, id); err != nil {
			respondError(c, err)
			return
		}
		details, err = &models.PropertyDetails{PropertyID: id}, nil
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// Images returns the images of a property in display order
func (h *PropertyHandler) Images(c *gin.Context) {
	images, err := h.db.GetPropertyImages(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"images": images,
		"count":  len(images),
	})
}

// RecordView increments the view counter
func (h *PropertyHandler) RecordView(c *gin.Context) {
	if err := h.db.IncrementViews(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createPropertyRequest struct {
	OwnerID     string                  `json:"owner_id" binding:"required"`
	Title       string                  `json:"title" binding:"required"`
	Price       int64                   `json:"price"`
	Currency    string                  `json:"currency"`
	Type        models.PropertyType     `json:"type"`
	Disposition string                  `json:"disposition"`
	Area        *float64                `json:"area"`
	City        string                  `json:"city"`
	Address     string                  `json:"address"`
	Details     *models.PropertyDetails `json:"details"`
	Images      []string                `json:"images"`
}

// Create stores a new listing and indexes it
func (h *PropertyHandler) Create(c *gin.Context) {
	var req createPropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Type != "" && req.Type != models.PropertyTypeSale && req.Type != models.PropertyTypeRent {
		badRequest(c, "type must be sale or rent")
		return
	}

	property := &models.Property{
		OwnerID:     req.OwnerID,
		Title:       req.Title,
		Price:       req.Price,
		Currency:    req.Currency,
		Type:        req.Type,
		Disposition: req.Disposition,
		Area:        req.Area,
		City:        req.City,
		Address:     req.Address,
	}
	if err := h.db.CreateProperty(c.Request.Context(), property, req.Details, req.Images); err != nil {
		respondError(c, err)
		return
	}

	if h.index != nil {
		if err := h.index.IndexProperty(property); err != nil {
			h.logger.Warn("failed to index property", "property_id", property.ID, "err", err)
		}
	}

	c.JSON(http.StatusCreated, property)
}

// Remove marks a listing as removed. Only the owner may remove it.
func (h *PropertyHandler) Remove(c *gin.Context) {
	id := c.Param("id")
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		badRequest(c, "owner_id is required")
		return
	}
	if err := h.db.MarkPropertyAsRemoved(c.Request.Context(), id, ownerID); err != nil {
		respondError(c, err)
		return
	}

	// removed listings are not searchable
	if h.index != nil {
		if err := h.index.DeleteProperty(id); err != nil {
			h.logger.Warn("failed to remove property from index", "property_id", id, "err", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "status": models.PropertyStatusRemoved})
}

// Trending returns the current trending collection
func (h *PropertyHandler) Trending(c *gin.Context) {
	items, err := h.db.Trending(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"trending": items,
		"count":    len(items),
	})
}
