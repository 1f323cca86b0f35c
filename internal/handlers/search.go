package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"property-marketplace/internal/database"
	"property-marketplace/internal/models"
	"property-marketplace/internal/search"

	"github.com/gin-gonic/gin"
)

// Searcher is the full-text search backend
type Searcher interface {
	FilterSearch(params search.FilterParams) (*search.SearchResult, error)
	GetFacets(facets []string) (map[string]interface{}, error)
	IndexProperties(properties []models.Property) error
}

var defaultFacets = []string{"city", "type", "disposition"}

// SearchHandler serves the search routes
type SearchHandler struct {
	db       *database.GormDB
	searcher Searcher
	logger   *slog.Logger
}

// NewSearchHandler creates a search handler. searcher may be nil, in which
// case every search route answers 503.
func NewSearchHandler(db *database.GormDB, searcher Searcher, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{db: db, searcher: searcher, logger: logger.With("component", "search")}
}

func (h *SearchHandler) available(c *gin.Context) bool {
	if h.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Search not available"})
		return false
	}
	return true
}

// Search runs a full-text query with listing filters
func (h *SearchHandler) Search(c *gin.Context) {
	if !h.available(c) {
		return
	}

	params := search.FilterParams{
		Query:    c.Query("q"),
		City:     c.Query("city"),
		Type:     c.Query("type"),
		MinPrice: queryInt64Ptr(c, "min_price"),
		MaxPrice: queryInt64Ptr(c, "max_price"),
		MinArea:  queryFloatPtr(c, "min_area"),
		SortBy:   c.Query("sort"),
		Limit:    int64(queryInt(c, "limit", 20)),
		Offset:   int64(queryInt(c, "offset", 0)),
	}
	if dispositions := c.Query("dispositions"); dispositions != "" {
		params.Dispositions = strings.Split(dispositions, ",")
	}

	result, err := h.searcher.FilterSearch(params)
	if err != nil {
		respondError(c, err)
		return
	}
	if result.Skipped > 0 {
		h.logger.Warn("skipped invalid search hits", "count", result.Skipped, "query", params.Query)
	}
	c.JSON(http.StatusOK, result)
}

// Facets returns the facet distribution of active listings
func (h *SearchHandler) Facets(c *gin.Context) {
	if !h.available(c) {
		return
	}

	facets := defaultFacets
	if raw := c.Query("facets"); raw != "" {
		facets = strings.Split(raw, ",")
	}
	distribution, err := h.searcher.GetFacets(facets)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"facets": distribution})
}

// Reindex pushes every active property to the search index
func (h *SearchHandler) Reindex(c *gin.Context) {
	if !h.available(c) {
		return
	}

	start := time.Now()
	properties, err := h.db.GetActiveProperties(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if len(properties) > 0 {
		if err := h.searcher.IndexProperties(properties); err != nil {
			respondError(c, err)
			return
		}
	}

	h.logger.Info("reindexed properties", "count", len(properties), "duration", time.Since(start))
	c.JSON(http.StatusOK, gin.H{
		"message": "Reindex completed",
		"count":   len(properties),
	})
}
