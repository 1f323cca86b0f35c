package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"property-marketplace/internal/importer"

	"github.com/gin-gonic/gin"
)

// DraftImporter builds a draft listing from an external page
type DraftImporter interface {
	Import(ctx context.Context, pageURL string) (*importer.Draft, error)
}

// ImportHandler serves listing import
type ImportHandler struct {
	importer DraftImporter
	logger   *slog.Logger
}

// NewImportHandler creates an import handler
func NewImportHandler(imp DraftImporter, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{importer: imp, logger: logger.With("component", "import")}
}

// Import fetches the page and returns the draft for review. Nothing is
// stored.
func (h *ImportHandler) Import(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		badRequest(c, "url must be an absolute http(s) URL")
		return
	}

	draft, err := h.importer.Import(c.Request.Context(), req.URL)
	if err != nil {
		h.logger.Warn("import failed", "url", req.URL, "err", err)
		if errors.Is(err, importer.ErrBlockedAddress) {
			badRequest(c, "url points to an internal address")
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, draft)
}
