// Package apiclient is the HTTP client of the marketplace API used by the
// offline-capable client.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"property-marketplace/internal/catalog"
	"property-marketplace/internal/models"
)

const (
	maxErrorBody    = 4 << 10
	maxResponseBody = 8 << 20
)

// ErrResponseTooLarge is returned when a response body exceeds the client's
// size limit
var ErrResponseTooLarge = errors.New("response body too large")

// Client talks to the marketplace API. Every response body is validated
// before it is returned.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	maxBody int64
}

// New creates a client for the API at baseURL
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "apiclient"),
		maxBody: maxResponseBody,
	}
}

// HealthURL is the endpoint probed by the connectivity monitor
func (c *Client) HealthURL() string {
	return c.baseURL + "/health"
}

// HTTPClient exposes the underlying client for probes
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// StatusError is a non-2xx API response
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api returned %d", e.StatusCode)
}

type propertyPage struct {
	Properties json.RawMessage `json:"properties"`
	Total      int64           `json:"total"`
}

// ListProperties queries the property list
func (c *Client) ListProperties(ctx context.Context, q catalog.Query) ([]models.Property, error) {
	params := url.Values{}
	if q.City != "" {
		params.Set("city", q.City)
	}
	if q.Type != "" {
		params.Set("type", q.Type)
	}
	if q.MinPrice != nil {
		params.Set("min_price", strconv.FormatInt(*q.MinPrice, 10))
	}
	if q.MaxPrice != nil {
		params.Set("max_price", strconv.FormatInt(*q.MaxPrice, 10))
	}
	if q.SortBy != "" {
		params.Set("sort", q.SortBy)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	body, err := c.do(ctx, http.MethodGet, "/api/properties", params)
	if err != nil {
		return nil, err
	}
	var page propertyPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, &models.DecodeError{Kind: "property_page", Err: err}
	}
	if len(page.Properties) == 0 {
		return []models.Property{}, nil
	}
	return models.DecodeList[models.Property]("property", page.Properties)
}

// GetProperty fetches one property
func (c *Client) GetProperty(ctx context.Context, id string) (*models.Property, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/properties/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	return models.DecodeProperty(body)
}

// GetPropertyDetails fetches the detail record of a property
func (c *Client) GetPropertyDetails(ctx context.Context, id string) (*models.PropertyDetails, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/properties/"+url.PathEscape(id)+"/details", nil)
	if err != nil {
		return nil, err
	}
	return models.DecodePropertyDetails(body)
}

// RecordView increments the remote view counter
func (c *Client) RecordView(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/properties/"+url.PathEscape(id)+"/view", nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("api request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &payload)
		statusErr := &StatusError{StatusCode: resp.StatusCode, Message: payload.Error}
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %w", catalog.ErrNotFound, statusErr)
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%s %s: %w (limit %d bytes)", method, path, ErrResponseTooLarge, c.maxBody)
	}
	return body, nil
}
