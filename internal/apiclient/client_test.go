package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"property-marketplace/internal/catalog"
	"property-marketplace/internal/logging"
	"property-marketplace/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/properties", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Prague", r.URL.Query().Get("city"))
		assert.Equal(t, "price_asc", r.URL.Query().Get("sort"))
		w.Write([]byte(`{"properties":[{"id":"p1","title":"Flat A","price":5000000,"city":"Prague"}],"total":1}`))
	})
	mux.HandleFunc("/api/properties/p1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"p1","title":"Flat A","price":5000000,"city":"Prague"}`))
	})
	mux.HandleFunc("/api/properties/p1/details", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"property_id":"p1","description":"Sunny","rooms":3}`))
	})
	mux.HandleFunc("/api/properties/p1/view", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/api/properties/bad", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price":1}`))
	})
	mux.HandleFunc("/api/properties/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Property not found"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_ListAndGet(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL+"/", 5*time.Second, logging.Discard())
	ctx := context.Background()

	list, err := c.ListProperties(ctx, catalog.Query{City: "Prague", SortBy: "price_asc"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "p1", list[0].ID)

	p, err := c.GetProperty(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Flat A", p.Title)

	d, err := c.GetPropertyDetails(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, d.Rooms)

	require.NoError(t, c.RecordView(ctx, "p1"))
	assert.Equal(t, srv.URL+"/health", c.HealthURL())
}

func TestClient_NotFoundAndDecodeErrors(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, 5*time.Second, logging.Discard())
	ctx := context.Background()

	_, err := c.GetProperty(ctx, "missing")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, "Property not found", statusErr.Message)

	_, err = c.GetProperty(ctx, "bad")
	var decodeErr *models.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.ElementsMatch(t, []string{"id", "title"}, decodeErr.Fields)
}

func TestClient_ResponseBodyLimit(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, 5*time.Second, logging.Discard())
	assert.Equal(t, int64(maxResponseBody), c.maxBody)
	ctx := context.Background()

	c.maxBody = 16
	_, err := c.GetProperty(ctx, "p1")
	require.ErrorIs(t, err, ErrResponseTooLarge)

	c.maxBody = int64(len(`{"id":"p1","title":"Flat A","price":5000000,"city":"Prague"}`))
	p, err := c.GetProperty(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Flat A", p.Title)
}
