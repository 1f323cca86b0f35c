package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"property-marketplace/internal/cleanup"
	"property-marketplace/internal/database"
	"property-marketplace/internal/importer"
	"property-marketplace/internal/logging"
	"property-marketplace/internal/models"
	"property-marketplace/internal/search"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestDB(t *testing.T) *database.GormDB {
	t.Helper()
	db, err := database.NewSQLiteGormDB(filepath.Join(t.TempDir(), "api.db"), false)
	require.NoError(t, err)
	require.NoError(t, db.InitSchema())
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestRouter(t *testing.T, db *database.GormDB, mutate func(*RouterDeps)) *gin.Engine {
	t.Helper()
	deps := RouterDeps{
		DB:     db,
		Admin:  AdminDeps{Cleanup: cleanup.NewService(db, nil, logging.Discard())},
		Logger: logging.Discard(),
	}
	if mutate != nil {
		mutate(&deps)
	}
	return NewRouter(deps)
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func seedProperty(t *testing.T, db *database.GormDB, owner, title, city string, price int64) *models.Property {
	t.Helper()
	p := &models.Property{OwnerID: owner, Title: title, City: city, Price: price}
	require.NoError(t, db.CreateProperty(context.Background(), p, nil, nil))
	return p
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(database.ErrNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(database.ErrFolderExists))
	assert.Equal(t, http.StatusConflict, statusFor(database.ErrUsernameTaken))
	assert.Equal(t, http.StatusForbidden, statusFor(database.ErrForbidden))
	assert.Equal(t, http.StatusBadRequest, statusFor(database.ErrInvalidInput))
	assert.Equal(t, http.StatusBadRequest, statusFor(&models.DecodeError{Kind: "property", Fields: []string{"id"}}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, newTestDB(t), nil)

	w := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, w)["status"])
}

func TestPropertyRoutes(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(t, db, nil)

	w := doJSON(t, r, http.MethodPost, "/api/properties", map[string]any{
		"owner_id": "seller",
		"title":    "Flat in Prague",
		"price":    6500000,
		"city":     "Prague",
		"images":   []string{"https://img.example/1.jpg"},
		"details":  map[string]any{"description": "Sunny", "rooms": 3},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.Property](t, w)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "https://img.example/1.jpg", created.ImageURL)

	w = doJSON(t, r, http.MethodGet, "/api/properties/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got, err := models.DecodeProperty(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Flat in Prague", got.Title)

	w = doJSON(t, r, http.MethodGet, "/api/properties/"+created.ID+"/details", nil)
	require.Equal(t, http.StatusOK, w.Code)
	details, err := models.DecodePropertyDetails(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 3, details.Rooms)

	w = doJSON(t, r, http.MethodPost, "/api/properties/"+created.ID+"/view", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/properties?city=Prague", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[database.PropertyPage](t, w)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Properties, 1)
	assert.Equal(t, int64(1), page.Properties[0].ViewCount)

	w = doJSON(t, r, http.MethodGet, "/api/properties/"+created.ID+"/images", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["count"])
}

func TestPropertyDetails_EmptyWhenMissing(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(t, db, nil)
	p := seedProperty(t, db, "seller", "Flat A", "Brno", 100)

	w := doJSON(t, r, http.MethodGet, "/api/properties/"+p.ID+"/details", nil)
	require.Equal(t, http.StatusOK, w.Code)
	details := decode[models.PropertyDetails](t, w)
	assert.Equal(t, p.ID, details.PropertyID)
	assert.Zero(t, details.Rooms)

	w = doJSON(t, r, http.MethodGet, "/api/properties/missing/details", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetProperty_NotFound(t *testing.T) {
	r := newTestRouter(t, newTestDB(t), nil)

	w := doJSON(t, r, http.MethodGet, "/api/properties/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "not found")
}

func TestCreateProperty_Invalid(t *testing.T) {
	r := newTestRouter(t, newTestDB(t), nil)

	w := doJSON(t, r, http.MethodPost, "/api/properties", map[string]any{"owner_id": "seller"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/properties", map[string]any{"owner_id": "seller", "title": "Flat", "price": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/properties", map[string]any{"owner_id": "seller", "title": "Flat", "type": "lease"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type fakeIndex struct {
	indexed []string
	deleted []string
}

func (f *fakeIndex) IndexProperty(p *models.Property) error {
	f.indexed = append(f.indexed, p.ID)
	return nil
}

func (f *fakeIndex) DeleteProperty(id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func TestRemoveProperty_OwnerOnly(t *testing.T) {
	db := newTestDB(t)
	index := &fakeIndex{}
	r := newTestRouter(t, db, func(d *RouterDeps) { d.Index = index })
	p := seedProperty(t, db, "seller", "Flat A", "Prague", 100)

	w := doJSON(t, r, http.MethodDelete, "/api/properties/"+p.ID+"?owner_id=someone", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/api/properties/"+p.ID, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/api/properties/"+p.ID+"?owner_id=seller", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{p.ID}, index.deleted)

	// still readable so clients can see the removal
	w = doJSON(t, r, http.MethodGet, "/api/properties/"+p.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.PropertyStatusRemoved, decode[models.Property](t, w).Status)

	w = doJSON(t, r, http.MethodGet, "/api/properties", nil)
	assert.Equal(t, int64(0), decode[database.PropertyPage](t, w).Total)
}

func TestFolders_DuplicateTitleIsConflict(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(t, db, nil)

	w := doJSON(t, r, http.MethodPost, "/api/users/u1/folders", map[string]string{"title": "Oblíbené"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPost, "/api/users/u1/folders", map[string]string{"title": "oblíbené"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/users/u1/folders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Folders []models.FavoriteFolder `json:"folders"`
	}](t, w)
	require.Len(t, body.Folders, 1)
	assert.Equal(t, "Oblíbené", body.Folders[0].Title)
}

func TestFolders_Entries(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(t, db, nil)
	p := seedProperty(t, db, "seller", "Flat A", "Prague", 100)

	w := doJSON(t, r, http.MethodPost, "/api/users/u1/folders", map[string]string{"title": "Byty"})
	require.Equal(t, http.StatusCreated, w.Code)
	folder := decode[models.FavoriteFolder](t, w)
	base := "/api/users/u1/folders/" + folder.ID

	for i := 0; i < 2; i++ {
		w = doJSON(t, r, http.MethodPost, base+"/properties", map[string]string{"property_id": p.ID})
		assert.Equal(t, http.StatusNoContent, w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/users/u1/folders", nil)
	folders := decode[struct {
		Folders []models.FavoriteFolder `json:"folders"`
	}](t, w).Folders
	require.Len(t, folders, 1)
	assert.Equal(t, int64(1), folders[0].PropertyCount)

	w = doJSON(t, r, http.MethodGet, "/api/users/u1/favorites/"+p.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, w)["favorited"])

	w = doJSON(t, r, http.MethodGet, "/api/users/u2/folders/"+folder.ID+"/properties", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodDelete, base+"/properties/"+p.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, r, http.MethodDelete, base+"/properties/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodPut, base, map[string]string{"title": "BYTY"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "BYTY", decode[models.FavoriteFolder](t, w).Title)

	w = doJSON(t, r, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestUsers(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(t, db, nil)

	w := doJSON(t, r, http.MethodPost, "/api/users", map[string]string{"username": "Jana"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	user := decode[models.User](t, w)

	w = doJSON(t, r, http.MethodPost, "/api/users", map[string]string{"username": "jana"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/users/check-username?username=JANA", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode[map[string]any](t, w)["available"])

	w = doJSON(t, r, http.MethodGet, "/api/users/check-username?username=petr", nil)
	assert.Equal(t, true, decode[map[string]any](t, w)["available"])

	w = doJSON(t, r, http.MethodGet, "/api/users/check-username", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPut, "/api/users/"+user.ID+"/push-token", map[string]string{"token": "device-1"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	got, err := db.GetUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "device-1", got.PushToken)

	w = doJSON(t, r, http.MethodGet, "/api/users/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotifications(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(t, db, nil)
	user := &models.User{Username: "jana"}
	require.NoError(t, db.CreateUser(context.Background(), user))

	w := doJSON(t, r, http.MethodPost, "/api/notifications", map[string]string{"user_id": user.ID, "title": "Price drop"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	n := decode[models.Notification](t, w)
	assert.Equal(t, models.NotificationKindSystem, n.Kind)
	assert.Equal(t, models.NotificationStatusPending, n.Status)

	w = doJSON(t, r, http.MethodPost, "/api/notifications", map[string]string{"user_id": "ghost", "title": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/users/"+user.ID+"/notifications/"+n.ID+"/read", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/users/"+user.ID+"/notifications?unread=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode[map[string]any](t, w)["count"])

	w = doJSON(t, r, http.MethodGet, "/api/users/"+user.ID+"/notifications", nil)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["count"])
}

func TestChats(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(t, db, nil)
	p := seedProperty(t, db, "seller", "Flat A", "Prague", 100)

	w := doJSON(t, r, http.MethodPost, "/api/chats", map[string]string{"property_id": p.ID, "buyer_id": "seller"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/chats", map[string]string{"property_id": p.ID, "buyer_id": "buyer"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	chat := decode[models.Chat](t, w)
	assert.Equal(t, "seller", chat.SellerID)

	w = doJSON(t, r, http.MethodPost, "/api/chats/"+chat.ID+"/messages", map[string]string{"sender_id": "buyer", "text": "Is it available?"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPost, "/api/chats/"+chat.ID+"/messages", map[string]string{"sender_id": "stranger", "text": "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/chats/"+chat.ID+"/messages?user_id=seller", nil)
	require.Equal(t, http.StatusOK, w.Code)
	messages := decode[struct {
		Messages []models.Message `json:"messages"`
	}](t, w).Messages
	require.Len(t, messages, 1)
	assert.Equal(t, "Is it available?", messages[0].Text)

	w = doJSON(t, r, http.MethodGet, "/api/users/seller/notifications", nil)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["count"])

	w = doJSON(t, r, http.MethodGet, "/api/users/buyer/chats", nil)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["count"])
}

type fakeSearcher struct {
	params   search.FilterParams
	indexed  int
	facetErr error
}

func (f *fakeSearcher) FilterSearch(params search.FilterParams) (*search.SearchResult, error) {
	f.params = params
	return &search.SearchResult{Hits: []models.Property{{ID: "p1", Title: "Flat A"}}, TotalHits: 1}, nil
}

func (f *fakeSearcher) GetFacets(facets []string) (map[string]interface{}, error) {
	if f.facetErr != nil {
		return nil, f.facetErr
	}
	return map[string]interface{}{"city": map[string]interface{}{"Prague": 1}}, nil
}

func (f *fakeSearcher) IndexProperties(properties []models.Property) error {
	f.indexed += len(properties)
	return nil
}

func TestSearch(t *testing.T) {
	db := newTestDB(t)
	searcher := &fakeSearcher{}
	r := newTestRouter(t, db, func(d *RouterDeps) { d.Search = searcher })
	seedProperty(t, db, "seller", "Flat A", "Prague", 100)
	seedProperty(t, db, "seller", "Flat B", "Brno", 200)

	w := doJSON(t, r, http.MethodGet, "/api/search?q=flat&city=Prague&min_price=50&dispositions=2%2Bkk,3%2Bkk&sort=price_asc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "flat", searcher.params.Query)
	assert.Equal(t, "Prague", searcher.params.City)
	require.NotNil(t, searcher.params.MinPrice)
	assert.Equal(t, int64(50), *searcher.params.MinPrice)
	assert.Equal(t, []string{"2+kk", "3+kk"}, searcher.params.Dispositions)
	assert.Equal(t, int64(20), searcher.params.Limit)
	assert.Equal(t, int64(1), decode[search.SearchResult](t, w).TotalHits)

	w = doJSON(t, r, http.MethodGet, "/api/search/facets", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/search/reindex", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, searcher.indexed)
}

func TestSearch_Unavailable(t *testing.T) {
	r := newTestRouter(t, newTestDB(t), nil)

	w := doJSON(t, r, http.MethodGet, "/api/search?q=flat", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type fakeImporter struct{}

func (fakeImporter) Import(ctx context.Context, pageURL string) (*importer.Draft, error) {
	return &importer.Draft{SourceURL: pageURL, Property: models.Property{Title: "Imported flat"}}, nil
}

func TestImport(t *testing.T) {
	r := newTestRouter(t, newTestDB(t), func(d *RouterDeps) { d.Importer = fakeImporter{} })

	w := doJSON(t, r, http.MethodPost, "/api/import", map[string]string{"url": "ftp://example.com/x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/import", map[string]string{"url": "https://example.com/listing/1"})
	require.Equal(t, http.StatusOK, w.Code)
	draft := decode[importer.Draft](t, w)
	assert.Equal(t, "Imported flat", draft.Property.Title)
}

type blockedImporter struct{}

func (blockedImporter) Import(ctx context.Context, pageURL string) (*importer.Draft, error) {
	return nil, fmt.Errorf("fetch %s: %w", pageURL, importer.ErrBlockedAddress)
}

func TestImport_InternalAddressIsBadRequest(t *testing.T) {
	r := newTestRouter(t, newTestDB(t), func(d *RouterDeps) { d.Importer = blockedImporter{} })

	w := doJSON(t, r, http.MethodPost, "/api/import", map[string]string{"url": "http://127.0.0.1:8080/admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin(t *testing.T) {
	db := newTestDB(t)
	r := newTestRouter(t, db, nil)
	p := seedProperty(t, db, "seller", "Flat A", "Prague", 100)

	w := doJSON(t, r, http.MethodGet, "/api/admin/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[map[string]any](t, w)
	assert.Contains(t, stats, "properties")
	assert.Contains(t, stats, "deletions")

	w = doJSON(t, r, http.MethodPost, "/api/admin/trending/run", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/admin/cleanup/run", map[string]any{"dry_run": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode[cleanup.CleanupResult](t, w).DryRun)

	w = doJSON(t, r, http.MethodPost, "/api/admin/cleanup/run", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodDelete, "/api/admin/properties/"+p.ID+"?reason=spam", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/api/properties/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/admin/cleanup/logs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["count"])

	w = doJSON(t, r, http.MethodGet, "/api/admin/ratelimit/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode[map[string]any](t, w)["enabled"])

	w = doJSON(t, r, http.MethodGet, "/api/admin/queue/stats", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
