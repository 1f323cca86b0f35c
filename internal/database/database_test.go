package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"property-marketplace/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *GormDB {
	t.Helper()
	db, err := NewSQLiteGormDB(filepath.Join(t.TempDir(), "marketplace.db"), false)
	require.NoError(t, err)
	require.NoError(t, db.InitSchema())
	t.Cleanup(func() { db.Close() })
	return db
}

func createProperty(t *testing.T, db *GormDB, owner, title, city string, price int64) *models.Property {
	t.Helper()
	p := &models.Property{OwnerID: owner, Title: title, City: city, Price: price}
	require.NoError(t, db.CreateProperty(context.Background(), p, nil, nil))
	return p
}

func TestCreateProperty_WithDetailsAndImages(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rooms := 3
	p := &models.Property{OwnerID: "u1", Title: "Flat A", City: "Prague", Price: 5_000_000}
	details := &models.PropertyDetails{Description: "Sunny", Rooms: rooms, Amenities: []string{"lift", "cellar"}}
	require.NoError(t, db.CreateProperty(ctx, p, details, []string{"https://img/1.jpg", "https://img/2.jpg"}))

	got, err := db.GetPropertyByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Flat A", got.Title)
	assert.Equal(t, "https://img/1.jpg", got.ImageURL)
	assert.Equal(t, models.PropertyStatusActive, got.Status)
	assert.Equal(t, "CZK", got.Currency)

	gotDetails, err := db.GetPropertyDetails(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"lift", "cellar"}, gotDetails.Amenities)

	images, err := db.GetPropertyImages(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "https://img/2.jpg", images[1].ImageURL)
}

func TestCreateProperty_RejectsInvalid(t *testing.T) {
	db := newTestDB(t)
	err := db.CreateProperty(context.Background(), &models.Property{OwnerID: "u1", Title: " "}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = db.CreateProperty(context.Background(), &models.Property{OwnerID: "u1", Title: "x", Price: -1}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetPropertyByID_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetPropertyByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.GetPropertyDetails(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListProperties_FiltersAndSort(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	createProperty(t, db, "u1", "Flat A", "Prague", 3_000_000)
	createProperty(t, db, "u1", "Flat B", "Prague", 1_000_000)
	createProperty(t, db, "u2", "House", "Brno", 2_000_000)
	removed := createProperty(t, db, "u2", "Old", "Prague", 500_000)
	require.NoError(t, db.MarkPropertyAsRemoved(ctx, removed.ID, ""))

	page, err := db.ListProperties(ctx, PropertyFilters{City: "Prague", SortBy: "price_asc"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Properties, 2)
	assert.Equal(t, "Flat B", page.Properties[0].Title)
	assert.Equal(t, defaultPageLimit, page.Limit)

	minPrice := int64(1_500_000)
	page, err = db.ListProperties(ctx, PropertyFilters{MinPrice: &minPrice, SortBy: "price_desc"})
	require.NoError(t, err)
	require.Len(t, page.Properties, 2)
	assert.Equal(t, "Flat A", page.Properties[0].Title)
	assert.Equal(t, "House", page.Properties[1].Title)

	page, err = db.ListProperties(ctx, PropertyFilters{SortBy: "price_asc", Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Properties, 1)
	assert.Equal(t, "House", page.Properties[0].Title)
}

func TestIncrementViewsAndTop(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := createProperty(t, db, "u1", "A", "Prague", 1)
	b := createProperty(t, db, "u1", "B", "Prague", 2)

	for i := 0; i < 3; i++ {
		require.NoError(t, db.IncrementViews(ctx, b.ID))
	}
	require.NoError(t, db.IncrementViews(ctx, a.ID))
	assert.ErrorIs(t, db.IncrementViews(ctx, "missing"), ErrNotFound)

	top, err := db.TopPropertiesByViews(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, b.ID, top[0].ID)
	assert.Equal(t, int64(3), top[0].ViewCount)
}

func TestMarkPropertyAsRemoved_OwnerCheck(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := createProperty(t, db, "owner", "A", "Prague", 1)

	assert.ErrorIs(t, db.MarkPropertyAsRemoved(ctx, p.ID, "someone-else"), ErrForbidden)
	require.NoError(t, db.MarkPropertyAsRemoved(ctx, p.ID, "owner"))

	got, err := db.GetPropertyByID(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive())
	assert.NotNil(t, got.RemovedAt)
}

func TestCreateFolder_CaseInsensitiveDuplicate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first, err := db.CreateFolder(ctx, "u1", "Oblíbené")
	require.NoError(t, err)
	assert.Equal(t, "Oblíbené", first.Title)

	_, err = db.CreateFolder(ctx, "u1", "oblíbené")
	assert.ErrorIs(t, err, ErrFolderExists)

	folders, err := db.ListFolders(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "Oblíbené", folders[0].Title)

	// another user may reuse the title
	_, err = db.CreateFolder(ctx, "u2", "oblíbené")
	require.NoError(t, err)
}

func TestCreateFolder_EmptyTitle(t *testing.T) {
	db := newTestDB(t)
	_, err := db.CreateFolder(context.Background(), "u1", "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRenameFolder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	byty, err := db.CreateFolder(ctx, "u1", "Byty")
	require.NoError(t, err)
	_, err = db.CreateFolder(ctx, "u1", "Domy")
	require.NoError(t, err)

	_, err = db.RenameFolder(ctx, "u1", byty.ID, "DOMY")
	assert.ErrorIs(t, err, ErrFolderExists)

	// changing only the casing of its own title is allowed
	renamed, err := db.RenameFolder(ctx, "u1", byty.ID, "BYTY")
	require.NoError(t, err)
	assert.Equal(t, "BYTY", renamed.Title)

	_, err = db.RenameFolder(ctx, "u2", byty.ID, "Mine")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestFolderEntries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p := createProperty(t, db, "seller", "Flat", "Prague", 1)
	folder, err := db.CreateFolder(ctx, "u1", "Byty")
	require.NoError(t, err)

	require.NoError(t, db.AddToFolder(ctx, "u1", folder.ID, p.ID))
	require.NoError(t, db.AddToFolder(ctx, "u1", folder.ID, p.ID))
	assert.ErrorIs(t, db.AddToFolder(ctx, "u1", folder.ID, "missing"), ErrNotFound)
	assert.ErrorIs(t, db.AddToFolder(ctx, "u2", folder.ID, p.ID), ErrForbidden)

	folders, err := db.ListFolders(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, int64(1), folders[0].PropertyCount)

	properties, err := db.FolderProperties(ctx, "u1", folder.ID)
	require.NoError(t, err)
	require.Len(t, properties, 1)
	assert.Equal(t, p.ID, properties[0].ID)

	in, err := db.FavoritedIn(ctx, "u1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{folder.ID}, in)

	require.NoError(t, db.RemoveFromFolder(ctx, "u1", folder.ID, p.ID))
	assert.ErrorIs(t, db.RemoveFromFolder(ctx, "u1", folder.ID, p.ID), ErrNotFound)

	folders, err = db.ListFolders(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), folders[0].PropertyCount)

	require.NoError(t, db.DeleteFolder(ctx, "u1", folder.ID))
	folders, err = db.ListFolders(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, folders)
}

func TestUsers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := &models.User{Username: "Petr"}
	require.NoError(t, db.CreateUser(ctx, u))
	assert.NotEmpty(t, u.ID)

	available, err := db.UsernameAvailable(ctx, "PETR")
	require.NoError(t, err)
	assert.False(t, available)

	err = db.CreateUser(ctx, &models.User{Username: "petr"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	require.NoError(t, db.UpdatePushToken(ctx, u.ID, "token-1"))
	require.NoError(t, db.UpdatePushToken(ctx, u.ID, "token-1"))
	assert.ErrorIs(t, db.UpdatePushToken(ctx, "missing", "t"), ErrNotFound)

	got, err := db.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "token-1", got.PushToken)
	assert.Equal(t, "Petr", got.Username)
}

func TestSendMessage_QueuesNotification(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p := createProperty(t, db, "seller", "Flat", "Prague", 1)

	_, err := db.OpenChat(ctx, p.ID, "seller")
	assert.ErrorIs(t, err, ErrInvalidInput)

	chat, err := db.OpenChat(ctx, p.ID, "buyer")
	require.NoError(t, err)
	again, err := db.OpenChat(ctx, p.ID, "buyer")
	require.NoError(t, err)
	assert.Equal(t, chat.ID, again.ID)

	_, err = db.SendMessage(ctx, chat.ID, "stranger", "hi")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = db.SendMessage(ctx, chat.ID, "buyer", "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	msg, err := db.SendMessage(ctx, chat.ID, "buyer", "Is it still available?")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)

	notifications, err := db.ListNotifications(ctx, "seller", true, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationKindMessage, notifications[0].Kind)
	assert.Equal(t, chat.ID, notifications[0].ChatID)
	assert.Equal(t, "Is it still available?", notifications[0].Body)

	messages, err := db.Messages(ctx, chat.ID, "seller")
	require.NoError(t, err)
	require.Len(t, messages, 1)

	chats, err := db.ChatsForUser(ctx, "seller")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "Is it still available?", chats[0].LastMessage)

	require.NoError(t, db.MarkNotificationRead(ctx, "seller", notifications[0].ID))
	assert.ErrorIs(t, db.MarkNotificationRead(ctx, "buyer", notifications[0].ID), ErrNotFound)
	unread, err := db.ListNotifications(ctx, "seller", true, 10)
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestNotificationRetries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	n := &models.Notification{UserID: "u1", Kind: models.NotificationKindSystem, Title: "Hello"}
	require.NoError(t, db.EnqueueNotification(ctx, n))

	pending, err := db.GetPendingNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, db.MarkNotificationFailed(ctx, &pending[0], errors.New("push rejected")))

	// retry is scheduled in the future, so nothing is due yet
	pending, err = db.GetPendingNotifications(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	n.Attempts = models.MaxRetryAttempts - 1
	require.NoError(t, db.MarkNotificationFailed(ctx, n, errors.New("push rejected")))

	list, err := db.ListNotifications(ctx, "u1", false, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.NotificationStatusPermanentFail, list[0].Status)
	assert.Equal(t, models.MaxRetryAttempts, list[0].Attempts)
}

func TestReplaceTrending(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := createProperty(t, db, "u1", "A", "Prague", 1)
	b := createProperty(t, db, "u1", "B", "Brno", 2)

	require.NoError(t, db.ReplaceTrending(ctx, []models.Property{*a, *b}, time.Now()))
	require.NoError(t, db.ReplaceTrending(ctx, []models.Property{*b}, time.Now()))

	rows, err := db.Trending(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, b.ID, rows[0].PropertyID)
}
