package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeProperty(t *testing.T) {
	p, err := DecodeProperty([]byte(`{"id":"p1","title":"Flat A","price":1000000,"city":"Prague"}`))
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, int64(1000000), p.Price)
	assert.Equal(t, "Prague", p.City)
}

func TestDecodeProperty_MissingRequiredFields(t *testing.T) {
	_, err := DecodeProperty([]byte(`{"price":5}`))
	require.Error(t, err)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "property", decodeErr.Kind)
	assert.ElementsMatch(t, []string{"id", "title"}, decodeErr.Fields)
	assert.Contains(t, err.Error(), "invalid fields")
}

func TestDecodeProperty_Malformed(t *testing.T) {
	_, err := DecodeProperty([]byte(`{"id":`))
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Empty(t, decodeErr.Fields)
}

func TestDecodeList_ValidatesEveryElement(t *testing.T) {
	_, err := DecodeList[SavedPropertySummary]("saved_property", []byte(`[
		{"property_id":"p1","title":"Flat A"},
		{"property_id":"p2"}
	]`))
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, []string{"title"}, decodeErr.Fields)

	list, err := DecodeList[SavedPropertySummary]("saved_property", []byte(`[{"property_id":"p1","title":"Flat A"}]`))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "p1", list[0].PropertyID)
}

func TestFoldKey(t *testing.T) {
	assert.Equal(t, FoldKey("Oblíbené"), FoldKey("oblíbené"))
	assert.Equal(t, FoldKey("  Byty "), FoldKey("BYTY"))
	assert.NotEqual(t, FoldKey("Byty"), FoldKey("Domy"))
}

func TestGetNextRetryDelay(t *testing.T) {
	assert.Equal(t, GetNextRetryDelay(0), GetNextRetryDelay(-1))
	assert.Less(t, GetNextRetryDelay(0), GetNextRetryDelay(1))
	assert.Equal(t, GetNextRetryDelay(4), GetNextRetryDelay(10))
}

func TestChatCounterpart(t *testing.T) {
	c := Chat{BuyerID: "b", SellerID: "s"}
	assert.Equal(t, "s", c.Counterpart("b"))
	assert.Equal(t, "b", c.Counterpart("s"))
	assert.True(t, c.HasParticipant("b"))
	assert.False(t, c.HasParticipant("x"))
}
