package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildFilters(t *testing.T) {
	minPrice := int64(1_000_000)
	maxPrice := int64(5_000_000)

	filters := BuildFilters(FilterParams{
		City:         "Praha",
		Type:         "sale",
		MinPrice:     &minPrice,
		MaxPrice:     &maxPrice,
		Dispositions: []string{"2+kk", "3+1"},
	})

	assert.Equal(t, []string{
		"status = 'active'",
		"city = 'Praha'",
		"type = 'sale'",
		"price >= 1000000",
		"price <= 5000000",
		"(disposition = '2+kk' OR disposition = '3+1')",
	}, filters)
}

func TestBuildFilters_QuotesValues(t *testing.T) {
	filters := BuildFilters(FilterParams{City: "O'Brien"})
	assert.Equal(t, `city = 'O\'Brien'`, filters[1])
}

func TestSortFor(t *testing.T) {
	assert.Equal(t, []string{"price:asc"}, SortFor("price_asc"))
	assert.Nil(t, SortFor("relevance"))
}

func TestDecodeHits_SkipsInvalid(t *testing.T) {
	hits := []interface{}{
		map[string]interface{}{"id": "p1", "title": "Flat A", "price": float64(100)},
		map[string]interface{}{"price": float64(5)},
	}
	properties, skipped := decodeHits(hits)
	assert.Len(t, properties, 1)
	assert.Equal(t, "p1", properties[0].ID)
	assert.Equal(t, 1, skipped)
}
