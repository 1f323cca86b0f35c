package search

import (
	"fmt"
	"strings"
)

const activeFilter = "status = 'active'"

type FilterParams struct {
	Query        string
	City         string
	Type         string
	Dispositions []string
	MinPrice     *int64
	MaxPrice     *int64
	MinArea      *float64
	SortBy       string
	Limit        int64
	Offset       int64
}

// BuildFilters converts params to Meilisearch filter expressions. Only
// active listings are searchable.
func BuildFilters(params FilterParams) []string {
	filters := []string{activeFilter}

	if params.City != "" {
		filters = append(filters, fmt.Sprintf("city = %s", quote(params.City)))
	}
	if params.Type != "" {
		filters = append(filters, fmt.Sprintf("type = %s", quote(params.Type)))
	}
	if params.MinPrice != nil {
		filters = append(filters, fmt.Sprintf("price >= %d", *params.MinPrice))
	}
	if params.MaxPrice != nil {
		filters = append(filters, fmt.Sprintf("price <= %d", *params.MaxPrice))
	}
	if params.MinArea != nil {
		filters = append(filters, fmt.Sprintf("area >= %g", *params.MinArea))
	}
	if len(params.Dispositions) > 0 {
		parts := make([]string, len(params.Dispositions))
		for i, d := range params.Dispositions {
			parts[i] = fmt.Sprintf("disposition = %s", quote(d))
		}
		filters = append(filters, fmt.Sprintf("(%s)", strings.Join(parts, " OR ")))
	}
	return filters
}

// SortFor maps the API sort parameter to a Meilisearch sort rule. Unknown
// values sort by relevance.
func SortFor(sortBy string) []string {
	switch sortBy {
	case "price_asc":
		return []string{"price:asc"}
	case "price_desc":
		return []string{"price:desc"}
	case "area_desc":
		return []string{"area:desc"}
	case "views_desc":
		return []string{"view_count:desc"}
	case "created_at", "newest":
		return []string{"created_at:desc"}
	default:
		return nil
	}
}

// FilterSearch performs a search with listing filters
func (s *SearchClient) FilterSearch(params FilterParams) (*SearchResult, error) {
	return s.AdvancedSearch(SearchRequest{
		Query:  params.Query,
		Limit:  params.Limit,
		Offset: params.Offset,
		Filter: BuildFilters(params),
		Sort:   SortFor(params.SortBy),
	})
}

func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
