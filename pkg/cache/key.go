package cache

import (
	"net/url"
	"strconv"
	"strings"
)

// CacheKey identifies a cached feed response.
type CacheKey struct {
	// Resource is the logical resource (e.g., "posts", "category", "search", "categories")
	Resource string

	// Selector narrows the resource (category id or search query, "" for none)
	Selector string

	// Page is the 1-based page number (0 for unpaginated resources)
	Page int
}

// String generates a deterministic cache key string.
// Format: resource[_selector][_page_n]
//
// Examples:
//
//	posts_page_1
//	category_7_page_2
//	search_go+concurrency_page_1
//	categories
func (k CacheKey) String() string {
	parts := []string{k.Resource}

	// Escape the selector so a query containing spaces or separators stays unambiguous
	if k.Selector != "" {
		parts = append(parts, url.QueryEscape(k.Selector))
	}

	if k.Page > 0 {
		parts = append(parts, "page", strconv.Itoa(k.Page))
	}

	return strings.Join(parts, "_")
}
