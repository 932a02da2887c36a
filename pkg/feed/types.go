// Package feed defines the content model of a paginated article feed and the
// contracts the cache and pagination layers expect from a transport.
package feed

import (
	"context"
	"fmt"
	"strconv"
)

// DefaultPageSize is the number of items requested per page.
const DefaultPageSize = 20

// Item is one article of the feed. Items are immutable once fetched.
type Item struct {
	ID          int    `json:"id"`
	PublishedAt string `json:"published_at"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Excerpt     string `json:"excerpt"`

	// AuxiliaryResourceID identifies the item's thumbnail (0 = none).
	AuxiliaryResourceID int `json:"auxiliary_resource_id,omitempty"`
}

// HasAuxiliaryResource reports whether the item references a thumbnail.
func (i Item) HasAuxiliaryResource() bool {
	return i.AuxiliaryResourceID > 0
}

// Category is a feed category. Categories are refetched wholesale.
type Category struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	ItemCount int    `json:"item_count"`
}

// AuxResource is a resolved auxiliary resource.
type AuxResource struct {
	ID          int    `json:"id"`
	ResolvedURL string `json:"resolved_url"`
}

// FilterKind selects how a page of the feed is narrowed.
type FilterKind int

const (
	// FilterNone is the default feed.
	FilterNone FilterKind = iota
	// FilterCategory restricts the feed to one category.
	FilterCategory
	// FilterSearch restricts the feed to a search query.
	FilterSearch
)

// Filter is the selection criterion for a feed page.
// The zero value is the unfiltered feed.
type Filter struct {
	Kind       FilterKind
	CategoryID int
	Query      string
}

// NoFilter returns the unfiltered feed selection.
func NoFilter() Filter {
	return Filter{}
}

// CategoryFilter selects the items of one category.
func CategoryFilter(id int) Filter {
	return Filter{Kind: FilterCategory, CategoryID: id}
}

// SearchFilter selects the items matching a search query.
func SearchFilter(query string) Filter {
	return Filter{Kind: FilterSearch, Query: query}
}

// String returns a short human-readable description used in logs.
func (f Filter) String() string {
	switch f.Kind {
	case FilterCategory:
		return "category:" + strconv.Itoa(f.CategoryID)
	case FilterSearch:
		return fmt.Sprintf("search:%q", f.Query)
	default:
		return "none"
	}
}

// Gateway fetches feed content. Implementations own transport, decoding and
// timeouts; every failure is returned as an error.
type Gateway interface {
	// FetchPage returns the items of page (1-based) under filter.
	// An empty slice means the page is past the end of the feed.
	FetchPage(ctx context.Context, filter Filter, page, pageSize int) ([]Item, error)

	// ResolveAuxiliaryResource resolves an item's auxiliary resource id.
	ResolveAuxiliaryResource(ctx context.Context, id int) (AuxResource, error)

	// FetchCategories returns every category of the feed.
	FetchCategories(ctx context.Context) ([]Category, error)
}

// AssetFetcher downloads raw asset bytes by URL.
type AssetFetcher interface {
	FetchAsset(ctx context.Context, url string) ([]byte, error)
}
