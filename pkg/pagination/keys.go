package pagination

import (
	"encoding/json"
	"strconv"

	"github.com/Sternrassler/feedcache/pkg/cache"
	"github.com/Sternrassler/feedcache/pkg/feed"
)

// categoriesKey is the response cache key of the category list.
var categoriesKey = cache.CacheKey{Resource: "categories"}

// pageKey maps a filter and page to its response cache key.
func pageKey(filter feed.Filter, page int) cache.CacheKey {
	switch filter.Kind {
	case feed.FilterCategory:
		return cache.CacheKey{Resource: "category", Selector: strconv.Itoa(filter.CategoryID), Page: page}
	case feed.FilterSearch:
		return cache.CacheKey{Resource: "search", Selector: filter.Query, Page: page}
	default:
		return cache.CacheKey{Resource: "posts", Page: page}
	}
}

func encodeItems(items []feed.Item) ([]byte, error) {
	return json.Marshal(items)
}

func decodeItems(key cache.CacheKey, payload []byte) ([]feed.Item, error) {
	var items []feed.Item
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, &feed.DecodeError{Endpoint: key.String(), Err: err}
	}
	return items, nil
}
