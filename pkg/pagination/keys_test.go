package pagination

import (
	"testing"

	"github.com/Sternrassler/feedcache/pkg/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageKey(t *testing.T) {
	tests := []struct {
		name   string
		filter feed.Filter
		page   int
		want   string
	}{
		{name: "unfiltered", filter: feed.NoFilter(), page: 1, want: "posts_page_1"},
		{name: "category", filter: feed.CategoryFilter(7), page: 3, want: "category_7_page_3"},
		{name: "search", filter: feed.SearchFilter("go concurrency"), page: 1, want: "search_go+concurrency_page_1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pageKey(tt.filter, tt.page).String())
		})
	}
}

func TestDecodeItems(t *testing.T) {
	key := pageKey(feed.NoFilter(), 1)
	items := []feed.Item{{ID: 1, Title: "One", AuxiliaryResourceID: 5}}

	payload, err := encodeItems(items)
	require.NoError(t, err)

	decoded, err := decodeItems(key, payload)
	require.NoError(t, err)
	assert.Equal(t, items, decoded)

	_, err = decodeItems(key, []byte("[{"))
	var decodeErr *feed.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "posts_page_1", decodeErr.Endpoint)
}
