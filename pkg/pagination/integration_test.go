package pagination

import (
	"context"
	"testing"

	"github.com/Sternrassler/feedcache/internal/testutil"
	"github.com/Sternrassler/feedcache/pkg/feed"
	"github.com/Sternrassler/feedcache/pkg/wordpress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWordPressController(t *testing.T, mock *testutil.MockWordPress, pageSize int) *Controller {
	t.Helper()

	cfg := wordpress.DefaultConfig(mock.URL(), "feedcache-test/1.0")
	cfg.RequestsPerSecond = 0
	client, err := wordpress.New(cfg)
	require.NoError(t, err)

	ctrlCfg := DefaultConfig()
	ctrlCfg.PageSize = pageSize
	ctrl, _ := newTestController(t, client, ctrlCfg)
	return ctrl
}

func TestIntegration_PaginateWordPressFeed(t *testing.T) {
	mock := testutil.NewMockWordPress()
	defer mock.Close()

	mock.AddPosts(testutil.GeneratePosts(1, 5, 7)...)
	for id := 1; id <= 5; id++ {
		if id == 3 {
			continue // media 1003 missing
		}
		mock.SetMedia(1000+id, testutil.AuxURL(1000+id))
	}

	ctrl := newWordPressController(t, mock, 2)
	ctx := context.Background()

	require.NoError(t, ctrl.LoadFirstPage(ctx, feed.NoFilter(), false))
	require.NoError(t, ctrl.LoadMore(ctx))
	require.NoError(t, ctrl.LoadMore(ctx))
	require.NoError(t, ctrl.LoadMore(ctx)) // page 4 is past the end
	ctrl.Wait()

	state := ctrl.Snapshot()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, itemIDs(state.Items))
	assert.Equal(t, "Post 1", state.Items[0].Title)
	assert.False(t, state.CanLoadMore)
	assert.Equal(t, 4, state.CurrentPage)
	assert.NoError(t, state.LastError)
	assert.Equal(t, []int{1, 2, 4, 5}, auxIDs(state.AuxURLs))

	// Cached first page avoids the network
	before := mock.GetPathCount("/wp-json/wp/v2/posts")
	require.NoError(t, ctrl.LoadFirstPage(ctx, feed.NoFilter(), false))
	assert.Equal(t, before, mock.GetPathCount("/wp-json/wp/v2/posts"))
}

func TestIntegration_CategoryAndSearchFilters(t *testing.T) {
	mock := testutil.NewMockWordPress()
	defer mock.Close()

	mock.AddPosts(testutil.GeneratePosts(1, 3, 7)...)
	mock.AddPosts(testutil.GeneratePosts(10, 2, 9)...)
	mock.AddCategory(7, "Tech", "tech", 3)
	mock.AddCategory(9, "Travel", "travel", 2)

	ctrl := newWordPressController(t, mock, 10)
	ctx := context.Background()

	require.NoError(t, ctrl.SwitchFilter(ctx, feed.CategoryFilter(9)))
	assert.Equal(t, []int{10, 11}, itemIDs(ctrl.Snapshot().Items))

	require.NoError(t, ctrl.SwitchFilter(ctx, feed.SearchFilter("post 2")))
	assert.Equal(t, []int{2}, itemIDs(ctrl.Snapshot().Items))

	cats, err := ctrl.Categories(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []feed.Category{
		{ID: 7, Name: "Tech", Slug: "tech", ItemCount: 3},
		{ID: 9, Name: "Travel", Slug: "travel", ItemCount: 2},
	}, cats)
}
