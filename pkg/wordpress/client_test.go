package wordpress

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/feedcache/internal/testutil"
	"github.com/Sternrassler/feedcache/pkg/feed"
)

const (
	testUserAgent = "feedcache-test/1.0 (test@example.com)"
	postsPath     = "/wp-json/wp/v2/posts"
)

func newTestClient(t *testing.T, mock *testutil.MockWordPress) *Client {
	t.Helper()

	cfg := DefaultConfig(mock.URL(), testUserAgent)
	cfg.RequestsPerSecond = 0
	cfg.RetryPolicy = fastRetry
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid config",
			config: DefaultConfig("https://example.com/wp-json/wp/v2", testUserAgent),
		},
		{
			name:        "empty base url",
			config:      DefaultConfig("", testUserAgent),
			expectError: true,
			errorMsg:    "base url is required",
		},
		{
			name:        "relative base url",
			config:      DefaultConfig("/wp-json/wp/v2", testUserAgent),
			expectError: true,
			errorMsg:    `invalid base url "/wp-json/wp/v2"`,
		},
		{
			name:        "empty user agent",
			config:      DefaultConfig("https://example.com/wp-json/wp/v2", ""),
			expectError: true,
			errorMsg:    "user-agent is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Fatalf("Expected error but got nil")
				}
				if err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client == nil {
				t.Error("Expected client but got nil")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("https://example.com/wp-json/wp/v2", testUserAgent)

	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.RequestTimeout)
	}
	if cfg.RequestsPerSecond != 5 {
		t.Errorf("RequestsPerSecond = %v, want 5", cfg.RequestsPerSecond)
	}
	if cfg.Burst != 10 {
		t.Errorf("Burst = %d, want 10", cfg.Burst)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   feed.ErrorClass
	}{
		{status: 400, want: feed.ErrorClassClient},
		{status: 404, want: feed.ErrorClassClient},
		{status: 429, want: feed.ErrorClassRateLimit},
		{status: 500, want: feed.ErrorClassServer},
		{status: 503, want: feed.ErrorClassServer},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestFetchPage(t *testing.T) {
	mock := testutil.NewMockWordPress()
	defer mock.Close()
	mock.AddPosts(testutil.GeneratePosts(1, 5, 7)...)

	client := newTestClient(t, mock)
	items, err := client.FetchPage(context.Background(), feed.NoFilter(), 2, 2)
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].ID != 3 || items[1].ID != 4 {
		t.Errorf("ids = %d,%d, want 3,4", items[0].ID, items[1].ID)
	}
	if items[0].Title != "Post 3" {
		t.Errorf("Title = %q, want %q", items[0].Title, "Post 3")
	}
	if items[0].AuxiliaryResourceID != 1003 {
		t.Errorf("AuxiliaryResourceID = %d, want 1003", items[0].AuxiliaryResourceID)
	}
}

func TestFetchPage_QueryParameters(t *testing.T) {
	mock := testutil.NewMockWordPress()
	defer mock.Close()

	var lastQuery atomic.Value
	mock.SetHandler(postsPath, func(w http.ResponseWriter, r *http.Request) {
		lastQuery.Store(r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})

	client := newTestClient(t, mock)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter feed.Filter
		key    string
		value  string
	}{
		{name: "category", filter: feed.CategoryFilter(7), key: "categories", value: "7"},
		{name: "search", filter: feed.SearchFilter("go & rust"), key: "search", value: "go & rust"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := client.FetchPage(ctx, tt.filter, 3, 20); err != nil {
				t.Fatalf("FetchPage failed: %v", err)
			}
			q := lastQuery.Load().(url.Values)
			if got := q[tt.key]; len(got) != 1 || got[0] != tt.value {
				t.Errorf("%s = %v, want %q", tt.key, got, tt.value)
			}
			if got := q["page"]; len(got) != 1 || got[0] != "3" {
				t.Errorf("page = %v, want 3", got)
			}
			if got := q["per_page"]; len(got) != 1 || got[0] != "20" {
				t.Errorf("per_page = %v, want 20", got)
			}
		})
	}
}

func TestFetchPage_PastEndIsEmpty(t *testing.T) {
	mock := testutil.NewMockWordPress()
	defer mock.Close()
	mock.AddPosts(testutil.GeneratePosts(1, 2, 7)...)

	client := newTestClient(t, mock)
	items, err := client.FetchPage(context.Background(), feed.NoFilter(), 5, 2)
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("items = %v, want empty non-nil slice", items)
	}
}

func TestFetchPage_InvalidPage(t *testing.T) {
	client, err := New(DefaultConfig("https://example.com/wp-json/wp/v2", testUserAgent))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := client.FetchPage(context.Background(), feed.NoFilter(), 0, 10); err == nil {
		t.Error("Expected error for page 0")
	}
}

func TestFetchPage_DecodeError(t *testing.T) {
	mock := testutil.NewMockWordPress()
	defer mock.Close()
	mock.SetResponse(postsPath, testutil.MockResponse{StatusCode: http.StatusOK, Body: `{"not":"a list"}`})

	client := newTestClient(t, mock)
	_, err := client.FetchPage(context.Background(), feed.NoFilter(), 1, 10)

	var decodeErr *feed.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Expected DecodeError, got %v", err)
	}
	if decodeErr.Endpoint != "posts" {
		t.Errorf("Endpoint = %q, want posts", decodeErr.Endpoint)
	}
}

func TestResolveAuxiliaryResource(t *testing.T) {
	mock := testutil.NewMockWordPress()
	defer mock.Close()
	mock.SetMedia(42, "https://cdn.example.com/42.jpg")
	mock.SetHandler("/wp-json/wp/v2/media/43", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":43,"source_url":""}`))
	})

	client := newTestClient(t, mock)
	ctx := context.Background()

	res, err := client.ResolveAuxiliaryResource(ctx, 42)
	if err != nil {
		t.Fatalf("ResolveAuxiliaryResource failed: %v", err)
	}
	if res.ID != 42 || res.ResolvedURL != "https://cdn.example.com/42.jpg" {
		t.Errorf("res = %+v", res)
	}

	for _, id := range []int{43, 99} {
		_, err := client.ResolveAuxiliaryResource(ctx, id)
		if !feed.IsNotFound(err) {
			t.Errorf("id %d: expected NotFoundError, got %v", id, err)
		}
	}
}

func TestFetchCategories(t *testing.T) {
	mock := testutil.NewMockWordPress()
	defer mock.Close()
	mock.AddCategory(7, "Tech", "tech", 12)

	client := newTestClient(t, mock)
	cats, err := client.FetchCategories(context.Background())
	if err != nil {
		t.Fatalf("FetchCategories failed: %v", err)
	}

	want := feed.Category{ID: 7, Name: "Tech", Slug: "tech", ItemCount: 12}
	if len(cats) != 1 || cats[0] != want {
		t.Errorf("cats = %+v, want [%+v]", cats, want)
	}
}

func TestFetchAsset(t *testing.T) {
	mock := testutil.NewMockWordPress()
	defer mock.Close()
	mock.SetAsset("thumb.png", []byte{0x89, 'P', 'N', 'G'})

	client := newTestClient(t, mock)
	data, err := client.FetchAsset(context.Background(), mock.AssetURL("thumb.png"))
	if err != nil {
		t.Fatalf("FetchAsset failed: %v", err)
	}
	if string(data) != "\x89PNG" {
		t.Errorf("data = %q", data)
	}

	_, err = client.FetchAsset(context.Background(), mock.AssetURL("missing.png"))
	if feed.ClassOf(err) != feed.ErrorClassClient {
		t.Errorf("Expected client error, got %v", err)
	}
}

func TestGet_UserAgentSet(t *testing.T) {
	mock := testutil.NewMockWordPress()
	defer mock.Close()

	client := newTestClient(t, mock)
	if _, err := client.FetchCategories(context.Background()); err != nil {
		t.Fatalf("FetchCategories failed: %v", err)
	}

	header := mock.GetLastRequestHeader()
	if got := header.Get("User-Agent"); got != testUserAgent {
		t.Errorf("User-Agent = %q, want %q", got, testUserAgent)
	}
	if got := header.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q, want application/json", got)
	}
}

func TestGet_RetryOnServerError(t *testing.T) {
	mock := testutil.NewMockWordPress()
	defer mock.Close()

	var calls atomic.Int32
	mock.SetHandler(postsPath, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[{"id":1,"title":{"rendered":"One"}}]`))
	})

	client := newTestClient(t, mock)
	items, err := client.FetchPage(context.Background(), feed.NoFilter(), 1, 10)
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if len(items) != 1 || items[0].Title != "One" {
		t.Errorf("items = %+v", items)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestGet_NoRetryOnClientError(t *testing.T) {
	mock := testutil.NewMockWordPress()
	defer mock.Close()
	mock.SetResponse(postsPath, testutil.MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       `{"code":"rest_invalid_param","message":"Invalid parameter(s): per_page"}`,
	})

	client := newTestClient(t, mock)
	_, err := client.FetchPage(context.Background(), feed.NoFilter(), 1, 1000)

	var te *feed.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Expected TransportError, got %v", err)
	}
	if te.StatusCode != http.StatusBadRequest || te.Class != feed.ErrorClassClient {
		t.Errorf("te = %+v", te)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "rest_invalid_param" {
		t.Errorf("Expected APIError rest_invalid_param, got %v", err)
	}
	if got := mock.GetPathCount(postsPath); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}

func TestGet_RetryExhausted(t *testing.T) {
	mock := testutil.NewMockWordPress()
	defer mock.Close()
	mock.SetResponse(postsPath, testutil.NewServerErrorResponse())

	client := newTestClient(t, mock)
	_, err := client.FetchPage(context.Background(), feed.NoFilter(), 1, 10)

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	if feed.ClassOf(err) != feed.ErrorClassServer {
		t.Errorf("ClassOf = %q, want server", feed.ClassOf(err))
	}
	if got := mock.GetPathCount(postsPath); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}
}

func TestGet_CancelledContextIsNetworkError(t *testing.T) {
	mock := testutil.NewMockWordPress()
	defer mock.Close()
	mock.SetResponse(postsPath, testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `[]`,
		Delay:      200 * time.Millisecond,
	})

	client := newTestClient(t, mock)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.FetchPage(ctx, feed.NoFilter(), 1, 10)
	if feed.ClassOf(err) != feed.ErrorClassNetwork {
		t.Fatalf("ClassOf = %q, want network (err: %v)", feed.ClassOf(err), err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded in chain, got %v", err)
	}
	if got := mock.GetPathCount(postsPath); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}

func TestGet_RateLimitPausesLimiter(t *testing.T) {
	mock := testutil.NewMockWordPress()
	defer mock.Close()
	mock.SetResponse(postsPath, testutil.NewRateLimitResponse("30"))

	cfg := DefaultConfig(mock.URL(), testUserAgent)
	cfg.RequestsPerSecond = 0
	cfg.RetryPolicy = func(feed.ErrorClass) RetryConfig { return RetryConfig{MaxAttempts: 1} }
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = client.FetchPage(context.Background(), feed.NoFilter(), 1, 10)
	if feed.ClassOf(err) != feed.ErrorClassRateLimit {
		t.Fatalf("Expected rate limit error, got %v", err)
	}

	state := client.limiter.State()
	if !state.IsPaused(time.Now()) {
		t.Error("Expected limiter to be paused after 429")
	}
	if remaining := state.TimeUntilResume(time.Now()); remaining < 25*time.Second || remaining > 30*time.Second {
		t.Errorf("TimeUntilResume = %v, want ~30s", remaining)
	}

	// Requests while paused fail fast when the caller's deadline is shorter
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.FetchPage(ctx, feed.NoFilter(), 1, 10)
	if err == nil {
		t.Fatal("Expected error while paused")
	}
	if feed.ClassOf(err) != feed.ErrorClassNetwork {
		t.Errorf("ClassOf = %q, want network", feed.ClassOf(err))
	}
}
