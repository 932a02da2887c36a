// Package testutil provides testing utilities for the feed gateway and the
// pagination engine.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines a canned response for a mock endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockPost is a post served by MockWordPress.
type MockPost struct {
	ID            int
	Date          string
	Title         string
	Content       string
	CategoryID    int
	FeaturedMedia int
}

// MockWordPress is a configurable in-process WordPress REST server. Posts,
// media and categories are served from its fixture tables unless a path has
// a custom handler.
type MockWordPress struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	posts      []MockPost
	media      map[int]string
	categories []map[string]interface{}
	assets     map[string][]byte

	// Tracking
	RequestCount      int
	PathCounts        map[string]int
	LastRequestHeader http.Header
}

// NewMockWordPress creates and starts a mock server.
func NewMockWordPress() *MockWordPress {
	mock := &MockWordPress{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		media:      make(map[int]string),
		assets:     make(map[string][]byte),
		PathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.PathCounts[r.URL.Path]++
		mock.LastRequestHeader = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the REST root of the mock server.
func (m *MockWordPress) URL() string {
	return m.server.URL + "/wp-json/wp/v2"
}

// AssetURL returns the absolute URL under which an asset named name is served.
func (m *MockWordPress) AssetURL(name string) string {
	return m.server.URL + "/assets/" + name
}

// Close shuts down the mock server.
func (m *MockWordPress) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockWordPress) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.PathCounts = make(map[string]int)
	m.LastRequestHeader = nil
}

// AddPosts appends posts to the fixture table. Posts are served in the order added.
func (m *MockWordPress) AddPosts(posts ...MockPost) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = append(m.posts, posts...)
}

// SetMedia registers a media id with its source URL.
func (m *MockWordPress) SetMedia(id int, sourceURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.media[id] = sourceURL
}

// AddCategory registers a category.
func (m *MockWordPress) AddCategory(id int, name, slug string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories = append(m.categories, map[string]interface{}{
		"id": id, "name": name, "slug": slug, "count": count,
	})
}

// SetAsset registers raw bytes served under AssetURL(name).
func (m *MockWordPress) SetAsset(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[name] = data
}

// SetHandler sets a custom handler for a path relative to the server root,
// e.g. "/wp-json/wp/v2/posts".
func (m *MockWordPress) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a canned response for a path.
func (m *MockWordPress) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockWordPress) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPathCount returns the number of requests made to path.
func (m *MockWordPress) GetPathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PathCounts[path]
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockWordPress) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader.Clone()
}

func (m *MockWordPress) defaultHandler(w http.ResponseWriter, r *http.Request) {
	const root = "/wp-json/wp/v2"

	switch {
	case r.URL.Path == root+"/posts":
		m.servePosts(w, r)
	case strings.HasPrefix(r.URL.Path, root+"/media/"):
		m.serveMedia(w, strings.TrimPrefix(r.URL.Path, root+"/media/"))
	case r.URL.Path == root+"/categories":
		m.mu.RLock()
		cats := m.categories
		m.mu.RUnlock()
		if cats == nil {
			cats = []map[string]interface{}{}
		}
		writeJSON(w, http.StatusOK, cats)
	case strings.HasPrefix(r.URL.Path, "/assets/"):
		m.mu.RLock()
		data, ok := m.assets[strings.TrimPrefix(r.URL.Path, "/assets/")]
		m.mu.RUnlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(data)
	default:
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"code": "rest_no_route", "message": "No route was found matching the URL and request method.",
		})
	}
}

func (m *MockWordPress) servePosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := atoiDefault(q.Get("page"), 1)
	perPage := atoiDefault(q.Get("per_page"), 10)
	category := atoiDefault(q.Get("categories"), 0)
	search := strings.ToLower(q.Get("search"))

	m.mu.RLock()
	var matched []MockPost
	for _, p := range m.posts {
		if category != 0 && p.CategoryID != category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Title+" "+p.Content), search) {
			continue
		}
		matched = append(matched, p)
	}
	m.mu.RUnlock()

	start := (page - 1) * perPage
	if page < 1 || (start >= len(matched) && page > 1) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"code":    "rest_post_invalid_page_number",
			"message": "The page number requested is larger than the number of pages available.",
		})
		return
	}

	end := start + perPage
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]map[string]interface{}, 0, end-start)
	for _, p := range matched[start:end] {
		out = append(out, map[string]interface{}{
			"id":             p.ID,
			"date":           p.Date,
			"title":          map[string]string{"rendered": p.Title},
			"content":        map[string]string{"rendered": p.Content},
			"excerpt":        map[string]string{"rendered": ""},
			"featured_media": p.FeaturedMedia,
		})
	}
	w.Header().Set("X-WP-Total", strconv.Itoa(len(matched)))
	writeJSON(w, http.StatusOK, out)
}

func (m *MockWordPress) serveMedia(w http.ResponseWriter, rawID string) {
	id, err := strconv.Atoi(rawID)
	m.mu.RLock()
	src, ok := m.media[id]
	m.mu.RUnlock()
	if err != nil || !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"code": "rest_post_invalid_id", "message": "Invalid post ID.",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "source_url": src})
}

// GeneratePosts returns n posts with ids start..start+n-1, each featuring
// media id 1000+id.
func GeneratePosts(start, n, categoryID int) []MockPost {
	posts := make([]MockPost, 0, n)
	for id := start; id < start+n; id++ {
		posts = append(posts, MockPost{
			ID:            id,
			Date:          fmt.Sprintf("2026-01-%02dT10:00:00", id%28+1),
			Title:         fmt.Sprintf("Post %d", id),
			Content:       fmt.Sprintf("<p>Body of post %d</p>", id),
			CategoryID:    categoryID,
			FeaturedMedia: 1000 + id,
		})
	}
	return posts
}

// NewRateLimitResponse creates a 429 response with a Retry-After header.
func NewRateLimitResponse(retryAfter string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"code":"rest_too_many_requests","message":"Too many requests"}`,
		Headers: map[string]string{
			"Retry-After":  retryAfter,
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"code":"internal_server_error","message":"There has been a critical error on this website."}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func atoiDefault(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
