package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/feedcache/pkg/assets"
	"github.com/Sternrassler/feedcache/pkg/cache"
	"github.com/Sternrassler/feedcache/pkg/feed"
	"github.com/Sternrassler/feedcache/pkg/metrics"
	"github.com/Sternrassler/feedcache/pkg/pagination"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// requestTimeout bounds a single page load issued through the HTTP API.
const requestTimeout = 30 * time.Second

// errAssetNotAllowed rejects asset URLs outside the site and the resolved
// thumbnails.
var errAssetNotAllowed = errors.New("asset url is not served by this proxy")

type server struct {
	controller *pagination.Controller
	cache      *cache.Manager
	loader     *assets.Loader
	assetHosts map[string]bool
	logger     zerolog.Logger
}

// newServer creates the HTTP API. Assets are proxied only from assetHosts and
// from thumbnail URLs the controller has resolved.
func newServer(controller *pagination.Controller, cacheManager *cache.Manager, loader *assets.Loader, assetHosts []string, logger zerolog.Logger) *server {
	hosts := make(map[string]bool, len(assetHosts))
	for _, host := range assetHosts {
		hosts[strings.ToLower(host)] = true
	}

	return &server{
		controller: controller,
		cache:      cacheManager,
		loader:     loader,
		assetHosts: hosts,
		logger:     logger,
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /feed", s.handleState)
	mux.HandleFunc("POST /feed/load", s.handleLoad)
	mux.HandleFunc("POST /feed/switch", s.handleSwitch)
	mux.HandleFunc("POST /feed/more", s.handleMore)
	mux.HandleFunc("GET /categories", s.handleCategories)
	mux.HandleFunc("GET /assets", s.handleAsset)

	mux.HandleFunc("GET /cache/stats", s.handleCacheStats)
	mux.HandleFunc("POST /cache/clear", s.handleCacheClear)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// stateView is the JSON form of a pagination snapshot.
type stateView struct {
	Items       []feed.Item    `json:"items"`
	Thumbnails  map[int]string `json:"thumbnails"`
	Filter      string         `json:"filter"`
	CurrentPage int            `json:"current_page"`
	CanLoadMore bool           `json:"can_load_more"`
	IsLoading   bool           `json:"is_loading"`
	LastError   string         `json:"last_error,omitempty"`
	Generation  uint64         `json:"generation"`
}

func viewOf(state pagination.State) stateView {
	v := stateView{
		Items:       state.Items,
		Thumbnails:  state.AuxURLs,
		Filter:      state.Filter.String(),
		CurrentPage: state.CurrentPage,
		CanLoadMore: state.CanLoadMore,
		IsLoading:   state.IsLoading,
		Generation:  state.Generation,
	}
	if v.Items == nil {
		v.Items = []feed.Item{}
	}
	if state.LastError != nil {
		v.LastError = state.LastError.Error()
	}
	return v
}

func (s *server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewOf(s.controller.Snapshot()))
}

func (s *server) handleLoad(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	s.respondToLoad(w, s.controller.LoadFirstPage(ctx, filter, refresh))
}

func (s *server) handleSwitch(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	s.respondToLoad(w, s.controller.SwitchFilter(ctx, filter))
}

func (s *server) handleMore(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	s.respondToLoad(w, s.controller.LoadMore(ctx))
}

// respondToLoad answers with the current snapshot. A failed load still
// returns the items that remain visible.
func (s *server) respondToLoad(w http.ResponseWriter, err error) {
	status := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, pagination.ErrLoadInProgress), errors.Is(err, pagination.ErrSuperseded):
		status = http.StatusConflict
	case errors.Is(err, pagination.ErrClosed):
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusBadGateway
	}
	if err != nil {
		s.logger.Warn().Err(err).Int("status", status).Msg("Feed load request failed")
	}
	writeJSON(w, status, viewOf(s.controller.Snapshot()))
}

func (s *server) handleCategories(w http.ResponseWriter, r *http.Request) {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	cats, err := s.controller.Categories(ctx, refresh)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *server) handleAsset(w http.ResponseWriter, r *http.Request) {
	assetURL := r.URL.Query().Get("url")
	if assetURL == "" {
		writeError(w, http.StatusBadRequest, errors.New("url parameter is required"))
		return
	}
	if !s.assetAllowed(assetURL) {
		s.logger.Warn().Str("url", assetURL).Msg("Rejected asset request")
		writeError(w, http.StatusForbidden, errAssetNotAllowed)
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	blob, err := s.loader.Load(ctx, assetURL)
	if err != nil {
		status := http.StatusBadGateway
		if feed.ClassOf(err) == feed.ErrorClassClient {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(blob))
	w.Header().Set("Content-Length", strconv.Itoa(len(blob)))
	w.WriteHeader(http.StatusOK)
	w.Write(blob)
}

// assetAllowed reports whether rawURL is an http(s) URL on one of the asset
// hosts or one of the currently resolved thumbnail URLs.
func (s *server) assetAllowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	if s.assetHosts[strings.ToLower(u.Host)] {
		return true
	}

	for _, resolved := range s.controller.Snapshot().AuxURLs {
		if resolved == rawURL {
			return true
		}
	}
	return false
}

// statsView is the JSON form of cache.Stats with human-readable sizes.
type statsView struct {
	ResponseEntries int    `json:"response_entries"`
	ResponseBytes   int64  `json:"response_bytes"`
	ResponseSize    string `json:"response_size"`
	AssetEntries    int    `json:"asset_entries"`
	AssetBytes      int64  `json:"asset_bytes"`
	AssetSize       string `json:"asset_size"`
	AssetCapacity   string `json:"asset_capacity"`
}

func statsViewOf(stats cache.Stats) statsView {
	return statsView{
		ResponseEntries: stats.ResponseEntries,
		ResponseBytes:   stats.ResponseBytes,
		ResponseSize:    humanize.IBytes(uint64(stats.ResponseBytes)),
		AssetEntries:    stats.AssetEntries,
		AssetBytes:      stats.AssetBytes,
		AssetSize:       humanize.IBytes(uint64(stats.AssetBytes)),
		AssetCapacity: fmt.Sprintf("%d entries / %s",
			stats.MaxAssetEntries, humanize.IBytes(uint64(stats.MaxAssetBytes))),
	}
}

func (s *server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsViewOf(s.cache.Stats()))
}

func (s *server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	switch scope := r.URL.Query().Get("scope"); scope {
	case "", "all":
		s.cache.ClearAll()
	case "assets":
		s.cache.ClearAssetsOnly()
	case "responses":
		s.cache.ClearResponsesOnly()
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown scope %q", scope))
		return
	}
	writeJSON(w, http.StatusOK, statsViewOf(s.cache.Stats()))
}

// filterFromQuery reads ?category=<id> or ?search=<query>; neither means no filter.
func filterFromQuery(r *http.Request) (feed.Filter, error) {
	q := r.URL.Query()
	category, search := q.Get("category"), q.Get("search")

	switch {
	case category != "" && search != "":
		return feed.Filter{}, errors.New("category and search are mutually exclusive")
	case category != "":
		id, err := strconv.Atoi(category)
		if err != nil || id <= 0 {
			return feed.Filter{}, fmt.Errorf("invalid category %q", category)
		}
		return feed.CategoryFilter(id), nil
	case search != "":
		return feed.SearchFilter(search), nil
	default:
		return feed.NoFilter(), nil
	}
}

func contextWithTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
