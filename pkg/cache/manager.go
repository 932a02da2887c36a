package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache or is no longer fresh
	ErrCacheMiss = errors.New("cache miss")
)

// Default cache bounds.
const (
	DefaultMaxEntries           = 100
	DefaultMaxAssetBytes        = 100 * 1024 * 1024 // 100 MiB
	DefaultFreshnessWindow      = 1 * time.Hour
	DefaultStaleRetentionWindow = 24 * time.Hour
)

// Config holds cache bounds.
type Config struct {
	// MaxAssetEntries is the asset count ceiling
	MaxAssetEntries int

	// MaxAssetBytes is the cumulative asset size ceiling
	MaxAssetBytes int64

	// MaxResponseEntries is the response count ceiling
	MaxResponseEntries int

	// FreshnessWindow is how long a response is served without a network call
	FreshnessWindow time.Duration

	// StaleRetentionWindow is how long a response is kept before a sweep removes it
	StaleRetentionWindow time.Duration

	// Now returns the current time (default: time.Now)
	Now func() time.Time

	Logger *zerolog.Logger
}

// DefaultConfig returns the default cache bounds.
func DefaultConfig() Config {
	return Config{
		MaxAssetEntries:      DefaultMaxEntries,
		MaxAssetBytes:        DefaultMaxAssetBytes,
		MaxResponseEntries:   DefaultMaxEntries,
		FreshnessWindow:      DefaultFreshnessWindow,
		StaleRetentionWindow: DefaultStaleRetentionWindow,
		Now:                  time.Now,
	}
}

// Stats is a point-in-time view of both caches.
type Stats struct {
	ResponseEntries int
	ResponseBytes   int64
	AssetEntries    int
	AssetBytes      int64
	MaxAssetEntries int
	MaxAssetBytes   int64
}

// Manager owns the response cache and the asset cache and serializes every
// operation on either of them behind one lock. It is the only way to reach
// the caches.
type Manager struct {
	mu        sync.Mutex
	responses *responseCache
	assets    *assetCache
	config    Config
	logger    zerolog.Logger
}

// NewManager creates a cache manager. Zero fields of cfg take their defaults.
func NewManager(cfg Config) (*Manager, error) {
	def := DefaultConfig()
	if cfg.MaxAssetEntries <= 0 {
		cfg.MaxAssetEntries = def.MaxAssetEntries
	}
	if cfg.MaxAssetBytes <= 0 {
		cfg.MaxAssetBytes = def.MaxAssetBytes
	}
	if cfg.MaxResponseEntries <= 0 {
		cfg.MaxResponseEntries = def.MaxResponseEntries
	}
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = def.FreshnessWindow
	}
	if cfg.StaleRetentionWindow <= 0 {
		cfg.StaleRetentionWindow = def.StaleRetentionWindow
	}
	if cfg.StaleRetentionWindow < cfg.FreshnessWindow {
		return nil, fmt.Errorf("stale retention window (%s) must not be shorter than freshness window (%s)",
			cfg.StaleRetentionWindow, cfg.FreshnessWindow)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	logger := log.With().Str("component", "feed-cache").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	responses, err := newResponseCache(cfg.MaxResponseEntries, cfg.FreshnessWindow, cfg.StaleRetentionWindow, cfg.Now)
	if err != nil {
		return nil, err
	}
	assets, err := newAssetCache(cfg.MaxAssetEntries, cfg.MaxAssetBytes)
	if err != nil {
		return nil, err
	}

	return &Manager{
		responses: responses,
		assets:    assets,
		config:    cfg,
		logger:    logger,
	}, nil
}

// GetResponse returns a fresh cached payload.
// Returns ErrCacheMiss if the key doesn't exist or the entry is no longer fresh;
// an expired entry is removed on the way.
func (m *Manager) GetResponse(key CacheKey) ([]byte, error) {
	cacheKey := key.String()

	m.mu.Lock()
	defer m.mu.Unlock()

	payload, ok, expired := m.responses.get(cacheKey)
	if expired {
		CacheEvictions.WithLabelValues(labelResponse, "expired").Inc()
		m.observeResponses()
		m.logger.Debug().Str("cache_key", cacheKey).Msg("Response expired")
	}
	if !ok {
		CacheMisses.WithLabelValues(labelResponse).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(labelResponse).Inc()
	m.logger.Debug().Str("cache_key", cacheKey).Msg("Response cache hit")
	return payload, nil
}

// SetResponse stores payload under key, stamped with the current time.
func (m *Manager) SetResponse(key CacheKey, payload []byte) {
	cacheKey := key.String()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.responses.put(cacheKey, payload) {
		CacheEvictions.WithLabelValues(labelResponse, "capacity").Inc()
	}
	m.observeResponses()

	m.logger.Debug().
		Str("cache_key", cacheKey).
		Int("bytes", len(payload)).
		Msg("Cached response")
}

// DeleteResponse removes a response entry.
func (m *Manager) DeleteResponse(key CacheKey) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.responses.remove(key.String())
	m.observeResponses()
}

// GetAsset returns a cached asset by its source URL and marks it most recently used.
// Returns ErrCacheMiss if the asset is not cached.
func (m *Manager) GetAsset(url string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	blob, ok := m.assets.get(url)
	if !ok {
		CacheMisses.WithLabelValues(labelAsset).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(labelAsset).Inc()
	return blob, nil
}

// SetAsset stores an asset under its source URL, evicting least recently used
// assets as needed. An asset larger than the byte ceiling is not stored.
func (m *Manager) SetAsset(url string, blob []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted, stored := m.assets.put(url, blob)
	if !stored {
		m.logger.Debug().
			Str("cache_key", url).
			Int("bytes", len(blob)).
			Int64("max_bytes", m.config.MaxAssetBytes).
			Msg("Asset larger than cache, not stored")
		return
	}
	if evicted > 0 {
		CacheEvictions.WithLabelValues(labelAsset, "capacity").Add(float64(evicted))
		m.logger.Debug().Str("cache_key", url).Int("evicted", evicted).Msg("Evicted assets")
	}
	m.observeAssets()
}

// SweepExpired removes every response older than the stale retention window
// and returns how many were removed.
func (m *Manager) SweepExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := m.responses.sweepExpired()
	if removed > 0 {
		CacheEvictions.WithLabelValues(labelResponse, "sweep").Add(float64(removed))
		m.observeResponses()
		m.logger.Info().Int("removed", removed).Msg("Swept stale responses")
	}
	return removed
}

// StartSweeper runs SweepExpired every interval until ctx is done.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.SweepExpired()
			}
		}
	}()
}

// ClearAll removes every response and asset.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.responses.clear()
	m.assets.clear()
	m.observeResponses()
	m.observeAssets()
	m.logger.Info().Msg("Cleared all caches")
}

// ClearAssetsOnly removes every asset.
func (m *Manager) ClearAssetsOnly() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.assets.clear()
	m.observeAssets()
	m.logger.Info().Msg("Cleared asset cache")
}

// ClearResponsesOnly removes every response.
func (m *Manager) ClearResponsesOnly() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.responses.clear()
	m.observeResponses()
	m.logger.Info().Msg("Cleared response cache")
}

// Stats returns the current entry counts and sizes.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Stats{
		ResponseEntries: m.responses.len(),
		ResponseBytes:   m.responses.size(),
		AssetEntries:    m.assets.len(),
		AssetBytes:      m.assets.size(),
		MaxAssetEntries: m.config.MaxAssetEntries,
		MaxAssetBytes:   m.config.MaxAssetBytes,
	}
}

// observeResponses and observeAssets must be called with mu held.
func (m *Manager) observeResponses() {
	CacheEntries.WithLabelValues(labelResponse).Set(float64(m.responses.len()))
	CacheSize.WithLabelValues(labelResponse).Set(float64(m.responses.size()))
}

func (m *Manager) observeAssets() {
	CacheEntries.WithLabelValues(labelAsset).Set(float64(m.assets.len()))
	CacheSize.WithLabelValues(labelAsset).Set(float64(m.assets.size()))
}
