package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache label values.
const (
	labelResponse = "response"
	labelAsset    = "asset"
)

var (
	// CacheHits tracks cache hits by cache (response, asset)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_cache_hits_total",
			Help: "Total number of feed cache hits",
		},
		[]string{"cache"},
	)

	// CacheMisses tracks cache misses by cache
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_cache_misses_total",
			Help: "Total number of feed cache misses",
		},
		[]string{"cache"},
	)

	// CacheEvictions tracks removed entries by cache and reason
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_cache_evictions_total",
			Help: "Total number of entries removed from the feed cache",
		},
		[]string{"cache", "reason"}, // "capacity", "expired", "sweep"
	)

	// CacheEntries tracks the current number of entries by cache
	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feed_cache_entries",
			Help: "Current number of entries in the feed cache",
		},
		[]string{"cache"},
	)

	// CacheSize tracks the current logical size in bytes by cache
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feed_cache_size_bytes",
			Help: "Current size of the feed cache in bytes",
		},
		[]string{"cache"},
	)
)
