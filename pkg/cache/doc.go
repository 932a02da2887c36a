// Package cache provides the process-lifetime response and asset caches of
// the feed client.
//
// Two caches live behind a single Manager:
//
// - Response cache: serialized feed pages keyed by a deterministic CacheKey,
// served only while fresh (1 hour), removed by SweepExpired once older than
// the stale retention window (24 hours), bounded to 100 entries (LRU)
// - Asset cache: binary assets keyed by source URL, bounded to 100 entries
// and 100 MiB, least recently used evicted first, no TTL
//
// Every Manager operation runs under one lock, so a Clear never interleaves
// with an in-flight Set.
//
// # Basic Usage
//
//	manager, err := cache.NewManager(cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//
//	key := cache.CacheKey{Resource: "posts", Page: 1}
//
//	payload, err := manager.GetResponse(key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - fetch from the feed, then:
//		manager.SetResponse(key, encoded)
//	}
//
// # Maintenance
//
//	manager.StartSweeper(ctx, 10*time.Minute)
//	manager.ClearAssetsOnly()
//
// # Metrics
//
//   - feed_cache_hits_total{cache} - Cache hits
//   - feed_cache_misses_total{cache} - Cache misses
//   - feed_cache_evictions_total{cache,reason} - Removed entries
//   - feed_cache_entries{cache} - Current entry count
//   - feed_cache_size_bytes{cache} - Current size
package cache
