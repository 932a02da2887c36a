package cache

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// responseCache is a count-bounded LRU of serialized responses with a
// freshness window enforced on read and a retention window enforced by sweep.
// It is not safe for concurrent use; Manager serializes access.
type responseCache struct {
	lru       *simplelru.LRU[string, *ResponseEntry]
	freshness time.Duration
	retention time.Duration
	now       func() time.Time
}

func newResponseCache(maxEntries int, freshness, retention time.Duration, now func() time.Time) (*responseCache, error) {
	lru, err := simplelru.NewLRU[string, *ResponseEntry](maxEntries, nil)
	if err != nil {
		return nil, fmt.Errorf("create response lru: %w", err)
	}

	return &responseCache{
		lru:       lru,
		freshness: freshness,
		retention: retention,
		now:       now,
	}, nil
}

// put stores payload with StoredAt = now. It reports whether an older entry
// was evicted to stay within the count ceiling.
func (c *responseCache) put(key string, payload []byte) bool {
	return c.lru.Add(key, &ResponseEntry{
		Key:      key,
		Payload:  payload,
		StoredAt: c.now(),
	})
}

// get returns the payload only while the entry is fresh. An expired entry is
// removed and reported through expired.
func (c *responseCache) get(key string) (payload []byte, ok bool, expired bool) {
	e, found := c.lru.Peek(key)
	if !found {
		return nil, false, false
	}

	if !e.IsFresh(c.now(), c.freshness) {
		c.lru.Remove(key)
		return nil, false, true
	}

	// Touch to mark most recently used
	c.lru.Get(key)
	return e.Payload, true, false
}

func (c *responseCache) remove(key string) bool {
	return c.lru.Remove(key)
}

// sweepExpired removes every entry older than the retention window.
func (c *responseCache) sweepExpired() int {
	now := c.now()
	removed := 0

	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if ok && e.IsStale(now, c.retention) {
			c.lru.Remove(key)
			removed++
		}
	}

	return removed
}

func (c *responseCache) clear() {
	c.lru.Purge()
}

func (c *responseCache) len() int {
	return c.lru.Len()
}

func (c *responseCache) size() int64 {
	var total int64
	for _, e := range c.lru.Values() {
		total += int64(len(e.Payload))
	}
	return total
}
