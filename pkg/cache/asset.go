package cache

import (
	"fmt"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// assetCache is a count- and size-bounded LRU of binary blobs.
// It is not safe for concurrent use; Manager serializes access.
type assetCache struct {
	lru      *simplelru.LRU[string, *AssetEntry]
	maxBytes int64
	bytes    int64
}

func newAssetCache(maxEntries int, maxBytes int64) (*assetCache, error) {
	c := &assetCache{maxBytes: maxBytes}

	lru, err := simplelru.NewLRU[string, *AssetEntry](maxEntries, func(_ string, e *AssetEntry) {
		c.bytes -= e.Size
	})
	if err != nil {
		return nil, fmt.Errorf("create asset lru: %w", err)
	}
	c.lru = lru

	return c, nil
}

// put stores blob under key, evicting least-recently-used entries until both
// ceilings hold. It returns the number of entries evicted and false if the
// blob alone exceeds the byte ceiling (nothing is stored then).
func (c *assetCache) put(key string, blob []byte) (evicted int, stored bool) {
	size := int64(len(blob))
	if size > c.maxBytes {
		return 0, false
	}

	// Overwrite: drop the previous version so its size is released first
	c.lru.Remove(key)

	for c.bytes+size > c.maxBytes {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			break
		}
		evicted++
	}

	if c.lru.Add(key, &AssetEntry{Key: key, Blob: blob, Size: size}) {
		evicted++
	}
	c.bytes += size

	return evicted, true
}

// get returns the blob and marks it most recently used.
func (c *assetCache) get(key string) ([]byte, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return e.Blob, true
}

func (c *assetCache) clear() {
	c.lru.Purge()
	c.bytes = 0
}

func (c *assetCache) len() int {
	return c.lru.Len()
}

func (c *assetCache) size() int64 {
	return c.bytes
}
