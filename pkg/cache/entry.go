package cache

import (
	"time"
)

// ResponseEntry is a serialized feed response held by the response cache.
type ResponseEntry struct {
	// Key is the cache key string
	Key string

	// Payload is the encoded response
	Payload []byte

	// StoredAt is when the entry was written
	StoredAt time.Time
}

// Age returns how long ago the entry was stored.
func (e *ResponseEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// IsFresh reports whether the entry may be served without a network call.
func (e *ResponseEntry) IsFresh(now time.Time, window time.Duration) bool {
	return e.Age(now) <= window
}

// IsStale reports whether the entry is past its retention window and may be swept.
func (e *ResponseEntry) IsStale(now time.Time, retention time.Duration) bool {
	return e.Age(now) > retention
}

// AssetEntry is a binary asset held by the asset cache.
type AssetEntry struct {
	Key  string
	Blob []byte

	// Size is the logical size counted against the byte ceiling
	Size int64
}
