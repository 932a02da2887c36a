// Package ratelimit paces outgoing feed requests with a token bucket and
// honours server-requested pauses (Retry-After on 429 and 503 responses).
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MaxPause caps a server-requested pause.
const MaxPause = 5 * time.Minute

// State is the limiter's view of server-requested back-off.
type State struct {
	// PausedUntil is when requests may resume (zero when not paused).
	PausedUntil time.Time

	// LastUpdate is when the pause was last set.
	LastUpdate time.Time
}

// IsPaused reports whether requests are currently held back.
func (s State) IsPaused(now time.Time) bool {
	return now.Before(s.PausedUntil)
}

// TimeUntilResume returns how long requests stay paused.
// Returns 0 if not paused.
func (s State) TimeUntilResume(now time.Time) time.Duration {
	d := s.PausedUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// ParseRetryAfter parses a Retry-After header value given either as delay
// seconds or as an HTTP date. The result is capped at MaxPause.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	var d time.Duration
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(value); err == nil {
		d = at.Sub(now)
		if d < 0 {
			d = 0
		}
	} else {
		return 0, false
	}

	if d > MaxPause {
		d = MaxPause
	}
	return d, true
}
