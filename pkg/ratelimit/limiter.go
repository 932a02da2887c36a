package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request pacing.
var (
	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_rate_limit_waits_total",
		Help: "Total number of requests delayed by the client-side rate limiter",
	})

	rateLimitPausesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_rate_limit_pauses_total",
		Help: "Total number of server-requested pauses (Retry-After)",
	})
)

// Limiter gates outgoing requests.
type Limiter struct {
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu    sync.Mutex
	state State
	now   func() time.Time
}

// NewLimiter creates a limiter allowing requestsPerSecond with the given
// burst. A non-positive rate disables pacing (pauses still apply).
func NewLimiter(requestsPerSecond float64, burst int, logger zerolog.Logger) *Limiter {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	if burst <= 0 {
		burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
		now:     time.Now,
	}
}

// Wait blocks until a request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if pause := l.State().TimeUntilResume(l.now()); pause > 0 {
		l.logger.Debug().Dur("pause", pause).Msg("Waiting for server-requested pause")
		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limit pause: %w", ctx.Err())
		case <-timer.C:
		}
	}

	if l.limiter.Limit() != rate.Inf && l.limiter.Tokens() < 1 {
		rateLimitWaitsTotal.Inc()
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// UpdateFromResponse pauses the limiter when the server answered 429 or 503
// with a Retry-After header. It returns the pause applied.
func (l *Limiter) UpdateFromResponse(statusCode int, headers http.Header) time.Duration {
	if statusCode != http.StatusTooManyRequests && statusCode != http.StatusServiceUnavailable {
		return 0
	}

	now := l.now()
	pause, ok := ParseRetryAfter(headers.Get("Retry-After"), now)
	if !ok || pause == 0 {
		return 0
	}

	l.mu.Lock()
	until := now.Add(pause)
	if until.After(l.state.PausedUntil) {
		l.state.PausedUntil = until
	}
	l.state.LastUpdate = now
	l.mu.Unlock()

	rateLimitPausesTotal.Inc()
	l.logger.Warn().
		Int("status", statusCode).
		Dur("pause", pause).
		Msg("Server requested pause")

	return pause
}

// State returns the current pause state.
func (l *Limiter) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}
