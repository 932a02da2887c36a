package wordpress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/feedcache/pkg/feed"
)

// fastRetry keeps test backoffs in the millisecond range.
func fastRetry(feed.ErrorClass) RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func classified(class feed.ErrorClass) error {
	return &feed.TransportError{Endpoint: "posts", Class: class, Err: errors.New("failure")}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", config.MaxAttempts)
	}
	if config.InitialBackoff != 1*time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", config.InitialBackoff)
	}
	if config.MaxBackoff != 30*time.Second {
		t.Errorf("MaxBackoff = %v, want 30s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestRetryConfigForErrorClass(t *testing.T) {
	tests := []struct {
		name            string
		errorClass      feed.ErrorClass
		expectedInitial time.Duration
		expectedMax     time.Duration
	}{
		{name: "server error config", errorClass: feed.ErrorClassServer, expectedInitial: 1 * time.Second, expectedMax: 10 * time.Second},
		{name: "rate limit config", errorClass: feed.ErrorClassRateLimit, expectedInitial: 5 * time.Second, expectedMax: 60 * time.Second},
		{name: "network error config", errorClass: feed.ErrorClassNetwork, expectedInitial: 2 * time.Second, expectedMax: 30 * time.Second},
		{name: "unknown error class uses default", errorClass: "", expectedInitial: 1 * time.Second, expectedMax: 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := RetryConfigForErrorClass(tt.errorClass)

			if config.InitialBackoff != tt.expectedInitial {
				t.Errorf("InitialBackoff = %v, want %v", config.InitialBackoff, tt.expectedInitial)
			}
			if config.MaxBackoff != tt.expectedMax {
				t.Errorf("MaxBackoff = %v, want %v", config.MaxBackoff, tt.expectedMax)
			}
			if config.MaxAttempts != 3 {
				t.Errorf("MaxAttempts = %d, want 3", config.MaxAttempts)
			}
		})
	}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetry, func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_SuccessAfterRetry(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetry, func() error {
		callCount++
		if callCount < 3 {
			return classified(feed.ErrorClassServer)
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_MaxAttemptsExhausted(t *testing.T) {
	callCount := 0
	testErr := classified(feed.ErrorClassNetwork)
	err := retryWithBackoff(context.Background(), fastRetry, func() error {
		callCount++
		return testErr
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	if !errors.Is(err, testErr) {
		t.Errorf("Expected wrapped last error, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_NoRetryForNonRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "client error", err: classified(feed.ErrorClassClient)},
		{name: "unclassified error", err: errors.New("plain")},
		{name: "decode error", err: &feed.DecodeError{Endpoint: "posts", Err: errors.New("bad json")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			callCount := 0
			err := retryWithBackoff(context.Background(), fastRetry, func() error {
				callCount++
				return tt.err
			})

			if !errors.Is(err, tt.err) {
				t.Errorf("Expected original error, got %v", err)
			}
			if callCount != 1 {
				t.Errorf("Expected 1 call, got %d", callCount)
			}
		})
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	slowPolicy := func(feed.ErrorClass) RetryConfig {
		return RetryConfig{MaxAttempts: 5, InitialBackoff: time.Second, MaxBackoff: time.Second, BackoffMultiplier: 2}
	}

	callCount := 0
	start := time.Now()
	err := retryWithBackoff(ctx, slowPolicy, func() error {
		callCount++
		cancel()
		return classified(feed.ErrorClassServer)
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("Cancellation should interrupt backoff, took %v", time.Since(start))
	}
}

func TestRetryWithBackoff_MaxBackoffCap(t *testing.T) {
	policy := func(feed.ErrorClass) RetryConfig {
		return RetryConfig{MaxAttempts: 4, InitialBackoff: 10 * time.Millisecond, MaxBackoff: 10 * time.Millisecond, BackoffMultiplier: 10}
	}

	start := time.Now()
	_ = retryWithBackoff(context.Background(), policy, func() error {
		return classified(feed.ErrorClassServer)
	})
	duration := time.Since(start)

	// Three backoffs of at most 12ms each (cap plus jitter)
	if duration > 200*time.Millisecond {
		t.Errorf("Backoff not capped, took %v", duration)
	}
}
