package ratelimit

import (
	"net/http"
	"testing"
	"time"
)

func TestState_IsPaused(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		pausedUntil time.Time
		wantPaused  bool
		wantResume  time.Duration
	}{
		{name: "never paused", pausedUntil: time.Time{}, wantPaused: false, wantResume: 0},
		{name: "pause elapsed", pausedUntil: now.Add(-time.Second), wantPaused: false, wantResume: 0},
		{name: "paused", pausedUntil: now.Add(30 * time.Second), wantPaused: true, wantResume: 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := State{PausedUntil: tt.pausedUntil}
			if got := s.IsPaused(now); got != tt.wantPaused {
				t.Errorf("IsPaused() = %v, want %v", got, tt.wantPaused)
			}
			if got := s.TimeUntilResume(now); got != tt.wantResume {
				t.Errorf("TimeUntilResume() = %v, want %v", got, tt.wantResume)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		value  string
		want   time.Duration
		wantOK bool
	}{
		{name: "seconds", value: "120", want: 2 * time.Minute, wantOK: true},
		{name: "padded seconds", value: " 5 ", want: 5 * time.Second, wantOK: true},
		{name: "http date", value: now.Add(90 * time.Second).Format(http.TimeFormat), want: 90 * time.Second, wantOK: true},
		{name: "date in the past", value: now.Add(-time.Minute).Format(http.TimeFormat), want: 0, wantOK: true},
		{name: "capped", value: "86400", want: MaxPause, wantOK: true},
		{name: "empty", value: "", want: 0, wantOK: false},
		{name: "negative", value: "-3", want: 0, wantOK: false},
		{name: "garbage", value: "soon", want: 0, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseRetryAfter(tt.value, now)
			if ok != tt.wantOK {
				t.Fatalf("ParseRetryAfter(%q) ok = %v, want %v", tt.value, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ParseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
