// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Levels lists the accepted level names.
var Levels = []string{"debug", "info", "warn", "warning", "error"}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// Service is attached to every entry as "service" when non-empty.
	Service string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.Kitchen}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()

	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to zerolog.Level. Unknown names map to info.
func ParseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// NewLoggerPtr is NewLogger for configs that take a *zerolog.Logger.
func NewLoggerPtr(component string) *zerolog.Logger {
	logger := NewLogger(component)
	return &logger
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss/expired, cache_key, age)
//   - Gateway request flow (endpoint, url)
//   - Resolution batch progress
//
// Info: Normal operation events
//   - Pages loaded (source cache or gateway)
//   - End of feed reached
//   - Filter switches superseding a load
//   - Cache clears and sweeps
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Page load failures (stale items kept, page rolled back)
//   - Auxiliary resource resolution failures (per item)
//   - Retry attempts exhausted, rate limit pauses
//   - Undecodable cache entries
//
// Error: Error conditions requiring attention
//   - Server failures
//   - Configuration errors
//
// Context Fields:
//   - component: emitting package (cache, pagination, wordpress-client, ...)
//   - filter: active feed filter
//   - page: requested page number
//   - generation: pagination generation token
//   - batch_id: resolution batch id
//   - item_id / aux_id: item and auxiliary resource ids
//   - cache_key: response or asset cache key
//   - endpoint, status, error_class: gateway request details
//   - duration: operation duration
