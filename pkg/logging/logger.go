// Package logging configures zerolog for the zensuite binaries and tests.
// Library packages never reach for a global logger; they take a
// zerolog.Logger through their constructors and options. Setup wires the
// process-wide logger for binaries that want one logger everywhere.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel names a minimum severity. The zero value behaves like LevelInfo.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// zerologLevel maps the level name onto zerolog's scale. Unknown names fall
// back to info: a binary with a typo in LOG_LEVEL should still come up.
func (l LogLevel) zerologLevel() zerolog.Level {
	switch strings.ToLower(string(l)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level that gets written.
	Level LogLevel

	// Pretty switches from JSON lines to human-readable console output.
	Pretty bool

	// Output receives the log stream. Defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the production settings: info-level JSON on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup builds the root logger from cfg and installs it as the process-wide
// logger, so NewLogger and zerolog/log derive from it.
func Setup(cfg Config) zerolog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	out := cfg.Output
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	level := cfg.Level.zerologLevel()
	zerolog.SetGlobalLevel(level)

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// NewLogger derives a component-tagged child of the process-wide logger.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Level conventions across the module:
//
//	debug: per-operation detail. Cache hits and misses with key and TTL,
//	       cursor resolution, page application, no-op fetches, mutation
//	       state transitions.
//	info:  lifecycle events. Refresh cycles, fetches that recover after
//	       a retry, server start and stop.
//	warn:  degraded but still operating. Retry attempts, breaker state
//	       changes, cache errors falling back to a direct fetch, stale
//	       results discarded after a refresh.
//	error: needs attention. Fetches that exhaust their retries,
//	       unreachable feeds, invalid configuration.
//
// Common context fields: query (controller name), cell (mutation cell
// name), endpoint, status, error_class (client, server, rate_limit,
// network, decode), pages, items, has_next.
