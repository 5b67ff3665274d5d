// Package logging configures the zerolog logger shared by the GitHub client,
// the pagination engine and the ghkit commands.
//
// Levels are used as follows:
//
//   - debug: page fetches, pagination stops, cache hits and ETags
//   - info: 304 revalidations, server start and stop
//   - warn: requests held by the rate limit buffer, cache failures that
//     fall back to a plain request
//   - error: failed requests and bad configuration
//
// Events carry these fields where they apply: endpoint, resource,
// status_code, duration, error_class, from_cache, remaining, mode, page,
// stop_reason, etag and ttl.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is the minimum severity written.
type LogLevel string

// Supported levels.
const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

var zerologLevels = map[LogLevel]zerolog.Level{
	LevelDebug: zerolog.DebugLevel,
	LevelInfo:  zerolog.InfoLevel,
	LevelWarn:  zerolog.WarnLevel,
	LevelError: zerolog.ErrorLevel,
}

// Config holds logger configuration.
type Config struct {
	Level LogLevel

	// Pretty writes colored console lines instead of JSON
	Pretty bool

	// Output defaults to os.Stderr
	Output io.Writer
}

// DefaultConfig logs JSON at info level to stderr.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Output: os.Stderr}
}

// Setup installs the global logger described by cfg and returns it.
// Unknown levels fall back to info.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(cfg.Level.zerolog())

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return log.Logger
}

// ParseLevel validates a level name from flags or configuration.
// An empty name selects LevelInfo; "warning" is accepted for warn.
func ParseLevel(name string) (LogLevel, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "":
		return LevelInfo, nil
	case "warning":
		return LevelWarn, nil
	}
	if _, ok := zerologLevels[LogLevel(name)]; !ok {
		return "", fmt.Errorf("unknown log level %q", name)
	}
	return LogLevel(name), nil
}

func (l LogLevel) zerolog() zerolog.Level {
	if level, err := ParseLevel(string(l)); err == nil {
		return zerologLevels[level]
	}
	return zerolog.InfoLevel
}

// NewLogger derives a logger from the global one tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
