// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
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

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level written to Output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// File is an optional log file path. The parent directory is created on demand
	// and the file is truncated on every run.
	File string

	// FileLevel is the minimum log level written to File (default: debug).
	FileLevel LogLevel
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:     LevelInfo,
		Pretty:    false,
		Output:    os.Stderr,
		FileLevel: LevelDebug,
	}
}

// Setup builds the root logger for one run. The returned closer releases the
// log file and must be called before exit; it is a no-op without a file.
// The zerolog global logger is left untouched; the handle is passed to each
// component explicitly.
func Setup(cfg Config) (zerolog.Logger, io.Closer, error) {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "2006-01-02 15:04:05"}
	}

	consoleLevel := parseLevel(cfg.Level)
	writers := []io.Writer{
		&zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: output},
			Level:  consoleLevel,
		},
	}
	minLevel := consoleLevel

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.Create(cfg.File)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
		}
		closer = f

		fileLevel := parseLevel(cfg.FileLevel)
		if cfg.FileLevel == "" {
			fileLevel = zerolog.DebugLevel
		}
		writers = append(writers, &zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: f},
			Level:  fileLevel,
		})
		if fileLevel < minLevel {
			minLevel = fileLevel
		}
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(minLevel).
		With().
		Timestamp().
		Logger()

	return logger, closer, nil
}

// ParseLevel reports whether s names a known level.
func ParseLevel(s string) (LogLevel, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return "", false
	}
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
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

// NewLogger derives a logger for the given component name.
func NewLogger(base zerolog.Logger, component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Individual requests (endpoint, key, status)
//   - Cache hit/miss
//   - Worker lifecycle
//   - Keys dropped by the skill join
//
// Info: Normal operation events
//   - Mode start/end banners
//   - Batch start, progress and completion
//   - Rows written and output location
//
// Warn: Warning conditions that don't prevent operation
//   - A single key failed (network or decode)
//   - Keys dropped by the skill join (count)
//   - Empty result, nothing written
//   - Cache errors (fallback to direct request)
//
// Error: Error conditions requiring attention
//   - Taxonomy could not be fetched or is malformed
//   - Sink write failures
//   - Configuration errors
//
// Context Fields:
//   - component: emitting package
//   - batch: fetch batch name (skills, salaries, jobs)
//   - key: job code or (job code, salary type) of one request
//   - endpoint: logical site endpoint (categories, job_card, cert_card, salary, search)
//   - status: HTTP status code
//   - duration: request or batch duration
//   - done/total: batch progress
