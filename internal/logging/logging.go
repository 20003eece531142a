// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/voltline/j1939-console/internal/config"
)

// EnvVarLogLevel overrides the configured level when set.
const EnvVarLogLevel = "LOG_LEVEL"

// New builds a structured logger from cfg. When cfg.File is set, output goes
// to a size-rotated file instead of stderr. The returned closer must be
// called on shutdown to flush the rotated file.
func New(cfg config.LogConfig, module, version string) (*slog.Logger, io.Closer) {
	level := cfg.Level
	if v := os.Getenv(EnvVarLogLevel); v != "" {
		level = v
	}
	lev := ParseLevel(level)

	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		out = rotated
		closer = rotated
	}

	opts := &slog.HandlerOptions{
		Level:     lev,
		AddSource: lev <= slog.LevelDebug,
	}

	var handler slog.Handler
	if cfg.Format == config.LogFormatText {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return slog.New(handler).With("module", module, "version", version), closer
}

// Setup builds the logger, installs it as the slog default and routes the
// standard log package (used by chi's request logger) through it.
func Setup(cfg config.LogConfig, module, version string) io.Closer {
	logger, closer := New(cfg, module, version)
	slog.SetDefault(logger)
	log.SetFlags(0)
	return closer
}

// ParseLevel converts a level name into a slog.Level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
