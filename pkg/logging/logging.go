// Package logging builds the structured loggers used across the control plane.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/forgegames/platform/pkg/config"
)

// New creates a configured slog.Logger bound to a component name.
func New(component string, cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	writer := createWriter(cfg)

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	return slog.New(handler).With("component", component)
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func createWriter(cfg config.LoggingConfig) io.Writer {
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		return os.Stderr
	case "file":
		if cfg.File == nil {
			fmt.Fprintln(os.Stderr, "logging: file output requested without file config, using stdout")
			return os.Stdout
		}
		if err := os.MkdirAll(cfg.File.Directory, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "logging: failed to create log directory: %v, using stdout\n", err)
			return os.Stdout
		}
		return &lumberjack.Logger{
			Filename:   filepath.Join(cfg.File.Directory, cfg.File.Filename),
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxFiles,
			MaxAge:     cfg.File.MaxAgeDay,
			Compress:   cfg.File.Compress,
		}
	case "stdout", "":
		return os.Stdout
	default:
		fmt.Fprintf(os.Stderr, "logging: unknown output %q, using stdout\n", cfg.Output)
		return os.Stdout
	}
}
