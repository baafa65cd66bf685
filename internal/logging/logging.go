// Package logging builds the slog logger from configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/idilsaglam/itemwatch/internal/config"
)

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// New returns a logger writing to w in the configured format.
func New(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), nil
}

// Open builds a logger for cfg. Output goes to cfg.File when set, else to
// fallback; an empty fallback path means stderr. The returned closer is
// always non-nil.
func Open(cfg config.LogConfig, fallback string) (*slog.Logger, io.Closer, error) {
	path := cfg.File
	if path == "" {
		path = fallback
	}
	if path == "" {
		l, err := New(os.Stderr, cfg)
		return l, nopCloser{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	l, err := New(f, cfg)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return l, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
