package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"donato/backend/internal/config"
)

// Cleanup closes whatever New opened.
type Cleanup func() error

// New builds the process logger. Output goes to stdout and, when cfg.File is set, is
// appended to that file as well.
func New(cfg config.LoggingConfig) (*slog.Logger, Cleanup, error) {
	writers := []io.Writer{os.Stdout}
	var file *os.File
	if cfg.File != "" {
		if dir := filepath.Dir(cfg.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, err
			}
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		file = f
		writers = append(writers, file)
	}

	logger := slog.New(newHandler(io.MultiWriter(writers...), cfg))
	cleanup := func() error {
		if file != nil {
			return file.Close()
		}
		return nil
	}
	return logger, cleanup, nil
}

// Discard returns a logger that drops everything. cmd/reconcile uses it for -quiet.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHandler(w io.Writer, cfg config.LoggingConfig) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: true,
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
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
