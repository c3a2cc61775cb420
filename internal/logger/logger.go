package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/invoice-ledger/internal/config"
)

// NewLogger creates the JSON logger services write to stdout
func NewLogger(cfg *config.Config) *slog.Logger {
	return New(os.Stdout, cfg)
}

// New builds a JSON logger on w, tagged with the application name and environment
func New(w io.Writer, cfg *config.Config) *slog.Logger {
	level := ParseLevel(cfg.Logging.Level)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	logger := slog.New(slog.NewJSONHandler(w, opts))
	if cfg.Application.Name != "" {
		logger = logger.With("app", cfg.Application.Name, "env", cfg.Application.Env)
	}

	logger.Debug("logger initialized", "level", level)

	return logger
}

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
