package internal

import (
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/log"
)

// NewLogger builds the process logger. JSON goes through slog's own handler;
// text is rendered by charmbracelet/log, which implements slog.Handler.
func NewLogger(w io.Writer, cfg ApplicationConfig) *slog.Logger {
	if cfg.LogFormat == LogFormatText {
		return slog.New(log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
			Level:           log.Level(cfg.LogLevel),
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
}
