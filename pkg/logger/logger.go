package logger

import (
	"log/slog"
	"os"
)

// New creates a JSON structured logger that writes to stderr. Stdout is
// reserved for the tool protocol, so all diagnostics go to stderr.
func New() *slog.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler)
}
