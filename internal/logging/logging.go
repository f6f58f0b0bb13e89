package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger initialises an slog.Logger with the provided level and format
// ("text" or "json") strings.
func NewLogger(levelStr, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(levelStr)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLevel(levelStr string) slog.Leveler {
	switch strings.ToLower(levelStr) {
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
