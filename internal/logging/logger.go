package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithSyncPass returns a logger with sync-pass context fields attached.
// Use this for all logging within a single sync pass.
func WithSyncPass(passID, sourceType string) *slog.Logger {
	return slog.With(
		"pass_id", passID,
		"source", sourceType,
	)
}

// WithCategory returns a logger scoped to one content category within a pass.
func WithCategory(logger *slog.Logger, category string) *slog.Logger {
	return logger.With("category", category)
}
