package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide logger. Production runs log JSON at info;
// everything else gets text at debug so local request traces stay readable.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true, Level: slog.LevelDebug}
	if cfg != nil && cfg.IsProduction() {
		opts.Level = slog.LevelInfo
	}

	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
