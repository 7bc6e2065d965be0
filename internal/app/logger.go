package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide slog logger. LOG_FORMAT=json selects the
// JSON handler for log shippers; any other value falls back to the text
// handler for local runs. Source locations are attached either way so log
// lines in the auth and threat paths point back at the call site.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
