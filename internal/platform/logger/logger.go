package logger

import (
	"log/slog"
	"os"
)

// New returns a structured JSON logger writing to stdout. Services receive it
// by injection; no package-level logger state.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
