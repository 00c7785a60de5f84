package smtp

import (
	"log/slog"
)

// newLogger returns a logger with the "smtp" group.
func newLogger(base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.WithGroup("smtp")
}
