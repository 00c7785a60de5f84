// Package logger provides slog.Logger constructors for the library and
// its consumers: a colored development handler, a JSON handler for
// production, and a discard handler for unit tests.
package logger

import (
	"context"
	"log/slog"
	"os"

	"github.com/golang-cz/devslog"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

type Level string
type Provider string
type contextKeyT string

var contextKey = contextKeyT("github.com/pure-golang/mailconn/logger")

const (
	INFO  Level = "info"
	ERROR Level = "error"
	WARN  Level = "warn"
	DEBUG Level = "debug"

	ProviderDev     Provider = "dev"      // colored output for development
	ProviderStdJson Provider = "std_json" // for production
	ProviderNoop    Provider = "noop"     // for unit tests
)

type Config struct {
	Provider Provider `envconfig:"LOG_PROVIDER" default:"std_json"`
	Level    Level    `envconfig:"LOG_LEVEL" default:"info"`
}

// New creates an slog.Logger for the configured provider.
func New(c Config) *slog.Logger {
	level := convertLevel(c.Level)
	switch c.Provider {
	case ProviderDev:
		return newDev(level)
	case ProviderNoop:
		return NewNoop()
	case ProviderStdJson:
		fallthrough
	default:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
}

// InitDefault creates a logger and installs it as the process default,
// routing otel errors through it as well.
func InitDefault(c Config) {
	slog.SetDefault(New(c))
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		slog.Default().Error(err.Error())
	}))
}

// NewNoop returns a logger that discards everything.
func NewNoop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewContext packs l into ctx.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey, l)
}

// FromContext extracts the logger from ctx, or returns the default.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey).(*slog.Logger); ok {
		return l
	}

	return slog.Default()
}

// WithErr returns the default logger with the error attached, including a
// stack trace when err carries one.
func WithErr(err error) *slog.Logger {
	return appendErr(slog.Default(), err)
}

func appendErr(l *slog.Logger, err error) *slog.Logger {
	var stackTracer interface {
		StackTrace() errors.StackTrace
	}

	if errors.As(err, &stackTracer) {
		l = l.With("stack", stackTracer.StackTrace())
	}

	return l.With("error", err.Error())
}

func newDev(level slog.Level) *slog.Logger {
	opts := &devslog.Options{
		HandlerOptions: &slog.HandlerOptions{
			AddSource: true,
			Level:     level,
		},
		NewLineAfterLog:   true,
		SortKeys:          true,
		TimeFormat:        "[15:04:05]",
		StringerFormatter: true,
	}

	return slog.New(devslog.NewHandler(os.Stdout, opts))
}

func convertLevel(level Level) slog.Level {
	switch level {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
