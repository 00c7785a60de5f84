// Package tracing bootstraps the global OpenTelemetry tracer provider used
// by the smtp session spans.
package tracing

import (
	"io"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type Provider interface {
	trace.TracerProvider
	io.Closer
}

// ProviderBuilder wraps the construction details of a concrete provider.
type ProviderBuilder func() (Provider, error)

// Init installs the built provider globally. On builder failure a noop
// provider is installed instead, so tracing never blocks startup.
func Init(creator ProviderBuilder) (Provider, error) {
	provider, err := creator()
	if err != nil {
		provider = &NoopProvider{}
	} else {
		otel.SetTracerProvider(provider)
		otel.SetTextMapPropagator(propagation.TraceContext{})
	}

	return provider, errors.Wrap(err, "failed to load tracing provider")
}

type NoopProvider struct{ *tracesdk.TracerProvider }

func (NoopProvider) Close() error { return nil }
