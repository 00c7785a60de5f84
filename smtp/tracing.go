package smtp

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/pure-golang/mailconn/smtp")

// startSpan creates a client span with the session's connection attributes.
func startSpan(ctx context.Context, operation string, cfg Config) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("smtp.host", cfg.Server),
		attribute.Int("smtp.port", cfg.Port),
		attribute.Bool("smtp.ssl", cfg.UseSSL),
		attribute.Bool("smtp.starttls", cfg.UseTLS),
		attribute.Bool("smtp.suppressed", cfg.SuppressSend),
	}
	return tracer.Start(ctx, "smtp."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...))
}

// recordError records err on the span, or marks the span ok when err is nil.
func recordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
}
