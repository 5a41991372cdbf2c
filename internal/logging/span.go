package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/friendgraph/backend"

// Span pairs an OpenTelemetry span with a logger carrying its identifiers.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
	inner  trace.Span
}

// StartSpan starts a child span of whatever span ctx carries and enriches the
// context logger with trace metadata. Without a registered tracer provider the
// identifiers are random UUIDs so log lines can still be correlated.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	parentSpanID := SpanIDFromContext(ctx)
	ctx, otelSpan := otel.Tracer(tracerName).Start(ctx, name)

	logger := FromContext(ctx)

	traceID, spanID := TraceIDFromContext(ctx), uuid.NewString()
	if sc := otelSpan.SpanContext(); sc.IsValid() {
		traceID, spanID = sc.TraceID().String(), sc.SpanID().String()
	}
	if traceID == "" {
		traceID = uuid.NewString()
	}
	if traceID != TraceIDFromContext(ctx) {
		ctx = withString(ctx, traceIDKey, traceID)
		logger = logger.With(slog.String("trace_id", traceID))
	}

	logger = logger.With(
		slog.String("span_id", spanID),
		slog.String("span_name", name),
	)
	if parentSpanID != "" {
		logger = logger.With(slog.String("parent_span_id", parentSpanID))
	}

	ctx = WithLogger(ctx, logger)
	ctx = withString(ctx, spanIDKey, spanID)

	return ctx, &Span{name: name, logger: logger, start: time.Now(), inner: otelSpan}
}

// RecordError marks the span as failed.
func (s *Span) RecordError(err error) {
	if s == nil || err == nil {
		return
	}
	s.inner.RecordError(err)
	s.inner.SetStatus(codes.Error, err.Error())
}

// End finalizes the span and emits a completion log entry.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.inner.End()
	s.logger.Debug("span completed", slog.Duration("duration", time.Since(s.start)))
}
