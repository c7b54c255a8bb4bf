package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/smallbiznis/valora-identity/internal/service"

// instrument carries the tracer and logger shared by every service.
type instrument struct {
	logger *zap.Logger
	tracer trace.Tracer
}

func newInstrument(logger *zap.Logger) instrument {
	return instrument{logger: logger, tracer: otel.Tracer(tracerName)}
}

func (i instrument) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if i.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return i.tracer.Start(ctx, name)
}

func (i instrument) audit(event string, attrs ...any) {
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for j := 0; j+1 < len(attrs); j += 2 {
		key, ok := attrs[j].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[j+1]))
	}
	i.log().Info("audit", fields...)
}

func (i instrument) log() *zap.Logger {
	if i.logger != nil {
		return i.logger
	}
	return zap.L()
}

// internal logs err with op context and returns the opaque internal error.
func (i instrument) internal(span trace.Span, op string, err error) error {
	span.RecordError(err)
	i.log().Error(op+" failed", zap.Error(err))
	return &Error{Kind: KindInternal, Message: InternalErrorMessage, Err: err}
}
