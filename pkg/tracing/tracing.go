package tracing

import (
	"context"
	"sweer/pkg/apperr"
	"sweer/pkg/logg"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Span struct {
	span    trace.Span
	logger  *zap.Logger
	name    string
	started time.Time
}

func StartSpan(ctx context.Context, tracer trace.Tracer, logger *zap.Logger, name string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))

	return ctx, &Span{
		span:    span,
		logger:  logger,
		name:    name,
		started: time.Now(),
	}
}

// End closes the span. Errors are recorded together with their apperr code
// so that business failures can be told apart from driver failures.
func (s *Span) End(err error) {
	elapsed := time.Since(s.started)

	if err != nil {
		code := apperr.CodeOf(err)
		s.span.SetAttributes(attribute.String("error.code", code))
		s.span.SetStatus(codes.Error, err.Error())
		s.span.RecordError(err)
		s.logger.Debug("Span failed",
			zap.String("span", s.name),
			zap.String(logg.Code, code),
			zap.Duration(logg.Duration, elapsed),
			zap.Error(err))
	} else {
		s.span.SetStatus(codes.Ok, "")
		s.logger.Debug("Span finished",
			zap.String("span", s.name),
			zap.Duration(logg.Duration, elapsed))
	}

	s.span.End()
}

func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

func (s *Span) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}
