package apm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/prediction-amm/internal/apperror"
)

// Span is the subset of an otel span the engine and API record on.
type Span interface {
	SetAttributes(values ...attribute.KeyValue)
	NoticeError(err error)
	End(options ...trace.SpanEndOption)
	TraceID() string
}

// Tracer starts spans for one instrumentation scope.
type Tracer interface {
	StartSpanFromContext(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, Span)
}

type openTracer struct {
	tracer trace.Tracer
}

// NewTracer resolves the tracer from the global provider at call time, so
// spans follow whatever provider NewTraceProvider installed.
func NewTracer(name string) Tracer {
	return &openTracer{otel.Tracer(name)}
}

func (t *openTracer) StartSpanFromContext(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, opts...)
	return ctx, &traceSpan{span}
}

type traceSpan struct {
	span trace.Span
}

func (t *traceSpan) SetAttributes(values ...attribute.KeyValue) {
	t.span.SetAttributes(values...)
}

// NoticeError records err and marks the span failed. Application errors
// also tag the span with their code.
func (t *traceSpan) NoticeError(err error) {
	if err == nil {
		return
	}
	if apperror.IsAppError(err) {
		t.span.SetAttributes(attribute.String("error.code", string(apperror.GetCode(err))))
	}
	t.span.RecordError(err)
	t.span.SetStatus(codes.Error, err.Error())
}

func (t *traceSpan) End(options ...trace.SpanEndOption) {
	t.span.End(options...)
}

// TraceID is empty when the span is not sampled by a real provider.
func (t *traceSpan) TraceID() string {
	if sc := t.span.SpanContext(); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// emptyTraceProvider keeps the global no-op tracer.
type emptyTraceProvider struct{}

// NewEmptyTraceProvider returns a provider whose Stop does nothing.
func NewEmptyTraceProvider() TraceProvider {
	return emptyTraceProvider{}
}

func (emptyTraceProvider) Stop() error {
	return nil
}
