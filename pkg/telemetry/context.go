package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry combines logging, tracing, metrics and events.
// Components accept a *Telemetry; every field may be nil.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config

	redis *RedisSink
}

type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(ctx context.Context, cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	t := &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}

	if cfg.Events.Enabled && cfg.Events.Redis != nil {
		sink, err := NewRedisSink(ctx, *cfg.Events.Redis, logger)
		if err != nil {
			return nil, err
		}
		sink.Attach(events, nil)
		t.redis = sink
	}

	return t, nil
}

// Nop returns a telemetry instance that records nothing.
func Nop() *Telemetry {
	return &Telemetry{Logger: NopLogger()}
}

// Log returns the logger, or a no-op logger.
func (t *Telemetry) Log() *Logger {
	if t == nil {
		return NopLogger()
	}
	return OrNop(t.Logger)
}

// M returns the metrics collector; nil is valid and records nothing.
func (t *Telemetry) M() *Metrics {
	if t == nil {
		return nil
	}
	return t.Metrics
}

// E returns the event publisher; nil is valid and drops events.
func (t *Telemetry) E() *EventPublisher {
	if t == nil {
		return nil
	}
	return t.Events
}

// T returns the tracer; nil is valid and starts no-op spans.
func (t *Telemetry) T() *Tracer {
	if t == nil {
		return nil
	}
	return t.Tracer
}

// RecentEvents returns up to n of the latest events kept by the redis sink, newest first.
// It returns nil when no sink is configured.
func (t *Telemetry) RecentEvents(ctx context.Context, n int64) ([]Event, error) {
	if t == nil || t.redis == nil {
		return nil, nil
	}
	return t.redis.Recent(ctx, n)
}

// WithContext adds the telemetry instance and its logger to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	return t.Log().WithContext(ctx)
}

// FromTelemetryContext retrieves the telemetry instance from the context, or nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown stops the event publisher, the redis sink and the tracer.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.Events.Shutdown(ctx); err != nil {
		return err
	}
	if t.redis != nil {
		if err := t.redis.Close(); err != nil {
			return err
		}
	}
	return t.Tracer.Shutdown(ctx)
}

// InstrumentedContext bundles a span, a logger and a timer for one operation.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation begins an instrumented operation with logging, tracing and timing.
func (t *Telemetry) StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	spanCtx, span := t.T().StartSpan(ctx, operation, attrs...)

	logger := t.Log().WithField("operation", operation)
	if span.SpanContext().IsValid() {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}

	return &InstrumentedContext{
		Ctx:    spanCtx,
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
	}
}

// End finishes the operation, recording success or failure on the span.
func (ic *InstrumentedContext) End(err error) {
	if ic.Span == nil {
		return
	}
	if err != nil {
		RecordError(ic.Span, err)
	} else {
		RecordSuccess(ic.Span)
	}
	ic.Span.End()
}
