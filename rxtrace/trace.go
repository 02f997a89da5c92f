// Package rxtrace wraps rx observables in OpenTelemetry spans: one span
// per subscription, from Subscribe to the terminal event or Unsubscribe.
package rxtrace

import (
	"context"
	"sync"

	"github.com/baxromumarov/rx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTracerName = "github.com/baxromumarov/rx"

// Attribute keys recorded on every span.
const (
	AttrValues       = attribute.Key("rx.values")
	AttrUnsubscribed = attribute.Key("rx.unsubscribed")
)

type config struct {
	tracer trace.Tracer
	attrs  []attribute.KeyValue
}

// Option configures [Trace].
type Option func(*config)

// WithTracer sets the tracer. The default is the global provider's
// tracer named after this module.
func WithTracer(t trace.Tracer) Option {
	return func(c *config) {
		c.tracer = t
	}
}

// WithAttributes adds attributes to every span.
func WithAttributes(attrs ...attribute.KeyValue) Option {
	return func(c *config) {
		c.attrs = append(c.attrs, attrs...)
	}
}

// Trace returns an Observable that behaves exactly like obs but records a
// span named name for each subscription, parented on ctx. The span ends
// with status Ok on completion, Error on failure, and Unset with
// rx.unsubscribed=true when cancelled first.
func Trace[T any](ctx context.Context, obs rx.Observable[T], name string, opts ...Option) rx.Observable[T] {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(defaultTracerName)
	}

	return rx.FuncObservable[T](func(o rx.Observer[T]) rx.Subscription {
		_, span := cfg.tracer.Start(ctx, name, trace.WithAttributes(cfg.attrs...))
		t := &tracedObserver[T]{next: o, span: span}

		sub := obs.Subscribe(t)
		return rx.NewSubscription(func() {
			sub.Unsubscribe()
			t.end(func(span trace.Span) {
				span.SetAttributes(AttrUnsubscribed.Bool(true))
			})
		})
	})
}

type tracedObserver[T any] struct {
	next rx.Observer[T]

	mu     sync.Mutex
	span   trace.Span
	values int64
	ended  bool
}

// Next forwards v unless the span has already ended, so a source that
// keeps pushing after its terminal event or a cancellation is not
// counted or passed on.
func (t *tracedObserver[T]) Next(v T) {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		return
	}
	t.values++
	t.mu.Unlock()
	t.next.Next(v)
}

func (t *tracedObserver[T]) Error(err error) {
	t.end(func(span trace.Span) {
		if err == nil {
			span.SetStatus(codes.Error, "")
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	})
	t.next.Error(err)
}

func (t *tracedObserver[T]) Complete() {
	t.end(func(span trace.Span) {
		span.SetStatus(codes.Ok, "")
	})
	t.next.Complete()
}

// end finishes the span once, letting fn annotate it first.
func (t *tracedObserver[T]) end(fn func(trace.Span)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended {
		return
	}
	t.ended = true
	fn(t.span)
	t.span.SetAttributes(AttrValues.Int64(t.values))
	t.span.End()
}
