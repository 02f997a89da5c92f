package rx

import (
	"fmt"
)

// Config is the fully-resolved description of a combination.
type Config[T, R any] struct {
	// Sources are subscribed in order; a source's position is its index
	// in the values slice passed to Project.
	Sources []Observable[T]

	// Project maps the latest value of every source, in source order, to
	// the emitted value. The slice is only valid for the duration of the
	// call. A returned error fails the combination like an upstream
	// error would.
	Project func(values []T) (R, error)

	// Scheduler, when set, takes precedence over [WithScheduler].
	Scheduler Scheduler
}

// Combine returns an Observable that, once every source has produced at
// least one value, emits Project(latest values) each time any source
// pushes a value.
//
// The combination completes when every source has completed, or as soon
// as any source completes without ever having produced a value. It
// fails with the first error raised by a source or by Project. Each
// subscription to the returned Observable keeps its own independent
// state.
//
// Combine panics if Project is nil or any source is nil.
func Combine[T, R any](cfg Config[T, R], opts ...Option) Observable[R] {
	if cfg.Project == nil {
		panic("rx: Combine requires non-nil projection; use CombineLatest for the identity tuple")
	}
	for i, src := range cfg.Sources {
		if src == nil {
			panic(fmt.Sprintf("rx: source[%d] must not be nil", i))
		}
	}

	c := &combined[T, R]{
		sources: append([]Observable[T](nil), cfg.Sources...),
		project: cfg.Project,
		cfg:     newConfig(opts),
	}
	if cfg.Scheduler != nil {
		c.cfg.scheduler = cfg.Scheduler
	}
	return c
}

// CombineLatest combines sources with the identity projection: every
// emission is a fresh slice holding the latest value of each source in
// source order.
func CombineLatest[T any](sources []Observable[T], opts ...Option) Observable[[]T] {
	return Combine(Config[T, []T]{
		Sources: sources,
		Project: identity[T],
	}, opts...)
}

// CombineLatestFunc combines sources and maps each set of latest values
// through project.
func CombineLatestFunc[T, R any](
	sources []Observable[T],
	project func(values []T) (R, error),
	opts ...Option,
) Observable[R] {
	return Combine(Config[T, R]{
		Sources: sources,
		Project: project,
	}, opts...)
}

// identity copies values so downstream never aliases the latest slots.
func identity[T any](values []T) ([]T, error) {
	out := make([]T, len(values))
	copy(out, values)
	return out, nil
}

// combined is the Observable returned by Combine.
type combined[T, R any] struct {
	sources []Observable[T]
	project func([]T) (R, error)
	cfg     config
}

// Subscribe builds a fresh combination state for o and attaches one
// listener per source, in source order.
func (c *combined[T, R]) Subscribe(o Observer[R]) Subscription {
	if o == nil {
		panic("rx: Subscribe requires non-nil observer")
	}
	s := newCombineState(c, o)
	s.start()
	return s
}
