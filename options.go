package rx

import (
	"io"
	"log/slog"
)

type config struct {
	scheduler    Scheduler
	log          *slog.Logger
	sourceErrors bool
	onEvent      func(Event)
}

// Option configures a combination built by [CombineLatest], [Combine]
// and the typed helpers.
type Option func(*config)

func defaultConfig() config {
	return config{
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func newConfig(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithScheduler defers the act of subscribing to each source through s.
// Subscription actions are submitted in source order; s decides when
// (and on which goroutine) they run. Only subscription initiation is
// scheduled: values are still handled on whatever goroutine the source
// pushes from.
//
// A nil s restores synchronous subscription.
func WithScheduler(s Scheduler) Option {
	return func(c *config) {
		c.scheduler = s
	}
}

// WithLogger sets the structured logger used for diagnostics.
// It panics if l is nil.
func WithLogger(l *slog.Logger) Option {
	if l == nil {
		panic("rx: WithLogger requires non-nil logger")
	}
	return func(c *config) {
		c.log = l
	}
}

// WithSourceErrors wraps every upstream error in a [*SourceError]
// carrying the failing source's index before it is forwarded
// downstream. Projection failures are never wrapped.
func WithSourceErrors() Option {
	return func(c *config) {
		c.sourceErrors = true
	}
}

// WithOnEvent registers a hook receiving an [Event] for every state
// change of every subscription to the combination.
//
// The hook is called synchronously. It may be called from several
// goroutines at once when the combination has several active
// subscriptions, or when Unsubscribe races with a source push, so it
// must be safe for concurrent use.
func WithOnEvent(fn func(Event)) Option {
	return func(c *config) {
		c.onEvent = fn
	}
}
