package rx

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// Scheduler defers work. Schedule must eventually invoke action exactly
// once; no ordering between different actions is required.
type Scheduler interface {
	Schedule(action func())
}

// SchedulerFunc adapts a function to [Scheduler].
type SchedulerFunc func(action func())

// Schedule calls f(action).
func (f SchedulerFunc) Schedule(action func()) {
	f(action)
}

// Immediate runs every action synchronously on the calling goroutine.
var Immediate Scheduler = SchedulerFunc(func(action func()) { action() })

// GoScheduler runs each action on its own goroutine, optionally bounding
// how many run at once. Panics in actions are recovered and returned by
// [GoScheduler.Wait].
type GoScheduler struct {
	slots chan struct{}
	log   *slog.Logger
	wg    *conc.WaitGroup

	errMu sync.Mutex
	errs  []error
}

// SchedulerOption configures a [GoScheduler].
type SchedulerOption func(*schedulerConfig)

type schedulerConfig struct {
	limit int
	log   *slog.Logger
}

// WithLimit sets the maximum number of actions executing at once.
// Actions beyond the limit wait for a slot on their own goroutine, so
// Schedule never blocks.
//
// A limit of zero (the default) means unlimited.
// WithLimit panics if n is negative.
func WithLimit(n int) SchedulerOption {
	if n < 0 {
		panic("rx: limit must be non-negative")
	}
	return func(c *schedulerConfig) {
		c.limit = n
	}
}

// WithSchedulerLogger sets the logger used to report recovered panics.
// It panics if l is nil.
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	if l == nil {
		panic("rx: WithSchedulerLogger requires non-nil logger")
	}
	return func(c *schedulerConfig) {
		c.log = l
	}
}

// NewGoScheduler returns a goroutine-per-action scheduler.
func NewGoScheduler(opts ...SchedulerOption) *GoScheduler {
	cfg := schedulerConfig{
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	g := &GoScheduler{log: cfg.log, wg: conc.NewWaitGroup()}
	if cfg.limit > 0 {
		g.slots = make(chan struct{}, cfg.limit)
	}
	return g
}

// Schedule starts action on a new goroutine.
func (g *GoScheduler) Schedule(action func()) {
	g.wg.Go(func() {
		if g.slots != nil {
			g.slots <- struct{}{}
			defer func() { <-g.slots }()
		}

		if err := runRecovered(action); err != nil {
			g.log.Warn("Scheduled action panicked", "err", err)
			g.errMu.Lock()
			g.errs = append(g.errs, err)
			g.errMu.Unlock()
		}
	})
}

// Wait blocks until every scheduled action has returned and reports the
// panics recovered so far, joined.
func (g *GoScheduler) Wait() error {
	g.wg.Wait()

	g.errMu.Lock()
	defer g.errMu.Unlock()
	return errors.Join(g.errs...)
}

// runRecovered calls fn, converting a panic into a *PanicError.
func runRecovered(fn func()) error {
	if r := panics.Try(fn); r != nil {
		return &PanicError{Value: r.Value, Stack: string(r.Stack)}
	}
	return nil
}
