package rx

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// ErrPoolClosed is returned by [Pool.Submit] when the pool has been closed.
var ErrPoolClosed = errors.New("rx: pool is closed")

// Pool is a fixed-size worker pool. It implements [Scheduler], so it can
// carry the subscription actions of many combinations on a bounded set
// of goroutines.
type Pool struct {
	actions chan func()
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	closed  atomic.Bool
	log     *slog.Logger

	errMu sync.Mutex
	errs  []error

	// Observability counters.
	submitted atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
	inline    atomic.Int64
	inFlight  atomic.Int64
	workers   int
}

// PoolStats provides a point-in-time snapshot of pool activity.
type PoolStats struct {
	Submitted  int64 // actions queued to workers
	Completed  int64 // actions finished by workers
	Panicked   int64 // actions that panicked
	Inline     int64 // actions Schedule ran on the caller after Close
	InFlight   int64 // actions currently executing
	QueueDepth int   // actions waiting in the queue
	Workers    int   // worker count (fixed at creation)
}

// PoolOption configures a [Pool].
type PoolOption func(*poolConfig)

type poolConfig struct {
	queueSize       int
	log             *slog.Logger
	onMetrics       func(PoolStats)
	metricsInterval time.Duration
}

// WithQueueSize sets the action queue buffer size. Default is n * 2.
func WithQueueSize(size int) PoolOption {
	if size < 0 {
		panic("rx: WithQueueSize requires non-negative size")
	}
	return func(c *poolConfig) {
		c.queueSize = size
	}
}

// WithPoolLogger sets the logger used to report recovered panics.
func WithPoolLogger(l *slog.Logger) PoolOption {
	if l == nil {
		panic("rx: WithPoolLogger requires non-nil logger")
	}
	return func(c *poolConfig) {
		c.log = l
	}
}

// WithPoolMetrics registers a periodic callback that fires every
// interval with a snapshot of the pool counters.
//
// Panics if interval <= 0 or fn is nil.
func WithPoolMetrics(interval time.Duration, fn func(PoolStats)) PoolOption {
	if interval <= 0 {
		panic("rx: WithPoolMetrics requires interval > 0")
	}
	if fn == nil {
		panic("rx: WithPoolMetrics requires non-nil callback")
	}
	return func(c *poolConfig) {
		c.onMetrics = fn
		c.metricsInterval = interval
	}
}

// NewPool creates a pool with n worker goroutines. Workers run until
// [Pool.Close] is called or ctx is cancelled.
// Panics if n <= 0.
func NewPool(ctx context.Context, n int, opts ...PoolOption) *Pool {
	if n <= 0 {
		panic("rx: NewPool requires n > 0")
	}

	cfg := poolConfig{
		queueSize: n * 2,
		log:       defaultConfig().log,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		actions: make(chan func(), cfg.queueSize),
		ctx:     ctx,
		cancel:  cancel,
		log:     cfg.log,
		workers: n,
	}

	p.wg.Add(n)
	for range n {
		go p.worker()
	}

	if cfg.onMetrics != nil {
		go func() {
			ticker := time.NewTicker(cfg.metricsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if p.closed.Load() {
						return
					}
					cfg.onMetrics(p.Stats())
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for fn := range p.actions {
		p.run(fn)
		p.completed.Inc()
	}
}

func (p *Pool) run(fn func()) {
	p.inFlight.Inc()
	defer p.inFlight.Dec()

	if err := runRecovered(fn); err != nil {
		p.panicked.Inc()
		p.log.Warn("Pool action panicked", "err", err)
		p.errMu.Lock()
		p.errs = append(p.errs, err)
		p.errMu.Unlock()
	}
}

// Stats returns a point-in-time snapshot of pool activity.
// Safe to call concurrently.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Submitted:  p.submitted.Load(),
		Completed:  p.completed.Load(),
		Panicked:   p.panicked.Load(),
		Inline:     p.inline.Load(),
		InFlight:   p.inFlight.Load(),
		QueueDepth: len(p.actions),
		Workers:    p.workers,
	}
}

// Submit queues fn for a worker. It blocks while the queue is full.
// Returns [ErrPoolClosed] if the pool has been closed, or the pool
// context's error if it was cancelled.
func (p *Pool) Submit(fn func()) (err error) {
	if fn == nil {
		panic("rx: Submit requires non-nil action")
	}
	if p.closed.Load() {
		return ErrPoolClosed
	}

	// Close may close the queue between the check above and the send.
	defer func() {
		if r := recover(); r != nil {
			err = ErrPoolClosed
		}
	}()

	select {
	case p.actions <- fn:
		p.submitted.Inc()
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// TrySubmit queues fn without blocking.
// Returns false if the queue is full or the pool is closed.
func (p *Pool) TrySubmit(fn func()) (submitted bool) {
	if fn == nil {
		panic("rx: TrySubmit requires non-nil action")
	}
	if p.closed.Load() {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			submitted = false
		}
	}()

	select {
	case p.actions <- fn:
		p.submitted.Inc()
		return true
	default:
		return false
	}
}

// Schedule implements [Scheduler]. Actions that can no longer be queued
// because the pool is closed or its context is done run on the calling
// goroutine instead, so every action still runs exactly once.
func (p *Pool) Schedule(action func()) {
	if err := p.Submit(action); err != nil {
		p.inline.Inc()
		p.run(action)
	}
}

// Close stops accepting new actions and waits for queued and in-flight
// actions to finish. Returns the joined panics recovered from actions.
// Safe to call multiple times.
func (p *Pool) Close() error {
	if p.closed.CompareAndSwap(false, true) {
		close(p.actions)
	}
	p.wg.Wait()
	p.cancel()

	p.errMu.Lock()
	defer p.errMu.Unlock()
	return errors.Join(p.errs...)
}
