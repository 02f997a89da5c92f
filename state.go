package rx

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"go.uber.org/atomic"
)

type signalKind uint8

const (
	signalNext signalKind = iota
	signalError
	signalComplete
)

func (k signalKind) String() string {
	switch k {
	case signalNext:
		return "next"
	case signalError:
		return "error"
	default:
		return "complete"
	}
}

// signal is one push event from one source, queued for the drain loop.
type signal[T any] struct {
	kind   signalKind
	source int
	value  T
	err    error
}

const (
	stateActive int32 = iota
	stateTerminated
	stateCancelled
)

// combineState is the per-subscription record of a combination. It is
// the Subscription handed to the downstream observer and the single
// owner of the source listeners.
//
// Source events may arrive from any goroutine. They are appended to
// queue and processed one at a time by whichever goroutine finds the
// drain loop idle; a push made from inside a downstream callback is
// queued and handled once the current event finishes.
type combineState[T, R any] struct {
	c          *combined[T, R]
	downstream Observer[R]
	log        *slog.Logger

	listeners []*sourceListener[T, R]

	mu       sync.Mutex
	queue    []signal[T]
	draining bool

	// deliverMu is held by the drain loop while it handles one event, so
	// a cancelling goroutine can wait out a delivery in progress. drainer
	// is the id of the goroutine holding it, or 0.
	deliverMu sync.Mutex
	drainer   atomic.Uint64

	// Owned by the drain loop.
	latest    []T
	produced  *bitset.BitSet
	completed *bitset.BitSet
	active    int

	status atomic.Int32

	values    atomic.Int64
	emissions atomic.Int64
	finished  atomic.Int64
}

func newCombineState[T, R any](c *combined[T, R], o Observer[R]) *combineState[T, R] {
	n := len(c.sources)
	s := &combineState[T, R]{
		c:          c,
		downstream: o,
		log:        c.cfg.log.With("sources", n),
		latest:     make([]T, n),
		produced:   bitset.New(uint(n)),
		completed:  bitset.New(uint(n)),
		active:     n,
	}

	s.listeners = make([]*sourceListener[T, R], n)
	for i := range s.listeners {
		l := &sourceListener[T, R]{index: i}
		l.state.Store(s)
		s.listeners[i] = l
	}
	return s
}

// start attaches the listeners in source order, directly or through the
// configured scheduler. Attaching stops at the first source whose
// synchronous events already closed the combination.
func (s *combineState[T, R]) start() {
	s.emit(EventSubscribed, -1, nil)

	if len(s.listeners) == 0 {
		s.status.Store(stateTerminated)
		s.emit(EventCompleted, -1, nil)
		s.downstream.Complete()
		return
	}

	sched := s.c.cfg.scheduler
	s.log.Debug("Subscribing to sources", "scheduled", sched != nil)

	for i, l := range s.listeners {
		if s.Closed() {
			s.log.Debug(
				"Combination closed while subscribing; skipping remaining sources",
				"next_source", i,
			)
			return
		}

		src := s.c.sources[i]
		if sched != nil {
			sched.Schedule(func() { l.attach(src) })
			continue
		}
		l.attach(src)
	}
}

// deliver admits sig to the queue and drains it unless another call is
// already draining.
func (s *combineState[T, R]) deliver(sig signal[T]) {
	s.mu.Lock()
	if s.status.Load() != stateActive {
		s.mu.Unlock()
		s.log.Debug("Ignoring event after termination", "kind", sig.kind, "source", sig.source)
		return
	}
	s.queue = append(s.queue, sig)
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()

	s.drain()
}

func (s *combineState[T, R]) drain() {
	gid := goroutineID()
	defer func() {
		// A panicking downstream observer must not wedge the loop.
		if r := recover(); r != nil {
			s.mu.Lock()
			s.draining = false
			s.mu.Unlock()
			panic(r)
		}
	}()

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		sig := s.queue[0]
		s.queue[0] = signal[T]{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.handleLocked(gid, sig)
	}
}

func (s *combineState[T, R]) handleLocked(gid uint64, sig signal[T]) {
	s.deliverMu.Lock()
	s.drainer.Store(gid)
	defer func() {
		s.drainer.Store(0)
		s.deliverMu.Unlock()
	}()

	s.handle(sig)
}

func (s *combineState[T, R]) handle(sig signal[T]) {
	if s.Closed() {
		s.log.Debug("Ignoring event after termination", "kind", sig.kind, "source", sig.source)
		return
	}
	if s.completed.Test(uint(sig.source)) {
		s.log.Debug("Ignoring event from completed source", "kind", sig.kind, "source", sig.source)
		return
	}

	switch sig.kind {
	case signalNext:
		s.onNext(sig.source, sig.value)
	case signalError:
		s.onError(sig.source, sig.err)
	case signalComplete:
		s.onComplete(sig.source)
	}
}

func (s *combineState[T, R]) onNext(i int, v T) {
	s.latest[i] = v
	s.produced.Set(uint(i))
	s.values.Inc()
	s.emit(EventValue, i, nil)

	if !s.produced.All() {
		return
	}

	out, err := s.project()
	if err != nil {
		s.fail(err)
		return
	}
	if s.Closed() {
		// Cancelled from another goroutine while projecting.
		return
	}

	s.emissions.Inc()
	s.emit(EventEmitted, i, nil)
	s.downstream.Next(out)
}

func (s *combineState[T, R]) project() (out R, err error) {
	defer func() {
		if r := recover(); r != nil {
			pe := newPanicError(r)
			s.log.Warn("Projection panicked", "panic", pe.Value)
			err = pe
		}
	}()
	return s.c.project(s.latest)
}

func (s *combineState[T, R]) onError(i int, err error) {
	if s.c.cfg.sourceErrors {
		err = &SourceError{Source: i, Err: err}
	}
	s.fail(err)
}

func (s *combineState[T, R]) onComplete(i int) {
	s.completed.Set(uint(i))
	s.active--
	s.finished.Inc()
	s.emit(EventSourceCompleted, i, nil)

	switch {
	case !s.produced.Test(uint(i)):
		// The joint value can never be computed again.
		s.log.Debug("Source completed without a value; completing combination", "source", i)
		s.complete()
	case s.active == 0:
		s.complete()
	}
}

func (s *combineState[T, R]) complete() {
	if !s.terminate() {
		return
	}
	s.emit(EventCompleted, -1, nil)
	s.downstream.Complete()
}

func (s *combineState[T, R]) fail(err error) {
	if !s.terminate() {
		return
	}
	s.emit(EventErrored, -1, err)
	s.downstream.Error(err)
}

// terminate moves the state to terminated exactly once, dropping queued
// events and cancelling every listener. It reports whether the caller
// won the transition and must forward the terminal event.
func (s *combineState[T, R]) terminate() bool {
	if !s.status.CompareAndSwap(stateActive, stateTerminated) {
		return false
	}

	s.mu.Lock()
	s.queue = nil
	s.mu.Unlock()

	if err := s.cancelListeners(); err != nil {
		s.log.Warn("Failed to cancel sources after termination", "err", err)
	}
	return true
}

// cancelListeners cancels every listener, carrying on past failures.
func (s *combineState[T, R]) cancelListeners() error {
	var errs []error
	for _, l := range s.listeners {
		if err := l.cancel(); err != nil {
			errs = append(errs, &SourceError{Source: l.index, Err: err})
		}
	}
	return errors.Join(errs...)
}

// Unsubscribe cancels every live source subscription and prevents
// pending scheduled subscriptions from starting. Nothing is delivered
// downstream after Unsubscribe returns: called from another goroutine
// it waits for a delivery in progress to finish, so the downstream
// observer must not block on a concurrent Unsubscribe. Called from
// inside a downstream callback it returns without waiting.
func (s *combineState[T, R]) Unsubscribe() {
	if !s.status.CompareAndSwap(stateActive, stateCancelled) {
		return
	}

	s.mu.Lock()
	s.queue = nil
	s.mu.Unlock()

	if s.drainer.Load() != goroutineID() {
		s.deliverMu.Lock()
		s.deliverMu.Unlock()
	}

	err := s.cancelListeners()
	if err != nil {
		s.log.Warn("Failed to cancel sources", "err", err)
	}
	s.emit(EventCancelled, -1, err)
}

// Closed reports whether the combination terminated or was cancelled.
func (s *combineState[T, R]) Closed() bool {
	return s.status.Load() != stateActive
}

func (s *combineState[T, R]) emit(kind EventKind, source int, err error) {
	if fn := s.c.cfg.onEvent; fn != nil {
		fn(Event{Kind: kind, Source: source, Err: err})
	}
}

// CombineStats is a point-in-time snapshot of one combination subscription.
type CombineStats struct {
	Sources          int   // number of sources
	Values           int64 // values accepted from sources
	Emissions        int64 // combined values forwarded downstream
	SourcesCompleted int64 // sources that signaled completion
	Terminated       bool  // a terminal event was forwarded downstream
	Cancelled        bool  // Unsubscribe was called before termination
}

func (s *combineState[T, R]) Stats() CombineStats {
	status := s.status.Load()
	return CombineStats{
		Sources:          len(s.listeners),
		Values:           s.values.Load(),
		Emissions:        s.emissions.Load(),
		SourcesCompleted: s.finished.Load(),
		Terminated:       status == stateTerminated,
		Cancelled:        status == stateCancelled,
	}
}

// StatsOf returns the statistics of a Subscription obtained from a
// combination. Returns false for any other Subscription.
func StatsOf(sub Subscription) (CombineStats, bool) {
	sr, ok := sub.(interface{ Stats() CombineStats })
	if !ok {
		return CombineStats{}, false
	}
	return sr.Stats(), true
}
