package rx

import (
	"sync"

	"go.uber.org/atomic"
)

// sourceListener observes one source on behalf of a combineState.
//
// The back reference to the state is cleared on cancel, so a source that
// keeps hold of the listener after being cancelled neither reaches the
// state nor keeps it alive.
type sourceListener[T, R any] struct {
	index int
	state atomic.Pointer[combineState[T, R]]

	mu  sync.Mutex
	sub Subscription
}

func (l *sourceListener[T, R]) Next(v T) {
	if s := l.state.Load(); s != nil {
		s.deliver(signal[T]{kind: signalNext, source: l.index, value: v})
	}
}

func (l *sourceListener[T, R]) Error(err error) {
	if s := l.state.Load(); s != nil {
		s.deliver(signal[T]{kind: signalError, source: l.index, err: err})
	}
}

func (l *sourceListener[T, R]) Complete() {
	if s := l.state.Load(); s != nil {
		s.deliver(signal[T]{kind: signalComplete, source: l.index})
	}
}

// attach subscribes l to src. If l was cancelled before or during the
// call, the new subscription is released straight away.
func (l *sourceListener[T, R]) attach(src Observable[T]) {
	s := l.state.Load()
	if s == nil {
		return
	}
	s.emit(EventSourceSubscribed, l.index, nil)

	sub := src.Subscribe(l)

	l.mu.Lock()
	if l.state.Load() == nil {
		l.mu.Unlock()
		if err := unsubscribeSafely(sub); err != nil {
			s.log.Warn("Failed to cancel source", "source", l.index, "err", err)
		}
		return
	}
	l.sub = sub
	l.mu.Unlock()
}

// cancel detaches l from its state and releases the source
// subscription. Calls after the first return nil.
func (l *sourceListener[T, R]) cancel() error {
	s := l.state.Load()
	if s == nil || !l.state.CompareAndSwap(s, nil) {
		return nil
	}

	l.mu.Lock()
	sub := l.sub
	l.sub = nil
	l.mu.Unlock()

	return unsubscribeSafely(sub)
}
