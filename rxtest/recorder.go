package rxtest

import (
	"sync"
	"time"
)

// Recorder is an rx.Observer that records everything it receives.
// It is safe for concurrent use.
type Recorder[T any] struct {
	mu        sync.Mutex
	values    []T
	err       error
	completed bool
	terminals int
	done      chan struct{}
}

// NewRecorder returns an empty Recorder.
func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{done: make(chan struct{})}
}

func (r *Recorder[T]) Next(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *Recorder[T]) Error(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	r.terminal()
}

func (r *Recorder[T]) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = true
	r.terminal()
}

// terminal must be called with r.mu held.
func (r *Recorder[T]) terminal() {
	r.terminals++
	if r.terminals == 1 {
		close(r.done)
	}
}

// Values returns a copy of the values received so far.
func (r *Recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.values...)
}

// Err returns the error received, if any.
func (r *Recorder[T]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Completed reports whether Complete was received.
func (r *Recorder[T]) Completed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}

// Terminals returns how many terminal events were received. Anything
// other than 0 or 1 is a contract violation by the producer.
func (r *Recorder[T]) Terminals() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.terminals
}

// Done returns a channel closed on the first terminal event.
func (r *Recorder[T]) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the first terminal event or until timeout elapses.
// It reports whether a terminal event arrived.
func (r *Recorder[T]) Wait(timeout time.Duration) bool {
	select {
	case <-r.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
