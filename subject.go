package rx

import "sync"

// Subject is a hot, multicast producer: every value passed to Next is
// pushed to the observers subscribed at that moment, in subscription
// order.
//
// Subject is safe for concurrent use, but it does not serialize its
// callers: calling Next from several goroutines at once calls observers
// concurrently. A combination serializes such pushes itself.
//
// After Error or Complete, further calls are ignored and new
// subscribers receive the terminal event immediately.
type Subject[T any] struct {
	mu        sync.Mutex
	observers []*subjectEntry[T]
	done      bool
	err       error
}

type subjectEntry[T any] struct {
	o   Observer[T]
	sub Subscription
}

// NewSubject returns an empty Subject.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{}
}

// Subscribe registers o. Panics if o is nil.
func (s *Subject[T]) Subscribe(o Observer[T]) Subscription {
	if o == nil {
		panic("rx: Subscribe requires non-nil observer")
	}

	s.mu.Lock()
	if s.done {
		err := s.err
		s.mu.Unlock()
		if err != nil {
			o.Error(err)
		} else {
			o.Complete()
		}
		return Closed()
	}

	e := &subjectEntry[T]{o: o}
	e.sub = NewSubscription(func() { s.remove(e) })
	s.observers = append(s.observers, e)
	s.mu.Unlock()

	return e.sub
}

func (s *Subject[T]) remove(e *subjectEntry[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, cur := range s.observers {
		if cur == e {
			// Copy so in-flight snapshots stay intact.
			next := make([]*subjectEntry[T], 0, len(s.observers)-1)
			next = append(next, s.observers[:i]...)
			s.observers = append(next, s.observers[i+1:]...)
			return
		}
	}
}

// snapshot returns the current observers, or nil once terminated.
func (s *Subject[T]) snapshot() []*subjectEntry[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	return s.observers
}

// Next pushes v to every current observer.
func (s *Subject[T]) Next(v T) {
	for _, e := range s.snapshot() {
		if !e.sub.Closed() {
			e.o.Next(v)
		}
	}
}

// Error terminates the subject with err.
func (s *Subject[T]) Error(err error) {
	for _, e := range s.terminate(err) {
		e.o.Error(err)
	}
}

// Complete terminates the subject successfully.
func (s *Subject[T]) Complete() {
	for _, e := range s.terminate(nil) {
		e.o.Complete()
	}
}

func (s *Subject[T]) terminate(err error) []*subjectEntry[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = true
	s.err = err
	obs := s.observers
	s.observers = nil
	return obs
}

// Observers returns the number of currently subscribed observers.
func (s *Subject[T]) Observers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers)
}

// BehaviorSubject is a [Subject] that remembers its latest value and
// pushes it to each new subscriber before any later value.
type BehaviorSubject[T any] struct {
	Subject[T]
	value T
}

// NewBehaviorSubject returns a BehaviorSubject holding initial.
func NewBehaviorSubject[T any](initial T) *BehaviorSubject[T] {
	return &BehaviorSubject[T]{value: initial}
}

// Value returns the latest value.
func (b *BehaviorSubject[T]) Value() T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

// Next records v as the latest value and pushes it to every observer.
func (b *BehaviorSubject[T]) Next(v T) {
	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		return
	}
	b.value = v
	obs := b.observers
	b.mu.Unlock()

	for _, e := range obs {
		if !e.sub.Closed() {
			e.o.Next(v)
		}
	}
}

// Subscribe registers o and pushes the latest value to it. A terminated
// BehaviorSubject only replays its terminal event.
//
// A Next racing with Subscribe on another goroutine may reach o before
// the replayed value does.
func (b *BehaviorSubject[T]) Subscribe(o Observer[T]) Subscription {
	if o == nil {
		panic("rx: Subscribe requires non-nil observer")
	}

	b.mu.Lock()
	done := b.done
	v := b.value
	b.mu.Unlock()

	if done {
		return b.Subject.Subscribe(o)
	}

	sub := b.Subject.Subscribe(o)
	if !sub.Closed() {
		o.Next(v)
	}
	return sub
}
