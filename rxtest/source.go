package rxtest

import (
	"sync"

	"github.com/baxromumarov/rx"
)

// Source is a hot test producer that counts how often it is subscribed
// to and cancelled. Values pushed through Next, Error and Complete reach
// every observer subscribed at that moment.
type Source[T any] struct {
	subject *rx.Subject[T]

	mu           sync.Mutex
	subscribed   int
	unsubscribed int
	onSubscribe  func(o rx.Observer[T])
	cancelPanic  any
}

// NewSource returns a Source with no observers.
func NewSource[T any]() *Source[T] {
	return &Source[T]{subject: rx.NewSubject[T]()}
}

// OnSubscribe installs fn to run synchronously inside every later
// Subscribe call, after the observer is registered. It lets tests model
// sources that push or terminate before Subscribe returns.
func (s *Source[T]) OnSubscribe(fn func(o rx.Observer[T])) *Source[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSubscribe = fn
	return s
}

// PanicOnUnsubscribe makes every later cancellation panic with v after
// the observer has been removed.
func (s *Source[T]) PanicOnUnsubscribe(v any) *Source[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelPanic = v
	return s
}

func (s *Source[T]) Subscribe(o rx.Observer[T]) rx.Subscription {
	s.mu.Lock()
	s.subscribed++
	hook := s.onSubscribe
	s.mu.Unlock()

	sub := s.subject.Subscribe(o)
	if hook != nil {
		hook(o)
	}

	return rx.NewSubscription(func() {
		s.mu.Lock()
		s.unsubscribed++
		p := s.cancelPanic
		s.mu.Unlock()

		sub.Unsubscribe()
		if p != nil {
			panic(p)
		}
	})
}

// Next pushes v to the current observers.
func (s *Source[T]) Next(v T) { s.subject.Next(v) }

// Error fails the source.
func (s *Source[T]) Error(err error) { s.subject.Error(err) }

// Complete completes the source.
func (s *Source[T]) Complete() { s.subject.Complete() }

// Subscribed returns how many times Subscribe was called.
func (s *Source[T]) Subscribed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribed
}

// Unsubscribed returns how many subscriptions were cancelled.
func (s *Source[T]) Unsubscribed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribed
}

// Observers returns how many observers are currently attached.
func (s *Source[T]) Observers() int {
	return s.subject.Observers()
}
