package rx

import (
	"sync"

	"go.uber.org/atomic"
)

// Subscription is the cancellation handle returned by
// [Observable.Subscribe].
//
// Unsubscribe is idempotent: only the first call has an effect.
type Subscription interface {
	Unsubscribe()
	Closed() bool
}

type funcSubscription struct {
	once   sync.Once
	closed atomic.Bool
	fn     func()
}

// NewSubscription returns a Subscription that runs fn on the first
// Unsubscribe. fn may be nil.
func NewSubscription(fn func()) Subscription {
	return &funcSubscription{fn: fn}
}

// Closed returns a Subscription that is already unsubscribed.
func Closed() Subscription {
	s := &funcSubscription{}
	s.Unsubscribe()
	return s
}

func (s *funcSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.closed.Store(true)
		if s.fn != nil {
			s.fn()
		}
	})
}

func (s *funcSubscription) Closed() bool {
	return s.closed.Load()
}

// unsubscribeSafely cancels sub, converting a panic raised by the
// source's teardown into a *PanicError so that callers cancelling many
// subscriptions can carry on with the rest.
func unsubscribeSafely(sub Subscription) error {
	if sub == nil {
		return nil
	}
	return runRecovered(sub.Unsubscribe)
}
