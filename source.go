package rx

import (
	"context"
	"errors"
	"io"
)

// Of returns a cold Observable that pushes values synchronously during
// Subscribe and then completes.
func Of[T any](values ...T) Observable[T] {
	return FromSlice(values)
}

// FromSlice returns a cold Observable that pushes every item of items
// synchronously during Subscribe and then completes. The slice is read
// on every subscription, not copied.
func FromSlice[T any](items []T) Observable[T] {
	return FuncObservable[T](func(o Observer[T]) Subscription {
		for _, v := range items {
			o.Next(v)
		}
		o.Complete()
		return Closed()
	})
}

// Empty returns an Observable that completes immediately without values.
func Empty[T any]() Observable[T] {
	return FuncObservable[T](func(o Observer[T]) Subscription {
		o.Complete()
		return Closed()
	})
}

// Never returns an Observable that never pushes anything.
func Never[T any]() Observable[T] {
	return FuncObservable[T](func(Observer[T]) Subscription {
		return NewSubscription(nil)
	})
}

// Fail returns an Observable that fails immediately with err.
func Fail[T any](err error) Observable[T] {
	return FuncObservable[T](func(o Observer[T]) Subscription {
		o.Error(err)
		return Closed()
	})
}

// FromChan returns an Observable that forwards values received from ch
// on a dedicated goroutine per subscription. It completes when ch is
// closed and stops silently when ctx is cancelled or the subscription is
// cancelled.
//
// Concurrent subscriptions share ch: each value goes to exactly one of
// them.
func FromChan[T any](ctx context.Context, ch <-chan T) Observable[T] {
	return FuncObservable[T](func(o Observer[T]) Subscription {
		stop := make(chan struct{})
		sub := NewSubscription(func() { close(stop) })

		go func() {
			for {
				select {
				case v, ok := <-ch:
					if !ok {
						if !sub.Closed() {
							o.Complete()
						}
						return
					}
					if sub.Closed() {
						return
					}
					o.Next(v)
				case <-ctx.Done():
					return
				case <-stop:
					return
				}
			}
		}()

		return sub
	})
}

// FromFunc returns an Observable driven by a pull iterator. A dedicated
// goroutine calls next until it returns an error: io.EOF completes the
// subscription, any other error fails it. The context passed to next is
// cancelled when ctx is, or when the subscription is cancelled; the
// resulting error is not forwarded.
func FromFunc[T any](ctx context.Context, next func(ctx context.Context) (T, error)) Observable[T] {
	if next == nil {
		panic("rx: FromFunc requires non-nil iterator")
	}
	return FuncObservable[T](func(o Observer[T]) Subscription {
		ctx, cancel := context.WithCancel(ctx)
		sub := NewSubscription(cancel)

		go func() {
			defer cancel()
			for {
				v, err := next(ctx)
				if ctx.Err() != nil {
					return
				}
				if errors.Is(err, io.EOF) {
					o.Complete()
					return
				}
				if err != nil {
					o.Error(err)
					return
				}
				o.Next(v)
			}
		}()

		return sub
	})
}
