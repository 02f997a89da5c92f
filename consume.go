package rx

import (
	"context"
	"sync"
)

// SubscribeContext subscribes o to obs and cancels the subscription when
// ctx is done. Cancelling ctx delivers no event to o.
func SubscribeContext[T any](ctx context.Context, obs Observable[T], o Observer[T]) Subscription {
	sub := obs.Subscribe(o)
	if sub.Closed() {
		return sub
	}

	stop := context.AfterFunc(ctx, sub.Unsubscribe)
	return NewSubscription(func() {
		stop()
		sub.Unsubscribe()
	})
}

// Collect subscribes to obs and blocks until it terminates or ctx is
// done. It returns the values pushed so far together with the terminal
// error, or ctx.Err() after cancelling the subscription.
func Collect[T any](ctx context.Context, obs Observable[T]) ([]T, error) {
	var (
		mu    sync.Mutex
		items []T
	)
	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}

	sub := obs.Subscribe(ObserverFuncs[T]{
		OnNext: func(v T) {
			mu.Lock()
			items = append(items, v)
			mu.Unlock()
		},
		OnError:    finish,
		OnComplete: func() { finish(nil) },
	})

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		sub.Unsubscribe()
		err = ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	return items, err
}

// ToChan subscribes to obs on a new goroutine and returns a channel of its
// values together with a channel that receives the terminal error (nil
// on completion, ctx.Err() on cancellation). Both channels are closed
// once obs terminates or ctx is done.
//
// Values are sent unbuffered: a push blocks until it is received or ctx
// is done.
func ToChan[T any](ctx context.Context, obs Observable[T]) (<-chan T, <-chan error) {
	w := &chanObserver[T]{
		ctx:  ctx,
		out:  make(chan T),
		errc: make(chan error, 1),
		done: make(chan struct{}),
	}

	go func() {
		sub := obs.Subscribe(w)
		select {
		case <-w.done:
		case <-ctx.Done():
			sub.Unsubscribe()
			w.finish(ctx.Err())
		}
	}()

	return w.out, w.errc
}

type chanObserver[T any] struct {
	ctx context.Context

	mu     sync.Mutex // held across sends so finish cannot close out mid-send
	closed bool
	out    chan T
	errc   chan error
	done   chan struct{}
}

func (w *chanObserver[T]) Next(v T) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.out <- v:
	case <-w.ctx.Done():
	}
}

func (w *chanObserver[T]) Error(err error) { w.finish(err) }

func (w *chanObserver[T]) Complete() { w.finish(nil) }

func (w *chanObserver[T]) finish(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.errc <- err
	close(w.errc)
	close(w.out)
	close(w.done)
}
