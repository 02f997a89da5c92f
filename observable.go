package rx

// Observer receives the push events of an [Observable].
//
// An Observable calls Next zero or more times, then at most one of
// Error or Complete. Implementations must tolerate Complete arriving
// without any preceding Next.
type Observer[T any] interface {
	Next(v T)
	Error(err error)
	Complete()
}

// Observable is a push-based producer of values.
//
// Subscribe attaches o and returns the handle that detaches it. A
// well-behaved Observable sends at most one terminal event per
// subscription and never calls o concurrently with itself.
type Observable[T any] interface {
	Subscribe(o Observer[T]) Subscription
}

// FuncObservable implements [Observable] with a function.
type FuncObservable[T any] func(o Observer[T]) Subscription

// Subscribe calls f(o).
func (f FuncObservable[T]) Subscribe(o Observer[T]) Subscription {
	return f(o)
}

// Create returns an Observable whose subscriptions are driven by fn.
// If fn returns a nil Subscription, an already-closed one is substituted.
//
// Panics if fn is nil.
func Create[T any](fn func(o Observer[T]) Subscription) Observable[T] {
	if fn == nil {
		panic("rx: Create requires non-nil subscribe function")
	}
	return FuncObservable[T](func(o Observer[T]) Subscription {
		if sub := fn(o); sub != nil {
			return sub
		}
		return Closed()
	})
}

// ObserverFuncs adapts plain functions to [Observer]. Nil fields are
// treated as no-ops.
type ObserverFuncs[T any] struct {
	OnNext     func(T)
	OnError    func(error)
	OnComplete func()
}

func (f ObserverFuncs[T]) Next(v T) {
	if f.OnNext != nil {
		f.OnNext(v)
	}
}

func (f ObserverFuncs[T]) Error(err error) {
	if f.OnError != nil {
		f.OnError(err)
	}
}

func (f ObserverFuncs[T]) Complete() {
	if f.OnComplete != nil {
		f.OnComplete()
	}
}
