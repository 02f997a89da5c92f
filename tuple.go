package rx

// Pair holds the latest values of two sources.
// It is emitted by [CombineLatest2].
type Pair[A, B any] struct {
	First  A
	Second B
}

// Triple holds the latest values of three sources.
// It is emitted by [CombineLatest3].
type Triple[A, B, C any] struct {
	First  A
	Second B
	Third  C
}

// CombineLatest2 combines two sources of different types into a
// [Pair] of their latest values.
//
// Panics if a or b is nil.
func CombineLatest2[A, B any](a Observable[A], b Observable[B], opts ...Option) Observable[Pair[A, B]] {
	if a == nil {
		panic("rx: CombineLatest2 requires non-nil first source")
	}
	if b == nil {
		panic("rx: CombineLatest2 requires non-nil second source")
	}
	return Combine(Config[any, Pair[A, B]]{
		Sources: []Observable[any]{widen(a), widen(b)},
		Project: func(v []any) (Pair[A, B], error) {
			return Pair[A, B]{
				First:  narrow[A](v[0]),
				Second: narrow[B](v[1]),
			}, nil
		},
	}, opts...)
}

// CombineLatest3 combines three sources of different types into a
// [Triple] of their latest values.
//
// Panics if any source is nil.
func CombineLatest3[A, B, C any](
	a Observable[A],
	b Observable[B],
	c Observable[C],
	opts ...Option,
) Observable[Triple[A, B, C]] {
	if a == nil || b == nil || c == nil {
		panic("rx: CombineLatest3 requires non-nil sources")
	}
	return Combine(Config[any, Triple[A, B, C]]{
		Sources: []Observable[any]{widen(a), widen(b), widen(c)},
		Project: func(v []any) (Triple[A, B, C], error) {
			return Triple[A, B, C]{
				First:  narrow[A](v[0]),
				Second: narrow[B](v[1]),
				Third:  narrow[C](v[2]),
			}, nil
		},
	}, opts...)
}

// widen re-types a source so heterogeneous sources can share one
// combination. The source's observer is passed through unchanged apart
// from the value conversion.
func widen[T any](src Observable[T]) Observable[any] {
	return FuncObservable[any](func(o Observer[any]) Subscription {
		return src.Subscribe(ObserverFuncs[T]{
			OnNext:     func(v T) { o.Next(v) },
			OnError:    o.Error,
			OnComplete: o.Complete,
		})
	})
}

// narrow recovers a value stored by widen. A nil interface value maps
// back to T's zero value.
func narrow[T any](v any) T {
	t, _ := v.(T)
	return t
}
