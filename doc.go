// Package rx provides a push-based latest-value combinator for Go.
//
// A combination subscribes to several [Observable] sources and, once every
// source has produced at least one value, pushes a combined value each
// time any source pushes. Sources may push from any goroutine; the
// combination serializes them so its downstream [Observer] is never
// called concurrently.
//
// # Combining Sources
//
// The primary entry point is [CombineLatest], which emits a fresh slice of
// the latest values in source order:
//
//	obs := rx.CombineLatest([]rx.Observable[float64]{bid, ask})
//	sub := obs.Subscribe(rx.ObserverFuncs[[]float64]{
//	    OnNext: func(v []float64) { fmt.Println("spread", v[1]-v[0]) },
//	})
//	defer sub.Unsubscribe()
//
// [CombineLatestFunc] maps each set of latest values through a projection
// instead. [Combine] takes a [Config] and is the form the other
// constructors build on. [CombineLatest2] and [CombineLatest3] combine
// sources of different types into a [Pair] or [Triple].
//
// Each call to Subscribe on a combination starts an independent
// subscription with its own latest values.
//
// # Termination
//
// A combination terminates exactly once:
//
//   - It completes when every source has completed, or as soon as any
//     source completes without ever having produced a value, since no
//     combined value could follow.
//   - It fails with the first error raised by a source or by the
//     projection. A panicking projection fails it with a [*PanicError].
//
// On termination every remaining source subscription is cancelled, and
// events that sources push afterwards are ignored.
//
// Upstream errors are forwarded unchanged by default. [WithSourceErrors]
// wraps them in [*SourceError] for attribution; use [IsSourceError],
// [SourceOf] and [CauseOf] to inspect them.
//
// # Cancellation
//
// The [Subscription] returned by Subscribe cancels every source
// subscription, including ones not yet started. Unsubscribe is
// idempotent and never delivers a terminal event downstream. A panic in
// a source's teardown is recovered, so the remaining sources are still
// cancelled. [SubscribeContext] ties a subscription to a context.
//
// # Scheduling
//
// By default sources are subscribed synchronously, in order, inside
// Subscribe. [WithScheduler] defers each source subscription through a
// [Scheduler]: [Immediate], a [GoScheduler] with an optional
// concurrency limit, or a fixed-size [Pool]. Only subscription is
// scheduled; values are handled on the goroutine that pushes them.
//
// # Sources and Consumers
//
// [Of], [FromSlice], [Empty], [Never] and [Fail] build cold sources.
// [FromChan] and [FromFunc] bridge channels and pull iterators. [Subject]
// and [BehaviorSubject] are hot multicast sources. [Create] adapts any
// subscribe function.
//
// [Collect] and [ToChan] turn an Observable back into a slice or a
// channel.
//
// # Observability
//
// [WithLogger] sets the [log/slog] logger used for diagnostics and
// [WithOnEvent] registers a hook receiving an [Event] for every state
// change. [StatsOf] returns counters for one subscription.
//
// The [github.com/baxromumarov/rx/rxmetrics] subpackage exports these
// events as Prometheus metrics, and
// [github.com/baxromumarov/rx/rxtrace] records one OpenTelemetry span
// per subscription. [github.com/baxromumarov/rx/rxtest] provides
// deterministic test doubles.
package rx
