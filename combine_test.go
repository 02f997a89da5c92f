package rx_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/baxromumarov/rx"
	"github.com/baxromumarov/rx/rxtest"
	"github.com/google/go-cmp/cmp"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

func newSources(n int) ([]*rxtest.Source[int], []rx.Observable[int]) {
	srcs := make([]*rxtest.Source[int], n)
	obs := make([]rx.Observable[int], n)
	for i := range srcs {
		srcs[i] = rxtest.NewSource[int]()
		obs[i] = srcs[i]
	}
	return srcs, obs
}

func requireEmissions(t *testing.T, want [][]int, got [][]int) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("emissions mismatch (-want +got):\n%s", diff)
	}
}

func TestCombineLatest_waitsForEverySource(t *testing.T) {
	srcs, obs := newSources(3)
	rec := rxtest.NewRecorder[[]int]()

	rx.CombineLatest(obs, rx.WithLogger(slogt.New(t))).Subscribe(rec)

	srcs[0].Next(1)
	srcs[1].Next(10)
	assert.Empty(t, rec.Values(), "no emission before every source produced")

	srcs[0].Next(2)
	assert.Empty(t, rec.Values())

	srcs[2].Next(100)
	requireEmissions(t, [][]int{{2, 10, 100}}, rec.Values())
	assert.Equal(t, 0, rec.Terminals())
}

func TestCombineLatest_interleavedSources(t *testing.T) {
	// A = [1@t0, 2@t2], B = [10@t1, 20@t3]
	srcs, obs := newSources(2)
	a, b := srcs[0], srcs[1]
	rec := rxtest.NewRecorder[[]int]()

	rx.CombineLatest(obs).Subscribe(rec)

	a.Next(1)
	b.Next(10)
	a.Next(2)
	b.Next(20)

	requireEmissions(t, [][]int{{1, 10}, {2, 10}, {2, 20}}, rec.Values())

	a.Complete()
	assert.False(t, rec.Completed(), "B is still active")

	b.Complete()
	assert.True(t, rec.Completed())
	assert.Equal(t, 1, rec.Terminals())
}

func TestCombineLatest_eachPushUpdatesOneSlot(t *testing.T) {
	srcs, obs := newSources(3)
	rec := rxtest.NewRecorder[[]int]()
	rx.CombineLatest(obs).Subscribe(rec)

	srcs[0].Next(1)
	srcs[1].Next(2)
	srcs[2].Next(3)

	srcs[1].Next(20)
	srcs[1].Next(21)
	srcs[0].Next(10)
	srcs[2].Next(30)

	requireEmissions(t, [][]int{
		{1, 2, 3},
		{1, 20, 3},
		{1, 21, 3},
		{10, 21, 3},
		{10, 21, 30},
	}, rec.Values())
}

func TestCombineLatest_noSources(t *testing.T) {
	rec := rxtest.NewRecorder[[]int]()
	sub := rx.CombineLatest[int](nil).Subscribe(rec)

	assert.Empty(t, rec.Values())
	assert.True(t, rec.Completed(), "zero sources complete immediately")
	assert.Equal(t, 1, rec.Terminals())
	assert.True(t, sub.Closed())
}

func TestCombineLatest_singleSourcePassthrough(t *testing.T) {
	srcs, obs := newSources(1)
	rec := rxtest.NewRecorder[int]()

	rx.CombineLatestFunc(obs, func(v []int) (int, error) {
		return v[0] * 2, nil
	}).Subscribe(rec)

	srcs[0].Next(1)
	srcs[0].Next(2)
	srcs[0].Next(3)
	srcs[0].Complete()

	assert.Equal(t, []int{2, 4, 6}, rec.Values())
	assert.True(t, rec.Completed())
}

func TestCombineLatest_emptySourceCompletesEarly(t *testing.T) {
	srcs, obs := newSources(2)
	a, b := srcs[0], srcs[1]
	rec := rxtest.NewRecorder[[]int]()

	rx.CombineLatest(obs).Subscribe(rec)

	a.Complete()
	assert.True(t, rec.Completed(), "A can never contribute a value")

	b.Next(5)
	assert.Empty(t, rec.Values(), "B's push after termination is ignored")
	assert.Equal(t, 1, rec.Terminals())

	assert.Equal(t, 1, b.Unsubscribed(), "B is cancelled on early completion")
	assert.Equal(t, 0, b.Observers())
}

func TestCombineLatest_emptySourceAfterOthersProduced(t *testing.T) {
	srcs, obs := newSources(3)
	rec := rxtest.NewRecorder[[]int]()

	rx.CombineLatest(obs).Subscribe(rec)

	srcs[0].Next(1)
	srcs[1].Next(2)
	srcs[2].Complete()

	assert.Empty(t, rec.Values())
	assert.True(t, rec.Completed())
	for i, src := range srcs {
		assert.Equal(t, 1, src.Unsubscribed(), "source %d", i)
	}
}

func TestCombineLatest_completedSourceKeepsLastValue(t *testing.T) {
	srcs, obs := newSources(2)
	rec := rxtest.NewRecorder[[]int]()
	rx.CombineLatest(obs).Subscribe(rec)

	srcs[0].Next(1)
	srcs[0].Complete()
	srcs[1].Next(7)
	srcs[1].Next(8)

	requireEmissions(t, [][]int{{1, 7}, {1, 8}}, rec.Values())
	assert.False(t, rec.Completed())

	srcs[1].Complete()
	assert.True(t, rec.Completed())
}

func TestCombineLatest_sourceError(t *testing.T) {
	for _, produced := range []int{0, 1, 3} {
		t.Run(fmt.Sprintf("after %d values", produced), func(t *testing.T) {
			srcs, obs := newSources(3)
			rec := rxtest.NewRecorder[[]int]()
			rx.CombineLatest(obs).Subscribe(rec)

			for i := 0; i < produced; i++ {
				srcs[i].Next(i)
			}

			boom := errors.New("boom")
			srcs[1].Error(boom)

			require.ErrorIs(t, rec.Err(), boom)
			assert.Equal(t, 1, rec.Terminals())

			before := len(rec.Values())
			srcs[0].Next(100)
			srcs[2].Next(200)
			srcs[2].Complete()

			assert.Len(t, rec.Values(), before, "no emissions after the error")
			assert.Equal(t, 1, rec.Terminals())
			for i, src := range srcs {
				assert.Equal(t, 1, src.Unsubscribed(), "source %d", i)
			}
		})
	}
}

func TestCombineLatest_firstErrorWins(t *testing.T) {
	srcs, obs := newSources(2)
	rec := rxtest.NewRecorder[[]int]()
	rx.CombineLatest(obs).Subscribe(rec)

	first := errors.New("first")
	srcs[0].Error(first)
	srcs[1].Error(errors.New("second"))

	assert.Equal(t, first, rec.Err())
	assert.Equal(t, 1, rec.Terminals())
	assert.False(t, rec.Completed())
}

func TestCombineLatest_sourceErrorsAttribution(t *testing.T) {
	srcs, obs := newSources(3)
	rec := rxtest.NewRecorder[[]int]()
	rx.CombineLatest(obs, rx.WithSourceErrors()).Subscribe(rec)

	boom := errors.New("boom")
	srcs[2].Error(boom)

	err := rec.Err()
	require.ErrorIs(t, err, boom)
	require.True(t, rx.IsSourceError(err))

	idx, ok := rx.SourceOf(err)
	require.True(t, ok)
	assert.Equal(t, 2, idx)
	assert.Equal(t, boom, rx.CauseOf(err))
}

func TestCombineLatest_projectionError(t *testing.T) {
	srcs, obs := newSources(2)
	rec := rxtest.NewRecorder[int]()

	bad := errors.New("negative")
	rx.CombineLatestFunc(obs, func(v []int) (int, error) {
		if v[0]+v[1] < 0 {
			return 0, bad
		}
		return v[0] + v[1], nil
	}, rx.WithSourceErrors()).Subscribe(rec)

	srcs[0].Next(1)
	srcs[1].Next(2)
	srcs[1].Next(-5)
	srcs[0].Next(10)

	assert.Equal(t, []int{3}, rec.Values())
	assert.Equal(t, bad, rec.Err(), "projection errors are never wrapped")
	assert.False(t, rx.IsSourceError(rec.Err()))
	for i, src := range srcs {
		assert.Equal(t, 1, src.Unsubscribed(), "source %d", i)
	}
}

func TestCombineLatest_projectionPanic(t *testing.T) {
	srcs, obs := newSources(2)
	rec := rxtest.NewRecorder[int]()

	rx.CombineLatestFunc(obs, func(v []int) (int, error) {
		return v[0] / v[1], nil
	}, rx.WithLogger(slogt.New(t))).Subscribe(rec)

	srcs[0].Next(1)
	srcs[1].Next(0)

	var pe *rx.PanicError
	require.ErrorAs(t, rec.Err(), &pe)
	assert.Contains(t, pe.Stack, "goroutine")
	assert.Equal(t, 1, srcs[0].Unsubscribed())
}

func TestCombineLatest_unsubscribe(t *testing.T) {
	for _, emissions := range []int{0, 1, 4} {
		t.Run(fmt.Sprintf("after %d emissions", emissions), func(t *testing.T) {
			srcs, obs := newSources(2)
			rec := rxtest.NewRecorder[[]int]()
			sub := rx.CombineLatest(obs).Subscribe(rec)

			if emissions > 0 {
				srcs[1].Next(0)
				for i := 0; i < emissions; i++ {
					srcs[0].Next(i)
				}
			}
			require.Len(t, rec.Values(), emissions)

			sub.Unsubscribe()
			assert.True(t, sub.Closed())

			srcs[0].Next(100)
			srcs[1].Next(200)
			srcs[0].Complete()

			assert.Len(t, rec.Values(), emissions, "nothing after Unsubscribe")
			assert.Equal(t, 0, rec.Terminals(), "cancellation is not a terminal event")
			for i, src := range srcs {
				assert.Equal(t, 1, src.Unsubscribed(), "source %d", i)
				assert.Equal(t, 0, src.Observers(), "source %d", i)
			}

			sub.Unsubscribe()
			for _, src := range srcs {
				assert.Equal(t, 1, src.Unsubscribed(), "second Unsubscribe is a no-op")
			}
		})
	}
}

func TestCombineLatest_unsubscribeAfterTermination(t *testing.T) {
	srcs, obs := newSources(2)
	rec := rxtest.NewRecorder[[]int]()

	var cancelled atomic.Int32
	sub := rx.CombineLatest(obs, rx.WithOnEvent(func(e rx.Event) {
		if e.Kind == rx.EventCancelled {
			cancelled.Inc()
		}
	})).Subscribe(rec)

	srcs[0].Error(errors.New("boom"))
	sub.Unsubscribe()

	assert.Equal(t, int32(0), cancelled.Load())
	assert.Equal(t, 1, srcs[1].Unsubscribed())
}

func TestCombineLatest_cancelPanicDoesNotStopOtherSources(t *testing.T) {
	srcs, obs := newSources(3)
	srcs[1].PanicOnUnsubscribe("teardown failed")

	var cancelErr error
	sub := rx.CombineLatest(obs,
		rx.WithLogger(slogt.New(t)),
		rx.WithOnEvent(func(e rx.Event) {
			if e.Kind == rx.EventCancelled {
				cancelErr = e.Err
			}
		}),
	).Subscribe(rxtest.NewRecorder[[]int]())

	require.NotPanics(t, sub.Unsubscribe)

	for i, src := range srcs {
		assert.Equal(t, 1, src.Unsubscribed(), "source %d", i)
	}

	require.Error(t, cancelErr)
	idx, ok := rx.SourceOf(cancelErr)
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	var pe *rx.PanicError
	require.ErrorAs(t, cancelErr, &pe)
	assert.Equal(t, "teardown failed", pe.Value)
}

func TestCombineLatest_resubscribeBuildsFreshState(t *testing.T) {
	srcs, obs := newSources(2)
	combined := rx.CombineLatest(obs)

	first := rxtest.NewRecorder[[]int]()
	combined.Subscribe(first)
	srcs[0].Next(1)
	srcs[1].Next(2)

	second := rxtest.NewRecorder[[]int]()
	combined.Subscribe(second)
	srcs[0].Next(3)
	assert.Empty(t, second.Values(), "second subscription has not seen source 1 yet")

	srcs[1].Next(4)
	requireEmissions(t, [][]int{{1, 2}, {3, 2}, {3, 4}}, first.Values())
	requireEmissions(t, [][]int{{3, 4}}, second.Values())

	assert.Equal(t, 2, srcs[0].Subscribed())
}

func TestCombineLatest_identityDoesNotAlias(t *testing.T) {
	srcs, obs := newSources(2)
	var got [][]int
	rx.CombineLatest(obs).Subscribe(rx.ObserverFuncs[[]int]{
		OnNext: func(v []int) {
			got = append(got, append([]int(nil), v...))
			v[0] = -1
		},
	})

	srcs[0].Next(1)
	srcs[1].Next(2)
	srcs[1].Next(3)

	requireEmissions(t, [][]int{{1, 2}, {1, 3}}, got)
}

func TestCombineLatest_synchronousSources(t *testing.T) {
	rec := rxtest.NewRecorder[[]int]()
	rx.CombineLatest([]rx.Observable[int]{
		rx.Of(1, 2),
		rx.Of(10),
	}).Subscribe(rec)

	requireEmissions(t, [][]int{{2, 10}}, rec.Values())
	assert.True(t, rec.Completed())
}

func TestCombineLatest_synchronousEmptyStopsSubscribing(t *testing.T) {
	later := rxtest.NewSource[int]()
	rec := rxtest.NewRecorder[[]int]()

	rx.CombineLatest([]rx.Observable[int]{
		rx.Of(1),
		rx.Empty[int](),
		later,
	}).Subscribe(rec)

	assert.True(t, rec.Completed())
	assert.Empty(t, rec.Values())
	assert.Equal(t, 0, later.Subscribed(), "sources after the early exit are never subscribed")
}

func TestCombineLatest_synchronousErrorDuringSubscribe(t *testing.T) {
	boom := errors.New("boom")
	first := rxtest.NewSource[int]()
	later := rxtest.NewSource[int]()
	rec := rxtest.NewRecorder[[]int]()

	rx.CombineLatest([]rx.Observable[int]{
		first,
		rx.Fail[int](boom),
		later,
	}).Subscribe(rec)

	assert.Equal(t, boom, rec.Err())
	assert.Equal(t, 1, first.Unsubscribed())
	assert.Equal(t, 0, later.Subscribed())
}

func TestCombineLatest_sourceTerminatesInsideSubscribe(t *testing.T) {
	src := rxtest.NewSource[int]().OnSubscribe(func(o rx.Observer[int]) {
		o.Next(1)
		o.Complete()
	})
	other := rxtest.NewSource[int]()
	rec := rxtest.NewRecorder[[]int]()

	sub := rx.CombineLatest([]rx.Observable[int]{src, other}).Subscribe(rec)

	other.Next(2)
	requireEmissions(t, [][]int{{1, 2}}, rec.Values())

	sub.Unsubscribe()
	assert.Equal(t, 1, src.Unsubscribed())
	assert.Equal(t, 1, other.Unsubscribed())
}

func TestCombineLatest_lateEventsFromMisbehavingSource(t *testing.T) {
	var leaked rx.Observer[int]
	bad := rx.Create(func(o rx.Observer[int]) rx.Subscription {
		leaked = o
		return rx.NewSubscription(nil)
	})
	good := rxtest.NewSource[int]()
	rec := rxtest.NewRecorder[[]int]()

	rx.CombineLatest([]rx.Observable[int]{bad, good}, rx.WithLogger(slogt.New(t))).Subscribe(rec)

	leaked.Next(1)
	good.Next(2)
	leaked.Complete()
	leaked.Next(3)
	leaked.Error(errors.New("too late"))

	requireEmissions(t, [][]int{{1, 2}}, rec.Values())
	assert.Nil(t, rec.Err())

	good.Complete()
	assert.True(t, rec.Completed())

	leaked.Next(4)
	leaked.Complete()
	assert.Equal(t, 1, rec.Terminals())
}

func TestCombineLatest_reentrantPush(t *testing.T) {
	srcs, obs := newSources(2)
	var got [][]int

	rx.CombineLatest(obs).Subscribe(rx.ObserverFuncs[[]int]{
		OnNext: func(v []int) {
			got = append(got, v)
			if v[1] == 10 {
				// Pushed from inside the callback: handled once this
				// emission returns.
				srcs[1].Next(11)
				assert.Len(t, got, 1)
			}
		},
	})

	srcs[0].Next(1)
	srcs[1].Next(10)

	requireEmissions(t, [][]int{{1, 10}, {1, 11}}, got)
}

func TestCombineLatest_unsubscribeFromInsideNext(t *testing.T) {
	srcs, obs := newSources(2)
	var (
		sub rx.Subscription
		got [][]int
	)

	sub = rx.CombineLatest(obs).Subscribe(rx.ObserverFuncs[[]int]{
		OnNext: func(v []int) {
			got = append(got, v)
			sub.Unsubscribe()
		},
	})

	srcs[0].Next(1)
	srcs[1].Next(2)
	srcs[1].Next(3)

	requireEmissions(t, [][]int{{1, 2}}, got)
	assert.Equal(t, 1, srcs[0].Unsubscribed())
}

func TestCombineLatest_concurrentPushes(t *testing.T) {
	const (
		sources = 4
		pushes  = 500
	)
	srcs, obs := newSources(sources)

	var (
		inside    atomic.Bool
		overlap   atomic.Bool
		emissions atomic.Int64
	)
	rec := rxtest.NewRecorder[[]int]()
	rx.CombineLatest(obs).Subscribe(rx.ObserverFuncs[[]int]{
		OnNext: func(v []int) {
			if !inside.CompareAndSwap(false, true) {
				overlap.Store(true)
			}
			emissions.Inc()
			inside.Store(false)
		},
		OnComplete: rec.Complete,
		OnError:    rec.Error,
	})

	for i, src := range srcs {
		src.Next(i)
	}
	require.Equal(t, int64(1), emissions.Load())

	var g errgroup.Group
	for _, src := range srcs {
		g.Go(func() error {
			for j := 0; j < pushes; j++ {
				src.Next(j)
			}
			src.Complete()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.True(t, rec.Wait(time.Second))
	assert.False(t, overlap.Load(), "downstream must never be called concurrently")
	assert.Equal(t, int64(1+sources*pushes), emissions.Load())
	assert.True(t, rec.Completed())
}

func TestCombineLatest_concurrentUnsubscribe(t *testing.T) {
	srcs, obs := newSources(3)
	rec := rxtest.NewRecorder[[]int]()
	sub := rx.CombineLatest(obs).Subscribe(rec)

	var wg sync.WaitGroup
	for _, src := range srcs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				src.Next(j)
			}
		}()
	}

	time.Sleep(time.Millisecond)
	sub.Unsubscribe()
	after := len(rec.Values())
	wg.Wait()

	assert.Len(t, rec.Values(), after, "nothing is delivered after Unsubscribe returns")
	assert.Equal(t, 0, rec.Terminals())
	for i, src := range srcs {
		assert.Equal(t, 1, src.Unsubscribed(), "source %d", i)
	}
}

func TestCombineLatest_unsubscribeWaitsForDeliveryInProgress(t *testing.T) {
	srcs, obs := newSources(2)

	var (
		parkOnce sync.Once
		parked   = make(chan struct{})
		release  = make(chan struct{})
		returned atomic.Bool
		late     atomic.Int32
		got      atomic.Int32
	)

	sub := rx.CombineLatest(obs, rx.WithOnEvent(func(e rx.Event) {
		if e.Kind != rx.EventEmitted {
			return
		}
		parkOnce.Do(func() {
			close(parked)
			<-release
		})
	})).Subscribe(rx.ObserverFuncs[[]int]{
		OnNext: func([]int) {
			got.Inc()
			if returned.Load() {
				late.Inc()
			}
		},
	})

	srcs[1].Next(10)
	pushed := make(chan struct{})
	go func() {
		defer close(pushed)
		srcs[0].Next(1)
	}()
	<-parked

	unsubscribed := make(chan struct{})
	go func() {
		sub.Unsubscribe()
		returned.Store(true)
		close(unsubscribed)
	}()

	select {
	case <-unsubscribed:
		t.Fatal("Unsubscribe returned while a delivery was in progress")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-unsubscribed
	<-pushed

	assert.Equal(t, int32(1), got.Load(), "the delivery in progress completes")
	assert.Equal(t, int32(0), late.Load(), "no Next after Unsubscribe returned")
	assert.Equal(t, 1, srcs[0].Unsubscribed())
	assert.Equal(t, 1, srcs[1].Unsubscribed())
}

func TestCombineLatest_events(t *testing.T) {
	srcs, obs := newSources(2)
	var kinds []rx.EventKind

	rx.CombineLatest(obs, rx.WithOnEvent(func(e rx.Event) {
		kinds = append(kinds, e.Kind)
	})).Subscribe(rxtest.NewRecorder[[]int]())

	srcs[0].Next(1)
	srcs[1].Next(2)
	srcs[0].Complete()
	srcs[1].Complete()

	assert.Equal(t, []rx.EventKind{
		rx.EventSubscribed,
		rx.EventSourceSubscribed,
		rx.EventSourceSubscribed,
		rx.EventValue,
		rx.EventValue,
		rx.EventEmitted,
		rx.EventSourceCompleted,
		rx.EventSourceCompleted,
		rx.EventCompleted,
	}, kinds)
}

func TestCombineLatest_stats(t *testing.T) {
	srcs, obs := newSources(2)
	sub := rx.CombineLatest(obs).Subscribe(rxtest.NewRecorder[[]int]())

	srcs[0].Next(1)
	srcs[0].Next(2)
	srcs[1].Next(3)
	srcs[0].Complete()

	stats, ok := rx.StatsOf(sub)
	require.True(t, ok)
	assert.Equal(t, rx.CombineStats{
		Sources:          2,
		Values:           3,
		Emissions:        1,
		SourcesCompleted: 1,
	}, stats)

	sub.Unsubscribe()
	stats, _ = rx.StatsOf(sub)
	assert.True(t, stats.Cancelled)
	assert.False(t, stats.Terminated)

	_, ok = rx.StatsOf(rx.Closed())
	assert.False(t, ok)
}

func TestCombine_panicsOnBadConfig(t *testing.T) {
	assert.PanicsWithValue(t,
		"rx: Combine requires non-nil projection; use CombineLatest for the identity tuple",
		func() {
			rx.Combine(rx.Config[int, int]{Sources: []rx.Observable[int]{rx.Of(1)}})
		})

	assert.PanicsWithValue(t, "rx: source[1] must not be nil", func() {
		rx.CombineLatest([]rx.Observable[int]{rx.Of(1), nil})
	})

	assert.Panics(t, func() {
		rx.CombineLatest([]rx.Observable[int]{rx.Of(1)}).Subscribe(nil)
	})
}

func TestCombineLatest2(t *testing.T) {
	names := rx.NewSubject[string]()
	ages := rx.NewSubject[int]()
	rec := rxtest.NewRecorder[rx.Pair[string, int]]()

	rx.CombineLatest2[string, int](names, ages).Subscribe(rec)

	names.Next("ada")
	ages.Next(36)
	ages.Next(37)
	names.Complete()
	ages.Complete()

	assert.Equal(t, []rx.Pair[string, int]{
		{First: "ada", Second: 36},
		{First: "ada", Second: 37},
	}, rec.Values())
	assert.True(t, rec.Completed())
}

func TestCombineLatest3_nilInterfaceValues(t *testing.T) {
	errs := rx.NewSubject[error]()
	rec := rxtest.NewRecorder[rx.Triple[int, error, string]]()

	rx.CombineLatest3[int, error, string](rx.Of(1), errs, rx.Of("x")).Subscribe(rec)
	errs.Next(nil)

	require.Len(t, rec.Values(), 1)
	assert.Equal(t, rx.Triple[int, error, string]{First: 1, Second: nil, Third: "x"}, rec.Values()[0])
}
