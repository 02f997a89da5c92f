package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/baxromumarov/rx"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type combineOptions struct {
	sources []string
	delay   time.Duration
	pool    int
	timeout time.Duration
	verbose bool
}

func combineCmd() *cobra.Command {
	var opts combineOptions

	cmd := &cobra.Command{
		Use:   "combine",
		Short: "Combine the latest values of several sources",
		Long: `Combine starts one producer per --source flag. Each producer pushes its
comma-separated values with --delay between them and then completes.
An empty --source completes without values, which ends the whole
combination early.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(opts.sources) == 0 {
				return errors.New("at least one --source is required")
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if opts.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.timeout)
				defer cancel()
			}

			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			return runCombine(ctx, cmd.OutOrStdout(), log, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.sources, "source", "s", nil, "Comma-separated values of one source (repeatable)")
	cmd.Flags().DurationVar(&opts.delay, "delay", 10*time.Millisecond, "Pause before each pushed value")
	cmd.Flags().IntVar(&opts.pool, "pool", 0, "Subscribe to sources through a worker pool of this size")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Give up after this long (0 means no limit)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log combination diagnostics to stderr")

	return cmd
}

// runCombine wires one channel-fed source per --source value list and
// prints the combination's events to out.
func runCombine(ctx context.Context, out io.Writer, log *slog.Logger, opts combineOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	sources := make([]rx.Observable[string], len(opts.sources))
	for i, list := range opts.sources {
		values := parseValues(list)
		ch := make(chan string)
		sources[i] = rx.FromChan(gctx, ch)

		g.Go(func() error {
			defer close(ch)
			for _, v := range values {
				select {
				case <-time.After(opts.delay):
				case <-gctx.Done():
					return gctx.Err()
				}
				select {
				case ch <- v:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	rxOpts := []rx.Option{rx.WithLogger(log), rx.WithSourceErrors()}
	if opts.pool > 0 {
		pool := rx.NewPool(ctx, opts.pool, rx.WithPoolLogger(log))
		defer pool.Close()
		rxOpts = append(rxOpts, rx.WithScheduler(pool))
	}

	combined := rx.CombineLatestFunc(sources, func(v []string) (string, error) {
		return "(" + strings.Join(v, ", ") + ")", nil
	}, rxOpts...)

	done := make(chan error, 1)
	sub := combined.Subscribe(rx.ObserverFuncs[string]{
		OnNext: func(v string) {
			fmt.Fprintln(out, v)
		},
		OnError: func(err error) {
			done <- err
		},
		OnComplete: func() {
			done <- nil
		},
	})

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	// OnNext writes to out; nothing is delivered once Unsubscribe returns.
	sub.Unsubscribe()

	if stats, ok := rx.StatsOf(sub); ok {
		log.Debug("Combination finished",
			"values", stats.Values,
			"emissions", stats.Emissions,
			"sources_completed", stats.SourcesCompleted,
		)
	}

	// Producers blocked on sources the combination no longer reads from
	// are released by cancelling their context; they only ever fail with
	// that context's error.
	cancel()
	_ = g.Wait()

	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return err
	}
	fmt.Fprintln(out, "completed")
	return nil
}

func parseValues(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	parts := strings.Split(list, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
