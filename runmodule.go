// Package fiberbridge bridges a cooperative host-side drain loop (the
// "fiber pool") with a preemptively-scheduled module goroutine, connected
// by a bounded MPMC task channel. RunModule is the sole exported entry
// point: it owns the whole lifecycle of one bridge from construction to
// join.
package fiberbridge

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/covebridge/fiberbridge/bridge"
	"github.com/covebridge/fiberbridge/config"
	"github.com/covebridge/fiberbridge/fiberpool"
)

// RunModule builds a host<->module bridge sized by cfg, starts the fiber
// pool draining against host, runs moduleMain on its own goroutine with an
// AsyncDispatcher-equivalent (bridge.Dispatcher[H]), and blocks until both
// sides finish. A panic inside moduleMain is recovered and surfaced as an
// error rather than crashing the process, the Go analogue of the module
// thread's join().unwrap() in the original host process.
//
// H must either be safe for concurrent invocation from cfg.Fibers
// goroutines at once, or cfg.Fibers should be 1 — see config.ModuleConfig.
func RunModule[H any, R any](
	ctx context.Context,
	host *H,
	cfg config.ModuleConfig,
	moduleMain func(context.Context, *bridge.Dispatcher[H]) (R, error),
) (R, error) {
	var zero R

	if errs := cfg.Validate(); len(errs) > 0 {
		return zero, fmt.Errorf("fiberbridge: %w", errs)
	}

	dispatcher, executor, err := bridge.New[H](cfg.Buffer)
	if err != nil {
		return zero, fmt.Errorf("fiberbridge: build channel: %w", err)
	}

	pool, err := fiberpool.Start(
		executor, host,
		cfg.Fibers, cfg.MaxBatch,
		cfg.CoioTimeoutDuration(), cfg.FiberStandbyTimeoutDuration(),
	)
	if err != nil {
		_ = dispatcher.Close()
		return zero, fmt.Errorf("fiberbridge: start fiber pool: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	resultCh := make(chan R, 1)

	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("fiberbridge: module panicked: %v\n%s", r, debug.Stack())
			}
		}()
		defer dispatcher.Close()

		v, merr := moduleMain(gctx, dispatcher)
		if merr != nil {
			return merr
		}
		resultCh <- v
		return nil
	})

	// Give the module goroutine a chance to make its first Dispatch call
	// before the pool's first drain pass, purely to avoid an initial idle
	// wait on a freshly-created system; correctness does not depend on
	// this since the pool's cooperative wait absorbs spurious empty polls.
	runtime.Gosched()

	slog.Debug("fiberbridge: module running", "buffer", cfg.Buffer, "fibers", cfg.Fibers)

	runErr := g.Wait()
	pool.Stop()

	if runErr != nil {
		return zero, runErr
	}

	select {
	case v := <-resultCh:
		return v, nil
	default:
		return zero, fmt.Errorf("fiberbridge: moduleMain returned no error but no result")
	}
}
