package fiberbridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/covebridge/fiberbridge/bridge"
	"github.com/covebridge/fiberbridge/config"
	"github.com/covebridge/fiberbridge/internal/demohost"
)

func testConfig() config.ModuleConfig {
	cfg := config.Default()
	cfg.Buffer = 16
	cfg.Fibers = 1
	cfg.MaxBatch = 4
	cfg.CoioTimeout = "10ms"
	cfg.FiberStandbyTimeout = "20ms"
	return cfg
}

func TestRunModulePing(t *testing.T) {
	host := demohost.New()

	got, err := RunModule(context.Background(), host, testConfig(),
		func(ctx context.Context, d *bridge.Dispatcher[demohost.Store]) (string, error) {
			ops, err := bridge.Dispatch(ctx, d, func(h *demohost.Store) int {
				return h.Set("ping", "pong")
			})
			if err != nil {
				return "", err
			}
			v, _ := bridge.Dispatch(ctx, d, func(h *demohost.Store) string {
				s, _ := h.Get("ping")
				return s
			})
			if ops != 1 {
				return "", errors.New("unexpected op count")
			}
			return v, nil
		},
	)
	if err != nil {
		t.Fatalf("RunModule: %v", err)
	}
	if got != "pong" {
		t.Fatalf("got %q, want pong", got)
	}
}

func TestRunModuleBurst(t *testing.T) {
	host := demohost.New()

	got, err := RunModule(context.Background(), host, testConfig(),
		func(ctx context.Context, d *bridge.Dispatcher[demohost.Store]) (int, error) {
			const n = 200
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				i := i
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = bridge.Dispatch(ctx, d, func(h *demohost.Store) int {
						return h.Set(keyFor(i), "v")
					})
				}()
			}
			wg.Wait()
			return bridge.Dispatch(ctx, d, func(h *demohost.Store) int { return h.Len() })
		},
	)
	if err != nil {
		t.Fatalf("RunModule: %v", err)
	}
	if got != 200 {
		t.Fatalf("got %d keys, want 200", got)
	}
}

func keyFor(i int) string {
	return "k" + string(rune('a'+i%26)) + string(rune('0'+i/26))
}

func TestRunModuleBackpressure(t *testing.T) {
	host := demohost.New()
	cfg := testConfig()
	cfg.Buffer = 2
	cfg.MaxBatch = 1

	got, err := RunModule(context.Background(), host, cfg,
		func(ctx context.Context, d *bridge.Dispatcher[demohost.Store]) (int, error) {
			const n = 20
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = bridge.Dispatch(ctx, d, func(h *demohost.Store) int {
						return h.Set("k", "v")
					})
				}()
			}
			wg.Wait()
			return bridge.Dispatch(ctx, d, func(h *demohost.Store) int { return h.Ops() })
		},
	)
	if err != nil {
		t.Fatalf("RunModule: %v", err)
	}
	if got != 20 {
		t.Fatalf("got %d ops, want 20", got)
	}
}

func TestRunModuleCallerAbandon(t *testing.T) {
	host := demohost.New()

	got, err := RunModule(context.Background(), host, testConfig(),
		func(ctx context.Context, d *bridge.Dispatcher[demohost.Store]) (int, error) {
			abortCtx, cancel := context.WithCancel(ctx)
			cancel()
			_, derr := bridge.Dispatch(abortCtx, d, func(h *demohost.Store) int {
				return h.Set("should-not-apply", "v")
			})
			if derr == nil {
				return 0, errors.New("expected an error from an abandoned dispatch")
			}
			return bridge.Dispatch(ctx, d, func(h *demohost.Store) int { return h.Len() })
		},
	)
	if err != nil {
		t.Fatalf("RunModule: %v", err)
	}
	if got != 0 {
		t.Fatalf("got %d keys, want 0 (abandoned dispatch must not apply)", got)
	}
}

func TestRunModuleConcurrentDispatchers(t *testing.T) {
	host := demohost.New()

	got, err := RunModule(context.Background(), host, testConfig(),
		func(ctx context.Context, d *bridge.Dispatcher[demohost.Store]) (int, error) {
			d2, err := d.TryClone()
			if err != nil {
				return 0, err
			}
			defer d2.Close()

			var wg sync.WaitGroup
			for _, dd := range []*bridge.Dispatcher[demohost.Store]{d, d2} {
				dd := dd
				for i := 0; i < 10; i++ {
					i := i
					wg.Add(1)
					go func() {
						defer wg.Done()
						_, _ = bridge.Dispatch(ctx, dd, func(h *demohost.Store) int {
							return h.Set(keyFor(i+100), "v")
						})
					}()
				}
			}
			wg.Wait()
			return bridge.Dispatch(ctx, d, func(h *demohost.Store) int { return h.Len() })
		},
	)
	if err != nil {
		t.Fatalf("RunModule: %v", err)
	}
	if got != 10 {
		t.Fatalf("got %d keys, want 10 (two dispatchers writing the same 10 keys)", got)
	}
}

func TestRunModulePropagatesModuleError(t *testing.T) {
	host := demohost.New()
	wantErr := errors.New("module failed")

	_, err := RunModule(context.Background(), host, testConfig(),
		func(ctx context.Context, d *bridge.Dispatcher[demohost.Store]) (int, error) {
			return 0, wantErr
		},
	)
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
}

func TestRunModuleRecoversModulePanic(t *testing.T) {
	host := demohost.New()

	_, err := RunModule(context.Background(), host, testConfig(),
		func(ctx context.Context, d *bridge.Dispatcher[demohost.Store]) (int, error) {
			panic("boom")
		},
	)
	if err == nil {
		t.Fatal("expected RunModule to surface the recovered panic as an error")
	}
}

func TestRunModuleRespectsTimeoutContext(t *testing.T) {
	host := demohost.New()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := RunModule(ctx, host, testConfig(),
		func(ctx context.Context, d *bridge.Dispatcher[demohost.Store]) (int, error) {
			return bridge.Dispatch(ctx, d, func(h *demohost.Store) int { return h.Set("x", "y") })
		},
	)
	if err != nil {
		t.Fatalf("RunModule: %v", err)
	}
}
