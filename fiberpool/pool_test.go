package fiberpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/covebridge/fiberbridge/bridge"
)

type hostState struct {
	n atomic.Int64
}

func TestPoolDrainsDispatchedTasks(t *testing.T) {
	d, ex, err := bridge.New[hostState](32)
	if err != nil {
		t.Fatalf("bridge.New: %v", err)
	}
	defer d.Close()

	host := &hostState{}
	pool, err := Start(ex, host, 4, 8, 20*time.Millisecond, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pool.Stop()

	const n = 50
	results := make(chan int64, n)
	for i := 0; i < n; i++ {
		go func() {
			v, err := bridge.Dispatch(context.Background(), d, func(h *hostState) int64 {
				return h.n.Add(1)
			})
			if err != nil {
				t.Errorf("Dispatch: %v", err)
				return
			}
			results <- v
		}()
	}

	deadline := time.After(3 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-results:
		case <-deadline:
			t.Fatal("timed out waiting for dispatched tasks to complete")
		}
	}

	if host.n.Load() != n {
		t.Fatalf("host counter = %d, want %d", host.n.Load(), n)
	}
}

func TestPoolStopIsIdempotent(t *testing.T) {
	d, ex, err := bridge.New[hostState](8)
	if err != nil {
		t.Fatalf("bridge.New: %v", err)
	}

	host := &hostState{}
	pool, err := Start(ex, host, 2, 4, 10*time.Millisecond, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	d.Close()
	pool.Stop()
	pool.Stop()
}
