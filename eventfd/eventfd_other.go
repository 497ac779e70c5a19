//go:build !linux

package eventfd

import (
	"sync"
	"sync/atomic"
	"time"
)

// newPlatform provides a portable stand-in for eventfd on platforms without
// one: an atomic counter, with cooperative waits implemented by
// polling with a short sleep. Functionally equivalent for single-process
// cross-goroutine wakeups; loses the one-syscall-per-wakeup property that
// makes the Linux eventfd path cheap, which is fine off Linux since this
// module's target deployment (host thread bridging a scripting VM) is
// Linux-only in practice.
func newPlatform(init uint64, isSemaphore bool) (EventFd, error) {
	e := &portableEventFd{isSemaphore: isSemaphore}
	e.counter.Store(init)
	e.refs.Store(1)
	return e, nil
}

type portableEventFd struct {
	counter     atomic.Uint64
	isSemaphore bool

	// refs counts live handles sharing this counter. TryClone returns the
	// same instance (there is no real descriptor to duplicate), so Close
	// must be refcounted or the first handle to close would yank the
	// counter out from under every other clone.
	refs atomic.Int64

	mu     sync.Mutex
	closed bool
}

func (e *portableEventFd) Read() (uint64, error) {
	if e.isClosed() {
		return 0, ErrClosed
	}

	if e.isSemaphore {
		for {
			cur := e.counter.Load()
			if cur == 0 {
				return 0, ErrWouldBlock
			}
			if e.counter.CompareAndSwap(cur, cur-1) {
				return 1, nil
			}
		}
	}

	cur := e.counter.Swap(0)
	if cur == 0 {
		return 0, ErrWouldBlock
	}
	return cur, nil
}

func (e *portableEventFd) Write(v uint64) error {
	if e.isClosed() {
		return ErrClosed
	}
	for {
		cur := e.counter.Load()
		if cur+v < cur {
			return ErrWouldBlock // overflow
		}
		if e.counter.CompareAndSwap(cur, cur+v) {
			return nil
		}
	}
}

func (e *portableEventFd) WaitReadable(timeout time.Duration) error {
	if e.isClosed() {
		return ErrClosed
	}
	if e.counter.Load() > 0 {
		return nil
	}
	if timeout <= 0 {
		return ErrTimeout
	}

	const pollInterval = 2 * time.Millisecond
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if e.counter.Load() > 0 {
			return nil
		}
		time.Sleep(pollInterval)
	}
	return ErrTimeout
}

func (e *portableEventFd) TryClone() (EventFd, error) {
	if e.isClosed() {
		return nil, ErrClosed
	}
	// No real descriptor to duplicate; clones share the same counter so
	// the "producers >=1 pending" signal still fans out to every handle,
	// matching the Linux path's semantics (one kernel counter, N dup'd
	// fds all observing the same value). refs tracks how many handles
	// must Close before the shared counter actually goes away.
	e.refs.Add(1)
	return e, nil
}

func (e *portableEventFd) Fd() int {
	return -1
}

func (e *portableEventFd) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *portableEventFd) Close() error {
	if e.refs.Add(-1) > 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
