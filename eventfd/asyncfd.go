package eventfd

import (
	"context"
	"time"
)

// AsyncEventFd adapts an EventFd for use from module-side (asynchronous,
// potentially many-goroutine) code, where blocking a goroutine on
// WaitReadable for an unbounded time is undesirable: callers want to race
// the wait against context cancellation the way a Tokio AsyncFd races
// against task cancellation. The host-side cooperative wait in EventFd
// itself remains the primitive fiber-pool workers use directly; this type
// exists for the Dispatcher side of the bridge, which runs in the module's
// asynchronous world and must respect ctx.
type AsyncEventFd struct {
	inner EventFd
}

// NewAsync wraps an existing EventFd. The wrapper does not take ownership
// beyond what Close does — closing the AsyncEventFd closes the wrapped fd.
func NewAsync(inner EventFd) *AsyncEventFd {
	return &AsyncEventFd{inner: inner}
}

// Write adds v to the underlying counter. Since eventfd writes are cheap and
// always either succeed or indicate counter overflow, no async variant is
// needed beyond forwarding.
func (a *AsyncEventFd) Write(v uint64) error {
	return a.inner.Write(v)
}

// WaitReadable blocks the calling goroutine until the descriptor is
// readable or ctx is done, polling the cooperative primitive underneath in
// short slices so cancellation is observed promptly without an extra
// OS-level notification channel per call.
func (a *AsyncEventFd) WaitReadable(ctx context.Context) error {
	const slice = 20 * time.Millisecond
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := a.inner.WaitReadable(slice)
		if err == nil {
			return nil
		}
		if err == ErrTimeout {
			continue
		}
		return err
	}
}

// TryClone dups the underlying EventFd and returns a new AsyncEventFd over
// the clone, mirroring EventFd.TryClone's independent-fd-per-handle
// contract.
func (a *AsyncEventFd) TryClone() (*AsyncEventFd, error) {
	clone, err := a.inner.TryClone()
	if err != nil {
		return nil, err
	}
	return NewAsync(clone), nil
}

// Fd exposes the raw descriptor for diagnostics/tests.
func (a *AsyncEventFd) Fd() int {
	return a.inner.Fd()
}

// Close releases the wrapped descriptor.
func (a *AsyncEventFd) Close() error {
	return a.inner.Close()
}
