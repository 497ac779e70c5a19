// Package eventfd wraps a kernel counter file descriptor used to wake a
// cooperatively-scheduled consumer from an arbitrary producer goroutine at
// the cost of a single syscall per idle->busy transition.
package eventfd

import (
	"errors"
	"time"
)

// ErrWouldBlock is returned by non-blocking Read/Write when the operation
// cannot complete immediately: a zero counter on Read, or a write that would
// overflow the u64 counter on Write.
var ErrWouldBlock = errors.New("eventfd: would block")

// ErrTimeout is returned by the cooperative Wait* methods when the deadline
// elapses before the descriptor becomes ready.
var ErrTimeout = errors.New("eventfd: wait timed out")

// ErrClosed is returned by any operation on an EventFd that has already been
// closed.
var ErrClosed = errors.New("eventfd: closed")

// EventFd owns a kernel-visible monotonically accumulating 64-bit counter.
// Reading atomically drains the counter to zero and returns the accumulated
// value; writing adds to it. Used as a level-triggered "at least one producer
// is pending" signal between goroutines or, on Linux, between OS threads.
type EventFd interface {
	// Read returns the accumulated count since the last read, or
	// ErrWouldBlock if the counter is currently zero.
	Read() (uint64, error)

	// Write adds v to the counter. Returns ErrWouldBlock if the addition
	// would overflow.
	Write(v uint64) error

	// WaitReadable cooperatively blocks the calling goroutine until the
	// descriptor is readable (counter > 0) or timeout elapses. A timeout of
	// zero or less polls once without blocking on the underlying wait
	// primitive. On timeout, returns ErrTimeout; callers are expected to
	// treat this as "retry Read" and silently absorb spurious/timeout
	// wakeups.
	WaitReadable(timeout time.Duration) error

	// TryClone duplicates the underlying descriptor so the clone can be
	// closed independently of the original, letting each handle own its own
	// fd lifecycle.
	TryClone() (EventFd, error)

	// Fd returns the raw OS descriptor, for diagnostics/tests only.
	Fd() int

	// Close releases the descriptor. Safe to call more than once.
	Close() error
}

// New creates a new EventFd with initial counter value init. isSemaphore
// selects EFD_SEMAPHORE mode (each Read drains exactly one unit instead of
// resetting to zero); callers that only need a level-triggered "something is
// pending" signal should pass false.
func New(init uint64, isSemaphore bool) (EventFd, error) {
	return newPlatform(init, isSemaphore)
}
