package bridge

import (
	"context"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"

	"github.com/covebridge/fiberbridge/eventfd"
)

// Dispatcher is the producer-side handle user code holds: a clone of the
// queue's producer half plus an independently dup'd wakeup fd. Freely
// clonable; the last clone's Close marks the queue's producer side closed.
type Dispatcher[H any] struct {
	core *core[H]
	wake *eventfd.AsyncEventFd

	closeOnce onceFlag
}

func newDispatcher[H any](c *core[H], wake *eventfd.AsyncEventFd) *Dispatcher[H] {
	return &Dispatcher[H]{core: c, wake: wake}
}

// TryClone makes another producer handle with its own duplicated wakeup fd,
// so closing one clone never affects another clone's ability to signal the
// executor.
func (d *Dispatcher[H]) TryClone() (*Dispatcher[H], error) {
	wakeClone, err := d.wake.TryClone()
	if err != nil {
		return nil, &IOError{Op: "dup eventfd", Err: err}
	}
	d.core.addDispatcherRef()
	return newDispatcher(d.core, wakeClone), nil
}

// Len reports the current approximate queue depth, for observability/tests.
func (d *Dispatcher[H]) Len() int {
	return d.core.len()
}

// Close releases this handle. Safe to call more than once. Once every clone
// of this Dispatcher has been closed, the queue's producer side closes:
// further enqueue attempts from any remaining clone fail (there are none
// left), and the Executor side eventually observes ErrRXChannelClosed once
// drained.
func (d *Dispatcher[H]) Close() error {
	if d.closeOnce.do() {
		d.core.releaseDispatcherRef()
		return d.wake.Close()
	}
	return nil
}

// enqueue snapshots the depth before pushing, then writes the wakeup fd only
// if the queue was observed empty immediately before this insertion,
// collapsing any number of concurrent pushes into one wakeup write per
// idle->busy transition.
func (d *Dispatcher[H]) enqueue(ctx context.Context, t task[H]) error {
	if d.core.consumerClosed.Load() {
		return ErrTXChannelClosed
	}

	var backoff iox.Backoff
	for {
		before := d.core.pending.Load()
		err := d.core.queue.Enqueue(&t)
		if err == nil {
			d.core.pending.Add(1)
			if before == 0 {
				if werr := d.wake.Write(1); werr != nil {
					return &IOError{Op: "write eventfd", Err: werr}
				}
			}
			return nil
		}
		if !lfq.IsWouldBlock(err) {
			return &IOError{Op: "enqueue", Err: err}
		}
		if d.core.consumerClosed.Load() {
			return ErrTXChannelClosed
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		backoff.Wait()
	}
}

// Dispatch boxes fn as a one-shot task, enqueues it for the host's fiber
// pool to run with a borrowed *H, and blocks the calling goroutine until the
// result comes back.
//
// Dispatch is a package-level function, not a method, because Go methods
// cannot introduce an additional type parameter (R) beyond the receiver's
// own (H).
func Dispatch[H any, R any](ctx context.Context, d *Dispatcher[H], fn func(h *H) R) (R, error) {
	var zero R

	rep := newReply[R]()
	t := newTask[H, R](fn, rep)

	if err := d.enqueue(ctx, t); err != nil {
		return zero, err
	}

	select {
	case msg := <-rep.ch:
		return msg.val, msg.err
	case <-ctx.Done():
		rep.markAbandoned()
		return zero, ctx.Err()
	}
}
