package bridge

import (
	"errors"
	"time"

	"code.hybscloud.com/lfq"

	"github.com/covebridge/fiberbridge/eventfd"
)

// Executor is the consumer-side handle the host's fiber pool holds: a clone
// of the queue's consumer half plus an independently dup'd wakeup fd.
type Executor[H any] struct {
	core *core[H]
	wake eventfd.EventFd

	closeOnce onceFlag
}

func newExecutor[H any](c *core[H], wake eventfd.EventFd) *Executor[H] {
	return &Executor[H]{core: c, wake: wake}
}

// TryClone makes another consumer handle with its own duplicated wakeup fd.
func (e *Executor[H]) TryClone() (*Executor[H], error) {
	wakeClone, err := e.wake.TryClone()
	if err != nil {
		return nil, &IOError{Op: "dup eventfd", Err: err}
	}
	e.core.addExecutorRef()
	return newExecutor(e.core, wakeClone), nil
}

// Len reports the current approximate queue depth.
func (e *Executor[H]) Len() int {
	return e.core.len()
}

// Close releases this handle. Once every clone of this Executor has closed,
// any task still sitting in the queue is abandoned in place (see
// core.abandonRemaining) so no outstanding Dispatch caller blocks forever.
func (e *Executor[H]) Close() error {
	if e.closeOnce.do() {
		e.core.releaseExecutorRef()
		return e.wake.Close()
	}
	return nil
}

// errWouldBlock is an executor-internal sentinel distinguishing "queue is
// momentarily empty, try the cooperative wait" from a real I/O failure; it
// never escapes this package.
var errWouldBlock = errors.New("bridge: dequeue would block")

func (e *Executor[H]) dequeueOne() (task[H], error) {
	t, err := e.core.queue.Dequeue()
	if err == nil {
		e.core.pending.Add(-1)
		return t, nil
	}
	if lfq.IsWouldBlock(err) {
		return task[H]{}, errWouldBlock
	}
	return task[H]{}, &IOError{Op: "dequeue", Err: err}
}

func (e *Executor[H]) closedAndDrained() bool {
	return e.core.producerClosed.Load() && e.core.pending.Load() <= 0
}

// Exec is the single-task drain form: try a non-blocking dequeue, and on
// empty cooperatively wait on the eventfd for coioTimeout and reset its
// counter before retrying.
// Timeouts and spurious wakeups are both absorbed silently — the loop simply
// retries the dequeue regardless of why the wait returned.
func (e *Executor[H]) Exec(h *H, coioTimeout time.Duration) error {
	for {
		t, err := e.dequeueOne()
		if err == nil {
			return t.run(h)
		}
		if err != errWouldBlock {
			return err
		}
		if e.closedAndDrained() {
			return ErrRXChannelClosed
		}
		_ = e.wake.WaitReadable(coioTimeout)
		_, _ = e.wake.Read()
	}
}

// PopMany implements the batched drain form: wait once if the queue looked
// empty, then collect up to maxBatch items, stopping early once the
// remaining depth is <=1 so a peer fiber still sees "busy" rather than
// racing in to find nothing. Returned as exported Task handles since
// callers outside this package (the fiber pool) need to invoke them.
func (e *Executor[H]) PopMany(maxBatch int, coioTimeout time.Duration) ([]Task[H], error) {
	if e.core.pending.Load() == 0 {
		_ = e.wake.WaitReadable(coioTimeout)
		_, _ = e.wake.Read()
	}

	batch := make([]Task[H], 0, maxBatch)
	for len(batch) < maxBatch {
		t, err := e.dequeueOne()
		if err == nil {
			batch = append(batch, Task[H]{t: t})
			if e.core.pending.Load() <= 1 {
				break
			}
			continue
		}
		if err != errWouldBlock {
			if len(batch) > 0 {
				return batch, nil
			}
			return nil, err
		}
		break
	}

	if len(batch) == 0 && e.closedAndDrained() {
		return nil, ErrRXChannelClosed
	}
	return batch, nil
}
