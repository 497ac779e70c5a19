package bridge

import (
	"sync"
	"sync/atomic"

	"code.hybscloud.com/lfq"
)

// core is the shared state behind every Dispatcher/Executor clone pair: the
// bounded MPMC queue itself, an approximate depth counter (lfq deliberately
// omits Len(), "track counts in application logic when needed" per its own
// doc comment), and the reference counts that stand in for Rust's Drop-driven
// channel closing. Dispatcher and Executor both hold a *core but never hold
// each other.
type core[H any] struct {
	queue lfq.Queue[task[H]]

	// pending approximates queue depth: incremented on successful enqueue,
	// decremented on successful dequeue. It drives both the edge-triggered
	// wake rule and the "stop batching once <=1 left" rule.
	pending atomic.Int64

	dispatcherRefs atomic.Int64
	executorRefs   atomic.Int64

	// producerClosed: every Dispatcher clone has been closed. Once true and
	// pending reaches zero, Executor.Exec/PopMany return ErrRXChannelClosed.
	producerClosed atomic.Bool
	// consumerClosed: every Executor clone has been closed. Enqueue attempts
	// fail fast with ErrTXChannelClosed once this is set.
	consumerClosed atomic.Bool

	drainOnce sync.Once
}

func newCore[H any](buffer int) *core[H] {
	c := &core[H]{queue: lfq.NewMPMC[task[H]](buffer)}
	c.dispatcherRefs.Store(1)
	c.executorRefs.Store(1)
	return c
}

func (c *core[H]) addDispatcherRef() { c.dispatcherRefs.Add(1) }

func (c *core[H]) releaseDispatcherRef() {
	if c.dispatcherRefs.Add(-1) == 0 {
		c.producerClosed.Store(true)
	}
}

func (c *core[H]) addExecutorRef() { c.executorRefs.Add(1) }

func (c *core[H]) releaseExecutorRef() {
	if c.executorRefs.Add(-1) == 0 {
		c.consumerClosed.Store(true)
		c.drainOnce.Do(c.abandonRemaining)
	}
}

// abandonRemaining runs once, when the last Executor clone closes: every
// task still sitting in the queue has nobody left to run it against a host,
// so each is rejected in place — an explicit walk, since Go has no
// destructor to do it for us — rather than left to dangle forever.
func (c *core[H]) abandonRemaining() {
	if d, ok := c.queue.(lfq.Drainer); ok {
		d.Drain()
	}
	for {
		t, err := c.queue.Dequeue()
		if err != nil {
			return
		}
		c.pending.Add(-1)
		t.abandon()
	}
}

func (c *core[H]) len() int {
	if n := c.pending.Load(); n > 0 {
		return int(n)
	}
	return 0
}
