// Package fiberpool runs the cooperative worker side of a bridge: a single
// scheduler goroutine batches tasks off the Executor and fans them out to a
// small set of workers that invoke them one at a time against the shared
// host context.
//
// The fan-out queue and its wakeup signal are modeled on a classic
// pending-notify idiom: an unbounded container/list guarded by a mutex, and
// a size-1 buffered channel that collapses any number of "something
// arrived" signals into one wakeup per idle->busy transition.
package fiberpool

import (
	"container/list"
	"sync"
	"time"

	"github.com/covebridge/fiberbridge/bridge"
)

// Pool owns the Executor it was started with (only the scheduler goroutine
// drains it, and closes it on exit) and runs its workers until Stop is
// called or the Executor reports the channel closed.
type Pool[H any] struct {
	host *H

	standbyTimeout time.Duration

	mu      sync.Mutex
	pending list.List // of bridge.Task[H], fanned out from the scheduler goroutine

	notify chan struct{}

	// die tells the scheduler to stop pulling new batches off the
	// Executor. It does not tell workers to abandon whatever has already
	// been fanned out into pending — see schedulerDone.
	die     chan struct{}
	dieOnce sync.Once

	// schedulerDone is closed by schedule() as its very last act, once it
	// is guaranteed to never push another batch into pending (whether it
	// stopped because the Executor reported the channel closed or because
	// die fired). Workers treat its closure as "drain pending to empty,
	// then it is safe to exit" rather than an immediate kill signal, so a
	// shutdown never strands a dequeued-but-unrun task with nobody left
	// to run or abandon it.
	schedulerDone chan struct{}

	wg sync.WaitGroup
}

// Start builds a pool of numWorkers fibers around ex and host, and begins
// draining immediately. host must either be safe for concurrent use by
// numWorkers goroutines, or numWorkers should be 1.
func Start[H any](ex *bridge.Executor[H], host *H, numWorkers, maxBatch int, coioTimeout, standbyTimeout time.Duration) (*Pool[H], error) {
	p := &Pool[H]{
		host:           host,
		standbyTimeout: standbyTimeout,
		notify:         make(chan struct{}, 1),
		die:            make(chan struct{}),
		schedulerDone:  make(chan struct{}),
	}

	p.wg.Add(1)
	go p.schedule(ex, maxBatch, coioTimeout)

	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go p.work()
	}

	return p, nil
}

// notifyPending wakes a worker if one is idle, collapsing any burst of
// arrivals into a single signal.
func (p *Pool[H]) notifyPending() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// schedule repeatedly drains the Executor in batches and appends them to
// the shared fan-out list, until the channel reports closed or die fires.
// Whichever happens, schedulerDone is closed exactly once as schedule's
// last act, after its final push (if any) has already landed in pending —
// so by the time workers observe schedulerDone closed, pending holds
// everything that will ever arrive.
func (p *Pool[H]) schedule(ex *bridge.Executor[H], maxBatch int, coioTimeout time.Duration) {
	defer p.wg.Done()
	defer ex.Close()
	defer close(p.schedulerDone)

	for {
		select {
		case <-p.die:
			return
		default:
		}

		batch, err := ex.PopMany(maxBatch, coioTimeout)
		if err != nil {
			return
		}
		if len(batch) == 0 {
			continue
		}

		p.mu.Lock()
		for _, t := range batch {
			p.pending.PushBack(t)
		}
		p.mu.Unlock()
		p.notifyPending()
	}
}

// popOne detaches the front task from the fan-out list, if any.
func (p *Pool[H]) popOne() (bridge.Task[H], bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.pending.Front()
	if e == nil {
		return bridge.Task[H]{}, false
	}
	p.pending.Remove(e)
	return e.Value.(bridge.Task[H]), true
}

// work is one fiber: pull a task, run it against the shared host, repeat;
// idle fibers cooperatively wait on the notify channel or the standby
// timeout, never busy-spinning. Once schedulerDone has fired, nothing will
// ever be appended to pending again, so a worker that finds it idle at that
// point drains whatever remains before exiting instead of abandoning it.
func (p *Pool[H]) work() {
	defer p.wg.Done()

	for {
		t, ok := p.popOne()
		if ok {
			_ = t.Run(p.host)
			continue
		}

		select {
		case <-p.notify:
			continue
		case <-time.After(p.standbyTimeout):
			continue
		case <-p.schedulerDone:
			if t, ok := p.popOne(); ok {
				_ = t.Run(p.host)
				continue
			}
			return
		}
	}
}

// Stop signals the scheduler to stop pulling new work and waits for every
// worker to drain whatever was already in flight before returning. Safe to
// call more than once.
func (p *Pool[H]) Stop() {
	p.dieOnce.Do(func() {
		close(p.die)
	})
	p.wg.Wait()
}
