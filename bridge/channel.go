package bridge

import "github.com/covebridge/fiberbridge/eventfd"

// New builds one bounded MPMC task channel and returns its two ends: a
// Dispatcher for user-code callers and an Executor for the host's fiber
// pool. buffer is the queue's fixed capacity; both ends start with a
// reference count of one and can be cloned independently via TryClone.
func New[H any](buffer int) (*Dispatcher[H], *Executor[H], error) {
	c := newCore[H](buffer)

	wake, err := eventfd.New(0, false)
	if err != nil {
		return nil, nil, &IOError{Op: "create eventfd", Err: err}
	}
	execWake, err := wake.TryClone()
	if err != nil {
		_ = wake.Close()
		return nil, nil, &IOError{Op: "dup eventfd", Err: err}
	}

	// The dispatcher side only ever writes to its wake fd from user-code
	// (potentially asynchronous) goroutines, never waits on it, so it is
	// wrapped as an AsyncEventFd; the executor side is the one that blocks
	// on WaitReadable and stays a plain EventFd.
	return newDispatcher(c, eventfd.NewAsync(wake)), newExecutor(c, execWake), nil
}
