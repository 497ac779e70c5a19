package bridge

import "errors"

// ErrTXChannelClosed is returned to a Dispatch caller, or from a task's own
// invocation, when the reply side of a call is gone: either the caller is no
// longer waiting (abandoned), or there is no executor left to drain the
// queue at all.
var ErrTXChannelClosed = errors.New("bridge: tx channel closed")

// ErrRXChannelClosed is returned by Executor.Exec/PopMany once every
// Dispatcher has been closed and the queue has fully drained: there is
// nothing left to deliver and nothing more will ever arrive.
var ErrRXChannelClosed = errors.New("bridge: rx channel closed")

// IOError wraps a failure from the wakeup primitive (eventfd read/write) or
// an unexpected queue error that isn't a would-block/closed condition.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return "bridge: " + e.Op + ": " + e.Err.Error() }
func (e *IOError) Unwrap() error { return e.Err }
