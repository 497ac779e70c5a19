package bridge

// task is a one-shot, boxed callable consumed by exactly one executor
// invocation. It carries its own reply: run() invokes the user closure with
// the borrowed host context and delivers the result, while abandon() lets
// the channel's teardown path reject a task that will never reach a host,
// without ever running user code.
type task[H any] struct {
	run     func(h *H) error
	abandon func()
}

// newTask boxes fn together with a reply, matching the "closure internally
// captures the user function and the sender half of the reply one-shot"
// invariant: fn is reachable only through the returned task, and the only
// other holder of rep is the Dispatch call waiting on its result.
func newTask[H any, R any](fn func(h *H) R, rep *reply[R]) task[H] {
	return task[H]{
		run: func(h *H) error {
			if rep.isAbandoned() {
				return ErrTXChannelClosed
			}
			val := fn(h)
			return rep.deliver(val, nil)
		},
		abandon: func() {
			rep.reject(ErrTXChannelClosed)
		},
	}
}

// Task is the exported handle PopMany returns to callers outside this
// package (the fiber pool) so they can run a batch without reaching into
// unexported fields.
type Task[H any] struct {
	t task[H]
}

// Run invokes the boxed closure against h and delivers its result.
func (w Task[H]) Run(h *H) error { return w.t.run(h) }

// Abandon rejects the task without ever invoking user code, for a
// shutdown path that found a task too late to run it against a host.
func (w Task[H]) Abandon() { w.t.abandon() }
