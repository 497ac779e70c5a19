//go:build linux

package eventfd

import (
	"encoding/binary"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

func newPlatform(init uint64, isSemaphore bool) (EventFd, error) {
	flags := unix.EFD_NONBLOCK | unix.EFD_CLOEXEC
	if isSemaphore {
		flags |= unix.EFD_SEMAPHORE
	}

	fd, err := unix.Eventfd(uint32(init), flags)
	if err != nil {
		return nil, &opError{"eventfd", err}
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		unix.Close(fd)
		return nil, &opError{"epoll_create1", err}
	}

	ev := &linuxEventFd{fd: fd, epfd: epfd}
	if err := ev.registerEpoll(); err != nil {
		ev.Close()
		return nil, err
	}
	return ev, nil
}

// linuxEventFd is the Linux implementation, backed by a real eventfd(2) plus
// a private epoll instance used only to implement cooperative waits with a
// timeout (epoll_wait's timeout arg is exactly coio_wait's timeout arg).
type linuxEventFd struct {
	fd   int
	epfd int

	mu     sync.Mutex
	closed bool
}

func (e *linuxEventFd) registerEpoll() error {
	event := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(e.fd)}
	return unix.EpollCtl(e.epfd, unix.EPOLL_CTL_ADD, e.fd, &event)
}

func (e *linuxEventFd) Read() (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}

	var buf [8]byte
	n, err := unix.Read(e.fd, buf[:])
	if err == unix.EAGAIN {
		return 0, ErrWouldBlock
	}
	if err != nil {
		return 0, &opError{"read", err}
	}
	if n != 8 {
		return 0, &opError{"read", unix.EIO}
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (e *linuxEventFd) Write(v uint64) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := unix.Write(e.fd, buf[:])
	if err == unix.EAGAIN {
		return ErrWouldBlock
	}
	if err != nil {
		return &opError{"write", err}
	}
	return nil
}

func (e *linuxEventFd) WaitReadable(timeout time.Duration) error {
	e.mu.Lock()
	closed := e.closed
	epfd := e.epfd
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}

	ms := durationToEpollMillis(timeout)
	events := make([]unix.EpollEvent, 1)
	n, err := unix.EpollWait(epfd, events, ms)
	if err != nil {
		if err == unix.EINTR {
			return ErrTimeout
		}
		return &opError{"epoll_wait", err}
	}
	if n == 0 {
		return ErrTimeout
	}
	return nil
}

func durationToEpollMillis(timeout time.Duration) int {
	if timeout <= 0 {
		return 0
	}
	ms := timeout.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	if ms > 1<<31-1 {
		ms = 1<<31 - 1
	}
	return int(ms)
}

func (e *linuxEventFd) TryClone() (EventFd, error) {
	e.mu.Lock()
	closed := e.closed
	fd := e.fd
	e.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	dupFd, err := unix.Dup(fd)
	if err != nil {
		return nil, &opError{"dup", err}
	}
	unix.CloseOnExec(dupFd)

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		unix.Close(dupFd)
		return nil, &opError{"epoll_create1", err}
	}

	clone := &linuxEventFd{fd: dupFd, epfd: epfd}
	if err := clone.registerEpoll(); err != nil {
		clone.Close()
		return nil, err
	}
	return clone, nil
}

func (e *linuxEventFd) Fd() int {
	return e.fd
}

func (e *linuxEventFd) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	unix.Close(e.epfd)
	return unix.Close(e.fd)
}

type opError struct {
	op  string
	err error
}

func (e *opError) Error() string { return "eventfd: " + e.op + ": " + e.err.Error() }
func (e *opError) Unwrap() error { return e.err }
