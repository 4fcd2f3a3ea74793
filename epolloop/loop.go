// Package epolloop is corex's reference event-loop bridge: a Loop
// backed by Linux epoll that drives a Scheduler's Idle and Prepare
// hooks and hands out the *corex.Signal values corex's Handle adapter
// waits on.
package epolloop

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"

	"github.com/corex-run/corex"
)

// Interest re-exports corex.Interest so callers of this package rarely
// need to import corex just to name InterestRead/InterestWrite.
type Interest = corex.Interest

const (
	InterestRead  = corex.InterestRead
	InterestWrite = corex.InterestWrite
)

type epollWatch struct {
	events uint32
	read   *corex.Signal
	write  *corex.Signal
}

// Loop is one epoll instance, its live watch table, and the Timers
// heap it services on every poll.
type Loop struct {
	epfd    int
	sched   *corex.Scheduler
	timers  *corex.Timers
	watches map[int]*epollWatch
}

// New opens an epoll instance bound to s.
func New(s *corex.Scheduler) (*Loop, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &Loop{
		epfd:    fd,
		sched:   s,
		timers:  s.NewTimers(nil),
		watches: make(map[int]*epollWatch),
	}, nil
}

// Timers returns the Loop's timer heap, for corex.NewHandle (which races
// a Handle's timeout against it) and (*corex.Timers).Sleep/After callers.
func (l *Loop) Timers() *corex.Timers { return l.timers }

// Close releases the underlying epoll file descriptor.
func (l *Loop) Close() error { return unix.Close(l.epfd) }

// Watch registers interest in fd and returns the Signal that fires the
// next time that interest is satisfied, implementing corex.Reactor.
func (l *Loop) Watch(fd int, want corex.Interest) *corex.Signal {
	w, ok := l.watches[fd]
	if !ok {
		w = &epollWatch{}
		l.watches[fd] = w
	}
	if want&corex.InterestRead != 0 && w.read == nil {
		w.read = l.sched.NewSignal()
	}
	if want&corex.InterestWrite != 0 && w.write == nil {
		w.write = l.sched.NewSignal()
	}
	l.applyEvents(fd, w)

	if want&corex.InterestRead != 0 {
		return w.read
	}
	return w.write
}

// Unwatch reverses a prior Watch for want, implementing corex.Reactor.
func (l *Loop) Unwatch(fd int, want corex.Interest) {
	w, ok := l.watches[fd]
	if !ok {
		return
	}
	if want&corex.InterestRead != 0 {
		w.read = nil
	}
	if want&corex.InterestWrite != 0 {
		w.write = nil
	}
	if w.read == nil && w.write == nil {
		_ = unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		delete(l.watches, fd)
		return
	}
	l.applyEvents(fd, w)
}

func (l *Loop) applyEvents(fd int, w *epollWatch) {
	var events uint32
	if w.read != nil {
		events |= unix.EPOLLIN
	}
	if w.write != nil {
		events |= unix.EPOLLOUT
	}
	op := unix.EPOLL_CTL_MOD
	if w.events == 0 {
		op = unix.EPOLL_CTL_ADD
	}
	_ = unix.EpollCtl(l.epfd, op, fd, &unix.EpollEvent{Events: events, Fd: int32(fd)})
	w.events = events
}

// Prepare does a zero-timeout poll, meant for corex.WithPrepare: it
// lets already-ready I/O and expired timers surface before the ready
// queue is even checked.
func (l *Loop) Prepare() { l.poll(0) }

// Idle blocks until the next timer deadline or I/O readiness, meant
// for corex.WithIdle.
func (l *Loop) Idle() {
	timeoutMS := -1
	if d, ok := l.timers.NextDeadline(); ok {
		if wait := time.Until(d); wait > 0 {
			timeoutMS = int(wait.Milliseconds()) + 1
		} else {
			timeoutMS = 0
		}
	}
	l.poll(timeoutMS)
}

func (l *Loop) poll(timeoutMS int) {
	var events [64]unix.EpollEvent
	n, err := unix.EpollWait(l.epfd, events[:], timeoutMS)
	if err != nil && !errors.Is(err, unix.EINTR) {
		return
	}
	for i := 0; i < n; i++ {
		ev := events[i]
		w, ok := l.watches[int(ev.Fd)]
		if !ok {
			continue
		}
		if w.read != nil && ev.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
			w.read.Send()
		}
		if w.write != nil && ev.Events&(unix.EPOLLOUT|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
			w.write.Send()
		}
	}
	l.timers.Fire(time.Now())
}
