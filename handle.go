package corex

import (
	"bytes"
	"errors"
	"io"
	"time"

	"golang.org/x/sys/unix"
)

// This file wraps a non-blocking file descriptor as a blocking-looking
// interface, using the scheduler and an event-loop bridge to suspend
// the calling Context instead of the OS thread. The reference bridge is
// corex/epolloop; Reactor is the seam any adapter — or a test double —
// can satisfy instead.

// Interest is the set of I/O readiness conditions a Reactor can watch
// a file descriptor for.
type Interest int

// Recognized Interest flags.
const (
	InterestRead Interest = 1 << iota
	InterestWrite
)

// Reactor is what a Handle needs from an event-loop adapter: register
// interest in a file descriptor and get back a Signal that fires once
// that interest is satisfied.
type Reactor interface {
	Watch(fd int, want Interest) *Signal
	Unwatch(fd int, want Interest)
}

// ErrTimeout is returned by a Handle operation that raced a timeout
// and lost.
var ErrTimeout = errors.New("corex: handle operation timed out")

// Handle wraps a non-blocking file descriptor. Every blocking-looking
// method suspends the calling Context at most until the Reactor
// reports the descriptor ready, racing an optional per-Handle timeout.
type Handle struct {
	fd      int
	desc    string
	reactor Reactor
	timers  *Timers
	timeout time.Duration

	readBuf []byte
	partial bool
}

// NewHandle wraps fd (which must already be, or is made, non-blocking)
// for use by a single Scheduler's contexts. r drives readiness
// notification; timers races per-call timeouts against it.
func NewHandle(fd int, desc string, r Reactor, timers *Timers) (*Handle, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, err
	}
	return &Handle{fd: fd, desc: desc, reactor: r, timers: timers}, nil
}

// SetTimeout bounds every subsequent Readable, Writable, Read, Write,
// and Readline call. A zero duration disables the bound.
func (h *Handle) SetTimeout(d time.Duration) { h.timeout = d }

// Desc returns the handle's diagnostic description.
func (h *Handle) Desc() string { return h.desc }

// Fd returns the underlying file descriptor.
func (h *Handle) Fd() int { return h.fd }

// waitFor suspends the calling context until want is satisfied on the
// descriptor, or the handle's timeout elapses first. The Reactor watch
// (and, when racing a timeout, the Timers entry) is unregistered on
// every exit path — normal return, timeout, or the calling context
// being canceled mid-wait.
func (h *Handle) waitFor(want Interest) error {
	ready := h.reactor.Watch(h.fd, want)
	unwatch := func() { h.reactor.Unwatch(h.fd, want) }

	if h.timeout <= 0 || h.timers == nil {
		ready.waitWithCleanup(unwatch)
		unwatch()
		return nil
	}

	timedOut := h.timers.After(h.timeout)
	cleanup := func() {
		unwatch()
		h.timers.Cancel(timedOut)
	}
	woke := waitEither(ready, timedOut, cleanup)
	if woke == timedOut {
		return ErrTimeout
	}
	return nil
}

// waitEither suspends until whichever of a, b fires first, and reports
// which one it was — the primitive behind every "race a timeout"
// pattern in the runtime. cleanup, if non-nil, runs exactly once
// regardless of which side wins or whether the calling context is
// canceled mid-wait, so a caller that owns an external registration (a
// Reactor watch, a Timers entry) never leaks it.
func waitEither(a, b *Signal, cleanup func()) *Signal {
	if a.s != b.s {
		panic("corex: waitEither: signals belong to different schedulers")
	}
	s := a.s
	winner := make(chan *Signal, 1)
	race := s.NewSignal()

	// Racing two edge-triggered Signals from within a single-threaded
	// scheduler cannot use goroutines directly (nothing may run
	// concurrently with the current context): instead, spawn a tiny
	// watcher child context per side that wakes race the moment its
	// side fires.
	fire := func(sig *Signal, tag *Signal) Entry {
		return func(co *Context, _ []any) []any {
			sig.Wait()
			select {
			case winner <- tag:
			default:
			}
			race.Send()
			return nil
		}
	}
	root := s.Root()
	wa := root.Spawn(fire(a, a))
	wb := root.Spawn(fire(b, b))

	// If the caller of waitEither is itself canceled while parked on
	// race, its own goroutine never resumes to reach the code below —
	// so the loser's cancellation and cleanup must happen here, inside
	// the cancelHook, rather than after race.Wait() returns.
	race.waitWithCleanup(func() {
		wa.Cancel()
		wb.Cancel()
		if cleanup != nil {
			cleanup()
		}
	})

	won := <-winner
	if won == a {
		wb.Cancel()
	} else {
		wa.Cancel()
	}
	if cleanup != nil {
		cleanup()
	}
	return won
}

// Readable suspends until the descriptor is ready for reading,
// reporting false if the handle's timeout elapses first.
func (h *Handle) Readable() bool { return h.waitFor(InterestRead) == nil }

// Writable suspends until the descriptor is ready for writing,
// reporting false if the handle's timeout elapses first.
func (h *Handle) Writable() bool { return h.waitFor(InterestWrite) == nil }

// rawRead performs one non-blocking read from the descriptor,
// suspending on EAGAIN/EWOULDBLOCK until it becomes readable and
// retrying, without touching h.readBuf — the primitive Read and
// Readline both build on to actually reach the fd.
func (h *Handle) rawRead(p []byte) (int, error) {
	for {
		n, err := unix.Read(h.fd, p)
		if err == nil {
			return n, nil
		}
		if !isAgain(err) {
			return n, err
		}
		if werr := h.waitFor(InterestRead); werr != nil {
			return 0, werr
		}
	}
}

// Partial reports whether Read currently accepts a short read instead
// of retrying to fill p completely.
func (h *Handle) Partial() bool { return h.partial }

// SetPartial controls whether Read may return as soon as the
// descriptor produces any bytes at all, rather than retrying until p
// is full. Readline also sets this internally after leaving bytes it
// didn't consume in the read-buffer.
func (h *Handle) SetPartial(partial bool) { h.partial = partial }

// Read reads into p: first it drains whatever Readline left buffered,
// then it loops reading from the descriptor — retaining a short read
// and continuing to fill the rest of p — until p is full, the
// descriptor reports EOF, an error occurs, or the partial flag says to
// return with whatever has been read so far.
func (h *Handle) Read(p []byte) (int, error) {
	total := 0
	if len(h.readBuf) > 0 {
		total = copy(p, h.readBuf)
		h.readBuf = h.readBuf[total:]
	}
	if total == len(p) || (total > 0 && h.partial) {
		return total, nil
	}
	for total < len(p) {
		n, err := h.rawRead(p[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil // descriptor is at EOF
		}
		if h.partial {
			return total, nil
		}
	}
	return total, nil
}

// Write writes p in full, suspending on EAGAIN/EWOULDBLOCK between
// partial writes.
func (h *Handle) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := unix.Write(h.fd, p[total:])
		if n > 0 {
			total += n
		}
		if err == nil {
			continue
		}
		if !isAgain(err) {
			return total, err
		}
		if werr := h.waitFor(InterestWrite); werr != nil {
			return total, werr
		}
	}
	return total, nil
}

// Readline reads until term appears in the stream (returning the line
// including term) or the descriptor is exhausted, using IRSSV
// (RecordSep) as the default terminator when term is nil. It reads raw
// fd data through rawRead rather than the public Read, since Read's
// own buffer-draining would otherwise fight over h.readBuf with the
// appends below.
func (h *Handle) Readline(co *Context, term []byte) ([]byte, error) {
	if term == nil {
		term = []byte(co.RecordSep())
	}
	for {
		if i := bytes.Index(h.readBuf, term); i >= 0 {
			line := h.readBuf[:i+len(term)]
			h.readBuf = h.readBuf[i+len(term):]
			h.partial = len(h.readBuf) > 0
			out := make([]byte, len(line))
			copy(out, line)
			return out, nil
		}
		chunk := make([]byte, 4096)
		n, err := h.rawRead(chunk)
		if n > 0 {
			h.readBuf = append(h.readBuf, chunk[:n]...)
		}
		if err == nil && n == 0 {
			err = io.EOF
		}
		if err != nil {
			if len(h.readBuf) > 0 {
				out := h.readBuf
				h.readBuf = nil
				h.partial = false
				return out, err
			}
			return nil, err
		}
	}
}

func isAgain(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}
