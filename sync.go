package corex

import "github.com/gammazero/deque"

// This file implements the suspension-based synchronization primitives
// built directly on Scheduler.Schedule and Context.Ready. Every
// wait-queue here is a github.com/gammazero/deque.Deque, grounded on
// webriots-corio's sema type and chosen over the teacher's own
// append/slices.Delete waiter slice (semaphore.go) for O(1) amortized
// push/pop at both ends — see DESIGN.md.
//
// None of these types are safe for use from more than one Scheduler:
// like the teacher's own Semaphore, "a primitive must not be shared by
// more than one Scheduler."

// Semaphore is a counting semaphore with strict FIFO fairness: waiters
// are released in the order they blocked, and a released waiter never
// re-checks the count itself.
type Semaphore struct {
	s       *Scheduler
	count   int
	waiters deque.Deque[*Context]
}

// NewSemaphore creates a semaphore with n initial permits.
func (s *Scheduler) NewSemaphore(n int) *Semaphore {
	return &Semaphore{s: s, count: n}
}

// Down acquires one permit, suspending the calling context if none is
// available.
func (sem *Semaphore) Down() {
	if sem.count > 0 {
		sem.count--
		return
	}
	cur := sem.s.current
	sem.waiters.PushBack(cur)
	cur.suspendWithCleanup(func() { removeContext(&sem.waiters, cur) })
}

// TryDown acquires a permit only if one is immediately available,
// without suspending.
func (sem *Semaphore) TryDown() bool {
	if sem.count > 0 {
		sem.count--
		return true
	}
	return false
}

// Up releases one permit. If a context is waiting, it is woken and
// receives the permit directly; otherwise the count is incremented.
func (sem *Semaphore) Up() {
	if sem.waiters.Len() > 0 {
		w := sem.waiters.PopFront()
		_ = w.Ready()
		return
	}
	sem.count++
}

// RWLock is a reader/writer lock with writer preference: once a writer
// is waiting, no new reader may enter ahead of it, which prevents
// writer starvation under a steady stream of readers.
type RWLock struct {
	s          *Scheduler
	writerHeld bool
	readers    int
	readerQ    deque.Deque[*Context]
	writerQ    deque.Deque[*Context]
}

// NewRWLock creates an unlocked RWLock.
func (s *Scheduler) NewRWLock() *RWLock {
	return &RWLock{s: s}
}

// RLock acquires the lock for reading, suspending if a writer holds it
// or one is already waiting. A queued reader's l.readers slot is
// credited by wakeNext at the moment it is chosen to run, not here
// after it resumes, so the hand-off is atomic with the writer/reader
// that released the lock clearing its own state.
func (l *RWLock) RLock() {
	if !l.writerHeld && l.writerQ.Len() == 0 {
		l.readers++
		return
	}
	cur := l.s.current
	l.readerQ.PushBack(cur)
	cur.suspendWithCleanup(func() { removeContext(&l.readerQ, cur) })
}

// TryRLock acquires the lock for reading only if it would not
// suspend.
func (l *RWLock) TryRLock() bool {
	if !l.writerHeld && l.writerQ.Len() == 0 {
		l.readers++
		return true
	}
	return false
}

// RUnlock releases one reader's hold. When the last reader leaves, the
// next writer (if any) is woken; otherwise all waiting readers are.
func (l *RWLock) RUnlock() {
	l.readers--
	if l.readers == 0 {
		l.wakeNext()
	}
}

// Lock acquires the lock for writing, suspending until no reader holds
// it, no writer holds it, and no writer is already ahead in queue. A
// queued writer's l.writerHeld is set by wakeNext at the moment it is
// chosen to run, not here after it resumes (see RLock).
func (l *RWLock) Lock() {
	if !l.writerHeld && l.readers == 0 && l.writerQ.Len() == 0 {
		l.writerHeld = true
		return
	}
	cur := l.s.current
	l.writerQ.PushBack(cur)
	cur.suspendWithCleanup(func() { removeContext(&l.writerQ, cur) })
}

// TryLock acquires the lock for writing only if it would not suspend.
func (l *RWLock) TryLock() bool {
	if !l.writerHeld && l.readers == 0 && l.writerQ.Len() == 0 {
		l.writerHeld = true
		return true
	}
	return false
}

// Unlock releases a writer's hold, then wakes the next writer, or if
// none is waiting, every waiting reader.
func (l *RWLock) Unlock() {
	l.writerHeld = false
	l.wakeNext()
}

// wakeNext transfers lock ownership atomically with popping a waiter:
// it updates writerHeld/readers itself, in the same call that clears
// the outgoing holder's own state, so no other RLock/Lock/TryLock/
// TryRLock call can observe an unlocked-looking gap before the woken
// context actually resumes (mirrors Semaphore.Up transferring count
// directly instead of leaving it to the woken context).
func (l *RWLock) wakeNext() {
	if l.writerQ.Len() > 0 {
		w := l.writerQ.PopFront()
		l.writerHeld = true
		_ = w.Ready()
		return
	}
	for l.readerQ.Len() > 0 {
		r := l.readerQ.PopFront()
		l.readers++
		_ = r.Ready()
	}
}

// chanWaiter pairs a blocked context with the value it is offering (a
// putter) or will receive (a getter woken with a direct hand-off).
type chanWaiter struct {
	co    *Context
	value any
}

// Channel is a bounded, FIFO channel of values, distinct from a Go
// channel in that both ends suspend a Context rather than a goroutine
// directly, and a zero-capacity Channel behaves as a pure hand-off.
type Channel struct {
	s       *Scheduler
	buf     deque.Deque[any]
	cap     int
	putters deque.Deque[*chanWaiter]
	getters deque.Deque[*chanWaiter]
}

// NewChannel creates a Channel with the given buffer capacity. A
// capacity of 0 means every Put must be matched by a waiting Get.
func (s *Scheduler) NewChannel(capacity int) *Channel {
	return &Channel{s: s, cap: capacity}
}

// Put sends v on the channel, suspending the calling context if the
// buffer is full and no getter is waiting.
func (c *Channel) Put(v any) {
	if c.getters.Len() > 0 {
		g := c.getters.PopFront()
		g.value = v
		_ = g.co.Ready()
		return
	}
	if c.buf.Len() < c.cap {
		c.buf.PushBack(v)
		return
	}
	cur := c.s.current
	w := &chanWaiter{co: cur, value: v}
	c.putters.PushBack(w)
	cur.suspendWithCleanup(func() { removeChanWaiter(&c.putters, cur) })
}

// TryPut sends v only if it would not suspend.
func (c *Channel) TryPut(v any) bool {
	if c.getters.Len() > 0 {
		g := c.getters.PopFront()
		g.value = v
		_ = g.co.Ready()
		return true
	}
	if c.buf.Len() < c.cap {
		c.buf.PushBack(v)
		return true
	}
	return false
}

// Get receives a value from the channel, suspending the calling
// context if none is immediately available.
func (c *Channel) Get() any {
	if v, ok := c.tryGetLocked(); ok {
		return v
	}
	cur := c.s.current
	w := &chanWaiter{co: cur}
	c.getters.PushBack(w)
	cur.suspendWithCleanup(func() { removeChanWaiter(&c.getters, cur) })
	return w.value
}

// TryGet receives a value only if one is immediately available.
func (c *Channel) TryGet() (any, bool) {
	return c.tryGetLocked()
}

func (c *Channel) tryGetLocked() (any, bool) {
	if c.buf.Len() > 0 {
		v := c.buf.PopFront()
		if c.putters.Len() > 0 {
			p := c.putters.PopFront()
			c.buf.PushBack(p.value)
			_ = p.co.Ready()
		}
		return v, true
	}
	if c.putters.Len() > 0 {
		p := c.putters.PopFront()
		_ = p.co.Ready()
		return p.value, true
	}
	return nil, false
}

func removeChanWaiter(q *deque.Deque[*chanWaiter], co *Context) {
	for i := 0; i < q.Len(); i++ {
		if q.At(i).co == co {
			q.Remove(i)
			return
		}
	}
}

// Signal is edge-triggered: a Send with no waiter latches a single
// pending edge for the next Wait to consume, but Broadcast never
// latches — it only wakes whoever is already waiting.
type Signal struct {
	s       *Scheduler
	pending bool
	waiters deque.Deque[*Context]
}

// NewSignal creates an unset Signal.
func (s *Scheduler) NewSignal() *Signal {
	return &Signal{s: s}
}

// Wait blocks until the signal fires, consuming one pending edge if
// one is already latched.
func (sig *Signal) Wait() {
	sig.waitWithCleanup(nil)
}

// waitWithCleanup is Wait plus an extra cancellation hook: extra runs,
// in addition to the standard waiter-queue removal, if the calling
// context is canceled while suspended here — the seam callers that hold
// their own external registration (a Reactor watch, a Timers entry) use
// to unregister it as part of reaping instead of only on normal return.
func (sig *Signal) waitWithCleanup(extra func()) {
	if sig.pending {
		sig.pending = false
		return
	}
	cur := sig.s.current
	sig.waiters.PushBack(cur)
	cur.suspendWithCleanup(func() {
		removeContext(&sig.waiters, cur)
		if extra != nil {
			extra()
		}
	})
}

// Send wakes one waiter, or latches a pending edge if none is waiting.
func (sig *Signal) Send() {
	if sig.waiters.Len() > 0 {
		w := sig.waiters.PopFront()
		_ = w.Ready()
		return
	}
	sig.pending = true
}

// Broadcast wakes every current waiter without latching a pending
// edge for future waiters.
func (sig *Signal) Broadcast() {
	for sig.waiters.Len() > 0 {
		w := sig.waiters.PopFront()
		_ = w.Ready()
	}
}
