package corex

import (
	"container/heap"
	"time"
)

// This file implements a time-ordered heap of (deadline, context)
// entries serviced by the event-loop bridge. container/heap is stdlib
// rather than an ecosystem dependency because none of the retrieved
// examples ship a suspension-integrated timer heap — see DESIGN.md for
// the justification required when a component falls back to the
// standard library.

type timerEntry struct {
	deadline time.Time
	sig      *Signal
	index    int
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Timers holds every pending deadline for one Scheduler. An event-loop
// adapter (see corex/epolloop) bounds its poll by NextDeadline and then
// calls Fire so that expired entries wake their waiting Signal.
type Timers struct {
	s        *Scheduler
	now      func() time.Time
	pq       timerHeap
	bySignal map[*Signal]*timerEntry
}

// NewTimers creates an empty Timers bound to s. now defaults to
// time.Now if nil; tests substitute a controllable clock.
func (s *Scheduler) NewTimers(now func() time.Time) *Timers {
	if now == nil {
		now = time.Now
	}
	return &Timers{s: s, now: now, bySignal: make(map[*Signal]*timerEntry)}
}

// After returns a Signal that fires once, at least d after the call,
// when the owning Scheduler's idle/prepare hooks next observe an
// expired deadline (see NextDeadline and Fire). The returned Signal is a valid
// argument to Cancel, which removes it from the heap before it fires.
func (t *Timers) After(d time.Duration) *Signal {
	sig := t.s.NewSignal()
	e := &timerEntry{deadline: t.now().Add(d), sig: sig}
	t.bySignal[sig] = e
	heap.Push(&t.pq, e)
	return sig
}

// Cancel removes sig's pending entry from the heap before it fires,
// so a canceled waiter never leaves a stale deadline behind. It is a
// no-op if sig already fired or was never registered with t.
func (t *Timers) Cancel(sig *Signal) {
	e, ok := t.bySignal[sig]
	if !ok {
		return
	}
	delete(t.bySignal, sig)
	heap.Remove(&t.pq, e.index)
}

// Sleep suspends the calling context for at least d. A context
// canceled mid-sleep has its heap entry removed as part of reaping
// instead of lingering until it would have fired.
func (t *Timers) Sleep(d time.Duration) {
	sig := t.After(d)
	sig.waitWithCleanup(func() { t.Cancel(sig) })
}

// NextDeadline reports the time of the earliest pending timer, and
// whether one exists — the value an event-loop adapter passes as its
// reactor's block timeout.
func (t *Timers) NextDeadline() (time.Time, bool) {
	if len(t.pq) == 0 {
		return time.Time{}, false
	}
	return t.pq[0].deadline, true
}

// Fire wakes and removes every timer entry whose deadline is not after
// now. It is safe to call unconditionally from an idle or prepare
// hook; it is a no-op when nothing has expired.
func (t *Timers) Fire(now time.Time) {
	for len(t.pq) > 0 && !t.pq[0].deadline.After(now) {
		e := heap.Pop(&t.pq).(*timerEntry)
		delete(t.bySignal, e.sig)
		e.sig.Send()
	}
}
