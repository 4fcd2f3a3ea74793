package corex

import "github.com/gammazero/deque"

// readyQueue is the scheduler's ready queue: one strict FIFO per
// priority level in [PrioMin, PrioMax], grounded on the teacher's
// priorityqueue.go but retyped from a single sorted slice to discrete
// per-priority buckets, since corex fixes eight priority levels rather
// than an open string ordering. Each bucket is a
// github.com/gammazero/deque.Deque for O(1) amortized push/pop at both
// ends (see DESIGN.md for why the same container is used for every
// wait-queue in the runtime).
type readyQueue struct {
	buckets [numPriorities]deque.Deque[*Context]
	nready  int
}

func (q *readyQueue) push(co *Context) {
	i := prioIndex(co.priority)
	co.inPriority = i
	q.buckets[i].PushBack(co)
	q.nready++
}

// empty reports whether no context is ready.
func (q *readyQueue) empty() bool { return q.nready == 0 }

// pop removes and returns the head of the highest non-empty priority
// bucket, or nil if the queue is empty.
func (q *readyQueue) pop() *Context {
	for i := len(q.buckets) - 1; i >= 0; i-- {
		if q.buckets[i].Len() != 0 {
			q.nready--
			return q.buckets[i].PopFront()
		}
	}
	return nil
}

// popOtherThan removes and returns the first ready context that is not
// self, scanning buckets from highest priority to lowest, or nil if
// self is the only ready context. Used by CedeNotSelf, which must
// yield to some other runnable context regardless of whether it
// outranks self.
func (q *readyQueue) popOtherThan(self *Context) *Context {
	for i := len(q.buckets) - 1; i >= 0; i-- {
		b := &q.buckets[i]
		for j := 0; j < b.Len(); j++ {
			if c := b.At(j); c != self {
				b.Remove(j)
				q.nready--
				return c
			}
		}
	}
	return nil
}

// removeContext deletes co from an arbitrary *Context wait-queue,
// shared by every synchronization primitive's cancelHook (see
// context.go's suspendWithCleanup).
func removeContext(q *deque.Deque[*Context], co *Context) {
	for i := 0; i < q.Len(); i++ {
		if q.At(i) == co {
			q.Remove(i)
			return
		}
	}
}

// remove deletes co from its bucket, used when canceling a READY
// context. O(n) in the bucket's length, which is acceptable:
// cancellation of an enqueued-but-not-running context is rare compared
// to push/pop.
func (q *readyQueue) remove(co *Context) bool {
	b := &q.buckets[co.inPriority]
	for i := 0; i < b.Len(); i++ {
		if b.At(i) == co {
			b.Remove(i)
			q.nready--
			return true
		}
	}
	return false
}
