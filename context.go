package corex

import (
	"fmt"
	"io"

	"github.com/gammazero/deque"
)

// Status is the lifecycle stage of a Context.
type Status int

// Recognized Context statuses.
const (
	New Status = iota
	Ready
	Running
	Suspended
	Zombie
	Dead
)

func (s Status) String() string {
	switch s {
	case New:
		return "NEW"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Suspended:
		return "SUSPENDED"
	case Zombie:
		return "ZOMBIE"
	case Dead:
		return "DEAD"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Entry is the function a Context runs. It receives the Context and
// the argument list it was created with, and returns the values
// delivered to joiners when the Context terminates.
//
// An Entry must suspend only through the Context it is given: Cede,
// Schedule, Join, or a synchronization primitive. There is no
// preemption, so an Entry that never suspends starves every other
// Context on the same Scheduler.
type Entry func(co *Context, args []any) []any

// A Context is a suspended or running thread of execution: its own
// backing goroutine, a saved slice of per-context globals, a priority,
// a status, and a join queue. See DESIGN.md for how this is grounded on
// the teacher's Coroutine type.
//
// The zero value is not usable; construct with (*Scheduler).NewContext
// or (*Scheduler).NewEmptyContext.
type Context struct {
	scheduler *Scheduler

	entry Entry
	args  []any

	status   Status
	priority Priority
	desc     string

	saveMask SaveFlag
	saved    globals

	parent   *Context
	children []*Context

	joinQueue deque.Deque[*Context]
	joined    bool
	results   []any

	canceled bool

	// cancelHook, when non-nil, removes co from whatever wait-queue it
	// currently occupies. Every suspending primitive sets it just
	// before calling Schedule and clears it just after, so Cancel can
	// unregister co from queues it's waiting on without knowing which
	// primitive it was waiting on.
	cancelHook func()

	ps panicstack

	// transfer plumbing, see transfer.go.
	resumeCh   chan struct{}
	started    bool
	inPriority int // index into the scheduler's ready buckets while READY

	// abandoned is set when Cancel tears down co while its backing
	// goroutine is parked mid-transfer instead of having actually
	// returned: that goroutine never wakes (nothing transfers into a
	// ZOMBIE/DEAD context again), so it is permanently stuck receiving
	// on resumeCh. contextPool.release uses this to avoid handing that
	// same channel to a future occupant, which would otherwise let the
	// leaked goroutine and the new one race to receive the same baton.
	abandoned bool
}

// NewContext creates a new Context bound to sched, with entry point fn
// and arguments args. The Context starts in status New: it has no
// stack until it is first transferred into, and it may only receive a
// transfer as the "prev" argument if it is later used as a plain save
// slot (see NewEmptyContext).
func (s *Scheduler) NewContext(fn Entry, args ...any) *Context {
	if fn == nil {
		panic("corex: NewContext: nil entry")
	}
	co := s.acquireContext()
	co.scheduler = s
	co.entry = fn
	co.args = args
	co.status = New
	co.priority = PrioNormal
	co.saveMask = SaveDefault
	co.saved = defaultGlobals()
	co.ensureResumeCh()
	return co
}

// NewEmptyContext creates a Context with no entry point. An empty
// Context is never READY: its only legal first operation is being
// named as the "prev" argument of a transfer, the idiom "allocate a
// save area for the current registers" — a way to park the calling
// goroutine's own suspended state without giving it an Entry of its
// own.
func (s *Scheduler) NewEmptyContext() *Context {
	co := s.acquireContext()
	co.scheduler = s
	co.entry = nil
	co.status = New
	co.priority = PrioNormal
	co.saveMask = SaveDefault
	co.saved = defaultGlobals()
	co.ensureResumeCh()
	return co
}

// empty reports whether co has never captured any running state: it
// has no entry function and has never been named as the "prev" side of
// a transfer. Once used as prev once, a Context is no longer empty even
// with entry == nil — it now represents a genuine suspension point
// that transfer can resume (see transfer.go), and Ready stops rejecting
// it.
func (co *Context) empty() bool { return co.entry == nil && !co.started }

// Status returns co's current lifecycle status.
func (co *Context) Status() Status { return co.status }

// Priority returns co's current scheduling priority.
func (co *Context) Priority() Priority { return co.priority }

// Parent returns the context that spawned co as a child, or nil for a
// root context.
func (co *Context) Parent() *Context { return co.parent }

// Scheduler returns the Scheduler that owns co.
func (co *Context) Scheduler() *Scheduler { return co.scheduler }

// Desc returns co's free-form description string.
func (co *Context) Desc() string { return co.desc }

// SetDesc sets co's description string, used only for diagnostics.
// Description mutation never suspends.
func (co *Context) SetDesc(s string) { co.desc = s }

// Ready moves co to status READY and enqueues it in its priority
// bucket:
//   - a no-op if co is already READY or RUNNING;
//   - an error if co is ZOMBIE or DEAD;
//   - otherwise (NEW or SUSPENDED) co transitions to READY.
//
// Readying an empty Context panics: an empty Context can never legally
// become READY.
func (co *Context) Ready() error {
	if co.empty() {
		panic("corex: Ready called on an empty context")
	}
	switch co.status {
	case Ready, Running:
		return nil
	case Zombie, Dead:
		return ErrDead
	default:
		co.status = Ready
		co.scheduler.enqueue(co)
		return nil
	}
}

// Prio returns co's priority when called with no arguments, or sets it
// and returns the previous value otherwise.
//
// A priority change to the current Context takes effect at the next
// Schedule. A priority change to an already-enqueued READY context may
// be deferred until it is next scheduled: re-bucketing it immediately
// would need a linear scan of the bucket that currently holds it, which
// isn't worth it for a rare operation.
func (co *Context) Prio(new ...Priority) Priority {
	old := co.priority
	if len(new) == 0 {
		return old
	}
	p := new[0]
	if p < PrioMin {
		p = PrioMin
	}
	if p > PrioMax {
		p = PrioMax
	}
	co.priority = p
	return old
}

// Nice adjusts co's priority by delta and returns the new value,
// clamped to [PrioMin, PrioMax].
func (co *Context) Nice(delta int) Priority {
	co.Prio(Priority(int(co.priority) + delta))
	return co.priority
}

// SaveFlags returns co's current save mask when called with no
// arguments, or sets it and returns the previous mask otherwise.
func (co *Context) SaveFlags(new ...SaveFlag) SaveFlag {
	old := co.saveMask
	if len(new) != 0 {
		co.saveMask = new[0]
	}
	return old
}

// SaveAlso ORs extra into co's save mask and returns the previous mask.
func (co *Context) SaveAlso(extra SaveFlag) SaveFlag {
	old := co.saveMask
	co.saveMask |= extra
	return old
}

// Reverter undoes a GuardedSave when dropped.
type Reverter struct {
	co  *Context
	old SaveFlag
}

// Revert restores the save mask co.GuardedSave captured. Calling
// Revert more than once is a no-op after the first call.
func (r *Reverter) Revert() {
	if r == nil || r.co == nil {
		return
	}
	r.co.saveMask = r.old
	r.co = nil
}

// GuardedSave ORs extra into co's save mask and returns a Reverter
// whose Revert method restores the previous mask exactly — used to
// layer save semantics for a bounded scope, e.g.:
//
//	rev := co.GuardedSave(corex.ERRSV)
//	defer rev.Revert()
func (co *Context) GuardedSave(extra SaveFlag) *Reverter {
	old := co.SaveAlso(extra)
	return &Reverter{co: co, old: old}
}

// Ended reports whether co has run to completion or been canceled.
func (co *Context) Ended() bool {
	return co.status == Zombie || co.status == Dead
}

// Canceled reports whether co terminated via Cancel rather than by its
// entry function returning normally.
func (co *Context) Canceled() bool { return co.canceled }

// Panic returns the recovered panic(s) from co's Entry, or nil if it
// ran to completion (or was canceled) without panicking.
func (co *Context) Panic() *PanicError { return co.ps.asError() }

// Cancel stores values as co's return list, marks co ZOMBIE, wakes
// anything joined on co, and appends it to the reaper's destroy list. A
// context canceled while READY or SUSPENDED is first removed from
// whatever queue it occupied — its ready bucket, or whatever
// primitive's wait-queue registered a cancelHook — and it never resumes
// to see the cancellation: there is no partial-cancel. If co is the
// currently running context, Cancel invokes Schedule and never
// returns.
func (co *Context) Cancel(values ...any) {
	if co.Ended() {
		return
	}
	switch co.status {
	case Ready:
		co.scheduler.ready.remove(co)
	case Suspended:
		if co.cancelHook != nil {
			co.cancelHook()
			co.cancelHook = nil
		}
	}
	if co.started {
		// co's own goroutine is (or, for the current context, is about
		// to be) parked mid-transfer and nothing will ever resume it
		// now that co is dying; its resumeCh must not be handed to a
		// future pool occupant.
		co.abandoned = true
	}
	co.scheduler.markZombie(co, values, true)
	if co == co.scheduler.current {
		co.scheduler.Schedule()
		panic("corex: internal error: canceled current context resumed")
	}
}

// suspendWithCleanup calls Schedule with cleanup registered as co's
// cancelHook for the duration of the suspension, so an external Cancel
// can unregister co from whatever wait-queue cleanup knows how to
// clear. Every synchronization primitive's blocking path uses this
// instead of calling Schedule directly.
func (co *Context) suspendWithCleanup(cleanup func()) {
	co.cancelHook = cleanup
	co.scheduler.Schedule()
	co.cancelHook = nil
}

// Join appends the calling context to target's join queue and
// suspends it until target terminates, then returns target's return
// list — even if target is already DEAD, since return lists outlive
// the goroutine that produced them.
func (co *Context) Join(target *Context) []any {
	if target.status < Zombie {
		target.joinQueue.PushBack(co)
		co.suspendWithCleanup(func() { removeContext(&target.joinQueue, co) })
	}
	return target.results
}

// Spawn creates a child Context bound to the same scheduler and
// priority as co, and marks it READY. Child contexts are canceled
// automatically when co terminates, whether by returning, panicking,
// or being canceled itself. A Context created directly through a
// Scheduler (not through Spawn) has no parent and is never
// auto-canceled.
func (co *Context) Spawn(fn Entry, args ...any) *Context {
	child := co.scheduler.NewContext(fn, args...)
	child.parent = co
	child.priority = co.priority
	co.children = append(co.children, child)
	_ = child.Ready()
	return child
}

// Argv, SetArgv, Scalar, SetScalar, Err, SetErr, RecordSep,
// SetRecordSep, Output and SetOutput read and write the per-context
// globals selected by SaveFlag (DEFAV, DEFSV, ERRSV, IRSSV, DEFFH
// respectively). They operate on the process-wide slot that Transfer
// last restored for co's mask, so they are only meaningful while co is
// the running context (mirrors the teacher's "one should only call
// this method in a Task function" convention on State.Get/Set).
func (co *Context) Argv() []string        { return co.scheduler.shared.argv }
func (co *Context) SetArgv(v []string)    { co.scheduler.shared.argv = v }
func (co *Context) Scalar() any           { return co.scheduler.shared.scalar }
func (co *Context) SetScalar(v any)       { co.scheduler.shared.scalar = v }
func (co *Context) Err() error            { return co.scheduler.shared.err }
func (co *Context) SetErr(err error)      { co.scheduler.shared.err = err }
func (co *Context) RecordSep() string     { return co.scheduler.shared.recordSep }
func (co *Context) SetRecordSep(s string) { co.scheduler.shared.recordSep = s }
func (co *Context) Output() io.Writer     { return co.scheduler.shared.output }
func (co *Context) SetOutput(w io.Writer) { co.scheduler.shared.output = w }

func (co *Context) reset() {
	*co = Context{}
}
