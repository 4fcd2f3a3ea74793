package corex

import (
	"fmt"
	"os"
)

// Scheduler is a self-contained runtime: a ready queue, the currently
// running Context, the shared per-process "globals" slot, and the
// reaper and context pool that recycle finished contexts. It replaces
// the teacher's Executor as the top-level object an embedder holds,
// generalized from a single fixed dispatch loop to a priority-bucket
// ready queue.
//
// A Scheduler is not safe for concurrent use from multiple OS threads:
// it is cooperative and single-threaded by design, and every method
// here assumes it is only ever called from the context that currently
// holds the baton (see transfer.go).
type Scheduler struct {
	root    *Context
	current *Context
	ready   readyQueue

	shared globals

	idle    func()
	prepare func()

	reaper      *Context
	destroyList []*Context

	pool contextPool
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithMaxIdleContexts bounds how many finished contexts' baton channels
// (held in idle Context structs) the Scheduler keeps for reuse. The
// default is 8 (MaxIdleContexts); 0 disables pooling entirely.
func WithMaxIdleContexts(n int) Option {
	return func(s *Scheduler) { s.pool.max = n }
}

// WithIdle installs the hook run when the ready queue is empty and no
// Prepare hook has produced new work. The default hook reports a
// deadlock and exits the process with status 51.
func WithIdle(fn func()) Option {
	return func(s *Scheduler) { s.idle = fn }
}

// WithPrepare installs a hook run at the start of every scheduling
// decision, before the ready queue is examined — the extension point
// an event-loop adapter (see corex/epolloop) uses to poll for I/O
// readiness and Ready() any contexts it unblocks.
func WithPrepare(fn func()) Option {
	return func(s *Scheduler) { s.prepare = fn }
}

// MaxIdleContexts is the default cap WithMaxIdleContexts overrides.
const MaxIdleContexts = 8

// NewScheduler builds a Scheduler and its root Context, which
// represents whatever goroutine calls NewScheduler: the "main"
// coroutine that requires no Entry because it is already running. It is
// built with NewEmptyContext, the empty-context-as-save-slot idiom, but
// marked started at construction, so it is never treated as empty: it
// is eligible for Ready/Cede immediately, and its state is captured the
// first time anything on the calling goroutine invokes Schedule, Cede,
// or a suspending primitive.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{pool: contextPool{max: MaxIdleContexts}}
	for _, opt := range opts {
		opt(s)
	}
	s.shared = defaultGlobals()

	s.root = s.NewEmptyContext()
	s.root.SetDesc("root")
	s.root.status = Running
	// root is the goroutine calling NewScheduler: it is already running,
	// so unlike a freshly spawned Context it does not need a transfer
	// into it to "start" — it is marked started immediately so Ready
	// and Cede accept it from the very first call, before it has ever
	// been used as a transfer's prev side.
	s.root.started = true
	s.current = s.root

	s.reaper = s.NewContext(reaperEntry)
	s.reaper.Prio(PrioMax)
	s.reaper.SetDesc("reaper")

	return s
}

// Root returns the Context representing the goroutine that created s.
func (s *Scheduler) Root() *Context { return s.root }

// Current returns the Context presently running on s.
func (s *Scheduler) Current() *Context { return s.current }

// NReady returns the number of contexts currently in the ready queue.
func (s *Scheduler) NReady() int { return s.ready.nready }

func (s *Scheduler) acquireContext() *Context {
	co := s.pool.acquire()
	co.ensureResumeCh()
	return co
}

func (s *Scheduler) enqueue(co *Context) {
	s.ready.push(co)
}

// markZombie transitions co to ZOMBIE, records its results, wakes
// everything blocked in Join(co), and hands it to the reaper for
// eventual recycling. Shared by Context.Cancel and the normal
// entry-returned path in transfer.go's bootRun.
func (s *Scheduler) markZombie(co *Context, results []any, canceled bool) {
	co.results = results
	co.canceled = canceled
	co.status = Zombie

	for _, child := range co.children {
		if !child.Ended() {
			child.Cancel()
		}
	}

	for co.joinQueue.Len() > 0 {
		joiner := co.joinQueue.PopFront()
		_ = joiner.Ready()
	}
	s.condemn(co)
}

func (s *Scheduler) condemn(co *Context) {
	s.destroyList = append(s.destroyList, co)
	if s.reaper != nil && s.reaper != co {
		_ = s.reaper.Ready()
	}
}

// finish is called from a Context's own goroutine (transfer.go's
// bootRun) once its Entry has returned or panicked. It can never use
// the ordinary two-sided transfer, because this goroutine is about to
// exit for good: nothing will ever transfer back into it as "next", so
// blocking on its own resumeCh here would leak the goroutine forever.
// Instead it hands the baton to whatever runs next with a one-sided
// send and returns, letting bootRun's stack unwind normally.
func (s *Scheduler) finish(co *Context, results []any, panicked bool) {
	// The panic itself is already recorded in co.ps (see panic.go); a
	// child with a parent additionally hands its panic stack up so it
	// surfaces from the parent's own Panic() too.
	if panicked && co.parent != nil {
		co.parent.ps = append(co.parent.ps, co.ps...)
	}
	s.markZombie(co, results, false)

	next := s.pickReady()
	s.current = next
	next.status = Running
	transferInto(next)
}

// pickReady runs the Prepare hook, then the Idle hook for as long as
// the ready queue stays empty, and finally pops the highest-priority
// ready context. It never returns nil: the Idle hook is documented to
// either produce ready work or terminate the process.
func (s *Scheduler) pickReady() *Context {
	if s.prepare != nil {
		s.prepare()
	}
	for s.ready.empty() {
		s.runIdle()
		if s.prepare != nil {
			s.prepare()
		}
	}
	return s.ready.pop()
}

func (s *Scheduler) runIdle() {
	if s.idle != nil {
		s.idle()
		return
	}
	fmt.Fprintln(os.Stderr, "corex: FATAL: deadlock detected: no context is ready and no idle hook is installed")
	os.Exit(51)
}

// Schedule suspends the current context — leaving its status exactly
// as the caller already set it (READY if enqueued via Ready/Cede,
// SUSPENDED if parked in a wait queue, ZOMBIE if terminating) — and
// transfers control to the highest-priority ready context. It returns
// once something later transfers back into the caller.
func (s *Scheduler) Schedule() {
	prev := s.current
	if prev.status == Running {
		prev.status = Suspended
	}
	next := s.pickReady()
	s.current = next
	next.status = Running
	transfer(prev, next)
}

// Cede voluntarily gives up the remaining timeslice: the current
// context re-enters its own priority bucket and Schedule runs. Because
// the ready queue always drains strictly by priority, a context can
// never be preempted this way by anything of lower priority — it can
// only be overtaken by contexts already ranked at or above it.
func (s *Scheduler) Cede() {
	_ = s.current.Ready()
	s.Schedule()
}

// CedeNotSelf is like Cede but refuses to immediately resume the
// caller: it yields to any other ready context regardless of relative
// priority, or simply keeps running if the caller is the only ready
// context. Event-loop callbacks use this to give other work a chance
// to run without depending on their own priority ranking.
func (s *Scheduler) CedeNotSelf() {
	cur := s.current
	cur.status = Ready
	s.ready.push(cur)

	if s.prepare != nil {
		s.prepare()
	}

	next := s.ready.popOtherThan(cur)
	if next == nil {
		s.ready.remove(cur)
		cur.status = Running
		return
	}
	next.status = Running
	s.current = next
	transfer(cur, next)
}

// Terminate ends the calling context immediately with values as its
// return list, equivalent to Current().Cancel(values...) — it never
// returns.
func (s *Scheduler) Terminate(values ...any) {
	s.current.Cancel(values...)
}
