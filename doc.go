// Package corex is a cooperative, single-threaded coroutine runtime:
// a scheduler, a Context type representing one suspendable thread of
// execution, and a set of suspension-based synchronization primitives
// built on top of it.
//
// There is no preemption. A Context only ever gives up control at an
// explicit suspension point — Schedule, Cede, CedeNotSelf, Join, a
// synchronization primitive, or a timer — and there is no parallelism:
// a Scheduler and everything it owns must be used from a single OS
// thread.
//
// # Creating and running contexts
//
// NewScheduler returns a Scheduler bound to the calling goroutine,
// which becomes that Scheduler's Root context. From there,
// (*Scheduler).NewContext creates additional contexts, and Ready makes
// one runnable. Control moves between contexts only when something
// calls Schedule (directly, or through Cede, Join, or a primitive that
// suspends).
//
//	sched := corex.NewScheduler()
//	worker := sched.NewContext(func(co *corex.Context, args []any) []any {
//		return []any{args[0].(int) * 2}
//	}, 21)
//	worker.Ready()
//	results := sched.Root().Join(worker)
//
// # Root/Child Coroutines
//
// A Context created directly through NewContext is a root context: it
// is never automatically canceled and has no parent. A Context created
// through (*Context).Spawn is a child of the spawning context: when
// the parent terminates — whether by returning, panicking, or being
// canceled — every child that has not yet ended is canceled too.
//
// # Panic Propagation
//
// A panic inside a Context's Entry does not crash the process: it is
// recovered, the Context still reaches ZOMBIE (with nil results), and
// the panic is available through (*Context).Panic. A child context
// additionally hands its panic stack up to its parent's, so a parent
// that inspects its own Panic after its children have run can see
// panics that occurred underneath it.
//
// # Priority and Fairness
//
// Priorities range over [PrioMin, PrioMax] with PrioNormal as the
// default. The ready queue is strictly priority-ordered: a context at
// a higher priority always runs before one at a lower priority, and
// contexts at the same priority run in the order they became ready.
package corex
