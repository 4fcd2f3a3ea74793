package corex

// This file implements the low-level transfer(prev, next) primitive
// that atomically suspends the calling context and resumes another.
//
// Go gives every goroutine its own real, demand-grown call stack, so
// rather than hand-writing per-(arch,os) assembly to save and restore
// CPU registers and stack pointers — unsupported and unsafe to do
// portably from outside the runtime package — corex backs every
// Context with a dedicated goroutine and enforces "exactly one
// runnable at a time" with a baton handed between two unbuffered
// channels. This is the same technique used by goroutine-based
// coroutine shims in the retrieved corpus (see
// kmrgirish-gosim's Coro.Start/Next/Yield/Finish in coro_nolinkname.go
// and DESIGN.md). The Go scheduler's own register save/restore on a
// goroutine park/wake stands in for the assembly this component would
// otherwise contain.

// transfer suspends the goroutine backing prev and resumes the one
// backing next, fabricating next's first-run state (spawning its
// goroutine) if next has never run before.
//
// prev becomes "started" as a side effect: the first time a Context is
// named as prev, it captures "whatever was currently running" at that
// point — the "empty context as save slot" idiom. A Context created
// with no entry point (NewEmptyContext) is only usable this way, as
// prev, until it has been used as prev once, after which it stops
// being "empty" for Ready's purposes and can be scheduled to resume
// exactly where this transfer suspended it.
//
// Transferring into an empty context that has never captured any
// running state (used as next before ever being used as prev) is a
// programming error and aborts the process.
func transfer(prev, next *Context) {
	saveGlobals(prev, next)
	prev.started = true

	if !next.started {
		if next.entry == nil {
			fatal("transfer into an empty context (desc=%q)", next.desc)
		}
		next.started = true
		go next.bootRun()
	}

	next.resumeCh <- struct{}{}
	<-prev.resumeCh
}

// transferInto hands the baton to next without waiting for it to be
// handed back — the one-sided half of transfer, used only by
// Scheduler.finish for a context whose goroutine is exiting for good
// and so will never again be a valid "prev".
func transferInto(next *Context) {
	next.scheduler.shared.restore(next.saved, next.saveMask)

	if !next.started {
		if next.entry == nil {
			fatal("transfer into an empty context (desc=%q)", next.desc)
		}
		next.started = true
		go next.bootRun()
	}
	next.resumeCh <- struct{}{}
}

// saveGlobals snapshots prev's masked globals out of the scheduler's
// live "shared" slot into prev.saved, then restores next's own masked
// globals from next.saved into that same slot: save on transfer-out,
// restore on transfer-in. A field a context's mask does not select is
// left untouched by either half, so it behaves as a genuinely global
// (not per-context) value, exactly like an un-localized Perl global.
func saveGlobals(prev, next *Context) {
	sched := prev.scheduler
	prev.saved = sched.shared.snapshot(prev.saveMask)
	sched.shared.restore(next.saved, next.saveMask)
}

// bootRun is the goroutine body backing a fresh Context. It parks
// immediately, waiting for the first baton handoff, then runs the
// entry function to completion. A Context that runs off the end of
// its entry simply reports its results to the scheduler instead of
// "returning into transfer" — the goroutine ends by handing off to
// the scheduler's finish machinery instead.
func (co *Context) bootRun() {
	<-co.resumeCh

	var results []any
	ok := co.ps.Try(func() {
		results = co.entry(co, co.args)
	})

	co.scheduler.finish(co, results, !ok)
}

// ensureResumeCh allocates co's baton channel once, at construction
// time (see NewContext, NewEmptyContext, and contextpool.go's recycle
// path, which hands a finished context's channel on to a new Context).
func (co *Context) ensureResumeCh() {
	if co.resumeCh == nil {
		co.resumeCh = make(chan struct{})
	}
}
