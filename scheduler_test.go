package corex

import (
	"strings"
	"testing"
)

func TestCedeHandOffOrder(t *testing.T) {
	s := NewScheduler()
	var log []string

	a := s.NewContext(func(co *Context, _ []any) []any {
		log = append(log, "a1")
		s.Cede()
		log = append(log, "a2")
		return nil
	})
	b := s.NewContext(func(co *Context, _ []any) []any {
		log = append(log, "b1")
		s.Cede()
		log = append(log, "b2")
		return nil
	})
	_ = a.Ready()
	_ = b.Ready()

	s.Root().Join(a)
	s.Root().Join(b)

	got := strings.Join(log, " ")
	want := "a1 b1 a2 b2"
	if got != want {
		t.Fatalf("hand-off order = %q, want %q", got, want)
	}
}

func TestHigherPriorityRunsToCompletionFirst(t *testing.T) {
	s := NewScheduler()
	var log []string

	a := s.NewContext(func(co *Context, _ []any) []any {
		log = append(log, "a")
		return nil
	})
	b := s.NewContext(func(co *Context, _ []any) []any {
		log = append(log, "b")
		return nil
	})
	a.Prio(PrioNormal)
	_ = a.Ready()
	b.Prio(PrioNormal + 1)
	_ = b.Ready()

	s.Cede()

	s.Root().Join(a)
	s.Root().Join(b)

	got := strings.Join(log, " ")
	if got != "b a" {
		t.Fatalf("priority order = %q, want %q", got, "b a")
	}
}

func TestPriorityChangeIsLazy(t *testing.T) {
	// Documented Open Question resolution (SPEC_FULL.md §4.B): a
	// priority change on an already-enqueued READY context is not
	// re-bucketed. It takes effect only the next time that context is
	// readied after leaving the queue.
	s := NewScheduler()
	co := s.NewContext(func(*Context, []any) []any { return nil })
	_ = co.Ready()

	before := co.inPriority
	co.Prio(PrioMax)
	if co.inPriority != before {
		t.Fatalf("inPriority changed eagerly: got %d, want unchanged %d", co.inPriority, before)
	}
}

func TestDeadlockInvokesIdleHook(t *testing.T) {
	s := NewScheduler()
	sig := s.NewSignal()

	waiter := s.NewContext(func(co *Context, _ []any) []any {
		sig.Wait()
		return nil
	})
	_ = waiter.Ready()

	// A context that would break the deadlock, readied only from
	// inside the idle hook, standing in for an external event source
	// (e.g. a reactor callback) that a real idle hook would drive.
	watchdog := s.NewContext(func(co *Context, _ []any) []any {
		sig.Send()
		return nil
	})

	invoked := false
	s.idle = func() {
		invoked = true
		_ = watchdog.Ready()
	}

	s.Root().Join(waiter)

	if !invoked {
		t.Fatal("idle hook was never invoked despite nothing being ready")
	}
}
