package corex

import "testing"

func TestReadyOnReadyIsNoOp(t *testing.T) {
	s := NewScheduler()
	co := s.NewContext(func(*Context, []any) []any { return nil })
	if err := co.Ready(); err != nil {
		t.Fatalf("first Ready: %v", err)
	}
	before := s.NReady()
	if err := co.Ready(); err != nil {
		t.Fatalf("second Ready: %v", err)
	}
	if s.NReady() != before {
		t.Fatalf("ready count changed on idempotent Ready: %d -> %d", before, s.NReady())
	}
}

func TestReadyOnDeadReturnsErrDead(t *testing.T) {
	s := NewScheduler()
	co := s.NewContext(func(*Context, []any) []any { return nil })
	co.Cancel()
	if err := co.Ready(); err != ErrDead {
		t.Fatalf("Ready on canceled context: got %v, want ErrDead", err)
	}
}

func TestReadyOnEmptyContextPanics(t *testing.T) {
	s := NewScheduler()
	co := s.NewEmptyContext()
	defer func() {
		if recover() == nil {
			t.Fatal("expected Ready on an empty context to panic")
		}
	}()
	_ = co.Ready()
}

func TestGuardedSaveRoundTrip(t *testing.T) {
	s := NewScheduler()
	co := s.NewContext(func(*Context, []any) []any { return nil })
	before := co.SaveFlags()
	rev := co.GuardedSave(ERRSV)
	if co.SaveFlags()&ERRSV == 0 {
		t.Fatal("GuardedSave did not set ERRSV")
	}
	rev.Revert()
	if co.SaveFlags() != before {
		t.Fatalf("Revert left mask %v, want original %v", co.SaveFlags(), before)
	}
}

func TestPrioClampsToRange(t *testing.T) {
	s := NewScheduler()
	co := s.NewContext(func(*Context, []any) []any { return nil })
	co.Prio(PrioMax + 10)
	if got := co.Prio(); got != PrioMax {
		t.Fatalf("Prio clamp high: got %v, want %v", got, PrioMax)
	}
	co.Prio(PrioMin - 10)
	if got := co.Prio(); got != PrioMin {
		t.Fatalf("Prio clamp low: got %v, want %v", got, PrioMin)
	}
}

func TestJoinReturnsCancelValues(t *testing.T) {
	s := NewScheduler()
	sem := s.NewSemaphore(0)

	child := s.NewContext(func(co *Context, _ []any) []any {
		sem.Down()
		return []any{7, 8}
	})
	_ = child.Ready()

	canceler := s.NewContext(func(co *Context, _ []any) []any {
		child.Cancel(42)
		return nil
	})
	_ = canceler.Ready()

	results := s.Root().Join(child)
	if len(results) != 1 || results[0] != 42 {
		t.Fatalf("Join after Cancel: got %v, want [42]", results)
	}
}

func TestJoinAfterDeadStillReturnsResults(t *testing.T) {
	s := NewScheduler()
	child := s.NewContext(func(*Context, []any) []any { return []any{"done"} })
	_ = child.Ready()

	// Give child (and the reaper behind it) a chance to run to
	// completion before joining, so Join observes it already DEAD.
	for s.NReady() > 0 {
		s.Cede()
	}

	results := s.Root().Join(child)
	if len(results) != 1 || results[0] != "done" {
		t.Fatalf("Join on finished context: got %v", results)
	}
}

func TestSpawnCancelsChildrenOnParentTermination(t *testing.T) {
	s := NewScheduler()
	sig := s.NewSignal()

	var childRef *Context
	parent := s.NewContext(func(co *Context, _ []any) []any {
		childRef = co.Spawn(func(cc *Context, _ []any) []any {
			sig.Wait()
			return []any{"unreachable"}
		})
		return []any{"parent done"}
	})
	_ = parent.Ready()

	s.Root().Join(parent)

	if childRef == nil {
		t.Fatal("child was never spawned")
	}
	if !childRef.Ended() {
		t.Fatalf("child status after parent terminated: %v, want Ended", childRef.Status())
	}
	if !childRef.Canceled() {
		t.Fatal("child should be Canceled, not just Ended")
	}
}
