package corex

import (
	"errors"
	"testing"
)

func TestPanicStackTryRecovers(t *testing.T) {
	var ps panicstack
	ok := ps.Try(func() { panic("boom") })
	if ok {
		t.Fatal("Try should report false when f panics")
	}
	if ps.empty() {
		t.Fatal("Try should have recorded the panic")
	}
	if ps[0].value != "boom" {
		t.Fatalf("recorded panic value = %v, want boom", ps[0].value)
	}
}

func TestPanicStackTryPassesThroughNormalReturn(t *testing.T) {
	var ps panicstack
	ran := false
	ok := ps.Try(func() { ran = true })
	if !ok || !ran {
		t.Fatal("Try should run f and report true when it returns normally")
	}
	if !ps.empty() {
		t.Fatal("Try should not record anything when f does not panic")
	}
}

// entryFailure is a concrete error type, so errors.As below has to
// unwrap PanicError to find it instead of matching PanicError itself.
type entryFailure struct{ msg string }

func (e *entryFailure) Error() string { return e.msg }

func TestContextPanicSurfacesFromEntry(t *testing.T) {
	s := NewScheduler()
	co := s.NewContext(func(*Context, []any) []any {
		panic(&entryFailure{"entry failed"})
	})
	_ = co.Ready()
	s.Root().Join(co)

	pe := co.Panic()
	if pe == nil {
		t.Fatal("Panic() should be non-nil after the entry panicked")
	}
	var target *entryFailure
	if !errors.As(pe, &target) {
		t.Fatal("errors.As should unwrap the original error through PanicError")
	}
	if target.Error() != "entry failed" {
		t.Fatalf("unwrapped error = %q, want %q", target.Error(), "entry failed")
	}
	if !co.Ended() {
		t.Fatal("a panicking entry should still reach Ended (ZOMBIE then DEAD)")
	}
}

func TestContextPanicNilWhenNoPanic(t *testing.T) {
	s := NewScheduler()
	co := s.NewContext(func(*Context, []any) []any { return nil })
	_ = co.Ready()
	s.Root().Join(co)
	if co.Panic() != nil {
		t.Fatal("Panic() should be nil for a context that never panicked")
	}
}

func TestSpawnPropagatesChildPanicToParent(t *testing.T) {
	s := NewScheduler()
	parent := s.NewContext(func(co *Context, _ []any) []any {
		child := co.Spawn(func(*Context, []any) []any {
			panic("child exploded")
		})
		co.Join(child)
		return nil
	})
	_ = parent.Ready()
	s.Root().Join(parent)

	pe := parent.Panic()
	if pe == nil {
		t.Fatal("parent should inherit its child's panic")
	}
	if pe.Error() == "" {
		t.Fatal("PanicError.Error() should describe the recovered panic")
	}
}
