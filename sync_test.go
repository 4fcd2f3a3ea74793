package corex

import (
	"strings"
	"testing"
)

func TestSemaphoreExcludesConcurrentHolders(t *testing.T) {
	// spec.md §4.G: a Semaphore(1) behaves as a mutex — b must not enter
	// its critical section until a has left it, regardless of how many
	// times a cedes while holding the permit.
	s := NewScheduler()
	sem := s.NewSemaphore(1)
	var order []string

	a := s.NewContext(func(co *Context, _ []any) []any {
		sem.Down()
		order = append(order, "a-in")
		s.Cede()
		s.Cede()
		order = append(order, "a-out")
		sem.Up()
		return nil
	})
	b := s.NewContext(func(co *Context, _ []any) []any {
		sem.Down()
		order = append(order, "b-in")
		order = append(order, "b-out")
		sem.Up()
		return nil
	})
	_ = a.Ready()
	_ = b.Ready()

	s.Root().Join(a)
	s.Root().Join(b)

	got := strings.Join(order, " ")
	want := "a-in a-out b-in b-out"
	if got != want {
		t.Fatalf("critical section order = %q, want %q", got, want)
	}
}

func TestSemaphoreTryDownDoesNotSuspend(t *testing.T) {
	s := NewScheduler()
	sem := s.NewSemaphore(1)
	if !sem.TryDown() {
		t.Fatal("TryDown with a permit available should succeed")
	}
	if sem.TryDown() {
		t.Fatal("TryDown with no permit available should fail, not suspend")
	}
	sem.Up()
	if !sem.TryDown() {
		t.Fatal("TryDown should succeed after Up releases a permit")
	}
}

func TestChannelBoundedPutSuspendsUntilFirstGet(t *testing.T) {
	// spec.md §8 scenario 4: capacity 2, put 1, 2, 3, then get three
	// times; the put of 3 must suspend until the first get.
	s := NewScheduler()
	ch := s.NewChannel(2)

	putter := s.NewContext(func(co *Context, _ []any) []any {
		ch.Put(1)
		ch.Put(2)
		ch.Put(3)
		return nil
	})
	_ = putter.Ready()

	// Run the putter until it blocks trying to put the third value.
	s.Cede()

	var got []int
	got = append(got, ch.Get().(int))
	got = append(got, ch.Get().(int))
	got = append(got, ch.Get().(int))

	s.Root().Join(putter)

	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("get order = %v, want [1 2 3]", got)
	}
}

func TestChannelTryPutTryGet(t *testing.T) {
	s := NewScheduler()
	ch := s.NewChannel(1)

	if !ch.TryPut("x") {
		t.Fatal("TryPut into an empty buffer should succeed")
	}
	if ch.TryPut("y") {
		t.Fatal("TryPut into a full buffer with no getter should fail")
	}
	v, ok := ch.TryGet()
	if !ok || v != "x" {
		t.Fatalf("TryGet = (%v, %v), want (x, true)", v, ok)
	}
	if _, ok := ch.TryGet(); ok {
		t.Fatal("TryGet on an empty channel with no putter should fail")
	}
}

func TestRWLockWriterPreference(t *testing.T) {
	// spec.md §4.G: once a writer is waiting, no new reader may enter
	// ahead of it.
	s := NewScheduler()
	lock := s.NewRWLock()
	var order []string

	lock.RLock()

	writer := s.NewContext(func(co *Context, _ []any) []any {
		lock.Lock()
		order = append(order, "writer")
		lock.Unlock()
		return nil
	})
	_ = writer.Ready()

	lateReader := s.NewContext(func(co *Context, _ []any) []any {
		lock.RLock()
		order = append(order, "late-reader")
		lock.RUnlock()
		return nil
	})
	_ = lateReader.Ready()

	// Let both contestants queue up behind the still-held read lock.
	s.Cede()
	s.Cede()

	lock.RUnlock()

	s.Root().Join(writer)
	s.Root().Join(lateReader)

	got := strings.Join(order, " ")
	want := "writer late-reader"
	if got != want {
		t.Fatalf("wake order = %q, want %q", got, want)
	}
}

func TestRWLockTryLockVariants(t *testing.T) {
	s := NewScheduler()
	lock := s.NewRWLock()

	if !lock.TryRLock() {
		t.Fatal("TryRLock on an unlocked RWLock should succeed")
	}
	if lock.TryLock() {
		t.Fatal("TryLock while a reader holds the lock should fail")
	}
	lock.RUnlock()
	if !lock.TryLock() {
		t.Fatal("TryLock on an unlocked RWLock should succeed")
	}
	if lock.TryRLock() {
		t.Fatal("TryRLock while a writer holds the lock should fail")
	}
	lock.Unlock()
}

func TestSignalEdgeTriggeredLatch(t *testing.T) {
	s := NewScheduler()
	sig := s.NewSignal()

	// A Send with nobody waiting latches one edge for the next Wait.
	sig.Send()
	sig.Wait()

	// Broadcast never latches: with nobody waiting, it is a no-op, and a
	// later Wait must suspend rather than return immediately.
	sig.Broadcast()

	woken := false
	waiter := s.NewContext(func(co *Context, _ []any) []any {
		sig.Wait()
		woken = true
		return nil
	})
	_ = waiter.Ready()
	s.Cede()
	if woken {
		t.Fatal("Wait returned before any Send following a Broadcast")
	}
	sig.Send()
	s.Root().Join(waiter)
	if !woken {
		t.Fatal("Wait never woke after Send")
	}
}

func TestSignalBroadcastWakesEveryWaiter(t *testing.T) {
	s := NewScheduler()
	sig := s.NewSignal()
	woken := 0

	mk := func() *Context {
		return s.NewContext(func(co *Context, _ []any) []any {
			sig.Wait()
			woken++
			return nil
		})
	}
	a, b, c := mk(), mk(), mk()
	_ = a.Ready()
	_ = b.Ready()
	_ = c.Ready()
	s.Cede()
	s.Cede()
	s.Cede()

	sig.Broadcast()

	s.Root().Join(a)
	s.Root().Join(b)
	s.Root().Join(c)

	if woken != 3 {
		t.Fatalf("Broadcast woke %d waiters, want 3", woken)
	}
}
