// Package corextest provides test-tooling helpers for packages that
// build on corex, grounded on the setup boilerplate spread across the
// teacher's own *_test.go files rather than any one file: every test
// there hand-rolls an Executor plus a way to fail on unexpected
// blocking, which this package factors into one call.
package corextest

import (
	"testing"

	"github.com/corex-run/corex"
)

// NewTestScheduler returns a Scheduler whose Idle hook calls t.Fatal
// instead of printing a diagnostic and exiting the process, so a
// deadlocked test fails cleanly instead of taking the whole test
// binary down with it.
//
// The Idle hook must be triggered from the goroutine running t (the
// common case: the test's own root context blocks with nothing
// ready). A deadlock detected from a spawned child context's own
// goroutine cannot safely call t.Fatal; prefer asserting reachability
// with an explicit Signal in tests that spawn children.
func NewTestScheduler(t testing.TB, opts ...corex.Option) *corex.Scheduler {
	t.Helper()
	opts = append([]corex.Option{corex.WithIdle(func() {
		t.Helper()
		t.Fatal("corex: deadlock detected: no context ready and no idle hook installed")
	})}, opts...)
	return corex.NewScheduler(opts...)
}
