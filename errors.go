package corex

import (
	"errors"
	"fmt"
	"os"
)

// Sentinel errors for conditions the spec calls "programming errors":
// they are returned (or wrapped in a panic) rather than silently
// swallowed, so callers using errors.Is can distinguish them.
var (
	// ErrEmptyContext names the failure of transferring into a context
	// that has no entry point (a bare save slot). transfer itself does
	// not return it: it reports that condition through fatal.
	ErrEmptyContext = errors.New("corex: transfer into an empty context")

	// ErrDead is returned by Ready when called on a DEAD or ZOMBIE context.
	ErrDead = errors.New("corex: context is dead")

	// ErrVTableVersion is returned by LoadVTable on a version mismatch.
	ErrVTableVersion = errors.New("corex: native extension vtable version mismatch")
)

// fatal reports an unrecoverable invariant violation and terminates the
// process. Unlike a panic, it is never meant to be caught: it is used
// only for conditions the spec documents as aborting, not as ordinary
// Go error flow (e.g. transferring into an empty context).
func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "corex: fatal: "+format+"\n", args...)
	os.Exit(2)
}
