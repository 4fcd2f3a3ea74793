package corex

// This file gives an embedding package a stable, versioned vtable of
// the runtime's core entry points to bind to instead of importing
// corex directly, grounded on Perl Coro's real struct CoroAPI — the
// way a Coro XS extension binds to libcoro's ABI rather than linking
// Coro.xs itself.

// VTableVersion is bumped whenever a field is added to or removed from
// VTable in a way that would break a consumer built against an older
// layout.
const VTableVersion = 1

// VTable is the stable entry-point table LoadVTable validates and a
// caller then uses directly, bypassing per-call Scheduler method
// dispatch.
type VTable struct {
	Version uint32

	Transfer     func(prev, next *Context)
	Schedule     func()
	Cede         func()
	CedeNotSelf  func()
	Ready        func(co *Context) error
	IsReady      func(co *Context) bool
	NReady       *int
	Current      func() *Context
	GetSaveFlags func(co *Context) SaveFlag
	SetSaveFlags func(co *Context, mask SaveFlag) SaveFlag
}

// BuildVTable returns the VTable describing s, suitable for handing to
// a native-extension-style consumer via LoadVTable.
func (s *Scheduler) BuildVTable() *VTable {
	return &VTable{
		Version:     VTableVersion,
		Transfer:    transfer,
		Schedule:    s.Schedule,
		Cede:        s.Cede,
		CedeNotSelf: s.CedeNotSelf,
		Ready:       func(co *Context) error { return co.Ready() },
		IsReady:     func(co *Context) bool { return co.Status() == Ready },
		NReady:      &s.ready.nready,
		Current:     func() *Context { return s.current },
		GetSaveFlags: func(co *Context) SaveFlag { return co.SaveFlags() },
		SetSaveFlags: func(co *Context, mask SaveFlag) SaveFlag {
			return co.SaveFlags(mask)
		},
	}
}

// LoadVTable validates v's version against VTableVersion and returns
// ErrVTableVersion on a mismatch, so a consumer built against an older
// layout refuses to load rather than misinterpreting fields. Unlike
// the C original, a Go consumer can safely handle the refusal as an
// ordinary error instead of aborting the process outright.
func LoadVTable(v *VTable) error {
	if v.Version != VTableVersion {
		return ErrVTableVersion
	}
	return nil
}

// MustLoadVTable is LoadVTable for callers that want the C extension's
// literal "abort on mismatch" behavior.
func MustLoadVTable(v *VTable) *VTable {
	if err := LoadVTable(v); err != nil {
		panic(err)
	}
	return v
}
