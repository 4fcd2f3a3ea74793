package corex

// The reaper is a dedicated, always-top-priority Context that performs
// the ZOMBIE -> DEAD transition and returns finished contexts' baton
// channels to the pool. Splitting this out of Cancel/finish (which only need to
// get a context to ZOMBIE so joiners unblock immediately) keeps struct
// recycling off the hot suspend/resume path and gives it its own
// suspension point, mirroring how the teacher's Executor drains queued
// work in its own loop rather than inline in the caller.
func reaperEntry(co *Context, _ []any) []any {
	s := co.scheduler
	for {
		for len(s.destroyList) == 0 {
			s.Schedule()
		}
		batch := s.destroyList
		s.destroyList = nil
		for _, z := range batch {
			z.status = Dead
			s.pool.release(z)
		}
	}
}
