package scheduler

import "sync/atomic"

// Guard is a single-flight latch shared by the cron jobs and the manual HTTP
// triggers, so a slow sync is never stacked on top of itself.
type Guard struct {
	running atomic.Bool
}

// TryStart claims the guard. Returns false when a run is already in flight.
func (g *Guard) TryStart() bool {
	return g.running.CompareAndSwap(false, true)
}

// Done releases the guard.
func (g *Guard) Done() {
	g.running.Store(false)
}

// Running reports whether a run is in flight.
func (g *Guard) Running() bool {
	return g.running.Load()
}
