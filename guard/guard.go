// Package guard prevents overlapping reconciliation passes for one session.
package guard

import "sync"

// Guard tracks whether an initial pass has completed and whether a pass is
// currently running. The zero value is ready to use.
type Guard struct {
	mu          sync.Mutex
	initialized bool
	running     bool
}

// Begin claims the guard for a new pass.
//
// It refuses when a pass is already running. A non-forced call is also
// refused once the first pass has finished, which lets callers that mount
// repeatedly ask for data without refetching. Forced calls (explicit refresh)
// bypass the initialized check but never the running check.
func (g *Guard) Begin(force bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return false
	}
	if g.initialized && !force {
		return false
	}
	g.running = true
	return true
}

// End releases the guard. It must run on every exit path of a pass,
// including failures, so callers defer it right after a successful Begin.
func (g *Guard) End() {
	g.mu.Lock()
	g.running = false
	g.initialized = true
	g.mu.Unlock()
}

// Initialized reports whether at least one pass has finished.
func (g *Guard) Initialized() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initialized
}

// Running reports whether a pass currently holds the guard.
func (g *Guard) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}
