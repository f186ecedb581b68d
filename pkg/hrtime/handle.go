package hrtime

import "time"

// Handle represents one outstanding resolution request. Its lifetime is
// the request's lifetime: releasing it withdraws the request from the
// registry that issued it.
type Handle struct {
	id  string
	reg *Registry

	// guarded by reg.mu
	period   Period
	released bool
}

// ID is a unique identifier for the handle, for log correlation.
func (h *Handle) ID() string { return h.id }

// Period returns the class the handle currently holds.
func (h *Handle) Period() Period {
	h.reg.mu.Lock()
	defer h.reg.mu.Unlock()
	return h.period
}

// Update re-quantizes the request to a new duration. If the class is
// unchanged this is a no-op; otherwise the old request is swapped for
// the new one and the applied policy re-derived, transitioning at most
// once.
func (h *Handle) Update(d time.Duration) {
	h.reg.update(h, d)
}

// Release withdraws the request. Every handle must be released exactly
// once; a second Release panics, since it indicates the reference
// counting discipline has been violated.
func (h *Handle) Release() {
	h.reg.release(h)
}
