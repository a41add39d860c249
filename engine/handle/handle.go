// Package handle implements removal tokens for temporary registrations
// (status modifiers, triggers). Releasing a handle is idempotent.
package handle

// Handle removes exactly one registration. The zero value is dead.
type Handle struct {
	remove func()
	live   bool
}

// New returns a live handle that calls remove on its first Release.
func New(remove func()) *Handle {
	return &Handle{remove: remove, live: true}
}

// Release removes the registration. It reports whether this call did the
// removal; later calls, and calls on a revoked handle, are no-ops.
func (h *Handle) Release() bool {
	if h == nil || !h.live {
		return false
	}
	// Mark dead before calling out so a reentrant Release is a no-op.
	h.live = false
	if h.remove != nil {
		h.remove()
	}
	return true
}

// Revoke kills the handle without running its removal. Used when the
// registration has already been removed by its owner (replacement).
func (h *Handle) Revoke() {
	if h == nil {
		return
	}
	h.live = false
}

// Live reports whether Release would still remove something.
func (h *Handle) Live() bool {
	return h != nil && h.live
}
