// internal/poll/health.go
package poll

// defaultDegradedAfter is how many consecutive failed poll cycles flip
// the connectivity signal to degraded.
const defaultDegradedAfter = 3

// Health tracks consecutive poll failures. Individual failures are
// transient and tolerated; only a run of them surfaces a degraded
// signal. Not safe for concurrent use; the Monitor serializes access.
type Health struct {
	degradedAfter int
	failures      int
	degraded      bool
}

// NewHealth creates a tracker that degrades after the given number of
// consecutive failures.
func NewHealth(degradedAfter int) *Health {
	if degradedAfter < 1 {
		degradedAfter = 1
	}
	return &Health{degradedAfter: degradedAfter}
}

// Failure records a failed cycle. Returns true when this failure crossed
// the threshold into degraded.
func (h *Health) Failure() bool {
	h.failures++
	if !h.degraded && h.failures >= h.degradedAfter {
		h.degraded = true
		return true
	}
	return false
}

// Success records a clean cycle. Returns true when it recovered a
// previously degraded connection.
func (h *Health) Success() bool {
	h.failures = 0
	if h.degraded {
		h.degraded = false
		return true
	}
	return false
}

// Degraded reports the current connectivity signal.
func (h *Health) Degraded() bool { return h.degraded }

// Failures returns the current consecutive-failure count.
func (h *Health) Failures() int { return h.failures }

// Reset clears all tracked state.
func (h *Health) Reset() {
	h.failures = 0
	h.degraded = false
}
