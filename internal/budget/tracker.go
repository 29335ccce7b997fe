// Package budget tracks a run's spend against its configured ceiling and
// prices the external calls that generate that spend.
package budget

import "sync"

// Tracker accumulates incremental cost across stage invocations. It is
// advisory: it never blocks a call, it only reports state. The orchestrator
// consults Exceeded after each stage and lets the gate decide what to do.
type Tracker struct {
	mu      sync.Mutex
	ceiling float64
	spent   float64
}

// NewTracker builds a Tracker with the given ceiling in USD. A zero or
// negative ceiling disables the check; Exceeded always reports false.
func NewTracker(ceiling float64) *Tracker {
	return &Tracker{ceiling: ceiling}
}

// Add records incremental spend. Negative amounts are dropped so the
// running total is monotone regardless of what a collaborator reports.
func (t *Tracker) Add(amount float64) {
	if amount <= 0 {
		return
	}
	t.mu.Lock()
	t.spent += amount
	t.mu.Unlock()
}

// Spent returns the running total.
func (t *Tracker) Spent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spent
}

// Remaining returns how much headroom is left, floored at zero.
func (t *Tracker) Remaining() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ceiling <= 0 {
		return 0
	}
	if rem := t.ceiling - t.spent; rem > 0 {
		return rem
	}
	return 0
}

// Exceeded reports whether spend has reached the ceiling.
func (t *Tracker) Exceeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ceiling > 0 && t.spent >= t.ceiling
}

// Ceiling returns the configured ceiling.
func (t *Tracker) Ceiling() float64 {
	return t.ceiling
}
