package loop

import "sync/atomic"

// Counters aggregates cycle outcomes, shared across the sessions of one
// server so the status endpoint can report process-wide totals.
type Counters struct {
	cycles    atomic.Uint64
	skipped   atomic.Uint64
	manual    atomic.Uint64
	fallbacks atomic.Uint64
}

// CounterSnapshot is a point-in-time copy of the counters.
type CounterSnapshot struct {
	Cycles    uint64 `json:"cycles"`
	Skipped   uint64 `json:"skipped_cycles"`
	Manual    uint64 `json:"manual_frames"`
	Fallbacks uint64 `json:"optimizer_fallbacks"`
}

// Snapshot returns the current totals.
func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		Cycles:    c.cycles.Load(),
		Skipped:   c.skipped.Load(),
		Manual:    c.manual.Load(),
		Fallbacks: c.fallbacks.Load(),
	}
}
