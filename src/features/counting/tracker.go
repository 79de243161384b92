package counting

import (
	"log/slog"
	"sync"
)

// Tracker maintains the running aggregate total as an incrementally-updated
// value, so a single file change costs O(1) instead of a re-sum.
type Tracker struct {
	mu    sync.Mutex
	total int
}

func NewTracker(initial int) *Tracker {
	return &Tracker{total: initial}
}

// Apply adjusts the total by the delta of one file's count change and
// returns the new total.
func (t *Tracker) Apply(old, new int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total += new - old
	return t.total
}

// Total returns the current aggregate.
func (t *Tracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Reconcile re-sums the snapshot and replaces the incremental total with it.
// At quiescence the two must agree; drift is logged and corrected.
func (t *Tracker) Reconcile(snap Snapshot) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if snap.Total != t.total {
		slog.Error("Aggregate total drifted from snapshot sum", "tracked", t.total, "summed", snap.Total)
		t.total = snap.Total
	}
	return t.total
}
