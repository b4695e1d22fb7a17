package listener

// dedupWindow remembers the last N event IDs and reports replays. Backfill
// overlap and subscription re-delivery after a reconnect both produce the same
// (txHash, logIndex) pair again; the window drops them before they reach the
// aggregator.
type dedupWindow struct {
	capacity int
	seen     map[string]struct{}
	order    []string // FIFO of insertion order, oldest first
}

func newDedupWindow(capacity int) *dedupWindow {
	if capacity <= 0 {
		capacity = 4096
	}
	return &dedupWindow{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
	}
}

// Observe records id and returns true if it was already in the window.
func (w *dedupWindow) Observe(id string) bool {
	if _, dup := w.seen[id]; dup {
		return true
	}
	w.seen[id] = struct{}{}
	w.order = append(w.order, id)
	if len(w.order) > w.capacity {
		oldest := w.order[0]
		w.order = w.order[1:]
		delete(w.seen, oldest)
	}
	return false
}

// Len returns the number of remembered IDs.
func (w *dedupWindow) Len() int { return len(w.seen) }
