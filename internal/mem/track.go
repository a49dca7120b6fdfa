package mem

import "sync"

// The live-slice tracker records every allocation while enabled, for
// diagnostics snapshots and leak hunting. It is off by default; the core pays
// one branch per alloc/free when disabled.

var tracker struct {
	mu      sync.Mutex
	enabled bool
	live    map[uint64]*Slice
}

// EnableTracking starts recording live slices. Slices allocated before the
// call are not visible.
func EnableTracking() {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	tracker.enabled = true
	if tracker.live == nil {
		tracker.live = make(map[uint64]*Slice, 64)
	}
}

// DisableTracking stops recording and forgets all recorded slices.
func DisableTracking() {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	tracker.enabled = false
	tracker.live = nil
}

// LiveSlices returns the currently recorded live slices in no particular
// order.
func LiveSlices() []*Slice {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	out := make([]*Slice, 0, len(tracker.live))
	for _, s := range tracker.live {
		out = append(out, s)
	}
	return out
}

func trackAlloc(s *Slice) {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	if !tracker.enabled {
		return
	}
	tracker.live[s.allocID] = s
}

func trackFree(s *Slice) {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	if !tracker.enabled {
		return
	}
	delete(tracker.live, s.allocID)
}
