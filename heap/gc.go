package heap

import "github.com/parcadei/ouros-go/values"

// Collect runs one cycle-collection sweep: a tricolor-style mark from the
// roots supplied by RootProvider, followed by a trial-deletion pass over the
// unreachable remainder to find objects kept alive only by a reference cycle
// among themselves. It is a no-op if no RootProvider was wired. It does not
// consult the tracker's GCInterval (Tracker.ShouldGC reports that
// separately), and nothing in the vm package calls it: a sweep runs only
// when a caller invokes Collect directly.
//
// Returns the number of slots reclaimed.
func (h *Heap) Collect() int {
	if h.roots == nil {
		return 0
	}

	reachable := make(map[values.HeapId]bool)
	var visit func(v values.Value)
	visit = func(v values.Value) {
		if !v.IsRef() {
			return
		}
		id := v.AsHeapId()
		if reachable[id] {
			return
		}
		if int(id) >= len(h.slots) || !h.slots[id].occupied {
			return
		}
		reachable[id] = true
		walkContained(h.slots[id].data, visit)
	}
	for _, root := range h.roots.GCRoots() {
		visit(root)
	}

	candidates := make(map[values.HeapId]bool)
	for i := range h.slots {
		id := values.HeapId(i)
		if h.slots[i].occupied && !reachable[id] {
			candidates[id] = true
		}
	}
	if len(candidates) == 0 {
		return 0
	}

	internalRefs := make(map[values.HeapId]uint32)
	for id := range candidates {
		walkContained(h.slots[id].data, func(v values.Value) {
			if v.IsRef() {
				if t := v.AsHeapId(); candidates[t] {
					internalRefs[t]++
				}
			}
		})
	}

	garbage := make(map[values.HeapId]bool)
	for id := range candidates {
		if internalRefs[id] == h.slots[id].refcount {
			garbage[id] = true
		}
	}
	if len(garbage) == 0 {
		return 0
	}

	// Clear refcounts before releasing contents so the recursive release
	// below never double-drops a slot that is itself part of the garbage
	// cycle (design notes: "the collector must avoid double-drops by
	// clearing refcounts before releasing contents").
	for id := range garbage {
		h.slots[id].refcount = 0
	}

	reclaimed := 0
	for id := range garbage {
		s := &h.slots[id]
		if !s.occupied {
			continue
		}
		data := s.data
		s.occupied = false
		s.data = nil
		h.freeList = append(h.freeList, id)
		h.tracker.Release(byteSize(data))
		reclaimed++

		h.notifyWeakrefs(id)
		walkContained(data, func(v values.Value) {
			if !v.IsRef() {
				return
			}
			t := v.AsHeapId()
			if garbage[t] {
				// Part of the same cycle: its refcount was already zeroed
				// above and it is reclaimed in this same pass, so skip the
				// normal DecRef to avoid acting on a freed slot twice.
				return
			}
			h.DecRef(t)
		})
	}
	return reclaimed
}
