package heap

import (
	"sort"

	"golang.org/x/exp/maps"
)

// Stats is the per-type live-object census returned by Session.HeapStats.
type Stats struct {
	CountsByType map[string]int
	TotalBytes   int
	FreeSlots    int
	LiveSlots    int
}

// Stats computes a fresh census by walking every occupied slot. This is O(n)
// in the number of live objects, which is acceptable for a diagnostic call
// that builds a report on demand rather than maintaining one incrementally.
func (h *Heap) Stats() Stats {
	counts := make(map[string]int)
	totalBytes := 0
	live := 0
	for i := range h.slots {
		if !h.slots[i].occupied {
			continue
		}
		live++
		counts[h.slots[i].data.TypeName()]++
		totalBytes += byteSize(h.slots[i].data)
	}
	return Stats{
		CountsByType: counts,
		TotalBytes:   totalBytes,
		FreeSlots:    len(h.freeList),
		LiveSlots:    live,
	}
}

// Diff is the per-type delta between two Stats snapshots.
type Diff struct {
	Delta      map[string]int
	Appeared   []string
	Vanished   []string
	ByteDelta  int
}

// Diff_ computes the per-type delta of cur relative to prev (cur minus
// prev), plus the set of
// types that newly appeared or fully vanished.
func Diff_(prev, cur Stats) Diff {
	delta := make(map[string]int)
	for t, n := range cur.CountsByType {
		delta[t] += n
	}
	for t, n := range prev.CountsByType {
		delta[t] -= n
	}
	for t, d := range delta {
		if d == 0 {
			delete(delta, t)
		}
	}

	var appeared, vanished []string
	for _, t := range maps.Keys(cur.CountsByType) {
		if _, ok := prev.CountsByType[t]; !ok {
			appeared = append(appeared, t)
		}
	}
	for _, t := range maps.Keys(prev.CountsByType) {
		if _, ok := cur.CountsByType[t]; !ok {
			vanished = append(vanished, t)
		}
	}
	sort.Strings(appeared)
	sort.Strings(vanished)

	return Diff{
		Delta:     delta,
		Appeared:  appeared,
		Vanished:  vanished,
		ByteDelta: cur.TotalBytes - prev.TotalBytes,
	}
}
