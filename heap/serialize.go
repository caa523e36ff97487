package heap

import (
	"encoding/gob"

	"github.com/parcadei/ouros-go/resource"
	"github.com/parcadei/ouros-go/values"
)

func init() {
	gob.Register(&Str{})
	gob.Register(&Bytes{})
	gob.Register(&List{})
	gob.Register(&Tuple{})
	gob.Register(&Dict{})
	gob.Register(&Set{})
	gob.Register(&FrozenSet{})
	gob.Register(&LongInt{})
	gob.Register(&Fraction{})
	gob.Register(&Decimal{})
	gob.Register(&Range{})
	gob.Register(&Slice{})
	gob.Register(&ClassObject{})
	gob.Register(&Instance{})
	gob.Register(&BoundMethod{})
	gob.Register(&Closure{})
	gob.Register(&Generator{})
	gob.Register(&Module{})
	gob.Register(&WeakRef{})
	gob.Register(&Partial{})
	gob.Register(&OperatorCallable{})
	gob.Register(&StdlibObject{})
	gob.Register(&Path{})
	gob.Register(&NamedTuple{})
	gob.Register(&Dataclass{})
	gob.Register(&Property{})
}

// SlotSnapshot is one occupied-or-free heap cell in gob-friendly form, used
// to serialize the full session heap to disk. Data is nil for a free slot.
type SlotSnapshot struct {
	Occupied bool
	Refcount uint32
	Data     Data
}

// Snapshot is a self-contained copy of the heap suitable for gob encoding.
// StdlibObject values whose Payload is a runtime-private type not
// registered with gob (complex numbers, compiled regexes, datetime facades)
// will fail to encode; Session.Save surfaces that as a plain error rather
// than silently dropping the object, since "opaque blob" was never meant to
// imply "unsaveable" but the pack carries no general-purpose object graph
// serializer that could see through Payload's concrete type for us.
type Snapshot struct {
	Slots    []SlotSnapshot
	FreeList []values.HeapId
	Weakrefs map[values.HeapId][]values.HeapId
}

// Snapshot captures the heap's entire slot array for persistence.
func (h *Heap) Snapshot() Snapshot {
	slots := make([]SlotSnapshot, len(h.slots))
	for i, s := range h.slots {
		slots[i] = SlotSnapshot{Occupied: s.occupied, Refcount: s.refcount, Data: s.data}
	}
	weakrefs := make(map[values.HeapId][]values.HeapId, len(h.weakrefs))
	for target, refs := range h.weakrefs {
		weakrefs[target] = append([]values.HeapId(nil), refs...)
	}
	return Snapshot{
		Slots:    slots,
		FreeList: append([]values.HeapId(nil), h.freeList...),
		Weakrefs: weakrefs,
	}
}

// FromSnapshot rebuilds a Heap from a previously captured Snapshot, charged
// against tracker. HeapIds are preserved exactly (slot index == HeapId), so
// every values.Value that was a Ref into the saved heap is valid again
// without rewriting.
func FromSnapshot(snap Snapshot, tracker *resource.Tracker) *Heap {
	h := &Heap{
		tracker:  tracker,
		slots:    make([]slot, len(snap.Slots)),
		freeList: append([]values.HeapId(nil), snap.FreeList...),
		weakrefs: make(map[values.HeapId][]values.HeapId, len(snap.Weakrefs)),
	}
	for i, s := range snap.Slots {
		h.slots[i] = slot{occupied: s.Occupied, refcount: s.Refcount, data: s.Data}
	}
	for target, refs := range snap.Weakrefs {
		h.weakrefs[target] = append([]values.HeapId(nil), refs...)
	}
	return h
}
