package heap

import (
	"math/big"

	"github.com/parcadei/ouros-go/intern"
	"github.com/parcadei/ouros-go/resource"
	"github.com/parcadei/ouros-go/values"
)

// Clone deep-copies the heap's entire slot array against a fresh tracker,
// so the result shares no mutable state with the original: any allocation,
// binding, or mutation on either side afterward is invisible to the other.
// HeapIds are preserved 1:1 — every Ref in the cloned graph still points at
// the same index in the new slot array, so callers only need to clone their
// own globals/frames afterward, not rewrite any HeapId.
func (h *Heap) Clone(tracker *resource.Tracker) *Heap {
	out := &Heap{
		tracker:  tracker,
		slots:    make([]slot, len(h.slots)),
		freeList: append([]values.HeapId(nil), h.freeList...),
		weakrefs: make(map[values.HeapId][]values.HeapId, len(h.weakrefs)),
	}
	for i, s := range h.slots {
		out.slots[i] = slot{occupied: s.occupied, refcount: s.refcount}
		if s.occupied {
			out.slots[i].data = cloneData(s.data)
		}
	}
	for target, refs := range h.weakrefs {
		out.weakrefs[target] = append([]values.HeapId(nil), refs...)
	}
	return out
}

func cloneValues(vs []values.Value) []values.Value {
	return append([]values.Value(nil), vs...)
}

func cloneStrMap(m map[string]values.Value) map[string]values.Value {
	out := make(map[string]values.Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneDictKeyMap(m map[DictKey]values.Value) map[DictKey]values.Value {
	out := make(map[DictKey]values.Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneMethodMap(m map[string]intern.FunctionId) map[string]intern.FunctionId {
	out := make(map[string]intern.FunctionId, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// cloneData deep-copies one heap slot's payload, duplicating every slice and
// map field so the clone and the original never alias mutable storage.
// values.Value itself is a small trivially-copyable struct (section 3), so
// copying a []values.Value slice is sufficient without per-element work.
func cloneData(d Data) Data {
	switch v := d.(type) {
	case *Str:
		c := *v
		return &c
	case *Bytes:
		return &Bytes{B: append([]byte(nil), v.B...)}
	case *List:
		return &List{Items: cloneValues(v.Items)}
	case *Tuple:
		return &Tuple{Items: cloneValues(v.Items)}
	case *Dict:
		return &Dict{
			Order:  append([]DictKey(nil), v.Order...),
			Values: cloneDictKeyMap(v.Values),
			Keys:   cloneDictKeyMap(v.Keys),
		}
	case *Set:
		return &Set{Order: append([]DictKey(nil), v.Order...), Values: cloneDictKeyMap(v.Values)}
	case *FrozenSet:
		return &FrozenSet{Order: append([]DictKey(nil), v.Order...), Values: cloneDictKeyMap(v.Values)}
	case *LongInt:
		return &LongInt{V: new(big.Int).Set(v.V)}
	case *Fraction:
		return &Fraction{V: new(big.Rat).Set(v.V)}
	case *Decimal:
		c := *v
		return &c
	case *Range:
		c := *v
		return &c
	case *Slice:
		c := *v
		return &c
	case *ClassObject:
		return &ClassObject{
			Name:       v.Name,
			Bases:      cloneValues(v.Bases),
			MRO:        cloneValues(v.MRO),
			Methods:    cloneMethodMap(v.Methods),
			ClassAttrs: cloneStrMap(v.ClassAttrs),
		}
	case *Instance:
		return &Instance{Class: v.Class, Attrs: cloneStrMap(v.Attrs)}
	case *BoundMethod:
		c := *v
		return &c
	case *Closure:
		return &Closure{Function: v.Function, Cells: cloneValues(v.Cells), Defaults: cloneValues(v.Defaults)}
	case *Generator:
		return &Generator{
			Function:   v.Function,
			Namespace:  cloneValues(v.Namespace),
			FrameCells: append([]values.HeapId(nil), v.FrameCells...),
			State:      v.State,
			SavedIP:    v.SavedIP,
			SavedStack: cloneValues(v.SavedStack),
			SavedLine:  v.SavedLine,
		}
	case *Module:
		return &Module{Name: v.Name, Globals: cloneStrMap(v.Globals)}
	case *WeakRef:
		c := *v
		return &c
	case *Partial:
		return &Partial{Function: v.Function, Args: cloneValues(v.Args), Kwargs: cloneStrMap(v.Kwargs)}
	case *OperatorCallable:
		return &OperatorCallable{Kind: v.Kind, Args: cloneValues(v.Args)}
	case *StdlibObject:
		c := *v
		return &c
	case *Path:
		c := *v
		return &c
	case *NamedTuple:
		return &NamedTuple{TypeName_: v.TypeName_, Fields: append([]string(nil), v.Fields...), Items: cloneValues(v.Items)}
	case *Dataclass:
		return &Dataclass{TypeName_: v.TypeName_, Fields: append([]string(nil), v.Fields...), Attrs: cloneStrMap(v.Attrs)}
	case *Property:
		c := *v
		return &c
	default:
		return d
	}
}
