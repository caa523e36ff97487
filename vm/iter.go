package vm

import (
	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/values"
)

// iterState backs every non-generator iterator the VM produces for
// GET_ITER/FOR_ITER. Snapshotting items at GET_ITER time (rather than
// walking the live container) matches what a real iterator object would do
// for range/dict-view semantics closely enough for a sandboxed subset, and
// keeps FOR_ITER from re-deriving a cursor type on every step.
type iterState struct {
	items []values.Value
	idx   int
}

// makeIterator implements GET_ITER: snapshot v's elements into a fresh
// iterState, boxed as a heap.StdlibObject so it rides the stack like any
// other Value. A generator is returned as its own iterator; iterNext
// advances it through generatorNext in generator.go, since a generator's
// "next" resumes bytecode rather than walking a snapshot.
func (vm *VM) makeIterator(v values.Value) (values.Value, error) {
	if v.IsRef() {
		switch d := vm.h.Get(v.AsHeapId()).(type) {
		case *heap.Generator:
			return v, nil
		case *heap.List:
			return vm.boxIterator(append([]values.Value(nil), d.Items...))
		case *heap.Tuple:
			return vm.boxIterator(append([]values.Value(nil), d.Items...))
		case *heap.Str:
			return vm.boxIterator(vm.runeValues(d.S))
		case *heap.Dict:
			items := make([]values.Value, len(d.Order))
			for i, k := range d.Order {
				items[i] = d.Keys[k]
			}
			return vm.boxIterator(items)
		case *heap.Set:
			items := make([]values.Value, len(d.Order))
			for i, k := range d.Order {
				items[i] = d.Values[k]
			}
			return vm.boxIterator(items)
		case *heap.FrozenSet:
			items := make([]values.Value, len(d.Order))
			for i, k := range d.Order {
				items[i] = d.Values[k]
			}
			return vm.boxIterator(items)
		case *heap.Range:
			return vm.boxIterator(vm.rangeValues(d))
		}
	}
	return values.Value{}, vm.raiseBuiltin("TypeError", "'%s' object is not iterable", vm.h.TypeName(v))
}

func (vm *VM) runeValues(s string) []values.Value {
	runes := []rune(s)
	out := make([]values.Value, len(runes))
	for i, r := range runes {
		id, err := vm.h.Allocate(&heap.Str{S: string(r)})
		if err != nil {
			return out[:i]
		}
		out[i] = values.NewRef(id)
	}
	return out
}

func (vm *VM) rangeValues(r *heap.Range) []values.Value {
	var out []values.Value
	if r.Step > 0 {
		for i := r.Start; i < r.Stop; i += r.Step {
			out = append(out, values.NewInt(i))
		}
	} else if r.Step < 0 {
		for i := r.Start; i > r.Stop; i += r.Step {
			out = append(out, values.NewInt(i))
		}
	}
	return out
}

func (vm *VM) boxIterator(items []values.Value) (values.Value, error) {
	for _, it := range items {
		vm.h.IncRefValue(it)
	}
	id, err := vm.h.Allocate(&heap.StdlibObject{Kind: "iterator", Payload: &iterState{items: items}})
	return vm.wrap(id, err)
}

// iterNext implements FOR_ITER: advance the iterator v, returning the next
// item and true, or false once it is exhausted. It pushes nothing itself;
// the caller in dispatch.go pushes the item above the iterator or, on
// exhaustion, takes opcodes.OP_FOR_ITER's jump.
func (vm *VM) iterNext(v values.Value) (values.Value, bool, error) {
	if !v.IsRef() {
		return values.Value{}, false, vm.raiseBuiltin("TypeError", "'%s' object is not an iterator", vm.h.TypeName(v))
	}
	switch d := vm.h.Get(v.AsHeapId()).(type) {
	case *heap.StdlibObject:
		if d.Kind != "iterator" {
			return values.Value{}, false, vm.raiseBuiltin("TypeError", "'%s' object is not an iterator", d.Kind)
		}
		st := d.Payload.(*iterState)
		if st.idx >= len(st.items) {
			return values.Value{}, false, nil
		}
		item := st.items[st.idx]
		st.idx++
		vm.h.IncRefValue(item)
		return item, true, nil
	case *heap.Generator:
		return vm.generatorNext(v, d)
	default:
		return values.Value{}, false, vm.raiseBuiltin("TypeError", "'%s' object is not an iterator", vm.h.TypeName(v))
	}
}
