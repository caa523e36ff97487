package vm

import (
	"strings"

	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/intern"
	"github.com/parcadei/ouros-go/opcodes"
	"github.com/parcadei/ouros-go/values"
)

// sequenceOp handles +/* over str/list/tuple operands (string and sequence
// concatenation/repetition), kept apart from binaryOp's numeric promotion
// ladder since these never produce a LongInt or float.
func (vm *VM) sequenceOp(op opcodes.Opcode, a, b values.Value) (values.Value, error) {
	if sa, ok := vm.asStr(a); ok {
		switch op {
		case opcodes.OP_BINARY_ADD:
			if sb, ok := vm.asStr(b); ok {
				id, err := vm.h.Allocate(&heap.Str{S: sa + sb})
				return vm.wrap(id, err)
			}
		case opcodes.OP_BINARY_MULTIPLY:
			if n, ok := asRepeatCount(b); ok {
				id, err := vm.h.Allocate(&heap.Str{S: strings.Repeat(sa, n)})
				return vm.wrap(id, err)
			}
		case opcodes.OP_COMPARE_EQ, opcodes.OP_COMPARE_NE, opcodes.OP_COMPARE_LT, opcodes.OP_COMPARE_LE, opcodes.OP_COMPARE_GT, opcodes.OP_COMPARE_GE:
			return vm.compareOp(op, a, b)
		}
	}

	if la, ok := vm.asItems(a); ok {
		switch op {
		case opcodes.OP_BINARY_ADD:
			if lb, ok := vm.asItems(b); ok && vm.sameSeqKind(a, b) {
				items := append(append([]values.Value(nil), la...), lb...)
				for _, it := range items {
					vm.h.IncRefValue(it)
				}
				return vm.allocateSeqLike(a, items)
			}
		case opcodes.OP_BINARY_MULTIPLY:
			if n, ok := asRepeatCount(b); ok {
				items := make([]values.Value, 0, len(la)*n)
				for i := 0; i < n; i++ {
					items = append(items, la...)
				}
				for _, it := range items {
					vm.h.IncRefValue(it)
				}
				return vm.allocateSeqLike(a, items)
			}
		}
	}

	return values.Value{}, vm.raiseBuiltin("TypeError", "unsupported operand type(s) for %s: '%s' and '%s'", opName(op), vm.h.TypeName(a), vm.h.TypeName(b))
}

func (vm *VM) wrap(id values.HeapId, err error) (values.Value, error) {
	if err != nil {
		return values.Value{}, err
	}
	return values.NewRef(id), nil
}

func (vm *VM) asStr(v values.Value) (string, bool) {
	if !v.IsRef() {
		return "", false
	}
	s, ok := vm.h.Get(v.AsHeapId()).(*heap.Str)
	if !ok {
		return "", false
	}
	return s.S, true
}

// nameOf resolves a dict-key-shaped Value to a Go string, covering both
// heap-allocated string objects and the interned identifiers the compiler
// uses for attribute/class names.
func (vm *VM) nameOf(v values.Value) (string, bool) {
	if s, ok := vm.asStr(v); ok {
		return s, true
	}
	if v.Kind() == values.KindInternString {
		return vm.interns.Lookup(intern.StringId(v.AsStringId()))
	}
	return "", false
}

func (vm *VM) asItems(v values.Value) ([]values.Value, bool) {
	if !v.IsRef() {
		return nil, false
	}
	switch d := vm.h.Get(v.AsHeapId()).(type) {
	case *heap.List:
		return d.Items, true
	case *heap.Tuple:
		return d.Items, true
	default:
		return nil, false
	}
}

func (vm *VM) sameSeqKind(a, b values.Value) bool {
	_, aList := vm.h.Get(a.AsHeapId()).(*heap.List)
	_, bList := vm.h.Get(b.AsHeapId()).(*heap.List)
	return aList == bList
}

func (vm *VM) allocateSeqLike(like values.Value, items []values.Value) (values.Value, error) {
	if _, ok := vm.h.Get(like.AsHeapId()).(*heap.List); ok {
		id, err := vm.h.Allocate(&heap.List{Items: items})
		return vm.wrap(id, err)
	}
	id, err := vm.h.Allocate(&heap.Tuple{Items: items})
	return vm.wrap(id, err)
}

func asRepeatCount(v values.Value) (int, bool) {
	if v.Kind() != values.KindInt {
		return 0, false
	}
	n := v.AsInt()
	if n < 0 {
		n = 0
	}
	return int(n), true
}

func (vm *VM) compareOp(op opcodes.Opcode, a, b values.Value) (values.Value, error) {
	switch op {
	case opcodes.OP_COMPARE_EQ:
		return values.NewBool(vm.h.Eq(a, b)), nil
	case opcodes.OP_COMPARE_NE:
		return values.NewBool(!vm.h.Eq(a, b)), nil
	default:
		c, err := vm.h.Cmp(a, b)
		if err != nil {
			return values.Value{}, vm.raiseBuiltin("TypeError", "%s", err.Error())
		}
		switch op {
		case opcodes.OP_COMPARE_LT:
			return values.NewBool(c < 0), nil
		case opcodes.OP_COMPARE_LE:
			return values.NewBool(c <= 0), nil
		case opcodes.OP_COMPARE_GT:
			return values.NewBool(c > 0), nil
		default:
			return values.NewBool(c >= 0), nil
		}
	}
}
