package vm

import (
	"math/big"
	"strings"

	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/values"
)

// identical implements `is`/`is not`: Ref values compare by HeapId, every
// other Value kind compares its immediate payload, since immediates have no
// separate object identity to compare.
func (vm *VM) identical(a, b values.Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case values.KindNone, values.KindUndefined:
		return true
	case values.KindBool:
		return a.AsBool() == b.AsBool()
	case values.KindInt:
		return a.AsInt() == b.AsInt()
	case values.KindFloat:
		return a.AsFloat() == b.AsFloat()
	case values.KindInternString:
		return a.AsStringId() == b.AsStringId()
	case values.KindRef:
		return a.AsHeapId() == b.AsHeapId()
	default:
		return a.AsInt() == b.AsInt()
	}
}

func (vm *VM) negate(v values.Value) (values.Value, error) {
	switch v.Kind() {
	case values.KindInt:
		return values.NewInt(-v.AsInt()), nil
	case values.KindFloat:
		return values.NewFloat(-v.AsFloat()), nil
	case values.KindBool:
		return values.NewInt(-v.AsInt()), nil
	}
	if v.IsRef() {
		if li, ok := vm.h.Get(v.AsHeapId()).(*heap.LongInt); ok {
			neg := new(big.Int).Neg(li.V)
			id, err := vm.h.Allocate(&heap.LongInt{V: neg})
			return vm.wrap(id, err)
		}
	}
	return values.Value{}, vm.raiseBuiltin("TypeError", "bad operand type for unary -: '%s'", vm.h.TypeName(v))
}

// contains implements `in`/`not in` over container: sequences linearly
// compare via heap.Eq, dict/set lookups hash the item, strings check
// substring containment.
func (vm *VM) contains(container, item values.Value) (bool, error) {
	if container.IsRef() {
		switch d := vm.h.Get(container.AsHeapId()).(type) {
		case *heap.List:
			for _, it := range d.Items {
				if vm.h.Eq(it, item) {
					return true, nil
				}
			}
			return false, nil
		case *heap.Tuple:
			for _, it := range d.Items {
				if vm.h.Eq(it, item) {
					return true, nil
				}
			}
			return false, nil
		case *heap.Dict:
			dk, err := vm.h.HashKey(item)
			if err != nil {
				return false, vm.raiseBuiltin("TypeError", "%s", err.Error())
			}
			_, ok := d.Values[dk]
			return ok, nil
		case *heap.Set:
			dk, err := vm.h.HashKey(item)
			if err != nil {
				return false, vm.raiseBuiltin("TypeError", "%s", err.Error())
			}
			_, ok := d.Values[dk]
			return ok, nil
		case *heap.FrozenSet:
			dk, err := vm.h.HashKey(item)
			if err != nil {
				return false, vm.raiseBuiltin("TypeError", "%s", err.Error())
			}
			_, ok := d.Values[dk]
			return ok, nil
		case *heap.Str:
			sub, ok := vm.asStr(item)
			if !ok {
				return false, vm.raiseBuiltin("TypeError", "'in <string>' requires string as left operand")
			}
			return strings.Contains(d.S, sub), nil
		case *heap.Range:
			if item.Kind() != values.KindInt {
				return false, nil
			}
			n := item.AsInt()
			if d.Step > 0 {
				return n >= d.Start && n < d.Stop && (n-d.Start)%d.Step == 0, nil
			}
			if d.Step < 0 {
				return n <= d.Start && n > d.Stop && (d.Start-n)%(-d.Step) == 0, nil
			}
			return false, nil
		}
	}
	return false, vm.raiseBuiltin("TypeError", "argument of type '%s' is not iterable", vm.h.TypeName(container))
}

// subscr implements BINARY_SUBSCR for list/tuple/dict/str/range, including
// the slice-object form produced by BUILD_SLICE.
func (vm *VM) subscr(obj, key values.Value) (values.Value, error) {
	if !obj.IsRef() {
		return values.Value{}, vm.raiseBuiltin("TypeError", "'%s' object is not subscriptable", vm.h.TypeName(obj))
	}
	switch d := vm.h.Get(obj.AsHeapId()).(type) {
	case *heap.List:
		if sl, ok := vm.asSlice(key); ok {
			items := vm.sliceItems(d.Items, sl)
			for _, it := range items {
				vm.h.IncRefValue(it)
			}
			id, err := vm.h.Allocate(&heap.List{Items: items})
			return vm.wrap(id, err)
		}
		i, err := vm.indexInto(key, len(d.Items))
		if err != nil {
			return values.Value{}, err
		}
		v := d.Items[i]
		vm.h.IncRefValue(v)
		return v, nil
	case *heap.Tuple:
		if sl, ok := vm.asSlice(key); ok {
			items := vm.sliceItems(d.Items, sl)
			for _, it := range items {
				vm.h.IncRefValue(it)
			}
			id, err := vm.h.Allocate(&heap.Tuple{Items: items})
			return vm.wrap(id, err)
		}
		i, err := vm.indexInto(key, len(d.Items))
		if err != nil {
			return values.Value{}, err
		}
		v := d.Items[i]
		vm.h.IncRefValue(v)
		return v, nil
	case *heap.Str:
		runes := []rune(d.S)
		if sl, ok := vm.asSlice(key); ok {
			start, stop, step := sl.resolve(len(runes))
			var b strings.Builder
			if step > 0 {
				for i := start; i < stop; i += step {
					b.WriteRune(runes[i])
				}
			} else if step < 0 {
				for i := start; i > stop; i += step {
					b.WriteRune(runes[i])
				}
			}
			id, err := vm.h.Allocate(&heap.Str{S: b.String()})
			return vm.wrap(id, err)
		}
		i, err := vm.indexInto(key, len(runes))
		if err != nil {
			return values.Value{}, err
		}
		id, aerr := vm.h.Allocate(&heap.Str{S: string(runes[i])})
		return vm.wrap(id, aerr)
	case *heap.Dict:
		dk, err := vm.h.HashKey(key)
		if err != nil {
			return values.Value{}, vm.raiseBuiltin("TypeError", "%s", err.Error())
		}
		v, ok := d.Values[dk]
		if !ok {
			return values.Value{}, vm.raiseBuiltin("KeyError", "%s", vm.h.Repr(key, vm.interns))
		}
		vm.h.IncRefValue(v)
		return v, nil
	case *heap.Range:
		i, err := vm.indexInto(key, rangeLen(d))
		if err != nil {
			return values.Value{}, err
		}
		return values.NewInt(d.Start + int64(i)*d.Step), nil
	}
	return values.Value{}, vm.raiseBuiltin("TypeError", "'%s' object is not subscriptable", vm.h.TypeName(obj))
}

func rangeLen(r *heap.Range) int {
	if r.Step > 0 && r.Start < r.Stop {
		return int((r.Stop - r.Start + r.Step - 1) / r.Step)
	}
	if r.Step < 0 && r.Start > r.Stop {
		return int((r.Start - r.Stop - r.Step - 1) / (-r.Step))
	}
	return 0
}

func (vm *VM) indexInto(key values.Value, length int) (int, error) {
	if key.Kind() != values.KindInt {
		return 0, vm.raiseBuiltin("TypeError", "indices must be integers")
	}
	i := int(key.AsInt())
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		return 0, vm.raiseBuiltin("IndexError", "index out of range")
	}
	return i, nil
}

type resolvedSlice struct {
	start, stop, step values.Value
}

func (vm *VM) asSlice(key values.Value) (resolvedSlice, bool) {
	if !key.IsRef() {
		return resolvedSlice{}, false
	}
	s, ok := vm.h.Get(key.AsHeapId()).(*heap.Slice)
	if !ok {
		return resolvedSlice{}, false
	}
	return resolvedSlice{start: s.Start, stop: s.Stop, step: s.Step}, true
}

func (s resolvedSlice) resolve(length int) (start, stop, step int) {
	step = 1
	if s.step.Kind() == values.KindInt {
		step = int(s.step.AsInt())
	}
	if step == 0 {
		step = 1
	}
	if step > 0 {
		start, stop = 0, length
	} else {
		start, stop = length-1, -1
	}
	if s.start.Kind() == values.KindInt {
		start = normalizeIndex(int(s.start.AsInt()), length, step > 0)
	}
	if s.stop.Kind() == values.KindInt {
		stop = normalizeIndex(int(s.stop.AsInt()), length, step > 0)
	}
	return start, stop, step
}

func normalizeIndex(i, length int, forward bool) int {
	if i < 0 {
		i += length
	}
	if forward {
		if i < 0 {
			i = 0
		}
		if i > length {
			i = length
		}
	} else {
		if i < -1 {
			i = -1
		}
		if i >= length {
			i = length - 1
		}
	}
	return i
}

func (vm *VM) sliceItems(items []values.Value, sl resolvedSlice) []values.Value {
	start, stop, step := sl.resolve(len(items))
	var out []values.Value
	if step > 0 {
		for i := start; i < stop; i += step {
			out = append(out, items[i])
		}
	} else {
		for i := start; i > stop; i += step {
			out = append(out, items[i])
		}
	}
	return out
}

// setSubscr implements STORE_SUBSCR for list index assignment and dict
// assignment; slice assignment is not supported.
func (vm *VM) setSubscr(obj, key, v values.Value) error {
	if !obj.IsRef() {
		return vm.raiseBuiltin("TypeError", "'%s' object does not support item assignment", vm.h.TypeName(obj))
	}
	switch d := vm.h.Get(obj.AsHeapId()).(type) {
	case *heap.List:
		i, err := vm.indexInto(key, len(d.Items))
		if err != nil {
			return err
		}
		vm.h.DecRefValue(d.Items[i])
		d.Items[i] = v
		return nil
	case *heap.Dict:
		return vm.dictSet(d, key, v)
	}
	return vm.raiseBuiltin("TypeError", "'%s' object does not support item assignment", vm.h.TypeName(obj))
}

func (vm *VM) delSubscr(obj, key values.Value) error {
	if !obj.IsRef() {
		return vm.raiseBuiltin("TypeError", "'%s' object does not support item deletion", vm.h.TypeName(obj))
	}
	switch d := vm.h.Get(obj.AsHeapId()).(type) {
	case *heap.List:
		i, err := vm.indexInto(key, len(d.Items))
		if err != nil {
			return err
		}
		vm.h.DecRefValue(d.Items[i])
		d.Items = append(d.Items[:i], d.Items[i+1:]...)
		return nil
	case *heap.Dict:
		dk, err := vm.h.HashKey(key)
		if err != nil {
			return vm.raiseBuiltin("TypeError", "%s", err.Error())
		}
		if _, ok := d.Values[dk]; !ok {
			return vm.raiseBuiltin("KeyError", "%s", vm.h.Repr(key, vm.interns))
		}
		vm.h.DecRefValue(d.Keys[dk])
		vm.h.DecRefValue(d.Values[dk])
		delete(d.Keys, dk)
		delete(d.Values, dk)
		for i, k := range d.Order {
			if k == dk {
				d.Order = append(d.Order[:i], d.Order[i+1:]...)
				break
			}
		}
		return nil
	}
	return vm.raiseBuiltin("TypeError", "'%s' object does not support item deletion", vm.h.TypeName(obj))
}

// dictSet inserts or overwrites key->val in d, keeping Order in first-insert
// position and releasing whatever it replaces, matching CPython 3.7+
// insertion-order dict semantics.
func (vm *VM) dictSet(d *heap.Dict, key, val values.Value) error {
	dk, err := vm.h.HashKey(key)
	if err != nil {
		return vm.raiseBuiltin("TypeError", "%s", err.Error())
	}
	if old, ok := d.Values[dk]; ok {
		vm.h.DecRefValue(old)
		vm.h.DecRefValue(key)
	} else {
		d.Order = append(d.Order, dk)
		d.Keys[dk] = key
	}
	d.Values[dk] = val
	return nil
}
