package heap

import (
	"fmt"

	"github.com/parcadei/ouros-go/values"
)

// HashKey reduces v to a comparable DictKey so it can be used as a Go map
// key inside Dict/Set. Depth-guarded the same way Repr is, since a key may
// itself be a heap-resident tuple.
func (h *Heap) HashKey(v values.Value) (DictKey, error) {
	return h.hashKey(v, 0)
}

func (h *Heap) hashKey(v values.Value, depth int) (DictKey, error) {
	if depth >= MaxDataRecursionDepth {
		return DictKey{}, fmt.Errorf("maximum recursion depth exceeded while hashing")
	}
	switch v.Kind() {
	case values.KindNone, values.KindUndefined:
		return DictKey{Kind: v.Kind()}, nil
	case values.KindBool:
		return DictKey{Kind: values.KindInt, I: boolToInt(v.AsBool())}, nil
	case values.KindInt:
		return DictKey{Kind: values.KindInt, I: v.AsInt()}, nil
	case values.KindFloat:
		if f := v.AsFloat(); f == float64(int64(f)) {
			return DictKey{Kind: values.KindInt, I: int64(f)}, nil
		}
		return DictKey{Kind: values.KindFloat, F: v.AsFloat()}, nil
	case values.KindInternString:
		return DictKey{Kind: values.KindInternString, I: int64(v.AsStringId())}, nil
	case values.KindRef:
		return h.hashKeyRef(v.AsHeapId(), depth)
	default:
		return DictKey{Kind: v.Kind(), I: v.AsInt()}, nil
	}
}

func (h *Heap) hashKeyRef(id values.HeapId, depth int) (DictKey, error) {
	switch d := h.Get(id).(type) {
	case *Str:
		return DictKey{Kind: values.KindRef, S: "s:" + d.S}, nil
	case *Bytes:
		return DictKey{Kind: values.KindRef, S: "b:" + string(d.B)}, nil
	case *LongInt:
		return DictKey{Kind: values.KindRef, S: "n:" + d.V.String()}, nil
	case *Tuple:
		s := "t:"
		for _, item := range d.Items {
			k, err := h.hashKey(item, depth+1)
			if err != nil {
				return DictKey{}, err
			}
			s += fmt.Sprintf("(%d,%d,%g,%s)", k.Kind, k.I, k.F, k.S)
		}
		return DictKey{Kind: values.KindRef, S: s}, nil
	default:
		return DictKey{}, fmt.Errorf("unhashable type: '%s'", h.Get(id).TypeName())
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Eq implements Python == with a recursion guard. Ref equality falls
// through to structural equality for the container variants, matching
// CPython's value semantics for built-ins.
func (h *Heap) Eq(a, b values.Value) bool {
	ok, _ := h.eq(a, b, 0)
	return ok
}

func (h *Heap) eq(a, b values.Value, depth int) (bool, error) {
	if depth >= MaxDataRecursionDepth {
		return true, nil
	}
	if numericKind(a.Kind()) && numericKind(b.Kind()) {
		return numericValue(a) == numericValue(b), nil
	}
	if a.Kind() != b.Kind() {
		return false, nil
	}
	switch a.Kind() {
	case values.KindNone, values.KindUndefined:
		return true, nil
	case values.KindInternString:
		return a.AsStringId() == b.AsStringId(), nil
	case values.KindRef:
		return h.eqRef(a.AsHeapId(), b.AsHeapId(), depth+1)
	default:
		return a.AsInt() == b.AsInt(), nil
	}
}

func numericKind(k values.Kind) bool {
	return k == values.KindInt || k == values.KindFloat || k == values.KindBool
}

func numericValue(v values.Value) float64 {
	switch v.Kind() {
	case values.KindFloat:
		return v.AsFloat()
	case values.KindBool:
		if v.AsBool() {
			return 1
		}
		return 0
	default:
		return float64(v.AsInt())
	}
}

func (h *Heap) eqRef(a, b values.HeapId, depth int) (bool, error) {
	if a == b {
		return true, nil
	}
	da, db := h.Get(a), h.Get(b)
	switch x := da.(type) {
	case *Str:
		y, ok := db.(*Str)
		return ok && x.S == y.S, nil
	case *Bytes:
		y, ok := db.(*Bytes)
		return ok && string(x.B) == string(y.B), nil
	case *LongInt:
		y, ok := db.(*LongInt)
		return ok && x.V.Cmp(y.V) == 0, nil
	case *List:
		y, ok := db.(*List)
		if !ok || len(x.Items) != len(y.Items) {
			return false, nil
		}
		for i := range x.Items {
			eq, err := h.eq(x.Items[i], y.Items[i], depth)
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	case *Tuple:
		y, ok := db.(*Tuple)
		if !ok || len(x.Items) != len(y.Items) {
			return false, nil
		}
		for i := range x.Items {
			eq, err := h.eq(x.Items[i], y.Items[i], depth)
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	case *Dict:
		y, ok := db.(*Dict)
		if !ok || len(x.Order) != len(y.Order) {
			return false, nil
		}
		for k, v := range x.Values {
			yv, present := y.Values[k]
			if !present {
				return false, nil
			}
			eq, err := h.eq(v, yv, depth)
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	default:
		return da == db, nil
	}
}

// Cmp implements an ordering suitable for <, <=, >, >= over numerics and
// strings; returns -1, 0, 1. Unorderable types return an error (a Python
// TypeError at the call site).
func (h *Heap) Cmp(a, b values.Value) (int, error) {
	if numericKind(a.Kind()) && numericKind(b.Kind()) {
		x, y := numericValue(a), numericValue(b)
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if a.Kind() == values.KindRef && b.Kind() == values.KindRef {
		sa, aok := h.Get(a.AsHeapId()).(*Str)
		sb, bok := h.Get(b.AsHeapId()).(*Str)
		if aok && bok {
			switch {
			case sa.S < sb.S:
				return -1, nil
			case sa.S > sb.S:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}
	return 0, fmt.Errorf("'<' not supported between instances of '%s' and '%s'", h.TypeName(a), h.TypeName(b))
}
