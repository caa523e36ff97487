package object

import (
	"fmt"

	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/intern"
	"github.com/parcadei/ouros-go/values"
)

// ToObject deep-copies v (and, transitively, everything it references) into
// a heap-free Object tree without mutating any refcount; it is the outbound
// half of the Value <-> Object conversion at the sandbox boundary.
func ToObject(h *heap.Heap, interns *intern.Table, v values.Value) (Object, error) {
	return toObject(h, interns, v, 0)
}

func toObject(h *heap.Heap, interns *intern.Table, v values.Value, depth int) (Object, error) {
	if depth >= heap.MaxDataRecursionDepth {
		return Object{}, fmt.Errorf("object: value nesting exceeds max depth")
	}
	switch v.Kind() {
	case values.KindNone, values.KindUndefined:
		return None(), nil
	case values.KindBool:
		return Bool(v.AsBool()), nil
	case values.KindInt:
		return Int(v.AsInt()), nil
	case values.KindFloat:
		return Float(v.AsFloat()), nil
	case values.KindInternString:
		s, _ := interns.Lookup(intern.StringId(v.AsStringId()))
		return Str(s), nil
	case values.KindRef:
		return refToObject(h, interns, v.AsHeapId(), depth)
	default:
		return Object{}, fmt.Errorf("object: value of kind %v cannot cross the sandbox boundary", v.Kind())
	}
}

func refToObject(h *heap.Heap, interns *intern.Table, id values.HeapId, depth int) (Object, error) {
	next := depth + 1
	switch d := h.Get(id).(type) {
	case *heap.Str:
		return Str(d.S), nil
	case *heap.Bytes:
		return BytesVal(append([]byte(nil), d.B...)), nil
	case *heap.List:
		items, err := toObjectSlice(h, interns, d.Items, next)
		if err != nil {
			return Object{}, err
		}
		return List(items), nil
	case *heap.Tuple:
		items, err := toObjectSlice(h, interns, d.Items, next)
		if err != nil {
			return Object{}, err
		}
		return Tuple(items), nil
	case *heap.Set:
		items, err := toObjectSlice(h, interns, setItems(d), next)
		if err != nil {
			return Object{}, err
		}
		return Set(items), nil
	case *heap.Dict:
		entries := make([]DictEntry, 0, len(d.Order))
		for _, k := range d.Order {
			kv := d.Keys[k]
			vv := d.Values[k]
			ko, err := toObject(h, interns, kv, next)
			if err != nil {
				return Object{}, err
			}
			vo, err := toObject(h, interns, vv, next)
			if err != nil {
				return Object{}, err
			}
			entries = append(entries, DictEntry{Key: ko, Value: vo})
		}
		return Dict(entries), nil
	default:
		return Object{}, fmt.Errorf("object: %s values cannot cross the sandbox boundary", h.TypeName(values.NewRef(id)))
	}
}

func toObjectSlice(h *heap.Heap, interns *intern.Table, items []values.Value, depth int) ([]Object, error) {
	out := make([]Object, len(items))
	for i, it := range items {
		o, err := toObject(h, interns, it, depth)
		if err != nil {
			return nil, err
		}
		out[i] = o
	}
	return out, nil
}

func setItems(d *heap.Set) []values.Value {
	items := make([]values.Value, 0, len(d.Order))
	for _, k := range d.Order {
		items = append(items, d.Values[k])
	}
	return items
}

// FromObject allocates fresh heap slots for obj, the inbound half of the
// Value <-> Object conversion: it deep-copies and allocates fresh heap
// slots rather than aliasing anything from obj. The returned Value owns
// exactly one reference on every allocated slot.
func FromObject(h *heap.Heap, interns *intern.Table, obj Object) (values.Value, error) {
	switch obj.Kind {
	case KindNone:
		return values.NewNone(), nil
	case KindBool:
		return values.NewBool(obj.Bool), nil
	case KindInt:
		return values.NewInt(obj.Int), nil
	case KindFloat:
		return values.NewFloat(obj.Float), nil
	case KindStr:
		return values.NewInternString(interns.Intern(obj.Str)), nil
	case KindBytes:
		id, err := h.Allocate(&heap.Bytes{B: append([]byte(nil), obj.Bytes...)})
		if err != nil {
			return values.Value{}, err
		}
		return values.NewRef(id), nil
	case KindList:
		items, err := fromObjectSlice(h, interns, obj.Items)
		if err != nil {
			return values.Value{}, err
		}
		id, err := h.Allocate(&heap.List{Items: items})
		if err != nil {
			return values.Value{}, err
		}
		return values.NewRef(id), nil
	case KindTuple:
		items, err := fromObjectSlice(h, interns, obj.Items)
		if err != nil {
			return values.Value{}, err
		}
		id, err := h.Allocate(&heap.Tuple{Items: items})
		if err != nil {
			return values.Value{}, err
		}
		return values.NewRef(id), nil
	case KindSet:
		items, err := fromObjectSlice(h, interns, obj.Items)
		if err != nil {
			return values.Value{}, err
		}
		set := heap.NewSet()
		for _, it := range items {
			k, err := h.HashKey(it)
			if err != nil {
				return values.Value{}, err
			}
			if _, dup := set.Values[k]; dup {
				h.DecRefValue(it)
				continue
			}
			set.Order = append(set.Order, k)
			set.Values[k] = it
		}
		id, err := h.Allocate(set)
		if err != nil {
			return values.Value{}, err
		}
		return values.NewRef(id), nil
	case KindDict:
		dict := heap.NewDict()
		for _, e := range obj.Entries {
			k, err := FromObject(h, interns, e.Key)
			if err != nil {
				return values.Value{}, err
			}
			v, err := FromObject(h, interns, e.Value)
			if err != nil {
				return values.Value{}, err
			}
			key, err := h.HashKey(k)
			if err != nil {
				return values.Value{}, err
			}
			dict.Order = append(dict.Order, key)
			dict.Keys[key] = k
			dict.Values[key] = v
		}
		id, err := h.Allocate(dict)
		if err != nil {
			return values.Value{}, err
		}
		return values.NewRef(id), nil
	default:
		return values.Value{}, fmt.Errorf("object: cannot convert kind %d into a sandbox value", obj.Kind)
	}
}

func fromObjectSlice(h *heap.Heap, interns *intern.Table, items []Object) ([]values.Value, error) {
	out := make([]values.Value, len(items))
	for i, o := range items {
		v, err := FromObject(h, interns, o)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
