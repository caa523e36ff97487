package heap

import "github.com/parcadei/ouros-go/values"

// dropData recursively releases every Value contained in data, in the same
// order the container itself iterates. The default case is conservative
// (no-op), so any new Data variant that holds Values MUST add a case here
// or its contents will leak refcounts on drop.
func dropData(h *Heap, d Data) {
	switch v := d.(type) {
	case *Str, *Bytes, *LongInt, *Fraction, *Decimal, *Range, *Path:
		// no contained Values

	case *List:
		for _, item := range v.Items {
			h.DecRefValue(item)
		}
	case *Tuple:
		for _, item := range v.Items {
			h.DecRefValue(item)
		}
	case *Dict:
		for _, k := range v.Order {
			h.DecRefValue(v.Keys[k])
			h.DecRefValue(v.Values[k])
		}
	case *Set:
		for _, k := range v.Order {
			h.DecRefValue(v.Values[k])
		}
	case *FrozenSet:
		for _, k := range v.Order {
			h.DecRefValue(v.Values[k])
		}
	case *Slice:
		h.DecRefValue(v.Start)
		h.DecRefValue(v.Stop)
		h.DecRefValue(v.Step)
	case *ClassObject:
		for _, b := range v.Bases {
			h.DecRefValue(b)
		}
		for _, m := range v.MRO {
			h.DecRefValue(m)
		}
		for _, attr := range v.ClassAttrs {
			h.DecRefValue(attr)
		}
	case *Instance:
		h.DecRefValue(v.Class)
		for _, attr := range v.Attrs {
			h.DecRefValue(attr)
		}
	case *BoundMethod:
		h.DecRefValue(v.Self)
		h.DecRefValue(v.Function)
	case *Closure:
		for _, cell := range v.Cells {
			h.DecRefValue(cell)
		}
		for _, d := range v.Defaults {
			h.DecRefValue(d)
		}
	case *Generator:
		for _, val := range v.Namespace {
			h.DecRefValue(val)
		}
		for _, val := range v.SavedStack {
			h.DecRefValue(val)
		}
		for _, cellID := range v.FrameCells {
			h.DecRef(cellID)
		}
	case *Module:
		for _, g := range v.Globals {
			h.DecRefValue(g)
		}
	case *WeakRef:
		h.DecRefValue(v.Callback)
	case *Partial:
		h.DecRefValue(v.Function)
		for _, a := range v.Args {
			h.DecRefValue(a)
		}
		for _, kw := range v.Kwargs {
			h.DecRefValue(kw)
		}
	case *OperatorCallable:
		for _, a := range v.Args {
			h.DecRefValue(a)
		}
	case *StdlibObject:
		// Payload is opaque; stdlib facades that embed Values must implement
		// their own release path before dropping (none currently do).
	case *NamedTuple:
		for _, item := range v.Items {
			h.DecRefValue(item)
		}
	case *Dataclass:
		for _, attr := range v.Attrs {
			h.DecRefValue(attr)
		}
	case *Property:
		h.DecRefValue(v.Getter)
		h.DecRefValue(v.Setter)
		h.DecRefValue(v.Deleter)
	}
}

// walkContained calls visit(val) for every Value directly contained in d,
// used by the cycle collector's mark phase (heap/gc.go) and by Collect's
// reachability counting. It must visit values in the same variants dropData
// switches over.
func walkContained(d Data, visit func(values.Value)) {
	switch v := d.(type) {
	case *List:
		for _, item := range v.Items {
			visit(item)
		}
	case *Tuple:
		for _, item := range v.Items {
			visit(item)
		}
	case *Dict:
		for _, k := range v.Order {
			visit(v.Keys[k])
			visit(v.Values[k])
		}
	case *Set:
		for _, k := range v.Order {
			visit(v.Values[k])
		}
	case *FrozenSet:
		for _, k := range v.Order {
			visit(v.Values[k])
		}
	case *Slice:
		visit(v.Start)
		visit(v.Stop)
		visit(v.Step)
	case *ClassObject:
		for _, b := range v.Bases {
			visit(b)
		}
		for _, m := range v.MRO {
			visit(m)
		}
		for _, attr := range v.ClassAttrs {
			visit(attr)
		}
	case *Instance:
		visit(v.Class)
		for _, attr := range v.Attrs {
			visit(attr)
		}
	case *BoundMethod:
		visit(v.Self)
		visit(v.Function)
	case *Closure:
		for _, cell := range v.Cells {
			visit(cell)
		}
		for _, d := range v.Defaults {
			visit(d)
		}
	case *Generator:
		for _, val := range v.Namespace {
			visit(val)
		}
		for _, val := range v.SavedStack {
			visit(val)
		}
		for _, cellID := range v.FrameCells {
			visit(values.NewRef(cellID))
		}
	case *Module:
		for _, g := range v.Globals {
			visit(g)
		}
	case *WeakRef:
		visit(v.Callback)
	case *Partial:
		visit(v.Function)
		for _, a := range v.Args {
			visit(a)
		}
		for _, kw := range v.Kwargs {
			visit(kw)
		}
	case *OperatorCallable:
		for _, a := range v.Args {
			visit(a)
		}
	case *NamedTuple:
		for _, item := range v.Items {
			visit(item)
		}
	case *Dataclass:
		for _, attr := range v.Attrs {
			visit(attr)
		}
	case *Property:
		visit(v.Getter)
		visit(v.Setter)
		visit(v.Deleter)
	}
}
