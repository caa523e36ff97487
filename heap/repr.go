package heap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/parcadei/ouros-go/intern"
	"github.com/parcadei/ouros-go/values"
)

// MaxDataRecursionDepth bounds repr/eq/hash/cmp recursion: these operations
// never recurse beyond this many stack frames regardless of input depth,
// so a deeply nested or self-referential container fails cleanly instead
// of overflowing the Go stack.
const MaxDataRecursionDepth = 200

// TypeName reports the Python type name of v, resolving through the heap
// for Ref values.
func (h *Heap) TypeName(v values.Value) string {
	switch v.Kind() {
	case values.KindNone:
		return "NoneType"
	case values.KindUndefined:
		return "undefined"
	case values.KindBool:
		return "bool"
	case values.KindInt:
		return "int"
	case values.KindFloat:
		return "float"
	case values.KindInternString:
		return "str"
	case values.KindRef:
		return h.Get(v.AsHeapId()).TypeName()
	default:
		return v.Kind().String()
	}
}

// Truthy implements Python truthiness for every value, resolving through
// the heap for Ref values: empty containers and zero-length strings are
// false, matching CPython's __bool__/__len__ fallback.
func (h *Heap) Truthy(v values.Value) bool {
	if !v.IsRef() {
		return v.Truthy()
	}
	switch d := h.Get(v.AsHeapId()).(type) {
	case *Str:
		return d.S != ""
	case *Bytes:
		return len(d.B) != 0
	case *List:
		return len(d.Items) != 0
	case *Tuple:
		return len(d.Items) != 0
	case *Dict:
		return len(d.Order) != 0
	case *Set:
		return len(d.Order) != 0
	case *FrozenSet:
		return len(d.Order) != 0
	case *LongInt:
		return d.V.Sign() != 0
	case *Range:
		if d.Step > 0 {
			return d.Start < d.Stop
		}
		return d.Start > d.Stop
	default:
		return true
	}
}

// Repr renders v using the Python repr() convention, guarding recursion
// depth. interns resolves InternString ids back to their text.
func (h *Heap) Repr(v values.Value, interns *intern.Table) string {
	return h.repr(v, interns, 0)
}

func (h *Heap) repr(v values.Value, interns *intern.Table, depth int) string {
	if depth >= MaxDataRecursionDepth {
		return "..."
	}
	switch v.Kind() {
	case values.KindNone:
		return "None"
	case values.KindUndefined:
		return "<undefined>"
	case values.KindBool:
		if v.AsBool() {
			return "True"
		}
		return "False"
	case values.KindInt:
		return strconv.FormatInt(v.AsInt(), 10)
	case values.KindFloat:
		return strconv.FormatFloat(v.AsFloat(), 'g', -1, 64)
	case values.KindInternString:
		return strconv.Quote(interns.MustLookup(v.AsStringId()))
	case values.KindDefFunction, values.KindExtFunction, values.KindModuleFunction, values.KindBuiltin:
		return fmt.Sprintf("<built-in function %s>", v.Kind())
	case values.KindMarker:
		return "<built-in function>"
	case values.KindProxy:
		return fmt.Sprintf("<proxy %d>", v.AsProxyId())
	case values.KindRef:
		return h.reprData(h.Get(v.AsHeapId()), interns, depth)
	default:
		return "?"
	}
}

func (h *Heap) reprData(d Data, interns *intern.Table, depth int) string {
	next := depth + 1
	switch v := d.(type) {
	case *Str:
		return strconv.Quote(v.S)
	case *Bytes:
		return fmt.Sprintf("b%q", string(v.B))
	case *List:
		parts := make([]string, len(v.Items))
		for i, it := range v.Items {
			parts[i] = h.repr(it, interns, next)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Tuple:
		parts := make([]string, len(v.Items))
		for i, it := range v.Items {
			parts[i] = h.repr(it, interns, next)
		}
		if len(parts) == 1 {
			return "(" + parts[0] + ",)"
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *Dict:
		parts := make([]string, 0, len(v.Order))
		for _, k := range v.Order {
			parts = append(parts, h.repr(v.Keys[k], interns, next)+": "+h.repr(v.Values[k], interns, next))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Set:
		if len(v.Order) == 0 {
			return "set()"
		}
		parts := make([]string, 0, len(v.Order))
		for _, k := range v.Order {
			parts = append(parts, h.repr(v.Values[k], interns, next))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *FrozenSet:
		parts := make([]string, 0, len(v.Order))
		for _, k := range v.Order {
			parts = append(parts, h.repr(v.Values[k], interns, next))
		}
		return "frozenset({" + strings.Join(parts, ", ") + "})"
	case *LongInt:
		return v.V.String()
	case *Fraction:
		return fmt.Sprintf("Fraction(%s, %s)", v.V.Num().String(), v.V.Denom().String())
	case *Decimal:
		return fmt.Sprintf("Decimal('%s')", v.V.String())
	case *Range:
		if v.Step == 1 {
			return fmt.Sprintf("range(%d, %d)", v.Start, v.Stop)
		}
		return fmt.Sprintf("range(%d, %d, %d)", v.Start, v.Stop, v.Step)
	case *Slice:
		return fmt.Sprintf("slice(%s, %s, %s)", h.repr(v.Start, interns, next), h.repr(v.Stop, interns, next), h.repr(v.Step, interns, next))
	case *ClassObject:
		return fmt.Sprintf("<class '%s'>", v.Name)
	case *Instance:
		return fmt.Sprintf("<%s object>", h.className(v.Class))
	case *BoundMethod:
		return fmt.Sprintf("<bound method of %s>", h.repr(v.Self, interns, next))
	case *Closure:
		sig, _ := interns.FunctionSignature(v.Function)
		return fmt.Sprintf("<function %s>", sig.QualifiedName)
	case *Generator:
		sig, _ := interns.FunctionSignature(v.Function)
		return fmt.Sprintf("<generator object %s>", sig.QualifiedName)
	case *Module:
		return fmt.Sprintf("<module '%s'>", v.Name)
	case *WeakRef:
		return "<weakref object>"
	case *Partial:
		return "functools.partial(...)"
	case *OperatorCallable:
		return fmt.Sprintf("operator.%s(...)", v.Kind)
	case *Path:
		return fmt.Sprintf("PosixPath(%s)", strconv.Quote(v.P))
	case *NamedTuple:
		parts := make([]string, len(v.Fields))
		for i, f := range v.Fields {
			parts[i] = f + "=" + h.repr(v.Items[i], interns, next)
		}
		return v.TypeName_ + "(" + strings.Join(parts, ", ") + ")"
	case *Dataclass:
		parts := make([]string, 0, len(v.Fields))
		for _, f := range v.Fields {
			parts = append(parts, f+"="+h.repr(v.Attrs[f], interns, next))
		}
		return v.TypeName_ + "(" + strings.Join(parts, ", ") + ")"
	case *Property:
		return "<property object>"
	case *StdlibObject:
		return fmt.Sprintf("<%s object>", v.Kind)
	default:
		return "<object>"
	}
}

func (h *Heap) className(classRef values.Value) string {
	if !classRef.IsRef() {
		return "object"
	}
	if c, ok := h.Get(classRef.AsHeapId()).(*ClassObject); ok {
		return c.Name
	}
	return "object"
}
