// Package values defines Value, the tagged union used throughout the VM.
// Every variant is trivially copyable: immediates carry their payload
// inline, and the single boxed variant (Ref) carries only a HeapId, an
// opaque index into a session's heap. Compound values never live inside
// Value itself; they're allocated on the heap and referenced through Ref,
// so a Value can always be copied by assignment without an interface
// allocation.
package values

import "fmt"

// Kind tags a Value's variant.
type Kind byte

const (
	KindNone Kind = iota
	KindUndefined
	KindBool
	KindInt
	KindFloat
	KindInternString
	KindMarker
	KindBuiltin
	KindDefFunction
	KindModuleFunction
	KindExtFunction
	KindProxy
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "NoneType"
	case KindUndefined:
		return "undefined"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindInternString:
		return "str"
	case KindMarker:
		return "marker"
	case KindBuiltin:
		return "builtin_function_or_method"
	case KindDefFunction:
		return "function"
	case KindModuleFunction:
		return "builtin_function_or_method"
	case KindExtFunction:
		return "external_function"
	case KindProxy:
		return "proxy"
	case KindRef:
		return "ref"
	default:
		return "unknown"
	}
}

// StringId/FunctionId are duplicated here as plain uint32s (rather than
// importing package intern) to keep values dependency-free; callers that
// need the richer intern.StringId/FunctionId type convert at the boundary.
type StringId uint32
type FunctionId uint32

// HeapId is the opaque 32-bit index of a heap-resident value.
type HeapId uint32

// MarkerKind enumerates singleton callables like print, that need no state.
type MarkerKind byte

const (
	MarkerPrint MarkerKind = iota
	MarkerInput
	MarkerSuper
)

// BuiltinKind enumerates built-in functions dispatched by the VM/runtime
// package without an intervening heap allocation (len, range, isinstance...).
type BuiltinKind uint16

// Value is the tagged union passed around the VM: on the operand stack, in
// locals, in cells, and inside every HeapData container. It is a plain
// struct, always copied by value.
type Value struct {
	kind Kind
	i    int64   // Int, Bool (0/1), StringId/FunctionId/ExtId/ProxyId, HeapId
	f    float64 // Float
}

func (v Value) Kind() Kind { return v.kind }

// NewNone returns the Python None value.
func NewNone() Value { return Value{kind: KindNone} }

// NewUndefined returns the sentinel for an uninitialized local slot.
func NewUndefined() Value { return Value{kind: KindUndefined} }

func NewBool(b bool) Value {
	var i int64
	if b {
		i = 1
	}
	return Value{kind: KindBool, i: i}
}

func NewInt(n int64) Value { return Value{kind: KindInt, i: n} }

func NewFloat(f float64) Value { return Value{kind: KindFloat, f: f} }

func NewInternString(id StringId) Value { return Value{kind: KindInternString, i: int64(id)} }

func NewMarker(kind MarkerKind) Value { return Value{kind: KindMarker, i: int64(kind)} }

func NewBuiltin(kind BuiltinKind) Value { return Value{kind: KindBuiltin, i: int64(kind)} }

func NewDefFunction(id FunctionId) Value { return Value{kind: KindDefFunction, i: int64(id)} }

// ModuleFunction identifies a stdlib-module function by an opaque token
// (module id in the high 16 bits, function id in the low 16 bits).
func NewModuleFunction(token uint32) Value { return Value{kind: KindModuleFunction, i: int64(token)} }

// ExtId identifies one external function registered by the host for the
// session.
type ExtId uint32

func NewExtFunction(id ExtId) Value { return Value{kind: KindExtFunction, i: int64(id)} }

// ProxyId is a stable host-managed opaque handle, carried as an immediate
// value so host integrations can round-trip handles through the sandbox
// without exposing host objects inside it.
type ProxyId uint32

func NewProxy(id ProxyId) Value { return Value{kind: KindProxy, i: int64(id)} }

// NewRef wraps a HeapId as a boxed Value. Every Ref reachable from the VM
// must contribute exactly one unit to the target slot's refcount — callers
// are expected to inc_ref through heap.Heap when duplicating a Ref, never by
// copying the Go struct alone and forgetting the heap side-effect.
func NewRef(id HeapId) Value { return Value{kind: KindRef, i: int64(id)} }

func (v Value) IsNone() bool      { return v.kind == KindNone }
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }
func (v Value) IsRef() bool       { return v.kind == KindRef }

func (v Value) AsBool() bool  { return v.i != 0 }
func (v Value) AsInt() int64  { return v.i }
func (v Value) AsFloat() float64 { return v.f }
func (v Value) AsStringId() StringId { return StringId(v.i) }
func (v Value) AsFunctionId() FunctionId { return FunctionId(v.i) }
func (v Value) AsExtId() ExtId { return ExtId(v.i) }
func (v Value) AsProxyId() ProxyId { return ProxyId(v.i) }
func (v Value) AsMarkerKind() MarkerKind { return MarkerKind(v.i) }
func (v Value) AsBuiltinKind() BuiltinKind { return BuiltinKind(v.i) }
func (v Value) AsModuleToken() uint32 { return uint32(v.i) }
func (v Value) AsHeapId() HeapId { return HeapId(v.i) }

// Truthy implements Python truthiness for the immediate variants; heap
// values (lists, dicts, strings, ints in LongInt form, ...) are resolved by
// heap.Heap.Truthy, which falls back here for non-Ref values.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNone, KindUndefined:
		return false
	case KindBool:
		return v.i != 0
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNone:
		return "None"
	case KindUndefined:
		return "<undefined>"
	case KindBool:
		if v.i != 0 {
			return "True"
		}
		return "False"
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindRef:
		return fmt.Sprintf("<ref %d>", v.i)
	default:
		return fmt.Sprintf("<%s %d>", v.kind, v.i)
	}
}
