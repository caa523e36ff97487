package heap

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/parcadei/ouros-go/intern"
	"github.com/parcadei/ouros-go/values"
)

// Data is the closed sum of every heap-resident value shape. The unexported
// marker method means only types declared in this package can satisfy Data
// — adding a new variant is a deliberate, centrally reviewed change, not an
// open plugin interface that arbitrary callers can extend.
type Data interface {
	heapData()
	// TypeName is the Python type name reported by py_type.
	TypeName() string
}

type base struct{}

func (base) heapData() {}

// Str is a Python str.
type Str struct {
	base
	S string
}

func (Str) TypeName() string { return "str" }

// Bytes is a Python bytes object.
type Bytes struct {
	base
	B []byte
}

func (Bytes) TypeName() string { return "bytes" }

// List is a Python list: an ordered, mutable sequence of Values.
type List struct {
	base
	Items []values.Value
}

func (List) TypeName() string { return "list" }

// Tuple is a Python tuple: an ordered, immutable sequence of Values.
type Tuple struct {
	base
	Items []values.Value
}

func (Tuple) TypeName() string { return "tuple" }

// DictKey is a hashable Python key, reduced to a comparable Go value for use
// as a map key. Heap-resident keys (e.g. tuples) are reduced via Heap.HashKey.
type DictKey struct {
	Kind values.Kind
	I    int64
	F    float64
	S    string
}

// Dict is a Python dict. Order is preserved via Order, matching CPython 3.7+
// insertion-order semantics that programs frequently rely on.
type Dict struct {
	base
	Order  []DictKey
	Values map[DictKey]values.Value
	// Keys holds the original Value for each DictKey, needed to reconstruct
	// a faithful key (e.g. a Ref to a heap string) rather than just its hash.
	Keys map[DictKey]values.Value
}

func (Dict) TypeName() string { return "dict" }

// NewDict allocates the backing maps for an empty Dict.
func NewDict() *Dict {
	return &Dict{Values: make(map[DictKey]values.Value), Keys: make(map[DictKey]values.Value)}
}

// Set is a Python set (mutable).
type Set struct {
	base
	Order  []DictKey
	Values map[DictKey]values.Value
}

func (Set) TypeName() string { return "set" }

func NewSet() *Set { return &Set{Values: make(map[DictKey]values.Value)} }

// FrozenSet is a Python frozenset (immutable).
type FrozenSet struct {
	base
	Order  []DictKey
	Values map[DictKey]values.Value
}

func (FrozenSet) TypeName() string { return "frozenset" }

// LongInt is an arbitrary-precision integer, allocated once a machine Int
// would overflow. Promotion is implicit; the narrowest type at construction
// sticks (design notes) — we never demote a LongInt back to values.KindInt.
type LongInt struct {
	base
	V *big.Int
}

func (LongInt) TypeName() string { return "int" }

// Fraction is a Python Fraction (numerator/denominator kept reduced).
type Fraction struct {
	base
	V *big.Rat
}

func (Fraction) TypeName() string { return "Fraction" }

// Decimal backs Python's decimal.Decimal using shopspring/decimal, the
// general-purpose ecosystem arbitrary-precision decimal library.
type Decimal struct {
	base
	V decimal.Decimal
}

func (Decimal) TypeName() string { return "Decimal" }

// Range is a Python range object.
type Range struct {
	base
	Start, Stop, Step int64
}

func (Range) TypeName() string { return "range" }

// Slice is a Python slice object (used both as a literal value and as a
// subscript operand).
type Slice struct {
	base
	Start, Stop, Step values.Value // each is Int or None
}

func (Slice) TypeName() string { return "slice" }

// ClassObject is a user-defined class. MRO is computed once via C3
// linearization at class creation and cached here.
type ClassObject struct {
	base
	Name       string
	Bases      []values.Value // Ref to parent ClassObjects
	MRO        []values.Value // cached linearization, Refs to ClassObjects, self first
	Methods    map[string]intern.FunctionId
	ClassAttrs map[string]values.Value
}

func (ClassObject) TypeName() string { return "type" }

// Instance is an instance of a user-defined class.
type Instance struct {
	base
	Class      values.Value // Ref to the ClassObject; instance holds a ref to it
	Attrs      map[string]values.Value
}

func (Instance) TypeName() string { return "instance" }

// BoundMethod pairs a callable with the instance it was looked up on.
type BoundMethod struct {
	base
	Self     values.Value
	Function values.Value // DefFunction or Closure ref
}

func (BoundMethod) TypeName() string { return "method" }

// Closure is a function value together with its captured cells and bound
// defaults.
type Closure struct {
	base
	Function intern.FunctionId
	Cells    []values.Value // Refs to cell HeapIds
	Defaults []values.Value
}

func (Closure) TypeName() string { return "function" }

// GeneratorState is the four-state generator lifecycle: new, running,
// suspended at a yield, and finished.
type GeneratorState byte

const (
	GeneratorNew GeneratorState = iota
	GeneratorRunning
	GeneratorSuspended
	GeneratorFinished
)

// Generator is a first-class heap object embedding a saved operand stack and
// instruction pointer, rather than a native goroutine-backed coroutine —
// this keeps generator suspension uniform with external-call suspension,
// both resuming by restoring saved VM state instead of unparking a thread.
type Generator struct {
	base
	Function    intern.FunctionId
	Namespace   []values.Value // bound params + cells + locals, pre-sized
	FrameCells  []values.HeapId
	State       GeneratorState
	SavedIP     int
	SavedStack  []values.Value
	SavedLine   int
}

func (Generator) TypeName() string { return "generator" }

// Module is a Python module namespace.
type Module struct {
	base
	Name    string
	Globals map[string]values.Value
}

func (Module) TypeName() string { return "module" }

// WeakRef holds a HeapId without contributing to its refcount; dereferencing
// must recheck liveness against the heap's weakref registry.
type WeakRef struct {
	base
	Target   values.HeapId
	Callback values.Value // optional callback invoked on target drop
}

func (WeakRef) TypeName() string { return "weakref" }

// Partial backs functools.partial.
type Partial struct {
	base
	Function values.Value
	Args     []values.Value
	Kwargs   map[string]values.Value
}

func (Partial) TypeName() string { return "functools.partial" }

// OperatorCallable backs operator.itemgetter/attrgetter/methodcaller.
type OperatorCallable struct {
	base
	Kind string // "itemgetter" | "attrgetter" | "methodcaller"
	Args []values.Value
}

func (o OperatorCallable) TypeName() string { return "operator." + o.Kind }

// StdlibObject is a lightweight facade around assorted standard-library
// shapes (complex numbers, datetime, regex match/pattern objects,
// async-generator facades, anext-awaitables, ...). Kind distinguishes the
// facade; Payload is an opaque, package-private blob interpreted by
// runtime's stdlib stubs.
type StdlibObject struct {
	base
	Kind    string
	Payload interface{}
}

func (s StdlibObject) TypeName() string { return s.Kind }

// Path backs pathlib.Path.
type Path struct {
	base
	P string
}

func (Path) TypeName() string { return "PosixPath" }

// NamedTuple is a collections.namedtuple instance.
type NamedTuple struct {
	base
	TypeName_ string
	Fields    []string
	Items     []values.Value
}

func (n NamedTuple) TypeName() string { return n.TypeName_ }

// Dataclass is a @dataclass instance.
type Dataclass struct {
	base
	TypeName_ string
	Fields    []string
	Attrs     map[string]values.Value
}

func (d Dataclass) TypeName() string { return d.TypeName_ }

// Property backs the `property` descriptor.
type Property struct {
	base
	Getter, Setter, Deleter values.Value
}

func (Property) TypeName() string { return "property" }
