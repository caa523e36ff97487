package vm

import (
	"github.com/parcadei/ouros-go/registry"
	"github.com/parcadei/ouros-go/values"
)

// blockKind distinguishes the three kinds of block a frame's block stack can
// hold: a loop (target for BREAK/CONTINUE), an except handler or a finally
// handler (both targets for a raised exception's unwind).
type blockKind byte

const (
	blockLoop blockKind = iota
	blockExcept
	blockFinally
)

// block is one entry of a frame's block stack, describing either a loop
// target or an exception handler, since Python's
// SETUP_LOOP/SETUP_EXCEPT/SETUP_FINALLY all push the same kind of unwind
// target onto one stack.
type block struct {
	kind        blockKind
	handlerIP   int
	stackHeight int // operand stack depth to restore to when this block is entered
}

// frame is one activation record, holding Python's local-variable taxonomy:
// plain locals, cell vars for closures, and free vars captured from an
// enclosing scope.
type frame struct {
	code     *registry.CodeObject
	funcName string

	locals []values.Value
	cells  []values.HeapId // one per CellVars+FreeVars entry, each a heap Cell... represented as a 1-elem list box
	stack  []values.Value
	blocks []block

	ip   int
	line int32

	// self holds the bound receiver for a method call, used by LOAD_METHOD's
	// implicit self binding; Undefined for a plain function frame.
	self values.Value

	// returnOverride, when hasReturnOverride is set, replaces whatever value
	// this frame's RETURN_VALUE produces before it is pushed to the caller.
	// Used by class instantiation: __init__ always returns None, but the
	// caller of the class wants the new instance back.
	returnOverride    values.Value
	hasReturnOverride bool
}

func newFrame(code *registry.CodeObject, funcName string) *frame {
	return &frame{
		code:     code,
		funcName: funcName,
		locals:   make([]values.Value, code.NumLocals),
		cells:    make([]values.HeapId, len(code.CellVars)+len(code.FreeVars)),
		stack:    make([]values.Value, 0, 8),
		ip:       0,
	}
}

func (f *frame) qualifiedName() string {
	if f.funcName != "" {
		return f.funcName
	}
	return f.code.QualifiedName
}

func (f *frame) push(v values.Value) {
	f.stack = append(f.stack, v)
}

func (f *frame) pop() (values.Value, error) {
	n := len(f.stack)
	if n == 0 {
		return values.Value{}, f.newErr(ErrStackUnderflow, "pop on empty operand stack")
	}
	v := f.stack[n-1]
	f.stack = f.stack[:n-1]
	return v, nil
}

func (f *frame) peek() (values.Value, error) {
	n := len(f.stack)
	if n == 0 {
		return values.Value{}, f.newErr(ErrStackUnderflow, "peek on empty operand stack")
	}
	return f.stack[n-1], nil
}

func (f *frame) popN(n int) ([]values.Value, error) {
	if len(f.stack) < n {
		return nil, f.newErr(ErrStackUnderflow, "need %d operands, have %d", n, len(f.stack))
	}
	start := len(f.stack) - n
	out := append([]values.Value(nil), f.stack[start:]...)
	f.stack = f.stack[:start]
	return out, nil
}

// snapshot captures everything needed to resume this frame later: the
// instruction pointer and the full operand stack, matching a generator's
// SavedIP/SavedStack fields in heap.Generator so the two suspension
// mechanisms share one shape.
type frameSnapshot struct {
	ip     int
	stack  []values.Value
	locals []values.Value
}

func (f *frame) snapshot() frameSnapshot {
	return frameSnapshot{
		ip:     f.ip,
		stack:  append([]values.Value(nil), f.stack...),
		locals: append([]values.Value(nil), f.locals...),
	}
}

func (f *frame) restore(s frameSnapshot) {
	f.ip = s.ip
	f.stack = append([]values.Value(nil), s.stack...)
	f.locals = append([]values.Value(nil), s.locals...)
}
