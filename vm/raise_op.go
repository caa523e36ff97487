package vm

import (
	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/opcodes"
	"github.com/parcadei/ouros-go/values"
)

// doRaise implements RAISE_VARARGS's three forms: bare re-raise of the
// exception bound to the active except block, raising a popped exception
// value (instance or class), and raise-from attaching an explicit cause.
func (vm *VM) doRaise(f *frame, kind opcodes.RaiseKind) (stepResult, error) {
	switch kind {
	case opcodes.RaiseReraise:
		if vm.currentException == nil {
			return stepResult{}, vm.raiseBuiltin("RuntimeError", "no active exception to re-raise")
		}
		return stepResult{}, &pyRaise{exc: vm.currentException}

	case opcodes.RaiseException:
		v, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		exc, rerr := vm.asException(v)
		if rerr != nil {
			return stepResult{}, rerr
		}
		return stepResult{}, &pyRaise{exc: exc}

	case opcodes.RaiseExceptionFromCause:
		vals, err := f.popN(2)
		if err != nil {
			return stepResult{}, err
		}
		excVal, causeVal := vals[0], vals[1]
		exc, rerr := vm.asException(excVal)
		if rerr != nil {
			vm.h.DecRefValue(causeVal)
			return stepResult{}, rerr
		}
		exc.fromCause = causeVal
		exc.hasCause = true
		return stepResult{}, &pyRaise{exc: exc}
	}
	return stepResult{}, f.newErr(ErrOpcodeNotImplemented, "RAISE_VARARGS kind %d", kind)
}

// asException normalizes a raised value into a PyException: an exception
// instance is wrapped directly, a bare exception class is instantiated with
// no constructor arguments (matching raiseBuiltin's own shortcut, since a
// custom __init__ would require spawning a frame mid-unwind).
func (vm *VM) asException(v values.Value) (*PyException, error) {
	if !v.IsRef() {
		return nil, vm.raiseBuiltin("TypeError", "exceptions must derive from BaseException")
	}
	switch vm.h.Get(v.AsHeapId()).(type) {
	case *heap.Instance:
		return &PyException{Value: v}, nil
	case *heap.ClassObject:
		vm.h.IncRefValue(v)
		inst := &heap.Instance{Class: v, Attrs: make(map[string]values.Value)}
		id, err := vm.h.Allocate(inst)
		vm.h.DecRefValue(v)
		if err != nil {
			return nil, err
		}
		return &PyException{Value: values.NewRef(id)}, nil
	default:
		vm.h.DecRefValue(v)
		return nil, vm.raiseBuiltin("TypeError", "exceptions must derive from BaseException")
	}
}
