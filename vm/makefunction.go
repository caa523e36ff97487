package vm

import (
	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/intern"
	"github.com/parcadei/ouros-go/opcodes"
	"github.com/parcadei/ouros-go/values"
)

// doMakeFunction implements MAKE_FUNCTION: pop the optional operands flags
// selects, in the fixed order defaults/kwdefaults/closure, then the code
// object itself, and push a bound Closure. Defaults and closures are bound
// at definition time, not call time.
func (vm *VM) doMakeFunction(f *frame, flags opcodes.MakeFunctionFlag) (stepResult, error) {
	var closureTuple, kwDefaultsDict, defaultsTuple values.Value
	var hasClosure, hasKwDefaults, hasDefaults bool

	if flags&opcodes.MakeFunctionHasClosure != 0 {
		v, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		closureTuple, hasClosure = v, true
	}
	if flags&opcodes.MakeFunctionHasKwDefaults != 0 {
		v, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		kwDefaultsDict, hasKwDefaults = v, true
	}
	if flags&opcodes.MakeFunctionHasDefaults != 0 {
		v, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		defaultsTuple, hasDefaults = v, true
	}
	codeVal, err := f.pop()
	if err != nil {
		return stepResult{}, err
	}
	if codeVal.Kind() != values.KindDefFunction {
		return stepResult{}, f.newErr(ErrOpcodeNotImplemented, "MAKE_FUNCTION operand is not a code object")
	}
	fid := intern.FunctionId(codeVal.AsFunctionId())

	var cells []values.Value
	if hasClosure {
		items, _ := vm.asItems(closureTuple)
		cells = append([]values.Value(nil), items...)
		for _, c := range cells {
			vm.h.IncRefValue(c)
		}
		vm.h.DecRefValue(closureTuple)
	}
	var defaults []values.Value
	if hasDefaults {
		items, _ := vm.asItems(defaultsTuple)
		defaults = append([]values.Value(nil), items...)
		for _, d := range defaults {
			vm.h.IncRefValue(d)
		}
		vm.h.DecRefValue(defaultsTuple)
	}
	// Keyword-only defaults are not modeled separately from positional
	// defaults (registry.CodeObject carries one Defaults list); the dict is
	// consumed here but its values aren't threaded through bindArgs yet.
	if hasKwDefaults {
		vm.h.DecRefValue(kwDefaultsDict)
	}

	id, aerr := vm.h.Allocate(&heap.Closure{Function: fid, Cells: cells, Defaults: defaults})
	v, aerr := vm.wrap(id, aerr)
	if aerr != nil {
		return stepResult{}, aerr
	}
	f.push(v)
	return stepResult{action: actionContinue}, nil
}
