package vm

import (
	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/intern"
	"github.com/parcadei/ouros-go/values"
)

// instantiate implements calling a class object: allocate a fresh Instance,
// run __init__ (if the MRO defines one) bound to it, and return the
// instance.
func (vm *VM) instantiate(classRef values.Value, class *heap.ClassObject, args []values.Value, kwargs map[string]values.Value) (values.Value, bool, error) {
	vm.h.IncRefValue(classRef)
	inst := &heap.Instance{Class: classRef, Attrs: make(map[string]values.Value)}
	id, err := vm.h.Allocate(inst)
	if err != nil {
		return values.Value{}, false, err
	}
	instRef := values.NewRef(id)

	fid, ok := vm.lookupMethod(class, "__init__")
	if !ok {
		for _, a := range args {
			vm.h.DecRefValue(a)
		}
		for _, v := range kwargs {
			vm.h.DecRefValue(v)
		}
		return instRef, false, nil
	}

	code, sig, ok := vm.resolveFunction(values.FunctionId(fid))
	if !ok {
		return values.Value{}, false, vm.raiseBuiltin("RuntimeError", "__init__ not found")
	}
	vm.h.IncRefValue(instRef)
	allArgs := append([]values.Value{instRef}, args...)
	_, spawned, err := vm.enterUserFrame(code, sig.QualifiedName, allArgs, kwargs, nil, nil)
	if err != nil {
		return values.Value{}, false, err
	}
	if spawned {
		f := vm.currentFrame()
		f.returnOverride = instRef
		f.hasReturnOverride = true
		vm.h.IncRefValue(instRef)
		return values.Value{}, true, nil
	}
	return instRef, false, nil
}

// lookupMethod walks class's cached MRO (self first) for the first class
// that defines name, matching Python's method resolution order.
func (vm *VM) lookupMethod(class *heap.ClassObject, name string) (intern.FunctionId, bool) {
	if fid, ok := class.Methods[name]; ok {
		return fid, true
	}
	for _, baseRef := range class.MRO[1:] {
		if !baseRef.IsRef() {
			continue
		}
		base, ok := vm.h.Get(baseRef.AsHeapId()).(*heap.ClassObject)
		if !ok {
			continue
		}
		if fid, ok := base.Methods[name]; ok {
			return fid, true
		}
	}
	return 0, false
}
