package vm

import (
	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/intern"
	"github.com/parcadei/ouros-go/registry"
	"github.com/parcadei/ouros-go/values"
)

// doBuildClass implements BUILD_CLASS: pop the class name, the bases tuple,
// and the namespace dict the class body executed into, split the namespace
// into methods (callables) and plain class attributes, compute the MRO via
// C3 linearization, and push the resulting ClassObject. Grounded on the
// teacher's vm/class_manager.go class-declaration path, generalized from
// PHP's single-parent chain to Python's full multiple-inheritance MRO.
func (vm *VM) doBuildClass(f *frame, arg int) (stepResult, error) {
	vals, err := f.popN(3)
	if err != nil {
		return stepResult{}, err
	}
	nameVal, basesVal, nsVal := vals[0], vals[1], vals[2]

	name, _ := vm.nameOf(nameVal)
	vm.h.DecRefValue(nameVal)

	baseItems, _ := vm.asItems(basesVal)
	baseRefs := make([]values.Value, 0, len(baseItems))
	baseNames := make([]string, 0, len(baseItems))
	baseMROs := make([][]string, 0, len(baseItems))
	classesByName := make(map[string]values.Value, len(baseItems)*2)
	for _, b := range baseItems {
		bc, ok := vm.classOf(b)
		if !ok {
			continue
		}
		vm.h.IncRefValue(b)
		baseRefs = append(baseRefs, b)
		baseNames = append(baseNames, bc.Name)
		classesByName[bc.Name] = b

		mroNames := make([]string, 0, len(bc.MRO))
		for _, m := range bc.MRO {
			mc, ok := vm.classOf(m)
			if !ok {
				continue
			}
			mroNames = append(mroNames, mc.Name)
			classesByName[mc.Name] = m
		}
		baseMROs = append(baseMROs, mroNames)
	}
	vm.h.DecRefValue(basesVal)

	methods := make(map[string]intern.FunctionId)
	attrs := make(map[string]values.Value)
	if nsVal.IsRef() {
		if d, ok := vm.h.Get(nsVal.AsHeapId()).(*heap.Dict); ok {
			for _, k := range d.Order {
				keyName, ok := vm.nameOf(d.Keys[k])
				if !ok {
					continue
				}
				v := d.Values[k]
				if fid, ok := vm.functionIdOf(v); ok {
					methods[keyName] = fid
					continue
				}
				vm.h.IncRefValue(v)
				attrs[keyName] = v
			}
		}
	}
	vm.h.DecRefValue(nsVal)

	mroNames, lerr := registry.C3Linearize(name, baseNames, baseMROs)
	if lerr != nil {
		for _, b := range baseRefs {
			vm.h.DecRefValue(b)
		}
		for _, a := range attrs {
			vm.h.DecRefValue(a)
		}
		return stepResult{}, vm.raiseBuiltin("TypeError", "%s", lerr.Error())
	}

	classObj := &heap.ClassObject{Name: name, Bases: baseRefs, Methods: methods, ClassAttrs: attrs}
	id, aerr := vm.h.Allocate(classObj)
	if aerr != nil {
		return stepResult{}, aerr
	}
	selfRef := values.NewRef(id)
	classesByName[name] = selfRef

	mro := make([]values.Value, 0, len(mroNames))
	for _, n := range mroNames {
		ref, ok := classesByName[n]
		if !ok {
			continue
		}
		vm.h.IncRefValue(ref)
		mro = append(mro, ref)
	}
	classObj.MRO = mro

	f.push(selfRef)
	return stepResult{action: actionContinue}, nil
}

// functionIdOf reports whether v is a callable produced by MAKE_FUNCTION
// (a bare DefFunction constant or a Closure wrapping one), the shape a class
// body's namespace entries take for method definitions.
func (vm *VM) functionIdOf(v values.Value) (intern.FunctionId, bool) {
	if v.Kind() == values.KindDefFunction {
		return intern.FunctionId(v.AsFunctionId()), true
	}
	if v.IsRef() {
		if c, ok := vm.h.Get(v.AsHeapId()).(*heap.Closure); ok {
			return c.Function, true
		}
	}
	return 0, false
}
