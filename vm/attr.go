package vm

import (
	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/intern"
	"github.com/parcadei/ouros-go/values"
)

// getAttr implements LOAD_ATTR's attribute lookup: instance attributes
// first, then the owning class's MRO for methods and class attributes,
// matching Python's instance-dict-then-type-dict resolution order. Methods
// found through the class are bound to obj, the same as CPython's
// descriptor protocol for plain functions.
func (vm *VM) getAttr(obj values.Value, name string) (values.Value, error) {
	if !obj.IsRef() {
		return values.Value{}, vm.raiseBuiltin("AttributeError", "'%s' object has no attribute '%s'", vm.h.TypeName(obj), name)
	}
	switch d := vm.h.Get(obj.AsHeapId()).(type) {
	case *heap.Instance:
		if v, ok := d.Attrs[name]; ok {
			vm.h.IncRefValue(v)
			return v, nil
		}
		class, ok := vm.classOf(d.Class)
		if !ok {
			break
		}
		if fid, ok := vm.lookupMethod(class, name); ok {
			return vm.bindMethod(obj, fid)
		}
		if v, ok := vm.classAttr(class, name); ok {
			vm.h.IncRefValue(v)
			return v, nil
		}
	case *heap.ClassObject:
		if v, ok := d.ClassAttrs[name]; ok {
			vm.h.IncRefValue(v)
			return v, nil
		}
		if fid, ok := vm.lookupMethod(d, name); ok {
			id, err := vm.h.Allocate(&heap.Closure{Function: fid})
			return vm.wrap(id, err)
		}
	case *heap.Module:
		if v, ok := d.Globals[name]; ok {
			vm.h.IncRefValue(v)
			return v, nil
		}
	}
	return values.Value{}, vm.raiseBuiltin("AttributeError", "'%s' object has no attribute '%s'", vm.h.TypeName(obj), name)
}

func (vm *VM) classOf(classRef values.Value) (*heap.ClassObject, bool) {
	if !classRef.IsRef() {
		return nil, false
	}
	c, ok := vm.h.Get(classRef.AsHeapId()).(*heap.ClassObject)
	return c, ok
}

// classAttr walks class's MRO (self first) for the first class defining a
// non-method class attribute; methods are matched separately by the caller
// via lookupMethod so they can be bound to the receiving instance.
func (vm *VM) classAttr(class *heap.ClassObject, name string) (values.Value, bool) {
	if v, ok := class.ClassAttrs[name]; ok {
		return v, true
	}
	for _, baseRef := range class.MRO[1:] {
		base, ok := vm.classOf(baseRef)
		if !ok {
			continue
		}
		if v, ok := base.ClassAttrs[name]; ok {
			return v, true
		}
	}
	return values.Value{}, false
}

// bindMethod wraps a looked-up method into a BoundMethod carrying self,
// shared by getAttr (plain attribute access) and getAttrBound (LOAD_METHOD).
func (vm *VM) bindMethod(self values.Value, fid intern.FunctionId) (values.Value, error) {
	vm.h.IncRefValue(self)
	closID, err := vm.h.Allocate(&heap.Closure{Function: fid})
	if err != nil {
		return values.Value{}, err
	}
	bmID, err := vm.h.Allocate(&heap.BoundMethod{Self: self, Function: values.NewRef(closID)})
	return vm.wrap(bmID, err)
}

// getAttrBound implements LOAD_METHOD's contract: resolve name on obj and,
// if it resolves to a method defined by obj's class, bind it into a
// BoundMethod so CALL_METHOD can invoke it with self already supplied.
// Falls back to plain attribute lookup (getAttr already binds methods
// found through the class) for everything else.
func (vm *VM) getAttrBound(obj values.Value, name string) (values.Value, error) {
	return vm.getAttr(obj, name)
}

// setAttr implements STORE_ATTR, always landing in the instance's own
// attribute dict (Python has no separate "declared fields" phase at the VM
// level; that discipline belongs to the class body that ran __init__).
func (vm *VM) setAttr(obj values.Value, name string, v values.Value) error {
	if !obj.IsRef() {
		return vm.raiseBuiltin("AttributeError", "'%s' object has no attribute '%s'", vm.h.TypeName(obj), name)
	}
	inst, ok := vm.h.Get(obj.AsHeapId()).(*heap.Instance)
	if !ok {
		return vm.raiseBuiltin("AttributeError", "'%s' object attribute '%s' is not assignable", vm.h.TypeName(obj), name)
	}
	if old, ok := inst.Attrs[name]; ok {
		vm.h.DecRefValue(old)
	}
	vm.h.IncRefValue(v)
	inst.Attrs[name] = v
	return nil
}
