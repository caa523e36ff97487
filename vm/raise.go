package vm

import (
	"fmt"

	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/resource"
	"github.com/parcadei/ouros-go/values"
)

// raiseBuiltin constructs and raises one of the interpreter's built-in
// exception types. className must have been installed via
// registry.RegisterExceptionClass by runtime.Bootstrap; if it wasn't (a
// programming error reachable only by a misconfigured embedder) the
// interpreter falls back to a bare string so the host still observes a
// failure instead of a panic.
func (vm *VM) raiseBuiltin(className, format string, args ...interface{}) error {
	message := fmt.Sprintf(format, args...)
	classRef, ok := vm.reg.ExceptionClass(className)
	if !ok {
		return &pyRaise{exc: &PyException{Value: values.NewInternString(vm.interns.Intern(message))}}
	}

	argsTuple := &heap.Tuple{}
	msgID, err := vm.h.Allocate(&heap.Str{S: message})
	if err == nil {
		argsTuple.Items = []values.Value{values.NewRef(msgID)}
	}
	argsID, err := vm.h.Allocate(argsTuple)
	if err != nil {
		return err
	}
	instID, err := vm.h.Allocate(&heap.Instance{
		Class: classRef,
		Attrs: map[string]values.Value{"args": values.NewRef(argsID), "message": values.NewRef(msgID)},
	})
	if err != nil {
		return err
	}
	return &pyRaise{exc: &PyException{Value: values.NewRef(instID)}}
}

func (vm *VM) resourceExceeded(err error) *PyException {
	msg := err.Error()
	if resource.IsRecursion(err) {
		return &PyException{Value: vm.classlessInstance("RecursionError", msg)}
	}
	return &PyException{Value: vm.classlessInstance("ResourceExhaustedError", msg)}
}

// classlessInstance is used when vm.raiseBuiltin's normal path isn't
// available (resource errors can occur before any exception class has
// necessarily finished bootstrapping); it degrades to a plain string value
// rather than failing to report the error at all.
func (vm *VM) classlessInstance(className, message string) values.Value {
	if classRef, ok := vm.reg.ExceptionClass(className); ok {
		msgID, err := vm.h.Allocate(&heap.Str{S: message})
		if err == nil {
			instID, err := vm.h.Allocate(&heap.Instance{
				Class: classRef,
				Attrs: map[string]values.Value{"message": values.NewRef(msgID)},
			})
			if err == nil {
				return values.NewRef(instID)
			}
		}
	}
	return values.NewInternString(vm.interns.Intern(className + ": " + message))
}
