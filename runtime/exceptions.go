// Package runtime installs the builtin namespace every session's VM sees
// before user code runs: the exception hierarchy and the core builtin
// functions. OS-facing functions are not installed here; the sandbox
// package services them.
package runtime

import (
	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/intern"
	"github.com/parcadei/ouros-go/registry"
	"github.com/parcadei/ouros-go/values"
)

// excSpec names one built-in exception class and its immediate parent by
// name ("" for BaseException itself). Order matters: a parent must appear
// before any child that names it.
type excSpec struct {
	name   string
	parent string
}

// builtinExceptions is the hierarchy CPython ships, trimmed to the names
// the vm package's raiseBuiltin call sites actually use plus the handful a
// faithful interpreter needs for isinstance/except-clause matching to make
// sense.
var builtinExceptions = []excSpec{
	{"BaseException", ""},
	{"Exception", "BaseException"},
	{"TypeError", "Exception"},
	{"ValueError", "Exception"},
	{"LookupError", "Exception"},
	{"KeyError", "LookupError"},
	{"IndexError", "LookupError"},
	{"AttributeError", "Exception"},
	{"NameError", "Exception"},
	{"UnboundLocalError", "NameError"},
	{"ArithmeticError", "Exception"},
	{"ZeroDivisionError", "ArithmeticError"},
	{"OverflowError", "ArithmeticError"},
	{"RuntimeError", "Exception"},
	{"RecursionError", "RuntimeError"},
	{"NotImplementedError", "RuntimeError"},
	{"StopIteration", "Exception"},
	{"StopAsyncIteration", "Exception"},
	{"OSError", "Exception"},
	{"FileNotFoundError", "OSError"},
	{"IsADirectoryError", "OSError"},
	{"PermissionError", "OSError"},
	{"ImportError", "Exception"},
	{"ModuleNotFoundError", "ImportError"},
	{"KeyboardInterrupt", "BaseException"},
	{"SystemExit", "BaseException"},
	{"AssertionError", "Exception"},
	// ResourceExhaustedError has no CPython counterpart; vm.resourceExceeded
	// raises it for a non-recursion resource.Exceeded it is handed. The
	// wall-clock, allocation and memory limits do not pass through it: they
	// end the execution and reach the host as an ouroserr.ResourceError.
	{"ResourceExhaustedError", "Exception"},
}

// registerExceptions builds the built-in exception class hierarchy as
// ordinary heap.ClassObjects (no different from a user-defined class) and
// registers each under its name via reg.RegisterExceptionClass, so
// vm.raiseBuiltin and isinstance/except-clause matching treat built-ins and
// user classes identically.
func registerExceptions(h *heap.Heap, reg *registry.Registry) error {
	byName := make(map[string]values.Value, len(builtinExceptions))

	for _, spec := range builtinExceptions {
		var bases []values.Value
		var mro []values.Value

		if spec.parent != "" {
			parentRef, ok := byName[spec.parent]
			if !ok {
				return &unknownParentError{class: spec.name, parent: spec.parent}
			}
			h.IncRefValue(parentRef)
			bases = []values.Value{parentRef}
		}

		class := &heap.ClassObject{
			Name:       spec.name,
			Bases:      bases,
			Methods:    map[string]intern.FunctionId{},
			ClassAttrs: map[string]values.Value{},
		}
		id, err := h.Allocate(class)
		if err != nil {
			return err
		}
		selfRef := values.NewRef(id)
		byName[spec.name] = selfRef

		mro = append(mro, selfRef)
		if spec.parent != "" {
			parentRef := bases[0]
			h.IncRefValue(parentRef)
			parentClass := h.Get(parentRef.AsHeapId()).(*heap.ClassObject)
			mro = append(mro, parentRef)
			for _, m := range parentClass.MRO[1:] {
				h.IncRefValue(m)
				mro = append(mro, m)
			}
		}
		class.MRO = mro

		reg.RegisterExceptionClass(spec.name, selfRef)
	}
	return nil
}

type unknownParentError struct {
	class, parent string
}

func (e *unknownParentError) Error() string {
	return "runtime: exception class " + e.class + " names unregistered parent " + e.parent
}
