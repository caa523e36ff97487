package vm

import (
	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/intern"
	"github.com/parcadei/ouros-go/registry"
	"github.com/parcadei/ouros-go/values"
)

// call dispatches a value as a callable: a closure/DefFunction (pushes a new
// frame and returns actionContinue with no immediate result), a registered
// builtin (runs synchronously to completion), a bound method, or a class
// (instantiation).
func (vm *VM) call(callee values.Value, args []values.Value, kwargs map[string]values.Value) (values.Value, bool, error) {
	switch callee.Kind() {
	case values.KindBuiltin:
		fn, _, ok := vm.reg.BuiltinByKind(callee.AsBuiltinKind())
		if !ok {
			vm.releaseArgs(args, kwargs)
			return values.Value{}, false, vm.raiseBuiltin("NameError", "builtin not registered")
		}
		result, err := fn(vm, args, kwargs)
		for _, a := range args {
			vm.h.DecRefValue(a)
		}
		for _, v := range kwargs {
			vm.h.DecRefValue(v)
		}
		if err != nil {
			if r, ok := err.(*registry.Raised); ok {
				return values.Value{}, false, vm.raiseBuiltin(r.ClassName, "%s", r.Message)
			}
			return values.Value{}, false, vm.raiseBuiltin("RuntimeError", "%v", err)
		}
		return result, false, nil

	case values.KindDefFunction:
		code, sig, ok := vm.resolveFunction(callee.AsFunctionId())
		if !ok {
			vm.releaseArgs(args, kwargs)
			return values.Value{}, false, vm.raiseBuiltin("NameError", "function not found")
		}
		if code.IsGenerator {
			return vm.makeGenerator(code, intern.FunctionId(callee.AsFunctionId()), args, kwargs, nil, nil)
		}
		return vm.enterUserFrame(code, sig.QualifiedName, args, kwargs, nil, nil)

	case values.KindRef:
		switch d := vm.h.Get(callee.AsHeapId()).(type) {
		case *heap.Closure:
			code, sig, ok := vm.resolveFunction(d.Function)
			if !ok {
				vm.releaseArgs(args, kwargs)
				return values.Value{}, false, vm.raiseBuiltin("NameError", "function not found")
			}
			if code.IsGenerator {
				return vm.makeGenerator(code, d.Function, args, kwargs, d.Cells, d.Defaults)
			}
			return vm.enterUserFrame(code, sig.QualifiedName, args, kwargs, d.Cells, d.Defaults)
		case *heap.BoundMethod:
			vm.h.IncRefValue(d.Self)
			allArgs := append([]values.Value{d.Self}, args...)
			return vm.call(d.Function, allArgs, kwargs)
		case *heap.ClassObject:
			return vm.instantiate(callee, d, args, kwargs)
		case *heap.Partial:
			for _, a := range d.Args {
				vm.h.IncRefValue(a)
			}
			allArgs := append(append([]values.Value(nil), d.Args...), args...)
			merged := make(map[string]values.Value, len(d.Kwargs)+len(kwargs))
			for k, v := range d.Kwargs {
				vm.h.IncRefValue(v)
				merged[k] = v
			}
			for k, v := range kwargs {
				merged[k] = v
			}
			return vm.call(d.Function, allArgs, merged)
		default:
			vm.releaseArgs(args, kwargs)
			return values.Value{}, false, vm.raiseBuiltin("TypeError", "'%s' object is not callable", vm.h.TypeName(callee))
		}

	default:
		vm.releaseArgs(args, kwargs)
		return values.Value{}, false, vm.raiseBuiltin("TypeError", "'%s' object is not callable", vm.h.TypeName(callee))
	}
}

// releaseArgs drops vm.call's owned reference to every args/kwargs value on
// an error path that never reaches a callee able to consume them, keeping
// every exit of call() honor the same "args/kwargs are always consumed"
// contract its callers rely on.
func (vm *VM) releaseArgs(args []values.Value, kwargs map[string]values.Value) {
	for _, a := range args {
		vm.h.DecRefValue(a)
	}
	for _, v := range kwargs {
		vm.h.DecRefValue(v)
	}
}


func (vm *VM) resolveFunction(id values.FunctionId) (*registry.CodeObject, intern.FunctionSignature, bool) {
	sig, ok := vm.interns.FunctionSignature(intern.FunctionId(id))
	if !ok {
		return nil, intern.FunctionSignature{}, false
	}
	raw, ok := vm.interns.FunctionCode(intern.FunctionId(id))
	if !ok {
		return nil, sig, false
	}
	code, ok := raw.(*registry.CodeObject)
	return code, sig, ok
}

// enterUserFrame pushes a new frame bound per Python's calling convention and
// returns (zero, true, nil) to tell the dispatch loop "a frame was pushed,
// keep running" rather than "here is a value".
func (vm *VM) enterUserFrame(code *registry.CodeObject, qualName string, args []values.Value, kwargs map[string]values.Value, cells, defaults []values.Value) (values.Value, bool, error) {
	if len(vm.frames) >= resourceMaxDepthHint {
		return values.Value{}, false, vm.raiseBuiltin("RecursionError", "maximum recursion depth exceeded")
	}
	if err := vm.tracker.EnterFrame(); err != nil {
		return values.Value{}, false, vm.resourceExceededErr(err)
	}

	f := newFrame(code, qualName)
	if err := vm.bindArgs(f, code, args, kwargs, defaults); err != nil {
		vm.tracker.ExitFrame()
		return values.Value{}, false, err
	}
	for i, name := range code.FreeVars {
		_ = name
		if i < len(cells) {
			id := cells[i].AsHeapId()
			f.cells[len(code.CellVars)+i] = id
			vm.h.IncRef(id)
		}
	}
	for i := range code.CellVars {
		id, err := vm.h.Allocate(&heap.List{Items: make([]values.Value, 1)})
		if err != nil {
			return values.Value{}, false, err
		}
		f.cells[i] = id
	}

	vm.frames = append(vm.frames, f)
	return values.Value{}, true, nil
}

// resourceMaxDepthHint bounds Go-level recursion guarded loosely here; the
// authoritative check is resource.Tracker.EnterFrame, this is a cheap early
// exit before paying for a frame allocation.
const resourceMaxDepthHint = 4096

func (vm *VM) resourceExceededErr(err error) error {
	return &pyRaise{exc: vm.resourceExceeded(err)}
}

// bindArgs implements Python's argument binding: positional args fill named
// parameters left to right, remaining positionals go to *args if present,
// keyword arguments fill by name (falling back to defaults), and leftover
// keywords go to **kwargs if present. VarNames is assumed ordered [named
// params..., *args name?, **kwargs name?, other locals...] per
// registry.CodeObject's doc comment.
func (vm *VM) bindArgs(f *frame, code *registry.CodeObject, args []values.Value, kwargs map[string]values.Value, defaults []values.Value) error {
	named := code.Params
	nPos := 0
	for _, p := range named {
		if p.PositionalOnly || !p.KeywordOnly {
			nPos++
		} else {
			break
		}
	}

	consumed := make(map[string]bool, len(kwargs))
	for i, p := range named {
		if i < len(args) && !p.KeywordOnly {
			f.locals[i] = args[i]
			continue
		}
		if v, ok := kwargs[p.Name]; ok {
			f.locals[i] = v
			consumed[p.Name] = true
			continue
		}
		if p.HasDefault {
			di := defaultIndex(named, i, defaults)
			if di >= 0 && di < len(defaults) {
				f.locals[i] = defaults[di]
				continue
			}
		}
		f.locals[i] = values.NewUndefined()
	}

	slot := len(named)
	if code.IsVariadic {
		extra := []values.Value{}
		if len(args) > len(named) {
			extra = append(extra, args[len(named):]...)
		}
		for _, v := range extra {
			vm.h.IncRefValue(v)
		}
		id, err := vm.h.Allocate(&heap.Tuple{Items: extra})
		if err != nil {
			return err
		}
		f.locals[slot] = values.NewRef(id)
		slot++
	}
	if code.IsKwVariadic {
		d := heap.NewDict()
		for k, v := range kwargs {
			if consumed[k] {
				continue
			}
			keyID, err := vm.h.Allocate(&heap.Str{S: k})
			if err != nil {
				return err
			}
			keyVal := values.NewRef(keyID)
			dk, err := vm.h.HashKey(keyVal)
			if err != nil {
				return err
			}
			d.Order = append(d.Order, dk)
			d.Keys[dk] = keyVal
			d.Values[dk] = v
			vm.h.IncRefValue(v)
		}
		id, err := vm.h.Allocate(d)
		if err != nil {
			return err
		}
		f.locals[slot] = values.NewRef(id)
	}
	return nil
}

func defaultIndex(named []registry.Parameter, paramIdx int, defaults []values.Value) int {
	offset := 0
	for i := 0; i < paramIdx; i++ {
		if named[i].HasDefault {
			offset++
		}
	}
	return offset
}
