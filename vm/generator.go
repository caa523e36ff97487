package vm

import (
	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/intern"
	"github.com/parcadei/ouros-go/registry"
	"github.com/parcadei/ouros-go/values"
)

// makeGenerator implements calling a function whose CodeObject.IsGenerator
// is set: rather than running the body, bind arguments into a namespace and
// hand back a suspended heap.Generator. A generator starts in the New state
// and only begins executing its body on the first next().
func (vm *VM) makeGenerator(code *registry.CodeObject, fid intern.FunctionId, args []values.Value, kwargs map[string]values.Value, cells, defaults []values.Value) (values.Value, bool, error) {
	f := newFrame(code, code.QualifiedName)
	if err := vm.bindArgs(f, code, args, kwargs, defaults); err != nil {
		return values.Value{}, false, err
	}
	for i := range code.FreeVars {
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
	for _, v := range f.locals {
		vm.h.IncRefValue(v)
	}
	id, err := vm.h.Allocate(&heap.Generator{
		Function:   fid,
		Namespace:  f.locals,
		FrameCells: f.cells,
		State:      heap.GeneratorNew,
	})
	if err != nil {
		return values.Value{}, false, err
	}
	return values.NewRef(id), false, nil
}

// generatorNext implements one step of the generator protocol: resume the
// saved frame (or start it fresh), running until it yields, returns, or
// raises. hasNext is false exactly when the generator is exhausted
// (equivalent to StopIteration for the FOR_ITER caller).
func (vm *VM) generatorNext(genRef values.Value, gen *heap.Generator) (values.Value, bool, error) {
	if gen.State == heap.GeneratorFinished {
		return values.Value{}, false, nil
	}
	code, sig, ok := vm.resolveFunction(values.FunctionId(gen.Function))
	if !ok {
		return values.Value{}, false, vm.raiseBuiltin("RuntimeError", "generator function not found")
	}

	f := newFrame(code, sig.QualifiedName)
	f.locals = gen.Namespace
	f.cells = gen.FrameCells
	if gen.State == heap.GeneratorSuspended {
		f.ip = gen.SavedIP
		f.stack = append([]values.Value(nil), gen.SavedStack...)
		f.line = int32(gen.SavedLine)
	}

	if err := vm.tracker.EnterFrame(); err != nil {
		gen.State = heap.GeneratorFinished
		return values.Value{}, false, vm.resourceExceededErr(err)
	}
	gen.State = heap.GeneratorRunning
	base := len(vm.frames)
	vm.frames = append(vm.frames, f)

	// The loop below steps whatever frame is on top of the stack, not just
	// f: if the generator's body calls a user-defined function, that call
	// pushes its own frame (vm.enterUserFrame) which must run to completion
	// and have its return value pushed onto its caller, exactly as the
	// top-level run loop does. base marks the depth f itself sits at, so a
	// return/yield at that depth is the generator's own frame finishing.
	for {
		cur := vm.frames[len(vm.frames)-1]
		result, err := vm.step(cur)
		if err != nil {
			for len(vm.frames) > base {
				vm.tracker.ExitFrame()
				vm.frames = vm.frames[:len(vm.frames)-1]
			}
			gen.State = heap.GeneratorFinished
			return values.Value{}, false, err
		}
		switch result.action {
		case actionContinue:
			continue
		case actionReturn:
			retVal := result.value
			if cur.hasReturnOverride {
				vm.h.DecRefValue(retVal)
				retVal = cur.returnOverride
			}
			vm.tracker.ExitFrame()
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == base {
				gen.State = heap.GeneratorFinished
				return values.Value{}, false, nil
			}
			caller := vm.frames[len(vm.frames)-1]
			vm.h.IncRefValue(retVal)
			caller.push(retVal)
		case actionYield:
			if cur != f {
				return values.Value{}, false, cur.newErr(ErrOpcodeNotImplemented, "yield inside a called function is not supported")
			}
			vm.tracker.ExitFrame()
			vm.frames = vm.frames[:base]
			gen.SavedIP = f.ip
			gen.SavedStack = append([]values.Value(nil), f.stack...)
			gen.SavedLine = int(f.line)
			gen.Namespace = f.locals
			gen.FrameCells = f.cells
			gen.State = heap.GeneratorSuspended
			return result.value, true, nil
		}
	}
}
