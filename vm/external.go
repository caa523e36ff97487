package vm

import (
	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/values"
)

// doExternalCall implements CALL_EXTERNAL/CALL_OS: the call's positional
// args and keyword dict are packed by the compiler the same way
// CALL_FUNCTION_EX packs them (one args tuple, one kwargs dict, kwargs on
// top), since external/OS calls never know their argument count at compile
// time the way a direct function call does. Rather than running
// synchronously, it suspends the VM with a PendingCall for the host to
// service.
func (vm *VM) doExternalCall(f *frame, nameIdx int, isOS bool) (stepResult, error) {
	if nameIdx < 0 || nameIdx >= len(f.code.Names) {
		return stepResult{}, f.newErr(ErrNameOutOfRange, "external name index %d", nameIdx)
	}
	name := f.code.Names[nameIdx]

	kwDict, err := f.pop()
	if err != nil {
		return stepResult{}, err
	}
	argsTuple, err := f.pop()
	if err != nil {
		return stepResult{}, err
	}

	items, _ := vm.asItems(argsTuple)
	posArgs := append([]values.Value(nil), items...)
	for _, a := range posArgs {
		vm.h.IncRefValue(a)
	}
	vm.h.DecRefValue(argsTuple)

	kwargs := map[string]values.Value{}
	if kwDict.IsRef() {
		if d, ok := vm.h.Get(kwDict.AsHeapId()).(*heap.Dict); ok {
			for _, k := range d.Order {
				s, ok := vm.nameOf(d.Keys[k])
				if !ok {
					continue
				}
				val := d.Values[k]
				vm.h.IncRefValue(val)
				kwargs[s] = val
			}
		}
	}
	vm.h.DecRefValue(kwDict)

	pending := &PendingCall{CallID: newCallID(), Name: name, Args: posArgs, Kwargs: kwargs, IsOS: isOS}
	return stepResult{}, &suspendRequest{pending: []*PendingCall{pending}, kind: resumeSingle}
}
