package vm

import "github.com/parcadei/ouros-go/values"

// doCall implements every CALL_* opcode's shared tail: dispatch callee as a
// callable and either resume with a pushed result or let the new frame
// vm.call already pushed keep running. callee is owned by this call (popped
// off the operand stack); vm.call only reads through it, so doCall releases
// it here once dispatch is done. args/kwargs are consumed by vm.call per its
// calling convention, not released again.
func (vm *VM) doCall(f *frame, callee values.Value, args []values.Value, kwargs map[string]values.Value) (stepResult, error) {
	v, spawned, err := vm.call(callee, args, kwargs)
	vm.h.DecRefValue(callee)
	if err != nil {
		return stepResult{}, err
	}
	if spawned {
		return stepResult{action: actionContinue}, nil
	}
	f.push(v)
	return stepResult{action: actionContinue}, nil
}
