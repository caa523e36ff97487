package vm

import (
	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/opcodes"
	"github.com/parcadei/ouros-go/values"
)

// step executes exactly one instruction of f, the heart of the interpreter:
// a single dispatch switch over each opcode's pop/push contract against the
// operand stack.
func (vm *VM) step(f *frame) (stepResult, error) {
	if f.ip < 0 || f.ip >= len(f.code.Instructions) {
		return stepResult{action: actionReturn, value: values.NewNone()}, nil
	}
	instr := f.code.Instructions[f.ip]
	f.line = instr.Line
	ip := f.ip
	f.ip++
	arg := int(instr.Arg)

	switch instr.Opcode {
	case opcodes.OP_NOP:
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_POP_TOP:
		v, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		vm.h.DecRefValue(v)
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_DUP_TOP:
		v, err := f.peek()
		if err != nil {
			return stepResult{}, err
		}
		vm.h.IncRefValue(v)
		f.push(v)
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_ROT_TWO:
		vals, err := f.popN(2)
		if err != nil {
			return stepResult{}, err
		}
		f.push(vals[1])
		f.push(vals[0])
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_LOAD_CONST:
		if arg < 0 || arg >= len(f.code.Consts) {
			return stepResult{}, f.newErr(ErrConstantOutOfRange, "const index %d", arg)
		}
		v := f.code.Consts[arg]
		vm.h.IncRefValue(v)
		f.push(v)
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_LOAD_NONE:
		f.push(values.NewNone())
		return stepResult{action: actionContinue}, nil
	case opcodes.OP_LOAD_TRUE:
		f.push(values.NewBool(true))
		return stepResult{action: actionContinue}, nil
	case opcodes.OP_LOAD_FALSE:
		f.push(values.NewBool(false))
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_LOAD_FAST:
		if arg < 0 || arg >= len(f.locals) {
			return stepResult{}, f.newErr(ErrLocalOutOfRange, "local index %d", arg)
		}
		v := f.locals[arg]
		if v.IsUndefined() {
			return stepResult{}, vm.raiseBuiltin("UnboundLocalError", "local variable referenced before assignment")
		}
		vm.h.IncRefValue(v)
		f.push(v)
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_STORE_FAST:
		v, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		if arg < 0 || arg >= len(f.locals) {
			return stepResult{}, f.newErr(ErrLocalOutOfRange, "local index %d", arg)
		}
		old := f.locals[arg]
		vm.h.DecRefValue(old)
		f.locals[arg] = v
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_DELETE_FAST:
		if arg < 0 || arg >= len(f.locals) {
			return stepResult{}, f.newErr(ErrLocalOutOfRange, "local index %d", arg)
		}
		vm.h.DecRefValue(f.locals[arg])
		f.locals[arg] = values.NewUndefined()
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_LOAD_GLOBAL, opcodes.OP_LOAD_NAME:
		if arg < 0 || arg >= len(f.code.Names) {
			return stepResult{}, f.newErr(ErrNameOutOfRange, "name index %d", arg)
		}
		name := f.code.Names[arg]
		if v, ok := vm.globals[name]; ok {
			vm.h.IncRefValue(v)
			f.push(v)
			return stepResult{action: actionContinue}, nil
		}
		if kind, ok := vm.reg.BuiltinKindByName(name); ok {
			f.push(values.NewBuiltin(kind))
			return stepResult{action: actionContinue}, nil
		}
		return stepResult{}, vm.raiseBuiltin("NameError", "name '%s' is not defined", name)

	case opcodes.OP_STORE_GLOBAL, opcodes.OP_STORE_NAME:
		v, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		if arg < 0 || arg >= len(f.code.Names) {
			return stepResult{}, f.newErr(ErrNameOutOfRange, "name index %d", arg)
		}
		vm.SetGlobal(f.code.Names[arg], v)
		vm.h.DecRefValue(v)
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_LOAD_DEREF:
		if arg < 0 || arg >= len(f.cells) {
			return stepResult{}, f.newErr(ErrLocalOutOfRange, "cell index %d", arg)
		}
		box, ok := vm.h.Get(f.cells[arg]).(*heap.List)
		if !ok || len(box.Items) == 0 {
			return stepResult{}, vm.raiseBuiltin("UnboundLocalError", "free variable referenced before assignment")
		}
		v := box.Items[0]
		vm.h.IncRefValue(v)
		f.push(v)
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_STORE_DEREF:
		v, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		if arg < 0 || arg >= len(f.cells) {
			return stepResult{}, f.newErr(ErrLocalOutOfRange, "cell index %d", arg)
		}
		box, ok := vm.h.Get(f.cells[arg]).(*heap.List)
		if !ok {
			return stepResult{}, f.newErr(ErrLocalOutOfRange, "cell %d is not a box", arg)
		}
		if len(box.Items) > 0 {
			vm.h.DecRefValue(box.Items[0])
			box.Items[0] = v
		} else {
			box.Items = append(box.Items, v)
		}
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_LOAD_CLOSURE:
		if arg < 0 || arg >= len(f.cells) {
			return stepResult{}, f.newErr(ErrLocalOutOfRange, "cell index %d", arg)
		}
		vm.h.IncRef(f.cells[arg])
		f.push(values.NewRef(f.cells[arg]))
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_LOAD_ATTR:
		obj, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		name := f.code.Names[arg]
		v, err := vm.getAttr(obj, name)
		vm.h.DecRefValue(obj)
		if err != nil {
			return stepResult{}, err
		}
		f.push(v)
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_LOAD_METHOD:
		obj, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		name := f.code.Names[arg]
		v, err := vm.getAttrBound(obj, name)
		vm.h.DecRefValue(obj)
		if err != nil {
			return stepResult{}, err
		}
		f.push(v)
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_STORE_ATTR:
		vals, err := f.popN(2)
		if err != nil {
			return stepResult{}, err
		}
		obj, v := vals[0], vals[1]
		name := f.code.Names[arg]
		serr := vm.setAttr(obj, name, v)
		vm.h.DecRefValue(obj)
		if serr != nil {
			vm.h.DecRefValue(v)
			return stepResult{}, serr
		}
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_DELETE_ATTR:
		obj, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		name := f.code.Names[arg]
		serr := vm.setAttr(obj, name, values.NewNone())
		vm.h.DecRefValue(obj)
		return stepResult{action: actionContinue}, serr

	case opcodes.OP_BINARY_SUBSCR:
		vals, err := f.popN(2)
		if err != nil {
			return stepResult{}, err
		}
		v, serr := vm.subscr(vals[0], vals[1])
		vm.h.DecRefValue(vals[0])
		vm.h.DecRefValue(vals[1])
		if serr != nil {
			return stepResult{}, serr
		}
		f.push(v)
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_STORE_SUBSCR:
		vals, err := f.popN(3)
		if err != nil {
			return stepResult{}, err
		}
		obj, key, v := vals[0], vals[1], vals[2]
		serr := vm.setSubscr(obj, key, v)
		vm.h.DecRefValue(obj)
		vm.h.DecRefValue(key)
		if serr != nil {
			vm.h.DecRefValue(v)
			return stepResult{}, serr
		}
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_DELETE_SUBSCR:
		vals, err := f.popN(2)
		if err != nil {
			return stepResult{}, err
		}
		serr := vm.delSubscr(vals[0], vals[1])
		vm.h.DecRefValue(vals[0])
		vm.h.DecRefValue(vals[1])
		return stepResult{action: actionContinue}, serr

	case opcodes.OP_BUILD_LIST:
		items, err := f.popN(arg)
		if err != nil {
			return stepResult{}, err
		}
		id, aerr := vm.h.Allocate(&heap.List{Items: items})
		v, aerr := vm.wrap(id, aerr)
		if aerr != nil {
			return stepResult{}, aerr
		}
		f.push(v)
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_BUILD_TUPLE:
		items, err := f.popN(arg)
		if err != nil {
			return stepResult{}, err
		}
		id, aerr := vm.h.Allocate(&heap.Tuple{Items: items})
		v, aerr := vm.wrap(id, aerr)
		if aerr != nil {
			return stepResult{}, aerr
		}
		f.push(v)
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_BUILD_SET:
		items, err := f.popN(arg)
		if err != nil {
			return stepResult{}, err
		}
		s := heap.NewSet()
		for _, it := range items {
			dk, herr := vm.h.HashKey(it)
			if herr != nil {
				return stepResult{}, vm.raiseBuiltin("TypeError", "%s", herr.Error())
			}
			if _, exists := s.Values[dk]; !exists {
				s.Order = append(s.Order, dk)
			} else {
				vm.h.DecRefValue(it)
			}
			s.Values[dk] = it
		}
		id, aerr := vm.h.Allocate(s)
		v, aerr := vm.wrap(id, aerr)
		if aerr != nil {
			return stepResult{}, aerr
		}
		f.push(v)
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_BUILD_MAP:
		items, err := f.popN(arg * 2)
		if err != nil {
			return stepResult{}, err
		}
		d := heap.NewDict()
		for i := 0; i < len(items); i += 2 {
			key, val := items[i], items[i+1]
			if derr := vm.dictSet(d, key, val); derr != nil {
				return stepResult{}, derr
			}
		}
		id, aerr := vm.h.Allocate(d)
		v, aerr := vm.wrap(id, aerr)
		if aerr != nil {
			return stepResult{}, aerr
		}
		f.push(v)
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_BUILD_SLICE:
		vals, err := f.popN(3)
		if err != nil {
			return stepResult{}, err
		}
		id, aerr := vm.h.Allocate(&heap.Slice{Start: vals[0], Stop: vals[1], Step: vals[2]})
		v, aerr := vm.wrap(id, aerr)
		if aerr != nil {
			return stepResult{}, aerr
		}
		f.push(v)
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_LIST_APPEND:
		v, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		target, err := f.peekN(arg)
		if err != nil {
			return stepResult{}, err
		}
		lst, ok := vm.h.Get(target.AsHeapId()).(*heap.List)
		if !ok {
			return stepResult{}, f.newErr(ErrOpcodeNotImplemented, "LIST_APPEND target is not a list")
		}
		lst.Items = append(lst.Items, v)
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_SET_ADD:
		v, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		target, err := f.peekN(arg)
		if err != nil {
			return stepResult{}, err
		}
		s, ok := vm.h.Get(target.AsHeapId()).(*heap.Set)
		if !ok {
			return stepResult{}, f.newErr(ErrOpcodeNotImplemented, "SET_ADD target is not a set")
		}
		dk, herr := vm.h.HashKey(v)
		if herr != nil {
			return stepResult{}, vm.raiseBuiltin("TypeError", "%s", herr.Error())
		}
		if _, exists := s.Values[dk]; !exists {
			s.Order = append(s.Order, dk)
		} else {
			vm.h.DecRefValue(v)
		}
		s.Values[dk] = v
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_MAP_ADD:
		vals, err := f.popN(2)
		if err != nil {
			return stepResult{}, err
		}
		target, err := f.peekN(arg)
		if err != nil {
			return stepResult{}, err
		}
		d, ok := vm.h.Get(target.AsHeapId()).(*heap.Dict)
		if !ok {
			return stepResult{}, f.newErr(ErrOpcodeNotImplemented, "MAP_ADD target is not a dict")
		}
		if derr := vm.dictSet(d, vals[0], vals[1]); derr != nil {
			return stepResult{}, derr
		}
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_LIST_EXTEND:
		v, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		target, err := f.peekN(arg)
		if err != nil {
			return stepResult{}, err
		}
		lst, ok := vm.h.Get(target.AsHeapId()).(*heap.List)
		if !ok {
			return stepResult{}, f.newErr(ErrOpcodeNotImplemented, "LIST_EXTEND target is not a list")
		}
		items, ok := vm.asItems(v)
		if !ok {
			vm.h.DecRefValue(v)
			return stepResult{}, vm.raiseBuiltin("TypeError", "'%s' object is not iterable", vm.h.TypeName(v))
		}
		lst.Items = append(lst.Items, items...)
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_UNPACK_SEQUENCE:
		v, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		items, ok := vm.asItems(v)
		if !ok {
			vm.h.DecRefValue(v)
			return stepResult{}, vm.raiseBuiltin("TypeError", "cannot unpack non-sequence")
		}
		if len(items) != arg {
			vm.h.DecRefValue(v)
			return stepResult{}, vm.raiseBuiltin("ValueError", "expected %d values to unpack, got %d", arg, len(items))
		}
		for i := len(items) - 1; i >= 0; i-- {
			vm.h.IncRefValue(items[i])
			f.push(items[i])
		}
		vm.h.DecRefValue(v)
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_BINARY_ADD, opcodes.OP_BINARY_SUBTRACT, opcodes.OP_BINARY_MULTIPLY,
		opcodes.OP_BINARY_TRUE_DIVIDE, opcodes.OP_BINARY_FLOOR_DIVIDE, opcodes.OP_BINARY_MODULO,
		opcodes.OP_BINARY_POWER, opcodes.OP_BINARY_LSHIFT, opcodes.OP_BINARY_RSHIFT,
		opcodes.OP_BINARY_AND, opcodes.OP_BINARY_OR, opcodes.OP_BINARY_XOR,
		opcodes.OP_COMPARE_EQ, opcodes.OP_COMPARE_NE, opcodes.OP_COMPARE_LT,
		opcodes.OP_COMPARE_LE, opcodes.OP_COMPARE_GT, opcodes.OP_COMPARE_GE,
		opcodes.OP_INPLACE_ADD:
		vals, err := f.popN(2)
		if err != nil {
			return stepResult{}, err
		}
		op := instr.Opcode
		if op == opcodes.OP_INPLACE_ADD {
			op = opcodes.OP_BINARY_ADD
		}
		v, berr := vm.binaryOp(op, vals[0], vals[1])
		vm.h.DecRefValue(vals[0])
		vm.h.DecRefValue(vals[1])
		if berr != nil {
			return stepResult{}, berr
		}
		f.push(v)
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_BINARY_MATRIX_MULTIPLY:
		return stepResult{}, vm.raiseBuiltin("TypeError", "unsupported operand type(s) for @")

	case opcodes.OP_UNARY_POSITIVE:
		v, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		f.push(v)
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_UNARY_NEGATIVE:
		v, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		nv, uerr := vm.negate(v)
		vm.h.DecRefValue(v)
		if uerr != nil {
			return stepResult{}, uerr
		}
		f.push(nv)
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_UNARY_NOT:
		v, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		truthy := vm.h.Truthy(v)
		vm.h.DecRefValue(v)
		f.push(values.NewBool(!truthy))
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_UNARY_INVERT:
		v, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		if v.Kind() != values.KindInt {
			vm.h.DecRefValue(v)
			return stepResult{}, vm.raiseBuiltin("TypeError", "bad operand type for unary ~")
		}
		f.push(values.NewInt(^v.AsInt()))
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_COMPARE_IS, opcodes.OP_COMPARE_IS_NOT:
		vals, err := f.popN(2)
		if err != nil {
			return stepResult{}, err
		}
		same := vm.identical(vals[0], vals[1])
		vm.h.DecRefValue(vals[0])
		vm.h.DecRefValue(vals[1])
		if instr.Opcode == opcodes.OP_COMPARE_IS_NOT {
			same = !same
		}
		f.push(values.NewBool(same))
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_COMPARE_IN, opcodes.OP_COMPARE_NOT_IN:
		vals, err := f.popN(2)
		if err != nil {
			return stepResult{}, err
		}
		found, cerr := vm.contains(vals[1], vals[0])
		vm.h.DecRefValue(vals[0])
		vm.h.DecRefValue(vals[1])
		if cerr != nil {
			return stepResult{}, cerr
		}
		if instr.Opcode == opcodes.OP_COMPARE_NOT_IN {
			found = !found
		}
		f.push(values.NewBool(found))
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_JUMP_FORWARD:
		f.ip = ip + 1 + arg
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_JUMP_ABSOLUTE:
		f.ip = arg
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_POP_JUMP_IF_FALSE:
		v, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		t := vm.h.Truthy(v)
		vm.h.DecRefValue(v)
		if !t {
			f.ip = arg
		}
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_POP_JUMP_IF_TRUE:
		v, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		t := vm.h.Truthy(v)
		vm.h.DecRefValue(v)
		if t {
			f.ip = arg
		}
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_JUMP_IF_FALSE_OR_POP:
		v, err := f.peek()
		if err != nil {
			return stepResult{}, err
		}
		if !vm.h.Truthy(v) {
			f.ip = arg
			return stepResult{action: actionContinue}, nil
		}
		f.pop()
		vm.h.DecRefValue(v)
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_JUMP_IF_TRUE_OR_POP:
		v, err := f.peek()
		if err != nil {
			return stepResult{}, err
		}
		if vm.h.Truthy(v) {
			f.ip = arg
			return stepResult{action: actionContinue}, nil
		}
		f.pop()
		vm.h.DecRefValue(v)
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_GET_ITER:
		v, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		it, ierr := vm.makeIterator(v)
		vm.h.DecRefValue(v)
		if ierr != nil {
			return stepResult{}, ierr
		}
		f.push(it)
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_FOR_ITER:
		v, err := f.peek()
		if err != nil {
			return stepResult{}, err
		}
		item, has, ierr := vm.iterNext(v)
		if ierr != nil {
			return stepResult{}, ierr
		}
		if !has {
			f.pop()
			vm.h.DecRefValue(v)
			f.ip = arg
			return stepResult{action: actionContinue}, nil
		}
		f.push(item)
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_SETUP_LOOP:
		f.blocks = append(f.blocks, block{kind: blockLoop, handlerIP: arg, stackHeight: len(f.stack)})
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_POP_BLOCK:
		if len(f.blocks) > 0 {
			f.blocks = f.blocks[:len(f.blocks)-1]
		}
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_BREAK_LOOP:
		for len(f.blocks) > 0 {
			b := f.blocks[len(f.blocks)-1]
			f.blocks = f.blocks[:len(f.blocks)-1]
			if b.kind == blockLoop {
				f.stack = f.stack[:min(b.stackHeight, len(f.stack))]
				f.ip = b.handlerIP
				return stepResult{action: actionContinue}, nil
			}
		}
		return stepResult{}, f.newErr(ErrOpcodeNotImplemented, "BREAK_LOOP outside a loop")

	case opcodes.OP_CONTINUE_LOOP:
		f.ip = arg
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_SETUP_EXCEPT:
		f.blocks = append(f.blocks, block{kind: blockExcept, handlerIP: arg, stackHeight: len(f.stack)})
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_SETUP_FINALLY:
		f.blocks = append(f.blocks, block{kind: blockFinally, handlerIP: arg, stackHeight: len(f.stack)})
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_POP_EXCEPT:
		vm.currentException = nil
		if len(f.blocks) > 0 {
			f.blocks = f.blocks[:len(f.blocks)-1]
		}
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_END_FINALLY:
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_WITH_CLEANUP:
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_RAISE_VARARGS:
		return vm.doRaise(f, opcodes.RaiseKind(arg))

	case opcodes.OP_MAKE_FUNCTION:
		return vm.doMakeFunction(f, opcodes.MakeFunctionFlag(arg))

	case opcodes.OP_CALL_FUNCTION:
		args, err := f.popN(arg)
		if err != nil {
			return stepResult{}, err
		}
		callee, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		return vm.doCall(f, callee, args, nil)

	case opcodes.OP_CALL_METHOD:
		args, err := f.popN(arg)
		if err != nil {
			return stepResult{}, err
		}
		callee, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		return vm.doCall(f, callee, args, nil)

	case opcodes.OP_CALL_FUNCTION_KW:
		namesTuple, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		names, _ := vm.asItems(namesTuple)
		vals, err := f.popN(arg)
		if err != nil {
			return stepResult{}, err
		}
		nPos := len(vals) - len(names)
		if nPos < 0 {
			nPos = 0
		}
		kwargs := make(map[string]values.Value, len(names))
		for i, n := range names {
			s, _ := vm.nameOf(n)
			if nPos+i < len(vals) {
				kwargs[s] = vals[nPos+i]
			}
		}
		vm.h.DecRefValue(namesTuple)
		callee, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		posArgs := vals[:nPos]
		return vm.doCall(f, callee, posArgs, kwargs)

	case opcodes.OP_CALL_FUNCTION_EX:
		kwDict, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		argsTuple, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		callee, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		posArgs, _ := vm.asItems(argsTuple)
		kwargs := map[string]values.Value{}
		if kwDict.IsRef() {
			if d, ok := vm.h.Get(kwDict.AsHeapId()).(*heap.Dict); ok {
				for _, k := range d.Order {
					s, _ := vm.nameOf(d.Keys[k])
					kwargs[s] = d.Values[k]
				}
			}
		}
		vm.h.DecRefValue(argsTuple)
		vm.h.DecRefValue(kwDict)
		return vm.doCall(f, callee, posArgs, kwargs)

	case opcodes.OP_RETURN_VALUE:
		v, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		return stepResult{action: actionReturn, value: v}, nil

	case opcodes.OP_YIELD_VALUE:
		v, err := f.pop()
		if err != nil {
			return stepResult{}, err
		}
		return stepResult{action: actionYield, value: v}, nil

	case opcodes.OP_YIELD_FROM:
		return stepResult{}, f.newErr(ErrOpcodeNotImplemented, "YIELD_FROM")

	case opcodes.OP_GET_AWAITABLE:
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_CALL_EXTERNAL:
		return vm.doExternalCall(f, arg, false)

	case opcodes.OP_CALL_OS:
		return vm.doExternalCall(f, arg, true)

	case opcodes.OP_LOAD_BUILD_CLASS:
		f.push(values.NewMarker(values.MarkerSuper))
		return stepResult{action: actionContinue}, nil

	case opcodes.OP_BUILD_CLASS:
		return vm.doBuildClass(f, arg)

	case opcodes.OP_IMPORT_NAME, opcodes.OP_IMPORT_FROM, opcodes.OP_IMPORT_STAR:
		return stepResult{}, f.newErr(ErrOpcodeNotImplemented, "%s", instr.Opcode)

	default:
		return stepResult{}, f.newErr(ErrOpcodeNotImplemented, "%s", instr.Opcode)
	}
}

// peekN reads the nth-from-top stack slot (0 is the top) without popping,
// used by the comprehension-accumulation opcodes (LIST_APPEND et al.) whose
// operand is a stack depth rather than a names/consts index.
func (f *frame) peekN(depth int) (values.Value, error) {
	i := len(f.stack) - 1 - depth
	if i < 0 || i >= len(f.stack) {
		return values.Value{}, f.newErr(ErrStackUnderflow, "peekN(%d) out of range", depth)
	}
	return f.stack[i], nil
}
