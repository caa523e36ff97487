package vm

import (
	"math"
	"math/big"

	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/opcodes"
	"github.com/parcadei/ouros-go/values"
)

// binaryOp dispatches one arithmetic/bitwise/comparison opcode over a and b.
// Numeric promotion follows Python's rules: int op int stays int unless it
// overflows a machine word (promoted to heap.LongInt), any float operand
// promotes the result to float. String/list concatenation and repetition
// are handled separately in concat.go since they aren't purely numeric.
func (vm *VM) binaryOp(op opcodes.Opcode, a, b values.Value) (values.Value, error) {
	if isStringRef(vm.h, a) || isStringRef(vm.h, b) || isListRef(vm.h, a) || isListRef(vm.h, b) || isTupleRef(vm.h, a) || isTupleRef(vm.h, b) {
		return vm.sequenceOp(op, a, b)
	}

	if !isNumeric(a) || !isNumeric(b) {
		return values.Value{}, vm.raiseBuiltin("TypeError", "unsupported operand type(s) for %s: '%s' and '%s'", opName(op), vm.h.TypeName(a), vm.h.TypeName(b))
	}

	if a.Kind() == values.KindFloat || b.Kind() == values.KindFloat {
		x, y := asFloat(a), asFloat(b)
		return vm.floatOp(op, x, y)
	}
	return vm.intOp(op, a.AsInt(), b.AsInt())
}

func opName(op opcodes.Opcode) string {
	switch op {
	case opcodes.OP_BINARY_ADD:
		return "+"
	case opcodes.OP_BINARY_SUBTRACT:
		return "-"
	case opcodes.OP_BINARY_MULTIPLY:
		return "*"
	case opcodes.OP_BINARY_TRUE_DIVIDE:
		return "/"
	case opcodes.OP_BINARY_FLOOR_DIVIDE:
		return "//"
	case opcodes.OP_BINARY_MODULO:
		return "%"
	case opcodes.OP_BINARY_POWER:
		return "**"
	default:
		return op.String()
	}
}

func isNumeric(v values.Value) bool {
	switch v.Kind() {
	case values.KindInt, values.KindFloat, values.KindBool:
		return true
	default:
		return false
	}
}

func asFloat(v values.Value) float64 {
	if v.Kind() == values.KindFloat {
		return v.AsFloat()
	}
	return float64(v.AsInt())
}

func (vm *VM) floatOp(op opcodes.Opcode, x, y float64) (values.Value, error) {
	switch op {
	case opcodes.OP_BINARY_ADD:
		return values.NewFloat(x + y), nil
	case opcodes.OP_BINARY_SUBTRACT:
		return values.NewFloat(x - y), nil
	case opcodes.OP_BINARY_MULTIPLY:
		return values.NewFloat(x * y), nil
	case opcodes.OP_BINARY_TRUE_DIVIDE:
		if y == 0 {
			return values.Value{}, vm.raiseBuiltin("ZeroDivisionError", "float division by zero")
		}
		return values.NewFloat(x / y), nil
	case opcodes.OP_BINARY_FLOOR_DIVIDE:
		if y == 0 {
			return values.Value{}, vm.raiseBuiltin("ZeroDivisionError", "float floor division by zero")
		}
		return values.NewFloat(math.Floor(x / y)), nil
	case opcodes.OP_BINARY_MODULO:
		if y == 0 {
			return values.Value{}, vm.raiseBuiltin("ZeroDivisionError", "float modulo")
		}
		return values.NewFloat(math.Mod(x, y)), nil
	case opcodes.OP_BINARY_POWER:
		return values.NewFloat(math.Pow(x, y)), nil
	case opcodes.OP_COMPARE_EQ:
		return values.NewBool(x == y), nil
	case opcodes.OP_COMPARE_NE:
		return values.NewBool(x != y), nil
	case opcodes.OP_COMPARE_LT:
		return values.NewBool(x < y), nil
	case opcodes.OP_COMPARE_LE:
		return values.NewBool(x <= y), nil
	case opcodes.OP_COMPARE_GT:
		return values.NewBool(x > y), nil
	case opcodes.OP_COMPARE_GE:
		return values.NewBool(x >= y), nil
	default:
		return values.Value{}, vm.raiseBuiltin("TypeError", "unsupported float operation %s", op)
	}
}

func (vm *VM) intOp(op opcodes.Opcode, x, y int64) (values.Value, error) {
	switch op {
	case opcodes.OP_BINARY_ADD:
		r := x + y
		if overflowsAdd(x, y, r) {
			return vm.bigOp(op, x, y)
		}
		return values.NewInt(r), nil
	case opcodes.OP_BINARY_SUBTRACT:
		r := x - y
		if overflowsSub(x, y, r) {
			return vm.bigOp(op, x, y)
		}
		return values.NewInt(r), nil
	case opcodes.OP_BINARY_MULTIPLY:
		if x != 0 && (x*y)/x != y {
			return vm.bigOp(op, x, y)
		}
		return values.NewInt(x * y), nil
	case opcodes.OP_BINARY_TRUE_DIVIDE:
		if y == 0 {
			return values.Value{}, vm.raiseBuiltin("ZeroDivisionError", "division by zero")
		}
		return values.NewFloat(float64(x) / float64(y)), nil
	case opcodes.OP_BINARY_FLOOR_DIVIDE:
		if y == 0 {
			return values.Value{}, vm.raiseBuiltin("ZeroDivisionError", "integer division or modulo by zero")
		}
		return values.NewInt(floorDiv(x, y)), nil
	case opcodes.OP_BINARY_MODULO:
		if y == 0 {
			return values.Value{}, vm.raiseBuiltin("ZeroDivisionError", "integer division or modulo by zero")
		}
		return values.NewInt(floorMod(x, y)), nil
	case opcodes.OP_BINARY_POWER:
		if y < 0 {
			return values.NewFloat(math.Pow(float64(x), float64(y))), nil
		}
		return vm.bigOp(op, x, y)
	case opcodes.OP_BINARY_LSHIFT:
		return values.NewInt(x << uint(y)), nil
	case opcodes.OP_BINARY_RSHIFT:
		return values.NewInt(x >> uint(y)), nil
	case opcodes.OP_BINARY_AND:
		return values.NewInt(x & y), nil
	case opcodes.OP_BINARY_OR:
		return values.NewInt(x | y), nil
	case opcodes.OP_BINARY_XOR:
		return values.NewInt(x ^ y), nil
	case opcodes.OP_COMPARE_EQ:
		return values.NewBool(x == y), nil
	case opcodes.OP_COMPARE_NE:
		return values.NewBool(x != y), nil
	case opcodes.OP_COMPARE_LT:
		return values.NewBool(x < y), nil
	case opcodes.OP_COMPARE_LE:
		return values.NewBool(x <= y), nil
	case opcodes.OP_COMPARE_GT:
		return values.NewBool(x > y), nil
	case opcodes.OP_COMPARE_GE:
		return values.NewBool(x >= y), nil
	default:
		return values.Value{}, vm.raiseBuiltin("TypeError", "unsupported int operation %s", op)
	}
}

func overflowsAdd(x, y, r int64) bool {
	return ((x ^ r) & (y ^ r)) < 0
}

func overflowsSub(x, y, r int64) bool {
	return ((x ^ y) & (x ^ r)) < 0
}

func floorDiv(x, y int64) int64 {
	q := x / y
	if (x%y != 0) && ((x < 0) != (y < 0)) {
		q--
	}
	return q
}

func floorMod(x, y int64) int64 {
	m := x % y
	if m != 0 && ((m < 0) != (y < 0)) {
		m += y
	}
	return m
}

// bigOp promotes an integer operation into math/big once it would overflow a
// machine word, allocating a heap.LongInt to hold the result.
func (vm *VM) bigOp(op opcodes.Opcode, x, y int64) (values.Value, error) {
	bx, by := big.NewInt(x), big.NewInt(y)
	result := new(big.Int)
	switch op {
	case opcodes.OP_BINARY_ADD:
		result.Add(bx, by)
	case opcodes.OP_BINARY_SUBTRACT:
		result.Sub(bx, by)
	case opcodes.OP_BINARY_MULTIPLY:
		result.Mul(bx, by)
	case opcodes.OP_BINARY_POWER:
		result.Exp(bx, by, nil)
	default:
		return values.Value{}, vm.raiseBuiltin("OverflowError", "integer operation result too large")
	}
	if result.IsInt64() {
		return values.NewInt(result.Int64()), nil
	}
	id, err := vm.h.Allocate(&heap.LongInt{V: result})
	if err != nil {
		return values.Value{}, err
	}
	return values.NewRef(id), nil
}

func isStringRef(h interface{ Get(values.HeapId) heap.Data }, v values.Value) bool {
	if !v.IsRef() {
		return false
	}
	_, ok := h.Get(v.AsHeapId()).(*heap.Str)
	return ok
}

func isListRef(h interface{ Get(values.HeapId) heap.Data }, v values.Value) bool {
	if !v.IsRef() {
		return false
	}
	_, ok := h.Get(v.AsHeapId()).(*heap.List)
	return ok
}

func isTupleRef(h interface{ Get(values.HeapId) heap.Data }, v values.Value) bool {
	if !v.IsRef() {
		return false
	}
	_, ok := h.Get(v.AsHeapId()).(*heap.Tuple)
	return ok
}
