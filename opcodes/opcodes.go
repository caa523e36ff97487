// Package opcodes defines the bytecode instruction set executed by the vm
// package. Each Instruction is fixed-width with a single operand slot, since
// a stack machine addresses almost everything by constant/name/local index
// or jump offset rather than by several simultaneous operand locations.
package opcodes

import "fmt"

// Opcode identifies one VM instruction.
type Opcode byte

// Stack and constant operations (0-19)
const (
	OP_NOP Opcode = iota
	OP_POP_TOP
	OP_DUP_TOP
	OP_ROT_TWO
	OP_LOAD_CONST  // push consts[A]
	OP_LOAD_NONE
	OP_LOAD_TRUE
	OP_LOAD_FALSE
)

// Name and variable access (20-49)
const (
	OP_LOAD_FAST Opcode = iota + 20 // push locals[A]
	OP_STORE_FAST                   // locals[A] = pop()
	OP_DELETE_FAST
	OP_LOAD_GLOBAL // push globals[names[A]] or builtin
	OP_STORE_GLOBAL
	OP_LOAD_DEREF // push cell[A]
	OP_STORE_DEREF
	OP_LOAD_CLOSURE
	OP_LOAD_NAME // module-level lookup, falls back to globals then builtins
	OP_STORE_NAME
	OP_LOAD_ATTR  // push getattr(pop(), names[A])
	OP_STORE_ATTR // setattr(obj, names[A], value), value on top with obj beneath it
	OP_DELETE_ATTR
	OP_LOAD_METHOD // like LOAD_ATTR but leaves self on the stack for CALL_METHOD
)

// Subscription and container construction (50-79)
const (
	OP_BINARY_SUBSCR Opcode = iota + 50 // push pop()[pop()]
	OP_STORE_SUBSCR                     // obj[key] = value
	OP_DELETE_SUBSCR
	OP_BUILD_LIST  // pop A items, push list
	OP_BUILD_TUPLE // pop A items, push tuple
	OP_BUILD_SET
	OP_BUILD_MAP // pop 2*A items (k,v interleaved), push dict
	OP_BUILD_SLICE
	OP_LIST_APPEND  // list comprehension accumulation
	OP_SET_ADD
	OP_MAP_ADD
	OP_LIST_EXTEND // for *unpacking in list/tuple literals
	OP_UNPACK_SEQUENCE
)

// Arithmetic, comparison, and logical operators (80-119)
const (
	OP_BINARY_ADD Opcode = iota + 80
	OP_BINARY_SUBTRACT
	OP_BINARY_MULTIPLY
	OP_BINARY_TRUE_DIVIDE
	OP_BINARY_FLOOR_DIVIDE
	OP_BINARY_MODULO
	OP_BINARY_POWER
	OP_BINARY_MATRIX_MULTIPLY
	OP_BINARY_LSHIFT
	OP_BINARY_RSHIFT
	OP_BINARY_AND
	OP_BINARY_OR
	OP_BINARY_XOR
	OP_UNARY_POSITIVE
	OP_UNARY_NEGATIVE
	OP_UNARY_NOT
	OP_UNARY_INVERT
	OP_COMPARE_EQ
	OP_COMPARE_NE
	OP_COMPARE_LT
	OP_COMPARE_LE
	OP_COMPARE_GT
	OP_COMPARE_GE
	OP_COMPARE_IS
	OP_COMPARE_IS_NOT
	OP_COMPARE_IN
	OP_COMPARE_NOT_IN
	OP_INPLACE_ADD // += et al. reuse the same dispatch as BINARY_* at the vm layer
)

// Control flow (120-149)
const (
	OP_JUMP_FORWARD Opcode = iota + 120 // unconditional, A is a relative offset
	OP_JUMP_ABSOLUTE                    // A is an absolute instruction index
	OP_POP_JUMP_IF_FALSE
	OP_POP_JUMP_IF_TRUE
	OP_JUMP_IF_FALSE_OR_POP
	OP_JUMP_IF_TRUE_OR_POP
	OP_GET_ITER
	OP_FOR_ITER // jump to A when the TOS iterator is exhausted
	OP_SETUP_LOOP
	OP_POP_BLOCK
	OP_BREAK_LOOP
	OP_CONTINUE_LOOP
)

// Exception handling (150-169)
const (
	OP_SETUP_EXCEPT Opcode = iota + 150 // push a handler targeting A
	OP_POP_EXCEPT
	OP_RAISE_VARARGS // A encodes 0 (re-raise), 1 (raise exc), or 2 (raise exc from cause)
	OP_END_FINALLY
	OP_SETUP_FINALLY
	OP_WITH_CLEANUP
)

// Function and call machinery (170-199)
const (
	OP_MAKE_FUNCTION Opcode = iota + 170 // pops code/defaults/closure per A's flag bits, pushes Closure
	OP_CALL_FUNCTION                     // pops A positional args then the callable, pushes result
	OP_CALL_FUNCTION_KW                  // like CALL_FUNCTION but A counts positional+keyword values, with a tuple of keyword names on top of them
	OP_CALL_FUNCTION_EX                  // single positional-tuple / keyword-dict calling convention (*args, **kwargs)
	OP_CALL_METHOD
	OP_RETURN_VALUE
	OP_YIELD_VALUE
	OP_YIELD_FROM
	OP_GET_AWAITABLE
	OP_CALL_EXTERNAL // suspend for a host external_function call; A indexes the call's name in names
	OP_CALL_OS       // suspend for an OS-function call
)

// Class and module construction (200-219)
const (
	OP_LOAD_BUILD_CLASS Opcode = iota + 200
	OP_BUILD_CLASS      // pop namespace dict (top), bases tuple, name; push ClassObject with MRO computed
	OP_IMPORT_NAME
	OP_IMPORT_FROM
	OP_IMPORT_STAR
)

// Instruction is one fixed-width bytecode instruction: an opcode plus a
// single 32-bit operand, the one slot a stack machine actually needs. Line
// records the source line for traceback construction.
type Instruction struct {
	Opcode Opcode
	Arg    uint32
	Line   int32
}

var opcodeNames = map[Opcode]string{
	OP_NOP:         "NOP",
	OP_POP_TOP:     "POP_TOP",
	OP_DUP_TOP:     "DUP_TOP",
	OP_ROT_TWO:     "ROT_TWO",
	OP_LOAD_CONST:  "LOAD_CONST",
	OP_LOAD_NONE:   "LOAD_NONE",
	OP_LOAD_TRUE:   "LOAD_TRUE",
	OP_LOAD_FALSE:  "LOAD_FALSE",

	OP_LOAD_FAST:     "LOAD_FAST",
	OP_STORE_FAST:    "STORE_FAST",
	OP_DELETE_FAST:   "DELETE_FAST",
	OP_LOAD_GLOBAL:   "LOAD_GLOBAL",
	OP_STORE_GLOBAL:  "STORE_GLOBAL",
	OP_LOAD_DEREF:    "LOAD_DEREF",
	OP_STORE_DEREF:   "STORE_DEREF",
	OP_LOAD_CLOSURE:  "LOAD_CLOSURE",
	OP_LOAD_NAME:     "LOAD_NAME",
	OP_STORE_NAME:    "STORE_NAME",
	OP_LOAD_ATTR:     "LOAD_ATTR",
	OP_STORE_ATTR:    "STORE_ATTR",
	OP_DELETE_ATTR:   "DELETE_ATTR",
	OP_LOAD_METHOD:   "LOAD_METHOD",

	OP_BINARY_SUBSCR: "BINARY_SUBSCR",
	OP_STORE_SUBSCR:  "STORE_SUBSCR",
	OP_DELETE_SUBSCR: "DELETE_SUBSCR",
	OP_BUILD_LIST:    "BUILD_LIST",
	OP_BUILD_TUPLE:   "BUILD_TUPLE",
	OP_BUILD_SET:     "BUILD_SET",
	OP_BUILD_MAP:     "BUILD_MAP",
	OP_BUILD_SLICE:   "BUILD_SLICE",
	OP_LIST_APPEND:   "LIST_APPEND",
	OP_SET_ADD:       "SET_ADD",
	OP_MAP_ADD:       "MAP_ADD",
	OP_LIST_EXTEND:   "LIST_EXTEND",
	OP_UNPACK_SEQUENCE: "UNPACK_SEQUENCE",

	OP_BINARY_ADD:             "BINARY_ADD",
	OP_BINARY_SUBTRACT:        "BINARY_SUBTRACT",
	OP_BINARY_MULTIPLY:        "BINARY_MULTIPLY",
	OP_BINARY_TRUE_DIVIDE:     "BINARY_TRUE_DIVIDE",
	OP_BINARY_FLOOR_DIVIDE:    "BINARY_FLOOR_DIVIDE",
	OP_BINARY_MODULO:          "BINARY_MODULO",
	OP_BINARY_POWER:           "BINARY_POWER",
	OP_BINARY_MATRIX_MULTIPLY: "BINARY_MATRIX_MULTIPLY",
	OP_BINARY_LSHIFT:          "BINARY_LSHIFT",
	OP_BINARY_RSHIFT:          "BINARY_RSHIFT",
	OP_BINARY_AND:             "BINARY_AND",
	OP_BINARY_OR:              "BINARY_OR",
	OP_BINARY_XOR:             "BINARY_XOR",
	OP_UNARY_POSITIVE:         "UNARY_POSITIVE",
	OP_UNARY_NEGATIVE:         "UNARY_NEGATIVE",
	OP_UNARY_NOT:              "UNARY_NOT",
	OP_UNARY_INVERT:           "UNARY_INVERT",
	OP_COMPARE_EQ:             "COMPARE_EQ",
	OP_COMPARE_NE:             "COMPARE_NE",
	OP_COMPARE_LT:             "COMPARE_LT",
	OP_COMPARE_LE:             "COMPARE_LE",
	OP_COMPARE_GT:             "COMPARE_GT",
	OP_COMPARE_GE:             "COMPARE_GE",
	OP_COMPARE_IS:             "COMPARE_IS",
	OP_COMPARE_IS_NOT:         "COMPARE_IS_NOT",
	OP_COMPARE_IN:             "COMPARE_IN",
	OP_COMPARE_NOT_IN:         "COMPARE_NOT_IN",
	OP_INPLACE_ADD:            "INPLACE_ADD",

	OP_JUMP_FORWARD:         "JUMP_FORWARD",
	OP_JUMP_ABSOLUTE:        "JUMP_ABSOLUTE",
	OP_POP_JUMP_IF_FALSE:    "POP_JUMP_IF_FALSE",
	OP_POP_JUMP_IF_TRUE:     "POP_JUMP_IF_TRUE",
	OP_JUMP_IF_FALSE_OR_POP: "JUMP_IF_FALSE_OR_POP",
	OP_JUMP_IF_TRUE_OR_POP:  "JUMP_IF_TRUE_OR_POP",
	OP_GET_ITER:             "GET_ITER",
	OP_FOR_ITER:             "FOR_ITER",
	OP_SETUP_LOOP:           "SETUP_LOOP",
	OP_POP_BLOCK:            "POP_BLOCK",
	OP_BREAK_LOOP:           "BREAK_LOOP",
	OP_CONTINUE_LOOP:        "CONTINUE_LOOP",

	OP_SETUP_EXCEPT:  "SETUP_EXCEPT",
	OP_POP_EXCEPT:    "POP_EXCEPT",
	OP_RAISE_VARARGS: "RAISE_VARARGS",
	OP_END_FINALLY:   "END_FINALLY",
	OP_SETUP_FINALLY: "SETUP_FINALLY",
	OP_WITH_CLEANUP:  "WITH_CLEANUP",

	OP_MAKE_FUNCTION:    "MAKE_FUNCTION",
	OP_CALL_FUNCTION:    "CALL_FUNCTION",
	OP_CALL_FUNCTION_KW: "CALL_FUNCTION_KW",
	OP_CALL_FUNCTION_EX: "CALL_FUNCTION_EX",
	OP_CALL_METHOD:      "CALL_METHOD",
	OP_RETURN_VALUE:     "RETURN_VALUE",
	OP_YIELD_VALUE:      "YIELD_VALUE",
	OP_YIELD_FROM:       "YIELD_FROM",
	OP_GET_AWAITABLE:    "GET_AWAITABLE",
	OP_CALL_EXTERNAL:    "CALL_EXTERNAL",
	OP_CALL_OS:          "CALL_OS",

	OP_LOAD_BUILD_CLASS: "LOAD_BUILD_CLASS",
	OP_BUILD_CLASS:      "BUILD_CLASS",
	OP_IMPORT_NAME:      "IMPORT_NAME",
	OP_IMPORT_FROM:      "IMPORT_FROM",
	OP_IMPORT_STAR:      "IMPORT_STAR",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

func (i Instruction) String() string {
	return fmt.Sprintf("%-24s %d", i.Opcode.String(), i.Arg)
}

// RaiseKind distinguishes RAISE_VARARGS's three call shapes.
type RaiseKind uint32

const (
	RaiseReraise RaiseKind = iota
	RaiseException
	RaiseExceptionFromCause
)

// MakeFunctionFlag marks which optional operands OP_MAKE_FUNCTION pops, pushed
// after the code object in a fixed order (defaults, kwdefaults, closure), and
// whether the function is a generator (a flag with no operand), packing
// optional behavior into a bitset instead of adding more opcodes.
type MakeFunctionFlag uint32

const (
	MakeFunctionHasDefaults MakeFunctionFlag = 1 << iota
	MakeFunctionHasKwDefaults
	MakeFunctionHasClosure
	MakeFunctionIsGenerator
)
