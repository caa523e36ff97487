package compiler

import (
	"fmt"

	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/intern"
	"github.com/parcadei/ouros-go/opcodes"
	"github.com/parcadei/ouros-go/registry"
	"github.com/parcadei/ouros-go/values"
)

// loopCtx tracks one enclosing while/for loop's continue target. break's
// target comes from the VM's block stack at runtime (OP_BREAK_LOOP), so
// there is nothing here to patch for break.
type loopCtx struct {
	continueIP int
}

// cg accumulates one CodeObject's instructions and tables while walking a
// function or module body: one instruction array per function, plus separate
// Consts/Names tables and explicit local-variable slot assignment.
type cg struct {
	qualName string
	isModule bool

	instrs []opcodes.Instruction
	consts []values.Value
	names  []string
	nameIdx map[string]int

	varNames []string
	varIdx   map[string]int

	params       []registry.Parameter
	variadic     bool
	kwVariadic   bool

	loops []*loopCtx

	reg     *registry.Registry
	interns *intern.Table
	h       *heap.Heap

	// externals is the allowlist of host-registered external_function names;
	// a bare-name call to one of these lowers to CALL_EXTERNAL instead of
	// CALL_FUNCTION/CALL_FUNCTION_KW.
	externals map[string]bool
}

func newCG(qualName string, isModule bool, reg *registry.Registry, interns *intern.Table, h *heap.Heap, externals map[string]bool) *cg {
	return &cg{
		qualName:  qualName,
		isModule:  isModule,
		nameIdx:   make(map[string]int),
		varIdx:    make(map[string]int),
		reg:       reg,
		interns:   interns,
		h:         h,
		externals: externals,
	}
}

func (c *cg) emit(op opcodes.Opcode, arg int, line int32) int {
	c.instrs = append(c.instrs, opcodes.Instruction{Opcode: op, Arg: uint32(arg), Line: line})
	return len(c.instrs) - 1
}

func (c *cg) here() int { return len(c.instrs) }

func (c *cg) patch(idx, target int) {
	c.instrs[idx].Arg = uint32(target)
}

func (c *cg) constIndex(v values.Value) int {
	c.consts = append(c.consts, v)
	return len(c.consts) - 1
}

func (c *cg) nameIndex(name string) int {
	if i, ok := c.nameIdx[name]; ok {
		return i
	}
	i := len(c.names)
	c.names = append(c.names, name)
	c.nameIdx[name] = i
	return i
}

func (c *cg) internConst(name string) int {
	return c.constIndex(values.NewInternString(c.interns.Intern(name)))
}

// localIndex reports the slot for a name already known to be local (a
// parameter or an assignment target collected by collectLocals), or false if
// this is a module-scope cg or the name was never collected as local.
func (c *cg) localIndex(name string) (int, bool) {
	if c.isModule {
		return 0, false
	}
	i, ok := c.varIdx[name]
	return i, ok
}

func (c *cg) addLocal(name string) int {
	if i, ok := c.varIdx[name]; ok {
		return i
	}
	i := len(c.varNames)
	c.varNames = append(c.varNames, name)
	c.varIdx[name] = i
	return i
}

// --- local-variable collection ---

// collectLocals walks a function body (not descending into nested
// def/class, whose own bodies get their own cg) gathering every name
// assigned to, matching Python's "assigned anywhere in the function body is
// local unless declared global" default (global/nonlocal parse as no-ops,
// so this compiler always takes the local branch - a documented
// simplification).
func collectLocals(body []Node, into func(string)) {
	for _, n := range body {
		collectLocalsStmt(n, into)
	}
}

func collectLocalsStmt(n Node, into func(string)) {
	switch s := n.(type) {
	case *AssignStmt:
		if name, ok := s.Target.(*NameExpr); ok {
			into(name.Name)
		}
	case *AugAssignStmt:
		if name, ok := s.Target.(*NameExpr); ok {
			into(name.Name)
		}
	case *ForStmt:
		into(s.Target)
		collectLocals(s.Body, into)
	case *WhileStmt:
		collectLocals(s.Body, into)
	case *IfStmt:
		collectLocals(s.Then, into)
		collectLocals(s.Else, into)
	case *FuncDef:
		into(s.Name)
	case *ClassDef:
		into(s.Name)
	}
}

// --- statement codegen ---

func (c *cg) genBody(body []Node) error {
	for _, n := range body {
		if err := c.genStmt(n); err != nil {
			return err
		}
	}
	return nil
}

func (c *cg) genStmt(n Node) error {
	switch s := n.(type) {
	case *ExprStmt:
		if err := c.genExpr(s.X); err != nil {
			return err
		}
		c.emit(opcodes.OP_POP_TOP, 0, int32(s.Line))
		return nil

	case *AssignStmt:
		return c.genAssign(s.Target, s.Value, int32(s.Line))

	case *AugAssignStmt:
		name, ok := s.Target.(*NameExpr)
		if !ok {
			return fmt.Errorf("compiler: line %d: augmented assignment only supports a plain name target", s.Line)
		}
		if err := c.genExpr(name); err != nil {
			return err
		}
		if err := c.genExpr(s.Value); err != nil {
			return err
		}
		op, err := binaryOpcode(s.Op)
		if err != nil {
			return err
		}
		c.emit(op, 0, int32(s.Line))
		return c.genStore(name, int32(s.Line))

	case *IfStmt:
		return c.genIf(s)

	case *WhileStmt:
		return c.genWhile(s)

	case *ForStmt:
		return c.genFor(s)

	case *FuncDef:
		return c.genFuncDef(s, "")

	case *ClassDef:
		return c.genClassDef(s)

	case *ReturnStmt:
		if s.Value != nil {
			if err := c.genExpr(s.Value); err != nil {
				return err
			}
		} else {
			c.emit(opcodes.OP_LOAD_NONE, 0, int32(s.Line))
		}
		c.emit(opcodes.OP_RETURN_VALUE, 0, int32(s.Line))
		return nil

	case *PassStmt:
		return nil

	case *BreakStmt:
		if len(c.loops) == 0 {
			return fmt.Errorf("compiler: line %d: 'break' outside loop", s.Line)
		}
		c.emit(opcodes.OP_BREAK_LOOP, 0, int32(s.Line))
		return nil

	case *ContinueStmt:
		if len(c.loops) == 0 {
			return fmt.Errorf("compiler: line %d: 'continue' outside loop", s.Line)
		}
		loop := c.loops[len(c.loops)-1]
		c.emit(opcodes.OP_CONTINUE_LOOP, loop.continueIP, int32(s.Line))
		return nil

	case *RaiseStmt:
		if s.Exc == nil {
			c.emit(opcodes.OP_RAISE_VARARGS, int(opcodes.RaiseReraise), int32(s.Line))
			return nil
		}
		if err := c.genExpr(s.Exc); err != nil {
			return err
		}
		if s.Cause != nil {
			if err := c.genExpr(s.Cause); err != nil {
				return err
			}
			c.emit(opcodes.OP_RAISE_VARARGS, int(opcodes.RaiseExceptionFromCause), int32(s.Line))
			return nil
		}
		c.emit(opcodes.OP_RAISE_VARARGS, int(opcodes.RaiseException), int32(s.Line))
		return nil

	default:
		return fmt.Errorf("compiler: unsupported statement %T", n)
	}
}

// genStore emits the store half of an assignment whose value is already on
// top of the stack, for a bare-name target (the only shape that needs no
// operands pushed ahead of the value).
func (c *cg) genStore(target *NameExpr, line int32) error {
	if i, ok := c.localIndex(target.Name); ok {
		c.emit(opcodes.OP_STORE_FAST, i, line)
		return nil
	}
	if !c.isModule {
		c.emit(opcodes.OP_STORE_FAST, c.addLocal(target.Name), line)
		return nil
	}
	c.emit(opcodes.OP_STORE_NAME, c.nameIndex(target.Name), line)
	return nil
}

// genAssign emits a full assignment `target = value`. Attribute and
// subscript targets need their object (and, for subscripts, their key)
// pushed before the value, so unlike a bare name this can't be built out of
// "evaluate value, then store" alone.
func (c *cg) genAssign(target, value Node, line int32) error {
	switch t := target.(type) {
	case *NameExpr:
		if err := c.genExpr(value); err != nil {
			return err
		}
		return c.genStore(t, line)
	case *AttrExpr:
		if err := c.genExpr(t.X); err != nil {
			return err
		}
		if err := c.genExpr(value); err != nil {
			return err
		}
		c.emit(opcodes.OP_STORE_ATTR, c.nameIndex(t.Name), line)
		return nil
	case *SubscriptExpr:
		if err := c.genExpr(t.X); err != nil {
			return err
		}
		if err := c.genExpr(t.Index); err != nil {
			return err
		}
		if err := c.genExpr(value); err != nil {
			return err
		}
		c.emit(opcodes.OP_STORE_SUBSCR, 0, line)
		return nil
	default:
		return fmt.Errorf("compiler: line %d: invalid assignment target %T", line, target)
	}
}

func binaryOpcode(op string) (opcodes.Opcode, error) {
	switch op {
	case "+":
		return opcodes.OP_BINARY_ADD, nil
	case "-":
		return opcodes.OP_BINARY_SUBTRACT, nil
	case "*":
		return opcodes.OP_BINARY_MULTIPLY, nil
	case "/":
		return opcodes.OP_BINARY_TRUE_DIVIDE, nil
	case "//":
		return opcodes.OP_BINARY_FLOOR_DIVIDE, nil
	case "%":
		return opcodes.OP_BINARY_MODULO, nil
	case "**":
		return opcodes.OP_BINARY_POWER, nil
	case "@":
		return opcodes.OP_BINARY_MATRIX_MULTIPLY, nil
	case "<<":
		return opcodes.OP_BINARY_LSHIFT, nil
	case ">>":
		return opcodes.OP_BINARY_RSHIFT, nil
	case "&":
		return opcodes.OP_BINARY_AND, nil
	case "|":
		return opcodes.OP_BINARY_OR, nil
	case "^":
		return opcodes.OP_BINARY_XOR, nil
	default:
		return 0, fmt.Errorf("compiler: unknown binary operator %q", op)
	}
}

func compareOpcode(op string) (opcodes.Opcode, error) {
	switch op {
	case "==":
		return opcodes.OP_COMPARE_EQ, nil
	case "!=":
		return opcodes.OP_COMPARE_NE, nil
	case "<":
		return opcodes.OP_COMPARE_LT, nil
	case "<=":
		return opcodes.OP_COMPARE_LE, nil
	case ">":
		return opcodes.OP_COMPARE_GT, nil
	case ">=":
		return opcodes.OP_COMPARE_GE, nil
	case "is":
		return opcodes.OP_COMPARE_IS, nil
	case "is not":
		return opcodes.OP_COMPARE_IS_NOT, nil
	case "in":
		return opcodes.OP_COMPARE_IN, nil
	case "not in":
		return opcodes.OP_COMPARE_NOT_IN, nil
	default:
		return 0, fmt.Errorf("compiler: unknown comparison operator %q", op)
	}
}

func (c *cg) genIf(s *IfStmt) error {
	if err := c.genExpr(s.Cond); err != nil {
		return err
	}
	jumpElse := c.emit(opcodes.OP_POP_JUMP_IF_FALSE, 0, int32(s.Line))
	if err := c.genBody(s.Then); err != nil {
		return err
	}
	if len(s.Else) == 0 {
		c.patch(jumpElse, c.here())
		return nil
	}
	jumpEnd := c.emit(opcodes.OP_JUMP_ABSOLUTE, 0, int32(s.Line))
	c.patch(jumpElse, c.here())
	if err := c.genBody(s.Else); err != nil {
		return err
	}
	c.patch(jumpEnd, c.here())
	return nil
}

func (c *cg) genWhile(s *WhileStmt) error {
	setupIdx := c.emit(opcodes.OP_SETUP_LOOP, 0, int32(s.Line))
	condIP := c.here()
	if err := c.genExpr(s.Cond); err != nil {
		return err
	}
	exitJump := c.emit(opcodes.OP_POP_JUMP_IF_FALSE, 0, int32(s.Line))
	loop := &loopCtx{continueIP: condIP}
	c.loops = append(c.loops, loop)
	if err := c.genBody(s.Body); err != nil {
		return err
	}
	c.loops = c.loops[:len(c.loops)-1]
	c.emit(opcodes.OP_JUMP_ABSOLUTE, condIP, int32(s.Line))
	c.patch(exitJump, c.here())
	c.emit(opcodes.OP_POP_BLOCK, 0, int32(s.Line))
	c.patch(setupIdx, c.here())
	return nil
}

func (c *cg) genFor(s *ForStmt) error {
	if err := c.genExpr(s.Iter); err != nil {
		return err
	}
	c.emit(opcodes.OP_GET_ITER, 0, int32(s.Line))
	setupIdx := c.emit(opcodes.OP_SETUP_LOOP, 0, int32(s.Line))
	forIP := c.here()
	exitJump := c.emit(opcodes.OP_FOR_ITER, 0, int32(s.Line))
	if err := c.genStore(&NameExpr{base: base{s.Line}, Name: s.Target}, int32(s.Line)); err != nil {
		return err
	}
	loop := &loopCtx{continueIP: forIP}
	c.loops = append(c.loops, loop)
	if err := c.genBody(s.Body); err != nil {
		return err
	}
	c.loops = c.loops[:len(c.loops)-1]
	c.emit(opcodes.OP_JUMP_ABSOLUTE, forIP, int32(s.Line))
	c.patch(exitJump, c.here())
	c.emit(opcodes.OP_POP_BLOCK, 0, int32(s.Line))
	c.patch(setupIdx, c.here())
	return nil
}
