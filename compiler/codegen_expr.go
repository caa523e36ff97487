package compiler

import (
	"fmt"

	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/opcodes"
	"github.com/parcadei/ouros-go/values"
)

func (c *cg) genExpr(n Node) error {
	switch e := n.(type) {
	case *NumberLit:
		if e.IsFloat {
			c.emit(opcodes.OP_LOAD_CONST, c.constIndex(values.NewFloat(e.FltVal)), int32(e.Line))
		} else {
			c.emit(opcodes.OP_LOAD_CONST, c.constIndex(values.NewInt(e.IntVal)), int32(e.Line))
		}
		return nil

	case *StringLit:
		id, err := c.h.Allocate(&heap.Str{S: e.Value})
		if err != nil {
			return err
		}
		c.emit(opcodes.OP_LOAD_CONST, c.constIndex(values.NewRef(id)), int32(e.Line))
		return nil

	case *BoolLit:
		if e.Value {
			c.emit(opcodes.OP_LOAD_TRUE, 0, int32(e.Line))
		} else {
			c.emit(opcodes.OP_LOAD_FALSE, 0, int32(e.Line))
		}
		return nil

	case *NoneLit:
		c.emit(opcodes.OP_LOAD_NONE, 0, int32(e.Line))
		return nil

	case *NameExpr:
		if i, ok := c.localIndex(e.Name); ok {
			c.emit(opcodes.OP_LOAD_FAST, i, int32(e.Line))
			return nil
		}
		if c.isModule {
			c.emit(opcodes.OP_LOAD_NAME, c.nameIndex(e.Name), int32(e.Line))
			return nil
		}
		c.emit(opcodes.OP_LOAD_GLOBAL, c.nameIndex(e.Name), int32(e.Line))
		return nil

	case *UnaryExpr:
		if err := c.genExpr(e.X); err != nil {
			return err
		}
		switch e.Op {
		case "-":
			c.emit(opcodes.OP_UNARY_NEGATIVE, 0, int32(e.Line))
		case "+":
			c.emit(opcodes.OP_UNARY_POSITIVE, 0, int32(e.Line))
		case "not":
			c.emit(opcodes.OP_UNARY_NOT, 0, int32(e.Line))
		case "~":
			c.emit(opcodes.OP_UNARY_INVERT, 0, int32(e.Line))
		default:
			return fmt.Errorf("compiler: unknown unary operator %q", e.Op)
		}
		return nil

	case *BinaryExpr:
		if err := c.genExpr(e.X); err != nil {
			return err
		}
		if err := c.genExpr(e.Y); err != nil {
			return err
		}
		op, err := binaryOpcode(e.Op)
		if err != nil {
			return err
		}
		c.emit(op, 0, int32(e.Line))
		return nil

	case *CompareExpr:
		if err := c.genExpr(e.X); err != nil {
			return err
		}
		if err := c.genExpr(e.Y); err != nil {
			return err
		}
		op, err := compareOpcode(e.Op)
		if err != nil {
			return err
		}
		c.emit(op, 0, int32(e.Line))
		return nil

	case *BoolOpExpr:
		if err := c.genExpr(e.X); err != nil {
			return err
		}
		var jump int
		if e.Op == "and" {
			jump = c.emit(opcodes.OP_JUMP_IF_FALSE_OR_POP, 0, int32(e.Line))
		} else {
			jump = c.emit(opcodes.OP_JUMP_IF_TRUE_OR_POP, 0, int32(e.Line))
		}
		if err := c.genExpr(e.Y); err != nil {
			return err
		}
		c.patch(jump, c.here())
		return nil

	case *AttrExpr:
		if err := c.genExpr(e.X); err != nil {
			return err
		}
		c.emit(opcodes.OP_LOAD_ATTR, c.nameIndex(e.Name), int32(e.Line))
		return nil

	case *SubscriptExpr:
		if err := c.genExpr(e.X); err != nil {
			return err
		}
		if err := c.genExpr(e.Index); err != nil {
			return err
		}
		c.emit(opcodes.OP_BINARY_SUBSCR, 0, int32(e.Line))
		return nil

	case *CallExpr:
		return c.genCall(e)

	case *ListExpr:
		for _, item := range e.Items {
			if err := c.genExpr(item); err != nil {
				return err
			}
		}
		c.emit(opcodes.OP_BUILD_LIST, len(e.Items), int32(e.Line))
		return nil

	case *TupleExpr:
		for _, item := range e.Items {
			if err := c.genExpr(item); err != nil {
				return err
			}
		}
		c.emit(opcodes.OP_BUILD_TUPLE, len(e.Items), int32(e.Line))
		return nil

	case *SetExpr:
		for _, item := range e.Items {
			if err := c.genExpr(item); err != nil {
				return err
			}
		}
		c.emit(opcodes.OP_BUILD_SET, len(e.Items), int32(e.Line))
		return nil

	case *DictExpr:
		for _, ent := range e.Entries {
			if err := c.genExpr(ent.Key); err != nil {
				return err
			}
			if err := c.genExpr(ent.Value); err != nil {
				return err
			}
		}
		c.emit(opcodes.OP_BUILD_MAP, len(e.Entries), int32(e.Line))
		return nil

	default:
		return fmt.Errorf("compiler: unsupported expression %T", n)
	}
}

// genCall emits a call. A bare name call matching the compiler's
// external-function allowlist, or an os.* attribute call, suspends the VM
// instead of resolving a callee value: those lower to CALL_EXTERNAL/CALL_OS
// rather than CALL_FUNCTION. Everything else chooses CALL_FUNCTION for
// purely positional calls and CALL_FUNCTION_KW once any keyword argument is
// present.
func (c *cg) genCall(e *CallExpr) error {
	if name, isOS, ok := c.suspendingCallName(e.Func); ok {
		return c.genSuspendingCall(name, isOS, e)
	}

	if err := c.genExpr(e.Func); err != nil {
		return err
	}
	var positional, keyword []CallArg
	for _, a := range e.Args {
		if a.Name == "" {
			positional = append(positional, a)
		} else {
			keyword = append(keyword, a)
		}
	}
	for _, a := range positional {
		if err := c.genExpr(a.Value); err != nil {
			return err
		}
	}
	if len(keyword) == 0 {
		c.emit(opcodes.OP_CALL_FUNCTION, len(positional), int32(e.Line))
		return nil
	}
	for _, a := range keyword {
		if err := c.genExpr(a.Value); err != nil {
			return err
		}
	}
	for _, a := range keyword {
		c.emit(opcodes.OP_LOAD_CONST, c.internConst(a.Name), int32(e.Line))
	}
	c.emit(opcodes.OP_BUILD_TUPLE, len(keyword), int32(e.Line))
	c.emit(opcodes.OP_CALL_FUNCTION_KW, len(positional)+len(keyword), int32(e.Line))
	return nil
}

// suspendingCallName recognizes the two call shapes that reach the VM's
// suspension machinery: a bare name registered as an external_function, or
// an os.<name>(...) attribute call against the fixed OS-function surface
// sandbox.handleOS implements.
func (c *cg) suspendingCallName(fn Node) (name string, isOS bool, ok bool) {
	switch f := fn.(type) {
	case *NameExpr:
		if c.externals[f.Name] {
			return f.Name, false, true
		}
	case *AttrExpr:
		if base, isName := f.X.(*NameExpr); isName && base.Name == "os" {
			return f.Name, true, true
		}
	}
	return "", false, false
}

// genSuspendingCall packs arguments the way CALL_EXTERNAL/CALL_OS expect:
// one positional-args tuple, then one keyword-args dict on top, matching
// CALL_FUNCTION_EX's calling convention since a suspension never knows its
// argument count at VM dispatch time the way a direct function call does.
func (c *cg) genSuspendingCall(name string, isOS bool, e *CallExpr) error {
	var positional, keyword []CallArg
	for _, a := range e.Args {
		if a.Name == "" {
			positional = append(positional, a)
		} else {
			keyword = append(keyword, a)
		}
	}
	for _, a := range positional {
		if err := c.genExpr(a.Value); err != nil {
			return err
		}
	}
	c.emit(opcodes.OP_BUILD_TUPLE, len(positional), int32(e.Line))
	for _, a := range keyword {
		c.emit(opcodes.OP_LOAD_CONST, c.internConst(a.Name), int32(e.Line))
		if err := c.genExpr(a.Value); err != nil {
			return err
		}
	}
	c.emit(opcodes.OP_BUILD_MAP, len(keyword), int32(e.Line))
	op := opcodes.OP_CALL_EXTERNAL
	if isOS {
		op = opcodes.OP_CALL_OS
	}
	c.emit(op, c.nameIndex(name), int32(e.Line))
	return nil
}
