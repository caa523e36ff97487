package compiler

import (
	"fmt"

	"github.com/parcadei/ouros-go/opcodes"
	"github.com/parcadei/ouros-go/registry"
	"github.com/parcadei/ouros-go/values"
)

// genFuncDef compiles a nested function body into its own CodeObject,
// registers it, then emits the enclosing-scope instructions that build and
// bind the resulting closure as a FunctionId at definition time. Nested
// functions never capture free variables in this compiler - a name the body
// assigns is local to it, and any other name falls through to LOAD_GLOBAL -
// so every FuncDef gets an independent CodeObject with empty
// FreeVars/CellVars.
func (c *cg) genFuncDef(fd *FuncDef, qualPrefix string) error {
	if err := c.genFuncValue(fd, qualPrefix); err != nil {
		return err
	}
	return c.genStore(&NameExpr{base: base{fd.Line}, Name: fd.Name}, int32(fd.Line))
}

// genFuncValue compiles fd and leaves the resulting closure on top of the
// stack, used both for a standalone FuncDef statement and for a method
// definition inside a class body's namespace construction.
func (c *cg) genFuncValue(fd *FuncDef, qualPrefix string) error {
	qualName := fd.Name
	if qualPrefix != "" {
		qualName = qualPrefix + "." + fd.Name
	}

	sub := newCG(qualName, false, c.reg, c.interns, c.h, c.externals)
	for _, p := range fd.Params {
		sub.addLocal(p.Name)
	}
	if fd.Variadic != "" {
		sub.addLocal(fd.Variadic)
	}
	if fd.KwVariadic != "" {
		sub.addLocal(fd.KwVariadic)
	}
	collectLocals(fd.Body, func(name string) { sub.addLocal(name) })

	if err := sub.genBody(fd.Body); err != nil {
		return err
	}
	sub.emit(opcodes.OP_LOAD_NONE, 0, int32(fd.Line))
	sub.emit(opcodes.OP_RETURN_VALUE, 0, int32(fd.Line))

	params := make([]registry.Parameter, len(fd.Params))
	var defaultExprs []Node
	for i, p := range fd.Params {
		params[i] = registry.Parameter{
			Name:        p.Name,
			HasDefault:  p.Default != nil,
			KeywordOnly: p.KeywordOnly,
		}
		if p.Default != nil {
			defaultExprs = append(defaultExprs, p.Default)
		}
	}

	code := &registry.CodeObject{
		QualifiedName: qualName,
		Instructions:  sub.instrs,
		Consts:        sub.consts,
		Names:         sub.names,
		VarNames:      sub.varNames,
		Params:        params,
		IsVariadic:    fd.Variadic != "",
		IsKwVariadic:  fd.KwVariadic != "",
		NumLocals:     len(sub.varNames),
		FirstLine:     int32(fd.Line),
	}
	if err := c.reg.RegisterFunction(code); err != nil {
		return err
	}
	fid := c.interns.InternFunction(code.ToSignature(), code)

	c.emit(opcodes.OP_LOAD_CONST, c.constIndex(values.NewDefFunction(fid)), int32(fd.Line))

	var flags opcodes.MakeFunctionFlag
	if len(defaultExprs) > 0 {
		for _, d := range defaultExprs {
			if err := c.genExpr(d); err != nil {
				return err
			}
		}
		c.emit(opcodes.OP_BUILD_TUPLE, len(defaultExprs), int32(fd.Line))
		flags |= opcodes.MakeFunctionHasDefaults
	}
	c.emit(opcodes.OP_MAKE_FUNCTION, int(flags), int32(fd.Line))
	return nil
}

// genClassDef compiles a class body inline in the enclosing scope rather
// than as its own CodeObject: only method definitions and simple name
// assignments are supported as class-body statements, each contributing one
// (name, value) pair to the namespace dict that OP_BUILD_CLASS consumes to
// construct the class. BUILD_CLASS's stack contract needs name pushed
// first, then the bases tuple, then the namespace dict last.
func (c *cg) genClassDef(cd *ClassDef) error {
	c.emit(opcodes.OP_LOAD_CONST, c.internConst(cd.Name), int32(cd.Line))

	for _, b := range cd.Bases {
		if err := c.genExpr(b); err != nil {
			return err
		}
	}
	c.emit(opcodes.OP_BUILD_TUPLE, len(cd.Bases), int32(cd.Line))

	var nPairs int
	for _, n := range cd.Body {
		switch s := n.(type) {
		case *FuncDef:
			c.emit(opcodes.OP_LOAD_CONST, c.internConst(s.Name), int32(s.Line))
			if err := c.genFuncValue(s, cd.Name); err != nil {
				return err
			}
			nPairs++
		case *AssignStmt:
			name, ok := s.Target.(*NameExpr)
			if !ok {
				return fmt.Errorf("compiler: line %d: class body assignment must target a plain name", s.Line)
			}
			c.emit(opcodes.OP_LOAD_CONST, c.internConst(name.Name), int32(s.Line))
			if err := c.genExpr(s.Value); err != nil {
				return err
			}
			nPairs++
		case *PassStmt:
			// no-op member
		default:
			return fmt.Errorf("compiler: line %d: unsupported class body statement %T", cd.Line, n)
		}
	}
	c.emit(opcodes.OP_BUILD_MAP, nPairs, int32(cd.Line))
	c.emit(opcodes.OP_BUILD_CLASS, 0, int32(cd.Line))

	return c.genStore(&NameExpr{base: base{cd.Line}, Name: cd.Name}, int32(cd.Line))
}
