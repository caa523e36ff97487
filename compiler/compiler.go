package compiler

import (
	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/intern"
	"github.com/parcadei/ouros-go/opcodes"
	"github.com/parcadei/ouros-go/registry"
)

// Compile parses src as a module body and produces the registry.CodeObject
// the vm package runs via VM.CallMain. The returned CodeObject is also
// registered under qualifiedName so nested function lookups by qualified
// name succeed. The module returns the value of its last statement when that
// statement is an expression, and None otherwise.
//
// externalNames is the set of host-registered external_function names a
// bare-name call may resolve to; a call to any other name is compiled as an
// ordinary CALL_FUNCTION/CALL_FUNCTION_KW against whatever that name is
// bound to at runtime.
func Compile(src, qualifiedName string, reg *registry.Registry, interns *intern.Table, h *heap.Heap, externalNames []string) (*registry.CodeObject, error) {
	mod, err := parseModule(src)
	if err != nil {
		return nil, err
	}

	c := newCG(qualifiedName, true, reg, interns, h, externalSet(externalNames))

	body := mod.Body
	var last *ExprStmt
	if n := len(body); n > 0 {
		if es, ok := body[n-1].(*ExprStmt); ok {
			last, body = es, body[:n-1]
		}
	}
	if err := c.genBody(body); err != nil {
		return nil, err
	}
	if last != nil {
		if err := c.genExpr(last.X); err != nil {
			return nil, err
		}
	} else {
		c.emit(opcodes.OP_LOAD_NONE, 0, 0)
	}
	c.emit(opcodes.OP_RETURN_VALUE, 0, 0)

	code := &registry.CodeObject{
		QualifiedName: qualifiedName,
		Instructions:  c.instrs,
		Consts:        c.consts,
		Names:         c.names,
		VarNames:      nil,
		NumLocals:     0,
		FirstLine:     1,
	}
	if err := reg.RegisterFunction(code); err != nil {
		return nil, err
	}
	return code, nil
}

// CompileExpr parses src as a single expression and produces a CodeObject
// that evaluates it and returns the result, without touching the module
// namespace - the compiled form of Session.Eval.
func CompileExpr(src, qualifiedName string, reg *registry.Registry, interns *intern.Table, h *heap.Heap, externalNames []string) (*registry.CodeObject, error) {
	expr, err := parseExprOnly(src)
	if err != nil {
		return nil, err
	}

	c := newCG(qualifiedName, true, reg, interns, h, externalSet(externalNames))
	if err := c.genExpr(expr); err != nil {
		return nil, err
	}
	c.emit(opcodes.OP_RETURN_VALUE, 0, 0)

	return &registry.CodeObject{
		QualifiedName: qualifiedName,
		Instructions:  c.instrs,
		Consts:        c.consts,
		Names:         c.names,
		FirstLine:     1,
	}, nil
}

func externalSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
