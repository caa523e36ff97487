// Package registry holds the compiled, immutable metadata the vm package
// executes against: code objects (the compiled form of a function or
// module body) and the global symbol table of functions and builtins, plus
// C3 method-resolution-order linearization for class hierarchies
// (registry/mro.go).
package registry

import (
	"github.com/parcadei/ouros-go/intern"
	"github.com/parcadei/ouros-go/opcodes"
	"github.com/parcadei/ouros-go/values"
)

// Parameter describes one formal parameter of a CodeObject, including the
// keyword-only/positional-only markers Python's calling convention needs.
type Parameter struct {
	Name          string
	HasDefault    bool
	KeywordOnly   bool
	PositionalOnly bool
}

// CodeObject is the compiled form of one function, lambda, or module body.
// It is produced once by the compiler and never mutated afterward; closures
// over the same CodeObject differ only in their bound Cells/Defaults
// (heap.Closure).
type CodeObject struct {
	QualifiedName string
	Instructions  []opcodes.Instruction
	Consts        []values.Value
	Names         []string // LOAD_GLOBAL/LOAD_ATTR/LOAD_NAME operand table
	VarNames      []string // local variable slots, parameters first
	FreeVars      []string // names closed over from an enclosing scope
	CellVars      []string // names captured by a nested function
	Params        []Parameter
	IsVariadic    bool // *args
	IsKwVariadic  bool // **kwargs
	IsGenerator   bool
	NumLocals     int
	FirstLine     int32
}

// ToSignature projects the subset of CodeObject the intern table needs to
// describe a function without depending on the registry package (avoids an
// import cycle: intern is lower in the stack than registry).
func (c *CodeObject) ToSignature() intern.FunctionSignature {
	names := make([]string, len(c.Params))
	for i, p := range c.Params {
		names[i] = p.Name
	}
	defaults := 0
	for _, p := range c.Params {
		if p.HasDefault {
			defaults++
		}
	}
	return intern.FunctionSignature{
		QualifiedName: c.QualifiedName,
		ParamNames:    names,
		Defaults:      defaults,
		Variadic:      c.IsVariadic,
		KwVariadic:    c.IsKwVariadic,
		CellVars:      c.CellVars,
		FreeVars:      c.FreeVars,
		IsGenerator:   c.IsGenerator,
	}
}
