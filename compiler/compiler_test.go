package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/intern"
	"github.com/parcadei/ouros-go/registry"
	"github.com/parcadei/ouros-go/resource"
)

func newTestRegistry() (*registry.Registry, *intern.Table, *heap.Heap) {
	reg := registry.New()
	interns := intern.New()
	h := heap.New(resource.Unlimited())
	return reg, interns, h
}

func TestCompileProducesRunnableCode(t *testing.T) {
	reg, interns, h := newTestRegistry()

	code, err := Compile("x = 1 + 2\ny = x * 3", "<module>", reg, interns, h, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, code.Instructions)
	assert.Equal(t, "<module>", code.QualifiedName)
}

func TestCompileRejectsMalformedSource(t *testing.T) {
	reg, interns, h := newTestRegistry()

	_, err := Compile("def f(:\n  pass", "<module>", reg, interns, h, nil)
	assert.Error(t, err)
}

func TestCompileExprProducesExpressionCode(t *testing.T) {
	reg, interns, h := newTestRegistry()

	code, err := CompileExpr("1 + 2", "<eval>", reg, interns, h, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, code.Instructions)
}

func TestCompileExprRejectsStatement(t *testing.T) {
	reg, interns, h := newTestRegistry()

	_, err := CompileExpr("x = 1", "<eval>", reg, interns, h, nil)
	assert.Error(t, err)
}
