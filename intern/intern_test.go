package intern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternReturnsSameIdForSameString(t *testing.T) {
	table := New()

	a := table.Intern("hello")
	b := table.Intern("hello")
	assert.Equal(t, a, b)

	s, ok := table.Lookup(a)
	require.True(t, ok)
	assert.Equal(t, "hello", s)
}

func TestInternPreloadsStaticCatalogue(t *testing.T) {
	table := New()
	id := table.Intern("__init__")
	s, ok := table.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, "__init__", s)
}

func TestInternFunctionRoundTrip(t *testing.T) {
	table := New()
	sig := FunctionSignature{QualifiedName: "<module>.f", ParamNames: []string{"x"}}

	id := table.InternFunction(sig, "code-placeholder")

	got, ok := table.FunctionSignature(id)
	require.True(t, ok)
	assert.Equal(t, sig, got)

	code, ok := table.FunctionCode(id)
	require.True(t, ok)
	assert.Equal(t, "code-placeholder", code)
}

func TestCloneIsIndependentOfOriginal(t *testing.T) {
	table := New()
	id := table.Intern("shared")

	clone := table.Clone()
	clone.Intern("only-in-clone")

	_, ok := table.Lookup(id)
	assert.True(t, ok)

	beforeLen := table.Len()
	clone.Intern("another-clone-only")
	assert.Equal(t, beforeLen, table.Len())
}
