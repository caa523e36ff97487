package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcadei/ouros-go/values"
)

func TestRegisterFunctionAndLookup(t *testing.T) {
	r := New()

	err := r.RegisterFunction(&CodeObject{QualifiedName: "<module>"})
	require.NoError(t, err)

	code, ok := r.GetFunction("<module>")
	require.True(t, ok)
	assert.Equal(t, "<module>", code.QualifiedName)

	_, ok = r.GetFunction("missing")
	assert.False(t, ok)
}

func TestRegisterFunctionRejectsNilOrUnnamed(t *testing.T) {
	r := New()
	assert.Error(t, r.RegisterFunction(nil))
	assert.Error(t, r.RegisterFunction(&CodeObject{}))
}

func TestRegisterBuiltinAssignsDenseKindsAndAllowsReplace(t *testing.T) {
	r := New()

	fn := func(ctx BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		return values.NewInt(0), nil
	}

	lenKind, err := r.RegisterBuiltin("len", fn)
	require.NoError(t, err)

	printKind, err := r.RegisterBuiltin("print", fn)
	require.NoError(t, err)
	assert.NotEqual(t, lenKind, printKind)

	// Re-registering the same name reuses its dense kind rather than growing.
	again, err := r.RegisterBuiltin("len", fn)
	require.NoError(t, err)
	assert.Equal(t, lenKind, again)

	got, name, ok := r.BuiltinByKind(lenKind)
	require.True(t, ok)
	require.NotNil(t, got)
	assert.Equal(t, "len", name)

	kind, ok := r.BuiltinKindByName("print")
	require.True(t, ok)
	assert.Equal(t, printKind, kind)
}

func TestRegisterBuiltinRejectsNilOrUnnamed(t *testing.T) {
	r := New()
	fn := func(ctx BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
		return values.Value{}, nil
	}
	_, err := r.RegisterBuiltin("", fn)
	assert.Error(t, err)
	_, err = r.RegisterBuiltin("x", nil)
	assert.Error(t, err)
}

func TestCloneDuplicatesFunctionTableIndependently(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterFunction(&CodeObject{QualifiedName: "f"}))

	clone := r.Clone()
	require.NoError(t, clone.RegisterFunction(&CodeObject{QualifiedName: "g"}))

	_, ok := r.GetFunction("g")
	assert.False(t, ok)
	_, ok = clone.GetFunction("f")
	assert.True(t, ok)
}
