package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcadei/ouros-go/object"
	"github.com/parcadei/ouros-go/session"
)

func TestRunWithInputs(t *testing.T) {
	sb, err := New("result = a + b\nresult", Options{Inputs: []string{"a", "b"}})
	require.NoError(t, err)

	value, err := sb.Run(map[string]object.Object{
		"a": object.Int(3),
		"b": object.Int(4),
	})
	require.NoError(t, err)
	assert.Equal(t, object.Int(7), value)
}

func TestStartReturnsCompleteForAStraightLineProgram(t *testing.T) {
	sb, err := New("x = 1", Options{})
	require.NoError(t, err)

	step, err := sb.Start(nil)
	require.NoError(t, err)
	assert.Equal(t, StepComplete, step.Kind)
}

// serviceCall is dispatched directly here against a hand-built PendingCall
// rather than through compiled source, so the suspend/resume plumbing
// downstream of a PendingCall is exercised independent of which call sites
// the compiler currently lowers to OP_CALL_EXTERNAL/OP_CALL_OS.
func TestServiceCallDispatchesToExternalFunction(t *testing.T) {
	called := false
	sb := &Sandbox{
		externals: map[string]ExternalFunc{
			"double": func(args []object.Object, kwargs map[string]object.Object) (object.Object, error) {
				called = true
				require.Len(t, args, 1)
				return object.Int(args[0].Int * 2), nil
			},
		},
	}

	result := sb.serviceCall(&session.PendingCall{
		CallID: "call-1",
		Name:   "double",
		Args:   []object.Object{object.Int(21)},
	})
	assert.True(t, called)
	require.Nil(t, result.Exc)
	assert.Equal(t, object.Int(42), result.Value)
}

func TestServiceCallReportsMissingExternalAsException(t *testing.T) {
	sb := &Sandbox{externals: map[string]ExternalFunc{}}
	result := sb.serviceCall(&session.PendingCall{CallID: "call-2", Name: "missing"})
	require.NotNil(t, result.Exc)
	assert.Equal(t, "RuntimeError", result.Exc.TypeName)
}

func TestToStepResultVariants(t *testing.T) {
	complete := toStepResult(session.Result{Kind: session.KindComplete, Value: object.Int(1)})
	assert.Equal(t, StepComplete, complete.Kind)

	external := toStepResult(session.Result{
		Kind:    session.KindSuspended,
		Pending: &session.PendingCall{CallID: "c1", Name: "fetch"},
	})
	assert.Equal(t, StepSnapshot, external.Kind)

	osCall := toStepResult(session.Result{
		Kind:    session.KindSuspended,
		Pending: &session.PendingCall{CallID: "c2", Name: "exists", IsOS: true},
	})
	assert.Equal(t, StepOsCall, osCall.Kind)

	batch := []*session.PendingCall{
		{CallID: "c3", Name: "a"},
		{CallID: "c4", Name: "b"},
	}
	gathered := toStepResult(session.Result{
		Kind:         session.KindSuspended,
		Pending:      batch[0],
		PendingBatch: batch,
	})
	assert.Equal(t, StepFutureSnapshot, gathered.Kind)
	assert.Len(t, gathered.Pending, 2)
}

func TestHandleOSFilesystemRoundTrip(t *testing.T) {
	sb := &Sandbox{}
	dir := t.TempDir()
	path := filepath.Join(dir, "greeting.txt")

	_, err := sb.handleOS("write_text", []object.Object{object.Str(path), object.Str("hello")}, nil)
	require.NoError(t, err)

	exists, err := sb.handleOS("exists", []object.Object{object.Str(path)}, nil)
	require.NoError(t, err)
	assert.Equal(t, object.Bool(true), exists)

	content, err := sb.handleOS("read_text", []object.Object{object.Str(path)}, nil)
	require.NoError(t, err)
	assert.Equal(t, object.Str("hello"), content)

	stat, err := sb.handleOS("stat", []object.Object{object.Str(path)}, nil)
	require.NoError(t, err)
	assert.Equal(t, object.KindDict, stat.Kind)

	require.NoError(t, os.Remove(path))
	exists, err = sb.handleOS("exists", []object.Object{object.Str(path)}, nil)
	require.NoError(t, err)
	assert.Equal(t, object.Bool(false), exists)
}

func TestHandleOSGetenv(t *testing.T) {
	sb := &Sandbox{}
	t.Setenv("OUROS_SANDBOX_TEST_VAR", "value")

	got, err := sb.handleOS("getenv", []object.Object{object.Str("OUROS_SANDBOX_TEST_VAR")}, nil)
	require.NoError(t, err)
	assert.Equal(t, object.Str("value"), got)
}
