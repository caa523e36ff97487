package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcadei/ouros-go/object"
)

func TestExecuteAssignsGlobal(t *testing.T) {
	s, err := New(Options{})
	require.NoError(t, err)

	result, err := s.Execute("x = 1 + 2")
	require.NoError(t, err)
	assert.Equal(t, KindComplete, result.Kind)

	vars, err := s.GetVariables()
	require.NoError(t, err)
	require.Contains(t, vars, "x")
	assert.Equal(t, object.Int(3), vars["x"])
}

func TestEvalDoesNotConsumeHistory(t *testing.T) {
	s, err := New(Options{})
	require.NoError(t, err)

	_, err = s.Execute("x = 10")
	require.NoError(t, err)
	historyDepth := len(s.history)

	result, err := s.Eval("x + 5")
	require.NoError(t, err)
	assert.Equal(t, KindComplete, result.Kind)
	assert.Equal(t, object.Int(15), result.Value)
	assert.Equal(t, historyDepth, len(s.history))
}

func TestRewindRestoresPriorNamespace(t *testing.T) {
	s, err := New(Options{})
	require.NoError(t, err)

	_, err = s.Execute("x = 1")
	require.NoError(t, err)
	_, err = s.Execute("x = 2")
	require.NoError(t, err)

	require.NoError(t, s.Rewind(1))

	vars, err := s.GetVariables()
	require.NoError(t, err)
	assert.Equal(t, object.Int(1), vars["x"])
}

func TestRewindRejectsOutOfRangeSteps(t *testing.T) {
	s, err := New(Options{})
	require.NoError(t, err)

	err = s.Rewind(1)
	assert.Error(t, err)
}

func TestForkIsIndependent(t *testing.T) {
	s, err := New(Options{})
	require.NoError(t, err)

	_, err = s.Execute("x = 1")
	require.NoError(t, err)

	fork, err := s.Fork()
	require.NoError(t, err)

	_, err = fork.Execute("x = 99")
	require.NoError(t, err)

	origVars, err := s.GetVariables()
	require.NoError(t, err)
	forkVars, err := fork.GetVariables()
	require.NoError(t, err)

	assert.Equal(t, object.Int(1), origVars["x"])
	assert.Equal(t, object.Int(99), forkVars["x"])
}

func TestSetAndDeleteVariable(t *testing.T) {
	s, err := New(Options{})
	require.NoError(t, err)

	require.NoError(t, s.SetVariable("y", object.Str("hello")))
	vars, err := s.GetVariables()
	require.NoError(t, err)
	assert.Equal(t, object.Str("hello"), vars["y"])

	s.DeleteVariable("y")
	vars, err = s.GetVariables()
	require.NoError(t, err)
	assert.NotContains(t, vars, "y")
}

func TestHeapStatsAndDiff(t *testing.T) {
	s, err := New(Options{})
	require.NoError(t, err)

	before := s.HeapStats()
	_, err = s.Execute(`items = [1, 2, 3]`)
	require.NoError(t, err)
	after := s.HeapStats()

	diff := s.HeapDiff(before)
	assert.GreaterOrEqual(t, after.LiveSlots, before.LiveSlots)
	assert.NotNil(t, diff)
}
