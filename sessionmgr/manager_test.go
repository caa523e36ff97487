package sessionmgr

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcadei/ouros-go/object"
	"github.com/parcadei/ouros-go/session"
)

func TestDefaultSessionAlwaysPresent(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultSessionID}, m.List())

	err = m.Destroy(DefaultSessionID)
	assert.Error(t, err)
}

func TestCreateExecuteDestroy(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)

	id, err := m.Create("alpha", session.Options{})
	require.NoError(t, err)
	assert.Equal(t, "alpha", id)

	result, err := m.Execute("alpha", "x = 7")
	require.NoError(t, err)
	assert.Equal(t, session.KindComplete, result.Kind)

	require.NoError(t, m.Destroy("alpha"))
	_, err = m.Execute("alpha", "x = 7")
	assert.Error(t, err)
}

func TestForkCreatesIndependentSession(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = m.Execute(DefaultSessionID, "x = 1")
	require.NoError(t, err)

	require.NoError(t, m.Fork(DefaultSessionID, "forked"))
	_, err = m.Execute("forked", "x = 2")
	require.NoError(t, err)

	eval, err := m.Eval(DefaultSessionID, "x")
	require.NoError(t, err)
	assert.Equal(t, object.Int(1), eval.Value)

	eval, err = m.Eval("forked", "x")
	require.NoError(t, err)
	assert.Equal(t, object.Int(2), eval.Value)
}

func TestSaveLoadUpdatesManifest(t *testing.T) {
	root := filepath.Join(t.TempDir(), "sessions")
	m, err := New(root)
	require.NoError(t, err)

	_, err = m.Execute(DefaultSessionID, "x = 5")
	require.NoError(t, err)
	require.NoError(t, m.Save(DefaultSessionID))

	persisted, err := m.PersistedSessions()
	require.NoError(t, err)
	assert.Contains(t, persisted, DefaultSessionID)

	m2, err := New(root)
	require.NoError(t, err)
	require.NoError(t, m2.Load(DefaultSessionID))

	result, err := m2.Eval(DefaultSessionID, "x")
	require.NoError(t, err)
	assert.Equal(t, object.Int(5), result.Value)
}
