package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcadei/ouros-go/object"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	s, err := New(Options{})
	require.NoError(t, err)

	_, err = s.Execute("x = 41")
	require.NoError(t, err)
	require.NoError(t, s.SetVariable("y", object.Str("persisted")))

	path := filepath.Join(t.TempDir(), "session.ouros-session")
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	vars, err := loaded.GetVariables()
	require.NoError(t, err)
	assert.Equal(t, object.Int(41), vars["x"])
	assert.Equal(t, object.Str("persisted"), vars["y"])

	// The loaded session can keep executing against its restored state.
	result, err := loaded.Eval("x + 1")
	require.NoError(t, err)
	assert.Equal(t, object.Int(42), result.Value)
}

func TestLoadRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.ouros-session")
	require.NoError(t, os.WriteFile(path, []byte("not a session file at all"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
