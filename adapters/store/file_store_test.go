package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/facilityworks/sessionkit/core"
)

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "session.json")
	s, err := NewFileStore(path, nil)
	require.NoError(t, err)
	return s, path
}

func TestFileStore_SurvivesReload(t *testing.T) {
	s, path := newTestFileStore(t)

	require.NoError(t, s.SetTokens("A1", "R1"))
	require.NoError(t, s.SetProfile(&core.UserProfile{ID: 1, Username: "commander"}))

	reopened, err := NewFileStore(path, nil)
	require.NoError(t, err)
	require.Equal(t, "A1", reopened.Access())
	require.Equal(t, "R1", reopened.Refresh())
	require.True(t, reopened.IsAuthenticated())

	profile := reopened.Profile()
	require.NotNil(t, profile)
	require.Equal(t, "commander", profile.Username)
}

func TestFileStore_ClearAllPersists(t *testing.T) {
	s, path := newTestFileStore(t)
	require.NoError(t, s.SetTokens("A1", "R1"))
	require.NoError(t, s.Put("stale_auth_blob", "x"))
	require.NoError(t, s.Put("window_layout", "wide"))

	s.ClearAll()
	s.ClearAll() // idempotent

	reopened, err := NewFileStore(path, nil)
	require.NoError(t, err)
	require.False(t, reopened.IsAuthenticated())
	require.Empty(t, reopened.Access())

	_, ok := reopened.Get("stale_auth_blob")
	require.False(t, ok)
	_, ok = reopened.Get("window_layout")
	require.True(t, ok)
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "absent.json"), nil)
	require.NoError(t, err)
	require.False(t, s.IsAuthenticated())
}

func TestFileStore_RejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path, nil)
	require.Error(t, err)
}
