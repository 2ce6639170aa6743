package session

import (
	"path/filepath"
	"testing"

	"github.com/bayue48/pia-scrap/internal/models"
	"github.com/stretchr/testify/require"
)

func TestStore_LoginPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".session.json")

	store := NewStore(path)
	tok, err := store.SetFromLogin("login-at-value")
	require.NoError(t, err)
	require.Equal(t, "login-at-value", tok.AuthToken)
	require.NotEmpty(t, tok.UserKey)

	// A second run picks the same artifacts back up instead of logging in.
	reloaded := NewStore(path)
	ok, err := reloaded.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, tok.AuthToken, reloaded.Current().AuthToken)
	require.Equal(t, tok.UserKey, reloaded.Current().UserKey)
	require.Equal(t, models.FreshnessFresh, reloaded.Current().Freshness)
}

func TestStore_LoadMissingFileIsNotAnError(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent.json"))
	ok, err := store.Load()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_EmptyTokenIsAuthFailure(t *testing.T) {
	store := NewStore("")
	_, err := store.SetFromLogin("")
	require.ErrorIs(t, err, models.ErrAuthFailure)
}

func TestStore_ExpiredTokenIsNotUsableUntilRefresh(t *testing.T) {
	store := NewStore("")
	_, err := store.SetFromLogin("tok-1")
	require.NoError(t, err)
	require.True(t, store.Current().Usable())

	store.MarkExpired()
	require.False(t, store.Current().Usable())

	_, err = store.SetFromRefresh("tok-2")
	require.NoError(t, err)
	require.True(t, store.Current().Usable())
	require.Equal(t, "tok-2", store.Current().AuthToken)
}

func TestStore_UserKeyIsStable(t *testing.T) {
	store := NewStore("")
	k1 := store.UserKey()
	k2 := store.UserKey()
	require.NotEmpty(t, k1)
	require.Equal(t, k1, k2)
}
