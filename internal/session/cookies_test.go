package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cookiesExport = `# Netscape HTTP Cookie File
# This file is generated by a browser extension.

.novelpia.com	TRUE	/	TRUE	1924992000	USERKEY	abcdef123456
#HttpOnly_.novelpia.com	TRUE	/	TRUE	1924992000	LOGINKEY	secretvalue
global.novelpia.com	FALSE	/novel	FALSE	0	view_pref	list
malformed line without tabs
`

func writeCookies(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(path, []byte(cookiesExport), 0o644))
	return path
}

func TestLoadCookiesTxt(t *testing.T) {
	cookies, err := LoadCookiesTxt(writeCookies(t))
	require.NoError(t, err)
	require.Len(t, cookies, 3)

	userkey := cookies[0]
	assert.Equal(t, ".novelpia.com", userkey.Domain)
	assert.Equal(t, "USERKEY", userkey.Name)
	assert.Equal(t, "abcdef123456", userkey.Value)
	assert.True(t, userkey.Secure)
	assert.False(t, userkey.HttpOnly)
	assert.Equal(t, int64(1924992000), userkey.Expires.Unix())

	loginkey := cookies[1]
	assert.Equal(t, "LOGINKEY", loginkey.Name)
	assert.True(t, loginkey.HttpOnly, "the #HttpOnly_ prefix marks the cookie, not a comment")

	pref := cookies[2]
	assert.Equal(t, "/novel", pref.Path)
	assert.True(t, pref.Expires.IsZero(), "zero expiry stays a session cookie")
}

func TestLoadCookiesTxt_SpaceSeparated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.txt")
	line := ".novelpia.com TRUE / TRUE 1924992000 USERKEY abcdef123456\n"
	require.NoError(t, os.WriteFile(path, []byte(line), 0o644))

	cookies, err := LoadCookiesTxt(path)
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "USERKEY", cookies[0].Name)
	assert.Equal(t, "abcdef123456", cookies[0].Value)
}

func TestLoadCookiesTxt_MissingFile(t *testing.T) {
	_, err := LoadCookiesTxt(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
