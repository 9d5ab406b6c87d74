package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AfterPacket/secure-blog-cms/internal/security"
)

func newTestUserStore(t *testing.T) *UserStore {
	t.Helper()
	return NewUserStore(t.TempDir(), security.NewPasswordVault())
}

func TestUserCreateAndLookup(t *testing.T) {
	store := newTestUserStore(t)

	require.NoError(t, store.Create("alice", "S3cret!pass", "author"))
	assert.True(t, store.Exists("alice"))

	user, err := store.Lookup("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "author", user.Role)
	assert.Contains(t, user.PasswordHash, "$argon2id$")
}

func TestUserCreateDuplicate(t *testing.T) {
	store := newTestUserStore(t)

	require.NoError(t, store.Create("bob", "pw12345678", ""))
	var verr *ValidationError
	require.ErrorAs(t, store.Create("bob", "other", "editor"), &verr)
	assert.Equal(t, "User already exists", verr.Message)

	// Empty role defaults to author.
	user, err := store.Lookup("bob")
	require.NoError(t, err)
	assert.Equal(t, "author", user.Role)
}

func TestUserLookupUnknown(t *testing.T) {
	store := newTestUserStore(t)
	_, err := store.Lookup("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUsernameTraversalNeutralized(t *testing.T) {
	store := newTestUserStore(t)

	// Path characters vanish during sanitization, so this resolves to the
	// plain "etcpasswd" record, not a path outside the directory.
	require.NoError(t, store.Create("../../etc/passwd", "pw12345678", ""))
	user, err := store.Lookup("../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "etcpasswd", user.Username)

	var verr *ValidationError
	require.ErrorAs(t, store.Create("///", "pw12345678", ""), &verr)
}

func TestAllRedactsHashes(t *testing.T) {
	store := newTestUserStore(t)

	require.NoError(t, store.Create("zoe", "pw12345678", "editor"))
	require.NoError(t, store.Create("adam", "pw12345678", "author"))

	users, err := store.All()
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "adam", users[0].Username)
	for _, u := range users {
		assert.Empty(t, u.PasswordHash)
	}
}
