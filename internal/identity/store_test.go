package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgegames/platform/pkg/database"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	conn, err := database.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store, err := New(conn, testLogger(), ArgonParams{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 16})
	require.NoError(t, err)
	return store
}

func TestRegisterReturnsValidSessionToken(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	token, err := store.Register(ctx, "alice", "hunter2", RolePlayer)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	username, role, err := store.Validate(token, "")
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
	assert.Equal(t, RolePlayer, role)
}

func TestRegisterDuplicateUsernameConflicts(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	_, err := store.Register(ctx, "alice", "hunter2", RolePlayer)
	require.NoError(t, err)

	_, err = store.Register(ctx, "alice", "anotherpass", RolePlayer)
	require.Error(t, err)
}

func TestSameUsernameDifferentRolesAreDistinctIdentities(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	_, err := store.Register(ctx, "alice", "hunter2", RolePlayer)
	require.NoError(t, err)
	_, err = store.Register(ctx, "alice", "devpass", RoleDeveloper)
	require.NoError(t, err)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	_, err := store.Register(ctx, "alice", "hunter2", RolePlayer)
	require.NoError(t, err)
	_ = store.Logout(mustToken(t, store, "alice"))

	_, err = store.Login(ctx, "alice", "wrongpass", RolePlayer)
	assert.Error(t, err)
}

func TestDuplicateLoginRejected(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	_, err := store.Register(ctx, "alice", "hunter2", RolePlayer)
	require.NoError(t, err)

	// Registration already opened a session; a second login must be rejected
	// until the first is explicitly logged out.
	_, err = store.Login(ctx, "alice", "hunter2", RolePlayer)
	assert.Error(t, err)
}

func TestLogoutThenLoginSucceeds(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	token, err := store.Register(ctx, "alice", "hunter2", RolePlayer)
	require.NoError(t, err)

	assert.True(t, store.Logout(token))
	assert.False(t, store.Logout(token), "second logout of the same token is a no-op")

	newToken, err := store.Login(ctx, "alice", "hunter2", RolePlayer)
	require.NoError(t, err)
	assert.NotEqual(t, token, newToken)
}

func TestValidateRoleMismatch(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	token, err := store.Register(ctx, "alice", "hunter2", RolePlayer)
	require.NoError(t, err)

	_, _, err = store.Validate(token, RoleDeveloper)
	assert.Error(t, err)
}

func TestListOnlineFiltersByRole(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	_, err := store.Register(ctx, "alice", "hunter2", RolePlayer)
	require.NoError(t, err)
	_, err = store.Register(ctx, "bob", "devpass", RoleDeveloper)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"alice"}, store.ListOnline(RolePlayer))
	assert.Equal(t, 2, store.OnlineCount())
}

func mustToken(t *testing.T, store *Store, username string) string {
	t.Helper()
	store.mu.RLock()
	defer store.mu.RUnlock()
	for token, sess := range store.sessions {
		if sess.username == username {
			return token
		}
	}
	t.Fatalf("no active session for %s", username)
	return ""
}
