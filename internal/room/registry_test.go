package room

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgegames/platform/internal/catalog"
	"github.com/forgegames/platform/pkg/database"
)

func setupRegistry(t *testing.T) (*Registry, *catalog.Catalog) {
	t.Helper()
	conn, err := database.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	cat, err := catalog.New(conn)
	require.NoError(t, err)
	require.NoError(t, cat.Publish(context.Background(), catalog.Entry{
		Author: "alice", GameName: "snake", Version: 0, Type: catalog.TypeMulti, MaxPlayers: 2,
	}))

	return New(cat), cat
}

func TestCreateRoomResolvesLatestVersion(t *testing.T) {
	reg, _ := setupRegistry(t)

	r, err := reg.CreateRoom(context.Background(), "alice", "snake", "alice's room")
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, r.Status)
	assert.Equal(t, "alice", r.Host)
	assert.Equal(t, []string{"alice"}, r.Players)
	assert.Equal(t, 0, r.Metadata.Version)
}

func TestJoinRoomFillsPlayersThenSpectators(t *testing.T) {
	reg, _ := setupRegistry(t)
	r, err := reg.CreateRoom(context.Background(), "alice", "snake", "")
	require.NoError(t, err)

	joined, err := reg.JoinRoom("bob", r.RoomID)
	require.NoError(t, err)
	assert.Contains(t, joined.Players, "bob")

	// Room's MaxPlayers is 2 and is now full; a third joiner becomes a spectator.
	joined, err = reg.JoinRoom("carol", r.RoomID)
	require.NoError(t, err)
	assert.Contains(t, joined.Spectators, "carol")
	assert.NotContains(t, joined.Players, "carol")
}

func TestJoinRoomRejectsDuplicateMembership(t *testing.T) {
	reg, _ := setupRegistry(t)
	r, err := reg.CreateRoom(context.Background(), "alice", "snake", "")
	require.NoError(t, err)

	_, err = reg.JoinRoom("alice", r.RoomID)
	assert.Error(t, err)
}

func TestLeaveRoomPromotesNextPlayerToHost(t *testing.T) {
	reg, _ := setupRegistry(t)
	r, err := reg.CreateRoom(context.Background(), "alice", "snake", "")
	require.NoError(t, err)
	_, err = reg.JoinRoom("bob", r.RoomID)
	require.NoError(t, err)

	after, err := reg.LeaveRoom("alice", r.RoomID)
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, "bob", after.Host)
	assert.NotContains(t, after.Players, "alice")
}

func TestLeaveRoomPromotesSpectatorWhenNoPlayersRemain(t *testing.T) {
	reg, _ := setupRegistry(t)
	r, err := reg.CreateRoom(context.Background(), "alice", "snake", "")
	require.NoError(t, err)
	_, err = reg.JoinRoom("bob", r.RoomID) // fills the 2-player room
	require.NoError(t, err)
	_, err = reg.JoinRoom("carol", r.RoomID) // becomes spectator
	require.NoError(t, err)

	_, err = reg.LeaveRoom("bob", r.RoomID)
	require.NoError(t, err)

	after, err := reg.LeaveRoom("alice", r.RoomID)
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, "carol", after.Host)
	assert.Equal(t, []string{"carol"}, after.Players)
	assert.Empty(t, after.Spectators)
}

func TestLeaveRoomDestroysRoomWhenEmpty(t *testing.T) {
	reg, _ := setupRegistry(t)
	r, err := reg.CreateRoom(context.Background(), "alice", "snake", "")
	require.NoError(t, err)

	after, err := reg.LeaveRoom("alice", r.RoomID)
	require.NoError(t, err)
	assert.Nil(t, after)

	_, err = reg.GetRoom(r.RoomID)
	assert.Error(t, err, "destroyed room should no longer be retrievable")
}

func TestPrepareLaunchRequiresHostAndAllReady(t *testing.T) {
	reg, _ := setupRegistry(t)
	r, err := reg.CreateRoom(context.Background(), "alice", "snake", "")
	require.NoError(t, err)
	_, err = reg.JoinRoom("bob", r.RoomID)
	require.NoError(t, err)

	_, err = reg.PrepareLaunch("alice", r.RoomID)
	assert.Error(t, err, "bob is not yet ready")

	_, err = reg.PrepareLaunch("bob", r.RoomID)
	assert.Error(t, err, "only the host may start the game")

	_, err = reg.SetReady("bob", r.RoomID, true)
	require.NoError(t, err)

	snap, err := reg.PrepareLaunch("alice", r.RoomID)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, snap.Status)
}

func TestCompleteLaunchAndHeartbeatLifecycle(t *testing.T) {
	reg, _ := setupRegistry(t)
	r, err := reg.CreateRoom(context.Background(), "alice", "snake", "")
	require.NoError(t, err)

	inGame, err := reg.CompleteLaunch(r.RoomID, 20001, "client-tok", "report-tok", "match-1", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusInGame, inGame.Status)

	require.NoError(t, reg.RecordHeartbeat(r.RoomID, "match-1", "report-tok"))

	err = reg.RecordHeartbeat(r.RoomID, "match-1", "wrong-token")
	assert.Error(t, err)

	require.NoError(t, reg.Terminate(r.RoomID, "match-1", "report-tok", "match_end"))
	final, err := reg.GetRoom(r.RoomID)
	require.NoError(t, err)
	assert.Equal(t, StatusTerminated, final.Status)
	assert.Equal(t, "match_end", final.Reason)
}

func TestAbandonLaunchRevertsToWaiting(t *testing.T) {
	reg, _ := setupRegistry(t)
	r, err := reg.CreateRoom(context.Background(), "alice", "snake", "")
	require.NoError(t, err)

	_, err = reg.CompleteLaunch(r.RoomID, 20001, "client-tok", "report-tok", "match-1", nil)
	require.NoError(t, err)

	reg.AbandonLaunch(r.RoomID)

	snap, err := reg.GetRoom(r.RoomID)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, snap.Status)
	assert.Zero(t, snap.Port)
}
