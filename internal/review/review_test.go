package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgegames/platform/internal/catalog"
	"github.com/forgegames/platform/pkg/database"
)

func setupReviewStore(t *testing.T) (*Store, *catalog.Catalog) {
	t.Helper()
	conn, err := database.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	cat, err := catalog.New(conn)
	require.NoError(t, err)
	require.NoError(t, cat.Publish(context.Background(), catalog.Entry{
		Author: "alice", GameName: "snake", Version: 0, Type: catalog.TypeCLI, MaxPlayers: 1,
	}))

	store, err := New(conn, cat)
	require.NoError(t, err)
	return store, cat
}

func TestAddRequiresPriorDownload(t *testing.T) {
	ctx := context.Background()
	store, _ := setupReviewStore(t)

	err := store.Add(ctx, "bob", "snake", 0, "great game", 5)
	assert.Error(t, err, "bob never downloaded snake")
}

func TestAddSucceedsAfterDownloadAndUpdatesAggregate(t *testing.T) {
	ctx := context.Background()
	store, cat := setupReviewStore(t)

	require.NoError(t, store.RecordDownload(ctx, "bob", "snake", 0))
	require.NoError(t, store.Add(ctx, "bob", "snake", 0, "great game", 5))

	e, err := cat.GetDetails(ctx, "alice", "snake", 0)
	require.NoError(t, err)
	assert.Equal(t, 5, e.ScoreSum)
	assert.Equal(t, 1, e.ReviewCount)
}

func TestAddRejectsInvalidScore(t *testing.T) {
	ctx := context.Background()
	store, _ := setupReviewStore(t)
	require.NoError(t, store.RecordDownload(ctx, "bob", "snake", 0))

	err := store.Add(ctx, "bob", "snake", 0, "meh", 7)
	assert.Error(t, err)
}

func TestAddDuplicateContentConflicts(t *testing.T) {
	ctx := context.Background()
	store, _ := setupReviewStore(t)
	require.NoError(t, store.RecordDownload(ctx, "bob", "snake", 0))
	require.NoError(t, store.Add(ctx, "bob", "snake", 0, "great game", 5))

	err := store.Add(ctx, "bob", "snake", 0, "great game", 4)
	assert.Error(t, err)
}

func TestEditAdjustsAggregateByDelta(t *testing.T) {
	ctx := context.Background()
	store, cat := setupReviewStore(t)
	require.NoError(t, store.RecordDownload(ctx, "bob", "snake", 0))
	require.NoError(t, store.Add(ctx, "bob", "snake", 0, "great game", 5))

	oldScore, newScore, err := store.Edit(ctx, "bob", "snake", 0, "great game", "actually mediocre", 2)
	require.NoError(t, err)
	assert.Equal(t, 5, oldScore)
	assert.Equal(t, 2, newScore)

	e, err := cat.GetDetails(ctx, "alice", "snake", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, e.ScoreSum)
	assert.Equal(t, 1, e.ReviewCount)
}

func TestDeleteRemovesReviewAndAggregate(t *testing.T) {
	ctx := context.Background()
	store, cat := setupReviewStore(t)
	require.NoError(t, store.RecordDownload(ctx, "bob", "snake", 0))
	require.NoError(t, store.Add(ctx, "bob", "snake", 0, "great game", 5))

	deleted, err := store.Delete(ctx, "bob", "snake", 0, "great game")
	require.NoError(t, err)
	assert.Equal(t, 5, deleted)

	e, err := cat.GetDetails(ctx, "alice", "snake", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, e.ScoreSum)
	assert.Equal(t, 0, e.ReviewCount)
}

func TestEligibleReflectsDownloadLedger(t *testing.T) {
	ctx := context.Background()
	store, _ := setupReviewStore(t)

	ok, err := store.Eligible(ctx, "bob", "snake", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.RecordDownload(ctx, "bob", "snake", 0))

	ok, err = store.Eligible(ctx, "bob", "snake", 0)
	require.NoError(t, err)
	assert.True(t, ok)
}
