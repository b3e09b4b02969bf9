package packagestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func publishSnake(t *testing.T, store *Store) {
	t.Helper()
	archive := buildPackageArchive(t, validManifest())
	_, err := uploadArchive(t, store, "alice", ExpectedMetadata{GameName: "snake", Type: "CLI"}, archive, 5)
	require.NoError(t, err)
}

func TestDownloadRejectsUnknownPackage(t *testing.T) {
	store, _ := setupStore(t)
	_, _, err := store.BeginDownload(context.Background(), "bob", "snake", 0)
	assert.Error(t, err)
}

func TestDownloadStreamsFullArchiveInChunks(t *testing.T) {
	store, _ := setupStore(t)
	publishSnake(t, store)
	ctx := context.Background()

	downloadID, totalSize, err := store.BeginDownload(ctx, "bob", "snake", 0)
	require.NoError(t, err)
	assert.Greater(t, totalSize, int64(0))

	var received int64
	for {
		data, done, err := store.DownloadChunk(ctx, downloadID)
		require.NoError(t, err)
		received += int64(len(data))
		if done {
			break
		}
	}
	assert.Equal(t, totalSize, received)

	require.NoError(t, store.EndDownload(ctx, downloadID))
}

func TestDownloadChunkRejectsUnknownDownloadID(t *testing.T) {
	store, _ := setupStore(t)
	_, _, err := store.DownloadChunk(context.Background(), "bogus-id")
	assert.Error(t, err)
}

func TestEndDownloadInvokesOnDownloadedOnlyWhenComplete(t *testing.T) {
	store, _ := setupStore(t)
	publishSnake(t, store)
	ctx := context.Background()

	var calls int
	store.OnDownloaded(func(ctx context.Context, username, gameName string, version int) {
		calls++
		assert.Equal(t, "bob", username)
		assert.Equal(t, "snake", gameName)
		assert.Equal(t, 0, version)
	})

	downloadID, _, err := store.BeginDownload(ctx, "bob", "snake", 0)
	require.NoError(t, err)
	for {
		_, done, err := store.DownloadChunk(ctx, downloadID)
		require.NoError(t, err)
		if done {
			break
		}
	}
	require.NoError(t, store.EndDownload(ctx, downloadID))
	assert.Equal(t, 1, calls)
}

func TestEndDownloadSkipsCallbackWhenAbortedEarly(t *testing.T) {
	store, _ := setupStore(t)
	publishSnake(t, store)
	ctx := context.Background()

	var calls int
	store.OnDownloaded(func(ctx context.Context, username, gameName string, version int) {
		calls++
	})

	downloadID, _, err := store.BeginDownload(ctx, "bob", "snake", 0)
	require.NoError(t, err)

	// End the download before ever reading a chunk to completion.
	require.NoError(t, store.EndDownload(ctx, downloadID))
	assert.Equal(t, 0, calls)
}

func TestEndDownloadRejectsUnknownDownloadID(t *testing.T) {
	store, _ := setupStore(t)
	err := store.EndDownload(context.Background(), "bogus-id")
	assert.Error(t, err)
}
