package packagestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadEndToEndPublishesPackage(t *testing.T) {
	store, cat := setupStore(t)
	archive := buildPackageArchive(t, validManifest())

	entry, err := uploadArchive(t, store, "alice", ExpectedMetadata{GameName: "snake", Type: "CLI"}, archive, 5)
	require.NoError(t, err)
	assert.Equal(t, "snake", entry.GameName)
	assert.Equal(t, 0, entry.Version)

	got, err := cat.GetDetails(context.Background(), "alice", "snake", 0)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Author)
}

func TestUploadChunkRejectsOutOfOrderSequence(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	uploadID, err := store.BeginUpload(ctx, "alice", ExpectedMetadata{GameName: "snake", Type: "CLI"})
	require.NoError(t, err)

	err = store.UploadChunk(ctx, uploadID, 1, []byte("chunk"))
	assert.Error(t, err, "chunk 1 before chunk 0 must be rejected")
}

func TestUploadChunkRejectsUnknownUploadID(t *testing.T) {
	store, _ := setupStore(t)
	err := store.UploadChunk(context.Background(), "bogus-id", 0, []byte("x"))
	assert.Error(t, err)
}

func TestUploadChunkEnforcesMaxUploadSize(t *testing.T) {
	store, _ := setupStore(t)
	store.maxUpload = 4
	ctx := context.Background()

	uploadID, err := store.BeginUpload(ctx, "alice", ExpectedMetadata{GameName: "snake", Type: "CLI"})
	require.NoError(t, err)

	err = store.UploadChunk(ctx, uploadID, 0, []byte("too many bytes"))
	assert.Error(t, err)
}

func TestEndUploadRejectsManifestMetadataMismatch(t *testing.T) {
	store, _ := setupStore(t)
	archive := buildPackageArchive(t, validManifest())

	_, err := uploadArchive(t, store, "alice", ExpectedMetadata{GameName: "othergame", Type: "CLI"}, archive, 5)
	assert.Error(t, err)
}

func TestEndUploadRejectsDuplicateVersion(t *testing.T) {
	store, _ := setupStore(t)
	archive := buildPackageArchive(t, validManifest())

	_, err := uploadArchive(t, store, "alice", ExpectedMetadata{GameName: "snake", Type: "CLI"}, archive, 5)
	require.NoError(t, err)

	// Same declared version "0" collides with the already-published version.
	_, err = uploadArchive(t, store, "alice", ExpectedMetadata{GameName: "snake", Type: "CLI"}, archive, 5)
	assert.Error(t, err)
}

func TestEndUploadRejectsUnknownUploadID(t *testing.T) {
	store, _ := setupStore(t)
	_, err := store.EndUpload(context.Background(), "bogus-id")
	assert.Error(t, err)
}

func TestAbortUploadDiscardsSession(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	uploadID, err := store.BeginUpload(ctx, "alice", ExpectedMetadata{GameName: "snake", Type: "CLI"})
	require.NoError(t, err)
	require.NoError(t, store.UploadChunk(ctx, uploadID, 0, []byte("partial")))

	store.AbortUpload(uploadID)

	err = store.UploadChunk(ctx, uploadID, 1, []byte("more"))
	assert.Error(t, err, "aborted upload id must no longer be recognized")
}

func TestLoadManifestReadsPublishedManifest(t *testing.T) {
	store, _ := setupStore(t)
	archive := buildPackageArchive(t, validManifest())

	_, err := uploadArchive(t, store, "alice", ExpectedMetadata{GameName: "snake", Type: "CLI"}, archive, 5)
	require.NoError(t, err)

	m, err := store.LoadManifest("snake", 0)
	require.NoError(t, err)
	assert.Equal(t, "snake", m.GameName)
}
