package packagestore

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgegames/platform/internal/catalog"
	"github.com/forgegames/platform/pkg/config"
	"github.com/forgegames/platform/pkg/database"
)

func setupStore(t *testing.T) (*Store, *catalog.Catalog) {
	t.Helper()
	conn, err := database.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	cat, err := catalog.New(conn)
	require.NoError(t, err)

	store, err := New(config.StorageConfig{
		BaseDir:       t.TempDir(),
		ChunkSize:     8,
		MaxUploadSize: 0,
	}, cat)
	require.NoError(t, err)
	return store, cat
}

// buildPackageArchive returns a gzip-compressed tar archive containing a
// single manifest.json built from m, matching the shape BeginUpload's
// caller uploads chunk-by-chunk.
func buildPackageArchive(t *testing.T, m Manifest) []byte {
	t.Helper()
	data, err := json.Marshal(m)
	require.NoError(t, err)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: "manifest.json",
		Mode: 0o644,
		Size: int64(len(data)),
	}))
	_, err = tw.Write(data)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// uploadArchive drives a full BeginUpload/UploadChunk/EndUpload sequence
// for archive, splitting it into chunkSize-byte chunks.
func uploadArchive(t *testing.T, s *Store, author string, expected ExpectedMetadata, archive []byte, chunkSize int) (catalog.Entry, error) {
	t.Helper()
	ctx := context.Background()
	uploadID, err := s.BeginUpload(ctx, author, expected)
	require.NoError(t, err)

	seq := 0
	for i := 0; i < len(archive); i += chunkSize {
		end := i + chunkSize
		if end > len(archive) {
			end = len(archive)
		}
		require.NoError(t, s.UploadChunk(ctx, uploadID, seq, archive[i:end]))
		seq++
	}

	return s.EndUpload(ctx, uploadID)
}
