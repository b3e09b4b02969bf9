package clientshim

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgegames/platform/internal/packagestore"
)

func writeLocalManifest(t *testing.T, lib *Library, gameName string, version int, m packagestore.Manifest) {
	t.Helper()
	dir := lib.Dir(gameName, version)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0o644))
}

func TestLibraryLatestInstalledReturnsHighestVersion(t *testing.T) {
	lib, err := NewLibrary(t.TempDir())
	require.NoError(t, err)

	m := packagestore.Manifest{GameName: "snake", Type: "CLI", MaxPlayers: 1, Description: "d"}
	writeLocalManifest(t, lib, "snake", 0, m)
	writeLocalManifest(t, lib, "snake", 2, m)
	writeLocalManifest(t, lib, "snake", 1, m)

	v, ok, err := lib.LatestInstalled("snake")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestLibraryLatestInstalledMissingGame(t *testing.T) {
	lib, err := NewLibrary(t.TempDir())
	require.NoError(t, err)

	_, ok, err := lib.LatestInstalled("nonexistent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLibraryLoadReadsManifest(t *testing.T) {
	lib, err := NewLibrary(t.TempDir())
	require.NoError(t, err)
	m := packagestore.Manifest{GameName: "snake", Type: "CLI", MaxPlayers: 1, Description: "d"}
	writeLocalManifest(t, lib, "snake", 0, m)

	got, err := lib.Load("snake", 0)
	require.NoError(t, err)
	assert.Equal(t, "snake", got.Manifest.GameName)
}

func TestLibraryLoadMissingPackage(t *testing.T) {
	lib, err := NewLibrary(t.TempDir())
	require.NoError(t, err)
	_, err = lib.Load("ghost", 0)
	assert.Error(t, err)
}

func TestLibraryListInstalledSkipsUnparsableManifests(t *testing.T) {
	lib, err := NewLibrary(t.TempDir())
	require.NoError(t, err)
	m := packagestore.Manifest{GameName: "snake", Type: "CLI", MaxPlayers: 1, Description: "d"}
	writeLocalManifest(t, lib, "snake", 0, m)

	badDir := lib.Dir("broken", 0)
	require.NoError(t, os.MkdirAll(badDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(badDir, "manifest.json"), []byte("not json"), 0o644))

	got, err := lib.ListInstalled()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "snake", got[0].GameName)
}
