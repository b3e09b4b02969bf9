package clientshim

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/forgegames/platform/internal/packagestore"
	"github.com/forgegames/platform/internal/protocol"
)

// Installed describes one locally downloaded package version.
type Installed struct {
	GameName string
	Version  int
	Path     string
	Manifest packagestore.Manifest
}

// Library tracks locally downloaded packages under baseDir/<game_name>/<version>/,
// the same layout the Package Store publishes server-side, so a downloaded
// tree can be extracted directly without renaming.
type Library struct {
	baseDir string
}

// NewLibrary roots a Library at baseDir, creating it if absent.
func NewLibrary(baseDir string) (*Library, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, protocol.NewInternal("create local library directory", err)
	}
	return &Library{baseDir: baseDir}, nil
}

// Dir returns the local path a package would occupy, downloaded or not.
func (l *Library) Dir(gameName string, version int) string {
	return filepath.Join(l.baseDir, gameName, strconv.Itoa(version))
}

// LatestInstalled returns the highest locally installed version of
// gameName, or ok=false if none is present.
func (l *Library) LatestInstalled(gameName string) (version int, ok bool, err error) {
	entries, err := os.ReadDir(filepath.Join(l.baseDir, gameName))
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, protocol.NewInternal("scan local game directory", err)
	}

	found := false
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		v, convErr := strconv.Atoi(e.Name())
		if convErr != nil {
			continue
		}
		if !found || v > version {
			version = v
			found = true
		}
	}
	return version, found, nil
}

// Load reads and parses the manifest for an already-downloaded package.
func (l *Library) Load(gameName string, version int) (Installed, error) {
	dir := l.Dir(gameName, version)
	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return Installed{}, protocol.NewNotFound("package not downloaded locally")
	}
	var m packagestore.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Installed{}, protocol.NewInternal("parse local manifest", err)
	}
	return Installed{GameName: gameName, Version: version, Path: dir, Manifest: m}, nil
}

// ListInstalled scans every locally downloaded package, skipping any game
// directory whose manifest fails to parse rather than aborting the whole
// scan, matching the reference local game manager's best-effort listing.
func (l *Library) ListInstalled() ([]Installed, error) {
	gameDirs, err := os.ReadDir(l.baseDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, protocol.NewInternal("scan local library", err)
	}

	var out []Installed
	for _, gd := range gameDirs {
		if !gd.IsDir() {
			continue
		}
		versionDirs, err := os.ReadDir(filepath.Join(l.baseDir, gd.Name()))
		if err != nil {
			continue
		}
		for _, vd := range versionDirs {
			if !vd.IsDir() {
				continue
			}
			version, convErr := strconv.Atoi(vd.Name())
			if convErr != nil {
				continue
			}
			installed, loadErr := l.Load(gd.Name(), version)
			if loadErr != nil {
				continue
			}
			out = append(out, installed)
		}
	}
	return out, nil
}
