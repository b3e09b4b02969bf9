package packagestore

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/forgegames/platform/internal/protocol"
)

// safeJoin resolves name against root and rejects any result that would
// escape root, defending against ".."- and absolute-path-based traversal.
func safeJoin(root, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", protocol.NewValidation(fmt.Sprintf("archive member %q has an absolute path", name))
	}
	cleaned := filepath.Clean(filepath.Join(root, name))
	if cleaned != root && !strings.HasPrefix(cleaned, root+string(filepath.Separator)) {
		return "", protocol.NewValidation(fmt.Sprintf("archive member %q escapes the staging root", name))
	}
	return cleaned, nil
}

// extractTarGz extracts a gzip-compressed tar archive into destDir in a
// single forward pass, validating each member's resolved path before
// writing it so no file is ever created outside destDir even transiently.
// Symlink and hardlink members are rejected outright as a second,
// independent escape vector.
func extractTarGz(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return protocol.NewInternal("open archive", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return protocol.NewValidationf("archive is not valid gzip", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return protocol.NewValidationf("archive is not valid tar", err)
		}

		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return protocol.NewInternal("create directory", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return protocol.NewInternal("create parent directory", err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
			if err != nil {
				return protocol.NewInternal("create extracted file", err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return protocol.NewInternal("write extracted file", err)
			}
			out.Close()
		case tar.TypeSymlink, tar.TypeLink:
			return protocol.NewValidation(fmt.Sprintf("archive member %q: symlinks are not permitted", hdr.Name))
		default:
			// device files, fifos, etc: skipped
		}
	}
}

// findManifest locates the single manifest.json under root. Zero or more
// than one match fails the upload, per the Package Store's ambiguity rule.
func findManifest(root string) (string, []byte, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == "manifest.json" {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return "", nil, protocol.NewInternal("walk staging tree", err)
	}

	if len(found) == 0 {
		return "", nil, protocol.NewValidation("no manifest.json found in package")
	}
	if len(found) > 1 {
		return "", nil, protocol.NewValidation("ambiguous manifest.json: multiple found in package")
	}

	data, err := os.ReadFile(found[0])
	if err != nil {
		return "", nil, protocol.NewInternal("read manifest.json", err)
	}
	return found[0], data, nil
}

// publishAtomic renames stagingDir into targetDir, the only acceptable
// publication mechanism per the Design Notes: a copy-then-delete would
// leave a half-published tree observable to the catalog on crash.
func publishAtomic(stagingDir, targetDir string) error {
	if _, err := os.Stat(targetDir); err == nil {
		return protocol.NewConflict("target version already exists")
	} else if !os.IsNotExist(err) {
		return protocol.NewInternal("stat target directory", err)
	}

	if err := os.MkdirAll(filepath.Dir(targetDir), 0o755); err != nil {
		return protocol.NewInternal("create target parent directory", err)
	}

	if err := os.Rename(stagingDir, targetDir); err != nil {
		return protocol.NewInternal("publish package", err)
	}
	return nil
}
