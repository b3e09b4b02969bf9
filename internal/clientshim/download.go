package clientshim

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/forgegames/platform/internal/protocol"
)

type downloadBeginRequest struct {
	GameName string `json:"game_name"`
	Version  int    `json:"version"`
}

type downloadBeginResponse struct {
	DownloadID string `json:"download_id"`
	TotalSize  int64  `json:"total_size"`
}

type downloadChunkRequest struct {
	DownloadID string `json:"download_id"`
}

type downloadChunkResponse struct {
	Data string `json:"data"`
	Done bool   `json:"done"`
}

type downloadEndRequest struct {
	DownloadID string `json:"download_id"`
}

// Download fetches (gameName, version) from the control plane in pieces
// whose size the server decides and extracts it into the Library's local
// tree, the client side of the Package Store's
// BeginDownload/DownloadChunk/EndDownload sequence.
func (l *Library) Download(ctx context.Context, c *Client, gameName string, version int) (Installed, error) {
	var begin downloadBeginResponse
	if err := c.Call(ctx, protocol.TypeDownloadBegin, downloadBeginRequest{GameName: gameName, Version: version}, &begin); err != nil {
		return Installed{}, err
	}

	tmp, err := os.CreateTemp("", "forgegames-download-*.tar.gz")
	if err != nil {
		return Installed{}, protocol.NewInternal("create temporary download file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	var received int64
	for {
		var chunk downloadChunkResponse
		if err := c.Call(ctx, protocol.TypeDownloadChunk, downloadChunkRequest{DownloadID: begin.DownloadID}, &chunk); err != nil {
			tmp.Close()
			return Installed{}, err
		}
		if chunk.Data != "" {
			raw, decErr := base64.StdEncoding.DecodeString(chunk.Data)
			if decErr != nil {
				tmp.Close()
				return Installed{}, protocol.NewInternal("decode chunk data", decErr)
			}
			if _, err := tmp.Write(raw); err != nil {
				tmp.Close()
				return Installed{}, protocol.NewInternal("write downloaded chunk", err)
			}
			received += int64(len(raw))
		}
		if chunk.Done {
			break
		}
	}
	tmp.Close()

	if err := c.Call(ctx, protocol.TypeDownloadEnd, downloadEndRequest{DownloadID: begin.DownloadID}, nil); err != nil {
		return Installed{}, err
	}

	targetDir := l.Dir(gameName, version)
	if err := os.RemoveAll(targetDir); err != nil {
		return Installed{}, protocol.NewInternal("clear stale local package directory", err)
	}
	if err := extractTarGzTo(tmpPath, targetDir); err != nil {
		return Installed{}, err
	}

	return l.Load(gameName, version)
}

// extractTarGzTo extracts a gzip-compressed tar archive into destDir,
// rejecting any member whose resolved path would escape destDir or that is
// a symlink or hardlink, the same defense the server applies to uploads.
func extractTarGzTo(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return protocol.NewInternal("open downloaded archive", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return protocol.NewInternal("downloaded archive is not valid gzip", err)
	}
	defer gz.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return protocol.NewInternal("create local package directory", err)
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return protocol.NewInternal("downloaded archive is not valid tar", err)
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

func safeJoin(root, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", protocol.NewValidation(fmt.Sprintf("archive member %q has an absolute path", name))
	}
	cleaned := filepath.Clean(filepath.Join(root, name))
	if cleaned != root && !strings.HasPrefix(cleaned, root+string(filepath.Separator)) {
		return "", protocol.NewValidation(fmt.Sprintf("archive member %q escapes the download root", name))
	}
	return cleaned, nil
}
