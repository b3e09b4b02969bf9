// Package packagestore implements the chunked resumable upload/download
// protocol for game packages: staged tar.gz extraction with path-traversal
// defense, manifest validation, and atomic publish into the catalog's
// storage tree.
package packagestore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/forgegames/platform/internal/catalog"
	"github.com/forgegames/platform/internal/protocol"
	"github.com/forgegames/platform/pkg/config"
)

// uploadSession tracks one in-flight UPLOAD_BEGIN..UPLOAD_END exchange.
type uploadSession struct {
	mu       sync.Mutex
	author   string
	expected ExpectedMetadata
	file     *os.File
	tmpPath  string
	nextSeq  int
	received int64
	maxBytes int64
}

// Store is the Package Store: it owns in-flight upload and download
// sessions and the base directory packages are published under.
type Store struct {
	baseDir   string
	chunkSize int
	maxUpload int64
	catalog   *catalog.Catalog

	mu           sync.Mutex
	uploads      map[string]*uploadSession
	downloads    map[string]*downloadSession
	onPublished  func(ctx context.Context, entry catalog.Entry)
	onDownloaded func(ctx context.Context, username, gameName string, version int)
}

// New constructs a Store rooted at cfg.BaseDir.
func New(cfg config.StorageConfig, cat *catalog.Catalog) (*Store, error) {
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage base directory: %w", err)
	}
	return &Store{
		baseDir:   cfg.BaseDir,
		chunkSize: cfg.ChunkSize,
		maxUpload: cfg.MaxUploadSize,
		catalog:   cat,
		uploads:   make(map[string]*uploadSession),
		downloads: make(map[string]*downloadSession),
	}, nil
}

// OnPublished registers a callback invoked after a package is successfully
// published. No caller in this repository registers one.
func (s *Store) OnPublished(fn func(ctx context.Context, entry catalog.Entry)) {
	s.onPublished = fn
}

func newUploadID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// BeginUpload opens a new staging file for author and returns an opaque
// upload ID the caller must present on every subsequent UPLOAD_CHUNK and
// UPLOAD_END call.
func (s *Store) BeginUpload(ctx context.Context, author string, expected ExpectedMetadata) (string, error) {
	if author == "" {
		return "", protocol.NewValidation("author is required")
	}
	if expected.GameName == "" {
		return "", protocol.NewValidation("game_name is required")
	}
	if !catalog.ValidType(expected.Type) {
		return "", protocol.NewValidation("type must be one of CLI, GUI, 2P, Multi")
	}

	id, err := newUploadID()
	if err != nil {
		return "", protocol.NewInternal("generate upload id", err)
	}

	stagingDir := filepath.Join(s.baseDir, ".staging")
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return "", protocol.NewInternal("create staging directory", err)
	}

	tmpPath := filepath.Join(stagingDir, id+".tar.gz")
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", protocol.NewInternal("create staging file", err)
	}

	sess := &uploadSession{
		author:   author,
		expected: expected,
		file:     f,
		tmpPath:  tmpPath,
		nextSeq:  0,
		maxBytes: s.maxUpload,
	}

	s.mu.Lock()
	s.uploads[id] = sess
	s.mu.Unlock()

	return id, nil
}

// UploadChunk appends data to uploadID's staging file. seq must equal the
// number of chunks already accepted; any gap or replay is rejected, per
// the strict sequence-number invariant.
func (s *Store) UploadChunk(ctx context.Context, uploadID string, seq int, data []byte) error {
	sess, err := s.session(uploadID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.file == nil {
		return protocol.NewConflict("upload already finalized")
	}
	if seq != sess.nextSeq {
		return protocol.NewValidation(fmt.Sprintf("expected chunk sequence %d, got %d", sess.nextSeq, seq))
	}
	if sess.maxBytes > 0 && sess.received+int64(len(data)) > sess.maxBytes {
		return protocol.NewValidation("upload exceeds maximum package size")
	}

	if _, err := sess.file.Write(data); err != nil {
		return protocol.NewInternal("write chunk", err)
	}
	sess.received += int64(len(data))
	sess.nextSeq++
	return nil
}

// EndUpload finalizes the staged archive: extracts it, validates and
// cross-checks the manifest, resolves the published version, and performs
// the atomic publish. The staging tree is always removed, on success or
// failure.
func (s *Store) EndUpload(ctx context.Context, uploadID string) (catalog.Entry, error) {
	sess, err := s.session(uploadID)
	if err != nil {
		return catalog.Entry{}, err
	}

	sess.mu.Lock()
	if sess.file == nil {
		sess.mu.Unlock()
		return catalog.Entry{}, protocol.NewConflict("upload already finalized")
	}
	if err := sess.file.Close(); err != nil {
		sess.mu.Unlock()
		return catalog.Entry{}, protocol.NewInternal("close staging file", err)
	}
	sess.file = nil
	tmpPath := sess.tmpPath
	author := sess.author
	expected := sess.expected
	sess.mu.Unlock()

	s.mu.Lock()
	delete(s.uploads, uploadID)
	s.mu.Unlock()

	defer os.Remove(tmpPath)

	extractDir := tmpPath + ".d"
	defer os.RemoveAll(extractDir)

	if err := extractTarGz(tmpPath, extractDir); err != nil {
		return catalog.Entry{}, err
	}

	_, manifestData, err := findManifest(extractDir)
	if err != nil {
		return catalog.Entry{}, err
	}

	m, err := parseManifest(manifestData)
	if err != nil {
		return catalog.Entry{}, err
	}
	if err := ValidateManifest(m, expected); err != nil {
		return catalog.Entry{}, err
	}

	version, err := s.catalog.NextVersion(ctx, author, m.GameName, catalog.Type(m.Type))
	if err != nil {
		return catalog.Entry{}, err
	}
	if m.Version != "" {
		declared, err := strconv.Atoi(m.Version)
		if err != nil {
			return catalog.Entry{}, protocol.NewValidation("manifest version does not match the next catalog-assigned version")
		}
		if declared < version {
			return catalog.Entry{}, protocol.NewConflict("target version already exists")
		}
		if declared != version {
			return catalog.Entry{}, protocol.NewConflict("manifest version does not match the next catalog-assigned version")
		}
	}

	targetDir := filepath.Join(s.baseDir, m.GameName, strconv.Itoa(version))
	if err := publishAtomic(extractDir, targetDir); err != nil {
		return catalog.Entry{}, err
	}

	entry := catalog.Entry{
		Author:      author,
		GameName:    m.GameName,
		Version:     version,
		Type:        catalog.Type(m.Type),
		MaxPlayers:  m.MaxPlayers,
		Description: m.Description,
	}
	if err := s.catalog.Publish(ctx, entry); err != nil {
		// Best-effort rollback of the published directory; the staging tree
		// itself is already gone via the rename.
		os.RemoveAll(targetDir)
		return catalog.Entry{}, err
	}

	if s.onPublished != nil {
		s.onPublished(ctx, entry)
	}

	return entry, nil
}

// AbortUpload discards an in-flight upload without publishing it. Neither
// the dispatch table nor the transport calls it, so an upload left unfinished
// by a disconnect keeps its session until the process exits.
func (s *Store) AbortUpload(uploadID string) {
	s.mu.Lock()
	sess, ok := s.uploads[uploadID]
	if ok {
		delete(s.uploads, uploadID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	sess.mu.Lock()
	if sess.file != nil {
		sess.file.Close()
	}
	sess.mu.Unlock()
	os.Remove(sess.tmpPath)
}

func (s *Store) session(uploadID string) (*uploadSession, error) {
	s.mu.Lock()
	sess, ok := s.uploads[uploadID]
	s.mu.Unlock()
	if !ok {
		return nil, protocol.NewNotFound("unknown upload id")
	}
	return sess, nil
}

// PackageDir returns the published directory for a (game_name, version).
func (s *Store) PackageDir(gameName string, version int) string {
	return filepath.Join(s.baseDir, gameName, strconv.Itoa(version))
}

// LoadManifest reads and parses the manifest.json at the root of a
// published package tree, used by the launcher to render launch commands.
func (s *Store) LoadManifest(gameName string, version int) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.PackageDir(gameName, version), "manifest.json"))
	if err != nil {
		return Manifest{}, protocol.NewInternal("read published manifest", err)
	}
	return parseManifest(data)
}
