// Package review implements per-(reviewer, game, version, content) reviews,
// the download-eligibility rule, and the compensating catalog score updates.
package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/forgegames/platform/internal/catalog"
	"github.com/forgegames/platform/internal/protocol"
	"github.com/forgegames/platform/pkg/database"
)

// Review is one (reviewer, game_name, version, content) row.
type Review struct {
	Reviewer  string
	GameName  string
	Version   int
	Content   string
	Score     int
	CreatedAt time.Time
}

// Store wraps the reviews table and the download-eligibility ledger.
type Store struct {
	conn    *database.Conn
	catalog *catalog.Catalog
}

// New constructs a Store and ensures its schema exists.
func New(conn *database.Conn, cat *catalog.Catalog) (*Store, error) {
	s := &Store{conn: conn, catalog: cat}
	if err := s.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS reviews (
			reviewer VARCHAR(64) NOT NULL,
			game_name VARCHAR(128) NOT NULL,
			version INTEGER NOT NULL,
			content TEXT NOT NULL,
			score INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (reviewer, game_name, version, content)
		)
	`); err != nil {
		return fmt.Errorf("create reviews table: %w", err)
	}

	if _, err := s.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS downloads (
			username VARCHAR(64) NOT NULL,
			game_name VARCHAR(128) NOT NULL,
			version INTEGER NOT NULL,
			downloaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (username, game_name, version, downloaded_at)
		)
	`); err != nil {
		return fmt.Errorf("create downloads table: %w", err)
	}
	return nil
}

// RecordDownload appends to the eligibility ledger on a completed
// DOWNLOAD_END, the basis for review eligibility checks.
func (s *Store) RecordDownload(ctx context.Context, username, gameName string, version int) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO downloads (username, game_name, version) VALUES (?, ?, ?)`,
		username, gameName, version,
	)
	if err != nil {
		return protocol.NewInternal("record download", err)
	}
	return nil
}

// eligible reports whether username has a prior download record for
// (gameName, version).
func (s *Store) eligible(ctx context.Context, username, gameName string, version int) (bool, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM downloads WHERE username = ? AND game_name = ? AND version = ?`,
		username, gameName, version,
	).Scan(&n)
	if err != nil {
		return false, protocol.NewInternal("check download eligibility", err)
	}
	return n > 0, nil
}

// Eligible is the public eligibility check used by REVIEW.ELIGIBILITY_CHECK.
func (s *Store) Eligible(ctx context.Context, username, gameName string, version int) (bool, error) {
	return s.eligible(ctx, username, gameName, version)
}

func validScore(score int) bool { return score >= 1 && score <= 5 }

// Add creates a new review. reviewer must have a prior download record for
// (gameName, version); score must be an integer in [1, 5].
func (s *Store) Add(ctx context.Context, reviewer, gameName string, version int, content string, score int) error {
	if !validScore(score) {
		return protocol.NewValidation("score must be between 1 and 5")
	}

	ok, err := s.eligible(ctx, reviewer, gameName, version)
	if err != nil {
		return err
	}
	if !ok {
		return protocol.NewAuth("reviewer has not downloaded this game/version")
	}

	var exists int
	if err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reviews WHERE reviewer = ? AND game_name = ? AND version = ? AND content = ?`,
		reviewer, gameName, version, content,
	).Scan(&exists); err != nil {
		return protocol.NewInternal("check existing review", err)
	}
	if exists > 0 {
		return protocol.NewConflict("review already exists")
	}

	if _, err := s.conn.ExecContext(ctx,
		`INSERT INTO reviews (reviewer, game_name, version, content, score) VALUES (?, ?, ?, ?, ?)`,
		reviewer, gameName, version, content, score,
	); err != nil {
		return protocol.NewInternal("insert review", err)
	}

	return s.applyDelta(ctx, gameName, version, score, 1)
}

// Edit replaces an existing review's content/score, returning the previous
// and new score. The review row commits first, then the catalog's aggregate
// is adjusted as a second, non-atomic call.
func (s *Store) Edit(ctx context.Context, reviewer, gameName string, version int, oldContent, newContent string, newScore int) (oldScore, gotNewScore int, err error) {
	if !validScore(newScore) {
		return 0, 0, protocol.NewValidation("score must be between 1 and 5")
	}

	ok, err := s.eligible(ctx, reviewer, gameName, version)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return 0, 0, protocol.NewAuth("reviewer has not downloaded this game/version")
	}

	err = s.conn.QueryRowContext(ctx,
		`SELECT score FROM reviews WHERE reviewer = ? AND game_name = ? AND version = ? AND content = ?`,
		reviewer, gameName, version, oldContent,
	).Scan(&oldScore)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, protocol.NewNotFound("review not found")
	}
	if err != nil {
		return 0, 0, protocol.NewInternal("load review", err)
	}

	if _, err := s.conn.ExecContext(ctx,
		`UPDATE reviews SET content = ?, score = ? WHERE reviewer = ? AND game_name = ? AND version = ? AND content = ?`,
		newContent, newScore, reviewer, gameName, version, oldContent,
	); err != nil {
		return 0, 0, protocol.NewInternal("update review", err)
	}

	if err := s.applyDelta(ctx, gameName, version, newScore-oldScore, 0); err != nil {
		return 0, 0, err
	}

	return oldScore, newScore, nil
}

// Delete removes a review, returning its score.
func (s *Store) Delete(ctx context.Context, reviewer, gameName string, version int, content string) (deletedScore int, err error) {
	err = s.conn.QueryRowContext(ctx,
		`SELECT score FROM reviews WHERE reviewer = ? AND game_name = ? AND version = ? AND content = ?`,
		reviewer, gameName, version, content,
	).Scan(&deletedScore)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, protocol.NewNotFound("review not found")
	}
	if err != nil {
		return 0, protocol.NewInternal("load review", err)
	}

	if _, err := s.conn.ExecContext(ctx,
		`DELETE FROM reviews WHERE reviewer = ? AND game_name = ? AND version = ? AND content = ?`,
		reviewer, gameName, version, content,
	); err != nil {
		return 0, protocol.NewInternal("delete review", err)
	}

	if err := s.applyDelta(ctx, gameName, version, -deletedScore, -1); err != nil {
		return 0, err
	}

	return deletedScore, nil
}

func (s *Store) applyDelta(ctx context.Context, gameName string, version int, scoreDelta, countDelta int) error {
	entry, err := s.catalog.GetByNameVersion(ctx, gameName, version)
	if err != nil {
		return err
	}
	return s.catalog.ApplyScoreDelta(ctx, entry.Author, gameName, version, scoreDelta, countDelta)
}

// ListByAuthor returns every review a reviewer has submitted.
func (s *Store) ListByAuthor(ctx context.Context, reviewer string) ([]Review, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT reviewer, game_name, version, content, score, created_at FROM reviews WHERE reviewer = ? ORDER BY created_at`,
		reviewer,
	)
	if err != nil {
		return nil, protocol.NewInternal("list reviews by author", err)
	}
	return scanReviews(rows)
}

// ListByGame returns every review for a given game_name across versions.
func (s *Store) ListByGame(ctx context.Context, gameName string) ([]Review, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT reviewer, game_name, version, content, score, created_at FROM reviews WHERE game_name = ? ORDER BY created_at`,
		gameName,
	)
	if err != nil {
		return nil, protocol.NewInternal("list reviews by game", err)
	}
	return scanReviews(rows)
}

func scanReviews(rows *sql.Rows) ([]Review, error) {
	defer rows.Close()
	var out []Review
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.Reviewer, &r.GameName, &r.Version, &r.Content, &r.Score, &r.CreatedAt); err != nil {
			return nil, protocol.NewInternal("scan review row", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, protocol.NewInternal("iterate review rows", err)
	}
	return out, nil
}
