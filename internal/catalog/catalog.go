// Package catalog is the relational index of published game packages: it
// resolves "latest version", tracks aggregate review scores, and is the
// authority consulted by the Package Store, Room Registry, and Review Store.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/forgegames/platform/internal/protocol"
	"github.com/forgegames/platform/pkg/database"
)

// Type is the closed set of package types the manifest schema accepts.
type Type string

const (
	TypeCLI   Type = "CLI"
	TypeGUI   Type = "GUI"
	Type2P    Type = "2P"
	TypeMulti Type = "Multi"
)

// ValidType reports whether t is a member of the closed type set.
func ValidType(t string) bool {
	switch Type(t) {
	case TypeCLI, TypeGUI, Type2P, TypeMulti:
		return true
	default:
		return false
	}
}

// Entry is one published (author, game_name, version, type) row.
type Entry struct {
	Author      string
	GameName    string
	Version     int
	Type        Type
	MaxPlayers  int
	Description string
	ScoreSum    int
	ReviewCount int
}

// Catalog wraps the games table.
type Catalog struct {
	conn *database.Conn
}

// New constructs a Catalog and ensures its schema exists.
func New(conn *database.Conn) (*Catalog, error) {
	c := &Catalog{conn: conn}
	if err := c.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) ensureSchema(ctx context.Context) error {
	_, err := c.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS games (
			author VARCHAR(64) NOT NULL,
			game_name VARCHAR(128) NOT NULL,
			version INTEGER NOT NULL,
			type VARCHAR(16) NOT NULL,
			max_players INTEGER NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			score_sum INTEGER NOT NULL DEFAULT 0,
			review_count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (author, game_name, type, version)
		)
	`)
	if err != nil {
		return fmt.Errorf("create games table: %w", err)
	}
	return nil
}

// NextVersion returns the version that a new publication of
// (author, game_name, type) should receive: 0 for the first publication,
// otherwise one more than the current maximum.
func (c *Catalog) NextVersion(ctx context.Context, author, gameName string, t Type) (int, error) {
	var maxVersion sql.NullInt64
	err := c.conn.QueryRowContext(ctx,
		`SELECT MAX(version) FROM games WHERE author = ? AND game_name = ? AND type = ?`,
		author, gameName, string(t),
	).Scan(&maxVersion)
	if err != nil {
		return 0, protocol.NewInternal("resolve next version", err)
	}
	if !maxVersion.Valid {
		return 0, nil
	}
	return int(maxVersion.Int64) + 1, nil
}

// Publish inserts a new catalog row. Fails with Conflict if the
// (author, game_name, type, version) key already exists.
func (c *Catalog) Publish(ctx context.Context, e Entry) error {
	if e.MaxPlayers <= 0 {
		return protocol.NewValidation("max_players must be positive")
	}
	if !ValidType(string(e.Type)) {
		return protocol.NewValidation("type must be one of CLI, GUI, 2P, Multi")
	}

	var exists int
	err := c.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM games WHERE author = ? AND game_name = ? AND type = ? AND version = ?`,
		e.Author, e.GameName, string(e.Type), e.Version,
	).Scan(&exists)
	if err != nil {
		return protocol.NewInternal("check existing version", err)
	}
	if exists > 0 {
		return protocol.NewConflict("target version already exists")
	}

	_, err = c.conn.ExecContext(ctx,
		`INSERT INTO games (author, game_name, version, type, max_players, description, score_sum, review_count)
		 VALUES (?, ?, ?, ?, ?, ?, 0, 0)`,
		e.Author, e.GameName, e.Version, string(e.Type), e.MaxPlayers, e.Description,
	)
	if err != nil {
		return protocol.NewInternal("insert game", err)
	}
	return nil
}

// GetLatest resolves the highest-version published entry for gameName,
// across authors if more than one author has published under that name.
func (c *Catalog) GetLatest(ctx context.Context, gameName string) (Entry, error) {
	row := c.conn.QueryRowContext(ctx,
		`SELECT author, game_name, version, type, max_players, description, score_sum, review_count
		 FROM games WHERE game_name = ? ORDER BY version DESC, author ASC LIMIT 1`,
		gameName,
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, protocol.NewNotFound("unknown game_name")
	}
	if err != nil {
		return Entry{}, protocol.NewInternal("query latest version", err)
	}
	return e, nil
}

// GetDetails returns one specific (author, game_name, version) entry.
func (c *Catalog) GetDetails(ctx context.Context, author, gameName string, version int) (Entry, error) {
	row := c.conn.QueryRowContext(ctx,
		`SELECT author, game_name, version, type, max_players, description, score_sum, review_count
		 FROM games WHERE author = ? AND game_name = ? AND version = ?`,
		author, gameName, version,
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, protocol.NewNotFound("unknown game_name/version")
	}
	if err != nil {
		return Entry{}, protocol.NewInternal("query game details", err)
	}
	return e, nil
}

// ListByAuthor returns every entry published by author.
func (c *Catalog) ListByAuthor(ctx context.Context, author string) ([]Entry, error) {
	rows, err := c.conn.QueryContext(ctx,
		`SELECT author, game_name, version, type, max_players, description, score_sum, review_count
		 FROM games WHERE author = ? ORDER BY game_name, version`, author,
	)
	if err != nil {
		return nil, protocol.NewInternal("list by author", err)
	}
	return scanEntries(rows)
}

// List returns every published entry, used by GAME.LIST_GAME.
func (c *Catalog) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.conn.QueryContext(ctx,
		`SELECT author, game_name, version, type, max_players, description, score_sum, review_count
		 FROM games ORDER BY game_name, version`,
	)
	if err != nil {
		return nil, protocol.NewInternal("list games", err)
	}
	return scanEntries(rows)
}

// Count returns the total number of published entries, used by the admin
// stats surface.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&n); err != nil {
		return 0, protocol.NewInternal("count games", err)
	}
	return n, nil
}

// ApplyScoreDelta adjusts the aggregate score_sum/review_count of one
// catalog row. Called by the Review Store as a compensating update after a
// review mutation commits. This is a second, sequential call, not atomic
// with the review row.
func (c *Catalog) ApplyScoreDelta(ctx context.Context, author, gameName string, version int, scoreDelta, countDelta int) error {
	_, err := c.conn.ExecContext(ctx,
		`UPDATE games SET score_sum = score_sum + ?, review_count = review_count + ?
		 WHERE author = ? AND game_name = ? AND version = ?`,
		scoreDelta, countDelta, author, gameName, version,
	)
	if err != nil {
		return protocol.NewInternal("apply score delta", err)
	}
	return nil
}

func scanEntry(row *sql.Row) (Entry, error) {
	var e Entry
	var t string
	err := row.Scan(&e.Author, &e.GameName, &e.Version, &t, &e.MaxPlayers, &e.Description, &e.ScoreSum, &e.ReviewCount)
	e.Type = Type(t)
	return e, err
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var t string
		if err := rows.Scan(&e.Author, &e.GameName, &e.Version, &t, &e.MaxPlayers, &e.Description, &e.ScoreSum, &e.ReviewCount); err != nil {
			return nil, protocol.NewInternal("scan game row", err)
		}
		e.Type = Type(t)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, protocol.NewInternal("iterate game rows", err)
	}
	return out, nil
}
