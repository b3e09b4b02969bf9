package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/forgegames/platform/internal/protocol"
)

// GetByNameVersion resolves a catalog entry by (game_name, version) alone,
// without requiring the publishing author. Used by the Review Store, which
// addresses reviews by game and version rather than by package author.
// If more than one author has published the same (game_name, version) —
// an edge case the data model does not forbid — the lexicographically
// first author wins; this is a deliberate, documented simplification.
func (c *Catalog) GetByNameVersion(ctx context.Context, gameName string, version int) (Entry, error) {
	row := c.conn.QueryRowContext(ctx,
		`SELECT author, game_name, version, type, max_players, description, score_sum, review_count
		 FROM games WHERE game_name = ? AND version = ? ORDER BY author ASC LIMIT 1`,
		gameName, version,
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, protocol.NewNotFound("unknown game_name/version")
	}
	if err != nil {
		return Entry{}, protocol.NewInternal("query game by name/version", err)
	}
	return e, nil
}
