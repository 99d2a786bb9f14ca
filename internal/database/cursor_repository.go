package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CursorRepository persists the last seen post id per search query so a
// restart does not rescan posts already processed.
type CursorRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewCursorRepository creates a new cursor repository.
func NewCursorRepository(db *sql.DB) *CursorRepository {
	return &CursorRepository{db: db, now: time.Now}
}

// GetCursor returns the stored cursor for query, or "" when there is none.
func (r *CursorRepository) GetCursor(ctx context.Context, query string) (string, error) {
	var lastSeen string
	err := r.db.QueryRowContext(ctx,
		`SELECT last_seen_id FROM search_cursors WHERE query = $1`, query,
	).Scan(&lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get cursor: %w", err)
	}
	return lastSeen, nil
}

// SetCursor upserts the cursor for query.
func (r *CursorRepository) SetCursor(ctx context.Context, query, lastSeenID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO search_cursors (query, last_seen_id, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (query) DO UPDATE SET
			last_seen_id = EXCLUDED.last_seen_id,
			updated_at = EXCLUDED.updated_at
	`, query, lastSeenID, r.now())
	if err != nil {
		return fmt.Errorf("failed to set cursor: %w", err)
	}
	return nil
}
