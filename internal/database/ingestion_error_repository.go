package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eventscout/eventscout/internal/models"
	"github.com/google/uuid"
)

// IngestionErrorRepository stores failures from ingestion and publish passes.
type IngestionErrorRepository struct {
	db *sql.DB
}

// NewIngestionErrorRepository creates a new ingestion error repository.
func NewIngestionErrorRepository(db *sql.DB) *IngestionErrorRepository {
	return &IngestionErrorRepository{db: db}
}

// Create saves an ingestion error.
func (r *IngestionErrorRepository) Create(ctx context.Context, e models.IngestionError) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	var metadata []byte
	if e.Metadata != nil {
		var err error
		if metadata, err = json.Marshal(e.Metadata); err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ingestion_errors (id, platform, error_type, query, error_msg, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		e.ID,
		e.Platform,
		e.ErrorType,
		nullString(e.Query),
		e.ErrorMsg,
		jsonParam(metadata),
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ingestion error: %w", err)
	}
	return nil
}

// ListRecent returns the newest errors first.
func (r *IngestionErrorRepository) ListRecent(ctx context.Context, limit int) ([]models.IngestionError, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, platform, error_type, query, error_msg, metadata, created_at
		FROM ingestion_errors
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingestion errors: %w", err)
	}
	defer rows.Close()

	var out []models.IngestionError
	for rows.Next() {
		var (
			e        models.IngestionError
			query    sql.NullString
			metadata []byte
		)
		if err := rows.Scan(&e.ID, &e.Platform, &e.ErrorType, &query, &e.ErrorMsg, &metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ingestion error: %w", err)
		}
		e.Query = query.String
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
