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

// ActivityLogRepository handles activity log storage and retrieval.
type ActivityLogRepository struct {
	db *sql.DB
}

// NewActivityLogRepository creates a new activity log repository.
func NewActivityLogRepository(db *sql.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

// CreateBatch stores logs in a single transaction.
func (r *ActivityLogRepository) CreateBatch(ctx context.Context, logs []models.ActivityLog) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO activity_logs (id, timestamp, user_id, activity_type, event_id, message, details, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, log := range logs {
		if log.ID == "" {
			log.ID = uuid.New().String()
		}
		if log.Timestamp.IsZero() {
			log.Timestamp = time.Now()
		}

		var details []byte
		if log.Details != nil {
			if details, err = json.Marshal(log.Details); err != nil {
				return fmt.Errorf("failed to marshal details: %w", err)
			}
		}

		_, err = stmt.ExecContext(ctx,
			log.ID,
			log.Timestamp,
			nullString(log.UserID),
			log.ActivityType,
			nullString(log.EventID),
			log.Message,
			jsonParam(details),
			log.DurationMs,
		)
		if err != nil {
			return fmt.Errorf("failed to insert activity log: %w", err)
		}
	}

	return tx.Commit()
}

// ListByUser returns the most recent activities for a user.
func (r *ActivityLogRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, timestamp, user_id, activity_type, event_id, message, details, duration_ms
		FROM activity_logs
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity logs: %w", err)
	}
	defer rows.Close()

	var logs []models.ActivityLog
	for rows.Next() {
		var (
			log           models.ActivityLog
			user, eventID sql.NullString
			details       []byte
			durationMs    sql.NullInt32
		)
		if err := rows.Scan(&log.ID, &log.Timestamp, &user, &log.ActivityType, &eventID, &log.Message, &details, &durationMs); err != nil {
			return nil, fmt.Errorf("failed to scan activity log: %w", err)
		}
		log.UserID = user.String
		log.EventID = eventID.String
		if len(details) > 0 {
			if err := json.Unmarshal(details, &log.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal details: %w", err)
			}
		}
		if durationMs.Valid {
			d := int(durationMs.Int32)
			log.DurationMs = &d
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
