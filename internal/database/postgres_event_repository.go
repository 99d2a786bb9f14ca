package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eventscout/eventscout/internal/models"
	"github.com/lib/pq"
)

// ErrEventNotFound is returned when an update targets an unknown event.
var ErrEventNotFound = errors.New("event not found")

const eventColumns = `
	id, title, description, date, location, category, is_free, link, source,
	source_external_id, source_url, image_urls, status, event_type, submitter_id,
	longitude, latitude, upvotes, posted_to_x, posted_to_x_at, post_pending_at,
	posted_tweet_id, created_at, updated_at`

const insertEventQuery = `
	INSERT INTO events (` + eventColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
	        $16, $17, $18, $19, $20, $21, $22, $23, $24)`

// PostgresEventRepository is the content repository used by the ingestor and
// the publisher.
type PostgresEventRepository struct {
	db *sql.DB
}

// NewPostgresEventRepository creates a new PostgreSQL event repository.
func NewPostgresEventRepository(db *sql.DB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

// Create inserts a single event.
func (r *PostgresEventRepository) Create(ctx context.Context, event models.Event) error {
	if _, err := r.db.ExecContext(ctx, insertEventQuery, insertArgs(event)...); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// FindExistingExternalIDs returns which of ids are already stored, in one query.
func (r *PostgresEventRepository) FindExistingExternalIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(ids) == 0 {
		return existing, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT source_external_id FROM events WHERE source_external_id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query external ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan external id: %w", err)
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

// BulkInsert writes events in one transaction, wrapping each row in a
// savepoint so a failing row is rolled back alone and reported in Failed.
// An error is returned only when the batch as a whole could not be written.
func (r *PostgresEventRepository) BulkInsert(ctx context.Context, events []models.Event) (models.BulkResult, error) {
	var result models.BulkResult
	if len(events) == 0 {
		return result, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, event := range events {
		if _, err := tx.ExecContext(ctx, "SAVEPOINT bulk_row"); err != nil {
			return models.BulkResult{}, fmt.Errorf("failed to create savepoint: %w", err)
		}

		if _, err := tx.ExecContext(ctx, insertEventQuery, insertArgs(event)...); err != nil {
			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT bulk_row"); rbErr != nil {
				return models.BulkResult{}, fmt.Errorf("failed to roll back row: %w", rbErr)
			}
			result.Failed = append(result.Failed, models.BulkFailure{Event: event, Reason: insertFailureReason(err)})
			continue
		}

		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT bulk_row"); err != nil {
			return models.BulkResult{}, fmt.Errorf("failed to release savepoint: %w", err)
		}
		result.Succeeded = append(result.Succeeded, event)
	}

	if err := tx.Commit(); err != nil {
		return models.BulkResult{}, fmt.Errorf("failed to commit bulk insert: %w", err)
	}
	return result, nil
}

// GetByID retrieves an event by its ID.
func (r *PostgresEventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &event, nil
}

// FindPublishable returns approved, unposted, not pending events dated at or
// after now, soonest first with ties broken by upvotes.
func (r *PostgresEventRepository) FindPublishable(ctx context.Context, now time.Time, limit int) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events
		WHERE status = $1 AND posted_to_x = FALSE AND post_pending_at IS NULL AND date >= $2
		ORDER BY date ASC, upvotes DESC, id ASC
		LIMIT $3`
	return r.queryEvents(ctx, query, models.EventStatusApproved, now, limit)
}

// FindInDoubt returns events whose post attempt started but never completed.
func (r *PostgresEventRepository) FindInDoubt(ctx context.Context) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events
		WHERE post_pending_at IS NOT NULL AND posted_to_x = FALSE
		ORDER BY post_pending_at ASC`
	return r.queryEvents(ctx, query)
}

// MarkPostPending records that a post attempt is about to start.
func (r *PostgresEventRepository) MarkPostPending(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, `UPDATE events SET post_pending_at = $2, updated_at = $2 WHERE id = $1`, id, at)
}

// MarkPosted sets the posted flag and clears the pending marker.
func (r *PostgresEventRepository) MarkPosted(ctx context.Context, id, postID string, at time.Time) error {
	return r.update(ctx, `
		UPDATE events
		SET posted_to_x = TRUE, posted_to_x_at = $2, posted_tweet_id = $3,
		    post_pending_at = NULL, updated_at = $2
		WHERE id = $1`, id, at, postID)
}

// ClearPostPending removes the pending marker after a failed attempt.
func (r *PostgresEventRepository) ClearPostPending(ctx context.Context, id string) error {
	return r.update(ctx, `UPDATE events SET post_pending_at = NULL WHERE id = $1`, id)
}

func (r *PostgresEventRepository) update(ctx context.Context, query, id string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to update event %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (r *PostgresEventRepository) queryEvents(ctx context.Context, query string, args ...any) ([]models.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (models.Event, error) {
	var (
		event                       models.Event
		link, externalID, sourceURL sql.NullString
		submitterID, tweetID        sql.NullString
		lon, lat                    sql.NullFloat64
		postedAt, pendingAt         sql.NullTime
		images                      pq.StringArray
	)

	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.Date,
		&event.Location,
		&event.Category,
		&event.IsFree,
		&link,
		&event.Source,
		&externalID,
		&sourceURL,
		&images,
		&event.Status,
		&event.EventType,
		&submitterID,
		&lon,
		&lat,
		&event.Upvotes,
		&event.PostedToX,
		&postedAt,
		&pendingAt,
		&tweetID,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return models.Event{}, err
	}

	event.Link = link.String
	event.SourceExternalID = externalID.String
	event.SourceURL = sourceURL.String
	event.SubmitterID = submitterID.String
	event.PostedTweetID = tweetID.String
	event.ImageURLs = []string(images)
	if event.ImageURLs == nil {
		event.ImageURLs = []string{}
	}
	if lon.Valid && lat.Valid {
		event.Coordinates = &models.Coordinates{Longitude: lon.Float64, Latitude: lat.Float64}
	}
	if postedAt.Valid {
		t := postedAt.Time
		event.PostedToXAt = &t
	}
	if pendingAt.Valid {
		t := pendingAt.Time
		event.PostPendingAt = &t
	}
	return event, nil
}

func insertArgs(e models.Event) []any {
	var lon, lat *float64
	if e.Coordinates != nil {
		lon = &e.Coordinates.Longitude
		lat = &e.Coordinates.Latitude
	}
	images := e.ImageURLs
	if images == nil {
		images = []string{}
	}
	return []any{
		e.ID,
		e.Title,
		e.Description,
		e.Date,
		e.Location,
		e.Category,
		e.IsFree,
		nullString(e.Link),
		e.Source,
		nullString(e.SourceExternalID),
		nullString(e.SourceURL),
		pq.Array(images),
		e.Status,
		e.EventType,
		nullString(e.SubmitterID),
		lon,
		lat,
		e.Upvotes,
		e.PostedToX,
		e.PostedToXAt,
		e.PostPendingAt,
		nullString(e.PostedTweetID),
		e.CreatedAt,
		e.UpdatedAt,
	}
}

// insertFailureReason names unique violations explicitly so racing passes
// show up as duplicates in logs.
func insertFailureReason(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == "23505" {
			return "duplicate: " + pqErr.Constraint
		}
		return string(pqErr.Code.Name()) + ": " + pqErr.Message
	}
	return err.Error()
}

// nullString stores empty strings as NULL, which keeps manually created
// events outside the sparse external id index.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
