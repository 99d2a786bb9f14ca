package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eventscout/eventscout/internal/models"
)

// InferenceLogRepository handles inference log database operations
type InferenceLogRepository struct {
	db *sql.DB
}

// NewInferenceLogRepository creates a new repository
func NewInferenceLogRepository(db *sql.DB) *InferenceLogRepository {
	return &InferenceLogRepository{db: db}
}

// Create logs a new inference call
func (r *InferenceLogRepository) Create(ctx context.Context, log models.InferenceLog) error {
	query := `
		INSERT INTO inference_logs (
			provider, model, operation, tokens_used, input_tokens, output_tokens,
			cost_usd, latency_ms, status, error_message, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, '')::jsonb)
	`

	_, err := r.db.ExecContext(ctx, query,
		log.Provider,
		log.Model,
		log.Operation,
		log.TokensUsed,
		log.InputTokens,
		log.OutputTokens,
		log.CostUSD,
		log.LatencyMs,
		log.Status,
		log.ErrorMessage,
		log.Metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to insert inference log: %w", err)
	}
	return nil
}

// InferenceUsage summarizes model usage over a window.
type InferenceUsage struct {
	Calls      int     `json:"calls"`
	Errors     int     `json:"errors"`
	TokensUsed int     `json:"tokens_used"`
	CostUSD    float64 `json:"cost_usd"`
}

// UsageSince aggregates calls made at or after since.
func (r *InferenceLogRepository) UsageSince(ctx context.Context, since time.Time) (InferenceUsage, error) {
	var usage InferenceUsage
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'error'),
		       COALESCE(SUM(tokens_used), 0),
		       COALESCE(SUM(cost_usd), 0)
		FROM inference_logs
		WHERE created_at >= $1
	`, since).Scan(&usage.Calls, &usage.Errors, &usage.TokensUsed, &usage.CostUSD)
	if err != nil {
		return InferenceUsage{}, fmt.Errorf("failed to aggregate inference usage: %w", err)
	}
	return usage, nil
}
