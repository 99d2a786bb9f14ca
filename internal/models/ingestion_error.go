package models

import (
	"time"
)

// IngestionError records a failure during an ingestion or publish pass.
type IngestionError struct {
	ID        string             `json:"id"`
	Platform  string             `json:"platform"` // "x"
	ErrorType IngestionErrorType `json:"error_type"`
	Query     string             `json:"query,omitempty"`
	ErrorMsg  string             `json:"error_msg"`
	Metadata  map[string]any     `json:"metadata,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// IngestionErrorType categorizes ingestion failures.
type IngestionErrorType string

const (
	ErrorTypeSearchFailed      IngestionErrorType = "search_failed"
	ErrorTypeRateLimitExceeded IngestionErrorType = "rate_limit_exceeded"
	ErrorTypeBulkWriteFailed   IngestionErrorType = "bulk_write_failed"
	ErrorTypePublishFailed     IngestionErrorType = "publish_failed"
	ErrorTypeAuthFailed        IngestionErrorType = "auth_failed"
)
