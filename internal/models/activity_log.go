package models

import "time"

// ActivityType represents the type of activity being logged.
type ActivityType string

const (
	ActivityTypeEventCreate ActivityType = "event_create"
	ActivityTypeIngestPass  ActivityType = "ingest_pass"
	ActivityTypePublish     ActivityType = "publish"
)

// ActivityLog is one tracked activity, optionally attributed to a user.
type ActivityLog struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	UserID       string         `json:"user_id,omitempty"`
	ActivityType ActivityType   `json:"activity_type"`
	EventID      string         `json:"event_id,omitempty"`
	Message      string         `json:"message"`
	Details      map[string]any `json:"details,omitempty"`
	DurationMs   *int           `json:"duration_ms,omitempty"`
}
