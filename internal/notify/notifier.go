// Package notify announces newly ingested events to downstream consumers.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/eventscout/eventscout/internal/models"
)

// RoutingKeyEventCreated is the routing key of event.created messages.
const RoutingKeyEventCreated = "event.created"

// EventCreated is the payload published for each new event.
type EventCreated struct {
	EventID          string          `json:"event_id"`
	Title            string          `json:"title"`
	Date             time.Time       `json:"date"`
	Location         string          `json:"location"`
	Category         models.Category `json:"category"`
	IsFree           bool            `json:"is_free"`
	SourceExternalID string          `json:"source_external_id,omitempty"`
	SourceURL        string          `json:"source_url,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// NewEventCreated builds the message for event.
func NewEventCreated(event models.Event) EventCreated {
	return EventCreated{
		EventID:          event.ID,
		Title:            event.Title,
		Date:             event.Date,
		Location:         event.Location,
		Category:         event.Category,
		IsFree:           event.IsFree,
		SourceExternalID: event.SourceExternalID,
		SourceURL:        event.SourceURL,
		CreatedAt:        event.CreatedAt,
	}
}

// LogNotifier only logs; used when no broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifyEventCreated logs the event.
func (n *LogNotifier) NotifyEventCreated(ctx context.Context, event models.Event) error {
	n.logger.Info("event created", "event_id", event.ID, "title", event.Title, "date", event.Date)
	return nil
}
