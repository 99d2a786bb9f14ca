package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eventscout/eventscout/internal/models"
	"github.com/google/uuid"
)

// ActivityStore persists activity log entries in batches.
type ActivityStore interface {
	CreateBatch(ctx context.Context, logs []models.ActivityLog) error
}

// Notifier announces newly created events downstream.
type Notifier interface {
	NotifyEventCreated(ctx context.Context, event models.Event) error
}

// SideEffectConfig controls batching of post-insert work.
type SideEffectConfig struct {
	ActivityBatchSize     int
	NotificationBatchSize int
	NotificationDelay     time.Duration
}

// DefaultSideEffectConfig returns the production batching.
func DefaultSideEffectConfig() SideEffectConfig {
	return SideEffectConfig{
		ActivityBatchSize:     50,
		NotificationBatchSize: 10,
		NotificationDelay:     time.Second,
	}
}

// SideEffects runs activity tracking and notification dispatch for created
// events. Failures are logged and never reach the caller.
type SideEffects struct {
	activities  ActivityStore
	notifier    Notifier
	submitterID string
	config      SideEffectConfig
	logger      *slog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
}

// NewSideEffects creates the dispatcher. Either collaborator may be nil.
func NewSideEffects(activities ActivityStore, notifier Notifier, submitterID string, config SideEffectConfig, logger *slog.Logger) *SideEffects {
	return &SideEffects{
		activities:  activities,
		notifier:    notifier,
		submitterID: submitterID,
		config:      config,
		logger:      logger,
		sleep:       SleepContext,
		now:         time.Now,
	}
}

// Run tracks and announces events. It blocks until all batches are done.
func (s *SideEffects) Run(ctx context.Context, events []models.Event) {
	if len(events) == 0 {
		return
	}
	s.guard("activity tracking", func() { s.trackActivity(ctx, events) })
	s.guard("notification dispatch", func() { s.notify(ctx, events) })
}

func (s *SideEffects) trackActivity(ctx context.Context, events []models.Event) {
	if s.activities == nil || s.submitterID == "" {
		return
	}

	size := s.config.ActivityBatchSize
	if size <= 0 {
		size = len(events)
	}

	for start := 0; start < len(events); start += size {
		end := min(start+size, len(events))
		logs := make([]models.ActivityLog, 0, end-start)
		for _, event := range events[start:end] {
			logs = append(logs, models.ActivityLog{
				ID:           uuid.New().String(),
				Timestamp:    s.now(),
				UserID:       s.submitterID,
				ActivityType: models.ActivityTypeEventCreate,
				EventID:      event.ID,
				Message:      fmt.Sprintf("Created event %q", event.Title),
				Details: map[string]any{
					"source":             string(event.Source),
					"source_external_id": event.SourceExternalID,
				},
			})
		}
		if err := s.activities.CreateBatch(ctx, logs); err != nil {
			s.logger.Warn("failed to record activity batch", "size", len(logs), "error", err)
		}
	}
}

func (s *SideEffects) notify(ctx context.Context, events []models.Event) {
	if s.notifier == nil {
		return
	}

	size := s.config.NotificationBatchSize
	if size <= 0 {
		size = len(events)
	}

	for start := 0; start < len(events); start += size {
		if start > 0 && s.config.NotificationDelay > 0 {
			if err := s.sleep(ctx, s.config.NotificationDelay); err != nil {
				s.logger.Warn("notification dispatch cancelled", "remaining", len(events)-start, "error", err)
				return
			}
		}

		end := min(start+size, len(events))
		var wg sync.WaitGroup
		for _, event := range events[start:end] {
			wg.Add(1)
			go func(event models.Event) {
				defer wg.Done()
				s.guard("notification", func() {
					if err := s.notifier.NotifyEventCreated(ctx, event); err != nil {
						s.logger.Warn("failed to send event notification", "event_id", event.ID, "error", err)
					}
				})
			}(event)
		}
		wg.Wait()
	}
}

func (s *SideEffects) guard(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("side effect panicked", "side_effect", what, "panic", r)
		}
	}()
	fn()
}
