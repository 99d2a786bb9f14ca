// Package scheduler drives periodic ingestion and publish passes and guards
// against overlapping runs of the same pass.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eventscout/eventscout/internal/ingestion"
	"github.com/eventscout/eventscout/internal/models"
	"github.com/google/uuid"
)

// ErrPassInProgress is returned by a trigger while the same pass is running.
var ErrPassInProgress = errors.New("pass already in progress")

// IngestRunner runs one ingestion pass.
type IngestRunner interface {
	RunPass(ctx context.Context) (ingestion.PassReport, error)
}

// PublishRunner runs one publish pass.
type PublishRunner interface {
	PublishPending(ctx context.Context) (int, error)
}

// Config controls pass intervals.
type Config struct {
	IngestInterval  time.Duration
	PublishInterval time.Duration
	// RunOnStart runs an ingestion pass immediately instead of waiting a full interval.
	RunOnStart bool
}

const defaultIngestInterval = 6 * time.Hour

// Status is a snapshot of the most recent passes.
type Status struct {
	IngestRunning   bool                  `json:"ingest_running"`
	PublishRunning  bool                  `json:"publish_running"`
	PublishEnabled  bool                  `json:"publish_enabled"`
	LastIngestAt    *time.Time            `json:"last_ingest_at,omitempty"`
	LastIngest      *ingestion.PassReport `json:"last_ingest,omitempty"`
	LastIngestError string                `json:"last_ingest_error,omitempty"`
	LastPublishAt   *time.Time            `json:"last_publish_at,omitempty"`
	LastPublished   int                   `json:"last_published"`
}

// Scheduler owns the pass timers. The publish runner is optional.
type Scheduler struct {
	ingest     IngestRunner
	publish    PublishRunner
	activities ingestion.ActivityStore
	errorLog   ingestion.ErrorLog
	config     Config
	logger     *slog.Logger
	now        func() time.Time

	ingestMu  sync.Mutex
	publishMu sync.Mutex

	statusMu sync.RWMutex
	status   Status

	stopChan chan struct{}
	stopOnce sync.Once
}

// New creates a scheduler. activities and errorLog may be nil.
func New(ingest IngestRunner, publish PublishRunner, activities ingestion.ActivityStore, errorLog ingestion.ErrorLog, config Config, logger *slog.Logger) *Scheduler {
	if config.IngestInterval <= 0 {
		config.IngestInterval = defaultIngestInterval
	}
	return &Scheduler{
		ingest:     ingest,
		publish:    publish,
		activities: activities,
		errorLog:   errorLog,
		config:     config,
		logger:     logger,
		now:        time.Now,
		status:     Status{PublishEnabled: publish != nil},
		stopChan:   make(chan struct{}),
	}
}

// Start runs the scheduler loop until Stop is called or ctx is done. Passes
// run on this goroutine, so a slow pass delays the next tick rather than
// overlapping it.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("starting scheduler",
		"ingest_interval", s.config.IngestInterval,
		"publish_interval", s.config.PublishInterval,
		"publish_enabled", s.publish != nil)

	ingestTicker := time.NewTicker(s.config.IngestInterval)
	defer ingestTicker.Stop()

	var publishTick <-chan time.Time
	if s.publish != nil && s.config.PublishInterval > 0 {
		publishTicker := time.NewTicker(s.config.PublishInterval)
		defer publishTicker.Stop()
		publishTick = publishTicker.C
	}

	if s.config.RunOnStart {
		s.runIngest(ctx)
	}

	for {
		select {
		case <-ingestTicker.C:
			s.runIngest(ctx)
		case <-publishTick:
			s.runPublish(ctx)
		case <-s.stopChan:
			s.logger.Info("scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("scheduler stopping due to context cancellation")
			return
		}
	}
}

// Stop stops the scheduler loop. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// TriggerIngest runs an ingestion pass now, unless one is already running.
func (s *Scheduler) TriggerIngest(ctx context.Context) (ingestion.PassReport, error) {
	if !s.ingestMu.TryLock() {
		return ingestion.PassReport{}, ErrPassInProgress
	}
	defer s.ingestMu.Unlock()

	s.setStatus(func(st *Status) { st.IngestRunning = true })
	start := s.now()
	report, err := s.ingest.RunPass(ctx)

	s.setStatus(func(st *Status) {
		st.IngestRunning = false
		st.LastIngestAt = &start
		st.LastIngest = &report
		st.LastIngestError = ""
		if err != nil {
			st.LastIngestError = err.Error()
		}
	})

	s.recordActivity(ctx, models.ActivityLog{
		ActivityType: models.ActivityTypeIngestPass,
		Message:      fmt.Sprintf("ingestion pass created %d events", report.Stats.Created),
		Details: map[string]any{
			"queries":        report.Queries,
			"failed_queries": report.FailedQueries,
			"retrieved":      report.Retrieved,
			"drafts":         report.Drafts,
			"created":        report.Stats.Created,
			"duplicates":     report.Stats.Duplicates,
			"failed":         report.Stats.Failed,
		},
	}, report.Duration)

	return report, err
}

// TriggerPublish runs a publish pass now, unless one is already running.
func (s *Scheduler) TriggerPublish(ctx context.Context) (int, error) {
	if s.publish == nil {
		return 0, fmt.Errorf("publishing is not enabled")
	}
	if !s.publishMu.TryLock() {
		return 0, ErrPassInProgress
	}
	defer s.publishMu.Unlock()

	s.setStatus(func(st *Status) { st.PublishRunning = true })
	start := s.now()
	posted, err := s.publish.PublishPending(ctx)

	s.setStatus(func(st *Status) {
		st.PublishRunning = false
		st.LastPublishAt = &start
		st.LastPublished = posted
	})

	if err != nil {
		s.recordError(ctx, err)
	}
	s.recordActivity(ctx, models.ActivityLog{
		ActivityType: models.ActivityTypePublish,
		Message:      fmt.Sprintf("publish pass posted %d events", posted),
		Details:      map[string]any{"posted": posted},
	}, s.now().Sub(start))

	return posted, err
}

// Status returns a snapshot of the latest passes.
func (s *Scheduler) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

func (s *Scheduler) runIngest(ctx context.Context) {
	report, err := s.TriggerIngest(ctx)
	switch {
	case errors.Is(err, ErrPassInProgress):
		s.logger.Warn("skipping scheduled ingestion, pass already running")
	case err != nil:
		s.logger.Error("ingestion pass failed", "error", err)
	default:
		s.logger.Info("ingestion pass complete",
			"created", report.Stats.Created,
			"duplicates", report.Stats.Duplicates,
			"failed", report.Stats.Failed,
			"duration", report.Duration)
	}
}

func (s *Scheduler) runPublish(ctx context.Context) {
	posted, err := s.TriggerPublish(ctx)
	switch {
	case errors.Is(err, ErrPassInProgress):
		s.logger.Warn("skipping scheduled publish, pass already running")
	case err != nil:
		s.logger.Error("publish pass failed", "error", err, "posted", posted)
	default:
		s.logger.Info("publish pass complete", "posted", posted)
	}
}

func (s *Scheduler) setStatus(fn func(*Status)) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	fn(&s.status)
}

func (s *Scheduler) recordActivity(ctx context.Context, log models.ActivityLog, d time.Duration) {
	if s.activities == nil {
		return
	}
	ms := int(d.Milliseconds())
	log.ID = uuid.New().String()
	log.Timestamp = s.now()
	log.DurationMs = &ms
	if err := s.activities.CreateBatch(context.WithoutCancel(ctx), []models.ActivityLog{log}); err != nil {
		s.logger.Warn("failed to record pass activity", "activity_type", log.ActivityType, "error", err)
	}
}

func (s *Scheduler) recordError(ctx context.Context, err error) {
	if s.errorLog == nil {
		return
	}
	entry := models.IngestionError{
		ID:        uuid.New().String(),
		Platform:  string(models.EventSourceX),
		ErrorType: models.ErrorTypePublishFailed,
		ErrorMsg:  err.Error(),
		CreatedAt: s.now(),
	}
	if logErr := s.errorLog.Create(context.WithoutCancel(ctx), entry); logErr != nil {
		s.logger.Warn("failed to record publish error", "error", logErr)
	}
}
