package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eventscout/eventscout/internal/ingestion"
	"github.com/eventscout/eventscout/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// blockingIngest blocks each pass until release is closed.
type blockingIngest struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
	report  ingestion.PassReport
	err     error
}

func newBlockingIngest() *blockingIngest {
	return &blockingIngest{started: make(chan struct{}, 10), release: make(chan struct{})}
}

func (b *blockingIngest) RunPass(ctx context.Context) (ingestion.PassReport, error) {
	b.calls.Add(1)
	b.started <- struct{}{}
	<-b.release
	return b.report, b.err
}

type countingIngest struct {
	calls atomic.Int32
	ran   chan struct{}
}

func (c *countingIngest) RunPass(ctx context.Context) (ingestion.PassReport, error) {
	c.calls.Add(1)
	if c.ran != nil {
		select {
		case c.ran <- struct{}{}:
		default:
		}
	}
	return ingestion.PassReport{Stats: ingestion.Stats{Total: 3, Created: 2, Duplicates: 1}}, nil
}

type stubPublish struct {
	posted int
	err    error
	calls  atomic.Int32
}

func (p *stubPublish) PublishPending(ctx context.Context) (int, error) {
	p.calls.Add(1)
	return p.posted, p.err
}

type recordingActivities struct {
	mu   sync.Mutex
	logs []models.ActivityLog
}

func (r *recordingActivities) CreateBatch(ctx context.Context, logs []models.ActivityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, logs...)
	return nil
}

type recordingErrors struct {
	mu      sync.Mutex
	entries []models.IngestionError
}

func (r *recordingErrors) Create(ctx context.Context, e models.IngestionError) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func TestTriggerIngest_RejectsOverlap(t *testing.T) {
	ingest := newBlockingIngest()
	s := New(ingest, nil, nil, nil, Config{}, testLogger())

	done := make(chan error, 1)
	go func() {
		_, err := s.TriggerIngest(context.Background())
		done <- err
	}()
	<-ingest.started

	if !s.Status().IngestRunning {
		t.Error("expected status to report a running pass")
	}
	if _, err := s.TriggerIngest(context.Background()); !errors.Is(err, ErrPassInProgress) {
		t.Fatalf("expected ErrPassInProgress, got %v", err)
	}

	close(ingest.release)
	if err := <-done; err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if got := ingest.calls.Load(); got != 1 {
		t.Errorf("expected 1 pass, got %d", got)
	}

	// The lock is released once the pass finishes.
	if _, err := s.TriggerIngest(context.Background()); err != nil {
		t.Fatalf("expected second pass to run, got %v", err)
	}
}

func TestTriggerIngest_RecordsStatusAndActivity(t *testing.T) {
	activities := &recordingActivities{}
	s := New(&countingIngest{}, nil, activities, nil, Config{}, testLogger())
	fixed := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	report, err := s.TriggerIngest(context.Background())
	if err != nil {
		t.Fatalf("TriggerIngest failed: %v", err)
	}
	if report.Stats.Created != 2 {
		t.Errorf("unexpected report: %+v", report)
	}

	status := s.Status()
	if status.IngestRunning || status.LastIngestAt == nil || !status.LastIngestAt.Equal(fixed) {
		t.Errorf("unexpected status: %+v", status)
	}
	if status.LastIngest == nil || status.LastIngest.Stats.Duplicates != 1 {
		t.Errorf("expected last report in status, got %+v", status.LastIngest)
	}

	if len(activities.logs) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(activities.logs))
	}
	log := activities.logs[0]
	if log.ActivityType != models.ActivityTypeIngestPass || log.Details["created"] != 2 {
		t.Errorf("unexpected activity: %+v", log)
	}
}

func TestTriggerIngest_KeepsErrorInStatus(t *testing.T) {
	ingest := newBlockingIngest()
	ingest.err = ingestion.ErrMissingCredentials
	close(ingest.release)
	s := New(ingest, nil, nil, nil, Config{}, testLogger())

	if _, err := s.TriggerIngest(context.Background()); !errors.Is(err, ingestion.ErrMissingCredentials) {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
	if s.Status().LastIngestError == "" {
		t.Error("expected error to be kept in status")
	}
}

func TestTriggerPublish(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s := New(&countingIngest{}, nil, nil, nil, Config{}, testLogger())
		if _, err := s.TriggerPublish(context.Background()); err == nil {
			t.Fatal("expected error when publishing is disabled")
		}
	})

	t.Run("records failures", func(t *testing.T) {
		publish := &stubPublish{posted: 1, err: errors.New("repository unreachable")}
		errs := &recordingErrors{}
		activities := &recordingActivities{}
		s := New(&countingIngest{}, publish, activities, errs, Config{}, testLogger())

		posted, err := s.TriggerPublish(context.Background())
		if err == nil || posted != 1 {
			t.Fatalf("expected partial result with error, got %d, %v", posted, err)
		}
		if len(errs.entries) != 1 || errs.entries[0].ErrorType != models.ErrorTypePublishFailed {
			t.Errorf("expected one publish_failed entry, got %+v", errs.entries)
		}
		if len(activities.logs) != 1 || activities.logs[0].ActivityType != models.ActivityTypePublish {
			t.Errorf("expected one publish activity, got %+v", activities.logs)
		}
		if s.Status().LastPublished != 1 {
			t.Errorf("unexpected status: %+v", s.Status())
		}
	})
}

func TestStartRunsOnStartAndStops(t *testing.T) {
	ingest := &countingIngest{ran: make(chan struct{}, 1)}
	s := New(ingest, nil, nil, nil, Config{IngestInterval: time.Hour, RunOnStart: true}, testLogger())

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	select {
	case <-ingest.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("expected an immediate pass on start")
	}

	s.Stop()
	s.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestStartTicksPublish(t *testing.T) {
	publish := &stubPublish{}
	s := New(&countingIngest{}, publish, nil, nil, Config{IngestInterval: time.Hour, PublishInterval: 10 * time.Millisecond}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for publish.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if publish.calls.Load() < 2 {
		t.Errorf("expected repeated publish passes, got %d", publish.calls.Load())
	}
}
