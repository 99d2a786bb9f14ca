package inference

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/eventscout/eventscout/internal/models"
)

type recordingStore struct {
	mu   sync.Mutex
	logs []models.InferenceLog
	err  error
}

func (s *recordingStore) Create(ctx context.Context, log models.InferenceLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, log)
	return s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecord(t *testing.T) {
	store := &recordingStore{}
	l := NewLogger(store, discardLogger())

	l.Record(context.Background(), Call{
		Model:     "gpt-4o-mini",
		Operation: "event_extraction",
		Attempt:   1,
		Usage:     Usage{PromptTokens: 1000, CompletionTokens: 500, TotalTokens: 1500},
		Latency:   1200 * time.Millisecond,
	})
	l.Record(context.Background(), Call{
		Model:       "gpt-4o-mini",
		Operation:   "event_extraction",
		Attempt:     2,
		Latency:     time.Second,
		Err:         errors.New("boom"),
		RateLimited: true,
	})
	l.Wait()

	if len(store.logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(store.logs))
	}

	var ok, failed models.InferenceLog
	for _, log := range store.logs {
		if log.Status == "success" {
			ok = log
		} else {
			failed = log
		}
	}

	if ok.Provider != "openai" || ok.TokensUsed != 1500 || *ok.LatencyMs != 1200 {
		t.Errorf("unexpected success log: %+v", ok)
	}
	if ok.Metadata != `{"attempt":1}` {
		t.Errorf("unexpected metadata %q", ok.Metadata)
	}
	if ok.CostUSD == nil || *ok.CostUSD <= 0 {
		t.Error("expected a cost estimate")
	}
	if failed.Status != "error" || failed.ErrorMessage == nil || *failed.ErrorMessage != "boom" {
		t.Errorf("unexpected error log: %+v", failed)
	}
	if failed.Metadata != `{"attempt":2,"is_rate_limit":true}` {
		t.Errorf("unexpected error metadata %q", failed.Metadata)
	}
}

func TestRecordStoreFailureIsSwallowed(t *testing.T) {
	store := &recordingStore{err: errors.New("db down")}
	l := NewLogger(store, discardLogger())
	l.Record(context.Background(), Call{Model: "gpt-4o-mini"})
	l.Wait()
	if len(store.logs) != 1 {
		t.Fatalf("expected store to be called once, got %d", len(store.logs))
	}
}

func TestNilLoggerDiscards(t *testing.T) {
	var l *Logger
	l.Record(context.Background(), Call{Model: "gpt-4o-mini"})
	l.Wait()
}

func TestEstimateCost(t *testing.T) {
	tests := []struct {
		model    string
		expected float64
	}{
		{"gpt-4o-mini", 0.15 + 0.60},
		{"gpt-4o", 2.50 + 10.00},
		{"some-new-model", 5.00 + 15.00},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got := EstimateCost(tt.model, 1_000_000, 1_000_000)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("EstimateCost(%s) = %v, want %v", tt.model, got, tt.expected)
			}
		})
	}
}
