package social

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/eventscout/eventscout/internal/ingestion"
	"github.com/eventscout/eventscout/internal/models"
)

var publishNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type scriptedPoster struct {
	mu      sync.Mutex
	calls   int
	results []error
	texts   []string
}

func (p *scriptedPoster) PostTweet(ctx context.Context, text string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.texts = append(p.texts, text)
	if i := p.calls - 1; i < len(p.results) && p.results[i] != nil {
		return "", p.results[i]
	}
	return "tweet-" + strconv.Itoa(p.calls), nil
}

type failingMarkStore struct {
	*ingestion.MemoryEventStore
}

func (failingMarkStore) MarkPosted(ctx context.Context, id, postID string, at time.Time) error {
	return errors.New("write timeout")
}

func approvedEvent(externalID string, date time.Time) models.Event {
	return models.Event{
		ID:               "evt-" + externalID,
		Title:            "Lagos Developer Conference 2025",
		Description:      "Talks and workshops for developers across Lagos.",
		Date:             date,
		Location:         "Lagos",
		Status:           models.EventStatusApproved,
		SourceExternalID: externalID,
	}
}

func newTestPublisher(poster Poster, store PublishStore) (*Publisher, *[]time.Duration) {
	p := NewPublisher(poster, store, DefaultPublisherConfig(), nil, testLogger())
	p.now = func() time.Time { return publishNow }
	var waits []time.Duration
	var mu sync.Mutex
	p.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		waits = append(waits, d)
		mu.Unlock()
		return nil
	}
	return p, &waits
}

func seed(t *testing.T, store *ingestion.MemoryEventStore, events ...models.Event) {
	t.Helper()
	for _, e := range events {
		if err := store.Create(context.Background(), e); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}
}

func TestPublisher_PublishMarksPosted(t *testing.T) {
	store := ingestion.NewMemoryEventStore()
	event := approvedEvent("1", publishNow.Add(48*time.Hour))
	seed(t, store, event)

	poster := &scriptedPoster{}
	p, _ := newTestPublisher(poster, store)

	if err := p.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	got, _ := store.GetByID(context.Background(), event.ID)
	if !got.PostedToX || got.PostedToXAt == nil || !got.PostedToXAt.Equal(publishNow) || got.PostPendingAt != nil {
		t.Errorf("unexpected posted state: %+v", got)
	}
	if len(poster.texts) != 1 || poster.texts[0] != FormatEventMessage(event, time.UTC) {
		t.Errorf("unexpected posted text: %v", poster.texts)
	}
}

func TestPublisher_RetriesOnceOnThrottle(t *testing.T) {
	store := ingestion.NewMemoryEventStore()
	event := approvedEvent("1", publishNow.Add(48*time.Hour))
	seed(t, store, event)

	poster := &scriptedPoster{results: []error{&RateLimitError{}}}
	p, waits := newTestPublisher(poster, store)

	if err := p.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if poster.calls != 2 {
		t.Errorf("expected 2 post attempts, got %d", poster.calls)
	}
	if len(*waits) != 1 || (*waits)[0] != 60*time.Second {
		t.Errorf("expected a single 60s backoff, got %v", *waits)
	}
}

func TestPublisher_FailureClearsPendingMarker(t *testing.T) {
	tests := []struct {
		name    string
		results []error
		calls   int
	}{
		{"throttled twice", []error{&RateLimitError{}, &RateLimitError{}}, 2},
		{"api error", []error{errors.New("duplicate content")}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := ingestion.NewMemoryEventStore()
			event := approvedEvent("1", publishNow.Add(48*time.Hour))
			seed(t, store, event)

			poster := &scriptedPoster{results: tt.results}
			p, _ := newTestPublisher(poster, store)

			if err := p.Publish(context.Background(), event); err == nil {
				t.Fatal("expected error")
			}
			if poster.calls != tt.calls {
				t.Errorf("expected %d attempts, got %d", tt.calls, poster.calls)
			}
			got, _ := store.GetByID(context.Background(), event.ID)
			if got.PostedToX || got.PostPendingAt != nil {
				t.Errorf("expected record released for a later pass, got %+v", got)
			}
		})
	}
}

func TestPublisher_MarkFailureLeavesRecordInDoubt(t *testing.T) {
	store := failingMarkStore{ingestion.NewMemoryEventStore()}
	event := approvedEvent("1", publishNow.Add(48*time.Hour))
	seed(t, store.MemoryEventStore, event)

	p, _ := newTestPublisher(&scriptedPoster{}, store)
	if err := p.Publish(context.Background(), event); err == nil {
		t.Fatal("expected error from failed mark")
	}

	inDoubt, _ := store.FindInDoubt(context.Background())
	if len(inDoubt) != 1 {
		t.Fatalf("expected record in doubt, got %d", len(inDoubt))
	}
	publishable, _ := store.FindPublishable(context.Background(), publishNow, 10)
	if len(publishable) != 0 {
		t.Error("in-doubt record must not be re-selected")
	}
}

func TestPublisher_PublishPendingBatches(t *testing.T) {
	store := ingestion.NewMemoryEventStore()
	for i := 0; i < 12; i++ {
		seed(t, store, approvedEvent(string(rune('a'+i)), publishNow.Add(time.Duration(i+1)*time.Hour)))
	}
	seed(t, store, approvedEvent("past", publishNow.Add(-time.Hour)))

	poster := &scriptedPoster{results: []error{errors.New("boom")}}
	p, waits := newTestPublisher(poster, store)

	posted, err := p.PublishPending(context.Background())
	if err != nil {
		t.Fatalf("PublishPending returned error: %v", err)
	}
	// Limit 10, one failure.
	if posted != 9 || poster.calls != 10 {
		t.Errorf("posted %d with %d calls, want 9 and 10", posted, poster.calls)
	}
	if len(*waits) != 1 || (*waits)[0] != 5*time.Second {
		t.Errorf("expected one 5s inter-batch delay, got %v", *waits)
	}

	remaining, _ := store.FindPublishable(context.Background(), publishNow, 10)
	if len(remaining) != 3 {
		t.Errorf("expected 2 unselected plus 1 failed record left, got %d", len(remaining))
	}
}

func TestPublisher_NothingToPublish(t *testing.T) {
	p, _ := newTestPublisher(&scriptedPoster{}, ingestion.NewMemoryEventStore())
	posted, err := p.PublishPending(context.Background())
	if err != nil || posted != 0 {
		t.Errorf("PublishPending = %d, %v", posted, err)
	}
}
