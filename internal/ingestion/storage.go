package ingestion

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/eventscout/eventscout/internal/models"
)

// ErrEventNotFound is returned when an event id is unknown.
var ErrEventNotFound = errors.New("event not found")

// EventStore is the slice of the content repository the ingestor needs.
type EventStore interface {
	// FindExistingExternalIDs returns the subset of ids already stored.
	FindExistingExternalIDs(ctx context.Context, ids []string) (map[string]bool, error)

	// BulkInsert writes records unordered: a failing record does not stop
	// the rest, and every input lands in exactly one result list.
	BulkInsert(ctx context.Context, events []models.Event) (models.BulkResult, error)
}

// MemoryEventStore implements the content repository in memory for
// development and tests. External ids are unique when present.
type MemoryEventStore struct {
	mu         sync.RWMutex
	events     map[string]models.Event
	externalID map[string]string
}

// NewMemoryEventStore creates an empty store.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{
		events:     make(map[string]models.Event),
		externalID: make(map[string]string),
	}
}

// FindExistingExternalIDs returns the subset of ids already stored.
func (s *MemoryEventStore) FindExistingExternalIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]bool)
	for _, id := range ids {
		if _, ok := s.externalID[id]; ok {
			found[id] = true
		}
	}
	return found, nil
}

// BulkInsert stores every record that does not collide on id or external id.
func (s *MemoryEventStore) BulkInsert(ctx context.Context, events []models.Event) (models.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result models.BulkResult
	for _, event := range events {
		if _, ok := s.events[event.ID]; ok {
			result.Failed = append(result.Failed, models.BulkFailure{Event: event, Reason: "duplicate id"})
			continue
		}
		if event.SourceExternalID != "" {
			if _, ok := s.externalID[event.SourceExternalID]; ok {
				result.Failed = append(result.Failed, models.BulkFailure{Event: event, Reason: "duplicate source_external_id"})
				continue
			}
			s.externalID[event.SourceExternalID] = event.ID
		}
		s.events[event.ID] = event
		result.Succeeded = append(result.Succeeded, event)
	}
	return result, nil
}

// Create stores a single event.
func (s *MemoryEventStore) Create(ctx context.Context, event models.Event) error {
	result, err := s.BulkInsert(ctx, []models.Event{event})
	if err != nil {
		return err
	}
	if len(result.Failed) > 0 {
		return errors.New(result.Failed[0].Reason)
	}
	return nil
}

// GetByID returns a copy of the stored event.
func (s *MemoryEventStore) GetByID(ctx context.Context, id string) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return &event, nil
}

// FindPublishable returns approved, unposted, not pending events dated at or
// after now, soonest first with ties broken by more upvotes.
func (s *MemoryEventStore) FindPublishable(ctx context.Context, now time.Time, limit int) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matching []models.Event
	for _, event := range s.events {
		if event.IsPublishable(now) {
			matching = append(matching, event)
		}
	}

	sort.Slice(matching, func(i, j int) bool {
		if !matching[i].Date.Equal(matching[j].Date) {
			return matching[i].Date.Before(matching[j].Date)
		}
		if matching[i].Upvotes != matching[j].Upvotes {
			return matching[i].Upvotes > matching[j].Upvotes
		}
		return matching[i].ID < matching[j].ID
	})

	if limit > 0 && len(matching) > limit {
		matching = matching[:limit]
	}
	return matching, nil
}

// MarkPostPending records that a post attempt is starting.
func (s *MemoryEventStore) MarkPostPending(ctx context.Context, id string, at time.Time) error {
	return s.update(id, func(e *models.Event) {
		e.PostPendingAt = &at
		e.UpdatedAt = at
	})
}

// MarkPosted sets the posted flag and clears the pending marker.
func (s *MemoryEventStore) MarkPosted(ctx context.Context, id, postID string, at time.Time) error {
	return s.update(id, func(e *models.Event) {
		e.PostedToX = true
		e.PostedToXAt = &at
		e.PostedTweetID = postID
		e.PostPendingAt = nil
		e.UpdatedAt = at
	})
}

// ClearPostPending removes the pending marker after a failed attempt.
func (s *MemoryEventStore) ClearPostPending(ctx context.Context, id string) error {
	return s.update(id, func(e *models.Event) {
		e.PostPendingAt = nil
	})
}

// FindInDoubt returns events whose post attempt never completed.
func (s *MemoryEventStore) FindInDoubt(ctx context.Context) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Event
	for _, event := range s.events {
		if event.InDoubt() {
			out = append(out, event)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Size returns the number of stored events.
func (s *MemoryEventStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *MemoryEventStore) update(id string, fn func(*models.Event)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return ErrEventNotFound
	}
	fn(&event)
	s.events[id] = event
	return nil
}
