package ingestion

import (
	"context"
	"sync"
)

// CursorStore maps a search query to the newest post id already retrieved
// for it.
type CursorStore interface {
	GetCursor(ctx context.Context, query string) (string, error)
	SetCursor(ctx context.Context, query, lastSeenID string) error
}

// MemoryCursorStore keeps cursors for the life of the process.
type MemoryCursorStore struct {
	mu      sync.RWMutex
	cursors map[string]string
}

// NewMemoryCursorStore creates an empty store.
func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{cursors: make(map[string]string)}
}

// GetCursor returns "" for an unknown query.
func (s *MemoryCursorStore) GetCursor(ctx context.Context, query string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursors[query], nil
}

// SetCursor records the last-seen id for query.
func (s *MemoryCursorStore) SetCursor(ctx context.Context, query, lastSeenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[query] = lastSeenID
	return nil
}
