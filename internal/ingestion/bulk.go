package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eventscout/eventscout/internal/models"
	"github.com/eventscout/eventscout/internal/patterns"
	"github.com/google/uuid"
)

// Stats is the accounting for one ingest call. Once Ingest returns,
// Created + Duplicates + Failed == Total.
type Stats struct {
	Total      int `json:"total"`
	Created    int `json:"created"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

// BulkIngestor dedupes drafts against the store, bulk-writes the rest and
// hands created records to the side effects in the background.
type BulkIngestor struct {
	store       EventStore
	effects     *SideEffects
	lib         *patterns.Library
	submitterID string
	logger      *slog.Logger
	now         func() time.Time

	wg sync.WaitGroup
}

// NewBulkIngestor creates an ingestor. effects may be nil.
func NewBulkIngestor(store EventStore, effects *SideEffects, lib *patterns.Library, submitterID string, logger *slog.Logger) *BulkIngestor {
	return &BulkIngestor{
		store:       store,
		effects:     effects,
		lib:         lib,
		submitterID: submitterID,
		logger:      logger,
		now:         time.Now,
	}
}

// Ingest persists drafts. A draft whose external id is already stored, or
// repeats an earlier draft in the same call, counts as a duplicate. Write
// failures of individual records count as failed; only a failed existence
// lookup or a failed bulk call is returned as an error.
func (b *BulkIngestor) Ingest(ctx context.Context, drafts []models.EventDraft) (Stats, error) {
	stats := Stats{Total: len(drafts)}
	if len(drafts) == 0 {
		return stats, nil
	}

	ids := make([]string, 0, len(drafts))
	for _, d := range drafts {
		if d.SourceExternalID != "" {
			ids = append(ids, d.SourceExternalID)
		}
	}

	existing, err := b.store.FindExistingExternalIDs(ctx, ids)
	if err != nil {
		return stats, fmt.Errorf("find existing external ids: %w", err)
	}

	seen := make(map[string]bool, len(drafts))
	candidates := make([]models.Event, 0, len(drafts))
	for _, d := range drafts {
		if id := d.SourceExternalID; id != "" {
			if existing[id] || seen[id] {
				stats.Duplicates++
				continue
			}
			seen[id] = true
		}
		candidates = append(candidates, b.prepare(d))
	}

	if len(candidates) == 0 {
		b.logger.Info("bulk ingest complete", "total", stats.Total, "created", 0, "duplicates", stats.Duplicates, "failed", 0)
		return stats, nil
	}

	result, err := b.store.BulkInsert(ctx, candidates)
	if err != nil {
		stats.Failed = len(candidates)
		return stats, fmt.Errorf("bulk insert %d events: %w", len(candidates), err)
	}

	stats.Created = len(result.Succeeded)
	stats.Failed = len(result.Failed)
	// A store that reports fewer rows than it was given left the rest unaccounted.
	if unreported := len(candidates) - stats.Created - stats.Failed; unreported > 0 {
		b.logger.Warn("bulk insert left records unreported", "count", unreported)
		stats.Failed += unreported
	}

	for _, f := range result.Failed {
		b.logger.Info("event insert failed",
			"source_external_id", f.Event.SourceExternalID,
			"reason", f.Reason)
	}

	b.logger.Info("bulk ingest complete",
		"total", stats.Total,
		"created", stats.Created,
		"duplicates", stats.Duplicates,
		"failed", stats.Failed)

	if b.effects != nil && len(result.Succeeded) > 0 {
		created := result.Succeeded
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.effects.Run(context.WithoutCancel(ctx), created)
		}()
	}

	return stats, nil
}

// Wait blocks until background side effects from earlier calls finish.
func (b *BulkIngestor) Wait() {
	b.wg.Wait()
}

// prepare fills the repository defaults for a new record.
func (b *BulkIngestor) prepare(d models.EventDraft) models.Event {
	now := b.now()
	status := d.Status
	if status == "" {
		status = models.EventStatusPending
	}

	event := models.Event{
		ID:               uuid.New().String(),
		Title:            d.Title,
		Description:      d.Description,
		Date:             d.Date,
		Location:         d.Location,
		Category:         d.Category,
		IsFree:           d.IsFree,
		Link:             d.Link,
		Source:           models.EventSourceX,
		SourceExternalID: d.SourceExternalID,
		SourceURL:        d.SourceURL,
		ImageURLs:        d.ImageURLs,
		Status:           status,
		EventType:        models.EventTypeOnline,
		SubmitterID:      b.submitterID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if event.ImageURLs == nil {
		event.ImageURLs = []string{}
	}

	if b.lib != nil {
		if coords, ok := b.lib.Geocode(d.Location); ok {
			event.Coordinates = &coords
		}
	}
	return event
}
