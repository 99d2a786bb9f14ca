package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eventscout/eventscout/internal/ingestion"
	"github.com/eventscout/eventscout/internal/metrics"
	"github.com/eventscout/eventscout/internal/models"
)

// Poster publishes text to the platform.
type Poster interface {
	PostTweet(ctx context.Context, text string) (string, error)
}

// PublishStore is the slice of the content repository the publisher needs.
type PublishStore interface {
	FindPublishable(ctx context.Context, now time.Time, limit int) ([]models.Event, error)
	MarkPostPending(ctx context.Context, id string, at time.Time) error
	MarkPosted(ctx context.Context, id, postID string, at time.Time) error
	ClearPostPending(ctx context.Context, id string) error
	FindInDoubt(ctx context.Context) ([]models.Event, error)
}

// PublisherConfig holds the publish pass settings.
type PublisherConfig struct {
	Limit           int
	BatchSize       int
	BatchDelay      time.Duration
	ThrottleBackoff time.Duration
	MaxRetries      int
	Location        *time.Location
}

// DefaultPublisherConfig returns the production settings.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		Limit:           10,
		BatchSize:       5,
		BatchDelay:      5 * time.Second,
		ThrottleBackoff: 60 * time.Second,
		MaxRetries:      1,
		Location:        time.UTC,
	}
}

// Publisher posts approved upcoming events back to the platform.
type Publisher struct {
	poster  Poster
	store   PublishStore
	config  PublisherConfig
	metrics *metrics.Collector
	logger  *slog.Logger
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewPublisher creates a publisher. collector may be nil.
func NewPublisher(poster Poster, store PublishStore, config PublisherConfig, collector *metrics.Collector, logger *slog.Logger) *Publisher {
	return &Publisher{
		poster:  poster,
		store:   store,
		config:  config,
		metrics: collector,
		logger:  logger,
		now:     time.Now,
		sleep:   ingestion.SleepContext,
	}
}

// Publish formats and posts one record. The record is marked pending before
// the post call; success marks it posted, failure clears the marker. If the
// post succeeds but marking fails, the record stays pending (in doubt) and is
// never selected again automatically.
func (p *Publisher) Publish(ctx context.Context, record models.Event) error {
	text := FormatEventMessage(record, p.config.Location)

	if err := p.store.MarkPostPending(ctx, record.ID, p.now()); err != nil {
		return fmt.Errorf("mark %s pending: %w", record.ID, err)
	}

	var postID string
	policy := ingestion.RetryPolicy{MaxRetries: p.config.MaxRetries, Sleep: p.sleep}
	err := ingestion.Retry(ctx, policy, func(attempt int) error {
		id, err := p.poster.PostTweet(ctx, text)
		if err != nil {
			if errors.Is(err, ErrThrottled) {
				p.logger.Warn("post throttled, backing off",
					"event_id", record.ID,
					"attempt", attempt+1,
					"backoff", p.config.ThrottleBackoff)
				return ingestion.NewRetryableErrorWithDelay(err, p.config.ThrottleBackoff)
			}
			return err
		}
		postID = id
		return nil
	})
	if err != nil {
		p.metrics.Published("failed")
		if clearErr := p.store.ClearPostPending(context.WithoutCancel(ctx), record.ID); clearErr != nil {
			p.logger.Error("failed to clear pending marker", "event_id", record.ID, "error", clearErr)
		}
		return fmt.Errorf("post event %s: %w", record.ID, err)
	}

	if err := p.store.MarkPosted(context.WithoutCancel(ctx), record.ID, postID, p.now()); err != nil {
		p.metrics.Published("in_doubt")
		p.logger.Error("posted but failed to mark event posted",
			"event_id", record.ID,
			"tweet_id", postID,
			"error", err)
		return fmt.Errorf("mark %s posted: %w", record.ID, err)
	}

	p.metrics.Published("posted")
	p.logger.Info("event published", "event_id", record.ID, "tweet_id", postID)
	return nil
}

// PublishPending posts up to Limit publishable records in concurrent
// batches, pausing between batches. It returns how many were posted.
func (p *Publisher) PublishPending(ctx context.Context) (int, error) {
	start := p.now()
	defer func() { p.metrics.PassCompleted("publish", p.now().Sub(start)) }()

	if inDoubt, err := p.store.FindInDoubt(ctx); err != nil {
		p.logger.Warn("failed to list in-doubt events", "error", err)
	} else {
		for _, e := range inDoubt {
			p.logger.Warn("event post in doubt, needs manual check",
				"event_id", e.ID,
				"pending_since", e.PostPendingAt)
		}
	}

	records, err := p.store.FindPublishable(ctx, p.now(), p.config.Limit)
	if err != nil {
		return 0, fmt.Errorf("find publishable events: %w", err)
	}
	if len(records) == 0 {
		p.logger.Info("no events to publish")
		return 0, nil
	}

	size := p.config.BatchSize
	if size <= 0 {
		size = len(records)
	}

	var posted atomic.Int64
	for start := 0; start < len(records); start += size {
		if start > 0 && p.config.BatchDelay > 0 {
			if err := p.sleep(ctx, p.config.BatchDelay); err != nil {
				return int(posted.Load()), err
			}
		}

		end := min(start+size, len(records))
		var wg sync.WaitGroup
		for _, record := range records[start:end] {
			wg.Add(1)
			go func(record models.Event) {
				defer wg.Done()
				if err := p.Publish(ctx, record); err != nil {
					p.logger.Error("failed to publish event", "event_id", record.ID, "error", err)
					return
				}
				posted.Add(1)
			}(record)
		}
		wg.Wait()
	}

	p.logger.Info("publish pass complete", "posted", posted.Load(), "selected", len(records))
	return int(posted.Load()), nil
}
