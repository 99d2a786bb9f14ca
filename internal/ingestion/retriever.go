package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eventscout/eventscout/internal/models"
)

// Searcher is the external search call.
type Searcher interface {
	SearchRecent(ctx context.Context, query string, maxResults int, sinceID string) (*SearchResult, error)
}

// RetrieverConfig holds the rate-limit handling knobs.
type RetrieverConfig struct {
	// Buffer is added to every computed reset wait.
	Buffer time.Duration
	// DefaultThrottleWait is used after a throttled response without a
	// reset hint.
	DefaultThrottleWait time.Duration
	// MaxRetries bounds retries of a throttled search.
	MaxRetries int
}

// DefaultRetrieverConfig returns the production defaults.
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		Buffer:              2 * time.Second,
		DefaultThrottleWait: 60 * time.Second,
		MaxRetries:          1,
	}
}

// Retriever wraps the search call with quota tracking, throttle retries and
// per-query cursors.
type Retriever struct {
	searcher Searcher
	cursors  CursorStore
	config   RetrieverConfig
	logger   *slog.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	limit RateLimit
}

// NewRetriever creates a retriever that owns the given cursor store.
func NewRetriever(searcher Searcher, cursors CursorStore, config RetrieverConfig, logger *slog.Logger) *Retriever {
	return &Retriever{
		searcher: searcher,
		cursors:  cursors,
		config:   config,
		logger:   logger,
		now:      time.Now,
		sleep:    SleepContext,
	}
}

// RateLimitWait is how long to wait for a quota reset: reset - now + buffer,
// never negative.
func RateLimitWait(reset, now time.Time, buffer time.Duration) time.Duration {
	wait := reset.Sub(now) + buffer
	if wait < 0 {
		return 0
	}
	return wait
}

// Search returns posts for query that are newer than the stored cursor. An
// empty result is not an error. On success the cursor advances to the newest
// returned post.
func (r *Retriever) Search(ctx context.Context, query string, maxResults int) ([]models.Post, error) {
	if err := r.waitForQuota(ctx); err != nil {
		return nil, err
	}

	sinceID, err := r.cursors.GetCursor(ctx, query)
	if err != nil {
		r.logger.Warn("failed to read search cursor, searching without it", "query", query, "error", err)
		sinceID = ""
	}

	policy := RetryPolicy{
		MaxRetries: r.config.MaxRetries,
		Sleep:      r.sleep,
	}

	var result *SearchResult
	err = Retry(ctx, policy, func(attempt int) error {
		res, err := r.searcher.SearchRecent(ctx, query, maxResults, sinceID)
		if err != nil {
			var rle *RateLimitError
			if errors.As(err, &rle) {
				r.recordLimit(RateLimit{Remaining: 0, Reset: rle.Reset, Known: true})
				wait := r.throttleWait(rle.Reset)
				r.logger.Warn("search rate limited", "query", query, "attempt", attempt+1, "wait", wait)
				return NewRetryableErrorWithDelay(err, wait)
			}
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	if result.RateLimit.Known {
		r.recordLimit(result.RateLimit)
	}

	newest := result.NewestID
	if newest == "" {
		newest = models.LatestPostID(result.Posts)
	}
	if newest != "" && (sinceID == "" || models.NewerPostID(newest, sinceID)) {
		if err := r.cursors.SetCursor(ctx, query, newest); err != nil {
			r.logger.Warn("failed to store search cursor", "query", query, "error", err)
		}
	}

	r.logger.Debug("search complete",
		"query", query,
		"since_id", sinceID,
		"results", len(result.Posts),
		"remaining", result.RateLimit.Remaining)

	return result.Posts, nil
}

// RateLimit returns the last known quota state.
func (r *Retriever) RateLimit() RateLimit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.limit
}

func (r *Retriever) recordLimit(limit RateLimit) {
	r.mu.Lock()
	r.limit = limit
	r.mu.Unlock()
}

// waitForQuota sleeps until the reset when the last response exhausted the quota.
func (r *Retriever) waitForQuota(ctx context.Context) error {
	limit := r.RateLimit()
	if !limit.Known || limit.Remaining > 0 || limit.Reset.IsZero() {
		return nil
	}

	wait := RateLimitWait(limit.Reset, r.now(), r.config.Buffer)
	if wait == 0 {
		return nil
	}
	r.logger.Info("search quota exhausted, waiting for reset", "wait", wait, "reset", limit.Reset)
	return r.sleep(ctx, wait)
}

// throttleWait sleeps until the reset plus buffer; without a reset hint the
// default wait is used.
func (r *Retriever) throttleWait(reset time.Time) time.Duration {
	if reset.IsZero() {
		return r.config.DefaultThrottleWait
	}
	return RateLimitWait(reset, r.now(), r.config.Buffer)
}
