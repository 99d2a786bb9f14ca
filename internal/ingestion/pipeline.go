package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventscout/eventscout/internal/classifier"
	"github.com/eventscout/eventscout/internal/metrics"
	"github.com/eventscout/eventscout/internal/models"
	"github.com/google/uuid"
)

const searchFilters = "-is:retweet -is:reply lang:en"

// DefaultQueries are the search queries run on every pass.
var DefaultQueries = []string{
	`(event OR conference OR workshop OR summit OR hackathon) (Lagos OR Abuja OR "Port Harcourt" OR Kano OR Ibadan) ` + searchFilters,
	`(#LagosTech OR #NaijaTech OR #NigerianTech OR #TechInNigeria) (conference OR meetup OR hackathon OR event) ` + searchFilters,
	`Nigeria (blockchain OR fintech OR AI OR "machine learning" OR cybersecurity OR startup) (summit OR conference OR event OR meetup) ` + searchFilters,
}

// PostSource returns posts for a query, newer than the last pass.
type PostSource interface {
	Search(ctx context.Context, query string, maxResults int) ([]models.Post, error)
}

// PostClassifier accepts or rejects post text.
type PostClassifier interface {
	Classify(text string) classifier.Decision
}

// DraftExtractor turns an accepted post into a draft, or nil.
type DraftExtractor interface {
	Extract(ctx context.Context, post models.Post) (*models.EventDraft, error)
}

// DraftValidator is the last gate before persistence.
type DraftValidator interface {
	Validate(draft *models.EventDraft) error
}

// ErrorLog records pass failures for operators. Writes are best-effort.
type ErrorLog interface {
	Create(ctx context.Context, ingestionErr models.IngestionError) error
}

// PipelineConfig holds configuration for one ingestion pass.
type PipelineConfig struct {
	Queries    []string
	MaxResults int
	QueryDelay time.Duration
}

// DefaultPipelineConfig returns sensible defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Queries:    DefaultQueries,
		MaxResults: 100,
		QueryDelay: 5 * time.Second,
	}
}

// PassReport summarizes one ingestion pass.
type PassReport struct {
	Queries       int           `json:"queries"`
	FailedQueries int           `json:"failed_queries"`
	Retrieved     int           `json:"retrieved"`
	Repeats       int           `json:"repeats"`
	Rejected      int           `json:"rejected"`
	NotExtracted  int           `json:"not_extracted"`
	Invalid       int           `json:"invalid"`
	Drafts        int           `json:"drafts"`
	Stats         Stats         `json:"stats"`
	Duration      time.Duration `json:"duration"`
}

// Pipeline drives one ingestion pass: search every query, classify,
// extract, validate, then bulk-ingest the accumulated drafts.
type Pipeline struct {
	source     PostSource
	classifier PostClassifier
	extractor  DraftExtractor
	validator  DraftValidator
	ingestor   *BulkIngestor
	errors     ErrorLog
	metrics    *metrics.Collector
	logger     *slog.Logger
	config     PipelineConfig
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
}

// NewPipeline creates a pipeline. errorLog and collector may be nil.
func NewPipeline(
	source PostSource,
	postClassifier PostClassifier,
	extractor DraftExtractor,
	validator DraftValidator,
	ingestor *BulkIngestor,
	errorLog ErrorLog,
	collector *metrics.Collector,
	logger *slog.Logger,
	config PipelineConfig,
) *Pipeline {
	return &Pipeline{
		source:     source,
		classifier: postClassifier,
		extractor:  extractor,
		validator:  validator,
		ingestor:   ingestor,
		errors:     errorLog,
		metrics:    collector,
		logger:     logger,
		config:     config,
		sleep:      SleepContext,
		now:        time.Now,
	}
}

// RunPass runs every query sequentially and ingests the surviving drafts.
// A failing query is logged and skipped. Missing credentials, a failed
// ingest or cancellation end the pass with an error.
func (p *Pipeline) RunPass(ctx context.Context) (report PassReport, err error) {
	start := p.now()
	report = PassReport{Queries: len(p.config.Queries)}
	defer func() {
		report.Duration = p.now().Sub(start)
		p.metrics.PassCompleted("ingest", report.Duration)
	}()

	p.logger.Info("starting ingestion pass", "queries", len(p.config.Queries))

	dedup := NewPassDeduplicator()
	var drafts []models.EventDraft

	for i, query := range p.config.Queries {
		if i > 0 && p.config.QueryDelay > 0 {
			if err := p.sleep(ctx, p.config.QueryDelay); err != nil {
				return report, err
			}
		}

		posts, err := p.source.Search(ctx, query, p.config.MaxResults)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			p.recordSearchFailure(ctx, query, err)
			if errors.Is(err, ErrMissingCredentials) {
				return report, err
			}
			report.FailedQueries++
			continue
		}

		p.metrics.PostsRetrieved(len(posts))
		report.Retrieved += len(posts)
		posts = dedup.Filter(posts)

		for _, post := range posts {
			draft, err := p.process(ctx, post, &report)
			if err != nil {
				return report, err
			}
			if draft != nil {
				drafts = append(drafts, *draft)
			}
		}
	}

	report.Repeats = dedup.Stats().Duplicates
	report.Drafts = len(drafts)

	stats, err := p.ingestor.Ingest(ctx, drafts)
	report.Stats = stats
	p.metrics.Ingested(stats.Created, stats.Duplicates, stats.Failed)
	if err != nil {
		p.recordError(ctx, models.ErrorTypeBulkWriteFailed, "", err, map[string]any{"drafts": len(drafts)})
		return report, fmt.Errorf("ingest drafts: %w", err)
	}

	p.logger.Info("ingestion pass complete",
		"retrieved", report.Retrieved,
		"repeats", report.Repeats,
		"rejected", report.Rejected,
		"invalid", report.Invalid,
		"created", stats.Created,
		"duplicates", stats.Duplicates,
		"failed", stats.Failed,
		"failed_queries", report.FailedQueries)

	return report, nil
}

// process classifies, extracts and validates a single post. Soft rejections
// return nil without error.
func (p *Pipeline) process(ctx context.Context, post models.Post, report *PassReport) (*models.EventDraft, error) {
	decision := p.classifier.Classify(post.Text)
	if !decision.Accepted {
		report.Rejected++
		p.metrics.PostRejected(string(decision.Gate))
		p.logger.Debug("post rejected", "post_id", post.ID, "reason", decision.Gate)
		return nil, nil
	}

	draft, err := p.extractor.Extract(ctx, post)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		report.NotExtracted++
		return nil, nil
	}
	p.metrics.DraftExtracted(draft.Strategy)

	if err := p.validator.Validate(draft); err != nil {
		report.Invalid++
		p.metrics.DraftInvalid()
		p.logger.Debug("draft rejected", "post_id", post.ID, "reason", err.Error(), "strategy", draft.Strategy)
		return nil, nil
	}
	return draft, nil
}

func (p *Pipeline) recordSearchFailure(ctx context.Context, query string, err error) {
	errType := models.ErrorTypeSearchFailed
	reason := "error"
	var rle *RateLimitError
	switch {
	case errors.Is(err, ErrMissingCredentials):
		errType = models.ErrorTypeAuthFailed
		reason = "credentials"
	case errors.As(err, &rle):
		errType = models.ErrorTypeRateLimitExceeded
		reason = "rate_limited"
	}

	p.metrics.SearchFailed(reason)
	p.logger.Error("search failed", "query", query, "error", err)
	p.recordError(ctx, errType, query, err, nil)
}

func (p *Pipeline) recordError(ctx context.Context, errType models.IngestionErrorType, query string, err error, metadata map[string]any) {
	if p.errors == nil {
		return
	}
	record := models.IngestionError{
		ID:        uuid.New().String(),
		Platform:  string(models.EventSourceX),
		ErrorType: errType,
		Query:     query,
		ErrorMsg:  err.Error(),
		Metadata:  metadata,
		CreatedAt: p.now(),
	}
	if logErr := p.errors.Create(context.WithoutCancel(ctx), record); logErr != nil {
		p.logger.Warn("failed to record ingestion error", "error", logErr)
	}
}
