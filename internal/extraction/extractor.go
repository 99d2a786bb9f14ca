// Package extraction turns accepted posts into event drafts.
package extraction

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/eventscout/eventscout/internal/models"
	"golang.org/x/text/unicode/norm"
)

// Strategy derives the content fields of a draft from a post. A nil draft
// with a nil error means the post is not an event.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, post models.Post) (*models.EventDraft, error)
}

var imageURLRe = regexp.MustCompile(`(?i)https?://[^\s]+\.(?:jpg|jpeg|png|gif)`)

var platformHosts = []string{"x.com", "twitter.com", "t.co"}

// Extractor runs the primary strategy, falls back to regex on any primary
// failure, and finishes every draft with the same shared step.
type Extractor struct {
	primary Strategy
	regex   *RegexStrategy
	logger  *slog.Logger
}

// NewExtractor creates an extractor. primary may be nil, in which case only
// the regex strategy runs.
func NewExtractor(primary Strategy, regex *RegexStrategy, logger *slog.Logger) *Extractor {
	return &Extractor{primary: primary, regex: regex, logger: logger}
}

// Extract returns a finalized draft, or nil when the post does not describe
// an event. Errors are only returned for context cancellation.
func (e *Extractor) Extract(ctx context.Context, post models.Post) (*models.EventDraft, error) {
	post.Text = norm.NFC.String(post.Text)
	strategy := StrategyRegex

	if e.primary != nil {
		draft, err := e.primary.Extract(ctx, post)
		if err == nil {
			if draft == nil {
				e.logger.Debug("post is not an event", "post_id", post.ID, "strategy", e.primary.Name())
				return nil, nil
			}
			return e.finalize(post, draft, e.primary.Name()), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.logger.Info("primary extraction failed, falling back to regex",
			"post_id", post.ID,
			"strategy", e.primary.Name(),
			"error", err)
		strategy = StrategyRegexFallback
	}

	draft, err := e.regex.Extract(ctx, post)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		e.logger.Debug("regex extraction found no event", "post_id", post.ID)
		return nil, nil
	}
	return e.finalize(post, draft, strategy), nil
}

// finalize fills the fields that do not depend on the strategy.
func (e *Extractor) finalize(post models.Post, draft *models.EventDraft, strategy string) *models.EventDraft {
	if draft.Link == "" || isPlatformURL(draft.Link) {
		draft.Link = externalLink(post)
	}
	draft.SourceExternalID = post.ID
	draft.SourceURL = post.PermalinkURL()
	draft.ImageURLs = imageURLs(post)
	draft.Status = models.EventStatusPending
	draft.Strategy = strategy
	return draft
}

// externalLink returns the first link entity that does not point back at the platform.
func externalLink(post models.Post) string {
	for _, u := range post.URLs {
		if u.ExpandedURL != "" && !isPlatformURL(u.ExpandedURL) {
			return u.ExpandedURL
		}
	}
	return ""
}

func isPlatformURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, h := range platformHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// imageURLs prefers attached photos, falling back to bare image links in the text.
func imageURLs(post models.Post) []string {
	byKey := make(map[string]models.MediaAsset, len(post.Media))
	for _, m := range post.Media {
		byKey[m.MediaKey] = m
	}

	var urls []string
	for _, key := range post.MediaKeys {
		m, ok := byKey[key]
		if !ok || (m.Type != "photo" && m.PreviewImageURL == "") {
			continue
		}
		if m.URL != "" {
			urls = append(urls, m.URL)
		} else if m.PreviewImageURL != "" {
			urls = append(urls, m.PreviewImageURL)
		}
	}
	if len(urls) > 0 {
		return urls
	}
	return imageURLRe.FindAllString(post.Text, -1)
}
