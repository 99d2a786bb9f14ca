package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eventscout/eventscout/internal/enrichment"
	"github.com/eventscout/eventscout/internal/models"
	"github.com/eventscout/eventscout/internal/patterns"
)

// StrategyAI names drafts produced by the generative model.
const StrategyAI = "ai"

// ErrMalformedResponse marks a model reply that cannot be turned into a draft.
var ErrMalformedResponse = errors.New("malformed model response")

// Completer is a prompt-in, JSON-out model call.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt, operation string) (string, error)
}

// AIStrategy asks a generative model whether a post is a public event.
type AIStrategy struct {
	completer Completer
	prompt    enrichment.EventPrompt
	lib       *patterns.Library
}

// NewAIStrategy creates the model-backed strategy. The pattern library fills
// in fields the model left out or got wrong.
func NewAIStrategy(completer Completer, region string, lib *patterns.Library) *AIStrategy {
	return &AIStrategy{
		completer: completer,
		prompt:    enrichment.EventPrompt{Region: region},
		lib:       lib,
	}
}

// Name implements Strategy.
func (s *AIStrategy) Name() string {
	return StrategyAI
}

type aiEvent struct {
	IsEvent     *bool   `json:"isEvent"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	Location    string  `json:"location"`
	Category    string  `json:"category"`
	IsFree      *bool   `json:"isFree"`
	Link        *string `json:"link"`
}

// Extract returns nil when the model says the post is not an event. Any
// transport or format problem is returned as an error so the caller can fall
// back to the regex strategy.
func (s *AIStrategy) Extract(ctx context.Context, post models.Post) (*models.EventDraft, error) {
	reply, err := s.completer.CompleteJSON(ctx, s.prompt.SystemPrompt(), s.prompt.UserPrompt(post.Text, post.CreatedAt), "event_extraction")
	if err != nil {
		return nil, err
	}
	return s.parse(post, reply)
}

func (s *AIStrategy) parse(post models.Post, reply string) (*models.EventDraft, error) {
	var parsed aiEvent
	if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if parsed.IsEvent == nil {
		return nil, fmt.Errorf("%w: missing isEvent", ErrMalformedResponse)
	}
	if !*parsed.IsEvent {
		return nil, nil
	}

	var missing []string
	if strings.TrimSpace(parsed.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(parsed.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(parsed.Location) == "" {
		missing = append(missing, "location")
	}
	if strings.TrimSpace(parsed.Date) == "" {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedResponse, strings.Join(missing, ", "))
	}

	if !s.lib.IsLocaleRelevant(parsed.Location) {
		return nil, fmt.Errorf("%w: location %q outside region", ErrMalformedResponse, parsed.Location)
	}

	date, err := parseModelDate(parsed.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	category, ok := models.ParseCategory(parsed.Category)
	if !ok {
		category = s.lib.Category(post.Text)
	}

	isFree := s.lib.IsFree(post.Text)
	if parsed.IsFree != nil {
		isFree = *parsed.IsFree
	}

	draft := &models.EventDraft{
		Title:       strings.TrimSpace(parsed.Title),
		Description: strings.TrimSpace(parsed.Description),
		Date:        date,
		Location:    strings.TrimSpace(parsed.Location),
		Category:    category,
		IsFree:      isFree,
	}
	if parsed.Link != nil {
		draft.Link = strings.TrimSpace(*parsed.Link)
	}
	return draft, nil
}

var modelDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseModelDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range modelDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}
