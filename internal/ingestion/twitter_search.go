package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/eventscout/eventscout/internal/models"
)

const defaultSearchBaseURL = "https://api.twitter.com/2"

// ErrMissingCredentials is returned when no bearer token is configured.
var ErrMissingCredentials = errors.New("twitter bearer token not configured")

// RateLimit is the quota state reported by the last search response.
type RateLimit struct {
	Remaining int
	Reset     time.Time
	Known     bool
}

// RateLimitError is returned for a throttled (429) search.
type RateLimitError struct {
	Reset time.Time // zero when the response carried no reset hint
	Body  string
}

func (e *RateLimitError) Error() string {
	if e.Reset.IsZero() {
		return "twitter search rate limited"
	}
	return fmt.Sprintf("twitter search rate limited until %s", e.Reset.UTC().Format(time.RFC3339))
}

// SearchResult is one page of recent-search results.
type SearchResult struct {
	Posts     []models.Post
	NewestID  string
	RateLimit RateLimit
}

// TwitterSearchClient calls the v2 recent search endpoint with an app bearer token.
type TwitterSearchClient struct {
	bearerToken string
	baseURL     string
	client      *http.Client
}

// NewTwitterSearchClient creates a search client. baseURL may be empty.
func NewTwitterSearchClient(bearerToken, baseURL string) *TwitterSearchClient {
	if baseURL == "" {
		baseURL = defaultSearchBaseURL
	}
	return &TwitterSearchClient{
		bearerToken: bearerToken,
		baseURL:     baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type searchTweet struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	AuthorID    string    `json:"author_id"`
	CreatedAt   time.Time `json:"created_at"`
	Attachments struct {
		MediaKeys []string `json:"media_keys"`
	} `json:"attachments"`
	Entities struct {
		URLs []struct {
			URL         string `json:"url"`
			ExpandedURL string `json:"expanded_url"`
		} `json:"urls"`
	} `json:"entities"`
}

type searchResponse struct {
	Data     []searchTweet `json:"data"`
	Includes struct {
		Media []models.MediaAsset `json:"media"`
	} `json:"includes"`
	Meta struct {
		NewestID    string `json:"newest_id"`
		ResultCount int    `json:"result_count"`
	} `json:"meta"`
}

// SearchRecent fetches posts matching query, newer than sinceID when set.
func (c *TwitterSearchClient) SearchRecent(ctx context.Context, query string, maxResults int, sinceID string) (*SearchResult, error) {
	if c.bearerToken == "" {
		return nil, ErrMissingCredentials
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("max_results", strconv.Itoa(clampMaxResults(maxResults)))
	params.Set("tweet.fields", "created_at,author_id,entities,attachments")
	params.Set("expansions", "attachments.media_keys")
	params.Set("media.fields", "url,preview_image_url,type")
	if sinceID != "" {
		params.Set("since_id", sinceID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tweets/search/recent?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	limit := parseRateLimit(resp.Header)

	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &RateLimitError{Reset: limit.Reset, Body: string(body)}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("twitter API error: %d - %s", resp.StatusCode, string(body))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	return &SearchResult{
		Posts:     toPosts(result),
		NewestID:  result.Meta.NewestID,
		RateLimit: limit,
	}, nil
}

func toPosts(result searchResponse) []models.Post {
	media := make(map[string]models.MediaAsset, len(result.Includes.Media))
	for _, m := range result.Includes.Media {
		media[m.MediaKey] = m
	}

	posts := make([]models.Post, 0, len(result.Data))
	for _, t := range result.Data {
		post := models.Post{
			ID:        t.ID,
			Text:      t.Text,
			CreatedAt: t.CreatedAt,
			AuthorID:  t.AuthorID,
			MediaKeys: t.Attachments.MediaKeys,
		}
		for _, u := range t.Entities.URLs {
			post.URLs = append(post.URLs, models.URLEntity{URL: u.URL, ExpandedURL: u.ExpandedURL})
		}
		for _, key := range t.Attachments.MediaKeys {
			if m, ok := media[key]; ok {
				post.Media = append(post.Media, m)
			}
		}
		posts = append(posts, post)
	}
	return posts
}

func parseRateLimit(h http.Header) RateLimit {
	var limit RateLimit
	if v := h.Get("x-rate-limit-remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit.Remaining = n
			limit.Known = true
		}
	}
	if v := h.Get("x-rate-limit-reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			limit.Reset = time.Unix(epoch, 0)
		}
	}
	return limit
}

// The recent search endpoint accepts 10..100 results per page.
func clampMaxResults(n int) int {
	switch {
	case n < 10:
		return 10
	case n > 100:
		return 100
	}
	return n
}
