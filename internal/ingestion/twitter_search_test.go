package ingestion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTwitterSearchClient_SearchRecent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tweets/search/recent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("unexpected auth header %q", got)
		}
		q := r.URL.Query()
		if q.Get("query") != "lagos summit" || q.Get("max_results") != "100" || q.Get("since_id") != "10" {
			t.Errorf("unexpected query params: %v", q)
		}
		if q.Get("expansions") != "attachments.media_keys" {
			t.Errorf("expected media expansion, got %q", q.Get("expansions"))
		}

		w.Header().Set("x-rate-limit-remaining", "449")
		w.Header().Set("x-rate-limit-reset", "1735732800")
		_, _ = w.Write([]byte(`{
			"data": [{
				"id": "20",
				"text": "Lagos AI Summit",
				"author_id": "42",
				"created_at": "2025-01-01T10:00:00.000Z",
				"attachments": {"media_keys": ["3_1", "3_missing"]},
				"entities": {"urls": [{"url": "https://t.co/x", "expanded_url": "https://summit.ng"}]}
			}],
			"includes": {"media": [{"media_key": "3_1", "type": "photo", "url": "https://pbs.twimg.com/a.jpg"}]},
			"meta": {"newest_id": "20", "result_count": 1}
		}`))
	}))
	defer server.Close()

	client := NewTwitterSearchClient("token", server.URL)
	result, err := client.SearchRecent(context.Background(), "lagos summit", 500, "10")
	if err != nil {
		t.Fatalf("SearchRecent returned error: %v", err)
	}

	if result.NewestID != "20" || len(result.Posts) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	post := result.Posts[0]
	if post.AuthorID != "42" || !post.CreatedAt.Equal(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected post: %+v", post)
	}
	if len(post.URLs) != 1 || post.URLs[0].ExpandedURL != "https://summit.ng" {
		t.Errorf("unexpected urls: %+v", post.URLs)
	}
	if len(post.Media) != 1 || post.Media[0].URL != "https://pbs.twimg.com/a.jpg" {
		t.Errorf("unexpected media: %+v", post.Media)
	}
	if !result.RateLimit.Known || result.RateLimit.Remaining != 449 || result.RateLimit.Reset.Unix() != 1735732800 {
		t.Errorf("unexpected rate limit: %+v", result.RateLimit)
	}
}

func TestTwitterSearchClient_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-remaining", "0")
		w.Header().Set("x-rate-limit-reset", "1735732800")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"title":"Too Many Requests"}`))
	}))
	defer server.Close()

	_, err := NewTwitterSearchClient("token", server.URL).SearchRecent(context.Background(), "q", 10, "")
	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rle.Reset.Unix() != 1735732800 {
		t.Errorf("unexpected reset: %v", rle.Reset)
	}
}

func TestTwitterSearchClient_Errors(t *testing.T) {
	if _, err := NewTwitterSearchClient("", "").SearchRecent(context.Background(), "q", 10, ""); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := NewTwitterSearchClient("bad", server.URL).SearchRecent(context.Background(), "q", 10, "")
	var rle *RateLimitError
	if err == nil || errors.As(err, &rle) {
		t.Errorf("expected plain API error, got %v", err)
	}
}

func TestClampMaxResults(t *testing.T) {
	for in, want := range map[int]int{0: 10, 10: 10, 55: 55, 100: 100, 250: 100} {
		if got := clampMaxResults(in); got != want {
			t.Errorf("clampMaxResults(%d) = %d, want %d", in, got, want)
		}
	}
}
