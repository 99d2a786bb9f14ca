package models

import (
	"fmt"
	"time"
)

// Post is a short externally authored social post, the unit of retrieval.
type Post struct {
	ID        string       `json:"id"` // Platform-assigned, used as the idempotency key
	Text      string       `json:"text"`
	CreatedAt time.Time    `json:"created_at"`
	AuthorID  string       `json:"author_id,omitempty"`
	MediaKeys []string     `json:"media_keys,omitempty"`
	URLs      []URLEntity  `json:"urls,omitempty"`
	Media     []MediaAsset `json:"-"` // Resolved from the response includes table
}

// URLEntity is a hyperlink entity attached to a post.
type URLEntity struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
}

// MediaAsset is an attached media item resolved by media key.
type MediaAsset struct {
	MediaKey        string `json:"media_key"`
	Type            string `json:"type"`
	URL             string `json:"url,omitempty"`
	PreviewImageURL string `json:"preview_image_url,omitempty"`
}

// PermalinkURL returns the link back to the post on the platform.
func (p Post) PermalinkURL() string {
	author := p.AuthorID
	if author == "" {
		author = "unknown"
	}
	return fmt.Sprintf("https://x.com/%s/status/%s", author, p.ID)
}

// NewerPostID reports whether id a is newer than id b. Platform ids are
// decimal snowflakes, so a longer id is always newer.
func NewerPostID(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}

// LatestPostID returns the newest id among posts, or "" when empty.
func LatestPostID(posts []Post) string {
	latest := ""
	for _, p := range posts {
		if latest == "" || NewerPostID(p.ID, latest) {
			latest = p.ID
		}
	}
	return latest
}
