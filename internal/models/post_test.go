package models

import "testing"

func TestLatestPostID(t *testing.T) {
	posts := []Post{{ID: "999"}, {ID: "1000"}, {ID: "1001"}, {ID: "10"}}
	if got := LatestPostID(posts); got != "1001" {
		t.Errorf("LatestPostID() = %q, want 1001", got)
	}
	if got := LatestPostID(nil); got != "" {
		t.Errorf("LatestPostID(nil) = %q, want empty", got)
	}
}

func TestPost_PermalinkURL(t *testing.T) {
	p := Post{ID: "42", AuthorID: "7"}
	if got := p.PermalinkURL(); got != "https://x.com/7/status/42" {
		t.Errorf("PermalinkURL() = %q", got)
	}

	p.AuthorID = ""
	if got := p.PermalinkURL(); got != "https://x.com/unknown/status/42" {
		t.Errorf("PermalinkURL() without author = %q", got)
	}
}
