package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/eventscout/eventscout/internal/models"
)

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	dedupURLRe    = regexp.MustCompile(`https?://[^\s]+`)
	dedupMention  = regexp.MustCompile(`@\w+`)
	dedupHashtag  = regexp.MustCompile(`#\w+`)
	punctuationRe = regexp.MustCompile(`[.,!?;:"'“”‘’]+`)
)

// PassDeduplicator drops posts already seen earlier in the same pass. A post
// is a repeat when its id was seen, or when its normalized text matches an
// earlier post (the same announcement reposted under another id).
type PassDeduplicator struct {
	ids    map[string]struct{}
	hashes map[string]string
	stats  DeduplicationStats
}

// DeduplicationStats tracks deduplication metrics for one pass.
type DeduplicationStats struct {
	TotalProcessed int
	Duplicates     int
	Unique         int
}

// NewPassDeduplicator creates an empty deduplicator. Create one per pass.
func NewPassDeduplicator() *PassDeduplicator {
	return &PassDeduplicator{
		ids:    make(map[string]struct{}),
		hashes: make(map[string]string),
	}
}

// IsNew reports whether post has not been seen yet.
func (d *PassDeduplicator) IsNew(post models.Post) bool {
	if _, ok := d.ids[post.ID]; ok {
		return false
	}
	_, ok := d.hashes[ComputeContentHash(post.Text)]
	return !ok
}

// Mark records post as seen.
func (d *PassDeduplicator) Mark(post models.Post) {
	d.ids[post.ID] = struct{}{}
	d.hashes[ComputeContentHash(post.Text)] = post.ID
}

// Filter removes repeats from posts, keeping the first occurrence.
func (d *PassDeduplicator) Filter(posts []models.Post) []models.Post {
	unique := make([]models.Post, 0, len(posts))
	for _, post := range posts {
		d.stats.TotalProcessed++
		if d.IsNew(post) {
			d.Mark(post)
			unique = append(unique, post)
			d.stats.Unique++
		} else {
			d.stats.Duplicates++
		}
	}
	return unique
}

// Stats returns the counts so far.
func (d *PassDeduplicator) Stats() DeduplicationStats {
	return d.stats
}

// ComputeContentHash fingerprints normalized post text.
func ComputeContentHash(text string) string {
	hash := sha256.Sum256([]byte(NormalizeContent(text)))
	return hex.EncodeToString(hash[:])
}

// NormalizeContent standardizes content for comparison.
func NormalizeContent(content string) string {
	normalized := strings.ToLower(content)
	normalized = whitespaceRe.ReplaceAllString(normalized, " ")
	normalized = strings.TrimSpace(normalized)

	// Shortened links differ between reposts of the same text.
	normalized = dedupURLRe.ReplaceAllString(normalized, "[URL]")
	normalized = dedupMention.ReplaceAllString(normalized, "[MENTION]")
	normalized = dedupHashtag.ReplaceAllString(normalized, "[TAG]")

	return punctuationRe.ReplaceAllString(normalized, "")
}
