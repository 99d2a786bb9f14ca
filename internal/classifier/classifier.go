// Package classifier decides whether a post is worth extracting an event from.
package classifier

import (
	"github.com/eventscout/eventscout/internal/patterns"
)

// Gate identifies a classifier stage.
type Gate string

const (
	GateNone     Gate = ""
	GateSpam     Gate = "spam"
	GateLocale   Gate = "locale"
	GateNotEvent Gate = "not_event"
)

// Gates lists the stages in evaluation order, cheapest and most rejecting first.
var Gates = []Gate{GateSpam, GateLocale, GateNotEvent}

// Decision is the outcome of classifying one post.
type Decision struct {
	Accepted bool
	// Gate is the first gate that failed, GateNone when accepted.
	Gate Gate
}

// Classifier composes pattern predicates into accept/reject decisions.
type Classifier struct {
	lib *patterns.Library
}

// New creates a classifier over a compiled pattern library.
func New(lib *patterns.Library) *Classifier {
	return &Classifier{lib: lib}
}

// Classify runs the gates in order and stops at the first failure.
func (c *Classifier) Classify(text string) Decision {
	if c.IsSpam(text) {
		return Decision{Gate: GateSpam}
	}
	if !c.IsLocaleRelevant(text) {
		return Decision{Gate: GateLocale}
	}
	if !c.LooksLikeEvent(text) {
		return Decision{Gate: GateNotEvent}
	}
	return Decision{Accepted: true}
}

// IsSpam is the spam and inappropriate-content gate.
func (c *Classifier) IsSpam(text string) bool {
	return c.lib.IsSpam(text)
}

// IsLocaleRelevant is the locale gate.
func (c *Classifier) IsLocaleRelevant(text string) bool {
	return c.lib.IsLocaleRelevant(text)
}

// LooksLikeEvent requires both a strong event keyword and a date indicator.
// A time of day on its own is not enough.
func (c *Classifier) LooksLikeEvent(text string) bool {
	return c.lib.HasEventKeyword(text) && c.lib.HasDateIndicator(text)
}
