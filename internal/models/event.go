package models

import (
	"strings"
	"time"
)

// Event is a stored event record: the persisted superset of an EventDraft.
type Event struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	Date             time.Time    `json:"date"`
	Location         string       `json:"location"`
	Category         Category     `json:"category"`
	IsFree           bool         `json:"is_free"`
	Link             string       `json:"link,omitempty"`
	Source           EventSource  `json:"source"`
	SourceExternalID string       `json:"source_external_id,omitempty"`
	SourceURL        string       `json:"source_url,omitempty"`
	ImageURLs        []string     `json:"image_urls"`
	Status           EventStatus  `json:"status"`
	EventType        EventType    `json:"event_type"`
	SubmitterID      string       `json:"submitter_id,omitempty"`
	Coordinates      *Coordinates `json:"coordinates,omitempty"`
	Upvotes          int          `json:"upvotes"`
	PostedToX        bool         `json:"posted_to_x"`
	PostedToXAt      *time.Time   `json:"posted_to_x_at,omitempty"`
	PostPendingAt    *time.Time   `json:"post_pending_at,omitempty"`
	PostedTweetID    string       `json:"posted_tweet_id,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// EventDraft is the structured, not yet persisted candidate produced by extraction.
type EventDraft struct {
	Title            string      `json:"title" validate:"min=15"`
	Description      string      `json:"description" validate:"min=50"`
	Date             time.Time   `json:"date" validate:"notstale"`
	Location         string      `json:"location" validate:"required"`
	Category         Category    `json:"category" validate:"category"`
	IsFree           bool        `json:"is_free"`
	Link             string      `json:"link,omitempty"`
	SourceExternalID string      `json:"source_external_id,omitempty"`
	SourceURL        string      `json:"source_url,omitempty"`
	ImageURLs        []string    `json:"image_urls,omitempty"`
	Status           EventStatus `json:"status"`
	// Strategy names the extraction path that produced the draft.
	Strategy string `json:"-"`
}

// EventStatus is the moderation state of a stored event.
type EventStatus string

const (
	EventStatusPending  EventStatus = "pending"  // Awaiting review
	EventStatusApproved EventStatus = "approved" // Eligible for publishing
	EventStatusRejected EventStatus = "rejected"
)

// EventSource identifies how an event entered the repository.
type EventSource string

const (
	EventSourceManual EventSource = "manual"
	EventSourceX      EventSource = "x"
)

// EventType distinguishes online events from in-person ones.
type EventType string

const (
	EventTypeOnline   EventType = "online"
	EventTypeInPerson EventType = "in-person"
)

// Category is the fixed event category enumeration.
type Category string

const (
	CategoryAI            Category = "AI"
	CategoryFintech       Category = "Fintech"
	CategoryStartup       Category = "Startup"
	CategoryCoding        Category = "Coding"
	CategoryHardware      Category = "Hardware"
	CategoryDesign        Category = "Design"
	CategoryMarketing     Category = "Marketing"
	CategoryCybersecurity Category = "Cybersecurity"
	CategoryVirtual       Category = "Virtual"
	CategoryHealthTech    Category = "HealthTech"
	CategoryEdTech        Category = "EdTech"
	CategoryAgriTech      Category = "AgriTech"
)

// DefaultCategory is used when no category keyword matches.
const DefaultCategory = CategoryStartup

// Categories lists every category in lookup order.
var Categories = []Category{
	CategoryAI,
	CategoryFintech,
	CategoryStartup,
	CategoryCoding,
	CategoryHardware,
	CategoryDesign,
	CategoryMarketing,
	CategoryCybersecurity,
	CategoryVirtual,
	CategoryHealthTech,
	CategoryEdTech,
	CategoryAgriTech,
}

// ParseCategory resolves a category name case-insensitively.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}

// IsValid reports whether c is a member of the enumeration.
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Coordinates is a longitude/latitude pair.
type Coordinates struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// IsPublishable reports whether the event may be posted at the given time.
func (e *Event) IsPublishable(now time.Time) bool {
	if e.Status != EventStatusApproved || e.PostedToX || e.PostPendingAt != nil {
		return false
	}
	return !e.Date.Before(now)
}

// InDoubt reports whether a post attempt started but never completed.
func (e *Event) InDoubt() bool {
	return e.PostPendingAt != nil && !e.PostedToX
}
