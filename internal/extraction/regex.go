package extraction

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/eventscout/eventscout/internal/models"
	"github.com/eventscout/eventscout/internal/patterns"
)

const (
	// StrategyRegex names drafts produced by the deterministic path.
	StrategyRegex = "regex"
	// StrategyRegexFallback names regex drafts produced after an AI failure.
	StrategyRegexFallback = "regex_fallback"

	staleWindow     = 24 * time.Hour
	defaultLeadTime = 7 * 24 * time.Hour
)

// A location phrase is a run of capitalized words, e.g. "Landmark Centre, Nigeria".
const placePhrase = `([A-Z][A-Za-z]*(?:,?[ \t]+[A-Z][A-Za-z]*)*)`

var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:(?i:venue:|location:)|\b(?i:at|in))[ \t]+` + placePhrase),
	regexp.MustCompile(`📍[ \t]*` + placePhrase),
}

var monthIndex = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

var weekdayIndex = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
}

// RegexStrategy extracts events with keyword tables and date/time patterns.
// It is always available and never returns an error.
type RegexStrategy struct {
	lib *patterns.Library
	now func() time.Time
	loc *time.Location
}

// NewRegexStrategy creates the deterministic strategy. Calendar dates are
// interpreted in loc; nil means UTC.
func NewRegexStrategy(lib *patterns.Library, now func() time.Time, loc *time.Location) *RegexStrategy {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &RegexStrategy{lib: lib, now: now, loc: loc}
}

// Name implements Strategy.
func (s *RegexStrategy) Name() string {
	return StrategyRegex
}

// Extract derives a draft from the post text. It returns nil as soon as a
// required field (date, location, title) cannot be derived.
func (s *RegexStrategy) Extract(ctx context.Context, post models.Post) (*models.EventDraft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := post.Text

	date := s.extractDate(text, post.CreatedAt)
	if hour, minute, ok := s.extractTime(text); ok {
		date = time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location())
	}

	location := s.extractLocation(text)
	if location == "" {
		return nil, nil
	}

	title := extractTitle(s.lib, text)
	if title == "" {
		return nil, nil
	}

	return &models.EventDraft{
		Title:       title,
		Description: cleanDescription(s.lib, text),
		Date:        date,
		Location:    location,
		Category:    s.lib.Category(text),
		IsFree:      s.lib.IsFree(text),
	}, nil
}

// extractDate tries each date pattern in order. The first one that yields a
// date later than now minus 24h wins; otherwise the post creation time plus
// seven days is used.
func (s *RegexStrategy) extractDate(text string, createdAt time.Time) time.Time {
	now := s.now().In(s.loc)
	cutoff := now.Add(-staleWindow)

	for _, p := range s.lib.DatePatterns() {
		m := p.Re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		date, ok := s.resolveDate(p.Kind, m, now)
		if ok && date.After(cutoff) {
			return date
		}
	}

	return createdAt.In(s.loc).Add(defaultLeadTime)
}

func (s *RegexStrategy) resolveDate(kind patterns.DateKind, m []string, now time.Time) (time.Time, bool) {
	switch kind {
	case patterns.DateNumericDMY:
		day, month, year := atoi(m[1]), atoi(m[2]), atoi(m[3])
		// Day first unless that is impossible and month first is not.
		if month > 12 && day <= 12 {
			day, month = month, day
		}
		return s.calendarDate(normalizeYear(year), month, day)
	case patterns.DateNumericYMD:
		return s.calendarDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	case patterns.DateMonthDayYear:
		return s.namedDate(atoi(m[3]), m[1], atoi(m[2]))
	case patterns.DateDayMonthYear:
		return s.namedDate(atoi(m[3]), m[2], atoi(m[1]))
	case patterns.DateDayMonth:
		return s.namedDate(now.Year(), m[2], atoi(m[1]))
	case patterns.DateRelativeWeekly:
		target, ok := weekdayIndex[strings.ToLower(m[2])]
		if !ok {
			return time.Time{}, false
		}
		days := (int(target) - int(now.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		if strings.EqualFold(m[1], "next") {
			days += 7
		}
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
		return midnight.AddDate(0, 0, days), true
	}
	return time.Time{}, false
}

func (s *RegexStrategy) namedDate(year int, monthName string, day int) (time.Time, bool) {
	if len(monthName) < 3 {
		return time.Time{}, false
	}
	month, ok := monthIndex[strings.ToLower(monthName[:3])]
	if !ok {
		return time.Time{}, false
	}
	return s.calendarDate(year, int(month), day)
}

// calendarDate rejects dates that time.Date would silently normalize.
func (s *RegexStrategy) calendarDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, s.loc)
	if date.Day() != day || int(date.Month()) != month {
		return time.Time{}, false
	}
	return date, true
}

// extractTime returns the first time of day found, in 24h form.
func (s *RegexStrategy) extractTime(text string) (int, int, bool) {
	for _, re := range s.lib.TimePatterns() {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		hour := atoi(m[1])
		minute := 0
		period := ""
		for _, g := range m[2:] {
			if g == "" {
				continue
			}
			if _, err := strconv.Atoi(g); err == nil {
				minute = atoi(g)
			} else {
				period = strings.ToLower(g)
			}
		}

		switch {
		case strings.Contains(period, "p") && hour < 12:
			hour += 12
		case strings.Contains(period, "a") && hour == 12:
			hour = 0
		}
		if hour > 23 || minute > 59 {
			continue
		}
		return hour, minute, true
	}
	return 0, 0, false
}

// extractLocation prefers a known place name. Otherwise a capitalized phrase
// after a location preposition is accepted only when it is locale relevant.
func (s *RegexStrategy) extractLocation(text string) string {
	if place, ok := s.lib.FindKnownPlace(text); ok {
		return place
	}

	for _, re := range locationPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if candidate := strings.TrimSpace(m[1]); s.lib.IsLocaleRelevant(candidate) {
				return candidate
			}
		}
	}
	return ""
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func normalizeYear(year int) int {
	if year < 100 {
		return year + 2000
	}
	return year
}
