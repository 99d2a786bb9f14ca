package patterns

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/eventscout/eventscout/internal/models"
)

// IsSpam reports whether text matches the spam set or one of the
// suspicious-shape heuristics (too many links, shouting, punctuation runs).
func (l *Library) IsSpam(text string) bool {
	if l.spamRe.MatchString(text) {
		return true
	}
	if l.maxLinks > 0 && len(l.linkRe.FindAllString(text, -1)) > l.maxLinks {
		return true
	}
	if l.shoutingMinLength > 0 && len(text) > l.shoutingMinLength && isShouting(text) {
		return true
	}
	if l.maxPunctuationRuns > 0 && len(l.punctuationRunRe.FindAllString(text, -1)) > l.maxPunctuationRuns {
		return true
	}
	return false
}

// SpamMatch returns the first spam term or pattern matched, for logging.
func (l *Library) SpamMatch(text string) string {
	return l.spamRe.FindString(text)
}

// IsLocaleRelevant reports whether text refers to the target region, either
// by an explicit self-reference or a known place name.
func (l *Library) IsLocaleRelevant(text string) bool {
	lower := strings.ToLower(text)
	for _, ref := range l.selfReferences {
		if strings.Contains(lower, ref) {
			return true
		}
	}
	return l.localeRe != nil && l.localeRe.MatchString(text)
}

// HasEventKeyword reports whether text contains a strong event keyword.
func (l *Library) HasEventKeyword(text string) bool {
	return l.strongKeywordRe.MatchString(text)
}

// HasDateIndicator reports whether text mentions a date, month or relative day.
func (l *Library) HasDateIndicator(text string) bool {
	for _, re := range l.dateIndicators {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// FindKnownPlace returns the longest known place named in text, in display form.
func (l *Library) FindKnownPlace(text string) (string, bool) {
	for _, p := range l.places {
		if p.re.MatchString(text) {
			return l.displayName(p.name), true
		}
	}
	return "", false
}

func (l *Library) displayName(name string) string {
	if d, ok := l.displayNames[name]; ok {
		return d
	}
	words := strings.Split(name, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// Geocode resolves the first city whose name appears in location.
func (l *Library) Geocode(location string) (models.Coordinates, bool) {
	lower := strings.ToLower(location)
	for _, c := range l.cities {
		if strings.Contains(lower, strings.ToLower(c.Name)) {
			return c.Coordinates, true
		}
	}
	return models.Coordinates{}, false
}

// Category returns the first category, in table order, with a keyword in text.
func (l *Library) Category(text string) models.Category {
	for _, c := range l.categories {
		if c.re.MatchString(text) {
			return c.category
		}
	}
	return models.DefaultCategory
}

// IsFree reports whether text advertises a free event. Any paid keyword wins;
// with neither kind present the event is assumed not free.
func (l *Library) IsFree(text string) bool {
	if l.paidRe.MatchString(text) {
		return false
	}
	return l.freeRe.MatchString(text)
}

// IsBadTitle reports whether a candidate title line is unusable.
func (l *Library) IsBadTitle(title string) bool {
	if l.CountEmoji(title) > l.maxEmoji {
		return true
	}
	for _, re := range l.badTitles {
		if re.MatchString(title) {
			return true
		}
	}
	return false
}

// HasTitleKeyword reports whether a title line names an event kind.
func (l *Library) HasTitleKeyword(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range l.titleKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// CountEmoji counts runes in the emoji range.
func (l *Library) CountEmoji(s string) int {
	return len(l.emojiRe.FindAllStringIndex(s, -1))
}

// StripEmoji removes runes in the emoji range.
func (l *Library) StripEmoji(s string) string {
	return l.emojiRe.ReplaceAllString(s, "")
}

// DatePatterns returns the compiled date patterns in priority order.
func (l *Library) DatePatterns() []DatePattern {
	return l.dates
}

// TimePatterns returns the compiled time patterns in priority order.
func (l *Library) TimePatterns() []*regexp.Regexp {
	return l.times
}

func isShouting(text string) bool {
	hasLetter := false
	for _, r := range text {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}
