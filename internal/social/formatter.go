package social

import (
	"strings"
	"time"

	"github.com/eventscout/eventscout/internal/models"
)

const (
	// MaxMessageLength is the platform limit, counted in runes.
	MaxMessageLength = 280
	reservedLength   = 10
	minDescription   = 50
	ellipsis         = "..."
	hashtags         = "#NigeriaEvents #TechNigeria"
	dateLayout       = "Monday, January 2, 2006 at 3:04 PM"
)

// FormatEventMessage renders an event as a post of at most MaxMessageLength
// runes: title, date, location and price lines, then as much description as
// fits, then the link and hashtags. Dates are shown in loc. A title too long
// for the header is shortened so the link and hashtags always survive.
func FormatEventMessage(event models.Event, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}

	const titlePrefix = "🎉 Upcoming: "
	var b strings.Builder
	b.WriteString("📅 " + event.Date.In(loc).Format(dateLayout) + "\n")
	b.WriteString("📍 " + event.Location + "\n")
	if event.IsFree {
		b.WriteString("💰 FREE!\n")
	} else {
		b.WriteString("💰 Ticketed\n")
	}
	details := b.String()

	var tail string
	if event.Link != "" {
		tail = "\n🔗 " + event.Link
	}
	tail += "\n" + hashtags

	titleBudget := MaxMessageLength - runeLen(titlePrefix) - 1 - runeLen(details) - runeLen(tail)
	head := titlePrefix + shortenTitle(event.Title, titleBudget) + "\n" + details

	budget := MaxMessageLength - runeLen(head) - runeLen(tail) - reservedLength
	desc := strings.TrimSpace(event.Description)
	message := head
	if desc != "" && budget > minDescription {
		message += "\n" + truncateWords(desc, budget-1)
	}
	message += tail

	return truncateRunes(message, MaxMessageLength)
}

// shortenTitle fits title into limit runes, preferring a whole-word cut.
func shortenTitle(title string, limit int) string {
	switch {
	case runeLen(title) <= limit:
		return title
	case limit <= len(ellipsis):
		return truncateRunes(title, max(limit, 0))
	default:
		return truncateWords(title, limit)
	}
}

// truncateWords shortens s to at most limit runes, cutting at the last whole
// word and appending an ellipsis. s is returned unchanged when it fits.
func truncateWords(s string, limit int) string {
	if runeLen(s) <= limit {
		return s
	}
	r := []rune(s)
	cut := string(r[:limit-len(ellipsis)+1])
	if i := strings.LastIndexAny(cut, " \n\t"); i > 0 {
		cut = cut[:i]
	} else {
		cut = string(r[:limit-len(ellipsis)])
	}
	return strings.TrimRight(cut, " \n\t.,;:") + ellipsis
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

func runeLen(s string) int {
	return len([]rune(s))
}
