package extraction

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/eventscout/eventscout/internal/patterns"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	minTitleLength = 15
	maxTitleLength = 120
)

var (
	urlRe        = regexp.MustCompile(`https?://\S+`)
	mentionRe    = regexp.MustCompile(`@\w+`)
	hashtagRe    = regexp.MustCompile(`#\w+`)
	spaceRunRe   = regexp.MustCompile(`[ \t]{2,}`)
	newlineRunRe = regexp.MustCompile(`\n{3,}`)
)

// stripNoise removes URLs, mentions, hashtags and emoji.
func stripNoise(lib *patterns.Library, text string) string {
	text = urlRe.ReplaceAllString(text, "")
	text = mentionRe.ReplaceAllString(text, "")
	text = hashtagRe.ReplaceAllString(text, "")
	text = lib.StripEmoji(text)
	return spaceRunRe.ReplaceAllString(text, " ")
}

// extractTitle picks the best title line. Lines that name an event kind and
// start with a capital letter are preferred; otherwise the first acceptable
// line wins. An empty result means no usable title.
func extractTitle(lib *patterns.Library, text string) string {
	var lines []string
	for _, line := range strings.Split(stripNoise(lib, text), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	for _, line := range lines {
		if titleLengthOK(line) && startsUpper(line) && !lib.IsBadTitle(line) && lib.HasTitleKeyword(line) {
			return titleCase(line)
		}
	}
	for _, line := range lines {
		if titleLengthOK(line) && !lib.IsBadTitle(line) {
			return titleCase(line)
		}
	}
	return ""
}

// cleanDescription strips the same noise as titles and collapses blank runs.
func cleanDescription(lib *patterns.Library, text string) string {
	lines := strings.Split(stripNoise(lib, text), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	cleaned := newlineRunRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(cleaned)
}

func titleLengthOK(line string) bool {
	n := utf8.RuneCountInString(line)
	return n >= minTitleLength && n <= maxTitleLength
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

// titleCase upper-cases the first letter of each word and lower-cases the rest.
// A Caser is stateful, so one is built per call.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}
