// Package patterns loads the keyword and regex data used to classify posts and
// extract event fields. The data lives in the embedded patterns.yaml and is
// compiled once into an immutable Library.
package patterns

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/eventscout/eventscout/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var embedded []byte

type rawCity struct {
	Name        string     `yaml:"name"`
	Coordinates [2]float64 `yaml:"coordinates"`
}

type rawPattern struct {
	Kind    string `yaml:"kind"`
	Pattern string `yaml:"pattern"`
}

type rawCategory struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type rawPack struct {
	Version int `yaml:"version"`
	Locale  struct {
		SelfReferences []string          `yaml:"self_references"`
		Places         []string          `yaml:"places"`
		DisplayNames   map[string]string `yaml:"display_names"`
		Cities         []rawCity         `yaml:"cities"`
	} `yaml:"locale"`
	Spam struct {
		Keywords           []string `yaml:"keywords"`
		Words              []string `yaml:"words"`
		Patterns           []string `yaml:"patterns"`
		MaxLinks           int      `yaml:"max_links"`
		MaxPunctuationRuns int      `yaml:"max_punctuation_runs"`
		ShoutingMinLength  int      `yaml:"shouting_min_length"`
	} `yaml:"spam"`
	Event struct {
		StrongKeywords []string `yaml:"strong_keywords"`
		DateIndicators []string `yaml:"date_indicators"`
		TitleKeywords  []string `yaml:"title_keywords"`
	} `yaml:"event"`
	Dates  []rawPattern `yaml:"dates"`
	Times  []string     `yaml:"times"`
	Titles struct {
		BadPatterns []string `yaml:"bad_patterns"`
		MaxEmoji    int      `yaml:"max_emoji"`
		Emoji       string   `yaml:"emoji"`
	} `yaml:"titles"`
	Categories []rawCategory `yaml:"categories"`
	Pricing    struct {
		Free []string `yaml:"free"`
		Paid []string `yaml:"paid"`
	} `yaml:"pricing"`
}

// DateKind names the shape of a date pattern's capture groups.
type DateKind string

const (
	DateNumericDMY     DateKind = "numeric_dmy"
	DateNumericYMD     DateKind = "numeric_ymd"
	DateMonthDayYear   DateKind = "month_day_year"
	DateDayMonthYear   DateKind = "day_month_year"
	DateDayMonth       DateKind = "day_month"
	DateRelativeWeekly DateKind = "relative_weekday"
)

// DatePattern is one compiled date pattern, tried in library order.
type DatePattern struct {
	Kind DateKind
	Re   *regexp.Regexp
}

// City is a geocodable city.
type City struct {
	Name        string
	Coordinates models.Coordinates
}

type place struct {
	name string
	re   *regexp.Regexp
}

type categoryMatcher struct {
	category models.Category
	re       *regexp.Regexp
}

// Library is the compiled, read-only pattern set. It is safe for concurrent use.
type Library struct {
	Version int

	selfReferences []string
	places         []place // longest first
	displayNames   map[string]string
	localeRe       *regexp.Regexp
	cities         []City

	spamRe             *regexp.Regexp
	linkRe             *regexp.Regexp
	punctuationRunRe   *regexp.Regexp
	maxLinks           int
	maxPunctuationRuns int
	shoutingMinLength  int

	strongKeywordRe *regexp.Regexp
	dateIndicators  []*regexp.Regexp
	titleKeywords   []string

	dates []DatePattern
	times []*regexp.Regexp

	badTitles []*regexp.Regexp
	maxEmoji  int
	emojiRe   *regexp.Regexp

	categories []categoryMatcher
	freeRe     *regexp.Regexp
	paidRe     *regexp.Regexp
}

var (
	defaultOnce sync.Once
	defaultLib  *Library
	defaultErr  error
)

// Default returns the library compiled from the embedded data.
func Default() (*Library, error) {
	defaultOnce.Do(func() {
		defaultLib, defaultErr = Load(embedded)
	})
	return defaultLib, defaultErr
}

// MustDefault is Default for callers that treat bad embedded data as fatal.
func MustDefault() *Library {
	lib, err := Default()
	if err != nil {
		panic(err)
	}
	return lib
}

// Load compiles a library from YAML pattern data.
func Load(data []byte) (*Library, error) {
	var raw rawPack
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse pattern data: %w", err)
	}
	if raw.Version <= 0 {
		return nil, fmt.Errorf("pattern data: missing version")
	}

	lib := &Library{
		Version:            raw.Version,
		displayNames:       map[string]string{},
		maxLinks:           raw.Spam.MaxLinks,
		maxPunctuationRuns: raw.Spam.MaxPunctuationRuns,
		shoutingMinLength:  raw.Spam.ShoutingMinLength,
		maxEmoji:           raw.Titles.MaxEmoji,
		linkRe:             regexp.MustCompile(`https?://\S+`),
		punctuationRunRe:   regexp.MustCompile(`[!?.]{3,}`),
	}

	for _, ref := range raw.Locale.SelfReferences {
		lib.selfReferences = append(lib.selfReferences, strings.ToLower(ref))
	}
	for k, v := range raw.Locale.DisplayNames {
		lib.displayNames[strings.ToLower(k)] = v
	}

	places := normalizeTerms(raw.Locale.Places)
	sort.SliceStable(places, func(i, j int) bool { return len(places[i]) > len(places[j]) })
	for _, p := range places {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(p) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("compile place %q: %w", p, err)
		}
		lib.places = append(lib.places, place{name: p, re: re})
	}
	if len(places) > 0 {
		re, err := compileWordSet(places)
		if err != nil {
			return nil, fmt.Errorf("compile locale set: %w", err)
		}
		lib.localeRe = re
	}

	for _, c := range raw.Locale.Cities {
		lib.cities = append(lib.cities, City{
			Name:        c.Name,
			Coordinates: models.Coordinates{Longitude: c.Coordinates[0], Latitude: c.Coordinates[1]},
		})
	}

	spamRe, err := compileSpam(raw.Spam.Keywords, raw.Spam.Words, raw.Spam.Patterns)
	if err != nil {
		return nil, err
	}
	lib.spamRe = spamRe

	if lib.strongKeywordRe, err = compileWordSet(normalizeTerms(raw.Event.StrongKeywords)); err != nil {
		return nil, fmt.Errorf("compile strong keywords: %w", err)
	}
	for _, p := range raw.Event.DateIndicators {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("compile date indicator %q: %w", p, err)
		}
		lib.dateIndicators = append(lib.dateIndicators, re)
	}
	lib.titleKeywords = normalizeTerms(raw.Event.TitleKeywords)

	for _, d := range raw.Dates {
		re, err := regexp.Compile("(?i)" + d.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile date pattern %s: %w", d.Kind, err)
		}
		lib.dates = append(lib.dates, DatePattern{Kind: DateKind(d.Kind), Re: re})
	}
	for _, p := range raw.Times {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("compile time pattern %q: %w", p, err)
		}
		lib.times = append(lib.times, re)
	}

	for _, p := range raw.Titles.BadPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("compile bad title pattern %q: %w", p, err)
		}
		lib.badTitles = append(lib.badTitles, re)
	}
	if lib.emojiRe, err = regexp.Compile(raw.Titles.Emoji); err != nil {
		return nil, fmt.Errorf("compile emoji range: %w", err)
	}

	for _, c := range raw.Categories {
		category, ok := models.ParseCategory(c.Name)
		if !ok {
			return nil, fmt.Errorf("unknown category %q in pattern data", c.Name)
		}
		re, err := compileWordSet(normalizeTerms(c.Keywords))
		if err != nil {
			return nil, fmt.Errorf("compile category %s: %w", c.Name, err)
		}
		lib.categories = append(lib.categories, categoryMatcher{category: category, re: re})
	}

	if lib.freeRe, err = compileWordSet(normalizeTerms(raw.Pricing.Free)); err != nil {
		return nil, fmt.Errorf("compile free keywords: %w", err)
	}
	if lib.paidRe, err = compileWordSet(normalizeTerms(raw.Pricing.Paid)); err != nil {
		return nil, fmt.Errorf("compile paid keywords: %w", err)
	}

	return lib, nil
}

// compileSpam builds the single spam alternation: keywords, whole words and
// raw patterns. Keywords are anchored on word boundaries wherever they start
// or end with a word character, so "dating" never fires inside "validating".
func compileSpam(keywords, words, patterns []string) (*regexp.Regexp, error) {
	parts := make([]string, 0, len(keywords)+len(words)+len(patterns))
	for _, kw := range normalizeTerms(keywords) {
		parts = append(parts, boundedTerm(kw))
	}
	for _, w := range normalizeTerms(words) {
		parts = append(parts, `\b`+regexp.QuoteMeta(w)+`\b`)
	}
	for _, p := range patterns {
		if _, err := regexp.Compile(p); err != nil {
			return nil, fmt.Errorf("compile spam pattern %q: %w", p, err)
		}
		parts = append(parts, "(?:"+p+")")
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("pattern data: empty spam set")
	}
	return regexp.Compile("(?i)(?:" + strings.Join(parts, "|") + ")")
}

// boundedTerm quotes term and adds \b on each edge that is a word character.
func boundedTerm(term string) string {
	quoted := regexp.QuoteMeta(term)
	if isWordByte(term[0]) {
		quoted = `\b` + quoted
	}
	if isWordByte(term[len(term)-1]) {
		quoted += `\b`
	}
	return quoted
}

func isWordByte(b byte) bool {
	return b == '_' || ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

// compileWordSet compiles terms into a case-insensitive whole-word
// alternation, longest term first.
func compileWordSet(terms []string) (*regexp.Regexp, error) {
	if len(terms) == 0 {
		return regexp.Compile(`a^`)
	}
	sorted := append([]string(nil), terms...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	quoted := make([]string, len(sorted))
	for i, t := range sorted {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return regexp.Compile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
