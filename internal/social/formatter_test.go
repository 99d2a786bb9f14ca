package social

import (
	"strings"
	"testing"
	"time"

	"github.com/eventscout/eventscout/internal/models"
)

func sampleEvent() models.Event {
	return models.Event{
		ID:          "evt-1",
		Title:       "Lagos AI Summit",
		Description: "A day of talks on applied machine learning.",
		Date:        time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC),
		Location:    "Lagos",
		IsFree:      true,
		Link:        "https://summit.ng",
	}
}

func TestFormatEventMessage_Layout(t *testing.T) {
	event := sampleEvent()
	event.Description = strings.Repeat("word ", 8) + "end"

	lagos, err := time.LoadLocation("Africa/Lagos")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	got := FormatEventMessage(event, lagos)
	want := "🎉 Upcoming: Lagos AI Summit\n" +
		"📅 Saturday, March 15, 2025 at 10:00 AM\n" +
		"📍 Lagos\n" +
		"💰 FREE!\n" +
		"\n" + event.Description +
		"\n🔗 https://summit.ng" +
		"\n#NigeriaEvents #TechNigeria"
	if got != want {
		t.Errorf("FormatEventMessage =\n%s\nwant\n%s", got, want)
	}
}

func TestFormatEventMessage_Ticketed(t *testing.T) {
	event := sampleEvent()
	event.IsFree = false
	event.Link = ""

	got := FormatEventMessage(event, nil)
	if !strings.Contains(got, "💰 Ticketed\n") {
		t.Errorf("expected ticketed line, got %q", got)
	}
	if strings.Contains(got, "🔗") {
		t.Errorf("expected no link line, got %q", got)
	}
	if !strings.HasSuffix(got, "\n#NigeriaEvents #TechNigeria") {
		t.Errorf("expected hashtags last, got %q", got)
	}
}

func TestFormatEventMessage_TruncatesOnWordBoundary(t *testing.T) {
	event := sampleEvent()
	event.Description = strings.Repeat("Builders from across Nigeria gather to ship ideas. ", 12)

	got := FormatEventMessage(event, time.UTC)

	if n := len([]rune(got)); n > MaxMessageLength {
		t.Fatalf("message has %d runes, limit %d", n, MaxMessageLength)
	}

	body := strings.SplitN(got, "\n\n", 2)[1]
	desc := strings.SplitN(body, "\n🔗", 2)[0]
	if !strings.HasSuffix(desc, "...") {
		t.Fatalf("expected ellipsis, got %q", desc)
	}
	trimmed := strings.TrimSuffix(desc, "...")
	lastWord := trimmed[strings.LastIndex(trimmed, " ")+1:]
	for _, w := range []string{"Builders", "from", "across", "Nigeria", "gather", "to", "ship", "ideas"} {
		if lastWord == w {
			return
		}
	}
	t.Errorf("description cut mid-word: %q", lastWord)
}

func TestFormatEventMessage_NeverExceedsLimit(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		description string
		link        string
		titleStart  string
	}{
		{
			name:        "unbroken title",
			title:       strings.Repeat("Ọ", 300),
			description: strings.Repeat("x", 500),
			link:        "https://example.com/" + strings.Repeat("a", 100),
			titleStart:  "🎉 Upcoming: ỌỌỌ",
		},
		{
			name:       "long title with long link",
			title:      strings.TrimSpace(strings.Repeat("Lagos Developer Festival ", 4)),
			link:       "https://example.com/" + strings.Repeat("b", 90),
			titleStart: "🎉 Upcoming: Lagos Developer Festival",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := sampleEvent()
			event.Title = tt.title
			event.Description = tt.description
			event.Link = tt.link

			got := FormatEventMessage(event, time.UTC)
			if n := len([]rune(got)); n > MaxMessageLength {
				t.Errorf("message has %d runes, limit %d", n, MaxMessageLength)
			}
			if want := "\n🔗 " + tt.link + "\n#NigeriaEvents #TechNigeria"; !strings.HasSuffix(got, want) {
				t.Errorf("expected link and hashtags intact, got %q", got)
			}
			titleLine := strings.SplitN(got, "\n", 2)[0]
			if !strings.HasPrefix(titleLine, tt.titleStart) || !strings.HasSuffix(titleLine, "...") {
				t.Errorf("expected shortened title, got %q", titleLine)
			}
			if !strings.Contains(got, "\n📍 Lagos\n") {
				t.Errorf("expected location line kept, got %q", got)
			}
		})
	}
}

func TestShortenTitle(t *testing.T) {
	if got := shortenTitle("Lagos AI Summit", 40); got != "Lagos AI Summit" {
		t.Errorf("expected title unchanged, got %q", got)
	}
	if got := shortenTitle("Lagos Developer Festival", 20); got != "Lagos Developer..." {
		t.Errorf("expected whole-word cut, got %q", got)
	}
	if got := shortenTitle("Lagos", -4); got != "" {
		t.Errorf("expected empty title for negative budget, got %q", got)
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		in       string
		limit    int
		expected string
	}{
		{"short", 10, "short"},
		{"hello wonderful world", 15, "hello..."},
		{"hello world again", 14, "hello world..."},
		{"abcdefghijklmnop", 10, "abcdefg..."},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := truncateWords(tt.in, tt.limit)
			if got != tt.expected {
				t.Errorf("truncateWords(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.expected)
			}
			if len([]rune(got)) > tt.limit {
				t.Errorf("result %q exceeds limit %d", got, tt.limit)
			}
		})
	}
}
