package extraction

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/eventscout/eventscout/internal/models"
	"github.com/eventscout/eventscout/internal/patterns"
)

// 2025-01-01 is a Wednesday.
var testNow = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

func newRegexStrategy(t *testing.T) *RegexStrategy {
	t.Helper()
	lib, err := patterns.Default()
	if err != nil {
		t.Fatalf("load patterns: %v", err)
	}
	return NewRegexStrategy(lib, func() time.Time { return testNow }, time.UTC)
}

func TestRegexStrategy_Example(t *testing.T) {
	s := newRegexStrategy(t)
	text := "Join us for the Lagos AI Summit on 15 March 2025, free entry, register now!"

	draft, err := s.Extract(context.Background(), models.Post{ID: "1", Text: text, CreatedAt: testNow})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if draft == nil {
		t.Fatal("expected a draft")
	}

	if want := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC); !draft.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", draft.Date, want)
	}
	if draft.Category != models.CategoryAI {
		t.Errorf("Category = %s, want AI", draft.Category)
	}
	if draft.Location != "Lagos" {
		t.Errorf("Location = %q, want Lagos", draft.Location)
	}
	if !draft.IsFree {
		t.Error("expected IsFree")
	}
	if want := "Join Us For The Lagos Ai Summit On 15 March 2025, Free Entry, Register Now!"; draft.Title != want {
		t.Errorf("Title = %q, want %q", draft.Title, want)
	}
	if draft.Description != text {
		t.Errorf("Description = %q", draft.Description)
	}
}

func TestRegexStrategy_DateFallback(t *testing.T) {
	s := newRegexStrategy(t)
	created := time.Date(2024, 12, 30, 8, 15, 0, 0, time.UTC)

	tests := []struct {
		name string
		text string
	}{
		{"no date at all", "Tech meetup in Lagos, register now for details about the community"},
		{"only stale dates", "Lagos summit held on 10/10/2020, register now for the replay"},
		{"impossible date", "Lagos summit on 31/02/2025, register now to secure a seat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft, _ := s.Extract(context.Background(), models.Post{ID: "1", Text: tt.text, CreatedAt: created})
			if draft == nil {
				t.Fatal("expected a draft")
			}
			if want := created.Add(7 * 24 * time.Hour); !draft.Date.Equal(want) {
				t.Errorf("Date = %v, want %v", draft.Date, want)
			}
		})
	}
}

func TestRegexStrategy_Dates(t *testing.T) {
	s := newRegexStrategy(t)

	tests := []struct {
		text     string
		expected time.Time
	}{
		{"on 05/12/2025", time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC)},
		{"on 12/25/2025", time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)},
		{"on 05/12/25", time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC)},
		{"on 2025-06-20", time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)},
		{"on March 15, 2025", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"on 15 Mar 2025", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"on 20 February", time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC)},
		{"this Friday", time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)},
		{"next Friday", time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
		{"this Wednesday", time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC)},
		{"next Wednesday", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"today, 1 January 2025", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := s.extractDate(tt.text, testNow)
			if !got.Equal(tt.expected) {
				t.Errorf("extractDate(%q) = %v, want %v", tt.text, got, tt.expected)
			}
		})
	}
}

func TestRegexStrategy_Time(t *testing.T) {
	s := newRegexStrategy(t)

	tests := []struct {
		text   string
		hour   int
		minute int
		ok     bool
	}{
		{"starts 6:30pm", 18, 30, true},
		{"starts 6 PM", 18, 0, true},
		{"starts 12am", 0, 0, true},
		{"starts 12:30 pm", 12, 30, true},
		{"starts 9 a.m.", 9, 0, true},
		{"starts 18:45", 18, 45, true},
		{"starts 25:00", 0, 0, false},
		{"no time here", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			hour, minute, ok := s.extractTime(tt.text)
			if ok != tt.ok || hour != tt.hour || minute != tt.minute {
				t.Errorf("extractTime(%q) = %d:%d %v, want %d:%d %v", tt.text, hour, minute, ok, tt.hour, tt.minute, tt.ok)
			}
		})
	}
}

func TestRegexStrategy_TimeMergesIntoDate(t *testing.T) {
	s := newRegexStrategy(t)
	post := models.Post{ID: "1", Text: "Lagos founders meetup this Friday at 6:30pm, register now!", CreatedAt: testNow}

	draft, _ := s.Extract(context.Background(), post)
	if draft == nil {
		t.Fatal("expected a draft")
	}
	if want := time.Date(2025, 1, 3, 18, 30, 0, 0, time.UTC); !draft.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", draft.Date, want)
	}
}

func TestRegexStrategy_TimeOnFallbackDateUsesLocation(t *testing.T) {
	lagos, err := time.LoadLocation("Africa/Lagos")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	lib, err := patterns.Default()
	if err != nil {
		t.Fatalf("load patterns: %v", err)
	}
	s := NewRegexStrategy(lib, func() time.Time { return testNow }, lagos)

	tests := []struct {
		name     string
		text     string
		expected time.Time
	}{
		{
			name:     "fallback date",
			text:     "Lagos Tech Meetup at 7pm, register now for details about the community",
			expected: time.Date(2025, 1, 8, 19, 0, 0, 0, lagos),
		},
		{
			name:     "explicit date",
			text:     "Lagos Tech Meetup on 8 January 2025 at 7pm, register now for details",
			expected: time.Date(2025, 1, 8, 19, 0, 0, 0, lagos),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft, _ := s.Extract(context.Background(), models.Post{ID: "1", Text: tt.text, CreatedAt: testNow})
			if draft == nil {
				t.Fatal("expected a draft")
			}
			if !draft.Date.Equal(tt.expected) {
				t.Errorf("Date = %v, want %v", draft.Date, tt.expected)
			}
			if draft.Date.Location() != lagos {
				t.Errorf("Date location = %v, want Africa/Lagos", draft.Date.Location())
			}
		})
	}
}

func TestRegexStrategy_Location(t *testing.T) {
	s := newRegexStrategy(t)

	tests := []struct {
		text     string
		expected string
	}{
		{"Hackathon at Victoria Island, Lagos", "Victoria Island"},
		{"Annual builders conference holding at Landmark Centre, Nigeria on 15 March 2025", "Landmark Centre, Nigeria"},
		{"Meetup at Hub One then drinks in Naija Town", "Naija Town"},
		{"📍 Nigerian Tech Hub", "Nigerian Tech Hub"},
		{"Summit at Moscone Center in San Francisco", ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := s.extractLocation(tt.text); got != tt.expected {
				t.Errorf("extractLocation(%q) = %q, want %q", tt.text, got, tt.expected)
			}
		})
	}
}

func TestRegexStrategy_AbortsWithoutRequiredFields(t *testing.T) {
	s := newRegexStrategy(t)

	tests := map[string]string{
		"no location": "Global AI Summit on 15 March 2025, register now, online only",
		"no title":    "DM for info\nLagos\n15 March 2025",
	}

	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			draft, err := s.Extract(context.Background(), models.Post{ID: "1", Text: text, CreatedAt: testNow})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if draft != nil {
				t.Errorf("expected nil draft, got %+v", draft)
			}
		})
	}
}

func TestExtractTitle(t *testing.T) {
	lib := patterns.MustDefault()

	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			name:     "strips noise and prefers keyword line",
			text:     "🎉🎉 @techhub presents\nLagos Fintech Meetup happening soon!! #fintech https://t.co/x",
			expected: "Lagos Fintech Meetup Happening Soon!!",
		},
		{
			name:     "keyword line beats earlier plain line",
			text:     "Tickets are selling out fast for this\nLagos Design Summit this weekend",
			expected: "Lagos Design Summit This Weekend",
		},
		{
			name:     "falls back to first acceptable line",
			text:     "we are gathering all builders together\nsee you there",
			expected: "We Are Gathering All Builders Together",
		},
		{
			name:     "bad lines are skipped",
			text:     "DM for tickets to the summit tonight\nCall now to reserve a summit seat",
			expected: "",
		},
		{
			name:     "too short",
			text:     "Lagos summit",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractTitle(lib, tt.text); got != tt.expected {
				t.Errorf("extractTitle = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestCleanDescription(t *testing.T) {
	lib := patterns.MustDefault()
	got := cleanDescription(lib, "Big news!\n\n\n\nLagos summit @host #tag https://x.com/a 🎉")
	if want := "Big news!\n\nLagos summit"; got != want {
		t.Errorf("cleanDescription = %q, want %q", got, want)
	}
}
