package classifier

import (
	"testing"

	"github.com/eventscout/eventscout/internal/patterns"
)

func newClassifier(t *testing.T) *Classifier {
	t.Helper()
	lib, err := patterns.Default()
	if err != nil {
		t.Fatalf("load patterns: %v", err)
	}
	return New(lib)
}

func TestClassify(t *testing.T) {
	c := newClassifier(t)

	tests := []struct {
		name     string
		text     string
		accepted bool
		gate     Gate
	}{
		{
			name:     "event in locale",
			text:     "Join us for the Lagos AI Summit on 15 March 2025, free entry, register now!",
			accepted: true,
		},
		{
			name: "spam wins over everything",
			text: "DM me for a great investment opportunity!!!",
			gate: GateSpam,
		},
		{
			name: "spam checked before locale",
			text: "Lagos summit next Friday, dm me for tickets",
			gate: GateSpam,
		},
		{
			name: "event keyword outside locale",
			text: "Register now for the Berlin AI Summit on 15 March 2025",
			gate: GateLocale,
		},
		{
			name: "locale without event keyword",
			text: "Lovely weather in Abuja on 15 March",
			gate: GateNotEvent,
		},
		{
			name: "event keyword without date",
			text: "Workshop in Ibadan starts at 6pm",
			gate: GateNotEvent,
		},
		{
			name:     "tomorrow counts as a date",
			text:     "Lagos Tech Summit tomorrow, register now!",
			accepted: true,
		},
		{
			name:     "today counts as a date",
			text:     "Abuja developer workshop today from 10am, register now",
			accepted: true,
		},
		{
			name:     "tonight counts as a date",
			text:     "Fintech meetup in Yaba tonight, rsvp below",
			accepted: true,
		},
		{
			name:     "next year counts as a date",
			text:     "Save the date: Nigeria AI Summit returns next year",
			accepted: true,
		},
		{
			name:     "spam keyword inside a longer word",
			text:     "Lagos Developer Conference on 15 March 2027: validating startup ideas, register now",
			accepted: true,
		},
		{
			name:     "updating is not dating",
			text:     "Abuja Startup Summit on 20 May 2027 about updating legacy systems, register now",
			accepted: true,
		},
		{
			name: "whole spam keyword still rejected",
			text: "Lagos summit on 20 May 2027, speed dating after the talks, register now",
			gate: GateSpam,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Classify(tt.text)
			if d.Accepted != tt.accepted {
				t.Fatalf("Accepted = %v, want %v (rejected by %q)", d.Accepted, tt.accepted, d.Gate)
			}
			if d.Gate != tt.gate {
				t.Errorf("Gate = %q, want %q", d.Gate, tt.gate)
			}
		})
	}
}

func TestGateOrder(t *testing.T) {
	expected := []Gate{GateSpam, GateLocale, GateNotEvent}
	if len(Gates) != len(expected) {
		t.Fatalf("unexpected gate count %d", len(Gates))
	}
	for i, g := range expected {
		if Gates[i] != g {
			t.Errorf("Gates[%d] = %q, want %q", i, Gates[i], g)
		}
	}
}
