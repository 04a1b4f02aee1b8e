package meta

import (
	"reflect"
	"testing"
)

func TestSearchAndFallbackQueries(t *testing.T) {
	tests := []struct {
		title    string
		artist   string
		search   string
		fallback string
	}{
		{"Blue Monday (Hardfloor Remix)", "New Order", "New Order Blue Monday Hardfloor Remix", "New Order Blue Monday"},
		{"Energy Flow", "Artist X", "Artist X Energy Flow", "Artist X Energy Flow"},
		{"Energy Flow (Extended Mix)", "Artist X", "Artist X Energy Flow Extended Mix", "Artist X Energy Flow"},
		{"Untitled", "", "Untitled", "Untitled"},
	}

	for _, tt := range tests {
		p := ParseTrackTitle(tt.title, tt.artist)
		if got := p.SearchQuery(); got != tt.search {
			t.Errorf("SearchQuery(%q) = %q, expected %q", tt.title, got, tt.search)
		}
		if got := p.FallbackQuery(); got != tt.fallback {
			t.Errorf("FallbackQuery(%q) = %q, expected %q", tt.title, got, tt.fallback)
		}
	}
}

func TestShouldUseFallback(t *testing.T) {
	tests := []struct {
		title    string
		expected bool
	}{
		{"Song (Hardfloor Remix)", false},
		{"Song (Club Mix)", false},
		{"Song (Todd Terje Edit)", false},
		{"Song (Rework)", false},
		{"Song (Dub)", false},
		{"Song (Someone Dub)", false},
		{"Song (Extended Mix)", true},
		{"Song (Radio Edit)", true},
		{"Song (Original Mix)", true},
		{"Song (Live)", true},
		{"Song (Remastered)", true},
		{"Song (Acapella)", true},
		{"Song (Instrumental)", true},
		{"Song (Part 2)", true},
		{"Song", true},
	}

	for _, tt := range tests {
		p := ParseTrackTitle(tt.title, "Artist")
		if got := ShouldUseFallback(p); got != tt.expected {
			t.Errorf("ShouldUseFallback(%q [%s]) = %v, expected %v", tt.title, p.Category, got, tt.expected)
		}
	}
}

func TestQueryVariants(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		label    string
		max      int
		expected []string
	}{
		{
			name:     "plain title without label",
			title:    "Energy Flow",
			max:      5,
			expected: []string{"Artist Energy Flow"},
		},
		{
			name:  "remix with label",
			title: "Blue Monday (Hardfloor Remix)",
			label: "Factory",
			max:   5,
			expected: []string{
				"Artist Blue Monday Hardfloor Remix",
				"Blue Monday Hardfloor Remix",
				"Artist Blue Monday Factory",
				"Hardfloor Blue Monday",
			},
		},
		{
			name:  "version with label, no remixer",
			title: "Energy Flow (Extended Mix)",
			label: "Bedrock",
			max:   5,
			expected: []string{
				"Artist Energy Flow Extended Mix",
				"Energy Flow Extended Mix",
				"Artist Energy Flow Bedrock",
			},
		},
		{
			name:  "truncated to max",
			title: "Blue Monday (Hardfloor Remix)",
			label: "Factory",
			max:   2,
			expected: []string{
				"Artist Blue Monday Hardfloor Remix",
				"Blue Monday Hardfloor Remix",
			},
		},
		{
			name:     "max below one still yields primary",
			title:    "Energy Flow (Extended Mix)",
			max:      0,
			expected: []string{"Artist Energy Flow Extended Mix"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParseTrackTitle(tt.title, "Artist")
			got := QueryVariants(p, tt.label, tt.max)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("QueryVariants(%q) = %q, expected %q", tt.title, got, tt.expected)
			}
		})
	}
}
