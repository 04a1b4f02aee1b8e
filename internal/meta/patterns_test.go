package meta

import (
	"testing"
)

func TestParseTrackTitleCategories(t *testing.T) {
	tests := []struct {
		title    string
		base     string
		label    string
		category Category
		remixer  string
	}{
		// Specific markers
		{"Energy Flow (Extended Mix)", "Energy Flow", "Extended Mix", CategoryExtended, ""},
		{"Energy Flow (Extended Version)", "Energy Flow", "Extended Version", CategoryExtended, ""},
		{"Energy Flow (Extended)", "Energy Flow", "Extended", CategoryExtended, ""},
		{"Song (Original Mix)", "Song", "Original Mix", CategoryOriginal, ""},
		{"Song (original)", "Song", "original", CategoryOriginal, ""},
		{"Song (Radio Edit)", "Song", "Radio Edit", CategoryRadio, ""},
		{"Song (Radio Version)", "Song", "Radio Version", CategoryRadio, ""},
		{"Song (Instrumental Mix)", "Song", "Instrumental Mix", CategoryInstrumental, ""},
		{"Song (Instrumental)", "Song", "Instrumental", CategoryInstrumental, ""},
		{"Song (Acapella)", "Song", "Acapella", CategoryAcapella, ""},
		{"Song (A Cappella)", "Song", "A Cappella", CategoryAcapella, ""},
		{"Song (Remastered 2011)", "Song", "Remastered 2011", CategoryRemaster, ""},
		{"Song (Remaster)", "Song", "Remaster", CategoryRemaster, ""},
		{"Song (Live at Wembley)", "Song", "Live at Wembley", CategoryLive, ""},
		{"Song (Live)", "Song", "Live", CategoryLive, ""},
		{"Song (Dub)", "Song", "Dub", CategoryDub, ""},
		{"Song (Rework)", "Song", "Rework", CategoryEdit, ""},
		{"Song (Bootleg)", "Song", "Bootleg", CategoryEdit, ""},
		{"Song (VIP Mix)", "Song", "VIP Mix", CategoryEdit, ""},
		{"Song (VIP)", "Song", "VIP", CategoryEdit, ""},

		// Generic catch-alls capture the remixer
		{"Blue Monday (Hardfloor Remix)", "Blue Monday", "Hardfloor Remix", CategoryRemix, "Hardfloor"},
		{"Song (Todd Terje Edit)", "Song", "Todd Terje Edit", CategoryEdit, "Todd Terje"},
		{"Song (Rhythm & Sound Dub)", "Song", "Rhythm & Sound Dub", CategoryDub, "Rhythm & Sound"},
		{"Energy Flow (Club Mix)", "Energy Flow", "Club Mix", CategoryRemix, "Club"},

		// Uncategorized parenthetical
		{"Song (Part 2)", "Song", "Part 2", CategoryOther, ""},
		{"Song (Part 1) (Part 2)", "Song", "Part 1", CategoryOther, ""},

		// No parenthetical
		{"Plain Title", "Plain Title", "", CategoryOriginal, ""},
		{"", "", "", CategoryOriginal, ""},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			p := ParseTrackTitle(tt.title, "Artist")
			if p.BaseTitle != tt.base {
				t.Errorf("ParseTrackTitle(%q).BaseTitle = %q, expected %q", tt.title, p.BaseTitle, tt.base)
			}
			if p.VersionLabel != tt.label {
				t.Errorf("ParseTrackTitle(%q).VersionLabel = %q, expected %q", tt.title, p.VersionLabel, tt.label)
			}
			if p.Category != tt.category {
				t.Errorf("ParseTrackTitle(%q).Category = %q, expected %q", tt.title, p.Category, tt.category)
			}
			if p.Remixer != tt.remixer {
				t.Errorf("ParseTrackTitle(%q).Remixer = %q, expected %q", tt.title, p.Remixer, tt.remixer)
			}
		})
	}
}

func TestParseTrackTitleSpecificBeforeGeneric(t *testing.T) {
	// "(Radio Edit)" must not be read as an edit by a remixer called "Radio"
	p := ParseTrackTitle("Song (Radio Edit)", "Artist")
	if p.Category != CategoryRadio || p.Remixer != "" {
		t.Errorf("expected radio category without remixer, got %q / %q", p.Category, p.Remixer)
	}

	// "(Original Mix)" must not be read as a remix by "Original"
	p = ParseTrackTitle("Song (Original Mix)", "Artist")
	if p.Category != CategoryOriginal || p.Remixer != "" {
		t.Errorf("expected original category without remixer, got %q / %q", p.Category, p.Remixer)
	}
}

func TestParseTrackTitleKeepsTextAfterBracket(t *testing.T) {
	p := ParseTrackTitle("Song (Dub) Part Two", "Artist")
	if p.BaseTitle != "Song Part Two" {
		t.Errorf("BaseTitle = %q, expected %q", p.BaseTitle, "Song Part Two")
	}
	if p.FullTitle != "Song (Dub) Part Two" {
		t.Errorf("FullTitle = %q", p.FullTitle)
	}
}
