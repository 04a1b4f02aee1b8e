package meta

import (
	"testing"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Song Title", "song title"},
		{"SONG TITLE", "song title"},
		{"  Song   Title  ", "song title"},
		{"The Beatles", "beatles"},
		{"the the", "the"},
		{"Theme From Harry's Game", "theme from harry's game"},
		{"Artist - Title", "artist title"},
		{"Artist-Title", "artist title"},
		{"Don’t Stop", "don't stop"},
		{"It`s", "it's"},
		{"“Heroes”", "\"heroes\""},
		{"Björk", "björk"},
		{"Tab\tand\nnewline", "tab and newline"},
		{"", ""},
	}

	for _, tt := range tests {
		result := NormalizeText(tt.input)
		if result != tt.expected {
			t.Errorf("NormalizeText(%q) = %q, expected %q", tt.input, result, tt.expected)
		}
	}
}

func TestNormalizeTextIdempotent(t *testing.T) {
	inputs := []string{
		"The The",
		"the - the - beatles",
		"- The Knife -",
		"  THE   Chemical  Brothers ",
		"Röyksopp – Eple",
		"“Quoted” ‘Title’",
		"A-Ha",
		"the",
		"",
		"The Space",
	}

	for _, input := range inputs {
		once := NormalizeText(input)
		twice := NormalizeText(once)
		if once != twice {
			t.Errorf("NormalizeText not idempotent for %q: %q then %q", input, once, twice)
		}
	}
}

func TestNormalizeArtist(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Daft Punk", "daft punk"},
		{"The Chemical Brothers", "chemical brothers"},
		{"Artist feat. Singer", "artist"},
		{"Artist Feat Singer", "artist"},
		{"Artist ft. Singer", "artist"},
		{"Artist featuring Singer", "artist"},
		{"Artist with Band", "artist"},
		{"Artist x Other", "artist"},
		{"Simon & Garfunkel", "simon"},
		{"Artist (2)", "artist"},
		{"Artist (12)", "artist"},
		{"Artist (UK)", "artist (uk)"},
		{"Artist & Other (3)", "artist"},
		{"Xander", "xander"},
		{"", ""},
	}

	for _, tt := range tests {
		result := NormalizeArtist(tt.input)
		if result != tt.expected {
			t.Errorf("NormalizeArtist(%q) = %q, expected %q", tt.input, result, tt.expected)
		}
	}
}

func TestCleanString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  Energy   Flow ", "Energy Flow"},
		{"Keep Case", "Keep Case"},
		{"", ""},
	}

	for _, tt := range tests {
		result := CleanString(tt.input)
		if result != tt.expected {
			t.Errorf("CleanString(%q) = %q, expected %q", tt.input, result, tt.expected)
		}
	}
}
