package meta

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// quoteReplacer folds typographic quotes onto their ASCII forms
	quoteReplacer = strings.NewReplacer(
		"‘", "'",
		"’", "'",
		"`", "'",
		"“", "\"",
		"”", "\"",
		"„", "\"",
	)

	// featuringPatterns are tried in order; the first one that matches cuts the artist
	featuringPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s+feat\.?\s+`),
		regexp.MustCompile(`(?i)\s+ft\.?\s+`),
		regexp.MustCompile(`(?i)\s+featuring\s+`),
		regexp.MustCompile(`(?i)\s+with\s+`),
		regexp.MustCompile(`(?i)\s+x\s+`),
	}

	ampersandPattern      = regexp.MustCompile(`\s+&\s+`)
	disambiguationPattern = regexp.MustCompile(`\s*\(\d+\)$`)
)

// NormalizeText canonicalizes a string for fuzzy comparison.
// Lowercases, folds quote glyphs, turns dashes into spaces, collapses
// whitespace and drops a leading "the". NormalizeText(NormalizeText(s)) == NormalizeText(s).
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}

	s = norm.NFC.String(strings.ToLower(s))
	s = quoteReplacer.Replace(s)

	// "Artist - Title" and "Artist Title" compare equal
	s = strings.ReplaceAll(s, "-", " ")
	s = collapseWhitespace(s)

	for strings.HasPrefix(s, "the ") {
		s = s[len("the "):]
	}

	return s
}

// NormalizeArtist normalizes an artist name down to its primary artist.
// "Artist feat. Other", "Artist & Other" and "Artist (2)" all become "artist".
func NormalizeArtist(artist string) string {
	artist = NormalizeText(artist)
	if artist == "" {
		return ""
	}

	for _, re := range featuringPatterns {
		if loc := re.FindStringIndex(artist); loc != nil {
			artist = artist[:loc[0]]
			break
		}
	}

	if loc := ampersandPattern.FindStringIndex(artist); loc != nil {
		artist = artist[:loc[0]]
	}

	artist = disambiguationPattern.ReplaceAllString(artist, "")

	return strings.TrimSpace(artist)
}

// CleanString performs basic string cleaning (Unicode, trim, collapse)
func CleanString(s string) string {
	if s == "" {
		return ""
	}
	return collapseWhitespace(norm.NFC.String(s))
}

// collapseWhitespace replaces runs of whitespace with a single space and trims
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
