package meta

import "regexp"

// Category classifies the version of a recording named in its title
type Category string

const (
	CategoryOriginal     Category = "original"
	CategoryRemix        Category = "remix"
	CategoryEdit         Category = "edit"
	CategoryDub          Category = "dub"
	CategoryExtended     Category = "extended"
	CategoryRadio        Category = "radio"
	CategoryInstrumental Category = "instrumental"
	CategoryAcapella     Category = "acapella"
	CategoryRemaster     Category = "remaster"
	CategoryLive         Category = "live"
	CategoryOther        Category = "other"
)

// versionPattern pairs a bracketed version marker with its category.
// Patterns with a capture group capture the remixer.
type versionPattern struct {
	re       *regexp.Regexp
	category Category
}

// versionPatterns are checked in order and the first match wins, so the
// specific markers must come before the generic "(X remix)" style catch-alls.
var versionPatterns = []versionPattern{
	{regexp.MustCompile(`(?i)\(extended\s+mix\)`), CategoryExtended},
	{regexp.MustCompile(`(?i)\(extended\s+version\)`), CategoryExtended},
	{regexp.MustCompile(`(?i)\(extended\)`), CategoryExtended},
	{regexp.MustCompile(`(?i)\(original\s+mix\)`), CategoryOriginal},
	{regexp.MustCompile(`(?i)\(original\s+version\)`), CategoryOriginal},
	{regexp.MustCompile(`(?i)\(original\)`), CategoryOriginal},
	{regexp.MustCompile(`(?i)\(radio\s+edit\)`), CategoryRadio},
	{regexp.MustCompile(`(?i)\(radio\s+mix\)`), CategoryRadio},
	{regexp.MustCompile(`(?i)\(radio\s+version\)`), CategoryRadio},
	{regexp.MustCompile(`(?i)\(instrumental\s+mix\)`), CategoryInstrumental},
	{regexp.MustCompile(`(?i)\(instrumental\)`), CategoryInstrumental},
	{regexp.MustCompile(`(?i)\(acapella\)`), CategoryAcapella},
	{regexp.MustCompile(`(?i)\(a\s*cappella\)`), CategoryAcapella},
	{regexp.MustCompile(`(?i)\(remaster(?:ed)?\s*(?:\d{4})?\)`), CategoryRemaster},
	{regexp.MustCompile(`(?i)\(live(?:\s+[^)]+)?\)`), CategoryLive},
	{regexp.MustCompile(`(?i)\(dub\)`), CategoryDub},
	{regexp.MustCompile(`(?i)\(rework\)`), CategoryEdit},
	{regexp.MustCompile(`(?i)\(bootleg\)`), CategoryEdit},
	{regexp.MustCompile(`(?i)\(vip\s+mix\)`), CategoryEdit},
	{regexp.MustCompile(`(?i)\(vip\)`), CategoryEdit},
	{regexp.MustCompile(`(?i)\(([^)]+)\s+remix\)`), CategoryRemix},
	{regexp.MustCompile(`(?i)\(([^)]+)\s+edit\)`), CategoryEdit},
	{regexp.MustCompile(`(?i)\(([^)]+)\s+dub\)`), CategoryDub},
	{regexp.MustCompile(`(?i)\(([^)]+)\s+mix\)`), CategoryRemix},
}

// anyParenthetical catches bracket content none of the known markers describe
var anyParenthetical = regexp.MustCompile(`\(([^)]+)\)`)
