package meta

import "strings"

// ParsedTitle is a track title split into its base title and version marker
type ParsedTitle struct {
	BaseTitle    string
	VersionLabel string // bracket content without the parentheses, e.g. "Hardfloor Remix"
	Category     Category
	Remixer      string // only set by the generic "(X remix|edit|dub|mix)" patterns
	FullTitle    string
	Artist       string
}

// ParseTrackTitle decomposes a raw track title using the ordered version patterns
func ParseTrackTitle(title, artist string) ParsedTitle {
	title = CleanString(title)
	parsed := ParsedTitle{
		FullTitle: title,
		Artist:    CleanString(artist),
	}

	for _, p := range versionPatterns {
		m := p.re.FindStringSubmatchIndex(title)
		if m == nil {
			continue
		}
		parsed.Category = p.category
		parsed.VersionLabel = strings.TrimSpace(strings.Trim(title[m[0]:m[1]], "()"))
		if len(m) >= 4 && m[2] >= 0 {
			parsed.Remixer = strings.TrimSpace(title[m[2]:m[3]])
		}
		parsed.BaseTitle = collapseWhitespace(title[:m[0]] + " " + title[m[1]:])
		if parsed.BaseTitle == "" {
			parsed.BaseTitle = title
		}
		return parsed
	}

	if m := anyParenthetical.FindStringSubmatchIndex(title); m != nil {
		parsed.Category = CategoryOther
		parsed.VersionLabel = strings.TrimSpace(title[m[2]:m[3]])
		parsed.BaseTitle = strings.TrimSpace(title[:m[0]])
		if parsed.BaseTitle == "" {
			// "(Intro) Something" keeps whatever follows the bracket
			parsed.BaseTitle = collapseWhitespace(title[m[1]:])
		}
		if parsed.BaseTitle == "" {
			parsed.BaseTitle = parsed.VersionLabel
		}
		return parsed
	}

	parsed.Category = CategoryOriginal
	parsed.BaseTitle = title
	return parsed
}

// SearchQuery is the primary platform query: artist, base title and version
func (p ParsedTitle) SearchQuery() string {
	return joinNonEmpty(p.Artist, p.BaseTitle, p.VersionLabel)
}

// FallbackQuery drops the version marker
func (p ParsedTitle) FallbackQuery() string {
	return joinNonEmpty(p.Artist, p.BaseTitle)
}

// HasVersion reports whether the title names a specific version
func (p ParsedTitle) HasVersion() bool {
	return p.VersionLabel != ""
}

// ShouldUseFallback reports whether a version-stripped search is safe.
// Stripping a remix, dub or edit marker would find a different recording.
func ShouldUseFallback(p ParsedTitle) bool {
	switch p.Category {
	case CategoryRemix, CategoryDub, CategoryEdit:
		return false
	}
	return true
}

// QueryVariants returns up to max distinct search queries, primary query first.
// label is the release's label name and may be empty.
func QueryVariants(p ParsedTitle, label string, max int) []string {
	if max < 1 {
		max = 1
	}

	candidates := []string{p.SearchQuery()}
	if p.VersionLabel != "" {
		candidates = append(candidates, joinNonEmpty(p.BaseTitle, p.VersionLabel))
	}
	if label = CleanString(label); label != "" {
		candidates = append(candidates, joinNonEmpty(p.Artist, p.BaseTitle, label))
	}
	if p.Remixer != "" {
		// Platforms often credit the remixer as the track artist
		candidates = append(candidates, joinNonEmpty(p.Remixer, p.BaseTitle))
	}

	seen := make(map[string]bool, len(candidates))
	queries := make([]string, 0, len(candidates))
	for _, q := range candidates {
		key := strings.ToLower(q)
		if q == "" || seen[key] {
			continue
		}
		seen[key] = true
		queries = append(queries, q)
		if len(queries) == max {
			break
		}
	}
	return queries
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, " ")
}
