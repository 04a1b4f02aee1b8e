package score

import (
	"strings"

	"github.com/franz/crate-sync/internal/meta"
	"github.com/franz/crate-sync/internal/platform"
)

// Weights are the linear coefficients of each score component.
// They are not normalized; callers choose weights that sum sensibly.
type Weights struct {
	Artist     float64
	Title      float64
	Verified   float64
	Popularity float64
	Version    float64 // additive bonus when the candidate carries the requested version
	Label      float64 // additive bonus when the candidate matches the release label
	Penalty    float64 // subtracted when a remix/dub/edit candidate lacks the version marker
}

// DefaultWeights returns the base weights. Version, label and penalty are off.
func DefaultWeights() Weights {
	return Weights{
		Artist:     0.45,
		Title:      0.35,
		Verified:   0.10,
		Popularity: 0.10,
	}
}

// Components holds every raw component score plus the weighted total
type Components struct {
	Artist     float64 `json:"artist"`
	Title      float64 `json:"title"`
	Verified   float64 `json:"verified"`
	Popularity float64 `json:"popularity"`
	Version    float64 `json:"version"`
	Label      float64 `json:"label"`
	Penalty    float64 `json:"penalty"`
	Total      float64 `json:"total"`
}

// ArtistScore compares artist names after normalization.
// Token order is ignored so "Punk, Daft" still matches.
func ArtistScore(source, candidate string) float64 {
	a := meta.NormalizeArtist(source)
	b := meta.NormalizeArtist(candidate)
	return max(Ratio(a, b), TokenSortRatio(a, b))
}

// TitleScore compares titles after normalization. Exact matches win; substring
// containment still scores well when the platform appends " - Single Version".
func TitleScore(source, candidate string) float64 {
	a := meta.NormalizeText(source)
	b := meta.NormalizeText(candidate)
	return max(
		Ratio(a, b),
		0.95*TokenSortRatio(a, b),
		0.9*PartialRatio(a, b),
	)
}

// NormalizePopularity maps a popularity value onto [0,1]
func NormalizePopularity(value, maxValue int) float64 {
	if maxValue <= 0 {
		return 0.0
	}
	return clamp(float64(value)/float64(maxValue), 0, 1)
}

// VersionBonus returns 1 when the candidate title carries the parsed version
// label or the remixer name
func VersionBonus(parsed meta.ParsedTitle, candidateTitle string) float64 {
	if parsed.VersionLabel == "" {
		return 0.0
	}
	title := strings.ToLower(candidateTitle)
	if strings.Contains(title, strings.ToLower(parsed.VersionLabel)) {
		return 1.0
	}
	if parsed.Remixer != "" && strings.Contains(title, strings.ToLower(parsed.Remixer)) {
		return 1.0
	}
	return 0.0
}

// LabelBonus returns 1 when the release label appears in the candidate's
// label, album or artist
func LabelBonus(releaseLabel string, c platform.Candidate) float64 {
	label := meta.NormalizeText(releaseLabel)
	if label == "" {
		return 0.0
	}
	for _, field := range []string{c.Label, c.Album, c.Artist} {
		if field != "" && strings.Contains(meta.NormalizeText(field), label) {
			return 1.0
		}
	}
	return 0.0
}

// VersionPenalty returns 1 when the source names a remix, dub or edit and the
// candidate title mentions neither the version nor the remixer. Such a candidate
// is almost always the original mix.
func VersionPenalty(parsed meta.ParsedTitle, candidateTitle string) float64 {
	if meta.ShouldUseFallback(parsed) {
		return 0.0
	}
	return 1.0 - VersionBonus(parsed, candidateTitle)
}

// ScoreCandidate combines all components into a confidence in [0,1].
// releaseLabel may be empty.
func ScoreCandidate(parsed meta.ParsedTitle, releaseLabel string, c platform.Candidate, w Weights) Components {
	comp := Components{
		Artist:     ArtistScore(parsed.Artist, c.Artist),
		Title:      TitleScore(parsed.FullTitle, c.Title),
		Popularity: NormalizePopularity(c.Popularity, c.MaxPopularity),
		Version:    VersionBonus(parsed, c.Title),
		Label:      LabelBonus(releaseLabel, c),
		Penalty:    VersionPenalty(parsed, c.Title),
	}
	if c.Verified {
		comp.Verified = 1.0
	}

	total := comp.Artist*w.Artist +
		comp.Title*w.Title +
		comp.Verified*w.Verified +
		comp.Popularity*w.Popularity +
		comp.Version*w.Version +
		comp.Label*w.Label -
		comp.Penalty*w.Penalty

	comp.Total = clamp(total, 0, 1)
	return comp
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
