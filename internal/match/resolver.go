// Package match resolves catalog tracks to platform tracks. Each decision is
// cached in the store so repeated syncs only search for new or expired tracks.
package match

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/franz/crate-sync/internal/catalog"
	"github.com/franz/crate-sync/internal/meta"
	"github.com/franz/crate-sync/internal/platform"
	"github.com/franz/crate-sync/internal/score"
	"github.com/franz/crate-sync/internal/store"
	"github.com/franz/crate-sync/internal/util"
)

const (
	DefaultMinConfidence = 0.30
	DefaultShortCircuit  = 0.95
	DefaultMaxQueries    = 5
	DefaultSearchLimit   = 10
)

// ErrSearch marks a failed platform search. The store is untouched when
// Resolve returns it; any other error comes from the store.
var ErrSearch = errors.New("search failed")

// Resolver finds the best platform track for a catalog track
type Resolver struct {
	store         *store.Store
	searcher      platform.Searcher
	dest          platform.Destination
	weights       score.Weights
	minConfidence float64
	shortCircuit  float64
	maxQueries    int
	searchLimit   int
	maxAge        time.Duration
}

// Config holds resolver configuration
type Config struct {
	Store         *store.Store
	Searcher      platform.Searcher
	Destination   platform.Destination
	Weights       *score.Weights // nil = score.DefaultWeights()
	MinConfidence float64        // accept threshold (0 = 0.30)
	ShortCircuit  float64        // stop querying at this score (0 = 0.95)
	MaxQueries    int            // query variants per track (0 = 5)
	SearchLimit   int            // candidates per query (0 = 10)
	MaxAge        time.Duration  // cache expiry for unreviewed rows (0 = never)
}

// New creates a new Resolver
func New(cfg *Config) *Resolver {
	if cfg.Weights == nil {
		w := score.DefaultWeights()
		cfg.Weights = &w
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = DefaultMinConfidence
	}
	if cfg.ShortCircuit <= 0 {
		cfg.ShortCircuit = DefaultShortCircuit
	}
	if cfg.MaxQueries <= 0 {
		cfg.MaxQueries = DefaultMaxQueries
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = DefaultSearchLimit
	}

	return &Resolver{
		store:         cfg.Store,
		searcher:      cfg.Searcher,
		dest:          cfg.Destination,
		weights:       *cfg.Weights,
		minConfidence: cfg.MinConfidence,
		shortCircuit:  cfg.ShortCircuit,
		maxQueries:    cfg.MaxQueries,
		searchLimit:   cfg.SearchLimit,
		maxAge:        cfg.MaxAge,
	}
}

// Result is an accepted match
type Result struct {
	TrackID       string
	URI           string
	Confidence    float64
	Components    score.Components
	MatchedTitle  string
	MatchedArtist string
	FromCache     bool
	Approved      bool // a reviewer confirmed this match
}

// Destination returns the platform this resolver searches
func (r *Resolver) Destination() platform.Destination {
	return r.dest
}

// Resolve returns the accepted match for track, or nil when no candidate
// reaches the minimum confidence. Every call that reaches a decision writes
// exactly one matched-track row. Search errors are returned without touching
// the store.
func (r *Resolver) Resolve(ctx context.Context, track catalog.Track, release catalog.Release, folderID int) (*Result, error) {
	cached, err := r.store.GetCachedMatch(release.ID, track.Position, r.dest, r.maxAge)
	if err != nil {
		return nil, err
	}
	if cached != nil && cached.Found() {
		util.DebugLog("Cache hit for %s - %s (%s)", track.Artist, track.Title, cached.PlatformTrackID)
		return &Result{
			TrackID:       cached.PlatformTrackID,
			URI:           platform.TrackURL(r.dest, cached.PlatformTrackID),
			Confidence:    cached.Confidence,
			MatchedTitle:  cached.TrackName,
			MatchedArtist: cached.Artist,
			FromCache:     true,
			Approved:      cached.ReviewStatus == store.ReviewApproved,
		}, nil
	}

	// A rejected id must not come back from a fresh search
	var excluded string
	if cached == nil {
		existing, err := r.store.GetMatchedTrack(release.ID, track.Position, r.dest)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ReviewStatus == store.ReviewRejected {
			excluded = existing.PlatformTrackID
		}
	}

	parsed := meta.ParseTrackTitle(track.Title, track.Artist)
	best, err := r.search(ctx, parsed, release.Label, excluded)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w for %s - %s: %w", ErrSearch, track.Artist, track.Title, err)
	}

	if best != nil && best.Confidence >= r.minConfidence {
		err := r.store.SaveMatchedTrack(&store.MatchedTrack{
			ReleaseID:       release.ID,
			Position:        track.Position,
			Artist:          track.Artist,
			TrackName:       track.Title,
			Destination:     r.dest,
			PlatformTrackID: best.TrackID,
			Confidence:      best.Confidence,
		})
		if err != nil {
			return nil, err
		}
		if err := r.store.DeleteMissingTrack(release.ID, track.Title, r.dest); err != nil {
			return nil, fmt.Errorf("failed to clear missing track: %w", err)
		}
		return best, nil
	}

	var confidence float64
	if best != nil {
		confidence = best.Confidence
	}
	util.DebugLog("No match for %s - %s (best %.2f)", track.Artist, track.Title, confidence)

	err = r.store.SaveMatchedTrack(&store.MatchedTrack{
		ReleaseID:   release.ID,
		Position:    track.Position,
		Artist:      track.Artist,
		TrackName:   track.Title,
		Destination: r.dest,
		Confidence:  confidence,
	})
	if err != nil {
		return nil, err
	}
	err = r.store.SaveMissingTrack(&store.MissingTrack{
		ReleaseID:   release.ID,
		FolderID:    folderID,
		Artist:      track.Artist,
		TrackName:   track.Title,
		Destination: r.dest,
	})
	if err != nil {
		return nil, err
	}
	return nil, nil
}

// search runs the query variants and returns the best scored candidate
func (r *Resolver) search(ctx context.Context, parsed meta.ParsedTitle, label, excluded string) (*Result, error) {
	var best *Result
	seen := make(map[string]bool)

	consider := func(candidates []platform.Candidate) {
		for _, c := range candidates {
			if c.ID == "" || c.ID == excluded || seen[c.ID] {
				continue
			}
			seen[c.ID] = true

			comp := score.ScoreCandidate(parsed, label, c, r.weights)
			if best == nil || comp.Total > best.Confidence {
				best = &Result{
					TrackID:       c.ID,
					URI:           c.URI,
					Confidence:    comp.Total,
					Components:    comp,
					MatchedTitle:  c.Title,
					MatchedArtist: c.Artist,
				}
			}
			if best.Confidence >= r.shortCircuit {
				return
			}
		}
	}

	issued := make(map[string]bool)
	for _, query := range meta.QueryVariants(parsed, label, r.maxQueries) {
		issued[strings.ToLower(query)] = true
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		candidates, err := r.searcher.SearchTracks(ctx, query, r.searchLimit)
		if err != nil {
			return nil, err
		}
		consider(candidates)
		if best != nil && best.Confidence >= r.shortCircuit {
			return best, nil
		}
	}

	// Only when nothing at all came back and dropping the version is safe
	fallback := parsed.FallbackQuery()
	if len(seen) == 0 && meta.ShouldUseFallback(parsed) && !issued[strings.ToLower(fallback)] {
		candidates, err := r.searcher.SearchTracks(ctx, fallback, r.searchLimit)
		if err != nil {
			return nil, err
		}
		consider(candidates)
	}

	return best, nil
}
