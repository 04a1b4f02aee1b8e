// Package review lets a human approve, reject or correct low-confidence
// matches, from the CLI or a small web UI.
package review

import (
	"fmt"

	"github.com/franz/crate-sync/internal/platform"
	"github.com/franz/crate-sync/internal/store"
	"github.com/franz/crate-sync/internal/util"
)

// Service applies review decisions to the match store
type Service struct {
	store          *store.Store
	highConfidence float64
}

// Config holds service configuration
type Config struct {
	Store          *store.Store
	HighConfidence float64 // matches below this are listed for review
}

// NewService creates a review service
func NewService(cfg *Config) *Service {
	return &Service{
		store:          cfg.Store,
		highConfidence: cfg.HighConfidence,
	}
}

// TrackDetails is one matched track with its links
type TrackDetails struct {
	ID              int64                `json:"id"`
	ReleaseID       int                  `json:"discogs_release_id"`
	Position        string               `json:"position"`
	Artist          string               `json:"artist"`
	TrackName       string               `json:"track_name"`
	Destination     platform.Destination `json:"destination"`
	Confidence      float64              `json:"confidence"`
	PlatformTrackID string               `json:"destination_track_id"`
	ReviewStatus    store.ReviewStatus   `json:"review_status"`
	Links           map[string]string    `json:"links"`
}

// ListFlagged returns pending matches below the review threshold, weakest
// first. An empty dest lists every destination.
func (s *Service) ListFlagged(dest platform.Destination) ([]*store.MatchedTrack, error) {
	return s.store.GetFlaggedTracks(s.highConfidence, dest)
}

// Approve keeps a match as is
func (s *Service) Approve(id int64) error {
	return s.store.UpdateReviewStatus(id, store.ReviewApproved)
}

// Reject marks a match wrong. Rejected rows are never cache hits, so the
// next sync searches the track again.
func (s *Service) Reject(id int64) error {
	return s.store.UpdateReviewStatus(id, store.ReviewRejected)
}

// Correct replaces a match with a user supplied track id, URI or URL. The
// corrected row is approved with full confidence.
func (s *Service) Correct(id int64, ref string) (*store.MatchedTrack, error) {
	m, err := s.store.GetMatchedTrackByID(id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("matched track %d: %w", id, util.ErrNotFound)
	}

	trackID, err := platform.ParseTrackRef(m.Destination, ref)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateMatchedTrack(id, trackID, 1.0); err != nil {
		return nil, err
	}
	if err := s.store.UpdateReviewStatus(id, store.ReviewApproved); err != nil {
		return nil, err
	}

	return s.store.GetMatchedTrackByID(id)
}

// ApproveAll approves every currently flagged match and returns how many
func (s *Service) ApproveAll(dest platform.Destination) (int, error) {
	flagged, err := s.ListFlagged(dest)
	if err != nil {
		return 0, err
	}

	approved := 0
	for _, m := range flagged {
		if err := s.Approve(m.ID); err != nil {
			return approved, err
		}
		approved++
	}
	return approved, nil
}

// Track returns one matched track with its platform and Discogs links
func (s *Service) Track(id int64) (*TrackDetails, error) {
	m, err := s.store.GetMatchedTrackByID(id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("matched track %d: %w", id, util.ErrNotFound)
	}
	return details(m), nil
}

func details(m *store.MatchedTrack) *TrackDetails {
	links := map[string]string{
		"discogs": DiscogsReleaseURL(m.ReleaseID),
	}
	if m.Found() {
		links["platform"] = platform.TrackURL(m.Destination, m.PlatformTrackID)
	}

	return &TrackDetails{
		ID:              m.ID,
		ReleaseID:       m.ReleaseID,
		Position:        m.Position,
		Artist:          m.Artist,
		TrackName:       m.TrackName,
		Destination:     m.Destination,
		Confidence:      m.Confidence,
		PlatformTrackID: m.PlatformTrackID,
		ReviewStatus:    m.ReviewStatus,
		Links:           links,
	}
}

// DiscogsReleaseURL returns the public page of a release
func DiscogsReleaseURL(releaseID int) string {
	return fmt.Sprintf("https://www.discogs.com/release/%d", releaseID)
}
