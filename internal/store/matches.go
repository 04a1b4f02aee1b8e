package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/franz/crate-sync/internal/platform"
	"github.com/franz/crate-sync/internal/util"
)

const matchedTrackColumns = `
	id, release_id, position, artist, track_name, destination,
	COALESCE(platform_track_id, ''), confidence, searched_at, review_status`

// MatchCounts summarizes the match cache for one destination
type MatchCounts struct {
	Total    int
	Matched  int
	NotFound int
	Approved int
	Rejected int
	Pending  int
}

// GetCachedMatch returns the cached decision for a catalog track, or nil when
// there is none. Rejected rows are never returned. Rows older than maxAge are
// treated as absent unless approved; maxAge <= 0 disables expiry.
func (s *Store) GetCachedMatch(releaseID int, position string, dest platform.Destination, maxAge time.Duration) (*MatchedTrack, error) {
	m, err := s.GetMatchedTrack(releaseID, position, dest)
	if err != nil || m == nil {
		return nil, err
	}

	switch m.ReviewStatus {
	case ReviewRejected:
		return nil, nil
	case ReviewApproved:
		return m, nil
	}

	if maxAge > 0 && s.now().Sub(m.SearchedAt) > maxAge {
		return nil, nil
	}
	return m, nil
}

// GetMatchedTrack returns the row for a catalog track regardless of review
// status or age
func (s *Store) GetMatchedTrack(releaseID int, position string, dest platform.Destination) (*MatchedTrack, error) {
	row := s.db.QueryRow(`
		SELECT`+matchedTrackColumns+`
		FROM matched_tracks
		WHERE release_id = ? AND position = ? AND destination = ?
	`, releaseID, position, string(dest))

	m, err := scanMatchedTrack(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get matched track: %w", err)
	}
	return m, nil
}

// SaveMatchedTrack upserts a match decision and resets its review status to
// pending. A rejected row is left untouched when the new decision has no
// platform track, so the rejection survives a failed re-search.
func (s *Store) SaveMatchedTrack(m *MatchedTrack) error {
	_, err := s.db.Exec(`
		INSERT INTO matched_tracks
		(release_id, position, artist, track_name, destination, platform_track_id, confidence, searched_at, review_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'pending')
		ON CONFLICT(release_id, position, destination) DO UPDATE SET
			artist = excluded.artist,
			track_name = excluded.track_name,
			platform_track_id = excluded.platform_track_id,
			confidence = excluded.confidence,
			searched_at = excluded.searched_at,
			review_status = 'pending'
		WHERE matched_tracks.review_status != 'rejected' OR excluded.platform_track_id IS NOT NULL
	`, m.ReleaseID, m.Position, m.Artist, m.TrackName, string(m.Destination),
		nullString(m.PlatformTrackID), m.Confidence, s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save matched track: %w", err)
	}
	return nil
}

// GetMatchedTrackByID returns a row by primary key, or nil if absent
func (s *Store) GetMatchedTrackByID(id int64) (*MatchedTrack, error) {
	row := s.db.QueryRow(`SELECT`+matchedTrackColumns+` FROM matched_tracks WHERE id = ?`, id)

	m, err := scanMatchedTrack(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get matched track %d: %w", id, err)
	}
	return m, nil
}

// GetMatchedTrackIDs returns the platform track ids matched for a release,
// in position order. Rejected rows are skipped.
func (s *Store) GetMatchedTrackIDs(releaseID int, dest platform.Destination) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT platform_track_id
		FROM matched_tracks
		WHERE release_id = ? AND destination = ?
		  AND platform_track_id IS NOT NULL
		  AND review_status != 'rejected'
		ORDER BY position
	`, releaseID, string(dest))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// GetFlaggedTracks returns pending real matches whose confidence is below
// highConfidence, weakest first. An empty dest means every destination.
func (s *Store) GetFlaggedTracks(highConfidence float64, dest platform.Destination) ([]*MatchedTrack, error) {
	query := `
		SELECT` + matchedTrackColumns + `
		FROM matched_tracks
		WHERE confidence < ?
		  AND confidence > 0
		  AND platform_track_id IS NOT NULL
		  AND review_status = 'pending'`
	args := []any{highConfidence}

	if dest != "" {
		query += ` AND destination = ?`
		args = append(args, string(dest))
	}
	query += ` ORDER BY confidence ASC, id ASC`

	return s.queryMatchedTracks(query, args...)
}

// UpdateReviewStatus sets the review status of a row
func (s *Store) UpdateReviewStatus(id int64, status ReviewStatus) error {
	result, err := s.db.Exec(`UPDATE matched_tracks SET review_status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update review status: %w", err)
	}
	return requireAffected(result, "matched track", id)
}

// UpdateMatchedTrack overwrites the platform track and confidence of a row
// after a manual correction
func (s *Store) UpdateMatchedTrack(id int64, platformTrackID string, confidence float64) error {
	result, err := s.db.Exec(`
		UPDATE matched_tracks
		SET platform_track_id = ?, confidence = ?, searched_at = ?
		WHERE id = ?
	`, nullString(platformTrackID), confidence, s.now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update matched track: %w", err)
	}
	return requireAffected(result, "matched track", id)
}

// DeleteMatchedTrack removes a row so the track is searched again
func (s *Store) DeleteMatchedTrack(id int64) error {
	_, err := s.db.Exec(`DELETE FROM matched_tracks WHERE id = ?`, id)
	return err
}

// ClearMatchedTracks deletes cached matches and returns how many were removed.
// With preserveReviewed, approved and rejected rows are kept.
func (s *Store) ClearMatchedTracks(dest platform.Destination, preserveReviewed bool) (int64, error) {
	query := `DELETE FROM matched_tracks WHERE 1=1`
	var args []any

	if dest != "" {
		query += ` AND destination = ?`
		args = append(args, string(dest))
	}
	if preserveReviewed {
		query += ` AND review_status = 'pending'`
	}

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to clear matched tracks: %w", err)
	}
	return result.RowsAffected()
}

// CountMatchedTracks summarizes the match cache. An empty dest counts all.
func (s *Store) CountMatchedTracks(dest platform.Destination) (*MatchCounts, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN platform_track_id IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN review_status = 'approved' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN review_status = 'rejected' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN review_status = 'pending' THEN 1 ELSE 0 END), 0)
		FROM matched_tracks`
	var args []any
	if dest != "" {
		query += ` WHERE destination = ?`
		args = append(args, string(dest))
	}

	var c MatchCounts
	err := s.db.QueryRow(query, args...).Scan(&c.Total, &c.Matched, &c.Approved, &c.Rejected, &c.Pending)
	if err != nil {
		return nil, fmt.Errorf("failed to count matched tracks: %w", err)
	}
	c.NotFound = c.Total - c.Matched
	return &c, nil
}

func (s *Store) queryMatchedTracks(query string, args ...any) ([]*MatchedTrack, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []*MatchedTrack
	for rows.Next() {
		m, err := scanMatchedTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, m)
	}

	return tracks, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMatchedTrack(row scanner) (*MatchedTrack, error) {
	var m MatchedTrack
	var dest, status string
	var searchedAt int64

	err := row.Scan(
		&m.ID,
		&m.ReleaseID,
		&m.Position,
		&m.Artist,
		&m.TrackName,
		&dest,
		&m.PlatformTrackID,
		&m.Confidence,
		&searchedAt,
		&status,
	)
	if err != nil {
		return nil, err
	}

	m.Destination = platform.Destination(dest)
	m.ReviewStatus = ReviewStatus(status)
	m.SearchedAt = unixTime(searchedAt)
	return &m, nil
}

func requireAffected(result sql.Result, what string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, util.ErrNotFound)
	}
	return nil
}
