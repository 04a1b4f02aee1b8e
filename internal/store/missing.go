package store

import (
	"fmt"

	"github.com/franz/crate-sync/internal/platform"
)

// SaveMissingTrack records a track with no acceptable match
func (s *Store) SaveMissingTrack(m *MissingTrack) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO missing_tracks
		(release_id, folder_id, artist, track_name, destination, searched_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.ReleaseID, m.FolderID, m.Artist, m.TrackName, string(m.Destination), s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save missing track: %w", err)
	}
	return nil
}

// DeleteMissingTrack drops a missing-track record once the track matches
func (s *Store) DeleteMissingTrack(releaseID int, trackName string, dest platform.Destination) error {
	_, err := s.db.Exec(`
		DELETE FROM missing_tracks
		WHERE release_id = ? AND track_name = ? AND destination = ?
	`, releaseID, trackName, string(dest))
	return err
}

// GetMissingTracks lists missing tracks ordered by artist and title.
// An empty dest means every destination.
func (s *Store) GetMissingTracks(dest platform.Destination) ([]*MissingTrack, error) {
	query := `
		SELECT id, release_id, folder_id, artist, track_name, destination, searched_at
		FROM missing_tracks`
	var args []any
	if dest != "" {
		query += ` WHERE destination = ?`
		args = append(args, string(dest))
	}
	query += ` ORDER BY artist, track_name, destination`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []*MissingTrack
	for rows.Next() {
		var m MissingTrack
		var d string
		var searchedAt int64

		err := rows.Scan(&m.ID, &m.ReleaseID, &m.FolderID, &m.Artist, &m.TrackName, &d, &searchedAt)
		if err != nil {
			return nil, err
		}

		m.Destination = platform.Destination(d)
		m.SearchedAt = unixTime(searchedAt)
		tracks = append(tracks, &m)
	}

	return tracks, rows.Err()
}

// ClearMissingTracks deletes missing-track records and returns how many
// were removed. An empty dest clears every destination.
func (s *Store) ClearMissingTracks(dest platform.Destination) (int64, error) {
	query := `DELETE FROM missing_tracks`
	var args []any
	if dest != "" {
		query += ` WHERE destination = ?`
		args = append(args, string(dest))
	}

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to clear missing tracks: %w", err)
	}
	return result.RowsAffected()
}
