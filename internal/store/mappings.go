package store

import (
	"database/sql"
	"fmt"

	"github.com/franz/crate-sync/internal/platform"
)

// GetFolderMapping returns the playlist mapping for a folder, or nil if the
// folder has never been synced to dest
func (s *Store) GetFolderMapping(folderID int, dest platform.Destination) (*FolderMapping, error) {
	row := s.db.QueryRow(`
		SELECT id, folder_id, folder_name, destination, playlist_id, playlist_name, created_at
		FROM folder_mappings
		WHERE folder_id = ? AND destination = ?
	`, folderID, string(dest))

	m, err := scanFolderMapping(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get folder mapping: %w", err)
	}
	return m, nil
}

// SaveFolderMapping upserts the mapping for (folder, destination)
func (s *Store) SaveFolderMapping(m *FolderMapping) error {
	createdAt := s.now()
	if !m.CreatedAt.IsZero() {
		createdAt = m.CreatedAt
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO folder_mappings
		(folder_id, folder_name, destination, playlist_id, playlist_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.FolderID, m.FolderName, string(m.Destination), m.PlaylistID, m.PlaylistName, createdAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save folder mapping: %w", err)
	}
	return nil
}

// GetAllFolderMappings lists mappings ordered by folder name.
// An empty dest means every destination.
func (s *Store) GetAllFolderMappings(dest platform.Destination) ([]*FolderMapping, error) {
	query := `
		SELECT id, folder_id, folder_name, destination, playlist_id, playlist_name, created_at
		FROM folder_mappings`
	var args []any
	if dest != "" {
		query += ` WHERE destination = ?`
		args = append(args, string(dest))
	}
	query += ` ORDER BY folder_name, destination`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mappings []*FolderMapping
	for rows.Next() {
		m, err := scanFolderMapping(rows)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}

	return mappings, rows.Err()
}

// DeleteFolderMapping removes the mapping for (folder, destination)
func (s *Store) DeleteFolderMapping(folderID int, dest platform.Destination) error {
	_, err := s.db.Exec(`
		DELETE FROM folder_mappings
		WHERE folder_id = ? AND destination = ?
	`, folderID, string(dest))
	return err
}

func scanFolderMapping(row scanner) (*FolderMapping, error) {
	var m FolderMapping
	var dest string
	var createdAt int64

	err := row.Scan(&m.ID, &m.FolderID, &m.FolderName, &dest, &m.PlaylistID, &m.PlaylistName, &createdAt)
	if err != nil {
		return nil, err
	}

	m.Destination = platform.Destination(dest)
	m.CreatedAt = unixTime(createdAt)
	return &m, nil
}
