package store

import (
	"database/sql"
	"fmt"
)

// UpdateFolderReleases replaces the release snapshot of a folder
func (s *Store) UpdateFolderReleases(folderID int, releaseIDs []int) error {
	now := s.now().Unix()

	return s.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM folder_releases WHERE folder_id = ?`, folderID); err != nil {
			return fmt.Errorf("failed to clear folder releases: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT OR IGNORE INTO folder_releases (folder_id, release_id, added_at)
			VALUES (?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, id := range releaseIDs {
			if _, err := stmt.Exec(folderID, id, now); err != nil {
				return fmt.Errorf("failed to insert folder release %d: %w", id, err)
			}
		}
		return nil
	})
}

// GetFolderReleases returns the release ids of a folder's last snapshot
func (s *Store) GetFolderReleases(folderID int) ([]int, error) {
	rows, err := s.db.Query(`
		SELECT release_id
		FROM folder_releases
		WHERE folder_id = ?
		ORDER BY release_id
	`, folderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
