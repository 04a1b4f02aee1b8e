package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/franz/crate-sync/internal/platform"
)

// SyncLog is one persisted sync event
type SyncLog struct {
	ID              int64
	SyncID          string
	Destination     platform.Destination
	FolderID        int
	FolderName      string
	EventType       string
	Status          string
	TrackArtist     string
	TrackName       string
	TrackConfidence float64
	Message         string
	Details         map[string]any
	CreatedAt       time.Time
}

// SyncLogFilter narrows sync log queries. Zero values match everything.
type SyncLogFilter struct {
	SyncID      string
	Destination platform.Destination
	Status      string
	EventType   string
	Limit       int
	Offset      int
}

// SyncSummary aggregates the events of one sync run
type SyncSummary struct {
	SyncID           string
	Destination      platform.Destination
	StartedAt        time.Time
	CompletedAt      time.Time
	TotalEvents      int
	SuccessCount     int
	WarningCount     int
	ErrorCount       int
	TracksMatched    int
	TracksFlagged    int
	TracksMissing    int
	PlaylistsCreated int
	FoldersProcessed int
}

// Duration returns how long the run took
func (s *SyncSummary) Duration() time.Duration {
	return s.CompletedAt.Sub(s.StartedAt)
}

// RecentSync identifies a past sync run
type RecentSync struct {
	SyncID      string
	Destination platform.Destination
	StartedAt   time.Time
}

// LogSyncEvent appends an event to the sync log
func (s *Store) LogSyncEvent(l *SyncLog) error {
	var details sql.NullString
	if len(l.Details) > 0 {
		data, err := json.Marshal(l.Details)
		if err != nil {
			return fmt.Errorf("failed to encode event details: %w", err)
		}
		details = sql.NullString{String: string(data), Valid: true}
	}

	createdAt := l.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	var folderID sql.NullInt64
	if l.FolderName != "" || l.FolderID != 0 {
		folderID = sql.NullInt64{Int64: int64(l.FolderID), Valid: true}
	}

	var confidence sql.NullFloat64
	if l.TrackName != "" {
		confidence = sql.NullFloat64{Float64: l.TrackConfidence, Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO sync_logs
		(sync_id, destination, folder_id, folder_name, event_type, status,
		 track_artist, track_name, track_confidence, message, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.SyncID, string(l.Destination), folderID, nullString(l.FolderName), l.EventType, l.Status,
		nullString(l.TrackArtist), nullString(l.TrackName), confidence, nullString(l.Message),
		details, createdAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to log sync event: %w", err)
	}
	return nil
}

// GetSyncLogs returns matching events, newest first
func (s *Store) GetSyncLogs(f SyncLogFilter) ([]*SyncLog, error) {
	where, args := f.where()
	query := `
		SELECT id, sync_id, destination, COALESCE(folder_id, 0), COALESCE(folder_name, ''),
		       event_type, status, COALESCE(track_artist, ''), COALESCE(track_name, ''),
		       COALESCE(track_confidence, 0), COALESCE(message, ''), COALESCE(details, ''), created_at
		FROM sync_logs` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, max(f.Offset, 0))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*SyncLog
	for rows.Next() {
		var l SyncLog
		var dest, details string
		var createdAt int64

		err := rows.Scan(&l.ID, &l.SyncID, &dest, &l.FolderID, &l.FolderName,
			&l.EventType, &l.Status, &l.TrackArtist, &l.TrackName,
			&l.TrackConfidence, &l.Message, &details, &createdAt)
		if err != nil {
			return nil, err
		}

		l.Destination = platform.Destination(dest)
		l.CreatedAt = unixTime(createdAt)
		if details != "" {
			if err := json.Unmarshal([]byte(details), &l.Details); err != nil {
				return nil, fmt.Errorf("failed to decode details of event %d: %w", l.ID, err)
			}
		}
		logs = append(logs, &l)
	}

	return logs, rows.Err()
}

// CountSyncEvents counts matching events
func (s *Store) CountSyncEvents(f SyncLogFilter) (int, error) {
	where, args := f.where()

	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sync_logs`+where, args...).Scan(&count)
	return count, err
}

// GetSyncSummary aggregates one sync run, or returns nil if it logged nothing
func (s *Store) GetSyncSummary(syncID string) (*SyncSummary, error) {
	var sum SyncSummary
	var dest string
	var startedAt, completedAt int64

	err := s.db.QueryRow(`
		SELECT
			sync_id,
			destination,
			MIN(created_at),
			MAX(created_at),
			COUNT(*),
			SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'warning' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END),
			SUM(CASE WHEN event_type = 'track_matched' THEN 1 ELSE 0 END),
			SUM(CASE WHEN event_type = 'track_flagged' THEN 1 ELSE 0 END),
			SUM(CASE WHEN event_type = 'track_missing' THEN 1 ELSE 0 END),
			SUM(CASE WHEN event_type = 'playlist_created' THEN 1 ELSE 0 END),
			COUNT(DISTINCT folder_id)
		FROM sync_logs
		WHERE sync_id = ?
		GROUP BY sync_id, destination
	`, syncID).Scan(
		&sum.SyncID,
		&dest,
		&startedAt,
		&completedAt,
		&sum.TotalEvents,
		&sum.SuccessCount,
		&sum.WarningCount,
		&sum.ErrorCount,
		&sum.TracksMatched,
		&sum.TracksFlagged,
		&sum.TracksMissing,
		&sum.PlaylistsCreated,
		&sum.FoldersProcessed,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to summarize sync %s: %w", syncID, err)
	}

	sum.Destination = platform.Destination(dest)
	sum.StartedAt = unixTime(startedAt)
	sum.CompletedAt = unixTime(completedAt)
	return &sum, nil
}

// GetRecentSyncIDs lists the most recent sync runs, newest first
func (s *Store) GetRecentSyncIDs(limit int) ([]RecentSync, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT sync_id, destination, MIN(created_at) AS started_at, MIN(id) AS first_id
		FROM sync_logs
		GROUP BY sync_id
		ORDER BY started_at DESC, first_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var syncs []RecentSync
	for rows.Next() {
		var r RecentSync
		var dest string
		var startedAt, firstID int64
		if err := rows.Scan(&r.SyncID, &dest, &startedAt, &firstID); err != nil {
			return nil, err
		}
		r.Destination = platform.Destination(dest)
		r.StartedAt = unixTime(startedAt)
		syncs = append(syncs, r)
	}

	return syncs, rows.Err()
}

// CleanupOldLogs deletes events older than the given age
func (s *Store) CleanupOldLogs(olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan).Unix()
	result, err := s.db.Exec(`DELETE FROM sync_logs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (f SyncLogFilter) where() (string, []any) {
	clause := ` WHERE 1=1`
	var args []any

	if f.SyncID != "" {
		clause += ` AND sync_id = ?`
		args = append(args, f.SyncID)
	}
	if f.Destination != "" {
		clause += ` AND destination = ?`
		args = append(args, string(f.Destination))
	}
	if f.Status != "" {
		clause += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.EventType != "" {
		clause += ` AND event_type = ?`
		args = append(args, f.EventType)
	}
	return clause, args
}
