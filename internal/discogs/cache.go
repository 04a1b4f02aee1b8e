package discogs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/franz/crate-sync/internal/catalog"
	"github.com/franz/crate-sync/internal/util"
)

// DefaultTracklistTTL is how long a cached tracklist is trusted
const DefaultTracklistTTL = 30 * 24 * time.Hour

// Cache wraps a catalog source and keeps release tracklists in the state
// database. Folders, releases and the wantlist always go to the source.
type Cache struct {
	catalog.Source

	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewCache creates a new cache instance. ttl <= 0 never expires entries.
func NewCache(db *sql.DB, source catalog.Source, ttl time.Duration) *Cache {
	return &Cache{
		Source: source,
		db:     db,
		ttl:    ttl,
		now:    time.Now,
	}
}

// EnsureSchema creates the cache table if it doesn't exist
func (c *Cache) EnsureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS discogs_tracklists (
		release_id INTEGER PRIMARY KEY,
		release_title TEXT,
		tracks TEXT NOT NULL, -- JSON array of tracks
		cached_at INTEGER NOT NULL,
		hit_count INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_tracklists_cached_at ON discogs_tracklists(cached_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create discogs_tracklists table: %w", err)
	}
	return nil
}

type cachedTrack struct {
	Position string `json:"position"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Duration string `json:"duration,omitempty"`
}

// ListTracks returns the cached tracklist when fresh and fetches it otherwise
func (c *Cache) ListTracks(ctx context.Context, release catalog.Release) ([]catalog.Track, error) {
	tracks, err := c.getFromCache(release.ID)
	if err != nil {
		util.DebugLog("Tracklist cache read failed for %d: %v", release.ID, err)
	}
	if tracks != nil {
		util.DebugLog("Tracklist cache hit: release %d", release.ID)
		c.incrementHitCount(release.ID)
		return tracks, nil
	}

	tracks, err = c.Source.ListTracks(ctx, release)
	if err != nil {
		return nil, err
	}

	// Don't fail the sync if caching fails
	if err := c.storeInCache(release.ID, tracks); err != nil {
		util.WarnLog("Failed to cache tracklist for release %d: %v", release.ID, err)
	}
	return tracks, nil
}

// getFromCache returns nil, nil on a miss or an expired entry
func (c *Cache) getFromCache(releaseID int) ([]catalog.Track, error) {
	var title, raw string
	var cachedAt int64

	err := c.db.QueryRow(`
		SELECT COALESCE(release_title, ''), tracks, cached_at
		FROM discogs_tracklists
		WHERE release_id = ?
	`, releaseID).Scan(&title, &raw, &cachedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	if c.ttl > 0 && c.now().Sub(time.Unix(cachedAt, 0)) > c.ttl {
		return nil, nil
	}

	var entries []cachedTrack
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("corrupt cache entry: %w", err)
	}

	tracks := make([]catalog.Track, 0, len(entries))
	for _, e := range entries {
		tracks = append(tracks, catalog.Track{
			Position:     e.Position,
			Title:        e.Title,
			Artist:       e.Artist,
			Duration:     e.Duration,
			ReleaseID:    releaseID,
			ReleaseTitle: title,
		})
	}
	return tracks, nil
}

func (c *Cache) storeInCache(releaseID int, tracks []catalog.Track) error {
	entries := make([]cachedTrack, 0, len(tracks))
	title := ""
	for _, t := range tracks {
		entries = append(entries, cachedTrack{Position: t.Position, Title: t.Title, Artist: t.Artist, Duration: t.Duration})
		title = t.ReleaseTitle
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	_, err = c.db.Exec(`
		INSERT OR REPLACE INTO discogs_tracklists
		(release_id, release_title, tracks, cached_at, hit_count)
		VALUES (?, ?, ?, ?, COALESCE((SELECT hit_count FROM discogs_tracklists WHERE release_id = ?), 0))
	`, releaseID, title, string(raw), c.now().Unix(), releaseID)
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

func (c *Cache) incrementHitCount(releaseID int) {
	_, err := c.db.Exec(`UPDATE discogs_tracklists SET hit_count = hit_count + 1 WHERE release_id = ?`, releaseID)
	if err != nil {
		util.DebugLog("Failed to increment hit count: %v", err)
	}
}

// GetStats returns cache statistics
func (c *Cache) GetStats() (entries int, totalHits int64, err error) {
	err = c.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(hit_count), 0) FROM discogs_tracklists`).Scan(&entries, &totalHits)
	return
}

// ClearCache removes all cached tracklists
func (c *Cache) ClearCache() (int64, error) {
	result, err := c.db.Exec("DELETE FROM discogs_tracklists")
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ClearOldEntries removes tracklists cached longer ago than olderThan
func (c *Cache) ClearOldEntries(olderThan time.Duration) (int64, error) {
	cutoff := c.now().Add(-olderThan).Unix()
	result, err := c.db.Exec("DELETE FROM discogs_tracklists WHERE cached_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
