package store

// Schema v1 - matches, mappings, snapshots and missing tracks.
// Timestamps are unix seconds.
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- One playlist per (folder, destination)
CREATE TABLE IF NOT EXISTS folder_mappings (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  folder_id INTEGER NOT NULL,
  folder_name TEXT NOT NULL,
  destination TEXT NOT NULL,
  playlist_id TEXT NOT NULL,
  playlist_name TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  UNIQUE(folder_id, destination)
);

CREATE INDEX IF NOT EXISTS idx_folder_mappings_destination ON folder_mappings(destination);

-- Releases seen in each folder on its last sync
CREATE TABLE IF NOT EXISTS folder_releases (
  folder_id INTEGER NOT NULL,
  release_id INTEGER NOT NULL,
  added_at INTEGER NOT NULL,
  PRIMARY KEY (folder_id, release_id)
);

-- Cached match decisions; platform_track_id is NULL when nothing matched
CREATE TABLE IF NOT EXISTS matched_tracks (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  release_id INTEGER NOT NULL,
  position TEXT NOT NULL,
  artist TEXT NOT NULL,
  track_name TEXT NOT NULL,
  destination TEXT NOT NULL,
  platform_track_id TEXT,
  confidence REAL NOT NULL DEFAULT 0,
  searched_at INTEGER NOT NULL,
  review_status TEXT NOT NULL DEFAULT 'pending',
  UNIQUE(release_id, position, destination)
);

CREATE INDEX IF NOT EXISTS idx_matched_tracks_destination ON matched_tracks(destination);
CREATE INDEX IF NOT EXISTS idx_matched_tracks_review ON matched_tracks(review_status, confidence);

-- Tracks with no acceptable match
CREATE TABLE IF NOT EXISTS missing_tracks (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  release_id INTEGER NOT NULL,
  folder_id INTEGER NOT NULL,
  artist TEXT NOT NULL,
  track_name TEXT NOT NULL,
  destination TEXT NOT NULL,
  searched_at INTEGER NOT NULL,
  UNIQUE(release_id, track_name, destination)
);

CREATE INDEX IF NOT EXISTS idx_missing_tracks_destination ON missing_tracks(destination);
`

// Schema v2 - per-run sync event log
const schemaV2 = `
CREATE TABLE IF NOT EXISTS sync_logs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  sync_id TEXT NOT NULL,
  destination TEXT NOT NULL,
  folder_id INTEGER,
  folder_name TEXT,
  event_type TEXT NOT NULL,
  status TEXT NOT NULL,
  track_artist TEXT,
  track_name TEXT,
  track_confidence REAL,
  message TEXT,
  details TEXT,
  created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_logs_sync ON sync_logs(sync_id);
CREATE INDEX IF NOT EXISTS idx_sync_logs_status ON sync_logs(status);
CREATE INDEX IF NOT EXISTS idx_sync_logs_created ON sync_logs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_sync_logs_destination ON sync_logs(destination);
`
