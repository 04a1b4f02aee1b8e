package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/franz/crate-sync/internal/util"
)

// EventType represents the type of event
type EventType string

const (
	EventSyncStart       EventType = "sync_start"
	EventSyncComplete    EventType = "sync_complete"
	EventFolderStart     EventType = "folder_start"
	EventFolderComplete  EventType = "folder_complete"
	EventTrackMatched    EventType = "track_matched"
	EventTrackFlagged    EventType = "track_flagged"
	EventTrackMissing    EventType = "track_missing"
	EventPlaylistCreated EventType = "playlist_created"
	EventPlaylistUpdated EventType = "playlist_updated"
	EventPlaylistDeleted EventType = "playlist_deleted"
	EventAPIError        EventType = "api_error"
	EventRateLimit       EventType = "rate_limit"
	EventException       EventType = "exception"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// ParseLevel validates a level name
func ParseLevel(s string) (EventLevel, error) {
	l := EventLevel(s)
	if _, ok := levelPriority[l]; !ok {
		return "", fmt.Errorf("unknown event level %q", s)
	}
	return l, nil
}

// Status is the outcome recorded with an event in the sync log
type Status string

const (
	StatusInfo    Status = "info"
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Scope identifies the sync run and folder an event belongs to
type Scope struct {
	SyncID      string
	Destination string
	FolderID    int
	FolderName  string
}

// Folder narrows a run scope to one folder
func (s Scope) Folder(id int, name string) Scope {
	s.FolderID = id
	s.FolderName = name
	return s
}

// Event represents a single event of a sync run
type Event struct {
	Timestamp    time.Time         `json:"ts"`
	Level        EventLevel        `json:"level"`
	Event        EventType         `json:"event"`
	Status       Status            `json:"status"`
	SyncID       string            `json:"sync_id,omitempty"`
	Destination  string            `json:"destination,omitempty"`
	FolderID     int               `json:"folder_id,omitempty"`
	FolderName   string            `json:"folder_name,omitempty"`
	PlaylistName string            `json:"playlist_name,omitempty"`
	TrackArtist  string            `json:"track_artist,omitempty"`
	TrackName    string            `json:"track_name,omitempty"`
	Confidence   float64           `json:"confidence,omitempty"`
	Message      string            `json:"message,omitempty"`
	Error        string            `json:"error,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// EventSink receives every event regardless of the file's minimum level
type EventSink interface {
	RecordEvent(e *Event) error
}

// EventLogger writes events to a JSONL file and mirrors them to an optional sink
type EventLogger struct {
	file     afero.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
	sink     EventSink
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	return NewEventLoggerFs(afero.NewOsFs(), outputDir, minLevel)
}

// NewEventLoggerFs creates an event logger on the given filesystem
func NewEventLoggerFs(fs afero.Fs, outputDir string, minLevel EventLevel) (*EventLogger, error) {
	// Create output directory if it doesn't exist
	if err := fs.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	// Generate filename with timestamp
	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	// Append so two runs in the same second share a file
	file, err := fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// NewSinkLogger creates a logger that only forwards events to sink
func NewSinkLogger(sink EventSink) *EventLogger {
	return &EventLogger{sink: sink, minLevel: LevelDebug}
}

// SetSink mirrors every subsequent event to sink
func (l *EventLogger) SetSink(sink EventSink) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink = sink
}

// Log writes an event to the JSONL file and the sink
func (l *EventLogger) Log(event *Event) error {
	if l == nil {
		return nil // Silently ignore if logger not initialized
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if l.sink != nil {
		if err := l.sink.RecordEvent(event); err != nil {
			util.DebugLog("Failed to record %s event: %v", event.Event, err)
		}
	}

	// Filter by minimum level
	if l.encoder == nil || levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogSyncStart logs the beginning of a sync run
func (l *EventLogger) LogSyncStart(s Scope, dryRun bool) error {
	return l.Log(&Event{
		Level:       LevelInfo,
		Event:       EventSyncStart,
		Status:      StatusInfo,
		SyncID:      s.SyncID,
		Destination: s.Destination,
		Message:     fmt.Sprintf("Sync to %s started", s.Destination),
		Extra: map[string]string{
			"dry_run": fmt.Sprintf("%t", dryRun),
		},
	})
}

// LogSyncComplete logs the end of a sync run with its counters
func (l *EventLogger) LogSyncComplete(s Scope, counts map[string]int, duration time.Duration) error {
	extra := make(map[string]string, len(counts)+1)
	for k, v := range counts {
		extra[k] = fmt.Sprintf("%d", v)
	}
	extra["duration_ms"] = fmt.Sprintf("%d", duration.Milliseconds())

	return l.Log(&Event{
		Level:       LevelInfo,
		Event:       EventSyncComplete,
		Status:      StatusSuccess,
		SyncID:      s.SyncID,
		Destination: s.Destination,
		Message:     fmt.Sprintf("Sync to %s completed", s.Destination),
		Extra:       extra,
	})
}

// LogFolderStart logs the start of one folder
func (l *EventLogger) LogFolderStart(s Scope, releases int) error {
	return l.Log(s.event(LevelInfo, EventFolderStart, StatusInfo, &Event{
		Message: fmt.Sprintf("Syncing folder %s", s.FolderName),
		Extra: map[string]string{
			"releases": fmt.Sprintf("%d", releases),
		},
	}))
}

// LogFolderComplete logs the outcome of one folder
func (l *EventLogger) LogFolderComplete(s Scope, added, removed, missing, flagged int) error {
	return l.Log(s.event(LevelInfo, EventFolderComplete, StatusSuccess, &Event{
		Message: fmt.Sprintf("Folder %s synced", s.FolderName),
		Extra: map[string]string{
			"added":   fmt.Sprintf("%d", added),
			"removed": fmt.Sprintf("%d", removed),
			"missing": fmt.Sprintf("%d", missing),
			"flagged": fmt.Sprintf("%d", flagged),
		},
	}))
}

// LogTrackMatched logs an accepted match
func (l *EventLogger) LogTrackMatched(s Scope, artist, title string, confidence float64, cached bool) error {
	return l.Log(s.event(LevelDebug, EventTrackMatched, StatusSuccess, &Event{
		TrackArtist: artist,
		TrackName:   title,
		Confidence:  confidence,
		Extra: map[string]string{
			"cached": fmt.Sprintf("%t", cached),
		},
	}))
}

// LogTrackFlagged logs an accepted match that needs review
func (l *EventLogger) LogTrackFlagged(s Scope, artist, title string, confidence float64) error {
	return l.Log(s.event(LevelWarning, EventTrackFlagged, StatusWarning, &Event{
		TrackArtist: artist,
		TrackName:   title,
		Confidence:  confidence,
		Message:     "Low confidence match flagged for review",
	}))
}

// LogTrackMissing logs a track with no acceptable match
func (l *EventLogger) LogTrackMissing(s Scope, artist, title string, err error) error {
	e := &Event{
		TrackArtist: artist,
		TrackName:   title,
		Message:     "No acceptable match found",
	}
	if err != nil {
		e.Error = err.Error()
	}
	return l.Log(s.event(LevelWarning, EventTrackMissing, StatusWarning, e))
}

// LogPlaylist logs a playlist create/update/delete
func (l *EventLogger) LogPlaylist(s Scope, event EventType, playlistName string, dryRun bool) error {
	return l.Log(s.event(LevelInfo, event, StatusSuccess, &Event{
		PlaylistName: playlistName,
		Extra: map[string]string{
			"dry_run": fmt.Sprintf("%t", dryRun),
		},
	}))
}

// LogError logs a failed platform or catalog call
func (l *EventLogger) LogError(s Scope, event EventType, message string, err error) error {
	e := &Event{Message: message}
	if err != nil {
		e.Error = err.Error()
	}
	return l.Log(s.event(LevelError, event, StatusError, e))
}

func (s Scope) event(level EventLevel, typ EventType, status Status, e *Event) *Event {
	e.Level = level
	e.Event = typ
	e.Status = status
	e.SyncID = s.SyncID
	e.Destination = s.Destination
	e.FolderID = s.FolderID
	e.FolderName = s.FolderName
	return e
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
