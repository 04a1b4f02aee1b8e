package report

import (
	"github.com/franz/crate-sync/internal/platform"
	"github.com/franz/crate-sync/internal/store"
)

// StoreSink mirrors events into the sync_logs table
type StoreSink struct {
	Store *store.Store
}

// RecordEvent implements EventSink
func (s *StoreSink) RecordEvent(e *Event) error {
	if e.SyncID == "" {
		return nil
	}

	var details map[string]any
	if len(e.Extra) > 0 || e.Error != "" || e.PlaylistName != "" {
		details = make(map[string]any, len(e.Extra)+2)
		for k, v := range e.Extra {
			details[k] = v
		}
		if e.Error != "" {
			details["error"] = e.Error
		}
		if e.PlaylistName != "" {
			details["playlist_name"] = e.PlaylistName
		}
	}

	return s.Store.LogSyncEvent(&store.SyncLog{
		SyncID:          e.SyncID,
		Destination:     platform.Destination(e.Destination),
		FolderID:        e.FolderID,
		FolderName:      e.FolderName,
		EventType:       string(e.Event),
		Status:          string(e.Status),
		TrackArtist:     e.TrackArtist,
		TrackName:       e.TrackName,
		TrackConfidence: e.Confidence,
		Message:         e.Message,
		Details:         details,
		CreatedAt:       e.Timestamp,
	})
}
