package reconcile

import (
	"time"

	"github.com/franz/crate-sync/internal/platform"
)

// OperationType is the kind of change a sync makes
type OperationType string

const (
	OpCreatePlaylist OperationType = "CREATE_PLAYLIST"
	OpAddTrack       OperationType = "ADD_TRACK"
	OpRemoveTrack    OperationType = "REMOVE_TRACK"
	OpDeletePlaylist OperationType = "DELETE_PLAYLIST"
)

// Operation is one planned or applied change
type Operation struct {
	Type         OperationType
	FolderName   string
	PlaylistName string
	TrackID      string
	TrackTitle   string
	TrackArtist  string
	Confidence   float64
	Flagged      bool
}

// Result summarizes a sync run
type Result struct {
	SyncID      string
	Destination platform.Destination
	DryRun      bool
	Operations  []Operation

	PlaylistsCreated int
	PlaylistsDeleted int
	TracksAdded      int
	TracksRemoved    int
	TracksMissing    int
	TracksFlagged    int

	Errors   []error
	Duration time.Duration
}

func (r *Result) add(op Operation) {
	r.Operations = append(r.Operations, op)
}

// Counts returns the counters keyed by name, for event logs and output
func (r *Result) Counts() map[string]int {
	return map[string]int{
		"playlists_created": r.PlaylistsCreated,
		"playlists_deleted": r.PlaylistsDeleted,
		"tracks_added":      r.TracksAdded,
		"tracks_removed":    r.TracksRemoved,
		"tracks_missing":    r.TracksMissing,
		"tracks_flagged":    r.TracksFlagged,
		"errors":            len(r.Errors),
	}
}

// OperationCounts tallies operations by type
func (r *Result) OperationCounts() map[OperationType]int {
	counts := make(map[OperationType]int)
	for _, op := range r.Operations {
		counts[op.Type]++
	}
	return counts
}

// FlaggedOperations returns the added tracks that need review
func (r *Result) FlaggedOperations() []Operation {
	var flagged []Operation
	for _, op := range r.Operations {
		if op.Type == OpAddTrack && op.Flagged {
			flagged = append(flagged, op)
		}
	}
	return flagged
}
