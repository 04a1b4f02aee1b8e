// Package catalog defines the record-collection side of a sync: folders,
// releases and their tracklists.
package catalog

import "context"

// The wantlist is synced as a pseudo-folder
const (
	WantlistFolderID   = -1
	WantlistFolderName = "Wantlist"
)

// Folder is a collection folder
type Folder struct {
	ID    int
	Name  string
	Count int
}

// Release is a single collection item. It belongs to exactly one folder.
type Release struct {
	ID            int
	Title         string
	Artist        string
	Year          int
	FolderID      int
	FolderName    string
	Label         string
	CatalogNumber string
}

// Track is one tracklist entry of a release
type Track struct {
	Position     string // e.g. "A1"
	Title        string
	Artist       string
	Duration     string
	ReleaseID    int
	ReleaseTitle string
}

// Source lists the user's collection
type Source interface {
	ListFolders(ctx context.Context) ([]Folder, error)
	ListReleases(ctx context.Context, folderID int) ([]Release, error)
	ListWantlist(ctx context.Context) ([]Release, error)
	ListTracks(ctx context.Context, release Release) ([]Track, error)
}

// IsWantlist reports whether folderID is the wantlist pseudo-folder
func IsWantlist(folderID int) bool {
	return folderID == WantlistFolderID
}
