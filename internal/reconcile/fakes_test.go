package reconcile

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/franz/crate-sync/internal/catalog"
	"github.com/franz/crate-sync/internal/match"
	"github.com/franz/crate-sync/internal/platform"
	"github.com/franz/crate-sync/internal/store"
)

// fakeCatalog serves fixed folders, releases and tracklists
type fakeCatalog struct {
	folders   []catalog.Folder
	releases  map[int][]catalog.Release
	wantlist  []catalog.Release
	tracks    map[int][]catalog.Track
	trackErrs map[int]error
}

func (c *fakeCatalog) ListFolders(ctx context.Context) ([]catalog.Folder, error) {
	return c.folders, nil
}

func (c *fakeCatalog) ListReleases(ctx context.Context, folderID int) ([]catalog.Release, error) {
	return c.releases[folderID], nil
}

func (c *fakeCatalog) ListWantlist(ctx context.Context) ([]catalog.Release, error) {
	return c.wantlist, nil
}

func (c *fakeCatalog) ListTracks(ctx context.Context, release catalog.Release) ([]catalog.Track, error) {
	if err := c.trackErrs[release.ID]; err != nil {
		return nil, err
	}
	return c.tracks[release.ID], nil
}

// fakeClient is an in-memory playlist platform. Scripted responses are
// consumed per call; the last one repeats.
type fakeClient struct {
	mu        sync.Mutex
	results   map[string][]platform.Candidate
	scripted  map[string][][]platform.Candidate
	searchErr map[string]error
	playlists map[string]*platform.Playlist
	tracks    map[string][]string
	nextID    int

	searches  int
	mutations map[string]int

	addErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		results:   make(map[string][]platform.Candidate),
		scripted:  make(map[string][][]platform.Candidate),
		searchErr: make(map[string]error),
		playlists: make(map[string]*platform.Playlist),
		tracks:    make(map[string][]string),
		mutations: make(map[string]int),
	}
}

func (c *fakeClient) SearchTracks(ctx context.Context, query string, limit int) ([]platform.Candidate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searches++
	if err := c.searchErr[query]; err != nil {
		return nil, err
	}
	if seq := c.scripted[query]; len(seq) > 0 {
		next := seq[0]
		if len(seq) > 1 {
			c.scripted[query] = seq[1:]
		}
		return next, nil
	}
	return c.results[query], nil
}

func (c *fakeClient) FindPlaylistByName(ctx context.Context, name string) (*platform.Playlist, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.playlists {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, nil
}

func (c *fakeClient) CreatePlaylist(ctx context.Context, name, description string, public bool) (*platform.Playlist, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mutations["create"]++
	c.nextID++
	p := &platform.Playlist{ID: fmt.Sprintf("pl%d", c.nextID), Name: name}
	c.playlists[p.ID] = p
	return p, nil
}

func (c *fakeClient) DeletePlaylist(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mutations["delete"]++
	delete(c.playlists, id)
	delete(c.tracks, id)
	return nil
}

func (c *fakeClient) GetPlaylistTracks(ctx context.Context, id string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.tracks[id]...), nil
}

func (c *fakeClient) AddTracks(ctx context.Context, id string, trackIDs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mutations["add"]++
	if c.addErr != nil {
		return c.addErr
	}
	c.tracks[id] = append(c.tracks[id], trackIDs...)
	return nil
}

func (c *fakeClient) RemoveTracks(ctx context.Context, id string, trackIDs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mutations["remove"]++
	drop := make(map[string]bool, len(trackIDs))
	for _, t := range trackIDs {
		drop[t] = true
	}
	kept := c.tracks[id][:0]
	for _, t := range c.tracks[id] {
		if !drop[t] {
			kept = append(kept, t)
		}
	}
	c.tracks[id] = kept
	return nil
}

// seedPlaylist creates a playlist outside the engine
func (c *fakeClient) seedPlaylist(name string, tracks ...string) *platform.Playlist {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	p := &platform.Playlist{ID: fmt.Sprintf("pl%d", c.nextID), Name: name}
	c.playlists[p.ID] = p
	c.tracks[p.ID] = tracks
	return p
}

func (c *fakeClient) playlistTracks(name string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range c.playlists {
		if p.Name == name {
			return append([]string(nil), c.tracks[id]...)
		}
	}
	return nil
}

func (c *fakeClient) totalMutations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.mutations {
		total += n
	}
	return total
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestEngine(db *store.Store, cat catalog.Source, client *fakeClient, dryRun bool) *Engine {
	resolver := match.New(&match.Config{
		Store:       db,
		Searcher:    client,
		Destination: platform.Spotify,
	})
	return New(&Config{
		Catalog:     cat,
		Store:       db,
		Destination: platform.Spotify,
		Client:      client,
		Resolver:    resolver,
		Concurrency: 2,
		DryRun:      dryRun,
	})
}
