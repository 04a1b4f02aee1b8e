// Package reconcile syncs catalog folders to platform playlists.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/sourcegraph/conc/pool"

	"github.com/franz/crate-sync/internal/catalog"
	"github.com/franz/crate-sync/internal/match"
	"github.com/franz/crate-sync/internal/platform"
	"github.com/franz/crate-sync/internal/report"
	"github.com/franz/crate-sync/internal/store"
	"github.com/franz/crate-sync/internal/util"
)

const (
	DefaultPlaylistPrefix = "Discogs - "
	DefaultHighConfidence = 0.50
	DefaultConcurrency    = 4
)

// TrackResolver resolves one catalog track to a platform track
type TrackResolver interface {
	Resolve(ctx context.Context, track catalog.Track, release catalog.Release, folderID int) (*match.Result, error)
}

// Engine reconciles catalog folders against playlists on one destination
type Engine struct {
	catalog        catalog.Source
	store          *store.Store
	dest           platform.Destination
	client         platform.Client
	resolver       TrackResolver
	playlistPrefix string
	highConfidence float64
	concurrency    int
	dryRun         bool
	logger         *report.EventLogger
	showProgress   bool
}

// Config holds engine configuration
type Config struct {
	Catalog        catalog.Source
	Store          *store.Store
	Destination    platform.Destination
	Client         platform.Client
	Resolver       TrackResolver
	PlaylistPrefix string  // "" = "Discogs - "
	HighConfidence float64 // accepted matches below this are flagged (0 = 0.50)
	Concurrency    int     // releases resolved in parallel (0 = 4)
	DryRun         bool
	Logger         *report.EventLogger
	ShowProgress   bool
}

// New creates a new Engine
func New(cfg *Config) *Engine {
	if cfg.PlaylistPrefix == "" {
		cfg.PlaylistPrefix = DefaultPlaylistPrefix
	}
	if cfg.HighConfidence <= 0 {
		cfg.HighConfidence = DefaultHighConfidence
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	return &Engine{
		catalog:        cfg.Catalog,
		store:          cfg.Store,
		dest:           cfg.Destination,
		client:         cfg.Client,
		resolver:       cfg.Resolver,
		playlistPrefix: cfg.PlaylistPrefix,
		highConfidence: cfg.HighConfidence,
		concurrency:    cfg.Concurrency,
		dryRun:         cfg.DryRun,
		logger:         cfg.Logger,
		showProgress:   cfg.ShowProgress,
	}
}

// Options selects what a sync covers
type Options struct {
	IncludeWantlist bool
	FolderNames     []string // empty = every folder
}

// Sync reconciles every selected folder, then deletes playlists whose folder
// is gone. Per-folder platform failures are collected in Result.Errors; store
// failures abort the run.
func (e *Engine) Sync(ctx context.Context, opts Options) (*Result, error) {
	started := time.Now()
	result := &Result{
		SyncID:      uuid.NewString(),
		Destination: e.dest,
		DryRun:      e.dryRun,
		Operations:  make([]Operation, 0),
	}
	scope := report.Scope{SyncID: result.SyncID, Destination: string(e.dest)}

	util.InfoLog("Starting sync to %s (sync %s)", e.dest, result.SyncID)
	if e.dryRun {
		util.InfoLog("DRY-RUN mode: no playlists will be changed")
	}
	e.logger.LogSyncStart(scope, e.dryRun)

	all, err := e.catalog.ListFolders(ctx)
	if err != nil {
		e.logger.LogError(scope, report.EventAPIError, "failed to list folders", err)
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	folders := filterFolders(all, opts.FolderNames)
	if opts.IncludeWantlist {
		folders = append(folders, catalog.Folder{ID: catalog.WantlistFolderID, Name: catalog.WantlistFolderName})
	}
	util.InfoLog("Processing %d folders", len(folders))

	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.syncFolder(ctx, scope.Folder(folder.ID, folder.Name), folder, result); err != nil {
			e.logger.LogError(scope, report.EventException, "sync aborted", err)
			return nil, err
		}
	}

	if err := e.cleanup(ctx, scope, currentFolderIDs(all, opts), result); err != nil {
		e.logger.LogError(scope, report.EventException, "cleanup aborted", err)
		return nil, err
	}

	result.Duration = time.Since(started)
	e.logger.LogSyncComplete(scope, result.Counts(), result.Duration)

	util.SuccessLog("Sync to %s complete: %d added, %d removed, %d missing, %d flagged, %d playlists created, %d deleted",
		e.dest, result.TracksAdded, result.TracksRemoved, result.TracksMissing, result.TracksFlagged,
		result.PlaylistsCreated, result.PlaylistsDeleted)

	return result, nil
}

// filterFolders keeps folders whose name is listed; no names keeps all
func filterFolders(folders []catalog.Folder, names []string) []catalog.Folder {
	if len(names) == 0 {
		return append([]catalog.Folder(nil), folders...)
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	kept := make([]catalog.Folder, 0, len(names))
	for _, f := range folders {
		if wanted[f.Name] {
			kept = append(kept, f)
		}
	}
	return kept
}

// currentFolderIDs are the folders whose playlists survive cleanup. A folder
// filter never deletes the folders it skipped, and the wantlist counts as
// current unless it was excluded from an unfiltered run.
func currentFolderIDs(all []catalog.Folder, opts Options) map[int]bool {
	current := make(map[int]bool, len(all)+1)
	for _, f := range all {
		current[f.ID] = true
	}
	if opts.IncludeWantlist || len(opts.FolderNames) > 0 {
		current[catalog.WantlistFolderID] = true
	}
	return current
}

// trackMatch is one accepted match in resolution order
type trackMatch struct {
	track   catalog.Track
	result  *match.Result
	flagged bool
}

// releaseResult is what one pool task returns
type releaseResult struct {
	index   int
	matches []trackMatch
	missing int
	flagged int
	fatal   error
}

// syncFolder reconciles one folder into result. Only store errors are returned.
func (e *Engine) syncFolder(ctx context.Context, scope report.Scope, folder catalog.Folder, result *Result) error {
	util.InfoLog("Syncing folder: %s", folder.Name)

	var releases []catalog.Release
	var err error
	if catalog.IsWantlist(folder.ID) {
		releases, err = e.catalog.ListWantlist(ctx)
	} else {
		releases, err = e.catalog.ListReleases(ctx, folder.ID)
	}
	if err != nil {
		e.folderError(scope, result, "failed to list releases", err)
		return nil
	}
	if len(releases) == 0 {
		util.DebugLog("No releases in folder %s", folder.Name)
		return nil
	}
	e.logger.LogFolderStart(scope, len(releases))

	playlistName := e.playlistPrefix + folder.Name
	playlist, err := e.findPlaylist(ctx, folder.ID)
	if err != nil {
		if isStoreError(err) {
			return err
		}
		e.folderError(scope, result, "failed to find playlist", err)
		return nil
	}

	if playlist == nil {
		result.add(Operation{Type: OpCreatePlaylist, FolderName: folder.Name, PlaylistName: playlistName})
		if !e.dryRun {
			playlist, err = e.client.CreatePlaylist(ctx, playlistName, "Synced from Discogs folder: "+folder.Name, true)
			if err != nil {
				e.folderError(scope, result, "failed to create playlist", err)
				return nil
			}
			err = e.store.SaveFolderMapping(&store.FolderMapping{
				FolderID:     folder.ID,
				FolderName:   folder.Name,
				Destination:  e.dest,
				PlaylistID:   playlist.ID,
				PlaylistName: playlistName,
			})
			if err != nil {
				return err
			}
		}
		result.PlaylistsCreated++
		e.logger.LogPlaylist(scope, report.EventPlaylistCreated, playlistName, e.dryRun)
	}

	outcomes, err := e.resolveReleases(ctx, scope, folder, releases)
	if err != nil {
		return err
	}

	desired := make([]string, 0)
	desiredSet := make(map[string]bool)
	var missing, flagged int
	for _, o := range outcomes {
		missing += o.missing
		flagged += o.flagged
		for _, m := range o.matches {
			if !desiredSet[m.result.TrackID] {
				desiredSet[m.result.TrackID] = true
				desired = append(desired, m.result.TrackID)
			}
		}
	}
	result.TracksMissing += missing
	result.TracksFlagged += flagged

	added, removed := e.applyDiff(ctx, scope, folder, playlistName, playlist, desired, desiredSet, outcomes, result)

	releaseIDs := make([]int, 0, len(releases))
	for _, r := range releases {
		releaseIDs = append(releaseIDs, r.ID)
	}
	if err := e.store.UpdateFolderReleases(folder.ID, releaseIDs); err != nil {
		return err
	}

	e.logger.LogFolderComplete(scope, added, removed, missing, flagged)
	return nil
}

// findPlaylist returns the live playlist for a mapped folder, or nil when the
// folder is unmapped or its playlist is gone
func (e *Engine) findPlaylist(ctx context.Context, folderID int) (*platform.Playlist, error) {
	mapping, err := e.store.GetFolderMapping(folderID, e.dest)
	if err != nil {
		return nil, storeError{err}
	}
	if mapping == nil {
		return nil, nil
	}
	return e.client.FindPlaylistByName(ctx, mapping.PlaylistName)
}

// applyDiff brings the playlist to the desired set and returns how many
// tracks were added and removed
func (e *Engine) applyDiff(ctx context.Context, scope report.Scope, folder catalog.Folder, playlistName string,
	playlist *platform.Playlist, desired []string, desiredSet map[string]bool, outcomes []releaseResult, result *Result) (int, int) {

	// A playlist that only exists in a dry run has no tracks yet
	var current []string
	if playlist != nil {
		var err error
		current, err = e.client.GetPlaylistTracks(ctx, playlist.ID)
		if err != nil {
			e.folderError(scope, result, "failed to read playlist tracks", err)
			return 0, 0
		}
	}

	currentSet := make(map[string]bool, len(current))
	for _, id := range current {
		currentSet[id] = true
	}

	byID := make(map[string]trackMatch)
	for _, o := range outcomes {
		for _, m := range o.matches {
			if _, ok := byID[m.result.TrackID]; !ok {
				byID[m.result.TrackID] = m
			}
		}
	}

	toAdd := make([]string, 0)
	for _, id := range desired {
		if !currentSet[id] {
			toAdd = append(toAdd, id)
		}
	}
	toRemove := make([]string, 0)
	seen := make(map[string]bool, len(current))
	for _, id := range current {
		if !desiredSet[id] && !seen[id] {
			seen[id] = true
			toRemove = append(toRemove, id)
		}
	}

	for _, id := range toAdd {
		m := byID[id]
		result.add(Operation{
			Type:         OpAddTrack,
			FolderName:   folder.Name,
			PlaylistName: playlistName,
			TrackID:      id,
			TrackTitle:   m.track.Title,
			TrackArtist:  m.track.Artist,
			Confidence:   m.result.Confidence,
			Flagged:      m.flagged,
		})
	}
	for _, id := range toRemove {
		result.add(Operation{Type: OpRemoveTrack, FolderName: folder.Name, PlaylistName: playlistName, TrackID: id})
	}

	if e.dryRun {
		result.TracksAdded += len(toAdd)
		result.TracksRemoved += len(toRemove)
		return len(toAdd), len(toRemove)
	}

	var added, removed int
	if len(toAdd) > 0 {
		if err := e.client.AddTracks(ctx, playlist.ID, toAdd); err != nil {
			e.folderError(scope, result, "failed to add tracks", err)
		} else {
			added = len(toAdd)
		}
	}
	if len(toRemove) > 0 {
		if err := e.client.RemoveTracks(ctx, playlist.ID, toRemove); err != nil {
			e.folderError(scope, result, "failed to remove tracks", err)
		} else {
			removed = len(toRemove)
		}
	}
	if added > 0 || removed > 0 {
		e.logger.LogPlaylist(scope, report.EventPlaylistUpdated, playlistName, false)
	}

	result.TracksAdded += added
	result.TracksRemoved += removed
	return added, removed
}

// resolveReleases resolves every track of every release on a bounded pool.
// Results come back in release order.
func (e *Engine) resolveReleases(ctx context.Context, scope report.Scope, folder catalog.Folder, releases []catalog.Release) ([]releaseResult, error) {
	total := int64(len(releases))
	var processed atomic.Int64
	var matched atomic.Int64

	progressCtx, cancelProgress := context.WithCancel(ctx)
	defer cancelProgress()

	var bar *progressbar.ProgressBar
	if e.showProgress && util.Interactive() {
		bar = progressbar.NewOptions64(total,
			progressbar.OptionSetDescription(folder.Name),
			progressbar.OptionSetWidth(util.ProgressWidth()),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("releases"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
		defer bar.Finish()
	}

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-progressCtx.Done():
				return
			case <-ticker.C:
				p := processed.Load()
				if bar != nil {
					bar.Describe(fmt.Sprintf("%s | %d matched", folder.Name, matched.Load()))
					bar.Set64(p)
				} else if p > 0 {
					util.InfoLog("Resolving %s: %d/%d releases (%.1f%%), %d tracks matched",
						folder.Name, p, total, float64(p)/float64(total)*100, matched.Load())
				}
			}
		}
	}()

	p := pool.NewWithResults[releaseResult]().WithMaxGoroutines(e.concurrency)
	for i, rel := range releases {
		p.Go(func() releaseResult {
			defer processed.Add(1)
			r := e.resolveRelease(ctx, scope, folder, rel)
			r.index = i
			matched.Add(int64(len(r.matches)))
			return r
		})
	}
	outcomes := p.Wait()
	cancelProgress()

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].index < outcomes[j].index })
	for _, o := range outcomes {
		if o.fatal != nil {
			return nil, o.fatal
		}
	}
	return outcomes, nil
}

// resolveRelease resolves the tracks of one release. Catalog and search
// failures count as missing; anything else is fatal.
func (e *Engine) resolveRelease(ctx context.Context, scope report.Scope, folder catalog.Folder, rel catalog.Release) releaseResult {
	var out releaseResult

	tracks, err := e.catalog.ListTracks(ctx, rel)
	if err != nil {
		if ctx.Err() != nil {
			out.fatal = ctx.Err()
			return out
		}
		util.WarnLog("Failed to get tracks for %s - %s: %v", rel.Artist, rel.Title, err)
		e.logger.LogTrackMissing(scope, rel.Artist, rel.Title, err)
		out.missing++
		return out
	}

	for _, track := range tracks {
		res, err := e.resolver.Resolve(ctx, track, rel, folder.ID)
		switch {
		case errors.Is(err, match.ErrSearch):
			util.WarnLog("Search failed for %s - %s: %v", track.Artist, track.Title, err)
			e.logger.LogTrackMissing(scope, track.Artist, track.Title, err)
			out.missing++
		case err != nil:
			out.fatal = err
			return out
		case res == nil:
			e.logger.LogTrackMissing(scope, track.Artist, track.Title, nil)
			out.missing++
		default:
			// Approved matches have left the review queue
			flagged := !res.Approved && res.Confidence < e.highConfidence
			if flagged {
				out.flagged++
				e.logger.LogTrackFlagged(scope, track.Artist, track.Title, res.Confidence)
			} else {
				e.logger.LogTrackMatched(scope, track.Artist, track.Title, res.Confidence, res.FromCache)
			}
			out.matches = append(out.matches, trackMatch{track: track, result: res, flagged: flagged})
		}
	}
	return out
}

// cleanup deletes playlists mapped to folders that no longer exist
func (e *Engine) cleanup(ctx context.Context, scope report.Scope, current map[int]bool, result *Result) error {
	mappings, err := e.store.GetAllFolderMappings(e.dest)
	if err != nil {
		return err
	}

	for _, m := range mappings {
		if current[m.FolderID] {
			continue
		}

		folderScope := scope.Folder(m.FolderID, m.FolderName)
		result.add(Operation{Type: OpDeletePlaylist, FolderName: m.FolderName, PlaylistName: m.PlaylistName})

		if !e.dryRun {
			playlist, err := e.client.FindPlaylistByName(ctx, m.PlaylistName)
			if err != nil {
				e.folderError(folderScope, result, "failed to find playlist for deletion", err)
				continue
			}
			if playlist != nil {
				if err := e.client.DeletePlaylist(ctx, playlist.ID); err != nil {
					e.folderError(folderScope, result, "failed to delete playlist", err)
					continue
				}
			}
			if err := e.store.DeleteFolderMapping(m.FolderID, e.dest); err != nil {
				return err
			}
		}

		result.PlaylistsDeleted++
		util.InfoLog("Deleted playlist %s (folder %s is gone)", m.PlaylistName, m.FolderName)
		e.logger.LogPlaylist(folderScope, report.EventPlaylistDeleted, m.PlaylistName, e.dryRun)
	}
	return nil
}

// folderError records a non-fatal platform or catalog failure
func (e *Engine) folderError(scope report.Scope, result *Result, msg string, err error) {
	util.ErrorLog("%s: %s: %v", scope.FolderName, msg, err)
	event := report.EventAPIError
	if errors.Is(err, util.ErrRateLimited) {
		event = report.EventRateLimit
	}
	e.logger.LogError(scope, event, msg, err)
	result.Errors = append(result.Errors, fmt.Errorf("%s: %s: %w", scope.FolderName, msg, err))
}

// storeError marks an error from the state store inside a mixed call
type storeError struct{ err error }

func (e storeError) Error() string { return e.err.Error() }
func (e storeError) Unwrap() error { return e.err }

func isStoreError(err error) bool {
	var se storeError
	return errors.As(err, &se)
}
