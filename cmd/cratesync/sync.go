package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/franz/crate-sync/internal/catalog"
	"github.com/franz/crate-sync/internal/config"
	"github.com/franz/crate-sync/internal/discogs"
	"github.com/franz/crate-sync/internal/match"
	"github.com/franz/crate-sync/internal/platform"
	"github.com/franz/crate-sync/internal/reconcile"
	"github.com/franz/crate-sync/internal/report"
	"github.com/franz/crate-sync/internal/store"
	"github.com/franz/crate-sync/internal/util"
)

var syncCmd = &cobra.Command{
	Use:   "sync <spotify|soundcloud|all>",
	Short: "Sync Discogs folders to playlists",
	Long: `Sync every Discogs collection folder (and the wantlist) to one playlist each.

For every folder the current playlist is read, tracks are resolved through
the match cache or a fresh search, and only the difference is applied.
Playlists whose folder no longer exists are deleted.

Matches below high_confidence are added but flagged for review
(see 'cratesync review'). Tracks with no acceptable match are recorded
as missing (see 'cratesync report missing').

A Markdown summary is written to <data-dir>/reports after each run.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"spotify", "soundcloud", "all"},
	RunE:      runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringSlice("folders", nil, "only sync these folder names (comma separated)")
	syncCmd.Flags().Bool("exclude-wantlist", false, "do not sync the wantlist")
	syncCmd.Flags().Bool("dry-run", false, "compute changes without touching playlists")
	syncCmd.Flags().Float64("min-confidence", 0, "override the minimum match confidence (0-1)")
}

func runSync(cmd *cobra.Command, args []string) error {
	dests, err := destinationArgs(args[0])
	if err != nil {
		return err
	}

	s, err := loadSettings()
	if err != nil {
		return err
	}
	if err := s.RequireDiscogs(); err != nil {
		return err
	}

	folders, _ := cmd.Flags().GetStringSlice("folders")
	excludeWantlist, _ := cmd.Flags().GetBool("exclude-wantlist")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if cmd.Flags().Changed("min-confidence") {
		minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")
		if minConfidence < 0 || minConfidence > 1 {
			return fmt.Errorf("%w: --min-confidence must be between 0 and 1", util.ErrInvalidConfig)
		}
		s.MinConfidence = minConfidence
	}

	ctx, cancel := signalContext()
	defer cancel()

	db, err := openStore(s)
	if err != nil {
		return err
	}
	defer db.Close()

	source, err := newCatalog(s, db)
	if err != nil {
		return err
	}

	opts := reconcile.Options{
		IncludeWantlist: !excludeWantlist,
		FolderNames:     folders,
	}

	var failed []error
	for _, dest := range dests {
		result, err := syncDestination(ctx, s, db, source, dest, opts, dryRun)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			util.ErrorLog("Sync to %s failed: %v", dest, err)
			failed = append(failed, fmt.Errorf("%s: %w", dest, err))
			continue
		}
		printSyncResult(result)
	}

	return errors.Join(failed...)
}

// newCatalog returns the Discogs client behind the tracklist cache
func newCatalog(s *config.Settings, db *store.Store) (catalog.Source, error) {
	client := discogs.NewClient(&discogs.Config{Token: s.DiscogsUserToken})
	cache := discogs.NewCache(db.DB(), client, discogs.DefaultTracklistTTL)
	if err := cache.EnsureSchema(); err != nil {
		return nil, err
	}
	return cache, nil
}

func syncDestination(ctx context.Context, s *config.Settings, db *store.Store, source catalog.Source,
	dest platform.Destination, opts reconcile.Options, dryRun bool) (*reconcile.Result, error) {

	client, err := platformClient(ctx, s, dest)
	if err != nil {
		return nil, err
	}

	logger, err := report.NewEventLogger(s.EventsDir(), s.EventLevel())
	if err != nil {
		return nil, err
	}
	defer logger.Close()
	logger.SetSink(&report.StoreSink{Store: db})
	util.DebugLog("Event log: %s", logger.Path())

	weights := s.Weights()
	resolver := match.New(&match.Config{
		Store:         db,
		Searcher:      client,
		Destination:   dest,
		Weights:       &weights,
		MinConfidence: s.MinConfidence,
		MaxQueries:    s.MaxSearchQueries,
		MaxAge:        s.CacheMaxAge(),
	})

	engine := reconcile.New(&reconcile.Config{
		Catalog:        source,
		Store:          db,
		Destination:    dest,
		Client:         client,
		Resolver:       resolver,
		PlaylistPrefix: s.PlaylistPrefix,
		HighConfidence: s.HighConfidence,
		Concurrency:    s.MaxWorkers,
		DryRun:         dryRun,
		Logger:         logger,
		ShowProgress:   true,
	})

	result, err := engine.Sync(ctx, opts)
	if err != nil {
		return nil, err
	}

	if err := writeSummary(s, db, result.SyncID, logger.Path()); err != nil {
		util.WarnLog("Failed to write summary report: %v", err)
	}
	return result, nil
}

// writeSummary renders the run's sync log into reports/summary_<sync-id>.md
func writeSummary(s *config.Settings, db *store.Store, syncID, eventLogPath string) error {
	summary, err := report.GenerateSummaryReport(db, syncID)
	if err != nil {
		return err
	}
	if summary == nil {
		return nil
	}
	summary.DatabasePath = s.DBPath()
	summary.EventLogPath = eventLogPath

	path := filepath.Join(s.ReportsDir(), fmt.Sprintf("summary_%s.md", syncID))
	if err := report.WriteMarkdownReport(afero.NewOsFs(), summary, path); err != nil {
		return err
	}
	util.InfoLog("Report: %s", path)
	return nil
}

func printSyncResult(r *reconcile.Result) {
	util.InfoLog("")
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	util.InfoLog("=== %s%s ===", r.Destination, mode)
	util.InfoLog("Sync ID:           %s", r.SyncID)
	util.InfoLog("Duration:          %s", r.Duration.Round(time.Second))
	util.InfoLog("Playlists created: %s", humanize.Comma(int64(r.PlaylistsCreated)))
	util.InfoLog("Playlists deleted: %s", humanize.Comma(int64(r.PlaylistsDeleted)))
	util.InfoLog("Tracks added:      %s", humanize.Comma(int64(r.TracksAdded)))
	util.InfoLog("Tracks removed:    %s", humanize.Comma(int64(r.TracksRemoved)))
	util.InfoLog("Tracks missing:    %s", humanize.Comma(int64(r.TracksMissing)))
	util.InfoLog("Tracks flagged:    %s", humanize.Comma(int64(r.TracksFlagged)))

	if r.DryRun {
		counts := r.OperationCounts()
		types := make([]string, 0, len(counts))
		for t := range counts {
			types = append(types, string(t))
		}
		sort.Strings(types)
		for _, t := range types {
			util.InfoLog("  %-16s %d", t, counts[reconcile.OperationType(t)])
		}
	}

	if r.DryRun && util.IsVerbose() {
		for _, op := range r.Operations {
			switch op.Type {
			case reconcile.OpAddTrack:
				util.DebugLog("  + [%s] %s - %s (%.0f%%)", op.PlaylistName, op.TrackArtist, op.TrackTitle, op.Confidence*100)
			case reconcile.OpRemoveTrack:
				util.DebugLog("  - [%s] %s", op.PlaylistName, op.TrackID)
			default:
				util.DebugLog("  %s %s", op.Type, op.PlaylistName)
			}
		}
	}

	if flagged := r.FlaggedOperations(); len(flagged) > 0 {
		util.WarnLog("%d tracks need review, run 'cratesync review list %s'", len(flagged), r.Destination)
	}

	for _, err := range r.Errors {
		util.ErrorLog("  %v", err)
	}
}
