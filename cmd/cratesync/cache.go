package main

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/franz/crate-sync/internal/discogs"
	"github.com/franz/crate-sync/internal/util"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the match and tracklist caches",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear cached matches so the next sync searches again",
	Long: `Clear cached matches so the next sync searches again.

Approved and rejected matches are kept unless --all is given.
Missing-track records for the same destination are cleared too.`,
	Args: cobra.NoArgs,
	RunE: runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)

	cacheClearCmd.Flags().String("destination", "", "only clear one destination (spotify or soundcloud)")
	cacheClearCmd.Flags().Bool("all", false, "also clear reviewed matches")
	cacheClearCmd.Flags().Bool("tracklists", false, "also clear cached Discogs tracklists")
	cacheClearCmd.Flags().Bool("expired", false, "only clear Discogs tracklists past their TTL, keep matches")
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	db, err := openStore(s)
	if err != nil {
		return err
	}
	defer db.Close()

	counts, err := db.CountMatchedTracks("")
	if err != nil {
		return err
	}
	util.InfoLog("Matches:    %s cached (%s found, %s not found)",
		humanize.Comma(int64(counts.Total)), humanize.Comma(int64(counts.Matched)), humanize.Comma(int64(counts.NotFound)))

	cache := discogs.NewCache(db.DB(), nil, discogs.DefaultTracklistTTL)
	if err := cache.EnsureSchema(); err != nil {
		return err
	}
	entries, hits, err := cache.GetStats()
	if err != nil {
		return err
	}
	util.InfoLog("Tracklists: %s cached, %s hits", humanize.Comma(int64(entries)), humanize.Comma(hits))
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("destination")
	dest, err := destinationFlag(name)
	if err != nil {
		return err
	}
	all, _ := cmd.Flags().GetBool("all")
	tracklists, _ := cmd.Flags().GetBool("tracklists")
	expired, _ := cmd.Flags().GetBool("expired")

	s, err := loadSettings()
	if err != nil {
		return err
	}
	db, err := openStore(s)
	if err != nil {
		return err
	}
	defer db.Close()

	if expired {
		cache := discogs.NewCache(db.DB(), nil, discogs.DefaultTracklistTTL)
		if err := cache.EnsureSchema(); err != nil {
			return err
		}
		n, err := cache.ClearOldEntries(discogs.DefaultTracklistTTL)
		if err != nil {
			return err
		}
		util.SuccessLog("Cleared %d expired tracklists", n)
		return nil
	}

	matches, err := db.ClearMatchedTracks(dest, !all)
	if err != nil {
		return err
	}
	missing, err := db.ClearMissingTracks(dest)
	if err != nil {
		return err
	}
	util.SuccessLog("Cleared %d cached matches and %d missing tracks", matches, missing)

	if tracklists {
		cache := discogs.NewCache(db.DB(), nil, discogs.DefaultTracklistTTL)
		if err := cache.EnsureSchema(); err != nil {
			return err
		}
		n, err := cache.ClearCache()
		if err != nil {
			return err
		}
		util.SuccessLog("Cleared %d cached tracklists", n)
	}

	return nil
}
