package main

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/franz/crate-sync/internal/platform"
	"github.com/franz/crate-sync/internal/util"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show synced folders and the match cache",
	Long: `Show the folder to playlist mappings and match cache counts
for every destination, along with the most recent sync runs.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().String("destination", "", "only show one destination (spotify or soundcloud)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("destination")
	only, err := destinationFlag(name)
	if err != nil {
		return err
	}

	s, err := loadSettings()
	if err != nil {
		return err
	}
	db, err := openStore(s)
	if err != nil {
		return err
	}
	defer db.Close()

	util.InfoLog("Database: %s", s.DBPath())

	for _, dest := range platform.Destinations {
		if only != "" && dest != only {
			continue
		}

		mappings, err := db.GetAllFolderMappings(dest)
		if err != nil {
			return err
		}
		counts, err := db.CountMatchedTracks(dest)
		if err != nil {
			return err
		}

		util.InfoLog("")
		util.InfoLog("=== %s ===", dest)
		if len(mappings) == 0 {
			util.InfoLog("No synced folders")
		}
		for _, m := range mappings {
			util.InfoLog("  %-30s -> %s (%s)", m.FolderName, m.PlaylistName, m.PlaylistID)
		}

		util.InfoLog("Match cache: %s tracks, %s matched, %s not found",
			humanize.Comma(int64(counts.Total)), humanize.Comma(int64(counts.Matched)), humanize.Comma(int64(counts.NotFound)))
		util.InfoLog("Review:      %d pending, %d approved, %d rejected", counts.Pending, counts.Approved, counts.Rejected)
	}

	recent, err := db.GetRecentSyncIDs(5)
	if err != nil {
		return err
	}
	if len(recent) > 0 {
		util.InfoLog("")
		util.InfoLog("Recent syncs:")
		for _, r := range recent {
			util.InfoLog("  %s  %-10s  %s", r.SyncID, r.Destination, humanize.Time(r.StartedAt))
		}
	}

	return nil
}
