package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/franz/crate-sync/internal/store"
	"github.com/franz/crate-sync/internal/util"
)

var logsCmd = &cobra.Command{
	Use:   "logs [sync-id]",
	Short: "Show recent sync runs or the events of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().Int("limit", 10, "number of runs or events to show")
	logsCmd.Flags().String("status", "", "only show events with this status (info, success, warning, error)")
	logsCmd.Flags().String("type", "", "only show events of this type (e.g. track_missing)")
	logsCmd.Flags().Int("cleanup-days", 0, "delete events older than this many days")
}

func runLogs(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	status, _ := cmd.Flags().GetString("status")
	eventType, _ := cmd.Flags().GetString("type")
	cleanupDays, _ := cmd.Flags().GetInt("cleanup-days")

	s, err := loadSettings()
	if err != nil {
		return err
	}
	db, err := openStore(s)
	if err != nil {
		return err
	}
	defer db.Close()

	if cleanupDays > 0 {
		n, err := db.CleanupOldLogs(time.Duration(cleanupDays) * 24 * time.Hour)
		if err != nil {
			return err
		}
		util.SuccessLog("Deleted %d events older than %d days", n, cleanupDays)
		return nil
	}

	if len(args) == 0 {
		return listRecentSyncs(db, limit)
	}
	return showSync(db, store.SyncLogFilter{SyncID: args[0], Status: status, EventType: eventType, Limit: limit})
}

func listRecentSyncs(db *store.Store, limit int) error {
	recent, err := db.GetRecentSyncIDs(limit)
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		util.InfoLog("No sync runs recorded yet")
		return nil
	}

	for _, r := range recent {
		sum, err := db.GetSyncSummary(r.SyncID)
		if err != nil {
			return err
		}
		if sum == nil {
			continue
		}
		util.InfoLog("%s  %-10s  %-14s  %d matched, %d flagged, %d missing, %d errors",
			r.SyncID, r.Destination, humanize.Time(r.StartedAt),
			sum.TracksMatched, sum.TracksFlagged, sum.TracksMissing, sum.ErrorCount)
	}
	return nil
}

func showSync(db *store.Store, filter store.SyncLogFilter) error {
	sum, err := db.GetSyncSummary(filter.SyncID)
	if err != nil {
		return err
	}
	if sum == nil {
		return fmt.Errorf("no events recorded for sync %s", filter.SyncID)
	}

	total, err := db.CountSyncEvents(filter)
	if err != nil {
		return err
	}
	logs, err := db.GetSyncLogs(filter)
	if err != nil {
		return err
	}

	util.InfoLog("Sync %s to %s, started %s, took %s", sum.SyncID, sum.Destination,
		humanize.Time(sum.StartedAt), sum.Duration().Round(time.Second))
	util.InfoLog("Showing %d of %d events", len(logs), total)
	util.InfoLog("")

	for _, l := range logs {
		line := fmt.Sprintf("%s  %-16s  %-7s", l.CreatedAt.Format("15:04:05"), l.EventType, l.Status)
		if l.FolderName != "" {
			line += "  [" + l.FolderName + "]"
		}
		if l.TrackName != "" {
			line += fmt.Sprintf("  %s - %s", l.TrackArtist, l.TrackName)
		}
		if l.Message != "" {
			line += "  " + l.Message
		}

		switch l.Status {
		case "error":
			util.ErrorLog("%s", line)
		case "warning":
			util.WarnLog("%s", line)
		default:
			util.InfoLog("%s", line)
		}
	}
	return nil
}
