package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/franz/crate-sync/internal/report"
	"github.com/franz/crate-sync/internal/util"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate reports from the state database",
}

var reportMissingCmd = &cobra.Command{
	Use:   "missing",
	Short: "Export tracks that could not be matched",
	Long: `Export tracks with no acceptable platform match as CSV, JSON or YAML.

The report is saved to <data-dir>/reports/missing_tracks_<destination>_<timestamp>.<format>
unless --output is given.`,
	Args: cobra.NoArgs,
	RunE: runReportMissing,
}

var reportSummaryCmd = &cobra.Command{
	Use:   "summary [sync-id]",
	Short: "Render the Markdown summary of a sync run (default: latest)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReportSummary,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportMissingCmd, reportSummaryCmd)

	reportMissingCmd.Flags().String("destination", "", "only include one destination (spotify or soundcloud)")
	reportMissingCmd.Flags().String("format", "csv", "output format: csv, json or yaml")
	reportMissingCmd.Flags().StringP("output", "o", "", "output file")

	reportSummaryCmd.Flags().StringP("output", "o", "", "output file (default: <data-dir>/reports/summary_<sync-id>.md)")
}

func runReportMissing(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("destination")
	dest, err := destinationFlag(name)
	if err != nil {
		return err
	}
	formatName, _ := cmd.Flags().GetString("format")
	format, err := report.ParseFormat(formatName)
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

	tracks, err := db.GetMissingTracks(dest)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		util.SuccessLog("No missing tracks")
		return nil
	}

	now := time.Now()
	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath == "" {
		outputPath = report.MissingReportPath(s.ReportsDir(), dest, format, now)
	}

	if err := report.WriteMissingReport(afero.NewOsFs(), report.NewMissingReport(tracks, now), format, outputPath); err != nil {
		return err
	}

	util.SuccessLog("Wrote %d missing tracks to %s", len(tracks), outputPath)
	return nil
}

func runReportSummary(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	db, err := openStore(s)
	if err != nil {
		return err
	}
	defer db.Close()

	var syncID string
	if len(args) == 1 {
		syncID = args[0]
	} else {
		recent, err := db.GetRecentSyncIDs(1)
		if err != nil {
			return err
		}
		if len(recent) == 0 {
			return fmt.Errorf("no sync runs recorded yet")
		}
		syncID = recent[0].SyncID
	}

	summary, err := report.GenerateSummaryReport(db, syncID)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	if summary == nil {
		return fmt.Errorf("no events recorded for sync %s", syncID)
	}
	summary.DatabasePath = s.DBPath()

	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath == "" {
		outputPath = filepath.Join(s.ReportsDir(), fmt.Sprintf("summary_%s.md", syncID))
	}
	if err := report.WriteMarkdownReport(afero.NewOsFs(), summary, outputPath); err != nil {
		return err
	}

	util.SuccessLog("Report saved to: %s", outputPath)
	return nil
}
