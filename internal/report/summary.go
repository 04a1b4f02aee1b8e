package report

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/franz/crate-sync/internal/store"
)

// SummaryReport describes one sync run
type SummaryReport struct {
	GeneratedAt time.Time
	Summary     *store.SyncSummary

	Folders   []FolderSummary
	Flagged   []TrackEntry
	Missing   []TrackEntry
	TopErrors []ErrorSummary

	DatabasePath string
	EventLogPath string
}

// FolderSummary holds per-folder event counts
type FolderSummary struct {
	Name    string
	Matched int
	Flagged int
	Missing int
}

// TrackEntry is a flagged or missing track
type TrackEntry struct {
	Folder     string
	Artist     string
	Title      string
	Confidence float64
}

// ErrorSummary represents an error with its count
type ErrorSummary struct {
	Error string
	Count int
}

// maxSyncEvents bounds how many events a summary reads back
const maxSyncEvents = 100000

// GenerateSummaryReport builds a summary of one sync run from the sync log.
// It returns nil, nil when the run logged nothing.
func GenerateSummaryReport(db *store.Store, syncID string) (*SummaryReport, error) {
	sum, err := db.GetSyncSummary(syncID)
	if err != nil {
		return nil, err
	}
	if sum == nil {
		return nil, nil
	}

	logs, err := db.GetSyncLogs(store.SyncLogFilter{SyncID: syncID, Limit: maxSyncEvents})
	if err != nil {
		return nil, fmt.Errorf("failed to read sync logs: %w", err)
	}

	report := &SummaryReport{
		GeneratedAt: time.Now(),
		Summary:     sum,
		Folders:     make([]FolderSummary, 0),
		Flagged:     make([]TrackEntry, 0),
		Missing:     make([]TrackEntry, 0),
		TopErrors:   gatherTopErrors(logs, 10),
	}

	folders := make(map[string]*FolderSummary)
	folder := func(name string) *FolderSummary {
		f, ok := folders[name]
		if !ok {
			f = &FolderSummary{Name: name}
			folders[name] = f
		}
		return f
	}

	// Logs come newest first; walk oldest first so entries keep sync order
	for i := len(logs) - 1; i >= 0; i-- {
		l := logs[i]
		entry := TrackEntry{Folder: l.FolderName, Artist: l.TrackArtist, Title: l.TrackName, Confidence: l.TrackConfidence}

		switch EventType(l.EventType) {
		case EventTrackMatched:
			folder(l.FolderName).Matched++
		case EventTrackFlagged:
			folder(l.FolderName).Flagged++
			report.Flagged = append(report.Flagged, entry)
		case EventTrackMissing:
			folder(l.FolderName).Missing++
			report.Missing = append(report.Missing, entry)
		case EventFolderStart:
			folder(l.FolderName)
		}
	}

	for _, f := range folders {
		report.Folders = append(report.Folders, *f)
	}
	sort.Slice(report.Folders, func(i, j int) bool {
		return report.Folders[i].Name < report.Folders[j].Name
	})

	sort.SliceStable(report.Flagged, func(i, j int) bool {
		return report.Flagged[i].Confidence < report.Flagged[j].Confidence
	})

	return report, nil
}

// gatherTopErrors counts the most common error messages
func gatherTopErrors(logs []*store.SyncLog, limit int) []ErrorSummary {
	errorCounts := make(map[string]int)
	for _, l := range logs {
		if l.Status != string(StatusError) {
			continue
		}
		msg := l.Message
		if e, ok := l.Details["error"].(string); ok && e != "" {
			msg = e
		}
		if msg != "" {
			errorCounts[msg]++
		}
	}

	// Convert to slice
	errors := make([]ErrorSummary, 0, len(errorCounts))
	for err, count := range errorCounts {
		errors = append(errors, ErrorSummary{
			Error: err,
			Count: count,
		})
	}

	// Sort by count (descending), then message for stable output
	sort.Slice(errors, func(i, j int) bool {
		if errors[i].Count != errors[j].Count {
			return errors[i].Count > errors[j].Count
		}
		return errors[i].Error < errors[j].Error
	})

	// Limit results
	if len(errors) > limit {
		errors = errors[:limit]
	}

	return errors
}

// RenderMarkdown renders the summary report as Markdown
func RenderMarkdown(report *SummaryReport) string {
	var md strings.Builder
	sum := report.Summary

	// Header
	md.WriteString("# Crate Sync - Sync Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))
	md.WriteString(fmt.Sprintf("**Sync ID:** `%s`\n\n", sum.SyncID))
	md.WriteString(fmt.Sprintf("**Destination:** %s\n\n", sum.Destination))

	if report.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", report.DatabasePath))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}

	md.WriteString("---\n\n")

	// Overview
	md.WriteString("## Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Started | %s (%s) |\n", sum.StartedAt.Format("2006-01-02 15:04:05"), humanize.Time(sum.StartedAt)))
	md.WriteString(fmt.Sprintf("| Duration | %s |\n", sum.Duration().Round(time.Second)))
	md.WriteString(fmt.Sprintf("| Folders Processed | %s |\n", humanize.Comma(int64(sum.FoldersProcessed))))
	md.WriteString(fmt.Sprintf("| Playlists Created | %s |\n", humanize.Comma(int64(sum.PlaylistsCreated))))
	md.WriteString(fmt.Sprintf("| Tracks Matched | %s |\n", humanize.Comma(int64(sum.TracksMatched))))
	md.WriteString(fmt.Sprintf("| Tracks Flagged | %s |\n", humanize.Comma(int64(sum.TracksFlagged))))
	md.WriteString(fmt.Sprintf("| Tracks Missing | %s |\n", humanize.Comma(int64(sum.TracksMissing))))
	if sum.ErrorCount > 0 {
		md.WriteString(fmt.Sprintf("| Errors | %s |\n", humanize.Comma(int64(sum.ErrorCount))))
	}
	md.WriteString("\n")

	// Folders
	if len(report.Folders) > 0 {
		md.WriteString("## Folders\n\n")
		md.WriteString("| Folder | Matched | Flagged | Missing |\n")
		md.WriteString("|--------|---------|---------|---------|\n")
		for _, f := range report.Folders {
			md.WriteString(fmt.Sprintf("| %s | %d | %d | %d |\n", escapeCell(f.Name), f.Matched, f.Flagged, f.Missing))
		}
		md.WriteString("\n")
	}

	// Flagged
	if len(report.Flagged) > 0 {
		md.WriteString("## Flagged for Review\n\n")
		md.WriteString("| Confidence | Artist | Title | Folder |\n")
		md.WriteString("|------------|--------|-------|--------|\n")
		for _, t := range report.Flagged {
			md.WriteString(fmt.Sprintf("| %.0f%% | %s | %s | %s |\n",
				t.Confidence*100, escapeCell(t.Artist), escapeCell(t.Title), escapeCell(t.Folder)))
		}
		md.WriteString("\n")
	}

	// Missing
	if len(report.Missing) > 0 {
		md.WriteString("## Missing\n\n")
		md.WriteString("| Artist | Title | Folder |\n")
		md.WriteString("|--------|-------|--------|\n")
		for _, t := range report.Missing {
			md.WriteString(fmt.Sprintf("| %s | %s | %s |\n", escapeCell(t.Artist), escapeCell(t.Title), escapeCell(t.Folder)))
		}
		md.WriteString("\n")
	}

	// Errors
	if len(report.TopErrors) > 0 {
		md.WriteString("## Top Errors\n\n")
		md.WriteString("| Count | Error |\n")
		md.WriteString("|-------|-------|\n")
		for _, err := range report.TopErrors {
			md.WriteString(fmt.Sprintf("| %d | %s |\n", err.Count, escapeCell(err.Error)))
		}
		md.WriteString("\n")
	}

	// Footer
	md.WriteString("---\n\n")
	md.WriteString("*Generated by crate-sync*\n")

	return md.String()
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(fs afero.Fs, report *SummaryReport, outputPath string) error {
	// Create output directory
	if err := fs.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := afero.WriteFile(fs, outputPath, []byte(RenderMarkdown(report)), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

// escapeCell keeps pipes inside a table cell
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
