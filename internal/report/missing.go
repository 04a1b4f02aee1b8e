package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/franz/crate-sync/internal/platform"
	"github.com/franz/crate-sync/internal/store"
)

// Format is a missing-tracks report format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a report format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatCSV, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown report format %q (expected csv, json or yaml)", s)
}

// MissingEntry is one row of the missing-tracks report
type MissingEntry struct {
	Artist      string    `json:"artist" yaml:"artist"`
	TrackName   string    `json:"track_name" yaml:"track_name"`
	Destination string    `json:"destination" yaml:"destination"`
	ReleaseID   int       `json:"discogs_release_id" yaml:"discogs_release_id"`
	FolderID    int       `json:"discogs_folder_id" yaml:"discogs_folder_id"`
	SearchedAt  time.Time `json:"searched_at" yaml:"searched_at"`
}

// MissingReport is the document written for JSON and YAML
type MissingReport struct {
	GeneratedAt time.Time      `json:"generated_at" yaml:"generated_at"`
	TotalCount  int            `json:"total_count" yaml:"total_count"`
	Tracks      []MissingEntry `json:"tracks" yaml:"tracks"`
}

var missingCSVHeader = []string{
	"Artist",
	"Track Name",
	"Destination",
	"Discogs Release ID",
	"Discogs Folder ID",
	"Searched At",
}

// NewMissingReport converts store rows into a report
func NewMissingReport(tracks []*store.MissingTrack, now time.Time) *MissingReport {
	r := &MissingReport{
		GeneratedAt: now,
		TotalCount:  len(tracks),
		Tracks:      make([]MissingEntry, 0, len(tracks)),
	}
	for _, t := range tracks {
		r.Tracks = append(r.Tracks, MissingEntry{
			Artist:      t.Artist,
			TrackName:   t.TrackName,
			Destination: string(t.Destination),
			ReleaseID:   t.ReleaseID,
			FolderID:    t.FolderID,
			SearchedAt:  t.SearchedAt,
		})
	}
	return r
}

// MissingReportPath returns the default report path in dir, e.g.
// missing_tracks_spotify_20260301_120000.csv. An empty dest covers all.
func MissingReportPath(dir string, dest platform.Destination, format Format, now time.Time) string {
	name := "missing_tracks"
	if dest != "" {
		name += "_" + string(dest)
	}
	name += "_" + now.Format("20060102_150405") + "." + string(format)
	return filepath.Join(dir, name)
}

// WriteMissingReport writes the report to path in the given format
func WriteMissingReport(fs afero.Fs, r *MissingReport, format Format, path string) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()

	switch format {
	case FormatCSV:
		w := csv.NewWriter(f)
		if err := w.Write(missingCSVHeader); err != nil {
			return err
		}
		for _, t := range r.Tracks {
			row := []string{
				t.Artist,
				t.TrackName,
				t.Destination,
				strconv.Itoa(t.ReleaseID),
				strconv.Itoa(t.FolderID),
				t.SearchedAt.Format(time.RFC3339),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		w.Flush()
		err = w.Error()

	case FormatJSON:
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		err = enc.Encode(r)

	case FormatYAML:
		enc := yaml.NewEncoder(f)
		enc.SetIndent(2)
		err = enc.Encode(r)
		if err == nil {
			err = enc.Close()
		}

	default:
		return fmt.Errorf("unknown report format %q", format)
	}

	if err != nil {
		return fmt.Errorf("failed to write %s report: %w", format, err)
	}
	return f.Close()
}
