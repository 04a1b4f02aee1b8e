package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/franz/crate-sync/internal/config"
	"github.com/franz/crate-sync/internal/oauth"
	"github.com/franz/crate-sync/internal/store"
	"github.com/franz/crate-sync/internal/util"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure cratesync can operate correctly.

This command checks:
- Configuration values
- Discogs, Spotify and SoundCloud credentials
- Cached platform logins
- Data directory permissions
- Database accessibility and integrity
- SQLite version

Use this command to troubleshoot issues before running a sync.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	util.InfoLog("=== Crate Sync Doctor - System Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{}

	// 1. Configuration
	s, err := loadSettings()
	results = append(results, checkConfig(err))
	if s == nil {
		s = config.Default()
	}

	// 2. Credentials
	results = append(results, checkCredentials(s)...)

	// 3. Cached logins
	results = append(results, checkToken("Spotify login", s.SpotifyTokenPath(), "spotify"))
	results = append(results, checkToken("SoundCloud login", s.SoundCloudTokenPath(), "soundcloud"))

	// 4. Data directory
	results = append(results, checkDataDirectory(s.DataDir))

	// 5. SQLite
	results = append(results, checkSQLite())

	// 6. Database file
	results = append(results, checkDatabase(s.DBPath()))

	// Print results
	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	// Summary
	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("❌ Some critical checks failed. Please resolve errors before syncing.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("⚠️  Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("✅ All checks passed! Ready to sync.")
	}

	return nil
}

// checkConfig reports the outcome of loading settings
func checkConfig(err error) checkResult {
	if err != nil {
		return checkResult{
			name:    "Configuration",
			error:   true,
			message: err.Error(),
		}
	}
	return checkResult{name: "Configuration", message: "valid"}
}

// checkCredentials needs Discogs and at least one destination
func checkCredentials(s *config.Settings) []checkResult {
	results := make([]checkResult, 0, 3)

	if err := s.RequireDiscogs(); err != nil {
		results = append(results, checkResult{name: "Discogs credentials", error: true, message: err.Error()})
	} else {
		results = append(results, checkResult{name: "Discogs credentials", message: "token set"})
	}

	spotifyErr := s.RequireSpotify()
	soundcloudErr := s.RequireSoundCloud()
	// One destination is enough
	missingBoth := spotifyErr != nil && soundcloudErr != nil

	for _, c := range []struct {
		name string
		err  error
	}{
		{"Spotify credentials", spotifyErr},
		{"SoundCloud credentials", soundcloudErr},
	} {
		r := checkResult{name: c.name, message: "client id and secret set"}
		if c.err != nil {
			r.message = c.err.Error()
			r.error = missingBoth
			r.warning = !missingBoth
		}
		results = append(results, r)
	}

	return results
}

// checkToken verifies a cached OAuth token can be read
func checkToken(name, path, dest string) checkResult {
	tok, err := oauth.NewTokenFile(afero.NewOsFs(), path).Load()
	if err != nil {
		return checkResult{
			name:    name,
			warning: true,
			message: fmt.Sprintf("not logged in (run 'cratesync auth %s')", dest),
		}
	}

	msg := "token cached"
	if !tok.Expiry.IsZero() {
		msg = fmt.Sprintf("token cached, access token expires %s", humanize.Time(tok.Expiry))
	}
	if tok.RefreshToken == "" && !tok.Valid() {
		return checkResult{
			name:    name,
			warning: true,
			message: fmt.Sprintf("token expired and cannot be refreshed (run 'cratesync auth %s')", dest),
		}
	}
	return checkResult{name: name, message: msg}
}

// checkDataDirectory verifies the data directory is writable
func checkDataDirectory(path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(path, 0755); err != nil {
				return checkResult{
					name:    "Data directory",
					error:   true,
					message: fmt.Sprintf("cannot create %s: %v", path, err),
				}
			}
			return checkResult{
				name:    "Data directory",
				message: fmt.Sprintf("%s (created)", path),
			}
		}
		return checkResult{
			name:    "Data directory",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	if !info.IsDir() {
		return checkResult{
			name:    "Data directory",
			error:   true,
			message: fmt.Sprintf("%s is not a directory", path),
		}
	}

	// Check write permission by creating a temp file
	testFile := filepath.Join(path, ".cratesync_write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return checkResult{
			name:    "Data directory",
			error:   true,
			message: fmt.Sprintf("cannot write to %s: %v", path, err),
		}
	}
	f.Close()
	os.Remove(testFile)

	return checkResult{
		name:    "Data directory",
		message: fmt.Sprintf("%s (writable)", path),
	}
}

// checkSQLite verifies SQLite version
func checkSQLite() checkResult {
	// modernc.org/sqlite is pure Go, so this only confirms the driver loads
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDatabase verifies database file accessibility
func checkDatabase(dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{
			name:    "Database",
			warning: true,
			message: "no database path configured",
		}
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Database",
				message: fmt.Sprintf("%s (will be created on first run)", dbPath),
			}
		}
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dbPath, err),
		}
	}

	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", dbPath),
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	version, _ := db.SchemaVersion()
	counts, err := db.CountMatchedTracks("")
	matched := 0
	if err == nil {
		matched = counts.Total
	}

	return checkResult{
		name:    "Database",
		message: fmt.Sprintf("%s (%s, schema v%d, %d cached matches)", dbPath, humanize.Bytes(uint64(info.Size())), version, matched),
	}
}
