// Package config loads crate-sync settings from flags, the environment,
// an optional .env file and an optional YAML config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/franz/crate-sync/internal/report"
	"github.com/franz/crate-sync/internal/score"
	"github.com/franz/crate-sync/internal/util"
)

// EnvPrefix prefixes every tunable read from the environment
const EnvPrefix = "CRATESYNC"

// Settings holds every tunable of a run
type Settings struct {
	DiscogsUserToken string `mapstructure:"discogs_user_token"`

	SpotifyClientID     string `mapstructure:"spotify_client_id"`
	SpotifyClientSecret string `mapstructure:"spotify_client_secret"`
	SpotifyRedirectURI  string `mapstructure:"spotify_redirect_uri" validate:"required,url"`

	SoundCloudClientID     string `mapstructure:"soundcloud_client_id"`
	SoundCloudClientSecret string `mapstructure:"soundcloud_client_secret"`
	SoundCloudRedirectURI  string `mapstructure:"soundcloud_redirect_uri" validate:"required,url"`

	DataDir        string `mapstructure:"data_dir" validate:"required"`
	PlaylistPrefix string `mapstructure:"playlist_prefix"`
	LogLevel       string `mapstructure:"log_level" validate:"oneof=debug info warning error"`

	MinConfidence  float64 `mapstructure:"min_confidence" validate:"gte=0,lte=1"`
	HighConfidence float64 `mapstructure:"high_confidence" validate:"gte=0,lte=1,gtefield=MinConfidence"`
	MaxWorkers     int     `mapstructure:"max_workers" validate:"gte=1,lte=10"`

	ArtistWeight         float64 `mapstructure:"artist_weight" validate:"gte=0,lte=1"`
	TitleWeight          float64 `mapstructure:"title_weight" validate:"gte=0,lte=1"`
	VerifiedWeight       float64 `mapstructure:"verified_weight" validate:"gte=0,lte=1"`
	PopularityWeight     float64 `mapstructure:"popularity_weight" validate:"gte=0,lte=1"`
	VersionMatchBonus    float64 `mapstructure:"version_match_bonus" validate:"gte=0,lte=0.2"`
	VersionPenaltyWeight float64 `mapstructure:"version_penalty_weight" validate:"gte=0,lte=0.3"`
	LabelBonusWeight     float64 `mapstructure:"label_bonus_weight" validate:"gte=0,lte=0.2"`
	MaxSearchQueries     int     `mapstructure:"max_search_queries" validate:"gte=1,lte=10"`

	CacheMaxAgeDays int `mapstructure:"cache_max_age_days" validate:"gte=0"`
}

// credentialEnv maps credential keys to their unprefixed variable names
var credentialEnv = map[string]string{
	"discogs_user_token":       "DISCOGS_USER_TOKEN",
	"spotify_client_id":        "SPOTIFY_CLIENT_ID",
	"spotify_client_secret":    "SPOTIFY_CLIENT_SECRET",
	"spotify_redirect_uri":     "SPOTIFY_REDIRECT_URI",
	"soundcloud_client_id":     "SOUNDCLOUD_CLIENT_ID",
	"soundcloud_client_secret": "SOUNDCLOUD_CLIENT_SECRET",
	"soundcloud_redirect_uri":  "SOUNDCLOUD_REDIRECT_URI",
}

// SetDefaults registers every default on v. Registering a key also lets
// AutomaticEnv resolve it during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("discogs_user_token", "")
	v.SetDefault("spotify_client_id", "")
	v.SetDefault("spotify_client_secret", "")
	v.SetDefault("spotify_redirect_uri", "http://localhost:8888/callback")
	v.SetDefault("soundcloud_client_id", "")
	v.SetDefault("soundcloud_client_secret", "")
	v.SetDefault("soundcloud_redirect_uri", "http://localhost:8889/callback")

	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("playlist_prefix", "Discogs - ")
	v.SetDefault("log_level", "info")

	v.SetDefault("min_confidence", 0.30)
	v.SetDefault("high_confidence", 0.50)
	v.SetDefault("max_workers", 4)

	v.SetDefault("artist_weight", 0.45)
	v.SetDefault("title_weight", 0.35)
	v.SetDefault("verified_weight", 0.10)
	v.SetDefault("popularity_weight", 0.10)
	v.SetDefault("version_match_bonus", 0.10)
	v.SetDefault("version_penalty_weight", 0.15)
	v.SetDefault("label_bonus_weight", 0.10)
	v.SetDefault("max_search_queries", 5)

	v.SetDefault("cache_max_age_days", 30)
}

// DefaultDataDir returns ~/.crate-sync, or a relative directory when the
// home directory is unknown
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".crate-sync"
	}
	return filepath.Join(home, ".crate-sync")
}

// LoadDotEnv loads a .env file into the process environment. Variables that
// are already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load resolves settings from v (flags and config file already bound by the
// caller) and the environment, then validates them
func Load(v *viper.Viper) (*Settings, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, env := range credentialEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+env, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
	}

	s.DataDir = expandHome(s.DataDir)
	s.LogLevel = strings.ToLower(s.LogLevel)

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Default returns the default settings without reading the environment
func Default() *Settings {
	v := viper.New()
	SetDefaults(v)

	var s Settings
	// Defaults always decode
	_ = v.Unmarshal(&s)
	return &s
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report mapstructure key names, which are what users type
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("mapstructure"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}

// Validate checks ranges and cross-field constraints
func (s *Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		msgs = append(msgs, fmt.Sprintf("%s %s", e.Field(), friendlyMessage(e)))
	}
	return fmt.Errorf("%w: %s", util.ErrInvalidConfig, strings.Join(msgs, "; "))
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "gtefield":
		return "must not be below min_confidence"
	default:
		return "is invalid"
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// Weights returns the scorer weights
func (s *Settings) Weights() score.Weights {
	return score.Weights{
		Artist:     s.ArtistWeight,
		Title:      s.TitleWeight,
		Verified:   s.VerifiedWeight,
		Popularity: s.PopularityWeight,
		Version:    s.VersionMatchBonus,
		Label:      s.LabelBonusWeight,
		Penalty:    s.VersionPenaltyWeight,
	}
}

// CacheMaxAge returns how long an unreviewed match stays fresh. Zero means
// matches never expire.
func (s *Settings) CacheMaxAge() time.Duration {
	return time.Duration(s.CacheMaxAgeDays) * 24 * time.Hour
}

// EventLevel returns the minimum level written to the JSONL event log
func (s *Settings) EventLevel() report.EventLevel {
	level, err := report.ParseLevel(s.LogLevel)
	if err != nil {
		return report.LevelInfo
	}
	return level
}

// DBPath is the state database
func (s *Settings) DBPath() string { return filepath.Join(s.DataDir, "state.db") }

// ReportsDir holds generated reports
func (s *Settings) ReportsDir() string { return filepath.Join(s.DataDir, "reports") }

// EventsDir holds JSONL event logs
func (s *Settings) EventsDir() string { return filepath.Join(s.DataDir, "events") }

// SpotifyTokenPath is the cached Spotify OAuth token
func (s *Settings) SpotifyTokenPath() string {
	return filepath.Join(s.DataDir, ".spotify_token.json")
}

// SoundCloudTokenPath is the cached SoundCloud OAuth token
func (s *Settings) SoundCloudTokenPath() string {
	return filepath.Join(s.DataDir, ".soundcloud_token.json")
}

// EnsureDirectories creates the data, reports and events directories
func (s *Settings) EnsureDirectories() error {
	for _, dir := range []string{s.DataDir, s.ReportsDir(), s.EventsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// RequireDiscogs fails when the Discogs token is missing
func (s *Settings) RequireDiscogs() error {
	if s.DiscogsUserToken == "" {
		return fmt.Errorf("%w: DISCOGS_USER_TOKEN is not set", util.ErrMissingCredentials)
	}
	return nil
}

// RequireSpotify fails when the Spotify app credentials are missing
func (s *Settings) RequireSpotify() error {
	if s.SpotifyClientID == "" || s.SpotifyClientSecret == "" {
		return fmt.Errorf("%w: SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET are required", util.ErrMissingCredentials)
	}
	return nil
}

// RequireSoundCloud fails when the SoundCloud app credentials are missing
func (s *Settings) RequireSoundCloud() error {
	if s.SoundCloudClientID == "" || s.SoundCloudClientSecret == "" {
		return fmt.Errorf("%w: SOUNDCLOUD_CLIENT_ID and SOUNDCLOUD_CLIENT_SECRET are required", util.ErrMissingCredentials)
	}
	return nil
}
