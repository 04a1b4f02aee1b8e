package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/franz/crate-sync/internal/config"
	"github.com/franz/crate-sync/internal/oauth"
	"github.com/franz/crate-sync/internal/platform"
	"github.com/franz/crate-sync/internal/soundcloud"
	"github.com/franz/crate-sync/internal/spotify"
	"github.com/franz/crate-sync/internal/store"
	"github.com/franz/crate-sync/internal/util"
)

// loadSettings resolves settings from flags, config file and environment
// and applies the configured log level
func loadSettings() (*config.Settings, error) {
	s, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	// --verbose and --quiet win over log_level
	if !viper.GetBool("verbose") && !viper.GetBool("quiet") {
		util.SetLogLevel(logLevel(s.LogLevel))
	}
	return s, nil
}

func logLevel(name string) util.LogLevel {
	switch name {
	case "debug":
		return util.LevelDebug
	case "warning":
		return util.LevelWarn
	case "error":
		return util.LevelError
	default:
		return util.LevelInfo
	}
}

// openStore creates the data directories and opens the state database
func openStore(s *config.Settings) (*store.Store, error) {
	if err := s.EnsureDirectories(); err != nil {
		return nil, err
	}
	db, err := store.Open(s.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func spotifyCredentials(s *config.Settings) spotify.Credentials {
	return spotify.Credentials{
		ClientID:     s.SpotifyClientID,
		ClientSecret: s.SpotifyClientSecret,
		RedirectURI:  s.SpotifyRedirectURI,
	}
}

func soundcloudCredentials(s *config.Settings) soundcloud.Credentials {
	return soundcloud.Credentials{
		ClientID:     s.SoundCloudClientID,
		ClientSecret: s.SoundCloudClientSecret,
		RedirectURI:  s.SoundCloudRedirectURI,
	}
}

// platformClient builds an authenticated client from the cached token
func platformClient(ctx context.Context, s *config.Settings, dest platform.Destination) (platform.Client, error) {
	fs := afero.NewOsFs()

	switch dest {
	case platform.Spotify:
		if err := s.RequireSpotify(); err != nil {
			return nil, err
		}
		client, err := spotify.NewFromTokenFile(ctx, spotifyCredentials(s), oauth.NewTokenFile(fs, s.SpotifyTokenPath()))
		if err != nil {
			return nil, err
		}
		return client, nil
	case platform.SoundCloud:
		if err := s.RequireSoundCloud(); err != nil {
			return nil, err
		}
		client, err := soundcloud.NewFromTokenFile(ctx, soundcloudCredentials(s), oauth.NewTokenFile(fs, s.SoundCloudTokenPath()))
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return nil, fmt.Errorf("unknown destination %q", dest)
}

// destinationArgs expands "all" to every destination
func destinationArgs(name string) ([]platform.Destination, error) {
	if name == "all" {
		return platform.Destinations, nil
	}
	d, err := platform.ParseDestination(name)
	if err != nil {
		return nil, err
	}
	return []platform.Destination{d}, nil
}

// destinationFlag parses an optional destination; "" means every destination
func destinationFlag(name string) (platform.Destination, error) {
	if name == "" || name == "all" {
		return "", nil
	}
	return platform.ParseDestination(name)
}
