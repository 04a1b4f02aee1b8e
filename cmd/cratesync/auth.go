package main

import (
	"context"
	"os/exec"
	"runtime"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/franz/crate-sync/internal/config"
	"github.com/franz/crate-sync/internal/oauth"
	"github.com/franz/crate-sync/internal/platform"
	"github.com/franz/crate-sync/internal/soundcloud"
	"github.com/franz/crate-sync/internal/spotify"
	"github.com/franz/crate-sync/internal/util"
)

// authTimeout bounds how long we wait for the browser to come back
const authTimeout = 5 * time.Minute

var authCmd = &cobra.Command{
	Use:   "auth <spotify|soundcloud>",
	Short: "Log in to a streaming platform",
	Long: `Log in to Spotify or SoundCloud with the OAuth authorization code flow.

A local callback server is started on the configured redirect URI, the
authorization URL is opened in the browser and the resulting token is
cached in the data directory. Later runs refresh it automatically.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"spotify", "soundcloud"},
	RunE:      runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)

	authCmd.Flags().Bool("no-browser", false, "only print the authorization URL")
}

func runAuth(cmd *cobra.Command, args []string) error {
	dest, err := platform.ParseDestination(args[0])
	if err != nil {
		return err
	}
	noBrowser, _ := cmd.Flags().GetBool("no-browser")

	s, err := loadSettings()
	if err != nil {
		return err
	}
	if err := s.EnsureDirectories(); err != nil {
		return err
	}

	flow, redirectURI, tokenPath, err := authFlow(s, dest)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, authTimeout)
	defer cancelTimeout()

	open := func(authURL string) error {
		util.InfoLog("Open this URL to authorize cratesync:")
		util.InfoLog("  %s", authURL)
		if !noBrowser {
			if err := openBrowser(authURL); err != nil {
				util.DebugLog("Cannot open browser: %v", err)
			}
		}
		util.InfoLog("Waiting for the callback on %s ...", redirectURI)
		return nil
	}

	tok, err := oauth.Authorize(ctx, flow, redirectURI, open)
	if err != nil {
		return err
	}

	if err := oauth.NewTokenFile(afero.NewOsFs(), tokenPath).Save(tok); err != nil {
		return err
	}

	util.SuccessLog("Logged in to %s, token saved to %s", dest, tokenPath)
	return nil
}

func authFlow(s *config.Settings, dest platform.Destination) (oauth.Flow, string, string, error) {
	switch dest {
	case platform.Spotify:
		if err := s.RequireSpotify(); err != nil {
			return nil, "", "", err
		}
		return spotify.NewFlow(spotifyCredentials(s)), s.SpotifyRedirectURI, s.SpotifyTokenPath(), nil
	default:
		if err := s.RequireSoundCloud(); err != nil {
			return nil, "", "", err
		}
		return soundcloud.NewFlow(soundcloudCredentials(s)), s.SoundCloudRedirectURI, s.SoundCloudTokenPath(), nil
	}
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
