package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/franz/crate-sync/internal/config"
	"github.com/franz/crate-sync/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "cratesync",
		Short: "Crate Sync - mirror Discogs collection folders as streaming playlists",
		Long: `cratesync reconciles the folders of a Discogs collection (and optionally
the wantlist) with playlists on Spotify and SoundCloud.

Each folder becomes one playlist. Tracks are matched by fuzzy search, cached
in a local SQLite database and flagged for review when the match is weak.
Repeated runs converge: only the difference is applied.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml or ~/.crate-sync/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "data directory for the state database, tokens and reports (default ~/.crate-sync)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")

	// Bind flags to viper
	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	viper.BindPFlag("no_color", rootCmd.PersistentFlags().Lookup("no-color"))
}

func initConfig() {
	// Credentials usually live in .env next to the working directory
	if err := config.LoadDotEnv(".env"); err != nil {
		util.WarnLog("%v", err)
	}

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in common locations
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(config.DefaultDataDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Read in environment variables that match
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()

	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
	if viper.GetBool("no_color") {
		util.SetColors(false)
	}

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil {
		util.DebugLog("Using config file: %s", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		util.ErrorLog("Cannot read config file %s: %v", filepath.Clean(cfgFile), err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
