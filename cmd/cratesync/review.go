package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/franz/crate-sync/internal/config"
	"github.com/franz/crate-sync/internal/platform"
	"github.com/franz/crate-sync/internal/review"
	"github.com/franz/crate-sync/internal/store"
	"github.com/franz/crate-sync/internal/util"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review low-confidence matches",
	Long: `Review matches that were accepted below high_confidence.

Approved and corrected matches are always reused by later syncs.
Rejected matches are searched again on the next sync.`,
}

var reviewListCmd = &cobra.Command{
	Use:   "list [spotify|soundcloud]",
	Short: "List matches waiting for review",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReviewList,
}

var reviewApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a match",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReview(func(svc *review.Service) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := svc.Approve(id); err != nil {
				return err
			}
			util.SuccessLog("Approved match %d", id)
			return nil
		})
	},
}

var reviewRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a match so the next sync searches again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReview(func(svc *review.Service) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := svc.Reject(id); err != nil {
				return err
			}
			util.SuccessLog("Rejected match %d", id)
			return nil
		})
	},
}

var reviewCorrectCmd = &cobra.Command{
	Use:   "correct <id> <track-id|uri|url>",
	Short: "Replace a match with the right platform track",
	Long: `Replace a match with the right platform track and approve it.

Spotify accepts a track id, a spotify:track: URI or an open.spotify.com URL.
SoundCloud accepts a numeric track id or an api.soundcloud.com track URL.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReview(func(svc *review.Service) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			m, err := svc.Correct(id, args[1])
			if err != nil {
				return err
			}
			util.SuccessLog("Corrected match %d: %s - %s -> %s", m.ID, m.Artist, m.TrackName,
				platform.TrackURL(m.Destination, m.PlatformTrackID))
			return nil
		})
	},
}

var reviewApproveAllCmd = &cobra.Command{
	Use:   "approve-all [spotify|soundcloud]",
	Short: "Approve every match waiting for review",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest, err := optionalDestination(args)
		if err != nil {
			return err
		}
		return withReview(func(svc *review.Service) error {
			n, err := svc.ApproveAll(dest)
			if err != nil {
				return err
			}
			util.SuccessLog("Approved %d matches", n)
			return nil
		})
	},
}

var reviewServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the review web UI",
	Args:  cobra.NoArgs,
	RunE:  runReviewServe,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.AddCommand(reviewListCmd, reviewApproveCmd, reviewRejectCmd, reviewCorrectCmd, reviewApproveAllCmd, reviewServeCmd)

	reviewServeCmd.Flags().String("addr", "127.0.0.1:8090", "listen address")
}

// withReview opens the store and runs fn against a review service
func withReview(fn func(svc *review.Service) error) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	db, err := openStore(s)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(newReviewService(s, db))
}

func newReviewService(s *config.Settings, db *store.Store) *review.Service {
	return review.NewService(&review.Config{Store: db, HighConfidence: s.HighConfidence})
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid match id %q", s)
	}
	return id, nil
}

func optionalDestination(args []string) (platform.Destination, error) {
	if len(args) == 0 {
		return "", nil
	}
	return destinationFlag(args[0])
}

func runReviewList(cmd *cobra.Command, args []string) error {
	dest, err := optionalDestination(args)
	if err != nil {
		return err
	}

	return withReview(func(svc *review.Service) error {
		tracks, err := svc.ListFlagged(dest)
		if err != nil {
			return err
		}
		if len(tracks) == 0 {
			util.SuccessLog("Nothing to review")
			return nil
		}

		util.InfoLog("%d matches need review:", len(tracks))
		util.InfoLog("")
		for _, m := range tracks {
			util.InfoLog("[%d] %3.0f%%  %s - %s (%s)", m.ID, m.Confidence*100, m.Artist, m.TrackName, m.Destination)
			util.InfoLog("       %s", platform.TrackURL(m.Destination, m.PlatformTrackID))
		}
		util.InfoLog("")
		util.InfoLog("Use 'cratesync review approve|reject|correct <id>' or 'cratesync review serve'")
		return nil
	})
}

func runReviewServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")

	ctx, cancel := signalContext()
	defer cancel()

	return withReview(func(svc *review.Service) error {
		util.InfoLog("Review UI listening on http://%s (Ctrl+C to stop)", addr)
		return review.NewServer(svc).ListenAndServe(ctx, addr)
	})
}
