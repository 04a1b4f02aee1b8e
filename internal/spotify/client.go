// Package spotify implements the playlist platform on the Spotify Web API.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/time/rate"

	"github.com/franz/crate-sync/internal/platform"
	"github.com/franz/crate-sync/internal/util"
)

const (
	// VerifiedFollowers is the follower count above which an artist counts as verified
	VerifiedFollowers = 10000

	// MaxPopularity is the top of Spotify's popularity scale
	MaxPopularity = 100

	// PlaylistCacheTTL bounds how long the user's playlist list is reused
	PlaylistCacheTTL = 5 * time.Minute

	batchSize       = 100
	artistBatchSize = 50
	playlistPage    = 50
)

// Client manages playlists and searches tracks on Spotify
type Client struct {
	api         *spotify.Client
	rateLimiter *rate.Limiter
	retryWait   time.Duration
	cacheTTL    time.Duration
	now         func() time.Time

	mu        sync.Mutex
	userID    string
	playlists []platform.Playlist
	fetchedAt time.Time
}

// Config holds client configuration
type Config struct {
	HTTPClient *http.Client  // authenticated client, e.g. from oauth2.NewClient
	BaseURL    string        // "" = the public API; must end in "/"
	RateLimit  rate.Limit    // requests per second (0 = 10)
	RetryWait  time.Duration // first backoff wait (0 = 2s)
	CacheTTL   time.Duration // playlist list cache (0 = 5m)
}

// New creates a new Spotify client
func New(cfg *Config) *Client {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 2 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = PlaylistCacheTTL
	}

	// Retries are ours so 429s go through util.RetryWithBackoff
	opts := []spotify.ClientOption{spotify.WithRetry(false)}
	if cfg.BaseURL != "" {
		opts = append(opts, spotify.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		api:         spotify.New(cfg.HTTPClient, opts...),
		rateLimiter: rate.NewLimiter(cfg.RateLimit, max(1, int(cfg.RateLimit))),
		retryWait:   cfg.RetryWait,
		cacheTTL:    cfg.CacheTTL,
		now:         time.Now,
	}
}

// UserID returns the authenticated user's id, fetching it once
func (c *Client) UserID(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userIDLocked(ctx)
}

func (c *Client) userIDLocked(ctx context.Context) (string, error) {
	if c.userID != "" {
		return c.userID, nil
	}
	user, err := call(ctx, c, "current user", func() (*spotify.PrivateUser, error) {
		return c.api.CurrentUser(ctx)
	})
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}
	c.userID = user.ID
	return c.userID, nil
}

// SearchTracks searches tracks and marks candidates whose primary artist has
// more than VerifiedFollowers followers as verified
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]platform.Candidate, error) {
	result, err := call(ctx, c, "search", func() (*spotify.SearchResult, error) {
		return c.api.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
	})
	if err != nil {
		return nil, fmt.Errorf("spotify search %q: %w", query, err)
	}
	if result.Tracks == nil || len(result.Tracks.Tracks) == 0 {
		return nil, nil
	}
	tracks := result.Tracks.Tracks

	artistIDs := make([]spotify.ID, 0, len(tracks))
	seen := make(map[spotify.ID]bool)
	for _, t := range tracks {
		if len(t.Artists) > 0 && !seen[t.Artists[0].ID] {
			seen[t.Artists[0].ID] = true
			artistIDs = append(artistIDs, t.Artists[0].ID)
		}
	}

	// Follower lookups are best effort; without them nothing is verified
	verified := make(map[spotify.ID]bool)
	for start := 0; start < len(artistIDs); start += artistBatchSize {
		end := min(start+artistBatchSize, len(artistIDs))
		artists, err := call(ctx, c, "artists", func() ([]*spotify.FullArtist, error) {
			return c.api.GetArtists(ctx, artistIDs[start:end]...)
		})
		if err != nil {
			util.DebugLog("Spotify artist lookup failed: %v", err)
			break
		}
		for _, a := range artists {
			if a != nil && int(a.Followers.Count) > VerifiedFollowers {
				verified[a.ID] = true
			}
		}
	}

	candidates := make([]platform.Candidate, 0, len(tracks))
	for _, t := range tracks {
		cand := platform.Candidate{
			ID:            string(t.ID),
			URI:           string(t.URI),
			Title:         t.Name,
			Artist:        "Unknown Artist",
			Album:         t.Album.Name,
			Popularity:    int(t.Popularity),
			MaxPopularity: MaxPopularity,
		}
		if len(t.Artists) > 0 {
			cand.Artist = t.Artists[0].Name
			cand.Verified = verified[t.Artists[0].ID]
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// FindPlaylistByName returns the user's own playlist with exactly this name
func (c *Client) FindPlaylistByName(ctx context.Context, name string) (*platform.Playlist, error) {
	playlists, err := c.ListPlaylists(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range playlists {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, nil
}

// ListPlaylists returns the playlists owned by the user. The list is cached
// for the configured TTL and dropped on create and delete.
func (c *Client) ListPlaylists(ctx context.Context) ([]platform.Playlist, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.playlists != nil && c.now().Sub(c.fetchedAt) < c.cacheTTL {
		return c.playlists, nil
	}

	userID, err := c.userIDLocked(ctx)
	if err != nil {
		return nil, err
	}

	page, err := call(ctx, c, "playlists", func() (*spotify.SimplePlaylistPage, error) {
		return c.api.CurrentUsersPlaylists(ctx, spotify.Limit(playlistPage))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}

	playlists := make([]platform.Playlist, 0)
	for {
		for _, p := range page.Playlists {
			if p.Owner.ID != userID {
				continue
			}
			playlists = append(playlists, platform.Playlist{
				ID:         string(p.ID),
				Name:       p.Name,
				URL:        p.ExternalURLs["spotify"],
				TrackCount: int(p.Tracks.Total),
			})
		}

		err := c.nextPage(ctx, func() error { return c.api.NextPage(ctx, page) })
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list playlists: %w", err)
		}
	}

	c.playlists = playlists
	c.fetchedAt = c.now()
	return playlists, nil
}

// CreatePlaylist creates a playlist owned by the user
func (c *Client) CreatePlaylist(ctx context.Context, name, description string, public bool) (*platform.Playlist, error) {
	userID, err := c.UserID(ctx)
	if err != nil {
		return nil, err
	}

	p, err := call(ctx, c, "create playlist", func() (*spotify.FullPlaylist, error) {
		return c.api.CreatePlaylistForUser(ctx, userID, name, description, public, false)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist %s: %w", name, err)
	}
	c.invalidatePlaylists()

	util.DebugLog("Spotify: created playlist %s (%s)", name, p.ID)
	return &platform.Playlist{ID: string(p.ID), Name: p.Name, URL: p.ExternalURLs["spotify"]}, nil
}

// DeletePlaylist unfollows the playlist, which is how Spotify deletes
func (c *Client) DeletePlaylist(ctx context.Context, id string) error {
	err := c.do(ctx, "delete playlist", func() error {
		return c.api.UnfollowPlaylist(ctx, spotify.ID(id))
	})
	if err != nil {
		return fmt.Errorf("failed to delete playlist %s: %w", id, err)
	}
	c.invalidatePlaylists()
	return nil
}

// GetPlaylistTracks returns the track ids in playlist order. Episodes and
// unavailable tracks are skipped.
func (c *Client) GetPlaylistTracks(ctx context.Context, id string) ([]string, error) {
	page, err := call(ctx, c, "playlist items", func() (*spotify.PlaylistItemPage, error) {
		return c.api.GetPlaylistItems(ctx, spotify.ID(id), spotify.Limit(batchSize))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get tracks of playlist %s: %w", id, err)
	}

	ids := make([]string, 0, int(page.Total))
	for {
		for _, item := range page.Items {
			if item.Track.Track != nil && item.Track.Track.ID != "" {
				ids = append(ids, string(item.Track.Track.ID))
			}
		}

		err := c.nextPage(ctx, func() error { return c.api.NextPage(ctx, page) })
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get tracks of playlist %s: %w", id, err)
		}
	}
	return ids, nil
}

// AddTracks appends tracks in batches of 100
func (c *Client) AddTracks(ctx context.Context, id string, trackIDs []string) error {
	for _, batch := range batches(trackIDs) {
		_, err := call(ctx, c, "add tracks", func() (string, error) {
			return c.api.AddTracksToPlaylist(ctx, spotify.ID(id), batch...)
		})
		if err != nil {
			return fmt.Errorf("failed to add tracks to playlist %s: %w", id, err)
		}
	}
	return nil
}

// RemoveTracks removes every occurrence of the tracks in batches of 100
func (c *Client) RemoveTracks(ctx context.Context, id string, trackIDs []string) error {
	for _, batch := range batches(trackIDs) {
		_, err := call(ctx, c, "remove tracks", func() (string, error) {
			return c.api.RemoveTracksFromPlaylist(ctx, spotify.ID(id), batch...)
		})
		if err != nil {
			return fmt.Errorf("failed to remove tracks from playlist %s: %w", id, err)
		}
	}
	return nil
}

func (c *Client) invalidatePlaylists() {
	c.mu.Lock()
	c.playlists = nil
	c.mu.Unlock()
}

func batches(trackIDs []string) [][]spotify.ID {
	var out [][]spotify.ID
	for start := 0; start < len(trackIDs); start += batchSize {
		end := min(start+batchSize, len(trackIDs))
		batch := make([]spotify.ID, 0, end-start)
		for _, id := range trackIDs[start:end] {
			batch = append(batch, spotify.ID(id))
		}
		out = append(out, batch)
	}
	return out
}

// nextPage advances a page. spotify.ErrNoMorePages is passed through unwrapped.
func (c *Client) nextPage(ctx context.Context, fn func() error) error {
	err := c.do(ctx, "next page", fn)
	if errors.Is(err, spotify.ErrNoMorePages) {
		return spotify.ErrNoMorePages
	}
	return err
}

func (c *Client) do(ctx context.Context, op string, fn func() error) error {
	_, err := call(ctx, c, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// call runs one rate limited API call with retries. API errors become
// *util.HTTPError so retry and sentinel checks work.
func call[T any](ctx context.Context, c *Client, op string, fn func() (T, error)) (T, error) {
	retry := util.HTTPRetryConfig(ctx)
	retry.InitialWait = c.retryWait

	return util.RetryWithBackoff(retry, func() (T, error) {
		var zero T
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return zero, err
		}
		v, err := fn()
		return v, translateError(op, err)
	}, "spotify "+op)
}

func translateError(op string, err error) error {
	if err == nil || errors.Is(err, spotify.ErrNoMorePages) {
		return err
	}
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return &util.HTTPError{
			Method:     op,
			URL:        "spotify",
			StatusCode: apiErr.Status,
			Body:       apiErr.Message,
		}
	}
	return err
}
