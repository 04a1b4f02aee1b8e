// Package soundcloud implements the playlist platform on the SoundCloud API.
package soundcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/franz/crate-sync/internal/platform"
	"github.com/franz/crate-sync/internal/util"
)

const (
	// BaseURL is the SoundCloud API base URL
	BaseURL = "https://api.soundcloud.com"

	// MaxPopularity is the top of the scale SearchTracks maps play counts onto
	MaxPopularity = 100

	// playsDecades is the number of play-count decades that reach MaxPopularity
	playsDecades = 6

	playlistLimit = 200
)

// Client manages playlists and searches tracks on SoundCloud
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *rate.Limiter
	retryWait   time.Duration

	mu     sync.Mutex
	userID int64
}

// Config holds client configuration
type Config struct {
	HTTPClient *http.Client  // authenticated client, see NewFromTokenFile
	BaseURL    string        // "" = BaseURL
	RateLimit  rate.Limit    // requests per second (0 = 5)
	RetryWait  time.Duration // first backoff wait (0 = 2s)
}

// New creates a new SoundCloud client
func New(cfg *Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURL
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 2 * time.Second
	}

	return &Client{
		httpClient:  cfg.HTTPClient,
		baseURL:     cfg.BaseURL,
		rateLimiter: rate.NewLimiter(cfg.RateLimit, max(1, int(cfg.RateLimit))),
		retryWait:   cfg.RetryWait,
	}
}

type apiUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Verified bool   `json:"verified"`
}

type apiTrack struct {
	ID                int64   `json:"id"`
	Title             string  `json:"title"`
	PermalinkURL      string  `json:"permalink_url"`
	PlaybackCount     int64   `json:"playback_count"`
	LabelName         string  `json:"label_name"`
	User              apiUser `json:"user"`
	PublisherMetadata *struct {
		Artist     string `json:"artist"`
		AlbumTitle string `json:"album_title"`
	} `json:"publisher_metadata"`
}

type apiPlaylist struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	PermalinkURL string     `json:"permalink_url"`
	TrackCount   int        `json:"track_count"`
	User         apiUser    `json:"user"`
	Tracks       []apiTrack `json:"tracks"`
}

type trackRef struct {
	ID int64 `json:"id"`
}

type playlistBody struct {
	Playlist playlistFields `json:"playlist"`
}

type playlistFields struct {
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Sharing     string     `json:"sharing,omitempty"`
	Tracks      []trackRef `json:"tracks"`
}

// UserID returns the authenticated user's id, fetching it once
func (c *Client) UserID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.userID != 0 {
		return c.userID, nil
	}
	var me apiUser
	if err := c.do(ctx, http.MethodGet, "/me", nil, nil, &me); err != nil {
		return 0, fmt.Errorf("failed to get current user: %w", err)
	}
	c.userID = me.ID
	return c.userID, nil
}

// SearchTracks searches tracks. Play counts become popularity on a log scale
// and the uploader's verified badge marks the candidate verified.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]platform.Candidate, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/tracks", q, nil, &raw); err != nil {
		return nil, fmt.Errorf("soundcloud search %q: %w", query, err)
	}
	tracks, err := decodeCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("soundcloud search %q: %w", query, err)
	}

	candidates := make([]platform.Candidate, 0, len(tracks))
	for _, t := range tracks {
		cand := platform.Candidate{
			ID:            strconv.FormatInt(t.ID, 10),
			URI:           t.PermalinkURL,
			Title:         t.Title,
			Artist:        t.User.Username,
			Label:         t.LabelName,
			Popularity:    playsPopularity(t.PlaybackCount),
			MaxPopularity: MaxPopularity,
			Verified:      t.User.Verified,
		}
		if t.PublisherMetadata != nil {
			if t.PublisherMetadata.Artist != "" {
				cand.Artist = t.PublisherMetadata.Artist
			}
			cand.Album = t.PublisherMetadata.AlbumTitle
		}
		if cand.Artist == "" {
			cand.Artist = "Unknown Artist"
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// decodeCollection accepts both a bare array and a linked-partitioning page
func decodeCollection(raw json.RawMessage) ([]apiTrack, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var tracks []apiTrack
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &tracks); err != nil {
			return nil, fmt.Errorf("failed to decode tracks: %w", err)
		}
		return tracks, nil
	}

	var page struct {
		Collection []apiTrack `json:"collection"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("failed to decode tracks: %w", err)
	}
	return page.Collection, nil
}

// playsPopularity maps a play count onto [0, MaxPopularity]; a million plays
// is the top
func playsPopularity(plays int64) int {
	if plays <= 0 {
		return 0
	}
	p := int(math.Log10(float64(plays)+1) / playsDecades * MaxPopularity)
	return min(p, MaxPopularity)
}

// ListPlaylists returns the playlists owned by the user
func (c *Client) ListPlaylists(ctx context.Context) ([]platform.Playlist, error) {
	userID, err := c.UserID(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(playlistLimit))

	var items []apiPlaylist
	if err := c.do(ctx, http.MethodGet, "/me/playlists", q, nil, &items); err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}

	playlists := make([]platform.Playlist, 0, len(items))
	for _, p := range items {
		if p.User.ID != 0 && p.User.ID != userID {
			continue
		}
		playlists = append(playlists, platform.Playlist{
			ID:         strconv.FormatInt(p.ID, 10),
			Name:       p.Title,
			URL:        p.PermalinkURL,
			TrackCount: p.TrackCount,
		})
	}
	return playlists, nil
}

// FindPlaylistByName returns the user's playlist with exactly this title
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

// CreatePlaylist creates an empty playlist
func (c *Client) CreatePlaylist(ctx context.Context, name, description string, public bool) (*platform.Playlist, error) {
	sharing := "private"
	if public {
		sharing = "public"
	}
	body := playlistBody{Playlist: playlistFields{
		Title:       name,
		Description: description,
		Sharing:     sharing,
		Tracks:      []trackRef{},
	}}

	var created apiPlaylist
	if err := c.do(ctx, http.MethodPost, "/playlists", nil, body, &created); err != nil {
		return nil, fmt.Errorf("failed to create playlist %s: %w", name, err)
	}

	util.DebugLog("SoundCloud: created playlist %s (%d)", name, created.ID)
	return &platform.Playlist{
		ID:   strconv.FormatInt(created.ID, 10),
		Name: created.Title,
		URL:  created.PermalinkURL,
	}, nil
}

// DeletePlaylist deletes the playlist
func (c *Client) DeletePlaylist(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/playlists/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to delete playlist %s: %w", id, err)
	}
	return nil
}

// GetPlaylistTracks returns the track ids in playlist order
func (c *Client) GetPlaylistTracks(ctx context.Context, id string) ([]string, error) {
	refs, err := c.playlistTrackIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, strconv.FormatInt(ref, 10))
	}
	return ids, nil
}

func (c *Client) playlistTrackIDs(ctx context.Context, id string) ([]int64, error) {
	var p apiPlaylist
	if err := c.do(ctx, http.MethodGet, "/playlists/"+url.PathEscape(id), nil, nil, &p); err != nil {
		return nil, fmt.Errorf("failed to get tracks of playlist %s: %w", id, err)
	}
	ids := make([]int64, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

// AddTracks appends tracks not already present. SoundCloud only replaces a
// playlist's full track list, so this reads the current list first.
func (c *Client) AddTracks(ctx context.Context, id string, trackIDs []string) error {
	add, err := parseIDs(trackIDs)
	if err != nil {
		return err
	}
	current, err := c.playlistTrackIDs(ctx, id)
	if err != nil {
		return err
	}

	all := slices.Clone(current)
	for _, t := range add {
		if !slices.Contains(all, t) {
			all = append(all, t)
		}
	}
	return c.setTracks(ctx, id, all)
}

// RemoveTracks removes every occurrence of the tracks
func (c *Client) RemoveTracks(ctx context.Context, id string, trackIDs []string) error {
	drop, err := parseIDs(trackIDs)
	if err != nil {
		return err
	}
	current, err := c.playlistTrackIDs(ctx, id)
	if err != nil {
		return err
	}

	remaining := slices.DeleteFunc(current, func(t int64) bool {
		return slices.Contains(drop, t)
	})
	return c.setTracks(ctx, id, remaining)
}

// setTracks replaces the playlist's tracks. A 422 means some id is invalid;
// the tracks are then added one at a time and rejected ids are skipped.
func (c *Client) setTracks(ctx context.Context, id string, trackIDs []int64) error {
	err := c.putTracks(ctx, id, trackIDs)
	if err == nil {
		return nil
	}
	var httpErr *util.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusUnprocessableEntity {
		return fmt.Errorf("failed to update playlist %s: %w", id, err)
	}

	util.WarnLog("SoundCloud rejected the track list of playlist %s, adding tracks one by one", id)

	valid := make([]int64, 0, len(trackIDs))
	for _, t := range trackIDs {
		err := c.putTracks(ctx, id, append(slices.Clone(valid), t))
		if err == nil {
			valid = append(valid, t)
			continue
		}
		if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusUnprocessableEntity {
			return fmt.Errorf("failed to update playlist %s: %w", id, err)
		}
		util.WarnLog("SoundCloud rejected track %d, skipping", t)
	}

	// The last accepted PUT already holds valid; an empty list still needs writing
	if len(valid) == 0 {
		if err := c.putTracks(ctx, id, valid); err != nil {
			return fmt.Errorf("failed to update playlist %s: %w", id, err)
		}
	}
	return nil
}

func (c *Client) putTracks(ctx context.Context, id string, trackIDs []int64) error {
	refs := make([]trackRef, 0, len(trackIDs))
	for _, t := range trackIDs {
		refs = append(refs, trackRef{ID: t})
	}
	body := playlistBody{Playlist: playlistFields{Tracks: refs}}
	return c.do(ctx, http.MethodPut, "/playlists/"+url.PathEscape(id), nil, body, nil)
}

func parseIDs(trackIDs []string) ([]int64, error) {
	ids := make([]int64, 0, len(trackIDs))
	for _, s := range trackIDs {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("soundcloud track id %q: %w", s, util.ErrInvalidTrackRef)
		}
		ids = append(ids, n)
	}
	return ids, nil
}

// do sends one rate limited request with retries. body is sent as JSON and a
// 2xx response is decoded into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	urlStr := c.baseURL + path
	if len(query) > 0 {
		urlStr += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	retry := util.HTTPRetryConfig(ctx)
	retry.InitialWait = c.retryWait

	return util.Retry(retry, func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}

		util.DebugLog("SoundCloud API: %s %s", method, path)

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			data, _ := io.ReadAll(resp.Body)
			return &util.HTTPError{
				Method:     method,
				URL:        path,
				StatusCode: resp.StatusCode,
				RetryAfter: util.ParseRetryAfter(resp.Header.Get("Retry-After"), 0),
				Body:       string(data),
			}
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}, "soundcloud "+method+" "+path)
}
