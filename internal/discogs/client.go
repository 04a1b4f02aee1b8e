// Package discogs reads a user's collection folders, wantlist and release
// tracklists from the Discogs API.
package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/franz/crate-sync/internal/catalog"
	"github.com/franz/crate-sync/internal/util"
)

const (
	// BaseURL is the Discogs API base URL
	BaseURL = "https://api.discogs.com"

	// UserAgent identifies this application to Discogs
	// Discogs rejects requests without one
	UserAgent = "CrateSync/0.1.0 +https://github.com/franz/crate-sync"

	// RateInterval keeps us under 60 authenticated requests per minute
	RateInterval = 1 * time.Second

	perPage = 100
)

// Client handles Discogs API requests with rate limiting and retries
type Client struct {
	httpClient  *http.Client
	baseURL     string
	token       string
	userAgent   string
	rateLimiter *rate.Limiter
	retryWait   time.Duration

	mu       sync.Mutex
	username string
	folders  map[int]string
}

// Config holds client configuration
type Config struct {
	Token        string
	BaseURL      string        // "" = BaseURL
	HTTPClient   *http.Client  // nil = 30s timeout client
	RateInterval time.Duration // minimum spacing between requests (0 = 1s)
	Burst        int           // 0 = 1
	RetryWait    time.Duration // first backoff wait (0 = 2s)
}

// NewClient creates a new Discogs API client
func NewClient(cfg *Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.RateInterval <= 0 {
		cfg.RateInterval = RateInterval
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 2 * time.Second
	}

	return &Client{
		httpClient:  cfg.HTTPClient,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		token:       cfg.Token,
		userAgent:   UserAgent,
		rateLimiter: rate.NewLimiter(rate.Every(cfg.RateInterval), cfg.Burst),
		retryWait:   cfg.RetryWait,
	}
}

type artist struct {
	Name string `json:"name"`
}

type label struct {
	Name  string `json:"name"`
	Catno string `json:"catno"`
}

type basicInformation struct {
	ID      int      `json:"id"`
	Title   string   `json:"title"`
	Year    int      `json:"year"`
	Artists []artist `json:"artists"`
	Labels  []label  `json:"labels"`
}

type pagination struct {
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

type releasePage struct {
	Pagination pagination `json:"pagination"`
	Releases   []struct {
		BasicInformation basicInformation `json:"basic_information"`
	} `json:"releases"`
}

type wantsPage struct {
	Pagination pagination `json:"pagination"`
	Wants      []struct {
		BasicInformation basicInformation `json:"basic_information"`
	} `json:"wants"`
}

type folderList struct {
	Folders []struct {
		ID    int    `json:"id"`
		Name  string `json:"name"`
		Count int    `json:"count"`
	} `json:"folders"`
}

type releaseDetail struct {
	ID        int      `json:"id"`
	Title     string   `json:"title"`
	Artists   []artist `json:"artists"`
	Tracklist []struct {
		Position string   `json:"position"`
		Title    string   `json:"title"`
		Duration string   `json:"duration"`
		Artists  []artist `json:"artists"`
	} `json:"tracklist"`
}

// Username returns the authenticated user, fetching it once
func (c *Client) Username(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.username != "" {
		return c.username, nil
	}

	var identity struct {
		Username string `json:"username"`
	}
	if err := c.get(ctx, "/oauth/identity", nil, &identity); err != nil {
		return "", fmt.Errorf("failed to get identity: %w", err)
	}
	if identity.Username == "" {
		return "", fmt.Errorf("identity response has no username")
	}

	c.username = identity.Username
	return c.username, nil
}

// ListFolders returns the user's collection folders. The implicit "All"
// folder (id 0) is skipped since every release already sits in another one.
func (c *Client) ListFolders(ctx context.Context) ([]catalog.Folder, error) {
	user, err := c.Username(ctx)
	if err != nil {
		return nil, err
	}

	var list folderList
	if err := c.get(ctx, "/users/"+url.PathEscape(user)+"/collection/folders", nil, &list); err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	folders := make([]catalog.Folder, 0, len(list.Folders))
	names := make(map[int]string, len(list.Folders))
	for _, f := range list.Folders {
		if f.ID == 0 {
			continue
		}
		folders = append(folders, catalog.Folder{ID: f.ID, Name: f.Name, Count: f.Count})
		names[f.ID] = f.Name
	}

	c.mu.Lock()
	c.folders = names
	c.mu.Unlock()

	util.DebugLog("Discogs: %d folders for %s", len(folders), user)
	return folders, nil
}

// ListReleases returns every release in a folder. An unknown folder has no
// releases.
func (c *Client) ListReleases(ctx context.Context, folderID int) ([]catalog.Release, error) {
	name, ok, err := c.folderName(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		util.DebugLog("Discogs: folder %d not found", folderID)
		return nil, nil
	}

	user, err := c.Username(ctx)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/users/%s/collection/folders/%d/releases", url.PathEscape(user), folderID)

	releases := make([]catalog.Release, 0)
	for page := 1; ; page++ {
		var resp releasePage
		if err := c.get(ctx, path, pageQuery(page), &resp); err != nil {
			return nil, fmt.Errorf("failed to list releases of folder %s: %w", name, err)
		}
		for _, item := range resp.Releases {
			releases = append(releases, toRelease(item.BasicInformation, folderID, name))
		}
		if page >= resp.Pagination.Pages {
			break
		}
	}

	return releases, nil
}

// ListWantlist returns the wantlist as releases of the wantlist pseudo-folder
func (c *Client) ListWantlist(ctx context.Context) ([]catalog.Release, error) {
	user, err := c.Username(ctx)
	if err != nil {
		return nil, err
	}
	path := "/users/" + url.PathEscape(user) + "/wants"

	releases := make([]catalog.Release, 0)
	for page := 1; ; page++ {
		var resp wantsPage
		if err := c.get(ctx, path, pageQuery(page), &resp); err != nil {
			return nil, fmt.Errorf("failed to list wantlist: %w", err)
		}
		for _, item := range resp.Wants {
			releases = append(releases, toRelease(item.BasicInformation, catalog.WantlistFolderID, catalog.WantlistFolderName))
		}
		if page >= resp.Pagination.Pages {
			break
		}
	}

	return releases, nil
}

// ListTracks fetches the tracklist of a release. Headings (no position) and
// video/DVD entries are skipped; tracks without their own artists inherit
// the release artist.
func (c *Client) ListTracks(ctx context.Context, release catalog.Release) ([]catalog.Track, error) {
	var detail releaseDetail
	if err := c.get(ctx, "/releases/"+strconv.Itoa(release.ID), nil, &detail); err != nil {
		return nil, fmt.Errorf("failed to get release %d: %w", release.ID, err)
	}

	releaseArtist := joinArtists(detail.Artists)
	tracks := make([]catalog.Track, 0, len(detail.Tracklist))
	for _, t := range detail.Tracklist {
		switch strings.ToLower(t.Position) {
		case "", "video", "dvd":
			continue
		}

		trackArtist := releaseArtist
		if len(t.Artists) > 0 {
			trackArtist = joinArtists(t.Artists)
		}

		tracks = append(tracks, catalog.Track{
			Position:     t.Position,
			Title:        t.Title,
			Artist:       trackArtist,
			Duration:     t.Duration,
			ReleaseID:    release.ID,
			ReleaseTitle: detail.Title,
		})
	}

	return tracks, nil
}

func (c *Client) folderName(ctx context.Context, folderID int) (string, bool, error) {
	c.mu.Lock()
	known := c.folders != nil
	name, ok := c.folders[folderID]
	c.mu.Unlock()

	if known {
		return name, ok, nil
	}
	if _, err := c.ListFolders(ctx); err != nil {
		return "", false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok = c.folders[folderID]
	return name, ok, nil
}

func toRelease(info basicInformation, folderID int, folderName string) catalog.Release {
	r := catalog.Release{
		ID:         info.ID,
		Title:      info.Title,
		Artist:     joinArtists(info.Artists),
		Year:       info.Year,
		FolderID:   folderID,
		FolderName: folderName,
	}
	if len(info.Labels) > 0 {
		r.Label = info.Labels[0].Name
		r.CatalogNumber = info.Labels[0].Catno
	}
	return r
}

// joinArtists renders an artist credit list as "A", "A & B" or "A, B & C"
func joinArtists(artists []artist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if name := cleanArtistName(a.Name); name != "" {
			names = append(names, name)
		}
	}

	switch len(names) {
	case 0:
		return "Unknown Artist"
	case 1:
		return names[0]
	case 2:
		return names[0] + " & " + names[1]
	}
	return strings.Join(names[:len(names)-1], ", ") + " & " + names[len(names)-1]
}

// cleanArtistName strips the numeric disambiguation suffix Discogs adds to
// duplicate artist names, e.g. "Moderat (2)"
func cleanArtistName(name string) string {
	name = strings.TrimSpace(name)
	idx := strings.LastIndex(name, " (")
	if idx < 0 || !strings.HasSuffix(name, ")") {
		return name
	}
	if _, err := strconv.Atoi(name[idx+2 : len(name)-1]); err != nil {
		return name
	}
	return strings.TrimSpace(name[:idx])
}

func pageQuery(page int) url.Values {
	return url.Values{
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
	}
}

// get performs a rate limited GET with retries and decodes the JSON body
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	urlStr := c.baseURL + path
	if len(query) > 0 {
		urlStr += "?" + query.Encode()
	}

	retry := util.HTTPRetryConfig(ctx)
	retry.InitialWait = c.retryWait

	return util.Retry(retry, func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}

		util.DebugLog("Discogs API: GET %s", path)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Discogs token="+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return &util.HTTPError{
				Method:     http.MethodGet,
				URL:        path,
				StatusCode: resp.StatusCode,
				RetryAfter: util.ParseRetryAfter(resp.Header.Get("Retry-After"), 0),
				Body:       string(body),
			}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}, "discogs GET "+path)
}
