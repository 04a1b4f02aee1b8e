// Package platform defines the streaming-platform side of a sync.
package platform

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/franz/crate-sync/internal/util"
)

// Destination names a playlist platform
type Destination string

const (
	Spotify    Destination = "spotify"
	SoundCloud Destination = "soundcloud"
)

// Destinations lists every supported platform in sync order
var Destinations = []Destination{Spotify, SoundCloud}

// ParseDestination validates a destination name
func ParseDestination(s string) (Destination, error) {
	switch d := Destination(s); d {
	case Spotify, SoundCloud:
		return d, nil
	}
	return "", fmt.Errorf("unknown destination %q (expected spotify or soundcloud)", s)
}

func (d Destination) String() string {
	return string(d)
}

// Candidate is a search hit. Popularity is already normalized by the client
// into [0, MaxPopularity].
type Candidate struct {
	ID            string
	URI           string
	Title         string
	Artist        string
	Album         string
	Label         string
	Popularity    int
	MaxPopularity int
	Verified      bool
}

// Playlist is a platform playlist
type Playlist struct {
	ID         string
	Name       string
	URL        string
	TrackCount int
}

// Searcher finds candidate tracks
type Searcher interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]Candidate, error)
}

// Client manages playlists on one platform. Track ids are bare platform ids,
// never URIs.
type Client interface {
	Searcher

	// FindPlaylistByName returns nil, nil when no playlist has that name
	FindPlaylistByName(ctx context.Context, name string) (*Playlist, error)
	CreatePlaylist(ctx context.Context, name, description string, public bool) (*Playlist, error)
	DeletePlaylist(ctx context.Context, id string) error
	GetPlaylistTracks(ctx context.Context, id string) ([]string, error)
	AddTracks(ctx context.Context, id string, trackIDs []string) error
	RemoveTracks(ctx context.Context, id string, trackIDs []string) error
}

// TrackURL returns the public web link for a track id
func TrackURL(d Destination, trackID string) string {
	switch d {
	case Spotify:
		return "https://open.spotify.com/track/" + trackID
	case SoundCloud:
		return "https://soundcloud.com/tracks/" + trackID
	}
	return ""
}

var spotifyIDPattern = regexp.MustCompile(`^[0-9A-Za-z]{22}$`)

// ParseTrackRef extracts a bare track id from a user supplied id, URI or URL.
// Spotify accepts a base62 id, a spotify:track: URI or an open.spotify.com
// track URL; SoundCloud accepts a numeric id or an api.soundcloud.com track
// URL. Anything else wraps util.ErrInvalidTrackRef.
func ParseTrackRef(d Destination, ref string) (string, error) {
	ref = strings.TrimSpace(ref)

	switch d {
	case Spotify:
		id := ref
		if rest, ok := strings.CutPrefix(ref, "spotify:track:"); ok {
			id = rest
		} else if u, ok := parseURL(ref); ok {
			if u.Host != "open.spotify.com" {
				break
			}
			id, ok = pathID(u.Path, "track")
			if !ok {
				break
			}
		}
		if spotifyIDPattern.MatchString(id) {
			return id, nil
		}

	case SoundCloud:
		id := ref
		if u, ok := parseURL(ref); ok {
			if u.Host != "api.soundcloud.com" {
				break
			}
			id, ok = pathID(u.Path, "tracks")
			if !ok {
				break
			}
		}
		if n, err := strconv.ParseUint(id, 10, 64); err == nil && n > 0 {
			return id, nil
		}

	default:
		return "", fmt.Errorf("unknown destination %q: %w", d, util.ErrInvalidTrackRef)
	}

	return "", fmt.Errorf("%s track %q: %w", d, ref, util.ErrInvalidTrackRef)
}

func parseURL(ref string) (*url.URL, bool) {
	if !strings.HasPrefix(ref, "https://") && !strings.HasPrefix(ref, "http://") {
		return nil, false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return nil, false
	}
	return u, true
}

// pathID returns the segment after kind in a "/kind/id" path
func pathID(path, kind string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == kind {
			return parts[i+1], true
		}
	}
	return "", false
}
