package platform

import (
	"errors"
	"testing"

	"github.com/franz/crate-sync/internal/util"
)

func TestParseTrackRef(t *testing.T) {
	tests := []struct {
		dest     Destination
		ref      string
		expected string
	}{
		{Spotify, "4uLU6hMCjMI75M1A2tKUQC", "4uLU6hMCjMI75M1A2tKUQC"},
		{Spotify, "  4uLU6hMCjMI75M1A2tKUQC\n", "4uLU6hMCjMI75M1A2tKUQC"},
		{Spotify, "spotify:track:4uLU6hMCjMI75M1A2tKUQC", "4uLU6hMCjMI75M1A2tKUQC"},
		{Spotify, "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", "4uLU6hMCjMI75M1A2tKUQC"},
		{Spotify, "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=abc", "4uLU6hMCjMI75M1A2tKUQC"},
		{Spotify, "https://open.spotify.com/intl-de/track/4uLU6hMCjMI75M1A2tKUQC", "4uLU6hMCjMI75M1A2tKUQC"},
		{SoundCloud, "123456", "123456"},
		{SoundCloud, "https://api.soundcloud.com/tracks/123456", "123456"},
		{SoundCloud, " 42 ", "42"},
	}

	for _, tt := range tests {
		got, err := ParseTrackRef(tt.dest, tt.ref)
		if err != nil {
			t.Errorf("ParseTrackRef(%s, %q) failed: %v", tt.dest, tt.ref, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseTrackRef(%s, %q) = %q, expected %q", tt.dest, tt.ref, got, tt.expected)
		}
	}
}

func TestParseTrackRefInvalid(t *testing.T) {
	tests := []struct {
		dest Destination
		ref  string
	}{
		{Spotify, ""},
		{Spotify, "4uLU6hMCjMI75M1A2tKUQ"},
		{Spotify, "4uLU6hMCjMI75M1A2tKUQ!"},
		{Spotify, "spotify:album:4uLU6hMCjMI75M1A2tKUQC"},
		{Spotify, "https://open.spotify.com/album/4uLU6hMCjMI75M1A2tKUQC"},
		{Spotify, "https://example.com/track/4uLU6hMCjMI75M1A2tKUQC"},
		{Spotify, "123456"},
		{SoundCloud, ""},
		{SoundCloud, "0"},
		{SoundCloud, "-5"},
		{SoundCloud, "abc"},
		{SoundCloud, "https://api.soundcloud.com/playlists/123"},
		{SoundCloud, "https://soundcloud.com/artist/some-track"},
		{SoundCloud, "4uLU6hMCjMI75M1A2tKUQC"},
		{Destination("tidal"), "123"},
	}

	for _, tt := range tests {
		if _, err := ParseTrackRef(tt.dest, tt.ref); !errors.Is(err, util.ErrInvalidTrackRef) {
			t.Errorf("ParseTrackRef(%s, %q) error = %v, expected ErrInvalidTrackRef", tt.dest, tt.ref, err)
		}
	}
}

func TestParseDestination(t *testing.T) {
	for _, d := range Destinations {
		if got, err := ParseDestination(string(d)); err != nil || got != d {
			t.Errorf("ParseDestination(%q) = %q, %v", d, got, err)
		}
	}
	if _, err := ParseDestination("tidal"); err == nil {
		t.Error("ParseDestination(tidal) succeeded, expected error")
	}
}

func TestTrackURL(t *testing.T) {
	tests := []struct {
		dest     Destination
		id       string
		expected string
	}{
		{Spotify, "abc", "https://open.spotify.com/track/abc"},
		{SoundCloud, "42", "https://soundcloud.com/tracks/42"},
		{Destination("tidal"), "1", ""},
	}

	for _, tt := range tests {
		if got := TrackURL(tt.dest, tt.id); got != tt.expected {
			t.Errorf("TrackURL(%s, %q) = %q, expected %q", tt.dest, tt.id, got, tt.expected)
		}
	}
}
