package review

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/franz/crate-sync/internal/platform"
	"github.com/franz/crate-sync/internal/store"
	"github.com/franz/crate-sync/internal/util"
)

const spotifyID = "4uLU6hMCjMI75M1A2tKUQC"

func setupTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewService(&Config{Store: db, HighConfidence: 0.5}), db
}

func saveMatch(t *testing.T, db *store.Store, releaseID int, position, trackID string, confidence float64, dest platform.Destination) int64 {
	t.Helper()

	err := db.SaveMatchedTrack(&store.MatchedTrack{
		ReleaseID:       releaseID,
		Position:        position,
		Artist:          "Sasha",
		TrackName:       "Energy Flow " + position,
		Destination:     dest,
		PlatformTrackID: trackID,
		Confidence:      confidence,
	})
	if err != nil {
		t.Fatalf("SaveMatchedTrack failed: %v", err)
	}

	m, err := db.GetMatchedTrack(releaseID, position, dest)
	if err != nil || m == nil {
		t.Fatalf("GetMatchedTrack = %v, %v", m, err)
	}
	return m.ID
}

func flaggedIDs(t *testing.T, s *Service, dest platform.Destination) []int64 {
	t.Helper()

	flagged, err := s.ListFlagged(dest)
	if err != nil {
		t.Fatalf("ListFlagged failed: %v", err)
	}
	var ids []int64
	for _, m := range flagged {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestListFlagged(t *testing.T) {
	s, db := setupTestService(t)

	weak := saveMatch(t, db, 1, "A1", "sp1", 0.35, platform.Spotify)
	weaker := saveMatch(t, db, 1, "A2", "42", 0.31, platform.SoundCloud)
	saveMatch(t, db, 1, "B1", "sp2", 0.9, platform.Spotify)
	saveMatch(t, db, 1, "B2", "", 0, platform.Spotify)

	tests := []struct {
		dest     platform.Destination
		expected []int64
	}{
		{"", []int64{weaker, weak}},
		{platform.Spotify, []int64{weak}},
		{platform.SoundCloud, []int64{weaker}},
	}

	for _, tt := range tests {
		got := flaggedIDs(t, s, tt.dest)
		if len(got) != len(tt.expected) {
			t.Errorf("ListFlagged(%q) = %v, expected %v", tt.dest, got, tt.expected)
			continue
		}
		for i := range got {
			if got[i] != tt.expected[i] {
				t.Errorf("ListFlagged(%q) = %v, expected %v", tt.dest, got, tt.expected)
				break
			}
		}
	}
}

func TestApproveAndReject(t *testing.T) {
	s, db := setupTestService(t)

	a := saveMatch(t, db, 1, "A1", "sp1", 0.35, platform.Spotify)
	b := saveMatch(t, db, 1, "A2", "sp2", 0.4, platform.Spotify)

	if err := s.Approve(a); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if err := s.Reject(b); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if ids := flaggedIDs(t, s, ""); len(ids) != 0 {
		t.Errorf("reviewed tracks still flagged: %v", ids)
	}

	tests := []struct {
		id       int64
		expected store.ReviewStatus
	}{
		{a, store.ReviewApproved},
		{b, store.ReviewRejected},
	}
	for _, tt := range tests {
		m, _ := db.GetMatchedTrackByID(tt.id)
		if m.ReviewStatus != tt.expected {
			t.Errorf("track %d status = %s, expected %s", tt.id, m.ReviewStatus, tt.expected)
		}
	}

	if err := s.Approve(999); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("Approve(999) error = %v, expected ErrNotFound", err)
	}
}

func TestCorrect(t *testing.T) {
	s, db := setupTestService(t)

	sp := saveMatch(t, db, 1, "A1", "wrong", 0.35, platform.Spotify)
	sc := saveMatch(t, db, 1, "A1", "1", 0.32, platform.SoundCloud)

	tests := []struct {
		name     string
		id       int64
		ref      string
		expected string
		err      error
	}{
		{"spotify url", sp, "https://open.spotify.com/track/" + spotifyID + "?si=x", spotifyID, nil},
		{"soundcloud api url", sc, "https://api.soundcloud.com/tracks/777", "777", nil},
		{"spotify id on soundcloud", sc, spotifyID, "", util.ErrInvalidTrackRef},
		{"missing row", 999, spotifyID, "", util.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := s.Correct(tt.id, tt.ref)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Errorf("Correct(%d, %q) error = %v, expected %v", tt.id, tt.ref, err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Correct(%d, %q) failed: %v", tt.id, tt.ref, err)
			}
			if m.PlatformTrackID != tt.expected || m.Confidence != 1.0 || m.ReviewStatus != store.ReviewApproved {
				t.Errorf("Correct(%d, %q) = %+v, expected id %s, confidence 1, approved", tt.id, tt.ref, m, tt.expected)
			}
		})
	}

	// A failed correction leaves the row alone
	m, _ := db.GetMatchedTrackByID(sc)
	if m.PlatformTrackID != "777" {
		t.Errorf("SoundCloud row = %s after invalid correction, expected 777", m.PlatformTrackID)
	}
}

func TestApproveAll(t *testing.T) {
	s, db := setupTestService(t)

	saveMatch(t, db, 1, "A1", "sp1", 0.35, platform.Spotify)
	saveMatch(t, db, 1, "A2", "sp2", 0.4, platform.Spotify)
	saveMatch(t, db, 1, "A1", "1", 0.32, platform.SoundCloud)

	n, err := s.ApproveAll(platform.Spotify)
	if err != nil || n != 2 {
		t.Fatalf("ApproveAll(spotify) = %d, %v, expected 2", n, err)
	}
	if ids := flaggedIDs(t, s, ""); len(ids) != 1 {
		t.Errorf("expected only the SoundCloud track flagged, got %v", ids)
	}

	n, _ = s.ApproveAll("")
	if n != 1 {
		t.Errorf("ApproveAll(all) = %d, expected 1", n)
	}
}

func TestTrack(t *testing.T) {
	s, db := setupTestService(t)

	found := saveMatch(t, db, 100, "A1", spotifyID, 0.35, platform.Spotify)
	missing := saveMatch(t, db, 100, "A2", "", 0, platform.Spotify)

	d, err := s.Track(found)
	if err != nil {
		t.Fatalf("Track failed: %v", err)
	}
	if d.Links["platform"] != "https://open.spotify.com/track/"+spotifyID {
		t.Errorf("platform link = %q", d.Links["platform"])
	}
	if d.Links["discogs"] != "https://www.discogs.com/release/100" {
		t.Errorf("discogs link = %q", d.Links["discogs"])
	}

	d, _ = s.Track(missing)
	if _, ok := d.Links["platform"]; ok {
		t.Errorf("unmatched track has a platform link: %v", d.Links)
	}

	if _, err := s.Track(999); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("Track(999) error = %v, expected ErrNotFound", err)
	}
}

func TestServer(t *testing.T) {
	s, db := setupTestService(t)
	a := saveMatch(t, db, 100, "A1", spotifyID, 0.35, platform.Spotify)
	b := saveMatch(t, db, 100, "A2", "sp2", 0.4, platform.Spotify)
	c := saveMatch(t, db, 100, "A1", "1", 0.32, platform.SoundCloud)

	server := httptest.NewServer(NewServer(s))
	t.Cleanup(server.Close)

	// Redirects are checked, not followed
	client := server.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	resp, err := client.Get(server.URL + "/?destination=spotify")
	if err != nil {
		t.Fatalf("GET / failed: %v", err)
	}
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET / status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(page), "Energy Flow A1") || !strings.Contains(string(page), "35%") {
		t.Errorf("index page is missing the flagged track")
	}

	post := func(path string, form url.Values) *http.Response {
		t.Helper()
		resp, err := client.PostForm(server.URL+path, form)
		if err != nil {
			t.Fatalf("POST %s failed: %v", path, err)
		}
		resp.Body.Close()
		return resp
	}

	tests := []struct {
		name   string
		path   string
		form   url.Values
		status int
	}{
		{"approve", "/approve/" + itoa(a), nil, http.StatusSeeOther},
		{"reject", "/reject/" + itoa(b), nil, http.StatusSeeOther},
		{"correct", "/correct/" + itoa(c), url.Values{"ref": {"https://api.soundcloud.com/tracks/55"}}, http.StatusSeeOther},
		{"correct invalid ref", "/correct/" + itoa(c), url.Values{"ref": {"nope"}}, http.StatusBadRequest},
		{"unknown id", "/approve/999", nil, http.StatusNotFound},
		{"bad id", "/approve/abc", nil, http.StatusBadRequest},
		{"approve all", "/approve-all?destination=spotify", nil, http.StatusSeeOther},
		{"approve all bad destination", "/approve-all?destination=tidal", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(tt.path, tt.form)
			if resp.StatusCode != tt.status {
				t.Errorf("POST %s status = %d, expected %d", tt.path, resp.StatusCode, tt.status)
			}
			if tt.status == http.StatusSeeOther && !strings.HasPrefix(resp.Header.Get("Location"), "/") {
				t.Errorf("POST %s redirected to %q", tt.path, resp.Header.Get("Location"))
			}
		})
	}

	resp, err = client.Get(server.URL + "/track/" + itoa(c))
	if err != nil {
		t.Fatalf("GET /track failed: %v", err)
	}
	defer resp.Body.Close()

	var d TrackDetails
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		t.Fatalf("failed to decode track: %v", err)
	}
	if d.PlatformTrackID != "55" || d.ReviewStatus != store.ReviewApproved || d.Links["platform"] != "https://soundcloud.com/tracks/55" {
		t.Errorf("GET /track/%d = %+v", c, d)
	}

	resp, _ = client.Get(server.URL + "/track/999")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /track/999 status = %d, expected 404", resp.StatusCode)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
