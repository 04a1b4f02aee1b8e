package discogs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/franz/crate-sync/internal/catalog"
	"github.com/franz/crate-sync/internal/util"
)

// newTestServer serves a small collection for user "dj"
func newTestServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var requests atomic.Int32
	mux := http.NewServeMux()

	mux.HandleFunc("/oauth/identity", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"username": "dj"}`)
	})
	mux.HandleFunc("/users/dj/collection/folders", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"folders": [
			{"id": 0, "name": "All", "count": 3},
			{"id": 1, "name": "Uncategorized", "count": 0},
			{"id": 42, "name": "House", "count": 3}
		]}`)
	})
	mux.HandleFunc("/users/dj/collection/folders/42/releases", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, `{"pagination": {"page": 1, "pages": 2}, "releases": [
				{"basic_information": {"id": 100, "title": "Energy Flow EP", "year": 1997,
					"artists": [{"name": "Sasha (2)"}], "labels": [{"name": "Deconstruction", "catno": "DC 1"}]}},
				{"basic_information": {"id": 101, "title": "Split", "artists": [{"name": "A"}, {"name": "B"}]}}
			]}`)
		case "2":
			fmt.Fprint(w, `{"pagination": {"page": 2, "pages": 2}, "releases": [
				{"basic_information": {"id": 102, "title": "Various", "artists": [{"name": "A"}, {"name": "B"}, {"name": "C"}]}}
			]}`)
		default:
			http.Error(w, "bad page", http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/users/dj/wants", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"pagination": {"page": 1, "pages": 1}, "wants": [
			{"basic_information": {"id": 300, "title": "Wanted", "artists": [{"name": "Artist X"}]}}
		]}`)
	})
	mux.HandleFunc("/releases/100", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": 100, "title": "Energy Flow EP", "artists": [{"name": "Sasha (2)"}], "tracklist": [
			{"position": "", "title": "Side A"},
			{"position": "A1", "title": "Energy Flow", "duration": "6:12"},
			{"position": "A2", "title": "Energy Flow (Extended Mix)", "artists": [{"name": "Artist X"}]},
			{"position": "Video", "title": "Energy Flow (Video)"},
			{"position": "DVD", "title": "Bonus"}
		]}`)
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("Authorization") != "Discogs token=secret" {
			http.Error(w, `{"message": "You must authenticate"}`, http.StatusUnauthorized)
			return
		}
		if r.Header.Get("User-Agent") != UserAgent {
			http.Error(w, "missing user agent", http.StatusForbidden)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	return server, &requests
}

func newTestClient(baseURL, token string) *Client {
	return NewClient(&Config{
		Token:        token,
		BaseURL:      baseURL,
		RateInterval: time.Millisecond,
		Burst:        10,
		RetryWait:    time.Millisecond,
	})
}

func TestListFolders(t *testing.T) {
	server, _ := newTestServer(t)
	client := newTestClient(server.URL, "secret")

	folders, err := client.ListFolders(context.Background())
	if err != nil {
		t.Fatalf("ListFolders failed: %v", err)
	}

	expected := []catalog.Folder{
		{ID: 1, Name: "Uncategorized", Count: 0},
		{ID: 42, Name: "House", Count: 3},
	}
	if !reflect.DeepEqual(folders, expected) {
		t.Errorf("ListFolders() = %+v, expected %+v", folders, expected)
	}
}

func TestListReleasesPaginates(t *testing.T) {
	server, _ := newTestServer(t)
	client := newTestClient(server.URL, "secret")

	releases, err := client.ListReleases(context.Background(), 42)
	if err != nil {
		t.Fatalf("ListReleases failed: %v", err)
	}
	if len(releases) != 3 {
		t.Fatalf("expected 3 releases across pages, got %d", len(releases))
	}

	first := releases[0]
	expected := catalog.Release{
		ID: 100, Title: "Energy Flow EP", Artist: "Sasha", Year: 1997,
		FolderID: 42, FolderName: "House", Label: "Deconstruction", CatalogNumber: "DC 1",
	}
	if first != expected {
		t.Errorf("release = %+v, expected %+v", first, expected)
	}
	if releases[1].Artist != "A & B" {
		t.Errorf("two artists = %q, expected %q", releases[1].Artist, "A & B")
	}
	if releases[2].Artist != "A, B & C" {
		t.Errorf("three artists = %q, expected %q", releases[2].Artist, "A, B & C")
	}
}

func TestListReleasesUnknownFolder(t *testing.T) {
	server, _ := newTestServer(t)
	client := newTestClient(server.URL, "secret")

	releases, err := client.ListReleases(context.Background(), 999)
	if err != nil {
		t.Fatalf("ListReleases failed: %v", err)
	}
	if len(releases) != 0 {
		t.Errorf("expected no releases for unknown folder, got %d", len(releases))
	}
}

func TestListWantlist(t *testing.T) {
	server, _ := newTestServer(t)
	client := newTestClient(server.URL, "secret")

	wants, err := client.ListWantlist(context.Background())
	if err != nil {
		t.Fatalf("ListWantlist failed: %v", err)
	}
	if len(wants) != 1 {
		t.Fatalf("expected 1 want, got %d", len(wants))
	}
	if wants[0].FolderID != catalog.WantlistFolderID || wants[0].FolderName != catalog.WantlistFolderName {
		t.Errorf("want not in wantlist pseudo-folder: %+v", wants[0])
	}
}

func TestListTracks(t *testing.T) {
	server, _ := newTestServer(t)
	client := newTestClient(server.URL, "secret")

	tracks, err := client.ListTracks(context.Background(), catalog.Release{ID: 100})
	if err != nil {
		t.Fatalf("ListTracks failed: %v", err)
	}

	expected := []catalog.Track{
		{Position: "A1", Title: "Energy Flow", Artist: "Sasha", Duration: "6:12", ReleaseID: 100, ReleaseTitle: "Energy Flow EP"},
		{Position: "A2", Title: "Energy Flow (Extended Mix)", Artist: "Artist X", ReleaseID: 100, ReleaseTitle: "Energy Flow EP"},
	}
	if !reflect.DeepEqual(tracks, expected) {
		t.Errorf("ListTracks() = %+v, expected %+v", tracks, expected)
	}
}

func TestUnauthorized(t *testing.T) {
	server, requests := newTestServer(t)
	client := newTestClient(server.URL, "wrong")

	_, err := client.ListFolders(context.Background())
	if !errors.Is(err, util.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if n := requests.Load(); n != 1 {
		t.Errorf("401 was retried: %d requests", n)
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Retry-After", "0")
			http.Error(w, "busy", http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"username": "dj"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, "secret")
	user, err := client.Username(context.Background())
	if err != nil {
		t.Fatalf("Username failed after retries: %v", err)
	}
	if user != "dj" || calls.Load() != 3 {
		t.Errorf("Username() = %q after %d calls, expected dj after 3", user, calls.Load())
	}
}

func TestNotFoundNotRetried(t *testing.T) {
	server, requests := newTestServer(t)
	client := newTestClient(server.URL, "secret")

	_, err := client.ListTracks(context.Background(), catalog.Release{ID: 404})
	if !errors.Is(err, util.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if n := requests.Load(); n != 1 {
		t.Errorf("404 was retried: %d requests", n)
	}
}

func TestCleanArtistName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Moderat (2)", "Moderat"},
		{"Moderat (12) ", "Moderat"},
		{"Sasha", "Sasha"},
		{"The The (Band)", "The The (Band)"},
		{"Mr. Oizo ()", "Mr. Oizo ()"},
	}

	for _, tt := range tests {
		if got := cleanArtistName(tt.input); got != tt.expected {
			t.Errorf("cleanArtistName(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestJoinArtists(t *testing.T) {
	tests := []struct {
		names    []string
		expected string
	}{
		{nil, "Unknown Artist"},
		{[]string{"Sasha"}, "Sasha"},
		{[]string{"Sasha", "John Digweed"}, "Sasha & John Digweed"},
		{[]string{"A (2)", "B", "C"}, "A, B & C"},
	}

	for _, tt := range tests {
		artists := make([]artist, 0, len(tt.names))
		for _, n := range tt.names {
			artists = append(artists, artist{Name: n})
		}
		if got := joinArtists(artists); got != tt.expected {
			t.Errorf("joinArtists(%q) = %q, expected %q", tt.names, got, tt.expected)
		}
	}
}
