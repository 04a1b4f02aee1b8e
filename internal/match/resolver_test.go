package match

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/franz/crate-sync/internal/catalog"
	"github.com/franz/crate-sync/internal/platform"
	"github.com/franz/crate-sync/internal/store"
)

// fakeSearcher answers queries from a fixed table and counts calls
type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]platform.Candidate
	err     error
	queries []string
}

func (f *fakeSearcher) SearchTracks(ctx context.Context, query string, limit int) ([]platform.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

func (f *fakeSearcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var (
	testRelease = catalog.Release{ID: 100, Title: "Energy Flow EP", Artist: "Artist X", FolderID: 1}
	exactTrack  = catalog.Track{Position: "A1", Title: "Energy Flow", Artist: "Artist X", ReleaseID: 100}
	exactHit    = platform.Candidate{
		ID: "sp1", URI: "spotify:track:sp1", Title: "Energy Flow", Artist: "Artist X",
		Popularity: 80, MaxPopularity: 100, Verified: true,
	}
)

func newResolver(db *store.Store, s platform.Searcher) *Resolver {
	return New(&Config{Store: db, Searcher: s, Destination: platform.Spotify})
}

func TestResolveExactMatch(t *testing.T) {
	db := setupTestStore(t)
	searcher := &fakeSearcher{results: map[string][]platform.Candidate{
		"Artist X Energy Flow": {exactHit},
	}}
	r := newResolver(db, searcher)

	res, err := r.Resolve(context.Background(), exactTrack, testRelease, 1)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res == nil {
		t.Fatal("Expected a match, got nil")
	}
	if res.TrackID != "sp1" || res.FromCache {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Confidence < DefaultShortCircuit {
		t.Errorf("Confidence = %.4f, expected >= %.2f", res.Confidence, DefaultShortCircuit)
	}

	row, _ := db.GetMatchedTrack(100, "A1", platform.Spotify)
	if row == nil || row.PlatformTrackID != "sp1" || row.ReviewStatus != store.ReviewPending {
		t.Errorf("unexpected stored row: %+v", row)
	}
}

func TestResolveIdempotent(t *testing.T) {
	db := setupTestStore(t)
	searcher := &fakeSearcher{results: map[string][]platform.Candidate{
		"Artist X Energy Flow": {exactHit},
	}}
	r := newResolver(db, searcher)
	ctx := context.Background()

	first, err := r.Resolve(ctx, exactTrack, testRelease, 1)
	if err != nil {
		t.Fatalf("first Resolve failed: %v", err)
	}
	callsAfterFirst := searcher.calls()

	second, err := r.Resolve(ctx, exactTrack, testRelease, 1)
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}

	if searcher.calls() != callsAfterFirst {
		t.Errorf("second Resolve searched again: %d calls, expected %d", searcher.calls(), callsAfterFirst)
	}
	if !second.FromCache || second.TrackID != first.TrackID || second.Confidence != first.Confidence {
		t.Errorf("cached result %+v differs from %+v", second, first)
	}
	if first.Approved || second.Approved {
		t.Errorf("unreviewed match reported as approved: %+v", second)
	}
	if second.URI != "https://open.spotify.com/track/sp1" {
		t.Errorf("cached URI = %q", second.URI)
	}

	counts, _ := db.CountMatchedTracks(platform.Spotify)
	if counts.Total != 1 {
		t.Errorf("expected exactly one row, got %d", counts.Total)
	}
}

func TestResolveNoCandidates(t *testing.T) {
	db := setupTestStore(t)
	searcher := &fakeSearcher{}
	r := newResolver(db, searcher)

	track := catalog.Track{Position: "B1", Title: "Lost Track", Artist: "Artist Y", ReleaseID: 100}
	res, err := r.Resolve(context.Background(), track, testRelease, 7)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res != nil {
		t.Fatalf("Expected nil result, got %+v", res)
	}

	// Plain title: the fallback query equals the primary and is not repeated
	if searcher.calls() != 1 {
		t.Errorf("expected 1 search, got %d: %q", searcher.calls(), searcher.queries)
	}

	row, _ := db.GetMatchedTrack(100, "B1", platform.Spotify)
	if row == nil || row.Found() || row.Confidence != 0 {
		t.Errorf("expected not-found row with zero confidence, got %+v", row)
	}

	missing, _ := db.GetMissingTracks(platform.Spotify)
	if len(missing) != 1 || missing[0].FolderID != 7 || missing[0].TrackName != "Lost Track" {
		t.Errorf("unexpected missing tracks: %+v", missing)
	}
}

func TestResolveBelowThreshold(t *testing.T) {
	db := setupTestStore(t)
	searcher := &fakeSearcher{results: map[string][]platform.Candidate{
		"Artist X Energy Flow": {{ID: "x", Title: "Completely Different", Artist: "Somebody"}},
	}}
	r := newResolver(db, searcher)

	res, err := r.Resolve(context.Background(), exactTrack, testRelease, 1)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res != nil {
		t.Fatalf("Expected rejection, got %+v", res)
	}

	row, _ := db.GetMatchedTrack(100, "A1", platform.Spotify)
	if row == nil || row.Found() {
		t.Fatalf("expected not-found row, got %+v", row)
	}
	if row.Confidence <= 0 || row.Confidence >= DefaultMinConfidence {
		t.Errorf("stored best confidence = %.4f, expected in (0, %.2f)", row.Confidence, DefaultMinConfidence)
	}
}

func TestResolveFallbackFlagged(t *testing.T) {
	db := setupTestStore(t)
	extended := catalog.Track{Position: "A2", Title: "Energy Flow (Extended Mix)", Artist: "Artist X", ReleaseID: 100}
	searcher := &fakeSearcher{results: map[string][]platform.Candidate{
		// Right title, wrong artist: accepted but weak
		"Artist X Energy Flow": {{ID: "sp2", Title: "Energy Flow", Artist: "Sasha", Popularity: 20, MaxPopularity: 100}},
	}}
	r := newResolver(db, searcher)

	res, err := r.Resolve(context.Background(), extended, testRelease, 1)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res == nil || res.TrackID != "sp2" {
		t.Fatalf("Expected fallback match sp2, got %+v", res)
	}
	if res.Confidence < DefaultMinConfidence || res.Confidence >= 0.50 {
		t.Errorf("fallback match with confidence %.4f should be accepted and flagged", res.Confidence)
	}

	expected := []string{
		"Artist X Energy Flow Extended Mix",
		"Energy Flow Extended Mix",
		"Artist X Energy Flow",
	}
	if len(searcher.queries) != len(expected) {
		t.Fatalf("queries = %q, expected %q", searcher.queries, expected)
	}
	for i := range expected {
		if searcher.queries[i] != expected[i] {
			t.Errorf("query %d = %q, expected %q", i, searcher.queries[i], expected[i])
		}
	}
}

func TestResolveRemixNeverFallsBack(t *testing.T) {
	db := setupTestStore(t)
	remix := catalog.Track{Position: "A3", Title: "Blue Monday (Hardfloor Remix)", Artist: "New Order", ReleaseID: 100}
	searcher := &fakeSearcher{results: map[string][]platform.Candidate{
		"New Order Blue Monday": {{ID: "orig", Title: "Blue Monday", Artist: "New Order"}},
	}}
	r := newResolver(db, searcher)

	res, err := r.Resolve(context.Background(), remix, testRelease, 1)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res != nil {
		t.Errorf("remix must not match the original via fallback, got %+v", res)
	}
	for _, q := range searcher.queries {
		if q == "New Order Blue Monday" {
			t.Errorf("fallback query was issued for a remix: %q", searcher.queries)
		}
	}
}

func TestResolveShortCircuit(t *testing.T) {
	db := setupTestStore(t)
	labelled := catalog.Release{ID: 200, Artist: "New Order", Label: "Factory"}
	remix := catalog.Track{Position: "A1", Title: "Blue Monday (Hardfloor Remix)", Artist: "New Order", ReleaseID: 200}
	searcher := &fakeSearcher{results: map[string][]platform.Candidate{
		"New Order Blue Monday Hardfloor Remix": {{
			ID: "hit", Title: "Blue Monday (Hardfloor Remix)", Artist: "New Order",
			Popularity: 100, MaxPopularity: 100, Verified: true,
		}},
	}}
	r := newResolver(db, searcher)

	res, err := r.Resolve(context.Background(), remix, labelled, 1)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res == nil || res.TrackID != "hit" {
		t.Fatalf("expected hit, got %+v", res)
	}
	if searcher.calls() != 1 {
		t.Errorf("expected short-circuit after 1 query, got %q", searcher.queries)
	}
}

func TestResolveDeduplicatesAcrossQueries(t *testing.T) {
	db := setupTestStore(t)
	remix := catalog.Track{Position: "A1", Title: "Blue Monday (Hardfloor Remix)", Artist: "New Order", ReleaseID: 300}
	weak := platform.Candidate{ID: "weak", Title: "Blue Monday (Hardfloor Remix)", Artist: "Hardfloor"}
	searcher := &fakeSearcher{results: map[string][]platform.Candidate{
		"New Order Blue Monday Hardfloor Remix": {weak},
		"Blue Monday Hardfloor Remix":           {weak},
		"Hardfloor Blue Monday":                 {weak, {ID: "better", Title: "Blue Monday (Hardfloor Remix)", Artist: "New Order"}},
	}}
	r := newResolver(db, searcher)

	res, err := r.Resolve(context.Background(), remix, catalog.Release{ID: 300}, 1)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res == nil || res.TrackID != "better" {
		t.Fatalf("expected best candidate across queries, got %+v", res)
	}
	if searcher.calls() != 3 {
		t.Errorf("expected 3 queries, got %q", searcher.queries)
	}
}

func TestResolveSearchErrorLeavesStoreUntouched(t *testing.T) {
	db := setupTestStore(t)
	searcher := &fakeSearcher{err: errors.New("HTTP 503")}
	r := newResolver(db, searcher)

	_, err := r.Resolve(context.Background(), exactTrack, testRelease, 1)
	if !errors.Is(err, ErrSearch) {
		t.Fatalf("Resolve error = %v, expected ErrSearch", err)
	}

	row, _ := db.GetMatchedTrack(100, "A1", platform.Spotify)
	if row != nil {
		t.Errorf("search error wrote a row: %+v", row)
	}
	missing, _ := db.GetMissingTracks("")
	if len(missing) != 0 {
		t.Errorf("search error wrote missing tracks: %+v", missing)
	}
}

func TestResolveRejectedNeverReturned(t *testing.T) {
	db := setupTestStore(t)
	searcher := &fakeSearcher{results: map[string][]platform.Candidate{
		"Artist X Energy Flow": {exactHit},
	}}
	r := newResolver(db, searcher)
	ctx := context.Background()

	if _, err := r.Resolve(ctx, exactTrack, testRelease, 1); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	row, _ := db.GetMatchedTrack(100, "A1", platform.Spotify)
	if err := db.UpdateReviewStatus(row.ID, store.ReviewRejected); err != nil {
		t.Fatalf("UpdateReviewStatus failed: %v", err)
	}

	res, err := r.Resolve(ctx, exactTrack, testRelease, 1)
	if err != nil {
		t.Fatalf("Resolve after reject failed: %v", err)
	}
	if res != nil {
		t.Errorf("rejected track came back: %+v", res)
	}
	if searcher.calls() < 2 {
		t.Error("rejected row should force a new search")
	}

	row, _ = db.GetMatchedTrack(100, "A1", platform.Spotify)
	if row.ReviewStatus != store.ReviewRejected || row.PlatformTrackID != "sp1" {
		t.Errorf("rejection was not preserved: %+v", row)
	}
}

func TestResolveRejectedReplacedByOtherCandidate(t *testing.T) {
	db := setupTestStore(t)
	alternative := exactHit
	alternative.ID = "sp9"
	alternative.Verified = false
	searcher := &fakeSearcher{results: map[string][]platform.Candidate{
		"Artist X Energy Flow": {exactHit, alternative},
	}}
	r := newResolver(db, searcher)
	ctx := context.Background()

	r.Resolve(ctx, exactTrack, testRelease, 1)
	row, _ := db.GetMatchedTrack(100, "A1", platform.Spotify)
	db.UpdateReviewStatus(row.ID, store.ReviewRejected)

	res, err := r.Resolve(ctx, exactTrack, testRelease, 1)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res == nil || res.TrackID != "sp9" {
		t.Fatalf("expected the alternative candidate, got %+v", res)
	}

	row, _ = db.GetMatchedTrack(100, "A1", platform.Spotify)
	if row.PlatformTrackID != "sp9" || row.ReviewStatus != store.ReviewPending {
		t.Errorf("unexpected row after re-match: %+v", row)
	}
}

func TestResolveApprovedNeverExpires(t *testing.T) {
	db := setupTestStore(t)
	searcher := &fakeSearcher{results: map[string][]platform.Candidate{
		"Artist X Energy Flow": {exactHit},
	}}
	r := New(&Config{Store: db, Searcher: searcher, Destination: platform.Spotify, MaxAge: 24 * time.Hour})
	ctx := context.Background()

	r.Resolve(ctx, exactTrack, testRelease, 1)
	row, _ := db.GetMatchedTrack(100, "A1", platform.Spotify)
	db.UpdateReviewStatus(row.ID, store.ReviewApproved)

	db.SetClock(func() time.Time { return time.Now().Add(90 * 24 * time.Hour) })
	calls := searcher.calls()

	res, err := r.Resolve(ctx, exactTrack, testRelease, 1)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res == nil || !res.FromCache || !res.Approved {
		t.Errorf("approved row should be an approved cache hit, got %+v", res)
	}
	if searcher.calls() != calls {
		t.Error("approved row triggered a search")
	}
}

func TestResolveExpiredRowSearchesAgain(t *testing.T) {
	db := setupTestStore(t)
	searcher := &fakeSearcher{results: map[string][]platform.Candidate{
		"Artist X Energy Flow": {exactHit},
	}}
	r := New(&Config{Store: db, Searcher: searcher, Destination: platform.Spotify, MaxAge: 24 * time.Hour})
	ctx := context.Background()

	r.Resolve(ctx, exactTrack, testRelease, 1)
	db.SetClock(func() time.Time { return time.Now().Add(48 * time.Hour) })
	calls := searcher.calls()

	res, err := r.Resolve(ctx, exactTrack, testRelease, 1)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res == nil || res.FromCache {
		t.Errorf("expired row should be re-searched, got %+v", res)
	}
	if searcher.calls() == calls {
		t.Error("expired row did not trigger a search")
	}
}

func TestResolveAcceptClearsMissing(t *testing.T) {
	db := setupTestStore(t)
	searcher := &fakeSearcher{}
	r := newResolver(db, searcher)
	ctx := context.Background()

	r.Resolve(ctx, exactTrack, testRelease, 1)
	if missing, _ := db.GetMissingTracks(platform.Spotify); len(missing) != 1 {
		t.Fatalf("expected 1 missing track, got %d", len(missing))
	}

	// The not-found row is not a cache hit, so the next run searches again
	searcher.results = map[string][]platform.Candidate{"Artist X Energy Flow": {exactHit}}
	res, err := r.Resolve(ctx, exactTrack, testRelease, 1)
	if err != nil || res == nil {
		t.Fatalf("Resolve = %+v, %v", res, err)
	}
	if missing, _ := db.GetMissingTracks(platform.Spotify); len(missing) != 0 {
		t.Errorf("missing track not cleared after match: %+v", missing)
	}
}

func TestNewDefaults(t *testing.T) {
	r := New(&Config{})
	if r.minConfidence != DefaultMinConfidence {
		t.Errorf("minConfidence = %v, expected %v", r.minConfidence, DefaultMinConfidence)
	}
	if r.shortCircuit != DefaultShortCircuit || r.maxQueries != DefaultMaxQueries || r.searchLimit != DefaultSearchLimit {
		t.Errorf("unexpected search defaults: %+v", r)
	}
	if r.weights.Artist != 0.45 {
		t.Errorf("expected default weights, got %+v", r.weights)
	}
}
