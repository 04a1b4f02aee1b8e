package review

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/franz/crate-sync/internal/platform"
	"github.com/franz/crate-sync/internal/store"
	"github.com/franz/crate-sync/internal/util"
)

//go:embed templates/*.html
var templates embed.FS

var indexTemplate = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"percent":    func(f float64) string { return strconv.Itoa(int(f*100+0.5)) + "%" },
	"trackURL":   func(m *store.MatchedTrack) string { return platform.TrackURL(m.Destination, m.PlatformTrackID) },
	"releaseURL": DiscogsReleaseURL,
}).ParseFS(templates, "templates/index.html"))

// Server is the review web UI
type Server struct {
	service *Service
	router  *chi.Mux
}

// indexData feeds templates/index.html
type indexData struct {
	Tracks      []*store.MatchedTrack
	Total       int
	Counts      map[string]int
	Destination platform.Destination
	Message     string
}

// NewServer creates the review web UI with all routes configured
func NewServer(service *Service) *Server {
	s := &Server{
		service: service,
		router:  chi.NewRouter(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(logRequests)

	s.router.Get("/", s.handleIndex)
	s.router.Post("/approve/{id}", s.handleApprove)
	s.router.Post("/reject/{id}", s.handleReject)
	s.router.Post("/correct/{id}", s.handleCorrect)
	s.router.Post("/approve-all", s.handleApproveAll)
	s.router.Get("/track/{id}", s.handleTrack)

	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves the UI on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		util.DebugLog("review: %s %s %d (%v)", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond))
	})
}

// handleIndex lists flagged tracks.
// GET /?destination=spotify
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	dest, ok := destinationParam(w, r)
	if !ok {
		return
	}

	tracks, err := s.service.ListFlagged(dest)
	if err != nil {
		writeError(w, err)
		return
	}

	data := indexData{
		Tracks:      tracks,
		Total:       len(tracks),
		Counts:      make(map[string]int),
		Destination: dest,
		Message:     r.URL.Query().Get("msg"),
	}
	for _, t := range tracks {
		data.Counts[string(t.Destination)]++
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		util.ErrorLog("Failed to render review page: %v", err)
	}
}

// handleApprove approves one match.
// POST /approve/{id}
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.service.Approve(id); err != nil {
		writeError(w, err)
		return
	}
	redirectHome(w, r, "")
}

// handleReject rejects one match.
// POST /reject/{id}
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.service.Reject(id); err != nil {
		writeError(w, err)
		return
	}
	redirectHome(w, r, "")
}

// handleCorrect replaces a match with the form field "ref".
// POST /correct/{id}
func (s *Server) handleCorrect(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	if _, err := s.service.Correct(id, r.PostForm.Get("ref")); err != nil {
		writeError(w, err)
		return
	}
	redirectHome(w, r, "")
}

// handleApproveAll approves everything currently listed.
// POST /approve-all?destination=spotify
func (s *Server) handleApproveAll(w http.ResponseWriter, r *http.Request) {
	dest, ok := destinationParam(w, r)
	if !ok {
		return
	}
	n, err := s.service.ApproveAll(dest)
	if err != nil {
		writeError(w, err)
		return
	}
	redirectHome(w, r, strconv.Itoa(n)+" tracks approved")
}

// handleTrack returns one match as JSON.
// GET /track/{id}
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	details, err := s.service.Track(id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(details); err != nil {
		util.ErrorLog("Failed to encode track %d: %v", id, err)
	}
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid track id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func destinationParam(w http.ResponseWriter, r *http.Request) (platform.Destination, bool) {
	s := r.URL.Query().Get("destination")
	if s == "" {
		return "", true
	}
	dest, err := platform.ParseDestination(s)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return dest, true
}

// redirectHome sends the browser back to the list, keeping its filter
func redirectHome(w http.ResponseWriter, r *http.Request, msg string) {
	q := url.Values{}
	if dest := r.URL.Query().Get("destination"); dest != "" {
		q.Set("destination", dest)
	}
	if msg != "" {
		q.Set("msg", msg)
	}
	target := "/"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, util.ErrNotFound):
		http.Error(w, "Track not found", http.StatusNotFound)
	case errors.Is(err, util.ErrInvalidTrackRef):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		util.ErrorLog("Review request failed: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
