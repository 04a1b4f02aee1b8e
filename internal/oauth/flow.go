package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/franz/crate-sync/internal/util"
)

// Flow is an authorization code provider. *oauth2.Config satisfies it.
type Flow interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

// ErrStateMismatch means the callback did not come from our request
var ErrStateMismatch = errors.New("oauth state mismatch")

type callbackResult struct {
	token *oauth2.Token
	err   error
}

// Authorize runs the authorization code flow with PKCE. It serves the
// callback on redirectURI's host and path, hands the authorization URL to
// open and waits for the browser to come back.
func Authorize(ctx context.Context, flow Flow, redirectURI string, open func(authURL string) error) (*oauth2.Token, error) {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid redirect URI %q: %w", redirectURI, util.ErrInvalidConfig)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	results := make(chan callbackResult, 1)

	r := chi.NewRouter()
	r.Get(path, func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()

		var res callbackResult
		switch {
		case q.Get("state") != state:
			res.err = ErrStateMismatch
		case q.Get("error") != "":
			res.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
		case q.Get("code") == "":
			res.err = fmt.Errorf("callback has no authorization code")
		default:
			res.token, res.err = flow.Exchange(req.Context(), q.Get("code"), oauth2.VerifierOption(verifier))
		}

		if res.err != nil {
			http.Error(w, "Authorization failed: "+res.err.Error(), http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "Authorization complete. You can close this window.")
		}

		select {
		case results <- res:
		default:
		}
	})

	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", u.Host, err)
	}
	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go srv.Serve(ln)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	authURL := flow.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
	util.DebugLog("Waiting for OAuth callback on %s", redirectURI)
	if err := open(authURL); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		return res.token, res.err
	}
}
