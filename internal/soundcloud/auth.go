package soundcloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/franz/crate-sync/internal/oauth"
	"github.com/franz/crate-sync/internal/util"
)

// OAuth 2.1 endpoints
const (
	AuthURL  = "https://secure.soundcloud.com/authorize"
	TokenURL = "https://secure.soundcloud.com/oauth/token"
)

// Credentials identify the registered SoundCloud app
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// OAuthConfig returns the oauth2 configuration for the app
func OAuthConfig(cred Credentials) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		RedirectURL:  cred.RedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   AuthURL,
			TokenURL:  TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// NewFlow returns the interactive login flow for the app
func NewFlow(cred Credentials) oauth.Flow {
	return OAuthConfig(cred)
}

// tokenTransport authorizes requests with SoundCloud's "OAuth" scheme
type tokenTransport struct {
	src  oauth2.TokenSource
	base http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok, err := t.src.Token()
	if err != nil {
		return nil, err
	}
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "OAuth "+tok.AccessToken)
	return t.base.RoundTrip(r)
}

// NewHTTPClient returns a client that authorizes every request from src
func NewHTTPClient(src oauth2.TokenSource, base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: &tokenTransport{src: src, base: base},
	}
}

// NewFromTokenFile builds a client from a token saved by the login flow.
// Refreshed tokens are written back to the file.
func NewFromTokenFile(ctx context.Context, cred Credentials, file *oauth.TokenFile) (*Client, error) {
	tok, err := file.Load()
	if errors.Is(err, util.ErrNotFound) {
		return nil, fmt.Errorf("not logged in to SoundCloud, run 'cratesync auth soundcloud': %w", util.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}

	src := oauth.PersistingTokenSource(tok, OAuthConfig(cred).TokenSource(ctx, tok), file)
	return New(&Config{HTTPClient: NewHTTPClient(src, nil)}), nil
}
