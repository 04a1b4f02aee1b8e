package spotify

import (
	"context"
	"errors"
	"fmt"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/franz/crate-sync/internal/oauth"
	"github.com/franz/crate-sync/internal/util"
)

// Scopes are the permissions a sync needs
var Scopes = []string{
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopeUserLibraryRead,
}

// Credentials identify the registered Spotify app
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// authFlow adapts the Spotify authenticator to oauth.Flow
type authFlow struct {
	*spotifyauth.Authenticator
}

func (a authFlow) AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string {
	return a.AuthURL(state, opts...)
}

// NewFlow returns the interactive login flow for the app
func NewFlow(cred Credentials) oauth.Flow {
	return authFlow{spotifyauth.New(
		spotifyauth.WithClientID(cred.ClientID),
		spotifyauth.WithClientSecret(cred.ClientSecret),
		spotifyauth.WithRedirectURL(cred.RedirectURI),
		spotifyauth.WithScopes(Scopes...),
	)}
}

func oauthConfig(cred Credentials) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		RedirectURL:  cred.RedirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: spotifyauth.TokenURL,
		},
	}
}

// NewFromTokenFile builds a client from a token saved by the login flow.
// Refreshed tokens are written back to the file.
func NewFromTokenFile(ctx context.Context, cred Credentials, file *oauth.TokenFile) (*Client, error) {
	tok, err := file.Load()
	if errors.Is(err, util.ErrNotFound) {
		return nil, fmt.Errorf("not logged in to Spotify, run 'cratesync auth spotify': %w", util.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}

	src := oauth.PersistingTokenSource(tok, oauthConfig(cred).TokenSource(ctx, tok), file)
	return New(&Config{HTTPClient: oauth2.NewClient(ctx, src)}), nil
}
