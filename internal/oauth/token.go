// Package oauth persists platform tokens and runs the interactive
// authorization code flow.
package oauth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/oauth2"

	"github.com/franz/crate-sync/internal/util"
)

// TokenFile stores one token as JSON
type TokenFile struct {
	fs   afero.Fs
	path string
}

// NewTokenFile creates a token file at path on fs
func NewTokenFile(fs afero.Fs, path string) *TokenFile {
	return &TokenFile{fs: fs, path: path}
}

// Path returns the file path
func (f *TokenFile) Path() string {
	return f.path
}

// Load reads the token. A missing file wraps util.ErrNotFound.
func (f *TokenFile) Load() (*oauth2.Token, error) {
	data, err := afero.ReadFile(f.fs, f.path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("token file %s: %w", f.path, util.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token %s: %w", f.path, err)
	}
	return &tok, nil
}

// Save writes the token readable by the owner only
func (f *TokenFile) Save(tok *oauth2.Token) error {
	if err := f.fs.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	if err := afero.WriteFile(f.fs, f.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return nil
}

// persistingSource saves every token it hands out that differs from the
// last one saved
type persistingSource struct {
	mu   sync.Mutex
	src  oauth2.TokenSource
	file *TokenFile
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last {
		if err := s.file.Save(tok); err != nil {
			util.WarnLog("Failed to persist refreshed token: %v", err)
		} else {
			util.DebugLog("Saved refreshed token to %s", s.file.Path())
			s.last = tok.AccessToken
		}
	}
	return tok, nil
}

// PersistingTokenSource wraps src so refreshed tokens are written back to
// file. initial is the token src was built from.
func PersistingTokenSource(initial *oauth2.Token, src oauth2.TokenSource, file *TokenFile) oauth2.TokenSource {
	last := ""
	if initial != nil {
		last = initial.AccessToken
	}
	return oauth2.ReuseTokenSource(initial, &persistingSource{src: src, file: file, last: last})
}
