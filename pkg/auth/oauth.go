// ABOUTME: OAuth 2.0 token handling for one calendar provider
// ABOUTME: Caches tokens on disk, persists refreshes, and exchanges auth codes

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// ErrNotAuthenticated means no usable token is cached for the provider
var ErrNotAuthenticated = errors.New("not authenticated")

// oauthState is sent through the consent redirect
const oauthState = "calendar-mcp"

// Authenticator owns the OAuth config and token file of a single provider
type Authenticator struct {
	provider  Provider
	tokenPath string
	config    *oauth2.Config
}

// NewGoogleAuthenticator creates an authenticator from a Google credentials.json
func NewGoogleAuthenticator(credentialsPath, tokenPath string) (*Authenticator, error) {
	config, err := googleConfig(credentialsPath)
	if err != nil {
		return nil, err
	}
	return &Authenticator{provider: Google, tokenPath: tokenPath, config: config}, nil
}

// NewMicrosoftAuthenticator creates an authenticator for an Azure AD app registration
func NewMicrosoftAuthenticator(app MicrosoftApp, tokenPath string) (*Authenticator, error) {
	config, err := microsoftConfig(app)
	if err != nil {
		return nil, err
	}
	return &Authenticator{provider: Microsoft, tokenPath: tokenPath, config: config}, nil
}

// Provider returns the provider this authenticator signs in to
func (a *Authenticator) Provider() Provider {
	return a.provider
}

// GetClientIfAuthenticated returns an HTTP client backed by the cached token,
// or nil when nothing is cached yet. It never starts an interactive flow.
func (a *Authenticator) GetClientIfAuthenticated(ctx context.Context) (*http.Client, error) {
	token, err := a.loadToken()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to read cached %s token: %w", a.provider, err)
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil, nil
	}

	source := NewPersistentTokenSource(a.config.TokenSource(ctx, token), a.saveToken)
	return oauth2.NewClient(ctx, source), nil
}

// Authenticated reports whether a token file exists with some credential in it
func (a *Authenticator) Authenticated() bool {
	token, err := a.loadToken()
	if err != nil {
		return false
	}
	return token.AccessToken != "" || token.RefreshToken != ""
}

// loadToken reads the cached token from disk
func (a *Authenticator) loadToken() (token *oauth2.Token, err error) {
	f, err := os.Open(a.tokenPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	token = &oauth2.Token{}
	err = json.NewDecoder(f).Decode(token)
	return token, err
}

// saveToken writes the token through a 0600 temp file and renames it into place
func (a *Authenticator) saveToken(token *oauth2.Token) error {
	dir := filepath.Dir(a.tokenPath)

	tmpFile, err := createTokenTemp(a.tokenPath)
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmpFile.Chmod(0600); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to set temp file permissions: %w", err)
	}
	if err := json.NewEncoder(tmpFile).Encode(token); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, a.tokenPath); err != nil {
		return fmt.Errorf("failed to move token into %s: %w", dir, err)
	}

	committed = true
	return nil
}

// createTokenTemp makes the token directory and a temp file beside the token.
// The directory is recreated once if it vanished in between.
func createTokenTemp(tokenPath string) (*os.File, error) {
	dir := filepath.Dir(tokenPath)
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if err := EnsureDir(tokenPath); err != nil {
			return nil, fmt.Errorf("failed to create token directory: %w", err)
		}
		f, err := os.CreateTemp(dir, ".token-*.tmp")
		if err == nil {
			return f, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to create temp file: %w", lastErr)
}

// RevokeToken deletes the cached token. A missing file is not an error.
func (a *Authenticator) RevokeToken() error {
	if err := os.Remove(a.tokenPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// PersistentTokenSource wraps an oauth2.TokenSource and writes every new
// access token back to disk so refreshes survive restarts.
type PersistentTokenSource struct {
	source    oauth2.TokenSource
	lastToken *oauth2.Token
	saveFn    func(*oauth2.Token) error
	mu        sync.Mutex
}

// NewPersistentTokenSource creates a TokenSource that saves tokens when they change
func NewPersistentTokenSource(source oauth2.TokenSource, saveFn func(*oauth2.Token) error) *PersistentTokenSource {
	return &PersistentTokenSource{
		source: source,
		saveFn: saveFn,
	}
}

// Token returns a valid token, saving it if the access token changed
func (p *PersistentTokenSource) Token() (*oauth2.Token, error) {
	token, err := p.source.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastToken == nil || token.AccessToken != p.lastToken.AccessToken {
		// A failed save still hands back the token
		_ = p.saveFn(token)
		p.lastToken = token
	}

	return token, nil
}

// TokenInfo describes the cached token without contacting the provider
type TokenInfo struct {
	Valid       bool          `json:"valid"`
	AccessToken string        `json:"access_token"` // masked
	Expiry      time.Time     `json:"expiry"`
	ExpiresIn   time.Duration `json:"expires_in"`
	HasRefresh  bool          `json:"has_refresh"`
}

// TokenInfo reads the cached token. A missing or unreadable file yields Valid=false.
func (a *Authenticator) TokenInfo() (*TokenInfo, error) {
	token, err := a.loadToken()
	if err != nil {
		return &TokenInfo{Valid: false}, nil
	}

	info := &TokenInfo{
		Valid:       token.AccessToken != "" && token.Valid(),
		AccessToken: maskToken(token.AccessToken),
		Expiry:      token.Expiry,
		HasRefresh:  token.RefreshToken != "",
	}
	if !token.Expiry.IsZero() {
		info.ExpiresIn = time.Until(token.Expiry)
	}
	return info, nil
}

// maskToken keeps the first and last 4 characters, e.g. "ya29...7890"
func maskToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// AuthURL returns the consent URL the user opens in a browser
func (a *Authenticator) AuthURL() string {
	return a.config.AuthCodeURL(oauthState, oauth2.AccessTypeOffline)
}

// ExchangeCode trades an authorization code for tokens and caches them
func (a *Authenticator) ExchangeCode(ctx context.Context, code string) error {
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("token exchange failed: %w", err)
	}
	return a.saveToken(token)
}
