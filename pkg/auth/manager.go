// ABOUTME: Multi-provider sign-in manager used by the MCP tools and CLI
// ABOUTME: Tracks which providers are configured, authenticated, or simulated

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/harper/calendar-mcp/pkg/logging"
)

// ErrNotConfigured means the provider has no OAuth client settings
var ErrNotConfigured = errors.New("provider not configured")

// Login status values
const (
	StatusValid        = "valid"
	StatusAuthRequired = "auth_required"
)

// Options configures a Manager
type Options struct {
	// CredentialsPath is the Google credentials.json location
	CredentialsPath string
	// TokenDir holds <provider>_token.json files
	TokenDir  string
	Microsoft MicrosoftApp

	// ISH replaces real OAuth with a fake bearer-token client for every provider
	ISH     bool
	ISHUser string

	Logger *slog.Logger
}

// Manager owns one Authenticator per configured provider
type Manager struct {
	authenticators map[Provider]*Authenticator
	setupErrs      map[Provider]error
	ish            bool
	ishUser        string
	logger         *slog.Logger
}

// NewManager builds authenticators for every provider it can. A provider
// whose settings are missing is kept as unconfigured rather than failing.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	m := &Manager{
		authenticators: make(map[Provider]*Authenticator),
		setupErrs:      make(map[Provider]error),
		ish:            opts.ISH,
		ishUser:        opts.ISHUser,
		logger:         logger,
	}
	if m.ish {
		return m
	}

	tokenDir := TokenDir(opts.TokenDir)

	if a, err := NewGoogleAuthenticator(CredentialsPath(opts.CredentialsPath), TokenPath(tokenDir, Google)); err != nil {
		m.setupErrs[Google] = err
	} else {
		m.authenticators[Google] = a
	}

	if a, err := NewMicrosoftAuthenticator(opts.Microsoft, TokenPath(tokenDir, Microsoft)); err != nil {
		m.setupErrs[Microsoft] = err
	} else {
		m.authenticators[Microsoft] = a
	}

	for p, err := range m.setupErrs {
		logger.Debug("provider unavailable", logging.Provider(string(p)), logging.Err(err))
	}
	return m
}

// ISH reports whether authentication is simulated
func (m *Manager) ISH() bool {
	return m.ish
}

func (m *Manager) authenticator(p Provider) (*Authenticator, error) {
	if a, ok := m.authenticators[p]; ok {
		return a, nil
	}
	if err, ok := m.setupErrs[p]; ok {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotConfigured, p, err)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownProvider, p)
}

// LoginStatus is the outcome of starting a sign-in
type LoginStatus struct {
	Provider Provider `json:"provider"`
	Status   string   `json:"status"`
	AuthURL  string   `json:"auth_url,omitempty"`
	Message  string   `json:"message"`
}

// Login returns the consent URL for p, or reports that the cached token is
// still valid unless force is set.
func (m *Manager) Login(p Provider, force bool) (*LoginStatus, error) {
	if m.ish {
		return &LoginStatus{Provider: p, Status: StatusValid, Message: "ISH mode - auth is simulated, no action needed"}, nil
	}

	a, err := m.authenticator(p)
	if err != nil {
		return nil, err
	}

	if !force {
		if info, err := a.TokenInfo(); err == nil && info.Valid {
			return &LoginStatus{
				Provider: p,
				Status:   StatusValid,
				Message:  "current authentication is valid - use force=true to re-authenticate",
			}, nil
		}
	}

	return &LoginStatus{
		Provider: p,
		Status:   StatusAuthRequired,
		AuthURL:  a.AuthURL(),
		Message: "visit the auth_url in a browser and authorize the app. After authorizing, copy the FULL URL " +
			"from your browser (it will look like http://localhost/?code=...) and provide it to auth_complete",
	}, nil
}

// Complete exchanges the code (or full redirect URL) for a token and caches it
func (m *Manager) Complete(ctx context.Context, p Provider, codeOrURL string) error {
	if m.ish {
		return nil
	}

	a, err := m.authenticator(p)
	if err != nil {
		return err
	}

	code := ExtractAuthCode(codeOrURL)
	if code == "" {
		return errors.New("authorization code cannot be empty")
	}

	if err := a.ExchangeCode(ctx, code); err != nil {
		m.logger.Warn("auth exchange failed", logging.Provider(string(p)), logging.Err(err))
		return err
	}
	m.logger.Info("provider connected", logging.Provider(string(p)))
	return nil
}

// AuthState summarizes one provider for status displays
type AuthState struct {
	Provider      Provider   `json:"provider"`
	Configured    bool       `json:"configured"`
	Authenticated bool       `json:"authenticated"`
	Token         *TokenInfo `json:"token,omitempty"`
	Message       string     `json:"message"`
}

// Status inspects the cached token of p without network calls
func (m *Manager) Status(p Provider) AuthState {
	if m.ish {
		return AuthState{Provider: p, Configured: true, Authenticated: true, Message: "ISH mode - auth is simulated"}
	}

	a, err := m.authenticator(p)
	if err != nil {
		return AuthState{Provider: p, Message: err.Error()}
	}

	info, _ := a.TokenInfo()
	state := AuthState{
		Provider:      p,
		Configured:    true,
		Authenticated: a.Authenticated(),
		Token:         info,
	}
	switch {
	case !state.Authenticated:
		state.Message = fmt.Sprintf("not connected - run auth_login with provider=%s", p)
	case info.Valid:
		state.Message = "authentication is valid"
	case info.HasRefresh:
		state.Message = "access token expired - it will be refreshed on next use"
	default:
		state.Message = "access token expired and no refresh token - sign in again"
	}
	return state
}

// Logout removes the cached token of p. removed is false when nothing was cached.
func (m *Manager) Logout(p Provider) (removed bool, err error) {
	if m.ish {
		return false, nil
	}

	a, err := m.authenticator(p)
	if err != nil {
		return false, err
	}

	removed = a.Authenticated()
	if err := a.RevokeToken(); err != nil {
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}
	m.logger.Info("provider disconnected", logging.Provider(string(p)))
	return removed, nil
}

// Authenticated reports whether p can be used without a new sign-in
func (m *Manager) Authenticated(p Provider) bool {
	if m.ish {
		return true
	}
	a, err := m.authenticator(p)
	if err != nil {
		return false
	}
	return a.Authenticated()
}

// Client returns an authorized HTTP client for p, or ErrNotAuthenticated
func (m *Manager) Client(ctx context.Context, p Provider) (*http.Client, error) {
	if m.ish {
		return NewFakeClient(m.ishUser), nil
	}

	a, err := m.authenticator(p)
	if err != nil {
		return nil, err
	}

	client, err := a.GetClientIfAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("%w with %s", ErrNotAuthenticated, p.Title())
	}
	return client, nil
}

// ExtractAuthCode pulls the code parameter out of a redirect URL such as
// http://localhost/?code=4/0AfJohX...&scope=... and returns anything else as-is.
func ExtractAuthCode(codeOrURL string) string {
	codeOrURL = strings.TrimSpace(codeOrURL)
	if strings.HasPrefix(codeOrURL, "http://") || strings.HasPrefix(codeOrURL, "https://") {
		if u, err := url.Parse(codeOrURL); err == nil {
			if code := u.Query().Get("code"); code != "" {
				return code
			}
		}
	}
	return codeOrURL
}
