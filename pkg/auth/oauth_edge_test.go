// ABOUTME: Edge case tests for the per-provider token cache and code exchange
// ABOUTME: Covers malformed token files, permissions, refresh persistence and Azure AD token responses

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// newCacheAuthenticator builds an authenticator for provider whose token lives in dir
func newCacheAuthenticator(t *testing.T, provider Provider, dir string) *Authenticator {
	t.Helper()
	tokenPath := TokenPath(dir, provider)

	var (
		a   *Authenticator
		err error
	)
	switch provider {
	case Google:
		a, err = NewGoogleAuthenticator(createValidCredentialsFile(t, t.TempDir()), tokenPath)
	case Microsoft:
		a, err = NewMicrosoftAuthenticator(MicrosoftApp{ClientID: "app-id", ClientSecret: "app-secret", TenantID: "contoso"}, tokenPath)
	}
	require.NoError(t, err)
	return a
}

func TestLoadToken_MalformedFiles(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantErr     bool
		wantAccess  string
		wantRefresh string
	}{
		{name: "truncated json", content: `{"access_token": "foo", "malformed": `, wantErr: true},
		{name: "empty file", content: "", wantErr: true},
		{name: "unrelated json", content: `{"not": "a", "token": "structure"}`},
		{name: "refresh only", content: `{"refresh_token": "0.AAAA-refresh"}`, wantRefresh: "0.AAAA-refresh"},
	}

	for _, provider := range Providers {
		for _, tt := range tests {
			t.Run(string(provider)+"/"+tt.name, func(t *testing.T) {
				dir := t.TempDir()
				a := newCacheAuthenticator(t, provider, dir)
				require.NoError(t, os.WriteFile(a.tokenPath, []byte(tt.content), 0600))

				token, err := a.loadToken()
				if tt.wantErr {
					assert.Error(t, err)
					assert.False(t, a.Authenticated())
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tt.wantAccess, token.AccessToken)
				assert.Equal(t, tt.wantRefresh, token.RefreshToken)
				assert.Equal(t, tt.wantRefresh != "", a.Authenticated())
			})
		}
	}
}

func TestLoadToken_NonExistentFile(t *testing.T) {
	a := newCacheAuthenticator(t, Microsoft, t.TempDir())

	token, err := a.loadToken()
	assert.Nil(t, token)
	assert.True(t, os.IsNotExist(err))

	client, err := a.GetClientIfAuthenticated(context.Background())
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestLoadToken_PermissionDenied(t *testing.T) {
	skipIfRoot(t)
	a := newCacheAuthenticator(t, Google, t.TempDir())
	require.NoError(t, os.WriteFile(a.tokenPath, []byte(`{"access_token": "test"}`), 0000))
	defer func() { _ = os.Chmod(a.tokenPath, 0600) }()

	_, err := a.loadToken()
	assert.Error(t, err)

	_, err = a.GetClientIfAuthenticated(context.Background())
	assert.ErrorContains(t, err, "unable to read cached google token")
}

func TestSaveToken_ProvidersKeepSeparateFiles(t *testing.T) {
	dir := t.TempDir()
	google := newCacheAuthenticator(t, Google, dir)
	ms := newCacheAuthenticator(t, Microsoft, dir)

	require.NoError(t, google.saveToken(&oauth2.Token{AccessToken: "ya29.google"}))
	require.NoError(t, ms.saveToken(&oauth2.Token{AccessToken: "eyJ0.graph", RefreshToken: "0.AAAA"}))

	for path, want := range map[string]string{
		filepath.Join(dir, "google_token.json"):    "ya29.google",
		filepath.Join(dir, "microsoft_token.json"): "eyJ0.graph",
	} {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var saved oauth2.Token
		require.NoError(t, json.Unmarshal(data, &saved))
		assert.Equal(t, want, saved.AccessToken)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), path)
	}

	require.NoError(t, ms.RevokeToken())
	assert.False(t, ms.Authenticated())
	assert.True(t, google.Authenticated(), "revoking one provider leaves the other signed in")
}

func TestSaveToken_OverwriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	a := newCacheAuthenticator(t, Microsoft, dir)

	require.NoError(t, a.saveToken(&oauth2.Token{AccessToken: "old"}))
	require.NoError(t, a.saveToken(&oauth2.Token{AccessToken: "new"}))

	token, err := a.loadToken()
	require.NoError(t, err)
	assert.Equal(t, "new", token.AccessToken)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "microsoft_token.json", entries[0].Name())
}

func TestSaveToken_CreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "tokens")
	a := newCacheAuthenticator(t, Microsoft, dir)

	require.NoError(t, a.saveToken(&oauth2.Token{AccessToken: "graph"}))
	assert.FileExists(t, filepath.Join(dir, "microsoft_token.json"))
}

func TestSaveToken_ReadOnlyDirectory(t *testing.T) {
	skipIfRoot(t)
	readOnlyDir := filepath.Join(t.TempDir(), "readonly")
	require.NoError(t, os.Mkdir(readOnlyDir, 0500))
	defer func() { _ = os.Chmod(readOnlyDir, 0700) }()

	a := newCacheAuthenticator(t, Google, readOnlyDir)
	assert.Error(t, a.saveToken(&oauth2.Token{AccessToken: "test-token"}))
}

func TestRevokeToken_NonExistentToken(t *testing.T) {
	for _, provider := range Providers {
		a := newCacheAuthenticator(t, provider, t.TempDir())
		assert.NoError(t, a.RevokeToken(), provider)
	}
}

func TestNewGoogleAuthenticator_BadCredentials(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"truncated json", `{"invalid": "json", `, "unable to parse credentials"},
		{"not an oauth client", `{"not": "oauth", "credentials": "here"}`, "unable to parse credentials"},
		{"empty file", "", "unable to parse credentials"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			credPath := filepath.Join(dir, "credentials.json")
			require.NoError(t, os.WriteFile(credPath, []byte(tt.content), 0600))

			a, err := NewGoogleAuthenticator(credPath, TokenPath(dir, Google))
			assert.Nil(t, a)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	a, err := NewGoogleAuthenticator("", "google_token.json")
	assert.Error(t, err)
	assert.Nil(t, a)
}

// sequenceTokenSource hands out tokens in order, repeating the last one
type sequenceTokenSource struct {
	tokens []*oauth2.Token
	index  int
	err    error
}

func (s *sequenceTokenSource) Token() (*oauth2.Token, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.index >= len(s.tokens) {
		return s.tokens[len(s.tokens)-1], nil
	}
	token := s.tokens[s.index]
	s.index++
	return token, nil
}

func TestPersistentTokenSource_SavesOnlyChangedTokens(t *testing.T) {
	a := newCacheAuthenticator(t, Microsoft, t.TempDir())
	first := &oauth2.Token{AccessToken: "eyJ0.first", RefreshToken: "0.AAAA"}
	second := &oauth2.Token{AccessToken: "eyJ0.second", RefreshToken: "0.AAAA"}

	saves := 0
	pts := NewPersistentTokenSource(&sequenceTokenSource{tokens: []*oauth2.Token{first, first, second, second}},
		func(tok *oauth2.Token) error {
			saves++
			return a.saveToken(tok)
		})

	for i := 0; i < 4; i++ {
		_, err := pts.Token()
		require.NoError(t, err)
	}
	assert.Equal(t, 2, saves)

	cached, err := a.loadToken()
	require.NoError(t, err)
	assert.Equal(t, "eyJ0.second", cached.AccessToken)
}

func TestPersistentTokenSource_Failures(t *testing.T) {
	t.Run("save error still returns token", func(t *testing.T) {
		pts := NewPersistentTokenSource(&sequenceTokenSource{tokens: []*oauth2.Token{{AccessToken: "test-token"}}},
			func(*oauth2.Token) error { return os.ErrPermission })

		tok, err := pts.Token()
		require.NoError(t, err)
		assert.Equal(t, "test-token", tok.AccessToken)
	})

	t.Run("source error propagates", func(t *testing.T) {
		pts := NewPersistentTokenSource(&sequenceTokenSource{err: os.ErrNotExist}, func(*oauth2.Token) error { return nil })

		_, err := pts.Token()
		assert.True(t, os.IsNotExist(err))
	})
}

func TestTokenInfo_Masking(t *testing.T) {
	a := newCacheAuthenticator(t, Microsoft, t.TempDir())

	for token, want := range map[string]string{
		"eyJ0eXAiOiJKV1QiLCJub25jZSI6Ij": "eyJ0...I6Ij",
		"short123":                        "short123",
		"abcdefghi":                       "abcd...fghi",
		"ab":                              "ab",
	} {
		require.NoError(t, a.saveToken(&oauth2.Token{AccessToken: token, Expiry: time.Now().Add(time.Hour)}))
		info, err := a.TokenInfo()
		require.NoError(t, err)
		assert.Equal(t, want, info.AccessToken, "masking failed for %s", token)
		assert.True(t, info.Valid)
	}

	require.NoError(t, a.RevokeToken())
	info, err := a.TokenInfo()
	require.NoError(t, err)
	assert.False(t, info.Valid)
	assert.Empty(t, info.AccessToken)
}

// azureTokenServer mimics the Azure AD v2 token endpoint for one tenant
type azureTokenServer struct {
	mu    sync.Mutex
	forms []map[string]string
	reply func(w http.ResponseWriter, grant string)
}

func (s *azureTokenServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/contoso/oauth2/v2.0/token" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	form := map[string]string{}
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}
	if id, _, ok := r.BasicAuth(); ok {
		form["client_id"] = id
	}
	s.mu.Lock()
	s.forms = append(s.forms, form)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	s.reply(w, form["grant_type"])
}

func (s *azureTokenServer) lastForm() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.forms) == 0 {
		return nil
	}
	return s.forms[len(s.forms)-1]
}

// newAzureAuthenticator points a Microsoft authenticator at an azureTokenServer
func newAzureAuthenticator(t *testing.T, reply func(w http.ResponseWriter, grant string)) (*Authenticator, *azureTokenServer) {
	t.Helper()
	azure := &azureTokenServer{reply: reply}
	srv := httptest.NewServer(azure)
	t.Cleanup(srv.Close)

	a, err := NewMicrosoftAuthenticator(MicrosoftApp{
		ClientID:     "app-id",
		ClientSecret: "app-secret",
		TenantID:     "contoso",
		RedirectURL:  "http://localhost:8400/callback",
	}, TokenPath(t.TempDir(), Microsoft))
	require.NoError(t, err)
	a.config.Endpoint.TokenURL = srv.URL + "/contoso/oauth2/v2.0/token"
	return a, azure
}

func TestMicrosoftExchangeCode_SavesAzureToken(t *testing.T) {
	a, azure := newAzureAuthenticator(t, func(w http.ResponseWriter, _ string) {
		_, _ = w.Write([]byte(`{"token_type":"Bearer","scope":"https://graph.microsoft.com/Calendars.ReadWrite",` +
			`"expires_in":3599,"ext_expires_in":3599,"access_token":"eyJ0eXAi.graph-token","refresh_token":"0.AAAA-refresh"}`))
	})

	require.NoError(t, a.ExchangeCode(context.Background(), "M.C507_BAY.2.U.code"))

	form := azure.lastForm()
	assert.Equal(t, "authorization_code", form["grant_type"])
	assert.Equal(t, "M.C507_BAY.2.U.code", form["code"])
	assert.Equal(t, "http://localhost:8400/callback", form["redirect_uri"])
	assert.Equal(t, "app-id", form["client_id"])

	assert.Equal(t, "microsoft_token.json", filepath.Base(a.tokenPath))
	info, err := a.TokenInfo()
	require.NoError(t, err)
	assert.True(t, info.Valid)
	assert.True(t, info.HasRefresh)
	assert.Equal(t, "eyJ0...oken", info.AccessToken)
	assert.WithinDuration(t, time.Now().Add(3599*time.Second), info.Expiry, time.Minute)
}

func TestMicrosoftExchangeCode_AzureError(t *testing.T) {
	a, _ := newAzureAuthenticator(t, func(w http.ResponseWriter, _ string) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"AADSTS70008: The provided authorization code or refresh token has expired.","error_codes":[70008]}`))
	})

	err := a.ExchangeCode(context.Background(), "expired-code")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token exchange failed")

	var retrieveErr *oauth2.RetrieveError
	require.True(t, errors.As(err, &retrieveErr))
	assert.Equal(t, "invalid_grant", retrieveErr.ErrorCode)
	assert.Contains(t, retrieveErr.ErrorDescription, "AADSTS70008")

	_, statErr := os.Stat(a.tokenPath)
	assert.True(t, os.IsNotExist(statErr), "failed exchange must not write a token")
}

func TestMicrosoftClient_RefreshesAndPersists(t *testing.T) {
	a, azure := newAzureAuthenticator(t, func(w http.ResponseWriter, grant string) {
		if grant != "refresh_token" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"unsupported_grant_type"}`))
			return
		}
		// Azure AD may omit refresh_token on refresh; the cached one must survive
		_, _ = w.Write([]byte(`{"token_type":"Bearer","expires_in":3599,"access_token":"eyJ0.refreshed-graph"}`))
	})
	require.NoError(t, a.saveToken(&oauth2.Token{
		AccessToken:  "eyJ0.expired-graph",
		RefreshToken: "0.AAAA-refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	var gotAuth string
	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"value":[]}`))
	}))
	defer graph.Close()

	client, err := a.GetClientIfAuthenticated(context.Background())
	require.NoError(t, err)
	require.NotNil(t, client)

	resp, err := client.Get(graph.URL + "/v1.0/me/events")
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "Bearer eyJ0.refreshed-graph", gotAuth)
	assert.Equal(t, "0.AAAA-refresh", azure.lastForm()["refresh_token"])

	cached, err := a.loadToken()
	require.NoError(t, err)
	assert.Equal(t, "eyJ0.refreshed-graph", cached.AccessToken)
	assert.Equal(t, "0.AAAA-refresh", cached.RefreshToken)
}

func TestGoogleAuthURL_RequestsOfflineAccess(t *testing.T) {
	a := newCacheAuthenticator(t, Google, t.TempDir())

	url := a.AuthURL()
	assert.Contains(t, url, "https://accounts.google.com/o/oauth2/auth")
	assert.Contains(t, url, "client_id=")
	assert.Contains(t, url, "access_type=offline")
}

func TestGoogleExchangeCode(t *testing.T) {
	t.Run("invalid code", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		}))
		defer srv.Close()

		dir := t.TempDir()
		a, err := NewGoogleAuthenticator(createCredentialsFile(t, dir, srv.URL+"/token"), TokenPath(dir, Google))
		require.NoError(t, err)

		assert.ErrorContains(t, a.ExchangeCode(context.Background(), "invalid-code"), "token exchange failed")
		assert.False(t, a.Authenticated())
	})

	t.Run("saves token", func(t *testing.T) {
		var gotCode string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			gotCode = r.Form.Get("code")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"ya29.fresh-token","refresh_token":"1//r","token_type":"Bearer","expires_in":3600}`))
		}))
		defer srv.Close()

		dir := t.TempDir()
		a, err := NewGoogleAuthenticator(createCredentialsFile(t, dir, srv.URL+"/token"), TokenPath(filepath.Join(dir, "tokens"), Google))
		require.NoError(t, err)

		require.NoError(t, a.ExchangeCode(context.Background(), "4/good-code"))
		assert.Equal(t, "4/good-code", gotCode)

		info, err := a.TokenInfo()
		require.NoError(t, err)
		assert.True(t, info.Valid)
		assert.True(t, info.HasRefresh)
		assert.Equal(t, "ya29...oken", info.AccessToken)
	})
}

// createValidCredentialsFile writes a minimal OAuth client file for testing
func createValidCredentialsFile(t *testing.T, dir string) string {
	t.Helper()
	return createCredentialsFile(t, dir, "https://oauth2.googleapis.com/token")
}

func createCredentialsFile(t *testing.T, dir, tokenURI string) string {
	t.Helper()

	credPath := filepath.Join(dir, "credentials.json")

	credentials := map[string]interface{}{
		"installed": map[string]interface{}{
			"client_id":     "test-client-id.apps.googleusercontent.com",
			"client_secret": "test-client-secret",
			"redirect_uris": []string{"http://localhost"},
			"auth_uri":      "https://accounts.google.com/o/oauth2/auth",
			"token_uri":     tokenURI,
		},
	}

	data, err := json.Marshal(credentials)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(credPath, data, 0600))

	return credPath
}

// skipIfRoot skips permission tests, which root bypasses
func skipIfRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() == 0 {
		t.Skip("running as root; file permissions are not enforced")
	}
}
