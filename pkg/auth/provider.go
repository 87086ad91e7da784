// ABOUTME: Calendar identity providers and the user-facing connection texts
// ABOUTME: Parses provider names and builds per-provider OAuth configs

package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
	"google.golang.org/api/calendar/v3"
)

// Provider names a remote calendar account type
type Provider string

const (
	Google    Provider = "google"
	Microsoft Provider = "microsoft"
)

// Providers lists every supported provider in display order
var Providers = []Provider{Google, Microsoft}

// ErrUnknownProvider is returned for provider names other than google or microsoft
var ErrUnknownProvider = errors.New("unknown provider")

// GoogleScopes grants read/write access to the user's calendars
var GoogleScopes = []string{calendar.CalendarScope}

// MicrosoftScopes grants Graph calendar access plus a refresh token
var MicrosoftScopes = []string{"https://graph.microsoft.com/Calendars.ReadWrite", "offline_access"}

// ParseProvider maps a case-insensitive name to a Provider
func ParseProvider(name string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(name))); p {
	case Google, Microsoft:
		return p, nil
	default:
		return "", fmt.Errorf("%w %q (want google or microsoft)", ErrUnknownProvider, name)
	}
}

// String returns the provider name
func (p Provider) String() string {
	return string(p)
}

// Title returns the display name
func (p Provider) Title() string {
	switch p {
	case Google:
		return "Google"
	case Microsoft:
		return "Microsoft"
	default:
		return string(p)
	}
}

// MicrosoftApp describes an Azure AD app registration
type MicrosoftApp struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	RedirectURL  string
}

// googleConfig reads an OAuth client file downloaded from Google Cloud Console
func googleConfig(credentialsPath string) (*oauth2.Config, error) {
	if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("credentials.json not found at %s. Download from Google Cloud Console", credentialsPath)
	}

	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(data, GoogleScopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}
	return config, nil
}

// microsoftConfig builds the Azure AD v2 endpoint config for app
func microsoftConfig(app MicrosoftApp) (*oauth2.Config, error) {
	if app.ClientID == "" {
		return nil, errors.New("Microsoft credentials not found. Set MICROSOFT_CLIENT_ID and MICROSOFT_CLIENT_SECRET")
	}
	tenant := app.TenantID
	if tenant == "" {
		tenant = "common"
	}
	redirect := app.RedirectURL
	if redirect == "" {
		redirect = "http://localhost"
	}

	return &oauth2.Config{
		ClientID:     app.ClientID,
		ClientSecret: app.ClientSecret,
		Endpoint:     microsoft.AzureADEndpoint(tenant),
		RedirectURL:  redirect,
		Scopes:       MicrosoftScopes,
	}, nil
}

// ConsentMessage asks the user to approve calendar access before the OAuth flow starts
func ConsentMessage() string {
	return "This application would like to access your calendar account.\n\n" +
		"Permissions requested:\n" +
		"- Read and manage your calendar events\n" +
		"- Keep you signed in so events can be added later\n\n" +
		"Do you accept the connection to your calendar?"
}

// WelcomeMessage greets the user once a provider is connected
func WelcomeMessage(firstName string) string {
	if name := strings.TrimSpace(firstName); name != "" {
		return fmt.Sprintf("Welcome, %s! You are now connected to your calendar.", name)
	}
	return "Welcome! You are now connected to your calendar."
}
