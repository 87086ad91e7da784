// ABOUTME: Builds calendar backends from the auth manager's provider clients
// ABOUTME: In ish mode every backend targets the fake API server instead

package calsync

import (
	"context"
	"fmt"

	"github.com/harper/calendar-mcp/pkg/auth"
	"github.com/harper/calendar-mcp/pkg/calendar"
	"github.com/harper/calendar-mcp/pkg/retry"
)

// BackendSource hands out a backend for a connected provider
type BackendSource interface {
	Backend(ctx context.Context, p auth.Provider) (calendar.Backend, error)
}

// Connector is the production BackendSource
type Connector struct {
	auth       *auth.Manager
	ishBaseURL string
	policy     retry.Policy
}

// NewConnector creates a Connector. ishBaseURL is used only when the manager is in ish mode.
func NewConnector(manager *auth.Manager, ishBaseURL string) *Connector {
	return &Connector{auth: manager, ishBaseURL: ishBaseURL, policy: retry.DefaultPolicy}
}

// Backend returns a backend for p, or an auth error when p is not connected
func (c *Connector) Backend(ctx context.Context, p auth.Provider) (calendar.Backend, error) {
	client, err := c.auth.Client(ctx, p)
	if err != nil {
		return nil, err
	}

	switch p {
	case auth.Google:
		opts := []calendar.GoogleOption{calendar.WithGoogleRetry(c.policy)}
		if c.auth.ISH() {
			opts = append(opts, calendar.WithEndpoint(c.ishBaseURL))
		}
		return calendar.NewGoogleBackend(ctx, client, opts...)
	case auth.Microsoft:
		opts := []calendar.MicrosoftOption{calendar.WithGraphRetry(c.policy)}
		if c.auth.ISH() {
			opts = append(opts, calendar.WithGraphBaseURL(c.ishBaseURL+"/v1.0"))
		}
		return calendar.NewMicrosoftBackend(client, opts...), nil
	default:
		return nil, fmt.Errorf("%w %q", auth.ErrUnknownProvider, p)
	}
}
