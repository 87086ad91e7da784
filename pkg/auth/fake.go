// ABOUTME: Fake authentication for ish mode
// ABOUTME: Sends a user bearer token to a fake calendar API instead of real OAuth

package auth

import (
	"fmt"
	"net/http"
)

// DefaultISHUser is used when no ISH_USER is configured
const DefaultISHUser = "testuser"

// fakeTransport adds Bearer token authentication to requests
type fakeTransport struct {
	token string
	base  http.RoundTripper
}

func (t *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not mutate the caller's request
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", fmt.Sprintf("Bearer %s", t.token))
	return t.base.RoundTrip(clone)
}

// NewFakeClient creates an HTTP client that authenticates as user:<name>
func NewFakeClient(user string) *http.Client {
	if user == "" {
		user = DefaultISHUser
	}

	return &http.Client{
		Transport: &fakeTransport{
			token: fmt.Sprintf("user:%s", user),
			base:  http.DefaultTransport,
		},
	}
}
