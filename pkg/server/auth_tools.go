// ABOUTME: MCP tools for connecting calendar providers over OAuth
// ABOUTME: Wraps the auth manager's login, code exchange, status, and logout

package server

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/harper/calendar-mcp/pkg/auth"
)

var providerProperty = map[string]string{"type": "string", "description": "google or microsoft"}

func (s *Server) registerAuthTools() {
	s.addTool(mcp.Tool{
		Name:        "auth_login",
		Description: "Start OAuth sign-in for a calendar provider. Returns a URL to open in a browser.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"provider": providerProperty,
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "Force re-authentication even if the current token is valid",
				},
			},
			Required: []string{"provider"},
		},
	}, s.handleAuthLogin)

	s.addTool(mcp.Tool{
		Name:        "auth_complete",
		Description: "Complete OAuth sign-in with the authorization code or the full redirect URL",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"provider":   providerProperty,
				"code":       map[string]string{"type": "string", "description": "Authorization code, or the full URL from the browser after authorizing"},
				"first_name": map[string]string{"type": "string", "description": "Name to greet once connected"},
			},
			Required: []string{"provider", "code"},
		},
	}, s.handleAuthComplete)

	s.addTool(mcp.Tool{
		Name:        "auth_status",
		Description: "Show which calendar providers are configured and connected",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"provider": map[string]string{"type": "string", "description": "google or microsoft (default: all)"},
			},
		},
	}, s.handleAuthStatus)

	s.addTool(mcp.Tool{
		Name:        "auth_logout",
		Description: "Disconnect a calendar provider by removing its cached token",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"provider": providerProperty,
			},
			Required: []string{"provider"},
		},
	}, s.handleAuthLogout)

	s.addTool(mcp.Tool{
		Name:        "get_consent_prompt",
		Description: "Get the text to show a user before connecting their calendar",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleGetConsentPrompt)
}

func requireProvider(request mcp.CallToolRequest) (auth.Provider, *mcp.CallToolResult) {
	name, err := request.RequireString("provider")
	if err != nil {
		return "", mcp.NewToolResultError(err.Error())
	}
	p, err := auth.ParseProvider(name)
	if err != nil {
		return "", mcp.NewToolResultError(err.Error())
	}
	return p, nil
}

func (s *Server) handleAuthLogin(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errResult := requireProvider(request)
	if errResult != nil {
		return errResult, nil
	}

	status, err := s.auth.Login(p, request.GetBool("force", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultJSON(status)
}

// AuthCompleteResponse is the response for auth_complete tool
type AuthCompleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleAuthComplete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errResult := requireProvider(request)
	if errResult != nil {
		return errResult, nil
	}
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.auth.Complete(ctx, p, code); err != nil {
		return mcp.NewToolResultJSON(AuthCompleteResponse{
			Success: false,
			Message: fmt.Sprintf("sign-in failed: %v", err),
		})
	}

	return mcp.NewToolResultJSON(AuthCompleteResponse{
		Success: true,
		Message: auth.WelcomeMessage(request.GetString("first_name", "")),
	})
}

func (s *Server) handleAuthStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if name := request.GetString("provider", ""); name != "" {
		p, err := auth.ParseProvider(name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultJSON(s.auth.Status(p))
	}

	states := make([]auth.AuthState, 0, len(auth.Providers))
	for _, p := range auth.Providers {
		states = append(states, s.auth.Status(p))
	}
	return mcp.NewToolResultJSON(states)
}

// AuthLogoutResponse is the response for auth_logout tool
type AuthLogoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleAuthLogout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errResult := requireProvider(request)
	if errResult != nil {
		return errResult, nil
	}

	removed, err := s.auth.Logout(p)
	if err != nil {
		return mcp.NewToolResultJSON(AuthLogoutResponse{
			Success: false,
			Message: err.Error(),
		})
	}

	msg := fmt.Sprintf("disconnected from %s Calendar", p.Title())
	if !removed {
		msg = fmt.Sprintf("not connected to %s Calendar - nothing to remove", p.Title())
	}
	if s.auth.ISH() {
		msg = "ISH mode - auth revocation simulated"
	}
	return mcp.NewToolResultJSON(AuthLogoutResponse{Success: true, Message: msg})
}

func (s *Server) handleGetConsentPrompt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(auth.ConsentMessage()), nil
}
