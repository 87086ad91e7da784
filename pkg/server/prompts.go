// ABOUTME: MCP prompt templates for calendar workflows
// ABOUTME: Summaries are rendered from the live event store

package server

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/harper/calendar-mcp/pkg/auth"
	"github.com/harper/calendar-mcp/pkg/events"
)

// registerPrompts registers all MCP prompts
func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(
		mcp.NewPrompt(
			"summarize_events",
			mcp.WithPromptDescription("Summarize upcoming calendar events"),
			mcp.WithArgument("date", mcp.ArgumentDescription("Only include events on this YYYY-MM-DD date")),
		),
		s.handleSummarizeEventsPrompt,
	)

	s.mcp.AddPrompt(
		mcp.NewPrompt(
			"calendar_consent",
			mcp.WithPromptDescription("Ask the user to approve calendar access before signing in"),
			mcp.WithArgument("provider", mcp.ArgumentDescription("google or microsoft")),
		),
		s.handleCalendarConsentPrompt,
	)
}

func (s *Server) handleSummarizeEventsPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	var on time.Time
	if raw := request.Params.Arguments["date"]; raw != "" {
		d, err := events.ParseDate(raw)
		if err != nil {
			return nil, err
		}
		on = d
	}

	messages := []mcp.PromptMessage{
		mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(s.store.Summarize(on))),
	}
	return mcp.NewGetPromptResult("Summary of upcoming events", messages), nil
}

func (s *Server) handleCalendarConsentPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	text := auth.ConsentMessage()

	if raw := request.Params.Arguments["provider"]; raw != "" {
		p, err := auth.ParseProvider(raw)
		if err != nil {
			return nil, err
		}
		text += fmt.Sprintf("\n\nIf they accept, call auth_login with provider=%s and share the returned URL.", p)
	}

	messages := []mcp.PromptMessage{
		mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
	}
	return mcp.NewGetPromptResult("Calendar connection consent", messages), nil
}
