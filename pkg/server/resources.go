// ABOUTME: MCP resources exposing the event store
// ABOUTME: Serves the stored events as JSON and as an iCalendar document

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/harper/calendar-mcp/pkg/ics"
)

// Resource URIs
const (
	EventsURI    = "calendar://events"
	EventsICSURI = "calendar://events.ics"
)

// registerResources registers all MCP resources
func (s *Server) registerResources() {
	s.mcp.AddResource(
		mcp.NewResource(
			EventsURI,
			"Calendar Events",
			mcp.WithResourceDescription("All stored events in date order"),
			mcp.WithMIMEType("application/json"),
		),
		s.handleEventsResource,
	)

	s.mcp.AddResource(
		mcp.NewResource(
			EventsICSURI,
			"Calendar Events (iCalendar)",
			mcp.WithResourceDescription("All stored events as an .ics document"),
			mcp.WithMIMEType("text/calendar"),
		),
		s.handleEventsICSResource,
	)
}

func (s *Server) handleEventsResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	evs := s.store.List(time.Time{})

	data, err := json.MarshalIndent(map[string]interface{}{
		"event_count": len(evs),
		"events":      evs,
	}, "", "  ")
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleEventsICSResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	var buf bytes.Buffer
	if err := ics.Encode(&buf, s.store.List(time.Time{}), s.schedule, time.Now()); err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "text/calendar",
			Text:     buf.String(),
		},
	}, nil
}
