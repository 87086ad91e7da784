// ABOUTME: Integration tests for MCP server functionality
// ABOUTME: Tests full request cycles, prompts, resources, and concurrent tool calls

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/calendar-mcp/pkg/events"
	"github.com/harper/calendar-mcp/pkg/ics"
	"github.com/harper/calendar-mcp/pkg/interpreter"
)

// TestScenario_ConversationalSession walks the documented interpreter scenarios end to end
func TestScenario_ConversationalSession(t *testing.T) {
	srv, _ := newTestServer(t)

	steps := []struct {
		message string
		reply   string
	}{
		{"list", "No events scheduled."},
		{"add:Standup|2026-03-01|Daily sync", "Event 'Standup' added for 2026-03-01."},
		{"list", "Calendar Events:\n- 2026-03-01: Standup - Daily sync\n"},
		{"delete Standup", "Event 'Standup' deleted."},
		{"list", "No events scheduled."},
		{"add Party on 2026-13-40", "Invalid date format. Use YYYY-MM-DD."},
		{"asdfghjkl", interpreter.HelpText},
		{"schedule Review tomorrow", "Event 'Review' added for 2026-01-15."},
		{"what's coming up", "Upcoming Events Summary:\n- 2026-01-15: Review\n"},
	}

	for i, step := range steps {
		t.Run(fmt.Sprintf("%02d %s", i, step.message), func(t *testing.T) {
			assert.Equal(t, step.reply, callText(t, srv, "handle_message", map[string]interface{}{"message": step.message}))
		})
	}
	assert.Equal(t, 1, srv.Store().Len())
}

// TestScenario_ToolsAndInterpreterShareStore checks the direct tools and the interpreter see one store
func TestScenario_ToolsAndInterpreterShareStore(t *testing.T) {
	srv, _ := newTestServer(t)

	callText(t, srv, "add_event", map[string]interface{}{"title": "Foo", "date": "2026-01-15", "description": "Bar"})
	assert.Equal(t, "Calendar Events:\n- 2026-01-15: Foo - Bar\n",
		callText(t, srv, "handle_message", map[string]interface{}{"message": "show 2026-01-15"}))

	callText(t, srv, "handle_message", map[string]interface{}{"message": "remove foo"})
	assert.Equal(t, "No events scheduled.", callText(t, srv, "view_events", nil))
}

func TestConcurrentToolCalls(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = srv.CallTool(ctx, "add_event", map[string]interface{}{
				"title": fmt.Sprintf("Event %d", i),
				"date":  fmt.Sprintf("2026-02-%02d", i+1),
			})
			_, _ = srv.CallTool(ctx, "view_events", nil)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, srv.Store().Len())
	listing := callText(t, srv, "view_events", nil)
	assert.True(t, strings.HasPrefix(listing, "Calendar Events:\n- 2026-02-01: Event 0\n"))
}

func TestMCPPrompts(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()
	_, err := srv.Store().Add("Team Meeting", "2026-01-15", "Quarterly planning session")
	require.NoError(t, err)
	_, err = srv.Store().Add("Dentist Appointment", "2026-01-10", "")
	require.NoError(t, err)

	tests := []struct {
		name          string
		handler       func(context.Context, mcp.GetPromptRequest) (*mcp.GetPromptResult, error)
		args          map[string]string
		wantText      string
		errorContains string
	}{
		{
			name:     "summarize all",
			handler:  srv.handleSummarizeEventsPrompt,
			wantText: "Upcoming Events Summary:\n- 2026-01-10: Dentist Appointment\n- 2026-01-15: Team Meeting (Quarterly planning session)\n",
		},
		{
			name:     "summarize one day",
			handler:  srv.handleSummarizeEventsPrompt,
			args:     map[string]string{"date": "2026-01-10"},
			wantText: "Upcoming Events Summary:\n- 2026-01-10: Dentist Appointment\n",
		},
		{
			name:          "summarize bad date",
			handler:       srv.handleSummarizeEventsPrompt,
			args:          map[string]string{"date": "tomorrow-ish"},
			errorContains: "Invalid date format",
		},
		{
			name:     "consent",
			handler:  srv.handleCalendarConsentPrompt,
			wantText: "Do you accept the connection to your calendar?",
		},
		{
			name:     "consent for provider",
			handler:  srv.handleCalendarConsentPrompt,
			args:     map[string]string{"provider": "Microsoft"},
			wantText: "call auth_login with provider=microsoft",
		},
		{
			name:          "consent bad provider",
			handler:       srv.handleCalendarConsentPrompt,
			args:          map[string]string{"provider": "myspace"},
			errorContains: "unknown provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := mcp.GetPromptRequest{
				Request: mcp.Request{
					Method: "prompts/get",
				},
				Params: mcp.GetPromptParams{
					Arguments: tt.args,
				},
			}

			result, err := tt.handler(ctx, request)
			if tt.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			require.NoError(t, err)
			require.Len(t, result.Messages, 1)
			assert.Equal(t, mcp.RoleUser, result.Messages[0].Role)

			text, ok := result.Messages[0].Content.(mcp.TextContent)
			require.True(t, ok)
			assert.Contains(t, text.Text, tt.wantText)
		})
	}
}

func TestMCPResources(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	read := func(t *testing.T, uri string, handler func(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error)) mcp.TextResourceContents {
		t.Helper()
		contents, err := handler(ctx, mcp.ReadResourceRequest{
			Request: mcp.Request{Method: "resources/read"},
			Params:  mcp.ReadResourceParams{URI: uri},
		})
		require.NoError(t, err)
		require.Len(t, contents, 1)
		text, ok := contents[0].(mcp.TextResourceContents)
		require.True(t, ok)
		return text
	}

	t.Run("empty json", func(t *testing.T) {
		text := read(t, EventsURI, srv.handleEventsResource)
		assert.JSONEq(t, `{"event_count":0,"events":[]}`, text.Text)
	})

	t.Run("empty ics", func(t *testing.T) {
		_, err := srv.handleEventsICSResource(ctx, mcp.ReadResourceRequest{Params: mcp.ReadResourceParams{URI: EventsICSURI}})
		assert.ErrorIs(t, err, ics.ErrNoEvents)
	})

	_, err := srv.Store().Add("Team Meeting", "2026-01-15", "Planning")
	require.NoError(t, err)

	t.Run("json", func(t *testing.T) {
		text := read(t, EventsURI, srv.handleEventsResource)
		assert.Equal(t, "application/json", text.MIMEType)

		var payload struct {
			Count  int            `json:"event_count"`
			Events []events.Event `json:"events"`
		}
		require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))
		assert.Equal(t, 1, payload.Count)
		assert.Equal(t, "Team Meeting", payload.Events[0].Title)
		assert.Equal(t, "2026-01-15", payload.Events[0].DateString())
	})

	t.Run("ics", func(t *testing.T) {
		text := read(t, EventsICSURI, srv.handleEventsICSResource)
		assert.Equal(t, "text/calendar", text.MIMEType)
		assert.Contains(t, text.Text, "BEGIN:VCALENDAR")
		assert.Contains(t, text.Text, "SUMMARY:Team Meeting")

		decoded, err := ics.Decode(strings.NewReader(text.Text))
		require.NoError(t, err)
		require.Len(t, decoded, 1)
		assert.Equal(t, srv.Store().List(decoded[0].Date)[0].ID, decoded[0].ID)
	})
}
