// ABOUTME: Tests for the Microsoft Graph calendar backend
// ABOUTME: Uses an httptest server that mimics /me/events and /me/calendarView

package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/calendar-mcp/pkg/events"
	"github.com/harper/calendar-mcp/pkg/retry"
)

func newGraphTestBackend(t *testing.T, handler http.HandlerFunc) (*MicrosoftBackend, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewMicrosoftBackend(srv.Client(), WithGraphBaseURL(srv.URL+"/v1.0/"), WithGraphRetry(fastRetry)), srv
}

func TestMicrosoftBackend_CreateEvent(t *testing.T) {
	var got graphEvent
	b, _ := newGraphTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1.0/me/events", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"AAMkAD=","webLink":"https://outlook.office365.com/owa/?itemid=AAMkAD"}`))
	})

	ev := events.Event{Title: "Dentist", Date: mustDate(t, "2026-02-20"), Description: "Checkup"}
	receipt, err := b.CreateEvent(context.Background(), ev, events.Schedule{Start: "08:15", End: "09:00", TimeZone: "America/New_York"})
	require.NoError(t, err)

	assert.Equal(t, "microsoft", receipt.Provider)
	assert.Equal(t, "AAMkAD=", receipt.EventID)
	assert.Equal(t, "https://outlook.office365.com/owa/?itemid=AAMkAD", receipt.Link)
	assert.Equal(t, "2026-02-20", receipt.Date)

	assert.Equal(t, "Dentist", got.Subject)
	require.NotNil(t, got.Body)
	assert.Equal(t, "text", got.Body.ContentType)
	assert.Equal(t, "Checkup", got.Body.Content)
	assert.Equal(t, graphDateTimeZone{DateTime: "2026-02-20T08:15:00", TimeZone: "America/New_York"}, *got.Start)
	assert.Equal(t, graphDateTimeZone{DateTime: "2026-02-20T09:00:00", TimeZone: "America/New_York"}, *got.End)
}

func TestMicrosoftBackend_CreateEvent_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	b, _ := newGraphTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":"ok"}`))
	})

	receipt, err := b.CreateEvent(context.Background(), events.Event{Title: "X", Date: mustDate(t, "2026-02-20")}, events.DefaultSchedule)
	require.NoError(t, err)
	assert.Equal(t, "ok", receipt.EventID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestMicrosoftBackend_GraphError(t *testing.T) {
	var calls atomic.Int32
	b, _ := newGraphTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"InvalidAuthenticationToken","message":"Access token has expired."}}`))
	})

	_, err := b.CreateEvent(context.Background(), events.Event{Title: "X", Date: mustDate(t, "2026-02-20")}, events.DefaultSchedule)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidAuthenticationToken")
	assert.Contains(t, err.Error(), "Access token has expired.")

	var gerr *GraphError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, http.StatusUnauthorized, gerr.StatusCode)

	code, ok := retry.StatusCode(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMicrosoftBackend_ListEvents_CalendarViewWithPaging(t *testing.T) {
	var srvURL string
	b, srv := newGraphTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `outlook.timezone="UTC"`, r.Header.Get("Prefer"))
		w.Header().Set("Content-Type", "application/json")

		if r.URL.Query().Get("page") == "2" {
			_, _ = w.Write([]byte(`{"value":[
				{"id":"3","subject":"Late","start":{"dateTime":"2026-01-31T23:00:00.0000000","timeZone":"UTC"}}
			]}`))
			return
		}

		assert.Equal(t, "/v1.0/me/calendarView", r.URL.Path)
		assert.Equal(t, "2026-01-01T00:00:00Z", r.URL.Query().Get("startDateTime"))
		assert.Equal(t, "2026-02-01T00:00:00Z", r.URL.Query().Get("endDateTime"))
		_, _ = w.Write([]byte(`{"value":[
			{"id":"1","subject":"Standup","bodyPreview":"daily","start":{"dateTime":"2026-01-15T09:00:00.0000000","timeZone":"UTC"}},
			{"id":"2","subject":"No start"}
		],"@odata.nextLink":"` + srvURL + `/v1.0/me/calendarView?page=2"}`))
	})
	srvURL = srv.URL

	got, err := b.ListEvents(context.Background(),
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, events.Event{ID: "1", Title: "Standup", Date: mustDate(t, "2026-01-15"), Description: "daily"}, got[0])
	assert.Equal(t, "2026-01-31", got[1].DateString())
}

func TestMicrosoftBackend_ListEvents_Unbounded(t *testing.T) {
	var path, filter string
	b, _ := newGraphTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		filter = r.URL.Query().Get("$filter")
		_, _ = w.Write([]byte(`{"value":[]}`))
	})

	got, err := b.ListEvents(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, "/v1.0/me/events", path)
	assert.Empty(t, filter)
}

func TestMicrosoftBackend_ListEvents_HalfOpenRange(t *testing.T) {
	june := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		from, to   time.Time
		wantFilter string
	}{
		{"from only", june, time.Time{}, "end/dateTime ge '2026-06-01T00:00:00'"},
		{"to only", time.Time{}, june, "start/dateTime lt '2026-06-01T00:00:00'"},
		{"from in another zone", time.Date(2026, 6, 1, 10, 0, 0, 0, time.FixedZone("AEST", 10*3600)), time.Time{}, "end/dateTime ge '2026-06-01T00:00:00'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var path, filter string
			b, _ := newGraphTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
				path = r.URL.Path
				filter = r.URL.Query().Get("$filter")
				_, _ = w.Write([]byte(`{"value":[]}`))
			})

			_, err := b.ListEvents(context.Background(), tt.from, tt.to)
			require.NoError(t, err)
			assert.Equal(t, "/v1.0/me/events", path)
			assert.Equal(t, tt.wantFilter, filter)
		})
	}
}

func TestMicrosoftBackend_DeleteEvent(t *testing.T) {
	var method, path string
	b, _ := newGraphTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.EscapedPath()
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, b.DeleteEvent(context.Background(), "AAMk/AD="))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/v1.0/me/events/AAMk%2FAD=", path)
}

func TestGraphEventDay_ConvertsZone(t *testing.T) {
	day, ok := graphEventDay(&graphDateTimeZone{DateTime: "2026-03-01T23:30:00.0000000", TimeZone: "Pacific/Auckland"})
	require.True(t, ok)
	assert.Equal(t, "2026-03-01", events.FormatDate(day))

	_, ok = graphEventDay(&graphDateTimeZone{DateTime: "not a time", TimeZone: "UTC"})
	assert.False(t, ok)
}
