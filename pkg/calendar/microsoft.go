// ABOUTME: Microsoft Graph calendar backend for Outlook / Microsoft 365 accounts
// ABOUTME: Talks to /me/events and /me/calendarView with an OAuth2 HTTP client

package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harper/calendar-mcp/pkg/events"
	"github.com/harper/calendar-mcp/pkg/retry"
)

// ProviderMicrosoft is the provider name reported by MicrosoftBackend
const ProviderMicrosoft = "microsoft"

// DefaultGraphBaseURL is the Microsoft Graph v1.0 root
const DefaultGraphBaseURL = "https://graph.microsoft.com/v1.0"

// graphDateTime is the dateTime layout Graph returns (7 fractional digits, no offset)
const graphDateTime = "2006-01-02T15:04:05.9999999"

// graphFilterTime is the dateTime layout used inside $filter comparisons
const graphFilterTime = "2006-01-02T15:04:05"

// MicrosoftBackend wraps Graph calendar operations
type MicrosoftBackend struct {
	client  *http.Client
	baseURL string
	policy  retry.Policy
}

// MicrosoftOption configures a MicrosoftBackend
type MicrosoftOption func(*MicrosoftBackend)

// WithGraphBaseURL points the backend at another Graph root (ish mode, tests)
func WithGraphBaseURL(u string) MicrosoftOption {
	return func(b *MicrosoftBackend) {
		b.baseURL = strings.TrimRight(u, "/")
	}
}

// WithGraphRetry overrides the retry policy
func WithGraphRetry(p retry.Policy) MicrosoftOption {
	return func(b *MicrosoftBackend) {
		b.policy = p
	}
}

// NewMicrosoftBackend creates a Graph backend. client must attach the bearer token.
func NewMicrosoftBackend(client *http.Client, opts ...MicrosoftOption) *MicrosoftBackend {
	b := &MicrosoftBackend{
		client:  client,
		baseURL: DefaultGraphBaseURL,
		policy:  retry.DefaultPolicy,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.client == nil {
		b.client = http.DefaultClient
	}
	return b
}

// Provider returns "microsoft"
func (b *MicrosoftBackend) Provider() string {
	return ProviderMicrosoft
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphDateTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphEvent struct {
	ID          string             `json:"id,omitempty"`
	Subject     string             `json:"subject"`
	Body        *graphBody         `json:"body,omitempty"`
	BodyPreview string             `json:"bodyPreview,omitempty"`
	Start       *graphDateTimeZone `json:"start,omitempty"`
	End         *graphDateTimeZone `json:"end,omitempty"`
	WebLink     string             `json:"webLink,omitempty"`
}

type graphEventPage struct {
	Value    []graphEvent `json:"value"`
	NextLink string       `json:"@odata.nextLink"`
}

// GraphError is a non-2xx Graph response
type GraphError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *GraphError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("graph API error %d: %s", e.StatusCode, e.Message)
}

// HTTPStatusCode lets the retry package classify Graph failures
func (e *GraphError) HTTPStatusCode() int {
	return e.StatusCode
}

// CreateEvent posts ev to /me/events
func (b *MicrosoftBackend) CreateEvent(ctx context.Context, ev events.Event, sched events.Schedule) (*Receipt, error) {
	sched = sched.WithDefaults()
	if err := sched.Validate(); err != nil {
		return nil, err
	}
	start, end := sched.LocalTimes(ev.Date)

	payload, err := json.Marshal(graphEvent{
		Subject: ev.Title,
		Body:    &graphBody{ContentType: "text", Content: ev.Description},
		Start:   &graphDateTimeZone{DateTime: start, TimeZone: sched.TimeZone},
		End:     &graphDateTimeZone{DateTime: end, TimeZone: sched.TimeZone},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}

	var created graphEvent
	err = b.policy.Do(ctx, func() error {
		return b.do(ctx, http.MethodPost, b.baseURL+"/me/events", payload, &created)
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create event: %w", err)
	}

	return newReceipt(ProviderMicrosoft, ev, created.ID, created.WebLink), nil
}

// ListEvents reads /me/calendarView for a bounded range, or a filtered /me/events otherwise
func (b *MicrosoftBackend) ListEvents(ctx context.Context, from, to time.Time) ([]events.Event, error) {
	next := b.listURL(from, to)

	var out []events.Event
	for next != "" {
		var page graphEventPage
		pageURL := next
		err := b.policy.Do(ctx, func() error {
			page = graphEventPage{}
			return b.do(ctx, http.MethodGet, pageURL, nil, &page)
		})
		if err != nil {
			return nil, fmt.Errorf("unable to list events: %w", err)
		}

		for _, item := range page.Value {
			day, ok := graphEventDay(item.Start)
			if !ok {
				continue
			}
			out = append(out, events.Event{
				ID:          item.ID,
				Title:       item.Subject,
				Date:        day,
				Description: item.BodyPreview,
			})
		}
		next = page.NextLink
	}
	return out, nil
}

func (b *MicrosoftBackend) listURL(from, to time.Time) string {
	q := url.Values{}
	q.Set("$orderby", "start/dateTime")
	q.Set("$select", "id,subject,bodyPreview,start,end,webLink")
	if from.IsZero() || to.IsZero() {
		if filter := graphRangeFilter(from, to); filter != "" {
			q.Set("$filter", filter)
		}
		return b.baseURL + "/me/events?" + q.Encode()
	}
	q.Set("startDateTime", from.UTC().Format(time.RFC3339))
	q.Set("endDateTime", to.UTC().Format(time.RFC3339))
	return b.baseURL + "/me/calendarView?" + q.Encode()
}

// graphRangeFilter bounds /me/events when only one end of the range is known.
// It keeps events ending after from and starting before to, like Google's timeMin/timeMax.
// Graph compares dateTime strings in UTC because of the Prefer header.
func graphRangeFilter(from, to time.Time) string {
	var clauses []string
	if !from.IsZero() {
		clauses = append(clauses, fmt.Sprintf("end/dateTime ge '%s'", from.UTC().Format(graphFilterTime)))
	}
	if !to.IsZero() {
		clauses = append(clauses, fmt.Sprintf("start/dateTime lt '%s'", to.UTC().Format(graphFilterTime)))
	}
	return strings.Join(clauses, " and ")
}

// DeleteEvent removes /me/events/{id}
func (b *MicrosoftBackend) DeleteEvent(ctx context.Context, id string) error {
	endpoint := b.baseURL + "/me/events/" + url.PathEscape(id)
	err := b.policy.Do(ctx, func() error {
		return b.do(ctx, http.MethodDelete, endpoint, nil, nil)
	})
	if err != nil {
		return fmt.Errorf("unable to delete event: %w", err)
	}
	return nil
}

// do sends one request and decodes a JSON response into out when non-nil
func (b *MicrosoftBackend) do(ctx context.Context, method, endpoint string, payload []byte, out interface{}) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("graph request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return decodeGraphError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode graph response: %w", err)
	}
	return nil
}

func decodeGraphError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	gerr := &GraphError{StatusCode: resp.StatusCode}
	if json.Unmarshal(data, &envelope) == nil && envelope.Error.Message != "" {
		gerr.Code = envelope.Error.Code
		gerr.Message = envelope.Error.Message
	} else {
		gerr.Message = strings.TrimSpace(string(data))
		if gerr.Message == "" {
			gerr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return gerr
}

// graphEventDay returns the start day of a Graph event in its reported zone
func graphEventDay(start *graphDateTimeZone) (time.Time, bool) {
	if start == nil || start.DateTime == "" {
		return time.Time{}, false
	}
	loc, err := time.LoadLocation(start.TimeZone)
	if err != nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(graphDateTime, start.DateTime, loc)
	if err != nil {
		return time.Time{}, false
	}
	return events.Day(t), true
}
