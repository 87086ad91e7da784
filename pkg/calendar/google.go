// ABOUTME: Google Calendar backend on the primary calendar
// ABOUTME: Supports a custom endpoint so ish mode can target a fake API server

package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/harper/calendar-mcp/pkg/events"
	"github.com/harper/calendar-mcp/pkg/retry"
)

// ProviderGoogle is the provider name reported by GoogleBackend
const ProviderGoogle = "google"

const (
	primaryCalendar = "primary"
	// localIDKey links a remote event back to the store event it came from
	localIDKey = "calendarMcpId"
)

// GoogleBackend wraps Calendar API operations
type GoogleBackend struct {
	svc    *calendar.Service
	policy retry.Policy
}

// GoogleOption configures a GoogleBackend
type GoogleOption func(*googleSettings)

type googleSettings struct {
	endpoint string
	policy   retry.Policy
}

// WithEndpoint points the backend at another API base URL (ish mode, tests)
func WithEndpoint(url string) GoogleOption {
	return func(s *googleSettings) {
		s.endpoint = url
	}
}

// WithGoogleRetry overrides the retry policy
func WithGoogleRetry(p retry.Policy) GoogleOption {
	return func(s *googleSettings) {
		s.policy = p
	}
}

// NewGoogleBackend creates a Calendar API client. client carries the OAuth
// token; it may be nil only when an endpoint override is given.
func NewGoogleBackend(ctx context.Context, client *http.Client, opts ...GoogleOption) (*GoogleBackend, error) {
	settings := googleSettings{policy: retry.DefaultPolicy}
	for _, opt := range opts {
		opt(&settings)
	}

	clientOpts := []option.ClientOption{}
	if settings.endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(settings.endpoint))
		if client == nil {
			clientOpts = append(clientOpts, option.WithoutAuthentication())
		}
	}
	if client != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(client))
	}

	svc, err := calendar.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}

	return &GoogleBackend{svc: svc, policy: settings.policy}, nil
}

// Provider returns "google"
func (b *GoogleBackend) Provider() string {
	return ProviderGoogle
}

// CreateEvent inserts ev into the primary calendar
func (b *GoogleBackend) CreateEvent(ctx context.Context, ev events.Event, sched events.Schedule) (*Receipt, error) {
	sched = sched.WithDefaults()
	if err := sched.Validate(); err != nil {
		return nil, err
	}
	start, end := sched.LocalTimes(ev.Date)

	event := &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Start: &calendar.EventDateTime{
			DateTime: start,
			TimeZone: sched.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: end,
			TimeZone: sched.TimeZone,
		},
	}
	if ev.ID != "" {
		event.ExtendedProperties = &calendar.EventExtendedProperties{
			Private: map[string]string{localIDKey: ev.ID},
		}
	}

	var created *calendar.Event
	err := b.policy.Do(ctx, func() error {
		var err error
		created, err = b.svc.Events.Insert(primaryCalendar, event).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create event: %w", err)
	}

	return newReceipt(ProviderGoogle, ev, created.Id, created.HtmlLink), nil
}

// ListEvents lists single (expanded) events from the primary calendar in start order
func (b *GoogleBackend) ListEvents(ctx context.Context, from, to time.Time) ([]events.Event, error) {
	var items []*calendar.Event
	err := b.policy.Do(ctx, func() error {
		items = items[:0]
		call := b.svc.Events.List(primaryCalendar).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx)
		if !from.IsZero() {
			call = call.TimeMin(from.Format(time.RFC3339))
		}
		if !to.IsZero() {
			call = call.TimeMax(to.Format(time.RFC3339))
		}
		return call.Pages(ctx, func(page *calendar.Events) error {
			items = append(items, page.Items...)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("unable to list events: %w", err)
	}

	out := make([]events.Event, 0, len(items))
	for _, item := range items {
		day, ok := googleEventDay(item.Start)
		if !ok {
			continue
		}
		out = append(out, events.Event{
			ID:          item.Id,
			Title:       item.Summary,
			Date:        day,
			Description: item.Description,
		})
	}
	return out, nil
}

// DeleteEvent removes an event from the primary calendar
func (b *GoogleBackend) DeleteEvent(ctx context.Context, id string) error {
	err := b.policy.Do(ctx, func() error {
		return b.svc.Events.Delete(primaryCalendar, id).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("unable to delete event: %w", err)
	}
	return nil
}

// googleEventDay returns the calendar day an event starts on, in the event's own offset
func googleEventDay(start *calendar.EventDateTime) (time.Time, bool) {
	if start == nil {
		return time.Time{}, false
	}
	if start.Date != "" {
		d, err := events.ParseDate(start.Date)
		return d, err == nil
	}
	t, err := time.Parse(time.RFC3339, start.DateTime)
	if err != nil {
		return time.Time{}, false
	}
	return events.Day(t), true
}
