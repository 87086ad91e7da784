// ABOUTME: Common contract for remote calendar providers
// ABOUTME: Store events are date-only; backends place them in a Schedule slot

package calendar

import (
	"context"
	"time"

	"github.com/harper/calendar-mcp/pkg/events"
)

// Receipt describes an event created on a remote calendar
type Receipt struct {
	Provider string `json:"provider"`
	EventID  string `json:"event_id"`
	Link     string `json:"link,omitempty"`
	Title    string `json:"title"`
	Date     string `json:"date"`
}

// Backend is a remote calendar account
type Backend interface {
	// Provider returns the provider name, e.g. "google"
	Provider() string
	// CreateEvent creates ev in the schedule's time slot on the primary calendar
	CreateEvent(ctx context.Context, ev events.Event, sched events.Schedule) (*Receipt, error)
	// ListEvents returns remote events starting in [from, to), as date-only events
	ListEvents(ctx context.Context, from, to time.Time) ([]events.Event, error)
	// DeleteEvent removes a remote event by its provider ID
	DeleteEvent(ctx context.Context, id string) error
}

func newReceipt(provider string, ev events.Event, id, link string) *Receipt {
	return &Receipt{
		Provider: provider,
		EventID:  id,
		Link:     link,
		Title:    ev.Title,
		Date:     ev.DateString(),
	}
}
