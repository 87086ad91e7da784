// ABOUTME: In-memory event store owning creation, lookup, and deletion
// ABOUTME: Events are validated on insertion and always listed in date order

package events

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the only accepted date format
const DateLayout = "2006-01-02"

// Event is a single calendar entry
type Event struct {
	ID          string
	Title       string
	Date        time.Time
	Description string
}

// DateString returns the canonical YYYY-MM-DD form of the event date
func (e Event) DateString() string {
	return FormatDate(e.Date)
}

type eventJSON struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

// MarshalJSON renders the date in its canonical text form
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{
		ID:          e.ID,
		Title:       e.Title,
		Date:        e.DateString(),
		Description: e.Description,
	})
}

// UnmarshalJSON parses and validates the date field
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	date, err := ParseDate(raw.Date)
	if err != nil {
		return err
	}
	*e = Event{ID: raw.ID, Title: raw.Title, Date: date, Description: raw.Description}
	return nil
}

// ParseDate parses a YYYY-MM-DD string into a UTC date, rejecting impossible days
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// FormatDate renders a date as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Day truncates t to its calendar day in t's own location, returned as UTC midnight
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Store holds events for the lifetime of the process.
// All methods are safe for concurrent use; reads observe a consistent snapshot.
type Store struct {
	mu     sync.RWMutex
	events []Event
	newID  func() string
}

// Option configures a Store
type Option func(*Store)

// WithIDGenerator overrides how event IDs are assigned
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// NewStore creates an empty store
func NewStore(opts ...Option) *Store {
	s := &Store{
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add validates and appends an event, returning the confirmation reply
func (s *Store) Add(title, date, description string) (string, error) {
	ev, err := s.build(title, date, description)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()

	return fmt.Sprintf("Event '%s' added for %s.", ev.Title, date), nil
}

// Import validates every event first and appends them all, or none on error.
// Missing IDs are assigned.
func (s *Store) Import(evs []Event) (int, error) {
	valid := make([]Event, 0, len(evs))
	for _, ev := range evs {
		if strings.TrimSpace(ev.Title) == "" {
			return 0, &Error{Kind: InvalidTitle}
		}
		if ev.Date.IsZero() {
			return 0, &Error{Kind: InvalidDate, Title: ev.Title}
		}
		ev.Date = Day(ev.Date)
		if ev.ID == "" {
			ev.ID = s.newID()
		}
		valid = append(valid, ev)
	}

	s.mu.Lock()
	s.events = append(s.events, valid...)
	s.mu.Unlock()

	return len(valid), nil
}

func (s *Store) build(title, date, description string) (Event, error) {
	if strings.TrimSpace(title) == "" {
		return Event{}, &Error{Kind: InvalidTitle}
	}
	day, err := ParseDate(date)
	if err != nil {
		return Event{}, &Error{Kind: InvalidDate, Title: title}
	}
	return Event{
		ID:          s.newID(),
		Title:       title,
		Date:        day,
		Description: description,
	}, nil
}

// List returns events sorted by date. A zero on returns every event,
// otherwise only events falling on that day. Ties keep insertion order.
func (s *Store) List(on time.Time) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Event, 0, len(s.events))
	for _, ev := range s.events {
		if on.IsZero() || ev.Date.Equal(Day(on)) {
			result = append(result, ev)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result
}

// Find returns the first event in date order whose title matches case-insensitively
func (s *Store) Find(title string) (Event, bool) {
	for _, ev := range s.List(time.Time{}) {
		if strings.EqualFold(ev.Title, title) {
			return ev, true
		}
	}
	return Event{}, false
}

// Delete removes every event whose title matches case-insensitively
func (s *Store) Delete(title string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0:0]
	for _, ev := range s.events {
		if !strings.EqualFold(ev.Title, title) {
			kept = append(kept, ev)
		}
	}
	if len(kept) == len(s.events) {
		return "", &Error{Kind: NotFound, Title: title}
	}
	s.events = kept

	return fmt.Sprintf("Event '%s' deleted.", title), nil
}

// Len returns the number of stored events
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// View formats the selected events as the calendar listing reply
func (s *Store) View(on time.Time) string {
	return FormatList(s.List(on))
}

// Summarize formats the selected events as the summary reply
func (s *Store) Summarize(on time.Time) string {
	return FormatSummary(s.List(on))
}

// NoEvents is the reply for an empty selection
const NoEvents = "No events scheduled."

// FormatList renders "- DATE: TITLE - DESCRIPTION" lines under a header
func FormatList(evs []Event) string {
	if len(evs) == 0 {
		return NoEvents
	}
	var b strings.Builder
	b.WriteString("Calendar Events:\n")
	for _, ev := range evs {
		fmt.Fprintf(&b, "- %s: %s", ev.DateString(), ev.Title)
		if ev.Description != "" {
			fmt.Fprintf(&b, " - %s", ev.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatSummary renders "- DATE: TITLE (DESCRIPTION)" lines under a header
func FormatSummary(evs []Event) string {
	if len(evs) == 0 {
		return NoEvents
	}
	var b strings.Builder
	b.WriteString("Upcoming Events Summary:\n")
	for _, ev := range evs {
		fmt.Fprintf(&b, "- %s: %s", ev.DateString(), ev.Title)
		if ev.Description != "" {
			fmt.Fprintf(&b, " (%s)", ev.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}
