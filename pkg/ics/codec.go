// ABOUTME: iCalendar (.ics) encoding and decoding of store events
// ABOUTME: Date-only events are placed into a Schedule slot when written

package ics

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/harper/calendar-mcp/pkg/events"
)

// ProductID identifies files written by this server
const ProductID = "-//Calendar MCP Server//EN"

// uidSuffix marks UIDs minted from store event IDs
const uidSuffix = "@calendar-mcp"

// ErrNoCalendar is returned when the input holds no VCALENDAR
var ErrNoCalendar = errors.New("no calendar data found")

// ErrNoEvents is returned when asked to write a calendar without events
var ErrNoEvents = errors.New("no events to export")

// NewCalendar builds a VCALENDAR with one VEVENT per event
func NewCalendar(evs []events.Event, sched events.Schedule, now time.Time) (*ical.Calendar, error) {
	if len(evs) == 0 {
		return nil, ErrNoEvents
	}
	sched = sched.WithDefaults()

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	for _, ev := range evs {
		vevent, err := newEvent(ev, sched, now)
		if err != nil {
			return nil, err
		}
		cal.Children = append(cal.Children, vevent)
	}
	return cal, nil
}

func newEvent(ev events.Event, sched events.Schedule, now time.Time) (*ical.Component, error) {
	start, end, err := sched.Window(ev.Date)
	if err != nil {
		return nil, err
	}

	vevent := ical.NewComponent(ical.CompEvent)
	vevent.Props.SetText(ical.PropUID, UID(ev, now))
	vevent.Props.SetText(ical.PropSummary, ev.Title)
	if ev.Description != "" {
		vevent.Props.SetText(ical.PropDescription, ev.Description)
	}
	// Zoned times carry a TZID so the start day survives a decode.
	vevent.Props.SetDateTime(ical.PropDateTimeStart, start)
	vevent.Props.SetDateTime(ical.PropDateTimeEnd, end)
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	return vevent, nil
}

// UID returns <id>@calendar-mcp, or <date>-<title>-<unix>@calendar-mcp for events without an ID
func UID(ev events.Event, now time.Time) string {
	if ev.ID != "" {
		return ev.ID + uidSuffix
	}
	return fmt.Sprintf("%s-%s-%d%s", ev.DateString(), strings.ReplaceAll(ev.Title, " ", "-"), now.Unix(), uidSuffix)
}

// Encode writes evs as a single VCALENDAR
func Encode(w io.Writer, evs []events.Event, sched events.Schedule, now time.Time) error {
	cal, err := NewCalendar(evs, sched, now)
	if err != nil {
		return err
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode iCalendar: %w", err)
	}
	return nil
}

// Decode reads every VEVENT from one or more concatenated VCALENDARs.
// Events keep the store ID from UIDs this server minted; others get none.
// Any malformed event fails the whole decode.
func Decode(r io.Reader) ([]events.Event, error) {
	dec := ical.NewDecoder(r)

	var out []events.Event
	calendars := 0
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse iCalendar: %w", err)
		}
		calendars++

		for _, child := range cal.Children {
			if child.Name != ical.CompEvent {
				continue
			}
			ev, err := decodeEvent(child)
			if err != nil {
				return nil, err
			}
			out = append(out, ev)
		}
	}

	if calendars == 0 {
		return nil, ErrNoCalendar
	}
	return out, nil
}

func decodeEvent(vevent *ical.Component) (events.Event, error) {
	title := propText(vevent, ical.PropSummary)

	dtstart := vevent.Props.Get(ical.PropDateTimeStart)
	if dtstart == nil {
		return events.Event{}, fmt.Errorf("event %q has no DTSTART", title)
	}
	start, err := dtstart.DateTime(time.UTC)
	if err != nil {
		return events.Event{}, fmt.Errorf("event %q has an invalid DTSTART: %w", title, err)
	}

	ev := events.Event{
		Title:       title,
		Date:        events.Day(start),
		Description: propText(vevent, ical.PropDescription),
	}
	if uid := propText(vevent, ical.PropUID); strings.HasSuffix(uid, uidSuffix) && !strings.Contains(strings.TrimSuffix(uid, uidSuffix), "@") {
		ev.ID = strings.TrimSuffix(uid, uidSuffix)
	}
	return ev, nil
}

func propText(c *ical.Component, name string) string {
	prop := c.Props.Get(name)
	if prop == nil {
		return ""
	}
	text, err := prop.Text()
	if err != nil {
		return prop.Value
	}
	return text
}
