// ABOUTME: Time-of-day window applied when a date-only event leaves the store
// ABOUTME: Used by remote calendar backends and the .ics exporter

package events

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// Schedule places an all-day store event into a concrete time slot.
// TimeZone is passed through to remote calendars as-is.
type Schedule struct {
	Start    string
	End      string
	TimeZone string
}

// DefaultSchedule is the slot used when the caller gives none
var DefaultSchedule = Schedule{Start: "09:00", End: "10:00", TimeZone: "UTC"}

const clockLayout = "15:04"

// WithDefaults fills empty fields from DefaultSchedule
func (s Schedule) WithDefaults() Schedule {
	if s.Start == "" {
		s.Start = DefaultSchedule.Start
	}
	if s.End == "" {
		s.End = DefaultSchedule.End
	}
	if s.TimeZone == "" {
		s.TimeZone = DefaultSchedule.TimeZone
	}
	return s
}

// Validate checks both clock values are HH:MM and end is after start
func (s Schedule) Validate() error {
	start, err := time.Parse(clockLayout, s.Start)
	if err != nil {
		return fmt.Errorf("invalid start time %q, use HH:MM", s.Start)
	}
	end, err := time.Parse(clockLayout, s.End)
	if err != nil {
		return fmt.Errorf("invalid end time %q, use HH:MM", s.End)
	}
	if !end.After(start) {
		return fmt.Errorf("end time %s must be after start time %s", s.End, s.Start)
	}
	return nil
}

// LocalTimes returns the wall-clock start and end for date, formatted
// as YYYY-MM-DDTHH:MM:SS without an offset
func (s Schedule) LocalTimes(date time.Time) (string, string) {
	day := FormatDate(date)
	return fmt.Sprintf("%sT%s:00", day, s.Start), fmt.Sprintf("%sT%s:00", day, s.End)
}

// Window resolves the slot on date in the schedule's time zone. Unknown zones fall back to UTC.
func (s Schedule) Window(date time.Time) (time.Time, time.Time, error) {
	if err := s.Validate(); err != nil {
		return time.Time{}, time.Time{}, err
	}
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		loc = time.UTC
	}
	start, _ := time.Parse(clockLayout, s.Start)
	end, _ := time.Parse(clockLayout, s.End)

	y, m, d := date.Date()
	return time.Date(y, m, d, start.Hour(), start.Minute(), 0, 0, loc),
		time.Date(y, m, d, end.Hour(), end.Minute(), 0, 0, loc), nil
}
