// ABOUTME: Writes .ics files into an output directory
// ABOUTME: Used when no calendar provider is connected and for bulk exports

package ics

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/harper/calendar-mcp/pkg/events"
)

// DefaultDir is where .ics files go unless ICS_OUTPUT_DIR says otherwise
const DefaultDir = "/tmp/calendar_events"

// ExportResult describes a written file
type ExportResult struct {
	Path     string `json:"file_path"`
	Filename string `json:"filename"`
	Title    string `json:"title,omitempty"`
	Date     string `json:"date,omitempty"`
	Count    int    `json:"count"`
	Message  string `json:"message"`
}

// Exporter writes calendars to files under dir
type Exporter struct {
	dir   string
	sched events.Schedule
	now   func() time.Time
}

// NewExporter creates an exporter. The directory is created on first write.
func NewExporter(dir string, sched events.Schedule) *Exporter {
	if dir == "" {
		dir = DefaultDir
	}
	return &Exporter{dir: dir, sched: sched.WithDefaults(), now: time.Now}
}

// Dir returns the output directory
func (x *Exporter) Dir() string {
	return x.dir
}

// Export writes a single event to <date>_<title>.ics, replacing any earlier file of that name
func (x *Exporter) Export(ev events.Event) (*ExportResult, error) {
	filename := fmt.Sprintf("%s_%s.ics", ev.DateString(), SafeFilename(ev.Title))
	res, err := x.write(filename, []events.Event{ev})
	if err != nil {
		return nil, err
	}
	res.Title = ev.Title
	res.Date = ev.DateString()
	return res, nil
}

// ExportAll writes evs into a single <name>.ics
func (x *Exporter) ExportAll(name string, evs []events.Event) (*ExportResult, error) {
	if name == "" {
		name = "calendar_events"
	}
	return x.write(SafeFilename(name)+".ics", evs)
}

func (x *Exporter) write(filename string, evs []events.Event) (*ExportResult, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, evs, x.sched, x.now()); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(x.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(x.dir, filename)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", filename, err)
	}

	return &ExportResult{
		Path:     path,
		Filename: filename,
		Count:    len(evs),
		Message:  fmt.Sprintf("ICS file created: %s", path),
	}, nil
}

// SafeFilename keeps letters, digits, spaces, '-' and '_' and replaces everything else with '_'
func SafeFilename(title string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, title)
}
