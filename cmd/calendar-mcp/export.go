// ABOUTME: export subcommand converting JSON events into an iCalendar file
// ABOUTME: Accepts a bare array or the calendar://events resource document

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/harper/calendar-mcp/pkg/events"
	"github.com/harper/calendar-mcp/pkg/ics"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		input  string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Convert JSON events to an .ics file",
		Long: `Read events as JSON ([{"title":...,"date":"YYYY-MM-DD","description":...}] or
{"events":[...]}) and write them as one iCalendar document. Times come from
DEFAULT_START_TIME, DEFAULT_END_TIME and DEFAULT_TIMEZONE.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}
			evs, err := parseEventsJSON(raw)
			if err != nil {
				return err
			}

			if output == "-" {
				return ics.Encode(cmd.OutOrStdout(), evs, a.cfg.Schedule(), time.Now())
			}

			var buf bytes.Buffer
			if err := ics.Encode(&buf, evs, a.cfg.Schedule(), time.Now()); err != nil {
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ICS file created: %s (%d events)\n", output, len(evs))
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "-", "JSON file to read, - for stdin")
	cmd.Flags().StringVarP(&output, "output", "o", "-", ".ics file to write, - for stdout")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func parseEventsJSON(raw []byte) ([]events.Event, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var doc struct {
			Events []events.Event `json:"events"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("invalid events document: %w", err)
		}
		return doc.Events, nil
	}

	var evs []events.Event
	if err := json.Unmarshal(raw, &evs); err != nil {
		return nil, fmt.Errorf("invalid events list: %w", err)
	}
	return evs, nil
}
