// ABOUTME: Pushes store events to a connected calendar provider
// ABOUTME: Falls back to writing an .ics file when the provider is not connected

package calsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harper/calendar-mcp/pkg/auth"
	"github.com/harper/calendar-mcp/pkg/calendar"
	"github.com/harper/calendar-mcp/pkg/events"
	"github.com/harper/calendar-mcp/pkg/ics"
	"github.com/harper/calendar-mcp/pkg/logging"
)

// ProviderICS selects the .ics file target directly
const ProviderICS = "ics"

// Recorder receives one call per push attempt
type Recorder interface {
	RecordPush(provider string, err error)
}

// Result is the outcome of a push
type Result struct {
	Provider string            `json:"provider"`
	Fallback bool              `json:"fallback"`
	Receipt  *calendar.Receipt `json:"receipt,omitempty"`
	File     *ics.ExportResult `json:"file,omitempty"`
	Message  string            `json:"message"`
}

// Syncer dispatches events to providers
type Syncer struct {
	source   BackendSource
	exporter *ics.Exporter
	recorder Recorder
	logger   *slog.Logger
}

// Option configures a Syncer
type Option func(*Syncer)

// WithRecorder sets the push recorder
func WithRecorder(r Recorder) Option {
	return func(s *Syncer) {
		s.recorder = r
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) {
		s.logger = logger
	}
}

// New creates a Syncer
func New(source BackendSource, exporter *ics.Exporter, opts ...Option) *Syncer {
	s := &Syncer{
		source:   source,
		exporter: exporter,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Push creates ev on provider ("google", "microsoft" or "ics"). A provider
// that is not configured or not signed in gets an .ics file instead.
func (s *Syncer) Push(ctx context.Context, provider string, ev events.Event, sched events.Schedule) (*Result, error) {
	if strings.EqualFold(strings.TrimSpace(provider), ProviderICS) {
		res, err := s.writeFile(ev)
		s.record(ProviderICS, err)
		return res, err
	}

	p, err := auth.ParseProvider(provider)
	if err != nil {
		return nil, err
	}
	logger := logging.WithProvider(s.logger, p.String())

	backend, err := s.source.Backend(ctx, p)
	if errors.Is(err, auth.ErrNotAuthenticated) || errors.Is(err, auth.ErrNotConfigured) {
		logger.Info("provider not connected, writing .ics instead", logging.Err(err))
		res, ferr := s.writeFile(ev)
		s.record(ProviderICS, ferr)
		if ferr != nil {
			return nil, ferr
		}
		res.Fallback = true
		res.Message = fmt.Sprintf("Not connected to %s Calendar. %s", p.Title(), res.Message)
		return res, nil
	}
	if err != nil {
		s.record(p.String(), err)
		return nil, err
	}

	receipt, err := backend.CreateEvent(ctx, ev, sched)
	s.record(p.String(), err)
	if err != nil {
		logger.Warn("push failed", logging.Err(err))
		return nil, err
	}

	msg := fmt.Sprintf("Event '%s' created in %s Calendar for %s.", receipt.Title, p.Title(), receipt.Date)
	if receipt.Link != "" {
		msg += "\nLink: " + receipt.Link
	}
	logger.Info("event pushed", slog.String("event_id", receipt.EventID))
	return &Result{Provider: p.String(), Receipt: receipt, Message: msg}, nil
}

// Pull lists events from a connected provider in [from, to)
func (s *Syncer) Pull(ctx context.Context, provider string, from, to time.Time) ([]events.Event, error) {
	backend, err := s.backend(ctx, provider)
	if err != nil {
		return nil, err
	}
	return backend.ListEvents(ctx, from, to)
}

// Remove deletes a remote event by its provider ID
func (s *Syncer) Remove(ctx context.Context, provider, id string) error {
	backend, err := s.backend(ctx, provider)
	if err != nil {
		return err
	}
	return backend.DeleteEvent(ctx, id)
}

func (s *Syncer) backend(ctx context.Context, provider string) (calendar.Backend, error) {
	p, err := auth.ParseProvider(provider)
	if err != nil {
		return nil, err
	}
	return s.source.Backend(ctx, p)
}

func (s *Syncer) writeFile(ev events.Event) (*Result, error) {
	file, err := s.exporter.Export(ev)
	if err != nil {
		return nil, err
	}
	return &Result{Provider: ProviderICS, File: file, Message: file.Message}, nil
}

func (s *Syncer) record(provider string, err error) {
	if s.recorder != nil {
		s.recorder.RecordPush(provider, err)
	}
}
