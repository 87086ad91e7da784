// ABOUTME: Conversational command interpreter driving the event store
// ABOUTME: Every outcome, including failures, is rendered as reply text

package interpreter

import (
	"log/slog"
	"time"

	"github.com/harper/calendar-mcp/pkg/events"
	"github.com/harper/calendar-mcp/pkg/logging"
)

// HelpText is the fixed reply for messages that match no intent
const HelpText = `Sorry, I didn't understand that. Here is what I can do:

- Add an event: add:Title|YYYY-MM-DD|Description
  or: add Team Meeting on 2026-01-15 - Quarterly planning
  or: schedule Dentist tomorrow
- Delete events by title: delete:Title or remove Team Meeting
- List events: list, list events, what's on today, show 2026-01-15
- Summarize events: summarize, summary, what's coming up

Dates must be YYYY-MM-DD, today, or tomorrow.`

// AddUsageText is the reply for an add command that carries no date
const AddUsageText = `Please include a date for the event (YYYY-MM-DD, today, or tomorrow).
Examples: add Team Meeting on 2026-01-15, add:Team Meeting|2026-01-15|Planning, schedule Dentist tomorrow`

// Recorder receives one call per interpreted message
type Recorder interface {
	RecordIntent(intent string)
}

// Interpreter turns messages into store operations. It keeps no state of its own
// between calls; the store is the only state.
type Interpreter struct {
	store    *events.Store
	now      func() time.Time
	logger   *slog.Logger
	recorder Recorder
}

// Option configures an Interpreter
type Option func(*Interpreter)

// WithClock overrides the wall clock used for today/tomorrow
func WithClock(now func() time.Time) Option {
	return func(i *Interpreter) {
		i.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(i *Interpreter) {
		i.logger = logger
	}
}

// WithRecorder sets the intent recorder
func WithRecorder(r Recorder) Option {
	return func(i *Interpreter) {
		i.recorder = r
	}
}

// New creates an interpreter over store
func New(store *events.Store, opts ...Option) *Interpreter {
	i := &Interpreter{
		store:  store,
		now:    time.Now,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Interpret classifies message, applies it to the store and returns the reply
func (i *Interpreter) Interpret(message string) string {
	intent := Classify(message, i.now())
	if i.recorder != nil {
		i.recorder.RecordIntent(intent.Name())
	}

	reply, err := i.apply(intent)
	if err != nil {
		i.logger.Info("command rejected",
			logging.Intent(intent.Name()),
			slog.String("reason", events.KindOf(err).String()))
		return err.Error()
	}

	i.logger.Debug("command handled", logging.Intent(intent.Name()))
	return reply
}

func (i *Interpreter) apply(intent Intent) (string, error) {
	switch in := intent.(type) {
	case AddIntent:
		if in.MissingDate {
			return AddUsageText, nil
		}
		return i.store.Add(in.Title, in.Date, in.Description)
	case DeleteIntent:
		return i.store.Delete(in.Title)
	case ListIntent:
		return i.store.View(in.On), nil
	case SummarizeIntent:
		return i.store.Summarize(in.On), nil
	default:
		return HelpText, nil
	}
}
