// ABOUTME: MCP server implementation
// ABOUTME: Exposes the event store, interpreter, sync, and auth flows as MCP tools

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/harper/calendar-mcp/pkg/auth"
	"github.com/harper/calendar-mcp/pkg/calsync"
	"github.com/harper/calendar-mcp/pkg/config"
	"github.com/harper/calendar-mcp/pkg/events"
	"github.com/harper/calendar-mcp/pkg/ics"
	"github.com/harper/calendar-mcp/pkg/interpreter"
	"github.com/harper/calendar-mcp/pkg/logging"
	"github.com/harper/calendar-mcp/pkg/metrics"
)

// Name and Version are reported to MCP clients
const (
	Name    = "calendar-mcp"
	Version = "1.0.0"
)

// ErrUnknownTool is returned by CallTool for a name no tool is registered under
var ErrUnknownTool = errors.New("unknown tool")

// Options holds the collaborators of a Server. Zero fields get defaults.
type Options struct {
	Store    *events.Store
	Auth     *auth.Manager
	Syncer   *calsync.Syncer
	Exporter *ics.Exporter
	Schedule events.Schedule
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Clock    func() time.Time
}

// Server is the MCP server for the calendar
type Server struct {
	store    *events.Store
	interp   *interpreter.Interpreter
	auth     *auth.Manager
	syncer   *calsync.Syncer
	exporter *ics.Exporter
	schedule events.Schedule
	metrics  *metrics.Metrics
	logger   *slog.Logger
	mcp      *server.MCPServer
}

// NewServer creates a new MCP server
func NewServer(opts Options) *Server {
	s := &Server{
		store:    opts.Store,
		auth:     opts.Auth,
		syncer:   opts.Syncer,
		exporter: opts.Exporter,
		schedule: opts.Schedule.WithDefaults(),
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
	if s.store == nil {
		s.store = events.NewStore()
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.auth == nil {
		s.auth = auth.NewManager(auth.Options{Logger: s.logger})
	}
	if s.exporter == nil {
		s.exporter = ics.NewExporter(ics.DefaultDir, s.schedule)
	}
	if s.syncer == nil {
		s.syncer = calsync.New(calsync.NewConnector(s.auth, config.DefaultISHBaseURL), s.exporter,
			calsync.WithRecorder(s.metrics), calsync.WithLogger(s.logger))
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	s.interp = interpreter.New(s.store,
		interpreter.WithClock(clock),
		interpreter.WithLogger(s.logger),
		interpreter.WithRecorder(s.metrics),
	)

	s.mcp = server.NewMCPServer(
		Name,
		Version,
		server.WithToolCapabilities(false),
		server.WithPromptCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)
	s.registerTools()
	s.registerPrompts()
	s.registerResources()

	return s
}

// NewFromConfig wires every collaborator from cfg
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	m := metrics.New()
	sched := cfg.Schedule()

	manager := NewAuthManager(cfg, logger)
	exporter := ics.NewExporter(cfg.ICSOutputDir, sched)
	syncer := calsync.New(calsync.NewConnector(manager, cfg.ISHBaseURL), exporter,
		calsync.WithRecorder(m), calsync.WithLogger(logger))

	return NewServer(Options{
		Auth:     manager,
		Syncer:   syncer,
		Exporter: exporter,
		Schedule: sched,
		Metrics:  m,
		Logger:   logger,
	})
}

// NewAuthManager builds the provider sign-in manager from cfg
func NewAuthManager(cfg *config.Config, logger *slog.Logger) *auth.Manager {
	return auth.NewManager(auth.Options{
		CredentialsPath: cfg.GoogleCredentialsPath,
		TokenDir:        cfg.TokenDir,
		Microsoft: auth.MicrosoftApp{
			ClientID:     cfg.MicrosoftClientID,
			ClientSecret: cfg.MicrosoftClientSecret,
			TenantID:     cfg.MicrosoftTenantID,
			RedirectURL:  cfg.MicrosoftRedirectURL,
		},
		ISH:     cfg.ISH(),
		ISHUser: cfg.ISHUser,
		Logger:  logger,
	})
}

// Store returns the event store backing the tools
func (s *Server) Store() *events.Store {
	return s.store
}

// Interpreter returns the conversational front end over the store
func (s *Server) Interpreter() *interpreter.Interpreter {
	return s.interp
}

// Metrics returns the server's metric registry wrapper
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// addTool registers a tool wrapped with metrics and logging
func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, s.instrument(tool.Name, handler))
}

func (s *Server) instrument(name string, next server.ToolHandlerFunc) server.ToolHandlerFunc {
	logger := logging.WithTool(s.logger, name)
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		result, err := next(ctx, request)

		failed := err != nil || (result != nil && result.IsError)
		s.metrics.RecordToolCall(name, failed)
		if failed {
			logger.Warn("tool call failed", slog.Duration("duration", time.Since(start)), logging.Err(err))
		} else {
			logger.Debug("tool call", slog.Duration("duration", time.Since(start)))
		}
		return result, err
	}
}

// registerTools registers all available tools
func (s *Server) registerTools() {
	// Event store tools
	s.addTool(mcp.Tool{
		Name:        "add_event",
		Description: "Add a calendar event. Dates use YYYY-MM-DD.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"title":       map[string]string{"type": "string", "description": "Event title"},
				"date":        map[string]string{"type": "string", "description": "Event date in YYYY-MM-DD format"},
				"description": map[string]string{"type": "string", "description": "Optional notes about the event"},
			},
			Required: []string{"title", "date"},
		},
	}, s.handleAddEvent)

	s.addTool(mcp.Tool{
		Name:        "view_events",
		Description: "List calendar events in date order",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"date": map[string]string{"type": "string", "description": "Only show events on this YYYY-MM-DD date"},
			},
		},
	}, s.handleViewEvents)

	s.addTool(mcp.Tool{
		Name:        "delete_event",
		Description: "Delete every event with the given title (case-insensitive)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"title": map[string]string{"type": "string", "description": "Title of the event(s) to delete"},
			},
			Required: []string{"title"},
		},
	}, s.handleDeleteEvent)

	s.addTool(mcp.Tool{
		Name:        "summarize_events",
		Description: "Summarize upcoming events",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"date": map[string]string{"type": "string", "description": "Only summarize events on this YYYY-MM-DD date"},
			},
		},
	}, s.handleSummarizeEvents)

	s.addTool(mcp.Tool{
		Name:        "handle_message",
		Description: "Interpret a free-form message such as 'add Team Meeting on 2026-01-15' or 'what's on tomorrow'",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"message": map[string]string{"type": "string", "description": "The message to interpret"},
			},
			Required: []string{"message"},
		},
	}, s.handleMessage)

	// .ics tools
	s.addTool(mcp.Tool{
		Name:        "export_ics",
		Description: "Write events to an .ics file. With a title, exports that event; otherwise exports every event.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"title":    map[string]string{"type": "string", "description": "Title of a single event to export"},
				"filename": map[string]string{"type": "string", "description": "Base file name when exporting every event (default: calendar_events)"},
			},
		},
	}, s.handleExportICS)

	s.addTool(mcp.Tool{
		Name:        "import_ics",
		Description: "Import VEVENTs from iCalendar text or an .ics file path",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"content": map[string]string{"type": "string", "description": "iCalendar text"},
				"path":    map[string]string{"type": "string", "description": "Path to an .ics file"},
			},
		},
	}, s.handleImportICS)

	// Provider tools
	s.addTool(mcp.Tool{
		Name:        "sync_event",
		Description: "Create a stored event in Google or Microsoft Calendar. Falls back to an .ics file when the provider is not connected.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"title":      map[string]string{"type": "string", "description": "Title of the stored event"},
				"provider":   map[string]string{"type": "string", "description": "google, microsoft, or ics"},
				"start_time": map[string]string{"type": "string", "description": "Start time HH:MM (default from DEFAULT_START_TIME)"},
				"end_time":   map[string]string{"type": "string", "description": "End time HH:MM (default from DEFAULT_END_TIME)"},
				"timezone":   map[string]string{"type": "string", "description": "IANA time zone (default from DEFAULT_TIMEZONE)"},
			},
			Required: []string{"title", "provider"},
		},
	}, s.handleSyncEvent)

	s.addTool(mcp.Tool{
		Name:        "list_remote_events",
		Description: "List events from a connected Google or Microsoft calendar",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"provider": map[string]string{"type": "string", "description": "google or microsoft"},
				"from":     map[string]string{"type": "string", "description": "First day to include, YYYY-MM-DD"},
				"to":       map[string]string{"type": "string", "description": "Day after the last day to include, YYYY-MM-DD"},
			},
			Required: []string{"provider"},
		},
	}, s.handleListRemoteEvents)

	s.addTool(mcp.Tool{
		Name:        "delete_remote_event",
		Description: "Delete an event from a connected Google or Microsoft calendar by its provider event ID",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"provider": map[string]string{"type": "string", "description": "google or microsoft"},
				"event_id": map[string]string{"type": "string", "description": "The provider's event ID"},
			},
			Required: []string{"provider", "event_id"},
		},
	}, s.handleDeleteRemoteEvent)

	s.registerAuthTools()
}

func (s *Server) handleAddEvent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date, err := request.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	reply, err := s.store.Add(title, date, request.GetString("description", ""))
	if err != nil {
		return mcp.NewToolResultText(err.Error()), nil
	}
	return mcp.NewToolResultText(reply), nil
}

func (s *Server) handleViewEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	on, err := optionalDate(request, "date")
	if err != nil {
		return mcp.NewToolResultText(err.Error()), nil
	}
	return mcp.NewToolResultText(s.store.View(on)), nil
}

func (s *Server) handleDeleteEvent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	reply, err := s.store.Delete(title)
	if err != nil {
		return mcp.NewToolResultText(err.Error()), nil
	}
	return mcp.NewToolResultText(reply), nil
}

func (s *Server) handleSummarizeEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	on, err := optionalDate(request, "date")
	if err != nil {
		return mcp.NewToolResultText(err.Error()), nil
	}
	return mcp.NewToolResultText(s.store.Summarize(on)), nil
}

func (s *Server) handleMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.interp.Interpret(message)), nil
}

func (s *Server) handleExportICS(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if title := request.GetString("title", ""); title != "" {
		ev, ok := s.store.Find(title)
		if !ok {
			return mcp.NewToolResultText((&events.Error{Kind: events.NotFound, Title: title}).Error()), nil
		}
		res, err := s.exporter.Export(ev)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to export event: %v", err)), nil
		}
		return mcp.NewToolResultText(res.Message), nil
	}

	evs := s.store.List(time.Time{})
	if len(evs) == 0 {
		return mcp.NewToolResultText(events.NoEvents), nil
	}
	res, err := s.exporter.ExportAll(request.GetString("filename", ""), evs)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to export events: %v", err)), nil
	}
	return mcp.NewToolResultText(res.Message), nil
}

func (s *Server) handleImportICS(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content := request.GetString("content", "")
	path := request.GetString("path", "")

	var decoded []events.Event
	var err error
	switch {
	case content != "":
		decoded, err = ics.Decode(strings.NewReader(content))
	case path != "":
		decoded, err = decodeFile(path)
	default:
		return mcp.NewToolResultError("either content or path is required"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read calendar: %v", err)), nil
	}

	n, err := s.store.Import(decoded)
	if err != nil {
		return mcp.NewToolResultText(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Imported %d event(s).", n)), nil
}

func decodeFile(path string) ([]events.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ics.Decode(f)
}

func (s *Server) handleSyncEvent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	provider, err := request.RequireString("provider")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ev, ok := s.store.Find(title)
	if !ok {
		return mcp.NewToolResultText((&events.Error{Kind: events.NotFound, Title: title}).Error()), nil
	}

	sched := events.Schedule{
		Start:    request.GetString("start_time", s.schedule.Start),
		End:      request.GetString("end_time", s.schedule.End),
		TimeZone: request.GetString("timezone", s.schedule.TimeZone),
	}.WithDefaults()
	if err := sched.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.syncer.Push(ctx, provider, ev, sched)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to sync event: %v", err)), nil
	}
	return mcp.NewToolResultText(res.Message), nil
}

func (s *Server) handleListRemoteEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	provider, err := request.RequireString("provider")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	from, err := optionalDate(request, "from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := optionalDate(request, "to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	evs, err := s.syncer.Pull(ctx, provider, from, to)
	if err != nil {
		return mcp.NewToolResultError(providerError("failed to list events", provider, err)), nil
	}
	return mcp.NewToolResultText(events.FormatList(evs)), nil
}

func (s *Server) handleDeleteRemoteEvent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	provider, err := request.RequireString("provider")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	eventID, err := request.RequireString("event_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.syncer.Remove(ctx, provider, eventID); err != nil {
		return mcp.NewToolResultError(providerError("failed to delete event", provider, err)), nil
	}
	p, _ := auth.ParseProvider(provider)
	return mcp.NewToolResultText(fmt.Sprintf("Event '%s' deleted from %s Calendar.", eventID, p.Title())), nil
}

// providerError adds a sign-in hint to errors caused by a missing connection
func providerError(prefix, provider string, err error) string {
	if errors.Is(err, auth.ErrNotAuthenticated) || errors.Is(err, auth.ErrNotConfigured) {
		return fmt.Sprintf("%s: %v - run auth_login with provider=%s", prefix, err, provider)
	}
	return fmt.Sprintf("%s: %v", prefix, err)
}

// optionalDate parses a YYYY-MM-DD argument; an absent one yields the zero time
func optionalDate(request mcp.CallToolRequest, key string) (time.Time, error) {
	raw := request.GetString(key, "")
	if raw == "" {
		return time.Time{}, nil
	}
	return events.ParseDate(raw)
}

// ListTools returns all registered tools
func (s *Server) ListTools() []mcp.Tool {
	serverTools := s.mcp.ListTools()
	tools := make([]mcp.Tool, 0, len(serverTools))
	for _, st := range serverTools {
		tools = append(tools, st.Tool)
	}
	return tools
}

// CallTool invokes a registered tool directly, bypassing the MCP transport
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	st, ok := s.mcp.ListTools()[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if args == nil {
		args = map[string]any{}
	}
	return st.Handler(ctx, mcp.CallToolRequest{
		Request: mcp.Request{Method: "tools/call"},
		Params:  mcp.CallToolParams{Name: name, Arguments: args},
	})
}

// ResultText joins the text content of a tool result
func ResultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	var text string
	for _, c := range result.Content {
		switch tc := c.(type) {
		case mcp.TextContent:
			text += tc.Text
		case *mcp.TextContent:
			text += tc.Text
		}
	}
	return text
}

// Serve runs the MCP server over stdin/stdout until ctx is cancelled
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}
