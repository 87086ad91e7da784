// ABOUTME: Environment-driven configuration for the calendar MCP server
// ABOUTME: Reads an optional .env file, then parses tagged struct fields

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/harper/calendar-mcp/pkg/events"
)

// Transport names
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// DefaultISHBaseURL is where the fake Google/Graph API server listens in ish mode
const DefaultISHBaseURL = "http://localhost:9000"

// Config holds all runtime settings
type Config struct {
	// ISH mode points the calendar backends at a fake API server with bearer-token auth.
	// Only the exact value "true" enables it.
	ISHMode    string `env:"ISH_MODE"`
	ISHBaseURL string `env:"ISH_BASE_URL" envDefault:"http://localhost:9000"`
	ISHUser    string `env:"ISH_USER"`

	Transport string `env:"TRANSPORT" envDefault:"stdio"`
	HTTPAddr  string `env:"HTTP_ADDR" envDefault:":8080"`

	ICSOutputDir string `env:"ICS_OUTPUT_DIR" envDefault:"/tmp/calendar_events"`

	GoogleCredentialsPath string `env:"GOOGLE_CREDENTIALS_PATH"`
	TokenDir              string `env:"CALENDAR_MCP_TOKEN_DIR"`

	MicrosoftClientID     string `env:"MICROSOFT_CLIENT_ID"`
	MicrosoftClientSecret string `env:"MICROSOFT_CLIENT_SECRET"`
	MicrosoftTenantID     string `env:"MICROSOFT_TENANT_ID" envDefault:"common"`
	MicrosoftRedirectURL  string `env:"MICROSOFT_REDIRECT_URL" envDefault:"http://localhost"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	DefaultStartTime string `env:"DEFAULT_START_TIME" envDefault:"09:00"`
	DefaultEndTime   string `env:"DEFAULT_END_TIME" envDefault:"10:00"`
	DefaultTimeZone  string `env:"DEFAULT_TIMEZONE" envDefault:"UTC"`
}

// Load reads .env files (missing files are ignored) and then the environment.
// Variables already set in the environment win over .env values.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the current environment
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Empty values fall through to the defaults
	if cfg.ISHBaseURL == "" {
		cfg.ISHBaseURL = DefaultISHBaseURL
	}
	if cfg.MicrosoftTenantID == "" {
		cfg.MicrosoftTenantID = "common"
	}
	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated and formatted fields
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("unknown transport %q (want %s or %s)", c.Transport, TransportStdio, TransportHTTP)
	}
	if err := c.Schedule().Validate(); err != nil {
		return fmt.Errorf("invalid default event times: %w", err)
	}
	return nil
}

// ISH reports whether ish mode is on
func (c *Config) ISH() bool {
	return c.ISHMode == "true"
}

// MicrosoftConfigured reports whether a Microsoft app registration is available
func (c *Config) MicrosoftConfigured() bool {
	return c.MicrosoftClientID != ""
}

// Schedule returns the default time slot for events pushed to remote calendars
func (c *Config) Schedule() events.Schedule {
	return events.Schedule{
		Start:    c.DefaultStartTime,
		End:      c.DefaultEndTime,
		TimeZone: c.DefaultTimeZone,
	}.WithDefaults()
}
