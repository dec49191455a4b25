package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
)

const (
	DriverDynamoDB = "dynamodb"
	DriverSQLite   = "sqlite"
)

// Config holds the service configuration. Variables are read without a prefix,
// e.g. STATE_TABLE, GEMINI_API_KEY.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	StoreDriver string `envconfig:"STORE_DRIVER" default:"dynamodb"`
	StateTable  string `envconfig:"STATE_TABLE"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"aicommands.db"`

	// ParamPrefix locates the API key in SSM when GeminiAPIKey is empty.
	ParamPrefix string `envconfig:"PARAM_PREFIX"`

	GeminiAPIKey       string        `envconfig:"GEMINI_API_KEY"`
	GeminiModel        string        `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	GeminiBaseURL      string        `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta"`
	InterpreterTimeout time.Duration `envconfig:"INTERPRETER_TIMEOUT" default:"30s"`

	TokenCapacity int           `envconfig:"TOKEN_CAPACITY" default:"10"`
	TokenWindow   time.Duration `envconfig:"TOKEN_WINDOW" default:"5h"`
	ResetPhrase   string        `envconfig:"RESET_PHRASE" default:"please"`
	HistoryLimit  int           `envconfig:"HISTORY_LIMIT" default:"50"`

	// Timezone is used to print reset times and to resolve "today".
	Timezone string `envconfig:"TIMEZONE" default:"UTC"`
	location *time.Location

	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`
}

// New parses the environment, applies overrides in order and validates the
// result.
func New(overrides ...func(*Config)) (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: process environment: %w", err)
	}
	for _, o := range overrides {
		o(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements and normalizes string values.
func (c *Config) Validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.ParamPrefix = strings.TrimRight(strings.TrimSpace(c.ParamPrefix), "/")

	switch c.StoreDriver {
	case DriverDynamoDB:
		if strings.TrimSpace(c.StateTable) == "" {
			return errors.New("config: STATE_TABLE is required for the dynamodb driver")
		}
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return errors.New("config: SQLITE_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("config: unsupported STORE_DRIVER %q", c.StoreDriver)
	}

	if strings.TrimSpace(c.GeminiAPIKey) == "" && c.ParamPrefix == "" {
		return errors.New("config: one of GEMINI_API_KEY or PARAM_PREFIX is required")
	}
	if c.TokenCapacity <= 0 {
		return errors.New("config: TOKEN_CAPACITY must be positive")
	}
	if c.TokenWindow <= 0 {
		return errors.New("config: TOKEN_WINDOW must be positive")
	}
	if c.InterpreterTimeout <= 0 {
		return errors.New("config: INTERPRETER_TIMEOUT must be positive")
	}
	if strings.TrimSpace(c.ResetPhrase) == "" {
		return errors.New("config: RESET_PHRASE must not be empty")
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 50
	}
	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil {
		return fmt.Errorf("config: invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	c.location = loc
	return nil
}

// Location returns the zone parsed from TIMEZONE, UTC before Validate.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// APIKeyParameter is the SSM parameter holding the Gemini key.
func (c *Config) APIKeyParameter() string {
	return c.ParamPrefix + "/gemini-api-key"
}

// HTTPAddr returns the dev server listen address.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
