// Package config loads the server configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the server configuration
type Config struct {
	BaseURL          string         `yaml:"base_url"`
	Mode             Mode           `yaml:"mode"`
	APIKey           string         `yaml:"api_key"`
	BearerSecret     string         `yaml:"bearer_secret"`
	DefaultOrgID     string         `yaml:"default_org_id"`
	DefaultProjectID string         `yaml:"default_project_id"`
	Toolsets         []string       `yaml:"toolsets"`
	ReadOnly         bool           `yaml:"read_only"`
	ToolTimeout      time.Duration  `yaml:"tool_timeout"`
	Retry            RetryConfig    `yaml:"retry"`
	HTTP             HTTPConfig     `yaml:"http"`
	Internal         InternalConfig `yaml:"internal"`
}

// RetryConfig controls retries of backend calls
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Multiplier  float64       `yaml:"multiplier"`
}

// HTTPConfig configures the external HTTP transport
type HTTPConfig struct {
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// InternalConfig configures the loopback transport for service-to-service
// calls
type InternalConfig struct {
	Address string `yaml:"address"`
}

// Default returns a Config with the built-in defaults
func Default() *Config {
	return &Config{
		BaseURL:     "https://app.harness.io",
		Mode:        ModeExternal,
		Toolsets:    []string{"all"},
		ToolTimeout: 2 * time.Minute,
		Retry: RetryConfig{
			MaxAttempts: 4,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    60 * time.Second,
			Multiplier:  2,
		},
		HTTP: HTTPConfig{
			Address: ":8080",
			Path:    "/mcp",
		},
		Internal: InternalConfig{
			Address: "127.0.0.1:8081",
		},
	}
}

type loadOptions struct {
	path string
}

// Option configures LoadConfig
type Option func(*loadOptions)

// WithConfigPath reads the configuration from a YAML file. Without it only
// the defaults are returned.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) {
		o.path = path
	}
}

// LoadConfig returns the defaults overlaid with the YAML file, if any.
// ${VAR} references in the file are expanded from the environment. The
// result is not validated so callers can apply further overrides first.
func LoadConfig(opts ...Option) (*Config, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg := Default()
	if o.path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(o.path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", o.path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	var errs []error

	if parsed, err := url.Parse(c.BaseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		errs = append(errs, fmt.Errorf("base_url %q must be an absolute URL", c.BaseURL))
	}
	if err := c.Mode.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Mode == ModeInternal && c.BearerSecret == "" {
		errs = append(errs, errors.New("bearer_secret is required in internal mode"))
	}
	if c.DefaultProjectID != "" && c.DefaultOrgID == "" {
		errs = append(errs, errors.New("default_project_id requires default_org_id"))
	}
	if len(c.Toolsets) == 0 {
		errs = append(errs, errors.New("at least one toolset must be enabled"))
	}
	for _, name := range c.Toolsets {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, errors.New("toolset names must not be empty"))
			break
		}
	}
	if c.ToolTimeout < 0 {
		errs = append(errs, errors.New("tool_timeout must not be negative"))
	}
	if err := c.Retry.Validate(); err != nil {
		errs = append(errs, err)
	}
	if !strings.HasPrefix(c.HTTP.Path, "/") {
		errs = append(errs, fmt.Errorf("http.path %q must start with /", c.HTTP.Path))
	}

	return errors.Join(errs...)
}

// Validate checks the retry settings
func (r RetryConfig) Validate() error {
	switch {
	case r.MaxAttempts < 1:
		return errors.New("retry.max_attempts must be at least 1")
	case r.BaseDelay < 0:
		return errors.New("retry.base_delay must not be negative")
	case r.MaxDelay < r.BaseDelay:
		return errors.New("retry.max_delay must not be smaller than retry.base_delay")
	case r.Multiplier < 1:
		return errors.New("retry.multiplier must be at least 1")
	}
	return nil
}
