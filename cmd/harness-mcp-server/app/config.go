// Package app implements the harness-mcp-server subcommands
package app

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stacklok/toolhive/pkg/logger"

	"github.com/harness/mcp-server/pkg/config"
)

// EnvPrefix prefixes every environment variable the server reads, e.g.
// HARNESS_API_KEY or HARNESS_HTTP_ADDRESS.
const EnvPrefix = "HARNESS"

// Viper keys. Nested keys map to the YAML layout of config.Config.
const (
	keyConfig           = "config"
	keyBaseURL          = "base_url"
	keyMode             = "mode"
	keyAPIKey           = "api_key"
	keyBearerSecret     = "bearer_secret"
	keyDefaultOrgID     = "default_org_id"
	keyDefaultProjectID = "default_project_id"
	keyToolsets         = "toolsets"
	keyReadOnly         = "read_only"
	keyToolTimeout      = "tool_timeout"
	keyHTTPAddress      = "http.address"
	keyHTTPPath         = "http.path"
	keyInternalAddress  = "internal.address"
)

// BindEnv makes every key readable from HARNESS_* environment variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// AddConfigFlags defines the flags that override the configuration file and
// binds them to v.
func AddConfigFlags(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("config", "", "Path to configuration file (YAML format)")
	flags.String("base-url", "", "Base URL of the Harness platform")
	flags.String("mode", "", "Credential mode: external (API keys) or internal (bearer tokens)")
	flags.String("default-org-id", "", "Organization used when a credential does not name one")
	flags.String("default-project-id", "", "Project used when a credential does not name one")
	flags.StringSlice("toolsets", nil, "Toolsets to enable, or \"all\"")
	flags.Bool("read-only", false, "Hide and refuse tools that change state")

	_ = v.BindPFlag(keyConfig, flags.Lookup("config"))
	_ = v.BindPFlag(keyBaseURL, flags.Lookup("base-url"))
	_ = v.BindPFlag(keyMode, flags.Lookup("mode"))
	_ = v.BindPFlag(keyDefaultOrgID, flags.Lookup("default-org-id"))
	_ = v.BindPFlag(keyDefaultProjectID, flags.Lookup("default-project-id"))
	_ = v.BindPFlag(keyToolsets, flags.Lookup("toolsets"))
	_ = v.BindPFlag(keyReadOnly, flags.Lookup("read-only"))
}

// loadConfig reads the configuration file, applies flag and environment
// overrides from v and validates the result.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	configPath := v.GetString(keyConfig)
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	overlay(v, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if configPath != "" {
		logger.Infof("Loaded configuration from %s (mode: %s, toolsets: %s, read-only: %t)",
			configPath, cfg.Mode, strings.Join(cfg.Toolsets, ","), cfg.ReadOnly)
	}
	return cfg, nil
}

// overlay copies every key that was explicitly set through a flag or the
// environment onto cfg.
func overlay(v *viper.Viper, cfg *config.Config) {
	fields := map[string]*string{
		keyBaseURL:          &cfg.BaseURL,
		keyAPIKey:           &cfg.APIKey,
		keyBearerSecret:     &cfg.BearerSecret,
		keyDefaultOrgID:     &cfg.DefaultOrgID,
		keyDefaultProjectID: &cfg.DefaultProjectID,
		keyHTTPAddress:      &cfg.HTTP.Address,
		keyHTTPPath:         &cfg.HTTP.Path,
		keyInternalAddress:  &cfg.Internal.Address,
	}
	for key, target := range fields {
		if v.IsSet(key) {
			*target = v.GetString(key)
		}
	}

	if v.IsSet(keyMode) {
		cfg.Mode = config.Mode(v.GetString(keyMode))
	}
	if v.IsSet(keyToolsets) {
		cfg.Toolsets = splitList(v.GetStringSlice(keyToolsets))
	}
	if v.IsSet(keyReadOnly) {
		cfg.ReadOnly = v.GetBool(keyReadOnly)
	}
	if v.IsSet(keyToolTimeout) {
		cfg.ToolTimeout = v.GetDuration(keyToolTimeout)
	}
}

// splitList flattens comma separated entries, so "a,b" from the environment
// and --toolsets a --toolsets b give the same result.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}
