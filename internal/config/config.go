// Package config loads cloudaudit settings from a TOML file and CLOUDAUDIT_
// environment variables.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	toml "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/chukul/cloudaudit/internal/auditerr"
	"github.com/chukul/cloudaudit/internal/credentials"
	"github.com/chukul/cloudaudit/internal/identity"
	"github.com/chukul/cloudaudit/internal/securityhub"
	"github.com/chukul/cloudaudit/internal/session"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "CLOUDAUDIT_"

const (
	MinSessionDuration = 15 * time.Minute
	MaxSessionDuration = 12 * time.Hour
)

// Config holds all settings for an audit run.
type Config struct {
	Profile string `koanf:"profile"`

	// Static keys for the base session. When set they take precedence over
	// the profile's credentials.
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
	SessionToken    string `koanf:"session_token"`

	RoleARN              string        `koanf:"role_arn"`
	ExternalID           string        `koanf:"external_id"`
	SessionDuration      time.Duration `koanf:"session_duration"`
	SessionName          string        `koanf:"session_name"`
	MFASerial            string        `koanf:"mfa_serial"`
	OrganizationsRoleARN string        `koanf:"organizations_role_arn"`

	// Regions limits the audit; empty means every supported region.
	Regions       []string `koanf:"regions"`
	DefaultRegion string   `koanf:"default_region"`

	// CatalogPath points at a region capability table. Empty uses the
	// embedded one.
	CatalogPath     string `koanf:"catalog_path"`
	OutputDirectory string `koanf:"output_directory"`

	Logging     LoggingConfig     `koanf:"logging"`
	SecurityHub SecurityHubConfig `koanf:"securityhub"`
	Credentials CredentialsConfig `koanf:"credentials"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// SecurityHubConfig holds finding store settings.
type SecurityHubConfig struct {
	ProductName string `koanf:"product_name"`
	Integration string `koanf:"integration"`
	Concurrency int    `koanf:"concurrency"`
	BatchSize   int    `koanf:"batch_size"`
}

// CredentialsConfig controls renewal of temporary credentials.
type CredentialsConfig struct {
	ExpiryWindow time.Duration `koanf:"expiry_window"`
}

// Load reads configPath (optional) and the environment over the defaults.
// Callers apply their own overrides and then call Validate.
func Load(configPath string) (*Config, error) {
	cfg := defaultConfig()

	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, auditerr.New(auditerr.KindConfig, "load config", fmt.Errorf("failed to load config file: %w", err))
		}
	}

	// Double underscores (__) preserve literal underscores in key names:
	// CLOUDAUDIT_ROLE__ARN → role_arn, CLOUDAUDIT_LOGGING_LEVEL → logging.level
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "__", "%UNDERSCORE%")
		s = strings.ReplaceAll(s, "_", ".")
		s = strings.ReplaceAll(s, "%UNDERSCORE%", "_")
		return s
	}), nil); err != nil {
		return nil, auditerr.New(auditerr.KindConfig, "load config", fmt.Errorf("failed to load environment variables: %w", err))
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           cfg,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, auditerr.New(auditerr.KindConfig, "load config", fmt.Errorf("failed to unmarshal config: %w", err))
	}

	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		SessionDuration: identity.DefaultSessionDuration,
		SessionName:     identity.DefaultSessionName,
		DefaultRegion:   session.FallbackRegion,
		OutputDirectory: "output",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		SecurityHub: SecurityHubConfig{
			ProductName: securityhub.DefaultProductName,
			Integration: securityhub.DefaultIntegration,
			Concurrency: 4,
			BatchSize:   securityhub.MaxBatchSize,
		},
		Credentials: CredentialsConfig{
			ExpiryWindow: credentials.DefaultExpiryWindow,
		},
	}
}

// Validate checks the configuration. Errors are ConfigError.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return auditerr.Newf(auditerr.KindConfig, "validate config", format, args...)
	}

	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return invalid("access_key_id and secret_access_key must be set together")
	}
	if c.SessionToken != "" && c.AccessKeyID == "" {
		return invalid("session_token requires access_key_id and secret_access_key")
	}
	for _, roleARN := range []string{c.RoleARN, c.OrganizationsRoleARN} {
		if roleARN == "" {
			continue
		}
		if err := identity.ValidateRoleARN(roleARN); err != nil {
			return auditerr.New(auditerr.KindConfig, "validate config", err)
		}
	}
	if c.ExternalID != "" && c.RoleARN == "" {
		return invalid("external_id requires role_arn")
	}
	if c.SessionDuration < MinSessionDuration || c.SessionDuration > MaxSessionDuration {
		return invalid("session_duration must be between %s and %s, got %s", MinSessionDuration, MaxSessionDuration, c.SessionDuration)
	}
	if c.SessionName == "" {
		return invalid("session_name is required")
	}
	if c.DefaultRegion == "" {
		return invalid("default_region is required")
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Logging.Level) {
		return invalid("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	if !slices.Contains([]string{"json", "console"}, c.Logging.Format) {
		return invalid("logging.format must be json or console; got %q", c.Logging.Format)
	}
	if c.SecurityHub.BatchSize < 1 || c.SecurityHub.BatchSize > securityhub.MaxBatchSize {
		return invalid("securityhub.batch_size must be between 1 and %d, got %d", securityhub.MaxBatchSize, c.SecurityHub.BatchSize)
	}
	if c.SecurityHub.Concurrency < 1 {
		return invalid("securityhub.concurrency must be positive, got %d", c.SecurityHub.Concurrency)
	}
	if c.SecurityHub.ProductName == "" || c.SecurityHub.Integration == "" {
		return invalid("securityhub.product_name and securityhub.integration are required")
	}
	if c.Credentials.ExpiryWindow < 0 || c.Credentials.ExpiryWindow >= c.SessionDuration {
		return invalid("credentials.expiry_window must be non-negative and shorter than session_duration")
	}
	return nil
}
