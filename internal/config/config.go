// Package config provides runtime configuration for the docchat client.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (DOCCHAT_* overrides, .env via godotenv)
//  2. Config file (~/.docchat/config.yaml or ./config.yaml)
//  3. Default values
//
// The configuration surface is read-only after Load: components receive
// the resolved *Config at wiring time and never mutate it.
//
// Security: the client secret is never logged; MarshalJSON masks it.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingServiceURL indicates no backend service URL is configured.
	ErrMissingServiceURL = errors.New("missing service URL")

	// ErrInvalidServiceURL indicates the service URL cannot be parsed.
	ErrInvalidServiceURL = errors.New("invalid service URL")

	// ErrInvalidAuthStrategy indicates an unknown auth strategy name.
	ErrInvalidAuthStrategy = errors.New("invalid auth strategy")

	// ErrMissingTokenURL indicates the client-credential strategy is
	// selected but no token endpoint is configured.
	ErrMissingTokenURL = errors.New("missing token URL")

	// ErrMissingClientID indicates the client-credential strategy is
	// selected but no client ID is configured.
	ErrMissingClientID = errors.New("missing client ID")

	// ErrMissingClientSecret indicates the client-credential strategy is
	// selected but no client secret is configured.
	ErrMissingClientSecret = errors.New("missing client secret")

	// ErrInvalidTimeout indicates the request timeout is out of range.
	ErrInvalidTimeout = errors.New("invalid request timeout")
)

// Auth strategy identifiers used in Config.AuthStrategy.
const (
	// StrategyClientCredentials exchanges a client id/secret pair at the
	// token endpoint for a bearer token attached to every backend call.
	StrategyClientCredentials = "client_credentials"

	// StrategySession relies on an ambient cookie-backed session,
	// validated against the userinfo endpoint.
	StrategySession = "session"

	// StrategyNone calls the backend unauthenticated (direct deployments).
	StrategyNone = "none"
)

// Request timeout bounds in seconds.
const (
	DefaultRequestTimeout = 60
	MinRequestTimeout     = 1
	MaxRequestTimeout     = 600
)

// Config stores the docchat runtime configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// Backend service location
	ServiceURL string `mapstructure:"service_url" json:"service_url"`
	APIPrefix  string `mapstructure:"api_prefix" json:"api_prefix"` // e.g. "/choreo-apis"

	// Authentication
	AuthStrategy string `mapstructure:"auth_strategy" json:"auth_strategy"`
	TokenURL     string `mapstructure:"token_url" json:"token_url"`
	ClientID     string `mapstructure:"client_id" json:"client_id"`
	ClientSecret string `mapstructure:"client_secret" json:"client_secret"` // SENSITIVE: masked in MarshalJSON

	// Network
	RequestTimeout int `mapstructure:"request_timeout" json:"request_timeout"` // seconds

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	// Optional .env in the working directory; absence is not an error.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Debug("no .env file loaded", "error", err)
	}

	configDir, err := Dir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use defaults.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// Dir returns the docchat configuration/state directory (~/.docchat),
// creating it if needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting user home directory: %w", err)
	}

	dir := filepath.Join(home, ".docchat")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	return dir, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("service_url", "http://localhost:8000")
	v.SetDefault("api_prefix", "")
	v.SetDefault("auth_strategy", StrategyNone)
	v.SetDefault("request_timeout", DefaultRequestTimeout)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// bindEnvVariables binds environment variable overrides explicitly.
// The client secret is only ever sourced from the environment or the
// config file, never from flags.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("service_url", "DOCCHAT_SERVICE_URL")
	mustBind("api_prefix", "DOCCHAT_API_PREFIX")
	mustBind("auth_strategy", "DOCCHAT_AUTH_STRATEGY")
	mustBind("token_url", "DOCCHAT_TOKEN_URL")
	mustBind("client_id", "DOCCHAT_CLIENT_ID")
	mustBind("client_secret", "DOCCHAT_CLIENT_SECRET")
	mustBind("request_timeout", "DOCCHAT_REQUEST_TIMEOUT")
	mustBind("log_level", "DOCCHAT_LOG_LEVEL")
	mustBind("log_json", "DOCCHAT_LOG_JSON")
}

// Validate checks the configuration for consistency. Fail-fast: wiring
// refuses to proceed on any validation error.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.ServiceURL == "" {
		return ErrMissingServiceURL
	}
	u, err := url.Parse(c.ServiceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidServiceURL, c.ServiceURL)
	}

	switch c.AuthStrategy {
	case StrategyClientCredentials:
		if c.TokenURL == "" {
			return ErrMissingTokenURL
		}
		if c.ClientID == "" {
			return ErrMissingClientID
		}
		if c.ClientSecret == "" {
			return ErrMissingClientSecret
		}
	case StrategySession, StrategyNone:
		// No extra fields required.
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAuthStrategy, c.AuthStrategy)
	}

	if c.RequestTimeout < MinRequestTimeout || c.RequestTimeout > MaxRequestTimeout {
		return fmt.Errorf("%w: %d (must be %d-%d seconds)",
			ErrInvalidTimeout, c.RequestTimeout, MinRequestTimeout, MaxRequestTimeout)
	}

	return nil
}

// Timeout returns the request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Short secrets are
// fully masked to prevent substring matching; longer ones keep the
// first and last two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit masking of the
// client secret. When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.ClientSecret = maskSecret(a.ClientSecret)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
