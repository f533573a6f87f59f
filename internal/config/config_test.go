package config

import (
	"errors"
	"strings"
	"testing"
)

// validConfig returns a configuration that passes Validate.
func validConfig() *Config {
	return &Config{
		ServiceURL:     "http://localhost:8000",
		AuthStrategy:   StrategyNone,
		RequestTimeout: DefaultRequestTimeout,
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_NilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("expected ErrConfigNil, got: %v", err)
	}
}

func TestValidate_ServiceURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{"missing", "", ErrMissingServiceURL},
		{"no scheme", "localhost:8000", ErrInvalidServiceURL},
		{"garbage", "://nope", ErrInvalidServiceURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.ServiceURL = tt.url
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ClientCredentialsRequiresSecrets(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"no token url", func(c *Config) { c.TokenURL = "" }, ErrMissingTokenURL},
		{"no client id", func(c *Config) { c.ClientID = "" }, ErrMissingClientID},
		{"no client secret", func(c *Config) { c.ClientSecret = "" }, ErrMissingClientSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.AuthStrategy = StrategyClientCredentials
			cfg.TokenURL = "https://sts.example.com/oauth2/token"
			cfg.ClientID = "client-id"
			cfg.ClientSecret = "client-secret"
			tt.mutate(cfg)

			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_UnknownStrategy(t *testing.T) {
	cfg := validConfig()
	cfg.AuthStrategy = "kerberos"
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidAuthStrategy) {
		t.Errorf("expected ErrInvalidAuthStrategy, got: %v", err)
	}
}

func TestValidate_TimeoutRange(t *testing.T) {
	for _, timeout := range []int{0, -1, MaxRequestTimeout + 1} {
		cfg := validConfig()
		cfg.RequestTimeout = timeout
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidTimeout) {
			t.Errorf("RequestTimeout=%d: expected ErrInvalidTimeout, got: %v", timeout, err)
		}
	}
}

func TestMarshalJSON_MasksClientSecret(t *testing.T) {
	cfg := validConfig()
	cfg.AuthStrategy = StrategyClientCredentials
	cfg.TokenURL = "https://sts.example.com/oauth2/token"
	cfg.ClientID = "client-id"
	cfg.ClientSecret = "super-secret-value-123"

	data, err := cfg.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}

	out := string(data)
	if strings.Contains(out, "super-secret-value-123") {
		t.Error("client secret leaked in JSON output")
	}
	if !strings.Contains(out, maskedValue) {
		t.Error("expected masked value in JSON output")
	}
}

func TestString_MasksClientSecret(t *testing.T) {
	cfg := validConfig()
	cfg.ClientSecret = "another-secret-098765"

	if out := cfg.String(); strings.Contains(out, "another-secret-098765") {
		t.Error("client secret leaked in String() output")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"short", maskedValue},
		{"12345678", maskedValue},
		{"my_long_secret_key_123", "my<" + maskedValue + ">23"},
	}

	for _, tt := range tests {
		if got := maskSecret(tt.in); got != tt.want {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.RequestTimeout = 30
	if got := cfg.Timeout().Seconds(); got != 30 {
		t.Errorf("Timeout() = %vs, want 30s", got)
	}
}
