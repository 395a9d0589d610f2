// Package config provides configuration management for the Google Ads authorization core.
// It handles loading and parsing the YAML configuration file, applying environment
// overrides, and validating the OAuth client settings before any network call is made.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2/google"
	"gopkg.in/yaml.v3"
)

// DefaultScope is the Google Ads API scope requested when none is configured.
const DefaultScope = "https://www.googleapis.com/auth/adwords"

// DefaultAuthDir holds the file token backend when auth-dir is not configured.
const DefaultAuthDir = "~/.googleadsdashboard"

const (
	// DefaultRevokeURL is Google's token revocation endpoint.
	DefaultRevokeURL = "https://oauth2.googleapis.com/revoke"

	defaultPopupWidth    = 500
	defaultPopupHeight   = 600
	defaultProbeInterval = time.Second
	defaultPopupTimeout  = 5 * time.Minute
	defaultAPIPort       = 8317
	defaultAuthDir       = DefaultAuthDir
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	SDKConfig `yaml:",inline"`

	// OAuth holds the public client registration.
	OAuth OAuthConfig `yaml:"oauth" json:"oauth"`

	// Popup controls the consent surface coordinator.
	Popup PopupConfig `yaml:"popup" json:"popup"`

	// API configures the optional local HTTP API.
	API APIConfig `yaml:"api" json:"api"`

	// AuthDir is the directory used by the file token backend.
	AuthDir string `yaml:"auth-dir" json:"auth-dir"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug" json:"debug" env:"ADSAUTH_DEBUG"`

	// LoggingToFile switches log output to a rotating file in LogDir.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file" env:"ADSAUTH_LOGGING_TO_FILE"`

	// LogDir overrides the directory used when LoggingToFile is set.
	LogDir string `yaml:"log-dir" json:"log-dir"`

	// LogsMaxTotalSizeMB caps the total size of rotated log files; 0 disables pruning.
	LogsMaxTotalSizeMB int `yaml:"logs-max-total-size-mb" json:"logs-max-total-size-mb"`
}

// OAuthConfig is the client registration consumed by the authorization core.
type OAuthConfig struct {
	ClientID             string   `yaml:"client-id" json:"client-id" env:"GOOGLE_OAUTH_CLIENT_ID"`
	RedirectURI          string   `yaml:"redirect-uri" json:"redirect-uri" env:"GOOGLE_OAUTH_REDIRECT_URI"`
	Scopes               []string `yaml:"scopes" json:"scopes" env:"GOOGLE_OAUTH_SCOPES" envSeparator:" "`
	IncludeGrantedScopes bool     `yaml:"include-granted-scopes" json:"include-granted-scopes"`
	AuthURL              string   `yaml:"auth-url" json:"auth-url"`
	TokenURL             string   `yaml:"token-url" json:"token-url"`
	RevokeURL            string   `yaml:"revoke-url" json:"revoke-url"`
	RevokeOnSignOut      bool     `yaml:"revoke-on-sign-out" json:"revoke-on-sign-out"`
}

// PopupConfig tunes the consent surface.
type PopupConfig struct {
	Width         int           `yaml:"width" json:"width"`
	Height        int           `yaml:"height" json:"height"`
	ProbeInterval time.Duration `yaml:"probe-interval" json:"probe-interval"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	// ManualPrompt switches to the paste-the-callback surface instead of the loopback listener.
	ManualPrompt bool `yaml:"manual-prompt" json:"manual-prompt"`
}

// APIConfig configures the local HTTP API.
type APIConfig struct {
	Host string   `yaml:"host" json:"host"`
	Port int      `yaml:"port" json:"port"`
	Keys []string `yaml:"keys" json:"keys"`
}

// Provider exposes the OAuth client registration to the core.
type Provider interface {
	OAuthConfig() OAuthConfig
}

// OAuthConfig implements Provider.
func (c *Config) OAuthConfig() OAuthConfig {
	if c == nil {
		return OAuthConfig{}
	}
	return c.OAuth
}

// LoadConfig reads the YAML configuration file at configFile.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional reads configFile; when optional is true a missing file yields defaults.
// Environment variables (optionally from a .env next to the working directory) override file values.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	cfg := &Config{}

	if strings.TrimSpace(configFile) != "" {
		data, err := os.ReadFile(configFile)
		switch {
		case err == nil:
			if err = yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case optional && errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadDotEnv loads variables from path if it exists. Existing variables are not overwritten.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ApplyEnv overrides cfg fields with values from the process environment.
func ApplyEnv(cfg *Config) error {
	// Nested structs are walked by env.Parse; unset variables leave file values intact.
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if len(c.OAuth.Scopes) == 0 {
		c.OAuth.Scopes = []string{DefaultScope}
	}
	if c.OAuth.AuthURL == "" {
		c.OAuth.AuthURL = google.Endpoint.AuthURL
	}
	if c.OAuth.TokenURL == "" {
		c.OAuth.TokenURL = google.Endpoint.TokenURL
	}
	if c.OAuth.RevokeURL == "" {
		c.OAuth.RevokeURL = DefaultRevokeURL
	}
	if c.Popup.Width <= 0 {
		c.Popup.Width = defaultPopupWidth
	}
	if c.Popup.Height <= 0 {
		c.Popup.Height = defaultPopupHeight
	}
	if c.Popup.ProbeInterval <= 0 {
		c.Popup.ProbeInterval = defaultProbeInterval
	}
	if c.Popup.Timeout <= 0 {
		c.Popup.Timeout = defaultPopupTimeout
	}
	if c.API.Port <= 0 {
		c.API.Port = defaultAPIPort
	}
	if c.API.Host == "" {
		c.API.Host = "127.0.0.1"
	}
	if c.AuthDir == "" {
		c.AuthDir = defaultAuthDir
	}
}

// IssueSeverity classifies a validation finding.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single configuration finding.
type Issue struct {
	Field    string
	Severity IssueSeverity
	Message  string
}

// Validate inspects the OAuth registration. Errors make sign-in impossible;
// warnings point at setups that usually fail at the consent screen.
func (o OAuthConfig) Validate() []Issue {
	var issues []Issue

	clientID := strings.TrimSpace(o.ClientID)
	switch {
	case clientID == "":
		issues = append(issues, Issue{Field: "client-id", Severity: SeverityError, Message: "GOOGLE_OAUTH_CLIENT_ID is missing"})
	case !strings.HasSuffix(clientID, ".apps.googleusercontent.com"):
		issues = append(issues, Issue{Field: "client-id", Severity: SeverityWarning, Message: "client id should end with .apps.googleusercontent.com"})
	}

	redirect := strings.TrimSpace(o.RedirectURI)
	if redirect == "" {
		issues = append(issues, Issue{Field: "redirect-uri", Severity: SeverityError, Message: "GOOGLE_OAUTH_REDIRECT_URI is missing"})
		return issues
	}
	u, err := url.Parse(redirect)
	if err != nil || u.Scheme == "" || u.Host == "" {
		issues = append(issues, Issue{Field: "redirect-uri", Severity: SeverityError, Message: "redirect uri must be an absolute URL"})
		return issues
	}
	if !IsLoopbackHost(u.Hostname()) {
		issues = append(issues, Issue{Field: "redirect-uri", Severity: SeverityWarning, Message: "redirect uri is not a loopback address; the local callback listener cannot observe it"})
	}
	return issues
}

// IsLoopbackHost reports whether host names the local machine.
func IsLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Redacted returns a copy safe for logging.
func (o OAuthConfig) Redacted() OAuthConfig {
	r := o
	if len(r.ClientID) > 20 {
		r.ClientID = r.ClientID[:20] + "..."
	} else if r.ClientID == "" {
		r.ClientID = "NOT SET"
	}
	if r.RedirectURI == "" {
		r.RedirectURI = "NOT SET"
	}
	return r
}
