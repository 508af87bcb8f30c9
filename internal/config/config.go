// Package config loads the client configuration: a YAML file layered over
// defaults, optional .env loading, and STITCH_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultBaseURL is the hosted service endpoint.
	DefaultBaseURL = "https://stitch.mongodb.com"

	// DefaultRequestTimeout bounds a single request when the caller sets none.
	DefaultRequestTimeout = 60 * time.Second

	// DefaultRefreshSkew is how early an expiring access token is refreshed.
	DefaultRefreshSkew = 10 * time.Second
)

// Config is the client configuration, loaded from a YAML file.
type Config struct {
	// BaseURL is the scheme and host requests are sent to.
	BaseURL string `yaml:"base-url" json:"base-url"`

	// AppID identifies the client application in every route.
	AppID string `yaml:"app-id" json:"app-id"`

	// ProxyURL routes outbound requests through an HTTP(S) proxy.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url"`

	// UserAgent overrides the transport's User-Agent header.
	UserAgent string `yaml:"user-agent,omitempty" json:"user-agent,omitempty"`

	// RequestTimeout is the default per-request timeout.
	RequestTimeout time.Duration `yaml:"request-timeout" json:"request-timeout"`

	// RefreshSkew makes the client refresh tokens this long before expiry.
	RefreshSkew time.Duration `yaml:"refresh-skew" json:"refresh-skew"`

	Device Device  `yaml:"device,omitempty" json:"device,omitempty"`
	Log    Logging `yaml:"log" json:"log"`
}

// Device is reported to the server on every login.
type Device struct {
	AppVersion      string `yaml:"app-version,omitempty" json:"app-version,omitempty"`
	Platform        string `yaml:"platform,omitempty" json:"platform,omitempty"`
	PlatformVersion string `yaml:"platform-version,omitempty" json:"platform-version,omitempty"`
}

// Logging controls the log level and optional rotating file output.
type Logging struct {
	Level        string `yaml:"level" json:"level"`
	ReportCaller bool   `yaml:"report-caller,omitempty" json:"report-caller,omitempty"`
	// ToFile writes logs to Dir/stitch.log instead of stderr.
	ToFile     bool   `yaml:"to-file,omitempty" json:"to-file,omitempty"`
	Dir        string `yaml:"dir,omitempty" json:"dir,omitempty"`
	MaxSizeMB  int    `yaml:"max-size-mb,omitempty" json:"max-size-mb,omitempty"`
	MaxBackups int    `yaml:"max-backups,omitempty" json:"max-backups,omitempty"`
	MaxAgeDays int    `yaml:"max-age-days,omitempty" json:"max-age-days,omitempty"`
}

// NewDefaultConfig creates a Config with sensible defaults. Only AppID has
// no usable default.
func NewDefaultConfig() *Config {
	return &Config{
		BaseURL:        DefaultBaseURL,
		RequestTimeout: DefaultRequestTimeout,
		RefreshSkew:    DefaultRefreshSkew,
		Log: Logging{
			Level: "info",
		},
	}
}

// GenerateDefaultConfigYAML renders NewDefaultConfig as YAML, used by the
// CLI's init command.
func GenerateDefaultConfigYAML() []byte {
	data, err := yaml.Marshal(NewDefaultConfig())
	if err != nil {
		return []byte("base-url: " + DefaultBaseURL + "\nrequest-timeout: 1m0s\n")
	}
	return data
}

// LoadConfig reads a YAML configuration file, layers it over the defaults
// and validates the result.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional reads YAML from configFile.
// If optional is true and the file is missing or empty, it returns a default
// Config. Environment overrides are not applied; see ApplyEnv.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		if optional && (os.IsNotExist(err) || errors.Is(err, syscall.EISDIR)) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if optional && len(strings.TrimSpace(string(data))) == 0 {
		return NewDefaultConfig(), nil
	}

	return Parse(data)
}

// Parse decodes YAML over the defaults and normalizes the result.
func Parse(data []byte) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.AppID = strings.TrimSpace(c.AppID)
	c.ProxyURL = strings.TrimSpace(c.ProxyURL)
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.RefreshSkew < 0 {
		c.RefreshSkew = 0
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
}

// Validate reports configuration that cannot produce a working client.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil config")
	}
	if c.AppID == "" {
		return errors.New("config: app-id is required")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("config: base-url %q must start with http:// or https://", c.BaseURL)
	}
	return nil
}

// LoadDotEnv loads path into the process environment if it exists. Variables
// already set are left alone.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides fields from STITCH_* variables. A nil lookup reads the
// process environment.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}

	if v, ok := get("STITCH_BASE_URL"); ok {
		c.BaseURL = v
	}
	if v, ok := get("STITCH_APP_ID"); ok {
		c.AppID = v
	}
	if v, ok := get("STITCH_PROXY_URL"); ok {
		c.ProxyURL = v
	}
	if v, ok := get("STITCH_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := get("STITCH_REQUEST_TIMEOUT"); ok {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("config: STITCH_REQUEST_TIMEOUT: %w", err)
		}
		c.RequestTimeout = d
	}
	if v, ok := get("STITCH_REFRESH_SKEW"); ok {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("config: STITCH_REFRESH_SKEW: %w", err)
		}
		c.RefreshSkew = d
	}
	c.normalize()
	return nil
}

// parseDuration accepts Go durations and bare seconds.
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}
