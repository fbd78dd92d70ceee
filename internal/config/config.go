// Package config provides YAML-based configuration with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted at startup.
const (
	EnvInternalAPIURL = "INTERNAL_API_URL"
	EnvPublicAPIBase  = "NEXT_PUBLIC_API_BASE"
	EnvPort           = "PORT"
	EnvBindAddress    = "BIND_ADDRESS"
	EnvSampleDir      = "SAMPLE_DIR"
	EnvLogLevel       = "LOG_LEVEL"
	EnvToastDelayMs   = "TOAST_DELAY_MS"
)

// DefaultBackendURL is the development fallback for the vision/agent backend.
const DefaultBackendURL = "http://localhost:8080"

// AppConfig represents the root configuration structure
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	Samples SamplesConfig `yaml:"samples"`
	Flow    FlowConfig    `yaml:"flow"`
	Logging LoggingConfig `yaml:"logging"`

	// resolved once by Load, never written to disk
	backendURL    string
	backendSource string
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port           int      `yaml:"port"`
	BindAddress    string   `yaml:"bindAddress"`
	EnableCORS     bool     `yaml:"enableCors"`
	AllowOrigins   []string `yaml:"allowOrigins"`
	ReadTimeout    int      `yaml:"readTimeoutSeconds"`
	IdleTimeout    int      `yaml:"idleTimeoutSeconds"`
	BodyLimit      string   `yaml:"bodyLimit"`
	RateLimitRPS   float64  `yaml:"rateLimitRps"`
	RateLimitBurst int      `yaml:"rateLimitBurst"`
	RequestLogging bool     `yaml:"requestLogging"`
}

// BackendConfig holds the candidate backend base URLs. Environment
// variables take precedence over the file values.
type BackendConfig struct {
	InternalURL string `yaml:"internalUrl"`
	PublicBase  string `yaml:"publicBase"`
	DefaultURL  string `yaml:"defaultUrl"`
}

// SamplesConfig locates the sample photo directory.
type SamplesConfig struct {
	Directory string `yaml:"directory"`
}

// FlowConfig tunes the server-side upload flows.
type FlowConfig struct {
	ToastDelayMs int `yaml:"toastDelayMs"`
	TTLMinutes   int `yaml:"ttlMinutes"`
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:           3000,
			BindAddress:    "0.0.0.0",
			EnableCORS:     true,
			AllowOrigins:   []string{"*"},
			ReadTimeout:    30,
			IdleTimeout:    120,
			BodyLimit:      "20M",
			RateLimitRPS:   10,
			RateLimitBurst: 30,
			RequestLogging: true,
		},
		Backend: BackendConfig{
			DefaultURL: DefaultBackendURL,
		},
		Samples: SamplesConfig{
			Directory: "./public/sample_photos",
		},
		Flow: FlowConfig{
			ToastDelayMs: 4000,
			TTLMinutes:   30,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from a YAML file, creating it with defaults
// when missing, then applies .env and environment overrides and resolves the
// backend URL.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load(filepath.Join(filepath.Dir(configPath), ".env"))

	config.applyEnvironmentOverrides(os.LookupEnv)
	config.resolvePaths(filepath.Dir(configPath))
	config.backendURL, config.backendSource = ResolveBackendURL(config.BackendSources())

	return config, nil
}

// Save saves the configuration to a YAML file
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# Leafy claims demo configuration\n# This file is auto-generated on first run\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvInternalAPIURL); ok && v != "" {
		c.Backend.InternalURL = v
	}
	if v, ok := lookup(EnvPublicAPIBase); ok && v != "" {
		c.Backend.PublicBase = v
	}
	if v, ok := lookup(EnvPort); ok {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v, ok := lookup(EnvBindAddress); ok && v != "" {
		c.Server.BindAddress = v
	}
	if v, ok := lookup(EnvSampleDir); ok && v != "" {
		c.Samples.Directory = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup(EnvToastDelayMs); ok {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			c.Flow.ToastDelayMs = ms
		}
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if c.Samples.Directory != "" && !filepath.IsAbs(c.Samples.Directory) {
		c.Samples.Directory = filepath.Join(configDir, c.Samples.Directory)
	}
}

// BackendSource is one candidate in the backend URL preference list.
type BackendSource struct {
	Name  string
	Value string
}

// BackendSources returns the backend URL candidates in preference order:
// the internal service URL, the public base URL (known to trip SSO in the
// hosted deployment), then the local development default.
func (c *AppConfig) BackendSources() []BackendSource {
	fallback := c.Backend.DefaultURL
	if fallback == "" {
		fallback = DefaultBackendURL
	}
	return []BackendSource{
		{Name: "internal", Value: c.Backend.InternalURL},
		{Name: "public", Value: c.Backend.PublicBase},
		{Name: "local-default", Value: fallback},
	}
}

// ResolveBackendURL returns the first non-empty candidate, without a
// trailing slash, and the name of the source it came from.
func ResolveBackendURL(sources []BackendSource) (string, string) {
	for _, s := range sources {
		v := strings.TrimRight(strings.TrimSpace(s.Value), "/")
		if v != "" {
			return v, s.Name
		}
	}
	return DefaultBackendURL, "local-default"
}

// BackendURL returns the backend base URL resolved at load time.
func (c *AppConfig) BackendURL() string {
	if c.backendURL == "" {
		c.backendURL, c.backendSource = ResolveBackendURL(c.BackendSources())
	}
	return c.backendURL
}

// BackendSourceName reports which source BackendURL came from.
func (c *AppConfig) BackendSourceName() string {
	c.BackendURL()
	return c.backendSource
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// ToastDelay returns the delay before the "under review" notification. A
// configured 0 means immediately, which claim.FlowOptions spells as negative.
func (c *AppConfig) ToastDelay() time.Duration {
	if c.Flow.ToastDelayMs <= 0 {
		return -1
	}
	return time.Duration(c.Flow.ToastDelayMs) * time.Millisecond
}

// FlowTTL returns how long idle flows stay in the registry.
func (c *AppConfig) FlowTTL() time.Duration {
	if c.Flow.TTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Flow.TTLMinutes) * time.Minute
}
