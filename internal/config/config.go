package config

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport names
const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
)

// Defaults
const (
	DefaultBaseURL = "https://api.navigatechat.com"
	DefaultPort    = 3000
)

// Environment variables read by ApplyEnv
const (
	EnvBaseURL   = "API_BASE_URL"
	EnvPort      = "PORT"
	EnvTransport = "MCP_TRANSPORT"
)

// Config represents the configuration for the chat-visualizer service
type Config struct {
	// BaseURL is the root of the diagram storage API
	BaseURL string `yaml:"base_url"`

	// Port is the listen port of the HTTP transport
	Port int `yaml:"port"`

	// Host is the listen address of the HTTP transport; empty means all
	// interfaces
	Host string `yaml:"host"`

	// Transport selects the binding: "http" or "stdio"
	Transport string `yaml:"transport"`

	// DisabledTools lists tool names that are not registered
	DisabledTools []string `yaml:"disabled_tools"`

	// Auth is an optional Authorization header value sent to the storage
	// API. It may be a 1Password secret reference (op://...).
	Auth string `yaml:"auth"`

	// Timeout bounds each storage API call. Zero leaves calls unbounded.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       DefaultBaseURL,
		Port:          DefaultPort,
		Transport:     TransportHTTP,
		DisabledTools: []string{},
	}
}

// LoadFile loads configuration from a YAML (or JSON) file. An empty path or
// a missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("error opening config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load loads configuration from an io.Reader on top of the defaults
func Load(r io.Reader) (*Config, error) {
	config := DefaultConfig()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading config data: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return config, nil
}

// ApplyEnv overrides fields from the environment. lookup is normally
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		c.BaseURL = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		c.Port = port
	}
	if v, ok := lookup(EnvTransport); ok && v != "" {
		c.Transport = strings.ToLower(v)
	}
	return nil
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base URL %q: scheme must be http or https", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid base URL %q: missing host", c.BaseURL)
	}

	switch c.Transport {
	case TransportHTTP:
		if c.Port < 0 || c.Port > 65535 {
			return fmt.Errorf("invalid port %d", c.Port)
		}
	case TransportStdio:
	default:
		return fmt.Errorf("unknown transport %q (want %q or %q)", c.Transport, TransportHTTP, TransportStdio)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	return nil
}

// Addr returns the listen address of the HTTP transport
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IsToolDisabled checks if a tool name is in the disabled list
func (c *Config) IsToolDisabled(name string) bool {
	for _, disabled := range c.DisabledTools {
		if disabled == name {
			return true
		}
	}
	return false
}
