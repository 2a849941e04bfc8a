package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, expected %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.Port != 3000 {
		t.Errorf("Port = %d, expected 3000", cfg.Port)
	}
	if cfg.Transport != TransportHTTP {
		t.Errorf("Transport = %q, expected %q", cfg.Transport, TransportHTTP)
	}
	if cfg.Timeout != 0 {
		t.Error("Timeout should be unset by default")
	}

	// Verify no tool is disabled
	if len(cfg.DisabledTools) != 0 {
		t.Error("DisabledTools should be empty by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	yamlConfig := `
base_url: http://localhost:8080
port: 4000
transport: stdio
timeout: 30s
disabled_tools:
  - justify_content
  - update_public_diagram
`

	cfg, err := Load(bytes.NewBufferString(yamlConfig))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.BaseURL != "http://localhost:8080" {
		t.Errorf("Expected base URL 'http://localhost:8080', got '%s'", cfg.BaseURL)
	}
	if cfg.Port != 4000 {
		t.Errorf("Expected port 4000, got %d", cfg.Port)
	}
	if cfg.Transport != TransportStdio {
		t.Errorf("Expected transport 'stdio', got '%s'", cfg.Transport)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Expected timeout 30s, got %s", cfg.Timeout)
	}

	if len(cfg.DisabledTools) != 2 {
		t.Fatalf("Expected 2 disabled tools, got %d", len(cfg.DisabledTools))
	}
	if cfg.DisabledTools[0] != "justify_content" {
		t.Errorf("Expected first disabled tool to be 'justify_content', got '%s'", cfg.DisabledTools[0])
	}
}

func TestLoadJSON(t *testing.T) {
	cfg, err := Load(bytes.NewBufferString(`{"base_url": "https://diagrams.example.com", "disabled_tools": ["visualize_chat"]}`))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.BaseURL != "https://diagrams.example.com" {
		t.Errorf("Expected JSON base URL, got '%s'", cfg.BaseURL)
	}
	// Unset fields keep their defaults
	if cfg.Port != DefaultPort {
		t.Errorf("Expected default port, got %d", cfg.Port)
	}
	if !cfg.IsToolDisabled("visualize_chat") {
		t.Error("visualize_chat should be disabled")
	}
}

func TestLoadInvalid(t *testing.T) {
	if _, err := Load(bytes.NewBufferString("port: [not a number")); err == nil {
		t.Error("expected a parse error")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file should yield defaults: %v", err)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("Expected defaults for missing file, got base URL '%s'", cfg.BaseURL)
	}

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("port: 9090\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadFile(path)
	if err != nil {
		t.Fatalf("Failed to load config file: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Port)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvBaseURL:   "http://127.0.0.1:5000",
		EnvPort:      "8081",
		EnvTransport: "STDIO",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg, err := Load(bytes.NewBufferString("base_url: https://from-file.example.com\nport: 4000\n"))
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	// Environment wins over the file
	if cfg.BaseURL != "http://127.0.0.1:5000" {
		t.Errorf("Expected env base URL, got '%s'", cfg.BaseURL)
	}
	if cfg.Port != 8081 {
		t.Errorf("Expected env port 8081, got %d", cfg.Port)
	}
	if cfg.Transport != TransportStdio {
		t.Errorf("Expected transport 'stdio', got '%s'", cfg.Transport)
	}

	env[EnvPort] = "eighty"
	if err := cfg.ApplyEnv(lookup); err == nil {
		t.Error("expected an error for a non-numeric port")
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"stdio", func(c *Config) { c.Transport = TransportStdio }, false},
		{"bad scheme", func(c *Config) { c.BaseURL = "ftp://example.com" }, true},
		{"missing host", func(c *Config) { c.BaseURL = "https://" }, true},
		{"unknown transport", func(c *Config) { c.Transport = "websocket" }, true},
		{"port out of range", func(c *Config) { c.Port = 70000 }, true},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestAddr(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.Addr(); got != ":3000" {
		t.Errorf("Addr() = %q, expected \":3000\"", got)
	}
	cfg.Host = "127.0.0.1"
	if got := cfg.Addr(); got != "127.0.0.1:3000" {
		t.Errorf("Addr() = %q, expected \"127.0.0.1:3000\"", got)
	}
}

func TestIsToolDisabled(t *testing.T) {
	cfg := &Config{
		DisabledTools: []string{"create_public_diagram", "justify_content"},
	}

	testCases := []struct {
		tool     string
		expected bool
	}{
		{"create_public_diagram", true},
		{"update_public_diagram", false},
		{"justify_content", true},
		{"visualize_chat", false},
		{"", false}, // Empty name should not be disabled
	}

	for _, tc := range testCases {
		t.Run(tc.tool, func(t *testing.T) {
			result := cfg.IsToolDisabled(tc.tool)
			if result != tc.expected {
				t.Errorf("IsToolDisabled(%s) = %v, expected %v", tc.tool, result, tc.expected)
			}
		})
	}
}
