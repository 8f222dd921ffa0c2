package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadFromFileYAML(t *testing.T) {
	path := writeTempFile(t, "config.yaml", `
port: 8080
path: /echo
maxMessageSize: 1024
idleTimeout: 30s
gpio:
  chip: /dev/gpiochip1
  line: 5
  activeLow: true
network:
  wait: false
log:
  level: debug
  format: text
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Path != "/echo" {
		t.Errorf("Path = %q, want /echo", cfg.Path)
	}
	if cfg.MaxMessageSize != 1024 {
		t.Errorf("MaxMessageSize = %d, want 1024", cfg.MaxMessageSize)
	}
	if cfg.IdleTimeout.Duration() != 30*time.Second {
		t.Errorf("IdleTimeout = %v, want 30s", cfg.IdleTimeout.Duration())
	}
	if cfg.GPIO.Chip != "/dev/gpiochip1" || cfg.GPIO.Line != 5 || !cfg.GPIO.ActiveLow {
		t.Errorf("GPIO = %+v", cfg.GPIO)
	}
	if cfg.Network.Wait == nil || *cfg.Network.Wait {
		t.Error("Network.Wait should be explicit false")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadFromFileJSON(t *testing.T) {
	path := writeTempFile(t, "config.json", `{
  "port": 9090,
  "maxConnections": 4,
  "closeOnProtocolError": false
}`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.MaxConnections != 4 {
		t.Errorf("MaxConnections = %d, want 4", cfg.MaxConnections)
	}
	if cfg.CloseOnProtocolError == nil || *cfg.CloseOnProtocolError {
		t.Error("CloseOnProtocolError should be explicit false")
	}
	// Unset fields pick up defaults.
	if cfg.Path != DefaultPath {
		t.Errorf("Path = %q, want default %q", cfg.Path, DefaultPath)
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/config.yaml")
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("error = %v, want %v", err, ErrFileNotFound)
	}
}

func TestLoadFromFileEmpty(t *testing.T) {
	path := writeTempFile(t, "empty.yaml", "")
	_, err := LoadFromFile(path)
	if !errors.Is(err, ErrEmptyFile) {
		t.Errorf("error = %v, want %v", err, ErrEmptyFile)
	}
}

func TestLoadFromFileInvalidJSON(t *testing.T) {
	path := writeTempFile(t, "bad.json", "{not json")
	_, err := LoadFromFile(path)
	if !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("error = %v, want %v", err, ErrInvalidJSON)
	}
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := writeTempFile(t, "bad.yaml", "port: [unclosed")
	_, err := LoadFromFile(path)
	if !errors.Is(err, ErrInvalidYAML) {
		t.Errorf("error = %v, want %v", err, ErrInvalidYAML)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.Path != DefaultPath {
		t.Errorf("Path = %q, want %q", cfg.Path, DefaultPath)
	}
	if cfg.MaxMessageSize != DefaultMaxMessageSize {
		t.Errorf("MaxMessageSize = %d, want %d", cfg.MaxMessageSize, DefaultMaxMessageSize)
	}
	if cfg.CloseOnProtocolError == nil || !*cfg.CloseOnProtocolError {
		t.Error("CloseOnProtocolError should default to true")
	}
	if cfg.Network.Wait == nil || !*cfg.Network.Wait {
		t.Error("Network.Wait should default to true")
	}
	if cfg.GPIO.Chip != DefaultGPIOChip || cfg.GPIO.Line != DefaultGPIOLine {
		t.Errorf("GPIO defaults = %+v", cfg.GPIO)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate, got %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port too low", func(c *Config) { c.Port = 0 }},
		{"port too high", func(c *Config) { c.Port = 70000 }},
		{"path without slash", func(c *Config) { c.Path = "ws" }},
		{"negative message size", func(c *Config) { c.MaxMessageSize = -1 }},
		{"negative connections", func(c *Config) { c.MaxConnections = -1 }},
		{"negative gpio line", func(c *Config) { c.GPIO.Line = -1 }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestDurationUnmarshal(t *testing.T) {
	cfg, err := ParseJSON([]byte(`{"idleTimeout": "1m30s"}`))
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}
	if cfg.IdleTimeout.Duration() != 90*time.Second {
		t.Errorf("IdleTimeout = %v, want 1m30s", cfg.IdleTimeout.Duration())
	}

	cfg, err = ParseJSON([]byte(`{"idleTimeout": 1500}`))
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}
	if cfg.IdleTimeout.Duration() != 1500*time.Millisecond {
		t.Errorf("IdleTimeout = %v, want 1.5s from integer milliseconds", cfg.IdleTimeout.Duration())
	}
}
