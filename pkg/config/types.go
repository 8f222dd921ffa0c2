// Package config defines the service configuration and its file loader.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when a field is unset.
const (
	DefaultPort           = 80
	DefaultPath           = "/ws"
	DefaultMaxMessageSize = 64 * 1024
	DefaultEventLogSize   = 1000
	DefaultGPIOChip       = "/dev/gpiochip0"
	DefaultGPIOLine       = 2
	DefaultNetworkTimeout = 2 * time.Minute
)

// Config is the full service configuration.
type Config struct {
	// Host is the listen address. Empty means all interfaces.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	// Port is the listen port. Defaults to 80.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// Path is the echo route. Defaults to /ws.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// MaxMessageSize caps inbound frame payloads in bytes. Defaults to 64KB.
	MaxMessageSize int64 `json:"maxMessageSize,omitempty" yaml:"maxMessageSize,omitempty"`

	// MaxConnections caps concurrent connections. Zero means unlimited.
	MaxConnections int `json:"maxConnections,omitempty" yaml:"maxConnections,omitempty"`

	// CloseOnProtocolError closes a connection whose frame exceeds
	// MaxMessageSize instead of discarding the frame. Defaults to true.
	CloseOnProtocolError *bool `json:"closeOnProtocolError,omitempty" yaml:"closeOnProtocolError,omitempty"`

	// IdleTimeout closes connections with no inbound frames for this long.
	// Zero disables the timeout.
	IdleTimeout Duration `json:"idleTimeout,omitempty" yaml:"idleTimeout,omitempty"`

	// EventLogSize bounds the in-memory event history. Defaults to 1000.
	EventLogSize int `json:"eventLogSize,omitempty" yaml:"eventLogSize,omitempty"`

	// GPIO configures the actuator line.
	GPIO GPIOConfig `json:"gpio,omitempty" yaml:"gpio,omitempty"`

	// Network configures the startup attachment wait.
	Network NetworkConfig `json:"network,omitempty" yaml:"network,omitempty"`

	// Log configures structured logging.
	Log LogConfig `json:"log,omitempty" yaml:"log,omitempty"`
}

// GPIOConfig selects the actuator hardware line.
type GPIOConfig struct {
	// Chip is the character device path. Defaults to /dev/gpiochip0.
	Chip string `json:"chip,omitempty" yaml:"chip,omitempty"`

	// Line is the line offset on the chip. Defaults to 2.
	Line int `json:"line,omitempty" yaml:"line,omitempty"`

	// ActiveLow inverts the line polarity.
	ActiveLow bool `json:"activeLow,omitempty" yaml:"activeLow,omitempty"`

	// Disabled replaces the hardware line with an in-memory actuator.
	// Useful when running off-device.
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// NetworkConfig controls the wait for network attachment at startup.
type NetworkConfig struct {
	// Wait blocks startup until an address is assigned. Defaults to true
	// and is spelled as a pointer so an explicit false survives loading.
	Wait *bool `json:"wait,omitempty" yaml:"wait,omitempty"`

	// Interface restricts the wait to one interface. Empty means any.
	Interface string `json:"interface,omitempty" yaml:"interface,omitempty"`

	// Timeout bounds the wait. Defaults to 2m.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	// Level is debug, info, warn, or error. Defaults to info.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is json or text. Defaults to json.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// Default returns a Config with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields with their default values.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.CloseOnProtocolError == nil {
		t := true
		c.CloseOnProtocolError = &t
	}
	if c.EventLogSize == 0 {
		c.EventLogSize = DefaultEventLogSize
	}
	if c.GPIO.Chip == "" {
		c.GPIO.Chip = DefaultGPIOChip
	}
	if c.GPIO.Line == 0 {
		c.GPIO.Line = DefaultGPIOLine
	}
	if c.Network.Wait == nil {
		t := true
		c.Network.Wait = &t
	}
	if c.Network.Timeout == 0 {
		c.Network.Timeout = Duration(DefaultNetworkTimeout)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Path == "" || c.Path[0] != '/' {
		return fmt.Errorf("path must start with /, got %q", c.Path)
	}
	if c.MaxMessageSize < 0 {
		return fmt.Errorf("maxMessageSize must not be negative, got %d", c.MaxMessageSize)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("maxConnections must not be negative, got %d", c.MaxConnections)
	}
	if c.GPIO.Line < 0 {
		return fmt.Errorf("gpio line must not be negative, got %d", c.GPIO.Line)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be debug, info, warn, or error, got %q", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log format must be json or text, got %q", c.Log.Format)
	}
	return nil
}

// Duration is a time.Duration that marshals/unmarshals as a string.
type Duration time.Duration

// MarshalJSON marshals the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON unmarshals a duration string.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Try as integer (milliseconds)
		var ms int64
		if err := json.Unmarshal(data, &ms); err != nil {
			return err
		}
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	return d.parse(s)
}

// MarshalYAML marshals the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML unmarshals a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		var ms int64
		if err := value.Decode(&ms); err != nil {
			return err
		}
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
