// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the Parley
// viewer.
//
// Configuration is loaded from a single YAML file specified by:
//   - the PARLEY_CONFIG environment variable, or
//   - the --config flag passed to the command
//
// There are no fallbacks or automatic discovery. When neither is set,
// built-in defaults apply. This keeps configuration deterministic and
// auditable with no hidden overrides.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "PARLEY_CONFIG"

// Config is the viewer configuration.
type Config struct {
	// Server configures the Parley server connection.
	Server ServerConfig `yaml:"server"`

	// Poll overrides the sync layer's scheduling intervals. Zero
	// fields use the sync layer's defaults.
	Poll PollConfig `yaml:"poll"`

	// Viewer configures viewer behavior.
	Viewer ViewerConfig `yaml:"viewer"`
}

// ServerConfig configures the server connection.
type ServerConfig struct {
	// BaseURL is the Parley server base URL.
	// Default: http://localhost:8787
	BaseURL string `yaml:"base_url"`
}

// PollConfig mirrors the sync layer's scheduling parameters.
type PollConfig struct {
	// ActiveInterval is the message poll interval while the push
	// channel is down.
	ActiveInterval Duration `yaml:"active_interval"`

	// SafetyInterval is the message poll interval while the push
	// channel is healthy.
	SafetyInterval Duration `yaml:"safety_interval"`

	// StatusInterval is the chatting-agents poll interval.
	StatusInterval Duration `yaml:"status_interval"`

	// SendDebounce is the delay between a send and its follow-up poll.
	SendDebounce Duration `yaml:"send_debounce"`
}

// Duration is a time.Duration that unmarshals from Go duration
// strings ("3s", "1m30s") in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ViewerConfig configures viewer behavior.
type ViewerConfig struct {
	// Room is the room to open at startup.
	Room int64 `yaml:"room"`

	// DisplayName is sent as the participant name on outgoing
	// messages.
	DisplayName string `yaml:"display_name"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{BaseURL: "http://localhost:8787"},
	}
}

// Load reads the configuration file at path. When path is empty, the
// PARLEY_CONFIG environment variable is consulted; when that is also
// empty, built-in defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	if _, err := url.Parse(c.Server.BaseURL); err != nil {
		return fmt.Errorf("invalid server.base_url %q: %w", c.Server.BaseURL, err)
	}
	return nil
}
