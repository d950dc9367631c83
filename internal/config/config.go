// Package config loads and validates the hub configuration from YAML, with
// environment expansion and .env support.
package config

import (
	"os"
	"time"

	ferrors "git.home.luguber.info/inful/audiohub/internal/foundation/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Daemon  DaemonConfig  `yaml:"daemon"`
	NATS    NATSConfig    `yaml:"nats"`
	Metrics MetricsConfig `yaml:"metrics"`
	Mixer   MixerConfig   `yaml:"mixer"`
	Sources SourcesConfig `yaml:"sources"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// DaemonConfig holds daemon-level timing.
type DaemonConfig struct {
	// StateRepublishInterval is how often the current state is republished
	// for late-joining consumers.
	StateRepublishInterval time.Duration `yaml:"state_republish_interval"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// NATSConfig configures the external event bridge. An empty URL disables it.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// MixerConfig names the ALSA output the hub controls.
type MixerConfig struct {
	Device        string `yaml:"device"`
	InitialVolume int    `yaml:"initial_volume"`
}

// SourcesConfig holds per-backend settings. A backend with a zero value is
// not registered.
type SourcesConfig struct {
	Spotify   SpotifyConfig   `yaml:"spotify"`
	Bluetooth BluetoothConfig `yaml:"bluetooth"`
	Multiroom MultiroomConfig `yaml:"multiroom"`
	Radio     RadioConfig     `yaml:"radio"`
}

// SpotifyConfig configures the streaming receiver process and its event feed.
type SpotifyConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Executable string   `yaml:"executable"`
	Args       []string `yaml:"args,omitempty"`
	FeedURL    string   `yaml:"feed_url"`
}

// BluetoothConfig configures the Bluetooth audio backend.
type BluetoothConfig struct {
	Enabled bool `yaml:"enabled"`

	// Units are started in order and stopped in reverse.
	Units []string `yaml:"units,omitempty"`

	// DeviceUnitTemplate is the templated per-device playback unit; %s is
	// the device address.
	DeviceUnitTemplate string `yaml:"device_unit_template,omitempty"`

	// PlaybackExec is the fallback playback command when no templated unit
	// is installed.
	PlaybackExec string `yaml:"playback_exec,omitempty"`
}

// MultiroomConfig configures the multiroom client backend.
type MultiroomConfig struct {
	Enabled bool   `yaml:"enabled"`
	Unit    string `yaml:"unit,omitempty"`
}

// RadioConfig configures the web radio backend.
type RadioConfig struct {
	Enabled bool     `yaml:"enabled"`
	Player  string   `yaml:"player"`
	Args    []string `yaml:"args,omitempty"`
}

// Load reads, expands, parses, and validates the configuration file. A .env
// file alongside the process, when present, seeds the environment first;
// existing variables are never overwritten.
func Load(path string) (*Config, error) {
	loadDotEnv()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ferrors.ConfigError("failed to read config file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, ferrors.ConfigError("failed to parse config file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv loads .env then .env.local, first hit wins.
func loadDotEnv() {
	for _, candidate := range []string{".env", ".env.local"} {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if err := godotenv.Load(candidate); err == nil {
			return
		}
	}
}

// EnabledSources lists the source names registered by this configuration.
func (c *Config) EnabledSources() []string {
	var names []string
	if c.Sources.Spotify.Enabled {
		names = append(names, "spotify")
	}
	if c.Sources.Bluetooth.Enabled {
		names = append(names, "bluetooth")
	}
	if c.Sources.Multiroom.Enabled {
		names = append(names, "multiroom")
	}
	if c.Sources.Radio.Enabled {
		names = append(names, "radio")
	}
	return names
}
