package config

import "time"

const (
	defaultMixerDevice        = "default"
	defaultInitialVolume      = 50
	defaultRepublishInterval  = 30 * time.Second
	defaultShutdownTimeout    = 15 * time.Second
	defaultSubjectPrefix      = "audiohub"
	defaultMetricsListen      = ":9091"
	defaultMultiroomUnit      = "snapclient"
	defaultDeviceUnitTemplate = "bluealsa-aplay@%s.service"
)

// applyDefaults fills unset fields. Enabled flags are left alone: an absent
// source stays disabled.
func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Daemon.StateRepublishInterval <= 0 {
		c.Daemon.StateRepublishInterval = defaultRepublishInterval
	}
	if c.Daemon.ShutdownTimeout <= 0 {
		c.Daemon.ShutdownTimeout = defaultShutdownTimeout
	}

	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = defaultSubjectPrefix
	}

	if c.Metrics.Listen == "" {
		c.Metrics.Listen = defaultMetricsListen
	}

	if c.Mixer.Device == "" {
		c.Mixer.Device = defaultMixerDevice
	}
	if c.Mixer.InitialVolume == 0 {
		c.Mixer.InitialVolume = defaultInitialVolume
	}

	if c.Sources.Bluetooth.Enabled {
		if len(c.Sources.Bluetooth.Units) == 0 {
			c.Sources.Bluetooth.Units = []string{"bluetooth", "bluealsa"}
		}
		if c.Sources.Bluetooth.DeviceUnitTemplate == "" {
			c.Sources.Bluetooth.DeviceUnitTemplate = defaultDeviceUnitTemplate
		}
	}

	if c.Sources.Multiroom.Enabled && c.Sources.Multiroom.Unit == "" {
		c.Sources.Multiroom.Unit = defaultMultiroomUnit
	}
}
