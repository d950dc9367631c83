package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	ferrors "git.home.luguber.info/inful/audiohub/internal/foundation/errors"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audiohub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
sources:
  spotify:
    enabled: true
    executable: /usr/bin/librespot
    feed_url: ws://localhost:24879/events
`

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "text", cfg.Logging.Format)
	require.Equal(t, 30*time.Second, cfg.Daemon.StateRepublishInterval)
	require.Equal(t, "default", cfg.Mixer.Device)
	require.Equal(t, 50, cfg.Mixer.InitialVolume)
	require.Equal(t, "audiohub", cfg.NATS.SubjectPrefix)
	require.Equal(t, []string{"spotify"}, cfg.EnabledSources())
}

func TestLoad_BluetoothDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
sources:
  bluetooth:
    enabled: true
`))
	require.NoError(t, err)
	require.Equal(t, []string{"bluetooth", "bluealsa"}, cfg.Sources.Bluetooth.Units)
	require.Equal(t, "bluealsa-aplay@%s.service", cfg.Sources.Bluetooth.DeviceUnitTemplate)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("LIBRESPOT_BIN", "/opt/librespot")
	cfg, err := Load(writeConfig(t, `
sources:
  spotify:
    enabled: true
    executable: ${LIBRESPOT_BIN}
`))
	require.NoError(t, err)
	require.Equal(t, "/opt/librespot", cfg.Sources.Spotify.Executable)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"bad level", "logging:\n  level: verbose\n" + minimalConfig},
		{"bad format", "logging:\n  format: xml\n" + minimalConfig},
		{"volume out of range", "mixer:\n  initial_volume: 150\n" + minimalConfig},
		{"spotify without executable", "sources:\n  spotify:\n    enabled: true\n"},
		{"bad feed url", `
sources:
  spotify:
    enabled: true
    executable: /usr/bin/librespot
    feed_url: http://localhost/events
`},
		{"radio without player", "sources:\n  radio:\n    enabled: true\n"},
		{"no sources", "mixer:\n  device: hw:0\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			require.Error(t, err)
			require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
		})
	}
}

func TestEnabledSources_Order(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
sources:
  spotify:
    enabled: true
    executable: /usr/bin/librespot
  bluetooth:
    enabled: true
  multiroom:
    enabled: true
  radio:
    enabled: true
    player: /usr/bin/ffplay
`))
	require.NoError(t, err)
	require.Equal(t, []string{"spotify", "bluetooth", "multiroom", "radio"}, cfg.EnabledSources())
	require.Equal(t, "snapclient", cfg.Sources.Multiroom.Unit)
}
