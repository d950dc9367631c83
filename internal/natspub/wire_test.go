package natspub

import (
	"encoding/json"
	"testing"
	"time"

	"git.home.luguber.info/inful/audiohub/internal/events"
	"github.com/stretchr/testify/require"
)

func TestStateEnvelope_FieldNames(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw, err := json.Marshal(stateEnvelope(events.StateChanged{
		TransitionID:  "t-1",
		State:         "spotify",
		Transitioning: false,
		Metadata:      map[string]any{"track": "one"},
		Volume:        60,
		At:            at,
	}))
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, "t-1", out["transition_id"])
	require.Equal(t, "spotify", out["state"])
	require.Equal(t, float64(60), out["volume"])
	require.Contains(t, out, "metadata")
}

func TestSeekEnvelope_CarriesCaptureTimestamp(t *testing.T) {
	raw, err := json.Marshal(seekEnvelope(events.Seek{
		Source:        "spotify",
		TrackURI:      "spotify:track:abc",
		PositionMS:    42000,
		SeekTimestamp: 1767268800000,
	}))
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, float64(42000), out["position_ms"])
	require.Equal(t, float64(1767268800000), out["seek_timestamp"])
	require.NotContains(t, out, "duration_ms", "zero duration is omitted")
}

func TestDeviceEnvelope_RemovedOmitsName(t *testing.T) {
	raw, err := json.Marshal(deviceEnvelope("removed", "AA:BB", "", true, time.Now()))
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, "removed", out["event"])
	require.Equal(t, true, out["was_active"])
	require.NotContains(t, out, "name")
}
