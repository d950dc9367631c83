package natspub

import (
	"time"

	"git.home.luguber.info/inful/audiohub/internal/events"
)

// Wire envelopes carry explicit JSON field names so the external contract is
// decoupled from the internal event structs.

type stateWire struct {
	TransitionID  string         `json:"transition_id,omitempty"`
	State         string         `json:"state"`
	Transitioning bool           `json:"transitioning"`
	Metadata      map[string]any `json:"metadata"`
	Volume        int            `json:"volume"`
	At            time.Time      `json:"at"`
}

func stateEnvelope(evt events.StateChanged) stateWire {
	return stateWire{
		TransitionID:  evt.TransitionID,
		State:         evt.State,
		Transitioning: evt.Transitioning,
		Metadata:      evt.Metadata,
		Volume:        evt.Volume,
		At:            evt.At,
	}
}

type statusWire struct {
	Source  string         `json:"source"`
	Payload map[string]any `json:"payload"`
	At      time.Time      `json:"at"`
}

func statusEnvelope(evt events.SourceStatus) statusWire {
	return statusWire{Source: evt.Source, Payload: evt.Payload, At: evt.At}
}

type seekWire struct {
	Source        string `json:"source"`
	TrackURI      string `json:"track_uri,omitempty"`
	PositionMS    int64  `json:"position_ms"`
	DurationMS    int64  `json:"duration_ms,omitempty"`
	SeekTimestamp int64  `json:"seek_timestamp"`
}

func seekEnvelope(evt events.Seek) seekWire {
	return seekWire{
		Source:        evt.Source,
		TrackURI:      evt.TrackURI,
		PositionMS:    evt.PositionMS,
		DurationMS:    evt.DurationMS,
		SeekTimestamp: evt.SeekTimestamp,
	}
}

type deviceWire struct {
	Event     string    `json:"event"`
	Address   string    `json:"address"`
	Name      string    `json:"name,omitempty"`
	WasActive bool      `json:"was_active,omitempty"`
	At        time.Time `json:"at"`
}

func deviceEnvelope(kind, address, name string, wasActive bool, at time.Time) deviceWire {
	return deviceWire{Event: kind, Address: address, Name: name, WasActive: wasActive, At: at}
}
