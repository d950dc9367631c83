package events

import "time"

// StateChanged is published by the coordinator whenever AudioStateInfo is
// committed: at transition start (transitioning=true), at transition end, and
// on metadata/volume updates.
//
// The fields are a flattened copy of the coordinator's state so subscribers
// never share mutable maps with it.
type StateChanged struct {
	TransitionID  string
	State         string
	Transitioning bool
	Metadata      map[string]any
	Volume        int
	At            time.Time
}

// SourceStatus carries a normalized status payload emitted by an active
// source's event feed (connected, playing, paused, stopped, ...).
type SourceStatus struct {
	Source  string
	Payload map[string]any
	At      time.Time
}

// Seek is a discrete position jump, kept separate from SourceStatus so
// consumers can distinguish seeks from continuous metadata churn.
type Seek struct {
	Source        string
	TrackURI      string
	PositionMS    int64
	DurationMS    int64
	SeekTimestamp int64 // capture time, epoch milliseconds
}

// DeviceAdded is published when a peer device appears in the registry.
type DeviceAdded struct {
	Address string
	Name    string
	At      time.Time
}

// DeviceRemoved is published when a peer device leaves the registry.
type DeviceRemoved struct {
	Address   string
	WasActive bool
	At        time.Time
}
