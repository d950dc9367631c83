package coordinator

// AudioState is the enumerated identity of the currently active backend.
// Backend tags are resolved against the source registry at startup; "none"
// and "transitioning" are the only states without a backend.
type AudioState string

const (
	StateNone          AudioState = "none"
	StateTransitioning AudioState = "transitioning"
)

// AudioStateInfo is the single observable state of the audio output. It is
// owned exclusively by the Coordinator; all mutation goes through it.
type AudioStateInfo struct {
	State         AudioState     `json:"state"`
	Transitioning bool           `json:"transitioning"`
	Metadata      map[string]any `json:"metadata"`
	Volume        int            `json:"volume"`
}

// Clone returns a deep copy so callers never share the metadata map with the
// coordinator.
func (i AudioStateInfo) Clone() AudioStateInfo {
	out := i
	out.Metadata = make(map[string]any, len(i.Metadata))
	for k, v := range i.Metadata {
		out.Metadata[k] = v
	}
	return out
}
