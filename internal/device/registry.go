// Package device tracks discovered peer devices for the Bluetooth backend and
// the single active selection among them. Purely in-memory.
package device

import (
	"sync"

	"git.home.luguber.info/inful/audiohub/internal/foundation"
)

// Device is a peer registry entry, keyed by address.
type Device struct {
	Address    string         `json:"address"`
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Registry holds discovered devices and the active selection. The active
// address, when set, always refers to a present entry.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]Device
	active  string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]Device)}
}

// Add inserts or replaces a device; last write wins on duplicate address.
func (r *Registry) Add(d Device) {
	if d.Address == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[d.Address] = d
}

// Remove deletes the entry. Removing the active device clears the active
// selection. Returns whether the removed device was active.
func (r *Registry) Remove(address string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.devices, address)
	if r.active == address {
		r.active = ""
		return true
	}
	return false
}

// Get looks up a device by address.
func (r *Registry) Get(address string) foundation.Option[Device] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if d, ok := r.devices[address]; ok {
		return foundation.Some(d)
	}
	return foundation.None[Device]()
}

// SetActive marks the addressed device exclusively active, deactivating any
// previous selection. Returns None when the address is unknown.
func (r *Registry) SetActive(address string) foundation.Option[Device] {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[address]
	if !ok {
		return foundation.None[Device]()
	}
	r.active = address
	return foundation.Some(d)
}

// Active returns the currently active device, if any.
func (r *Registry) Active() foundation.Option[Device] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.active == "" {
		return foundation.None[Device]()
	}
	return foundation.Some(r.devices[r.active])
}

// List returns a snapshot of all devices.
func (r *Registry) List() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	return out
}

// Clear empties the registry and the active selection.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.devices = make(map[string]Device)
	r.active = ""
}
