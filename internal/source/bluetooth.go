package source

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/audiohub/internal/device"
	"git.home.luguber.info/inful/audiohub/internal/events"
	"git.home.luguber.info/inful/audiohub/internal/mixer"
	"git.home.luguber.info/inful/audiohub/internal/service"
)

// serviceManager is the slice of the service supervisor the bluetooth source
// drives. Satisfied by *service.Supervisor; tests substitute a fake.
type serviceManager interface {
	Manage(ctx context.Context, name string, action service.Action) error
	StartDevicePlayback(ctx context.Context, deviceID string) error
	StopDevicePlayback(ctx context.Context, deviceID string) error
	IsActive(ctx context.Context, name string) (bool, error)
}

// Bluetooth manages the Bluetooth receiver backend: the privileged bluetooth
// and audio-bridge units, the peer device registry, and the volume mixer for
// the output the receiver plays through.
type Bluetooth struct {
	svc      serviceManager
	registry *device.Registry
	mix      mixer.Mixer
	bus      *events.Bus

	// units are started in order on activation and stopped in reverse.
	units       []string
	mixerDevice string

	mu      sync.Mutex
	started bool
}

// NewBluetooth creates the Bluetooth source.
func NewBluetooth(svc *service.Supervisor, registry *device.Registry, mix mixer.Mixer, bus *events.Bus, units []string, mixerDevice string) *Bluetooth {
	if len(units) == 0 {
		units = []string{"bluetooth", "bluealsa"}
	}
	return &Bluetooth{
		svc:         svc,
		registry:    registry,
		mix:         mix,
		bus:         bus,
		units:       units,
		mixerDevice: mixerDevice,
	}
}

// newBluetoothForTest wires a fake service manager.
func newBluetoothForTest(svc serviceManager, registry *device.Registry, mix mixer.Mixer, bus *events.Bus) *Bluetooth {
	return &Bluetooth{
		svc:      svc,
		registry: registry,
		mix:      mix,
		bus:      bus,
		units:    []string{"bluetooth", "bluealsa"},
	}
}

// Name implements Source.
func (b *Bluetooth) Name() string { return "bluetooth" }

// Start brings up the receiver units in order.
func (b *Bluetooth) Start(ctx context.Context, _ map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		slog.Debug("Bluetooth source already started")
		return nil
	}

	for _, unit := range b.units {
		if err := b.svc.Manage(ctx, unit, service.ActionStart); err != nil {
			return err
		}
	}

	b.started = true
	return nil
}

// Stop tears down device-bound playback for every registered peer, then the
// units in reverse order, and clears discovered devices; peers must re-pair
// against whichever source becomes current next.
func (b *Bluetooth) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return nil
	}

	for _, d := range b.registry.List() {
		if err := b.svc.StopDevicePlayback(ctx, d.Address); err != nil {
			return err
		}
	}

	for i := len(b.units) - 1; i >= 0; i-- {
		if err := b.svc.Manage(ctx, b.units[i], service.ActionStop); err != nil {
			return err
		}
	}

	b.registry.Clear()
	b.started = false
	return nil
}

// Status implements Source.
func (b *Bluetooth) Status() map[string]any {
	b.mu.Lock()
	started := b.started
	b.mu.Unlock()

	status := map[string]any{
		"started": started,
		"devices": len(b.registry.List()),
	}
	if active, ok := b.registry.Active().Get(); ok {
		status["active_device"] = active.Address
	}
	return status
}

// HandleDeviceConnected is the discovery/pairing callback: it registers the
// peer, marks it active, and starts its device-bound playback service.
func (b *Bluetooth) HandleDeviceConnected(ctx context.Context, d device.Device) error {
	b.registry.Add(d)
	if b.registry.SetActive(d.Address).IsNone() {
		// Unreachable after Add unless cleared concurrently.
		return nil
	}

	b.publish(ctx, events.DeviceAdded{Address: d.Address, Name: d.Name, At: time.Now()})

	if err := b.svc.StartDevicePlayback(ctx, d.Address); err != nil {
		slog.Error("Failed to start device playback", "device", d.Address, "error", err)
		return err
	}
	return nil
}

// HandleDeviceDisconnected removes the peer and tears down its device-bound
// playback; removing the active device clears the active selection.
func (b *Bluetooth) HandleDeviceDisconnected(ctx context.Context, address string) {
	wasActive := b.registry.Remove(address)
	if err := b.svc.StopDevicePlayback(ctx, address); err != nil {
		slog.Warn("Failed to stop device playback", "device", address, "error", err)
	}
	b.publish(ctx, events.DeviceRemoved{Address: address, WasActive: wasActive, At: time.Now()})
}

// Volume reads the receiver output volume through the mixer boundary.
func (b *Bluetooth) Volume(ctx context.Context) (int, bool) {
	if b.mix == nil {
		return 0, false
	}
	vol, err := b.mix.Volume(ctx, b.mixerDevice)
	if err != nil {
		slog.Warn("Mixer volume query failed", "device", b.mixerDevice, "error", err)
		return 0, false
	}
	return vol.Get()
}

func (b *Bluetooth) publish(ctx context.Context, evt any) {
	if b.bus == nil {
		return
	}
	if err := b.bus.Publish(ctx, evt); err != nil && ctx.Err() == nil {
		slog.Warn("Failed to publish device event", "error", err)
	}
}
