package daemon

import (
	"context"

	"git.home.luguber.info/inful/audiohub/internal/events"
	"git.home.luguber.info/inful/audiohub/internal/natspub"
	"git.home.luguber.info/inful/audiohub/internal/services"
)

// NATSBridge adapts the NATS publisher to the managed-service lifecycle. The
// connection is established lazily on Start so a disabled or unreachable
// broker never blocks daemon startup.
type NATSBridge struct {
	bus  *events.Bus
	opts natspub.Options
	pub  *natspub.Publisher
}

// NewNATSBridge creates the bridge component.
func NewNATSBridge(bus *events.Bus, opts natspub.Options) *NATSBridge {
	return &NATSBridge{bus: bus, opts: opts}
}

// Name implements services.ManagedService.
func (b *NATSBridge) Name() string { return "nats-bridge" }

// Dependencies implements services.ManagedService.
func (b *NATSBridge) Dependencies() []string { return nil }

// Health implements services.ManagedService.
func (b *NATSBridge) Health() services.HealthStatus {
	if b.pub == nil {
		return services.Unhealthy("not connected")
	}
	return services.Healthy()
}

// Start implements services.ManagedService. Forwarding is detached from the
// start context; its lifetime ends at Stop, not at the start timeout.
func (b *NATSBridge) Start(_ context.Context) error {
	pub, err := natspub.New(b.bus, b.opts)
	if err != nil {
		return err
	}
	pub.Start(context.Background())
	b.pub = pub
	return nil
}

// Stop implements services.ManagedService.
func (b *NATSBridge) Stop(_ context.Context) error {
	if b.pub != nil {
		b.pub.Close()
		b.pub = nil
	}
	return nil
}
