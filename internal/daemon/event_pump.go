package daemon

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/audiohub/internal/coordinator"
	"git.home.luguber.info/inful/audiohub/internal/events"
	"git.home.luguber.info/inful/audiohub/internal/services"
)

// EventPump folds normalized source status events into the coordinator's
// metadata. The coordinator itself decides whether an event is still relevant
// (it drops events from sources that are no longer current).
type EventPump struct {
	bus   *events.Bus
	coord *coordinator.Coordinator

	workers WorkerGroup
	cancel  context.CancelFunc
}

// NewEventPump creates the pump. Start subscribes and begins consuming.
func NewEventPump(bus *events.Bus, coord *coordinator.Coordinator) *EventPump {
	return &EventPump{bus: bus, coord: coord}
}

// Name implements services.ManagedService.
func (p *EventPump) Name() string { return "event-pump" }

// Dependencies implements services.ManagedService.
func (p *EventPump) Dependencies() []string { return nil }

// Health implements services.ManagedService.
func (p *EventPump) Health() services.HealthStatus { return services.Healthy() }

// Start implements services.ManagedService.
func (p *EventPump) Start(_ context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	statuses, unsub := events.Subscribe[events.SourceStatus](p.bus, 64)

	p.workers.Go(func() {
		defer unsub()
		for {
			select {
			case <-runCtx.Done():
				return
			case evt, ok := <-statuses:
				if !ok {
					return
				}
				p.coord.UpdateMetadata(evt.Source, evt.Payload)
			}
		}
	})

	slog.Debug("Event pump started")
	return nil
}

// Stop implements services.ManagedService.
func (p *EventPump) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	return p.workers.StopAndWait(ctx)
}
