// Package natspub bridges the in-process event bus to NATS. Every committed
// audio state, source status, seek, and device event is republished as JSON on
// a well-known subject so external consumers (UIs, automations) can follow the
// hub without linking against it.
package natspub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/audiohub/internal/events"
	ferrors "git.home.luguber.info/inful/audiohub/internal/foundation/errors"
	"github.com/nats-io/nats.go"
)

const (
	defaultSubjectPrefix = "audiohub"
	busBuffer            = 64
)

// Options configures the NATS bridge.
type Options struct {
	// URL is the NATS server URL. Empty disables the bridge.
	URL string

	// SubjectPrefix is prepended to every subject. Defaults to "audiohub".
	SubjectPrefix string

	// Name is the connection name reported to the server.
	Name string
}

// Publisher forwards bus events to NATS subjects:
//
//	<prefix>.state            committed audio state
//	<prefix>.source.<name>    normalized source status
//	<prefix>.seek             discrete position jumps
//	<prefix>.device           peer device arrivals and departures
type Publisher struct {
	conn   *nats.Conn
	bus    *events.Bus
	prefix string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New connects to NATS and prepares the bridge. The connection retries in the
// background, so a momentarily unreachable server does not fail startup.
func New(bus *events.Bus, opts Options) (*Publisher, error) {
	if opts.URL == "" {
		return nil, ferrors.ConfigError("nats url is required").Build()
	}
	prefix := opts.SubjectPrefix
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	name := opts.Name
	if name == "" {
		name = "audiohub"
	}

	conn, err := nats.Connect(opts.URL,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to connect to NATS").
			WithContext("url", opts.URL).
			Build()
	}

	slog.Info("NATS bridge initialized", "url", opts.URL, "prefix", prefix)
	return &Publisher{conn: conn, bus: bus, prefix: prefix}, nil
}

// Start subscribes to the bus and begins forwarding. It returns immediately;
// forwarding runs until Close.
func (p *Publisher) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	states, unsubStates := events.Subscribe[events.StateChanged](p.bus, busBuffer)
	statuses, unsubStatuses := events.Subscribe[events.SourceStatus](p.bus, busBuffer)
	seeks, unsubSeeks := events.Subscribe[events.Seek](p.bus, busBuffer)
	added, unsubAdded := events.Subscribe[events.DeviceAdded](p.bus, busBuffer)
	removed, unsubRemoved := events.Subscribe[events.DeviceRemoved](p.bus, busBuffer)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer unsubStates()
		defer unsubStatuses()
		defer unsubSeeks()
		defer unsubAdded()
		defer unsubRemoved()

		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-states:
				if !ok {
					return
				}
				p.publish(p.prefix+".state", stateEnvelope(evt))
			case evt, ok := <-statuses:
				if !ok {
					return
				}
				p.publish(p.prefix+".source."+evt.Source, statusEnvelope(evt))
			case evt, ok := <-seeks:
				if !ok {
					return
				}
				p.publish(p.prefix+".seek", seekEnvelope(evt))
			case evt, ok := <-added:
				if !ok {
					return
				}
				p.publish(p.prefix+".device", deviceEnvelope("added", evt.Address, evt.Name, false, evt.At))
			case evt, ok := <-removed:
				if !ok {
					return
				}
				p.publish(p.prefix+".device", deviceEnvelope("removed", evt.Address, "", evt.WasActive, evt.At))
			}
		}
	}()
}

// publish marshals and sends one event. Failures are logged and dropped;
// external delivery is best effort and must never stall the bus.
func (p *Publisher) publish(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal NATS payload", "subject", subject, "error", err)
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		slog.Warn("Failed to publish to NATS", "subject", subject, "error", err)
		return
	}
	slog.Debug("Published event", "subject", subject)
}

// Close stops forwarding and drains the connection.
func (p *Publisher) Close() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	if p.conn != nil {
		if err := p.conn.Drain(); err != nil {
			p.conn.Close()
		}
	}
}
