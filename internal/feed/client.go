// Package feed maintains a resilient subscription to a backend's push-event
// endpoint and relays normalized events onto the in-process bus. The reconnect
// loop runs until the owning source cancels it.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/audiohub/internal/events"
	"git.home.luguber.info/inful/audiohub/internal/retry"
	"github.com/gorilla/websocket"
)

// ConnState is the connection lifecycle state of a feed client.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

// Conn is the subset of a websocket connection the client reads from.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens a connection to the push-event endpoint.
type Dialer interface {
	DialContext(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket. It is the production Dialer.
type WebsocketDialer struct{}

// DialContext implements Dialer.
func (WebsocketDialer) DialContext(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// rawEvent is the wire shape delivered by the backend.
type rawEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Client owns one reconnect loop for one source's event endpoint.
type Client struct {
	source string
	url    string
	bus    *events.Bus
	dialer Dialer
	policy retry.Policy

	// OnReconnect, when set, is invoked once per failed connection attempt.
	OnReconnect func()

	state  atomic.Value // ConnState
	now    func() time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient creates a feed client for the named source. Call Start to begin
// the reconnect loop.
func NewClient(source, url string, bus *events.Bus) *Client {
	c := &Client{
		source: source,
		url:    url,
		bus:    bus,
		dialer: WebsocketDialer{},
		policy: retry.DefaultPolicy(),
		now:    time.Now,
	}
	c.state.Store(StateDisconnected)
	return c
}

// WithDialer overrides the dialer. Intended for tests.
func (c *Client) WithDialer(d Dialer) *Client {
	c.dialer = d
	return c
}

// WithPolicy overrides the reconnect backoff policy.
func (c *Client) WithPolicy(p retry.Policy) *Client {
	c.policy = p
	return c
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	return c.state.Load().(ConnState)
}

// Start launches the reconnect loop. It is not restartable after Stop.
func (c *Client) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		defer c.state.Store(StateDisconnected)
		c.run(runCtx)
	}()
}

// Stop cancels the reconnect loop and waits for it to terminate. After Stop
// returns, no further events are emitted for this source.
func (c *Client) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

func (c *Client) run(ctx context.Context) {
	backoff := retry.NewBackoff(c.policy)

	for {
		if ctx.Err() != nil {
			return
		}

		c.state.Store(StateConnecting)
		conn, err := c.dialer.DialContext(ctx, c.url)
		if err != nil {
			c.state.Store(StateDisconnected)
			if ctx.Err() != nil {
				return
			}
			if c.OnReconnect != nil {
				c.OnReconnect()
			}
			delay := backoff.Next()
			slog.Debug("Feed connection failed, backing off",
				"source", c.source, "delay", delay, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}

		backoff.Reset()
		c.state.Store(StateConnected)
		slog.Info("Feed connected", "source", c.source, "url", c.url)
		c.publishStatus(ctx, "connected", map[string]any{"connected": true})

		c.readLoop(ctx, conn)
		c.state.Store(StateDisconnected)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("Feed disconnected, reconnecting", "source", c.source)
	}
}

// readLoop consumes messages until the connection drops or ctx is canceled.
// A watcher goroutine closes the connection on cancellation so the blocking
// read is abandoned promptly.
func (c *Client) readLoop(ctx context.Context, conn Conn) {
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-watchDone:
		}
	}()
	defer func() { _ = conn.Close() }()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var raw rawEvent
		if err := json.Unmarshal(payload, &raw); err != nil || raw.Type == "" {
			slog.Warn("Dropping malformed feed message", "source", c.source, "error", err)
			continue
		}

		c.dispatch(ctx, raw)
	}
}

// dispatch maps a backend event onto the shared vocabulary and forwards it.
func (c *Client) dispatch(ctx context.Context, raw rawEvent) {
	kind, ok := normalizeType(raw.Type)
	if !ok {
		slog.Debug("Ignoring unknown feed event type", "source", c.source, "type", raw.Type)
		return
	}

	if kind == "seeking" {
		seek := events.Seek{
			Source:        c.source,
			TrackURI:      stringField(raw.Data, "uri", "track_uri"),
			PositionMS:    intField(raw.Data, "position", "position_ms"),
			DurationMS:    intField(raw.Data, "duration", "duration_ms"),
			SeekTimestamp: c.now().UnixMilli(),
		}
		if err := c.bus.Publish(ctx, seek); err != nil && ctx.Err() == nil {
			slog.Warn("Failed to publish seek event", "source", c.source, "error", err)
		}
		return
	}

	payload := normalizePayload(kind, raw.Data)
	c.publishStatus(ctx, kind, payload)
}

func (c *Client) publishStatus(ctx context.Context, kind string, payload map[string]any) {
	payload["event"] = kind
	evt := events.SourceStatus{Source: c.source, Payload: payload, At: c.now()}
	if err := c.bus.Publish(ctx, evt); err != nil && ctx.Err() == nil {
		slog.Warn("Failed to publish source status", "source", c.source, "event", kind, "error", err)
	}
}
