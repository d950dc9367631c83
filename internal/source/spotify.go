package source

import (
	"context"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/audiohub/internal/events"
	"git.home.luguber.info/inful/audiohub/internal/feed"
	"git.home.luguber.info/inful/audiohub/internal/process"
)

// feedRunner is the slice of the feed client the spotify source drives.
// Satisfied by *feed.Client; tests substitute a fake.
type feedRunner interface {
	Start(ctx context.Context)
	Stop()
	State() feed.ConnState
}

// Spotify runs the streaming-receiver binary under process supervision and
// relays its push-event API through a feed client.
type Spotify struct {
	proc    *process.Supervisor
	bus     *events.Bus
	feedURL string

	// newFeed builds the feed client for one activation; swapped in tests.
	newFeed func() feedRunner

	// onFeedReconnect, when set, observes failed feed connection attempts.
	onFeedReconnect func()

	mu      sync.Mutex
	feed    feedRunner
	started bool
}

// NewSpotify creates the streaming-receiver source.
func NewSpotify(proc *process.Supervisor, bus *events.Bus, feedURL string) *Spotify {
	s := &Spotify{proc: proc, bus: bus, feedURL: feedURL}
	s.newFeed = func() feedRunner {
		c := feed.NewClient(s.Name(), s.feedURL, s.bus)
		c.OnReconnect = s.onFeedReconnect
		return c
	}
	return s
}

// WithFeedReconnectHook registers a callback invoked once per failed feed
// connection attempt.
func (s *Spotify) WithFeedReconnectHook(fn func()) *Spotify {
	s.onFeedReconnect = fn
	return s
}

// Name implements Source.
func (s *Spotify) Name() string { return "spotify" }

// Start spawns the receiver process and begins ingesting its event feed.
// Already-started is a no-op success: no second process, no second feed.
func (s *Spotify) Start(ctx context.Context, _ map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started && s.proc.IsRunning() {
		slog.Debug("Spotify source already started")
		return nil
	}

	// Restart after a receiver crash: the previous feed client is still
	// reconnect-looping against the dead endpoint and must go first, or two
	// clients end up ingesting the new process.
	if s.feed != nil {
		s.feed.Stop()
		s.feed = nil
	}

	if err := s.proc.Start(ctx); err != nil {
		return err
	}

	f := s.newFeed()
	f.Start(context.WithoutCancel(ctx))
	s.feed = f
	s.started = true
	return nil
}

// Stop cancels the feed first and awaits its termination, guaranteeing no
// further events are emitted for a source that is no longer current, then
// stops the receiver process.
func (s *Spotify) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	if s.feed != nil {
		s.feed.Stop()
		s.feed = nil
	}

	if err := s.proc.Stop(ctx); err != nil {
		return err
	}
	s.started = false
	return nil
}

// Status implements Source.
func (s *Spotify) Status() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := map[string]any{
		"running":    s.proc.IsRunning(),
		"executable": s.proc.Path(),
		"feed_state": string(feed.StateDisconnected),
	}
	if info := s.proc.Info(); info.PID != nil {
		status["pid"] = *info.PID
	}
	if s.feed != nil {
		status["feed_state"] = string(s.feed.State())
	}
	return status
}
