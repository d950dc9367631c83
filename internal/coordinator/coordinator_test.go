package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"git.home.luguber.info/inful/audiohub/internal/events"
	"git.home.luguber.info/inful/audiohub/internal/foundation"
	ferrors "git.home.luguber.info/inful/audiohub/internal/foundation/errors"
	"git.home.luguber.info/inful/audiohub/internal/source"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	name     string
	startErr error
	stopErr  error
	starts   int
	stops    int

	// startGate, when set, blocks Start until released.
	startGate chan struct{}
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Start(ctx context.Context, _ map[string]any) error {
	if f.startGate != nil {
		select {
		case <-f.startGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.startErr
}

func (f *fakeSource) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return f.stopErr
}

func (f *fakeSource) Status() map[string]any { return map[string]any{"name": f.name} }

func (f *fakeSource) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

func newTestCoordinator(t *testing.T, sources ...source.Source) (*Coordinator, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	t.Cleanup(bus.Close)

	reg := source.NewRegistry()
	for _, s := range sources {
		require.True(t, reg.Register(s).IsOk())
	}
	return New(bus, reg), bus
}

func TestRequestTransition_ActivatesTarget(t *testing.T) {
	spotify := &fakeSource{name: "spotify"}
	c, _ := newTestCoordinator(t, spotify)

	info, err := c.RequestTransition(context.Background(), "spotify", nil)
	require.NoError(t, err)
	require.Equal(t, AudioState("spotify"), info.State)
	require.False(t, info.Transitioning)
	require.Empty(t, info.Metadata)

	starts, stops := spotify.counts()
	require.Equal(t, 1, starts)
	require.Equal(t, 0, stops)
}

func TestRequestTransition_StopsPriorSource(t *testing.T) {
	spotify := &fakeSource{name: "spotify"}
	radio := &fakeSource{name: "radio"}
	c, _ := newTestCoordinator(t, spotify, radio)

	_, err := c.RequestTransition(context.Background(), "spotify", nil)
	require.NoError(t, err)

	info, err := c.RequestTransition(context.Background(), "radio", nil)
	require.NoError(t, err)
	require.Equal(t, AudioState("radio"), info.State)

	_, stops := spotify.counts()
	require.Equal(t, 1, stops)
}

func TestRequestTransition_SameTargetIsNoOp(t *testing.T) {
	spotify := &fakeSource{name: "spotify"}
	c, _ := newTestCoordinator(t, spotify)

	_, err := c.RequestTransition(context.Background(), "spotify", nil)
	require.NoError(t, err)

	info, err := c.RequestTransition(context.Background(), "spotify", nil)
	require.NoError(t, err)
	require.Equal(t, AudioState("spotify"), info.State)

	starts, stops := spotify.counts()
	require.Equal(t, 1, starts, "no-op must not restart the source")
	require.Equal(t, 0, stops)
}

func TestRequestTransition_ToNoneFromNoneIsNotANoOp(t *testing.T) {
	c, _ := newTestCoordinator(t)

	info, err := c.RequestTransition(context.Background(), StateNone, nil)
	require.NoError(t, err)
	require.Equal(t, StateNone, info.State)
	require.False(t, info.Transitioning)
}

func TestRequestTransition_UnknownTarget(t *testing.T) {
	c, _ := newTestCoordinator(t)

	info, err := c.RequestTransition(context.Background(), "cassette", nil)
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	require.Equal(t, StateNone, info.State)
}

func TestRequestTransition_ConcurrentRequestFailsImmediately(t *testing.T) {
	gate := make(chan struct{})
	slow := &fakeSource{name: "spotify", startGate: gate}
	c, _ := newTestCoordinator(t, slow)

	firstDone := make(chan error, 1)
	go func() {
		_, err := c.RequestTransition(context.Background(), "spotify", nil)
		firstDone <- err
	}()

	// Wait for the first transition to take the lock and commit the
	// transitioning state.
	require.Eventually(t, func() bool {
		return c.CurrentState().Transitioning
	}, 2*time.Second, 5*time.Millisecond)

	_, err := c.RequestTransition(context.Background(), "spotify", nil)
	require.ErrorIs(t, err, ErrTransitionInProgress)

	close(gate)
	require.NoError(t, <-firstDone)

	// The rejected request must not have perturbed the winner.
	require.Equal(t, AudioState("spotify"), c.CurrentState().State)
	starts, _ := slow.counts()
	require.Equal(t, 1, starts)
}

func TestRequestTransition_StartFailureRollsBackToNone(t *testing.T) {
	spotify := &fakeSource{name: "spotify"}
	broken := &fakeSource{name: "radio", startErr: errors.New("spawn failed")}
	c, _ := newTestCoordinator(t, spotify, broken)

	_, err := c.RequestTransition(context.Background(), "spotify", nil)
	require.NoError(t, err)

	info, err := c.RequestTransition(context.Background(), "radio", nil)
	require.ErrorIs(t, err, ErrSourceStartFailed)
	require.Equal(t, StateNone, info.State, "prior source already stopped, rollback is none")
	require.False(t, info.Transitioning)

	// A further transition must succeed; the lock was released.
	_, err = c.RequestTransition(context.Background(), "spotify", nil)
	require.NoError(t, err)
}

func TestRequestTransition_StopFailureKeepsPriorState(t *testing.T) {
	stuck := &fakeSource{name: "spotify", stopErr: errors.New("kill failed")}
	radio := &fakeSource{name: "radio"}
	c, _ := newTestCoordinator(t, stuck, radio)

	_, err := c.RequestTransition(context.Background(), "spotify", nil)
	require.NoError(t, err)

	info, err := c.RequestTransition(context.Background(), "radio", nil)
	require.ErrorIs(t, err, ErrSourceStopFailed)
	require.Equal(t, AudioState("spotify"), info.State)
	require.False(t, info.Transitioning)

	starts, _ := radio.counts()
	require.Equal(t, 0, starts, "target must not start after a stop failure")
}

func TestRequestTransition_StartTimeout(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	hung := &fakeSource{name: "spotify", startGate: gate}
	c, _ := newTestCoordinator(t, hung)
	c.WithStartTimeout(50 * time.Millisecond)

	info, err := c.RequestTransition(context.Background(), "spotify", nil)
	require.ErrorIs(t, err, ErrTransitionTimeout)
	require.Equal(t, StateNone, info.State)
}

func TestRequestTransition_PublishesStateChanges(t *testing.T) {
	spotify := &fakeSource{name: "spotify"}
	c, bus := newTestCoordinator(t, spotify)

	ch, unsub := events.Subscribe[events.StateChanged](bus, 16)
	defer unsub()

	_, err := c.RequestTransition(context.Background(), "spotify", nil)
	require.NoError(t, err)

	first := <-ch
	require.Equal(t, "transitioning", first.State)
	require.True(t, first.Transitioning)
	require.NotEmpty(t, first.TransitionID)

	second := <-ch
	require.Equal(t, "spotify", second.State)
	require.False(t, second.Transitioning)
	require.Equal(t, first.TransitionID, second.TransitionID)
}

func TestUpdateMetadata_MergesForCurrentSource(t *testing.T) {
	spotify := &fakeSource{name: "spotify"}
	c, _ := newTestCoordinator(t, spotify)

	_, err := c.RequestTransition(context.Background(), "spotify", nil)
	require.NoError(t, err)

	c.UpdateMetadata("spotify", map[string]any{"track": "one"})
	c.UpdateMetadata("spotify", map[string]any{"artist": "two"})

	md := c.CurrentState().Metadata
	require.Equal(t, "one", md["track"])
	require.Equal(t, "two", md["artist"])
}

func TestUpdateMetadata_DropsNonCurrentSource(t *testing.T) {
	spotify := &fakeSource{name: "spotify"}
	c, _ := newTestCoordinator(t, spotify)

	_, err := c.RequestTransition(context.Background(), "spotify", nil)
	require.NoError(t, err)

	c.UpdateMetadata("radio", map[string]any{"stale": true})
	require.NotContains(t, c.CurrentState().Metadata, "stale")
}

func TestTransition_ClearsMetadata(t *testing.T) {
	spotify := &fakeSource{name: "spotify"}
	radio := &fakeSource{name: "radio"}
	c, _ := newTestCoordinator(t, spotify, radio)

	_, err := c.RequestTransition(context.Background(), "spotify", nil)
	require.NoError(t, err)
	c.UpdateMetadata("spotify", map[string]any{"track": "one"})

	info, err := c.RequestTransition(context.Background(), "radio", nil)
	require.NoError(t, err)
	require.Empty(t, info.Metadata)
}

type recordingMixer struct {
	mu      sync.Mutex
	applied []int
	err     error
}

func (m *recordingMixer) Volume(context.Context, string) (foundation.Option[int], error) {
	return foundation.None[int](), nil
}

func (m *recordingMixer) SetVolume(_ context.Context, _ string, percent int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.applied = append(m.applied, percent)
	return nil
}

func TestUpdateVolume_ClampsAndDispatches(t *testing.T) {
	c, _ := newTestCoordinator(t)
	mix := &recordingMixer{}
	c.WithMixer(mix, "hw:0")

	require.NoError(t, c.UpdateVolume(context.Background(), 150))
	require.Equal(t, 100, c.CurrentState().Volume)

	require.NoError(t, c.UpdateVolume(context.Background(), -20))
	require.Equal(t, 0, c.CurrentState().Volume)

	require.NoError(t, c.UpdateVolume(context.Background(), 42))
	require.Equal(t, 42, c.CurrentState().Volume)

	mix.mu.Lock()
	defer mix.mu.Unlock()
	require.Equal(t, []int{100, 0, 42}, mix.applied)
}

func TestUpdateVolume_MixerFailureLeavesStateUntouched(t *testing.T) {
	c, _ := newTestCoordinator(t)
	c.WithInitialVolume(30)
	mix := &recordingMixer{err: errors.New("amixer missing")}
	c.WithMixer(mix, "hw:0")

	require.Error(t, c.UpdateVolume(context.Background(), 80))
	require.Equal(t, 30, c.CurrentState().Volume)
}

func TestAudioStateInfo_JSONRoundTrip(t *testing.T) {
	in := AudioStateInfo{
		State:         "spotify",
		Transitioning: false,
		Metadata:      map[string]any{"track": "one", "playing": true},
		Volume:        75,
	}

	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var out AudioStateInfo
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, in.State, out.State)
	require.Equal(t, in.Volume, out.Volume)
	require.Equal(t, "one", out.Metadata["track"])
	require.Equal(t, true, out.Metadata["playing"])
}

func TestCurrentState_ReturnsIndependentCopy(t *testing.T) {
	spotify := &fakeSource{name: "spotify"}
	c, _ := newTestCoordinator(t, spotify)

	_, err := c.RequestTransition(context.Background(), "spotify", nil)
	require.NoError(t, err)
	c.UpdateMetadata("spotify", map[string]any{"track": "one"})

	snap := c.CurrentState()
	snap.Metadata["track"] = "mutated"
	require.Equal(t, "one", c.CurrentState().Metadata["track"])
}
