// Package coordinator owns the top-level audio state machine. It serializes
// source transitions behind a single lock, drives source start/stop, and
// publishes every committed state to the event bus.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/audiohub/internal/events"
	ferrors "git.home.luguber.info/inful/audiohub/internal/foundation/errors"
	"git.home.luguber.info/inful/audiohub/internal/logfields"
	"git.home.luguber.info/inful/audiohub/internal/metrics"
	"git.home.luguber.info/inful/audiohub/internal/mixer"
	"git.home.luguber.info/inful/audiohub/internal/source"
	"github.com/google/uuid"
)

// Coordinator is the sole owner of AudioStateInfo.
//
// Two independent locks, never nested: transitionMu serializes whole
// transitions; stateMu protects reads and lighter-weight writes (metadata,
// volume) that do not require the transition lock.
type Coordinator struct {
	bus      *events.Bus
	registry *source.Registry
	recorder metrics.Recorder

	mix         mixer.Mixer
	mixerDevice string

	transitionMu sync.Mutex
	stateMu      sync.RWMutex
	info         AudioStateInfo

	startTimeout   time.Duration
	publishTimeout time.Duration
}

// New creates a coordinator starting in state none.
func New(bus *events.Bus, registry *source.Registry) *Coordinator {
	return &Coordinator{
		bus:      bus,
		registry: registry,
		recorder: metrics.NoopRecorder{},
		info: AudioStateInfo{
			State:    StateNone,
			Metadata: map[string]any{},
			Volume:   50,
		},
		startTimeout:   10 * time.Second,
		publishTimeout: 2 * time.Second,
	}
}

// WithMixer wires the volume-mixer collaborator for the given output device.
func (c *Coordinator) WithMixer(m mixer.Mixer, device string) *Coordinator {
	c.mix = m
	c.mixerDevice = device
	return c
}

// WithRecorder wires a metrics recorder.
func (c *Coordinator) WithRecorder(r metrics.Recorder) *Coordinator {
	c.recorder = r
	return c
}

// WithStartTimeout overrides the source start confirmation window.
func (c *Coordinator) WithStartTimeout(d time.Duration) *Coordinator {
	c.startTimeout = d
	return c
}

// WithInitialVolume sets the startup volume (clamped).
func (c *Coordinator) WithInitialVolume(percent int) *Coordinator {
	c.info.Volume = mixer.Clamp(percent)
	return c
}

// CurrentState returns a consistent snapshot. It never exposes a half-applied
// transition: every value it returns was committed under stateMu.
func (c *Coordinator) CurrentState() AudioStateInfo {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.info.Clone()
}

// RequestTransition switches the output to the target source.
//
// The transition lock is attempted without queueing: a second concurrent
// request fails immediately with ErrTransitionInProgress and does not perturb
// the first. The lock is released on every exit path.
func (c *Coordinator) RequestTransition(ctx context.Context, target AudioState, params map[string]any) (AudioStateInfo, error) {
	if !c.transitionMu.TryLock() {
		c.recorder.TransitionCompleted("in_progress", 0)
		return c.CurrentState(), ErrTransitionInProgress
	}
	defer c.transitionMu.Unlock()

	began := time.Now()
	cur := c.CurrentState()

	if target == cur.State && cur.State != StateNone {
		slog.Debug("Transition is a no-op", "target", string(target))
		c.recorder.TransitionCompleted("noop", time.Since(began))
		return cur, nil
	}

	var tgt source.Source
	if target != StateNone {
		opt := c.registry.Get(string(target))
		if opt.IsNone() {
			c.recorder.TransitionCompleted("invalid_target", time.Since(began))
			return cur, ferrors.ValidationError("unknown audio source").
				WithContext("target", string(target)).
				Build()
		}
		tgt = opt.Unwrap()
	}

	transitionID := uuid.NewString()
	slog.Info("Transition started",
		logfields.TransitionID(transitionID),
		slog.String("from", string(cur.State)),
		logfields.Target(string(target)))

	c.commit(func(i *AudioStateInfo) {
		i.State = StateTransitioning
		i.Transitioning = true
	})
	c.publish(transitionID)

	// Stop the current source first; a stop failure aborts the transition
	// and keeps the prior source current.
	if cur.State != StateNone {
		if err := c.stopCurrent(ctx, cur.State); err != nil {
			c.commit(func(i *AudioStateInfo) {
				i.State = cur.State
				i.Transitioning = false
			})
			c.publish(transitionID)
			c.recorder.TransitionCompleted("stop_failed", time.Since(began))
			return c.CurrentState(), err
		}
	}

	if target == StateNone {
		c.commitFinal(StateNone)
		c.publish(transitionID)
		c.recorder.TransitionCompleted("success", time.Since(began))
		c.recorder.SourceActive(string(StateNone))
		slog.Info("Transition completed", "transition_id", transitionID, "state", "none")
		return c.CurrentState(), nil
	}

	startCtx, cancel := context.WithTimeout(ctx, c.startTimeout)
	defer cancel()

	if err := tgt.Start(startCtx, params); err != nil {
		// The prior source is already stopped, so the safe rollback
		// state is none, not the prior source.
		c.commitFinal(StateNone)
		c.publish(transitionID)

		kind := ErrSourceStartFailed
		outcome := "start_failed"
		if errors.Is(startCtx.Err(), context.DeadlineExceeded) {
			kind = ErrTransitionTimeout
			outcome = "timeout"
		}
		c.recorder.TransitionCompleted(outcome, time.Since(began))
		c.recorder.SourceActive(string(StateNone))
		slog.Error("Transition failed",
			logfields.TransitionID(transitionID),
			logfields.Target(string(target)),
			logfields.Error(err))
		return c.CurrentState(), ferrors.WrapError(err, ferrors.CategoryTransition, kind.Message()).
			WithContext("target", string(target)).
			WithContext("transition_id", transitionID).
			Build()
	}

	c.commitFinal(target)
	c.publish(transitionID)
	c.recorder.TransitionCompleted("success", time.Since(began))
	c.recorder.SourceActive(string(target))
	slog.Info("Transition completed", "transition_id", transitionID, "state", string(target))
	return c.CurrentState(), nil
}

// stopCurrent stops the source backing the given state.
func (c *Coordinator) stopCurrent(ctx context.Context, state AudioState) error {
	opt := c.registry.Get(string(state))
	if opt.IsNone() {
		return ferrors.InternalError("current state has no registered source").
			WithContext("state", string(state)).
			Build()
	}

	if err := opt.Unwrap().Stop(ctx); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryTransition, ErrSourceStopFailed.Message()).
			WithContext("source", string(state)).
			Build()
	}
	return nil
}

// UpdateMetadata merges a patch into the current metadata. Events for a
// source that is no longer current are dropped; feed cancellation makes this
// rare, but transitions race with in-flight events.
func (c *Coordinator) UpdateMetadata(src string, patch map[string]any) {
	c.stateMu.Lock()
	if string(c.info.State) != src {
		c.stateMu.Unlock()
		slog.Debug("Dropping metadata for non-current source", "source", src)
		return
	}
	for k, v := range patch {
		c.info.Metadata[k] = v
	}
	c.stateMu.Unlock()

	c.publish("")
}

// UpdateVolume applies the clamped percentage to the state and, when a mixer
// is wired, dispatches it to the output device.
func (c *Coordinator) UpdateVolume(ctx context.Context, percent int) error {
	percent = mixer.Clamp(percent)

	if c.mix != nil {
		if err := c.mix.SetVolume(ctx, c.mixerDevice, percent); err != nil {
			return err
		}
	}

	c.commit(func(i *AudioStateInfo) { i.Volume = percent })
	c.publish("")
	return nil
}

// Republish pushes the current state onto the bus unchanged. Late-joining
// consumers rely on the daemon calling this periodically.
func (c *Coordinator) Republish() {
	c.publish("")
}

// commit applies a mutation under stateMu.
func (c *Coordinator) commit(mutate func(*AudioStateInfo)) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	mutate(&c.info)
}

// commitFinal commits the end of a transition: new state, fresh metadata.
func (c *Coordinator) commitFinal(state AudioState) {
	c.commit(func(i *AudioStateInfo) {
		i.State = state
		i.Transitioning = false
		i.Metadata = map[string]any{}
	})
}

// publish pushes the committed state onto the bus. Publishing is detached
// from the caller's context so rollback states still reach subscribers after
// a cancellation.
func (c *Coordinator) publish(transitionID string) {
	snapshot := c.CurrentState()
	evt := events.StateChanged{
		TransitionID:  transitionID,
		State:         string(snapshot.State),
		Transitioning: snapshot.Transitioning,
		Metadata:      snapshot.Metadata,
		Volume:        snapshot.Volume,
		At:            time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.publishTimeout)
	defer cancel()
	if err := c.bus.Publish(ctx, evt); err != nil {
		slog.Warn("Failed to publish state change", "error", err)
	}
}
