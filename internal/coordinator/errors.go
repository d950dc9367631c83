package coordinator

import (
	ferrors "git.home.luguber.info/inful/audiohub/internal/foundation/errors"
)

// Transition failure kinds. Callers discriminate with errors.Is against these
// sentinels; classified errors match on category plus message, so wrapped
// instances carrying extra context still compare equal.
var (
	// ErrTransitionInProgress is returned immediately when another
	// transition holds the lock; requests are never queued.
	ErrTransitionInProgress = ferrors.TransitionError("transition already in progress").Build()

	// ErrSourceStopFailed aborts a transition with the prior source kept
	// current.
	ErrSourceStopFailed = ferrors.TransitionError("source stop failed").Build()

	// ErrSourceStartFailed rolls the state back to none, since the prior
	// source was already stopped.
	ErrSourceStartFailed = ferrors.TransitionError("source start failed").Build()

	// ErrTransitionTimeout is the start-confirmation window expiring; the
	// rollback state is none, as with ErrSourceStartFailed.
	ErrTransitionTimeout = ferrors.TransitionError("transition timed out").Build()
)
