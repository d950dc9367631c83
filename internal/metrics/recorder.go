// Package metrics provides observability for the orchestration core.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection never requires nil checks and costs
// nothing when disabled. The Prometheus implementation is activated by the
// daemon when a metrics registry is configured.
package metrics

import "time"

// Recorder defines all metrics operations the core emits.
type Recorder interface {
	// TransitionCompleted counts a finished transition by outcome
	// (success, in_progress, stop_failed, start_failed, timeout, noop).
	TransitionCompleted(outcome string, duration time.Duration)

	// SourceActive records which source is current after a committed state.
	SourceActive(source string)

	// FeedReconnect counts failed feed connection attempts for a source.
	FeedReconnect(source string)

	// PrivilegedCommand observes one privileged command invocation.
	PrivilegedCommand(duration time.Duration)
}

// NoopRecorder is the default Recorder; all methods do nothing.
type NoopRecorder struct{}

func (NoopRecorder) TransitionCompleted(string, time.Duration) {}
func (NoopRecorder) SourceActive(string)                       {}
func (NoopRecorder) FeedReconnect(string)                      {}
func (NoopRecorder) PrivilegedCommand(time.Duration)           {}
