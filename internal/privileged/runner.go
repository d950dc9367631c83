// Package privileged provides the boundary for executing privileged external
// commands (systemctl and friends). The boundary is synchronous and always
// bounded by the caller's context.
package privileged

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	ferrors "git.home.luguber.info/inful/audiohub/internal/foundation/errors"
)

// Result captures the outcome of a completed command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Success reports whether the command exited zero.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Runner executes a privileged command and returns its exit code and output.
// Implementations must honor context cancellation; a canceled context kills
// the command.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner runs commands via os/exec. It is the production Runner.
type ExecRunner struct{}

// NewExecRunner creates the default command runner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the command and waits for completion. A non-zero exit is not an
// error here; callers inspect Result.ExitCode. Errors are reserved for the
// command being unrunnable or the context expiring.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(started),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		if ctx.Err() != nil {
			return res, ferrors.WrapError(ctx.Err(), ferrors.CategoryService, "privileged command timed out").
				WithContext("command", name).
				Build()
		}
		return res, ferrors.WrapError(err, ferrors.CategoryService, "privileged command could not be run").
			WithContext("command", name).
			Build()
	}

	res.ExitCode = 0
	return res, nil
}

// ObservedRunner decorates a Runner and reports each invocation's duration,
// including failed ones.
type ObservedRunner struct {
	inner   Runner
	observe func(time.Duration)
}

// NewObservedRunner wraps the given runner with a duration observer.
func NewObservedRunner(inner Runner, observe func(time.Duration)) *ObservedRunner {
	return &ObservedRunner{inner: inner, observe: observe}
}

// Run implements Runner.
func (r *ObservedRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	started := time.Now()
	res, err := r.inner.Run(ctx, name, args...)
	if r.observe != nil {
		r.observe(time.Since(started))
	}
	return res, err
}
