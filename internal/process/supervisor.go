// Package process provides lifecycle supervision for a directly spawned child
// executable: start with liveness confirmation, graceful stop with kill
// escalation, and non-blocking output draining.
package process

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	ferrors "git.home.luguber.info/inful/audiohub/internal/foundation/errors"
)

// Options tune the supervision windows. Zero values fall back to the
// production defaults; tests shorten them.
type Options struct {
	// PollInterval is the delay between liveness checks after spawning.
	PollInterval time.Duration
	// MaxPolls bounds the number of liveness checks during start.
	MaxPolls int
	// MinHealthyPolls is the number of checks the process must survive
	// before start is considered successful.
	MinHealthyPolls int
	// StopGrace is how long to wait after SIGTERM before escalating.
	StopGrace time.Duration
	// KillWait is how long to wait after SIGKILL before giving up.
	KillWait time.Duration
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.MaxPolls <= 0 {
		o.MaxPolls = 10
	}
	if o.MinHealthyPolls <= 0 {
		o.MinHealthyPolls = 3
	}
	if o.StopGrace <= 0 {
		o.StopGrace = 5 * time.Second
	}
	if o.KillWait <= 0 {
		o.KillWait = time.Second
	}
	return o
}

// Info is a snapshot of the supervised process handle.
type Info struct {
	Path     string `json:"path"`
	PID      *int   `json:"pid,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`
	Running  bool   `json:"running"`
}

// handle owns one spawned process and its drained output.
type handle struct {
	cmd      *exec.Cmd
	stdout   *outputBuffer
	stderr   *outputBuffer
	done     chan struct{}
	exitCode int
}

func (h *handle) alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Supervisor manages a single child executable. It holds no lock of its own:
// the coordinator is the sole driver of Start/Stop while holding the
// transition lock, so calls never race for the same backend.
type Supervisor struct {
	path string
	args []string
	opts Options

	cur *handle
}

// NewSupervisor creates a supervisor for the given executable invocation.
func NewSupervisor(path string, args []string, opts Options) *Supervisor {
	return &Supervisor{path: path, args: args, opts: opts.withDefaults()}
}

// Path returns the supervised executable path.
func (s *Supervisor) Path() string {
	return s.path
}

// IsRunning is a non-blocking liveness check.
func (s *Supervisor) IsRunning() bool {
	return s.cur != nil && s.cur.alive()
}

// Info returns a snapshot of the current handle.
func (s *Supervisor) Info() Info {
	info := Info{Path: s.path}
	h := s.cur
	if h == nil {
		return info
	}
	if h.cmd.Process != nil {
		pid := h.cmd.Process.Pid
		info.PID = &pid
	}
	if h.alive() {
		info.Running = true
	} else {
		code := h.exitCode
		info.ExitCode = &code
	}
	return info
}

// Start spawns the executable and confirms liveness by polling. A handle that
// is already live is stopped first. The process must survive MinHealthyPolls
// checks; surviving that window counts as started even without deeper
// functional confirmation, which is a documented limitation of this layer.
func (s *Supervisor) Start(ctx context.Context) error {
	if s.IsRunning() {
		slog.Debug("Stopping stale process before start", "path", s.path)
		if err := s.Stop(ctx); err != nil {
			return err
		}
	}

	if _, err := os.Stat(s.path); err != nil {
		return ferrors.ProcessError("executable not available").
			WithCause(err).
			WithContext("path", s.path).
			Build()
	}

	cmd := exec.Command(s.path, s.args...)
	// Own process group: stop signals must reach children the executable
	// forks, not just the direct child (player binaries are often wrappers).
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	h := &handle{cmd: cmd, stdout: newOutputBuffer(), stderr: newOutputBuffer(), done: make(chan struct{})}
	cmd.Stdout = h.stdout
	cmd.Stderr = h.stderr

	if err := cmd.Start(); err != nil {
		return ferrors.ProcessError("spawn failed").
			WithCause(err).
			WithContext("path", s.path).
			Build()
	}

	go func() {
		err := cmd.Wait()
		if cmd.ProcessState != nil {
			h.exitCode = cmd.ProcessState.ExitCode()
		} else if err != nil {
			h.exitCode = -1
		}
		close(h.done)
	}()

	s.cur = h
	slog.Info("Process spawned", "path", s.path, "pid", cmd.Process.Pid)

	for i := 1; i <= s.opts.MaxPolls; i++ {
		select {
		case <-ctx.Done():
			_ = s.Stop(context.WithoutCancel(ctx))
			return ferrors.WrapError(ctx.Err(), ferrors.CategoryProcess, "start confirmation canceled").
				WithContext("path", s.path).
				Build()
		case <-time.After(s.opts.PollInterval):
		}

		if !h.alive() {
			stdout, stderr := h.stdout.Drain(), h.stderr.Drain()
			s.cur = nil
			return ferrors.ProcessError("process exited during startup").
				WithContext("path", s.path).
				WithContext("exit_code", h.exitCode).
				WithContext("stdout", stdout).
				WithContext("stderr", stderr).
				Build()
		}
		if i >= s.opts.MinHealthyPolls {
			slog.Info("Process confirmed running", "path", s.path, "polls", i)
			return nil
		}
	}

	// Loop bound exhausted while still alive; treat as started.
	return nil
}

// Stop terminates the current process. It is a no-op success when no handle
// exists. A live process gets SIGTERM, a grace window, then SIGKILL; failure
// is reported only if it survives escalation.
func (s *Supervisor) Stop(ctx context.Context) error {
	h := s.cur
	if h == nil {
		return nil
	}
	if !h.alive() {
		s.cur = nil
		return nil
	}

	// The child leads its own process group (Setpgid at spawn), so the
	// negative pid signals the whole group, including forked children.
	pid := h.cmd.Process.Pid
	slog.Debug("Stopping process", "path", s.path, "pid", pid)
	if err := syscall.Kill(-pid, syscall.SIGTERM); err == nil {
		if waitDone(ctx, h.done, s.opts.StopGrace) {
			s.cur = nil
			return nil
		}
	}

	slog.Warn("Process did not exit after SIGTERM, escalating", "path", s.path)
	_ = syscall.Kill(-pid, syscall.SIGKILL)
	if waitDone(ctx, h.done, s.opts.KillWait) {
		s.cur = nil
		return nil
	}

	return ferrors.ProcessError("process still alive after kill").
		WithContext("path", s.path).
		WithContext("pid", pid).
		Build()
}

// Restart stops then starts. The two steps are not atomic: callers must
// tolerate a transient not-running window between them.
func (s *Supervisor) Restart(ctx context.Context) error {
	if err := s.Stop(ctx); err != nil {
		return err
	}
	return s.Start(ctx)
}

// Output drains buffered stdout and stderr without blocking. Both strings are
// empty when nothing has been buffered since the last drain.
func (s *Supervisor) Output() (stdout, stderr string) {
	h := s.cur
	if h == nil {
		return "", ""
	}
	return h.stdout.Drain(), h.stderr.Drain()
}

func waitDone(ctx context.Context, done <-chan struct{}, limit time.Duration) bool {
	select {
	case <-done:
		return true
	case <-time.After(limit):
		return false
	case <-ctx.Done():
		return false
	}
}
