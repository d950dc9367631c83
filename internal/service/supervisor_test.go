package service

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	ferrors "git.home.luguber.info/inful/audiohub/internal/foundation/errors"
	"git.home.luguber.info/inful/audiohub/internal/privileged"
	"github.com/stretchr/testify/require"
)

// fakeRunner scripts privileged command outcomes and records every invocation.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []string
	respond func(call string) privileged.Result
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (privileged.Result, error) {
	call := name + " " + strings.Join(args, " ")
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.respond != nil {
		return f.respond(call), nil
	}
	return privileged.Result{ExitCode: 0}, nil
}

func (f *fakeRunner) callCount(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.Contains(c, substr) {
			n++
		}
	}
	return n
}

func fastServiceOpts() Options {
	return Options{
		CacheTTL:        2 * time.Second,
		QueryTimeout:    time.Second,
		CommandTimeout:  time.Second,
		ConfirmAttempts: 5,
		ConfirmInterval: 10 * time.Millisecond,
	}
}

func TestIsActive_QueriesThenCaches(t *testing.T) {
	runner := &fakeRunner{}
	s := NewSupervisor(runner, fastServiceOpts())

	active, err := s.IsActive(context.Background(), "bluealsa")
	require.NoError(t, err)
	require.True(t, active)
	require.Equal(t, 1, runner.callCount("is-active"))

	// Second call within the TTL must not touch the privileged boundary.
	active, err = s.IsActive(context.Background(), "bluealsa")
	require.NoError(t, err)
	require.True(t, active)
	require.Equal(t, 1, runner.callCount("is-active"))
}

func TestIsActive_CacheExpiresAfterTTL(t *testing.T) {
	runner := &fakeRunner{}
	s := NewSupervisor(runner, fastServiceOpts())

	now := time.Now()
	s.now = func() time.Time { return now }

	_, err := s.IsActive(context.Background(), "bluealsa")
	require.NoError(t, err)

	now = now.Add(3 * time.Second)
	_, err = s.IsActive(context.Background(), "bluealsa")
	require.NoError(t, err)
	require.Equal(t, 2, runner.callCount("is-active"))
}

func TestManage_StartShortCircuitsOnFreshActiveObservation(t *testing.T) {
	runner := &fakeRunner{}
	s := NewSupervisor(runner, fastServiceOpts())

	// Warm the cache with an active observation 1s "ago".
	_, err := s.IsActive(context.Background(), "snapclient")
	require.NoError(t, err)

	require.NoError(t, s.Manage(context.Background(), "snapclient", ActionStart))
	require.Zero(t, runner.callCount("systemctl start"))
}

func TestManage_StopShortCircuitsWhenInactive(t *testing.T) {
	runner := &fakeRunner{respond: func(call string) privileged.Result {
		if strings.Contains(call, "is-active") {
			return privileged.Result{ExitCode: 3} // inactive
		}
		return privileged.Result{ExitCode: 0}
	}}
	s := NewSupervisor(runner, fastServiceOpts())

	require.NoError(t, s.Manage(context.Background(), "snapclient", ActionStop))
	require.Zero(t, runner.callCount("systemctl stop"))
}

func TestManage_StartRunsCommandAndConfirms(t *testing.T) {
	var started bool
	runner := &fakeRunner{}
	runner.respond = func(call string) privileged.Result {
		switch {
		case strings.Contains(call, "systemctl start"):
			started = true
			return privileged.Result{ExitCode: 0}
		case strings.Contains(call, "is-active"):
			if started {
				return privileged.Result{ExitCode: 0}
			}
			return privileged.Result{ExitCode: 3}
		}
		return privileged.Result{ExitCode: 0}
	}
	s := NewSupervisor(runner, fastServiceOpts())

	require.NoError(t, s.Manage(context.Background(), "snapclient", ActionStart))
	require.Equal(t, 1, runner.callCount("systemctl start"))
}

func TestManage_StartFailsWhenConfirmationExhausted(t *testing.T) {
	runner := &fakeRunner{respond: func(call string) privileged.Result {
		if strings.Contains(call, "is-active") {
			return privileged.Result{ExitCode: 3} // never becomes active
		}
		return privileged.Result{ExitCode: 0}
	}}
	s := NewSupervisor(runner, fastServiceOpts())

	err := s.Manage(context.Background(), "snapclient", ActionStart)
	require.Error(t, err)
	require.Equal(t, ferrors.CategoryService, ferrors.GetCategory(err))
}

func TestManage_NonZeroExitFails(t *testing.T) {
	runner := &fakeRunner{respond: func(call string) privileged.Result {
		if strings.Contains(call, "systemctl restart") {
			return privileged.Result{ExitCode: 1, Stderr: "unit not found"}
		}
		return privileged.Result{ExitCode: 0}
	}}
	s := NewSupervisor(runner, fastServiceOpts())

	err := s.Manage(context.Background(), "ghost", ActionRestart)
	require.Error(t, err)

	classified, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	require.Equal(t, "unit not found", classified.Context()["stderr"])
}

func TestManage_RestartNeverShortCircuits(t *testing.T) {
	runner := &fakeRunner{}
	s := NewSupervisor(runner, fastServiceOpts())

	// Active observation present; restart must still run.
	_, err := s.IsActive(context.Background(), "snapclient")
	require.NoError(t, err)

	require.NoError(t, s.Manage(context.Background(), "snapclient", ActionRestart))
	require.Equal(t, 1, runner.callCount("systemctl restart"))
}

func TestManage_SuccessInvalidatesWholeCache(t *testing.T) {
	runner := &fakeRunner{}
	s := NewSupervisor(runner, fastServiceOpts())

	_, err := s.IsActive(context.Background(), "bluealsa")
	require.NoError(t, err)
	_, err = s.IsActive(context.Background(), "bluetooth")
	require.NoError(t, err)

	require.NoError(t, s.Manage(context.Background(), "snapclient", ActionRestart))

	before := runner.callCount("is-active")
	_, err = s.IsActive(context.Background(), "bluealsa")
	require.NoError(t, err)
	require.Equal(t, before+1, runner.callCount("is-active"))
}

func TestManage_UnknownActionIsValidationError(t *testing.T) {
	s := NewSupervisor(&fakeRunner{}, fastServiceOpts())

	err := s.Manage(context.Background(), "snapclient", Action("enable"))
	require.Error(t, err)
	require.Equal(t, ferrors.CategoryValidation, ferrors.GetCategory(err))
}

func TestStartDevicePlayback_UsesUnitWhenPresent(t *testing.T) {
	runner := &fakeRunner{}
	opts := fastServiceOpts()
	opts.DeviceUnitTemplate = "bluealsa-aplay@%s.service"
	s := NewSupervisor(runner, opts)

	require.NoError(t, s.StartDevicePlayback(context.Background(), "AA:BB"))
	require.Equal(t, 1, runner.callCount("systemctl cat bluealsa-aplay@AA:BB.service"))
}

func TestStartDevicePlayback_FallsBackWhenUnitMissing(t *testing.T) {
	runner := &fakeRunner{respond: func(call string) privileged.Result {
		if strings.Contains(call, "systemctl cat") {
			return privileged.Result{ExitCode: 1} // unit unknown
		}
		return privileged.Result{ExitCode: 0}
	}}

	var spawnedFor string
	s := NewSupervisor(runner, fastServiceOpts()).
		WithFallbackSpawner(func(_ context.Context, device string) error {
			spawnedFor = device
			return nil
		})

	require.NoError(t, s.StartDevicePlayback(context.Background(), "AA:BB"))
	require.Equal(t, "AA:BB", spawnedFor)
	require.Zero(t, runner.callCount("systemctl start"))
}

func TestStopDevicePlayback_StopsUnitWhenPresent(t *testing.T) {
	runner := &fakeRunner{}
	opts := fastServiceOpts()
	opts.DeviceUnitTemplate = "bluealsa-aplay@%s.service"
	s := NewSupervisor(runner, opts)

	require.NoError(t, s.StopDevicePlayback(context.Background(), "AA:BB"))
	require.Equal(t, 1, runner.callCount("systemctl stop bluealsa-aplay@AA:BB.service"))
}

func TestStopDevicePlayback_UnknownUnitIsNoop(t *testing.T) {
	runner := &fakeRunner{respond: func(call string) privileged.Result {
		if strings.Contains(call, "systemctl cat") {
			return privileged.Result{ExitCode: 1} // unit unknown
		}
		return privileged.Result{ExitCode: 0}
	}}
	s := NewSupervisor(runner, fastServiceOpts())

	require.NoError(t, s.StopDevicePlayback(context.Background(), "AA:BB"))
	require.Zero(t, runner.callCount("systemctl stop"))
}

func TestStopDevicePlayback_TerminatesFallbackProcess(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "pid")
	exe := filepath.Join(dir, "aplay.sh")
	script := "#!/bin/sh\necho $$ > " + pidFile + "\nexec sleep 30\n"
	require.NoError(t, os.WriteFile(exe, []byte(script), 0o755))

	runner := &fakeRunner{respond: func(call string) privileged.Result {
		if strings.Contains(call, "systemctl cat") {
			return privileged.Result{ExitCode: 1} // unit unknown, forces the fallback
		}
		return privileged.Result{ExitCode: 0}
	}}
	opts := fastServiceOpts()
	opts.PlaybackExec = exe
	s := NewSupervisor(runner, opts)

	require.NoError(t, s.StartDevicePlayback(context.Background(), "AA:BB"))

	raw, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	require.NoError(t, err)

	require.NoError(t, s.StopDevicePlayback(context.Background(), "AA:BB"))
	require.Zero(t, runner.callCount("systemctl stop"))
	require.Eventually(t, func() bool {
		return syscall.Kill(pid, 0) != nil
	}, time.Second, 20*time.Millisecond, "fallback playback process must be gone after stop")

	// The handle is released; a second stop goes down the unit path.
	require.NoError(t, s.StopDevicePlayback(context.Background(), "AA:BB"))
}
