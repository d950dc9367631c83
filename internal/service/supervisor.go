// Package service provides lifecycle management for privileged,
// externally-registered services (systemd units). All mutations funnel
// through one supervisor-wide gate because the privileged boundary is not
// safe for concurrent invocation.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/audiohub/internal/foundation/errors"
	"git.home.luguber.info/inful/audiohub/internal/privileged"
	"git.home.luguber.info/inful/audiohub/internal/process"
)

// Action is a requested service mutation.
type Action string

const (
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionRestart Action = "restart"
)

// Options tune supervision windows and the device-playback fallback.
type Options struct {
	// CacheTTL bounds how stale an is-active observation may be before the
	// privileged boundary is queried again.
	CacheTTL time.Duration
	// QueryTimeout bounds a single is-active query.
	QueryTimeout time.Duration
	// CommandTimeout bounds a single start/stop/restart invocation.
	CommandTimeout time.Duration
	// ConfirmAttempts and ConfirmInterval drive post-start confirmation polling.
	ConfirmAttempts int
	ConfirmInterval time.Duration

	// DeviceUnitTemplate names a device-bound playback unit, e.g.
	// "bluealsa-aplay@%s.service". PlaybackExec is spawned directly when the
	// templated unit does not exist.
	DeviceUnitTemplate string
	PlaybackExec       string
}

func (o Options) withDefaults() Options {
	if o.CacheTTL <= 0 {
		o.CacheTTL = 2 * time.Second
	}
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = 3 * time.Second
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = 10 * time.Second
	}
	if o.ConfirmAttempts <= 0 {
		o.ConfirmAttempts = 5
	}
	if o.ConfirmInterval <= 0 {
		o.ConfirmInterval = 500 * time.Millisecond
	}
	if o.DeviceUnitTemplate == "" {
		o.DeviceUnitTemplate = "bluealsa-aplay@%s.service"
	}
	return o
}

type cacheEntry struct {
	active     bool
	observedAt time.Time
}

// Supervisor manages privileged services through a Runner. One instance owns
// its activity cache; mutations across all service names are serialized.
type Supervisor struct {
	runner privileged.Runner
	opts   Options

	// gate serializes every privileged mutation, regardless of service name.
	gate sync.Mutex

	cacheMu sync.Mutex
	cache   map[string]cacheEntry

	// fallbacks retains directly-spawned playback processes by device so
	// StopDevicePlayback can terminate them; a dropped handle would leave
	// the process holding the output with no way to release it.
	fallbackMu sync.Mutex
	fallbacks  map[string]*process.Supervisor

	now           func() time.Time
	spawnFallback func(ctx context.Context, device string) error
}

// NewSupervisor creates a service supervisor over the given privileged runner.
func NewSupervisor(runner privileged.Runner, opts Options) *Supervisor {
	s := &Supervisor{
		runner:    runner,
		opts:      opts.withDefaults(),
		cache:     make(map[string]cacheEntry),
		fallbacks: make(map[string]*process.Supervisor),
		now:       time.Now,
	}
	s.spawnFallback = s.spawnPlaybackProcess
	return s
}

// WithFallbackSpawner overrides how the device-playback fallback is spawned.
// Intended for tests.
func (s *Supervisor) WithFallbackSpawner(fn func(ctx context.Context, device string) error) *Supervisor {
	s.spawnFallback = fn
	return s
}

// IsActive reports whether the named service is active. Observations younger
// than the cache TTL are returned without touching the privileged boundary;
// callers must tolerate that much staleness.
func (s *Supervisor) IsActive(ctx context.Context, name string) (bool, error) {
	s.cacheMu.Lock()
	entry, ok := s.cache[name]
	s.cacheMu.Unlock()
	if ok && s.now().Sub(entry.observedAt) < s.opts.CacheTTL {
		return entry.active, nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	res, err := s.runner.Run(queryCtx, "systemctl", "is-active", "--quiet", name)
	if err != nil {
		return false, ferrors.WrapError(err, ferrors.CategoryService, "is-active query failed").
			WithContext("service", name).
			Build()
	}

	active := res.Success()
	s.cacheMu.Lock()
	s.cache[name] = cacheEntry{active: active, observedAt: s.now()}
	s.cacheMu.Unlock()

	return active, nil
}

// Manage applies the requested action to the named service. Start and stop
// short-circuit to success when the observed state already matches the
// desired post-condition; restart always runs. Any successful mutation
// invalidates the entire cache, since one unit's state change may affect
// others' observed state.
func (s *Supervisor) Manage(ctx context.Context, name string, action Action) error {
	switch action {
	case ActionStart, ActionStop, ActionRestart:
	default:
		return ferrors.ValidationError("unknown service action").
			WithContext("action", string(action)).
			Build()
	}

	s.gate.Lock()
	defer s.gate.Unlock()

	if action != ActionRestart {
		active, err := s.IsActive(ctx, name)
		if err == nil {
			if (action == ActionStart && active) || (action == ActionStop && !active) {
				slog.Debug("Service already in desired state", "service", name, "action", string(action))
				return nil
			}
		}
	}

	cmdCtx, cancel := context.WithTimeout(ctx, s.opts.CommandTimeout)
	defer cancel()

	res, err := s.runner.Run(cmdCtx, "systemctl", string(action), name)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryService, "service command failed").
			WithContext("service", name).
			WithContext("action", string(action)).
			Build()
	}
	if !res.Success() {
		return ferrors.ServiceError("service command exited non-zero").
			WithContext("service", name).
			WithContext("action", string(action)).
			WithContext("exit_code", res.ExitCode).
			WithContext("stderr", res.Stderr).
			Build()
	}

	s.invalidateCache()

	if action == ActionStart {
		if err := s.confirmActive(ctx, name); err != nil {
			return err
		}
	}

	slog.Info("Service mutated", "service", name, "action", string(action))
	return nil
}

// confirmActive polls is-active until confirmation or attempts are exhausted.
func (s *Supervisor) confirmActive(ctx context.Context, name string) error {
	for attempt := 1; attempt <= s.opts.ConfirmAttempts; attempt++ {
		active, err := s.IsActive(ctx, name)
		if err == nil && active {
			return nil
		}

		select {
		case <-ctx.Done():
			return ferrors.WrapError(ctx.Err(), ferrors.CategoryService, "start confirmation canceled").
				WithContext("service", name).
				Build()
		case <-time.After(s.opts.ConfirmInterval):
		}

		// Confirmation must observe fresh state, not the pre-start cache entry.
		s.invalidateEntry(name)
	}

	return ferrors.ServiceError("service did not become active").
		WithContext("service", name).
		WithContext("attempts", s.opts.ConfirmAttempts).
		Build()
}

// StartDevicePlayback starts the device-bound playback service for the given
// device identifier. When the templated unit does not exist, it falls back to
// spawning the playback executable directly, bound to that device.
func (s *Supervisor) StartDevicePlayback(ctx context.Context, device string) error {
	unit := fmt.Sprintf(s.opts.DeviceUnitTemplate, device)

	exists, err := s.unitExists(ctx, unit)
	if err != nil {
		return err
	}
	if exists {
		return s.Manage(ctx, unit, ActionStart)
	}

	slog.Warn("Device playback unit missing, spawning executable directly",
		"unit", unit, "device", device)
	return s.spawnFallback(ctx, device)
}

// unitExists checks whether the unit file is known to the service manager.
func (s *Supervisor) unitExists(ctx context.Context, unit string) (bool, error) {
	queryCtx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	res, err := s.runner.Run(queryCtx, "systemctl", "cat", unit)
	if err != nil {
		return false, ferrors.WrapError(err, ferrors.CategoryService, "unit lookup failed").
			WithContext("unit", unit).
			Build()
	}
	return res.Success(), nil
}

// spawnPlaybackProcess is the production fallback: run the playback binary
// bound to the device and verify it survives a short liveness window.
func (s *Supervisor) spawnPlaybackProcess(ctx context.Context, device string) error {
	if s.opts.PlaybackExec == "" {
		return ferrors.ConfigError("no playback executable configured for device fallback").
			WithContext("device", device).
			Build()
	}

	sup := process.NewSupervisor(s.opts.PlaybackExec, []string{"-d", device}, process.Options{
		PollInterval:    500 * time.Millisecond,
		MaxPolls:        4,
		MinHealthyPolls: 2,
	})
	if err := sup.Start(ctx); err != nil {
		return err
	}

	s.fallbackMu.Lock()
	s.fallbacks[device] = sup
	s.fallbackMu.Unlock()
	return nil
}

// StopDevicePlayback releases the device-bound playback path, whichever form
// StartDevicePlayback took: a directly-spawned fallback process is terminated,
// otherwise the templated unit is stopped when it exists. Unknown devices are
// a no-op success.
func (s *Supervisor) StopDevicePlayback(ctx context.Context, device string) error {
	s.fallbackMu.Lock()
	sup, ok := s.fallbacks[device]
	delete(s.fallbacks, device)
	s.fallbackMu.Unlock()
	if ok {
		if err := sup.Stop(ctx); err != nil {
			// Keep the handle; the process is still alive and must stay
			// reachable for a retry.
			s.fallbackMu.Lock()
			s.fallbacks[device] = sup
			s.fallbackMu.Unlock()
			return err
		}
		return nil
	}

	unit := fmt.Sprintf(s.opts.DeviceUnitTemplate, device)
	exists, err := s.unitExists(ctx, unit)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	return s.Manage(ctx, unit, ActionStop)
}

func (s *Supervisor) invalidateCache() {
	s.cacheMu.Lock()
	s.cache = make(map[string]cacheEntry)
	s.cacheMu.Unlock()
}

func (s *Supervisor) invalidateEntry(name string) {
	s.cacheMu.Lock()
	delete(s.cache, name)
	s.cacheMu.Unlock()
}
