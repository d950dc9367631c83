// Package services manages the lifecycle of the daemon's long-running
// components with dependency-ordered startup and reverse-ordered shutdown.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/audiohub/internal/foundation"
	ferrors "git.home.luguber.info/inful/audiohub/internal/foundation/errors"
)

// ServiceStatus represents the current state of a managed component.
type ServiceStatus string

const (
	StatusNotStarted ServiceStatus = "not_started"
	StatusStarting   ServiceStatus = "starting"
	StatusRunning    ServiceStatus = "running"
	StatusStopping   ServiceStatus = "stopping"
	StatusStopped    ServiceStatus = "stopped"
	StatusFailed     ServiceStatus = "failed"
)

// HealthStatus is a component's self-reported health.
type HealthStatus struct {
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	CheckAt time.Time `json:"check_at"`
}

// Healthy returns a healthy status stamped now.
func Healthy() HealthStatus {
	return HealthStatus{Status: "healthy", CheckAt: time.Now()}
}

// Unhealthy returns an unhealthy status with the given message.
func Unhealthy(message string) HealthStatus {
	return HealthStatus{Status: "unhealthy", Message: message, CheckAt: time.Now()}
}

// ManagedService is a daemon component driven by the orchestrator.
type ManagedService interface {
	// Name identifies the component in logs and status output.
	Name() string

	// Start brings the component up. It must return once the component is
	// running; long-lived work happens on component-owned goroutines.
	Start(ctx context.Context) error

	// Stop shuts the component down, bounded by ctx.
	Stop(ctx context.Context) error

	// Health reports the component's current health.
	Health() HealthStatus

	// Dependencies names the components that must be running first.
	Dependencies() []string
}

// ServiceInfo is a status snapshot for one component.
type ServiceInfo struct {
	Name         string        `json:"name"`
	Status       ServiceStatus `json:"status"`
	Health       HealthStatus  `json:"health"`
	Dependencies []string      `json:"dependencies"`
	StartedAt    *time.Time    `json:"started_at,omitempty"`
	StoppedAt    *time.Time    `json:"stopped_at,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
}

// Orchestrator starts components in dependency order and stops them in
// reverse. A start failure rolls back everything already running.
type Orchestrator struct {
	services   map[string]ManagedService
	status     map[string]ServiceStatus
	startedAt  map[string]time.Time
	stoppedAt  map[string]time.Time
	lastErrors map[string]error
	mu         sync.RWMutex

	startTimeout time.Duration
	stopTimeout  time.Duration
}

// NewOrchestrator creates an empty orchestrator.
func NewOrchestrator() *Orchestrator {
	return &Orchestrator{
		services:     make(map[string]ManagedService),
		status:       make(map[string]ServiceStatus),
		startedAt:    make(map[string]time.Time),
		stoppedAt:    make(map[string]time.Time),
		lastErrors:   make(map[string]error),
		startTimeout: 30 * time.Second,
		stopTimeout:  10 * time.Second,
	}
}

// WithTimeouts configures per-component start and stop timeouts.
func (o *Orchestrator) WithTimeouts(start, stop time.Duration) *Orchestrator {
	o.startTimeout = start
	o.stopTimeout = stop
	return o
}

// Register adds a component.
func (o *Orchestrator) Register(service ManagedService) foundation.Result[struct{}, error] {
	o.mu.Lock()
	defer o.mu.Unlock()

	name := service.Name()
	if name == "" {
		return foundation.Err[struct{}, error](
			ferrors.ValidationError("service name cannot be empty").Build(),
		)
	}
	if _, exists := o.services[name]; exists {
		return foundation.Err[struct{}, error](
			ferrors.ValidationError(fmt.Sprintf("service %s already registered", name)).Build(),
		)
	}

	o.services[name] = service
	o.status[name] = StatusNotStarted

	slog.Debug("Service registered", "service", name, "dependencies", service.Dependencies())
	return foundation.Ok[struct{}, error](struct{}{})
}

// StartAll starts every component in dependency order.
func (o *Orchestrator) StartAll(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	order, err := o.startOrder()
	if err != nil {
		return ferrors.DaemonError("failed to calculate service start order").
			WithCause(err).
			Build()
	}

	slog.Info("Starting services", "count", len(order), "order", order)

	for _, name := range order {
		if err := o.startService(ctx, name); err != nil {
			o.stopStartedServices(ctx)
			return err
		}
	}

	slog.Info("All services started")
	return nil
}

// StopAll stops every running component in reverse start order. It continues
// past individual failures and reports the last one.
func (o *Orchestrator) StopAll(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	order, err := o.startOrder()
	if err != nil {
		return ferrors.DaemonError("failed to calculate service stop order").
			WithCause(err).
			Build()
	}

	var lastErr error
	for i := len(order) - 1; i >= 0; i-- {
		if err := o.stopService(ctx, order[i]); err != nil {
			lastErr = err
			slog.Error("Error stopping service", "service", order[i], "error", err)
		}
	}

	if lastErr != nil {
		return ferrors.DaemonError("some services failed to stop gracefully").
			WithCause(lastErr).
			Build()
	}

	slog.Info("All services stopped")
	return nil
}

// Info returns a status snapshot for one component.
func (o *Orchestrator) Info(name string) foundation.Option[ServiceInfo] {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.infoLocked(name)
}

// AllInfo returns status snapshots for every component.
func (o *Orchestrator) AllInfo() []ServiceInfo {
	o.mu.RLock()
	defer o.mu.RUnlock()

	infos := make([]ServiceInfo, 0, len(o.services))
	for name := range o.services {
		if info := o.infoLocked(name); info.IsSome() {
			infos = append(infos, info.Unwrap())
		}
	}
	return infos
}

func (o *Orchestrator) infoLocked(name string) foundation.Option[ServiceInfo] {
	service, exists := o.services[name]
	if !exists {
		return foundation.None[ServiceInfo]()
	}

	info := ServiceInfo{
		Name:         name,
		Status:       o.status[name],
		Dependencies: service.Dependencies(),
		Health:       service.Health(),
	}
	if at, ok := o.startedAt[name]; ok {
		info.StartedAt = &at
	}
	if at, ok := o.stoppedAt[name]; ok {
		info.StoppedAt = &at
	}
	if err, ok := o.lastErrors[name]; ok && err != nil {
		info.LastError = err.Error()
	}
	return foundation.Some(info)
}

// startOrder topologically sorts components by their dependencies.
func (o *Orchestrator) startOrder() ([]string, error) {
	visited := make(map[string]bool)
	visiting := make(map[string]bool)
	var order []string

	var visit func(string) error
	visit = func(name string) error {
		if visiting[name] {
			return fmt.Errorf("circular dependency involving service: %s", name)
		}
		if visited[name] {
			return nil
		}
		visiting[name] = true

		service, exists := o.services[name]
		if !exists {
			return fmt.Errorf("service not found: %s", name)
		}
		for _, dep := range service.Dependencies() {
			if err := visit(dep); err != nil {
				return err
			}
		}

		visiting[name] = false
		visited[name] = true
		order = append(order, name)
		return nil
	}

	for name := range o.services {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (o *Orchestrator) startService(ctx context.Context, name string) error {
	service := o.services[name]
	o.status[name] = StatusStarting

	timeoutCtx, cancel := context.WithTimeout(ctx, o.startTimeout)
	defer cancel()

	began := time.Now()
	if err := service.Start(timeoutCtx); err != nil {
		o.status[name] = StatusFailed
		o.lastErrors[name] = err
		return ferrors.DaemonError(fmt.Sprintf("failed to start service %s", name)).
			WithCause(err).
			Build()
	}

	o.status[name] = StatusRunning
	o.startedAt[name] = began
	o.lastErrors[name] = nil

	slog.Info("Service started", "service", name, "duration", time.Since(began))
	return nil
}

func (o *Orchestrator) stopService(ctx context.Context, name string) error {
	service := o.services[name]
	if o.status[name] != StatusRunning {
		return nil
	}
	o.status[name] = StatusStopping

	timeoutCtx, cancel := context.WithTimeout(ctx, o.stopTimeout)
	defer cancel()

	began := time.Now()
	if err := service.Stop(timeoutCtx); err != nil {
		o.status[name] = StatusFailed
		o.lastErrors[name] = err
		return err
	}

	o.status[name] = StatusStopped
	o.stoppedAt[name] = began

	slog.Info("Service stopped", "service", name, "duration", time.Since(began))
	return nil
}

// stopStartedServices rolls back running components after a start failure.
func (o *Orchestrator) stopStartedServices(ctx context.Context) {
	for name, status := range o.status {
		if status == StatusRunning {
			if err := o.stopService(ctx, name); err != nil {
				slog.Error("Error stopping service during rollback", "service", name, "error", err)
			}
		}
	}
}
