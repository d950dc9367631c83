package source

import (
	"context"
	"log/slog"
	"sync"

	ferrors "git.home.luguber.info/inful/audiohub/internal/foundation/errors"
	"git.home.luguber.info/inful/audiohub/internal/service"
)

// Multiroom joins the synchronized multiroom group by managing the client
// service unit. It composes the service supervisor only.
type Multiroom struct {
	svc  serviceManager
	unit string

	mu      sync.Mutex
	started bool
}

// NewMultiroom creates the multiroom client source.
func NewMultiroom(svc *service.Supervisor, unit string) *Multiroom {
	if unit == "" {
		unit = "snapclient"
	}
	return &Multiroom{svc: svc, unit: unit}
}

// Name implements Source.
func (m *Multiroom) Name() string { return "multiroom" }

// Start activates the multiroom client unit. Failures surface as routing
// errors so callers can distinguish group-join failures from local ones.
func (m *Multiroom) Start(ctx context.Context, _ map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		slog.Debug("Multiroom source already started")
		return nil
	}

	if err := m.svc.Manage(ctx, m.unit, service.ActionStart); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRouting, "multiroom activation failed").
			WithContext("unit", m.unit).
			Build()
	}

	m.started = true
	return nil
}

// Stop implements Source.
func (m *Multiroom) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}

	if err := m.svc.Manage(ctx, m.unit, service.ActionStop); err != nil {
		return err
	}
	m.started = false
	return nil
}

// Status implements Source.
func (m *Multiroom) Status() map[string]any {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()

	status := map[string]any{
		"started": started,
		"unit":    m.unit,
	}
	if active, err := m.svc.IsActive(context.Background(), m.unit); err == nil {
		status["unit_active"] = active
	}
	return status
}
