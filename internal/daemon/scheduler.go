package daemon

import (
	"context"
	"log/slog"
	"time"

	ferrors "git.home.luguber.info/inful/audiohub/internal/foundation/errors"
	"git.home.luguber.info/inful/audiohub/internal/services"
	"github.com/go-co-op/gocron/v2"
)

// statePublisher is the slice of the coordinator the scheduler drives.
type statePublisher interface {
	Republish()
}

// Scheduler republishes the current audio state at a fixed interval so
// consumers that subscribed after the last change still learn it.
type Scheduler struct {
	scheduler gocron.Scheduler
	publisher statePublisher
	interval  time.Duration
}

// NewScheduler creates the periodic republish scheduler.
func NewScheduler(publisher statePublisher, interval time.Duration) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, ferrors.DaemonError("failed to create scheduler").
			WithCause(err).
			Build()
	}
	return &Scheduler{scheduler: s, publisher: publisher, interval: interval}, nil
}

// Name implements services.ManagedService.
func (s *Scheduler) Name() string { return "scheduler" }

// Dependencies implements services.ManagedService.
func (s *Scheduler) Dependencies() []string { return []string{"event-pump"} }

// Health implements services.ManagedService.
func (s *Scheduler) Health() services.HealthStatus { return services.Healthy() }

// Start implements services.ManagedService.
func (s *Scheduler) Start(_ context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.republish),
		gocron.WithName("state-republish"),
	)
	if err != nil {
		return ferrors.DaemonError("failed to schedule state republish").
			WithCause(err).
			Build()
	}

	s.scheduler.Start()
	slog.Info("Scheduler started", "republish_interval", s.interval)
	return nil
}

// Stop implements services.ManagedService.
func (s *Scheduler) Stop(_ context.Context) error {
	return s.scheduler.Shutdown()
}

func (s *Scheduler) republish() {
	slog.Debug("Republishing current state")
	s.publisher.Republish()
}
