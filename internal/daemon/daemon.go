// Package daemon wires the hub together: configuration, sources, coordinator,
// event bridges, metrics, and the managed-service lifecycle around them.
package daemon

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/audiohub/internal/config"
	"git.home.luguber.info/inful/audiohub/internal/coordinator"
	"git.home.luguber.info/inful/audiohub/internal/device"
	"git.home.luguber.info/inful/audiohub/internal/events"
	"git.home.luguber.info/inful/audiohub/internal/metrics"
	"git.home.luguber.info/inful/audiohub/internal/mixer"
	"git.home.luguber.info/inful/audiohub/internal/natspub"
	"git.home.luguber.info/inful/audiohub/internal/privileged"
	"git.home.luguber.info/inful/audiohub/internal/process"
	"git.home.luguber.info/inful/audiohub/internal/service"
	"git.home.luguber.info/inful/audiohub/internal/services"
	"git.home.luguber.info/inful/audiohub/internal/source"
	prom "github.com/prometheus/client_golang/prometheus"
)

// Daemon is the composed hub process.
type Daemon struct {
	cfg        *config.Config
	configPath string

	bus          *events.Bus
	registry     *source.Registry
	devices      *device.Registry
	coord        *coordinator.Coordinator
	orchestrator *services.Orchestrator
	recorder     metrics.Recorder
}

// New builds the full object graph from configuration. Nothing is started
// until Run.
func New(cfg *config.Config, configPath string) (*Daemon, error) {
	bus := events.NewBus()
	devices := device.NewRegistry()

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	var promReg *prom.Registry
	if cfg.Metrics.Enabled {
		promReg = prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(promReg, cfg.EnabledSources())
	}

	runner := privileged.NewObservedRunner(privileged.NewExecRunner(), func(d time.Duration) {
		recorder.PrivilegedCommand(d)
	})
	svc := service.NewSupervisor(runner, service.Options{
		DeviceUnitTemplate: cfg.Sources.Bluetooth.DeviceUnitTemplate,
		PlaybackExec:       cfg.Sources.Bluetooth.PlaybackExec,
	})
	mix := mixer.NewAlsaMixer(runner, "")

	registry := source.NewRegistry()
	coord := coordinator.New(bus, registry).
		WithMixer(mix, cfg.Mixer.Device).
		WithRecorder(recorder).
		WithInitialVolume(cfg.Mixer.InitialVolume)

	d := &Daemon{
		cfg:          cfg,
		configPath:   configPath,
		bus:          bus,
		registry:     registry,
		devices:      devices,
		coord:        coord,
		orchestrator: services.NewOrchestrator(),
		recorder:     recorder,
	}

	if err := d.registerSources(svc, mix); err != nil {
		return nil, err
	}
	if err := d.registerComponents(promReg); err != nil {
		return nil, err
	}
	return d, nil
}

// registerSources builds the enabled backends.
func (d *Daemon) registerSources(svc *service.Supervisor, mix mixer.Mixer) error {
	cfg := d.cfg.Sources

	if cfg.Spotify.Enabled {
		proc := process.NewSupervisor(cfg.Spotify.Executable, cfg.Spotify.Args, process.Options{})
		sp := source.NewSpotify(proc, d.bus, cfg.Spotify.FeedURL).
			WithFeedReconnectHook(func() { d.recorder.FeedReconnect("spotify") })
		if res := d.registry.Register(sp); res.IsErr() {
			return res.Error()
		}
	}

	if cfg.Bluetooth.Enabled {
		bt := source.NewBluetooth(svc, d.devices, mix, d.bus, cfg.Bluetooth.Units, d.cfg.Mixer.Device)
		if res := d.registry.Register(bt); res.IsErr() {
			return res.Error()
		}
	}

	if cfg.Multiroom.Enabled {
		if res := d.registry.Register(source.NewMultiroom(svc, cfg.Multiroom.Unit)); res.IsErr() {
			return res.Error()
		}
	}

	if cfg.Radio.Enabled {
		if res := d.registry.Register(source.NewRadio(cfg.Radio.Player)); res.IsErr() {
			return res.Error()
		}
	}

	slog.Info("Sources registered", "sources", d.registry.Names())
	return nil
}

// registerComponents assembles the managed-service graph.
func (d *Daemon) registerComponents(promReg *prom.Registry) error {
	if res := d.orchestrator.Register(NewEventPump(d.bus, d.coord)); res.IsErr() {
		return res.Error()
	}

	scheduler, err := NewScheduler(d.coord, d.cfg.Daemon.StateRepublishInterval)
	if err != nil {
		return err
	}
	if res := d.orchestrator.Register(scheduler); res.IsErr() {
		return res.Error()
	}

	if d.cfg.NATS.URL != "" {
		bridge := NewNATSBridge(d.bus, natspub.Options{
			URL:           d.cfg.NATS.URL,
			SubjectPrefix: d.cfg.NATS.SubjectPrefix,
		})
		if res := d.orchestrator.Register(bridge); res.IsErr() {
			return res.Error()
		}
	}

	if d.cfg.Metrics.Enabled && promReg != nil {
		if res := d.orchestrator.Register(NewMetricsServer(d.cfg.Metrics.Listen, promReg)); res.IsErr() {
			return res.Error()
		}
	}

	if d.configPath != "" {
		watcher, err := NewConfigWatcher(d.configPath, d.applyConfig)
		if err != nil {
			return err
		}
		if res := d.orchestrator.Register(watcher); res.IsErr() {
			return res.Error()
		}
	}

	return nil
}

// Coordinator exposes the state coordinator for callers embedding the daemon.
func (d *Daemon) Coordinator() *coordinator.Coordinator { return d.coord }

// Bus exposes the in-process event bus.
func (d *Daemon) Bus() *events.Bus { return d.bus }

// Devices exposes the peer device registry.
func (d *Daemon) Devices() *device.Registry { return d.devices }

// Run starts everything and blocks until ctx is canceled, then shuts down in
// reverse order: components, active source, bus.
func (d *Daemon) Run(ctx context.Context) error {
	slog.Info("Starting audio hub daemon")

	if err := d.orchestrator.StartAll(ctx); err != nil {
		return err
	}

	d.coord.Republish()
	<-ctx.Done()
	slog.Info("Shutdown requested")

	stopCtx, cancel := context.WithTimeout(context.Background(), d.cfg.Daemon.ShutdownTimeout)
	defer cancel()

	// Deactivate the current source before tearing down the bridges so the
	// final "none" state still reaches external consumers.
	if _, err := d.coord.RequestTransition(stopCtx, coordinator.StateNone, nil); err != nil {
		slog.Error("Failed to deactivate source during shutdown", "error", err)
	}

	err := d.orchestrator.StopAll(stopCtx)
	d.bus.Close()

	slog.Info("Daemon stopped")
	return err
}

// applyConfig applies a reloaded configuration. Only runtime-safe settings
// are honored; topology changes require a restart.
func (d *Daemon) applyConfig(newCfg *config.Config) error {
	if newCfg.Logging.Level != d.cfg.Logging.Level {
		SetLogLevel(newCfg.Logging.Level)
		slog.Info("Log level changed", "level", newCfg.Logging.Level)
	}

	if newCfg.Mixer.InitialVolume != d.cfg.Mixer.InitialVolume {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.coord.UpdateVolume(ctx, newCfg.Mixer.InitialVolume); err != nil {
			slog.Error("Failed to apply reloaded volume", "error", err)
		}
	}

	d.cfg.Logging = newCfg.Logging
	d.cfg.Mixer.InitialVolume = newCfg.Mixer.InitialVolume
	return nil
}
