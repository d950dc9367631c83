package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"git.home.luguber.info/inful/audiohub/internal/config"
	ferrors "git.home.luguber.info/inful/audiohub/internal/foundation/errors"
	"git.home.luguber.info/inful/audiohub/internal/services"
	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher monitors the configuration file and applies safe changes
// without a restart. Source topology changes still require one; the apply
// callback decides what it accepts.
type ConfigWatcher struct {
	configPath   string
	apply        func(*config.Config) error
	watcher      *fsnotify.Watcher
	mu           sync.Mutex
	stopChan     chan struct{}
	reloadChan   chan struct{}
	debounceTime time.Duration
	workers      WorkerGroup
}

// NewConfigWatcher creates a watcher for the given config file.
func NewConfigWatcher(configPath string, apply func(*config.Config) error) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.DaemonError("failed to create file watcher").
			WithCause(err).
			Build()
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		watcher.Close()
		return nil, ferrors.DaemonError("failed to resolve config path").
			WithCause(err).
			WithContext("path", configPath).
			Build()
	}

	return &ConfigWatcher{
		configPath:   absPath,
		apply:        apply,
		watcher:      watcher,
		stopChan:     make(chan struct{}),
		reloadChan:   make(chan struct{}, 1),
		debounceTime: 2 * time.Second,
	}, nil
}

// Name implements services.ManagedService.
func (cw *ConfigWatcher) Name() string { return "config-watcher" }

// Dependencies implements services.ManagedService.
func (cw *ConfigWatcher) Dependencies() []string { return nil }

// Health implements services.ManagedService.
func (cw *ConfigWatcher) Health() services.HealthStatus { return services.Healthy() }

// Start implements services.ManagedService. Watching the directory rather
// than the file survives editors that replace the file on save.
func (cw *ConfigWatcher) Start(_ context.Context) error {
	configDir := filepath.Dir(cw.configPath)
	if err := cw.watcher.Add(configDir); err != nil {
		return ferrors.DaemonError("failed to watch config directory").
			WithCause(err).
			WithContext("dir", configDir).
			Build()
	}

	slog.Info("Configuration watcher started", "config_path", cw.configPath)
	cw.workers.Go(cw.watchLoop)
	cw.workers.Go(cw.reloadLoop)
	return nil
}

// Stop implements services.ManagedService.
func (cw *ConfigWatcher) Stop(ctx context.Context) error {
	cw.mu.Lock()
	select {
	case <-cw.stopChan:
	default:
		close(cw.stopChan)
	}
	cw.mu.Unlock()

	if err := cw.watcher.Close(); err != nil {
		slog.Error("Error closing file watcher", "error", err)
	}
	return cw.workers.StopAndWait(ctx)
}

func (cw *ConfigWatcher) watchLoop() {
	configFile := filepath.Base(cw.configPath)

	for {
		select {
		case <-cw.stopChan:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}

			switch {
			case event.Op&fsnotify.Write != 0,
				event.Op&fsnotify.Create != 0,
				event.Op&fsnotify.Rename != 0:
				slog.Debug("Config file change detected", "op", event.Op.String())
				cw.triggerReload()
			case event.Op&fsnotify.Remove != 0:
				slog.Warn("Config file removed", "file", event.Name)
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", "error", err)
		}
	}
}

// reloadLoop debounces rapid change bursts into a single reload.
func (cw *ConfigWatcher) reloadLoop() {
	var reloadTimer *time.Timer
	defer func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}()

	for {
		select {
		case <-cw.stopChan:
			return
		case <-cw.reloadChan:
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(cw.debounceTime, func() {
				if err := cw.performReload(); err != nil {
					slog.Error("Failed to reload configuration", "error", err)
				}
			})
		}
	}
}

func (cw *ConfigWatcher) triggerReload() {
	select {
	case cw.reloadChan <- struct{}{}:
	default:
	}
}

func (cw *ConfigWatcher) performReload() error {
	slog.Info("Reloading configuration", "config_path", cw.configPath)

	newCfg, err := config.Load(cw.configPath)
	if err != nil {
		return err
	}
	if err := cw.apply(newCfg); err != nil {
		return err
	}

	slog.Info("Configuration reloaded")
	return nil
}
