package source

import (
	"context"
	"log/slog"
	"sync"

	ferrors "git.home.luguber.info/inful/audiohub/internal/foundation/errors"
	"git.home.luguber.info/inful/audiohub/internal/process"
)

// Radio plays a web-radio stream by spawning the player binary with the
// stream URL. A fresh supervisor is built per activation because the URL is a
// start parameter, not fixed configuration.
type Radio struct {
	playerPath string
	newProc    func(url string) *process.Supervisor

	mu   sync.Mutex
	proc *process.Supervisor
	url  string
}

// NewRadio creates the web-radio source around the given player binary.
func NewRadio(playerPath string) *Radio {
	r := &Radio{playerPath: playerPath}
	r.newProc = func(url string) *process.Supervisor {
		return process.NewSupervisor(r.playerPath, []string{"--no-video", url}, process.Options{})
	}
	return r
}

// Name implements Source.
func (r *Radio) Name() string { return "radio" }

// Start spawns the player for params["url"]. Starting again with the same URL
// while running is a no-op; a different URL restarts onto the new stream.
func (r *Radio) Start(ctx context.Context, params map[string]any) error {
	url, _ := params["url"].(string)
	if url == "" {
		return ferrors.ValidationError("radio source requires a url parameter").Build()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.proc != nil && r.proc.IsRunning() {
		if r.url == url {
			slog.Debug("Radio source already playing", "url", url)
			return nil
		}
		if err := r.proc.Stop(ctx); err != nil {
			return err
		}
	}

	proc := r.newProc(url)
	if err := proc.Start(ctx); err != nil {
		return err
	}
	r.proc = proc
	r.url = url
	return nil
}

// Stop implements Source.
func (r *Radio) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.proc == nil {
		return nil
	}
	if err := r.proc.Stop(ctx); err != nil {
		return err
	}
	r.proc = nil
	r.url = ""
	return nil
}

// Status implements Source.
func (r *Radio) Status() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := map[string]any{
		"player":  r.playerPath,
		"running": r.proc != nil && r.proc.IsRunning(),
	}
	if r.url != "" {
		status["url"] = r.url
	}
	return status
}
