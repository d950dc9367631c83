package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/audiohub/internal/config"
	"git.home.luguber.info/inful/audiohub/internal/daemon"
	"github.com/alecthomas/kong"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"audiohub.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve struct {
	} `cmd:"" help:"Run the audio hub daemon"`

	Check struct {
	} `cmd:"" help:"Validate the configuration and exit"`
}

func main() {
	ctx := kong.Parse(&CLI)

	switch ctx.Command() {
	case "serve":
		if err := runServe(CLI.Config, CLI.Verbose); err != nil {
			slog.Error("Daemon failed", "error", err)
			os.Exit(1)
		}
	case "check":
		if err := runCheck(CLI.Config); err != nil {
			slog.Error("Configuration invalid", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Unknown command", "command", ctx.Command())
		os.Exit(1)
	}
}

func runServe(configPath string, verbose bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	daemon.SetupLogging(cfg.Logging)

	d, err := daemon.New(cfg, configPath)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return d.Run(runCtx)
}

func runCheck(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	summary := map[string]any{
		"sources":      cfg.EnabledSources(),
		"mixer_device": cfg.Mixer.Device,
		"nats_enabled": cfg.NATS.URL != "",
		"metrics":      cfg.Metrics.Enabled,
		"log_level":    cfg.Logging.Level,
	}
	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))
	return nil
}
