package config

import (
	"net/url"

	ferrors "git.home.luguber.info/inful/audiohub/internal/foundation/errors"
)

var validLevels = map[string]struct{}{
	"debug": {}, "info": {}, "warn": {}, "error": {},
}

var validFormats = map[string]struct{}{
	"text": {}, "json": {},
}

// Validate checks the configuration for errors a running daemon could not
// recover from. Defaults must already be applied.
func (c *Config) Validate() error {
	if _, ok := validLevels[c.Logging.Level]; !ok {
		return ferrors.ConfigError("invalid log level").
			WithContext("level", c.Logging.Level).
			Build()
	}
	if _, ok := validFormats[c.Logging.Format]; !ok {
		return ferrors.ConfigError("invalid log format").
			WithContext("format", c.Logging.Format).
			Build()
	}

	if c.Mixer.InitialVolume < 0 || c.Mixer.InitialVolume > 100 {
		return ferrors.ConfigError("initial volume must be between 0 and 100").
			WithContext("initial_volume", c.Mixer.InitialVolume).
			Build()
	}

	if c.Sources.Spotify.Enabled {
		if c.Sources.Spotify.Executable == "" {
			return ferrors.ConfigError("spotify source requires an executable").Build()
		}
		if c.Sources.Spotify.FeedURL != "" {
			u, err := url.Parse(c.Sources.Spotify.FeedURL)
			if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
				return ferrors.ConfigError("spotify feed_url must be a ws:// or wss:// URL").
					WithContext("feed_url", c.Sources.Spotify.FeedURL).
					Build()
			}
		}
	}

	if c.Sources.Radio.Enabled && c.Sources.Radio.Player == "" {
		return ferrors.ConfigError("radio source requires a player executable").Build()
	}

	if len(c.EnabledSources()) == 0 {
		return ferrors.ConfigError("at least one source must be enabled").Build()
	}

	return nil
}
