// Package config loads the daemon configuration from layered TOML files,
// applies defaults and validates the result.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the daemon configuration.
type Config struct {
	LibrarySources []string `koanf:"library_sources"` // directories scanned into the catalog
	DBPath         string   `koanf:"db_path"`         // catalog location, empty for the XDG default

	Playback PlaybackConfig `koanf:"playback"`
	Log      LogConfig      `koanf:"log"`
}

// PlaybackConfig holds coordinator and pipeline tunables.
type PlaybackConfig struct {
	// Gapless pre-rolls the next track shortly before the current one ends.
	Gapless           *bool   `koanf:"gapless" default:"true"`
	PrerollLeadSec    int     `koanf:"preroll_lead_sec" default:"5" validate:"gte=1,lte=60"`
	TeardownTimeoutMs int     `koanf:"teardown_timeout_ms" default:"250" validate:"gte=50,lte=5000"`
	PositionTickMs    int     `koanf:"position_tick_ms" default:"500" validate:"gte=100,lte=5000"`
	Volume            float64 `koanf:"volume" validate:"gte=0,lte=1"` // initial cubic level, overridden by saved state
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `koanf:"level" default:"info" validate:"oneof=debug info warn error"`
	Output string `koanf:"output" default:"stderr"` // "stdout", "stderr", or a file path
}

// GaplessEnabled reports whether gapless transitions are on.
func (p PlaybackConfig) GaplessEnabled() bool {
	return p.Gapless == nil || *p.Gapless
}

// PrerollLead returns the gapless preroll lead time.
func (p PlaybackConfig) PrerollLead() time.Duration {
	return time.Duration(p.PrerollLeadSec) * time.Second
}

// TeardownTimeout returns the bounded session teardown timeout.
func (p PlaybackConfig) TeardownTimeout() time.Duration {
	return time.Duration(p.TeardownTimeoutMs) * time.Millisecond
}

// PositionTick returns the pipeline position report interval.
func (p PlaybackConfig) PositionTick() time.Duration {
	return time.Duration(p.PositionTickMs) * time.Millisecond
}

// Load reads the configuration. With an explicit path only that file is
// read (and must exist); otherwise ~/.config/coda/config.toml and then
// ./config.toml are layered, last one winning. Missing layered files are
// fine: the defaults carry a usable configuration.
func Load(explicitPath string) (*Config, error) {
	k := koanf.New(".")

	if explicitPath != "" {
		if err := k.Load(file.Provider(explicitPath), toml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "load config %s", explicitPath)
		}
	} else {
		for _, path := range defaultConfigPaths() {
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, errors.Wrapf(err, "load config %s", path)
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.Wrap(err, "apply config defaults")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	for i, src := range cfg.LibrarySources {
		cfg.LibrarySources[i] = expandPath(src)
	}
	cfg.DBPath = expandPath(cfg.DBPath)
	return cfg, nil
}

func defaultConfigPaths() []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "coda", "config.toml"))
	}
	// ./config.toml wins over the home config.
	return append(paths, "config.toml")
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
