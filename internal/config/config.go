package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Playback  PlaybackConfig  `koanf:"playback"`
	Narration NarrationConfig `koanf:"narration"`
	Log       LogConfig       `koanf:"log"`
}

// PlaybackConfig holds playback behavior settings.
type PlaybackConfig struct {
	AutoAdvance *bool   `koanf:"auto_advance"` // advance to next item on completion (default: true)
	Rate        float64 `koanf:"rate"`         // initial rate multiplier (default: 1.0)
}

// NarrationConfig holds article narration settings.
type NarrationConfig struct {
	Language string `koanf:"language"`  // TTS voice language code (default: "en")
	CacheDir string `koanf:"cache_dir"` // where generated/fetched audio is kept
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`  // "debug", "info", "warn", "error"
	Output string `koanf:"output"` // "stderr", "stdout", or file path
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if cfg.Narration.CacheDir != "" {
		cfg.Narration.CacheDir = expandPath(cfg.Narration.CacheDir)
	}

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/readout/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "readout", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// AutoAdvance returns the auto-advance flag with its default applied.
func (c *Config) AutoAdvance() bool {
	if c.Playback.AutoAdvance == nil {
		return true
	}
	return *c.Playback.AutoAdvance
}

// Rate returns the initial playback rate with its default applied.
func (c *Config) Rate() float64 {
	if c.Playback.Rate <= 0 {
		return 1.0
	}
	return c.Playback.Rate
}

// NarrationLanguage returns the TTS language with its default applied.
func (c *Config) NarrationLanguage() string {
	if c.Narration.Language == "" {
		return "en"
	}
	return c.Narration.Language
}

// NarrationCacheDir returns the audio cache dir, defaulting to the XDG
// cache directory.
func (c *Config) NarrationCacheDir() string {
	if c.Narration.CacheDir != "" {
		return c.Narration.CacheDir
	}
	return filepath.Join(xdg.CacheHome, "readout", "audio")
}
