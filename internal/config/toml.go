// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Judge   JudgeConfig   `toml:"judge"`
	Analyze AnalyzeConfig `toml:"analyze"`
	Serve   ServeConfig   `toml:"serve"`
}

// JudgeConfig maps the movement standard.
type JudgeConfig struct {
	Movement  *string  `toml:"movement"`
	Depth     *float64 `toml:"depth"`
	Extension *float64 `toml:"extension"`
}

// AnalyzeConfig maps pose stream settings.
type AnalyzeConfig struct {
	Side          *string  `toml:"side"`
	MinVisibility *float64 `toml:"min-visibility"`
	FPS           *float64 `toml:"fps"`
	MaxDuration   *float64 `toml:"max-duration"`
}

// ServeConfig maps live judging server settings.
type ServeConfig struct {
	Addr *string `toml:"addr"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
