package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"agentsim/internal/domain"
)

type Config struct {
	Simulator    SimulatorConfig `toml:"simulator"`
	Capabilities map[string]int  `toml:"capabilities"`
	Path         string          `toml:"-"`
}

type SimulatorConfig struct {
	Addr              string  `toml:"addr"`
	DBPath            string  `toml:"db_path"`
	BaselineErrorRate float64 `toml:"baseline_error_rate"`
	RunHistoryLimit   int     `toml:"run_history_limit"`
	RefreshIntervalMS int     `toml:"refresh_interval_ms"`
}

// Default returns the built-in configuration used when no file exists.
func Default() Config {
	return Config{
		Simulator: SimulatorConfig{
			Addr:              ":8092",
			DBPath:            "data/agentsim.db",
			BaselineErrorRate: 0.1,
			RunHistoryLimit:   100,
			RefreshIntervalMS: 2000,
		},
		Capabilities: map[string]int{
			domain.CapTokensPerTask:             domain.DefaultTokensPerTask,
			domain.CapCoordinationTokensPerTask: domain.DefaultCoordinationTokensPerTask,
			domain.CapCommTokensPerMessage:      domain.DefaultCommTokensPerMessage,
			domain.CapCoordinationRounds:        domain.DefaultCoordinationRounds,
			domain.CapStrategyTokens:            domain.DefaultStrategyTokens,
			domain.CapAggregationTokens:         domain.DefaultAggregationTokens,
			domain.CapTeamCommTokens:            domain.DefaultTeamCommTokens,
		},
	}
}

// Load reads the TOML configuration at path, falling back to
// ~/.agentsim/config.toml and then to Default() when the default file is
// absent. An explicitly given path must exist.
func Load(path string) (Config, error) {
	explicit := path != ""
	resolved := path
	if resolved == "" {
		resolved = defaultConfigPath()
	}
	if strings.HasPrefix(resolved, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed := strings.TrimPrefix(resolved, "~")
		trimmed = strings.TrimPrefix(trimmed, "/")
		resolved = filepath.Join(home, trimmed)
	}
	resolved = filepath.Clean(resolved)

	raw, err := os.ReadFile(resolved)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read config file %s: %w", resolved, err)
	}

	cfg := Default()
	if _, err := toml.Decode(string(raw), &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config file: %w", err)
	}
	cfg.Path = resolved
	return cfg, nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agentsim/config.toml"
	}
	return filepath.Join(home, ".agentsim", "config.toml")
}
