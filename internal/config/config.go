package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DBPath       string          `toml:"db_path"`
	ScenarioPath string          `toml:"scenario_path"`
	Optimizer    OptimizerConfig `toml:"optimizer"`
	Path         string          `toml:"-"`
}

type OptimizerConfig struct {
	PopulationSize int     `toml:"population_size"`
	Generations    int     `toml:"generations"`
	MutationRate   float64 `toml:"mutation_rate"`
	EliteCount     int     `toml:"elite_count"`
	TournamentSize int     `toml:"tournament_size"`
	StallLimit     int     `toml:"stall_limit"`
	Workers        int     `toml:"workers"`
	Seed           int64   `toml:"seed"`
}

func Load(path string) (Config, error) {
	resolved := path
	if strings.HasPrefix(resolved, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed := strings.TrimPrefix(resolved, "~")
		trimmed = strings.TrimPrefix(trimmed, "\\")
		trimmed = strings.TrimPrefix(trimmed, "/")
		resolved = filepath.Join(home, trimmed)
	}
	resolved = filepath.Clean(resolved)

	bytes, err := os.ReadFile(resolved)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", resolved, err)
	}

	var cfg Config
	if _, err := toml.Decode(string(bytes), &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config file: %w", err)
	}
	cfg.Path = resolved
	return cfg, nil
}
