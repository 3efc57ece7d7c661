package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration. Every field has a working default so
// the binary runs with no file present; environment variables override the
// file.
type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`

	// OptimizeRatePerMin caps POST /v1/optimize launches per minute.
	OptimizeRatePerMin int `yaml:"optimize_rate_per_min"`

	Solver SolverConfig `yaml:"solver"`
}

// SolverConfig overrides the solver defaults service-wide.
type SolverConfig struct {
	MaxTimeSec    int `yaml:"max_time_sec"`
	MaxIterations int `yaml:"max_iterations"`
}

func defaults() Config {
	return Config{
		Port:               "8080",
		OptimizeRatePerMin: 30,
	}
}

// Load reads the YAML file at path when it exists, then applies environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	return cfg, nil
}
