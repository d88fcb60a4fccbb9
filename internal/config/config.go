// Package config loads helixpi settings from YAML over embedded defaults.
package config

import (
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"helixpi/internal/evo"
	"helixpi/internal/fitness"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Evolution EvolutionConfig `yaml:"evolution"`
	Store     StoreConfig     `yaml:"store"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// EvolutionConfig holds the search parameters applied to every phase of
// every actor.
type EvolutionConfig struct {
	PopulationSize        int     `yaml:"population_size"`
	Generations           int     `yaml:"generations"`
	ConvergenceThreshold  float64 `yaml:"convergence_threshold"` // Stop once the best fitness drops below this
	AllTimeBestCap        int     `yaml:"all_time_best_cap"`
	FinalistCount         int     `yaml:"finalist_count"`
	EliteCount            int     `yaml:"elite_count"`
	ChildrenPerGeneration int     `yaml:"children_per_generation"` // 0 = half the population
	BreedSampleSize       int     `yaml:"breed_sample_size"`
	MutationRate          float64 `yaml:"mutation_rate"`
	ResultCount           int     `yaml:"result_count"`
	Workers               int     `yaml:"workers"`
}

type StoreConfig struct {
	Kind   string `yaml:"kind"`
	DBPath string `yaml:"db_path"`
}

type ArtifactsConfig struct {
	Dir string `yaml:"dir"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only fields present in the file are overwritten.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	e := c.Evolution
	switch {
	case e.PopulationSize <= 0:
		return fmt.Errorf("evolution.population_size must be > 0")
	case e.Generations <= 0:
		return fmt.Errorf("evolution.generations must be > 0")
	case e.AllTimeBestCap <= 0:
		return fmt.Errorf("evolution.all_time_best_cap must be > 0")
	case e.FinalistCount <= 0:
		return fmt.Errorf("evolution.finalist_count must be > 0")
	case e.EliteCount < 0:
		return fmt.Errorf("evolution.elite_count must be >= 0")
	case e.ChildrenPerGeneration < 0:
		return fmt.Errorf("evolution.children_per_generation must be >= 0")
	case e.BreedSampleSize <= 0:
		return fmt.Errorf("evolution.breed_sample_size must be > 0")
	case e.MutationRate < 0 || e.MutationRate > 1:
		return fmt.Errorf("evolution.mutation_rate must be in [0, 1]")
	case e.ResultCount <= 0:
		return fmt.Errorf("evolution.result_count must be > 0")
	case e.Workers <= 0:
		return fmt.Errorf("evolution.workers must be > 0")
	}

	switch c.Store.Kind {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("store.kind must be memory or sqlite, got %q", c.Store.Kind)
	}
	if c.Store.Kind == "sqlite" && strings.TrimSpace(c.Store.DBPath) == "" {
		return fmt.Errorf("store.db_path is required for sqlite")
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// MonitorConfig converts the evolution section into search parameters for fn.
func (e EvolutionConfig) MonitorConfig(fn fitness.Func) evo.MonitorConfig {
	cfg := evo.DefaultMonitorConfig(fn)
	cfg.Selector = evo.TournamentSelector{SampleSize: e.BreedSampleSize}
	cfg.PopulationSize = e.PopulationSize
	cfg.Generations = e.Generations
	cfg.ConvergenceThreshold = e.ConvergenceThreshold
	cfg.AllTimeBestCap = e.AllTimeBestCap
	cfg.FinalistCount = e.FinalistCount
	cfg.EliteCount = e.EliteCount
	cfg.ChildrenPerGeneration = e.ChildrenPerGeneration
	cfg.MutationRate = e.MutationRate
	cfg.ResultCount = e.ResultCount
	cfg.Workers = e.Workers
	return cfg
}

func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log.level %q is not one of debug, info, warn, error", level)
	}
}

// NewLogger builds the process logger described by the log section.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
