package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"helixpi/internal/evo"
	"helixpi/internal/fitness"
	"helixpi/internal/model"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	e := cfg.Evolution
	if e.PopulationSize != evo.DefaultPopulationSize || e.Generations != evo.DefaultGenerations {
		t.Fatalf("unexpected population defaults: %+v", e)
	}
	if e.ConvergenceThreshold != evo.DefaultConvergenceThreshold || e.AllTimeBestCap != evo.DefaultAllTimeBestCap {
		t.Fatalf("unexpected convergence defaults: %+v", e)
	}
	if e.FinalistCount != evo.DefaultFinalistCount || e.EliteCount != evo.DefaultEliteCount {
		t.Fatalf("unexpected breeding defaults: %+v", e)
	}
	if e.BreedSampleSize != evo.DefaultBreedSampleSize || e.MutationRate != evo.DefaultMutationRate {
		t.Fatalf("unexpected operator defaults: %+v", e)
	}
	if cfg.Store.Kind != "memory" || cfg.Log.Format != "text" || cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected ambient defaults: %+v", cfg)
	}
}

func TestLoadOverridesOnlyPresentFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helixpi.yaml")
	data := []byte("evolution:\n  generations: 3\n  workers: 4\nlog:\n  level: debug\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Evolution.Generations != 3 || cfg.Evolution.Workers != 4 {
		t.Fatalf("expected overrides, got %+v", cfg.Evolution)
	}
	if cfg.Evolution.PopulationSize != evo.DefaultPopulationSize {
		t.Fatalf("expected default population to survive, got %d", cfg.Evolution.PopulationSize)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Fatalf("unexpected log config: %+v", cfg.Log)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected missing file error")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("evolution: [1, 2"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "population", mutate: func(c *Config) { c.Evolution.PopulationSize = 0 }, want: "population_size"},
		{name: "generations", mutate: func(c *Config) { c.Evolution.Generations = -1 }, want: "generations"},
		{name: "finalists", mutate: func(c *Config) { c.Evolution.FinalistCount = 0 }, want: "finalist_count"},
		{name: "sample", mutate: func(c *Config) { c.Evolution.BreedSampleSize = 0 }, want: "breed_sample_size"},
		{name: "rate", mutate: func(c *Config) { c.Evolution.MutationRate = 1.5 }, want: "mutation_rate"},
		{name: "workers", mutate: func(c *Config) { c.Evolution.Workers = 0 }, want: "workers"},
		{name: "store", mutate: func(c *Config) { c.Store.Kind = "postgres" }, want: "store.kind"},
		{name: "db path", mutate: func(c *Config) { c.Store.Kind = "sqlite"; c.Store.DBPath = " " }, want: "db_path"},
		{name: "format", mutate: func(c *Config) { c.Log.Format = "xml" }, want: "log.format"},
		{name: "level", mutate: func(c *Config) { c.Log.Level = "loud" }, want: "log.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestEvolutionMonitorConfig(t *testing.T) {
	fn := func(model.Entity) fitness.Result { return fitness.Result{} }
	e := Default().Evolution
	e.PopulationSize = 12
	e.BreedSampleSize = 3
	e.Workers = 2

	mc := e.MonitorConfig(fn)
	if mc.Fitness == nil || mc.PopulationSize != 12 || mc.Workers != 2 {
		t.Fatalf("unexpected monitor config: %+v", mc)
	}
	sel, ok := mc.Selector.(evo.TournamentSelector)
	if !ok || sel.SampleSize != 3 {
		t.Fatalf("unexpected selector: %#v", mc.Selector)
	}
	if _, err := evo.NewPopulationMonitor(mc); err != nil {
		t.Fatalf("monitor config rejected: %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := LogConfig{Format: "json", Level: "warn"}.NewLogger(&buf)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "k", 1)
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("unexpected log output: %q", out)
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Evolution.Generations = 42
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load written yaml: %v", err)
	}
	if *loaded != *cfg {
		t.Fatalf("round trip mismatch: got=%+v want=%+v", loaded, cfg)
	}
}
