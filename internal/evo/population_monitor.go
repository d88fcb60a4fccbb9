package evo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/stat"

	"helixpi/internal/fitness"
	"helixpi/internal/genotype"
	"helixpi/internal/model"
	"helixpi/internal/rng"
	"helixpi/internal/vector"
)

const (
	DefaultPopulationSize       = 256
	DefaultGenerations          = 10
	DefaultConvergenceThreshold = 20.0
	DefaultAllTimeBestCap       = 100
	DefaultFinalistCount        = 32
	DefaultEliteCount           = 8
	DefaultResultCount          = 10
)

type ScoredEntity struct {
	Entity      model.Entity
	Fitness     float64
	ErrorLevels map[string]float64
	Positions   map[string][]vector.Vector
}

type RunResult struct {
	// Best holds at most ResultCount entities, best first.
	Best             []ScoredEntity
	Converged        bool
	Generations      int
	BestByGeneration []float64
	Diagnostics      []model.GenerationDiagnostics
	Lineage          []model.LineageRecord
}

type MonitorConfig struct {
	Fitness  fitness.Func
	Selector Selector
	Logger   *slog.Logger
	// Keys are the input keys generated conditionals may test.
	Keys []string
	// Actor and Phase label diagnostics and log lines.
	Actor string
	Phase string

	PopulationSize       int
	Generations          int
	ConvergenceThreshold float64
	AllTimeBestCap       int
	FinalistCount        int
	EliteCount           int
	// ChildrenPerGeneration defaults to half the population size.
	ChildrenPerGeneration int
	MutationRate          float64
	ResultCount           int
	Workers               int
	Seed                  int64
}

// DefaultMonitorConfig returns the stock search parameters for fn.
func DefaultMonitorConfig(fn fitness.Func) MonitorConfig {
	return MonitorConfig{
		Fitness:              fn,
		PopulationSize:       DefaultPopulationSize,
		Generations:          DefaultGenerations,
		ConvergenceThreshold: DefaultConvergenceThreshold,
		AllTimeBestCap:       DefaultAllTimeBestCap,
		FinalistCount:        DefaultFinalistCount,
		EliteCount:           DefaultEliteCount,
		MutationRate:         DefaultMutationRate,
		ResultCount:          DefaultResultCount,
		Workers:              1,
	}
}

type PopulationMonitor struct {
	cfg MonitorConfig
	rng *rng.Source
}

func NewPopulationMonitor(cfg MonitorConfig) (*PopulationMonitor, error) {
	if cfg.Fitness == nil {
		return nil, fmt.Errorf("fitness function is required")
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.Generations <= 0 {
		return nil, fmt.Errorf("generations must be > 0")
	}
	if cfg.AllTimeBestCap <= 0 {
		return nil, fmt.Errorf("all-time best cap must be > 0")
	}
	if cfg.FinalistCount <= 0 {
		return nil, fmt.Errorf("finalist count must be > 0")
	}
	if cfg.EliteCount < 0 {
		return nil, fmt.Errorf("elite count must be >= 0")
	}
	if cfg.ResultCount <= 0 {
		return nil, fmt.Errorf("result count must be > 0")
	}
	if cfg.MutationRate < 0 || cfg.MutationRate > 1 {
		return nil, fmt.Errorf("mutation rate must be in [0, 1]")
	}
	if cfg.ChildrenPerGeneration < 0 {
		return nil, fmt.Errorf("children per generation must be >= 0")
	}
	if cfg.ChildrenPerGeneration == 0 {
		cfg.ChildrenPerGeneration = cfg.PopulationSize / 2
		if cfg.ChildrenPerGeneration == 0 {
			cfg.ChildrenPerGeneration = 1
		}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Selector == nil {
		cfg.Selector = TournamentSelector{SampleSize: DefaultBreedSampleSize}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &PopulationMonitor{
		cfg: cfg,
		rng: rng.New(cfg.Seed),
	}, nil
}

// Run evolves a fresh random population plus seeds until the best fitness
// drops below the convergence threshold or the generation budget is spent.
// On convergence the best of the final generation is returned, otherwise
// the best ever seen.
func (m *PopulationMonitor) Run(ctx context.Context, seeds []model.Entity) (RunResult, error) {
	population := make([]model.Entity, 0, m.cfg.PopulationSize+len(seeds))
	for i := 0; i < m.cfg.PopulationSize; i++ {
		population = append(population, genotype.Generate(m.rng.Seed(), m.cfg.Keys, 0))
	}
	population = append(population, seeds...)

	result := RunResult{
		BestByGeneration: make([]float64, 0, m.cfg.Generations),
		Diagnostics:      make([]model.GenerationDiagnostics, 0, m.cfg.Generations),
	}
	var allTimeBest []ScoredEntity

	for gen := 0; gen < m.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}

		scored := m.evaluatePopulation(population)
		RankByFitness(scored)

		result.Generations = gen + 1
		result.BestByGeneration = append(result.BestByGeneration, scored[0].Fitness)
		diag := summarizeGeneration(scored, gen+1)
		diag.Actor = m.cfg.Actor
		diag.Phase = m.cfg.Phase
		result.Diagnostics = append(result.Diagnostics, diag)
		m.cfg.Logger.Debug("generation evaluated",
			"actor", m.cfg.Actor,
			"phase", m.cfg.Phase,
			"generation", gen+1,
			"best", diag.BestFitness,
			"mean", diag.MeanFitness,
			"diversity", diag.Diversity,
		)

		if scored[0].Fitness < m.cfg.ConvergenceThreshold {
			result.Converged = true
			result.Best = Top(scored, m.cfg.ResultCount)
			return result, nil
		}

		allTimeBest = MergeBest(allTimeBest, scored, m.cfg.AllTimeBestCap)
		if gen+1 == m.cfg.Generations {
			break
		}

		next, lineage, err := m.nextGeneration(scored, allTimeBest, gen)
		if err != nil {
			return RunResult{}, err
		}
		population = next
		result.Lineage = append(result.Lineage, lineage...)
	}

	result.Best = Top(allTimeBest, m.cfg.ResultCount)
	return result, nil
}

// evaluatePopulation scores every entity on the worker pool. Results are
// written by index so the outcome does not depend on worker count. A panic in
// the fitness function propagates to the caller.
func (m *PopulationMonitor) evaluatePopulation(population []model.Entity) []ScoredEntity {
	scored := make([]ScoredEntity, len(population))
	p := pool.New().WithMaxGoroutines(m.cfg.Workers)
	for i, entity := range population {
		p.Go(func() {
			res := m.cfg.Fitness(entity)
			scored[i] = ScoredEntity{
				Entity:      entity,
				Fitness:     res.Fitness,
				ErrorLevels: res.ErrorLevels,
				Positions:   res.Positions,
			}
		})
	}
	p.Wait()
	return scored
}

func (m *PopulationMonitor) nextGeneration(ranked, allTimeBest []ScoredEntity, generation int) ([]model.Entity, []model.LineageRecord, error) {
	breedingPool := append(Top(ranked, m.cfg.FinalistCount), Top(allTimeBest, m.cfg.EliteCount)...)

	next := make([]model.Entity, 0, m.cfg.ChildrenPerGeneration+1)
	lineage := make([]model.LineageRecord, 0, m.cfg.ChildrenPerGeneration+1)
	for len(next) < m.cfg.ChildrenPerGeneration {
		mum, dad, err := m.cfg.Selector.PickParents(m.rng, breedingPool)
		if err != nil {
			return nil, nil, err
		}
		a, b, op := Breed(m.rng, mum.Entity, dad.Entity)
		parents := []string{mum.Entity.EntityID(), dad.Entity.EntityID()}
		for _, child := range []model.Entity{a, b} {
			child = Mutate(m.rng, child, m.cfg.Keys, m.cfg.MutationRate)
			next = append(next, child)
			lineage = append(lineage, model.LineageRecord{
				Actor:       m.cfg.Actor,
				Phase:       m.cfg.Phase,
				EntityID:    child.EntityID(),
				ParentIDs:   parents,
				Generation:  generation + 2,
				Operation:   op,
				Fingerprint: model.Fingerprint(child),
			})
		}
	}
	return next, lineage, nil
}

func summarizeGeneration(scored []ScoredEntity, generation int) model.GenerationDiagnostics {
	if len(scored) == 0 {
		return model.GenerationDiagnostics{Generation: generation}
	}

	fitnesses := make([]float64, len(scored))
	sizes := make([]float64, len(scored))
	fingerprints := make(map[string]struct{}, len(scored))
	for i, item := range scored {
		fitnesses[i] = item.Fitness
		sizes[i] = float64(model.Size(item.Entity))
		fingerprints[model.Fingerprint(item.Entity)] = struct{}{}
	}
	mean, stddev := stat.MeanStdDev(fitnesses, nil)
	if len(scored) == 1 {
		stddev = 0
	}

	return model.GenerationDiagnostics{
		Generation:    generation,
		Population:    len(scored),
		BestFitness:   scored[0].Fitness,
		MeanFitness:   mean,
		StdDevFitness: stddev,
		MeanSize:      stat.Mean(sizes, nil),
		Diversity:     len(fingerprints),
	}
}
