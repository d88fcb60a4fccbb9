// Package engine runs the per-actor search: it evolves a program for every
// actor found in the input scenarios, simplifies the winner and records its
// error levels and trajectory in the output payload.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"helixpi/internal/evo"
	"helixpi/internal/fitness"
	"helixpi/internal/model"
	"helixpi/internal/rng"
	"helixpi/internal/scenario"
	"helixpi/internal/tumbler"
)

const (
	PathSimple   = "simple"
	PathCompound = "compound"
	// PhaseAll labels the final search scored against every scenario.
	PhaseAll = "_all"
)

var (
	ErrNoActors         = errors.New("engine: no actor has recorded frames")
	ErrMissingActorSpec = errors.New("engine: scenario actor has no actor spec")
)

type Config struct {
	// Search holds the population parameters shared by every phase. Its
	// Fitness, Keys, Actor, Phase and Seed fields are set per phase.
	Search evo.MonitorConfig
	Logger *slog.Logger
}

func DefaultConfig() Config {
	return Config{Search: evo.DefaultMonitorConfig(nil)}
}

type Result struct {
	Output      model.Output
	Actors      []model.ActorSummary
	Diagnostics []model.GenerationDiagnostics
	Lineage     []model.LineageRecord
	// Finalists are the best entities of each actor's last phase, best first.
	Finalists map[string][]evo.ScoredEntity
}

// Run evolves a program for every actor. Actors are processed in name order
// and each search phase draws its seed from one stream rooted at seed, so the
// result is a pure function of (input, seed, cfg).
func Run(ctx context.Context, input model.Input, seed int64, cfg Config) (Result, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Search.Logger == nil {
		cfg.Search.Logger = logger
	}

	if err := checkActorSpecs(input); err != nil {
		return Result{}, err
	}
	input.Scenarios = scenario.DensifyAll(input.Scenarios)
	actors := actorsOf(input.Scenarios)
	if len(actors) == 0 {
		return Result{}, ErrNoActors
	}

	r := rng.New(seed)
	result := Result{
		Output:    model.NewOutput(),
		Finalists: make(map[string][]evo.ScoredEntity, len(actors)),
	}
	for _, actor := range actors {
		run, err := runActor(ctx, input, actor, r, cfg)
		if err != nil {
			return Result{}, fmt.Errorf("actor %s: %w", actor, err)
		}
		result.Output.Entities[actor] = model.Tree{Root: run.entity}
		result.Output.ErrorLevels[actor] = run.score.ErrorLevels
		result.Output.Positions[actor] = run.score.Positions
		result.Actors = append(result.Actors, run.summary)
		result.Diagnostics = append(result.Diagnostics, run.diagnostics...)
		result.Lineage = append(result.Lineage, run.lineage...)
		result.Finalists[actor] = run.finalists

		logger.Info("actor evolved",
			"actor", actor,
			"path", run.summary.Path,
			"converged", run.summary.Converged,
			"fitness", run.summary.BestFitness,
			"size", run.summary.FinalSize,
		)
	}
	return result, nil
}

type actorRun struct {
	entity      model.Entity
	score       fitness.Result
	summary     model.ActorSummary
	diagnostics []model.GenerationDiagnostics
	lineage     []model.LineageRecord
	finalists   []evo.ScoredEntity
}

func runActor(ctx context.Context, input model.Input, actor string, r *rng.Source, cfg Config) (actorRun, error) {
	relevant := make([]model.Scenario, 0, len(input.Scenarios))
	for _, s := range input.Scenarios {
		if len(s.Actors[actor]) > 0 {
			relevant = append(relevant, s)
		}
	}
	previous := previousEntities(input.PreviousResults, actor)

	var out actorRun
	out.summary = model.ActorSummary{Actor: actor, Scenarios: len(relevant)}

	var (
		final evo.RunResult
		fn    fitness.Func
		err   error
	)
	if len(relevant) == 1 {
		out.summary.Path = PathSimple
		fn = fitness.NewChecker(input, relevant, actor)
		final, err = evolve(ctx, cfg, input.Keys, actor, relevant[0].ID, fn, r.Seed(), previous)
		if err != nil {
			return actorRun{}, err
		}
		out.diagnostics = final.Diagnostics
		out.lineage = final.Lineage
		out.summary.Generations = final.Generations
	} else {
		out.summary.Path = PathCompound
		seeds := append([]model.Entity(nil), previous...)
		for _, s := range relevant {
			partial, err := evolve(ctx, cfg, input.Keys, actor, s.ID, fitness.NewChecker(input, []model.Scenario{s}, actor), r.Seed(), previous)
			if err != nil {
				return actorRun{}, err
			}
			out.diagnostics = append(out.diagnostics, partial.Diagnostics...)
			out.lineage = append(out.lineage, partial.Lineage...)
			out.summary.Generations += partial.Generations
			for _, item := range partial.Best {
				seeds = append(seeds, item.Entity)
			}
		}
		fn = fitness.NewChecker(input, relevant, actor)
		final, err = evolve(ctx, cfg, input.Keys, actor, PhaseAll, fn, r.Seed(), seeds)
		if err != nil {
			return actorRun{}, err
		}
		out.diagnostics = append(out.diagnostics, final.Diagnostics...)
		out.lineage = append(out.lineage, final.Lineage...)
		out.summary.Generations += final.Generations
	}

	out.entity = tumbler.Tumble(final.Best[0].Entity, fn)
	out.score = fn(out.entity)
	out.finalists = final.Best
	out.summary.Converged = final.Converged
	out.summary.BestFitness = out.score.Fitness
	out.summary.FinalSize = model.Size(out.entity)
	return out, nil
}

func evolve(ctx context.Context, cfg Config, keys []string, actor, phase string, fn fitness.Func, seed int64, seeds []model.Entity) (evo.RunResult, error) {
	search := cfg.Search
	search.Fitness = fn
	search.Keys = keys
	search.Actor = actor
	search.Phase = phase
	search.Seed = seed

	monitor, err := evo.NewPopulationMonitor(search)
	if err != nil {
		return evo.RunResult{}, err
	}
	result, err := monitor.Run(ctx, seeds)
	if err != nil {
		return evo.RunResult{}, fmt.Errorf("phase %s: %w", phase, err)
	}
	search.Logger.Debug("phase finished",
		"actor", actor,
		"phase", phase,
		"generations", result.Generations,
		"converged", result.Converged,
		"best", result.Best[0].Fitness,
	)
	return result, nil
}

func previousEntities(previous *model.Output, actor string) []model.Entity {
	if previous == nil {
		return nil
	}
	tree, ok := previous.Entities[actor]
	if !ok || tree.Root == nil {
		return nil
	}
	return []model.Entity{tree.Root}
}

// checkActorSpecs requires a size for every actor any scenario mentions,
// replayed or evolved.
func checkActorSpecs(input model.Input) error {
	for _, s := range input.Scenarios {
		names := make([]string, 0, len(s.Actors))
		for actor := range s.Actors {
			names = append(names, actor)
		}
		sort.Strings(names)
		for _, actor := range names {
			if _, ok := input.Actors[actor]; !ok {
				return fmt.Errorf("%w: %q in scenario %q", ErrMissingActorSpec, actor, s.ID)
			}
		}
	}
	return nil
}

func actorsOf(scenarios []model.Scenario) []string {
	seen := map[string]struct{}{}
	for _, s := range scenarios {
		for actor, frames := range s.Actors {
			if len(frames) > 0 {
				seen[actor] = struct{}{}
			}
		}
	}
	actors := make([]string, 0, len(seen))
	for actor := range seen {
		actors = append(actors, actor)
	}
	sort.Strings(actors)
	return actors
}
