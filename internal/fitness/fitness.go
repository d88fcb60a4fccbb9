// Package fitness scores entity trees by how closely their simulated
// trajectory follows a recorded one. Lower is better.
package fitness

import (
	"helixpi/internal/model"
	"helixpi/internal/sim"
	"helixpi/internal/vector"
)

const (
	// ErrorScale weights mean positional error against tree size.
	ErrorScale = 1000.0
	// TotalKey holds the mean error across scenarios in ErrorLevels.
	TotalKey = "_total"
)

type Result struct {
	Fitness     float64
	ErrorLevels map[string]float64
	Positions   map[string][]vector.Vector
}

// Func scores a single entity.
type Func func(entity model.Entity) Result

// Evaluate simulates entity as actor for as many frames as the actor has
// recorded and returns (mean distance * ErrorScale) + node count.
func Evaluate(input model.Input, entity model.Entity, scenario model.Scenario, actor string) Result {
	meanError, positions := trajectoryError(input, entity, scenario, actor)
	return Result{
		Fitness:     meanError*ErrorScale + float64(model.Size(entity)),
		ErrorLevels: map[string]float64{scenario.ID: meanError, TotalKey: meanError},
		Positions:   map[string][]vector.Vector{scenario.ID: positions},
	}
}

func trajectoryError(input model.Input, entity model.Entity, scenario model.Scenario, actor string) (float64, []vector.Vector) {
	expected := scenario.Actors[actor]
	frames := len(expected)
	positions := make([]vector.Vector, 0, frames)
	total := 0.0
	sim.Simulate(actor, input, scenario, map[string]model.Entity{actor: entity}, frames, func(frame int, states map[string]model.ActorState) {
		actual := states[actor].Position
		positions = append(positions, actual)
		total += vector.Distance(expected[frame].Position, actual)
	})
	if frames == 0 {
		return 0, positions
	}
	return total / float64(frames), positions
}

// NewChecker returns a Func scoring against every scenario in which actor
// appears. Fitness is the mean of the per-scenario fitness values, so the
// size penalty is counted once.
func NewChecker(input model.Input, scenarios []model.Scenario, actor string) Func {
	relevant := make([]model.Scenario, 0, len(scenarios))
	for _, s := range scenarios {
		if s.HasActor(actor) {
			relevant = append(relevant, s)
		}
	}

	return func(entity model.Entity) Result {
		result := Result{
			ErrorLevels: make(map[string]float64, len(relevant)+1),
			Positions:   make(map[string][]vector.Vector, len(relevant)),
		}
		size := float64(model.Size(entity))
		if len(relevant) == 0 {
			result.Fitness = size
			result.ErrorLevels[TotalKey] = 0
			return result
		}

		errorSum := 0.0
		for _, s := range relevant {
			meanError, positions := trajectoryError(input, entity, s, actor)
			result.ErrorLevels[s.ID] = meanError
			result.Positions[s.ID] = positions
			errorSum += meanError
		}
		meanError := errorSum / float64(len(relevant))
		result.ErrorLevels[TotalKey] = meanError
		result.Fitness = meanError*ErrorScale + size
		return result
	}
}
