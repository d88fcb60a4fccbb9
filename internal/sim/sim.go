// Package sim interprets entity trees frame by frame.
//
// Simulation is deterministic: it reads no clock and draws no random numbers,
// so identical (tree, scenario, frame count) inputs always produce identical
// states.
package sim

import (
	"fmt"
	"sort"

	"helixpi/internal/model"
	"helixpi/internal/vector"
)

// FrameFunc observes the states as they were at the start of frame, before
// any actor is updated. The map must be treated as read-only.
type FrameFunc func(frame int, states map[string]model.ActorState)

// Simulate runs frames frames of scenario. Only active executes its tree;
// every other actor is replayed from its recorded (already densified) trace.
// It returns the states after the last frame.
func Simulate(active string, input model.Input, scenario model.Scenario, trees map[string]model.Entity, frames int, onFrame FrameFunc) map[string]model.ActorState {
	actors := make([]string, 0, len(scenario.Actors))
	for id := range scenario.Actors {
		actors = append(actors, id)
	}
	sort.Strings(actors)

	states := make(map[string]model.ActorState, len(actors))
	for _, id := range actors {
		spec := input.Actors[id]
		state := model.ActorState{Width: spec.Width, Height: spec.Height}
		if trace := scenario.Actors[id]; len(trace) > 0 {
			state.Position = trace[0].Position
		}
		states[id] = state
	}

	tree := trees[active]
	held := make(map[string]bool, len(input.Keys))
	for frame := 0; frame < frames; frame++ {
		for _, event := range scenario.Input[frame] {
			switch event.Type {
			case model.KeyDown:
				held[event.Key] = true
			case model.KeyUp:
				held[event.Key] = false
			}
		}

		if onFrame != nil {
			onFrame(frame, states)
		}

		for _, id := range actors {
			if id == active {
				continue
			}
			trace := scenario.Actors[id]
			if len(trace) == 0 {
				continue
			}
			idx := frame
			if idx >= len(trace) {
				idx = len(trace) - 1
			}
			state := states[id]
			state.Position = trace[idx].Position
			states[id] = state
		}

		if tree != nil {
			if state, ok := states[active]; ok {
				states[active] = ExecuteCode(active, state, tree, frame, held, states, 0)
			}
		}
	}
	return states
}

// ExecuteCode evaluates node against state and returns the new state.
// Velocity is integrated into position once, at depth zero, before the tree
// runs; setVelocity and multiplyVelocity therefore only move the actor on the
// following frame.
func ExecuteCode(actor string, state model.ActorState, node model.Entity, frame int, input map[string]bool, all map[string]model.ActorState, depth int) model.ActorState {
	if depth == 0 {
		state.Position = state.Position.Add(state.Velocity)
	}

	switch n := node.(type) {
	case model.Move:
		state.Position = state.Position.Add(n.Direction.Unit().Multiply(n.Amount))
		return state
	case model.SetVelocity:
		state.Velocity = n.Velocity
		return state
	case model.MultiplyVelocity:
		state.Velocity = state.Velocity.Multiply(n.Scalar)
		return state
	case model.Noop:
		return state
	case model.Sequence:
		for _, child := range n.Children {
			state = ExecuteCode(actor, state, child, frame, input, all, depth+1)
		}
		return state
	case model.InputConditional:
		if input[n.Key] {
			return ExecuteCode(actor, state, n.Then, frame, input, all, depth+1)
		}
		return ExecuteCode(actor, state, n.Else, frame, input, all, depth+1)
	case model.CollisionConditional:
		state.Colliding = colliding(actor, state, all)
		if state.Colliding {
			return ExecuteCode(actor, state, n.Body, frame, input, all, depth+1)
		}
		return state
	case model.OnCreate:
		if frame == 0 {
			return ExecuteCode(actor, state, n.Body, frame, input, all, depth+1)
		}
		return state
	default:
		panic(fmt.Sprintf("sim: unknown entity type %T", node))
	}
}

type box struct {
	min, max vector.Vector
}

func boxOf(state model.ActorState) box {
	return box{
		min: state.Position,
		max: state.Position.Add(vector.New(state.Width, state.Height)),
	}
}

func (a box) overlaps(b box) bool {
	return a.min.X < b.max.X && a.max.X > b.min.X &&
		a.min.Y < b.max.Y && a.max.Y > b.min.Y
}

func colliding(actor string, state model.ActorState, all map[string]model.ActorState) bool {
	self := boxOf(state)
	for id, other := range all {
		if id == actor {
			continue
		}
		if self.overlaps(boxOf(other)) {
			return true
		}
	}
	return false
}
