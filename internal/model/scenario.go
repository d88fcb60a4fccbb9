package model

import "helixpi/internal/vector"

type InputEventType string

const (
	KeyDown InputEventType = "keydown"
	KeyUp   InputEventType = "keyup"
)

type InputEvent struct {
	Type InputEventType `json:"type"`
	Key  string         `json:"key"`
}

// Frame is one recorded actor position.
type Frame struct {
	Frame    int           `json:"frame"`
	Position vector.Vector `json:"position"`
}

// Scenario is one recorded example: sparse input events keyed by frame
// number and a recorded trajectory per participating actor.
type Scenario struct {
	ID     string               `json:"id"`
	Name   string               `json:"name"`
	Input  map[int][]InputEvent `json:"input"`
	Actors map[string][]Frame   `json:"actors"`
}

func (s Scenario) HasActor(actor string) bool {
	_, ok := s.Actors[actor]
	return ok
}

type ActorSpec struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Color  string  `json:"color,omitempty"`
	Name   string  `json:"name,omitempty"`
}

// ActorState is the per-frame state of one actor inside one simulation run.
type ActorState struct {
	Position  vector.Vector `json:"position"`
	Velocity  vector.Vector `json:"velocity"`
	Width     float64       `json:"width"`
	Height    float64       `json:"height"`
	Colliding bool          `json:"colliding"`
}

// Input is the complete payload handed to the engine.
type Input struct {
	Keys            []string             `json:"keys"`
	Scenarios       []Scenario           `json:"scenarios"`
	Actors          map[string]ActorSpec `json:"actors"`
	PreviousResults *Output              `json:"previousResults,omitempty"`
}

// Output is the complete payload produced by the engine.
type Output struct {
	Entities    map[string]Tree                       `json:"entities"`
	ErrorLevels map[string]map[string]float64         `json:"errorLevels"`
	Positions   map[string]map[string][]vector.Vector `json:"positions"`
}

func NewOutput() Output {
	return Output{
		Entities:    map[string]Tree{},
		ErrorLevels: map[string]map[string]float64{},
		Positions:   map[string]map[string][]vector.Vector{},
	}
}
