// Package vector implements the 2D point arithmetic used by the simulator.
package vector

import "math"

type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func New(x, y float64) Vector {
	return Vector{X: x, Y: y}
}

func (v Vector) Add(o Vector) Vector {
	return Vector{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vector) Subtract(o Vector) Vector {
	return Vector{X: v.X - o.X, Y: v.Y - o.Y}
}

func (v Vector) Multiply(scalar float64) Vector {
	return Vector{X: v.X * scalar, Y: v.Y * scalar}
}

func (v Vector) Length() float64 {
	return math.Hypot(v.X, v.Y)
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Vector) float64 {
	return a.Subtract(b).Length()
}
