package model

import (
	"fmt"

	"helixpi/internal/vector"
)

// Kind names an entity variant. The values double as the wire "type" tag.
type Kind string

const (
	KindMove                 Kind = "move"
	KindSetVelocity          Kind = "setVelocity"
	KindMultiplyVelocity     Kind = "multiplyVelocity"
	KindNoop                 Kind = "noop"
	KindSequence             Kind = "sequence"
	KindInputConditional     Kind = "inputConditional"
	KindCollisionConditional Kind = "collisionConditional"
	KindOnCreate             Kind = "onCreate"
)

type Direction string

const (
	Up    Direction = "up"
	Right Direction = "right"
	Down  Direction = "down"
	Left  Direction = "left"
)

var Directions = []Direction{Up, Right, Down, Left}

// Unit returns the screen-space unit vector for d (y grows downwards).
func (d Direction) Unit() vector.Vector {
	switch d {
	case Up:
		return vector.New(0, -1)
	case Right:
		return vector.New(1, 0)
	case Down:
		return vector.New(0, 1)
	case Left:
		return vector.New(-1, 0)
	default:
		panic(fmt.Sprintf("model: unknown direction %q", string(d)))
	}
}

// Entity is one node of a program tree. The set of implementations is closed:
// Move, SetVelocity, MultiplyVelocity, Noop, Sequence, InputConditional,
// CollisionConditional and OnCreate.
//
// Entities are values. Tree operations never write through a Children slice
// they did not allocate, so subtrees may be shared between trees.
type Entity interface {
	EntityID() string
	Kind() Kind
	sealed()
}

type Move struct {
	ID        string
	Direction Direction
	Amount    float64
}

type SetVelocity struct {
	ID       string
	Velocity vector.Vector
}

type MultiplyVelocity struct {
	ID     string
	Scalar float64
}

type Noop struct {
	ID string
}

type Sequence struct {
	ID       string
	Children []Entity
}

// InputConditional runs Then while Key is held and Else otherwise.
type InputConditional struct {
	ID   string
	Key  string
	Then Entity
	Else Entity
}

// CollisionConditional runs Body while the actor overlaps another actor.
type CollisionConditional struct {
	ID   string
	Body Entity
}

// OnCreate runs Body on frame zero only.
type OnCreate struct {
	ID   string
	Body Entity
}

func (e Move) EntityID() string                 { return e.ID }
func (e SetVelocity) EntityID() string          { return e.ID }
func (e MultiplyVelocity) EntityID() string     { return e.ID }
func (e Noop) EntityID() string                 { return e.ID }
func (e Sequence) EntityID() string             { return e.ID }
func (e InputConditional) EntityID() string     { return e.ID }
func (e CollisionConditional) EntityID() string { return e.ID }
func (e OnCreate) EntityID() string             { return e.ID }

func (Move) Kind() Kind                 { return KindMove }
func (SetVelocity) Kind() Kind          { return KindSetVelocity }
func (MultiplyVelocity) Kind() Kind     { return KindMultiplyVelocity }
func (Noop) Kind() Kind                 { return KindNoop }
func (Sequence) Kind() Kind             { return KindSequence }
func (InputConditional) Kind() Kind     { return KindInputConditional }
func (CollisionConditional) Kind() Kind { return KindCollisionConditional }
func (OnCreate) Kind() Kind             { return KindOnCreate }

func (Move) sealed()                 {}
func (SetVelocity) sealed()          {}
func (MultiplyVelocity) sealed()     {}
func (Noop) sealed()                 {}
func (Sequence) sealed()             {}
func (InputConditional) sealed()     {}
func (CollisionConditional) sealed() {}
func (OnCreate) sealed()             {}

// WithID returns a copy of e carrying id.
func WithID(e Entity, id string) Entity {
	switch n := e.(type) {
	case Move:
		n.ID = id
		return n
	case SetVelocity:
		n.ID = id
		return n
	case MultiplyVelocity:
		n.ID = id
		return n
	case Noop:
		n.ID = id
		return n
	case Sequence:
		n.ID = id
		return n
	case InputConditional:
		n.ID = id
		return n
	case CollisionConditional:
		n.ID = id
		return n
	case OnCreate:
		n.ID = id
		return n
	default:
		panic(fmt.Sprintf("model: unknown entity type %T", e))
	}
}
