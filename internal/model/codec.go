package model

import (
	"encoding/json"
	"errors"
	"fmt"

	"helixpi/internal/vector"
)

var ErrUnknownEntityType = errors.New("unknown entity type")

type wireEntity struct {
	Type      Kind           `json:"type"`
	ID        string         `json:"id"`
	Direction Direction      `json:"direction,omitempty"`
	Amount    *float64       `json:"amount,omitempty"`
	Velocity  *vector.Vector `json:"velocity,omitempty"`
	Scalar    *float64       `json:"scalar,omitempty"`
	Key       string         `json:"key,omitempty"`
	Children  []wireEntity   `json:"children,omitempty"`
}

// Tree wraps a root entity so that it can sit inside JSON documents.
type Tree struct {
	Root Entity
}

func (t Tree) MarshalJSON() ([]byte, error) {
	if t.Root == nil {
		return []byte("null"), nil
	}
	return json.Marshal(toWire(t.Root))
}

func (t *Tree) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Root = nil
		return nil
	}
	var w wireEntity
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	root, err := fromWire(w)
	if err != nil {
		return err
	}
	t.Root = root
	return nil
}

func EncodeEntity(e Entity) ([]byte, error) {
	return json.Marshal(Tree{Root: e})
}

func DecodeEntity(data []byte) (Entity, error) {
	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	if t.Root == nil {
		return nil, errors.New("empty entity")
	}
	return t.Root, nil
}

func toWire(e Entity) wireEntity {
	w := wireEntity{Type: e.Kind(), ID: e.EntityID()}
	switch n := e.(type) {
	case Move:
		amount := n.Amount
		w.Direction = n.Direction
		w.Amount = &amount
	case SetVelocity:
		velocity := n.Velocity
		w.Velocity = &velocity
	case MultiplyVelocity:
		scalar := n.Scalar
		w.Scalar = &scalar
	case InputConditional:
		w.Key = n.Key
	}
	for _, child := range Children(e) {
		w.Children = append(w.Children, toWire(child))
	}
	return w
}

func fromWire(w wireEntity) (Entity, error) {
	children := make([]Entity, 0, len(w.Children))
	for _, cw := range w.Children {
		child, err := fromWire(cw)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	arity := func(want int) error {
		if len(children) != want {
			return fmt.Errorf("entity %s: %s requires %d children, got %d", w.ID, w.Type, want, len(children))
		}
		return nil
	}
	leaf := func() error {
		if len(children) != 0 {
			return fmt.Errorf("entity %s: %s cannot have children", w.ID, w.Type)
		}
		return nil
	}

	switch w.Type {
	case KindMove:
		if err := leaf(); err != nil {
			return nil, err
		}
		switch w.Direction {
		case Up, Right, Down, Left:
		default:
			return nil, fmt.Errorf("entity %s: invalid direction %q", w.ID, w.Direction)
		}
		return Move{ID: w.ID, Direction: w.Direction, Amount: deref(w.Amount)}, nil
	case KindSetVelocity:
		if err := leaf(); err != nil {
			return nil, err
		}
		var velocity vector.Vector
		if w.Velocity != nil {
			velocity = *w.Velocity
		}
		return SetVelocity{ID: w.ID, Velocity: velocity}, nil
	case KindMultiplyVelocity:
		if err := leaf(); err != nil {
			return nil, err
		}
		return MultiplyVelocity{ID: w.ID, Scalar: deref(w.Scalar)}, nil
	case KindNoop:
		if err := leaf(); err != nil {
			return nil, err
		}
		return Noop{ID: w.ID}, nil
	case KindSequence:
		return Sequence{ID: w.ID, Children: children}, nil
	case KindInputConditional:
		if err := arity(2); err != nil {
			return nil, err
		}
		return InputConditional{ID: w.ID, Key: w.Key, Then: children[0], Else: children[1]}, nil
	case KindCollisionConditional:
		if err := arity(1); err != nil {
			return nil, err
		}
		return CollisionConditional{ID: w.ID, Body: children[0]}, nil
	case KindOnCreate:
		if err := arity(1); err != nil {
			return nil, err
		}
		return OnCreate{ID: w.ID, Body: children[0]}, nil
	default:
		return nil, fmt.Errorf("entity %s: %w: %q", w.ID, ErrUnknownEntityType, w.Type)
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
