package evo

import (
	"fmt"

	"helixpi/internal/genotype"
	"helixpi/internal/model"
	"helixpi/internal/rng"
)

const (
	// DefaultMutationRate is the per-node chance of a mutation.
	DefaultMutationRate = 0.02
	// ConvertToNoopProbability short-circuits a triggered mutation into
	// replacing the node with a noop.
	ConvertToNoopProbability = 0.5
	// generatedSubtreeDepth keeps inserted subtrees shallow and free of onCreate.
	generatedSubtreeDepth = 1
)

// Mutation describes one edit to one node. Implementations are
// NewEntityMutation, RemovalMutation, SwitchMutation, ReplaceMutation,
// MoveMutation, SetVelocityMutation, MultiplyVelocityMutation, NoopMutation
// and ConvertToNoopMutation.
type Mutation interface {
	MutationID() string
	mutation()
}

// NewEntityMutation inserts NewEntity into a sequence before SpliceIndex.
type NewEntityMutation struct {
	ID          string
	NewEntity   model.Entity
	SpliceIndex int
}

// RemovalMutation drops the child at RemoveIndex from a sequence.
type RemovalMutation struct {
	ID          string
	RemoveIndex int
}

// SwitchMutation exchanges two children of a branch.
type SwitchMutation struct {
	ID        string
	FromIndex int
	ToIndex   int
}

// ReplaceMutation substitutes NewEntity for the child at ReplaceIndex.
type ReplaceMutation struct {
	ID           string
	ReplaceIndex int
	NewEntity    model.Entity
}

type MoveMutation struct {
	ID     string
	Change float64
}

type SetVelocityMutation struct {
	ID        string
	Attribute string
	Change    float64
}

type MultiplyVelocityMutation struct {
	ID     string
	Amount float64
}

// NoopMutation grows a noop into NewEntity.
type NoopMutation struct {
	ID        string
	NewEntity model.Entity
}

type ConvertToNoopMutation struct {
	ID string
}

func (m NewEntityMutation) MutationID() string        { return m.ID }
func (m RemovalMutation) MutationID() string          { return m.ID }
func (m SwitchMutation) MutationID() string           { return m.ID }
func (m ReplaceMutation) MutationID() string          { return m.ID }
func (m MoveMutation) MutationID() string             { return m.ID }
func (m SetVelocityMutation) MutationID() string      { return m.ID }
func (m MultiplyVelocityMutation) MutationID() string { return m.ID }
func (m NoopMutation) MutationID() string             { return m.ID }
func (m ConvertToNoopMutation) MutationID() string    { return m.ID }

func (NewEntityMutation) mutation()        {}
func (RemovalMutation) mutation()          {}
func (SwitchMutation) mutation()           {}
func (ReplaceMutation) mutation()          {}
func (MoveMutation) mutation()             {}
func (SetVelocityMutation) mutation()      {}
func (MultiplyVelocityMutation) mutation() {}
func (NoopMutation) mutation()             {}
func (ConvertToNoopMutation) mutation()    {}

// ChooseMutation picks an edit suited to node's type. Index fields are drawn
// within the node's current child count.
func ChooseMutation(seed int64, node model.Entity, keys []string) Mutation {
	r := rng.New(seed)
	id := r.ID()
	if r.Bool(ConvertToNoopProbability) {
		return ConvertToNoopMutation{ID: id}
	}

	subtree := func() model.Entity {
		return genotype.Generate(r.Seed(), keys, generatedSubtreeDepth)
	}

	switch n := node.(type) {
	case model.Sequence:
		count := len(n.Children)
		options := []string{"insert"}
		if count > 0 {
			options = append(options, "replace")
		}
		if count > 1 {
			options = append(options, "remove", "switch")
		}
		switch rng.Pick(r, options) {
		case "replace":
			idx := r.Intn(count)
			return ReplaceMutation{ID: id, ReplaceIndex: idx, NewEntity: subtree()}
		case "remove":
			return RemovalMutation{ID: id, RemoveIndex: r.Intn(count)}
		case "switch":
			from := r.Intn(count)
			return SwitchMutation{ID: id, FromIndex: from, ToIndex: r.Intn(count)}
		default:
			splice := r.Between(0, count)
			return NewEntityMutation{ID: id, SpliceIndex: splice, NewEntity: subtree()}
		}
	case model.InputConditional:
		if r.Bool(0.5) {
			return SwitchMutation{ID: id, FromIndex: 0, ToIndex: 1}
		}
		idx := r.Intn(2)
		return ReplaceMutation{ID: id, ReplaceIndex: idx, NewEntity: subtree()}
	case model.CollisionConditional, model.OnCreate:
		return ReplaceMutation{ID: id, ReplaceIndex: 0, NewEntity: subtree()}
	case model.Move:
		return MoveMutation{ID: id, Change: nudge(r)}
	case model.SetVelocity:
		attribute := rng.Pick(r, []string{"x", "y"})
		return SetVelocityMutation{ID: id, Attribute: attribute, Change: nudge(r)}
	case model.MultiplyVelocity:
		return MultiplyVelocityMutation{ID: id, Amount: float64(r.Between(-5, 5)) / 10}
	case model.Noop:
		return NoopMutation{ID: id, NewEntity: subtree()}
	default:
		panic(fmt.Sprintf("evo: cannot choose mutation for entity type %T", node))
	}
}

func nudge(r *rng.Source) float64 {
	return float64(r.Between(-10, 10)) / 10
}

// MutatedID encodes lineage: the new id names the old id and the mutation.
func MutatedID(oldID, mutationID string) string {
	return "(" + oldID + "%" + mutationID + ")"
}

// ApplyMutation returns the edited copy of node. Applying a mutation to a
// node type it was not chosen for is a structural defect and panics.
func ApplyMutation(node model.Entity, m Mutation) model.Entity {
	id := MutatedID(node.EntityID(), m.MutationID())

	switch mut := m.(type) {
	case ConvertToNoopMutation:
		return model.Noop{ID: id}
	case NoopMutation:
		if _, ok := node.(model.Noop); !ok {
			break
		}
		return model.WithID(mut.NewEntity, id)
	case MoveMutation:
		n, ok := node.(model.Move)
		if !ok {
			break
		}
		n.ID = id
		n.Amount += mut.Change
		return n
	case SetVelocityMutation:
		n, ok := node.(model.SetVelocity)
		if !ok {
			break
		}
		n.ID = id
		switch mut.Attribute {
		case "x":
			n.Velocity.X += mut.Change
		case "y":
			n.Velocity.Y += mut.Change
		default:
			panic(fmt.Sprintf("evo: unknown velocity attribute %q", mut.Attribute))
		}
		return n
	case MultiplyVelocityMutation:
		n, ok := node.(model.MultiplyVelocity)
		if !ok {
			break
		}
		n.ID = id
		n.Scalar += mut.Amount
		return n
	case NewEntityMutation:
		n, ok := node.(model.Sequence)
		if !ok {
			break
		}
		splice := clamp(mut.SpliceIndex, 0, len(n.Children))
		children := make([]model.Entity, 0, len(n.Children)+1)
		children = append(children, n.Children[:splice]...)
		children = append(children, mut.NewEntity)
		children = append(children, n.Children[splice:]...)
		return model.Sequence{ID: id, Children: children}
	case RemovalMutation:
		n, ok := node.(model.Sequence)
		if !ok {
			break
		}
		children := model.Children(n)
		if mut.RemoveIndex >= 0 && mut.RemoveIndex < len(children) {
			children = append(children[:mut.RemoveIndex], children[mut.RemoveIndex+1:]...)
		}
		return model.Sequence{ID: id, Children: children}
	case SwitchMutation:
		if model.IsLeaf(node) {
			break
		}
		children := model.Children(node)
		if inRange(mut.FromIndex, len(children)) && inRange(mut.ToIndex, len(children)) {
			children[mut.FromIndex], children[mut.ToIndex] = children[mut.ToIndex], children[mut.FromIndex]
		}
		return model.WithID(model.WithChildren(node, children), id)
	case ReplaceMutation:
		if model.IsLeaf(node) {
			break
		}
		children := model.Children(node)
		if inRange(mut.ReplaceIndex, len(children)) {
			children[mut.ReplaceIndex] = mut.NewEntity
		}
		return model.WithID(model.WithChildren(node, children), id)
	default:
		panic(fmt.Sprintf("evo: unknown mutation type %T", m))
	}
	panic(fmt.Sprintf("evo: mutation %T cannot apply to %s", m, node.Kind()))
}

// Mutate gives every node of tree an independent chance of mutating. The
// tree is rebuilt bottom-up, so a node sees its already mutated children.
func Mutate(r *rng.Source, tree model.Entity, keys []string, rate float64) model.Entity {
	mutated := false
	out := model.Map(tree, func(node model.Entity) model.Entity {
		if !r.Bool(rate) {
			return node
		}
		mutated = true
		return ApplyMutation(node, ChooseMutation(r.Seed(), node, keys))
	})
	if !mutated {
		return out
	}
	return model.EnsureUniqueIDs(out)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func inRange(idx, n int) bool {
	return idx >= 0 && idx < n
}
