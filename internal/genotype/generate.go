// Package genotype builds random entity trees.
package genotype

import (
	"helixpi/internal/model"
	"helixpi/internal/rng"
	"helixpi/internal/vector"
)

const (
	// LeafProbability is the chance of a leaf at depths where branches are allowed.
	LeafProbability = 0.5
	// MaxBranchDepth is the deepest level at which a branch may be generated.
	MaxBranchDepth = 1
	// AxisAlignedVelocityProbability biases setVelocity towards one axis.
	AxisAlignedVelocityProbability = 0.5
)

var leafKinds = []model.Kind{
	model.KindMove,
	model.KindSetVelocity,
	model.KindMultiplyVelocity,
	model.KindNoop,
}

// Generate returns a random tree rooted at depth. The tree is a pure function
// of (seed, keys, depth): each child subtree is generated from its own seed
// drawn from this level's source.
func Generate(seed int64, keys []string, depth int) model.Entity {
	r := rng.New(seed)
	if depth > MaxBranchDepth || r.Bool(LeafProbability) {
		return generateLeaf(r)
	}
	return generateBranch(r, keys, depth)
}

func generateLeaf(r *rng.Source) model.Entity {
	kind := rng.Pick(r, leafKinds)
	id := r.ID()
	switch kind {
	case model.KindMove:
		return model.Move{ID: id, Direction: rng.Pick(r, model.Directions), Amount: RandomAmount(r)}
	case model.KindSetVelocity:
		return model.SetVelocity{ID: id, Velocity: RandomVelocity(r)}
	case model.KindMultiplyVelocity:
		return model.MultiplyVelocity{ID: id, Scalar: RandomScalar(r)}
	default:
		return model.Noop{ID: id}
	}
}

func generateBranch(r *rng.Source, keys []string, depth int) model.Entity {
	kinds := []model.Kind{model.KindSequence}
	if len(keys) > 0 {
		kinds = append(kinds, model.KindInputConditional)
	}
	kinds = append(kinds, model.KindCollisionConditional)
	if depth == 0 {
		kinds = append(kinds, model.KindOnCreate)
	}

	kind := rng.Pick(r, kinds)
	id := r.ID()
	child := func() model.Entity {
		return Generate(r.Seed(), keys, depth+1)
	}

	switch kind {
	case model.KindSequence:
		children := make([]model.Entity, r.Between(2, 3))
		for i := range children {
			children[i] = child()
		}
		return model.Sequence{ID: id, Children: children}
	case model.KindInputConditional:
		key := rng.Pick(r, keys)
		then := child()
		return model.InputConditional{ID: id, Key: key, Then: then, Else: child()}
	case model.KindCollisionConditional:
		return model.CollisionConditional{ID: id, Body: child()}
	default:
		return model.OnCreate{ID: id, Body: child()}
	}
}

// RandomAmount draws a move distance from {0.5, 1, ..., 5}.
func RandomAmount(r *rng.Source) float64 {
	return float64(r.Between(1, 10)) / 2
}

// RandomComponent draws a velocity component from {-5, -4.5, ..., 5}.
func RandomComponent(r *rng.Source) float64 {
	return float64(r.Between(-10, 10)) / 2
}

// RandomVelocity draws a velocity, half the time along a single axis.
func RandomVelocity(r *rng.Source) vector.Vector {
	if r.Bool(AxisAlignedVelocityProbability) {
		c := RandomComponent(r)
		if r.Bool(0.5) {
			return vector.New(c, 0)
		}
		return vector.New(0, c)
	}
	x := RandomComponent(r)
	return vector.New(x, RandomComponent(r))
}

// RandomScalar draws a velocity multiplier from {0, 0.1, ..., 2}.
func RandomScalar(r *rng.Source) float64 {
	return float64(r.Between(0, 20)) / 10
}
