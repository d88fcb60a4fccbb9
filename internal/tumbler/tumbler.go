// Package tumbler simplifies evolved entity trees. Dead code elimination is
// greedy and takes the first improving edit in preorder, so it can miss
// simplifications that only pay off in combination.
package tumbler

import (
	"helixpi/internal/fitness"
	"helixpi/internal/model"
)

// Tumble runs dead code elimination when fn is non-nil and then normalizes.
func Tumble(tree model.Entity, fn fitness.Func) model.Entity {
	if fn != nil {
		tree = EliminateDeadCode(tree, fn)
	}
	return Normalize(tree)
}

// EliminateDeadCode repeatedly replaces single nodes with noops. The first
// replacement that strictly lowers fitness is kept and the scan restarts at
// the root. It stops once no replacement improves. Every accepted edit
// removes a non-noop node, so the loop terminates.
func EliminateDeadCode(tree model.Entity, fn fitness.Func) model.Entity {
	best := fn(tree).Fitness
	for {
		next, score, ok := firstImprovement(tree, best, fn)
		if !ok {
			return tree
		}
		tree, best = next, score
	}
}

func firstImprovement(tree model.Entity, best float64, fn fitness.Func) (model.Entity, float64, bool) {
	size := model.Size(tree)
	for i := 0; i < size; i++ {
		node, ok := model.At(tree, i)
		if !ok {
			break
		}
		if _, isNoop := node.(model.Noop); isNoop {
			continue
		}
		candidate, ok := model.ReplaceAt(tree, model.Noop{ID: node.EntityID()}, i)
		if !ok {
			continue
		}
		if score := fn(candidate).Fitness; score < best {
			return candidate, score, true
		}
	}
	return tree, best, false
}

// Normalize makes one bottom-up pass: a branch whose children are all noops
// becomes a noop, nested sequences are flattened into their parent and noop
// children are dropped from sequences. The result is a fixed point.
func Normalize(tree model.Entity) model.Entity {
	return model.Map(tree, normalizeNode)
}

func normalizeNode(node model.Entity) model.Entity {
	if model.IsLeaf(node) {
		return node
	}
	children := model.Children(node)
	if allNoop(children) {
		return model.Noop{ID: node.EntityID()}
	}

	seq, ok := node.(model.Sequence)
	if !ok {
		return node
	}
	flat := make([]model.Entity, 0, len(children))
	for _, child := range children {
		if nested, ok := child.(model.Sequence); ok {
			flat = append(flat, nested.Children...)
			continue
		}
		flat = append(flat, child)
	}
	kept := flat[:0]
	for _, child := range flat {
		if _, isNoop := child.(model.Noop); !isNoop {
			kept = append(kept, child)
		}
	}
	seq.Children = kept
	return seq
}

func allNoop(children []model.Entity) bool {
	for _, child := range children {
		if _, ok := child.(model.Noop); !ok {
			return false
		}
	}
	return true
}
