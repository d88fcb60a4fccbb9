package evo

import (
	"helixpi/internal/model"
	"helixpi/internal/rng"
)

const (
	CrossoverCat  = "cat"
	CrossoverSwap = "swap"
)

var (
	crossoverStrategies = []string{CrossoverCat, CrossoverSwap}
	crossoverWeights    = []float64{1, 2}
)

// Breed produces two offspring from mum and dad, choosing subtree swap twice
// as often as concatenation. It also reports the strategy used.
func Breed(r *rng.Source, mum, dad model.Entity) (model.Entity, model.Entity, string) {
	strategy := rng.Weighted(r, crossoverStrategies, crossoverWeights)
	if strategy == CrossoverCat {
		a, b := Cat(r, mum, dad)
		return a, b, strategy
	}
	a, b, _ := Swap(r, mum, dad)
	return a, b, strategy
}

// Cat wraps the parents into two sequences, one per order. Each offspring
// runs both parents' behavior.
func Cat(r *rng.Source, a, b model.Entity) (model.Entity, model.Entity) {
	ab := model.Sequence{ID: r.ID(), Children: []model.Entity{a, b}}
	ba := model.Sequence{ID: r.ID(), Children: []model.Entity{b, a}}
	return model.EnsureUniqueIDs(ab), model.EnsureUniqueIDs(ba)
}

// Swap exchanges one uniformly chosen node of a with one of b. When a chosen
// node cannot be located the parents are returned unchanged and ok is false.
func Swap(r *rng.Source, a, b model.Entity) (model.Entity, model.Entity, bool) {
	i := r.Intn(model.Size(a))
	j := r.Intn(model.Size(b))

	fromA, okA := model.At(a, i)
	fromB, okB := model.At(b, j)
	if !okA || !okB {
		return a, b, false
	}

	childA, okA := model.ReplaceAt(a, fromB, i)
	childB, okB := model.ReplaceAt(b, fromA, j)
	if !okA || !okB {
		return a, b, false
	}
	return model.EnsureUniqueIDs(childA), model.EnsureUniqueIDs(childB), true
}
