package evo

import (
	"fmt"
	"sort"

	"helixpi/internal/rng"
)

// DefaultBreedSampleSize is how many candidates a tournament draws.
const DefaultBreedSampleSize = 8

// Selector chooses a breeding pair from a candidate pool.
type Selector interface {
	Name() string
	PickParents(r *rng.Source, pool []ScoredEntity) (ScoredEntity, ScoredEntity, error)
}

// TournamentSelector draws SampleSize candidates without replacement and
// keeps the two fittest. A pool of one breeds with itself.
type TournamentSelector struct {
	SampleSize int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) PickParents(r *rng.Source, pool []ScoredEntity) (ScoredEntity, ScoredEntity, error) {
	if r == nil {
		return ScoredEntity{}, ScoredEntity{}, fmt.Errorf("random source is required")
	}
	if len(pool) == 0 {
		return ScoredEntity{}, ScoredEntity{}, fmt.Errorf("breeding pool is empty")
	}

	size := s.SampleSize
	if size <= 0 {
		size = DefaultBreedSampleSize
	}
	sample := rng.Sample(r, pool, size)
	sort.SliceStable(sample, func(i, j int) bool {
		return sample[i].Fitness < sample[j].Fitness
	})
	if len(sample) == 1 {
		return sample[0], sample[0], nil
	}
	return sample[0], sample[1], nil
}

// RankByFitness orders scored entities best first. The sort is stable so
// equal fitness keeps evaluation order.
func RankByFitness(scored []ScoredEntity) {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Fitness < scored[j].Fitness
	})
}

// Top returns up to n leading entries of a ranked slice.
func Top(ranked []ScoredEntity, n int) []ScoredEntity {
	if n > len(ranked) {
		n = len(ranked)
	}
	if n < 0 {
		n = 0
	}
	out := make([]ScoredEntity, n)
	copy(out, ranked[:n])
	return out
}

// MergeBest folds a ranked generation into the all-time list and keeps the
// best limit entries.
func MergeBest(allTime, generation []ScoredEntity, limit int) []ScoredEntity {
	merged := make([]ScoredEntity, 0, len(allTime)+len(generation))
	merged = append(merged, allTime...)
	merged = append(merged, generation...)
	RankByFitness(merged)
	return Top(merged, limit)
}
