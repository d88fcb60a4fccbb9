// Package rng provides the seeded random source shared by generation,
// breeding and mutation. Every draw is a pure function of the seed, so a
// whole search can be replayed from one integer.
//
// A Source is not safe for concurrent use. Code that recurses or fans out
// derives a fresh Source from a Seed() draw instead of sharing one stream.
package rng

import (
	"fmt"
	"math/rand"
	"strconv"
)

type Source struct {
	r *rand.Rand
}

func New(seed int64) *Source {
	return &Source{r: rand.New(rand.NewSource(seed))}
}

// Derive returns a new Source seeded from a draw on s.
func (s *Source) Derive() *Source {
	return New(s.Seed())
}

// Seed draws a value suitable for seeding a child Source.
func (s *Source) Seed() int64 {
	return s.r.Int63()
}

func (s *Source) Intn(n int) int {
	return s.r.Intn(n)
}

// Between returns a uniform integer in [lo, hi].
func (s *Source) Between(lo, hi int) int {
	if hi < lo {
		panic(fmt.Sprintf("rng: empty range [%d, %d]", lo, hi))
	}
	return lo + s.r.Intn(hi-lo+1)
}

func (s *Source) Float64() float64 {
	return s.r.Float64()
}

// Bool reports true with probability p.
func (s *Source) Bool(p float64) bool {
	return s.r.Float64() < p
}

// ID returns a short identifier drawn from the stream.
func (s *Source) ID() string {
	return strconv.FormatUint(s.r.Uint64(), 36)
}

func Pick[T any](s *Source, items []T) T {
	return items[s.Intn(len(items))]
}

// Weighted picks one item with probability proportional to its weight.
// Non-positive weights are never picked unless every weight is non-positive,
// in which case the pick is uniform.
func Weighted[T any](s *Source, items []T, weights []float64) T {
	if len(items) != len(weights) {
		panic(fmt.Sprintf("rng: %d items but %d weights", len(items), len(weights)))
	}
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return Pick(s, items)
	}
	pick := s.Float64() * total
	acc := 0.0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		if pick < acc {
			return items[i]
		}
	}
	for i := len(items) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return items[i]
		}
	}
	return items[len(items)-1]
}

// Sample draws n distinct positions from items without replacement. When n
// exceeds len(items) every item is returned in shuffled order.
func Sample[T any](s *Source, items []T, n int) []T {
	pool := append([]T(nil), items...)
	if n > len(pool) {
		n = len(pool)
	}
	for i := 0; i < n; i++ {
		j := i + s.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}
