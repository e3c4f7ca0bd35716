package mover

import "math/rand"

// Source supplies uniform pseudo-random floats for perturbation draws.
// Injecting it keeps every random draw in the mover replayable in tests.
type Source interface {
	// Uniform returns a pseudo-random float64 in [lo, hi).
	Uniform(lo, hi float64) float64
}

type mathSource struct {
	rng *rand.Rand
}

// NewSource returns a Source backed by math/rand with the given seed.
func NewSource(seed int64) Source {
	return &mathSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *mathSource) Uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}
