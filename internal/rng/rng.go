// Package rng supplies the random numbers behind animation jitter.
package rng

import "math/rand/v2"

// Source yields uniformly distributed integers in [0, n).
// IntN is never called with n <= 0.
type Source interface {
	IntN(n int) int
}

// New returns a seeded PCG source. A zero seed picks a random one.
func New(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Jitter returns base shifted by a random amount in [-spread/2, spread/2).
func Jitter(src Source, base, spread int) int {
	if spread <= 0 {
		return base
	}
	return base + src.IntN(spread) - spread/2
}

// Sequence replays a fixed list of values, modulo n, cycling when exhausted.
// Tests use it to make animation paths deterministic.
type Sequence struct {
	Values []int
	next   int
}

// IntN implements Source.
func (s *Sequence) IntN(n int) int {
	if len(s.Values) == 0 {
		return 0
	}
	v := s.Values[s.next%len(s.Values)]
	s.next++
	if v < 0 {
		v = -v
	}
	return v % n
}
