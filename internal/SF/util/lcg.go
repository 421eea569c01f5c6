package util

// LCG implements a Linear Congruential Generator using Knuth MMIX parameters
// for a deterministic, reproducible pseudo-random number stream.
//
// Parameters:
//
//	Multiplier: 6364136223846793005
//	Increment:  1442695040888963407
//	Modulus:    2^64 (implicit via uint64 overflow)
//
// An LCG is not safe for concurrent use; each worker owns its own stream.
type LCG struct {
	seed  uint64
	state uint64
}

// NewLCG creates a new LCG with the given seed.
func NewLCG(seed uint64) *LCG {
	return &LCG{seed: seed, state: seed}
}

// Seed returns the seed the generator was created with.
func (l *LCG) Seed() uint64 {
	return l.seed
}

// Next advances the LCG state and returns the next pseudo-random uint64.
func (l *LCG) Next() uint64 {
	l.state = l.state*6364136223846793005 + 1442695040888963407
	return l.state
}

// Intn returns a pseudo-random int in [0, n).
// Returns 0 if n <= 0.
func (l *LCG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	// The low bits of an LCG have short periods; use the high half.
	return int((l.Next() >> 32) % uint64(n))
}

// Between returns a pseudo-random int in [lo, hi].
func (l *LCG) Between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + l.Intn(hi-lo+1)
}

// Float64 returns a pseudo-random float64 in [0.0, 1.0).
func (l *LCG) Float64() float64 {
	return float64(l.Next()>>11) / (1 << 53)
}

// Bool returns true with probability 0.5.
func (l *LCG) Bool() bool {
	return l.Next()>>63 == 1
}

// BoolWithProb returns true with probability p. Values outside [0, 1] are
// clamped.
func (l *LCG) BoolWithProb(p float64) bool {
	switch {
	case p <= 0:
		return false
	case p >= 1:
		return true
	}
	return l.Float64() < p
}

// SmallNumber returns a small non-negative int, heavily skewed towards 0.
// It is used to size optional clause lists (GROUP BY terms, ORDER BY terms).
func (l *LCG) SmallNumber() int {
	n := 0
	for n < 3 && l.BoolWithProb(0.3) {
		n++
	}
	return n
}

// Choice returns a uniformly random element from items.
// Returns "" if items is empty.
func (l *LCG) Choice(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return items[l.Intn(len(items))]
}

// Split derives an independent generator from the current stream. The
// derived seed is drawn from l, so the result is reproducible from l's seed.
func (l *LCG) Split() *LCG {
	return NewLCG(l.Next() ^ 0x9e3779b97f4a7c15)
}
