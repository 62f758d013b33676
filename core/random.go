package core

import (
	"math/rand/v2"
	"sync"
)

// Rand is the random source behind every probabilistic decision (packet
// loss, collision draws, agent behavior). Implementations must be safe for
// concurrent use.
type Rand interface {
	// Float64 returns a number in [0.0, 1.0).
	Float64() float64
	// IntN returns a number in [0, n). It panics if n <= 0.
	IntN(n int) int
}

// LockedRand is a mutex guarded PCG source.
type LockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand returns a deterministic Rand for the given seed.
func NewRand(seed uint64) *LockedRand {
	return &LockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Float64 implements Rand.
func (l *LockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// IntN implements Rand.
func (l *LockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// globalRand forwards to the auto-seeded math/rand/v2 top level functions.
type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// DefaultRand returns a process-wide, non-deterministic Rand.
func DefaultRand() Rand { return globalRand{} }

// Between returns a value uniformly drawn from [lo, lo+span).
func Between(r Rand, lo, span float64) float64 { return lo + r.Float64()*span }

// Pick returns a uniformly chosen element of items. items must not be empty.
func Pick[T any](r Rand, items []T) T { return items[r.IntN(len(items))] }
