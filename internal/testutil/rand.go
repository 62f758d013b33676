package testutil

import "sync"

// ScriptedRand replays fixed values. Float64 cycles through Floats and IntN
// through Ints (reduced modulo n). Empty scripts return 0.
type ScriptedRand struct {
	mu     sync.Mutex
	Floats []float64
	Ints   []int
	fi, ii int
}

// NewScriptedRand returns a ScriptedRand cycling over the given floats.
func NewScriptedRand(floats ...float64) *ScriptedRand {
	return &ScriptedRand{Floats: floats}
}

// WithInts sets the IntN script (chainable).
func (s *ScriptedRand) WithInts(ints ...int) *ScriptedRand {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Ints = ints
	s.ii = 0
	return s
}

// Float64 implements core.Rand.
func (s *ScriptedRand) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Floats) == 0 {
		return 0
	}
	v := s.Floats[s.fi%len(s.Floats)]
	s.fi++
	return v
}

// IntN implements core.Rand.
func (s *ScriptedRand) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Ints) == 0 {
		return 0
	}
	v := s.Ints[s.ii%len(s.Ints)]
	s.ii++
	if v < 0 {
		v = -v
	}
	return v % n
}

// Calls returns how many Float64 draws were made.
func (s *ScriptedRand) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fi
}
