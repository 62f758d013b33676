// Package conflict implements the collision gate evaluated for every remote
// document edit. It is a single-block gate, not a causal detector: it only
// fires while the local user is editing the targeted block and never compares
// versions.
package conflict

import "github.com/hupe1980/collabmesh/core"

// DefaultProbability is the chance that a remote edit to the block the
// local user is editing collides when no conflict is forced.
const DefaultProbability = 0.3

// Attempt describes one incoming remote edit.
type Attempt struct {
	BlockID            string
	LocalTypingBlockID string
	ForceConflict      bool
}

// Decision is the outcome of Evaluate.
type Decision struct {
	// Checked reports whether the collision rule ran at all.
	Checked bool
	// Collide reports whether a conflict must be raised instead of applying.
	Collide bool
}

// Options configures an Engine.
type Options struct {
	Probability float64
	Rand        core.Rand
}

// Engine decides whether remote edits collide with local editing.
type Engine struct {
	probability float64
	rand        core.Rand
}

// New constructs an Engine with optional overrides.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Probability: DefaultProbability,
		Rand:        core.DefaultRand(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Engine{probability: opts.Probability, rand: opts.Rand}
}

// Evaluate applies the collision rule. No random draw happens when the
// local user is not editing the block or when the conflict is forced.
func (e *Engine) Evaluate(a Attempt) Decision {
	if a.LocalTypingBlockID == "" || a.LocalTypingBlockID != a.BlockID {
		return Decision{}
	}
	if a.ForceConflict {
		return Decision{Checked: true, Collide: true}
	}
	return Decision{Checked: true, Collide: e.rand.Float64() < e.probability}
}

// Probability returns the configured collision probability.
func (e *Engine) Probability() float64 { return e.probability }
