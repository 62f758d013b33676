package agent

import (
	"time"

	"github.com/hupe1980/collabmesh/core"
)

// Loop describes one periodic behavior. The interval of agent i is
// Base + i*Step; each tick acts with the given probability.
type Loop struct {
	Base        time.Duration
	Step        time.Duration
	Probability float64
}

// Interval returns the un-jittered tick interval for the agent at index.
func (l Loop) Interval(index int) time.Duration {
	return l.Base + time.Duration(index)*l.Step
}

// Behavior is the full timing and probability table of an agent.
type Behavior struct {
	Cursor  Loop
	Mode    Loop
	Typing  Loop
	Comment Loop
	Drawing Loop

	// Jitter is the relative spread applied to every tick interval.
	Jitter float64

	// ThinkMin and ThinkSpan bound the pause between starting to type and
	// committing the edit.
	ThinkMin  time.Duration
	ThinkSpan time.Duration

	// A stroke receives StrokePointsMin + [0, StrokePointsSpan) further
	// points, one every StrokePointInterval, each moving up to StrokeStep/2
	// on both axes.
	StrokePointsMin     int
	StrokePointsSpan    int
	StrokePointInterval time.Duration
	StrokeStep          float64
}

// DefaultBehavior returns the stock agent behavior.
func DefaultBehavior() Behavior {
	return Behavior{
		Cursor:  Loop{Base: 2 * time.Second, Step: 500 * time.Millisecond, Probability: 1},
		Mode:    Loop{Base: 8 * time.Second, Step: 2 * time.Second, Probability: 0.2},
		Typing:  Loop{Base: 5 * time.Second, Step: 1500 * time.Millisecond, Probability: 0.3},
		Comment: Loop{Base: 12 * time.Second, Step: 3 * time.Second, Probability: 0.15},
		Drawing: Loop{Base: 4 * time.Second, Step: time.Second, Probability: 0.4},

		Jitter: 0.1,

		ThinkMin:  1500 * time.Millisecond,
		ThinkSpan: time.Second,

		StrokePointsMin:     5,
		StrokePointsSpan:    10,
		StrokePointInterval: 50 * time.Millisecond,
		StrokeStep:          50,
	}
}

// canvas regions used for random placement
var (
	cursorArea  = area{X: 100, Y: 100, W: 700, H: 400}
	contentArea = area{X: 100, Y: 100, W: 600, H: 400}
)

type area struct{ X, Y, W, H float64 }

func (a area) random(r core.Rand) core.Point {
	x := core.Between(r, a.X, a.W)
	y := core.Between(r, a.Y, a.H)
	return core.Point{X: x, Y: y}
}
