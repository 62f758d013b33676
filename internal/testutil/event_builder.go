package testutil

import (
	"sync"

	"github.com/hupe1980/collabmesh/core"
)

// DocOpEvent builds a doc:op event from origin.
func DocOpEvent(origin, blockID, content, userID string, version int) core.Event {
	return core.NewEvent(origin, core.DocOp{BlockID: blockID, Content: content, Version: version, UserID: userID})
}

// StrokeEvent builds a board:stroke event with a single starting point.
func StrokeEvent(origin, strokeID, userID string, start core.Point) core.Event {
	return core.NewEvent(origin, core.Stroke{ID: strokeID, UserID: userID, Color: "#000000", Tool: core.ToolPen, Points: []core.Point{start}})
}

// Recorder collects delivered events; safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []core.Event
}

// Handle appends ev. Its signature matches transport.Handler.
func (r *Recorder) Handle(ev core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// OfType returns the recorded events with the given tag.
func (r *Recorder) OfType(t core.EventType) []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []core.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
