// Package presence tracks per-user liveness, location and typing state.
//
// Activeness is computed lazily from LastSeenAt at read time; nothing sweeps
// stale entries in the background. Cursor positions are stored as raw
// targets; smoothing them for display belongs to the consumer, which can use
// Smooth on its own render tick.
package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/collabmesh/core"
)

// ActiveWindow is how long after its last update a user counts as active.
const ActiveWindow = 30 * time.Second

// DefaultSmoothing is the per-tick interpolation factor used by the
// original cursor layer.
const DefaultSmoothing = 0.08

// Options configures a Tracker.
type Options struct {
	// Now is the time source. Defaults to time.Now.
	Now func() time.Time
	// ActiveWindow overrides the liveness timeout.
	ActiveWindow time.Duration
}

// Tracker owns the presence map. It is safe for concurrent use.
type Tracker struct {
	mu        sync.RWMutex
	presences map[string]core.Presence
	now       func() time.Time
	window    time.Duration
}

// New constructs a Tracker seeded with an entry per user in doc mode.
func New(users []core.User, optFns ...func(o *Options)) *Tracker {
	opts := Options{Now: time.Now, ActiveWindow: ActiveWindow}

	for _, fn := range optFns {
		fn(&opts)
	}

	t := &Tracker{presences: make(map[string]core.Presence, len(users)), now: opts.Now, window: opts.ActiveWindow}
	ts := t.now()
	for _, u := range users {
		t.presences[u.ID] = core.Presence{UserID: u.ID, ActiveMode: core.ModeDoc, LastSeenAt: ts}
	}
	return t
}

// Update merges a partial presence for userID, creating the entry if
// needed, and stamps LastSeenAt.
func (t *Tracker) Update(userID string, patch core.PresencePatch) core.Presence {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.getLocked(userID)
	if patch.Cursor != nil {
		c := *patch.Cursor
		p.Cursor = &c
	}
	if patch.IsTyping != nil {
		p.IsTyping = *patch.IsTyping
	}
	if patch.ActiveMode != nil {
		p.ActiveMode = *patch.ActiveMode
	}
	p.LastSeenAt = t.now()
	t.presences[userID] = p
	return p.Clone()
}

// SetCursor replaces the cursor target of userID wholesale.
func (t *Tracker) SetCursor(userID string, cursor core.CursorPosition) core.Presence {
	return t.Update(userID, core.PresencePatch{Cursor: &cursor})
}

// ClearCursor removes the cursor of userID, for example when the pointer
// leaves the surface.
func (t *Tracker) ClearCursor(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.getLocked(userID)
	p.Cursor = nil
	p.LastSeenAt = t.now()
	t.presences[userID] = p
}

func (t *Tracker) getLocked(userID string) core.Presence {
	p, ok := t.presences[userID]
	if !ok {
		p = core.Presence{UserID: userID, ActiveMode: core.ModeDoc}
	}
	return p
}

// Get returns the presence of userID.
func (t *Tracker) Get(userID string) (core.Presence, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.presences[userID]
	return p.Clone(), ok
}

// All returns every presence ordered by user id.
func (t *Tracker) All() []core.Presence {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]core.Presence, 0, len(t.presences))
	for _, p := range t.presences {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// IsActive reports whether userID was seen within the active window.
func (t *Tracker) IsActive(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.presences[userID]
	return ok && t.now().Sub(p.LastSeenAt) < t.window
}

// Active returns the ids of all currently active users, sorted.
func (t *Tracker) Active() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	now := t.now()
	var ids []string
	for id, p := range t.presences {
		if now.Sub(p.LastSeenAt) < t.window {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// CursorTargets returns the latest raw cursor of every user that has one.
func (t *Tracker) CursorTargets() map[string]core.CursorPosition {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]core.CursorPosition)
	for id, p := range t.presences {
		if p.Cursor != nil {
			out[id] = *p.Cursor
		}
	}
	return out
}

// Smooth moves current toward target by factor (exponential smoothing).
// Consumers call it from their own render loop.
func Smooth(current, target core.Point, factor float64) core.Point {
	return core.Point{
		X: current.X + (target.X-current.X)*factor,
		Y: current.Y + (target.Y-current.Y)*factor,
	}
}
