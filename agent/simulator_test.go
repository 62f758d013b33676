package agent

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/collabmesh/core"
	"github.com/hupe1980/collabmesh/internal/testutil"
	"github.com/hupe1980/collabmesh/peer"
	"github.com/hupe1980/collabmesh/session"
	"github.com/hupe1980/collabmesh/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBehavior() Behavior {
	b := DefaultBehavior()
	for _, l := range []*Loop{&b.Cursor, &b.Mode, &b.Typing, &b.Comment, &b.Drawing} {
		*l = Loop{Base: 3 * time.Millisecond, Step: time.Millisecond, Probability: 1}
	}
	b.ThinkMin, b.ThinkSpan = time.Millisecond, time.Millisecond
	b.StrokePointsMin, b.StrokePointsSpan = 2, 2
	b.StrokePointInterval = time.Millisecond
	return b
}

func TestSimulator_LifecycleAgainstStore(t *testing.T) {
	bus := transport.New()
	store := session.New(func(o *session.Options) { o.ReplicaID = "replica-a" })
	store.Attach(bus)
	store.SetConnectionStatus(core.StatusSynced)

	rec := &testutil.Recorder{}
	bus.Subscribe(rec.Handle)

	var agents []*Agent
	for i, u := range core.AgentUsers {
		p := peer.New(u, store, bus, nil)
		agents = append(agents, New(p, i, func(o *Options) {
			o.Behavior = fastBehavior()
			o.Rand = core.NewRand(uint64(i + 1))
		}))
	}
	sim := NewSimulator(nil, agents...)

	require.NoError(t, sim.Start(context.Background()))
	assert.ErrorIs(t, sim.Start(context.Background()), ErrAlreadyRunning)
	assert.True(t, sim.Running())

	time.Sleep(150 * time.Millisecond)
	require.NoError(t, sim.Stop())
	assert.False(t, sim.Running())
	assert.ErrorIs(t, sim.Stop(), ErrNotRunning)

	assert.NotEmpty(t, rec.OfType(core.EventCursorUpdate))
	assert.NotEmpty(t, store.Activity())

	// nothing acts after Stop returned
	n := rec.Len()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, rec.Len())

	// every event came from this replica and was applied exactly once
	for _, b := range store.Blocks() {
		assert.GreaterOrEqual(t, b.Version, 1)
	}
	assert.Empty(t, store.Conflicts(), "no local typing, so the gate never fires")
}

func TestSimulator_StopsWithParentContext(t *testing.T) {
	p := newFakePeer()
	a := New(p, 0, func(o *Options) {
		o.Behavior = fastBehavior()
		o.Rand = core.NewRand(7)
	})
	sim := NewSimulator(nil, a)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, sim.Start(ctx))
	time.Sleep(20 * time.Millisecond)
	cancel()

	require.NoError(t, sim.Stop())
	assert.Len(t, sim.Agents(), 1)
	assert.Equal(t, "bot-aisha", sim.Agents()[0].UserID())
}
