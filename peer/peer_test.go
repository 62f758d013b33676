package peer

import (
	"testing"

	"github.com/hupe1980/collabmesh/conflict"
	"github.com/hupe1980/collabmesh/core"
	"github.com/hupe1980/collabmesh/internal/testutil"
	"github.com/hupe1980/collabmesh/session"
	"github.com/hupe1980/collabmesh/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	bus   *transport.Bus
	store *session.Store
	rec   *testutil.Recorder
}

func newFixture(t *testing.T, draws ...float64) fixture {
	t.Helper()
	if len(draws) == 0 {
		draws = []float64{0.99}
	}
	bus := transport.New()
	store := session.New(func(o *session.Options) {
		o.ReplicaID = "replica-a"
		o.Engine = conflict.New(func(o *conflict.Options) { o.Rand = testutil.NewScriptedRand(draws...) })
	})
	store.Attach(bus)
	rec := &testutil.Recorder{}
	bus.Subscribe(rec.Handle)
	return fixture{bus: bus, store: store, rec: rec}
}

func (f fixture) peer(id string) *Peer {
	u, _ := f.store.User(id)
	return New(u, f.store, f.bus, nil)
}

func TestPeer_EventsCarryReplicaOrigin(t *testing.T) {
	f := newFixture(t)
	p := f.peer("bot-aisha")

	p.MoveCursor(core.CursorPosition{X: 10, Y: 20, Mode: core.ModeBoard})

	evs := f.rec.OfType(core.EventCursorUpdate)
	require.Len(t, evs, 1)
	assert.Equal(t, "replica-a", evs[0].Origin)

	pr, ok := f.store.Presence().Get("bot-aisha")
	require.True(t, ok)
	require.NotNil(t, pr.Cursor)
	assert.Equal(t, 10.0, pr.Cursor.X)
}

func TestPeer_AgentEditAppliesOnce(t *testing.T) {
	f := newFixture(t)
	p := f.peer("bot-ravi")

	res, err := p.Edit("block-2", "agent text")
	require.NoError(t, err)
	assert.True(t, res.Applied)

	b, err := f.store.Block("block-2")
	require.NoError(t, err)
	assert.Equal(t, 2, b.Version, "published echo must not apply a second time")
	assert.Equal(t, "agent text", b.Content)
	require.Len(t, f.rec.OfType(core.EventDocOp), 1)
}

func TestPeer_AgentEditCollidesWithLocalTyping(t *testing.T) {
	f := newFixture(t, 0.1)
	local := f.peer(core.LocalUserID)
	agent := f.peer("bot-chen")

	require.NoError(t, local.Focus("block-1"))
	res, err := agent.Edit("block-1", "agent rewrite")
	require.NoError(t, err)
	require.NotNil(t, res.Conflict)
	assert.False(t, res.Applied)

	assert.Empty(t, f.rec.OfType(core.EventDocOp))
	require.Len(t, f.rec.OfType(core.EventConflictDetected), 1)
	require.Len(t, f.store.Conflicts(), 1)

	b, err := local.ResolveConflict(res.Conflict.ID, core.KeepRemote, "")
	require.NoError(t, err)
	assert.Equal(t, "agent rewrite", b.Content)
	assert.Empty(t, f.store.Conflicts())
	assert.Len(t, f.rec.OfType(core.EventConflictResolved), 1)
}

func TestPeer_LocalEditNeverConflicts(t *testing.T) {
	f := newFixture(t, 0.0)
	local := f.peer(core.LocalUserID)
	require.NoError(t, local.Focus("block-3"))

	res, err := local.Edit("block-3", "typed")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Empty(t, f.store.Conflicts())
}

func TestPeer_FocusAndBlur(t *testing.T) {
	f := newFixture(t)
	local := f.peer(core.LocalUserID)

	require.NoError(t, local.Focus("block-2"))
	assert.Equal(t, "block-2", f.store.LocalTypingBlockID())
	pr, _ := f.store.Presence().Get(core.LocalUserID)
	assert.True(t, pr.IsTyping)
	assert.Equal(t, "You started editing", f.store.Activity()[0].Message)

	local.Blur()
	assert.Empty(t, f.store.LocalTypingBlockID())
	pr, _ = f.store.Presence().Get(core.LocalUserID)
	assert.False(t, pr.IsTyping)

	assert.ErrorIs(t, local.Focus("missing"), core.ErrNotFound)
}

func TestPeer_SetModeRecordsActivity(t *testing.T) {
	f := newFixture(t)
	p := f.peer("bot-sofia")

	p.SetMode(core.ModeBoard)

	pr, _ := f.store.Presence().Get("bot-sofia")
	assert.Equal(t, core.ModeBoard, pr.ActiveMode)
	assert.Equal(t, "Sofia switched to Whiteboard", f.store.Activity()[0].Message)
	assert.Len(t, f.rec.OfType(core.EventPresenceUpdate), 1)
}

func TestPeer_StrokeLifecycle(t *testing.T) {
	f := newFixture(t)
	p := f.peer("bot-chen")

	st, err := p.StartStroke(core.Point{X: 1, Y: 1}, core.ToolPen)
	require.NoError(t, err)
	assert.Equal(t, p.User().Color, st.Color)
	for i := 0; i < 3; i++ {
		require.NoError(t, p.AppendStrokePoint(st.ID, core.Point{X: float64(i), Y: 2}))
	}

	got, err := f.store.Stroke(st.ID)
	require.NoError(t, err)
	assert.Len(t, got.Points, 4)
	assert.Len(t, f.rec.OfType(core.EventBoardStrokePoint), 3)

	assert.ErrorIs(t, p.AppendStrokePoint("missing", core.Point{}), core.ErrNotFound)
}

func TestPeer_CommentLifecycle(t *testing.T) {
	f := newFixture(t)
	p := f.peer("bot-aisha")

	c, err := p.AddComment(core.ModeDoc, "Looks good to me.", core.BlockAnchor("block-1"))
	require.NoError(t, err)
	assert.Equal(t, "Aisha added a comment", f.store.Activity()[0].Message)

	require.NoError(t, p.ResolveComment(c.ID, true))
	assert.True(t, f.store.Comments()[0].Resolved)
	require.NoError(t, p.DeleteComment(c.ID))
	assert.Empty(t, f.store.Comments())

	_, err = p.AddComment(core.ModeBoard, "no anchor", core.CommentAnchor{})
	assert.ErrorIs(t, err, core.ErrInvalidAnchor)
}

func TestPeer_BlocksAndStatus(t *testing.T) {
	f := newFixture(t)
	p := f.peer(core.LocalUserID)
	assert.False(t, p.Synced())

	p.SetConnectionStatus(core.StatusSynced)
	assert.True(t, p.Synced())
	assert.Len(t, f.rec.OfType(core.EventConnectionStatus), 1)

	b, err := p.AddBlock("block-1")
	require.NoError(t, err)
	blocks := p.Blocks()
	require.Len(t, blocks, 5)
	assert.Equal(t, b.ID, blocks[1].ID)

	_, err = p.SetBlockType(b.ID, core.BlockCode)
	require.NoError(t, err)
	got, _ := f.store.Block(b.ID)
	assert.Equal(t, core.BlockCode, got.Type)
}
