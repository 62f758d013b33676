package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/collabmesh/core"
	"github.com/hupe1980/collabmesh/internal/testutil"
	"github.com/hupe1980/collabmesh/model"
	"github.com/hupe1980/collabmesh/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type edit struct{ BlockID, Content string }

type comment struct {
	Mode   core.Mode
	Text   string
	Anchor core.CommentAnchor
}

// fakePeer records every call an agent makes.
type fakePeer struct {
	mu         sync.Mutex
	user       core.User
	synced     bool
	blocks     []core.DocBlock
	cursors    []core.CursorPosition
	selections []string
	modes      []core.Mode
	typing     []bool
	activity   []string
	edits      []edit
	strokes    []core.Stroke
	points     []core.Point
	comments   []comment
}

func newFakePeer() *fakePeer {
	return &fakePeer{
		user:   core.User{ID: "bot-aisha", Name: "Aisha", Color: "#10b981", IsAgent: true},
		synced: true,
		blocks: core.InitialBlocks(),
	}
}

func (f *fakePeer) User() core.User { return f.user }

func (f *fakePeer) Synced() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.synced
}

func (f *fakePeer) Blocks() []core.DocBlock {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.DocBlock(nil), f.blocks...)
}

func (f *fakePeer) RecordActivity(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activity = append(f.activity, message)
}

func (f *fakePeer) MoveCursor(c core.CursorPosition) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursors = append(f.cursors, c)
}

func (f *fakePeer) Select(blockID string, _ core.Mode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selections = append(f.selections, blockID)
}

func (f *fakePeer) SetMode(m core.Mode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modes = append(f.modes, m)
}

func (f *fakePeer) SetTyping(typing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, typing)
}

func (f *fakePeer) Edit(blockID, content string) (session.EditResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, edit{blockID, content})
	return session.EditResult{Applied: true}, nil
}

func (f *fakePeer) StartStroke(start core.Point, tool core.Tool) (core.Stroke, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := core.Stroke{ID: "stroke-1", UserID: f.user.ID, Color: f.user.Color, Tool: tool, Points: []core.Point{start}}
	f.strokes = append(f.strokes, st)
	return st, nil
}

func (f *fakePeer) AppendStrokePoint(_ string, pt core.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, pt)
	return nil
}

func (f *fakePeer) AddComment(mode core.Mode, text string, anchor core.CommentAnchor) (core.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments = append(f.comments, comment{mode, text, anchor})
	return core.Comment{}, nil
}

func (f *fakePeer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cursors) + len(f.modes) + len(f.edits) + len(f.strokes) + len(f.comments)
}

// MockComposer for testing composer wiring.
type MockComposer struct {
	mock.Mock
}

func (m *MockComposer) Compose(ctx context.Context, req model.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockComposer) Info() model.Info {
	return model.Info{Name: "mock", Provider: "mock"}
}

func instantBehavior() Behavior {
	b := DefaultBehavior()
	b.ThinkMin, b.ThinkSpan = 0, 0
	b.StrokePointInterval = 0
	return b
}

func newTestAgent(p Peer, r core.Rand) *Agent {
	return New(p, 0, func(o *Options) {
		o.Behavior = instantBehavior()
		o.Rand = r
	})
}

func TestAgent_RetargetCursorFocusesBlockInDocMode(t *testing.T) {
	p := newFakePeer()
	a := newTestAgent(p, testutil.NewScriptedRand(0.5, 0.5).WithInts(1))

	a.retargetCursor(context.Background())

	require.Len(t, p.cursors, 1)
	assert.Equal(t, core.CursorPosition{X: 450, Y: 300, Mode: core.ModeDoc, BlockID: "block-2"}, p.cursors[0])
	assert.Equal(t, []string{"block-2"}, p.selections)
}

func TestAgent_RetargetCursorOnBoard(t *testing.T) {
	p := newFakePeer()
	a := newTestAgent(p, testutil.NewScriptedRand(0, 1))
	a.mode = core.ModeBoard

	a.retargetCursor(context.Background())

	require.Len(t, p.cursors, 1)
	assert.Equal(t, core.CursorPosition{X: 100, Y: 500, Mode: core.ModeBoard}, p.cursors[0])
	assert.Empty(t, p.selections)
}

func TestAgent_ModeSwitchFollowsDraw(t *testing.T) {
	t.Run("below probability toggles", func(t *testing.T) {
		p := newFakePeer()
		a := newTestAgent(p, testutil.NewScriptedRand(0.1))
		a.maybeSwitchMode(context.Background())
		assert.Equal(t, core.ModeBoard, a.Mode())
		assert.Equal(t, []core.Mode{core.ModeBoard}, p.modes)
	})

	t.Run("above probability keeps mode", func(t *testing.T) {
		p := newFakePeer()
		a := newTestAgent(p, testutil.NewScriptedRand(0.5))
		a.maybeSwitchMode(context.Background())
		assert.Equal(t, core.ModeDoc, a.Mode())
		assert.Empty(t, p.modes)
	})
}

func TestAgent_TypingEditsRandomBlock(t *testing.T) {
	p := newFakePeer()
	a := newTestAgent(p, testutil.NewScriptedRand(0.1, 0).WithInts(2, 3))

	a.maybeType(context.Background())

	assert.Equal(t, []edit{{"block-3", model.DefaultTexts[3]}}, p.edits)
	assert.Equal(t, []bool{true, false}, p.typing)
	assert.Equal(t, []string{"Aisha is typing"}, p.activity)
}

func TestAgent_TypingSkipsOnBoardAndAboveProbability(t *testing.T) {
	r := testutil.NewScriptedRand(0.9)
	p := newFakePeer()
	a := newTestAgent(p, r)

	a.maybeType(context.Background())
	assert.Equal(t, 1, r.Calls())

	a.mode = core.ModeBoard
	a.maybeType(context.Background())
	assert.Equal(t, 1, r.Calls(), "board mode must not draw")
	assert.Empty(t, p.edits)
	assert.Empty(t, p.typing)
}

func TestAgent_TypingCancelledDuringThink(t *testing.T) {
	p := newFakePeer()
	a := New(p, 0, func(o *Options) {
		o.Behavior = DefaultBehavior()
		o.Behavior.ThinkMin = time.Hour
		o.Rand = testutil.NewScriptedRand(0.1, 0)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a.maybeType(ctx)

	assert.Empty(t, p.edits)
	assert.Equal(t, []bool{true, false}, p.typing)
}

func TestAgent_TypingUsesComposer(t *testing.T) {
	p := newFakePeer()
	c := &MockComposer{}
	c.On("Compose", mock.Anything, mock.MatchedBy(func(req model.Request) bool {
		return req.Kind == model.KindText && req.Block.ID == "block-1" && req.User.ID == "bot-aisha"
	})).Return("Composed line.", nil).Once()

	a := New(p, 0, func(o *Options) {
		o.Behavior = instantBehavior()
		o.Rand = testutil.NewScriptedRand(0.1, 0).WithInts(0)
		o.Composer = c
	})
	a.maybeType(context.Background())

	c.AssertExpectations(t)
	assert.Equal(t, []edit{{"block-1", "Composed line."}}, p.edits)
}

func TestAgent_CommentAnchorsByMode(t *testing.T) {
	t.Run("doc", func(t *testing.T) {
		p := newFakePeer()
		a := newTestAgent(p, testutil.NewScriptedRand(0.1).WithInts(0, 5))
		a.maybeComment(context.Background())
		require.Len(t, p.comments, 1)
		assert.Equal(t, comment{core.ModeDoc, model.DefaultComments[5], core.BlockAnchor("block-1")}, p.comments[0])
	})

	t.Run("board", func(t *testing.T) {
		p := newFakePeer()
		a := newTestAgent(p, testutil.NewScriptedRand(0.1, 0.5, 0.5).WithInts(1))
		a.mode = core.ModeBoard
		a.maybeComment(context.Background())
		require.Len(t, p.comments, 1)
		assert.Equal(t, comment{core.ModeBoard, model.DefaultComments[1], core.PointAnchor(400, 300)}, p.comments[0])
	})

	t.Run("above probability", func(t *testing.T) {
		p := newFakePeer()
		a := newTestAgent(p, testutil.NewScriptedRand(0.2))
		a.maybeComment(context.Background())
		assert.Empty(t, p.comments)
	})
}

func TestAgent_DrawRandomWalk(t *testing.T) {
	floats := []float64{0.1, 0.5, 0.5}
	for i := 0; i < 14; i++ {
		floats = append(floats, 0.75)
	}
	p := newFakePeer()
	a := newTestAgent(p, testutil.NewScriptedRand(floats...).WithInts(2))
	a.mode = core.ModeBoard

	a.maybeDraw(context.Background())

	require.Len(t, p.strokes, 1)
	assert.Equal(t, []core.Point{{X: 400, Y: 300}}, p.strokes[0].Points)
	assert.Equal(t, core.ToolPen, p.strokes[0].Tool)
	require.Len(t, p.points, 7)
	assert.Equal(t, core.Point{X: 487.5, Y: 387.5}, p.points[6])
}

func TestAgent_DrawOnlyOnBoard(t *testing.T) {
	p := newFakePeer()
	a := newTestAgent(p, testutil.NewScriptedRand(0.1, 0.5, 0.5))
	a.maybeDraw(context.Background())
	assert.Empty(t, p.strokes)
}

func TestAgent_DrawCancelledMidStroke(t *testing.T) {
	p := newFakePeer()
	a := New(p, 0, func(o *Options) {
		o.Behavior = DefaultBehavior()
		o.Behavior.StrokePointInterval = time.Hour
		o.Rand = testutil.NewScriptedRand(0.1, 0.5, 0.5)
	})
	a.mode = core.ModeBoard
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a.maybeDraw(ctx)

	assert.Len(t, p.strokes, 1)
	assert.Empty(t, p.points)
}

func TestAgent_IdleUnlessSynced(t *testing.T) {
	p := newFakePeer()
	p.synced = false
	b := instantBehavior()
	for _, l := range []*Loop{&b.Cursor, &b.Mode, &b.Typing, &b.Comment, &b.Drawing} {
		*l = Loop{Base: time.Millisecond, Probability: 1}
	}
	a := New(p, 0, func(o *Options) {
		o.Behavior = b
		o.Rand = core.NewRand(1)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	a.Run(ctx)

	assert.Zero(t, p.calls())
}

func TestLoop_IntervalOffsetsByIndex(t *testing.T) {
	b := DefaultBehavior()
	assert.Equal(t, 2*time.Second, b.Cursor.Interval(0))
	assert.Equal(t, 3500*time.Millisecond, b.Cursor.Interval(3))
	assert.Equal(t, 14*time.Second, b.Mode.Interval(3))
	assert.Equal(t, 18*time.Second, b.Comment.Interval(2))
}

func TestAgent_JitterStaysWithinSpread(t *testing.T) {
	a := New(newFakePeer(), 0, func(o *Options) { o.Rand = testutil.NewScriptedRand(0, 1, 0.5) })
	assert.Equal(t, 900*time.Millisecond, a.jitter(time.Second))
	assert.Equal(t, 1100*time.Millisecond, a.jitter(time.Second))
	assert.Equal(t, time.Second, a.jitter(time.Second))
}
