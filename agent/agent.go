package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/collabmesh/core"
	"github.com/hupe1980/collabmesh/logging"
	"github.com/hupe1980/collabmesh/model"
	"github.com/hupe1980/collabmesh/session"
)

// Peer is the participant client an agent acts through. *peer.Peer
// satisfies it.
type Peer interface {
	User() core.User
	Synced() bool
	Blocks() []core.DocBlock
	RecordActivity(message string)
	MoveCursor(c core.CursorPosition)
	Select(blockID string, mode core.Mode)
	SetMode(m core.Mode)
	SetTyping(typing bool)
	Edit(blockID, content string) (session.EditResult, error)
	StartStroke(start core.Point, tool core.Tool) (core.Stroke, error)
	AppendStrokePoint(strokeID string, pt core.Point) error
	AddComment(mode core.Mode, text string, anchor core.CommentAnchor) (core.Comment, error)
}

// Options configures an Agent.
type Options struct {
	Behavior Behavior
	// Composer writes the text the agent types and comments. Defaults to a
	// canned composer sharing the agent's random source.
	Composer model.Composer
	Rand     core.Rand
	Logger   logging.Logger
}

// Agent is one autonomous participant. Its loops run concurrently; the
// agent-local state (current mode) is guarded by a mutex.
type Agent struct {
	peer     Peer
	index    int
	behavior Behavior
	composer model.Composer
	rand     core.Rand
	logger   logging.Logger

	mu   sync.Mutex
	mode core.Mode
}

// New creates an agent acting through peer. index offsets every loop
// interval so agents never tick in lockstep.
func New(p Peer, index int, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Behavior: DefaultBehavior(),
		Rand:     core.DefaultRand(),
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Composer == nil {
		r := opts.Rand
		opts.Composer = model.NewCanned(func(o *model.CannedOptions) { o.Rand = r })
	}

	return &Agent{
		peer:     p,
		index:    index,
		behavior: opts.Behavior,
		composer: opts.Composer,
		rand:     opts.Rand,
		logger:   logging.OrNoOp(opts.Logger),
		mode:     core.ModeDoc,
	}
}

// UserID returns the id of the participant this agent plays.
func (a *Agent) UserID() string { return a.peer.User().ID }

// Mode returns the surface the agent currently works on.
func (a *Agent) Mode() core.Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// Run drives all loops until ctx is done and every loop has returned.
func (a *Agent) Run(ctx context.Context) {
	loops := []struct {
		loop Loop
		tick func(context.Context)
	}{
		{a.behavior.Cursor, a.retargetCursor},
		{a.behavior.Mode, a.maybeSwitchMode},
		{a.behavior.Typing, a.maybeType},
		{a.behavior.Comment, a.maybeComment},
		{a.behavior.Drawing, a.maybeDraw},
	}

	var wg sync.WaitGroup
	for _, l := range loops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.loop(ctx, l.loop, l.tick)
		}()
	}
	wg.Wait()
}

func (a *Agent) loop(ctx context.Context, l Loop, tick func(context.Context)) {
	interval := l.Interval(a.index)
	if interval <= 0 {
		return
	}

	timer := time.NewTimer(a.jitter(interval))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if a.peer.Synced() {
				tick(ctx)
			}
			timer.Reset(a.jitter(interval))
		}
	}
}

func (a *Agent) jitter(d time.Duration) time.Duration {
	if a.behavior.Jitter <= 0 {
		return d
	}
	f := 1 + (a.rand.Float64()*2-1)*a.behavior.Jitter
	if j := time.Duration(float64(d) * f); j > 0 {
		return j
	}
	return d
}

// chance draws once against p.
func (a *Agent) chance(p float64) bool {
	return a.rand.Float64() < p
}

func (a *Agent) retargetCursor(context.Context) {
	target := cursorArea.random(a.rand)
	mode := a.Mode()
	cursor := core.CursorPosition{X: target.X, Y: target.Y, Mode: mode}

	if mode == core.ModeDoc {
		if blocks := a.peer.Blocks(); len(blocks) > 0 {
			b := core.Pick(a.rand, blocks)
			cursor.BlockID = b.ID
			a.peer.MoveCursor(cursor)
			a.peer.Select(b.ID, core.ModeDoc)
			return
		}
	}
	a.peer.MoveCursor(cursor)
}

func (a *Agent) maybeSwitchMode(context.Context) {
	if !a.chance(a.behavior.Mode.Probability) {
		return
	}
	a.mu.Lock()
	a.mode = a.mode.Toggle()
	mode := a.mode
	a.mu.Unlock()

	a.peer.SetMode(mode)
}

func (a *Agent) maybeType(ctx context.Context) {
	if a.Mode() != core.ModeDoc || !a.chance(a.behavior.Typing.Probability) {
		return
	}
	blocks := a.peer.Blocks()
	if len(blocks) == 0 {
		return
	}
	block := core.Pick(a.rand, blocks)
	user := a.peer.User()

	a.peer.SetTyping(true)
	a.peer.RecordActivity(fmt.Sprintf("%s is typing", user.Name))
	defer a.peer.SetTyping(false)

	think := a.behavior.ThinkMin + time.Duration(a.rand.Float64()*float64(a.behavior.ThinkSpan))
	if !sleep(ctx, think) {
		return
	}

	text, err := a.composer.Compose(ctx, model.Request{Kind: model.KindText, User: user, Block: block})
	if err != nil {
		a.logger.Debug("Compose failed", "user_id", user.ID, "error", err)
		return
	}

	res, err := a.peer.Edit(block.ID, text)
	if err != nil {
		a.logger.Debug("Agent edit skipped", "user_id", user.ID, "block_id", block.ID, "error", err)
		return
	}
	if res.Conflict != nil {
		a.logger.Debug("Agent edit collided", "user_id", user.ID, "block_id", block.ID, "conflict_id", res.Conflict.ID)
	}
}

func (a *Agent) maybeComment(ctx context.Context) {
	if !a.chance(a.behavior.Comment.Probability) {
		return
	}
	user := a.peer.User()
	mode := a.Mode()

	req := model.Request{Kind: model.KindComment, User: user}
	var anchor core.CommentAnchor
	if mode == core.ModeDoc {
		blocks := a.peer.Blocks()
		if len(blocks) == 0 {
			return
		}
		req.Block = core.Pick(a.rand, blocks)
		anchor = core.BlockAnchor(req.Block.ID)
	} else {
		p := contentArea.random(a.rand)
		anchor = core.PointAnchor(p.X, p.Y)
	}

	text, err := a.composer.Compose(ctx, req)
	if err != nil {
		a.logger.Debug("Compose failed", "user_id", user.ID, "error", err)
		return
	}
	if _, err := a.peer.AddComment(mode, text, anchor); err != nil {
		a.logger.Debug("Agent comment skipped", "user_id", user.ID, "error", err)
	}
}

func (a *Agent) maybeDraw(ctx context.Context) {
	if a.Mode() != core.ModeBoard || !a.chance(a.behavior.Drawing.Probability) {
		return
	}
	start := contentArea.random(a.rand)
	st, err := a.peer.StartStroke(start, core.ToolPen)
	if err != nil {
		a.logger.Debug("Agent stroke skipped", "user_id", a.UserID(), "error", err)
		return
	}

	budget := a.behavior.StrokePointsMin
	if a.behavior.StrokePointsSpan > 0 {
		budget += a.rand.IntN(a.behavior.StrokePointsSpan)
	}

	last := start
	for i := 0; i < budget; i++ {
		if !sleep(ctx, a.behavior.StrokePointInterval) {
			return
		}
		last.X += (a.rand.Float64() - 0.5) * a.behavior.StrokeStep
		last.Y += (a.rand.Float64() - 0.5) * a.behavior.StrokeStep
		if err := a.peer.AppendStrokePoint(st.ID, last); err != nil {
			a.logger.Debug("Stroke point skipped", "stroke_id", st.ID, "error", err)
			return
		}
	}
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
