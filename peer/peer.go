// Package peer provides the client side of a participant: every action
// mutates the local store replica and then publishes the equivalent event on
// the transport, exactly as a remote peer's client would. Agents and the
// local input path both act through a Peer, which keeps the event vocabulary
// the single integration surface.
package peer

import (
	"fmt"

	"github.com/hupe1980/collabmesh/core"
	"github.com/hupe1980/collabmesh/logging"
	"github.com/hupe1980/collabmesh/session"
)

// Publisher is the part of the transport a Peer needs.
type Publisher interface {
	Publish(ev core.Event)
}

// Peer acts on behalf of one user against a store replica.
type Peer struct {
	user   core.User
	store  *session.Store
	bus    Publisher
	logger logging.Logger
}

// New binds user to store and bus.
func New(user core.User, store *session.Store, bus Publisher, logger logging.Logger) *Peer {
	return &Peer{user: user, store: store, bus: bus, logger: logging.OrNoOp(logger)}
}

// User returns the participant this peer acts for.
func (p *Peer) User() core.User { return p.user }

// UserID returns the participant id.
func (p *Peer) UserID() string { return p.user.ID }

// IsLocal reports whether the peer is the local user.
func (p *Peer) IsLocal() bool { return p.user.ID == core.LocalUserID }

// Synced reports whether the simulated connection is up.
func (p *Peer) Synced() bool { return p.store.ConnectionStatus() == core.StatusSynced }

// Blocks returns the current document blocks.
func (p *Peer) Blocks() []core.DocBlock { return p.store.Blocks() }

func (p *Peer) publish(payload core.Payload) {
	p.bus.Publish(core.NewEvent(p.store.ID(), payload))
}

// RecordActivity adds an entry attributed to this peer's user.
func (p *Peer) RecordActivity(message string) {
	p.store.RecordActivity(message, p.user.ID)
}

// MoveCursor replaces the cursor of the user.
func (p *Peer) MoveCursor(c core.CursorPosition) {
	p.store.Presence().SetCursor(p.user.ID, c)
	p.publish(core.CursorUpdate{UserID: p.user.ID, Cursor: c})
}

// Select focuses a block for the user without marking local editing.
// An empty blockID clears the selection.
func (p *Peer) Select(blockID string, mode core.Mode) {
	if blockID == "" {
		p.store.ClearSelection(p.user.ID)
	} else {
		p.store.SetSelection(core.Selection{UserID: p.user.ID, BlockID: blockID, Mode: mode})
	}
	p.publish(core.SelectionUpdate{UserID: p.user.ID, BlockID: blockID, Mode: mode})
}

// SetMode switches the surface the user works on.
func (p *Peer) SetMode(m core.Mode) {
	patch := core.ModePatch(m)
	p.store.Presence().Update(p.user.ID, patch)
	p.RecordActivity(fmt.Sprintf("%s switched to %s", p.user.Name, m.Label()))
	p.publish(core.PresenceUpdate{UserID: p.user.ID, Presence: patch})
}

// SetTyping toggles the typing indicator of the user.
func (p *Peer) SetTyping(typing bool) {
	patch := core.TypingPatch(typing)
	p.store.Presence().Update(p.user.ID, patch)
	p.publish(core.PresenceUpdate{UserID: p.user.ID, Presence: patch})
}

// Focus starts editing a block. For the local user this arms the conflict
// gate for that block.
func (p *Peer) Focus(blockID string) error {
	if p.IsLocal() {
		if err := p.store.SetLocalTyping(blockID); err != nil {
			return err
		}
		p.RecordActivity("You started editing")
	} else {
		if _, err := p.store.Block(blockID); err != nil {
			return err
		}
		p.store.SetSelection(core.Selection{UserID: p.user.ID, BlockID: blockID, Mode: core.ModeDoc})
	}
	p.publish(core.SelectionUpdate{UserID: p.user.ID, BlockID: blockID, Mode: core.ModeDoc})
	p.SetTyping(true)
	return nil
}

// Blur stops editing.
func (p *Peer) Blur() {
	if p.IsLocal() {
		p.store.ClearLocalTyping()
	} else {
		p.store.ClearSelection(p.user.ID)
	}
	p.publish(core.SelectionUpdate{UserID: p.user.ID, Mode: core.ModeDoc})
	p.SetTyping(false)
}

// Edit replaces the content of a block. Local edits are always accepted;
// edits by anyone else pass the conflict gate and may raise a conflict
// instead, in which case conflict:detected is published rather than doc:op.
func (p *Peer) Edit(blockID, content string) (session.EditResult, error) {
	if p.IsLocal() {
		b, err := p.store.ApplyLocalEdit(blockID, content)
		if err != nil {
			return session.EditResult{}, err
		}
		p.publish(core.DocOp{BlockID: blockID, Content: content, Version: b.Version, UserID: p.user.ID})
		return session.EditResult{Block: b, Applied: true}, nil
	}

	current, err := p.store.Block(blockID)
	if err != nil {
		return session.EditResult{}, err
	}
	res, err := p.store.ApplyRemoteEdit(blockID, content, p.user.ID, current.Version+1)
	if err != nil {
		return session.EditResult{}, err
	}
	if res.Conflict != nil {
		p.logger.Info("Edit diverted into conflict", "user_id", p.user.ID, "block_id", blockID, "conflict_id", res.Conflict.ID)
		p.publish(*res.Conflict)
		return res, nil
	}
	p.publish(core.DocOp{BlockID: blockID, Content: content, Version: res.Block.Version, UserID: p.user.ID})
	return res, nil
}

// SetBlockType changes a block's rendering type.
func (p *Peer) SetBlockType(blockID string, t core.BlockType) (core.DocBlock, error) {
	b, err := p.store.SetBlockType(blockID, t)
	if err != nil {
		return core.DocBlock{}, err
	}
	p.publish(core.BlockTypeChange{BlockID: blockID, Type: t, UserID: p.user.ID})
	return b, nil
}

// AddBlock inserts an empty paragraph after afterID (or at the end).
func (p *Peer) AddBlock(afterID string) (core.DocBlock, error) {
	b, err := p.store.AddBlock(afterID)
	if err != nil {
		return core.DocBlock{}, err
	}
	p.publish(core.BlockAdd{Block: b, AfterID: afterID, UserID: p.user.ID})
	return b, nil
}

// StartStroke creates a stroke in the user's color starting at start.
func (p *Peer) StartStroke(start core.Point, tool core.Tool) (core.Stroke, error) {
	st, err := p.store.AddStroke(core.Stroke{
		ID:     "stroke-" + core.NewID(),
		UserID: p.user.ID,
		Color:  p.user.Color,
		Points: []core.Point{start},
		Tool:   tool,
	})
	if err != nil {
		return core.Stroke{}, err
	}
	p.RecordActivity(fmt.Sprintf("%s drew a stroke", p.user.Name))
	p.publish(st)
	return st, nil
}

// AppendStrokePoint grows one of the user's strokes.
func (p *Peer) AppendStrokePoint(strokeID string, pt core.Point) error {
	if err := p.store.AppendStrokePoint(strokeID, pt); err != nil {
		return err
	}
	p.publish(core.StrokePoint{StrokeID: strokeID, Point: pt})
	return nil
}

// AddComment posts a comment anchored per mode.
func (p *Peer) AddComment(mode core.Mode, text string, anchor core.CommentAnchor) (core.Comment, error) {
	c, err := p.store.AddComment(core.Comment{
		ID:            "comment-" + core.NewID(),
		AuthorID:      p.user.ID,
		Mode:          mode,
		Text:          text,
		CommentAnchor: anchor,
	})
	if err != nil {
		return core.Comment{}, err
	}
	p.RecordActivity(fmt.Sprintf("%s added a comment", p.user.Name))
	p.publish(c)
	return c, nil
}

// ResolveComment sets the resolved flag of a comment.
func (p *Peer) ResolveComment(id string, resolved bool) error {
	if err := p.store.ResolveComment(id, resolved); err != nil {
		return err
	}
	p.publish(core.CommentResolve{CommentID: id, Resolved: resolved})
	return nil
}

// DeleteComment removes a comment.
func (p *Peer) DeleteComment(id string) error {
	if err := p.store.DeleteComment(id); err != nil {
		return err
	}
	p.publish(core.CommentDelete{CommentID: id})
	return nil
}

// ResolveConflict consumes a pending conflict with the given policy.
func (p *Peer) ResolveConflict(id string, policy core.ResolutionPolicy, merged string) (core.DocBlock, error) {
	b, err := p.store.ResolveConflict(id, policy, merged)
	if err != nil {
		return core.DocBlock{}, err
	}
	p.publish(core.ConflictResolved{ConflictID: id})
	p.publish(core.DocOp{BlockID: b.ID, Content: b.Content, Version: b.Version, UserID: p.user.ID})
	return b, nil
}

// SetConnectionStatus changes and announces the link state.
func (p *Peer) SetConnectionStatus(status core.ConnectionStatus) {
	p.store.SetConnectionStatus(status)
	p.publish(core.ConnectionStatusChange{Status: status})
}
