package session

import (
	"fmt"

	"github.com/hupe1980/collabmesh/conflict"
	"github.com/hupe1980/collabmesh/core"
)

// EditResult is the outcome of a remote edit attempt. Exactly one of
// Applied and Conflict is meaningful: when Conflict is non-nil the block was
// left untouched.
type EditResult struct {
	Block    core.DocBlock
	Applied  bool
	Conflict *core.Conflict
}

// ApplyLocalEdit replaces the content of a block on behalf of the local
// user. Local edits are always accepted.
func (s *Store) ApplyLocalEdit(blockID, content string) (core.DocBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.blockIndexLocked(blockID)
	if i < 0 {
		return core.DocBlock{}, fmt.Errorf("apply local edit %s: %w", blockID, ErrBlockNotFound)
	}
	return s.writeBlockLocked(i, content), nil
}

// ApplyRemoteEdit routes a remote edit through the conflict engine. The edit
// is either applied (version++) or turned into a pending conflict without
// touching the block. remoteVersion is carried for callers and logs; the
// gate does not compare it against the block version.
func (s *Store) ApplyRemoteEdit(blockID, content, remoteUserID string, remoteVersion int) (EditResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.blockIndexLocked(blockID)
	if i < 0 {
		return EditResult{}, fmt.Errorf("apply remote edit %s: %w", blockID, ErrBlockNotFound)
	}

	d := s.engine.Evaluate(conflict.Attempt{
		BlockID:            blockID,
		LocalTypingBlockID: s.localTyping,
		ForceConflict:      s.settings.ForceConflict,
	})
	if d.Collide {
		c := s.raiseConflictLocked(i, content, remoteUserID)
		s.logger.Info("Conflict detected", "conflict_id", c.ID, "block_id", blockID, "remote_user_id", remoteUserID, "remote_version", remoteVersion)
		return EditResult{Block: s.blocks[i], Conflict: &c}, nil
	}

	b := s.writeBlockLocked(i, content)
	return EditResult{Block: b, Applied: true}, nil
}

func (s *Store) writeBlockLocked(i int, content string) core.DocBlock {
	s.blocks[i].Content = content
	s.blocks[i].Version++
	return s.blocks[i]
}

// raiseConflictLocked records a collision for the block at index i. A block
// keeps at most one pending conflict: a further collision supersedes the
// remote side of the pending one and keeps its id.
func (s *Store) raiseConflictLocked(i int, remoteContent, remoteUserID string) core.Conflict {
	b := s.blocks[i]
	if ci := s.conflictForBlockLocked(b.ID); ci >= 0 {
		s.conflicts[ci].RemoteContent = remoteContent
		s.conflicts[ci].RemoteUserID = remoteUserID
		s.conflicts[ci].CreatedAt = s.now()
		s.recordLocked(fmt.Sprintf("Conflict updated in Paragraph %d", i+1), remoteUserID)
		return s.conflicts[ci]
	}
	c := core.Conflict{
		ID:            core.NewID(),
		BlockID:       b.ID,
		LocalContent:  b.Content,
		RemoteContent: remoteContent,
		RemoteUserID:  remoteUserID,
		CreatedAt:     s.now(),
	}
	s.conflicts = append(s.conflicts, c)
	s.recordLocked(fmt.Sprintf("Conflict detected in Paragraph %d", i+1), remoteUserID)
	return c
}

// TriggerConflict raises a conflict on a block as if a colliding remote edit
// had arrived, regardless of local editing. It backs the dev panel action.
func (s *Store) TriggerConflict(blockID, remoteContent, remoteUserID string) (core.Conflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.blockIndexLocked(blockID)
	if i < 0 {
		return core.Conflict{}, fmt.Errorf("trigger conflict %s: %w", blockID, ErrBlockNotFound)
	}
	return s.raiseConflictLocked(i, remoteContent, remoteUserID), nil
}

// ResolveConflict consumes a pending conflict. The final content is the
// conflict's local content, its remote content, or mergedContent depending
// on policy; it is written to the block (version++) and the conflict is
// removed. A merge without content is rejected and the conflict stays.
func (s *Store) ResolveConflict(conflictID string, policy core.ResolutionPolicy, mergedContent string) (core.DocBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ci := s.conflictIndexLocked(conflictID)
	if ci < 0 {
		return core.DocBlock{}, fmt.Errorf("resolve conflict %s: %w", conflictID, ErrConflictNotFound)
	}
	c := s.conflicts[ci]

	var final string
	switch policy {
	case core.KeepLocal:
		final = c.LocalContent
	case core.KeepRemote:
		final = c.RemoteContent
	case core.Merge:
		if mergedContent == "" {
			return core.DocBlock{}, fmt.Errorf("resolve conflict %s: %w", conflictID, ErrMergeContentRequired)
		}
		final = mergedContent
	default:
		return core.DocBlock{}, fmt.Errorf("resolve conflict %s: %w: %q", conflictID, ErrUnknownPolicy, policy)
	}

	bi := s.blockIndexLocked(c.BlockID)
	if bi < 0 {
		return core.DocBlock{}, fmt.Errorf("resolve conflict %s: %w", conflictID, ErrBlockNotFound)
	}
	b := s.writeBlockLocked(bi, final)
	s.conflicts = append(s.conflicts[:ci], s.conflicts[ci+1:]...)
	s.recordLocked(fmt.Sprintf("Conflict resolved in Paragraph %d (%s)", bi+1, policy), core.LocalUserID)
	s.logger.Info("Conflict resolved", "conflict_id", conflictID, "block_id", c.BlockID, "policy", string(policy))
	return b, nil
}

// AddBlock inserts an empty paragraph after afterID, or at the end when
// afterID is empty.
func (s *Store) AddBlock(afterID string) (core.DocBlock, error) {
	b := core.DocBlock{ID: "block-" + core.NewID(), Version: 1, Type: core.BlockParagraph}
	if err := s.InsertBlock(b, afterID); err != nil {
		return core.DocBlock{}, err
	}
	return b, nil
}

// InsertBlock inserts a fully formed block after afterID, or at the end
// when afterID is empty. Blocks are never reordered once inserted.
func (s *Store) InsertBlock(b core.DocBlock, afterID string) error {
	if b.ID == "" {
		return fmt.Errorf("insert block: %w", ErrMissingID)
	}
	if b.Version < 1 {
		b.Version = 1
	}
	if b.Type == "" {
		b.Type = core.BlockParagraph
	}
	if !b.Type.Valid() {
		return fmt.Errorf("insert block %s: %w: %q", b.ID, ErrInvalidBlockType, b.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blockIndexLocked(b.ID) >= 0 {
		return fmt.Errorf("insert block %s: %w", b.ID, ErrDuplicateID)
	}
	if afterID == "" {
		s.blocks = append(s.blocks, b)
		return nil
	}
	i := s.blockIndexLocked(afterID)
	if i < 0 {
		return fmt.Errorf("insert block after %s: %w", afterID, ErrBlockNotFound)
	}
	s.blocks = append(s.blocks, core.DocBlock{})
	copy(s.blocks[i+2:], s.blocks[i+1:])
	s.blocks[i+1] = b
	return nil
}

// SetBlockType changes the rendering type of a block. The content version
// is left unchanged.
func (s *Store) SetBlockType(blockID string, t core.BlockType) (core.DocBlock, error) {
	if !t.Valid() {
		return core.DocBlock{}, fmt.Errorf("set block type %s: %w: %q", blockID, ErrInvalidBlockType, t)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.blockIndexLocked(blockID)
	if i < 0 {
		return core.DocBlock{}, fmt.Errorf("set block type %s: %w", blockID, ErrBlockNotFound)
	}
	s.blocks[i].Type = t
	return s.blocks[i], nil
}

// SetLocalTyping marks blockID as the block the local user is editing. It
// also records the local selection.
func (s *Store) SetLocalTyping(blockID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blockIndexLocked(blockID) < 0 {
		return fmt.Errorf("focus %s: %w", blockID, ErrBlockNotFound)
	}
	s.localTyping = blockID
	s.selections[core.LocalUserID] = core.Selection{UserID: core.LocalUserID, BlockID: blockID, Mode: core.ModeDoc}
	return nil
}

// ClearLocalTyping marks the local user as no longer editing any block and
// removes the local selection.
func (s *Store) ClearLocalTyping() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localTyping = ""
	delete(s.selections, core.LocalUserID)
}

// SetSelection replaces the selection of sel.UserID.
func (s *Store) SetSelection(sel core.Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selections[sel.UserID] = sel
}

// ClearSelection removes the selection of userID.
func (s *Store) ClearSelection(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.selections, userID)
}

// AddStroke stores a new stroke. It must start with at least one point.
func (s *Store) AddStroke(st core.Stroke) (core.Stroke, error) {
	if len(st.Points) == 0 {
		return core.Stroke{}, fmt.Errorf("add stroke %s: %w", st.ID, ErrEmptyStroke)
	}
	if st.ID == "" {
		st.ID = core.NewID()
	}
	if st.Tool == "" {
		st.Tool = core.ToolPen
	}
	if !st.Tool.Valid() {
		return core.Stroke{}, fmt.Errorf("add stroke %s: %w: %q", st.ID, ErrInvalidTool, st.Tool)
	}
	st = st.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.strokeIndexLocked(st.ID) >= 0 {
		return core.Stroke{}, fmt.Errorf("add stroke %s: %w", st.ID, ErrDuplicateID)
	}
	s.strokes = append(s.strokes, st)
	return st.Clone(), nil
}

// AppendStrokePoint grows an existing stroke by one point.
func (s *Store) AppendStrokePoint(strokeID string, p core.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.strokeIndexLocked(strokeID)
	if i < 0 {
		return fmt.Errorf("append point to %s: %w", strokeID, ErrStrokeNotFound)
	}
	s.strokes[i].Points = append(s.strokes[i].Points, p)
	return nil
}

// AddComment stores a new comment. The anchor must match the mode and a
// block anchor must reference an existing block.
func (s *Store) AddComment(c core.Comment) (core.Comment, error) {
	if err := c.Validate(); err != nil {
		return core.Comment{}, fmt.Errorf("add comment: %w", err)
	}
	c = c.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = core.NewID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	if s.commentIndexLocked(c.ID) >= 0 {
		return core.Comment{}, fmt.Errorf("add comment %s: %w", c.ID, ErrDuplicateID)
	}
	if c.Mode == core.ModeDoc && s.blockIndexLocked(c.BlockID) < 0 {
		return core.Comment{}, fmt.Errorf("add comment on %s: %w", c.BlockID, ErrBlockNotFound)
	}
	s.comments = append(s.comments, c)
	return c.Clone(), nil
}

// ResolveComment sets the resolved flag of a comment.
func (s *Store) ResolveComment(id string, resolved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.commentIndexLocked(id)
	if i < 0 {
		return fmt.Errorf("resolve comment %s: %w", id, ErrCommentNotFound)
	}
	s.comments[i].Resolved = resolved
	return nil
}

// DeleteComment removes a comment.
func (s *Store) DeleteComment(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.commentIndexLocked(id)
	if i < 0 {
		return fmt.Errorf("delete comment %s: %w", id, ErrCommentNotFound)
	}
	s.comments = append(s.comments[:i], s.comments[i+1:]...)
	return nil
}

// RecordActivity pushes an entry onto the capped activity log.
func (s *Store) RecordActivity(message, userID string) core.ActivityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordLocked(message, userID)
}

// SetConnectionStatus changes the simulated link state.
func (s *Store) SetConnectionStatus(status core.ConnectionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// UpdateDevSettings applies a partial settings change. Listeners registered
// with OnDevSettingsChange run after the store lock is released.
func (s *Store) UpdateDevSettings(patch core.DevSettingsPatch) (core.DevSettings, error) {
	s.mu.Lock()
	next := patch.Apply(s.settings)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return s.DevSettings(), err
	}
	s.settings = next
	listeners := make([]func(core.DevSettings), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return next, nil
}

// OnDevSettingsChange registers fn to be called with every accepted
// settings change.
func (s *Store) OnDevSettingsChange(fn func(core.DevSettings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}
