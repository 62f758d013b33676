package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType is the wire tag of an event.
type EventType string

const (
	EventPresenceUpdate   EventType = "presence:update"
	EventCursorUpdate     EventType = "cursor:update"
	EventSelectionUpdate  EventType = "selection:update"
	EventDocOp            EventType = "doc:op"
	EventDocBlockType     EventType = "doc:block-type"
	EventDocBlockAdd      EventType = "doc:block-add"
	EventBoardStroke      EventType = "board:stroke"
	EventBoardStrokePoint EventType = "board:stroke:point"
	EventConflictDetected EventType = "conflict:detected"
	EventConflictResolved EventType = "conflict:resolved"
	EventConnectionStatus EventType = "connection:status"
	EventCommentAdd       EventType = "comment:add"
	EventCommentResolve   EventType = "comment:resolve"
	EventCommentDelete    EventType = "comment:delete"
)

// Payload is the typed body of an event. The set of payloads is closed;
// every implementation lives in this package.
type Payload interface {
	EventType() EventType
	clonePayload() Payload
}

// Event is the unit exchanged over the transport. After publication it
// should be treated as immutable; subscribers always receive a Clone.
//
// Origin names the store replica that already applied the change locally,
// so that replica's remote-apply path can skip its own echo. Events coming
// from outside any replica (for example a websocket client) leave it empty.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Origin    string    `json:"origin,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"-"`
}

// NewEvent wraps a payload into an event stamped with a fresh id and the
// current UTC time.
func NewEvent(origin string, p Payload) Event {
	return Event{
		ID:        NewID(),
		Type:      p.EventType(),
		Origin:    origin,
		Timestamp: time.Now().UTC(),
		Payload:   p,
	}
}

// Clone returns a deep copy of the event so one subscriber cannot alter
// what another one observes.
func (e Event) Clone() Event {
	if e.Payload != nil {
		e.Payload = e.Payload.clonePayload()
	}
	return e
}

// NewID generates a new unique identifier.
func NewID() string { return uuid.NewString() }

// PresenceUpdate carries a partial presence change.
type PresenceUpdate struct {
	UserID   string        `json:"userId"`
	Presence PresencePatch `json:"presence"`
}

// CursorUpdate carries a full cursor replacement.
type CursorUpdate struct {
	UserID string         `json:"userId"`
	Cursor CursorPosition `json:"cursor"`
}

// SelectionUpdate focuses a block. An empty BlockID clears the selection.
type SelectionUpdate struct {
	UserID  string `json:"userId"`
	BlockID string `json:"blockId"`
	Mode    Mode   `json:"mode"`
}

// DocOp replaces the content of a block.
type DocOp struct {
	BlockID string `json:"blockId"`
	Content string `json:"content"`
	Version int    `json:"version"`
	UserID  string `json:"userId"`
}

// BlockTypeChange switches the rendering type of a block.
type BlockTypeChange struct {
	BlockID string    `json:"blockId"`
	Type    BlockType `json:"type"`
	UserID  string    `json:"userId"`
}

// BlockAdd inserts a new block after AfterID, or at the end when empty.
type BlockAdd struct {
	Block   DocBlock `json:"block"`
	AfterID string   `json:"afterId,omitempty"`
	UserID  string   `json:"userId"`
}

// StrokePoint appends one point to an existing stroke.
type StrokePoint struct {
	StrokeID string `json:"strokeId"`
	Point    Point  `json:"point"`
}

// ConflictResolved announces that a conflict was consumed.
type ConflictResolved struct {
	ConflictID string `json:"conflictId"`
}

// ConnectionStatusChange announces a new connection status.
type ConnectionStatusChange struct {
	Status ConnectionStatus `json:"status"`
}

// CommentResolve toggles the resolved flag of a comment.
type CommentResolve struct {
	CommentID string `json:"commentId"`
	Resolved  bool   `json:"resolved"`
}

// CommentDelete removes a comment.
type CommentDelete struct {
	CommentID string `json:"commentId"`
}

func (PresenceUpdate) EventType() EventType         { return EventPresenceUpdate }
func (CursorUpdate) EventType() EventType           { return EventCursorUpdate }
func (SelectionUpdate) EventType() EventType        { return EventSelectionUpdate }
func (DocOp) EventType() EventType                  { return EventDocOp }
func (BlockTypeChange) EventType() EventType        { return EventDocBlockType }
func (BlockAdd) EventType() EventType               { return EventDocBlockAdd }
func (Stroke) EventType() EventType                 { return EventBoardStroke }
func (StrokePoint) EventType() EventType            { return EventBoardStrokePoint }
func (Conflict) EventType() EventType               { return EventConflictDetected }
func (ConflictResolved) EventType() EventType       { return EventConflictResolved }
func (ConnectionStatusChange) EventType() EventType { return EventConnectionStatus }
func (Comment) EventType() EventType                { return EventCommentAdd }
func (CommentResolve) EventType() EventType         { return EventCommentResolve }
func (CommentDelete) EventType() EventType          { return EventCommentDelete }

func (p PresenceUpdate) clonePayload() Payload {
	p.Presence = p.Presence.Clone()
	return p
}

func (p CursorUpdate) clonePayload() Payload           { return p }
func (p SelectionUpdate) clonePayload() Payload        { return p }
func (p DocOp) clonePayload() Payload                  { return p }
func (p BlockTypeChange) clonePayload() Payload        { return p }
func (p BlockAdd) clonePayload() Payload               { return p }
func (s Stroke) clonePayload() Payload                 { return s.Clone() }
func (p StrokePoint) clonePayload() Payload            { return p }
func (c Conflict) clonePayload() Payload               { return c }
func (p ConflictResolved) clonePayload() Payload       { return p }
func (p ConnectionStatusChange) clonePayload() Payload { return p }
func (c Comment) clonePayload() Payload                { return c.Clone() }
func (p CommentResolve) clonePayload() Payload         { return p }
func (p CommentDelete) clonePayload() Payload          { return p }
