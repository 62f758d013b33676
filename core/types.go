package core

import (
	"fmt"
	"time"
)

// Mode identifies which shared surface a participant is working on.
type Mode string

const (
	// ModeDoc is the block document surface.
	ModeDoc Mode = "doc"
	// ModeBoard is the whiteboard surface.
	ModeBoard Mode = "board"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m == ModeDoc || m == ModeBoard }

// Toggle returns the other mode.
func (m Mode) Toggle() Mode {
	if m == ModeDoc {
		return ModeBoard
	}
	return ModeDoc
}

// Label returns the human readable surface name used in activity messages.
func (m Mode) Label() string {
	if m == ModeBoard {
		return "Whiteboard"
	}
	return "Doc"
}

// BlockType is the rendering kind of a document block.
type BlockType string

const (
	BlockParagraph BlockType = "paragraph"
	BlockHeading   BlockType = "heading"
	BlockCode      BlockType = "code"
)

// Valid reports whether t is a known block type.
func (t BlockType) Valid() bool {
	switch t {
	case BlockParagraph, BlockHeading, BlockCode:
		return true
	default:
		return false
	}
}

// Tool is the whiteboard drawing tool of a stroke.
type Tool string

const (
	ToolPen    Tool = "pen"
	ToolEraser Tool = "eraser"
)

// Valid reports whether t is a known drawing tool.
func (t Tool) Valid() bool { return t == ToolPen || t == ToolEraser }

// ConnectionStatus is the simulated link state of the local participant.
type ConnectionStatus string

const (
	StatusConnecting   ConnectionStatus = "connecting"
	StatusSynced       ConnectionStatus = "synced"
	StatusReconnecting ConnectionStatus = "reconnecting"
)

// ResolutionPolicy selects the final content when a conflict is resolved.
type ResolutionPolicy string

const (
	// KeepLocal keeps the content the local user had when the conflict was raised.
	KeepLocal ResolutionPolicy = "local"
	// KeepRemote takes the incoming remote content.
	KeepRemote ResolutionPolicy = "remote"
	// Merge takes caller supplied merged content.
	Merge ResolutionPolicy = "merge"
)

// User is an immutable participant identity.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarRef string `json:"avatar"`
	Color     string `json:"color"`
	IsAgent   bool   `json:"isAgent"`
}

// Point is a 2D coordinate on either surface.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CursorPosition is an ephemeral pointer location. BlockID is only set in
// doc mode and names the focused block.
type CursorPosition struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Mode    Mode    `json:"mode"`
	BlockID string  `json:"blockId,omitempty"`
}

// Point returns the cursor coordinates.
func (c CursorPosition) Point() Point { return Point{X: c.X, Y: c.Y} }

// Presence is the liveness, location and typing state of a user.
type Presence struct {
	UserID     string          `json:"userId"`
	Cursor     *CursorPosition `json:"cursor"`
	IsTyping   bool            `json:"isTyping"`
	ActiveMode Mode            `json:"activeMode"`
	LastSeenAt time.Time       `json:"lastSeen"`
}

// Clone returns a copy that shares no pointers with p.
func (p Presence) Clone() Presence {
	if p.Cursor != nil {
		c := *p.Cursor
		p.Cursor = &c
	}
	return p
}

// PresencePatch is a partial presence update. Nil fields are left untouched.
type PresencePatch struct {
	Cursor     *CursorPosition `json:"cursor,omitempty"`
	IsTyping   *bool           `json:"isTyping,omitempty"`
	ActiveMode *Mode           `json:"activeMode,omitempty"`
}

// Clone returns a deep copy of the patch.
func (p PresencePatch) Clone() PresencePatch {
	if p.Cursor != nil {
		c := *p.Cursor
		p.Cursor = &c
	}
	if p.IsTyping != nil {
		v := *p.IsTyping
		p.IsTyping = &v
	}
	if p.ActiveMode != nil {
		m := *p.ActiveMode
		p.ActiveMode = &m
	}
	return p
}

// TypingPatch builds a patch that only changes the typing flag.
func TypingPatch(typing bool) PresencePatch { return PresencePatch{IsTyping: &typing} }

// ModePatch builds a patch that only changes the active mode.
func ModePatch(m Mode) PresencePatch { return PresencePatch{ActiveMode: &m} }

// Selection is the block a user currently has focused.
type Selection struct {
	UserID  string `json:"userId"`
	BlockID string `json:"blockId"`
	Mode    Mode   `json:"mode"`
}

// DocBlock is an atomic unit of the shared document. Version starts at 1 and
// increments on every accepted content mutation.
type DocBlock struct {
	ID      string    `json:"id"`
	Content string    `json:"content"`
	Version int       `json:"version"`
	Type    BlockType `json:"type"`
}

// Stroke is a whiteboard path that only ever grows by appended points.
type Stroke struct {
	ID     string  `json:"id"`
	UserID string  `json:"userId"`
	Color  string  `json:"color"`
	Points []Point `json:"points"`
	Tool   Tool    `json:"tool"`
}

// Clone returns a copy with its own point slice.
func (s Stroke) Clone() Stroke {
	pts := make([]Point, len(s.Points))
	copy(pts, s.Points)
	s.Points = pts
	return s
}

// CommentAnchor pins a comment to a block (doc mode) or a canvas point
// (board mode). Exactly one kind is set.
type CommentAnchor struct {
	BlockID string   `json:"blockId,omitempty"`
	X       *float64 `json:"x,omitempty"`
	Y       *float64 `json:"y,omitempty"`
}

// BlockAnchor anchors a comment to a document block.
func BlockAnchor(blockID string) CommentAnchor { return CommentAnchor{BlockID: blockID} }

// PointAnchor anchors a comment to a whiteboard position.
func PointAnchor(x, y float64) CommentAnchor { return CommentAnchor{X: &x, Y: &y} }

// Point returns the board anchor position and whether one is set.
func (a CommentAnchor) Point() (Point, bool) {
	if a.X == nil || a.Y == nil {
		return Point{}, false
	}
	return Point{X: *a.X, Y: *a.Y}, true
}

// Comment is a note pinned to one of the shared surfaces.
type Comment struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Mode      Mode      `json:"mode"`
	CreatedAt time.Time `json:"createdAt"`
	Text      string    `json:"text"`
	Resolved  bool      `json:"resolved"`
	CommentAnchor
}

// Clone returns a copy that shares no anchor pointers with c.
func (c Comment) Clone() Comment {
	if c.X != nil {
		x := *c.X
		c.X = &x
	}
	if c.Y != nil {
		y := *c.Y
		c.Y = &y
	}
	return c
}

// Validate checks that the anchor kind matches the comment mode.
func (c Comment) Validate() error {
	_, hasPoint := c.Point()
	switch c.Mode {
	case ModeDoc:
		if c.BlockID == "" || c.X != nil || c.Y != nil {
			return fmt.Errorf("%w: doc comment must be anchored to a block only", ErrInvalidAnchor)
		}
	case ModeBoard:
		if !hasPoint || c.BlockID != "" {
			return fmt.Errorf("%w: board comment must be anchored to a point only", ErrInvalidAnchor)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidAnchor, c.Mode)
	}
	return nil
}

// Conflict is a detected collision between local editing and an incoming
// remote edit on the same block.
type Conflict struct {
	ID            string    `json:"id"`
	BlockID       string    `json:"blockId"`
	LocalContent  string    `json:"localContent"`
	RemoteContent string    `json:"remoteContent"`
	RemoteUserID  string    `json:"remoteUserId"`
	CreatedAt     time.Time `json:"timestamp"`
}

// ActivityEntry is a single line of the session activity feed.
type ActivityEntry struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId,omitempty"`
}

// DevSettings are the process-wide simulation tunables.
type DevSettings struct {
	LatencyMS     int     `json:"latencyMs" yaml:"latency_ms" env:"LATENCY_MS"`
	PacketLoss    float64 `json:"packetLoss" yaml:"packet_loss" env:"PACKET_LOSS"`
	ForceConflict bool    `json:"forceConflict" yaml:"force_conflict" env:"FORCE_CONFLICT"`
}

// Latency returns the configured latency as a duration.
func (s DevSettings) Latency() time.Duration { return time.Duration(s.LatencyMS) * time.Millisecond }

// Validate checks the ranges of the tunables.
func (s DevSettings) Validate() error {
	if s.LatencyMS < 0 {
		return fmt.Errorf("%w: latency must be >= 0, got %d", ErrInvalidSettings, s.LatencyMS)
	}
	if s.PacketLoss < 0 || s.PacketLoss > 1 {
		return fmt.Errorf("%w: packet loss must be within [0,1], got %v", ErrInvalidSettings, s.PacketLoss)
	}
	return nil
}

// DevSettingsPatch is a partial settings update used for hot reloads.
type DevSettingsPatch struct {
	LatencyMS     *int     `json:"latencyMs,omitempty"`
	PacketLoss    *float64 `json:"packetLoss,omitempty"`
	ForceConflict *bool    `json:"forceConflict,omitempty"`
}

// Apply returns s with the non-nil fields of p applied.
func (p DevSettingsPatch) Apply(s DevSettings) DevSettings {
	if p.LatencyMS != nil {
		s.LatencyMS = *p.LatencyMS
	}
	if p.PacketLoss != nil {
		s.PacketLoss = *p.PacketLoss
	}
	if p.ForceConflict != nil {
		s.ForceConflict = *p.ForceConflict
	}
	return s
}
