package session

import (
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/collabmesh/conflict"
	"github.com/hupe1980/collabmesh/core"
	"github.com/hupe1980/collabmesh/logging"
	"github.com/hupe1980/collabmesh/presence"
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// ReplicaID identifies this store on the transport. Generated if empty.
	ReplicaID string
	// Users is the fixed roster. Defaults to core.DefaultRoster(-1).
	Users []core.User
	// Blocks is the initial document. Defaults to core.InitialBlocks().
	Blocks []core.DocBlock
	// Settings are the initial dev settings.
	Settings core.DevSettings
	// ActivityCapacity bounds the activity log.
	ActivityCapacity int
	// Engine is the conflict gate for remote edits.
	Engine *conflict.Engine
	// Presence overrides the presence tracker built from Users.
	Presence *presence.Tracker
	// Now is the time source for timestamps.
	Now func() time.Time
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Store is one replica of the shared session state. Public methods are safe
// for concurrent use; every mutator is applied atomically.
type Store struct {
	id       string
	users    []core.User
	presence *presence.Tracker
	engine   *conflict.Engine
	now      func() time.Time
	logger   logging.Logger

	mu          sync.Mutex
	blocks      []core.DocBlock
	strokes     []core.Stroke
	comments    []core.Comment
	conflicts   []core.Conflict
	selections  map[string]core.Selection
	activity    *activityLog
	settings    core.DevSettings
	status      core.ConnectionStatus
	localTyping string
	listeners   []func(core.DevSettings)
}

// New constructs a Store with optional overrides.
func New(optFns ...func(o *Options)) *Store {
	opts := Options{
		Users:            core.DefaultRoster(-1),
		Blocks:           core.InitialBlocks(),
		ActivityCapacity: DefaultActivityCapacity,
		Now:              time.Now,
		Logger:           logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.ReplicaID == "" {
		opts.ReplicaID = core.NewID()
	}
	if opts.Engine == nil {
		opts.Engine = conflict.New()
	}
	if opts.Presence == nil {
		now := opts.Now
		opts.Presence = presence.New(opts.Users, func(o *presence.Options) { o.Now = now })
	}

	users := make([]core.User, len(opts.Users))
	copy(users, opts.Users)
	blocks := make([]core.DocBlock, len(opts.Blocks))
	copy(blocks, opts.Blocks)

	return &Store{
		id:         opts.ReplicaID,
		users:      users,
		presence:   opts.Presence,
		engine:     opts.Engine,
		now:        opts.Now,
		logger:     logging.OrNoOp(opts.Logger),
		blocks:     blocks,
		selections: make(map[string]core.Selection),
		activity:   newActivityLog(opts.ActivityCapacity),
		settings:   opts.Settings,
		status:     core.StatusConnecting,
	}
}

// ID returns the replica identifier used as event origin.
func (s *Store) ID() string { return s.id }

// Presence returns the presence tracker owned by this replica.
func (s *Store) Presence() *presence.Tracker { return s.presence }

// Users returns the fixed roster.
func (s *Store) Users() []core.User {
	out := make([]core.User, len(s.users))
	copy(out, s.users)
	return out
}

// User looks up a roster entry.
func (s *Store) User(id string) (core.User, bool) {
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return core.User{}, false
}

// Snapshot is a point-in-time deep copy of the replica state.
type Snapshot struct {
	ReplicaID          string                `json:"replicaId"`
	TakenAt            time.Time             `json:"takenAt"`
	ConnectionStatus   core.ConnectionStatus `json:"connectionStatus"`
	Settings           core.DevSettings      `json:"settings"`
	LocalTypingBlockID string                `json:"localTypingBlockId,omitempty"`
	Users              []core.User           `json:"users"`
	Presences          []core.Presence       `json:"presences"`
	Selections         []core.Selection      `json:"selections"`
	Blocks             []core.DocBlock       `json:"blocks"`
	Strokes            []core.Stroke         `json:"strokes"`
	Comments           []core.Comment        `json:"comments"`
	Conflicts          []core.Conflict       `json:"conflicts"`
	Activity           []core.ActivityEntry  `json:"activity"`
}

// Snapshot returns a consistent copy of the store state. Presence is owned
// by the tracker and read right after the store state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		ReplicaID:          s.id,
		TakenAt:            s.now(),
		ConnectionStatus:   s.status,
		Settings:           s.settings,
		LocalTypingBlockID: s.localTyping,
		Users:              s.Users(),
		Selections:         s.selectionsLocked(),
		Blocks:             s.blocksLocked(),
		Strokes:            s.strokesLocked(),
		Comments:           s.commentsLocked(),
		Conflicts:          s.conflictsLocked(),
		Activity:           s.activity.list(),
	}
	s.mu.Unlock()

	snap.Presences = s.presence.All()
	return snap
}

// Blocks returns the document blocks in order.
func (s *Store) Blocks() []core.DocBlock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocksLocked()
}

// Block returns a single block.
func (s *Store) Block(id string) (core.DocBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.blockIndexLocked(id)
	if i < 0 {
		return core.DocBlock{}, ErrBlockNotFound
	}
	return s.blocks[i], nil
}

// Strokes returns every stroke in creation order.
func (s *Store) Strokes() []core.Stroke {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strokesLocked()
}

// Stroke returns a single stroke.
func (s *Store) Stroke(id string) (core.Stroke, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.strokeIndexLocked(id)
	if i < 0 {
		return core.Stroke{}, ErrStrokeNotFound
	}
	return s.strokes[i].Clone(), nil
}

// Comments returns every comment in creation order.
func (s *Store) Comments() []core.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commentsLocked()
}

// Conflicts returns the pending conflicts, oldest first.
func (s *Store) Conflicts() []core.Conflict {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conflictsLocked()
}

// Selections returns the live selections ordered by user id.
func (s *Store) Selections() []core.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectionsLocked()
}

// Activity returns the activity log, newest first.
func (s *Store) Activity() []core.ActivityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activity.list()
}

// DevSettings returns the current dev settings.
func (s *Store) DevSettings() core.DevSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// ConnectionStatus returns the simulated link state.
func (s *Store) ConnectionStatus() core.ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LocalTypingBlockID returns the block the local user is editing, or "".
func (s *Store) LocalTypingBlockID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localTyping
}

func (s *Store) blocksLocked() []core.DocBlock {
	out := make([]core.DocBlock, len(s.blocks))
	copy(out, s.blocks)
	return out
}

func (s *Store) strokesLocked() []core.Stroke {
	out := make([]core.Stroke, len(s.strokes))
	for i, st := range s.strokes {
		out[i] = st.Clone()
	}
	return out
}

func (s *Store) commentsLocked() []core.Comment {
	out := make([]core.Comment, len(s.comments))
	for i, c := range s.comments {
		out[i] = c.Clone()
	}
	return out
}

func (s *Store) conflictsLocked() []core.Conflict {
	out := make([]core.Conflict, len(s.conflicts))
	copy(out, s.conflicts)
	return out
}

func (s *Store) selectionsLocked() []core.Selection {
	out := make([]core.Selection, 0, len(s.selections))
	for _, sel := range s.selections {
		out = append(out, sel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (s *Store) blockIndexLocked(id string) int {
	for i, b := range s.blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) strokeIndexLocked(id string) int {
	for i, st := range s.strokes {
		if st.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) commentIndexLocked(id string) int {
	for i, c := range s.comments {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) conflictIndexLocked(id string) int {
	for i, c := range s.conflicts {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) conflictForBlockLocked(blockID string) int {
	for i, c := range s.conflicts {
		if c.BlockID == blockID {
			return i
		}
	}
	return -1
}

// recordLocked appends an activity entry; caller must hold the lock.
func (s *Store) recordLocked(message, userID string) core.ActivityEntry {
	e := core.ActivityEntry{ID: core.NewID(), Message: message, Timestamp: s.now(), UserID: userID}
	s.activity.push(e)
	return e
}
