// Package collabmesh provides a high-level façade over a simulated realtime
// collaboration session: one local participant and a set of autonomous agents
// editing a shared block document and drawing board over a lossy, delayed
// event bus. Most applications interact with this package by:
//  1. Creating a Session via New() (optionally overriding agents, settings and composer)
//  2. Starting it with Start(), which connects and launches the agents
//  3. Driving the local participant through Focus/Edit/Blur and the dev actions
//
// The façade wires transport, store, peers and agents together while keeping
// setup concise. All defaults are safe for local development and testing.
package collabmesh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/collabmesh/agent"
	"github.com/hupe1980/collabmesh/conflict"
	"github.com/hupe1980/collabmesh/core"
	"github.com/hupe1980/collabmesh/logging"
	"github.com/hupe1980/collabmesh/model"
	"github.com/hupe1980/collabmesh/peer"
	"github.com/hupe1980/collabmesh/session"
	"github.com/hupe1980/collabmesh/transport"
)

// SimulatedConflictText is the remote side of a dev panel conflict.
const SimulatedConflictText = "This is a simulated conflict from the Dev Panel."

var (
	// ErrClosed is returned when using a closed session.
	ErrClosed = errors.New("session is closed")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrNoAgents is returned by dev actions that need an agent.
	ErrNoAgents = errors.New("session has no agents")
)

// Options configures a Session.
type Options struct {
	// ReplicaID identifies this process on shared transports. Generated when empty.
	ReplicaID string
	// Agents is the number of simulated participants; negative means all.
	Agents int
	// Seed makes every random decision reproducible. 0 uses the global source.
	Seed uint64
	// Rand overrides the random source built from Seed.
	Rand core.Rand
	// Settings are the initial dev settings.
	Settings core.DevSettings
	// ConflictProbability is the collision chance while the local user edits
	// the block a remote edit targets.
	ConflictProbability float64

	// The initial connect takes ConnectDelayMin + [0, ConnectDelaySpan).
	ConnectDelayMin  time.Duration
	ConnectDelaySpan time.Duration
	// ReconnectDelay is how long SimulateReconnect stays offline.
	ReconnectDelay time.Duration

	// Behavior drives every agent.
	Behavior agent.Behavior
	// Composer writes agent text. Defaults to canned snippets.
	Composer model.Composer

	// Now is the time source for timestamps.
	Now func() time.Time
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Session is one running collaboration session.
type Session struct {
	opts   Options
	rand   core.Rand
	logger logging.Logger

	bus   *transport.Bus
	store *session.Store
	local *peer.Peer
	sim   *agent.Simulator

	detach func()

	mu      sync.Mutex
	timers  []*time.Timer
	started bool
	closed  bool
}

// New creates a session with optional overrides.
func New(optFns ...func(o *Options)) *Session {
	opts := Options{
		Agents:              -1,
		ConflictProbability: conflict.DefaultProbability,
		ConnectDelayMin:     600 * time.Millisecond,
		ConnectDelaySpan:    400 * time.Millisecond,
		ReconnectDelay:      2 * time.Second,
		Behavior:            agent.DefaultBehavior(),
		Now:                 time.Now,
		Logger:              logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.ReplicaID == "" {
		opts.ReplicaID = core.NewID()
	}

	r := opts.Rand
	if r == nil {
		if opts.Seed != 0 {
			r = core.NewRand(opts.Seed)
		} else {
			r = core.DefaultRand()
		}
	}

	if opts.Composer == nil {
		opts.Composer = model.NewCanned(func(o *model.CannedOptions) { o.Rand = r })
	}

	logger := logging.OrNoOp(opts.Logger)
	users := core.DefaultRoster(opts.Agents)

	bus := transport.New(func(o *transport.Options) {
		o.Latency = opts.Settings.Latency()
		o.PacketLoss = opts.Settings.PacketLoss
		o.Rand = r
		o.Logger = logging.ForComponent(logger, "transport")
	})

	store := session.New(func(o *session.Options) {
		o.ReplicaID = opts.ReplicaID
		o.Users = users
		o.Settings = opts.Settings
		o.Engine = conflict.New(func(o *conflict.Options) {
			o.Probability = opts.ConflictProbability
			o.Rand = r
		})
		o.Now = opts.Now
		o.Logger = logging.ForComponent(logger, "store")
	})
	store.OnDevSettingsChange(bus.Apply)

	peerLogger := logging.ForComponent(logger, "peer")
	var agents []*agent.Agent
	for i, u := range users {
		if !u.IsAgent {
			continue
		}
		p := peer.New(u, store, bus, logging.ForUser(peerLogger, u.ID))
		agents = append(agents, agent.New(p, i-1, func(o *agent.Options) {
			o.Behavior = opts.Behavior
			o.Composer = opts.Composer
			o.Rand = r
			o.Logger = logging.ForUser(logging.ForComponent(logger, "agent"), u.ID)
		}))
	}

	s := &Session{
		opts:   opts,
		rand:   r,
		logger: logger,
		bus:    bus,
		store:  store,
		local:  peer.New(core.LocalUser, store, bus, logging.ForUser(peerLogger, core.LocalUserID)),
		sim:    agent.NewSimulator(logging.ForComponent(logger, "simulator"), agents...),
	}
	s.detach = store.Attach(bus)
	return s
}

// ID returns the replica identifier.
func (s *Session) ID() string { return s.store.ID() }

// Store returns the session's store replica.
func (s *Session) Store() *session.Store { return s.store }

// Bus returns the session transport.
func (s *Session) Bus() *transport.Bus { return s.bus }

// Local returns the local participant.
func (s *Session) Local() *peer.Peer { return s.local }

// Simulator returns the agent simulator.
func (s *Session) Simulator() *agent.Simulator { return s.sim }

// Start connects the session and launches the agents. Agents stay idle until
// the connect delay has elapsed and the status is synced.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	s.local.SetConnectionStatus(core.StatusConnecting)
	delay := s.opts.ConnectDelayMin + time.Duration(s.rand.Float64()*float64(s.opts.ConnectDelaySpan))
	s.afterLocked(delay, func() {
		s.local.SetConnectionStatus(core.StatusSynced)
		s.logger.Info("Session synced", "replica_id", s.ID(), "delay", delay)
	})

	return s.sim.Start(ctx)
}

// afterLocked schedules fn unless the session closes first.
func (s *Session) afterLocked(d time.Duration, fn func()) {
	s.timers = append(s.timers, time.AfterFunc(d, func() {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if !closed {
			fn()
		}
	}))
}

// SimulateReconnect drops the connection and restores it after the
// reconnect delay. Agents idle in between.
func (s *Session) SimulateReconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.local.SetConnectionStatus(core.StatusReconnecting)
	s.local.RecordActivity("Connection lost, reconnecting...")
	s.afterLocked(s.opts.ReconnectDelay, func() {
		s.local.SetConnectionStatus(core.StatusSynced)
		s.local.RecordActivity("Connection restored")
	})
}

// TriggerConflict raises a conflict on a random block from the first agent,
// regardless of what the local user is doing.
func (s *Session) TriggerConflict() (core.Conflict, error) {
	agents := s.sim.Agents()
	if len(agents) == 0 {
		return core.Conflict{}, ErrNoAgents
	}
	blocks := s.store.Blocks()
	if len(blocks) == 0 {
		return core.Conflict{}, fmt.Errorf("trigger conflict: %w", session.ErrBlockNotFound)
	}
	i := s.rand.IntN(len(blocks))

	c, err := s.store.TriggerConflict(blocks[i].ID, SimulatedConflictText, agents[0].UserID())
	if err != nil {
		return core.Conflict{}, err
	}
	s.local.RecordActivity(fmt.Sprintf("Dev: Triggered conflict in Paragraph %d", i+1))
	s.bus.Publish(core.NewEvent(s.ID(), c))
	return c, nil
}

// Subscribe registers h for every delivered event.
func (s *Session) Subscribe(h transport.Handler) func() { return s.bus.Subscribe(h) }

// PublishRemote injects an event from outside this replica. Events without
// a foreign origin are tagged so the local store applies them.
func (s *Session) PublishRemote(ev core.Event) {
	if ev.Origin == "" || ev.Origin == s.ID() {
		ev.Origin = "remote"
	}
	s.bus.Publish(ev)
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() session.Snapshot { return s.store.Snapshot() }

// UpdateDevSettings applies a partial settings update. Latency and loss
// take effect for later publishes.
func (s *Session) UpdateDevSettings(patch core.DevSettingsPatch) (core.DevSettings, error) {
	return s.store.UpdateDevSettings(patch)
}

// ResolveConflict resolves a pending conflict as the local user.
func (s *Session) ResolveConflict(id string, policy core.ResolutionPolicy, merged string) (core.DocBlock, error) {
	return s.local.ResolveConflict(id, policy, merged)
}

// Focus starts local editing of a block.
func (s *Session) Focus(blockID string) error { return s.local.Focus(blockID) }

// Blur stops local editing.
func (s *Session) Blur() { s.local.Blur() }

// Edit replaces a block's content as the local user.
func (s *Session) Edit(blockID, content string) (core.DocBlock, error) {
	res, err := s.local.Edit(blockID, content)
	if err != nil {
		return core.DocBlock{}, err
	}
	return res.Block, nil
}

// Close stops the agents, cancels pending connection timers and every
// delayed delivery. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
	s.mu.Unlock()

	if err := s.sim.Stop(); err != nil && !errors.Is(err, agent.ErrNotRunning) {
		return err
	}
	s.detach()
	s.bus.Close()
	s.logger.Info("Session closed", "replica_id", s.ID())
	return nil
}
