package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/collabmesh/logging"
)

var (
	// ErrAlreadyRunning is returned by Start on a running simulator.
	ErrAlreadyRunning = errors.New("simulator is already running")
	// ErrNotRunning is returned by Stop on an idle simulator.
	ErrNotRunning = errors.New("simulator is not running")
)

// Simulator owns the lifecycle of a set of agents. All exported methods are
// goroutine-safe.
type Simulator struct {
	agents []*Agent
	logger logging.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewSimulator groups agents under one lifecycle.
func NewSimulator(logger logging.Logger, agents ...*Agent) *Simulator {
	return &Simulator{agents: agents, logger: logging.OrNoOp(logger)}
}

// Agents returns the managed agents.
func (s *Simulator) Agents() []*Agent {
	out := make([]*Agent, len(s.agents))
	copy(out, s.agents)
	return out
}

// Running reports whether the agents are active.
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start launches every agent. The agents stop when ctx is done or Stop is
// called.
func (s *Simulator) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, a := range s.agents {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			a.Run(runCtx)
		}()
	}

	s.logger.Info("Agents started", "count", len(s.agents))
	return nil
}

// Stop cancels every loop, think timer and in-flight stroke and waits for
// the agents to return.
func (s *Simulator) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Agents stopped", "count", len(s.agents))
	return nil
}
