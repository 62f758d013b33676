package collabmesh

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/collabmesh/core"
	"github.com/hupe1980/collabmesh/gateway"
	"github.com/hupe1980/collabmesh/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ gateway.Backend = (*Session)(nil)

func messages(s *Session) []string {
	var out []string
	for _, e := range s.Store().Activity() {
		out = append(out, e.Message)
	}
	return out
}

func TestNew_Defaults(t *testing.T) {
	s := New()
	defer func() { require.NoError(t, s.Close()) }()

	assert.NotEmpty(t, s.ID())
	assert.Len(t, s.Store().Users(), len(core.AgentUsers)+1)
	assert.Len(t, s.Simulator().Agents(), len(core.AgentUsers))
	assert.Equal(t, core.StatusConnecting, s.Store().ConnectionStatus())
	assert.True(t, s.Local().IsLocal())
}

func TestNew_AgentCount(t *testing.T) {
	s := New(func(o *Options) { o.Agents = 2 })
	defer s.Close()

	agents := s.Simulator().Agents()
	require.Len(t, agents, 2)
	assert.Equal(t, "bot-aisha", agents[0].UserID())
	assert.Equal(t, "bot-ravi", agents[1].UserID())
}

func TestSession_StartConnects(t *testing.T) {
	s := New(func(o *Options) {
		o.ConnectDelayMin = 5 * time.Millisecond
		o.ConnectDelaySpan = 0
		o.Seed = 7
	})

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
	assert.True(t, s.Simulator().Running())

	assert.Eventually(t, func() bool {
		return s.Store().ConnectionStatus() == core.StatusSynced
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.False(t, s.Simulator().Running())
	assert.ErrorIs(t, s.Start(context.Background()), ErrClosed)
}

func TestSession_CloseCancelsConnect(t *testing.T) {
	s := New(func(o *Options) {
		o.ConnectDelayMin = 30 * time.Millisecond
		o.ConnectDelaySpan = 0
	})
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Close())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, core.StatusConnecting, s.Store().ConnectionStatus())
}

func TestSession_SimulateReconnect(t *testing.T) {
	s := New(func(o *Options) { o.ReconnectDelay = 10 * time.Millisecond })
	defer s.Close()
	s.Store().SetConnectionStatus(core.StatusSynced)

	s.SimulateReconnect()
	assert.Equal(t, core.StatusReconnecting, s.Store().ConnectionStatus())
	assert.Contains(t, messages(s), "Connection lost, reconnecting...")

	assert.Eventually(t, func() bool {
		return s.Store().ConnectionStatus() == core.StatusSynced
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, messages(s), "Connection restored")
}

func TestSession_TriggerConflict(t *testing.T) {
	s := New(func(o *Options) { o.Rand = testutil.NewScriptedRand(0.5).WithInts(1) })
	defer s.Close()

	rec := &testutil.Recorder{}
	s.Subscribe(rec.Handle)

	c, err := s.TriggerConflict()
	require.NoError(t, err)
	assert.Equal(t, "block-2", c.BlockID)
	assert.Equal(t, "bot-aisha", c.RemoteUserID)
	assert.Equal(t, SimulatedConflictText, c.RemoteContent)
	assert.Contains(t, messages(s), "Dev: Triggered conflict in Paragraph 2")
	assert.Len(t, rec.OfType(core.EventConflictDetected), 1)

	b, err := s.ResolveConflict(c.ID, core.KeepRemote, "")
	require.NoError(t, err)
	assert.Equal(t, SimulatedConflictText, b.Content)
	assert.Empty(t, s.Store().Conflicts())
	assert.Len(t, rec.OfType(core.EventConflictResolved), 1)
}

func TestSession_TriggerConflictWithoutAgents(t *testing.T) {
	s := New(func(o *Options) { o.Agents = 0 })
	defer s.Close()

	_, err := s.TriggerConflict()
	assert.ErrorIs(t, err, ErrNoAgents)
}

func TestSession_PublishRemote(t *testing.T) {
	s := New()
	defer s.Close()

	s.PublishRemote(testutil.DocOpEvent("", "block-3", "from outside", "bot-chen", 2))
	b, err := s.Store().Block("block-3")
	require.NoError(t, err)
	assert.Equal(t, "from outside", b.Content)

	// own origin is rewritten so the event is not mistaken for an echo
	s.PublishRemote(testutil.DocOpEvent(s.ID(), "block-3", "again", "bot-chen", 3))
	b, _ = s.Store().Block("block-3")
	assert.Equal(t, "again", b.Content)
}

func TestSession_LocalEditing(t *testing.T) {
	s := New()
	defer s.Close()

	require.NoError(t, s.Focus("block-2"))
	assert.Equal(t, "block-2", s.Store().LocalTypingBlockID())

	b, err := s.Edit("block-2", "typed locally")
	require.NoError(t, err)
	assert.Equal(t, 2, b.Version)

	s.Blur()
	assert.Empty(t, s.Store().LocalTypingBlockID())

	_, err = s.Edit("missing", "x")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.Focus("missing"), core.ErrNotFound)
}

func TestSession_UpdateDevSettings(t *testing.T) {
	s := New()
	defer s.Close()

	latency := 40
	loss := 0.25
	got, err := s.UpdateDevSettings(core.DevSettingsPatch{LatencyMS: &latency, PacketLoss: &loss})
	require.NoError(t, err)
	assert.Equal(t, 40, got.LatencyMS)
	assert.Equal(t, 40*time.Millisecond, s.Bus().Latency())
	assert.InDelta(t, 0.25, s.Bus().PacketLoss(), 1e-9)
	assert.Equal(t, got, s.Snapshot().Settings)

	bad := 2.0
	_, err = s.UpdateDevSettings(core.DevSettingsPatch{PacketLoss: &bad})
	assert.ErrorIs(t, err, core.ErrInvalidSettings)
}
