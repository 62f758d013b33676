package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/collabmesh/core"
	"github.com/hupe1980/collabmesh/internal/testutil"
	"github.com/hupe1980/collabmesh/transport"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	channel string
	data    []byte
}

type fakeClient struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakeClient) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.msgs = append(f.msgs, published{channel, message.([]byte)})
	return redis.NewIntResult(1, nil)
}

func (f *fakeClient) Subscribe(context.Context, ...string) *redis.PubSub {
	panic("not used")
}

func (f *fakeClient) published() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.msgs...)
}

func startRelay(t *testing.T, r *Relay) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}

func TestRelay_MirrorsOwnEventsOnly(t *testing.T) {
	bus := transport.New()
	client := &fakeClient{}
	r := New(client, bus, func(o *Options) {
		o.ReplicaID = "replica-a"
		o.Channel = "room"
	})
	startRelay(t, r)

	// wait until Run has subscribed
	require.Eventually(t, func() bool {
		bus.Publish(core.NewEvent("replica-a", core.ConnectionStatusChange{Status: core.StatusSynced}))
		return len(client.published()) > 0
	}, time.Second, 5*time.Millisecond)

	bus.Publish(testutil.DocOpEvent("replica-a", "block-1", "mine", core.LocalUserID, 2))
	bus.Publish(testutil.DocOpEvent("replica-b", "block-1", "theirs", "bot-ravi", 2))

	docOps := func() []core.Event {
		var out []core.Event
		for _, m := range client.published() {
			ev, err := core.UnmarshalEvent(m.data)
			if err != nil || m.channel != "room" || ev.Origin != "replica-a" {
				continue
			}
			if ev.Type == core.EventDocOp {
				out = append(out, ev)
			}
		}
		return out
	}
	require.Eventually(t, func() bool { return len(docOps()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "mine", docOps()[0].Payload.(core.DocOp).Content)

	// the foreign event is never mirrored
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, docOps(), 1)
	for _, m := range client.published() {
		ev, err := core.UnmarshalEvent(m.data)
		require.NoError(t, err)
		assert.Equal(t, "replica-a", ev.Origin)
	}
	assert.EqualValues(t, len(client.published()), r.Stats().Mirrored)
}

func TestRelay_RunTwice(t *testing.T) {
	r := New(&fakeClient{}, transport.New())
	startRelay(t, r)
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.running
	}, time.Second, time.Millisecond)
	assert.ErrorIs(t, r.Run(context.Background()), ErrAlreadyRunning)
}

func TestRelay_PublishFailureIsCounted(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	r := New(client, transport.New(), func(o *Options) { o.ReplicaID = "replica-a" })

	r.mirror(context.Background(), testutil.DocOpEvent("replica-a", "block-1", "x", core.LocalUserID, 2))

	assert.EqualValues(t, 1, r.Stats().Failed)
	assert.Zero(t, r.Stats().Mirrored)
}

func TestRelay_QueueOverflowDrops(t *testing.T) {
	r := New(&fakeClient{}, transport.New(), func(o *Options) {
		o.ReplicaID = "replica-a"
		o.Buffer = 1
	})

	r.enqueue(testutil.DocOpEvent("replica-a", "block-1", "1", core.LocalUserID, 2))
	r.enqueue(testutil.DocOpEvent("replica-a", "block-1", "2", core.LocalUserID, 3))

	assert.EqualValues(t, 1, r.Stats().Dropped)
}

func TestRelay_IngestForeignEvents(t *testing.T) {
	bus := transport.New()
	rec := &testutil.Recorder{}
	bus.Subscribe(rec.Handle)
	r := New(&fakeClient{}, bus, func(o *Options) { o.ReplicaID = "replica-a" })

	foreign, err := core.MarshalEvent(testutil.DocOpEvent("replica-b", "block-2", "remote", "bot-chen", 2))
	require.NoError(t, err)
	own, err := core.MarshalEvent(testutil.DocOpEvent("replica-a", "block-2", "echo", core.LocalUserID, 2))
	require.NoError(t, err)

	r.ingest(string(foreign))
	r.ingest(string(own))
	r.ingest("{broken")

	require.Equal(t, 1, rec.Len())
	assert.Equal(t, "replica-b", rec.Events()[0].Origin)
	assert.Equal(t, Stats{Ingested: 1, Failed: 1}, r.Stats())
}
