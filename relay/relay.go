// Package relay mirrors a replica's events to a Redis pub/sub channel and
// feeds events from other replicas on that channel back into the local
// transport. Several processes sharing one channel then behave like peers
// on one bus.
package relay

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/collabmesh/core"
	"github.com/hupe1980/collabmesh/logging"
	"github.com/hupe1980/collabmesh/transport"
	"github.com/redis/go-redis/v9"
)

// ErrAlreadyRunning is returned by Run when the relay is already mirroring.
var ErrAlreadyRunning = errors.New("relay is already running")

// Client is the part of *redis.Client the relay needs.
type Client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Bus is the local transport.
type Bus interface {
	Subscribe(h transport.Handler) func()
	Publish(ev core.Event)
}

// Options configures a Relay.
type Options struct {
	// Channel is the Redis channel shared by all replicas.
	Channel string
	// ReplicaID is the local replica; only its events are mirrored.
	ReplicaID string
	// Buffer is the outbound queue length. Events beyond it are dropped.
	Buffer int
	Logger logging.Logger
}

// Stats are cumulative relay counters.
type Stats struct {
	Mirrored int64 `json:"mirrored"`
	Ingested int64 `json:"ingested"`
	Dropped  int64 `json:"dropped"`
	Failed   int64 `json:"failed"`
}

// Relay bridges a local bus and a Redis channel.
type Relay struct {
	client Client
	bus    Bus
	opts   Options
	logger logging.Logger
	queue  chan core.Event

	mu      sync.Mutex
	running bool

	mirrored, ingested, dropped, failed atomic.Int64
}

// New creates a relay between client and bus.
func New(client Client, bus Bus, optFns ...func(o *Options)) *Relay {
	opts := Options{
		Channel: "collabmesh:events",
		Buffer:  1024,
		Logger:  logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Relay{
		client: client,
		bus:    bus,
		opts:   opts,
		logger: logging.OrNoOp(opts.Logger),
		queue:  make(chan core.Event, opts.Buffer),
	}
}

// Run mirrors local events to Redis until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	unsubscribe := r.bus.Subscribe(r.enqueue)
	defer unsubscribe()

	r.logger.Info("Relay mirroring", "channel", r.opts.Channel, "replica_id", r.opts.ReplicaID)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-r.queue:
			r.mirror(ctx, ev)
		}
	}
}

// enqueue runs inside bus delivery and must not block.
func (r *Relay) enqueue(ev core.Event) {
	if ev.Origin != r.opts.ReplicaID {
		return
	}
	select {
	case r.queue <- ev:
	default:
		r.dropped.Add(1)
		r.logger.Warn("Relay queue full, event dropped", "event_type", ev.Type, "event_id", ev.ID)
	}
}

func (r *Relay) mirror(ctx context.Context, ev core.Event) {
	data, err := core.MarshalEvent(ev)
	if err != nil {
		r.failed.Add(1)
		r.logger.Warn("Relay encode failed", "event_type", ev.Type, "error", err)
		return
	}
	if err := r.client.Publish(ctx, r.opts.Channel, data).Err(); err != nil {
		r.failed.Add(1)
		r.logger.Warn("Relay publish failed", "event_type", ev.Type, "error", err)
		return
	}
	r.mirrored.Add(1)
}

// Follow subscribes to the Redis channel and publishes events from other
// replicas on the local bus until ctx is done.
func (r *Relay) Follow(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.opts.Channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.ingest(msg.Payload)
		}
	}
}

func (r *Relay) ingest(payload string) {
	ev, err := core.UnmarshalEvent([]byte(payload))
	if err != nil {
		r.failed.Add(1)
		r.logger.Warn("Relay decode failed", "error", err)
		return
	}
	// our own mirror comes back on the channel
	if ev.Origin == r.opts.ReplicaID {
		return
	}
	r.ingested.Add(1)
	r.bus.Publish(ev)
}

// Stats returns the relay counters.
func (r *Relay) Stats() Stats {
	return Stats{
		Mirrored: r.mirrored.Load(),
		Ingested: r.ingested.Load(),
		Dropped:  r.dropped.Load(),
		Failed:   r.failed.Load(),
	}
}
