package transport

import (
	"sync"
	"time"

	"github.com/hupe1980/collabmesh/core"
	"github.com/hupe1980/collabmesh/logging"
)

// Handler receives a private copy of a delivered event. Handlers must not
// call Publish synchronously.
type Handler func(ev core.Event)

// Options configures a Bus.
type Options struct {
	// Latency delays every delivery. Zero delivers synchronously.
	Latency time.Duration
	// PacketLoss is the per-publish drop probability in [0,1].
	PacketLoss float64
	// Rand is the source for loss draws. Defaults to core.DefaultRand().
	Rand core.Rand
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Stats counts bus traffic since creation.
type Stats struct {
	Published uint64
	Dropped   uint64
	Delivered uint64
	Pending   int
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is the event transport. Public methods are safe for concurrent use.
type Bus struct {
	mu         sync.Mutex
	subs       []subscription
	nextSubID  uint64
	latency    time.Duration
	packetLoss float64
	rand       core.Rand
	logger     logging.Logger

	pending   map[uint64]*time.Timer
	nextTimer uint64
	closed    bool
	stats     Stats

	// deliverMu serializes fan-outs so one event reaches every subscriber
	// back-to-back.
	deliverMu sync.Mutex
}

// New constructs a Bus with optional overrides.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{
		Rand:   core.DefaultRand(),
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	b := &Bus{
		rand:    opts.Rand,
		logger:  logging.OrNoOp(opts.Logger),
		pending: make(map[uint64]*time.Timer),
	}
	b.SetLatency(opts.Latency)
	b.SetPacketLoss(opts.PacketLoss)

	return b
}

// Subscribe registers a handler and returns a function removing it again.
// The returned function is idempotent.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	b.nextSubID++
	id := b.nextSubID
	b.subs = append(b.subs, subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish sends ev to every subscriber subject to the current loss and
// latency settings. Loss is silent: the publisher is never told.
func (b *Bus) Publish(ev core.Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.stats.Published++
	if b.packetLoss > 0 && b.rand.Float64() < b.packetLoss {
		b.stats.Dropped++
		b.mu.Unlock()
		b.logger.Debug("Event dropped", "event_type", ev.Type, "event_id", ev.ID)
		return
	}
	latency := b.latency
	if latency <= 0 {
		b.mu.Unlock()
		b.deliver(ev)
		return
	}

	b.nextTimer++
	timerID := b.nextTimer
	b.pending[timerID] = time.AfterFunc(latency, func() {
		b.mu.Lock()
		if _, ok := b.pending[timerID]; !ok {
			b.mu.Unlock()
			return
		}
		delete(b.pending, timerID)
		b.mu.Unlock()
		b.deliver(ev)
	})
	b.mu.Unlock()
}

func (b *Bus) deliver(ev core.Event) {
	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.stats.Delivered++
	b.mu.Unlock()

	for _, s := range subs {
		s.handler(ev.Clone())
	}
	b.logger.Debug("Event delivered", "event_type", ev.Type, "event_id", ev.ID, "subscribers", len(subs))
}

// SetLatency changes the delay for subsequently published events.
func (b *Bus) SetLatency(d time.Duration) {
	if d < 0 {
		d = 0
	}
	b.mu.Lock()
	b.latency = d
	b.mu.Unlock()
}

// SetPacketLoss changes the drop probability for subsequently published
// events. The rate is clamped to [0,1].
func (b *Bus) SetPacketLoss(rate float64) {
	rate = max(0, min(1, rate))
	b.mu.Lock()
	b.packetLoss = rate
	b.mu.Unlock()
}

// Apply copies the transport related fields of the dev settings.
func (b *Bus) Apply(s core.DevSettings) {
	b.SetLatency(s.Latency())
	b.SetPacketLoss(s.PacketLoss)
}

// Latency returns the current delivery delay.
func (b *Bus) Latency() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latency
}

// PacketLoss returns the current drop probability.
func (b *Bus) PacketLoss() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.packetLoss
}

// Stats returns a snapshot of the traffic counters.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.Pending = len(b.pending)
	return s
}

// Close cancels every pending delayed delivery. Later publishes are
// dropped silently.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, t := range b.pending {
		t.Stop()
		delete(b.pending, id)
	}
	b.subs = nil
}
