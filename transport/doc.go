// Package transport implements the simulated network: an in-process
// publish/subscribe bus where every published event is independently dropped
// (packet loss) or delayed (latency) before fan-out to all subscribers.
//
// Delayed deliveries are scheduled independently, so events published in
// order A, B may arrive B, A when latency changes between them. This models
// real jitter and is intentional. The fan-out of a single event is never
// interleaved with another event's fan-out.
package transport
