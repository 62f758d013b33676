// Package agent contains the autonomous participants that generate concurrent
// traffic in a collaboration session. The package focuses on three concerns:
//
//  1. Behavior: the timing and probability table driving each agent
//  2. Agent: one participant running five independent jittered loops
//  3. Simulator: lifecycle (Start/Stop) for a set of agents
//
// Execution Model:
//   - Each loop ticks at base + index*step, so agents never act in lockstep
//   - A tick only acts while the peer reports a synced connection
//   - Every state change goes through a Peer, which mutates the store and
//     publishes the matching event; agents never hold the store itself
//   - Think time and stroke point timers honor context cancellation, so
//     Stop leaves no dangling timer acting on a torn-down session
package agent
