// Package core provides the foundational domain types, the event vocabulary
// and the small shared contracts used by collabmesh. It defines:
//
//   - Participants (users from a fixed roster) and their presence
//   - Document blocks, whiteboard strokes, comments and conflicts
//   - Events (the only integration surface between peers) and their JSON envelope
//   - Sentinel errors for invalid references and invalid resolutions
//   - An injectable random source so probabilistic decisions are testable
//
// The package intentionally keeps implementation concerns (storage, transport,
// scheduling) out of scope. Concrete behavior lives in the transport, session,
// conflict, presence, peer and agent packages.
package core
