// Package gateway exposes a running session over HTTP and websockets.
//
// Websocket clients at /ws receive every event delivered on the session
// transport, encoded with core.MarshalEvent, and may send events back. Those
// inbound events are published as if they came from another replica, so
// document edits still pass the conflict gate. The REST routes cover
// snapshots, the local user's editing actions and the dev panel.
package gateway
