// Package hub implements the broadcast hub: a WebSocket fan-out point
// connecting bridge adapters (publishers) with control surfaces
// (subscribers).
//
// Subscribers join named groups matching Snapcast group ids or polled
// device sources; publications are either global (every client) or
// group-scoped (members only). Group-change publications carry only a
// group id; the hub re-fetches the server status so subscribers always
// receive a fresh group document.
package hub
