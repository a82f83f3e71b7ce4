// Package hubclient implements the adapters' back-channel to the broadcast
// hub.
//
// The client keeps one WebSocket connection to the hub's publisher
// endpoint, reconnecting indefinitely with a fixed delay, and maps bridge
// change events onto hub publisher messages. Events that arrive while the
// connection is down are rejected with ErrNotConnected so callers can drop
// them; state synchronisation relies on fresh fetches, not replayed queues.
package hubclient
