// Package snapcast integrates with a Snapcast audio server over its
// JSON-RPC control protocol.
//
// The package has three parts:
//
//   - Service: synchronous request/response RPC over HTTP (status queries
//     and group/client commands), with status normalisation (display names,
//     computed group volumes)
//   - Listener: a persistent WebSocket connection receiving push
//     notifications, with indefinite fixed-delay reconnection
//   - Adapter: the translation layer that turns raw notifications into
//     bridge change events, resolving client ids to groups where needed
//
// Types in types.go mirror the wire documents of the control protocol.
package snapcast
