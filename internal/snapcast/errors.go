package snapcast

import "errors"

// Sentinel errors for the snapcast package.
var (
	// ErrRPCFailed indicates a JSON-RPC call could not be completed.
	ErrRPCFailed = errors.New("snapcast: rpc call failed")

	// ErrConnectionFailed indicates the notification socket could not be
	// established.
	ErrConnectionFailed = errors.New("snapcast: connection failed")

	// ErrNotConnected indicates an operation requires an active connection.
	ErrNotConnected = errors.New("snapcast: not connected")

	// ErrAlreadyStarted indicates Start was called twice on a listener.
	ErrAlreadyStarted = errors.New("snapcast: listener already started")
)
