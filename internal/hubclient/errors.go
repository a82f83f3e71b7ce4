package hubclient

import "errors"

// Sentinel errors for the hubclient package.
var (
	// ErrNotConnected indicates the back-channel is currently down.
	ErrNotConnected = errors.New("hubclient: not connected")

	// ErrPublishFailed indicates an event could not be sent.
	ErrPublishFailed = errors.New("hubclient: publish failed")
)
