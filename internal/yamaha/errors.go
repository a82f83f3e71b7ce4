package yamaha

import "errors"

// Sentinel errors for the yamaha package.
var (
	// ErrRequestFailed indicates a control request could not be delivered.
	ErrRequestFailed = errors.New("yamaha: request failed")

	// ErrBadResponse indicates the receiver answered with an error code or
	// an undecodable document.
	ErrBadResponse = errors.New("yamaha: bad response")
)
