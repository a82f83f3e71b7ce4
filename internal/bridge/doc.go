// Package bridge defines the change-event model shared by the device
// adapters and the broadcast hub back-channel.
//
// Both adapters — the push listener attached to the audio server and the
// poll scheduler driving the AV receivers — normalise what they observe
// into ChangeEvent values and hand them to a Publisher. Nothing in this
// package does I/O; it exists so the adapters do not depend on the hub
// client's wire format.
package bridge
