// Package yamaha integrates with Yamaha AV receivers over their XML
// control protocol.
//
// Receivers expose no push channel, so state synchronisation is poll-based:
// a Scheduler ticks on a fixed interval, a Poller fetches each zone's
// Basic_Status document and diffs it against the last snapshot, and any
// difference is published as a device status change to the receiver's hub
// group. Three zones are tracked per receiver, each with its own snapshot.
//
// The Service additionally exposes the command surface (power, volume,
// zone names) used by control paths outside the poll loop.
package yamaha
