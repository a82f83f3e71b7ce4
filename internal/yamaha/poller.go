package yamaha

import (
	"context"
	"reflect"
	"sync"

	"github.com/iszland/snappy-bridge/internal/bridge"
	"github.com/iszland/snappy-bridge/internal/infrastructure/logging"
)

// StatusFetcher fetches one zone's status. Satisfied by *Service.
type StatusFetcher interface {
	BasicStatus(ctx context.Context, host string, zone Zone) (*BasicStatus, error)
}

// ReceiverState tracks one receiver across polls: its identity plus the
// last published snapshot of each zone.
//
// The mutex guards the snapshot maps. A poll of a receiver whose previous
// poll is still in flight is skipped, never queued: a stuck device must not
// accumulate waiting goroutines tick after tick.
type ReceiverState struct {
	Source string
	Host   string

	mu       sync.Mutex
	previous map[Zone]*BasicStatus
}

// NewReceiverState creates tracking state for one receiver.
func NewReceiverState(source, host string) *ReceiverState {
	return &ReceiverState{
		Source:   source,
		Host:     host,
		previous: make(map[Zone]*BasicStatus),
	}
}

// Poller polls receivers and publishes zone changes.
//
// Change detection is snapshot-based: the first successful poll of a zone
// stores its status silently, and later polls publish only when the fresh
// document differs from the stored one. A failed fetch leaves the stored
// snapshot untouched, so the next successful poll diffs against the last
// known state rather than restarting silently.
type Poller struct {
	fetcher   StatusFetcher
	publisher bridge.Publisher
	logger    *logging.Logger
}

// NewPoller creates a poller publishing through the given publisher.
func NewPoller(fetcher StatusFetcher, publisher bridge.Publisher, logger *logging.Logger) *Poller {
	return &Poller{
		fetcher:   fetcher,
		publisher: publisher,
		logger:    logger,
	}
}

// PollReceiver polls every zone of one receiver. If a previous poll of the
// same receiver is still in flight, the call returns immediately without
// polling. Zone failures are isolated: a zone that cannot be fetched is
// logged and skipped while the remaining zones are still polled.
func (p *Poller) PollReceiver(ctx context.Context, state *ReceiverState) {
	if !state.mu.TryLock() {
		p.logger.Debug("previous poll still in flight, skipping", "source", state.Source)
		return
	}
	defer state.mu.Unlock()

	p.pollZones(ctx, state)
}

// pollZones polls every zone in order. Caller holds state.mu.
func (p *Poller) pollZones(ctx context.Context, state *ReceiverState) {
	for _, zone := range Zones() {
		if ctx.Err() != nil {
			return
		}
		p.pollZone(ctx, state, zone)
	}
}

// pollZone fetches one zone and publishes if its status changed.
// Caller holds state.mu.
func (p *Poller) pollZone(ctx context.Context, state *ReceiverState, zone Zone) {
	status, err := p.fetcher.BasicStatus(ctx, state.Host, zone)
	if err != nil {
		p.logger.Warn("zone poll failed",
			"source", state.Source, "zone", string(zone), "error", err)
		return
	}

	previous, seen := state.previous[zone]
	if !seen {
		// First successful poll establishes the baseline without publishing.
		state.previous[zone] = status
		return
	}

	if reflect.DeepEqual(previous, status) {
		return
	}

	// Replace the snapshot before publishing. A failed publish is dropped,
	// not retried: subscribers converge on the next change.
	state.previous[zone] = status

	event := bridge.ChangeEvent{
		SourceID: state.Source,
		Kind:     bridge.KindDeviceStatus,
		Payload: ZoneUpdate{
			Source: state.Source,
			Zone:   zone,
			Status: status,
		},
	}
	if err := p.publisher.Publish(ctx, event); err != nil {
		p.logger.Error("publish failed, dropping zone update",
			"source", state.Source, "zone", string(zone), "error", err)
	}
}
