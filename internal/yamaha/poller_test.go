package yamaha

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iszland/snappy-bridge/internal/bridge"
	"github.com/iszland/snappy-bridge/internal/infrastructure/logging"
)

// fakeFetcher serves scripted statuses per zone. A nil status entry makes
// the fetch fail.
type fakeFetcher struct {
	mu       sync.Mutex
	statuses map[Zone]*BasicStatus
	calls    int
}

func (f *fakeFetcher) BasicStatus(_ context.Context, _ string, zone Zone) (*BasicStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	status, ok := f.statuses[zone]
	if !ok || status == nil {
		return nil, ErrRequestFailed
	}
	// Return a copy so later mutations in the test don't alias the snapshot.
	copied := *status
	return &copied, nil
}

func (f *fakeFetcher) set(zone Zone, status *BasicStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[zone] = status
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []bridge.ChangeEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event bridge.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) published() []bridge.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bridge.ChangeEvent(nil), p.events...)
}

func statusWithPower(power string) *BasicStatus {
	return &BasicStatus{
		PowerControl: PowerControl{Power: power, Sleep: "Off"},
		Volume:       VolumeStatus{Lvl: Level{Val: -350, Exp: 1, Unit: "dB"}, Mute: "Off"},
	}
}

func allZones(status *BasicStatus) map[Zone]*BasicStatus {
	m := make(map[Zone]*BasicStatus)
	for _, zone := range Zones() {
		copied := *status
		m[zone] = &copied
	}
	return m
}

func TestFirstPollIsSilent(t *testing.T) {
	fetcher := &fakeFetcher{statuses: allZones(statusWithPower("On"))}
	pub := &recordingPublisher{}
	poller := NewPoller(fetcher, pub, logging.Default())
	state := NewReceiverState("lounge", "10.0.0.10")

	poller.PollReceiver(context.Background(), state)

	if got := pub.published(); len(got) != 0 {
		t.Errorf("first poll published %d events, want 0", len(got))
	}
}

func TestUnchangedPollPublishesNothing(t *testing.T) {
	fetcher := &fakeFetcher{statuses: allZones(statusWithPower("On"))}
	pub := &recordingPublisher{}
	poller := NewPoller(fetcher, pub, logging.Default())
	state := NewReceiverState("lounge", "10.0.0.10")

	poller.PollReceiver(context.Background(), state)
	poller.PollReceiver(context.Background(), state)

	if got := pub.published(); len(got) != 0 {
		t.Errorf("unchanged polls published %d events, want 0", len(got))
	}
}

func TestChangedZonePublishes(t *testing.T) {
	fetcher := &fakeFetcher{statuses: allZones(statusWithPower("On"))}
	pub := &recordingPublisher{}
	poller := NewPoller(fetcher, pub, logging.Default())
	state := NewReceiverState("lounge", "10.0.0.10")

	poller.PollReceiver(context.Background(), state)

	// Only the main zone changes.
	fetcher.set(ZoneMain, statusWithPower("Standby"))
	poller.PollReceiver(context.Background(), state)

	events := pub.published()
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	if events[0].Kind != bridge.KindDeviceStatus {
		t.Errorf("kind = %q, want deviceStatusChanged", events[0].Kind)
	}
	if events[0].SourceID != "lounge" {
		t.Errorf("source = %q, want lounge", events[0].SourceID)
	}

	update, ok := events[0].Payload.(ZoneUpdate)
	if !ok {
		t.Fatalf("payload type = %T, want ZoneUpdate", events[0].Payload)
	}
	if update.Zone != ZoneMain {
		t.Errorf("zone = %q, want Main_Zone", update.Zone)
	}
	if update.Status.PowerControl.Power != "Standby" {
		t.Errorf("published power = %q, want Standby", update.Status.PowerControl.Power)
	}

	// A further unchanged poll is silent again.
	poller.PollReceiver(context.Background(), state)
	if got := pub.published(); len(got) != 1 {
		t.Errorf("published %d events after settle, want 1", len(got))
	}
}

func TestFetchFailureKeepsSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{statuses: allZones(statusWithPower("On"))}
	pub := &recordingPublisher{}
	poller := NewPoller(fetcher, pub, logging.Default())
	state := NewReceiverState("lounge", "10.0.0.10")

	poller.PollReceiver(context.Background(), state)

	// Receiver goes away: fetches fail, nothing is published, nothing resets.
	fetcher.set(ZoneMain, nil)
	poller.PollReceiver(context.Background(), state)
	if got := pub.published(); len(got) != 0 {
		t.Fatalf("published %d events during outage, want 0", len(got))
	}

	// Receiver returns with the same state: still silent, because the old
	// snapshot survived the outage.
	fetcher.set(ZoneMain, statusWithPower("On"))
	poller.PollReceiver(context.Background(), state)
	if got := pub.published(); len(got) != 0 {
		t.Errorf("published %d events after recovery with same state, want 0", len(got))
	}

	// Receiver returns with different state: exactly one publication.
	fetcher.set(ZoneMain, statusWithPower("Standby"))
	poller.PollReceiver(context.Background(), state)
	if got := pub.published(); len(got) != 1 {
		t.Errorf("published %d events after recovery with change, want 1", len(got))
	}
}

func TestZoneFailureIsolated(t *testing.T) {
	statuses := allZones(statusWithPower("On"))
	statuses[Zone3] = nil // zone 3 always fails
	fetcher := &fakeFetcher{statuses: statuses}
	pub := &recordingPublisher{}
	poller := NewPoller(fetcher, pub, logging.Default())
	state := NewReceiverState("lounge", "10.0.0.10")

	poller.PollReceiver(context.Background(), state)

	fetcher.set(Zone2, statusWithPower("Standby"))
	poller.PollReceiver(context.Background(), state)

	events := pub.published()
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	if update := events[0].Payload.(ZoneUpdate); update.Zone != Zone2 {
		t.Errorf("zone = %q, want Zone_2", update.Zone)
	}
}

func TestOverlappingPollIsSkipped(t *testing.T) {
	fetcher := &fakeFetcher{statuses: allZones(statusWithPower("On"))}
	pub := &recordingPublisher{}
	poller := NewPoller(fetcher, pub, logging.Default())
	state := NewReceiverState("lounge", "10.0.0.10")

	// Simulate an in-flight poll holding the receiver.
	state.mu.Lock()

	done := make(chan struct{})
	go func() {
		poller.PollReceiver(context.Background(), state)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("overlapping poll blocked instead of returning")
	}

	state.mu.Unlock()

	fetcher.mu.Lock()
	calls := fetcher.calls
	fetcher.mu.Unlock()
	if calls != 0 {
		t.Errorf("skipped poll fetched %d zones, want 0", calls)
	}
}

func TestPublishFailureStillReplacesSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{statuses: allZones(statusWithPower("On"))}
	pub := &recordingPublisher{err: errors.New("hub unavailable")}
	poller := NewPoller(fetcher, pub, logging.Default())
	state := NewReceiverState("lounge", "10.0.0.10")

	poller.PollReceiver(context.Background(), state)
	fetcher.set(ZoneMain, statusWithPower("Standby"))
	poller.PollReceiver(context.Background(), state)

	// Publishing failed, but the snapshot advanced: when the hub comes back,
	// the same state is not re-announced.
	pub.mu.Lock()
	pub.err = nil
	pub.mu.Unlock()

	poller.PollReceiver(context.Background(), state)
	if got := pub.published(); len(got) != 0 {
		t.Errorf("published %d events after dropped publish, want 0", len(got))
	}
}
