package yamaha

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/iszland/snappy-bridge/internal/bridge"
	"github.com/iszland/snappy-bridge/internal/infrastructure/config"
	"github.com/iszland/snappy-bridge/internal/infrastructure/logging"
)

// hostFetcher scripts statuses per receiver host. Hosts without an entry
// fail every fetch.
type hostFetcher struct {
	mu       sync.Mutex
	statuses map[string]*BasicStatus
}

func (f *hostFetcher) BasicStatus(_ context.Context, host string, _ Zone) (*BasicStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.statuses[host]
	if !ok {
		return nil, ErrRequestFailed
	}
	copied := *status
	return &copied, nil
}

func (f *hostFetcher) set(host string, status *BasicStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == nil {
		delete(f.statuses, host)
		return
	}
	f.statuses[host] = status
}

func waitForEvents(t *testing.T, pub *recordingPublisher, want int) []bridge.ChangeEvent {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if events := pub.published(); len(events) >= want {
			return events
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: published %d events, want %d", len(pub.published()), want)
	return nil
}

func TestSchedulerIsolatesReceiverFailures(t *testing.T) {
	fetcher := &hostFetcher{statuses: map[string]*BasicStatus{
		"10.0.0.10:80": statusWithPower("On"),
		// 10.0.0.11:80 has no entry: every poll fails.
	}}
	pub := &recordingPublisher{}

	cfg := config.YamahaConfig{
		Sources: []config.ReceiverSource{
			{Source: "lounge", URL: "10.0.0.10:80"},
			{Source: "kitchen", URL: "10.0.0.11:80"},
		},
		PollInterval:  1,
		MaxConcurrent: 5,
	}

	poller := NewPoller(fetcher, pub, logging.Default())
	sched := NewScheduler(cfg, poller, logging.Default())
	sched.interval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	// Give the healthy receiver a baseline, then change it.
	time.Sleep(60 * time.Millisecond)
	fetcher.set("10.0.0.10:80", statusWithPower("Standby"))

	events := waitForEvents(t, pub, 1)
	for _, e := range events {
		if e.SourceID != "lounge" {
			t.Errorf("event from %q, want only lounge", e.SourceID)
		}
	}
}

func TestSchedulerPollsAllReceivers(t *testing.T) {
	fetcher := &hostFetcher{statuses: map[string]*BasicStatus{
		"10.0.0.10:80": statusWithPower("On"),
		"10.0.0.11:80": statusWithPower("On"),
	}}
	pub := &recordingPublisher{}

	cfg := config.YamahaConfig{
		Sources: []config.ReceiverSource{
			{Source: "lounge", URL: "10.0.0.10:80"},
			{Source: "kitchen", URL: "10.0.0.11:80"},
		},
		PollInterval:  1,
		MaxConcurrent: 1, // ceiling of one still reaches both receivers
	}

	poller := NewPoller(fetcher, pub, logging.Default())
	sched := NewScheduler(cfg, poller, logging.Default())
	sched.interval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	time.Sleep(60 * time.Millisecond)
	fetcher.set("10.0.0.10:80", statusWithPower("Standby"))
	fetcher.set("10.0.0.11:80", statusWithPower("Standby"))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		sources := make(map[string]bool)
		for _, e := range pub.published() {
			sources[e.SourceID] = true
		}
		if sources["lounge"] && sources["kitchen"] {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("timeout: did not see events from both receivers, got %d events", len(pub.published()))
}

// stallFetcher serves scripted statuses per host, except for one host whose
// fetches block until the test releases them.
type stallFetcher struct {
	hostFetcher
	stalled string
	release chan struct{}
}

func (f *stallFetcher) BasicStatus(ctx context.Context, host string, zone Zone) (*BasicStatus, error) {
	if host == f.stalled {
		select {
		case <-f.release:
		case <-ctx.Done():
		}
		return nil, ErrRequestFailed
	}
	return f.hostFetcher.BasicStatus(ctx, host, zone)
}

func TestSchedulerStalledReceiverDoesNotStarveOthers(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	fetcher := &stallFetcher{
		hostFetcher: hostFetcher{statuses: map[string]*BasicStatus{
			"10.0.0.11:80": statusWithPower("On"),
		}},
		stalled: "10.0.0.10:80",
		release: release,
	}
	pub := &recordingPublisher{}

	cfg := config.YamahaConfig{
		Sources: []config.ReceiverSource{
			{Source: "lounge", URL: "10.0.0.10:80"},
			{Source: "kitchen", URL: "10.0.0.11:80"},
		},
		PollInterval:  1,
		MaxConcurrent: 2, // lounge wedges one slot; kitchen must keep the other
	}

	poller := NewPoller(fetcher, pub, logging.Default())
	sched := NewScheduler(cfg, poller, logging.Default())
	sched.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	// Let the lounge poll wedge and the kitchen establish its baseline, then
	// flip the kitchen twice. Each flip must still come through even though
	// the lounge poll never finishes.
	time.Sleep(100 * time.Millisecond)
	fetcher.set("10.0.0.11:80", statusWithPower("Standby"))
	events := waitForEvents(t, pub, 1)

	fetcher.set("10.0.0.11:80", statusWithPower("On"))
	events = waitForEvents(t, pub, 2)

	for _, e := range events {
		if e.SourceID != "kitchen" {
			t.Errorf("event from %q, want only kitchen", e.SourceID)
		}
	}
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	fetcher := &hostFetcher{statuses: map[string]*BasicStatus{}}
	pub := &recordingPublisher{}

	cfg := config.YamahaConfig{
		Sources:       []config.ReceiverSource{{Source: "lounge", URL: "10.0.0.10:80"}},
		PollInterval:  1,
		MaxConcurrent: 5,
	}

	poller := NewPoller(fetcher, pub, logging.Default())
	sched := NewScheduler(cfg, poller, logging.Default())
	sched.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}
