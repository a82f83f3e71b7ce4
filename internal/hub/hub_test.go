package hub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/iszland/snappy-bridge/internal/infrastructure/logging"
	"github.com/iszland/snappy-bridge/internal/snapcast"
)

// fakeStatus serves a canned status document, or an error.
type fakeStatus struct {
	status *snapcast.ServerStatus
	err    error
}

func (f *fakeStatus) ServerGetStatus(_ context.Context) (*snapcast.ServerStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.status, nil
}

// fakeMetrics records telemetry writes.
type fakeMetrics struct {
	sourceMetrics map[string]float64 // "sourceID/measurement" -> last value
	eventCounts   map[string]int     // "sourceID/kind" -> count
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		sourceMetrics: make(map[string]float64),
		eventCounts:   make(map[string]int),
	}
}

func (m *fakeMetrics) WriteSourceMetric(sourceID, measurement string, value float64) {
	m.sourceMetrics[sourceID+"/"+measurement] = value
}

func (m *fakeMetrics) WriteEventCount(sourceID, kind string) {
	m.eventCounts[sourceID+"/"+kind]++
}

func testHub(status *fakeStatus) *Hub {
	if status == nil {
		status = &fakeStatus{status: &snapcast.ServerStatus{}}
	}
	return New(status, nil, logging.Default())
}

// testClient builds a registered client with a buffered send channel and no
// underlying connection.
func testClient(h *Hub) *WSClient {
	c := &WSClient{
		id:   "test-client",
		hub:  h,
		send: make(chan []byte, sendBufferSize),
	}
	h.Register(c)
	return c
}

// receivedTypes drains a client's send buffer and returns the message types.
func receivedTypes(t *testing.T, c *WSClient) []string {
	t.Helper()

	var types []string
	for {
		select {
		case data := <-c.send:
			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("unmarshal sent message: %v", err)
			}
			types = append(types, msg.Type)
		default:
			return types
		}
	}
}

func TestJoinLeaveIdempotent(t *testing.T) {
	h := testHub(nil)
	c := testClient(h)

	h.Join(c, "group-1")
	h.Join(c, "group-1")
	if got := h.GroupMemberCount("group-1"); got != 1 {
		t.Errorf("members after double join = %d, want 1", got)
	}

	h.Leave(c, "group-1")
	h.Leave(c, "group-1")
	if got := h.GroupMemberCount("group-1"); got != 0 {
		t.Errorf("members after double leave = %d, want 0", got)
	}

	// Leaving a group never joined must not panic or create state.
	h.Leave(c, "never-joined")
	if got := h.GroupMemberCount("never-joined"); got != 0 {
		t.Errorf("members of never-joined group = %d, want 0", got)
	}
}

func TestPublishToGroupIsScoped(t *testing.T) {
	h := testHub(nil)
	member := testClient(h)
	outsider := testClient(h)

	h.Join(member, "group-1")

	h.PublishToGroup("group-1", TypeDeviceStatus, map[string]string{"source": "group-1"})

	if got := receivedTypes(t, member); len(got) != 1 || got[0] != TypeDeviceStatus {
		t.Errorf("member received %v, want one deviceStatusChanged", got)
	}
	if got := receivedTypes(t, outsider); len(got) != 0 {
		t.Errorf("outsider received %v, want nothing", got)
	}
}

func TestPublishAllReachesEveryone(t *testing.T) {
	h := testHub(nil)
	a := testClient(h)
	b := testClient(h)

	h.PublishAll(TypeGlobalMessage, map[string]string{"message": "hello"})

	for i, c := range []*WSClient{a, b} {
		if got := receivedTypes(t, c); len(got) != 1 || got[0] != TypeGlobalMessage {
			t.Errorf("client %d received %v, want one globalMessage", i, got)
		}
	}
}

func TestPublishToEmptyGroupIsNoop(t *testing.T) {
	h := testHub(nil)
	c := testClient(h)

	h.PublishToGroup("empty-group", TypeGroupChanged, nil)

	if got := receivedTypes(t, c); len(got) != 0 {
		t.Errorf("non-member received %v, want nothing", got)
	}
}

func TestUnregisterPurgesMemberships(t *testing.T) {
	h := testHub(nil)
	c := testClient(h)

	h.Join(c, "group-1")
	h.Join(c, "group-2")
	h.Unregister(c)

	if got := h.ClientCount(); got != 0 {
		t.Errorf("client count = %d, want 0", got)
	}
	for _, group := range []string{"group-1", "group-2"} {
		if got := h.GroupMemberCount(group); got != 0 {
			t.Errorf("members of %s after disconnect = %d, want 0", group, got)
		}
	}

	// Publishing after disconnect must not panic on the closed channel.
	h.PublishToGroup("group-1", TypeGroupChanged, nil)
	h.PublishAll(TypeGlobalMessage, nil)
}

func TestGroupChangedPublishesFreshGroup(t *testing.T) {
	status := &fakeStatus{status: &snapcast.ServerStatus{
		Groups: []snapcast.Group{
			{ID: "group-1", Name: "Living Room", StreamID: "spotify"},
		},
	}}
	h := testHub(status)
	member := testClient(h)
	outsider := testClient(h)

	h.Join(member, "group-1")

	h.GroupChanged(context.Background(), "group-1")

	select {
	case data := <-member.send:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != TypeGroupChanged {
			t.Errorf("type = %q, want groupChanged", msg.Type)
		}
		payload, ok := msg.Payload.(map[string]any)
		if !ok {
			t.Fatalf("payload type = %T, want object", msg.Payload)
		}
		if payload["name"] != "Living Room" {
			t.Errorf("payload name = %v, want Living Room", payload["name"])
		}
	default:
		t.Fatal("member received nothing")
	}

	if got := receivedTypes(t, outsider); len(got) != 0 {
		t.Errorf("outsider received %v, want nothing", got)
	}
}

func TestGroupChangedRecordsVolumeTelemetry(t *testing.T) {
	status := &fakeStatus{status: &snapcast.ServerStatus{
		Groups: []snapcast.Group{
			{
				ID:          "group-1",
				Name:        "Living Room",
				GroupVolume: 55,
				Clients: []snapcast.Client{
					{ID: "client-a", Config: snapcast.ClientConfig{
						Volume: snapcast.Volume{Percent: 40},
					}},
					{ID: "client-b", Config: snapcast.ClientConfig{
						Volume: snapcast.Volume{Percent: 70},
					}},
				},
			},
		},
	}}
	metrics := newFakeMetrics()
	h := New(status, metrics, logging.Default())

	h.GroupChanged(context.Background(), "group-1")

	if got := metrics.sourceMetrics["group-1/group_volume"]; got != 55 {
		t.Errorf("group_volume = %v, want 55", got)
	}
	if got := metrics.sourceMetrics["client-a/client_volume"]; got != 40 {
		t.Errorf("client-a client_volume = %v, want 40", got)
	}
	if got := metrics.sourceMetrics["client-b/client_volume"]; got != 70 {
		t.Errorf("client-b client_volume = %v, want 70", got)
	}
	if got := metrics.eventCounts["group-1/"+TypeGroupChanged]; got != 1 {
		t.Errorf("groupChanged event count = %d, want 1", got)
	}
}

func TestGroupChangedUnknownGroupDropped(t *testing.T) {
	status := &fakeStatus{status: &snapcast.ServerStatus{}}
	h := testHub(status)
	c := testClient(h)
	h.Join(c, "gone-group")

	h.GroupChanged(context.Background(), "gone-group")

	if got := receivedTypes(t, c); len(got) != 0 {
		t.Errorf("received %v for unknown group, want nothing", got)
	}
}

func TestGroupChangedStatusFetchFailure(t *testing.T) {
	h := testHub(&fakeStatus{err: errors.New("server down")})
	c := testClient(h)
	h.Join(c, "group-1")

	h.GroupChanged(context.Background(), "group-1")

	if got := receivedTypes(t, c); len(got) != 0 {
		t.Errorf("received %v despite fetch failure, want nothing", got)
	}
}
