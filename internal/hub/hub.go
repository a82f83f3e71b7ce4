package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/iszland/snappy-bridge/internal/infrastructure/logging"
	"github.com/iszland/snappy-bridge/internal/snapcast"
)

// Message types exchanged with hub clients.
const (
	// Subscriber operations
	TypeJoinGroup      = "joinGroup"
	TypeLeaveGroup     = "leaveGroup"
	TypeRequestGroups  = "requestGroups"
	TypeRequestStreams = "requestStreams"
	TypePing           = "ping"
	TypePong           = "pong"

	// Publisher operations and the matching notifications pushed to
	// subscribers. Adapters send these over the back-channel; the hub
	// fans them out under the same name.
	TypeGlobalMessage = "globalMessage"
	TypeGroupChanged  = "groupChanged"
	TypeServerStatus  = "serverStatusChanged"
	TypeDeviceStatus  = "deviceStatusChanged"

	TypeResponse = "response"
	TypeError    = "error"

	// sendBufferSize is the per-client outbound message buffer size.
	sendBufferSize = 256
)

// Message is the wire envelope for everything crossing a hub socket.
type Message struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// GroupPayload is the payload of join/leave operations and group-change
// publications.
type GroupPayload struct {
	Group string `json:"group"`
}

// DeviceStatusPayload is the payload of device status publications. Source
// names both the originating device and the hub group it fans out to.
type DeviceStatusPayload struct {
	Source string          `json:"source"`
	Status json.RawMessage `json:"status"`
}

// StatusProvider supplies the current audio server status for group-change
// resolution and subscriber queries.
type StatusProvider interface {
	ServerGetStatus(ctx context.Context) (*snapcast.ServerStatus, error)
}

// MetricsRecorder receives telemetry about published events. Satisfied by
// *influxdb.Client; nil disables telemetry.
type MetricsRecorder interface {
	WriteSourceMetric(sourceID string, measurement string, value float64)
	WriteEventCount(sourceID string, kind string)
}

// Hub manages WebSocket subscribers and fans out change notifications.
//
// Subscribers join named groups; group-scoped publications reach only
// members of the named group, global publications reach every connected
// client. Membership is keyed per connection and purged on disconnect.
type Hub struct {
	logger *logging.Logger
	status StatusProvider

	// metrics is optional; nil disables telemetry.
	metrics MetricsRecorder

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
	groups  map[string]map[*WSClient]struct{}
}

// New creates a hub. The status provider is used to resolve group-change
// publications into fresh group documents; metrics may be nil.
func New(status StatusProvider, metrics MetricsRecorder, logger *logging.Logger) *Hub {
	return &Hub{
		logger:  logger,
		status:  status,
		metrics: metrics,
		clients: make(map[*WSClient]struct{}),
		groups:  make(map[string]map[*WSClient]struct{}),
	}
}

// Run blocks until the context is cancelled, then disconnects all clients.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("hub client connected", "client_id", client.id, "clients", h.ClientCount())
}

// Unregister removes a client and purges its group memberships.
// Only the goroutine that successfully removes the client from the map
// closes the send channel, preventing double-close panics during shutdown.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	for name, members := range h.groups {
		delete(members, client)
		if len(members) == 0 {
			delete(h.groups, name)
		}
	}
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("hub client disconnected", "client_id", client.id, "clients", h.ClientCount())
}

// Join adds a client to a group. Joining a group the client is already a
// member of is a no-op.
func (h *Hub) Join(client *WSClient, group string) {
	h.mu.Lock()
	members, ok := h.groups[group]
	if !ok {
		members = make(map[*WSClient]struct{})
		h.groups[group] = members
	}
	members[client] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("client joined group", "client_id", client.id, "group", group)
}

// Leave removes a client from a group. Leaving a group the client is not a
// member of is a no-op.
func (h *Hub) Leave(client *WSClient, group string) {
	h.mu.Lock()
	if members, ok := h.groups[group]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	h.mu.Unlock()

	h.logger.Debug("client left group", "client_id", client.id, "group", group)
}

// PublishAll sends a notification to every connected client.
func (h *Hub) PublishAll(eventType string, payload any) {
	data, err := marshalEvent(eventType, payload)
	if err != nil {
		h.logger.Error("marshal broadcast failed", "event_type", eventType, "error", err)
		return
	}

	// Snapshot client list under hub lock, then release before sending
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.trySend(data)
	}

	h.recordEvent("", eventType)
	h.logger.Debug("broadcast sent", "event_type", eventType, "recipients", len(clients))
}

// PublishToGroup sends a notification to members of the named group only.
// Publishing to a group with no members is a no-op.
func (h *Hub) PublishToGroup(group, eventType string, payload any) {
	data, err := marshalEvent(eventType, payload)
	if err != nil {
		h.logger.Error("marshal group publish failed", "event_type", eventType, "error", err)
		return
	}

	h.mu.RLock()
	members := make([]*WSClient, 0, len(h.groups[group]))
	for client := range h.groups[group] {
		members = append(members, client)
	}
	h.mu.RUnlock()

	for _, client := range members {
		client.trySend(data)
	}

	h.recordEvent(group, eventType)
	h.logger.Debug("group publish sent", "group", group, "event_type", eventType, "recipients", len(members))
}

// GroupChanged re-fetches the server status and publishes the named group's
// fresh document to its subscribers. A group id that no longer exists on the
// server is logged and dropped.
func (h *Hub) GroupChanged(ctx context.Context, groupID string) {
	status, err := h.status.ServerGetStatus(ctx)
	if err != nil {
		h.logger.Error("status fetch failed, dropping group change", "group", groupID, "error", err)
		return
	}

	group := status.GroupByID(groupID)
	if group == nil {
		h.logger.Warn("group not found on server, dropping group change", "group", groupID)
		return
	}

	if h.metrics != nil {
		h.metrics.WriteSourceMetric(groupID, "group_volume", float64(group.GroupVolume))
		for i := range group.Clients {
			client := &group.Clients[i]
			h.metrics.WriteSourceMetric(client.ID, "client_volume",
				float64(client.Config.Volume.Percent))
		}
	}

	h.PublishToGroup(groupID, TypeGroupChanged, group)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GroupMemberCount returns the number of clients in a group.
func (h *Hub) GroupMemberCount(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// closeAll disconnects all clients and closes their send channels
// so writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
	h.groups = make(map[string]map[*WSClient]struct{})
}

// recordEvent writes an event count to telemetry if metrics are enabled.
func (h *Hub) recordEvent(sourceID, eventType string) {
	if h.metrics == nil {
		return
	}
	h.metrics.WriteEventCount(sourceID, eventType)
}

// marshalEvent builds and encodes a notification envelope.
func marshalEvent(eventType string, payload any) ([]byte, error) {
	return json.Marshal(Message{
		Type:      eventType,
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
}
