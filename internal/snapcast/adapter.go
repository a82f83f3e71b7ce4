package snapcast

import (
	"context"
	"encoding/json"

	"github.com/iszland/snappy-bridge/internal/bridge"
)

// StatusProvider fetches the current server status. Satisfied by *Service.
type StatusProvider interface {
	ServerGetStatus(ctx context.Context) (*ServerStatus, error)
}

// Adapter translates server notifications into change events.
//
// Group-level notifications carry the group id directly and become
// group-change events as-is. Client-level notifications carry only a client
// id, so the adapter re-fetches the server status to resolve which group
// the client belongs to; a client id that no longer appears in any group is
// logged and dropped. Stream and server notifications become full
// server-status events.
type Adapter struct {
	status    StatusProvider
	publisher bridge.Publisher
	logger    Logger
}

// NewAdapter creates an adapter and registers its handlers on the listener.
// Call before Listener.Start.
func NewAdapter(listener *Listener, status StatusProvider, publisher bridge.Publisher, logger Logger) *Adapter {
	a := &Adapter{
		status:    status,
		publisher: publisher,
		logger:    logger,
	}

	listener.RegisterHandler("Client.OnConnect", a.onClientNotify)
	listener.RegisterHandler("Client.OnDisconnect", a.onClientNotify)
	listener.RegisterHandler("Client.OnVolumeChanged", a.onClientVolume)
	listener.RegisterHandler("Client.OnLatencyChanged", a.onClientLatency)
	listener.RegisterHandler("Client.OnNameChanged", a.onClientName)
	listener.RegisterHandler("Group.OnMute", a.onGroupMute)
	listener.RegisterHandler("Group.OnStreamChanged", a.onGroupStream)
	listener.RegisterHandler("Group.OnNameChanged", a.onGroupName)
	listener.RegisterHandler("Stream.OnUpdate", a.onStreamUpdate)
	listener.RegisterHandler("Stream.OnProperties", a.onStreamProperties)
	listener.RegisterHandler("Server.OnUpdate", a.onServerUpdate)

	return a
}

// onClientNotify handles connect/disconnect, whose params carry the full
// client document alongside the id.
func (a *Adapter) onClientNotify(params json.RawMessage) {
	var p clientNotifyParams
	if err := json.Unmarshal(params, &p); err != nil {
		a.logger.Error("decode client notification failed", "error", err)
		return
	}
	a.logger.Debug("client connection changed",
		"client_id", p.ID, "connected", p.Client.Connected)
	a.publishGroupForClient(p.ID)
}

func (a *Adapter) onClientVolume(params json.RawMessage) {
	var p clientVolumeParams
	if err := json.Unmarshal(params, &p); err != nil {
		a.logger.Error("decode client notification failed", "error", err)
		return
	}
	a.logger.Debug("client volume changed",
		"client_id", p.ID, "percent", p.Volume.Percent, "muted", p.Volume.Muted)
	a.publishGroupForClient(p.ID)
}

func (a *Adapter) onClientLatency(params json.RawMessage) {
	var p clientLatencyParams
	if err := json.Unmarshal(params, &p); err != nil {
		a.logger.Error("decode client notification failed", "error", err)
		return
	}
	a.logger.Debug("client latency changed", "client_id", p.ID, "latency", p.Latency)
	a.publishGroupForClient(p.ID)
}

func (a *Adapter) onClientName(params json.RawMessage) {
	var p clientNameParams
	if err := json.Unmarshal(params, &p); err != nil {
		a.logger.Error("decode client notification failed", "error", err)
		return
	}
	a.logger.Debug("client renamed", "client_id", p.ID, "name", p.Name)
	a.publishGroupForClient(p.ID)
}

// Group-level notifications carry the group id in the params; no lookup is
// needed before publishing.

func (a *Adapter) onGroupMute(params json.RawMessage) {
	var p groupMuteParams
	if err := json.Unmarshal(params, &p); err != nil {
		a.logger.Error("decode group notification failed", "error", err)
		return
	}
	a.logger.Debug("group mute changed", "group_id", p.ID, "mute", p.Mute)
	a.publishGroup(p.ID)
}

func (a *Adapter) onGroupStream(params json.RawMessage) {
	var p groupStreamParams
	if err := json.Unmarshal(params, &p); err != nil {
		a.logger.Error("decode group notification failed", "error", err)
		return
	}
	a.logger.Debug("group stream changed", "group_id", p.ID, "stream_id", p.StreamID)
	a.publishGroup(p.ID)
}

func (a *Adapter) onGroupName(params json.RawMessage) {
	var p groupNameParams
	if err := json.Unmarshal(params, &p); err != nil {
		a.logger.Error("decode group notification failed", "error", err)
		return
	}
	a.logger.Debug("group renamed", "group_id", p.ID, "name", p.Name)
	a.publishGroup(p.ID)
}

func (a *Adapter) onStreamUpdate(params json.RawMessage) {
	var p streamUpdateParams
	if err := json.Unmarshal(params, &p); err != nil {
		a.logger.Error("decode stream notification failed", "error", err)
		return
	}
	a.logger.Debug("stream updated", "stream_id", p.ID, "status", p.Stream.Status)
	a.publishServerStatus()
}

func (a *Adapter) onStreamProperties(params json.RawMessage) {
	var p streamPropertiesParams
	if err := json.Unmarshal(params, &p); err != nil {
		a.logger.Error("decode stream notification failed", "error", err)
		return
	}
	a.logger.Debug("stream properties changed", "stream_id", p.ID)
	a.publishServerStatus()
}

// onServerUpdate ignores the raw document in the params; subscribers get the
// normalised status from a fresh fetch instead.
func (a *Adapter) onServerUpdate(_ json.RawMessage) {
	a.publishServerStatus()
}

// publishGroup publishes a group-change event for a group id taken straight
// from a notification.
func (a *Adapter) publishGroup(groupID string) {
	a.publish(bridge.ChangeEvent{
		SourceID: groupID,
		Kind:     bridge.KindGroupChanged,
	})
}

// publishServerStatus fetches the current normalised status and broadcasts
// it as a server-status event.
func (a *Adapter) publishServerStatus() {
	ctx := context.Background()

	status, err := a.status.ServerGetStatus(ctx)
	if err != nil {
		a.logger.Error("status fetch failed, dropping server notification", "error", err)
		return
	}

	a.publish(bridge.ChangeEvent{
		Kind:    bridge.KindServerStatus,
		Payload: status,
	})
}

// publishGroupForClient resolves a client id to its group and publishes a
// group-change event for it.
func (a *Adapter) publishGroupForClient(clientID string) {
	ctx := context.Background()

	status, err := a.status.ServerGetStatus(ctx)
	if err != nil {
		a.logger.Error("status fetch failed, dropping client notification",
			"client_id", clientID, "error", err)
		return
	}

	group := status.GroupForClient(clientID)
	if group == nil {
		a.logger.Warn("client not found in any group, dropping notification",
			"client_id", clientID)
		return
	}

	a.publish(bridge.ChangeEvent{
		SourceID: group.ID,
		Kind:     bridge.KindGroupChanged,
	})
}

func (a *Adapter) publish(event bridge.ChangeEvent) {
	if err := a.publisher.Publish(context.Background(), event); err != nil {
		a.logger.Error("publish failed, dropping event",
			"kind", string(event.Kind), "source_id", event.SourceID, "error", err)
	}
}
