package bridge

import "context"

// Kind classifies a change event. The values double as the hub notification
// names pushed to subscribed clients.
type Kind string

// Change event kinds.
const (
	// KindGlobalMessage is an informational broadcast to every subscriber.
	KindGlobalMessage Kind = "globalMessage"

	// KindServerStatus signals that the full audio server status changed.
	KindServerStatus Kind = "serverStatusChanged"

	// KindGroupChanged signals that one group's state changed. The payload
	// is the group id only; the hub re-fetches the group payload itself so
	// subscribers never see a stale snapshot.
	KindGroupChanged Kind = "groupChanged"

	// KindDeviceStatus carries a polled device's fresh status snapshot.
	KindDeviceStatus Kind = "deviceStatusChanged"
)

// ChangeEvent is a single state-change notification produced by an adapter.
//
// Events are transient: produced by diffing (poll path) or notification
// decoding (push path) and consumed immediately by a publish to the hub.
type ChangeEvent struct {
	// SourceID identifies the originating device, group, or zone.
	SourceID string

	// Kind selects the hub delivery mode and notification name.
	Kind Kind

	// Payload is the event body. For KindDeviceStatus it is the new
	// snapshot; for KindGroupChanged it is unused (the id travels in
	// SourceID); for KindGlobalMessage it is a GlobalMessage.
	Payload any
}

// GlobalMessage is the payload for KindGlobalMessage events.
type GlobalMessage struct {
	HostName string `json:"host_name"`
	Message  string `json:"message"`
}

// Publisher forwards change events to the broadcast hub.
//
// Implementations must be safe for concurrent use: the push adapter and
// every in-flight poll may publish at the same time.
type Publisher interface {
	Publish(ctx context.Context, event ChangeEvent) error
}
