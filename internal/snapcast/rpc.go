package snapcast

import (
	"encoding/json"
	"fmt"
)

// JSON-RPC 2.0 envelope types. Every request the bridge sends goes through
// these; there are no ad-hoc map payloads.

// rpcRequest is an outbound JSON-RPC 2.0 request.
type rpcRequest struct {
	ID      uint64 `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcResponse is an inbound JSON-RPC 2.0 response.
type rpcResponse struct {
	ID      json.RawMessage `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcNotification is an inbound JSON-RPC 2.0 notification (no id).
type rpcNotification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// rpcError is the error member of a failed response.
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Typed parameter structs, one per RPC method the bridge invokes.

type groupSetNameParams struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type groupSetStreamParams struct {
	ID       string `json:"id"`
	StreamID string `json:"stream_id"`
}

type groupSetMuteParams struct {
	ID   string `json:"id"`
	Mute bool   `json:"mute"`
}

type groupSetClientsParams struct {
	ID      string   `json:"id"`
	Clients []string `json:"clients"`
}

type clientSetVolumeParams struct {
	ID     string `json:"id"`
	Volume Volume `json:"volume"`
}

// serverGetStatusResult is the result document of Server.GetStatus.
type serverGetStatusResult struct {
	Server ServerStatus `json:"server"`
}

// Notification parameter structs, one per method the push listener decodes.

type clientNotifyParams struct {
	ID     string `json:"id"`
	Client Client `json:"client"`
}

type clientVolumeParams struct {
	ID     string `json:"id"`
	Volume Volume `json:"volume"`
}

type clientLatencyParams struct {
	ID      string `json:"id"`
	Latency int    `json:"latency"`
}

type groupMuteParams struct {
	ID   string `json:"id"`
	Mute bool   `json:"mute"`
}

type groupStreamParams struct {
	ID       string `json:"id"`
	StreamID string `json:"stream_id"`
}

type groupNameParams struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type clientNameParams struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type streamUpdateParams struct {
	ID     string `json:"id"`
	Stream Stream `json:"stream"`
}

type streamPropertiesParams struct {
	ID         string     `json:"id"`
	Properties Properties `json:"properties"`
}
