package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/iszland/snappy-bridge/internal/infrastructure/config"
)

// upgrader configures the WebSocket upgrader. The hub serves local control
// surfaces and bridge processes; origin checking is not enforced.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// WSClient represents one connected hub socket. The same connection type
// serves both subscribers (control surfaces joining groups) and publishers
// (bridge adapters pushing change events).
type WSClient struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// handleSocket upgrades the HTTP connection and starts the client pumps.
func (h *Hub) handleSocket(wsCfg config.WebSocketConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Error("websocket upgrade failed", "error", err)
			return
		}

		client := &WSClient{
			id:   uuid.New().String(),
			hub:  h,
			conn: conn,
			send: make(chan []byte, sendBufferSize),
		}

		h.Register(client)

		go client.writePump(wsCfg)
		go client.readPump(wsCfg)
	}
}

// readPump reads messages from the WebSocket connection.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "client_id", c.id, "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "client_id", c.id, "error", err)
			}
			return
		}
		// Any client message resets the read deadline.
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches an incoming message by type.
func (c *WSClient) handleMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case TypeJoinGroup:
		c.handleJoin(msg)
	case TypeLeaveGroup:
		c.handleLeave(msg)
	case TypeRequestGroups:
		c.handleRequestGroups(msg)
	case TypeRequestStreams:
		c.handleRequestStreams(msg)
	case TypePing:
		c.sendResponse(msg.ID, TypePong, nil)
	case TypeGlobalMessage:
		c.handleGlobalMessage(msg)
	case TypeGroupChanged:
		c.handleGroupChanged(msg)
	case TypeServerStatus:
		c.hub.PublishAll(TypeServerStatus, msg.Payload)
	case TypeDeviceStatus:
		c.handleDeviceStatus(msg)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// handleJoin adds the client to the requested group.
func (c *WSClient) handleJoin(msg Message) {
	group, ok := c.groupFromPayload(msg)
	if !ok {
		return
	}

	c.hub.Join(c, group)
	c.sendResponse(msg.ID, TypeResponse, map[string]any{"joined": group})
}

// handleLeave removes the client from the requested group.
func (c *WSClient) handleLeave(msg Message) {
	group, ok := c.groupFromPayload(msg)
	if !ok {
		return
	}

	c.hub.Leave(c, group)
	c.sendResponse(msg.ID, TypeResponse, map[string]any{"left": group})
}

// handleRequestGroups replies with the current server group list.
func (c *WSClient) handleRequestGroups(msg Message) {
	status, err := c.hub.status.ServerGetStatus(context.Background())
	if err != nil {
		c.hub.logger.Error("status fetch failed for group request", "client_id", c.id, "error", err)
		c.sendError(msg.ID, "server status unavailable")
		return
	}
	c.sendResponse(msg.ID, TypeResponse, map[string]any{"groups": status.Groups})
}

// handleRequestStreams replies with the current server stream list.
func (c *WSClient) handleRequestStreams(msg Message) {
	status, err := c.hub.status.ServerGetStatus(context.Background())
	if err != nil {
		c.hub.logger.Error("status fetch failed for stream request", "client_id", c.id, "error", err)
		c.sendError(msg.ID, "server status unavailable")
		return
	}
	c.sendResponse(msg.ID, TypeResponse, map[string]any{"streams": status.Streams})
}

// handleGlobalMessage fans a publisher's informational message out to
// every connected client.
func (c *WSClient) handleGlobalMessage(msg Message) {
	c.hub.PublishAll(TypeGlobalMessage, msg.Payload)
}

// handleGroupChanged resolves and fans out a group change from a publisher.
func (c *WSClient) handleGroupChanged(msg Message) {
	group, ok := c.groupFromPayload(msg)
	if !ok {
		return
	}
	c.hub.GroupChanged(context.Background(), group)
}

// handleDeviceStatus fans a polled device status out to the device's group.
func (c *WSClient) handleDeviceStatus(msg Message) {
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		c.sendError(msg.ID, "invalid payload")
		return
	}

	var p DeviceStatusPayload
	if err := json.Unmarshal(payloadBytes, &p); err != nil || p.Source == "" {
		c.sendError(msg.ID, "invalid device status payload")
		return
	}

	c.hub.PublishToGroup(p.Source, TypeDeviceStatus, p)
}

// groupFromPayload extracts the group name from a message payload,
// replying with an error if it is missing.
func (c *WSClient) groupFromPayload(msg Message) (string, bool) {
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		c.sendError(msg.ID, "invalid payload")
		return "", false
	}

	var p GroupPayload
	if err := json.Unmarshal(payloadBytes, &p); err != nil || p.Group == "" {
		c.sendError(msg.ID, "group is required")
		return "", false
	}
	return p.Group, true
}

// trySend attempts to send data to the client's send channel.
// It silently handles closed channels (client disconnected during broadcast)
// and full buffers (slow client).
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
		// Client buffer full, skip
	}
}

// sendResponse sends a response message to the client.
// Routes through trySend to safely handle closed channels during shutdown.
func (c *WSClient) sendResponse(id, msgType string, payload any) {
	msg := Message{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}

// sendError sends an error message to the client.
func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, TypeError, map[string]string{"message": message})
}
