/*
Package chat contains the session & broadcast engine.

This file defines the Client struct, representing one live websocket
connection. It runs the read and write pumps, forwards parsed client events
to the hub, and handles connection teardown.
*/
package chat

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"huddle/internal/pkg/logx"
	"huddle/internal/pkg/randx"
)

const (
	// writeWait is the timeout for writing to the websocket connection.
	writeWait = 10 * time.Second

	// pongWait is the maximum wait for a Pong before the read side gives up.
	pongWait = 60 * time.Second

	// pingPeriod is how often the server pings the client.
	pingPeriod = (pongWait * 9) / 10

	// maxInboundBytes is the maximum allowed size of one inbound frame.
	maxInboundBytes = 8192

	// sendChannelBuffer is the per-client outbound queue depth.
	sendChannelBuffer = 256
)

// Client represents one active websocket connection. Whether a user is bound
// to it lives in the hub's registry, not here; the client itself only moves
// bytes.
type Client struct {
	// id is the connection identifier, unique per transport connection.
	id string

	// hub is the dispatcher this connection reports to.
	hub *Hub

	// conn is the underlying websocket connection.
	conn *websocket.Conn

	// send queues outbound frames for the write pump.
	send chan []byte

	// closeOnce guards the send channel against double close.
	closeOnce sync.Once

	// structured logger with connection context.
	logger zerolog.Logger
}

// NewClient wraps an upgraded websocket connection.
func NewClient(hub *Hub, wsConn *websocket.Conn) *Client {
	connID := randx.ConnectionID()

	clientLogger := logx.Logger().With().
		Str("component", "Client").
		Str("conn_id", connID).
		Logger()

	return &Client{
		id:     connID,
		hub:    hub,
		conn:   wsConn,
		send:   make(chan []byte, sendChannelBuffer),
		logger: clientLogger,
	}
}

// ID returns the connection identifier.
func (c *Client) ID() string {
	return c.id
}

// ReadPump reads frames from the websocket until the connection dies, parsing
// each into an event for the hub. It handles the Pong heartbeat and notifies
// the hub on exit.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxInboundBytes)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading frame (client close/going away)")
			}
			break
		}

		c.forwardInbound(frame)
	}
}

// cleanupOnDisconnect notifies the hub that this connection is gone and
// closes the socket.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Debug().Msg("Connection cleanup starting.")

	select {
	case c.hub.unregister <- c:
	default:
		c.logger.Warn().Msg("Hub unregister channel full. Connection cleanup still proceeding.")
	}

	c.closeConn()
}

// forwardInbound parses one raw frame and queues the event for the hub.
// Frames that are not valid JSON envelopes are dropped here; everything else
// is the hub's decision.
func (c *Client) forwardInbound(frame []byte) {
	var in inboundEvent
	if err := json.Unmarshal(frame, &in); err != nil {
		c.logger.Warn().Err(err).Bytes("frame", frame).Msg("Client sent invalid JSON")
		return
	}

	select {
	case c.hub.intents <- intent{client: c, kind: in.Type, payload: in.Payload}:
	default:
		c.logger.Warn().Str("event_type", string(in.Type)).Msg("Hub intent channel full, dropping event.")
	}
}

// WritePump drains the send channel onto the websocket and keeps the ping
// heartbeat going. It exits when the send channel closes or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.closeConn()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.writeQueuedFrame(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePing() {
				return
			}
		}
	}
}

// writeQueuedFrame writes one outbound frame, or the close frame when the
// send channel has been closed. Returns false when the pump should stop.
func (c *Client) writeQueuedFrame(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Error().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Error().Err(err).Msg("Error writing frame")
		return false
	}

	return true
}

// writePing sends the heartbeat ping. Returns false on write failure.
func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// closeSendOnce closes the send channel exactly once, which in turn stops the
// write pump.
func (c *Client) closeSendOnce() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// closeConn closes the underlying websocket connection, if any.
func (c *Client) closeConn() {
	if c.conn == nil {
		return
	}

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Connection close error")
	}
}
