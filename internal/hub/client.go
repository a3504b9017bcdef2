package hub

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/JunyongPark97/SIIOT-chat-server/internal/codec"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/config"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/domain"
	"github.com/JunyongPark97/SIIOT-chat-server/pkg/log"
)

// Client is one live websocket connection bound to one room. The Send
// channel is the connection's push capability: the hub writes encoded
// frames to it and the write pump drains it to the socket.
type Client struct {
	ID      string
	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	Session *domain.Session
	config  config.WebSocketConfig
}

// NewClient creates a client in the Connecting state for the given room.
func NewClient(id, roomID string, h *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	return &Client{
		ID:      id,
		Hub:     h,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		Session: domain.NewSession(id, roomID),
		config:  cfg,
	}
}

// ReadPump reads inbound frames and hands them to handler. It exits on any
// transport error and triggers teardown via the hub.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Debug().Str(log.FieldConnID, c.ID).Err(err).Msg("websocket read error")
			}
			break
		}

		c.Session.UpdateActivity()
		handler(c, message)
	}
}

// WritePump drains the Send channel to the socket and keeps the connection
// alive with pings. One goroutine per connection; the only writer.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Push enqueues an encoded frame without blocking. A full buffer means the
// client is too slow or closing; the frame is dropped for this connection.
func (c *Client) Push(data []byte) bool {
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// PushError enqueues the wire frame for a client error.
func (c *Client) PushError(e *domain.ClientError) {
	c.Push(codec.EncodeError(e))
}
