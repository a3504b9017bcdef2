package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/JunyongPark97/SIIOT-chat-server/internal/auth"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/config"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/hub"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/service"
	"github.com/JunyongPark97/SIIOT-chat-server/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades chat connections and wires them into the hub.
type WSHandler struct {
	hub      *hub.Hub
	service  service.ChatService
	resolver *auth.Resolver
	wsCfg    config.WebSocketConfig
}

func NewWSHandler(h *hub.Hub, svc service.ChatService, resolver *auth.Resolver, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:      h,
		service:  svc,
		resolver: resolver,
		wsCfg:    wsCfg,
	}
}

// HandleWebSocket serves GET /ws/chat/:room_id. Identity is resolved from
// the upgrade request; a connection that fails the handshake is closed
// without touching the room registry.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	roomID := c.Param("room_id")
	identity := h.resolver.Resolve(c.Request)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), roomID, h.hub, conn, h.wsCfg)

	// The upgrade request's context dies with the HTTP handler; the
	// connection outlives it.
	ctx := context.Background()
	if err := h.service.HandleConnect(ctx, client, identity); err != nil {
		conn.Close()
		return
	}

	go client.WritePump()
	go func() {
		client.ReadPump(h.handleFrame)
		h.service.HandleDisconnect(ctx, client)
	}()
}

func (h *WSHandler) handleFrame(client *hub.Client, message []byte) {
	h.service.HandleFrame(context.Background(), client, message)
}

func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws/chat/:room_id", h.HandleWebSocket)
}
