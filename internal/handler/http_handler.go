package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/JunyongPark97/SIIOT-chat-server/internal/auth"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/domain"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/repository"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/service"
	"github.com/JunyongPark97/SIIOT-chat-server/pkg/response"
)

// HTTPHandler serves the room and upload REST API.
type HTTPHandler struct {
	rooms    service.RoomService
	uploads  service.UploadService
	resolver *auth.Resolver
}

func NewHTTPHandler(rooms service.RoomService, uploads service.UploadService, resolver *auth.Resolver) *HTTPHandler {
	return &HTTPHandler{
		rooms:    rooms,
		uploads:  uploads,
		resolver: resolver,
	}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api/v1", RequireAuth(h.resolver))
	{
		api.POST("/rooms", h.CreateRoom)
		api.GET("/rooms", h.ListRooms)
		api.POST("/rooms/:room_id/exit", h.ExitRoom)
		api.GET("/rooms/:room_id/messages", h.ListMessages)
		api.POST("/rooms/:room_id/messages", h.SendMessage)
		api.POST("/rooms/:room_id/read", h.MarkRead)
		api.POST("/rooms/:room_id/uploads/key", h.IssueUploadKey)
	}
}

func (h *HTTPHandler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

// CreateRoom returns the active room between the caller and the seller,
// creating one when none exists.
func (h *HTTPHandler) CreateRoom(c *gin.Context) {
	var req domain.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	room, err := h.rooms.CreateOrGetRoom(c.Request.Context(), UserID(c), &req)
	if err != nil {
		response.InternalError(c, "failed to create room")
		return
	}
	response.Created(c, room)
}

func (h *HTTPHandler) ListRooms(c *gin.Context) {
	entries, err := h.rooms.ListRooms(c.Request.Context(), UserID(c))
	if err != nil {
		response.InternalError(c, "failed to list rooms")
		return
	}
	response.Success(c, gin.H{"rooms": entries})
}

func (h *HTTPHandler) ExitRoom(c *gin.Context) {
	err := h.rooms.ExitRoom(c.Request.Context(), UserID(c), c.Param("room_id"))
	if err != nil {
		h.roomError(c, err, "failed to exit room")
		return
	}
	response.Success(c, gin.H{"exited": true})
}

// ListMessages returns a page of room history, newest first. Cursor is the
// id of the oldest message from the previous page.
func (h *HTTPHandler) ListMessages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	cursor := c.Query("cursor")

	page, err := h.rooms.GetHistory(c.Request.Context(), UserID(c), c.Param("room_id"), cursor, limit)
	if err != nil {
		h.roomError(c, err, "failed to load messages")
		return
	}
	response.Success(c, page)
}

func (h *HTTPHandler) SendMessage(c *gin.Context) {
	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	msg, err := h.rooms.SendMessage(c.Request.Context(), UserID(c), c.Param("room_id"), &req)
	if err != nil {
		h.roomError(c, err, "failed to send message")
		return
	}
	response.Created(c, msg)
}

func (h *HTTPHandler) MarkRead(c *gin.Context) {
	var req domain.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	err := h.rooms.MarkRead(c.Request.Context(), UserID(c), c.Param("room_id"), req.MessageIDs)
	if err != nil {
		h.roomError(c, err, "failed to mark read")
		return
	}
	response.Success(c, gin.H{"read": len(req.MessageIDs)})
}

// IssueUploadKey mints an image key under the room's message prefix and a
// URL the client can PUT the image to.
func (h *HTTPHandler) IssueUploadKey(c *gin.Context) {
	key, uploadURL, err := h.uploads.IssueKey(c.Request.Context(), c.Param("room_id"))
	if err != nil {
		response.InternalError(c, "failed to issue upload key")
		return
	}
	response.Created(c, gin.H{"key": key, "upload_url": uploadURL})
}

func (h *HTTPHandler) roomError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrRoomNotFound):
		response.NotFound(c, "room not found")
	case errors.Is(err, service.ErrRoomForbidden):
		response.Forbidden(c, "not a room participant")
	default:
		response.InternalError(c, fallback)
	}
}
