package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-app-service/internal/middleware"
	"chat-app-service/internal/models"
	"chat-app-service/internal/telemetry"
)

type chatService interface {
	List(ctx context.Context, filter models.ChatFilter, requesterID, path string) (models.Page[models.ChatView], error)
	Get(ctx context.Context, chatID int64, requesterID string) (models.ChatView, error)
	GetPublic(ctx context.Context, chatID int64) (models.ChatView, error)
	Create(ctx context.Context, in models.ChatCreate) (models.ChatView, error)
	Update(ctx context.Context, chatID int64, patch models.ChatUpdate, requesterID string) error
	MarkRead(ctx context.Context, chatID int64, requesterID string) error
	Delete(ctx context.Context, chatID int64, requesterID, authToken string) error
	DeleteBetweenPair(ctx context.Context, userA, userB string) error
	Attach(ctx context.Context, in models.ChatMembership, requesterID string) error
	Detach(ctx context.Context, in models.ChatMembership, requesterID string) error
}

// ChatHandler exposes chat lifecycle and membership endpoints.
type ChatHandler struct {
	service chatService
	audit   *telemetry.AuditEmitter
	logger  *slog.Logger
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(service chatService, audit *telemetry.AuditEmitter, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{service: service, audit: audit, logger: logger}
}

// Register mounts the routes on an authenticated group.
func (h *ChatHandler) Register(r gin.IRoutes) {
	r.GET("/chats", h.ListChats)
	r.POST("/chats", h.CreateChat)
	r.POST("/chats/users", h.AttachUser)
	r.DELETE("/chats/users", h.DetachUser)
	r.DELETE("/chats/pair/:partner_id", h.DeletePairChat)
	r.GET("/chats/:chat_id", h.GetChat)
	r.PATCH("/chats/:chat_id", h.UpdateChat)
	r.DELETE("/chats/:chat_id", h.DeleteChat)
	r.POST("/chats/:chat_id/read", h.MarkRead)
}

// RegisterInternal mounts service-to-service reads.
func (h *ChatHandler) RegisterInternal(r gin.IRoutes) {
	r.GET("/internal/chats/:chat_id", h.GetPublicChat)
}

// ListChats returns a page of the user's chats.
func (h *ChatHandler) ListChats(c *gin.Context) {
	var filter models.ChatFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	page, err := h.service.List(c.Request.Context(), filter, requesterID(c), c.Request.URL.Path)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetChat returns one chat as seen by the requester.
func (h *ChatHandler) GetChat(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	view, err := h.service.Get(c.Request.Context(), chatID, requesterID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetPublicChat returns a chat with every member listed.
func (h *ChatHandler) GetPublicChat(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	view, err := h.service.GetPublic(c.Request.Context(), chatID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CreateChat creates a chat inside an existing room.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req models.ChatCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.emitAudit(c, "chat.create", view.ID, "", fmt.Sprintf("chat %q created in room %d", view.Title, view.RoomID))
	c.JSON(http.StatusCreated, view)
}

// UpdateChat applies a partial update.
func (h *ChatHandler) UpdateChat(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	var req models.ChatUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.Update(c.Request.Context(), chatID, req, requesterID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.DefaultResponse{Success: true})
}

// MarkRead marks the chat read for the requester.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), chatID, requesterID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.DefaultResponse{Success: true})
}

// DeleteChat deletes a chat and detaches the partner tie.
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	token := c.GetString(middleware.AuthTokenKey)
	if err := h.service.Delete(c.Request.Context(), chatID, requesterID(c), token); err != nil {
		h.respondError(c, err)
		return
	}
	h.emitAudit(c, "chat.delete", chatID, "", "chat deleted")
	c.JSON(http.StatusOK, models.DefaultResponse{Success: true})
}

// DeletePairChat deletes the chat shared with partner_id, if there is one.
func (h *ChatHandler) DeletePairChat(c *gin.Context) {
	partnerID := c.Param("partner_id")
	if partnerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid partner id"})
		return
	}

	if err := h.service.DeleteBetweenPair(c.Request.Context(), requesterID(c), partnerID); err != nil {
		h.respondError(c, err)
		return
	}
	h.emitAudit(c, "chat.delete_pair", 0, partnerID, "pair chat deleted")
	c.JSON(http.StatusOK, models.DefaultResponse{Success: true})
}

// AttachUser adds a user to a chat.
func (h *ChatHandler) AttachUser(c *gin.Context) {
	var req models.ChatMembership
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.Attach(c.Request.Context(), req, requesterID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	h.emitAudit(c, "chat.attach", req.ChatID, req.UserID, "user attached")
	c.JSON(http.StatusCreated, models.DefaultResponse{Success: true})
}

// DetachUser removes a user from a chat.
func (h *ChatHandler) DetachUser(c *gin.Context) {
	var req models.ChatMembership
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.Detach(c.Request.Context(), req, requesterID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	h.emitAudit(c, "chat.detach", req.ChatID, req.UserID, "user detached")
	c.JSON(http.StatusOK, models.DefaultResponse{Success: true})
}

func (h *ChatHandler) emitAudit(c *gin.Context, action string, chatID int64, target, text string) {
	if h.audit == nil {
		return
	}
	h.audit.EmitPayload(c.Request.Context(), requestIDFromContext(c), userIDFromContext(c), telemetry.AuditPayload{
		Level:  "INFO",
		Action: action,
		ChatID: chatID,
		Target: target,
		Text:   text,
	})
}

func requesterID(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}

func chatIDParam(c *gin.Context) (int64, bool) {
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil || chatID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return 0, false
	}
	return chatID, true
}
