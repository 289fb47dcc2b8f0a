package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-app-service/internal/middleware"
	"chat-app-service/internal/models"
	"chat-app-service/internal/observability"
	"chat-app-service/internal/services"
)

type chatReader interface {
	Get(ctx context.Context, chatID int64, requesterID string) (models.ChatView, error)
}

// ChatWebSocketHandler handles chat websocket connections.
type ChatWebSocketHandler struct {
	hub    *Hub
	chats  chatReader
	tokens *middleware.TokenParser
	logger *slog.Logger
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(hub *Hub, chats chatReader, tokens *middleware.TokenParser, logger *slog.Logger) *ChatWebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatWebSocketHandler{hub: hub, chats: chats, tokens: tokens, logger: logger}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates, checks membership, upgrades the connection and
// subscribes it to the chat's read receipts.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil || chatID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	ctx, span := otel.Tracer("chat-app-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, err := h.authenticate(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	if _, err := h.chats.Get(ctx, chatID, userID); err != nil {
		switch {
		case errors.Is(err, services.ErrChatNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		case errors.Is(err, services.ErrMembershipMissing), errors.Is(err, services.ErrAccessDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for chat"})
		default:
			h.logger.ErrorContext(ctx, "ws membership check failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	caller := observability.IdentityFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    caller.DeviceID,
		IP:          caller.IP,
		RequestID:   caller.RequestID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.AddChatClient(chatID, conn, info)
	observability.IncWSActive(wsKind)

	// The request context ends with the handler; lifecycle events outlive it.
	evCtx := context.WithoutCancel(ctx)
	publishWSEvent(evCtx, "ws_connect", chatID, info, "")

	go func() {
		var closeReason string
		defer func() {
			h.hub.RemoveChatClient(chatID, conn)
			observability.DecWSActive(wsKind)
			publishWSEvent(evCtx, "ws_disconnect", chatID, info, closeReason)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					publishWSEvent(evCtx, "ws_error", chatID, info, closeReason)
				}
				return
			}
		}
	}()
}

// authenticate accepts either an Authorization header or a bare ?token= value,
// since browsers cannot set headers on websocket upgrades.
func (h *ChatWebSocketHandler) authenticate(c *gin.Context) (string, error) {
	raw := c.Query("token")
	if header := c.GetHeader("Authorization"); header != "" {
		token, ok := middleware.BearerToken(header)
		if !ok {
			return "", middleware.ErrInvalidToken
		}
		raw = token
	}
	if raw == "" {
		return "", middleware.ErrInvalidToken
	}
	return h.tokens.UserID(raw)
}
