package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"chat-app-service/internal/models"
)

// Hub maintains active websocket subscriptions per chat.
type Hub struct {
	chats  map[int64]map[*websocket.Conn]*client
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		chats:  make(map[int64]map[*websocket.Conn]*client),
		logger: logger,
	}
}

// AddChatClient registers a websocket connection to a chat.
func (h *Hub) AddChatClient(chatID int64, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.chats[chatID]; !ok {
		h.chats[chatID] = make(map[*websocket.Conn]*client)
	}
	h.chats[chatID][conn] = &client{conn: conn, info: info}
}

// RemoveChatClient removes a chat websocket connection.
func (h *Hub) RemoveChatClient(chatID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.chats[chatID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.chats, chatID)
		}
	}
}

// Subscribers returns the number of live connections on chatID.
func (h *Hub) Subscribers(chatID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.chats[chatID])
}

func (h *Hub) Name() string { return "ws" }

// EmitChatRead lets the hub act as a notification channel.
func (h *Hub) EmitChatRead(ctx context.Context, ev models.ChatReadEvent) error {
	h.BroadcastChatRead(ctx, ev)
	return nil
}

// BroadcastChatRead sends a read receipt to every subscriber of the chat.
// Connections that fail the write are dropped.
func (h *Hub) BroadcastChatRead(ctx context.Context, ev models.ChatReadEvent) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.chats[ev.ChatID]))
	for _, c := range h.chats[ev.ChatID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	payload, _ := json.Marshal(models.ChatEvent{
		Type:     models.ChatEventRead,
		ChatID:   ev.ChatID,
		ReaderID: ev.ReaderID,
	})
	for _, c := range clients {
		if err := c.write(payload); err != nil {
			h.logger.Warn("websocket write error",
				slog.Int64("chat_id", ev.ChatID),
				slog.String("conn_id", c.info.ConnID),
				slog.Any("error", err))
			c.conn.Close()
			h.RemoveChatClient(ev.ChatID, c.conn)
			publishWSEvent(ctx, "ws_error", ev.ChatID, c.info, err.Error())
		}
	}
}
