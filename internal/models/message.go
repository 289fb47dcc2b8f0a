package models

import "time"

// Message is a stored chat message. Only its read flag is managed here.
type Message struct {
	ID        int64     `db:"id" json:"id"`
	ChatID    int64     `db:"chat_id" json:"chat_id"`
	SenderID  string    `db:"sender_id" json:"sender_id"`
	Content   string    `db:"content" json:"content"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChatReadEvent tells realtime subscribers that a reader caught up on a chat.
type ChatReadEvent struct {
	ChatID   int64  `json:"chat_id"`
	ReaderID string `json:"reader_id"`
}

// ChatEvent is broadcasted through websockets.
type ChatEvent struct {
	Type     string `json:"type"`
	ChatID   int64  `json:"chat_id"`
	ReaderID string `json:"reader_id,omitempty"`
}

const ChatEventRead = "chat_read"

// TiesDetachFailure records a partner detach that did not reach the ties
// service after the chat itself was deleted.
type TiesDetachFailure struct {
	ChatID      int64     `json:"chat_id"`
	RequesterID string    `json:"requester_id"`
	PartnerID   string    `json:"partner_id"`
	Reason      string    `json:"reason"`
	OccurredAt  time.Time `json:"occurred_at"`
}
