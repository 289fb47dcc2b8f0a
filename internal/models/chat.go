package models

import "time"

// ChatStatus is the lifecycle state of an existing chat.
type ChatStatus string

const (
	ChatStatusActive   ChatStatus = "active"
	ChatStatusArchived ChatStatus = "archived"
)

// Valid reports whether s is a known status.
func (s ChatStatus) Valid() bool {
	return s == ChatStatusActive || s == ChatStatusArchived
}

// Chat is a conversation attached to a room. ID and CreatedAt never change.
type Chat struct {
	ID        int64        `db:"id" json:"id"`
	Title     string       `db:"title" json:"title"`
	RoomID    int64        `db:"room_id" json:"room_id"`
	Status    ChatStatus   `db:"status" json:"status"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	Members   []ChatMember `db:"-" json:"members"`
}

// HasMember reports whether userID is among the loaded members.
func (c Chat) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// ChatMember is a membership row joined with the cached user projection.
type ChatMember struct {
	ChatID     int64     `db:"chat_id" json:"chat_id"`
	UserID     string    `db:"user_id" json:"user_id"`
	UserName   string    `db:"user_name" json:"user_name"`
	UserAvatar *string   `db:"user_avatar" json:"user_avatar,omitempty"`
	JoinedAt   time.Time `db:"joined_at" json:"joined_at"`
}

// ChatListFilter is the store-level predicate set used for listing and counting.
// An empty MemberID leaves the query unscoped.
type ChatListFilter struct {
	RoomID   *int64
	Title    string
	Status   ChatStatus
	MemberID string
}

// Room is the part of the external room record this service cares about.
type Room struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
