package models

// ChatFilter is the query string accepted by the chat list endpoint.
type ChatFilter struct {
	RoomID *int64 `form:"room_id"`
	Title  string `form:"title"`
	Status string `form:"status"`
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
}

// Scoped turns the request filter into a store filter restricted to memberID.
func (f ChatFilter) Scoped(memberID string) ChatListFilter {
	return ChatListFilter{
		RoomID:   f.RoomID,
		Title:    f.Title,
		Status:   ChatStatus(f.Status),
		MemberID: memberID,
	}
}

// ChatCreate is the payload for creating a chat.
type ChatCreate struct {
	Title     string     `json:"title" binding:"required"`
	RoomID    int64      `json:"room_id" binding:"required"`
	Status    ChatStatus `json:"status"`
	MemberIDs []string   `json:"member_ids"`
}

// ChatUpdate is a partial update; nil fields are left untouched.
type ChatUpdate struct {
	Title  *string     `json:"title"`
	RoomID *int64      `json:"room_id"`
	Status *ChatStatus `json:"status"`
}

// Empty reports whether the patch changes nothing.
func (u ChatUpdate) Empty() bool {
	return u.Title == nil && u.RoomID == nil && u.Status == nil
}

// ChatMembership identifies a (chat, user) pair to attach or detach.
type ChatMembership struct {
	ChatID int64  `json:"chat_id" binding:"required"`
	UserID string `json:"user_id" binding:"required"`
}

// DefaultResponse is the acknowledgement returned by mutating operations.
type DefaultResponse struct {
	Success bool `json:"success"`
}
