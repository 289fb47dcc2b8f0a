package models

import "time"

// ChatView is the API rendering of a chat. It is built either by PublicView
// or by SelfView; Partner is only ever set by SelfView.
type ChatView struct {
	ID        int64        `json:"id"`
	Title     string       `json:"title"`
	RoomID    int64        `json:"room_id"`
	Status    ChatStatus   `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	Partner   *ChatMember  `json:"partner,omitempty"`
	Members   []ChatMember `json:"members"`
}

// PublicView renders chat without a requester perspective: every member is listed.
func PublicView(chat Chat) ChatView {
	members := make([]ChatMember, len(chat.Members))
	copy(members, chat.Members)
	return ChatView{
		ID:        chat.ID,
		Title:     chat.Title,
		RoomID:    chat.RoomID,
		Status:    chat.Status,
		CreatedAt: chat.CreatedAt,
		Members:   members,
	}
}

// SelfView renders chat as seen by requesterID: the requester is filtered out
// of the member list and the first remaining member becomes the partner.
func SelfView(chat Chat, requesterID string) ChatView {
	others := make([]ChatMember, 0, len(chat.Members))
	for _, m := range chat.Members {
		if m.UserID != requesterID {
			others = append(others, m)
		}
	}

	view := ChatView{
		ID:        chat.ID,
		Title:     chat.Title,
		RoomID:    chat.RoomID,
		Status:    chat.Status,
		CreatedAt: chat.CreatedAt,
		Members:   others,
	}
	if len(others) > 0 {
		partner := others[0]
		view.Partner = &partner
	}
	return view
}
