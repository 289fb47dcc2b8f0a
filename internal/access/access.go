// Package access decides whether a user may act on a chat.
package access

import (
	"errors"

	"chat-app-service/internal/models"
)

var (
	ErrChatNotFound      = errors.New("chat not found")
	ErrMembershipMissing = errors.New("user is not a member of the chat")
	ErrAccessDenied      = errors.New("access denied")
)

// CanAccess reports whether userID is a member of chat. A nil chat grants nothing.
func CanAccess(chat *models.Chat, userID string) bool {
	if chat == nil || userID == "" {
		return false
	}
	return chat.HasMember(userID)
}

// Authorize is CanAccess with the failure reason attached.
func Authorize(chat *models.Chat, userID string) error {
	if chat == nil {
		return ErrChatNotFound
	}
	if !CanAccess(chat, userID) {
		return ErrMembershipMissing
	}
	return nil
}

// CanJoin reports whether new members may be added. Archived chats are frozen.
func CanJoin(chat *models.Chat) error {
	if chat == nil {
		return ErrChatNotFound
	}
	if chat.Status == models.ChatStatusArchived {
		return ErrAccessDenied
	}
	return nil
}
