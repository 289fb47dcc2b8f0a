package services

import (
	"errors"

	"chat-app-service/internal/access"
)

var (
	ErrChatNotFound            = access.ErrChatNotFound
	ErrMembershipMissing       = access.ErrMembershipMissing
	ErrAccessDenied            = access.ErrAccessDenied
	ErrChatAlreadyExists       = errors.New("chat already exists")
	ErrMembershipAlreadyExists = errors.New("membership already exists")
	ErrUserNotFound            = errors.New("user not found")
	ErrRoomNotFound            = errors.New("room not found")
	ErrInvalidStatus           = errors.New("invalid chat status")
	ErrInvalidTitle            = errors.New("invalid chat title")
	ErrUpstreamUnavailable     = errors.New("upstream service unavailable")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrChatNotFound, "chat_not_found"},
	{ErrChatAlreadyExists, "chat_already_exists"},
	{ErrMembershipMissing, "membership_missing"},
	{ErrMembershipAlreadyExists, "membership_already_exists"},
	{ErrUserNotFound, "user_not_found"},
	{ErrRoomNotFound, "room_not_found"},
	{ErrAccessDenied, "access_denied"},
	{ErrInvalidStatus, "invalid_status"},
	{ErrInvalidTitle, "invalid_title"},
	{ErrUpstreamUnavailable, "upstream_unavailable"},
}

// Kind names the error for metrics and logs: "ok", one of the domain kinds,
// or "internal".
func Kind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}
