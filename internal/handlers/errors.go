package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-app-service/internal/services"
)

var errorStatus = []struct {
	err     error
	status  int
	message string
}{
	{services.ErrChatNotFound, http.StatusNotFound, "chat not found"},
	{services.ErrChatAlreadyExists, http.StatusConflict, "chat already exists"},
	{services.ErrMembershipMissing, http.StatusForbidden, "not a chat member"},
	{services.ErrMembershipAlreadyExists, http.StatusConflict, "membership already exists"},
	{services.ErrUserNotFound, http.StatusNotFound, "user not found"},
	{services.ErrRoomNotFound, http.StatusUnprocessableEntity, "room not found"},
	{services.ErrAccessDenied, http.StatusForbidden, "access denied"},
	{services.ErrInvalidStatus, http.StatusBadRequest, "invalid chat status"},
	{services.ErrInvalidTitle, http.StatusBadRequest, "invalid chat title"},
	{services.ErrUpstreamUnavailable, http.StatusBadGateway, "upstream service unavailable"},
}

// respondError maps service errors to stable responses. Anything unknown is a
// 500 without detail.
func (h *ChatHandler) respondError(c *gin.Context, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			c.JSON(e.status, gin.H{"error": e.message, "kind": services.Kind(err)})
			return
		}
	}
	h.logger.ErrorContext(c.Request.Context(), "request failed",
		slog.String("route", c.FullPath()),
		slog.String("request_id", requestIDFromContext(c)),
		slog.Any("error", err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "kind": "internal"})
}
