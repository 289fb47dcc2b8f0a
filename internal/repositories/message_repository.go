package repositories

import (
	"context"

	"chat-app-service/internal/db"
)

// MessageRepository is the slice of the message store this service drives.
type MessageRepository interface {
	ReadMessages(ctx context.Context, q db.Querier, chatID int64, readerID string) (int64, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct{}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo() *MessageRepo {
	return &MessageRepo{}
}

// ReadMessages marks every message of the chat not sent by readerID as read.
// Calling it again is a no-op.
func (r *MessageRepo) ReadMessages(ctx context.Context, q db.Querier, chatID int64, readerID string) (int64, error) {
	res, err := q.ExecContext(ctx, `UPDATE messages SET is_read = TRUE
        WHERE chat_id=$1 AND sender_id<>$2 AND is_read = FALSE`, chatID, readerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
