package repositories

import (
	"context"
	"database/sql"
	"errors"

	"chat-app-service/internal/db"
	"chat-app-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository manages the local projection of user directory records.
type UserRepository interface {
	CheckUser(ctx context.Context, q db.Querier, userID string) (bool, error)
	CreateUser(ctx context.Context, q db.Querier, user models.User) error
	GetUser(ctx context.Context, q db.Querier, userID string) (models.User, error)
}

// UserRepo is a sqlx-backed repository.
type UserRepo struct{}

// NewUserRepo constructs UserRepo.
func NewUserRepo() *UserRepo {
	return &UserRepo{}
}

// CheckUser reports whether a cache row exists.
func (r *UserRepo) CheckUser(ctx context.Context, q db.Querier, userID string) (bool, error) {
	var exists bool
	err := q.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE user_id=$1)`, userID)
	return exists, err
}

// CreateUser inserts the cache row; a row created concurrently is kept as is.
func (r *UserRepo) CreateUser(ctx context.Context, q db.Querier, user models.User) error {
	_, err := q.ExecContext(ctx, `INSERT INTO users (user_id, user_name, user_avatar) VALUES ($1, $2, $3)
        ON CONFLICT (user_id) DO NOTHING`, user.UserID, user.UserName, user.UserAvatar)
	return err
}

// GetUser fetches a cache row.
func (r *UserRepo) GetUser(ctx context.Context, q db.Querier, userID string) (models.User, error) {
	var user models.User
	err := q.GetContext(ctx, &user, `SELECT user_id, user_name, user_avatar, created_at FROM users WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}
