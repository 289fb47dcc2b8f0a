package services

import (
	"context"
	"fmt"
	"time"

	"chat-app-service/internal/db"
	"chat-app-service/internal/models"
	"chat-app-service/internal/repositories"
)

// UserDirectory is the remote source of truth for users.
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

// UserSynchronizer makes sure a user referenced by a membership has a local
// cache row. The remote directory is only ever read.
type UserSynchronizer struct {
	tx        db.Transactor
	users     repositories.UserRepository
	directory UserDirectory
	timeout   time.Duration
}

func NewUserSynchronizer(tx db.Transactor, users repositories.UserRepository, directory UserDirectory, timeout time.Duration) *UserSynchronizer {
	return &UserSynchronizer{tx: tx, users: users, directory: directory, timeout: timeout}
}

// Resolve returns the record to cache for userID, or nil when it is already
// cached. It must be called outside of a transactional scope.
func (s *UserSynchronizer) Resolve(ctx context.Context, userID string) (*models.User, error) {
	cached, err := s.users.CheckUser(ctx, s.tx.Reader(), userID)
	if err != nil {
		return nil, fmt.Errorf("check user cache: %w", err)
	}
	if cached {
		return nil, nil
	}

	rctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	user, err := s.directory.GetUser(rctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: user directory: %v", ErrUpstreamUnavailable, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	user.UserID = userID
	return user, nil
}

// Persist writes a resolved record inside the caller's scope. A row inserted
// concurrently by another request is left untouched.
func (s *UserSynchronizer) Persist(ctx context.Context, q db.Querier, user *models.User) error {
	if user == nil {
		return nil
	}
	if err := s.users.CreateUser(ctx, q, *user); err != nil {
		return fmt.Errorf("cache user %s: %w", user.UserID, err)
	}
	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
