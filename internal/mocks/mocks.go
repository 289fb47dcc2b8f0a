package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-app-service/internal/models"
)

type ChatServiceMock struct {
	mock.Mock
}

func (m *ChatServiceMock) List(ctx context.Context, filter models.ChatFilter, requesterID, path string) (models.Page[models.ChatView], error) {
	args := m.Called(ctx, filter, requesterID, path)
	var page models.Page[models.ChatView]
	if val := args.Get(0); val != nil {
		page = val.(models.Page[models.ChatView])
	}
	return page, args.Error(1)
}

func (m *ChatServiceMock) Get(ctx context.Context, chatID int64, requesterID string) (models.ChatView, error) {
	args := m.Called(ctx, chatID, requesterID)
	var view models.ChatView
	if val := args.Get(0); val != nil {
		view = val.(models.ChatView)
	}
	return view, args.Error(1)
}

func (m *ChatServiceMock) GetPublic(ctx context.Context, chatID int64) (models.ChatView, error) {
	args := m.Called(ctx, chatID)
	var view models.ChatView
	if val := args.Get(0); val != nil {
		view = val.(models.ChatView)
	}
	return view, args.Error(1)
}

func (m *ChatServiceMock) Create(ctx context.Context, in models.ChatCreate) (models.ChatView, error) {
	args := m.Called(ctx, in)
	var view models.ChatView
	if val := args.Get(0); val != nil {
		view = val.(models.ChatView)
	}
	return view, args.Error(1)
}

func (m *ChatServiceMock) Update(ctx context.Context, chatID int64, patch models.ChatUpdate, requesterID string) error {
	args := m.Called(ctx, chatID, patch, requesterID)
	return args.Error(0)
}

func (m *ChatServiceMock) MarkRead(ctx context.Context, chatID int64, requesterID string) error {
	args := m.Called(ctx, chatID, requesterID)
	return args.Error(0)
}

func (m *ChatServiceMock) Delete(ctx context.Context, chatID int64, requesterID, authToken string) error {
	args := m.Called(ctx, chatID, requesterID, authToken)
	return args.Error(0)
}

func (m *ChatServiceMock) DeleteBetweenPair(ctx context.Context, userA, userB string) error {
	args := m.Called(ctx, userA, userB)
	return args.Error(0)
}

func (m *ChatServiceMock) Attach(ctx context.Context, in models.ChatMembership, requesterID string) error {
	args := m.Called(ctx, in, requesterID)
	return args.Error(0)
}

func (m *ChatServiceMock) Detach(ctx context.Context, in models.ChatMembership, requesterID string) error {
	args := m.Called(ctx, in, requesterID)
	return args.Error(0)
}

type RoomDirectoryMock struct {
	mock.Mock
}

func (m *RoomDirectoryMock) GetRoom(ctx context.Context, roomID int64) (*models.Room, error) {
	args := m.Called(ctx, roomID)
	var room *models.Room
	if val := args.Get(0); val != nil {
		room = val.(*models.Room)
	}
	return room, args.Error(1)
}

type UserDirectoryMock struct {
	mock.Mock
}

func (m *UserDirectoryMock) GetUser(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	var user *models.User
	if val := args.Get(0); val != nil {
		user = val.(*models.User)
	}
	return user, args.Error(1)
}

type TiesServiceMock struct {
	mock.Mock
}

func (m *TiesServiceMock) DetachPartner(ctx context.Context, authToken, partnerID string) error {
	args := m.Called(ctx, authToken, partnerID)
	return args.Error(0)
}

type ReadNotifierMock struct {
	mock.Mock
}

func (m *ReadNotifierMock) ChatRead(ctx context.Context, ev models.ChatReadEvent) {
	m.Called(ctx, ev)
}

type ReconciliationLogMock struct {
	mock.Mock
}

func (m *ReconciliationLogMock) RecordTiesDetachFailure(ctx context.Context, f models.TiesDetachFailure) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}
