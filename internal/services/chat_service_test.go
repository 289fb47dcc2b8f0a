package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-app-service/internal/logger"
	"chat-app-service/internal/mocks"
	"chat-app-service/internal/models"
	"chat-app-service/internal/services"
)

type fixture struct {
	store     *memStore
	rooms     *mocks.RoomDirectoryMock
	directory *mocks.UserDirectoryMock
	ties      *mocks.TiesServiceMock
	notifier  *mocks.ReadNotifierMock
	reconcile *mocks.ReconciliationLogMock
	svc       *services.ChatService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     newMemStore(),
		rooms:     &mocks.RoomDirectoryMock{},
		directory: &mocks.UserDirectoryMock{},
		ties:      &mocks.TiesServiceMock{},
		notifier:  &mocks.ReadNotifierMock{},
		reconcile: &mocks.ReconciliationLogMock{},
	}
	f.svc = services.NewChatService(services.Deps{
		Tx:            f.store,
		Chats:         chatRepo{f.store},
		Users:         userRepo{f.store},
		Messages:      messageRepo{f.store},
		Rooms:         f.rooms,
		Directory:     f.directory,
		Ties:          f.ties,
		Notifier:      f.notifier,
		Reconcile:     f.reconcile,
		Logger:        logger.Nop(),
		RemoteTimeout: time.Second,
	})
	return f
}

func (f *fixture) isMember(t *testing.T, chatID int64, userID string) bool {
	t.Helper()
	ok, err := chatRepo{f.store}.IsMember(context.Background(), nil, chatID, userID)
	require.NoError(t, err)
	return ok
}

func TestCreateConcurrentSameTitleExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	f.rooms.On("GetRoom", mock.Anything, int64(1)).Return(&models.Room{ID: 1}, nil)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), models.ChatCreate{Title: "general", RoomID: 1})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, services.ErrChatAlreadyExists):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
	assert.Equal(t, 1, f.store.chatCount())
}

func TestCreateChecksRoomBeforeWriting(t *testing.T) {
	f := newFixture(t)
	f.rooms.On("GetRoom", mock.Anything, int64(7)).Return(nil, nil)
	f.rooms.On("GetRoom", mock.Anything, int64(8)).Return(nil, errors.New("connection refused"))

	_, err := f.svc.Create(context.Background(), models.ChatCreate{Title: "a", RoomID: 7})
	assert.ErrorIs(t, err, services.ErrRoomNotFound)

	_, err = f.svc.Create(context.Background(), models.ChatCreate{Title: "a", RoomID: 8})
	assert.ErrorIs(t, err, services.ErrUpstreamUnavailable)
	assert.Equal(t, 0, f.store.chatCount())
}

func TestCreateRejectsTakenTitleAndBadStatus(t *testing.T) {
	f := newFixture(t)
	f.store.seedChat("general", 1, models.ChatStatusActive, "u1")

	_, err := f.svc.Create(context.Background(), models.ChatCreate{Title: "general", RoomID: 1})
	assert.ErrorIs(t, err, services.ErrChatAlreadyExists)

	_, err = f.svc.Create(context.Background(), models.ChatCreate{Title: "other", RoomID: 1, Status: "deleted"})
	assert.ErrorIs(t, err, services.ErrInvalidStatus)

	_, err = f.svc.Create(context.Background(), models.ChatCreate{Title: "  ", RoomID: 1})
	assert.ErrorIs(t, err, services.ErrInvalidTitle)
	assert.Equal(t, 1, f.store.chatCount())
	f.rooms.AssertNotCalled(t, "GetRoom", mock.Anything, mock.Anything)
}

func TestCreateWithInitialMembers(t *testing.T) {
	f := newFixture(t)
	f.rooms.On("GetRoom", mock.Anything, int64(1)).Return(&models.Room{ID: 1}, nil)
	f.directory.On("GetUser", mock.Anything, "u1").Return(&models.User{UserID: "u1", UserName: "Ann"}, nil).Once()
	f.store.seedUser(models.User{UserID: "u2", UserName: "Bob"})

	view, err := f.svc.Create(context.Background(), models.ChatCreate{
		Title:     "pair",
		RoomID:    1,
		MemberIDs: []string{"u1", "u2", "u1"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ChatStatusActive, view.Status)
	require.Len(t, view.Members, 2)
	assert.Equal(t, "Ann", view.Members[0].UserName)
	assert.Nil(t, view.Partner)
	assert.True(t, f.store.hasUser("u1"))
	f.directory.AssertExpectations(t)
}

func TestCreateWithUnknownMemberWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.rooms.On("GetRoom", mock.Anything, int64(1)).Return(&models.Room{ID: 1}, nil)
	f.directory.On("GetUser", mock.Anything, "ghost").Return(nil, nil)

	_, err := f.svc.Create(context.Background(), models.ChatCreate{Title: "x", RoomID: 1, MemberIDs: []string{"ghost"}})
	assert.ErrorIs(t, err, services.ErrUserNotFound)
	assert.Equal(t, 0, f.store.chatCount())
}

func TestAttachCachesUserFromDirectory(t *testing.T) {
	f := newFixture(t)
	chatID := f.store.seedChat("c", 1, models.ChatStatusActive, "owner")
	f.directory.On("GetUser", mock.Anything, "U1").Return(&models.User{UserID: "U1", UserName: "Alice"}, nil).Once()

	err := f.svc.Attach(context.Background(), models.ChatMembership{ChatID: chatID, UserID: "U1"}, "owner")
	require.NoError(t, err)

	assert.True(t, f.store.hasUser("U1"))
	assert.True(t, f.isMember(t, chatID, "U1"))
	u, err := userRepo{f.store}.GetUser(context.Background(), nil, "U1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.UserName)
}

func TestAttachUnknownUserLeavesChatUntouched(t *testing.T) {
	f := newFixture(t)
	chatID := f.store.seedChat("c", 1, models.ChatStatusActive, "owner")
	f.directory.On("GetUser", mock.Anything, "U2").Return(nil, nil)

	err := f.svc.Attach(context.Background(), models.ChatMembership{ChatID: chatID, UserID: "U2"}, "owner")
	assert.ErrorIs(t, err, services.ErrUserNotFound)
	assert.Equal(t, 1, f.store.memberCount(chatID))
	assert.False(t, f.store.hasUser("U2"))
}

func TestAttachTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	chatID := f.store.seedChat("c", 1, models.ChatStatusActive, "owner")
	f.store.seedUser(models.User{UserID: "u2", UserName: "Bob"})
	in := models.ChatMembership{ChatID: chatID, UserID: "u2"}

	require.NoError(t, f.svc.Attach(context.Background(), in, "owner"))
	err := f.svc.Attach(context.Background(), in, "owner")

	assert.ErrorIs(t, err, services.ErrMembershipAlreadyExists)
	assert.Equal(t, 2, f.store.memberCount(chatID))
	f.directory.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
}

func TestAttachGuards(t *testing.T) {
	f := newFixture(t)
	active := f.store.seedChat("active", 1, models.ChatStatusActive, "owner")
	archived := f.store.seedChat("archived", 1, models.ChatStatusArchived, "owner")
	f.store.seedUser(models.User{UserID: "u2"})
	f.directory.On("GetUser", mock.Anything, "u3").Return(nil, errors.New("deadline exceeded"))

	tests := []struct {
		name      string
		in        models.ChatMembership
		requester string
		want      error
	}{
		{"missing chat", models.ChatMembership{ChatID: 999, UserID: "u2"}, "owner", services.ErrChatNotFound},
		{"requester not a member", models.ChatMembership{ChatID: active, UserID: "u2"}, "stranger", services.ErrMembershipMissing},
		{"archived chat", models.ChatMembership{ChatID: archived, UserID: "u2"}, "owner", services.ErrAccessDenied},
		{"directory down", models.ChatMembership{ChatID: active, UserID: "u3"}, "owner", services.ErrUpstreamUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.Attach(context.Background(), tt.in, tt.requester)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 1, f.store.memberCount(active))
	assert.Equal(t, 1, f.store.memberCount(archived))
}

func TestDetach(t *testing.T) {
	f := newFixture(t)
	chatID := f.store.seedChat("c", 1, models.ChatStatusActive, "owner", "u2")
	in := models.ChatMembership{ChatID: chatID, UserID: "u2"}

	assert.ErrorIs(t, f.svc.Detach(context.Background(), in, "stranger"), services.ErrMembershipMissing)
	require.NoError(t, f.svc.Detach(context.Background(), in, "owner"))
	assert.False(t, f.isMember(t, chatID, "u2"))
	assert.ErrorIs(t, f.svc.Detach(context.Background(), in, "owner"), services.ErrMembershipMissing)
}

func TestDetachRequiresCachedUser(t *testing.T) {
	f := newFixture(t)
	chatID := f.store.seedChat("c", 1, models.ChatStatusActive, "owner", "u2")
	f.store.mu.Lock()
	delete(f.store.users, "u2")
	f.store.mu.Unlock()

	err := f.svc.Detach(context.Background(), models.ChatMembership{ChatID: chatID, UserID: "u2"}, "owner")
	assert.ErrorIs(t, err, services.ErrUserNotFound)
	assert.True(t, f.isMember(t, chatID, "u2"))
}

func TestDeleteCascadesAndDetachesPartner(t *testing.T) {
	f := newFixture(t)
	chatID := f.store.seedChat("c", 1, models.ChatStatusActive, "u1", "u2", "u3")
	f.ties.On("DetachPartner", mock.Anything, "Bearer tok", "u2").Return(nil).Once()

	require.NoError(t, f.svc.Delete(context.Background(), chatID, "u1", "Bearer tok"))

	for _, u := range []string{"u1", "u2", "u3"} {
		assert.False(t, f.isMember(t, chatID, u), u)
	}
	assert.Equal(t, 0, f.store.chatCount())
	f.ties.AssertExpectations(t)
}

func TestDeleteRecordsTiesFailureButSucceeds(t *testing.T) {
	f := newFixture(t)
	chatID := f.store.seedChat("c", 1, models.ChatStatusActive, "u1", "u2")
	f.ties.On("DetachPartner", mock.Anything, "tok", "u2").Return(errors.New("503"))
	f.reconcile.On("RecordTiesDetachFailure", mock.Anything, mock.MatchedBy(func(r models.TiesDetachFailure) bool {
		return r.ChatID == chatID && r.RequesterID == "u1" && r.PartnerID == "u2" && r.Reason == "503"
	})).Return(nil).Once()

	require.NoError(t, f.svc.Delete(context.Background(), chatID, "u1", "tok"))
	assert.Equal(t, 0, f.store.chatCount())
	f.reconcile.AssertExpectations(t)
}

func TestDeleteGuards(t *testing.T) {
	f := newFixture(t)
	solo := f.store.seedChat("solo", 1, models.ChatStatusActive, "u1")
	shared := f.store.seedChat("shared", 1, models.ChatStatusActive, "u1", "u2")

	assert.ErrorIs(t, f.svc.Delete(context.Background(), 999, "u1", ""), services.ErrChatNotFound)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), shared, "u3", ""), services.ErrMembershipMissing)
	require.NoError(t, f.svc.Delete(context.Background(), solo, "u1", ""))

	assert.Equal(t, 1, f.store.chatCount())
	f.ties.AssertNotCalled(t, "DetachPartner", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteBetweenPairIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.store.seedChat("pair", 1, models.ChatStatusActive, "u1", "u2")
	other := f.store.seedChat("other", 1, models.ChatStatusActive, "u1", "u3")

	require.NoError(t, f.svc.DeleteBetweenPair(context.Background(), "u2", "u1"))
	require.NoError(t, f.svc.DeleteBetweenPair(context.Background(), "u1", "u2"))
	require.NoError(t, f.svc.DeleteBetweenPair(context.Background(), "u1", "u1"))

	assert.Equal(t, 1, f.store.chatCount())
	assert.True(t, f.isMember(t, other, "u3"))
	f.ties.AssertNotCalled(t, "DetachPartner", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteBetweenPairKeepsGroupChats(t *testing.T) {
	f := newFixture(t)
	team := f.store.seedChat("team", 1, models.ChatStatusActive, "u1", "u2", "u3", "u4")
	f.store.seedChat("pair", 1, models.ChatStatusActive, "u1", "u2")

	require.NoError(t, f.svc.DeleteBetweenPair(context.Background(), "u1", "u2"))

	assert.Equal(t, 1, f.store.chatCount())
	for _, id := range []string{"u1", "u2", "u3", "u4"} {
		assert.True(t, f.isMember(t, team, id), id)
	}

	// Only a group left: nothing else to tear down.
	require.NoError(t, f.svc.DeleteBetweenPair(context.Background(), "u1", "u2"))
	assert.Equal(t, 1, f.store.chatCount())
}

func TestListEmptyPageIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.store.seedChat("a", 1, models.ChatStatusArchived, "u1", "u2")
	f.store.seedChat("b", 1, models.ChatStatusActive, "u3")

	_, err := f.svc.List(context.Background(), models.ChatFilter{}, "u9", "/chats")
	assert.ErrorIs(t, err, services.ErrChatNotFound)
}

func TestListTotalIgnoresMembership(t *testing.T) {
	f := newFixture(t)
	f.store.seedChat("a", 1, models.ChatStatusActive, "u2")
	mine := f.store.seedChat("b", 1, models.ChatStatusActive, "u1", "u2")
	f.store.seedChat("c", 1, models.ChatStatusActive, "u3")

	page, err := f.svc.List(context.Background(), models.ChatFilter{}, "u1", "/chats")
	require.NoError(t, err)

	require.Len(t, page.Data, 1)
	assert.Equal(t, mine, page.Data[0].ID)
	require.NotNil(t, page.Data[0].Partner)
	assert.Equal(t, "u2", page.Data[0].Partner.UserID)
	assert.Equal(t, 3, page.Meta.Total)
	assert.Equal(t, 1, page.Meta.LastPage)
	assert.Equal(t, 10, page.Meta.PerPage)
	assert.Equal(t, "/chats", page.Meta.Path)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.List(context.Background(), models.ChatFilter{Status: "gone"}, "u1", "/chats")
	assert.ErrorIs(t, err, services.ErrInvalidStatus)
}

func TestGetReturnsSelfView(t *testing.T) {
	f := newFixture(t)
	chatID := f.store.seedChat("c", 1, models.ChatStatusActive, "u1", "u2")

	view, err := f.svc.Get(context.Background(), chatID, "u2")
	require.NoError(t, err)
	require.Len(t, view.Members, 1)
	assert.Equal(t, "u1", view.Members[0].UserID)
	require.NotNil(t, view.Partner)
	assert.Equal(t, "u1", view.Partner.UserID)

	_, err = f.svc.Get(context.Background(), chatID, "u3")
	assert.ErrorIs(t, err, services.ErrMembershipMissing)

	public, err := f.svc.GetPublic(context.Background(), chatID)
	require.NoError(t, err)
	assert.Len(t, public.Members, 2)

	_, err = f.svc.GetPublic(context.Background(), 404)
	assert.ErrorIs(t, err, services.ErrChatNotFound)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	chatID := f.store.seedChat("c", 1, models.ChatStatusActive, "u1")
	f.store.seedChat("taken", 1, models.ChatStatusActive, "u9")
	f.rooms.On("GetRoom", mock.Anything, int64(5)).Return(nil, nil)

	title := "taken"
	assert.ErrorIs(t, f.svc.Update(context.Background(), chatID, models.ChatUpdate{Title: &title}, "u1"), services.ErrChatAlreadyExists)

	for _, blank := range []string{"", "   "} {
		blank := blank
		assert.ErrorIs(t, f.svc.Update(context.Background(), chatID, models.ChatUpdate{Title: &blank}, "u1"), services.ErrInvalidTitle)
	}
	unchanged, err := f.svc.GetPublic(context.Background(), chatID)
	require.NoError(t, err)
	assert.Equal(t, "c", unchanged.Title)

	bad := models.ChatStatus("deleted")
	assert.ErrorIs(t, f.svc.Update(context.Background(), chatID, models.ChatUpdate{Status: &bad}, "u1"), services.ErrInvalidStatus)

	room := int64(5)
	assert.ErrorIs(t, f.svc.Update(context.Background(), chatID, models.ChatUpdate{RoomID: &room}, "u1"), services.ErrRoomNotFound)
	assert.ErrorIs(t, f.svc.Update(context.Background(), chatID, models.ChatUpdate{RoomID: &room}, "u2"), services.ErrMembershipMissing)

	archived := models.ChatStatusArchived
	same := "c"
	require.NoError(t, f.svc.Update(context.Background(), chatID, models.ChatUpdate{Title: &same, Status: &archived}, "u1"))

	view, err := f.svc.GetPublic(context.Background(), chatID)
	require.NoError(t, err)
	assert.Equal(t, models.ChatStatusArchived, view.Status)
	f.rooms.AssertNumberOfCalls(t, "GetRoom", 1)
}

func TestMarkReadByNonMemberDoesNothing(t *testing.T) {
	f := newFixture(t)
	chatID := f.store.seedChat("c", 1, models.ChatStatusActive, "u1")

	err := f.svc.MarkRead(context.Background(), chatID, "u3")
	assert.ErrorIs(t, err, services.ErrMembershipMissing)
	assert.Empty(t, f.store.reads())
	f.notifier.AssertNotCalled(t, "ChatRead", mock.Anything, mock.Anything)
}

func TestMarkReadNotifiesAfterCommit(t *testing.T) {
	f := newFixture(t)
	chatID := f.store.seedChat("c", 1, models.ChatStatusActive, "u1")
	ev := models.ChatReadEvent{ChatID: chatID, ReaderID: "u1"}
	f.notifier.On("ChatRead", mock.Anything, ev).Once()

	require.NoError(t, f.svc.MarkRead(context.Background(), chatID, "u1"))
	assert.Equal(t, []models.ChatReadEvent{ev}, f.store.reads())
	f.notifier.AssertExpectations(t)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "ok", services.Kind(nil))
	assert.Equal(t, "room_not_found", services.Kind(services.ErrRoomNotFound))
	assert.Equal(t, "invalid_title", services.Kind(services.ErrInvalidTitle))
	assert.Equal(t, "upstream_unavailable", services.Kind(errors.Join(errors.New("x"), services.ErrUpstreamUnavailable)))
	assert.Equal(t, "internal", services.Kind(errors.New("pq: connection reset")))
}
