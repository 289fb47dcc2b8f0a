package services_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"chat-app-service/internal/db"
	"chat-app-service/internal/models"
	"chat-app-service/internal/repositories"
)

// memStore is an in-memory stand-in for postgres. Scopes are serialized and
// roll back by restoring a snapshot; unique and foreign keys behave like the
// real schema.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextID    int64
	clock     time.Time
	chats     map[int64]models.Chat
	members   map[int64][]models.ChatMember
	users     map[string]models.User
	readCalls []models.ChatReadEvent
}

func newMemStore() *memStore {
	return &memStore{
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		chats:   map[int64]models.Chat{},
		members: map[int64][]models.ChatMember{},
		users:   map[string]models.User{},
	}
}

type snapshot struct {
	nextID  int64
	chats   map[int64]models.Chat
	members map[int64][]models.ChatMember
	users   map[string]models.User
}

func (s *memStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		nextID:  s.nextID,
		chats:   make(map[int64]models.Chat, len(s.chats)),
		members: make(map[int64][]models.ChatMember, len(s.members)),
		users:   make(map[string]models.User, len(s.users)),
	}
	for k, v := range s.chats {
		snap.chats[k] = v
	}
	for k, v := range s.members {
		snap.members[k] = append([]models.ChatMember(nil), v...)
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	return snap
}

func (s *memStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID, s.chats, s.members, s.users = snap.nextID, snap.chats, snap.members, snap.users
}

// WithinTx implements db.Transactor.
func (s *memStore) WithinTx(ctx context.Context, fn func(q db.Querier) error) (err error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
		if err != nil {
			s.restore(snap)
		}
	}()
	return fn(nil)
}

func (s *memStore) Reader() db.Querier { return nil }

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// seedChat inserts a chat with members whose user rows are cached.
func (s *memStore) seedChat(title string, roomID int64, status models.ChatStatus, memberIDs ...string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.chats[id] = models.Chat{ID: id, Title: title, RoomID: roomID, Status: status, CreatedAt: s.tick()}
	for _, uid := range memberIDs {
		if _, ok := s.users[uid]; !ok {
			s.users[uid] = models.User{UserID: uid, UserName: uid}
		}
		s.members[id] = append(s.members[id], models.ChatMember{ChatID: id, UserID: uid, UserName: s.users[uid].UserName, JoinedAt: s.tick()})
	}
	return id
}

func (s *memStore) seedUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.UserID] = u
}

func (s *memStore) memberCount(chatID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members[chatID])
}

func (s *memStore) hasUser(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[userID]
	return ok
}

func (s *memStore) chatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chats)
}

func (s *memStore) reads() []models.ChatReadEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ChatReadEvent(nil), s.readCalls...)
}

func (s *memStore) matches(c models.Chat, f models.ChatListFilter) bool {
	if f.RoomID != nil && c.RoomID != *f.RoomID {
		return false
	}
	if f.Title != "" && c.Title != f.Title {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.MemberID != "" && !s.isMember(c.ID, f.MemberID) {
		return false
	}
	return true
}

func (s *memStore) isMember(chatID int64, userID string) bool {
	for _, m := range s.members[chatID] {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func (s *memStore) withMembers(c models.Chat) models.Chat {
	c.Members = append([]models.ChatMember{}, s.members[c.ID]...)
	return c
}

// chatRepo adapts memStore to repositories.ChatRepository.
type chatRepo struct{ s *memStore }

func (r chatRepo) List(_ context.Context, _ db.Querier, f models.ChatListFilter, page, limit int) ([]models.Chat, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]models.Chat, 0, len(s.chats))
	for _, c := range s.chats {
		if s.matches(c, f) {
			all = append(all, s.withMembers(c))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	from := models.Offset(page, limit)
	if from >= len(all) {
		return []models.Chat{}, nil
	}
	to := from + limit
	if to > len(all) {
		to = len(all)
	}
	return all[from:to], nil
}

func (r chatRepo) Count(_ context.Context, _ db.Querier, f models.ChatListFilter) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.chats {
		if s.matches(c, f) {
			n++
		}
	}
	return n, nil
}

func (r chatRepo) Get(_ context.Context, _ db.Querier, chatID int64) (models.Chat, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return models.Chat{}, repositories.ErrChatNotFound
	}
	return s.withMembers(c), nil
}

func (r chatRepo) Create(_ context.Context, _ db.Querier, in models.ChatCreate) (models.Chat, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.chats {
		if c.Title == in.Title {
			return models.Chat{}, repositories.ErrDuplicate
		}
	}
	s.nextID++
	c := models.Chat{ID: s.nextID, Title: in.Title, RoomID: in.RoomID, Status: in.Status, CreatedAt: s.tick()}
	s.chats[c.ID] = c
	c.Members = []models.ChatMember{}
	return c, nil
}

func (r chatRepo) Update(_ context.Context, _ db.Querier, chatID int64, p models.ChatUpdate) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return repositories.ErrChatNotFound
	}
	if p.Title != nil {
		for id, other := range s.chats {
			if id != chatID && other.Title == *p.Title {
				return repositories.ErrDuplicate
			}
		}
		c.Title = *p.Title
	}
	if p.RoomID != nil {
		c.RoomID = *p.RoomID
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	s.chats[chatID] = c
	return nil
}

func (r chatRepo) Delete(_ context.Context, _ db.Querier, chatID int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[chatID]; !ok {
		return repositories.ErrChatNotFound
	}
	delete(s.chats, chatID)
	delete(s.members, chatID)
	return nil
}

func (r chatRepo) IsMember(_ context.Context, _ db.Querier, chatID int64, userID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.isMember(chatID, userID), nil
}

func (r chatRepo) FindMembership(_ context.Context, _ db.Querier, chatID int64, userID string) (*models.ChatMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.members[chatID] {
		if m.UserID == userID {
			m := m
			return &m, nil
		}
	}
	return nil, nil
}

func (r chatRepo) FindChatBetween(_ context.Context, _ db.Querier, userA, userB string) (int64, bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0)
	for id := range s.chats {
		if len(s.members[id]) == 2 && s.isMember(id, userA) && s.isMember(id, userB) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids[0], true, nil
}

func (r chatRepo) AddMember(_ context.Context, _ db.Querier, chatID int64, userID string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[chatID]; !ok {
		return repositories.ErrChatNotFound
	}
	if s.isMember(chatID, userID) {
		return repositories.ErrDuplicate
	}
	u := s.users[userID]
	s.members[chatID] = append(s.members[chatID], models.ChatMember{
		ChatID: chatID, UserID: userID, UserName: u.UserName, UserAvatar: u.UserAvatar, JoinedAt: s.tick(),
	})
	return nil
}

func (r chatRepo) RemoveMember(_ context.Context, _ db.Querier, chatID int64, userID string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.members[chatID]
	for i, m := range list {
		if m.UserID == userID {
			s.members[chatID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return repositories.ErrMembershipNotFound
}

type userRepo struct{ s *memStore }

func (r userRepo) CheckUser(_ context.Context, _ db.Querier, userID string) (bool, error) {
	return r.s.hasUser(userID), nil
}

func (r userRepo) CreateUser(_ context.Context, _ db.Querier, u models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.UserID]; !ok {
		r.s.users[u.UserID] = u
	}
	return nil
}

func (r userRepo) GetUser(_ context.Context, _ db.Querier, userID string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return models.User{}, repositories.ErrUserNotFound
	}
	return u, nil
}

type messageRepo struct{ s *memStore }

func (r messageRepo) ReadMessages(_ context.Context, _ db.Querier, chatID int64, readerID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.readCalls = append(r.s.readCalls, models.ChatReadEvent{ChatID: chatID, ReaderID: readerID})
	return 0, nil
}
