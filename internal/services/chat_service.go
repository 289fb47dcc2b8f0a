package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"chat-app-service/internal/access"
	"chat-app-service/internal/db"
	"chat-app-service/internal/models"
	"chat-app-service/internal/observability"
	"chat-app-service/internal/repositories"
)

var tracer = otel.Tracer("chat-app-service/services")

// RoomDirectory answers whether a room exists. A missing room is (nil, nil).
type RoomDirectory interface {
	GetRoom(ctx context.Context, roomID int64) (*models.Room, error)
}

// TiesService removes relationship-graph ties.
type TiesService interface {
	DetachPartner(ctx context.Context, authToken, partnerID string) error
}

// ReadNotifier receives chat_read events once the read state is committed.
type ReadNotifier interface {
	ChatRead(ctx context.Context, ev models.ChatReadEvent)
}

// ReconciliationLog keeps ties detaches that must be retried out of band.
type ReconciliationLog interface {
	RecordTiesDetachFailure(ctx context.Context, f models.TiesDetachFailure) error
}

type Deps struct {
	Tx            db.Transactor
	Chats         repositories.ChatRepository
	Users         repositories.UserRepository
	Messages      repositories.MessageRepository
	Rooms         RoomDirectory
	Directory     UserDirectory
	Ties          TiesService
	Notifier      ReadNotifier
	Reconcile     ReconciliationLog
	Logger        *slog.Logger
	RemoteTimeout time.Duration
}

// ChatService runs chat and membership operations. Every operation opens one
// transactional scope; remote collaborators are consulted before the scope
// opens or after it commits, never while it is open.
type ChatService struct {
	tx        db.Transactor
	chats     repositories.ChatRepository
	users     repositories.UserRepository
	messages  repositories.MessageRepository
	rooms     RoomDirectory
	ties      TiesService
	notifier  ReadNotifier
	reconcile ReconciliationLog
	sync      *UserSynchronizer
	logger    *slog.Logger
	timeout   time.Duration
}

func NewChatService(d Deps) *ChatService {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{
		tx:        d.Tx,
		chats:     d.Chats,
		users:     d.Users,
		messages:  d.Messages,
		rooms:     d.Rooms,
		ties:      d.Ties,
		notifier:  d.Notifier,
		reconcile: d.Reconcile,
		sync:      NewUserSynchronizer(d.Tx, d.Users, d.Directory, d.RemoteTimeout),
		logger:    logger,
		timeout:   d.RemoteTimeout,
	}
}

// List returns the requester's chats. An empty page is reported as
// ErrChatNotFound, and the total counts every chat matching the filter
// regardless of membership.
func (s *ChatService) List(ctx context.Context, filter models.ChatFilter, requesterID, path string) (page models.Page[models.ChatView], err error) {
	ctx, done := s.track(ctx, "list")
	defer done(&err)

	scoped := filter.Scoped(requesterID)
	if scoped.Status != "" && !scoped.Status.Valid() {
		return page, ErrInvalidStatus
	}
	pageNo, limit := models.NormalizePaging(filter.Page, filter.Limit)

	var (
		chats []models.Chat
		total int
	)
	err = s.tx.WithinTx(ctx, func(q db.Querier) error {
		var err error
		chats, err = s.chats.List(ctx, q, scoped, pageNo, limit)
		if err != nil {
			return fmt.Errorf("list chats: %w", err)
		}
		if len(chats) == 0 {
			return ErrChatNotFound
		}

		unscoped := scoped
		unscoped.MemberID = ""
		total, err = s.chats.Count(ctx, q, unscoped)
		if err != nil {
			return fmt.Errorf("count chats: %w", err)
		}
		return nil
	})
	if err != nil {
		return page, err
	}

	views := make([]models.ChatView, 0, len(chats))
	for _, chat := range chats {
		views = append(views, models.SelfView(chat, requesterID))
	}
	return models.Page[models.ChatView]{
		Data: views,
		Meta: models.NewPageMeta(pageNo, limit, total, path),
	}, nil
}

// Get returns the chat as seen by a member.
func (s *ChatService) Get(ctx context.Context, chatID int64, requesterID string) (view models.ChatView, err error) {
	ctx, done := s.track(ctx, "get")
	defer done(&err)

	err = s.tx.WithinTx(ctx, func(q db.Querier) error {
		chat, err := s.authorized(ctx, q, chatID, requesterID)
		if err != nil {
			return err
		}
		view = models.SelfView(*chat, requesterID)
		return nil
	})
	return view, err
}

// GetPublic returns the chat with its full member list, without a requester.
func (s *ChatService) GetPublic(ctx context.Context, chatID int64) (view models.ChatView, err error) {
	ctx, done := s.track(ctx, "get_public")
	defer done(&err)

	err = s.tx.WithinTx(ctx, func(q db.Querier) error {
		chat, err := s.loadChat(ctx, q, chatID)
		if err != nil {
			return err
		}
		if chat == nil {
			return ErrChatNotFound
		}
		view = models.PublicView(*chat)
		return nil
	})
	return view, err
}

// Create inserts a chat after checking the title is free and the room exists.
// MemberIDs, when given, become the first members.
func (s *ChatService) Create(ctx context.Context, in models.ChatCreate) (view models.ChatView, err error) {
	ctx, done := s.track(ctx, "create")
	defer done(&err)

	if in.Status == "" {
		in.Status = models.ChatStatusActive
	}
	if !in.Status.Valid() {
		return view, ErrInvalidStatus
	}
	if !validTitle(in.Title) {
		return view, ErrInvalidTitle
	}

	taken, err := s.chats.Count(ctx, s.tx.Reader(), models.ChatListFilter{Title: in.Title})
	if err != nil {
		return view, fmt.Errorf("check title: %w", err)
	}
	if taken > 0 {
		return view, ErrChatAlreadyExists
	}
	if err := s.requireRoom(ctx, in.RoomID); err != nil {
		return view, err
	}

	memberIDs := uniqueIDs(in.MemberIDs)
	resolved := make([]*models.User, 0, len(memberIDs))
	for _, id := range memberIDs {
		user, err := s.sync.Resolve(ctx, id)
		if err != nil {
			return view, err
		}
		resolved = append(resolved, user)
	}

	err = s.tx.WithinTx(ctx, func(q db.Querier) error {
		chat, err := s.chats.Create(ctx, q, in)
		if errors.Is(err, repositories.ErrDuplicate) {
			return ErrChatAlreadyExists
		}
		if err != nil {
			return fmt.Errorf("insert chat: %w", err)
		}

		for _, user := range resolved {
			if err := s.sync.Persist(ctx, q, user); err != nil {
				return err
			}
		}
		for _, id := range memberIDs {
			if err := s.chats.AddMember(ctx, q, chat.ID, id); err != nil {
				return fmt.Errorf("add member %s: %w", id, err)
			}
		}

		created, err := s.chats.Get(ctx, q, chat.ID)
		if err != nil {
			return fmt.Errorf("reload chat: %w", err)
		}
		view = models.PublicView(created)
		return nil
	})
	return view, err
}

// Update changes title, room or status of a chat the requester belongs to.
func (s *ChatService) Update(ctx context.Context, chatID int64, patch models.ChatUpdate, requesterID string) (err error) {
	ctx, done := s.track(ctx, "update")
	defer done(&err)

	if patch.Status != nil && !patch.Status.Valid() {
		return ErrInvalidStatus
	}
	if patch.Title != nil && !validTitle(*patch.Title) {
		return ErrInvalidTitle
	}
	if patch.RoomID != nil {
		// Strangers learn nothing about rooms.
		if _, err := s.authorized(ctx, s.tx.Reader(), chatID, requesterID); err != nil {
			return err
		}
		if err := s.requireRoom(ctx, *patch.RoomID); err != nil {
			return err
		}
	}

	return s.tx.WithinTx(ctx, func(q db.Querier) error {
		chat, err := s.authorized(ctx, q, chatID, requesterID)
		if err != nil {
			return err
		}
		if patch.Empty() {
			return nil
		}

		if patch.Title != nil && *patch.Title != chat.Title {
			taken, err := s.chats.Count(ctx, q, models.ChatListFilter{Title: *patch.Title})
			if err != nil {
				return fmt.Errorf("check title: %w", err)
			}
			if taken > 0 {
				return ErrChatAlreadyExists
			}
		}

		err = s.chats.Update(ctx, q, chatID, patch)
		switch {
		case errors.Is(err, repositories.ErrDuplicate):
			return ErrChatAlreadyExists
		case errors.Is(err, repositories.ErrChatNotFound):
			return ErrChatNotFound
		case err != nil:
			return fmt.Errorf("update chat %d: %w", chatID, err)
		}
		return nil
	})
}

// MarkRead marks the chat's messages read for the requester and notifies
// subscribers once that is committed.
func (s *ChatService) MarkRead(ctx context.Context, chatID int64, requesterID string) (err error) {
	ctx, done := s.track(ctx, "mark_read")
	defer done(&err)

	err = s.tx.WithinTx(ctx, func(q db.Querier) error {
		if _, err := s.authorized(ctx, q, chatID, requesterID); err != nil {
			return err
		}
		if _, err := s.messages.ReadMessages(ctx, q, chatID, requesterID); err != nil {
			return fmt.Errorf("read messages: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.ChatRead(ctx, models.ChatReadEvent{ChatID: chatID, ReaderID: requesterID})
	return nil
}

// Delete removes the chat and its memberships, then detaches the requester
// from the other participant in the ties service. The detach runs after the
// commit: when it fails the chat stays deleted and the failure is recorded
// for reconciliation.
func (s *ChatService) Delete(ctx context.Context, chatID int64, requesterID, authToken string) (err error) {
	ctx, done := s.track(ctx, "delete")
	defer done(&err)

	var partner *models.ChatMember
	err = s.tx.WithinTx(ctx, func(q db.Querier) error {
		chat, err := s.authorized(ctx, q, chatID, requesterID)
		if err != nil {
			return err
		}
		partner = models.SelfView(*chat, requesterID).Partner

		err = s.chats.Delete(ctx, q, chatID)
		if errors.Is(err, repositories.ErrChatNotFound) {
			return ErrChatNotFound
		}
		if err != nil {
			return fmt.Errorf("delete chat %d: %w", chatID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if partner != nil {
		s.detachPartner(ctx, chatID, requesterID, partner.UserID, authToken)
	}
	return nil
}

// DeleteBetweenPair deletes the chat shared by two users, if any. It is
// idempotent and never reports ErrChatNotFound.
func (s *ChatService) DeleteBetweenPair(ctx context.Context, userA, userB string) (err error) {
	ctx, done := s.track(ctx, "delete_pair")
	defer done(&err)

	if userA == userB {
		return nil
	}
	return s.tx.WithinTx(ctx, func(q db.Querier) error {
		chatID, found, err := s.chats.FindChatBetween(ctx, q, userA, userB)
		if err != nil {
			return fmt.Errorf("find pair chat: %w", err)
		}
		if !found {
			return nil
		}
		if err := s.chats.Delete(ctx, q, chatID); err != nil && !errors.Is(err, repositories.ErrChatNotFound) {
			return fmt.Errorf("delete pair chat %d: %w", chatID, err)
		}
		return nil
	})
}

// Attach adds in.UserID to the chat on behalf of a member.
func (s *ChatService) Attach(ctx context.Context, in models.ChatMembership, requesterID string) (err error) {
	ctx, done := s.track(ctx, "attach")
	defer done(&err)

	reader := s.tx.Reader()
	existing, err := s.chats.FindMembership(ctx, reader, in.ChatID, in.UserID)
	if err != nil {
		return fmt.Errorf("find membership: %w", err)
	}
	if existing != nil {
		return ErrMembershipAlreadyExists
	}
	chat, err := s.authorized(ctx, reader, in.ChatID, requesterID)
	if err != nil {
		return err
	}
	if err := access.CanJoin(chat); err != nil {
		return err
	}

	user, err := s.sync.Resolve(ctx, in.UserID)
	if err != nil {
		return err
	}

	return s.tx.WithinTx(ctx, func(q db.Querier) error {
		if err := s.sync.Persist(ctx, q, user); err != nil {
			return err
		}

		chat, err := s.authorized(ctx, q, in.ChatID, requesterID)
		if err != nil {
			return err
		}
		if err := access.CanJoin(chat); err != nil {
			return err
		}

		member, err := s.chats.IsMember(ctx, q, in.ChatID, in.UserID)
		if err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if member {
			return ErrMembershipAlreadyExists
		}

		err = s.chats.AddMember(ctx, q, in.ChatID, in.UserID)
		switch {
		case errors.Is(err, repositories.ErrDuplicate):
			return ErrMembershipAlreadyExists
		case errors.Is(err, repositories.ErrChatNotFound):
			return ErrChatNotFound
		case err != nil:
			return fmt.Errorf("add member: %w", err)
		}
		return nil
	})
}

// Detach removes in.UserID from the chat on behalf of a member.
func (s *ChatService) Detach(ctx context.Context, in models.ChatMembership, requesterID string) (err error) {
	ctx, done := s.track(ctx, "detach")
	defer done(&err)

	return s.tx.WithinTx(ctx, func(q db.Querier) error {
		existing, err := s.chats.FindMembership(ctx, q, in.ChatID, in.UserID)
		if err != nil {
			return fmt.Errorf("find membership: %w", err)
		}
		if existing == nil {
			return ErrMembershipMissing
		}
		if _, err := s.authorized(ctx, q, in.ChatID, requesterID); err != nil {
			return err
		}

		if _, err := s.users.GetUser(ctx, q, in.UserID); err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("load user: %w", err)
		}

		member, err := s.chats.IsMember(ctx, q, in.ChatID, in.UserID)
		if err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if !member {
			return ErrMembershipMissing
		}

		err = s.chats.RemoveMember(ctx, q, in.ChatID, in.UserID)
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			return ErrMembershipMissing
		}
		if err != nil {
			return fmt.Errorf("remove member: %w", err)
		}
		return nil
	})
}

func (s *ChatService) loadChat(ctx context.Context, q db.Querier, chatID int64) (*models.Chat, error) {
	chat, err := s.chats.Get(ctx, q, chatID)
	if errors.Is(err, repositories.ErrChatNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load chat %d: %w", chatID, err)
	}
	return &chat, nil
}

func (s *ChatService) authorized(ctx context.Context, q db.Querier, chatID int64, userID string) (*models.Chat, error) {
	chat, err := s.loadChat(ctx, q, chatID)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(chat, userID); err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *ChatService) requireRoom(ctx context.Context, roomID int64) error {
	rctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	room, err := s.rooms.GetRoom(rctx, roomID)
	if err != nil {
		return fmt.Errorf("%w: room registry: %v", ErrUpstreamUnavailable, err)
	}
	if room == nil {
		return ErrRoomNotFound
	}
	return nil
}

func (s *ChatService) detachPartner(ctx context.Context, chatID int64, requesterID, partnerID, authToken string) {
	ctx = context.WithoutCancel(ctx)
	dctx, cancel := withTimeout(ctx, s.timeout)
	err := s.ties.DetachPartner(dctx, authToken, partnerID)
	cancel()
	if err == nil {
		return
	}

	observability.IncTiesDetachFailure()
	s.logger.Warn("ties detach failed after chat delete",
		slog.Int64("chat_id", chatID),
		slog.String("partner_id", partnerID),
		slog.Any("error", err))

	rctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	failure := models.TiesDetachFailure{
		ChatID:      chatID,
		RequesterID: requesterID,
		PartnerID:   partnerID,
		Reason:      err.Error(),
		OccurredAt:  time.Now().UTC(),
	}
	if err := s.reconcile.RecordTiesDetachFailure(rctx, failure); err != nil {
		s.logger.Error("ties detach reconciliation record lost",
			slog.Int64("chat_id", chatID),
			slog.String("partner_id", partnerID),
			slog.Any("error", err))
	}
}

// track opens a span and records the operation outcome when the returned
// func runs.
func (s *ChatService) track(ctx context.Context, op string) (context.Context, func(*error)) {
	ctx, span := tracer.Start(ctx, "ChatService."+op)
	start := time.Now()
	return ctx, func(errp *error) {
		kind := Kind(*errp)
		span.SetAttributes(attribute.String("chat.outcome", kind))
		if kind == "internal" {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, "internal error")
		}
		span.End()
		observability.ObserveChatOperation(op, kind, time.Since(start))
	}
}

// validTitle rejects blank titles; an empty title filter would match every chat.
func validTitle(title string) bool {
	return strings.TrimSpace(title) != ""
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
