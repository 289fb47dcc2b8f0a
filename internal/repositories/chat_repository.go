package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"chat-app-service/internal/db"
	"chat-app-service/internal/models"
)

var (
	ErrChatNotFound       = errors.New("chat not found")
	ErrMembershipNotFound = errors.New("membership not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)

// ChatRepository abstracts chat and membership persistence. Writes must be
// given the transaction of the enclosing scope.
type ChatRepository interface {
	List(ctx context.Context, q db.Querier, filter models.ChatListFilter, page, limit int) ([]models.Chat, error)
	Count(ctx context.Context, q db.Querier, filter models.ChatListFilter) (int, error)
	Get(ctx context.Context, q db.Querier, chatID int64) (models.Chat, error)
	Create(ctx context.Context, q db.Querier, in models.ChatCreate) (models.Chat, error)
	Update(ctx context.Context, q db.Querier, chatID int64, patch models.ChatUpdate) error
	Delete(ctx context.Context, q db.Querier, chatID int64) error
	IsMember(ctx context.Context, q db.Querier, chatID int64, userID string) (bool, error)
	FindMembership(ctx context.Context, q db.Querier, chatID int64, userID string) (*models.ChatMember, error)
	FindChatBetween(ctx context.Context, q db.Querier, userA, userB string) (int64, bool, error)
	AddMember(ctx context.Context, q db.Querier, chatID int64, userID string) error
	RemoveMember(ctx context.Context, q db.Querier, chatID int64, userID string) error
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct{}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo() *ChatRepo {
	return &ChatRepo{}
}

const chatColumns = `c.id, c.title, c.room_id, c.status, c.created_at`

// List returns one page of chats matching filter, newest first, with members loaded.
func (r *ChatRepo) List(ctx context.Context, q db.Querier, filter models.ChatListFilter, page, limit int) ([]models.Chat, error) {
	where, args := chatWhere(filter)
	args = append(args, limit, models.Offset(page, limit))
	query := fmt.Sprintf(`SELECT %s FROM chats c%s ORDER BY c.created_at DESC, c.id DESC LIMIT $%d OFFSET $%d`,
		chatColumns, where, len(args)-1, len(args))

	var chats []models.Chat
	if err := q.SelectContext(ctx, &chats, query, args...); err != nil {
		return nil, err
	}
	if err := r.loadMembers(ctx, q, chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// Count returns the number of chats matching filter.
func (r *ChatRepo) Count(ctx context.Context, q db.Querier, filter models.ChatListFilter) (int, error) {
	where, args := chatWhere(filter)
	var total int
	err := q.GetContext(ctx, &total, `SELECT COUNT(*) FROM chats c`+where, args...)
	return total, err
}

// Get fetches a chat with its members.
func (r *ChatRepo) Get(ctx context.Context, q db.Querier, chatID int64) (models.Chat, error) {
	var chat models.Chat
	err := q.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats c WHERE c.id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	if err != nil {
		return models.Chat{}, err
	}

	chats := []models.Chat{chat}
	if err := r.loadMembers(ctx, q, chats); err != nil {
		return models.Chat{}, err
	}
	return chats[0], nil
}

// Create inserts a chat without members.
func (r *ChatRepo) Create(ctx context.Context, q db.Querier, in models.ChatCreate) (models.Chat, error) {
	status := in.Status
	if status == "" {
		status = models.ChatStatusActive
	}

	var chat models.Chat
	err := q.QueryRowxContext(ctx, `INSERT INTO chats (title, room_id, status) VALUES ($1, $2, $3)
        RETURNING id, title, room_id, status, created_at`, in.Title, in.RoomID, status).StructScan(&chat)
	if db.IsUniqueViolation(err) {
		return models.Chat{}, ErrDuplicate
	}
	if err != nil {
		return models.Chat{}, err
	}
	chat.Members = []models.ChatMember{}
	return chat, nil
}

// Update applies the non-nil fields of patch.
func (r *ChatRepo) Update(ctx context.Context, q db.Querier, chatID int64, patch models.ChatUpdate) error {
	sets := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	if patch.Title != nil {
		args = append(args, *patch.Title)
		sets = append(sets, fmt.Sprintf("title=$%d", len(args)))
	}
	if patch.RoomID != nil {
		args = append(args, *patch.RoomID)
		sets = append(sets, fmt.Sprintf("room_id=$%d", len(args)))
	}
	if patch.Status != nil {
		args = append(args, string(*patch.Status))
		sets = append(sets, fmt.Sprintf("status=$%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, chatID)

	res, err := q.ExecContext(ctx, fmt.Sprintf(`UPDATE chats SET %s WHERE id=$%d`, strings.Join(sets, ", "), len(args)), args...)
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	return requireAffected(res, ErrChatNotFound)
}

// Delete removes a chat; memberships and messages cascade.
func (r *ChatRepo) Delete(ctx context.Context, q db.Querier, chatID int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM chats WHERE id=$1`, chatID)
	if err != nil {
		return err
	}
	return requireAffected(res, ErrChatNotFound)
}

// IsMember checks membership.
func (r *ChatRepo) IsMember(ctx context.Context, q db.Querier, chatID int64, userID string) (bool, error) {
	var exists bool
	err := q.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chat_users WHERE chat_id=$1 AND user_id=$2)`, chatID, userID)
	return exists, err
}

// FindMembership returns the membership row, or nil when there is none.
func (r *ChatRepo) FindMembership(ctx context.Context, q db.Querier, chatID int64, userID string) (*models.ChatMember, error) {
	var m models.ChatMember
	err := q.GetContext(ctx, &m, `SELECT cu.chat_id, cu.user_id, cu.joined_at, COALESCE(u.user_name, '') AS user_name, u.user_avatar
        FROM chat_users cu LEFT JOIN users u ON u.user_id = cu.user_id
        WHERE cu.chat_id=$1 AND cu.user_id=$2`, chatID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindChatBetween returns the oldest chat whose members are exactly the two
// users. Larger chats they share are not theirs alone and are never returned.
func (r *ChatRepo) FindChatBetween(ctx context.Context, q db.Querier, userA, userB string) (int64, bool, error) {
	var chatID int64
	err := q.GetContext(ctx, &chatID, `SELECT a.chat_id FROM chat_users a
        JOIN chat_users b ON b.chat_id = a.chat_id
        WHERE a.user_id=$1 AND b.user_id=$2
          AND (SELECT COUNT(*) FROM chat_users c WHERE c.chat_id = a.chat_id) = 2
        ORDER BY a.chat_id ASC LIMIT 1`, userA, userB)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return chatID, true, nil
}

// AddMember inserts a membership row.
func (r *ChatRepo) AddMember(ctx context.Context, q db.Querier, chatID int64, userID string) error {
	_, err := q.ExecContext(ctx, `INSERT INTO chat_users (chat_id, user_id) VALUES ($1, $2)`, chatID, userID)
	switch {
	case db.IsUniqueViolation(err):
		return ErrDuplicate
	case db.IsForeignKeyViolation(err):
		return ErrChatNotFound
	}
	return err
}

// RemoveMember deletes a membership row.
func (r *ChatRepo) RemoveMember(ctx context.Context, q db.Querier, chatID int64, userID string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM chat_users WHERE chat_id=$1 AND user_id=$2`, chatID, userID)
	if err != nil {
		return err
	}
	return requireAffected(res, ErrMembershipNotFound)
}

func (r *ChatRepo) loadMembers(ctx context.Context, q db.Querier, chats []models.Chat) error {
	if len(chats) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(chats))
	index := make(map[int64]int, len(chats))
	for i := range chats {
		ids = append(ids, chats[i].ID)
		index[chats[i].ID] = i
		chats[i].Members = []models.ChatMember{}
	}

	var members []models.ChatMember
	err := q.SelectContext(ctx, &members, `SELECT cu.chat_id, cu.user_id, cu.joined_at, COALESCE(u.user_name, '') AS user_name, u.user_avatar
        FROM chat_users cu LEFT JOIN users u ON u.user_id = cu.user_id
        WHERE cu.chat_id = ANY($1)
        ORDER BY cu.joined_at ASC, cu.user_id ASC`, pq.Array(ids))
	if err != nil {
		return err
	}
	for _, m := range members {
		if i, ok := index[m.ChatID]; ok {
			chats[i].Members = append(chats[i].Members, m)
		}
	}
	return nil
}

func chatWhere(f models.ChatListFilter) (string, []interface{}) {
	conds := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.RoomID != nil {
		add("c.room_id = $%d", *f.RoomID)
	}
	if f.Title != "" {
		add("c.title = $%d", f.Title)
	}
	if f.Status != "" {
		add("c.status = $%d", string(f.Status))
	}
	if f.MemberID != "" {
		add("EXISTS (SELECT 1 FROM chat_users cu WHERE cu.chat_id = c.id AND cu.user_id = $%d)", f.MemberID)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
