// Package cache keeps positive room lookups in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"chat-app-service/internal/models"
	"chat-app-service/internal/observability"
)

// RoomLookup is satisfied by the gRPC room client.
type RoomLookup interface {
	GetRoom(ctx context.Context, roomID int64) (*models.Room, error)
}

// RoomCache decorates a RoomLookup. Only found rooms are cached so that a
// freshly created room is never reported missing from a stale entry.
type RoomCache struct {
	next   RoomLookup
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

func NewRoomCache(next RoomLookup, rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *RoomCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomCache{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, DB: 0})
}

func roomKey(roomID int64) string {
	return fmt.Sprintf("chat:room:%d", roomID)
}

func (c *RoomCache) GetRoom(ctx context.Context, roomID int64) (*models.Room, error) {
	raw, err := c.rdb.Get(ctx, roomKey(roomID)).Bytes()
	switch {
	case err == nil:
		var room models.Room
		if jsonErr := json.Unmarshal(raw, &room); jsonErr == nil {
			observability.IncRoomCache("hit")
			return &room, nil
		}
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("room cache read failed", slog.Int64("room_id", roomID), slog.Any("error", err))
		observability.IncRoomCache("error")
	}
	observability.IncRoomCache("miss")

	room, err := c.next.GetRoom(ctx, roomID)
	if err != nil || room == nil {
		return room, err
	}

	if body, err := json.Marshal(room); err == nil {
		if err := c.rdb.Set(ctx, roomKey(roomID), body, c.ttl).Err(); err != nil {
			c.logger.Warn("room cache write failed", slog.Int64("room_id", roomID), slog.Any("error", err))
		}
	}
	return room, nil
}
