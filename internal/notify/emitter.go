// Package notify hands chat events to realtime subscribers after a commit.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chat-app-service/internal/models"
	"chat-app-service/internal/observability"
)

// Channel is one delivery target, such as the websocket hub or the broker.
type Channel interface {
	Name() string
	EmitChatRead(ctx context.Context, ev models.ChatReadEvent) error
}

// Emitter fans events out to every channel in the background. Delivery is
// at most once and never reported back to the caller.
type Emitter struct {
	channels []Channel
	timeout  time.Duration
	logger   *slog.Logger
	wg       sync.WaitGroup
}

func NewEmitter(timeout time.Duration, logger *slog.Logger, channels ...Channel) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Emitter{channels: channels, timeout: timeout, logger: logger}
}

// ChatRead returns immediately. The event outlives the request that produced it.
func (e *Emitter) ChatRead(ctx context.Context, ev models.ChatReadEvent) {
	if len(e.channels) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		for _, ch := range e.channels {
			if err := ch.EmitChatRead(ctx, ev); err != nil {
				observability.IncNotificationFailure(ch.Name())
				e.logger.Warn("chat_read notification failed",
					slog.String("channel", ch.Name()),
					slog.Int64("chat_id", ev.ChatID),
					slog.Any("error", err))
			}
		}
	}()
}

// Wait blocks until in-flight deliveries finish. Used on shutdown.
func (e *Emitter) Wait() {
	e.wg.Wait()
}
