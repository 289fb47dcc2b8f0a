package ws

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chat-app-service/internal/observability"
)

const (
	wsKind       = "chat"
	wsRoutingKey = "ws_events.chats"
	writeWait    = 5 * time.Second
)

func newConnID() string {
	return uuid.NewString()
}

// publishWSEvent reports a connection lifecycle event on the event exchange.
func publishWSEvent(ctx context.Context, event string, chatID int64, info ConnInfo, reason string) {
	observability.IncWSEvent(wsKind, event)
	_ = observability.PublishEvent(ctx, wsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Headers:   observability.BuildHeaders(info.RequestID, info.TraceID),
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        wsKind,
				"resource_id": chatID,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	})
}
