package notify

import (
	"context"

	"chat-app-service/internal/models"
	"chat-app-service/internal/observability"
)

const chatReadRoutingKey = "chat.read"

// BrokerChannel publishes chat events to the event exchange.
type BrokerChannel struct {
	publisher observability.Publisher
}

func NewBrokerChannel(publisher observability.Publisher) *BrokerChannel {
	return &BrokerChannel{publisher: publisher}
}

func (b *BrokerChannel) Name() string { return "amqp" }

func (b *BrokerChannel) EmitChatRead(ctx context.Context, ev models.ChatReadEvent) error {
	err := b.publisher.Publish(ctx, chatReadRoutingKey, observability.EventEnvelope{
		EventType: "chat_events",
		EventName: models.ChatEventRead,
		Payload:   ev,
	})
	if err != nil {
		observability.IncAMQPPublishError()
	}
	return err
}
