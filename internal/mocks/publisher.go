package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// PublisherMock stands in for the AMQP publisher behind audit and chat events.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// ExpectPublish expects one publish on routingKey whose event satisfies match.
// A nil match accepts any event.
func (m *PublisherMock) ExpectPublish(routingKey string, match func(event any) bool, err error) *mock.Call {
	var event interface{} = mock.Anything
	if match != nil {
		event = mock.MatchedBy(match)
	}
	return m.On("Publish", mock.Anything, routingKey, event).Return(err).Once()
}
