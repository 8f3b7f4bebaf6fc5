package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"delivery-service/internal/rabbitmq"
	"delivery-service/internal/telemetry"
)

// PublisherMock records domain event publishes.
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

// Envelopes returns the envelopes published under routingKey.
func (m *PublisherMock) Envelopes(routingKey string) []telemetry.Envelope {
	var out []telemetry.Envelope
	for _, call := range m.Calls {
		if call.Method != "Publish" || call.Arguments.String(1) != routingKey {
			continue
		}
		if env, ok := call.Arguments.Get(2).(telemetry.Envelope); ok {
			out = append(out, env)
		}
	}
	return out
}

var (
	_ telemetry.Publisher = (*PublisherMock)(nil)
	_ rabbitmq.Publisher  = (*PublisherMock)(nil)
)
