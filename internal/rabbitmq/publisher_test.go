package rabbitmq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"messaging-service/internal/telemetry"
)

func TestNewPublisherWithoutAMQPFallsBackToNoop(t *testing.T) {
	p := NewPublisher("", "audit.exchange")

	require.Equal(t, "noop", PublisherMode(p))
	require.Equal(t, "empty amqp url", PublisherNoopReason(p))

	// The noop publisher accepts anything and drops it.
	require.NoError(t, p.Publish(context.Background(), "audit.messaging", telemetry.AuditEnvelope{EventType: "audit"}))
	require.NoError(t, p.Close())
}

func TestPublisherModeAMQP(t *testing.T) {
	p := &amqpPublisher{exchange: "audit.exchange"}

	require.Equal(t, "amqp", PublisherMode(p))
	require.Empty(t, PublisherNoopReason(p))
}
