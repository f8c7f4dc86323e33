package kafka

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/market-trust-core/internal/logging"
	"github.com/sheikh-saqib/market-trust-core/internal/models/events"
)

func TestPublish_UnencodableEvent(t *testing.T) {
	p := NewPublisher([]string{"127.0.0.1:1"}, logging.Discard())
	err := p.Publish(context.Background(), "exchange_transitioned", make(chan int))
	assert.Error(t, err)
}

func TestDelivered_LogsBrokerFailures(t *testing.T) {
	log, hook := test.NewNullLogger()
	p := NewPublisher([]string{"127.0.0.1:1"}, log)
	defer p.Close()

	p.delivered([]kafka.Message{{Topic: "exchange_transitioned"}}, nil)
	assert.Empty(t, hook.AllEntries())

	p.delivered([]kafka.Message{{Topic: "exchange_transitioned"}, {Topic: "exchange_transitioned"}}, errors.New("leader not available"))
	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "exchange_transitioned", entry.Data["topic"])
	assert.Equal(t, 2, entry.Data["messages"])
}

func TestPublish_Integration(t *testing.T) {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		t.Skip("KAFKA_BROKERS not set, skipping kafka integration test")
	}
	p := NewPublisher(strings.Split(brokers, ","), logging.Discard())
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := p.Publish(ctx, "exchange_transitioned", events.ExchangeTransitioned{
		Kind:       events.KindOrder,
		ExchangeID: "order-1",
		ActorID:    "seller",
		From:       "pending",
		To:         "accepted",
		OccurredAt: time.Now().UTC(),
	})
	require.NoError(t, err)
}
