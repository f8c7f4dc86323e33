package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	interfaces "github.com/sheikh-saqib/market-trust-core/internal/interfaces"
	"github.com/sheikh-saqib/market-trust-core/internal/metrics"
)

// keyed is implemented by events that should land on a stable partition.
type keyed interface {
	PartitionKey() string
}

type Publisher struct {
	writer *kafka.Writer
	log    logrus.FieldLogger
}

// NewPublisher builds an asynchronous writer: WriteMessages returns once the
// message is queued, which suits the fire-and-forget callers. Broker
// failures surface later through the completion callback, which logs them
// and counts them as failed "publish_delivery" side effects.
func NewPublisher(brokers []string, log logrus.FieldLogger) *Publisher {
	p := &Publisher{log: log.WithField("component", "kafka")}
	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion:             p.delivered,
	}
	return p
}

// delivered runs on the writer's goroutine once a batch is acknowledged or
// given up on.
func (p *Publisher) delivered(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	metrics.SideEffectFailures.WithLabelValues("publish_delivery").Add(float64(len(messages)))
	topic := ""
	if len(messages) > 0 {
		topic = messages[0].Topic
	}
	p.log.WithError(err).WithFields(logrus.Fields{"topic": topic, "messages": len(messages)}).Warn("event delivery failed")
}

func (p *Publisher) Publish(ctx context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{Topic: topic, Value: data}
	if k, ok := event.(keyed); ok {
		msg.Key = []byte(k.PartitionKey())
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Close flushes queued messages.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
