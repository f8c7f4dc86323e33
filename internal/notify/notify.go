// Package notify hands user notifications to the delivery pipeline.
package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	interfaces "github.com/sheikh-saqib/market-trust-core/internal/interfaces"
	"github.com/sheikh-saqib/market-trust-core/internal/models"
)

// Topics the core publishes to.
const (
	NotificationsTopic = "notifications"
	TransitionsTopic   = "exchange_transitioned"
)

// PublishingNotifier forwards notifications to an event publisher, where the
// email/push workers pick them up.
type PublishingNotifier struct {
	pub interfaces.EventPublisher
}

func NewPublishingNotifier(pub interfaces.EventPublisher) *PublishingNotifier {
	return &PublishingNotifier{pub: pub}
}

func (n *PublishingNotifier) Notify(ctx context.Context, notif models.Notification) error {
	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = time.Now().UTC()
	}
	return n.pub.Publish(ctx, NotificationsTopic, notif)
}

// LogPublisher is used when no broker is configured; events are only logged.
type LogPublisher struct {
	log logrus.FieldLogger
}

func NewLogPublisher(log logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{log: log.WithField("component", "events")}
}

func (p *LogPublisher) Publish(ctx context.Context, topic string, event any) error {
	p.log.WithFields(logrus.Fields{"topic": topic, "event": event}).Info("event published")
	return nil
}

var (
	_ interfaces.Notifier       = (*PublishingNotifier)(nil)
	_ interfaces.EventPublisher = (*LogPublisher)(nil)
)
