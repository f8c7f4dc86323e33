package interfaces

import (
	"context"

	"github.com/sheikh-saqib/market-trust-core/internal/models"
)

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event any) error
}

// Notifier delivers user-facing notifications. Callers do not wait on or
// act upon delivery.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}
