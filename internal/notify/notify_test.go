package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/market-trust-core/internal/logging"
	"github.com/sheikh-saqib/market-trust-core/internal/models"
)

type recordingPublisher struct {
	topics []string
	events []any
}

func (r *recordingPublisher) Publish(ctx context.Context, topic string, event any) error {
	r.topics = append(r.topics, topic)
	r.events = append(r.events, event)
	return nil
}

func TestPublishingNotifier(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewPublishingNotifier(pub)

	err := n.Notify(context.Background(), models.Notification{
		Recipient: "ana",
		Category:  models.CategoryOrderAccepted,
		Message:   "accepted",
	})
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, NotificationsTopic, pub.topics[0])
	got := pub.events[0].(models.Notification)
	assert.Equal(t, "ana", got.Recipient)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestLogPublisher(t *testing.T) {
	p := NewLogPublisher(logging.Discard())
	assert.NoError(t, p.Publish(context.Background(), TransitionsTopic, map[string]string{"k": "v"}))
}
