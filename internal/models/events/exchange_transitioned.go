package events

import (
	"time"
)

const (
	KindOrder  = "order"
	KindBarter = "barter"
)

// ExchangeTransitioned is published after an order or barter proposal
// changes state.
type ExchangeTransitioned struct {
	Kind       string    `json:"kind"`
	ExchangeID string    `json:"exchange_id"`
	ActorID    string    `json:"actor_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PartitionKey keeps every event of one exchange in order.
func (e ExchangeTransitioned) PartitionKey() string { return e.ExchangeID }
