package models

import "time"

// Category classifies a notification for the delivery side.
type Category string

const (
	CategoryOrderNew       Category = "order_new"
	CategoryOrderAccepted  Category = "order_accepted"
	CategoryOrderRejected  Category = "order_rejected"
	CategoryOrderCompleted Category = "order_completed"
	CategoryOrderCancelled Category = "order_cancelled"
	CategoryBarterNew      Category = "barter_new"
	CategoryBarterUpdated  Category = "barter_updated"
)

// Notification is handed to the notification sink after a committed change.
type Notification struct {
	Recipient   string    `json:"recipient"`
	Sender      string    `json:"sender,omitempty"`
	Category    Category  `json:"category"`
	Message     string    `json:"message"`
	CTA         string    `json:"cta,omitempty"`
	ReferenceID string    `json:"reference_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
