package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BarterState string

const (
	BarterPending   BarterState = "pending"
	BarterAccepted  BarterState = "accepted"
	BarterRejected  BarterState = "rejected"
	BarterCompleted BarterState = "completed"
)

var barterTransitions = map[BarterState][]BarterState{
	BarterPending:  {BarterAccepted, BarterRejected},
	BarterAccepted: {BarterCompleted},
}

func (s BarterState) Valid() bool {
	switch s {
	case BarterPending, BarterAccepted, BarterRejected, BarterCompleted:
		return true
	}
	return false
}

func (s BarterState) CanTransitionTo(to BarterState) bool {
	for _, next := range barterTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Offer is one side of a barter: a product and how much of it.
type Offer struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// BarterProposal is a direct trade between two sellers.
//
// PointAdjustment is in minor units: positive means the proposer pays the
// counterparty, negative the reverse. PointsMoved is set once, together with
// the move to accepted, and never cleared.
type BarterProposal struct {
	ID                string      `json:"id" db:"id"`
	ProposerID        string      `json:"proposer_id" db:"proposer_id"`
	CounterpartyID    string      `json:"counterparty_id" db:"counterparty_id"`
	ProposerOffer     Offer       `json:"proposer_offer"`
	CounterpartyOffer Offer       `json:"counterparty_offer"`
	PointAdjustment   int64       `json:"point_adjustment" db:"point_adjustment"`
	PointsMoved       bool        `json:"points_moved" db:"points_moved"`
	Message           string      `json:"message,omitempty" db:"message"`
	State             BarterState `json:"state" db:"state"`
	Version           int64       `json:"version" db:"version"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at" db:"updated_at"`
}

// Involves reports whether accountID is one of the two parties.
func (p *BarterProposal) Involves(accountID string) bool {
	return p.ProposerID == accountID || p.CounterpartyID == accountID
}

// Other returns the party that is not accountID.
func (p *BarterProposal) Other(accountID string) string {
	if p.ProposerID == accountID {
		return p.CounterpartyID
	}
	return p.ProposerID
}

// Settlement returns who pays whom and how much for the point adjustment.
// amount is zero when nothing moves.
func (p *BarterProposal) Settlement() (payer, payee string, amount int64) {
	switch {
	case p.PointAdjustment > 0:
		return p.ProposerID, p.CounterpartyID, p.PointAdjustment
	case p.PointAdjustment < 0:
		return p.CounterpartyID, p.ProposerID, -p.PointAdjustment
	}
	return "", "", 0
}
