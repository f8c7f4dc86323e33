package models

import (
	"time"
)

// Reason is the business cause recorded on a ledger entry.
type Reason string

const (
	ReasonProfileCompleted Reason = "perfil_completo"
	ReasonFirstListing     Reason = "primera_publicacion"
	ReasonOrderCompleted   Reason = "pedido_completado"
	ReasonBarterCompleted  Reason = "trueque_completado"
	ReasonListingCreated   Reason = "producto_publicado"
	ReasonListingUpdated   Reason = "producto_actualizado"

	// Movement reasons written by debits and transfers, never by grants.
	ReasonBarterSettlement Reason = "trueque_ajuste"
	ReasonBarterReversal   Reason = "trueque_ajuste_reverso"
	ReasonRedemption       Reason = "canje"
)

// Scope tells the ledger how often a reason may pay out.
type Scope int

const (
	ScopeRepeatable Scope = iota
	ScopeOncePerAccount
	ScopeOncePerReference
	ScopeDailyCapped
)

var reasonScopes = map[Reason]Scope{
	ReasonProfileCompleted: ScopeOncePerAccount,
	ReasonFirstListing:     ScopeOncePerAccount,
	ReasonOrderCompleted:   ScopeOncePerReference,
	ReasonBarterCompleted:  ScopeOncePerReference,
	ReasonListingCreated:   ScopeDailyCapped,
	ReasonListingUpdated:   ScopeDailyCapped,
	ReasonBarterSettlement: ScopeOncePerReference,
	ReasonBarterReversal:   ScopeOncePerReference,
	ReasonRedemption:       ScopeRepeatable,
}

// Scope returns the payout scope of r and whether r is a known reason.
func (r Reason) Scope() (Scope, bool) {
	s, ok := reasonScopes[r]
	return s, ok
}

// Grantable reports whether r may be used with a reward grant.
func (r Reason) Grantable() bool {
	switch r {
	case ReasonProfileCompleted, ReasonFirstListing, ReasonOrderCompleted,
		ReasonBarterCompleted, ReasonListingCreated, ReasonListingUpdated:
		return true
	}
	return false
}

// LedgerEntry represents a single immutable ledger record for an account.
// It is also the witness that a one-time reward or transfer already happened.
type LedgerEntry struct {
	ID          string    `json:"id" db:"id"`
	AccountID   string    `json:"account_id" db:"account_id"`
	Amount      int64     `json:"amount" db:"amount"` // minor units, signed
	Reason      Reason    `json:"reason" db:"reason"`
	ReferenceID string    `json:"reference_id,omitempty" db:"reference_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
