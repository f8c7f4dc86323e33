package interfaces

import (
	"context"
	"time"

	"github.com/sheikh-saqib/market-trust-core/internal/models"
)

// GrantRequest carries a reward entry together with the limits the store
// must re-check while holding the account's write lock.
type GrantRequest struct {
	Entry    models.LedgerEntry
	Scope    models.Scope
	DailyCap int       // only for models.ScopeDailyCapped
	Since    time.Time // start of the current calendar day
}

// TransferRequest moves Amount minor units from Payer to Payee. The pair
// (Payer, Reason, ReferenceID) identifies the transfer; a second request with
// the same identity is a no-op.
type TransferRequest struct {
	Payer       string
	Payee       string
	Amount      int64
	Reason      models.Reason
	ReferenceID string
	At          time.Time
}

// LedgerStore holds balances and the entries that explain them.
type LedgerStore interface {
	// ApplyGrant appends the entry and increments the balance in one unit.
	// applied is false when a one-time witness already exists or the daily
	// cap is reached.
	ApplyGrant(ctx context.Context, req GrantRequest) (balance int64, applied bool, err error)

	// Debit decrements the balance, failing with models.ErrInsufficientFunds
	// rather than going negative.
	Debit(ctx context.Context, entry models.LedgerEntry) (balance int64, err error)

	// Transfer debits the payer and credits the payee atomically.
	Transfer(ctx context.Context, req TransferRequest) (applied bool, err error)

	Balance(ctx context.Context, accountID string) (int64, error)
	EntryExists(ctx context.Context, accountID string, reason models.Reason, referenceID string) (bool, error)
	CountEntriesSince(ctx context.Context, accountID string, reason models.Reason, since time.Time) (int, error)
	GetEntriesByAccount(ctx context.Context, accountID string) ([]models.LedgerEntry, error)
}
