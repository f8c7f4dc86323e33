package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	interfaces "github.com/sheikh-saqib/market-trust-core/internal/interfaces"
	"github.com/sheikh-saqib/market-trust-core/internal/metrics"
	"github.com/sheikh-saqib/market-trust-core/internal/models"
)

// MinorUnitsPerToken is the fixed scale between tokens and stored balances.
const MinorUnitsPerToken = 100

var minorScale = decimal.NewFromInt(MinorUnitsPerToken)

// ToMinorUnits converts a token amount into integer minor units.
func ToMinorUnits(tokens decimal.Decimal) int64 {
	return tokens.Mul(minorScale).Round(0).IntPart()
}

// Config holds the ledger's rate controls.
type Config struct {
	Location               *time.Location // calendar used for daily caps
	ListingCreatedDailyCap int
	ListingUpdatedDailyCap int
}

func DefaultConfig() Config {
	return Config{
		Location:               time.UTC,
		ListingCreatedDailyCap: 5,
		ListingUpdatedDailyCap: 10,
	}
}

// GrantResult is the outcome of a grant. Applied is false when the grant
// was a no-op because the reward was already paid or the daily cap is hit.
type GrantResult struct {
	Balance int64 `json:"balance"`
	Applied bool  `json:"applied"`
}

// Ledger grants, debits and transfers points. Every balance change goes
// through the store in a single atomic unit together with its entry.
type Ledger struct {
	store interfaces.LedgerStore
	cfg   Config
	now   func() time.Time
	log   logrus.FieldLogger
}

func NewLedger(store interfaces.LedgerStore, cfg Config, log logrus.FieldLogger) *Ledger {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Ledger{
		store: store,
		cfg:   cfg,
		now:   time.Now,
		log:   log.WithField("component", "ledger"),
	}
}

// SetClock replaces the time source; used to pin "today" for the daily caps.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

func (l *Ledger) dailyCap(reason models.Reason) int {
	if reason == models.ReasonListingUpdated {
		return l.cfg.ListingUpdatedDailyCap
	}
	return l.cfg.ListingCreatedDailyCap
}

func (l *Ledger) startOfDay(t time.Time) time.Time {
	local := t.In(l.cfg.Location)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, l.cfg.Location)
}

// Grant pays tokens to an account for reason. referenceID names the
// exchange or listing behind the reward and is required for per-reference
// reasons.
//
// The checks here are a fast path only; the store repeats them under the
// account's write lock and its uniqueness constraint decides races.
func (l *Ledger) Grant(ctx context.Context, accountID string, tokens decimal.Decimal, reason models.Reason, referenceID string) (GrantResult, error) {
	if !reason.Grantable() {
		return GrantResult{}, fmt.Errorf("%w: %q", models.ErrUnknownReason, reason)
	}
	scope, _ := reason.Scope()
	if accountID == "" {
		return GrantResult{}, fmt.Errorf("%w: account is required", models.ErrValidation)
	}
	if scope == models.ScopeOncePerReference && referenceID == "" {
		return GrantResult{}, fmt.Errorf("%w: reason %s needs a reference", models.ErrValidation, reason)
	}
	amount := ToMinorUnits(tokens)
	if amount <= 0 {
		return GrantResult{}, fmt.Errorf("%w: grant amount must be positive", models.ErrValidation)
	}

	now := l.now()
	req := interfaces.GrantRequest{
		Entry: models.LedgerEntry{
			AccountID:   accountID,
			Amount:      amount,
			Reason:      reason,
			ReferenceID: referenceID,
			CreatedAt:   now.UTC(),
		},
		Scope: scope,
		Since: l.startOfDay(now),
	}
	if scope == models.ScopeDailyCapped {
		req.DailyCap = l.dailyCap(reason)
	}

	skip, err := l.alreadyPaid(ctx, req)
	if err != nil {
		metrics.LedgerGrants.WithLabelValues(string(reason), "error").Inc()
		return GrantResult{}, err
	}
	if skip {
		metrics.LedgerGrants.WithLabelValues(string(reason), "noop").Inc()
		balance, err := l.store.Balance(ctx, accountID)
		if err != nil {
			return GrantResult{}, err
		}
		return GrantResult{Balance: balance}, nil
	}

	balance, applied, err := l.store.ApplyGrant(ctx, req)
	if err != nil {
		metrics.LedgerGrants.WithLabelValues(string(reason), "error").Inc()
		return GrantResult{}, fmt.Errorf("grant %s to %s: %w", reason, accountID, err)
	}
	if !applied {
		metrics.LedgerGrants.WithLabelValues(string(reason), "noop").Inc()
		return GrantResult{Balance: balance}, nil
	}

	metrics.LedgerGrants.WithLabelValues(string(reason), "applied").Inc()
	l.log.WithFields(logrus.Fields{
		"account":   accountID,
		"reason":    reason,
		"reference": referenceID,
		"amount":    amount,
		"balance":   balance,
	}).Info("tokens granted")
	return GrantResult{Balance: balance, Applied: true}, nil
}

func (l *Ledger) alreadyPaid(ctx context.Context, req interfaces.GrantRequest) (bool, error) {
	e := req.Entry
	switch req.Scope {
	case models.ScopeOncePerAccount:
		return l.store.EntryExists(ctx, e.AccountID, e.Reason, "")
	case models.ScopeOncePerReference:
		return l.store.EntryExists(ctx, e.AccountID, e.Reason, e.ReferenceID)
	case models.ScopeDailyCapped:
		n, err := l.store.CountEntriesSince(ctx, e.AccountID, e.Reason, req.Since)
		if err != nil {
			return false, err
		}
		return n >= req.DailyCap, nil
	}
	return false, nil
}

// Debit spends minor units from an account. It returns
// models.ErrInsufficientFunds, leaving the balance untouched, when the
// account cannot cover the amount.
func (l *Ledger) Debit(ctx context.Context, accountID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: debit amount must be positive", models.ErrValidation)
	}
	balance, err := l.store.Debit(ctx, models.LedgerEntry{
		AccountID: accountID,
		Amount:    -amount,
		Reason:    models.ReasonRedemption,
		CreatedAt: l.now().UTC(),
	})
	switch {
	case errors.Is(err, models.ErrInsufficientFunds):
		metrics.LedgerDebits.WithLabelValues("debit", "insufficient_funds").Inc()
		return balance, err
	case err != nil:
		metrics.LedgerDebits.WithLabelValues("debit", "error").Inc()
		return 0, fmt.Errorf("debit %s: %w", accountID, err)
	}
	metrics.LedgerDebits.WithLabelValues("debit", "applied").Inc()
	return balance, nil
}

// Transfer moves amount minor units from payer to payee. The transfer is
// identified by (payer, reason, referenceID): repeating it is a no-op and
// reports applied=false. If the payer cannot cover it, neither balance
// changes and models.ErrInsufficientFunds is returned.
func (l *Ledger) Transfer(ctx context.Context, payer, payee string, amount int64, reason models.Reason, referenceID string) (bool, error) {
	if scope, ok := reason.Scope(); !ok || scope != models.ScopeOncePerReference {
		return false, fmt.Errorf("%w: %q cannot identify a transfer", models.ErrUnknownReason, reason)
	}
	switch {
	case payer == "" || payee == "":
		return false, fmt.Errorf("%w: transfer needs both parties", models.ErrValidation)
	case payer == payee:
		return false, models.ErrSelfDealing
	case amount <= 0:
		return false, fmt.Errorf("%w: transfer amount must be positive", models.ErrValidation)
	case referenceID == "":
		return false, fmt.Errorf("%w: transfer needs a reference", models.ErrValidation)
	}

	applied, err := l.store.Transfer(ctx, interfaces.TransferRequest{
		Payer:       payer,
		Payee:       payee,
		Amount:      amount,
		Reason:      reason,
		ReferenceID: referenceID,
		At:          l.now().UTC(),
	})
	switch {
	case errors.Is(err, models.ErrInsufficientFunds):
		metrics.LedgerDebits.WithLabelValues("transfer", "insufficient_funds").Inc()
		return false, err
	case err != nil:
		metrics.LedgerDebits.WithLabelValues("transfer", "error").Inc()
		return false, fmt.Errorf("transfer %s -> %s: %w", payer, payee, err)
	case !applied:
		metrics.LedgerDebits.WithLabelValues("transfer", "noop").Inc()
		return false, nil
	}
	metrics.LedgerDebits.WithLabelValues("transfer", "applied").Inc()
	l.log.WithFields(logrus.Fields{
		"payer":     payer,
		"payee":     payee,
		"amount":    amount,
		"reason":    reason,
		"reference": referenceID,
	}).Info("points transferred")
	return true, nil
}

// Transferred reports whether the payer side of a transfer is on record.
func (l *Ledger) Transferred(ctx context.Context, payer string, reason models.Reason, referenceID string) (bool, error) {
	return l.store.EntryExists(ctx, payer, reason, referenceID)
}

func (l *Ledger) GetBalance(ctx context.Context, accountID string) (int64, error) {
	return l.store.Balance(ctx, accountID)
}

func (l *Ledger) GetLedgerEntries(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {
	entries, err := l.store.GetEntriesByAccount(ctx, accountID)
	if err != nil {
		return []models.LedgerEntry{}, err
	}
	return entries, nil
}

// CheckProfileCompletion pays the one-time profile bonus once the account
// has the required fields filled in.
func (l *Ledger) CheckProfileCompletion(ctx context.Context, acct *models.Account) (GrantResult, error) {
	if !acct.ProfileComplete() {
		return GrantResult{Balance: acct.Balance}, nil
	}
	return l.Grant(ctx, acct.ID, decimal.NewFromInt(1), models.ReasonProfileCompleted, "")
}
