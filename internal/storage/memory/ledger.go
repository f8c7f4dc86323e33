package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	interfaces "github.com/sheikh-saqib/market-trust-core/internal/interfaces"
	"github.com/sheikh-saqib/market-trust-core/internal/models"
)

func witnessKey(accountID string, reason models.Reason, referenceID string, scope models.Scope) (string, bool) {
	switch scope {
	case models.ScopeOncePerAccount:
		return accountID + "|" + string(reason), true
	case models.ScopeOncePerReference:
		return accountID + "|" + string(reason) + "|" + referenceID, true
	}
	return "", false
}

// ApplyGrant re-runs the idempotency and cap checks under the account lock,
// then appends the entry and bumps the balance.
func (s *Store) ApplyGrant(ctx context.Context, req interfaces.GrantRequest) (int64, bool, error) {
	entry := req.Entry
	// The account lock spans check and write; mu alone would let two
	// grants both pass the check between RUnlock and Lock below.
	lock := s.getAccountLock(entry.AccountID)
	lock.Lock()
	defer lock.Unlock()

	// Checks only need a read lock on the maps.
	s.mu.RLock()
	acct, ok := s.accounts[entry.AccountID]
	if !ok {
		s.mu.RUnlock()
		return 0, false, fmt.Errorf("account %s: %w", entry.AccountID, models.ErrNotFound)
	}
	balance := acct.Balance
	key, unique := witnessKey(entry.AccountID, entry.Reason, entry.ReferenceID, req.Scope)
	if unique {
		if _, seen := s.witnesses[key]; seen {
			s.mu.RUnlock()
			return balance, false, nil
		}
	}
	if req.Scope == models.ScopeDailyCapped && s.countSinceLocked(entry.AccountID, entry.Reason, req.Since) >= req.DailyCap {
		s.mu.RUnlock()
		return balance, false, nil
	}
	s.mu.RUnlock()

	// Still under the account lock, so nothing above went stale.
	s.mu.Lock()
	defer s.mu.Unlock()
	if unique {
		s.witnesses[key] = struct{}{}
	}
	s.entries = append(s.entries, withID(entry))
	acct.Balance += entry.Amount
	return acct.Balance, true, nil
}

func (s *Store) Debit(ctx context.Context, entry models.LedgerEntry) (int64, error) {
	lock := s.getAccountLock(entry.AccountID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[entry.AccountID]
	if !ok {
		return 0, fmt.Errorf("account %s: %w", entry.AccountID, models.ErrNotFound)
	}
	// entry.Amount is negative for a debit; balances never go below zero.
	if acct.Balance+entry.Amount < 0 {
		return acct.Balance, models.ErrInsufficientFunds
	}
	s.entries = append(s.entries, withID(entry))
	acct.Balance += entry.Amount
	return acct.Balance, nil
}

// Transfer moves funds between two accounts while holding both account
// locks, so readers never observe the debit without the credit.
func (s *Store) Transfer(ctx context.Context, req interfaces.TransferRequest) (bool, error) {
	unlock := s.lockPair(req.Payer, req.Payee)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// The payer's leg is the witness; a retry of the same reference
	// finds it and moves nothing.
	key, _ := witnessKey(req.Payer, req.Reason, req.ReferenceID, models.ScopeOncePerReference)
	if _, seen := s.witnesses[key]; seen {
		return false, nil
	}
	payer, ok := s.accounts[req.Payer]
	if !ok {
		return false, fmt.Errorf("payer %s: %w", req.Payer, models.ErrNotFound)
	}
	payee, ok := s.accounts[req.Payee]
	if !ok {
		return false, fmt.Errorf("payee %s: %w", req.Payee, models.ErrNotFound)
	}
	if payer.Balance < req.Amount {
		return false, models.ErrInsufficientFunds
	}

	// Both legs land together while both account locks and mu are held.
	payer.Balance -= req.Amount
	payee.Balance += req.Amount
	s.witnesses[key] = struct{}{}
	payeeKey, _ := witnessKey(req.Payee, req.Reason, req.ReferenceID, models.ScopeOncePerReference)
	s.witnesses[payeeKey] = struct{}{}
	s.entries = append(s.entries,
		withID(models.LedgerEntry{AccountID: req.Payer, Amount: -req.Amount, Reason: req.Reason, ReferenceID: req.ReferenceID, CreatedAt: req.At}),
		withID(models.LedgerEntry{AccountID: req.Payee, Amount: req.Amount, Reason: req.Reason, ReferenceID: req.ReferenceID, CreatedAt: req.At}),
	)
	return true, nil
}

func (s *Store) Balance(ctx context.Context, accountID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return 0, fmt.Errorf("account %s: %w", accountID, models.ErrNotFound)
	}
	return acct.Balance, nil
}

func (s *Store) EntryExists(ctx context.Context, accountID string, reason models.Reason, referenceID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.AccountID == accountID && e.Reason == reason && (referenceID == "" || e.ReferenceID == referenceID) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CountEntriesSince(ctx context.Context, accountID string, reason models.Reason, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countSinceLocked(accountID, reason, since), nil
}

func (s *Store) countSinceLocked(accountID string, reason models.Reason, since time.Time) int {
	n := 0
	for _, e := range s.entries {
		if e.AccountID == accountID && e.Reason == reason && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n
}

// GetEntriesByAccount returns a copy of the account's entries in insertion order.
func (s *Store) GetEntriesByAccount(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.LedgerEntry
	for _, e := range s.entries {
		if e.AccountID == accountID {
			result = append(result, e)
		}
	}
	return result, nil
}

func withID(e models.LedgerEntry) models.LedgerEntry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return e
}
