package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	interfaces "github.com/sheikh-saqib/market-trust-core/internal/interfaces"
	"github.com/sheikh-saqib/market-trust-core/internal/models"
)

const insertEntry = `INSERT INTO ledger_entries (id, account_id, amount, reason, reference_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

// lockBalance locks the account row for the rest of tx and returns its balance.
func lockBalance(ctx context.Context, tx *sqlx.Tx, accountID string) (int64, error) {
	var balance int64
	err := tx.GetContext(ctx, &balance, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("account %s: %w", accountID, models.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("lock account %s: %w", accountID, err)
	}
	return balance, nil
}

// insertUnique writes e unless a partial unique index already holds a
// matching entry; inserted is false in that case.
func insertUnique(ctx context.Context, tx *sqlx.Tx, e models.LedgerEntry) (bool, error) {
	res, err := tx.ExecContext(ctx, insertEntry+` ON CONFLICT DO NOTHING`,
		entryID(e), e.AccountID, e.Amount, e.Reason, e.ReferenceID, e.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert ledger entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func addBalance(ctx context.Context, tx *sqlx.Tx, accountID string, delta int64) (int64, error) {
	var balance int64
	err := tx.GetContext(ctx, &balance, `UPDATE accounts SET balance = balance + $1 WHERE id = $2 RETURNING balance`, delta, accountID)
	if err != nil {
		return 0, fmt.Errorf("update balance %s: %w", accountID, err)
	}
	return balance, nil
}

// ApplyGrant re-checks the cap and uniqueness with the account row locked.
func (s *Store) ApplyGrant(ctx context.Context, req interfaces.GrantRequest) (balance int64, applied bool, err error) {
	e := req.Entry
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		current, err := lockBalance(ctx, tx, e.AccountID)
		if err != nil {
			return err
		}
		balance = current

		if req.Scope == models.ScopeDailyCapped {
			var n int
			if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM ledger_entries WHERE account_id = $1 AND reason = $2 AND created_at >= $3`,
				e.AccountID, e.Reason, req.Since); err != nil {
				return fmt.Errorf("count entries: %w", err)
			}
			if n >= req.DailyCap {
				return nil
			}
		}

		inserted, err := insertUnique(ctx, tx, e)
		if err != nil || !inserted {
			return err
		}
		balance, err = addBalance(ctx, tx, e.AccountID, e.Amount)
		if err != nil {
			return err
		}
		applied = true
		return nil
	})
	if isUniqueViolation(err) {
		return balance, false, nil
	}
	return balance, applied, err
}

// Debit applies a negative entry only when the balance covers it.
func (s *Store) Debit(ctx context.Context, e models.LedgerEntry) (balance int64, err error) {
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		current, err := lockBalance(ctx, tx, e.AccountID)
		if err != nil {
			return err
		}
		if current+e.Amount < 0 {
			balance = current
			return models.ErrInsufficientFunds
		}
		if _, err := tx.ExecContext(ctx, insertEntry, entryID(e), e.AccountID, e.Amount, e.Reason, e.ReferenceID, e.CreatedAt); err != nil {
			return fmt.Errorf("insert ledger entry: %w", err)
		}
		balance, err = addBalance(ctx, tx, e.AccountID, e.Amount)
		return err
	})
	return balance, err
}

// Transfer locks both rows in id order, then writes the payer leg as the
// witness. A witness already on record makes the call a no-op.
func (s *Store) Transfer(ctx context.Context, req interfaces.TransferRequest) (applied bool, err error) {
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		var rows []struct {
			ID      string `db:"id"`
			Balance int64  `db:"balance"`
		}
		if err := tx.SelectContext(ctx, &rows, `SELECT id, balance FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
			pq.Array([]string{req.Payer, req.Payee})); err != nil {
			return fmt.Errorf("lock accounts: %w", err)
		}
		balances := make(map[string]int64, len(rows))
		for _, r := range rows {
			balances[r.ID] = r.Balance
		}
		for _, id := range []string{req.Payer, req.Payee} {
			if _, ok := balances[id]; !ok {
				return fmt.Errorf("account %s: %w", id, models.ErrNotFound)
			}
		}

		payerLeg := models.LedgerEntry{AccountID: req.Payer, Amount: -req.Amount, Reason: req.Reason, ReferenceID: req.ReferenceID, CreatedAt: req.At}
		inserted, err := insertUnique(ctx, tx, payerLeg)
		if err != nil || !inserted {
			return err
		}
		if balances[req.Payer] < req.Amount {
			return models.ErrInsufficientFunds
		}
		payeeLeg := models.LedgerEntry{AccountID: req.Payee, Amount: req.Amount, Reason: req.Reason, ReferenceID: req.ReferenceID, CreatedAt: req.At}
		if _, err := insertUnique(ctx, tx, payeeLeg); err != nil {
			return err
		}
		if _, err := addBalance(ctx, tx, req.Payer, -req.Amount); err != nil {
			return err
		}
		if _, err := addBalance(ctx, tx, req.Payee, req.Amount); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (s *Store) Balance(ctx context.Context, accountID string) (int64, error) {
	var balance int64
	err := s.db.GetContext(ctx, &balance, `SELECT balance FROM accounts WHERE id = $1`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("account %s: %w", accountID, models.ErrNotFound)
	}
	return balance, err
}

func (s *Store) EntryExists(ctx context.Context, accountID string, reason models.Reason, referenceID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE account_id = $1 AND reason = $2 AND ($3 = '' OR reference_id = $3))`,
		accountID, reason, referenceID)
	return exists, err
}

func (s *Store) CountEntriesSince(ctx context.Context, accountID string, reason models.Reason, since time.Time) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM ledger_entries WHERE account_id = $1 AND reason = $2 AND created_at >= $3`,
		accountID, reason, since)
	return n, err
}

func (s *Store) GetEntriesByAccount(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := s.db.SelectContext(ctx, &entries,
		`SELECT id, account_id, amount, reason, reference_id, created_at FROM ledger_entries WHERE account_id = $1 ORDER BY created_at, id`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	return entries, nil
}

func entryID(e models.LedgerEntry) string {
	if e.ID != "" {
		return e.ID
	}
	return uuid.NewString()
}
