package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/sheikh-saqib/market-trust-core/internal/models"
)

const accountColumns = `id, name, email, phone, zone, active_role, active, balance, reputation, visibility`

func (s *Store) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	var a models.Account
	err := s.db.GetContext(ctx, &a, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

func (s *Store) GetSellerEntity(ctx context.Context, id string) (*models.SellerEntity, error) {
	var e models.SellerEntity
	err := s.db.GetContext(ctx, &e, `SELECT id, owner_id, name FROM seller_entities WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("seller entity %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get seller entity: %w", err)
	}
	return &e, nil
}

func (s *Store) SellerEntitiesOwnedBy(ctx context.Context, accountID string) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `SELECT id FROM seller_entities WHERE owner_id = $1 ORDER BY id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list seller entities: %w", err)
	}
	return ids, nil
}

// GetProducts returns the products among ids; missing ids are left out.
func (s *Store) GetProducts(ctx context.Context, ids []string) ([]models.Product, error) {
	var out []models.Product
	err := s.db.SelectContext(ctx, &out, `SELECT id, seller_entity_id, name, price, unit, available
		FROM products WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	return out, nil
}

func (s *Store) SetReputation(ctx context.Context, accountID string, score int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET reputation = $1 WHERE id = $2`, score, accountID)
	if err != nil {
		return fmt.Errorf("set reputation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", accountID, models.ErrNotFound)
	}
	return nil
}
