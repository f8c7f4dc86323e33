package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/sheikh-saqib/market-trust-core/internal/models"
)

// PutAccount inserts or replaces an account record. The balance of an
// existing account is preserved; balances only move through the ledger.
func (s *Store) PutAccount(a models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.accounts[a.ID]; ok {
		a.Balance = existing.Balance
	}
	if a.Visibility == "" {
		a.Visibility = models.VisibilityOpen
	}
	s.accounts[a.ID] = &a
}

func (s *Store) PutSellerEntity(e models.SellerEntity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.ID] = &e
}

func (s *Store) PutProduct(p models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = &p
}

func (s *Store) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, models.ErrNotFound)
	}
	c := *a
	return &c, nil
}

func (s *Store) GetSellerEntity(ctx context.Context, id string) (*models.SellerEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	if !ok {
		return nil, fmt.Errorf("seller entity %s: %w", id, models.ErrNotFound)
	}
	c := *e
	return &c, nil
}

func (s *Store) SellerEntitiesOwnedBy(ctx context.Context, accountID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, e := range s.entities {
		if e.OwnerID == accountID {
			ids = append(ids, e.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// GetProducts returns the products that exist among ids; missing ids are
// left out.
func (s *Store) GetProducts(ctx context.Context, ids []string) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *Store) SetReputation(ctx context.Context, accountID string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("account %s: %w", accountID, models.ErrNotFound)
	}
	a.Reputation = score
	return nil
}
