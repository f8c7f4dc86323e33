package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sheikh-saqib/market-trust-core/internal/models"
)

func copyOrder(o *models.Order) *models.Order {
	c := *o
	c.Items = append(models.OrderItems(nil), o.Items...)
	return &c
}

func copyProposal(p *models.BarterProposal) *models.BarterProposal {
	c := *p
	return &c
}

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("order %s: %w", order.ID, models.ErrConflict)
	}
	s.orders[order.ID] = copyOrder(order)
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, models.ErrNotFound)
	}
	return copyOrder(o), nil
}

func (s *Store) UpdateOrderState(ctx context.Context, id string, expectedVersion int64, to models.OrderState) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, models.ErrNotFound)
	}
	if o.Version != expectedVersion {
		return nil, fmt.Errorf("order %s: %w", id, models.ErrVersionConflict)
	}
	o.State = to
	o.Version++
	o.UpdatedAt = time.Now().UTC()
	return copyOrder(o), nil
}

func (s *Store) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]models.Order, error) {
	return s.listOrders(func(o *models.Order) bool { return o.BuyerID == buyerID }), nil
}

func (s *Store) ListOrdersBySellerEntities(ctx context.Context, sellerEntityIDs []string) ([]models.Order, error) {
	set := toSet(sellerEntityIDs)
	return s.listOrders(func(o *models.Order) bool {
		_, ok := set[o.SellerEntityID]
		return ok
	}), nil
}

// listOrders returns matching orders, newest first.
func (s *Store) listOrders(match func(*models.Order) bool) []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Order
	for _, o := range s.orders {
		if match(o) {
			out = append(out, *copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) CountCompletedOrders(ctx context.Context, accountID string, sellerEntityIDs []string) (int, error) {
	set := toSet(sellerEntityIDs)

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, o := range s.orders {
		if o.State != models.OrderCompleted {
			continue
		}
		_, sells := set[o.SellerEntityID]
		if o.BuyerID == accountID || sells {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateProposal(ctx context.Context, p *models.BarterProposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.proposals[p.ID]; exists {
		return fmt.Errorf("proposal %s: %w", p.ID, models.ErrConflict)
	}
	s.proposals[p.ID] = copyProposal(p)
	return nil
}

func (s *Store) GetProposal(ctx context.Context, id string) (*models.BarterProposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.proposals[id]
	if !ok {
		return nil, fmt.Errorf("proposal %s: %w", id, models.ErrNotFound)
	}
	return copyProposal(p), nil
}

func (s *Store) UpdateProposalState(ctx context.Context, id string, expectedVersion int64, to models.BarterState, pointsMoved bool) (*models.BarterProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[id]
	if !ok {
		return nil, fmt.Errorf("proposal %s: %w", id, models.ErrNotFound)
	}
	if p.Version != expectedVersion {
		return nil, fmt.Errorf("proposal %s: %w", id, models.ErrVersionConflict)
	}
	p.State = to
	p.PointsMoved = p.PointsMoved || pointsMoved
	p.Version++
	p.UpdatedAt = time.Now().UTC()
	return copyProposal(p), nil
}

func (s *Store) ListProposalsByAccount(ctx context.Context, accountID string) ([]models.BarterProposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.BarterProposal
	for _, p := range s.proposals {
		if p.Involves(accountID) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CountCompletedProposals(ctx context.Context, accountID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, p := range s.proposals {
		if p.State == models.BarterCompleted && p.Involves(accountID) {
			n++
		}
	}
	return n, nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
