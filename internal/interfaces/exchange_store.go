package interfaces

import (
	"context"

	"github.com/sheikh-saqib/market-trust-core/internal/models"
)

// ExchangeStore persists orders and barter proposals. State updates are
// compare-and-swap on Version and fail with models.ErrVersionConflict when
// another writer got there first.
type ExchangeStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	UpdateOrderState(ctx context.Context, id string, expectedVersion int64, to models.OrderState) (*models.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]models.Order, error)
	ListOrdersBySellerEntities(ctx context.Context, sellerEntityIDs []string) ([]models.Order, error)
	CountCompletedOrders(ctx context.Context, accountID string, sellerEntityIDs []string) (int, error)

	CreateProposal(ctx context.Context, p *models.BarterProposal) error
	GetProposal(ctx context.Context, id string) (*models.BarterProposal, error)
	// UpdateProposalState also ORs pointsMoved into the sticky flag.
	UpdateProposalState(ctx context.Context, id string, expectedVersion int64, to models.BarterState, pointsMoved bool) (*models.BarterProposal, error)
	ListProposalsByAccount(ctx context.Context, accountID string) ([]models.BarterProposal, error)
	CountCompletedProposals(ctx context.Context, accountID string) (int, error)
}
