package interfaces

import (
	"context"

	"github.com/sheikh-saqib/market-trust-core/internal/models"
)

// Directory answers the account and catalog lookups the core needs from
// collaborators.
type Directory interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetSellerEntity(ctx context.Context, id string) (*models.SellerEntity, error)
	SellerEntitiesOwnedBy(ctx context.Context, accountID string) ([]string, error)
	GetProducts(ctx context.Context, ids []string) ([]models.Product, error)
	SetReputation(ctx context.Context, accountID string, score int) error
}
