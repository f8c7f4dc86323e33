package reputation

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	interfaces "github.com/sheikh-saqib/market-trust-core/internal/interfaces"
)

// Points awarded per completed exchange.
const (
	OrderPoints  = 5
	BarterPoints = 10
)

// Score is the reputation formula.
func Score(completedOrders, completedBarters int) int {
	return OrderPoints*completedOrders + BarterPoints*completedBarters
}

// Aggregator recomputes reputation from scratch each time. It is only
// called when an exchange completes, so a full recount is affordable.
type Aggregator struct {
	exchanges interfaces.ExchangeStore
	dir       interfaces.Directory
	log       logrus.FieldLogger
}

func NewAggregator(exchanges interfaces.ExchangeStore, dir interfaces.Directory, log logrus.FieldLogger) *Aggregator {
	return &Aggregator{exchanges: exchanges, dir: dir, log: log.WithField("component", "reputation")}
}

// Recompute counts completed orders where the account is the buyer or owns
// the order's seller entity, and completed barters where it is either
// party, then stores the new score.
func (a *Aggregator) Recompute(ctx context.Context, accountID string) (int, error) {
	if _, err := a.dir.GetAccount(ctx, accountID); err != nil {
		return 0, err
	}
	entities, err := a.dir.SellerEntitiesOwnedBy(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("seller entities of %s: %w", accountID, err)
	}
	orders, err := a.exchanges.CountCompletedOrders(ctx, accountID, entities)
	if err != nil {
		return 0, fmt.Errorf("count orders of %s: %w", accountID, err)
	}
	barters, err := a.exchanges.CountCompletedProposals(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("count barters of %s: %w", accountID, err)
	}

	score := Score(orders, barters)
	if err := a.dir.SetReputation(ctx, accountID, score); err != nil {
		return 0, fmt.Errorf("store reputation of %s: %w", accountID, err)
	}
	a.log.WithFields(logrus.Fields{
		"account": accountID,
		"orders":  orders,
		"barters": barters,
		"score":   score,
	}).Debug("reputation updated")
	return score, nil
}

// RecomputeAll recomputes several accounts concurrently. Every account is
// attempted; the returned error joins the individual failures.
func (a *Aggregator) RecomputeAll(ctx context.Context, accountIDs ...string) error {
	var g errgroup.Group
	errs := make([]error, len(accountIDs))
	for i, id := range accountIDs {
		i, id := i, id
		g.Go(func() error {
			_, errs[i] = a.Recompute(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
