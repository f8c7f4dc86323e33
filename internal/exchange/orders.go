package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sheikh-saqib/market-trust-core/internal/metrics"
	"github.com/sheikh-saqib/market-trust-core/internal/models"
	"github.com/sheikh-saqib/market-trust-core/internal/models/events"
)

// OrderItemRequest is one requested line: a product and a quantity.
type OrderItemRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// OrderLists groups an account's orders by the side it is on.
type OrderLists struct {
	AsBuyer  []models.Order `json:"as_buyer"`
	AsSeller []models.Order `json:"as_seller"`
}

// CreateOrder places a pending order from buyerID with sellerEntityID.
// Prices, names and units are snapshotted from the catalog so later product
// edits do not change the order.
func (w *Workflow) CreateOrder(ctx context.Context, buyerID, sellerEntityID string, items []OrderItemRequest) (*models.Order, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: an order needs at least one item", models.ErrValidation)
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.ProductID == "" || !it.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: every item needs a product and a positive quantity", models.ErrValidation)
		}
		ids = append(ids, it.ProductID)
	}

	buyer, err := w.dir.GetAccount(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if !buyer.Active {
		return nil, fmt.Errorf("%w: account %s is deactivated", models.ErrUnauthorized, buyerID)
	}
	if buyer.ActiveRole != models.RoleBuyer {
		return nil, models.ErrUnauthorizedRole
	}
	seller, err := w.dir.GetSellerEntity(ctx, sellerEntityID)
	if err != nil {
		return nil, err
	}
	if buyer.Phone == "" {
		return nil, models.ErrPhoneMissing
	}
	if seller.OwnerID == buyerID {
		return nil, models.ErrSelfDealing
	}

	products, err := w.dir.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	snapshot := make(models.OrderItems, 0, len(items))
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %s: %w", it.ProductID, models.ErrNotFound)
		}
		if p.SellerEntityID != sellerEntityID {
			return nil, fmt.Errorf("%w: %s", models.ErrMismatchedSeller, p.Name)
		}
		snapshot = append(snapshot, models.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  it.Quantity,
			Unit:      p.Unit,
		})
	}

	now := w.now().UTC()
	order := &models.Order{
		ID:             uuid.NewString(),
		BuyerID:        buyerID,
		SellerEntityID: sellerEntityID,
		Items:          snapshot,
		Total:          models.OrderTotal(snapshot),
		State:          models.OrderPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := w.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}
	w.log.WithFields(logrus.Fields{"order": order.ID, "buyer": buyerID, "total": order.Total}).Info("order created")

	w.notify(ctx, models.Notification{
		Recipient:   seller.OwnerID,
		Sender:      buyerID,
		Category:    models.CategoryOrderNew,
		Message:     fmt.Sprintf("You have a new order from %s for $%s", buyer.Name, order.Total.StringFixed(2)),
		CTA:         "/orders",
		ReferenceID: order.ID,
	})
	w.publishTransition(ctx, events.KindOrder, order.ID, buyerID, "", string(models.OrderPending))
	return order, nil
}

// TransitionOrder moves an order to target on behalf of callerID.
// Cancelling is open to the buyer and the seller; every other move belongs
// to the seller alone.
func (w *Workflow) TransitionOrder(ctx context.Context, orderID, callerID string, target models.OrderState) (*models.Order, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown order state %q", models.ErrValidation, target)
	}
	order, err := w.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.State.CanTransitionTo(target) {
		metrics.ExchangeTransitions.WithLabelValues(events.KindOrder, string(target), "illegal").Inc()
		return nil, &models.TransitionError{Kind: "order", From: string(order.State), To: string(target)}
	}

	sellerOwner, err := w.sellerOwner(ctx, order.SellerEntityID)
	if err != nil {
		return nil, err
	}
	allowed := callerID != "" && callerID == sellerOwner
	if target == models.OrderCancelled {
		allowed = allowed || callerID == order.BuyerID
	}
	if !allowed {
		metrics.ExchangeTransitions.WithLabelValues(events.KindOrder, string(target), "unauthorized").Inc()
		return nil, fmt.Errorf("%w: %s may not move order %s to %s", models.ErrUnauthorized, callerID, orderID, target)
	}

	from := order.State
	// Compare-and-set on the version read above: of two racing callers only
	// one commits, the other gets models.ErrVersionConflict.
	updated, err := w.store.UpdateOrderState(ctx, orderID, order.Version, target)
	if err != nil {
		metrics.ExchangeTransitions.WithLabelValues(events.KindOrder, string(target), "conflict").Inc()
		return nil, err
	}
	metrics.ExchangeTransitions.WithLabelValues(events.KindOrder, string(target), "ok").Inc()
	// The transition is committed; nothing below can undo it.
	w.log.WithFields(logrus.Fields{"order": orderID, "from": from, "to": target, "actor": callerID}).Info("order transitioned")

	if target == models.OrderCompleted {
		w.completeOrder(ctx, updated, sellerOwner)
	}
	w.notifyOrder(ctx, updated, callerID, sellerOwner)
	w.publishTransition(ctx, events.KindOrder, orderID, callerID, string(from), string(target))
	return updated, nil
}

// sellerOwner resolves the account behind a seller entity. Orders outlive
// seller profiles; a removed profile resolves to no owner.
func (w *Workflow) sellerOwner(ctx context.Context, sellerEntityID string) (string, error) {
	seller, err := w.dir.GetSellerEntity(ctx, sellerEntityID)
	if errors.Is(err, models.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return seller.OwnerID, nil
}

func (w *Workflow) completeOrder(ctx context.Context, order *models.Order, sellerOwner string) {
	fields := logrus.Fields{"order": order.ID, "seller": sellerOwner, "buyer": order.BuyerID}
	parties := []string{order.BuyerID}
	if sellerOwner != "" {
		parties = append(parties, sellerOwner)
		w.sideEffect(ctx, "reward", fields, func(ctx context.Context) error {
			_, err := w.ledger.Grant(ctx, sellerOwner, CompletionReward, models.ReasonOrderCompleted, order.ID)
			return err
		})
	}
	w.sideEffect(ctx, "reputation", fields, func(ctx context.Context) error {
		return w.reputation.RecomputeAll(ctx, parties...)
	})
}

func (w *Workflow) notifyOrder(ctx context.Context, order *models.Order, callerID, sellerOwner string) {
	n := models.Notification{
		Recipient:   order.BuyerID,
		Sender:      callerID,
		CTA:         "/orders",
		ReferenceID: order.ID,
	}
	ref := shortID(order.ID)
	switch order.State {
	case models.OrderAccepted:
		n.Category = models.CategoryOrderAccepted
		n.Message = fmt.Sprintf("Your order #%s was accepted. You can now see the seller's contact details.", ref)
	case models.OrderRejected:
		n.Category = models.CategoryOrderRejected
		n.Message = fmt.Sprintf("Sorry, your order #%s was rejected.", ref)
	case models.OrderCompleted:
		n.Category = models.CategoryOrderCompleted
		n.Message = fmt.Sprintf("Order #%s delivered. Thanks for supporting local commerce!", ref)
	case models.OrderCancelled:
		n.Category = models.CategoryOrderCancelled
		n.Message = fmt.Sprintf("Order #%s was cancelled.", ref)
		if callerID == order.BuyerID {
			n.Recipient = sellerOwner
		}
	default:
		return
	}
	w.notify(ctx, n)
}

// ListOrders returns the caller's orders as buyer and as seller.
func (w *Workflow) ListOrders(ctx context.Context, callerID string) (*OrderLists, error) {
	asBuyer, err := w.store.ListOrdersByBuyer(ctx, callerID)
	if err != nil {
		return nil, err
	}
	entities, err := w.dir.SellerEntitiesOwnedBy(ctx, callerID)
	if err != nil {
		return nil, err
	}
	lists := &OrderLists{AsBuyer: asBuyer}
	if len(entities) > 0 {
		if lists.AsSeller, err = w.store.ListOrdersBySellerEntities(ctx, entities); err != nil {
			return nil, err
		}
	}
	return lists, nil
}
