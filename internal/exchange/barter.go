package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sheikh-saqib/market-trust-core/internal/ledger"
	"github.com/sheikh-saqib/market-trust-core/internal/metrics"
	"github.com/sheikh-saqib/market-trust-core/internal/models"
	"github.com/sheikh-saqib/market-trust-core/internal/models/events"
)

// BarterRequest describes a new barter proposal. PointAdjustment is in
// tokens: positive when the proposer pays, negative when the counterparty
// pays.
type BarterRequest struct {
	ProposerID        string          `json:"-"`
	CounterpartyID    string          `json:"counterparty_id"`
	ProposerOffer     models.Offer    `json:"proposer_offer"`
	CounterpartyOffer models.Offer    `json:"counterparty_offer"`
	PointAdjustment   decimal.Decimal `json:"point_adjustment"`
	Message           string          `json:"message"`
}

// CreateBarterProposal records a pending proposal. Only accounts acting as
// sellers may propose, and a proposer cannot offer to pay more points than
// it currently holds.
func (w *Workflow) CreateBarterProposal(ctx context.Context, req BarterRequest) (*models.BarterProposal, error) {
	if req.ProposerID == req.CounterpartyID {
		return nil, models.ErrSelfDealing
	}
	for _, o := range []models.Offer{req.ProposerOffer, req.CounterpartyOffer} {
		if o.ProductID == "" || !o.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: both offers need a product and a positive quantity", models.ErrValidation)
		}
	}

	proposer, err := w.dir.GetAccount(ctx, req.ProposerID)
	if err != nil {
		return nil, err
	}
	if proposer.ActiveRole != models.RoleSeller || !proposer.Active {
		return nil, models.ErrUnauthorizedRole
	}
	counterparty, err := w.dir.GetAccount(ctx, req.CounterpartyID)
	if err != nil {
		return nil, err
	}
	if err := w.checkOffers(ctx, req); err != nil {
		return nil, err
	}

	adjustment := ledger.ToMinorUnits(req.PointAdjustment)
	if adjustment > 0 {
		balance, err := w.ledger.GetBalance(ctx, req.ProposerID)
		if err != nil {
			return nil, err
		}
		if balance < adjustment {
			return nil, fmt.Errorf("%w: proposer holds %d, adjustment needs %d", models.ErrInsufficientFunds, balance, adjustment)
		}
	}

	now := w.now().UTC()
	p := &models.BarterProposal{
		ID:                uuid.NewString(),
		ProposerID:        req.ProposerID,
		CounterpartyID:    req.CounterpartyID,
		ProposerOffer:     req.ProposerOffer,
		CounterpartyOffer: req.CounterpartyOffer,
		PointAdjustment:   adjustment,
		Message:           req.Message,
		State:             models.BarterPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := w.store.CreateProposal(ctx, p); err != nil {
		return nil, fmt.Errorf("save proposal: %w", err)
	}
	w.log.WithFields(logrus.Fields{"proposal": p.ID, "proposer": p.ProposerID, "counterparty": p.CounterpartyID}).Info("barter proposed")

	w.notify(ctx, models.Notification{
		Recipient:   counterparty.ID,
		Sender:      proposer.ID,
		Category:    models.CategoryBarterNew,
		Message:     fmt.Sprintf("You received a barter proposal from %s", proposer.Name),
		CTA:         "/barters",
		ReferenceID: p.ID,
	})
	w.publishTransition(ctx, events.KindBarter, p.ID, proposer.ID, "", string(models.BarterPending))
	return p, nil
}

// checkOffers verifies that each side offers a product from one of its own
// seller profiles.
func (w *Workflow) checkOffers(ctx context.Context, req BarterRequest) error {
	products, err := w.dir.GetProducts(ctx, []string{req.ProposerOffer.ProductID, req.CounterpartyOffer.ProductID})
	if err != nil {
		return err
	}
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for owner, offer := range map[string]models.Offer{req.ProposerID: req.ProposerOffer, req.CounterpartyID: req.CounterpartyOffer} {
		p, ok := byID[offer.ProductID]
		if !ok {
			return fmt.Errorf("product %s: %w", offer.ProductID, models.ErrNotFound)
		}
		seller, err := w.dir.GetSellerEntity(ctx, p.SellerEntityID)
		if err != nil {
			return err
		}
		if seller.OwnerID != owner {
			return fmt.Errorf("%w: %s", models.ErrMismatchedSeller, p.Name)
		}
	}
	return nil
}

// TransitionBarterProposal moves a proposal to target on behalf of callerID.
// Only the counterparty answers a proposal; either party may mark an
// accepted trade as completed.
//
// Accepting settles the point adjustment first. If the payer cannot cover
// it the proposal stays pending and models.ErrInsufficientFunds is returned.
func (w *Workflow) TransitionBarterProposal(ctx context.Context, proposalID, callerID string, target models.BarterState) (*models.BarterProposal, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown barter state %q", models.ErrValidation, target)
	}
	p, err := w.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !p.State.CanTransitionTo(target) {
		metrics.ExchangeTransitions.WithLabelValues(events.KindBarter, string(target), "illegal").Inc()
		return nil, &models.TransitionError{Kind: "barter", From: string(p.State), To: string(target)}
	}

	var allowed bool
	switch target {
	case models.BarterAccepted, models.BarterRejected:
		allowed = callerID == p.CounterpartyID
	case models.BarterCompleted:
		allowed = p.Involves(callerID)
	}
	if !allowed {
		metrics.ExchangeTransitions.WithLabelValues(events.KindBarter, string(target), "unauthorized").Inc()
		return nil, fmt.Errorf("%w: %s may not move proposal %s to %s", models.ErrUnauthorized, callerID, proposalID, target)
	}

	from := p.State
	var updated *models.BarterProposal
	if target == models.BarterAccepted {
		updated, err = w.accept(ctx, p)
	} else {
		updated, err = w.store.UpdateProposalState(ctx, p.ID, p.Version, target, false)
	}
	if err != nil {
		outcome := "conflict"
		if errors.Is(err, models.ErrInsufficientFunds) {
			outcome = "insufficient_funds"
		}
		metrics.ExchangeTransitions.WithLabelValues(events.KindBarter, string(target), outcome).Inc()
		return nil, err
	}
	metrics.ExchangeTransitions.WithLabelValues(events.KindBarter, string(target), "ok").Inc()
	w.log.WithFields(logrus.Fields{"proposal": p.ID, "from": from, "to": target, "actor": callerID}).Info("barter transitioned")

	switch target {
	case models.BarterRejected:
		w.sideEffect(ctx, "reverse_settlement", logrus.Fields{"proposal": p.ID}, func(ctx context.Context) error {
			return w.reverseSettlement(ctx, updated)
		})
	case models.BarterCompleted:
		w.completeBarter(ctx, updated)
	}
	w.notify(ctx, models.Notification{
		Recipient:   updated.Other(callerID),
		Sender:      callerID,
		Category:    models.CategoryBarterUpdated,
		Message:     fmt.Sprintf("Your barter was %s", target),
		CTA:         "/barters",
		ReferenceID: updated.ID,
	})
	w.publishTransition(ctx, events.KindBarter, p.ID, callerID, string(from), string(target))
	return updated, nil
}

// accept settles the adjustment and then commits pending -> accepted with
// the sticky points-moved flag.
//
// The ledger entry written by the transfer is the settlement witness: a
// retry after a crash between the two steps finds it and does not pay again.
// A failed state update therefore leaves the settlement in place while the
// proposal is still pending; only a proposal that was rejected in the
// meantime gets the transfer made here reversed.
func (w *Workflow) accept(ctx context.Context, p *models.BarterProposal) (*models.BarterProposal, error) {
	payer, payee, amount := p.Settlement()
	movedNow := false
	// PointsMoved is sticky: once set no path moves points for this
	// proposal again.
	if !p.PointsMoved && amount > 0 {
		applied, err := w.ledger.Transfer(ctx, payer, payee, amount, models.ReasonBarterSettlement, p.ID)
		if err != nil {
			return nil, err
		}
		movedNow = applied
	}

	updated, err := w.store.UpdateProposalState(ctx, p.ID, p.Version, models.BarterAccepted, true)
	if err == nil {
		return updated, nil
	}
	if movedNow {
		w.sideEffect(ctx, "compensate_settlement", logrus.Fields{"proposal": p.ID}, func(ctx context.Context) error {
			current, gerr := w.store.GetProposal(ctx, p.ID)
			if gerr != nil {
				return gerr
			}
			// Pending keeps the witness so the next accept only flips state.
			if current.State != models.BarterRejected {
				return nil
			}
			return w.reverseSettlement(ctx, current)
		})
	}
	return nil, err
}

// reverseSettlement pays back a settlement that is on record for a proposal
// that never became accepted. It is a no-op when nothing was settled or the
// reversal already happened.
func (w *Workflow) reverseSettlement(ctx context.Context, p *models.BarterProposal) error {
	payer, payee, amount := p.Settlement()
	if amount == 0 {
		return nil
	}
	settled, err := w.ledger.Transferred(ctx, payer, models.ReasonBarterSettlement, p.ID)
	if err != nil || !settled {
		return err
	}
	applied, err := w.ledger.Transfer(ctx, payee, payer, amount, models.ReasonBarterReversal, p.ID)
	if err != nil {
		return err
	}
	if applied {
		w.log.WithFields(logrus.Fields{"proposal": p.ID, "amount": amount}).Warn("barter settlement reversed")
	}
	return nil
}

func (w *Workflow) completeBarter(ctx context.Context, p *models.BarterProposal) {
	for _, party := range []string{p.ProposerID, p.CounterpartyID} {
		w.sideEffect(ctx, "reward", logrus.Fields{"proposal": p.ID, "account": party}, func(ctx context.Context) error {
			_, err := w.ledger.Grant(ctx, party, CompletionReward, models.ReasonBarterCompleted, p.ID)
			return err
		})
	}
	w.sideEffect(ctx, "reputation", logrus.Fields{"proposal": p.ID}, func(ctx context.Context) error {
		return w.reputation.RecomputeAll(ctx, p.ProposerID, p.CounterpartyID)
	})
}

// ListBarterProposals returns the proposals the caller takes part in.
func (w *Workflow) ListBarterProposals(ctx context.Context, callerID string) ([]models.BarterProposal, error) {
	return w.store.ListProposalsByAccount(ctx, callerID)
}
