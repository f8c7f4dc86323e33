package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/market-trust-core/internal/models"
)

const orderColumns = `id, buyer_id, seller_entity_id, items, total, state, version, created_at, updated_at`

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES (:id, :buyer_id, :seller_entity_id, :items, :total, :state, :version, :created_at, :updated_at)`, order)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	err := s.db.GetContext(ctx, &o, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

// UpdateOrderState is a compare-and-swap on version.
func (s *Store) UpdateOrderState(ctx context.Context, id string, expectedVersion int64, to models.OrderState) (*models.Order, error) {
	var o models.Order
	err := s.db.GetContext(ctx, &o, `UPDATE orders SET state = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4 RETURNING `+orderColumns,
		to, time.Now().UTC(), id, expectedVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.casMiss(ctx, "orders", "order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	return &o, nil
}

// casMiss tells a lost version race apart from a missing row.
func (s *Store) casMiss(ctx context.Context, table, kind, id string) error {
	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("check %s: %w", kind, err)
	}
	if !exists {
		return fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", kind, id, models.ErrVersionConflict)
}

func (s *Store) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]models.Order, error) {
	var out []models.Order
	err := s.db.SelectContext(ctx, &out, `SELECT `+orderColumns+` FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC`, buyerID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

func (s *Store) ListOrdersBySellerEntities(ctx context.Context, sellerEntityIDs []string) ([]models.Order, error) {
	if len(sellerEntityIDs) == 0 {
		return nil, nil
	}
	var out []models.Order
	err := s.db.SelectContext(ctx, &out, `SELECT `+orderColumns+` FROM orders WHERE seller_entity_id = ANY($1) ORDER BY created_at DESC`,
		pq.Array(sellerEntityIDs))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

func (s *Store) CountCompletedOrders(ctx context.Context, accountID string, sellerEntityIDs []string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM orders
		WHERE state = $1 AND (buyer_id = $2 OR seller_entity_id = ANY($3))`,
		models.OrderCompleted, accountID, pq.Array(sellerEntityIDs))
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// proposalRow flattens the two offers into columns.
type proposalRow struct {
	ID                    string          `db:"id"`
	ProposerID            string          `db:"proposer_id"`
	CounterpartyID        string          `db:"counterparty_id"`
	ProposerProductID     string          `db:"proposer_product_id"`
	ProposerQuantity      decimal.Decimal `db:"proposer_quantity"`
	CounterpartyProductID string          `db:"counterparty_product_id"`
	CounterpartyQuantity  decimal.Decimal `db:"counterparty_quantity"`
	PointAdjustment       int64           `db:"point_adjustment"`
	PointsMoved           bool            `db:"points_moved"`
	Message               string          `db:"message"`
	State                 string          `db:"state"`
	Version               int64           `db:"version"`
	CreatedAt             time.Time       `db:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at"`
}

const proposalColumns = `id, proposer_id, counterparty_id, proposer_product_id, proposer_quantity,
	counterparty_product_id, counterparty_quantity, point_adjustment, points_moved, message,
	state, version, created_at, updated_at`

func toProposalRow(p *models.BarterProposal) proposalRow {
	return proposalRow{
		ID:                    p.ID,
		ProposerID:            p.ProposerID,
		CounterpartyID:        p.CounterpartyID,
		ProposerProductID:     p.ProposerOffer.ProductID,
		ProposerQuantity:      p.ProposerOffer.Quantity,
		CounterpartyProductID: p.CounterpartyOffer.ProductID,
		CounterpartyQuantity:  p.CounterpartyOffer.Quantity,
		PointAdjustment:       p.PointAdjustment,
		PointsMoved:           p.PointsMoved,
		Message:               p.Message,
		State:                 string(p.State),
		Version:               p.Version,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}

func (r proposalRow) model() models.BarterProposal {
	return models.BarterProposal{
		ID:                r.ID,
		ProposerID:        r.ProposerID,
		CounterpartyID:    r.CounterpartyID,
		ProposerOffer:     models.Offer{ProductID: r.ProposerProductID, Quantity: r.ProposerQuantity},
		CounterpartyOffer: models.Offer{ProductID: r.CounterpartyProductID, Quantity: r.CounterpartyQuantity},
		PointAdjustment:   r.PointAdjustment,
		PointsMoved:       r.PointsMoved,
		Message:           r.Message,
		State:             models.BarterState(r.State),
		Version:           r.Version,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func (s *Store) CreateProposal(ctx context.Context, p *models.BarterProposal) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO barter_proposals (`+proposalColumns+`)
		VALUES (:id, :proposer_id, :counterparty_id, :proposer_product_id, :proposer_quantity,
			:counterparty_product_id, :counterparty_quantity, :point_adjustment, :points_moved, :message,
			:state, :version, :created_at, :updated_at)`, toProposalRow(p))
	if err != nil {
		return fmt.Errorf("insert proposal: %w", err)
	}
	return nil
}

func (s *Store) GetProposal(ctx context.Context, id string) (*models.BarterProposal, error) {
	var row proposalRow
	err := s.db.GetContext(ctx, &row, `SELECT `+proposalColumns+` FROM barter_proposals WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("proposal %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	p := row.model()
	return &p, nil
}

// UpdateProposalState is a compare-and-swap on version. points_moved only
// ever goes from false to true.
func (s *Store) UpdateProposalState(ctx context.Context, id string, expectedVersion int64, to models.BarterState, pointsMoved bool) (*models.BarterProposal, error) {
	var row proposalRow
	err := s.db.GetContext(ctx, &row, `UPDATE barter_proposals
		SET state = $1, points_moved = points_moved OR $2, version = version + 1, updated_at = $3
		WHERE id = $4 AND version = $5 RETURNING `+proposalColumns,
		to, pointsMoved, time.Now().UTC(), id, expectedVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.casMiss(ctx, "barter_proposals", "proposal", id)
	}
	if err != nil {
		return nil, fmt.Errorf("update proposal: %w", err)
	}
	p := row.model()
	return &p, nil
}

func (s *Store) ListProposalsByAccount(ctx context.Context, accountID string) ([]models.BarterProposal, error) {
	var rows []proposalRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+proposalColumns+` FROM barter_proposals
		WHERE proposer_id = $1 OR counterparty_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	out := make([]models.BarterProposal, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

func (s *Store) CountCompletedProposals(ctx context.Context, accountID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM barter_proposals
		WHERE state = $1 AND (proposer_id = $2 OR counterparty_id = $2)`, models.BarterCompleted, accountID)
	if err != nil {
		return 0, fmt.Errorf("count proposals: %w", err)
	}
	return n, nil
}
