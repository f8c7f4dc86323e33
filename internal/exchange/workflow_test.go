package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/market-trust-core/internal/ledger"
	"github.com/sheikh-saqib/market-trust-core/internal/logging"
	"github.com/sheikh-saqib/market-trust-core/internal/models"
	"github.com/sheikh-saqib/market-trust-core/internal/reputation"
	"github.com/sheikh-saqib/market-trust-core/internal/storage/memory"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, n models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) last() models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[len(r.sent)-1]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []any
}

func (r *recordingPublisher) Publish(ctx context.Context, topic string, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// failingLedger wraps a real ledger but refuses every grant.
type failingLedger struct {
	TokenLedger
}

func (failingLedger) Grant(ctx context.Context, accountID string, tokens decimal.Decimal, reason models.Reason, referenceID string) (ledger.GrantResult, error) {
	return ledger.GrantResult{}, errors.New("ledger unavailable")
}

type fixture struct {
	store    *memory.Store
	ledger   *ledger.Ledger
	notifier *recordingNotifier
	events   *recordingPublisher
	wf       *Workflow
}

// newFixture seeds a buyer, two sellers with one farm and product each.
//
//	buyer  (buyer role, phone set)
//	seller owns farm  -> product "tomatoes" 10.333/kg
//	other  owns dairy -> product "cheese"   7.50/unit
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.PutAccount(models.Account{ID: "buyer", Name: "Bea", Phone: "099", ActiveRole: models.RoleBuyer, Active: true})
	store.PutAccount(models.Account{ID: "seller", Name: "Sol", Phone: "098", ActiveRole: models.RoleSeller, Active: true})
	store.PutAccount(models.Account{ID: "other", Name: "Oto", Phone: "097", ActiveRole: models.RoleSeller, Active: true})
	store.PutAccount(models.Account{ID: "stranger", Name: "Sid", ActiveRole: models.RoleBuyer, Active: true})
	store.PutSellerEntity(models.SellerEntity{ID: "farm", OwnerID: "seller", Name: "Sol's farm"})
	store.PutSellerEntity(models.SellerEntity{ID: "dairy", OwnerID: "other", Name: "Oto's dairy"})
	store.PutProduct(models.Product{ID: "tomatoes", SellerEntityID: "farm", Name: "Tomatoes", Price: decimal.RequireFromString("10.333"), Unit: "kg", Available: true})
	store.PutProduct(models.Product{ID: "cheese", SellerEntityID: "dairy", Name: "Cheese", Price: decimal.RequireFromString("7.50"), Unit: "unit", Available: true})

	log := logging.Discard()
	l := ledger.NewLedger(store, ledger.DefaultConfig(), log)
	f := &fixture{
		store:    store,
		ledger:   l,
		notifier: &recordingNotifier{},
		events:   &recordingPublisher{},
	}
	f.wf = NewWorkflow(store, store, l, reputation.NewAggregator(store, store, log), f.notifier, f.events, log)
	return f
}

// fund gives an account n tokens through one-off order rewards.
func (f *fixture) fund(t *testing.T, account string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := f.ledger.Grant(context.Background(), account, decimal.NewFromInt(1), models.ReasonOrderCompleted, fmt.Sprintf("seed-%s-%d", account, i))
		require.NoError(t, err)
	}
}

func (f *fixture) balance(t *testing.T, account string) int64 {
	t.Helper()
	b, err := f.ledger.GetBalance(context.Background(), account)
	require.NoError(t, err)
	return b
}

func (f *fixture) reputation(t *testing.T, account string) int {
	t.Helper()
	a, err := f.store.GetAccount(context.Background(), account)
	require.NoError(t, err)
	return a.Reputation
}

func qty(s string) decimal.Decimal { return decimal.RequireFromString(s) }
