package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/market-trust-core/internal/logging"
	"github.com/sheikh-saqib/market-trust-core/internal/models"
	"github.com/sheikh-saqib/market-trust-core/internal/storage/memory"
)

func newTestLedger(t *testing.T, accounts ...string) (*Ledger, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	for _, id := range accounts {
		store.PutAccount(models.Account{ID: id, Name: id, Active: true})
	}
	return NewLedger(store, DefaultConfig(), logging.Discard()), store
}

func tokens(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(100), ToMinorUnits(tokens("1")))
	assert.Equal(t, int64(250), ToMinorUnits(tokens("2.5")))
	assert.Equal(t, int64(20), ToMinorUnits(tokens("0.2")))
	assert.Equal(t, int64(10), ToMinorUnits(tokens("0.1")))
	assert.Equal(t, int64(33), ToMinorUnits(tokens("0.333")))
}

func TestGrant_OncePerAccount(t *testing.T) {
	l, _ := newTestLedger(t, "ana")
	ctx := context.Background()

	first, err := l.Grant(ctx, "ana", tokens("1"), models.ReasonProfileCompleted, "")
	require.NoError(t, err)
	assert.True(t, first.Applied)
	assert.Equal(t, int64(100), first.Balance)

	second, err := l.Grant(ctx, "ana", tokens("1"), models.ReasonProfileCompleted, "")
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.Equal(t, int64(100), second.Balance)
}

func TestGrant_OncePerReferenceUnderConcurrency(t *testing.T) {
	l, _ := newTestLedger(t, "seller")
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Grant(ctx, "seller", tokens("1"), models.ReasonOrderCompleted, "order-1")
			if assert.NoError(t, err) && res.Applied {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	balance, err := l.GetBalance(ctx, "seller")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	// A different order still pays.
	res, err := l.Grant(ctx, "seller", tokens("1"), models.ReasonOrderCompleted, "order-2")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(200), res.Balance)
}

func TestGrant_DailyCapResetsNextDay(t *testing.T) {
	l, _ := newTestLedger(t, "ana")
	ctx := context.Background()

	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	l.SetClock(func() time.Time { return day })

	for i := 0; i < 5; i++ {
		res, err := l.Grant(ctx, "ana", tokens("0.2"), models.ReasonListingCreated, "")
		require.NoError(t, err)
		assert.True(t, res.Applied, "grant %d should apply", i+1)
	}
	sixth, err := l.Grant(ctx, "ana", tokens("0.2"), models.ReasonListingCreated, "")
	require.NoError(t, err)
	assert.False(t, sixth.Applied)
	assert.Equal(t, int64(100), sixth.Balance)

	// Updates have their own, larger cap.
	upd, err := l.Grant(ctx, "ana", tokens("0.1"), models.ReasonListingUpdated, "")
	require.NoError(t, err)
	assert.True(t, upd.Applied)

	l.SetClock(func() time.Time { return day.Add(24 * time.Hour) })
	next, err := l.Grant(ctx, "ana", tokens("0.2"), models.ReasonListingCreated, "")
	require.NoError(t, err)
	assert.True(t, next.Applied)
	assert.Equal(t, int64(130), next.Balance)
}

func TestGrant_DailyCapUsesConfiguredCalendar(t *testing.T) {
	store := memory.NewStore()
	store.PutAccount(models.Account{ID: "ana"})
	loc := time.FixedZone("UTC-3", -3*60*60)
	l := NewLedger(store, Config{Location: loc, ListingCreatedDailyCap: 1, ListingUpdatedDailyCap: 1}, logging.Discard())
	ctx := context.Background()

	// 23:30 local on the 10th, then 00:30 local on the 11th: different days
	// even though both are the same UTC date.
	l.SetClock(func() time.Time { return time.Date(2026, 3, 11, 2, 30, 0, 0, time.UTC) })
	res, err := l.Grant(ctx, "ana", tokens("0.2"), models.ReasonListingCreated, "")
	require.NoError(t, err)
	assert.True(t, res.Applied)

	l.SetClock(func() time.Time { return time.Date(2026, 3, 11, 3, 30, 0, 0, time.UTC) })
	res, err = l.Grant(ctx, "ana", tokens("0.2"), models.ReasonListingCreated, "")
	require.NoError(t, err)
	assert.True(t, res.Applied)
}

func TestGrant_Validation(t *testing.T) {
	l, _ := newTestLedger(t, "ana")
	ctx := context.Background()

	_, err := l.Grant(ctx, "ana", tokens("1"), models.Reason("bogus"), "")
	assert.ErrorIs(t, err, models.ErrUnknownReason)

	_, err = l.Grant(ctx, "ana", tokens("1"), models.ReasonBarterSettlement, "p-1")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = l.Grant(ctx, "ana", tokens("1"), models.ReasonOrderCompleted, "")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = l.Grant(ctx, "ana", tokens("0"), models.ReasonListingCreated, "")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = l.Grant(ctx, "ghost", tokens("1"), models.ReasonProfileCompleted, "")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDebit(t *testing.T) {
	l, _ := newTestLedger(t, "ana")
	ctx := context.Background()
	_, err := l.Grant(ctx, "ana", tokens("1"), models.ReasonProfileCompleted, "")
	require.NoError(t, err)

	balance, err := l.Debit(ctx, "ana", 150)
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)
	assert.Equal(t, int64(100), balance)

	balance, err = l.Debit(ctx, "ana", 60)
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance)

	entries, err := l.GetLedgerEntries(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(-60), entries[1].Amount)
	assert.Equal(t, models.ReasonRedemption, entries[1].Reason)
}

func TestTransfer_InsufficientFundsLeavesBalances(t *testing.T) {
	l, _ := newTestLedger(t, "a", "b")
	ctx := context.Background()
	_, err := l.Grant(ctx, "a", tokens("1"), models.ReasonProfileCompleted, "")
	require.NoError(t, err)

	applied, err := l.Transfer(ctx, "a", "b", 250, models.ReasonBarterSettlement, "p-1")
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)
	assert.False(t, applied)

	a, _ := l.GetBalance(ctx, "a")
	b, _ := l.GetBalance(ctx, "b")
	assert.Equal(t, int64(100), a)
	assert.Equal(t, int64(0), b)
}

func TestTransfer_IsIdempotentPerReference(t *testing.T) {
	l, _ := newTestLedger(t, "a", "b")
	ctx := context.Background()
	_, err := l.Grant(ctx, "a", tokens("1"), models.ReasonProfileCompleted, "")
	require.NoError(t, err)

	applied, err := l.Transfer(ctx, "a", "b", 40, models.ReasonBarterSettlement, "p-1")
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = l.Transfer(ctx, "a", "b", 40, models.ReasonBarterSettlement, "p-1")
	require.NoError(t, err)
	assert.False(t, applied)

	a, _ := l.GetBalance(ctx, "a")
	b, _ := l.GetBalance(ctx, "b")
	assert.Equal(t, int64(60), a)
	assert.Equal(t, int64(40), b)

	moved, err := l.Transferred(ctx, "a", models.ReasonBarterSettlement, "p-1")
	require.NoError(t, err)
	assert.True(t, moved)
}

func TestTransfer_Validation(t *testing.T) {
	l, _ := newTestLedger(t, "a", "b")
	ctx := context.Background()

	_, err := l.Transfer(ctx, "a", "a", 10, models.ReasonBarterSettlement, "p-1")
	assert.ErrorIs(t, err, models.ErrSelfDealing)

	_, err = l.Transfer(ctx, "a", "b", 10, models.ReasonRedemption, "p-1")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = l.Transfer(ctx, "a", "b", 10, models.ReasonBarterSettlement, "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestCheckProfileCompletion(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()
	store.PutAccount(models.Account{ID: "ana", Name: "Ana", Zone: "Centro"})

	acct, err := store.GetAccount(ctx, "ana")
	require.NoError(t, err)
	res, err := l.CheckProfileCompletion(ctx, acct)
	require.NoError(t, err)
	assert.False(t, res.Applied)

	acct.Phone = "099123456"
	res, err = l.CheckProfileCompletion(ctx, acct)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(100), res.Balance)
}
