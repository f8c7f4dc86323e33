package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/market-trust-core/internal/exchange"
	"github.com/sheikh-saqib/market-trust-core/internal/ledger"
	"github.com/sheikh-saqib/market-trust-core/internal/logging"
	"github.com/sheikh-saqib/market-trust-core/internal/models"
	"github.com/sheikh-saqib/market-trust-core/internal/notify"
	"github.com/sheikh-saqib/market-trust-core/internal/reputation"
	"github.com/sheikh-saqib/market-trust-core/internal/storage/memory"
	"github.com/sheikh-saqib/market-trust-core/internal/trust"
)

type testServer struct {
	store   *memory.Store
	handler http.Handler
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	store := memory.NewStore()
	store.PutAccount(models.Account{ID: "buyer", Name: "Bea", Phone: "099", Zone: "north", ActiveRole: models.RoleBuyer, Active: true})
	store.PutAccount(models.Account{ID: "seller", Name: "Sol", Phone: "098", ActiveRole: models.RoleSeller, Active: true})
	store.PutAccount(models.Account{ID: "other", Name: "Oto", Phone: "097", ActiveRole: models.RoleSeller, Active: true, Visibility: models.VisibilityRestricted})
	store.PutSellerEntity(models.SellerEntity{ID: "farm", OwnerID: "seller"})
	store.PutSellerEntity(models.SellerEntity{ID: "dairy", OwnerID: "other"})
	store.PutProduct(models.Product{ID: "tomatoes", SellerEntityID: "farm", Name: "Tomatoes", Price: decimal.RequireFromString("2.50"), Unit: "kg"})
	store.PutProduct(models.Product{ID: "cheese", SellerEntityID: "dairy", Name: "Cheese", Price: decimal.RequireFromString("7"), Unit: "unit"})

	log := logging.Discard()
	l := ledger.NewLedger(store, ledger.DefaultConfig(), log)
	engine := trust.NewEngine(store, log)
	agg := reputation.NewAggregator(store, store, log)
	pub := notify.NewLogPublisher(log)
	svc := Services{
		Directory:  store,
		Ledger:     l,
		Trust:      engine,
		Contacts:   trust.NewContactBook(store, store, engine),
		Workflow:   exchange.NewWorkflow(store, store, l, agg, notify.NewPublishingNotifier(pub), pub, log),
		Reputation: agg,
	}
	return &testServer{store: store, handler: NewServer(svc, opts, log).Handler()}
}

// doService posts a grant the way an internal reward producer does.
func (ts *testServer) doService(t *testing.T, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, "/internal/tokens/grant", &buf)
	if token != "" {
		req.Header.Set(ServiceTokenHeader, token)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func (ts *testServer) do(t *testing.T, method, path, callerID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if callerID != "" {
		req.Header.Set(CallerHeader, callerID)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorType(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody[map[string]map[string]string](t, w)
	return body["error"]["type"]
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, Options{})

	w := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "market_")
}

func TestMissingCaller(t *testing.T) {
	ts := newTestServer(t, Options{})
	w := ts.do(t, http.MethodGet, "/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTrustAndVisibility(t *testing.T) {
	ts := newTestServer(t, Options{})

	w := ts.do(t, http.MethodPost, "/contacts", "buyer", map[string]string{"contact_id": "seller"})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	w = ts.do(t, http.MethodPost, "/contacts", "seller", map[string]string{"contact_id": "other"})
	require.Equal(t, http.StatusNoContent, w.Code)
	w = ts.do(t, http.MethodPost, "/contacts", "other", map[string]string{"contact_id": "seller"})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, "/trust/other", "buyer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decodeBody[map[string]any](t, w)["level"])

	w = ts.do(t, http.MethodGet, "/trust/other", "", nil)
	assert.Equal(t, float64(0), decodeBody[map[string]any](t, w)["level"])

	// other is restricted and has contacts: buyer is two hops away, an
	// anonymous viewer is not.
	w = ts.do(t, http.MethodGet, "/accounts/other/visibility", "buyer", nil)
	assert.True(t, decodeBody[map[string]bool](t, w)["visible"])
	w = ts.do(t, http.MethodGet, "/accounts/other/visibility", "", nil)
	assert.False(t, decodeBody[map[string]bool](t, w)["visible"])

	w = ts.do(t, http.MethodGet, "/contacts", "buyer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	contacts := decodeBody[[]trust.Contact](t, w)
	require.Len(t, contacts, 1)
	assert.Equal(t, "seller", contacts[0].AccountID)
	assert.Equal(t, 1, contacts[0].TrustLevel)

	w = ts.do(t, http.MethodPost, "/contacts", "buyer", map[string]string{"contact_id": "buyer"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.do(t, http.MethodDelete, "/contacts/seller", "buyer", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestTokens(t *testing.T) {
	ts := newTestServer(t, Options{ServiceToken: "listing-svc"})

	w := ts.do(t, http.MethodPost, "/accounts/buyer/profile-completion", "buyer", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decodeBody[ledger.GrantResult](t, w)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(100), res.Balance)

	grant := map[string]any{"account_id": "buyer", "reason": "producto_publicado", "reference_id": "listing-1"}
	w = ts.doService(t, "listing-svc", grant)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(120), decodeBody[ledger.GrantResult](t, w).Balance)

	w = ts.doService(t, "listing-svc", map[string]any{"account_id": "buyer", "tokens": "1", "reason": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/tokens/debit", "buyer", map[string]int64{"amount": 500})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "insufficient_funds", errorType(t, w))

	w = ts.do(t, http.MethodPost, "/tokens/debit", "buyer", map[string]int64{"amount": 20})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(100), decodeBody[map[string]int64](t, w)["balance"])

	w = ts.do(t, http.MethodGet, "/accounts/buyer/ledger", "buyer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]models.LedgerEntry](t, w), 3)

	w = ts.do(t, http.MethodGet, "/accounts/buyer/balance", "seller", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGrant_RefusesOrdinaryCallers(t *testing.T) {
	ts := newTestServer(t, Options{ServiceToken: "listing-svc"})
	mint := map[string]any{"account_id": "buyer", "tokens": "1000000", "reason": "pedido_completado", "reference_id": "fake-1"}

	w := ts.do(t, http.MethodPost, "/tokens/grant", "buyer", mint)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, http.MethodPost, "/internal/tokens/grant", "buyer", mint)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = ts.doService(t, "guessed", mint)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Even a trusted producer cannot pay exchange rewards or pick the amount.
	w = ts.doService(t, "listing-svc", mint)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.doService(t, "listing-svc", map[string]any{"account_id": "buyer", "tokens": "1000000", "reason": "producto_publicado", "reference_id": "l-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	balance, err := ts.store.Balance(context.Background(), "buyer")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestGrant_DisabledWithoutServiceToken(t *testing.T) {
	ts := newTestServer(t, Options{})
	w := ts.doService(t, "", map[string]any{"account_id": "buyer", "reason": "primera_publicacion"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestOrderFlow(t *testing.T) {
	ts := newTestServer(t, Options{})

	w := ts.do(t, http.MethodPost, "/orders", "buyer", map[string]any{
		"seller_entity_id": "farm",
		"items":            []map[string]string{{"product_id": "tomatoes", "quantity": "4"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decodeBody[models.Order](t, w)
	assert.Equal(t, "10", order.Total.String())

	w = ts.do(t, http.MethodPatch, "/orders/"+order.ID, "buyer", map[string]string{"state": "accepted"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodPatch, "/orders/"+order.ID, "seller", map[string]string{"state": "completed"})
	assert.Equal(t, http.StatusConflict, w.Code)

	for _, state := range []string{"accepted", "completed"} {
		w = ts.do(t, http.MethodPatch, "/orders/"+order.ID, "seller", map[string]string{"state": state})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/accounts/seller/balance", "seller", nil)
	assert.Equal(t, int64(100), decodeBody[map[string]int64](t, w)["balance"])

	w = ts.do(t, http.MethodPost, "/accounts/seller/reputation", "seller", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, decodeBody[map[string]int](t, w)["reputation"])

	w = ts.do(t, http.MethodGet, "/orders", "seller", nil)
	lists := decodeBody[exchange.OrderLists](t, w)
	assert.Len(t, lists.AsSeller, 1)

	w = ts.do(t, http.MethodPatch, "/orders/nope", "seller", map[string]string{"state": "accepted"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBarterFlow(t *testing.T) {
	ts := newTestServer(t, Options{})

	proposal := map[string]any{
		"counterparty_id":    "other",
		"proposer_offer":     map[string]string{"product_id": "tomatoes", "quantity": "2"},
		"counterparty_offer": map[string]string{"product_id": "cheese", "quantity": "1"},
		"point_adjustment":   "2.5",
	}
	w := ts.do(t, http.MethodPost, "/barters", "seller", proposal)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	proposal["point_adjustment"] = "0"
	w = ts.do(t, http.MethodPost, "/barters", "buyer", proposal)
	assert.Equal(t, http.StatusForbidden, w.Code, "buyers cannot propose barters")

	w = ts.do(t, http.MethodPost, "/barters", "seller", proposal)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	p := decodeBody[models.BarterProposal](t, w)

	w = ts.do(t, http.MethodPatch, "/barters/"+p.ID, "other", map[string]string{"state": "accepted"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = ts.do(t, http.MethodPatch, "/barters/"+p.ID, "seller", map[string]string{"state": "completed"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/barters", "other", nil)
	list := decodeBody[[]models.BarterProposal](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, models.BarterCompleted, list[0].State)
}

func TestBadBody(t *testing.T) {
	ts := newTestServer(t, Options{})
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString("{"))
	req.Header.Set(CallerHeader, "buyer")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimitPerCaller(t *testing.T) {
	ts := newTestServer(t, Options{RateLimitRPS: 0.001, RateLimitBurst: 2})

	for i := 0; i < 2; i++ {
		w := ts.do(t, http.MethodGet, "/trust/seller", "buyer", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := ts.do(t, http.MethodGet, "/trust/seller", "buyer", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = ts.do(t, http.MethodGet, "/trust/seller", "other", nil)
	assert.Equal(t, http.StatusOK, w.Code, "limits are per caller")
}
