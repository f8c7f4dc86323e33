package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/market-trust-core/internal/exchange"
	"github.com/sheikh-saqib/market-trust-core/internal/models"
)

func (s *Server) handleTrustLevel(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subjectID")
	level, err := s.svc.Trust.Level(r.Context(), caller(r), subject)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"observer": caller(r),
		"subject":  subject,
		"level":    level,
	})
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	owner, err := s.svc.Directory.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	visible, err := s.svc.Trust.CanView(r.Context(), caller(r), owner)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"visible": visible})
}

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.svc.Contacts.List(r.Context(), caller(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (s *Server) handleAddContact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContactID string `json:"contact_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.svc.Contacts.Add(r.Context(), caller(r), req.ContactID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveContact(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Contacts.Remove(r.Context(), caller(r), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// serviceRewards are the grants internal producers may request, at their
// fixed amounts. Exchange rewards are paid by the workflow itself and the
// profile bonus has its own route.
var serviceRewards = map[models.Reason]decimal.Decimal{
	models.ReasonFirstListing:   decimal.NewFromInt(1),
	models.ReasonListingCreated: decimal.RequireFromString("0.2"),
	models.ReasonListingUpdated: decimal.RequireFromString("0.1"),
}

// handleGrant pays a listing reward on behalf of a trusted producer. The
// amount is fixed per reason; a request naming another amount is refused.
func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID   string           `json:"account_id"`
		Tokens      *decimal.Decimal `json:"tokens"`
		Reason      models.Reason    `json:"reason"`
		ReferenceID string           `json:"reference_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	amount, ok := serviceRewards[req.Reason]
	if !ok {
		writeError(w, http.StatusBadRequest, "validation", fmt.Sprintf("reason %q cannot be granted through this route", req.Reason))
		return
	}
	if req.Tokens != nil && !req.Tokens.Equal(amount) {
		writeError(w, http.StatusBadRequest, "validation", fmt.Sprintf("reason %q pays exactly %s tokens", req.Reason, amount))
		return
	}
	res, err := s.svc.Ledger.Grant(r.Context(), req.AccountID, amount, req.Reason, req.ReferenceID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleDebit redeems points from the caller's own balance.
func (s *Server) handleDebit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int64 `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	balance, err := s.svc.Ledger.Debit(r.Context(), caller(r), req.Amount)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !requireSelf(w, r, id) {
		return
	}
	balance, err := s.svc.Ledger.GetBalance(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !requireSelf(w, r, id) {
		return
	}
	entries, err := s.svc.Ledger.GetLedgerEntries(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleProfileCompletion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !requireSelf(w, r, id) {
		return
	}
	acct, err := s.svc.Directory.GetAccount(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	res, err := s.svc.Ledger.CheckProfileCompletion(r.Context(), acct)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRecomputeReputation(w http.ResponseWriter, r *http.Request) {
	score, err := s.svc.Reputation.Recompute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"reputation": score})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	lists, err := s.svc.Workflow.ListOrders(r.Context(), caller(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SellerEntityID string                      `json:"seller_entity_id"`
		Items          []exchange.OrderItemRequest `json:"items"`
	}
	if !decode(w, r, &req) {
		return
	}
	order, err := s.svc.Workflow.CreateOrder(r.Context(), caller(r), req.SellerEntityID, req.Items)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

type transitionRequest struct {
	State string `json:"state"`
}

func (s *Server) handleTransitionOrder(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !decode(w, r, &req) {
		return
	}
	order, err := s.svc.Workflow.TransitionOrder(r.Context(), chi.URLParam(r, "id"), caller(r), models.OrderState(req.State))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleListBarters(w http.ResponseWriter, r *http.Request) {
	proposals, err := s.svc.Workflow.ListBarterProposals(r.Context(), caller(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proposals)
}

func (s *Server) handleCreateBarter(w http.ResponseWriter, r *http.Request) {
	var req exchange.BarterRequest
	if !decode(w, r, &req) {
		return
	}
	req.ProposerID = caller(r)
	p, err := s.svc.Workflow.CreateBarterProposal(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleTransitionBarter(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := s.svc.Workflow.TransitionBarterProposal(r.Context(), chi.URLParam(r, "id"), caller(r), models.BarterState(req.State))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
