// Package api exposes the trust, ledger and exchange operations over HTTP.
// The caller is identified by the X-Account-ID header, which the gateway in
// front of this service sets after authenticating the session.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/sheikh-saqib/market-trust-core/internal/exchange"
	interfaces "github.com/sheikh-saqib/market-trust-core/internal/interfaces"
	"github.com/sheikh-saqib/market-trust-core/internal/ledger"
	"github.com/sheikh-saqib/market-trust-core/internal/metrics"
	"github.com/sheikh-saqib/market-trust-core/internal/models"
	"github.com/sheikh-saqib/market-trust-core/internal/reputation"
	"github.com/sheikh-saqib/market-trust-core/internal/trust"
)

// CallerHeader carries the authenticated account id.
const CallerHeader = "X-Account-ID"

// ServiceTokenHeader carries the shared credential of internal reward
// producers such as the listing service.
const ServiceTokenHeader = "X-Service-Token"

type Services struct {
	Directory  interfaces.Directory
	Ledger     *ledger.Ledger
	Trust      *trust.Engine
	Contacts   *trust.ContactBook
	Workflow   *exchange.Workflow
	Reputation *reputation.Aggregator
}

type Options struct {
	RequestTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	// ServiceToken guards /internal routes. Empty disables them.
	ServiceToken string
}

type Server struct {
	svc     Services
	opts    Options
	limiter *RateLimiter
	log     logrus.FieldLogger
}

const defaultRequestTimeout = 10 * time.Second

func NewServer(svc Services, opts Options, log logrus.FieldLogger) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	return &Server{
		svc:     svc,
		opts:    opts,
		limiter: NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		log:     log.WithField("component", "api"),
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.opts.RequestTimeout))
		r.Use(s.limiter.Handler)

		r.With(s.requireService).Post("/internal/tokens/grant", s.handleGrant)

		r.Get("/trust/{subjectID}", s.handleTrustLevel)
		r.Get("/accounts/{id}/visibility", s.handleVisibility)

		r.Group(func(r chi.Router) {
			r.Use(requireCaller)

			r.Route("/contacts", func(r chi.Router) {
				r.Get("/", s.handleListContacts)
				r.Post("/", s.handleAddContact)
				r.Delete("/{id}", s.handleRemoveContact)
			})

			r.Post("/tokens/debit", s.handleDebit)
			r.Get("/accounts/{id}/balance", s.handleBalance)
			r.Get("/accounts/{id}/ledger", s.handleLedger)
			r.Post("/accounts/{id}/profile-completion", s.handleProfileCompletion)
			r.Post("/accounts/{id}/reputation", s.handleRecomputeReputation)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", s.handleListOrders)
				r.Post("/", s.handleCreateOrder)
				r.Patch("/{id}", s.handleTransitionOrder)
			})
			r.Route("/barters", func(r chi.Router) {
				r.Get("/", s.handleListBarters)
				r.Post("/", s.handleCreateBarter)
				r.Patch("/{id}", s.handleTransitionBarter)
			})
		})
	})

	return r
}

// observe records request metrics under the matched route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.ObserveHTTP(r.Method, route, ww.Status(), time.Since(start))
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"route":      route,
			"status":     ww.Status(),
			"elapsed":    time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request served")
	})
}

func requireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(CallerHeader) == "" {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing "+CallerHeader+" header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireService admits only requests presenting the configured service
// token.
func (s *Server) requireService(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(ServiceTokenHeader)
		if s.opts.ServiceToken == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.ServiceToken)) != 1 {
			writeError(w, http.StatusForbidden, "unauthorized", "internal route requires a valid "+ServiceTokenHeader)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func caller(r *http.Request) string {
	return r.Header.Get(CallerHeader)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"type":    kind,
			"message": msg,
		},
	})
}

// writeServiceError maps the core's error kinds onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, models.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "unauthorized", err.Error())
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, models.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, models.ErrInsufficientFunds):
		writeError(w, http.StatusUnprocessableEntity, "insufficient_funds", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// requireSelf rejects reads of another account's private data.
func requireSelf(w http.ResponseWriter, r *http.Request, accountID string) bool {
	if caller(r) != accountID {
		writeError(w, http.StatusForbidden, "unauthorized", "accounts can only read their own ledger")
		return false
	}
	return true
}
