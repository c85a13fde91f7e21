// Package handler exposes payment accounts over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"selns/internal/platform/middleware"
	"selns/pkg/domain"
	dErrors "selns/pkg/domain-errors"
	"selns/pkg/platform/httputil"
)

// Service defines the funds operations the handler exposes.
type Service interface {
	Deposit(ctx context.Context, p domain.Principal, amount uint64) (uint64, error)
	Balance(ctx context.Context, p domain.Principal) (uint64, error)
}

// Handler handles funds endpoints.
type Handler struct {
	logger    *slog.Logger
	svc       Service
	validator middleware.TokenValidator
}

func New(svc Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{logger: logger, svc: svc, validator: validator}
}

// Register registers the funds routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Post("/funds/deposits", h.handleDeposit)
		r.Get("/funds/balance", h.handleBalance)
	})
}

type depositRequest struct {
	Amount uint64 `json:"amount"`
}

func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetPrincipal(r.Context())
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Amount == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "amount must be positive"))
		return
	}
	balance, err := h.svc.Deposit(r.Context(), caller, req.Amount)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "deposit failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "deposit failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]uint64{"balance": balance})
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetPrincipal(r.Context())
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	balance, err := h.svc.Balance(r.Context(), caller)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "balance lookup failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "balance lookup failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]uint64{"balance": balance})
}
