// Package handler exposes the lease ledger over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"selns/internal/names"
	"selns/internal/platform/middleware"
	"selns/pkg/domain"
	dErrors "selns/pkg/domain-errors"
	"selns/pkg/namehash"
	"selns/pkg/platform/httputil"
)

// Service defines the lease operations the handler exposes.
type Service interface {
	Available(ctx context.Context, label namehash.Hash) (bool, error)
	NameExpires(ctx context.Context, label namehash.Hash) (time.Time, error)
	Holder(ctx context.Context, label namehash.Hash) (domain.Principal, error)
	Approve(ctx context.Context, caller domain.Principal, label namehash.Hash, delegate domain.Principal) error
	Transfer(ctx context.Context, caller domain.Principal, label namehash.Hash, from, to domain.Principal) error
}

// Handler handles lease endpoints.
type Handler struct {
	logger    *slog.Logger
	svc       Service
	validator middleware.TokenValidator
}

func New(svc Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{logger: logger, svc: svc, validator: validator}
}

// Register registers the lease routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/leases/{name}", h.handleLookup)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Put("/leases/{name}/approval", h.handleApprove)
		r.Post("/leases/{name}/transfer", h.handleTransfer)
	})
}

type approveRequest struct {
	// Delegate may be empty to revoke the current approval.
	Delegate string `json:"delegate"`
}

type transferRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := names.Check(name); err != nil {
		httputil.WriteError(w, err)
		return
	}
	label := namehash.LabelHash(name)

	holder, err := h.svc.Holder(r.Context(), label)
	if err != nil {
		h.writeError(w, r, "lease lookup failed", err)
		return
	}
	available, err := h.svc.Available(r.Context(), label)
	if err != nil {
		h.writeError(w, r, "lease lookup failed", err)
		return
	}

	resp := map[string]any{
		"name":      name,
		"label":     label.Hex(),
		"available": available,
	}
	if !holder.IsZero() {
		expires, err := h.svc.NameExpires(r.Context(), label)
		if err != nil {
			h.writeError(w, r, "lease lookup failed", err)
			return
		}
		resp["holder"] = holder
		resp["expires_at"] = expires
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	caller, label, ok := h.callerAndLabel(w, r)
	if !ok {
		return
	}
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	delegate := domain.Zero
	if req.Delegate != "" {
		var err error
		delegate, err = domain.ParsePrincipal(req.Delegate)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	if err := h.svc.Approve(r.Context(), caller, label, delegate); err != nil {
		h.writeError(w, r, "approval failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	caller, label, ok := h.callerAndLabel(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	from, err := domain.ParsePrincipal(req.From)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := domain.ParsePrincipal(req.To)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.svc.Transfer(r.Context(), caller, label, from, to); err != nil {
		h.writeError(w, r, "transfer failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) callerAndLabel(w http.ResponseWriter, r *http.Request) (domain.Principal, namehash.Hash, bool) {
	caller := middleware.GetPrincipal(r.Context())
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return domain.Zero, namehash.Hash{}, false
	}
	name := chi.URLParam(r, "name")
	if err := names.Check(name); err != nil {
		httputil.WriteError(w, err)
		return domain.Zero, namehash.Hash{}, false
	}
	return caller, namehash.LabelHash(name), true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(r.Context(), msg,
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, msg))
		return
	}
	h.logger.WarnContext(r.Context(), msg,
		"request_id", middleware.GetRequestID(r.Context()),
		"error", err.Error(),
	)
	httputil.WriteError(w, err)
}
