// Package handler exposes the registration protocol over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"selns/internal/platform/metrics"
	"selns/internal/platform/middleware"
	"selns/internal/pricing"
	"selns/internal/registration"
	"selns/pkg/domain"
	dErrors "selns/pkg/domain-errors"
	"selns/pkg/namehash"
	"selns/pkg/platform/httputil"
	adminmw "selns/pkg/platform/middleware/admin"
)

// Service defines the registration operations the handler exposes.
type Service interface {
	Valid(name string) bool
	Available(ctx context.Context, name string) (bool, error)
	RentPrice(name string, duration time.Duration) pricing.Quote
	MakeCommitment(p registration.Params) namehash.Hash
	Commit(ctx context.Context, hash namehash.Hash) error
	Register(ctx context.Context, caller domain.Principal, p registration.Params, payment uint64) (registration.Result, error)
	Renew(ctx context.Context, caller domain.Principal, name string, duration time.Duration, payment uint64) (registration.Result, error)

	BatchAvailable(ctx context.Context, names []string) ([]bool, error)
	BatchRentPrice(names []string, duration time.Duration) []pricing.Quote
	BatchCommit(ctx context.Context, hashes []namehash.Hash) error
	BatchRenew(ctx context.Context, caller domain.Principal, items []registration.RenewalItem, payment uint64) (registration.BatchRenewResult, error)

	ReserveName(ctx context.Context, caller domain.Principal, name string) error
	UnreserveName(ctx context.Context, caller domain.Principal, name string) error
	RegisterReserved(ctx context.Context, caller domain.Principal, name string, owner domain.Principal, duration time.Duration) (registration.Result, error)
	SetPricing(ctx context.Context, caller domain.Principal, policy pricing.Policy) error
	Withdraw(ctx context.Context, caller domain.Principal, to domain.Principal) (uint64, error)
}

// Handler handles registration endpoints.
type Handler struct {
	logger     *slog.Logger
	svc        Service
	metrics    *metrics.Metrics
	validator  middleware.TokenValidator
	adminToken string
	admin      domain.Principal
}

// New creates a registration Handler.
func New(svc Service, logger *slog.Logger, m *metrics.Metrics, validator middleware.TokenValidator, adminToken string, admin domain.Principal) *Handler {
	return &Handler{
		logger:     logger,
		svc:        svc,
		metrics:    m,
		validator:  validator,
		adminToken: adminToken,
		admin:      admin,
	}
}

// Register registers the registration routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/names/{name}/available", h.handleAvailable)
	r.Get("/names/{name}/price", h.handlePrice)
	r.Post("/names/available", h.handleBatchAvailable)
	r.Post("/names/price", h.handleBatchPrice)
	r.Post("/commitments/derive", h.handleDeriveCommitment)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Post("/commitments", h.handleCommit)
		r.Post("/commitments/batch", h.handleBatchCommit)
		r.Post("/registrations", h.handleRegister)
		r.Post("/renewals", h.handleRenew)
		r.Post("/renewals/batch", h.handleBatchRenew)
	})

	r.Group(func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(h.adminToken, h.logger))
		r.Post("/admin/reservations", h.handleReserve)
		r.Delete("/admin/reservations/{name}", h.handleUnreserve)
		r.Post("/admin/registrations", h.handleRegisterReserved)
		r.Put("/admin/pricing", h.handleSetPricing)
		r.Post("/admin/withdraw", h.handleWithdraw)
	})
}

func (h *Handler) handleAvailable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	available, err := h.svc.Available(r.Context(), name)
	if err != nil {
		h.writeError(w, r, "availability check failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"name":      name,
		"valid":     h.svc.Valid(name),
		"available": available,
	})
}

func (h *Handler) handlePrice(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	duration, err := parseDurationSecs(r.URL.Query().Get("duration_seconds"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	quote := h.svc.RentPrice(name, duration)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"name":    name,
		"base":    quote.Base,
		"premium": quote.Premium,
		"total":   quote.Total(),
	})
}

func (h *Handler) handleBatchAvailable(w http.ResponseWriter, r *http.Request) {
	var req batchNamesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	available, err := h.svc.BatchAvailable(r.Context(), req.Names)
	if err != nil {
		h.writeError(w, r, "batch availability check failed", err)
		return
	}
	out := make([]map[string]any, len(req.Names))
	for i, name := range req.Names {
		out[i] = map[string]any{"name": name, "available": available[i]}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"results": out})
}

func (h *Handler) handleBatchPrice(w http.ResponseWriter, r *http.Request) {
	var req batchNamesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.DurationSecs <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "duration_seconds must be positive"))
		return
	}
	quotes := h.svc.BatchRentPrice(req.Names, time.Duration(req.DurationSecs)*time.Second)
	out := make([]map[string]any, len(req.Names))
	for i, name := range req.Names {
		out[i] = map[string]any{
			"name":    name,
			"base":    quotes[i].Base,
			"premium": quotes[i].Premium,
			"total":   quotes[i].Total(),
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"results": out})
}

func (h *Handler) handleDeriveCommitment(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	params, err := req.toParams()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	hash := h.svc.MakeCommitment(params)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"hash": hash.Hex()})
}

func (h *Handler) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	hash, err := namehash.ParseHex(req.Hash)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "hash must be a 32-byte hex value"))
		return
	}
	if err := h.svc.Commit(r.Context(), hash); err != nil {
		h.writeError(w, r, "commit failed", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleBatchCommit(w http.ResponseWriter, r *http.Request) {
	var req batchCommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	hashes := make([]namehash.Hash, 0, len(req.Hashes))
	for _, hex := range req.Hashes {
		hash, err := namehash.ParseHex(hex)
		if err != nil {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest, "hash %q is not a 32-byte hex value", hex))
			return
		}
		hashes = append(hashes, hash)
	}
	if err := h.svc.BatchCommit(r.Context(), hashes); err != nil {
		h.writeError(w, r, "batch commit failed", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	params, err := req.toParams()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.svc.Register(r.Context(), caller, params, req.Payment)
	if err != nil {
		h.writeError(w, r, "registration failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleRenew(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req renewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	result, err := h.svc.Renew(r.Context(), caller, req.Name, time.Duration(req.DurationSecs)*time.Second, req.Payment)
	if err != nil {
		h.writeError(w, r, "renewal failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleBatchRenew(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req batchRenewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	items := make([]registration.RenewalItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, registration.RenewalItem{
			Name:     it.Name,
			Duration: time.Duration(it.DurationSecs) * time.Second,
		})
	}
	result, err := h.svc.BatchRenew(r.Context(), caller, items, req.Payment)
	if err != nil {
		h.writeError(w, r, "batch renewal failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleReserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.svc.ReserveName(r.Context(), h.admin, req.Name); err != nil {
		h.writeError(w, r, "reserve failed", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleUnreserve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.svc.UnreserveName(r.Context(), h.admin, name); err != nil {
		h.writeError(w, r, "unreserve failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRegisterReserved(w http.ResponseWriter, r *http.Request) {
	var req registerReservedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	owner, err := domain.ParsePrincipal(req.Owner)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.svc.RegisterReserved(r.Context(), h.admin, req.Name, owner, time.Duration(req.DurationSecs)*time.Second)
	if err != nil {
		h.writeError(w, r, "reserved registration failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleSetPricing(w http.ResponseWriter, r *http.Request) {
	var req setPricingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	policy, err := policyFromRequest(req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.svc.SetPricing(r.Context(), h.admin, policy); err != nil {
		h.writeError(w, r, "pricing update failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	to, err := domain.ParsePrincipal(req.To)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	swept, err := h.svc.Withdraw(r.Context(), h.admin, to)
	if err != nil {
		h.writeError(w, r, "withdraw failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]uint64{"amount": swept})
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	caller := middleware.GetPrincipal(r.Context())
	if caller.IsZero() {
		h.logger.ErrorContext(r.Context(), "principal missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return domain.Zero, false
	}
	return caller, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal {
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

func parseDurationSecs(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, dErrors.New(dErrors.CodeBadRequest, "duration_seconds query parameter is required")
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || secs <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "duration_seconds must be a positive integer")
	}
	return time.Duration(secs) * time.Second, nil
}

func policyFromRequest(req setPricingRequest) (pricing.Policy, error) {
	rates := pricing.DefaultRates
	if v, ok := req.AnnualRates["3"]; ok {
		rates.ThreeChar = v
	}
	if v, ok := req.AnnualRates["4"]; ok {
		rates.FourChar = v
	}
	if v, ok := req.AnnualRates["5+"]; ok {
		rates.Longer = v
	}
	if req.MultiYearDiscountBps > 10_000 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "multi_year_discount_bps must not exceed 10000")
	}
	return &pricing.TierPolicy{Rates: rates, MultiYearDiscountBps: req.MultiYearDiscountBps}, nil
}
