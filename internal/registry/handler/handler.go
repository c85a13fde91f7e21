// Package handler exposes the registry node tree over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"selns/internal/platform/middleware"
	"selns/internal/registry"
	"selns/pkg/domain"
	dErrors "selns/pkg/domain-errors"
	"selns/pkg/namehash"
	"selns/pkg/platform/httputil"
)

// Service defines the registry operations the handler exposes.
type Service interface {
	SetSubnodeOwner(ctx context.Context, caller domain.Principal, parent, label namehash.Hash, owner domain.Principal) (namehash.Hash, error)
	SetOwner(ctx context.Context, caller domain.Principal, node namehash.Hash, owner domain.Principal) error
	SetResolver(ctx context.Context, caller domain.Principal, node namehash.Hash, resolver domain.Principal) error
	SetTTL(ctx context.Context, caller domain.Principal, node namehash.Hash, ttl uint64) error
	Lookup(ctx context.Context, node namehash.Hash) (registry.NodeRecord, error)
}

// Handler handles registry endpoints.
type Handler struct {
	logger    *slog.Logger
	svc       Service
	validator middleware.TokenValidator
}

func New(svc Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{logger: logger, svc: svc, validator: validator}
}

// Register registers the registry routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/registry/nodes/{node}", h.handleLookup)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Post("/registry/nodes/{node}/subnodes", h.handleSetSubnodeOwner)
		r.Put("/registry/nodes/{node}/owner", h.handleSetOwner)
		r.Put("/registry/nodes/{node}/resolver", h.handleSetResolver)
		r.Put("/registry/nodes/{node}/ttl", h.handleSetTTL)
	})
}

type subnodeRequest struct {
	Label string `json:"label"`
	Owner string `json:"owner"`
}

type ownerRequest struct {
	Owner string `json:"owner"`
}

type resolverRequest struct {
	Resolver string `json:"resolver"`
}

type ttlRequest struct {
	TTL uint64 `json:"ttl"`
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	node, err := namehash.ParseHex(chi.URLParam(r, "node"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "node must be a 32-byte hex value"))
		return
	}
	rec, err := h.svc.Lookup(r.Context(), node)
	if err != nil {
		h.writeError(w, r, "node lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"node":     rec.Node.Hex(),
		"exists":   rec.Exists,
		"owner":    rec.Owner,
		"resolver": rec.Resolver,
		"ttl":      rec.TTL,
	})
}

func (h *Handler) handleSetSubnodeOwner(w http.ResponseWriter, r *http.Request) {
	caller, node, ok := h.callerAndNode(w, r)
	if !ok {
		return
	}
	var req subnodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	owner, err := domain.ParsePrincipal(req.Owner)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Label == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "label is required"))
		return
	}
	child, err := h.svc.SetSubnodeOwner(r.Context(), caller, node, namehash.LabelHash(req.Label), owner)
	if err != nil {
		h.writeError(w, r, "subnode assignment failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"node": child.Hex()})
}

func (h *Handler) handleSetOwner(w http.ResponseWriter, r *http.Request) {
	caller, node, ok := h.callerAndNode(w, r)
	if !ok {
		return
	}
	var req ownerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	owner, err := domain.ParsePrincipal(req.Owner)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.svc.SetOwner(r.Context(), caller, node, owner); err != nil {
		h.writeError(w, r, "owner change failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetResolver(w http.ResponseWriter, r *http.Request) {
	caller, node, ok := h.callerAndNode(w, r)
	if !ok {
		return
	}
	var req resolverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	resolver, err := domain.ParsePrincipal(req.Resolver)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.svc.SetResolver(r.Context(), caller, node, resolver); err != nil {
		h.writeError(w, r, "resolver change failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetTTL(w http.ResponseWriter, r *http.Request) {
	caller, node, ok := h.callerAndNode(w, r)
	if !ok {
		return
	}
	var req ttlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.svc.SetTTL(r.Context(), caller, node, req.TTL); err != nil {
		h.writeError(w, r, "ttl change failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) callerAndNode(w http.ResponseWriter, r *http.Request) (domain.Principal, namehash.Hash, bool) {
	caller := middleware.GetPrincipal(r.Context())
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return domain.Zero, namehash.Hash{}, false
	}
	node, err := namehash.ParseHex(chi.URLParam(r, "node"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "node must be a 32-byte hex value"))
		return domain.Zero, namehash.Hash{}, false
	}
	return caller, node, true
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
