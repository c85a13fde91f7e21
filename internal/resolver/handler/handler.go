// Package handler exposes resolver records and reverse bindings over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"selns/internal/names"
	"selns/internal/platform/middleware"
	"selns/internal/registrar"
	"selns/internal/state"
	"selns/pkg/domain"
	dErrors "selns/pkg/domain-errors"
	"selns/pkg/namehash"
	"selns/pkg/platform/httputil"
)

// RecordService defines the resolver record operations the handler exposes.
type RecordService interface {
	SetRecord(ctx context.Context, caller domain.Principal, node namehash.Hash, rec state.Record) error
	Record(ctx context.Context, node namehash.Hash, kind state.RecordKind, key string) (string, error)
	Records(ctx context.Context, node namehash.Hash) ([]state.Record, error)
}

// ReverseService defines the reverse binding operations the handler exposes.
type ReverseService interface {
	Set(ctx context.Context, caller domain.Principal, name string) error
	Clear(ctx context.Context, caller domain.Principal) error
	Name(ctx context.Context, p domain.Principal) (string, error)
}

// Handler handles resolution endpoints.
type Handler struct {
	logger    *slog.Logger
	records   RecordService
	reverse   ReverseService
	validator middleware.TokenValidator
}

func New(records RecordService, reverse ReverseService, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{logger: logger, records: records, reverse: reverse, validator: validator}
}

// Register registers the resolution routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/resolve/{name}/records", h.handleListRecords)
	r.Get("/resolve/{name}/records/{kind}", h.handleGetRecord)
	r.Get("/reverse/{principal}", h.handleReverseLookup)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Put("/resolve/{name}/records", h.handleSetRecord)
		r.Put("/reverse", h.handleSetReverse)
		r.Delete("/reverse", h.handleClearReverse)
	})
}

type setReverseRequest struct {
	Name string `json:"name"`
}

func nodeForName(name string) (namehash.Hash, error) {
	if err := names.Check(name); err != nil {
		return namehash.Hash{}, err
	}
	return namehash.Combine(registrar.BaseNode(), namehash.LabelHash(name)), nil
}

func (h *Handler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	node, err := nodeForName(chi.URLParam(r, "name"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	records, err := h.records.Records(r.Context(), node)
	if err != nil {
		h.writeError(w, r, "record listing failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	node, err := nodeForName(chi.URLParam(r, "name"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	kind := state.RecordKind(chi.URLParam(r, "kind"))
	key := r.URL.Query().Get("key")
	value, err := h.records.Record(r.Context(), node, kind, key)
	if err != nil {
		h.writeError(w, r, "record lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"value": value})
}

func (h *Handler) handleSetRecord(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetPrincipal(r.Context())
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	node, err := nodeForName(chi.URLParam(r, "name"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var rec state.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.records.SetRecord(r.Context(), caller, node, rec); err != nil {
		h.writeError(w, r, "record write failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReverseLookup(w http.ResponseWriter, r *http.Request) {
	p, err := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	name, err := h.reverse.Name(r.Context(), p)
	if err != nil {
		h.writeError(w, r, "reverse lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"name": name})
}

func (h *Handler) handleSetReverse(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetPrincipal(r.Context())
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	var req setReverseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.reverse.Set(r.Context(), caller, req.Name); err != nil {
		h.writeError(w, r, "reverse binding failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClearReverse(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetPrincipal(r.Context())
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	if err := h.reverse.Clear(r.Context(), caller); err != nil {
		h.writeError(w, r, "reverse clear failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
