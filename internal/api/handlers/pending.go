package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"inboxinspire/internal/core"
	"inboxinspire/internal/types"
)

const (
	defaultPendingListLimit = 100
	maxPendingListLimit     = 500
)

// PendingLister lists pending-send records by status.
type PendingLister interface {
	FindByStatus(ctx context.Context, status types.SendStatus, limit int) ([]types.PendingSend, error)
}

// PendingHandler serves GET /pending.
type PendingHandler struct {
	store  PendingLister
	logger *slog.Logger
}

func NewPendingHandler(store PendingLister, l *slog.Logger) *PendingHandler {
	if l == nil {
		l = slog.Default()
	}
	return &PendingHandler{store: store, logger: l}
}

func (h *PendingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/pending", h.List)
}

// List returns records in ?status= (default pending), newest scheduled
// first. ?limit= is clamped to 500; meta.truncated marks a full page.
func (h *PendingHandler) List(w http.ResponseWriter, r *http.Request) {
	status := types.SendStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = types.SendStatusPending
	}
	if !status.Valid() {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidStatus,
			"status must be one of: pending, sent, failed, skipped",
			nil,
		))
		return
	}

	limit := defaultPendingListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationMissingField,
				"limit must be a positive integer",
				err,
			).WithDetails(map[string]any{"field": "limit"}))
			return
		}
		limit = min(n, maxPendingListLimit)
	}

	records, err := h.store.FindByStatus(r.Context(), status, limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.List(w, r, records, core.ListMeta{Limit: limit, Status: string(status)})
}
