package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"inboxinspire/internal/core"
	"inboxinspire/internal/types"
)

// VersionReader loads the newest schedule snapshot of an owner.
type VersionReader interface {
	Latest(ctx context.Context, ownerID string) (*types.ScheduleVersion, types.Schedules, error)
}

// VersionResponse is the body of GET /owners/{ownerID}/versions/latest.
type VersionResponse struct {
	*types.ScheduleVersion
	Schedules types.Schedules `json:"schedules"`
}

// VersionHandler exposes the schedule audit trail.
type VersionHandler struct {
	store  VersionReader
	logger *slog.Logger
}

func NewVersionHandler(store VersionReader, l *slog.Logger) *VersionHandler {
	if l == nil {
		l = slog.Default()
	}
	return &VersionHandler{store: store, logger: l}
}

func (h *VersionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/owners/{ownerID}/versions/latest", h.Latest)
}

func (h *VersionHandler) Latest(w http.ResponseWriter, r *http.Request) {
	v, schedules, err := h.store.Latest(r.Context(), chi.URLParam(r, "ownerID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if schedules == nil {
		schedules = types.Schedules{}
	}
	core.OK(w, r, VersionResponse{ScheduleVersion: v, Schedules: schedules})
}
