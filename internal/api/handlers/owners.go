// Package handlers contains the HTTP handlers for the InboxInspire admin API.
//
// owners.go covers schedule mutations and owner lifecycle:
//   - PUT/DELETE a schedule, pause, resume and skip-next
//   - deactivate and delete an owner
//   - force a reschedule and list live jobs
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"inboxinspire/internal/core"
	"inboxinspire/internal/scheduler"
	"inboxinspire/internal/types"
)

// OwnerScheduler is the subset of scheduler.Rescheduler the handler drives.
type OwnerScheduler interface {
	ApplyScheduleChange(ctx context.Context, ownerID string, s types.Schedule) (scheduler.RescheduleResult, error)
	RemoveSchedule(ctx context.Context, ownerID, scheduleID string) (scheduler.RescheduleResult, error)
	SetPaused(ctx context.Context, ownerID, scheduleID string, paused bool) (scheduler.RescheduleResult, error)
	SetSkipNext(ctx context.Context, ownerID, scheduleID string, skip bool) (scheduler.RescheduleResult, error)
	Reschedule(ctx context.Context, ownerID string) (scheduler.RescheduleResult, error)
	Deactivate(ctx context.Context, ownerID string) (int64, error)
	Delete(ctx context.Context, ownerID string) (int64, error)
}

// JobLister reports the live timers of an owner.
type JobLister interface {
	ListJobsFor(ownerID string) []scheduler.JobInfo
}

// ScheduleRequest is the body of PUT /owners/{ownerID}/schedules/{scheduleID}.
// The schedule id is taken from the path.
type ScheduleRequest struct {
	Frequency          types.Frequency `json:"frequency" validate:"required,oneof=daily weekly monthly custom"`
	Times              []string        `json:"times" validate:"max=24,dive,hh_mm"`
	Timezone           string          `json:"timezone" validate:"is_timezone"`
	Weekdays           []int           `json:"weekdays" validate:"dive,min=0,max=6"`
	MonthDays          []int           `json:"month_days" validate:"dive,min=1,max=31"`
	CustomIntervalDays int             `json:"custom_interval_days" validate:"omitempty,min=1,max=365"`
	StartDate          string          `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate            string          `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Paused             bool            `json:"paused"`
	DailyCap           int             `json:"daily_cap" validate:"omitempty,min=1"`
}

func (req ScheduleRequest) toSchedule(id string) types.Schedule {
	return types.Schedule{
		ID:                 id,
		Frequency:          req.Frequency,
		Times:              req.Times,
		Timezone:           req.Timezone,
		Weekdays:           req.Weekdays,
		MonthDays:          req.MonthDays,
		CustomIntervalDays: req.CustomIntervalDays,
		StartDate:          req.StartDate,
		EndDate:            req.EndDate,
		Paused:             req.Paused,
		DailyCap:           req.DailyCap,
	}
}

// RemovedResponse reports how many pending records a teardown deleted.
type RemovedResponse struct {
	OwnerID        string `json:"owner_id"`
	PendingRemoved int64  `json:"pending_removed"`
}

// OwnerHandler serves the /owners routes.
type OwnerHandler struct {
	scheduler OwnerScheduler
	jobs      JobLister
	validator *core.Validator
	logger    *slog.Logger
}

// NewOwnerHandler creates an OwnerHandler.
func NewOwnerHandler(s OwnerScheduler, jobs JobLister, v *core.Validator, l *slog.Logger) *OwnerHandler {
	if l == nil {
		l = slog.Default()
	}
	return &OwnerHandler{scheduler: s, jobs: jobs, validator: v, logger: l}
}

// RegisterRoutes mounts the owner routes on r.
func (h *OwnerHandler) RegisterRoutes(r chi.Router) {
	r.Route("/owners/{ownerID}", func(r chi.Router) {
		r.Delete("/", h.Delete)
		r.Post("/deactivate", h.Deactivate)
		r.Post("/reschedule", h.Reschedule)
		r.Get("/jobs", h.ListJobs)

		r.Route("/schedules/{scheduleID}", func(r chi.Router) {
			r.Put("/", h.PutSchedule)
			r.Delete("/", h.DeleteSchedule)
			r.Post("/pause", h.Pause)
			r.Post("/resume", h.Resume)
			r.Post("/skip-next", h.SkipNext)
		})
	})
}

// PutSchedule creates or replaces one schedule and reschedules the owner.
func (h *OwnerHandler) PutSchedule(w http.ResponseWriter, r *http.Request) {
	ownerID, scheduleID := chi.URLParam(r, "ownerID"), chi.URLParam(r, "scheduleID")

	var req ScheduleRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.scheduler.ApplyScheduleChange(r.Context(), ownerID, req.toSchedule(scheduleID))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "schedule upserted",
		"owner_id", ownerID,
		"schedule_id", scheduleID,
		"registered", result.Registered,
	)
	core.OK(w, r, result)
}

// DeleteSchedule removes one schedule.
func (h *OwnerHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	ownerID, scheduleID := chi.URLParam(r, "ownerID"), chi.URLParam(r, "scheduleID")

	result, err := h.scheduler.RemoveSchedule(r.Context(), ownerID, scheduleID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.OK(w, r, result)
}

// Pause stops dispatch for a schedule without deleting its pending records.
func (h *OwnerHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, true)
}

// Resume re-enables a paused schedule.
func (h *OwnerHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, false)
}

func (h *OwnerHandler) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	ownerID, scheduleID := chi.URLParam(r, "ownerID"), chi.URLParam(r, "scheduleID")

	result, err := h.scheduler.SetPaused(r.Context(), ownerID, scheduleID, paused)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.OK(w, r, result)
}

// SkipNext sets the one-shot skip flag on a schedule.
func (h *OwnerHandler) SkipNext(w http.ResponseWriter, r *http.Request) {
	ownerID, scheduleID := chi.URLParam(r, "ownerID"), chi.URLParam(r, "scheduleID")

	result, err := h.scheduler.SetSkipNext(r.Context(), ownerID, scheduleID, true)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.OK(w, r, result)
}

// Deactivate marks the owner inactive, cancels its timers and deletes its
// pending records.
func (h *OwnerHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")

	n, err := h.scheduler.Deactivate(r.Context(), ownerID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.OK(w, r, RemovedResponse{OwnerID: ownerID, PendingRemoved: n})
}

// Delete soft-deletes the owner with the same teardown as Deactivate.
func (h *OwnerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")

	n, err := h.scheduler.Delete(r.Context(), ownerID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.OK(w, r, RemovedResponse{OwnerID: ownerID, PendingRemoved: n})
}

// Reschedule forces a full reschedule of the owner.
func (h *OwnerHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")

	result, err := h.scheduler.Reschedule(r.Context(), ownerID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.OK(w, r, result)
}

// ListJobs returns the owner's live timers ordered by fire time.
func (h *OwnerHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	core.List(w, r, h.jobs.ListJobsFor(chi.URLParam(r, "ownerID")), core.ListMeta{})
}
