package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"inboxinspire/internal/core"
	"inboxinspire/internal/scheduler"
)

// TaskRunner runs a periodic task on demand.
type TaskRunner interface {
	Run(ctx context.Context, payload scheduler.MaintenancePayload) (string, error)
}

// TaskRequest is the optional body of POST /admin/tasks/{task}.
type TaskRequest struct {
	ReferenceTime *time.Time `json:"reference_time"`
}

// TaskResponse echoes the runner's summary.
type TaskResponse struct {
	Task   scheduler.TaskType `json:"task"`
	Result string             `json:"result"`
}

// TaskHandler lets operators trigger the sweep or maintenance task outside
// the cron schedule. Runs share the cron's hourly lock, so a manual run in
// an hour that already ran reports "skipped".
type TaskHandler struct {
	runner TaskRunner
	logger *slog.Logger
}

func NewTaskHandler(runner TaskRunner, l *slog.Logger) *TaskHandler {
	if l == nil {
		l = slog.Default()
	}
	return &TaskHandler{runner: runner, logger: l}
}

func (h *TaskHandler) RegisterRoutes(r chi.Router) {
	r.Post("/admin/tasks/{task}", h.Run)
}

func (h *TaskHandler) Run(w http.ResponseWriter, r *http.Request) {
	payload := scheduler.MaintenancePayload{Task: scheduler.TaskType(chi.URLParam(r, "task"))}

	if r.ContentLength != 0 {
		var req TaskRequest
		if err := core.DecodeJSON(w, r, &req); err != nil {
			core.Error(w, r, err)
			return
		}
		payload.ReferenceTime = req.ReferenceTime
	}

	result, err := h.runner.Run(r.Context(), payload)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "task triggered via api", "task", string(payload.Task), "result", result)
	core.OK(w, r, TaskResponse{Task: payload.Task, Result: result})
}
