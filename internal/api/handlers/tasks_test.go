package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inboxinspire/internal/scheduler"
	"inboxinspire/internal/types"
)

type mockTaskRunner struct {
	payloads []scheduler.MaintenancePayload
	result   string
	err      error
}

func (m *mockTaskRunner) Run(_ context.Context, payload scheduler.MaintenancePayload) (string, error) {
	m.payloads = append(m.payloads, payload)
	return m.result, m.err
}

func newTaskRouter(runner *mockTaskRunner) http.Handler {
	r := chi.NewRouter()
	NewTaskHandler(runner, testLogger()).RegisterRoutes(r)
	return r
}

func TestTaskHandler_Run(t *testing.T) {
	runner := &mockTaskRunner{result: "task sweep complete: 4 items processed"}

	rec := doRequest(t, newTaskRouter(runner), http.MethodPost, "/admin/tasks/sweep", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, runner.payloads, 1)
	assert.Equal(t, scheduler.TaskSweep, runner.payloads[0].Task)
	assert.Nil(t, runner.payloads[0].ReferenceTime)

	var resp struct {
		Data TaskResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, TaskResponse{Task: scheduler.TaskSweep, Result: runner.result}, resp.Data)
}

func TestTaskHandler_ReferenceTime(t *testing.T) {
	runner := &mockTaskRunner{result: "ok"}

	rec := doRequest(t, newTaskRouter(runner), http.MethodPost, "/admin/tasks/maintenance",
		`{"reference_time":"2024-02-06T03:00:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, runner.payloads, 1)
	require.NotNil(t, runner.payloads[0].ReferenceTime)
	assert.True(t, runner.payloads[0].ReferenceTime.Equal(time.Date(2024, 2, 6, 3, 0, 0, 0, time.UTC)))
}

func TestTaskHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       any
		runErr     error
		wantStatus int
		wantCode   types.ErrorCode
	}{
		{
			name:       "unknown task",
			path:       "/admin/tasks/archive",
			runErr:     types.NewAppError(types.ErrCodeValidationInvalidTask, `unknown task type "archive"`, nil),
			wantStatus: http.StatusBadRequest,
			wantCode:   types.ErrCodeValidationInvalidTask,
		},
		{
			name:       "task failure",
			path:       "/admin/tasks/maintenance",
			runErr:     fmt.Errorf("task maintenance failed: %w", types.NewAppError(types.ErrCodeInternalDB, "failed to expire stale pending sends", nil)),
			wantStatus: http.StatusInternalServerError,
			wantCode:   types.ErrCodeInternalDB,
		},
		{
			name:       "bad body",
			path:       "/admin/tasks/sweep",
			body:       `{"reference_time":"yesterday"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   types.ErrCodeValidationInvalidBody,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockTaskRunner{err: tt.runErr}
			rec := doRequest(t, newTaskRouter(runner), http.MethodPost, tt.path, tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, string(tt.wantCode), decodeError(t, rec).Code)
		})
	}
}
