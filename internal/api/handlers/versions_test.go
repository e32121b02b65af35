package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inboxinspire/internal/types"
)

type mockVersionReader struct {
	version   *types.ScheduleVersion
	schedules types.Schedules
	err       error
	lastOwner string
}

func (m *mockVersionReader) Latest(_ context.Context, ownerID string) (*types.ScheduleVersion, types.Schedules, error) {
	m.lastOwner = ownerID
	return m.version, m.schedules, m.err
}

func newVersionRouter(store *mockVersionReader) http.Handler {
	r := chi.NewRouter()
	NewVersionHandler(store, testLogger()).RegisterRoutes(r)
	return r
}

func TestVersionHandler_Latest(t *testing.T) {
	store := &mockVersionReader{
		version: &types.ScheduleVersion{
			OwnerID:   "u1",
			Version:   4,
			Reason:    "pause",
			CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		schedules: types.Schedules{
			{ID: "s1", Frequency: types.FrequencyDaily, Times: []string{"09:00"}, Paused: true},
		},
	}

	rec := doRequest(t, newVersionRouter(store), http.MethodGet, "/owners/u1/versions/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "u1", store.lastOwner)

	var resp struct {
		Data struct {
			OwnerID   string          `json:"owner_id"`
			Version   int             `json:"version"`
			Reason    string          `json:"reason"`
			Schedules types.Schedules `json:"schedules"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 4, resp.Data.Version)
	assert.Equal(t, "pause", resp.Data.Reason)
	require.Len(t, resp.Data.Schedules, 1)
	assert.True(t, resp.Data.Schedules[0].Paused)
}

func TestVersionHandler_NotFound(t *testing.T) {
	store := &mockVersionReader{err: types.NewAppError(types.ErrCodeNotFoundSchedule, "no schedule versions for owner", nil)}

	rec := doRequest(t, newVersionRouter(store), http.MethodGet, "/owners/ghost/versions/latest", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(types.ErrCodeNotFoundSchedule), decodeError(t, rec).Code)
}
