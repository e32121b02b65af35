package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"inboxinspire/internal/types"
)

type countKey struct {
	scheduleID string
	since      time.Time
}

type mockCounter struct {
	counts map[string]int
	calls  []countKey
	err    error
}

func (m *mockCounter) CountSentSince(_ context.Context, _ string, scheduleID string, since time.Time) (int, error) {
	m.calls = append(m.calls, countKey{scheduleID: scheduleID, since: since})
	if m.err != nil {
		return 0, m.err
	}
	return m.counts[scheduleID], nil
}

func TestRateLimiter_Check(t *testing.T) {
	now := time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		globalCap int
		owner     types.Owner
		sched     types.Schedule
		counts    map[string]int
		allowed   bool
		limit     int
	}{
		{
			name:      "under global cap",
			globalCap: 10,
			owner:     types.Owner{ID: "u1", Kind: types.OwnerKindUser},
			sched:     types.Schedule{ID: "s1"},
			counts:    map[string]int{"": 9},
			allowed:   true,
		},
		{
			name:      "global cap reached",
			globalCap: 10,
			owner:     types.Owner{ID: "u1", Kind: types.OwnerKindUser},
			sched:     types.Schedule{ID: "s1"},
			counts:    map[string]int{"": 10},
			allowed:   false,
			limit:     10,
		},
		{
			name:      "goal limit tighter than global",
			globalCap: 10,
			owner:     types.Owner{ID: "g1", Kind: types.OwnerKindGoal, SendLimitPerDay: 2},
			sched:     types.Schedule{ID: "s1"},
			counts:    map[string]int{"": 2},
			allowed:   false,
			limit:     2,
		},
		{
			name:      "goal default limit applies without global cap",
			globalCap: 0,
			owner:     types.Owner{ID: "g1", Kind: types.OwnerKindGoal},
			sched:     types.Schedule{ID: "s1"},
			counts:    map[string]int{"": types.DefaultSendLimitPerDay},
			allowed:   false,
			limit:     types.DefaultSendLimitPerDay,
		},
		{
			name:      "schedule cap reached",
			globalCap: 10,
			owner:     types.Owner{ID: "u1", Kind: types.OwnerKindUser},
			sched:     types.Schedule{ID: "s1", DailyCap: 1},
			counts:    map[string]int{"": 1, "s1": 1},
			allowed:   false,
			limit:     1,
		},
		{
			name:      "no caps configured",
			globalCap: 0,
			owner:     types.Owner{ID: "u1", Kind: types.OwnerKindUser},
			sched:     types.Schedule{ID: "s1"},
			counts:    map[string]int{"": 1000},
			allowed:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := &mockCounter{counts: tt.counts}
			limiter := NewRateLimiter(counter, tt.globalCap, &mockLogger{})

			d, err := limiter.Check(context.Background(), &tt.owner, &tt.sched, now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Allowed != tt.allowed {
				t.Errorf("Allowed = %v, want %v", d.Allowed, tt.allowed)
			}
			if !tt.allowed {
				if d.Reason != types.SkipReasonRateLimited {
					t.Errorf("Reason = %q", d.Reason)
				}
				if d.Limit != tt.limit {
					t.Errorf("Limit = %d, want %d", d.Limit, tt.limit)
				}
			}
		})
	}
}

func TestRateLimiter_CountsFromLocalMidnight(t *testing.T) {
	// 2024-01-02T03:00Z is 22:00 on Jan 1 in New York (UTC-5).
	now := time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)
	counter := &mockCounter{}
	limiter := NewRateLimiter(counter, 10, &mockLogger{})

	owner := types.Owner{ID: "u1", Kind: types.OwnerKindUser, Timezone: "America/New_York"}
	sched := types.Schedule{ID: "s1", DailyCap: 3, Timezone: "Asia/Tokyo"}

	if _, err := limiter.Check(context.Background(), &owner, &sched, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(counter.calls) != 2 {
		t.Fatalf("expected 2 count queries, got %d", len(counter.calls))
	}

	wantOwner := time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC)
	if !counter.calls[0].since.Equal(wantOwner) {
		t.Errorf("owner window starts %v, want %v", counter.calls[0].since, wantOwner)
	}
	// 12:00 on Jan 2 in Tokyo; midnight there is 15:00Z on Jan 1.
	wantSched := time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)
	if !counter.calls[1].since.Equal(wantSched) {
		t.Errorf("schedule window starts %v, want %v", counter.calls[1].since, wantSched)
	}
}

func TestRateLimiter_CounterError(t *testing.T) {
	limiter := NewRateLimiter(&mockCounter{err: errors.New("db down")}, 10, &mockLogger{})

	_, err := limiter.Check(context.Background(), &types.Owner{ID: "u1"}, &types.Schedule{ID: "s1"}, time.Now())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestLocalMidnight(t *testing.T) {
	loc, _ := time.LoadLocation("Europe/Berlin")
	got := LocalMidnight(time.Date(2024, 7, 1, 23, 30, 0, 0, time.UTC), loc)
	// 01:30 on Jul 2 in Berlin (UTC+2); midnight is 22:00Z on Jul 1.
	want := time.Date(2024, 7, 1, 22, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("LocalMidnight = %v, want %v", got, want)
	}
}
