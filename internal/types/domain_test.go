package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSendStatusTerminal(t *testing.T) {
	tests := []struct {
		status   SendStatus
		terminal bool
	}{
		{SendStatusPending, false},
		{SendStatusSent, true},
		{SendStatusFailed, true},
		{SendStatusSkipped, true},
	}
	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.terminal {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
	if SendStatus("queued").Valid() {
		t.Error("unknown status reported as valid")
	}
}

func TestOwnerEligible(t *testing.T) {
	deleted := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		owner Owner
		want  bool
	}{
		{"active", Owner{Active: true}, true},
		{"inactive", Owner{Active: false}, false},
		{"unsubscribed", Owner{Active: true, Unsubscribed: true}, false},
		{"deleted", Owner{Active: true, DeletedAt: &deleted}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.owner.Eligible(); got != tt.want {
				t.Errorf("Eligible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOwnerDailyLimit(t *testing.T) {
	if got := (&Owner{Kind: OwnerKindUser, SendLimitPerDay: 3}).DailyLimit(); got != 0 {
		t.Errorf("user DailyLimit() = %d, want 0", got)
	}
	if got := (&Owner{Kind: OwnerKindGoal}).DailyLimit(); got != DefaultSendLimitPerDay {
		t.Errorf("goal default DailyLimit() = %d, want %d", got, DefaultSendLimitPerDay)
	}
	if got := (&Owner{Kind: OwnerKindGoal, SendLimitPerDay: 2}).DailyLimit(); got != 2 {
		t.Errorf("goal DailyLimit() = %d, want 2", got)
	}
}

func TestOwnerScheduleLookupReturnsPointerIntoSlice(t *testing.T) {
	o := Owner{Schedules: Schedules{{ID: "a"}, {ID: "b"}}}

	s, ok := o.Schedule("b")
	if !ok {
		t.Fatal("schedule b not found")
	}
	s.Paused = true
	if !o.Schedules[1].Paused {
		t.Error("Schedule() should return a pointer into the owner's slice")
	}
	if _, ok := o.Schedule("missing"); ok {
		t.Error("found a schedule that does not exist")
	}
}

func TestPendingSendFireAt(t *testing.T) {
	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	p := PendingSend{ScheduledFor: at}
	if !p.FireAt().Equal(at) {
		t.Errorf("FireAt() = %v, want %v", p.FireAt(), at)
	}

	retry := at.Add(15 * time.Minute)
	p.NextAttemptAt = &retry
	if !p.FireAt().Equal(retry) {
		t.Errorf("FireAt() with retry = %v, want %v", p.FireAt(), retry)
	}
}

func TestSchedulesJSONBRoundTrip(t *testing.T) {
	in := Schedules{{ID: "s1", Frequency: FrequencyWeekly, Times: []string{"08:00"}, Weekdays: []int{0, 4}}}

	v, err := in.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}
	var out Schedules
	if err := out.Scan(v); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if len(out) != 1 || out[0].ID != "s1" || len(out[0].Weekdays) != 2 {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestSchedulesNilStoredAsEmptyArray(t *testing.T) {
	v, err := Schedules(nil).Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}
	if string(v.([]byte)) != "[]" {
		t.Errorf("nil Schedules stored as %s, want []", v)
	}

	var s Schedules
	if err := s.Scan(nil); err != nil || s != nil {
		t.Errorf("Scan(nil) = %v, %v", s, err)
	}
	if err := s.Scan(42); err == nil {
		t.Error("Scan(int) should fail")
	}
}

func TestPersonalitiesScanFromString(t *testing.T) {
	raw, _ := json.Marshal([]Personality{{Type: PersonalityFamous, Value: "Seneca"}})

	var ps Personalities
	if err := ps.Scan(string(raw)); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if len(ps) != 1 || ps[0].Type != PersonalityFamous || ps[0].Value != "Seneca" {
		t.Errorf("Scan() = %+v", ps)
	}

	v, err := Personalities(nil).Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}
	if string(v.([]byte)) != "[]" {
		t.Errorf("nil Personalities stored as %s, want []", v)
	}
}
