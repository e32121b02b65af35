package types

import (
	"time"
)

// DefaultTimeOfDay is used when a schedule carries no valid time entries.
const DefaultTimeOfDay = "09:00"

// DefaultSendLimitPerDay caps daily sends for goal owners that do not set one.
const DefaultSendLimitPerDay = 10

// Schedule is a declarative recurrence rule owned by a user or a goal.
// Times, Timezone, StartDate and EndDate are interpreted in the schedule's
// own timezone.
type Schedule struct {
	ID                 string    `json:"id" validate:"required,max=64"`
	Frequency          Frequency `json:"frequency" validate:"required,oneof=daily weekly monthly custom"`
	Times              []string  `json:"times,omitempty" validate:"max=24"`
	Timezone           string    `json:"timezone,omitempty"`
	Weekdays           []int     `json:"weekdays,omitempty" validate:"dive,min=0,max=6"`
	MonthDays          []int     `json:"month_days,omitempty" validate:"dive,min=1,max=31"`
	CustomIntervalDays int       `json:"custom_interval_days,omitempty" validate:"omitempty,min=1,max=365"`
	StartDate          string    `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate            string    `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Paused             bool      `json:"paused"`
	SkipNext           bool      `json:"skip_next"`
	DailyCap           int       `json:"daily_cap,omitempty" validate:"omitempty,min=1"`
}

// Personality describes the voice used for a generated message.
type Personality struct {
	Type  PersonalityType `json:"type" validate:"required,oneof=famous tone custom"`
	Value string          `json:"value" validate:"required,max=500"`
}

// SendState is the per-owner recurring state advanced after each confirmed send.
type SendState struct {
	RotationIndex int        `json:"rotation_index"`
	LastSentAt    *time.Time `json:"last_sent_at,omitempty"`
	StreakCount   int        `json:"streak_count"`
}

// Owner is the entity a set of schedules belongs to. Users schedule over a
// lookahead window; goals are event-driven.
type Owner struct {
	ID              string        `json:"id"`
	Kind            OwnerKind     `json:"kind"`
	UserID          string        `json:"user_id"`
	Email           string        `json:"email"`
	Title           string        `json:"title,omitempty"`
	GoalsText       string        `json:"goals_text"`
	Timezone        string        `json:"timezone"`
	Active          bool          `json:"active"`
	Unsubscribed    bool          `json:"unsubscribed"`
	DeletedAt       *time.Time    `json:"deleted_at,omitempty"`
	Personalities   Personalities `json:"personalities"`
	Schedules       Schedules     `json:"schedules"`
	SendLimitPerDay int           `json:"send_limit_per_day"`
	State           SendState     `json:"send_state"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Eligible reports whether the owner may receive messages at all.
func (o *Owner) Eligible() bool {
	return o.Active && !o.Unsubscribed && o.DeletedAt == nil
}

// Schedule returns the schedule with the given id.
func (o *Owner) Schedule(id string) (*Schedule, bool) {
	for i := range o.Schedules {
		if o.Schedules[i].ID == id {
			return &o.Schedules[i], true
		}
	}
	return nil, false
}

// DailyLimit returns the owner-level per-day cap, or 0 when the owner has none.
func (o *Owner) DailyLimit() int {
	if o.Kind != OwnerKindGoal {
		return 0
	}
	if o.SendLimitPerDay <= 0 {
		return DefaultSendLimitPerDay
	}
	return o.SendLimitPerDay
}

// PendingSend is the persisted lifecycle of one computed occurrence.
type PendingSend struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"owner_id"`
	OwnerKind     OwnerKind  `json:"owner_kind"`
	ScheduleID    string     `json:"schedule_id"`
	ScheduledFor  time.Time  `json:"scheduled_for"`
	Status        SendStatus `json:"status"`
	RetryCount    int        `json:"retry_count"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
}

// FireAt is the instant the record's timer should fire: the backoff instant
// while a retry is outstanding, the scheduled instant otherwise.
func (p *PendingSend) FireAt() time.Time {
	if p.NextAttemptAt != nil {
		return *p.NextAttemptAt
	}
	return p.ScheduledFor
}

// MessageHistory records one successfully delivered message.
type MessageHistory struct {
	ID                string      `json:"id"`
	OwnerID           string      `json:"owner_id"`
	ScheduleID        string      `json:"schedule_id"`
	PendingSendID     string      `json:"pending_send_id"`
	Subject           string      `json:"subject"`
	Body              string      `json:"body"`
	Personality       Personality `json:"personality"`
	UsedFallback      bool        `json:"used_fallback"`
	ProviderMessageID string      `json:"provider_message_id,omitempty"`
	SentAt            time.Time   `json:"sent_at"`
}

// ScheduleVersion is one entry of the append-only schedule audit log.
// Snapshot holds the zstd-compressed JSON encoding of the owner's schedules.
type ScheduleVersion struct {
	OwnerID   string    `json:"owner_id"`
	Version   int       `json:"version"`
	Reason    string    `json:"reason"`
	Snapshot  []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
