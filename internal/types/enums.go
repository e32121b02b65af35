package types

// Frequency is the recurrence type of a Schedule.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyCustom  Frequency = "custom"
)

// Valid reports whether f is one of the known frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyCustom:
		return true
	}
	return false
}

// SendStatus is the lifecycle state of a PendingSend.
//
//	pending -> sent | failed | skipped
//
// Terminal states are never left.
type SendStatus string

const (
	SendStatusPending SendStatus = "pending"
	SendStatusSent    SendStatus = "sent"
	SendStatusFailed  SendStatus = "failed"
	SendStatusSkipped SendStatus = "skipped"
)

// IsTerminal reports whether s is a final state.
func (s SendStatus) IsTerminal() bool {
	return s == SendStatusSent || s == SendStatusFailed || s == SendStatusSkipped
}

// Valid reports whether s is a known status.
func (s SendStatus) Valid() bool {
	return s == SendStatusPending || s.IsTerminal()
}

// OwnerKind distinguishes the two schedule-owning entities.
type OwnerKind string

const (
	// OwnerKindUser owners materialize every occurrence inside the lookahead window.
	OwnerKindUser OwnerKind = "user"
	// OwnerKindGoal owners are event-driven: only the next occurrence exists at a time.
	OwnerKindGoal OwnerKind = "goal"
)

// EventDriven reports whether owners of this kind schedule one occurrence at a time.
func (k OwnerKind) EventDriven() bool {
	return k == OwnerKindGoal
}

// PersonalityType selects how the content generator builds its prompt.
type PersonalityType string

const (
	PersonalityFamous PersonalityType = "famous"
	PersonalityTone   PersonalityType = "tone"
	PersonalityCustom PersonalityType = "custom"
)

// Skip reasons recorded in PendingSend.ErrorMessage when a record is marked skipped.
const (
	SkipReasonOwnerInactive   = "owner_inactive"
	SkipReasonScheduleRemoved = "schedule_removed"
	SkipReasonSkipNext        = "skip_next"
	SkipReasonRateLimited     = "rate_limited"
	SkipReasonSuperseded      = "superseded"
	SkipReasonMissed          = "missed"
	SkipReasonExpired         = "expired"
)

// JobHistory statuses.
const (
	JobStatusRunning = "running"
	JobStatusSuccess = "success"
	JobStatusFailed  = "failed"
)
