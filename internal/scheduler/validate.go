package scheduler

import (
	"fmt"
	"time"

	"inboxinspire/internal/types"
)

// ValidateSchedule applies the strict checks used when a schedule is
// submitted. The calculator itself tolerates everything rejected here; this
// only stops obviously broken input from being persisted.
func ValidateSchedule(s types.Schedule) error {
	if s.ID == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "schedule id is required", nil)
	}
	if !s.Frequency.Valid() {
		return types.NewAppError(types.ErrCodeValidationInvalidFrequency,
			fmt.Sprintf("unknown frequency %q", s.Frequency), nil)
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return types.NewAppError(types.ErrCodeValidationInvalidTimezone,
				fmt.Sprintf("unknown timezone %q", s.Timezone), err)
		}
	}
	for _, t := range s.Times {
		if _, _, err := ParseTimeOfDay(t); err != nil {
			return types.NewAppError(types.ErrCodeValidationInvalidTime, err.Error(), err)
		}
	}
	if s.Frequency == types.FrequencyCustom && s.CustomIntervalDays < 1 {
		return types.NewAppError(types.ErrCodeValidationInvalidSchedule,
			"custom_interval_days must be at least 1", nil)
	}
	if s.StartDate != "" && s.EndDate != "" {
		start, errStart := time.Parse(dateLayout, s.StartDate)
		end, errEnd := time.Parse(dateLayout, s.EndDate)
		if errStart == nil && errEnd == nil && end.Before(start) {
			return types.NewAppError(types.ErrCodeValidationInvalidSchedule,
				"end_date must not be before start_date", nil)
		}
	}
	return nil
}
