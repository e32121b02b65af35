// Package scheduler turns owner schedules into timed work for InboxInspire.
//
// It holds the occurrence calculator, the in-memory job registry, the
// rescheduler that keeps pending records and timers in line with each
// owner's schedules, and the periodic tasks (sweep and maintenance) that the
// process runs on cron or on demand.
package scheduler

import "time"

// TaskType identifies a periodic task handled by the TaskRunner.
type TaskType string

const (
	// TaskSweep reschedules every active owner, topping up the lookahead window.
	TaskSweep TaskType = "sweep"
	// TaskMaintenance expires pending records that were never dispatched.
	TaskMaintenance TaskType = "maintenance"
)

// MaintenancePayload names the task to run. ReferenceTime overrides "now"
// for manual runs; when nil the runner's clock is used.
//
//	{
//	  "task": "maintenance",
//	  "reference_time": "2024-02-06T03:00:00Z"
//	}
type MaintenancePayload struct {
	Task          TaskType   `json:"task"`
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}
