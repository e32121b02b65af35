package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"inboxinspire/internal/types"
)

const (
	// defaultStalePendingAge is how old a pending record's fire time must be
	// before maintenance expires it, unless TaskRunner.StaleAge is set.
	defaultStalePendingAge = 24 * time.Hour

	// jobLockRetention keeps expired lock rows around for a week for
	// operational visibility.
	jobLockRetention = 7 * 24 * time.Hour

	// lockTTL covers one run of either task with margin; it is shorter than
	// the hourly lock bucket so a crashed run does not block the next hour.
	lockTTL = 50 * time.Minute
)

// TaskServices holds the services the runner routes to.
type TaskServices struct {
	Sweep       *SweepService
	Maintenance *MaintenanceService
}

// JobLocker abstracts cross-instance lock acquisition.
type JobLocker interface {
	Acquire(ctx context.Context, lockID string, workerID string, ttl time.Duration) (bool, error)
}

// JobHistorian records task runs.
type JobHistorian interface {
	Start(ctx context.Context, jobType string) (int64, error)
	Finish(ctx context.Context, id int64, status string, items int, err error) error
}

// TaskRunner runs periodic tasks. Each run takes a lock keyed by task and
// hour so that only one scheduler instance performs it, and is recorded in
// job history.
type TaskRunner struct {
	Services   TaskServices
	JobLock    JobLocker
	JobHistory JobHistorian
	WorkerID   string
	StaleAge   time.Duration
	Clock      types.Clock
	Logger     *slog.Logger
}

// Run executes the task named by payload and returns a one-line summary.
// A run whose lock is held elsewhere is reported as skipped, not failed.
func (h *TaskRunner) Run(ctx context.Context, payload MaintenancePayload) (string, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := h.Clock
	if clock == nil {
		clock = types.RealClock{}
	}

	now := clock.Now().UTC()
	if payload.ReferenceTime != nil {
		now = payload.ReferenceTime.UTC()
	}

	if payload.Task == "" {
		return "", types.NewAppError(types.ErrCodeValidationMissingField, "empty task type", nil)
	}
	if !payload.Task.Valid() {
		return "", types.NewAppError(types.ErrCodeValidationInvalidTask,
			fmt.Sprintf("unknown task type %q", payload.Task), nil)
	}

	taskStr := string(payload.Task)
	logger.InfoContext(ctx, "task invoked",
		"task", taskStr,
		"reference_time", now.Format(time.RFC3339),
		"worker_id", h.WorkerID,
	)

	lockID := fmt.Sprintf("%s:%s", payload.Task, now.Truncate(time.Hour).Format("2006-01-02T15"))
	acquired, err := h.JobLock.Acquire(ctx, lockID, h.WorkerID, lockTTL)
	if err != nil {
		logger.ErrorContext(ctx, "failed to acquire job lock",
			"lock_id", lockID,
			"error", err,
		)
		return "", fmt.Errorf("acquiring job lock %s: %w", lockID, err)
	}
	if !acquired {
		logger.InfoContext(ctx, "job lock held by another worker", "lock_id", lockID)
		return fmt.Sprintf("skipped: lock %s held by another worker", lockID), nil
	}

	jobID, err := h.JobHistory.Start(ctx, taskStr)
	if err != nil {
		// History is best effort; jobID 0 skips Finish.
		logger.ErrorContext(ctx, "failed to start job history",
			"task", taskStr,
			"error", err,
		)
		jobID = 0
	}

	items, execErr := h.route(ctx, payload.Task, now)

	status := types.JobStatusSuccess
	if execErr != nil {
		status = types.JobStatusFailed
	}
	if jobID != 0 {
		if finishErr := h.JobHistory.Finish(ctx, jobID, status, items, execErr); finishErr != nil {
			logger.ErrorContext(ctx, "failed to finish job history",
				"job_id", jobID,
				"task", taskStr,
				"error", finishErr,
			)
		}
	}

	if execErr != nil {
		logger.ErrorContext(ctx, "task failed",
			"task", taskStr,
			"error", execErr,
			"items_before_error", items,
		)
		return "", fmt.Errorf("task %s failed: %w", taskStr, execErr)
	}

	result := fmt.Sprintf("task %s complete: %d items processed", taskStr, items)
	logger.InfoContext(ctx, result, "task", taskStr, "items", items)
	return result, nil
}

func (h *TaskRunner) route(ctx context.Context, task TaskType, now time.Time) (int, error) {
	switch task {
	case TaskSweep:
		return h.Services.Sweep.Sweep(ctx, now)

	case TaskMaintenance:
		total := 0

		staleAge := h.StaleAge
		if staleAge <= 0 {
			staleAge = defaultStalePendingAge
		}
		expired, err := h.Services.Maintenance.ExpireStale(ctx, now, staleAge)
		if err != nil {
			return total, err
		}
		total += expired

		locks, err := h.Services.Maintenance.PurgeJobLocks(ctx, now, jobLockRetention)
		if err != nil {
			return total, err
		}
		total += locks

		return total, nil

	default:
		return 0, fmt.Errorf("unknown task type: %q", task)
	}
}

// Valid reports whether t names a known task.
func (t TaskType) Valid() bool {
	return t == TaskSweep || t == TaskMaintenance
}

// CronSpecs maps each task to its cron expression. An empty expression
// disables the task.
type CronSpecs map[TaskType]string

// NewCron builds a UTC cron that invokes runner for every task in specs.
// The caller starts and stops it.
func NewCron(ctx context.Context, runner *TaskRunner, specs CronSpecs, logger *slog.Logger) (*cron.Cron, error) {
	if logger == nil {
		logger = slog.Default()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser), cron.WithLocation(time.UTC))

	for _, task := range []TaskType{TaskSweep, TaskMaintenance} {
		spec := specs[task]
		if spec == "" {
			logger.InfoContext(ctx, "task disabled", "task", string(task))
			continue
		}
		if _, err := c.AddFunc(spec, func() {
			if _, err := runner.Run(ctx, MaintenancePayload{Task: task}); err != nil {
				logger.ErrorContext(ctx, "scheduled task failed", "task", string(task), "error", err)
			}
		}); err != nil {
			return nil, fmt.Errorf("add %s schedule %q: %w", task, spec, err)
		}
		logger.InfoContext(ctx, "task scheduled", "task", string(task), "spec", spec)
	}
	return c, nil
}
