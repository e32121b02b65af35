package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// -----------------------------------------------------------------------------
// Sweep Service
// -----------------------------------------------------------------------------

// OwnerRecoverer is the rescheduler operation the sweep runs.
type OwnerRecoverer interface {
	RecoverAll(ctx context.Context) (RecoveryResult, error)
}

// SweepService tops up every active owner's lookahead window. User owners
// only materialize LookaheadDays ahead, so without a periodic sweep a
// long-running process would run out of registered occurrences.
type SweepService struct {
	recoverer OwnerRecoverer
	logger    *slog.Logger
}

// NewSweepService creates a SweepService.
func NewSweepService(recoverer OwnerRecoverer, logger *slog.Logger) *SweepService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepService{recoverer: recoverer, logger: logger}
}

// Sweep reschedules every active owner and returns how many owners were
// processed. Per-owner failures are counted in the log but do not fail the
// sweep.
func (s *SweepService) Sweep(ctx context.Context, now time.Time) (int, error) {
	res, err := s.recoverer.RecoverAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("sweeping owners: %w", err)
	}

	s.logger.InfoContext(ctx, "sweep complete",
		"reference_time", now.Format(time.RFC3339),
		"owners", res.Owners,
		"failed", res.Failed,
		"inserted", res.Inserted,
	)
	return res.Owners - res.Failed, nil
}

// -----------------------------------------------------------------------------
// Maintenance Service
// -----------------------------------------------------------------------------

// StaleExpirer marks long-overdue pending records as expired.
type StaleExpirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// LockJanitor removes job lock rows whose bucket has passed.
type LockJanitor interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// MaintenanceService performs the nightly cleanup of the pending-work store.
type MaintenanceService struct {
	pending StaleExpirer
	locks   LockJanitor // nil disables lock cleanup
	logger  *slog.Logger
}

// NewMaintenanceService creates a MaintenanceService. locks may be nil.
func NewMaintenanceService(pending StaleExpirer, locks LockJanitor, logger *slog.Logger) *MaintenanceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MaintenanceService{pending: pending, locks: locks, logger: logger}
}

// ExpireStale skips every pending record whose fire time is older than
// maxAge. These are occurrences whose timer was lost, for example because
// the owner was deactivated outside the API or the process was down past
// the grace window and the owner has since become ineligible.
func (m *MaintenanceService) ExpireStale(ctx context.Context, now time.Time, maxAge time.Duration) (int, error) {
	cutoff := now.Add(-maxAge)

	n, err := m.pending.ExpireStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expiring stale pending sends: %w", err)
	}

	if n > 0 {
		m.logger.InfoContext(ctx, "expired stale pending sends",
			"count", n,
			"cutoff", cutoff.Format(time.RFC3339),
		)
	}
	return int(n), nil
}

// PurgeJobLocks deletes lock rows that expired more than retention ago.
func (m *MaintenanceService) PurgeJobLocks(ctx context.Context, now time.Time, retention time.Duration) (int, error) {
	if m.locks == nil {
		return 0, nil
	}

	n, err := m.locks.DeleteExpired(ctx, now.Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("purging job locks: %w", err)
	}
	if n > 0 {
		m.logger.InfoContext(ctx, "purged expired job locks", "count", n)
	}
	return int(n), nil
}
