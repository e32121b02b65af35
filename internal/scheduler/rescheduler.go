package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"inboxinspire/internal/notifications/core"
	"inboxinspire/internal/types"
)

// PendingStore is the pending-work store as the rescheduler uses it.
type PendingStore interface {
	Insert(ctx context.Context, p *types.PendingSend) error
	FindActive(ctx context.Context, ownerID string) ([]types.PendingSend, error)
	Mark(ctx context.Context, id string, status types.SendStatus, errMsg string) (bool, error)
	DeletePending(ctx context.Context, ownerID string) (int64, error)
}

// OwnerStore loads and mutates owners.
type OwnerStore interface {
	Get(ctx context.Context, id string) (*types.Owner, error)
	ListActive(ctx context.Context) ([]types.Owner, error)
	UpdateSchedules(ctx context.Context, ownerID string, schedules types.Schedules, expectedUpdatedAt time.Time) error
	Deactivate(ctx context.Context, ownerID string) error
	SoftDelete(ctx context.Context, ownerID string) error
}

// VersionStore appends schedule audit snapshots.
type VersionStore interface {
	Append(ctx context.Context, ownerID, reason string, schedules types.Schedules) (int, error)
}

// DispatchFunc runs the pending send pendingID. It is bound to every
// occurrence timer.
type DispatchFunc func(ctx context.Context, pendingID string)

// ReschedulerConfig tunes occurrence materialization.
type ReschedulerConfig struct {
	LookaheadDays       int
	GraceWindow         time.Duration
	RecoveryParallelism int
}

// RescheduleResult counts what one reschedule did.
type RescheduleResult struct {
	Registered int `json:"registered"`
	Inserted   int `json:"inserted"`
	Superseded int `json:"superseded"`
	Missed     int `json:"missed"`
	Removed    int `json:"removed"`
	FiredLate  int `json:"fired_late"`
}

// Rescheduler keeps each owner's pending records and live timers in line
// with the owner's schedules. Work for one owner is serialized; different
// owners proceed concurrently.
type Rescheduler struct {
	owners   OwnerStore
	pending  PendingStore
	versions VersionStore
	registry *Registry
	metrics  core.DispatchMetrics
	clock    types.Clock
	cfg      ReschedulerConfig
	logger   *slog.Logger

	locks ownerLocks

	dispatchMu sync.RWMutex
	dispatch   DispatchFunc
}

// NewRescheduler creates a Rescheduler. BindDispatch must be called before
// any timer fires.
func NewRescheduler(
	owners OwnerStore,
	pending PendingStore,
	versions VersionStore,
	registry *Registry,
	metrics core.DispatchMetrics,
	clock types.Clock,
	cfg ReschedulerConfig,
	logger *slog.Logger,
) *Rescheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if metrics == nil {
		metrics = core.NoopMetrics{}
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if cfg.LookaheadDays <= 0 {
		cfg.LookaheadDays = 7
	}
	if cfg.GraceWindow < 0 {
		cfg.GraceWindow = 0
	}
	if cfg.RecoveryParallelism <= 0 {
		cfg.RecoveryParallelism = 8
	}
	return &Rescheduler{
		owners:   owners,
		pending:  pending,
		versions: versions,
		registry: registry,
		metrics:  metrics,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
		locks:    ownerLocks{m: make(map[string]*ownerLock)},
	}
}

// BindDispatch sets the function run when an occurrence timer fires.
func (r *Rescheduler) BindDispatch(fn DispatchFunc) {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()
	r.dispatch = fn
}

func (r *Rescheduler) jobFor(pendingID string) JobFunc {
	return func(ctx context.Context) {
		r.dispatchMu.RLock()
		fn := r.dispatch
		r.dispatchMu.RUnlock()
		if fn == nil {
			r.logger.ErrorContext(ctx, "timer fired before dispatch was bound", "pending_id", pendingID)
			return
		}
		fn(ctx, pendingID)
	}
}

// Reschedule rebuilds the owner's timers from its current schedules.
// Running it twice with no change in between leaves the same records and
// the same live jobs.
func (r *Rescheduler) Reschedule(ctx context.Context, ownerID string) (RescheduleResult, error) {
	unlock := r.locks.lock(ownerID)
	defer unlock()
	return r.rescheduleLocked(ctx, ownerID)
}

// occurrence is one computed instant and the schedule that produced it.
type occurrence struct {
	scheduleID string
	at         time.Time
}

func (r *Rescheduler) rescheduleLocked(ctx context.Context, ownerID string) (RescheduleResult, error) {
	var res RescheduleResult

	r.registry.CancelOwner(ownerID)

	owner, err := r.owners.Get(ctx, ownerID)
	if err != nil {
		if types.IsCode(err, types.ErrCodeNotFoundOwner) {
			return res, nil
		}
		return res, fmt.Errorf("Reschedule: load owner: %w", err)
	}
	if !owner.Eligible() {
		r.logger.InfoContext(ctx, "owner not eligible, timers cancelled", "owner_id", ownerID)
		return res, nil
	}

	now := r.clock.Now()
	wanted := r.computeWanted(owner, now)

	active, err := r.pending.FindActive(ctx, ownerID)
	if err != nil {
		return res, fmt.Errorf("Reschedule: load pending: %w", err)
	}

	for i := range active {
		p := &active[i]
		sched, ok := owner.Schedule(p.ScheduleID)
		switch {
		case !ok:
			if r.markSkipped(ctx, p, types.SkipReasonScheduleRemoved) {
				res.Removed++
			}
			continue
		case sched.Paused:
			// Paused schedules keep their records but no timers.
			continue
		}

		key := p.ScheduledFor.UTC().UnixNano()
		if p.ScheduledFor.After(now) {
			if _, keep := wanted[key]; !keep {
				if r.markSkipped(ctx, p, types.SkipReasonSuperseded) {
					res.Superseded++
				}
				continue
			}
			delete(wanted, key)
		}

		fireAt := p.FireAt()
		if !fireAt.After(now) {
			if now.Sub(fireAt) > r.cfg.GraceWindow {
				if r.markSkipped(ctx, p, types.SkipReasonMissed) {
					res.Missed++
				}
				continue
			}
			fireAt = now
			res.FiredLate++
		}
		if r.register(ctx, p, fireAt) {
			res.Registered++
		}
	}

	for _, occ := range sortedOccurrences(wanted) {
		p := &types.PendingSend{
			OwnerID:      owner.ID,
			OwnerKind:    owner.Kind,
			ScheduleID:   occ.scheduleID,
			ScheduledFor: occ.at,
		}
		err := r.pending.Insert(ctx, p)
		if types.IsCode(err, types.ErrCodeConflictDuplicateOccurrence) {
			existing, findErr := r.findExisting(ctx, owner.ID, occ.at)
			if findErr != nil {
				return res, fmt.Errorf("Reschedule: resolve duplicate: %w", findErr)
			}
			if existing != nil && r.register(ctx, existing, existing.FireAt()) {
				res.Registered++
			}
			continue
		}
		if err != nil {
			return res, fmt.Errorf("Reschedule: insert occurrence: %w", err)
		}
		res.Inserted++
		if r.register(ctx, p, p.FireAt()) {
			res.Registered++
		}
	}

	r.metrics.RecordQueued(ctx, res.Inserted)
	r.logger.InfoContext(ctx, "owner rescheduled",
		"owner_id", owner.ID,
		"kind", owner.Kind,
		"registered", res.Registered,
		"inserted", res.Inserted,
		"superseded", res.Superseded,
		"missed", res.Missed,
	)
	return res, nil
}

// computeWanted returns the future occurrences of every unpaused schedule,
// keyed by instant. When two schedules land on the same instant the first
// one wins.
func (r *Rescheduler) computeWanted(owner *types.Owner, now time.Time) map[int64]occurrence {
	wanted := make(map[int64]occurrence)
	for _, s := range owner.Schedules {
		if s.Paused {
			continue
		}
		if s.Timezone == "" {
			s.Timezone = owner.Timezone
		}

		var times []time.Time
		if owner.Kind.EventDriven() {
			if t, ok := NextOccurrence(s, now, r.logger); ok {
				times = []time.Time{t}
			}
		} else {
			times = ComputeOccurrences(s, now, r.cfg.LookaheadDays, r.logger)
		}

		for _, t := range times {
			key := t.UnixNano()
			if _, taken := wanted[key]; !taken {
				wanted[key] = occurrence{scheduleID: s.ID, at: t}
			}
		}
	}
	return wanted
}

func sortedOccurrences(m map[int64]occurrence) []occurrence {
	out := make([]occurrence, 0, len(m))
	for _, occ := range m {
		out = append(out, occ)
	}
	slices.SortFunc(out, func(a, b occurrence) int { return a.at.Compare(b.at) })
	return out
}

func (r *Rescheduler) findExisting(ctx context.Context, ownerID string, at time.Time) (*types.PendingSend, error) {
	active, err := r.pending.FindActive(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for i := range active {
		if active[i].ScheduledFor.Equal(at) {
			return &active[i], nil
		}
	}
	// The slot is held by a sent record.
	return nil, nil
}

func (r *Rescheduler) register(ctx context.Context, p *types.PendingSend, fireAt time.Time) bool {
	if err := r.registry.Register(OccurrenceJobID(p.OwnerID, p.ID), fireAt, r.jobFor(p.ID)); err != nil {
		r.logger.ErrorContext(ctx, "failed to register occurrence timer",
			"owner_id", p.OwnerID,
			"pending_id", p.ID,
			"error", err,
		)
		return false
	}
	return true
}

func (r *Rescheduler) markSkipped(ctx context.Context, p *types.PendingSend, reason string) bool {
	changed, err := r.pending.Mark(ctx, p.ID, types.SendStatusSkipped, reason)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to skip pending send",
			"owner_id", p.OwnerID,
			"pending_id", p.ID,
			"reason", reason,
			"error", err,
		)
		return false
	}
	if changed {
		r.metrics.RecordOutcome(ctx, p.OwnerKind, core.MetricSkipped, reason)
	}
	return changed
}

// ScheduleRetry re-registers the timer of a record waiting for its next
// delivery attempt.
func (r *Rescheduler) ScheduleRetry(ctx context.Context, p types.PendingSend) error {
	unlock := r.locks.lock(p.OwnerID)
	defer unlock()
	return r.registry.Register(OccurrenceJobID(p.OwnerID, p.ID), p.FireAt(), r.jobFor(p.ID))
}

// ScheduleNext materializes the next occurrence of an event-driven owner.
func (r *Rescheduler) ScheduleNext(ctx context.Context, ownerID string) error {
	_, err := r.Reschedule(ctx, ownerID)
	return err
}

// RecoveryResult summarizes a startup recovery pass.
type RecoveryResult struct {
	Owners     int `json:"owners"`
	Failed     int `json:"failed"`
	Registered int `json:"registered"`
	Inserted   int `json:"inserted"`
	Missed     int `json:"missed"`
	FiredLate  int `json:"fired_late"`
}

// RecoverAll reschedules every eligible owner, bounded by the configured
// parallelism. A failure for one owner is logged and does not stop the
// others; only a failure to list owners is returned.
func (r *Rescheduler) RecoverAll(ctx context.Context) (RecoveryResult, error) {
	start := r.clock.Now()
	owners, err := r.owners.ListActive(ctx)
	if err != nil {
		return RecoveryResult{}, fmt.Errorf("RecoverAll: list owners: %w", err)
	}

	var (
		mu  sync.Mutex
		out = RecoveryResult{Owners: len(owners)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.RecoveryParallelism)
	for _, o := range owners {
		g.Go(func() error {
			res, err := r.Reschedule(gctx, o.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out.Failed++
				r.logger.ErrorContext(gctx, "recovery failed for owner", "owner_id", o.ID, "error", err)
				return nil
			}
			out.Registered += res.Registered
			out.Inserted += res.Inserted
			out.Missed += res.Missed
			out.FiredLate += res.FiredLate
			return nil
		})
	}
	_ = g.Wait()

	r.logger.InfoContext(ctx, "recovery complete",
		"owners", out.Owners,
		"failed", out.Failed,
		"registered", out.Registered,
		"inserted", out.Inserted,
		"missed", out.Missed,
		"duration", r.clock.Now().Sub(start),
	)
	return out, nil
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

// ErrScheduleNotFound is returned when a mutation names an unknown schedule.
var ErrScheduleNotFound = types.NewAppError(types.ErrCodeNotFoundSchedule, "schedule not found", nil)

// mutateAttempts bounds how often mutate re-reads an owner whose row was
// written by someone else between the read and the write.
const mutateAttempts = 3

// mutate loads the owner, applies change to a copy of its schedules,
// persists and versions the result, and reschedules. All under the owner lock.
// The write is conditional on the row's updated_at, so a concurrent in-place
// update such as ClearSkipNext is re-read instead of overwritten.
func (r *Rescheduler) mutate(ctx context.Context, ownerID, reason string, change func(types.Schedules) (types.Schedules, error)) (RescheduleResult, error) {
	unlock := r.locks.lock(ownerID)
	defer unlock()

	var schedules types.Schedules
	for attempt := 1; ; attempt++ {
		owner, err := r.owners.Get(ctx, ownerID)
		if err != nil {
			return RescheduleResult{}, err
		}

		schedules, err = change(slices.Clone(owner.Schedules))
		if err != nil {
			return RescheduleResult{}, err
		}
		err = r.owners.UpdateSchedules(ctx, ownerID, schedules, owner.UpdatedAt)
		if err == nil {
			break
		}
		if !types.IsCode(err, types.ErrCodeConflictConcurrent) || attempt == mutateAttempts {
			return RescheduleResult{}, fmt.Errorf("%s: %w", reason, err)
		}
		r.logger.InfoContext(ctx, "owner changed during schedule update, retrying",
			"owner_id", ownerID,
			"reason", reason,
			"attempt", attempt,
		)
	}
	r.appendVersion(ctx, ownerID, reason, schedules)

	return r.rescheduleLocked(ctx, ownerID)
}

func (r *Rescheduler) appendVersion(ctx context.Context, ownerID, reason string, schedules types.Schedules) {
	if r.versions == nil {
		return
	}
	if _, err := r.versions.Append(ctx, ownerID, reason, schedules); err != nil {
		r.logger.WarnContext(ctx, "failed to append schedule version",
			"owner_id", ownerID,
			"reason", reason,
			"error", err,
		)
	}
}

// ApplyScheduleChange creates or replaces the schedule with s.ID. A custom
// schedule without a start date is pinned to the date of its first
// occurrence so later reschedules keep the same phase.
func (r *Rescheduler) ApplyScheduleChange(ctx context.Context, ownerID string, s types.Schedule) (RescheduleResult, error) {
	if err := ValidateSchedule(s); err != nil {
		return RescheduleResult{}, err
	}
	return r.mutate(ctx, ownerID, "upsert:"+s.ID, func(schedules types.Schedules) (types.Schedules, error) {
		if s.Frequency == types.FrequencyCustom && s.StartDate == "" {
			s.StartDate = r.customAnchorDate(ctx, ownerID, s)
		}
		if i := indexOf(schedules, s.ID); i >= 0 {
			schedules[i] = s
		} else {
			schedules = append(schedules, s)
		}
		return schedules, nil
	})
}

func (r *Rescheduler) customAnchorDate(ctx context.Context, ownerID string, s types.Schedule) string {
	if s.Timezone == "" {
		if owner, err := r.owners.Get(ctx, ownerID); err == nil {
			s.Timezone = owner.Timezone
		}
	}
	first, ok := NextOccurrence(s, r.clock.Now(), r.logger)
	if !ok {
		return ""
	}
	return first.In(ResolveLocation(s.Timezone, r.logger)).Format(dateLayout)
}

// RemoveSchedule deletes a schedule. Its pending records are skipped with
// reason schedule_removed.
func (r *Rescheduler) RemoveSchedule(ctx context.Context, ownerID, scheduleID string) (RescheduleResult, error) {
	return r.mutate(ctx, ownerID, "remove:"+scheduleID, func(schedules types.Schedules) (types.Schedules, error) {
		i := indexOf(schedules, scheduleID)
		if i < 0 {
			return nil, ErrScheduleNotFound
		}
		return slices.Delete(schedules, i, i+1), nil
	})
}

// SetPaused pauses or resumes a schedule. Pausing removes its timers and
// leaves its pending records untouched; resuming restores them.
func (r *Rescheduler) SetPaused(ctx context.Context, ownerID, scheduleID string, paused bool) (RescheduleResult, error) {
	reason := "resume:" + scheduleID
	if paused {
		reason = "pause:" + scheduleID
	}
	return r.mutate(ctx, ownerID, reason, func(schedules types.Schedules) (types.Schedules, error) {
		i := indexOf(schedules, scheduleID)
		if i < 0 {
			return nil, ErrScheduleNotFound
		}
		schedules[i].Paused = paused
		return schedules, nil
	})
}

// SetSkipNext sets or clears the one-shot skip flag of a schedule.
func (r *Rescheduler) SetSkipNext(ctx context.Context, ownerID, scheduleID string, skip bool) (RescheduleResult, error) {
	return r.mutate(ctx, ownerID, fmt.Sprintf("skip_next:%s:%t", scheduleID, skip), func(schedules types.Schedules) (types.Schedules, error) {
		i := indexOf(schedules, scheduleID)
		if i < 0 {
			return nil, ErrScheduleNotFound
		}
		schedules[i].SkipNext = skip
		return schedules, nil
	})
}

// Deactivate turns the owner off, cancels its timers and deletes its
// pending records.
func (r *Rescheduler) Deactivate(ctx context.Context, ownerID string) (int64, error) {
	return r.teardown(ctx, ownerID, "deactivate", r.owners.Deactivate)
}

// Delete soft-deletes the owner and cascades like Deactivate.
func (r *Rescheduler) Delete(ctx context.Context, ownerID string) (int64, error) {
	return r.teardown(ctx, ownerID, "delete", r.owners.SoftDelete)
}

func (r *Rescheduler) teardown(ctx context.Context, ownerID, reason string, persist func(context.Context, string) error) (int64, error) {
	unlock := r.locks.lock(ownerID)
	defer unlock()

	owner, err := r.owners.Get(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	if err := persist(ctx, ownerID); err != nil {
		return 0, fmt.Errorf("%s: %w", reason, err)
	}

	cancelled := r.registry.CancelOwner(ownerID)
	deleted, err := r.pending.DeletePending(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("%s: delete pending: %w", reason, err)
	}
	r.appendVersion(ctx, ownerID, reason, owner.Schedules)

	r.logger.InfoContext(ctx, "owner torn down",
		"owner_id", ownerID,
		"reason", reason,
		"timers_cancelled", cancelled,
		"pending_deleted", deleted,
	)
	return deleted, nil
}

func indexOf(schedules types.Schedules, id string) int {
	return slices.IndexFunc(schedules, func(s types.Schedule) bool { return s.ID == id })
}

// ---------------------------------------------------------------------------
// Per-owner locks
// ---------------------------------------------------------------------------

type ownerLock struct {
	mu   sync.Mutex
	refs int
}

// ownerLocks hands out one mutex per owner id and forgets it once no
// goroutine holds or waits for it.
type ownerLocks struct {
	mu sync.Mutex
	m  map[string]*ownerLock
}

func (l *ownerLocks) lock(ownerID string) (unlock func()) {
	l.mu.Lock()
	ol, ok := l.m[ownerID]
	if !ok {
		ol = &ownerLock{}
		l.m[ownerID] = ol
	}
	ol.refs++
	l.mu.Unlock()

	ol.mu.Lock()
	return func() {
		ol.mu.Unlock()
		l.mu.Lock()
		ol.refs--
		if ol.refs == 0 {
			delete(l.m, ownerID)
		}
		l.mu.Unlock()
	}
}
