// Package dispatch runs one pending send when its timer fires: it
// re-validates the owner and schedule, applies skip and rate-limit rules,
// generates and delivers the message, and records the outcome.
package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"inboxinspire/internal/content"
	"inboxinspire/internal/notifications/core"
	"inboxinspire/internal/notifications/email"
	"inboxinspire/internal/types"
)

// PendingStore is the subset of the pending-work store the executor needs.
type PendingStore interface {
	GetByID(ctx context.Context, id string) (*types.PendingSend, error)
	Claim(ctx context.Context, id string, now, until time.Time) (bool, error)
	Release(ctx context.Context, id string) error
	Mark(ctx context.Context, id string, status types.SendStatus, errMsg string) (bool, error)
	Reschedule(ctx context.Context, id string, retryCount int, nextAttemptAt time.Time, errMsg string) error
}

// OwnerStore loads owners and persists the per-send owner state.
type OwnerStore interface {
	Get(ctx context.Context, id string) (*types.Owner, error)
	ClearSkipNext(ctx context.Context, ownerID, scheduleID string) (bool, error)
	UpdateSendState(ctx context.Context, ownerID string, state types.SendState) error
}

// HistoryStore records delivered messages.
type HistoryStore interface {
	Insert(ctx context.Context, h *types.MessageHistory) error
}

// ContentGenerator produces message content. It never fails.
type ContentGenerator interface {
	Generate(ctx context.Context, oc content.OwnerContext) content.Content
}

// Mailer delivers a message. It never fails; see email.SendResult.
type Mailer interface {
	Send(ctx context.Context, recipient, subject, body, referenceID string) email.SendResult
}

// RateChecker decides whether one more send is allowed today.
type RateChecker interface {
	Check(ctx context.Context, owner *types.Owner, sched *types.Schedule, now time.Time) (core.RateDecision, error)
}

// FollowUp binds timers after an outcome. ScheduleRetry re-registers the same
// record at its NextAttemptAt; ScheduleNext materializes an event-driven
// owner's next occurrence.
type FollowUp interface {
	ScheduleRetry(ctx context.Context, p types.PendingSend) error
	ScheduleNext(ctx context.Context, ownerID string) error
}

// Outcome summarizes what Execute did with a record.
type Outcome string

const (
	OutcomeSent     Outcome = "sent"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeRetry    Outcome = "retry_scheduled"
	OutcomeFailed   Outcome = "failed"
	OutcomeDeferred Outcome = "deferred"
	OutcomeNoop     Outcome = "noop"
	OutcomeError    Outcome = "error"
)

// Config holds executor tuning. ContentTimeout bounds generation and
// DeliveryTimeout bounds the mail provider call; each gets its own budget.
type Config struct {
	ContentTimeout  time.Duration
	DeliveryTimeout time.Duration
	RetryPolicy     core.RetryPolicy
}

// claimSlack is added to the stage budgets when leasing a record so the
// lease outlives the store writes that follow delivery.
const claimSlack = time.Minute

// Deps bundles the executor's collaborators.
type Deps struct {
	Pending  PendingStore
	Owners   OwnerStore
	History  HistoryStore
	Content  ContentGenerator
	Mailer   Mailer
	Limiter  RateChecker
	FollowUp FollowUp
	Metrics  core.DispatchMetrics
	Clock    types.Clock
	Logger   types.Logger
}

// Executor runs dispatches. It is safe for concurrent use. A record is leased
// with PendingStore.Claim before any content or mail work, so a second timer
// for the same record is a no-op while the first dispatch is in flight.
type Executor struct {
	Deps
	cfg Config
}

// NewExecutor creates an Executor. Zero config values take the defaults.
func NewExecutor(deps Deps, cfg Config) *Executor {
	if cfg.ContentTimeout <= 0 {
		cfg.ContentTimeout = 20 * time.Second
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 10 * time.Second
	}
	if cfg.RetryPolicy == (core.RetryPolicy{}) {
		cfg.RetryPolicy = core.DefaultRetryPolicy
	}
	if deps.Metrics == nil {
		deps.Metrics = core.NoopMetrics{}
	}
	if deps.Clock == nil {
		deps.Clock = types.RealClock{}
	}
	return &Executor{Deps: deps, cfg: cfg}
}

// Execute processes the pending send pendingID. Panics and errors are
// contained and logged; they never escape to the timer goroutine.
func (e *Executor) Execute(ctx context.Context, pendingID string) (out Outcome) {
	logger := e.Logger.With("pending_id", pendingID)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("dispatch panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			out = OutcomeError
		}
	}()

	out, err := e.execute(ctx, pendingID, logger)
	if err != nil {
		logger.Error("dispatch failed", "outcome", string(out), "error", err)
	}
	return out
}

func (e *Executor) execute(ctx context.Context, pendingID string, logger types.Logger) (Outcome, error) {
	// Step 0: the record must still be pending.
	rec, err := e.Pending.GetByID(ctx, pendingID)
	if err != nil {
		if types.IsCode(err, types.ErrCodeNotFoundPendingSend) {
			logger.Info("pending send no longer exists")
			return OutcomeNoop, nil
		}
		return OutcomeError, fmt.Errorf("load pending send: %w", err)
	}
	if rec.Status.IsTerminal() {
		logger.Info("pending send already finalized", "status", string(rec.Status))
		return OutcomeNoop, nil
	}

	now := e.Clock.Now()
	logger = logger.With("owner_id", rec.OwnerID, "schedule_id", rec.ScheduleID)

	claimed, err := e.Pending.Claim(ctx, rec.ID, now, now.Add(e.claimTTL()))
	if err != nil {
		return OutcomeError, fmt.Errorf("claim pending send: %w", err)
	}
	if !claimed {
		logger.Info("pending send claimed by another dispatch")
		return OutcomeNoop, nil
	}
	e.Metrics.RecordLag(ctx, now.Sub(rec.FireAt()))

	// Step 1: owner and schedule preconditions.
	owner, err := e.Owners.Get(ctx, rec.OwnerID)
	if err != nil && !types.IsCode(err, types.ErrCodeNotFoundOwner) {
		return OutcomeError, fmt.Errorf("load owner: %w", err)
	}
	if owner == nil || !owner.Eligible() {
		return e.skip(ctx, rec, types.SkipReasonOwnerInactive, false, logger)
	}
	sched, ok := owner.Schedule(rec.ScheduleID)
	if !ok {
		return e.skip(ctx, rec, types.SkipReasonScheduleRemoved, false, logger)
	}

	// Step 2: paused schedules keep their records for when they resume.
	if sched.Paused {
		logger.Info("schedule paused, leaving record pending")
		if err := e.Pending.Release(ctx, rec.ID); err != nil {
			logger.Error("failed to release pending send", "error", err)
		}
		return OutcomeDeferred, nil
	}

	// Step 3: one-shot skip. Only the caller that clears the flag skips.
	if sched.SkipNext {
		cleared, err := e.Owners.ClearSkipNext(ctx, owner.ID, sched.ID)
		if err != nil {
			return OutcomeError, fmt.Errorf("clear skip_next: %w", err)
		}
		if cleared {
			return e.skip(ctx, rec, types.SkipReasonSkipNext, owner.Kind.EventDriven(), logger)
		}
	}

	// Step 4: daily caps.
	decision, err := e.Limiter.Check(ctx, owner, sched, now)
	if err != nil {
		return e.fail(ctx, owner, rec, fmt.Sprintf("rate limit check: %v", err), false, logger)
	}
	if !decision.Allowed {
		return e.skip(ctx, rec, decision.Reason, owner.Kind.EventDriven(), logger)
	}

	// Step 5: content.
	personality, hasPersonality := core.PickPersonality(owner.Personalities, owner.State)
	oc := content.OwnerContext{
		Kind:        owner.Kind,
		Title:       owner.Title,
		GoalsText:   owner.GoalsText,
		StreakCount: owner.State.StreakCount,
	}
	if hasPersonality {
		oc.Personality = &personality
	}

	msg := e.generate(ctx, oc)
	if msg.UsedFallback {
		e.Metrics.RecordFallback(ctx)
	}

	// Step 6: delivery.
	started := e.Clock.Now()
	res := e.send(ctx, owner.Email, msg, rec.ID)
	e.Metrics.RecordLatency(ctx, owner.Kind, e.Clock.Now().Sub(started))
	if !res.OK {
		return e.fail(ctx, owner, rec, res.Error, res.Permanent, logger)
	}

	changed, err := e.Pending.Mark(ctx, rec.ID, types.SendStatusSent, "")
	if err != nil {
		return OutcomeError, fmt.Errorf("mark sent: %w", err)
	}
	if !changed {
		logger.Warn("message delivered but record was finalized concurrently")
		return OutcomeNoop, nil
	}

	sentAt := e.Clock.Now()
	state := core.AdvanceSendState(owner.State, sentAt, core.LocationOf(owner.Timezone), len(owner.Personalities))
	if err := e.Owners.UpdateSendState(ctx, owner.ID, state); err != nil {
		logger.Error("failed to update send state", "error", err)
	}

	hist := &types.MessageHistory{
		ID:                uuid.NewString(),
		OwnerID:           owner.ID,
		ScheduleID:        rec.ScheduleID,
		PendingSendID:     rec.ID,
		Subject:           msg.Subject,
		Body:              msg.Body,
		Personality:       msg.Personality,
		UsedFallback:      msg.UsedFallback,
		ProviderMessageID: res.ProviderMessageID,
		SentAt:            sentAt,
	}
	if err := e.History.Insert(ctx, hist); err != nil {
		logger.Error("failed to record message history", "error", err)
	}

	e.Metrics.RecordOutcome(ctx, owner.Kind, core.MetricSuccess, "")
	logger.Info("message sent",
		"scheduled_for", rec.ScheduledFor,
		"attempt", rec.RetryCount+1,
		"used_fallback", msg.UsedFallback,
		"streak", state.StreakCount,
	)

	e.followNext(ctx, owner, logger)
	return OutcomeSent, nil
}

func (e *Executor) generate(ctx context.Context, oc content.OwnerContext) content.Content {
	genCtx, cancel := context.WithTimeout(ctx, e.cfg.ContentTimeout)
	defer cancel()
	return e.Content.Generate(genCtx, oc)
}

func (e *Executor) send(ctx context.Context, recipient string, msg content.Content, referenceID string) email.SendResult {
	sendCtx, cancel := context.WithTimeout(ctx, e.cfg.DeliveryTimeout)
	defer cancel()
	return e.Mailer.Send(sendCtx, recipient, msg.Subject, msg.Body, referenceID)
}

func (e *Executor) claimTTL() time.Duration {
	return e.cfg.ContentTimeout + e.cfg.DeliveryTimeout + claimSlack
}

// skip marks rec skipped with reason and, when asked, schedules the next
// event-driven occurrence.
func (e *Executor) skip(ctx context.Context, rec *types.PendingSend, reason string, scheduleNext bool, logger types.Logger) (Outcome, error) {
	changed, err := e.Pending.Mark(ctx, rec.ID, types.SendStatusSkipped, reason)
	if err != nil {
		return OutcomeError, fmt.Errorf("mark skipped: %w", err)
	}
	if !changed {
		return OutcomeNoop, nil
	}

	e.Metrics.RecordOutcome(ctx, rec.OwnerKind, core.MetricSkipped, reason)
	logger.Info("pending send skipped", "reason", reason)

	if scheduleNext {
		if err := e.FollowUp.ScheduleNext(ctx, rec.OwnerID); err != nil {
			logger.Error("failed to schedule next occurrence", "error", err)
		}
	}
	return OutcomeSkipped, nil
}

// fail applies the retry policy to a failed attempt.
func (e *Executor) fail(ctx context.Context, owner *types.Owner, rec *types.PendingSend, reason string, permanent bool, logger types.Logger) (Outcome, error) {
	decision := core.Decide(e.cfg.RetryPolicy, rec.RetryCount)

	if decision.Retry && !permanent {
		next := e.Clock.Now().Add(decision.Delay)
		if err := e.Pending.Reschedule(ctx, rec.ID, decision.NextRetryCount, next, reason); err != nil {
			if types.IsCode(err, types.ErrCodeConflictTerminalStatus) {
				return OutcomeNoop, nil
			}
			return OutcomeError, fmt.Errorf("reschedule retry: %w", err)
		}

		retry := *rec
		retry.RetryCount = decision.NextRetryCount
		retry.NextAttemptAt = &next
		retry.ErrorMessage = reason
		if err := e.FollowUp.ScheduleRetry(ctx, retry); err != nil {
			logger.Error("failed to register retry timer", "error", err)
		}

		e.Metrics.RecordOutcome(ctx, owner.Kind, core.MetricRetried, "")
		logger.Warn("delivery failed, retry scheduled",
			"retry_count", decision.NextRetryCount,
			"next_attempt_at", next,
			"error", reason,
		)
		return OutcomeRetry, nil
	}

	changed, err := e.Pending.Mark(ctx, rec.ID, types.SendStatusFailed, reason)
	if err != nil {
		return OutcomeError, fmt.Errorf("mark failed: %w", err)
	}
	if !changed {
		return OutcomeNoop, nil
	}

	e.Metrics.RecordOutcome(ctx, owner.Kind, core.MetricFailed, reason)
	logger.Error("delivery failed permanently",
		"retry_count", rec.RetryCount,
		"permanent", permanent,
		"error", reason,
	)

	e.followNext(ctx, owner, logger)
	return OutcomeFailed, nil
}

func (e *Executor) followNext(ctx context.Context, owner *types.Owner, logger types.Logger) {
	if !owner.Kind.EventDriven() {
		return
	}
	if err := e.FollowUp.ScheduleNext(ctx, owner.ID); err != nil {
		logger.Error("failed to schedule next occurrence", "error", err)
	}
}
