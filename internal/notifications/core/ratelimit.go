package core

import (
	"context"
	"fmt"
	"time"

	"inboxinspire/internal/types"
)

// RateDecision is the result of a daily-cap check.
type RateDecision struct {
	Allowed bool
	Reason  string
	Limit   int
	Count   int
}

// RateLimiter enforces per-day send caps counted from sent records since
// local midnight. Three caps apply, the tightest winning:
//
//   - the global per-owner cap (0 disables it)
//   - the goal owner's send_limit_per_day
//   - the schedule's optional daily_cap
//
// Owner caps use midnight in the owner's timezone; the schedule cap uses the
// schedule's timezone, falling back to the owner's.
type RateLimiter struct {
	counter   SentCounter
	globalCap int
	logger    types.Logger
}

// NewRateLimiter creates a RateLimiter.
func NewRateLimiter(counter SentCounter, globalCap int, logger types.Logger) *RateLimiter {
	return &RateLimiter{
		counter:   counter,
		globalCap: globalCap,
		logger:    logger,
	}
}

// Check reports whether one more send is allowed for the owner's schedule at now.
func (l *RateLimiter) Check(ctx context.Context, owner *types.Owner, sched *types.Schedule, now time.Time) (RateDecision, error) {
	ownerLimit := l.ownerLimit(owner)
	if ownerLimit > 0 {
		since := LocalMidnight(now, LocationOf(owner.Timezone))
		count, err := l.counter.CountSentSince(ctx, owner.ID, "", since)
		if err != nil {
			return RateDecision{}, fmt.Errorf("CheckRateLimit: owner count: %w", err)
		}
		if count >= ownerLimit {
			l.logger.Info("owner daily cap reached", "owner_id", owner.ID, "limit", ownerLimit, "count", count)
			return RateDecision{
				Allowed: false,
				Reason:  types.SkipReasonRateLimited,
				Limit:   ownerLimit,
				Count:   count,
			}, nil
		}
	}

	if sched != nil && sched.DailyCap > 0 {
		tz := sched.Timezone
		if tz == "" {
			tz = owner.Timezone
		}
		since := LocalMidnight(now, LocationOf(tz))
		count, err := l.counter.CountSentSince(ctx, owner.ID, sched.ID, since)
		if err != nil {
			return RateDecision{}, fmt.Errorf("CheckRateLimit: schedule count: %w", err)
		}
		if count >= sched.DailyCap {
			l.logger.Info("schedule daily cap reached", "owner_id", owner.ID, "schedule_id", sched.ID,
				"limit", sched.DailyCap, "count", count)
			return RateDecision{
				Allowed: false,
				Reason:  types.SkipReasonRateLimited,
				Limit:   sched.DailyCap,
				Count:   count,
			}, nil
		}
	}

	return RateDecision{Allowed: true}, nil
}

func (l *RateLimiter) ownerLimit(owner *types.Owner) int {
	limit := l.globalCap
	if own := owner.DailyLimit(); own > 0 && (limit <= 0 || own < limit) {
		limit = own
	}
	return limit
}

// LocalMidnight returns the UTC instant of the start of now's calendar day in loc.
func LocalMidnight(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).UTC()
}

// LocationOf resolves tz, falling back to UTC for empty or unknown names.
func LocationOf(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}
