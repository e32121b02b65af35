package core

import (
	"time"

	"inboxinspire/internal/types"
)

// AdvanceSendState returns the owner's send state after a confirmed send at
// sentAt. Days are compared in loc.
//
//   - first send: streak 1
//   - same local day as the previous send: streak unchanged
//   - next local day: streak + 1
//   - longer gap: streak resets to 1
//
// The rotation index advances modulo personalityCount.
func AdvanceSendState(old types.SendState, sentAt time.Time, loc *time.Location, personalityCount int) types.SendState {
	if loc == nil {
		loc = time.UTC
	}
	sentAt = sentAt.UTC()

	next := types.SendState{
		RotationIndex: old.RotationIndex,
		LastSentAt:    &sentAt,
		StreakCount:   1,
	}

	if old.LastSentAt != nil {
		switch gap := localDayGap(*old.LastSentAt, sentAt, loc); {
		case gap == 0:
			next.StreakCount = max(1, old.StreakCount)
		case gap == 1:
			next.StreakCount = old.StreakCount + 1
		}
	}

	if personalityCount > 0 {
		next.RotationIndex = (old.RotationIndex + 1) % personalityCount
	} else {
		next.RotationIndex = 0
	}
	return next
}

// PickPersonality returns the personality selected by the rotation index.
func PickPersonality(personalities []types.Personality, state types.SendState) (types.Personality, bool) {
	if len(personalities) == 0 {
		return types.Personality{}, false
	}
	idx := state.RotationIndex % len(personalities)
	if idx < 0 {
		idx = 0
	}
	return personalities[idx], true
}

// localDayGap counts calendar days from a to b in loc.
func localDayGap(a, b time.Time, loc *time.Location) int {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
