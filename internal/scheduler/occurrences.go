package scheduler

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"inboxinspire/internal/types"
)

const (
	// occurrenceCapFactor bounds a single computation to
	// lookahead × max(1, len(times)) × occurrenceCapFactor instants.
	occurrenceCapFactor = 10

	// maxEventLookaheadDays is the furthest NextOccurrence searches before
	// concluding that a schedule has no future occurrence.
	maxEventLookaheadDays = 366

	dateLayout = "2006-01-02"
)

// timeOfDay is a parsed "HH:MM" entry.
type timeOfDay struct {
	hour   int
	minute int
}

// dateBounds holds the optional inclusive start/end calendar days of a
// schedule, expressed as UTC midnights so they compare as civil dates.
type dateBounds struct {
	start *time.Time
	end   *time.Time
}

func (b dateBounds) contains(day time.Time) bool {
	if b.start != nil && day.Before(*b.start) {
		return false
	}
	if b.end != nil && day.After(*b.end) {
		return false
	}
	return true
}

// ComputeOccurrences returns the future send instants of s within the
// lookahead window, sorted ascending and deduplicated. Every instant is UTC
// and strictly after now. Paused schedules yield nothing.
//
// Malformed times, month days and dates are logged and skipped; an unknown
// timezone falls back to UTC. The result depends only on the arguments.
func ComputeOccurrences(s types.Schedule, now time.Time, lookaheadDays int, logger *slog.Logger) []time.Time {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if s.Paused {
		return nil
	}
	if lookaheadDays < 1 {
		lookaheadDays = 1
	}

	loc := ResolveLocation(s.Timezone, logger)
	times := parseTimes(s.Times, logger)
	bounds := parseBounds(s, loc, logger)
	today := civilDate(now.In(loc))

	var out []time.Time
	switch s.Frequency {
	case types.FrequencyDaily:
		for i := 0; i < lookaheadDays; i++ {
			out = appendDay(out, today.AddDate(0, 0, i), times, loc, now, bounds)
		}

	case types.FrequencyWeekly:
		weekdays := weekdaySet(s.Weekdays, logger)
		target := lookaheadDays * len(times)
		for i := 0; i < lookaheadDays*7 && len(out) < target; i++ {
			day := today.AddDate(0, 0, i)
			if !weekdays[mondayIndex(day.Weekday())] {
				continue
			}
			out = appendDay(out, day, times, loc, now, bounds)
		}

	case types.FrequencyMonthly:
		monthDays := monthDayList(s.MonthDays, logger)
		target := lookaheadDays * len(times)
		firstOfMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		months := lookaheadDays/30 + 2
		for m := 0; m < months && len(out) < target; m++ {
			month := firstOfMonth.AddDate(0, m, 0)
			for _, d := range monthDays {
				if d > daysIn(month) {
					continue
				}
				out = appendDay(out, month.AddDate(0, 0, d-1), times, loc, now, bounds)
			}
		}

	case types.FrequencyCustom:
		out = customOccurrences(s, today, firstTime(s.Times), loc, now, lookaheadDays, bounds)

	default:
		logger.Warn("unknown schedule frequency, no occurrences computed",
			"schedule_id", s.ID, "frequency", string(s.Frequency))
		return nil
	}

	return finalize(out, lookaheadDays*max(1, len(times))*occurrenceCapFactor)
}

// NextOccurrence returns the first occurrence of s after now, widening the
// search window up to a year. Event-driven owners use it to keep exactly one
// occurrence materialized.
func NextOccurrence(s types.Schedule, now time.Time, logger *slog.Logger) (time.Time, bool) {
	for _, days := range []int{7, 31, maxEventLookaheadDays} {
		occ := ComputeOccurrences(s, now, days, logger)
		if len(occ) > 0 {
			return occ[0], true
		}
	}
	return time.Time{}, false
}

// ResolveLocation loads an IANA timezone, falling back to UTC with a warning.
func ResolveLocation(tz string, logger *slog.Logger) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		if logger != nil {
			logger.Warn("invalid schedule timezone, falling back to UTC", "timezone", tz, "error", err)
		}
		return time.UTC
	}
	return loc
}

// customOccurrences emits one occurrence every CustomIntervalDays at the
// first configured time. The phase is anchored on StartDate when present so
// repeated computations agree; otherwise on the first future slot.
func customOccurrences(s types.Schedule, today time.Time, at timeOfDay, loc *time.Location, now time.Time, lookaheadDays int, bounds dateBounds) []time.Time {
	interval := max(1, s.CustomIntervalDays)

	var first time.Time
	if bounds.start != nil {
		first = *bounds.start
		if first.Before(today) {
			gap := daysBetween(first, today)
			steps := (gap + interval - 1) / interval
			first = first.AddDate(0, 0, steps*interval)
		}
	} else {
		first = today
		if !localInstant(today, at, loc).After(now) {
			first = today.AddDate(0, 0, 1)
		}
	}

	windowEnd := today.AddDate(0, 0, lookaheadDays)
	var out []time.Time
	for day := first; day.Before(windowEnd); day = day.AddDate(0, 0, interval) {
		out = appendDay(out, day, []timeOfDay{at}, loc, now, bounds)
	}
	return out
}

// appendDay appends each time of day on the given civil day, converted to
// UTC, when it falls after now and within bounds.
func appendDay(out []time.Time, day time.Time, times []timeOfDay, loc *time.Location, now time.Time, bounds dateBounds) []time.Time {
	if !bounds.contains(day) {
		return out
	}
	for _, t := range times {
		instant := localInstant(day, t, loc)
		if instant.After(now) {
			out = append(out, instant)
		}
	}
	return out
}

// localInstant builds the UTC instant of a wall-clock time on a civil day in
// loc. Times inside a DST gap are normalized forward by time.Date.
func localInstant(day time.Time, t timeOfDay, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.hour, t.minute, 0, 0, loc).UTC()
}

// finalize sorts, deduplicates and caps the computed instants.
func finalize(out []time.Time, limit int) []time.Time {
	if len(out) == 0 {
		return nil
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	out = slices.CompactFunc(out, func(a, b time.Time) bool { return a.Equal(b) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// parseTimes parses, deduplicates and sorts the schedule's times. Invalid
// entries are logged and dropped; DefaultTimeOfDay applies if none remain.
func parseTimes(raw []string, logger *slog.Logger) []timeOfDay {
	seen := make(map[timeOfDay]bool, len(raw))
	var out []timeOfDay
	for _, s := range raw {
		if s == "" {
			continue
		}
		h, m, err := ParseTimeOfDay(s)
		if err != nil {
			logger.Warn("skipping malformed schedule time", "time", s, "error", err)
			continue
		}
		t := timeOfDay{hour: h, minute: m}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		h, m, _ := ParseTimeOfDay(types.DefaultTimeOfDay)
		return []timeOfDay{{hour: h, minute: m}}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].hour != out[j].hour {
			return out[i].hour < out[j].hour
		}
		return out[i].minute < out[j].minute
	})
	return out
}

// firstTime returns the first valid entry in configured order, or the default.
func firstTime(raw []string) timeOfDay {
	for _, s := range raw {
		if h, m, err := ParseTimeOfDay(s); err == nil {
			return timeOfDay{hour: h, minute: m}
		}
	}
	h, m, _ := ParseTimeOfDay(types.DefaultTimeOfDay)
	return timeOfDay{hour: h, minute: m}
}

// ParseTimeOfDay parses a "HH:MM" string into hour and minute components.
// Both fields must be exactly two ASCII digits.
func ParseTimeOfDay(s string) (int, int, error) {
	if len(s) != 5 || s[2] != ':' || !isDigits(s[:2]) || !isDigits(s[3:]) {
		return 0, 0, fmt.Errorf("expected format HH:MM, got %q", s)
	}
	hour := int(s[0]-'0')*10 + int(s[1]-'0')
	minute := int(s[3]-'0')*10 + int(s[4]-'0')
	if hour > 23 {
		return 0, 0, fmt.Errorf("hour %d out of range [0,23]", hour)
	}
	if minute > 59 {
		return 0, 0, fmt.Errorf("minute %d out of range [0,59]", minute)
	}
	return hour, minute, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// parseBounds parses StartDate and EndDate. An unparseable bound is logged
// and ignored rather than suppressing the schedule.
func parseBounds(s types.Schedule, loc *time.Location, logger *slog.Logger) dateBounds {
	var b dateBounds
	if s.StartDate != "" {
		if d, err := time.ParseInLocation(dateLayout, s.StartDate, loc); err == nil {
			day := civilDate(d)
			b.start = &day
		} else {
			logger.Warn("ignoring malformed start_date", "schedule_id", s.ID, "start_date", s.StartDate)
		}
	}
	if s.EndDate != "" {
		if d, err := time.ParseInLocation(dateLayout, s.EndDate, loc); err == nil {
			day := civilDate(d)
			b.end = &day
		} else {
			logger.Warn("ignoring malformed end_date", "schedule_id", s.ID, "end_date", s.EndDate)
		}
	}
	return b
}

// weekdaySet returns the configured weekdays (Monday=0) with Monday as the default.
func weekdaySet(days []int, logger *slog.Logger) [7]bool {
	var set [7]bool
	found := false
	for _, d := range days {
		if d < 0 || d > 6 {
			logger.Warn("skipping invalid weekday", "weekday", d)
			continue
		}
		set[d] = true
		found = true
	}
	if !found {
		set[0] = true
	}
	return set
}

// monthDayList returns the sorted valid month days with the 1st as the default.
func monthDayList(days []int, logger *slog.Logger) []int {
	var out []int
	for _, d := range days {
		if d < 1 || d > 31 {
			logger.Warn("skipping invalid month day", "month_day", d)
			continue
		}
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return []int{1}
	}
	slices.Sort(out)
	return out
}

// mondayIndex converts time.Weekday (Sunday=0) to the Monday=0 convention.
func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// civilDate strips the clock and zone from t, keeping its local calendar day.
func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysIn returns the number of days in the month containing t.
func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// daysBetween counts whole civil days from a to b.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
