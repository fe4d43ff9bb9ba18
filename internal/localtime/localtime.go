// Package localtime converts naive local wall-clock times into absolute
// instants across DST transitions, and computes the next occurrence of a
// weekly alarm time. All functions are pure and deterministic.
//
// DST policy:
//   - Spring-forward gap (the local time does not exist): the result is the
//     first valid instant after the gap, so the alarm fires late rather
//     than never.
//   - Fall-back overlap (the local time occurs twice): the result is the
//     earlier of the two instants, so the alarm does not silently slip by
//     an hour. This tie-break is a documented policy choice, not a hard
//     product requirement.
package localtime

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time with minute resolution.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" into a TimeOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: out of range", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// String renders the time as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Weekdays is a set of weekdays encoded as a bitmask over time.Weekday.
// The zero value is the empty set, which means "every day".
type Weekdays uint8

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// ParseWeekdays parses short lowercase weekday names ("mon", "tue", ...)
// into a Weekdays set. An empty slice yields the empty set.
func ParseWeekdays(names []string) (Weekdays, error) {
	var w Weekdays
	for _, name := range names {
		day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return 0, fmt.Errorf("invalid weekday %q", name)
		}
		w |= 1 << uint(day)
	}
	return w, nil
}

// Contains reports whether the set allows the given weekday. The empty set
// allows every day.
func (w Weekdays) Contains(day time.Weekday) bool {
	if w == 0 {
		return true
	}
	return w&(1<<uint(day)) != 0
}

// Empty reports whether no explicit weekday is set.
func (w Weekdays) Empty() bool {
	return w == 0
}

// Names returns the short names of the set members in week order.
func (w Weekdays) Names() []string {
	var names []string
	for name, day := range weekdayNames {
		if w&(1<<uint(day)) != 0 {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return weekdayNames[names[i]] < weekdayNames[names[j]]
	})
	return names
}

// Resolve maps a naive local date and time of day in loc to an absolute
// instant, applying the package DST policy for gaps and overlaps.
func Resolve(year int, month time.Month, day int, tod TimeOfDay, loc *time.Location) time.Time {
	t := time.Date(year, month, day, tod.Hour, tod.Minute, 0, 0, loc)

	if t.Hour() != tod.Hour || t.Minute() != tod.Minute {
		// The requested wall time falls in a spring-forward gap; time.Date
		// normalized it past the transition. Return the first valid instant
		// after the gap.
		return gapEnd(t, loc)
	}

	// The wall time exists. It may still be ambiguous during a fall-back
	// overlap; probe the common transition deltas for a second instant
	// rendering the same local time and keep the earlier one.
	for _, delta := range []time.Duration{time.Hour, 30 * time.Minute} {
		if earlier := t.Add(-delta); sameWall(earlier, year, month, day, tod, loc) {
			return earlier
		}
		if sameWall(t.Add(delta), year, month, day, tod, loc) {
			return t
		}
	}
	return t
}

// sameWall reports whether instant renders as the given local wall time.
func sameWall(instant time.Time, year int, month time.Month, day int, tod TimeOfDay, loc *time.Location) bool {
	local := instant.In(loc)
	y, m, d := local.Date()
	return y == year && m == month && d == day &&
		local.Hour() == tod.Hour && local.Minute() == tod.Minute
}

// gapEnd finds the first instant after a DST gap. normalized is the
// post-transition instant produced by time.Date for the nonexistent wall
// time. The transition is located by binary search on the zone offset;
// resolution is one minute, which covers real tzdata transitions.
func gapEnd(normalized time.Time, loc *time.Location) time.Time {
	lo := normalized.Add(-4 * time.Hour)
	hi := normalized
	_, offBefore := lo.In(loc).Zone()
	for hi.Sub(lo) > time.Second {
		mid := lo.Add(hi.Sub(lo) / 2)
		if _, off := mid.In(loc).Zone(); off == offBefore {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi.Truncate(time.Minute).In(loc)
}

// NextOccurrence returns the soonest instant strictly after the given
// instant that falls on an allowed weekday at the given local time of day.
// An empty weekday set allows every day.
func NextOccurrence(tod TimeOfDay, days Weekdays, loc *time.Location, after time.Time) time.Time {
	local := after.In(loc)
	// Nine days covers a single-weekday set plus a same-day occurrence that
	// is already in the past.
	for offset := 0; offset <= 8; offset++ {
		date := local.AddDate(0, 0, offset)
		if !days.Contains(date.Weekday()) {
			continue
		}
		candidate := Resolve(date.Year(), date.Month(), date.Day(), tod, loc)
		if candidate.After(after) {
			return candidate
		}
	}
	// Unreachable for any non-empty schedule; keeps the contract total.
	return time.Time{}
}
