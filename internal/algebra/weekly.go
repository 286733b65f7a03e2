package algebra

import (
	"time"

	"github.com/rcalendar/msa-rcalendar/internal/domain/calendar"
)

// AsWeekly decomposes an interval into the ScheduleFragments it touches,
// one per calendar day it spans (§4C.4). The first day's fragment starts
// at the interval's time-of-day; the last day's fragment ends at the
// interval's time-of-day; days in between run midnight to end-of-day.
func AsWeekly(i calendar.Interval) []calendar.ScheduleFragment {
	var fragments []calendar.ScheduleFragment

	startDate := calendar.DateToInstant(i.Start)
	endDate := calendar.DateToInstant(i.End)

	for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
		dayStart := timeOfDay(d, 0, 0, 0)
		dayEnd := timeOfDay(d, 23, 59, 59)

		fragStart := dayStart
		if d.Equal(startDate) {
			fragStart = i.Start
		}
		fragEnd := dayEnd
		if d.Equal(endDate) {
			fragEnd = i.End
		}

		fragments = append(fragments, calendar.ScheduleFragment{
			DayOfWeek: calendar.InternalWeekday(d),
			StartTime: fragStart,
			EndTime:   fragEnd,
		})
	}
	return fragments
}

func timeOfDay(d time.Time, h, m, s int) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, s, 0, d.Location())
}

// FragmentsIntersect reports whether two ScheduleFragments intersect: same
// day_of_week and strictly overlapping time ranges (open endpoints — a
// fragment ending exactly when another starts does not intersect).
func FragmentsIntersect(a, b calendar.ScheduleFragment) bool {
	if a.DayOfWeek != b.DayOfWeek {
		return false
	}
	aStart, aEnd := timeOfDayOnly(a.StartTime), timeOfDayOnly(a.EndTime)
	bStart, bEnd := timeOfDayOnly(b.StartTime), timeOfDayOnly(b.EndTime)
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// timeOfDayOnly normalizes a fragment time to a common reference date so
// only the hour/minute/second components are compared.
func timeOfDayOnly(t time.Time) time.Time {
	return time.Date(0, 1, 1, t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// FragmentSetIntersectsInterval reports whether any of interval's weekly
// decomposition fragments intersects any fragment in fragments restricted
// to the same day-of-week, the rule used to detect a cross-organization
// schedule conflict (Invariant 7, spec §4D rule 6/OrgReserved).
func FragmentSetIntersectsInterval(fragments []calendar.ScheduleFragment, interval calendar.Interval) bool {
	for _, decomposed := range AsWeekly(interval) {
		for _, existing := range fragments {
			if FragmentsIntersect(decomposed, existing) {
				return true
			}
		}
	}
	return false
}
