package calendar

import "time"

// JoinGap is the maximum gap at which two adjacent intervals of the same
// identity are coalesced by join_into.
const JoinGap = 5 * time.Minute

// ExtendableMin is the default look-ahead horizon used when a schedule
// roll-forward request names neither a start nor an end.
const ExtendableMin = 40 * 24 * time.Hour

// DateToInstant converts a calendar date to the instant at local midnight,
// in the date's own location.
func DateToInstant(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}

// InternalWeekday maps a time to the store's day-of-week convention,
// Sunday=0 .. Saturday=6. Go's time.Weekday is already zero-based on
// Sunday, so this is the identity function on int(t.Weekday()); it is kept
// as a named seam (rather than inlined at call sites) because the source
// system derives the same value from an ISO weekday via `(iso+1) mod 7`,
// and any future ingestion path that starts from an ISO weekday must route
// through here instead of reimplementing the offset.
func InternalWeekday(t time.Time) int {
	return int(t.Weekday())
}

// MondayIndexedToInternalWeekday converts a Monday=0..Sunday=6 weekday
// index (the convention produced by most date libraries' plain
// "day-of-week" accessor) to the store's Sunday=0..Saturday=6 convention,
// via `(weekday+1) mod 7`.
func MondayIndexedToInternalWeekday(weekday int) int {
	return (weekday + 1) % 7
}

// NormalizeToUTC converts a naive (no explicit offset information intended)
// time-of-day instant to UTC, the default zone for schedule fragment times
// carried without one.
func NormalizeToUTC(t time.Time) time.Time {
	return t.UTC()
}
